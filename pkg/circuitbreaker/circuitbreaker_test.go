package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	cb := NewCircuitBreaker(Settings{
		Name:                "test",
		Timeout:             time.Minute,
		ConsecutiveFailures: 2,
	})
	boom := errors.New("boom")

	assert.ErrorIs(t, cb.Execute(func() error { return boom }), boom)
	assert.ErrorIs(t, cb.Execute(func() error { return boom }), boom)

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
	assert.Equal(t, "open", cb.State())
}

func TestBreakerIgnoresSuccessfulErrors(t *testing.T) {
	notFound := errors.New("not found")
	cb := NewCircuitBreaker(Settings{
		Name:                "test",
		Timeout:             time.Minute,
		ConsecutiveFailures: 1,
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, notFound)
		},
	})

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Execute(func() error { return notFound }), notFound)
	}
	assert.Equal(t, "closed", cb.State())
}

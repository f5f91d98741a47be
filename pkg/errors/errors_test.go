package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want int
	}{
		{"validation", Validation("bad date", nil), http.StatusBadRequest},
		{"forbidden", Forbidden("patient not linked", nil), http.StatusForbidden},
		{"not found", NotFound("appointment", nil), http.StatusNotFound},
		{"conflict", Conflict("slot already booked", nil), http.StatusConflict},
		{"upstream", Upstream("gateway unavailable", nil), http.StatusInternalServerError},
		{"transient", TransientStorage(nil), http.StatusInternalServerError},
		{"unauthorized", Unauthorized(nil), http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.StatusCode())
		})
	}
}

func TestCodeOfWrapped(t *testing.T) {
	base := Conflict("slot already booked", stderrors.New("duplicate key"))
	wrapped := fmt.Errorf("failed to book appointment: %w", base)

	assert.Equal(t, ErrConflict, CodeOf(wrapped))
	assert.True(t, Is(wrapped, ErrConflict))
	assert.Equal(t, ErrInternal, CodeOf(stderrors.New("plain")))
	assert.False(t, Is(nil, ErrInternal))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(TransientStorage(stderrors.New("conn refused"))))
	assert.True(t, IsRetryable(fmt.Errorf("x: %w", Upstream("timeout", nil))))
	assert.False(t, IsRetryable(Validation("bad", nil)))
	assert.False(t, IsRetryable(stderrors.New("plain")))
}

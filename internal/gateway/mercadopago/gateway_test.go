package mercadopago

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/mercadopago/sdk-go/pkg/mperror"
	"github.com/mercadopago/sdk-go/pkg/payment"
	"github.com/mercadopago/sdk-go/pkg/preference"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	paymentsvc "github.com/jwalitptl/agenda-api/internal/service/payment"
	"github.com/jwalitptl/agenda-api/pkg/errors"
)

type stubPreferences struct {
	got  preference.Request
	resp *preference.Response
	err  error
}

func (s *stubPreferences) Create(_ context.Context, req preference.Request) (*preference.Response, error) {
	s.got = req
	return s.resp, s.err
}

type stubPayments struct {
	calls int
	resp  *payment.Response
	err   error
	block bool
}

func (s *stubPayments) Get(ctx context.Context, id int) (*payment.Response, error) {
	s.calls++
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.resp, s.err
}

func testConfig() Config {
	return Config{
		NotificationURL:     "https://api.example.com/agenda/webhook",
		SuccessURL:          "https://app.example.com/agenda/paid",
		FailureURL:          "https://app.example.com/agenda/failed",
		PendingURL:          "https://app.example.com/agenda/pending",
		RequestTimeout:      50 * time.Millisecond,
		BreakerFailures:     2,
		BreakerOpenDuration: time.Minute,
	}
}

func TestCreatePreference(t *testing.T) {
	prefs := &stubPreferences{resp: &preference.Response{
		ID:               "123-abc",
		InitPoint:        "https://www.mercadopago.com/checkout?pref_id=123-abc",
		SandboxInitPoint: "https://sandbox.mercadopago.com/checkout?pref_id=123-abc",
	}}
	g := newGateway(prefs, &stubPayments{}, testConfig(), nil)

	pref, err := g.CreatePreference(context.Background(), paymentsvc.PreferenceRequest{
		ExternalReference: "agenda_x_1",
		Title:             "Agenda subscription",
		AmountCents:       4990,
		Currency:          "BRL",
		PayerEmail:        "pro@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "123-abc", pref.ID)
	assert.Equal(t, prefs.resp.InitPoint, pref.RedirectURL)

	require.Len(t, prefs.got.Items, 1)
	assert.InDelta(t, 49.90, prefs.got.Items[0].UnitPrice, 0.0001)
	assert.Equal(t, "BRL", prefs.got.Items[0].CurrencyID)
	assert.Equal(t, "agenda_x_1", prefs.got.ExternalReference)
	assert.Equal(t, testConfig().NotificationURL, prefs.got.NotificationURL)
	require.NotNil(t, prefs.got.BackURLs)
	assert.Equal(t, testConfig().SuccessURL, prefs.got.BackURLs.Success)
	require.NotNil(t, prefs.got.Payer)
	assert.Equal(t, "pro@example.com", prefs.got.Payer.Email)
}

func TestCreatePreferenceSandboxRedirect(t *testing.T) {
	prefs := &stubPreferences{resp: &preference.Response{ID: "1", InitPoint: "live", SandboxInitPoint: "sandbox"}}
	cfg := testConfig()
	cfg.Sandbox = true
	g := newGateway(prefs, &stubPayments{}, cfg, nil)

	pref, err := g.CreatePreference(context.Background(), paymentsvc.PreferenceRequest{AmountCents: 100, Currency: "BRL"})
	require.NoError(t, err)
	assert.Equal(t, "sandbox", pref.RedirectURL)
}

func TestGetPayment(t *testing.T) {
	payments := &stubPayments{resp: &payment.Response{ID: 987654, Status: "approved", ExternalReference: "agenda_x_1"}}
	g := newGateway(&stubPreferences{}, payments, testConfig(), nil)

	p, err := g.GetPayment(context.Background(), "987654")
	require.NoError(t, err)
	assert.Equal(t, "987654", p.ID)
	assert.Equal(t, paymentsvc.StatusApproved, p.Status)
	assert.Equal(t, "agenda_x_1", p.ExternalReference)
}

func TestGetPaymentRejectsNonNumericID(t *testing.T) {
	payments := &stubPayments{}
	g := newGateway(&stubPreferences{}, payments, testConfig(), nil)

	_, err := g.GetPayment(context.Background(), "abc")
	assert.True(t, errors.Is(err, errors.ErrValidation))
	assert.Zero(t, payments.calls)
}

func TestGatewayErrorsAreUpstream(t *testing.T) {
	t.Run("request failure", func(t *testing.T) {
		g := newGateway(&stubPreferences{err: fmt.Errorf("500 internal")}, &stubPayments{}, testConfig(), nil)
		_, err := g.CreatePreference(context.Background(), paymentsvc.PreferenceRequest{})
		assert.True(t, errors.Is(err, errors.ErrUpstream))
	})

	t.Run("timeout", func(t *testing.T) {
		g := newGateway(&stubPreferences{}, &stubPayments{block: true}, testConfig(), nil)
		_, err := g.GetPayment(context.Background(), "1")
		assert.True(t, errors.Is(err, errors.ErrUpstream))
	})
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	payments := &stubPayments{err: fmt.Errorf("connection refused")}
	g := newGateway(&stubPreferences{}, payments, testConfig(), nil)

	for i := 0; i < 2; i++ {
		_, err := g.GetPayment(context.Background(), "1")
		require.Error(t, err)
	}
	assert.Equal(t, "open", g.breaker.State())

	_, err := g.GetPayment(context.Background(), "1")
	assert.True(t, errors.Is(err, errors.ErrUpstream))
	assert.Equal(t, 2, payments.calls)
}

func TestClientErrorsDoNotTripBreaker(t *testing.T) {
	ctx := context.Background()
	payments := &stubPayments{err: &mperror.ResponseError{StatusCode: http.StatusNotFound, Message: `{"message":"Payment not found"}`}}
	prefs := &stubPreferences{resp: &preference.Response{ID: "pref-1", InitPoint: "live"}}
	g := newGateway(prefs, payments, testConfig(), nil)

	for i := 0; i < 5; i++ {
		_, err := g.GetPayment(ctx, "404")
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrNotFound))
		assert.False(t, errors.IsRetryable(err))
	}
	assert.Equal(t, 5, payments.calls)
	assert.Equal(t, "closed", g.breaker.State())

	pref, err := g.CreatePreference(ctx, paymentsvc.PreferenceRequest{AmountCents: 100, Currency: "BRL"})
	require.NoError(t, err)
	assert.Equal(t, "pref-1", pref.ID)
}

func TestResponseErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		code   errors.ErrorCode
	}{
		{"not found", http.StatusNotFound, errors.ErrNotFound},
		{"bad request", http.StatusBadRequest, errors.ErrValidation},
		{"forbidden", http.StatusForbidden, errors.ErrValidation},
		{"throttled", http.StatusTooManyRequests, errors.ErrUpstream},
		{"request timeout", http.StatusRequestTimeout, errors.ErrUpstream},
		{"server error", http.StatusBadGateway, errors.ErrUpstream},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payments := &stubPayments{err: fmt.Errorf("get payment: %w", &mperror.ResponseError{StatusCode: tt.status})}
			g := newGateway(&stubPreferences{}, payments, testConfig(), nil)

			_, err := g.GetPayment(context.Background(), "1")
			assert.Equal(t, tt.code, errors.CodeOf(err))
		})
	}
}

func TestServerErrorsTripBreaker(t *testing.T) {
	payments := &stubPayments{err: &mperror.ResponseError{StatusCode: http.StatusServiceUnavailable}}
	g := newGateway(&stubPreferences{}, payments, testConfig(), nil)

	for i := 0; i < 2; i++ {
		_, err := g.GetPayment(context.Background(), "1")
		assert.True(t, errors.IsRetryable(err))
	}
	assert.Equal(t, "open", g.breaker.State())
}

// Package mercadopago adapts the Mercado Pago SDK to the payment gateway
// used by the subscription flow.
package mercadopago

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	mpconfig "github.com/mercadopago/sdk-go/pkg/config"
	"github.com/mercadopago/sdk-go/pkg/mperror"
	"github.com/mercadopago/sdk-go/pkg/payment"
	"github.com/mercadopago/sdk-go/pkg/preference"

	paymentsvc "github.com/jwalitptl/agenda-api/internal/service/payment"
	"github.com/jwalitptl/agenda-api/pkg/circuitbreaker"
	"github.com/jwalitptl/agenda-api/pkg/errors"
	"github.com/jwalitptl/agenda-api/pkg/metrics"
)

type Config struct {
	AccessToken         string
	NotificationURL     string
	SuccessURL          string
	FailureURL          string
	PendingURL          string
	Sandbox             bool
	RequestTimeout      time.Duration
	BreakerFailures     uint32
	BreakerOpenDuration time.Duration
}

type preferenceClient interface {
	Create(ctx context.Context, request preference.Request) (*preference.Response, error)
}

type paymentClient interface {
	Get(ctx context.Context, id int) (*payment.Response, error)
}

type Gateway struct {
	preferences preferenceClient
	payments    paymentClient
	breaker     *circuitbreaker.CircuitBreaker
	config      Config
	metrics     *metrics.Metrics
}

var _ paymentsvc.Gateway = (*Gateway)(nil)

func New(cfg Config, m *metrics.Metrics) (*Gateway, error) {
	if cfg.AccessToken == "" {
		return nil, fmt.Errorf("mercadopago access token is required")
	}
	mp, err := mpconfig.New(cfg.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to configure mercadopago: %w", err)
	}
	return newGateway(preference.NewClient(mp), payment.NewClient(mp), cfg, m), nil
}

func newGateway(preferences preferenceClient, payments paymentClient, cfg Config, m *metrics.Metrics) *Gateway {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.BreakerOpenDuration <= 0 {
		cfg.BreakerOpenDuration = 30 * time.Second
	}
	if m == nil {
		m = metrics.NewNop()
	}
	return &Gateway{
		preferences: preferences,
		payments:    payments,
		breaker: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:                "mercadopago",
			MaxRequests:         1,
			Timeout:             cfg.BreakerOpenDuration,
			ConsecutiveFailures: cfg.BreakerFailures,
			IsSuccessful: func(err error) bool {
				return err == nil || clientError(err) != nil
			},
		}),
		config:  cfg,
		metrics: m,
	}
}

// CreatePreference opens a checkout for a single subscription item.
func (g *Gateway) CreatePreference(ctx context.Context, req paymentsvc.PreferenceRequest) (*paymentsvc.Preference, error) {
	request := preference.Request{
		ExternalReference: req.ExternalReference,
		NotificationURL:   g.config.NotificationURL,
		Items: []preference.ItemRequest{{
			Title:      req.Title,
			Quantity:   1,
			UnitPrice:  float64(req.AmountCents) / 100,
			CurrencyID: req.Currency,
		}},
	}
	if req.PayerEmail != "" {
		request.Payer = &preference.PayerRequest{Email: req.PayerEmail}
	}
	if g.config.SuccessURL != "" {
		request.BackURLs = &preference.BackURLsRequest{
			Success: g.config.SuccessURL,
			Failure: g.config.FailureURL,
			Pending: g.config.PendingURL,
		}
		request.AutoReturn = "approved"
	}

	var resp *preference.Response
	err := g.call(ctx, "create_preference", func(ctx context.Context) error {
		var err error
		resp, err = g.preferences.Create(ctx, request)
		return err
	})
	if err != nil {
		return nil, err
	}

	redirect := resp.InitPoint
	if g.config.Sandbox && resp.SandboxInitPoint != "" {
		redirect = resp.SandboxInitPoint
	}
	return &paymentsvc.Preference{ID: resp.ID, RedirectURL: redirect}, nil
}

// GetPayment fetches the settlement state of a payment by its gateway id.
func (g *Gateway) GetPayment(ctx context.Context, paymentID string) (*paymentsvc.GatewayPayment, error) {
	id, err := strconv.Atoi(paymentID)
	if err != nil || id <= 0 {
		return nil, errors.Validation(fmt.Sprintf("invalid payment id %q", paymentID), err)
	}

	var resp *payment.Response
	err = g.call(ctx, "get_payment", func(ctx context.Context) error {
		var err error
		resp, err = g.payments.Get(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &paymentsvc.GatewayPayment{
		ID:                strconv.Itoa(resp.ID),
		Status:            resp.Status,
		ExternalReference: resp.ExternalReference,
	}, nil
}

// call runs fn through the breaker with a bounded timeout. Rejections of the
// request itself map to NotFound or Validation; everything else is Upstream.
func (g *Gateway) call(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, g.config.RequestTimeout)
	defer cancel()

	start := time.Now()
	err := g.breaker.Execute(func() error { return fn(ctx) })

	status := "success"
	if err != nil {
		status = "error"
	}
	g.metrics.GatewayLatency.WithLabelValues(operation, status).Observe(time.Since(start).Seconds())

	if err == nil {
		return nil
	}
	if respErr := clientError(err); respErr != nil {
		if respErr.StatusCode == http.StatusNotFound {
			return errors.NotFound("payment gateway resource", err)
		}
		return errors.Validation(fmt.Sprintf("payment gateway rejected %s (status %d)", operation, respErr.StatusCode), err)
	}

	switch {
	case stderrors.Is(err, circuitbreaker.ErrOpen):
		return errors.Upstream("payment gateway temporarily unavailable", err)
	case stderrors.Is(err, context.DeadlineExceeded):
		return errors.Upstream("payment gateway timed out", err)
	}
	return errors.Upstream("payment gateway request failed", err)
}

// clientError returns the gateway response when it rejected the request with
// a 4xx that retrying cannot fix. Timeouts and throttling are not included.
func clientError(err error) *mperror.ResponseError {
	var respErr *mperror.ResponseError
	if !stderrors.As(err, &respErr) {
		return nil
	}
	switch {
	case respErr.StatusCode == http.StatusRequestTimeout, respErr.StatusCode == http.StatusTooManyRequests:
		return nil
	case respErr.StatusCode >= 400 && respErr.StatusCode < 500:
		return respErr
	}
	return nil
}

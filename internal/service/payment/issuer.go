package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/agenda-api/internal/model"
	"github.com/jwalitptl/agenda-api/internal/repository"
	"github.com/jwalitptl/agenda-api/pkg/errors"
	"github.com/jwalitptl/agenda-api/pkg/logger"
	"github.com/jwalitptl/agenda-api/pkg/metrics"
)

type IssuerConfig struct {
	AmountCents int64
	Currency    string
	Description string
}

type IssuerDeps struct {
	Gateway       Gateway
	Payments      repository.PaymentRepository
	Subscriptions repository.SubscriptionRepository
	Tx            repository.TxManager
	Now           func() time.Time
	Logger        *logger.Logger
	Metrics       *metrics.Metrics
}

// Issuer creates subscription payment intents at the gateway and records
// them as pending payments.
type Issuer struct {
	gateway       Gateway
	payments      repository.PaymentRepository
	subscriptions repository.SubscriptionRepository
	tx            repository.TxManager
	now           func() time.Time
	logger        *logger.Logger
	metrics       *metrics.Metrics
	config        IssuerConfig
}

func NewIssuer(d IssuerDeps, config IssuerConfig) (*Issuer, error) {
	if config.AmountCents <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	if config.Currency == "" {
		return nil, fmt.Errorf("currency is required")
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Logger == nil {
		d.Logger = logger.Nop()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.NewNop()
	}
	return &Issuer{
		gateway:       d.Gateway,
		payments:      d.Payments,
		subscriptions: d.Subscriptions,
		tx:            d.Tx,
		now:           d.Now,
		logger:        d.Logger,
		metrics:       d.Metrics,
		config:        config,
	}, nil
}

// CreateIntent asks the gateway for a payable preference and then stores a
// pending payment carrying its external reference. A gateway failure leaves
// no local state behind.
func (i *Issuer) CreateIntent(ctx context.Context, professionalID uuid.UUID, req *model.CreatePaymentRequest) (*model.PaymentIntentResponse, error) {
	now := i.now().UTC()
	ref := FormatReference(professionalID, now)

	pref, err := i.gateway.CreatePreference(ctx, PreferenceRequest{
		ExternalReference: ref,
		Title:             i.config.Description,
		AmountCents:       i.config.AmountCents,
		Currency:          i.config.Currency,
		PayerEmail:        req.PayerEmail,
	})
	if err != nil {
		i.metrics.PaymentIntents.WithLabelValues("gateway_error").Inc()
		if _, ok := errors.As(err); !ok {
			err = errors.Upstream("payment gateway unavailable", err)
		}
		return nil, err
	}

	record := &model.PaymentRecord{
		ID:                uuid.New(),
		ProfessionalID:    professionalID,
		AmountCents:       i.config.AmountCents,
		Currency:          i.config.Currency,
		Status:            model.PaymentStatusPending,
		GatewayIntentID:   pref.ID,
		ExternalReference: ref,
		PayerEmail:        req.PayerEmail,
	}
	err = i.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := i.payments.Create(ctx, record); err != nil {
			return err
		}
		return i.subscriptions.MarkPending(ctx, professionalID, now)
	})
	if err != nil {
		i.metrics.PaymentIntents.WithLabelValues("storage_error").Inc()
		i.logger.Error(err, "payment intent issued but not recorded",
			"professional_id", professionalID.String(),
			"intent_id", pref.ID,
			"external_reference", ref)
		return nil, fmt.Errorf("failed to record payment intent: %w", err)
	}

	i.metrics.PaymentIntents.WithLabelValues("created").Inc()
	i.logger.Info("payment intent created",
		"professional_id", professionalID.String(),
		"intent_id", pref.ID,
		"external_reference", ref)

	return &model.PaymentIntentResponse{
		IntentID:          pref.ID,
		RedirectURL:       pref.RedirectURL,
		ExternalReference: ref,
	}, nil
}

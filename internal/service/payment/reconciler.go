package payment

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/jwalitptl/agenda-api/internal/model"
	"github.com/jwalitptl/agenda-api/internal/repository"
	"github.com/jwalitptl/agenda-api/pkg/errors"
	"github.com/jwalitptl/agenda-api/pkg/logger"
	"github.com/jwalitptl/agenda-api/pkg/metrics"
)

// TypePayment is the only notification type the reconciler acts on.
const TypePayment = "payment"

type ReconcilerConfig struct {
	Provider  string
	GrantDays int
	// RecordGrace is how long after minting a reference an approval without
	// a stored payment record is retried instead of quarantined. The issuer
	// stores the record only after the gateway accepts the preference.
	RecordGrace time.Duration
}

type ReconcilerDeps struct {
	Gateway       Gateway
	Payments      repository.PaymentRepository
	Subscriptions repository.SubscriptionRepository
	Webhooks      repository.WebhookEventRepository
	Outbox        repository.OutboxRepository
	Tx            repository.TxManager
	Now           func() time.Time
	Logger        *logger.Logger
	Metrics       *metrics.Metrics
}

// Reconciler turns gateway settlement notifications into subscription grants.
// Deliveries may repeat, race or arrive out of order; each paid intent grants
// access exactly once.
type Reconciler struct {
	gateway       Gateway
	payments      repository.PaymentRepository
	subscriptions repository.SubscriptionRepository
	webhooks      repository.WebhookEventRepository
	outbox        repository.OutboxRepository
	tx            repository.TxManager
	now           func() time.Time
	logger        *logger.Logger
	metrics       *metrics.Metrics
	config        ReconcilerConfig
}

func NewReconciler(d ReconcilerDeps, config ReconcilerConfig) (*Reconciler, error) {
	if config.GrantDays <= 0 {
		return nil, fmt.Errorf("grant days must be positive")
	}
	if config.Provider == "" {
		config.Provider = "mercadopago"
	}
	if config.RecordGrace <= 0 {
		config.RecordGrace = 10 * time.Minute
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
	return &Reconciler{
		gateway:       d.Gateway,
		payments:      d.Payments,
		subscriptions: d.Subscriptions,
		webhooks:      d.Webhooks,
		outbox:        d.Outbox,
		tx:            d.Tx,
		now:           d.Now,
		logger:        d.Logger,
		metrics:       d.Metrics,
		config:        config,
	}, nil
}

// quarantine aborts a reconciliation whose delivery cannot be trusted.
type quarantine struct {
	reason string
}

func (q *quarantine) Error() string { return q.reason }

// Handle processes one notification and returns the journaled outcome. An
// error means the delivery should be retried by the gateway.
func (r *Reconciler) Handle(ctx context.Context, n model.Notification) (model.WebhookOutcome, error) {
	event := &model.WebhookEvent{
		Provider:       r.config.Provider,
		NotificationID: n.ID,
		Topic:          n.Type,
		PaymentID:      n.PaymentID,
	}

	if !strings.EqualFold(n.Type, TypePayment) || n.PaymentID == "" {
		event.Outcome, event.Detail = model.WebhookOutcomeIgnored, "not a payment notification"
		return r.finish(ctx, event)
	}

	payment, err := r.gateway.GetPayment(ctx, n.PaymentID)
	if errors.Is(err, errors.ErrValidation) || errors.Is(err, errors.ErrNotFound) {
		event.Outcome, event.Detail = model.WebhookOutcomeIgnored, err.Error()
		return r.finish(ctx, event)
	}
	if err != nil {
		r.metrics.WebhookOutcomes.WithLabelValues("upstream_error").Inc()
		r.logger.Error(err, "failed to fetch payment from gateway",
			"notification_id", n.ID,
			"payment_id", n.PaymentID)
		if _, ok := errors.As(err); !ok {
			err = errors.Upstream("payment gateway unavailable", err)
		}
		return "", err
	}
	event.ExternalReference = payment.ExternalReference

	if payment.Status != StatusApproved {
		event.Outcome, event.Detail = model.WebhookOutcomeNotApproved, payment.Status
		return r.finish(ctx, event)
	}

	professionalID, mintedAt, err := ParseReference(payment.ExternalReference)
	if err != nil {
		event.Outcome, event.Detail = model.WebhookOutcomeQuarantined, err.Error()
		return r.finish(ctx, event)
	}

	now := r.now().UTC()
	recordPending := false
	err = r.tx.RunInTx(ctx, func(ctx context.Context) error {
		record, first, err := r.payments.MarkPaid(ctx, payment.ExternalReference, payment.ID, now)
		if errors.Is(err, errors.ErrNotFound) {
			if r.recentlyMinted(mintedAt, now) {
				recordPending = true
				return errors.TransientStorage(fmt.Errorf("no payment record yet for reference %q", payment.ExternalReference))
			}
			return &quarantine{reason: "no payment record for reference"}
		}
		if err != nil {
			return err
		}
		if record.ProfessionalID != professionalID {
			return &quarantine{reason: "reference does not match payment owner"}
		}
		if !first {
			event.Outcome, event.Detail = model.WebhookOutcomeDuplicate, "payment already applied"
			return nil
		}

		expiresAt := now.AddDate(0, 0, r.config.GrantDays)
		if _, err := r.subscriptions.Activate(ctx, professionalID, expiresAt, record.ID); err != nil {
			return err
		}
		activated, err := model.NewOutboxEvent(model.EventSubscriptionActivated, model.SubscriptionActivatedPayload{
			ProfessionalID: professionalID,
			PaymentID:      record.ID,
			ExpiresAt:      expiresAt,
			PayerEmail:     record.PayerEmail,
		})
		if err != nil {
			return errors.Internal(err)
		}
		if err := r.outbox.Create(ctx, activated); err != nil {
			return err
		}

		event.Outcome = model.WebhookOutcomeApplied
		event.Detail = "access granted until " + expiresAt.Format(time.RFC3339)
		return r.webhooks.Record(ctx, event)
	})

	var q *quarantine
	switch {
	case stderrors.As(err, &q):
		event.Outcome, event.Detail = model.WebhookOutcomeQuarantined, q.reason
		return r.finish(ctx, event)
	case recordPending:
		r.metrics.WebhookOutcomes.WithLabelValues("record_pending").Inc()
		r.logger.Warn("approved payment has no stored record yet, asking for redelivery",
			"notification_id", n.ID,
			"payment_id", payment.ID,
			"external_reference", payment.ExternalReference)
		return "", err
	case err != nil:
		r.metrics.WebhookOutcomes.WithLabelValues("storage_error").Inc()
		r.logger.Error(err, "failed to apply payment",
			"notification_id", n.ID,
			"payment_id", payment.ID,
			"professional_id", professionalID.String())
		return "", fmt.Errorf("failed to apply payment: %w", err)
	case event.Outcome == model.WebhookOutcomeApplied:
		r.metrics.SubscriptionActivations.Inc()
		r.observe(event)
		return event.Outcome, nil
	}
	return r.finish(ctx, event)
}

// recentlyMinted reports whether a reference minted at mintedAt may still
// belong to an intent whose record is being stored.
func (r *Reconciler) recentlyMinted(mintedAt, now time.Time) bool {
	age := now.Sub(mintedAt)
	if age < 0 {
		age = -age
	}
	return age <= r.config.RecordGrace
}

// finish journals event outside any transaction.
func (r *Reconciler) finish(ctx context.Context, event *model.WebhookEvent) (model.WebhookOutcome, error) {
	if err := r.webhooks.Record(ctx, event); err != nil {
		r.metrics.WebhookOutcomes.WithLabelValues("storage_error").Inc()
		return "", fmt.Errorf("failed to journal webhook: %w", err)
	}
	r.observe(event)
	return event.Outcome, nil
}

func (r *Reconciler) observe(event *model.WebhookEvent) {
	r.metrics.WebhookOutcomes.WithLabelValues(string(event.Outcome)).Inc()
	fields := []interface{}{
		"notification_id", event.NotificationID,
		"payment_id", event.PaymentID,
		"external_reference", event.ExternalReference,
		"outcome", string(event.Outcome),
		"detail", event.Detail,
	}
	if event.Outcome == model.WebhookOutcomeQuarantined {
		r.logger.Warn("webhook quarantined", fields...)
		return
	}
	r.logger.Info("webhook processed", fields...)
}

const maxQuarantinedPage = 500

// Quarantined lists the most recent deliveries held for review.
func (r *Reconciler) Quarantined(ctx context.Context, limit int) ([]*model.WebhookEvent, error) {
	switch {
	case limit <= 0:
		limit = 100
	case limit > maxQuarantinedPage:
		limit = maxQuarantinedPage
	}
	return r.webhooks.ListQuarantined(ctx, limit)
}

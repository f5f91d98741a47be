package payment

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/agenda-api/internal/model"
	"github.com/jwalitptl/agenda-api/internal/repository/repotest"
	"github.com/jwalitptl/agenda-api/internal/service/appointment"
	"github.com/jwalitptl/agenda-api/internal/service/subscription"
	"github.com/jwalitptl/agenda-api/pkg/errors"
)

type fakeGateway struct {
	mu          sync.Mutex
	payments    map[string]*GatewayPayment
	preferences []PreferenceRequest
	createErr   error
	getErr      error
	fetches     int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{payments: map[string]*GatewayPayment{}}
}

func (g *fakeGateway) CreatePreference(_ context.Context, req PreferenceRequest) (*Preference, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.preferences = append(g.preferences, req)
	id := fmt.Sprintf("pref-%d", len(g.preferences))
	return &Preference{ID: id, RedirectURL: "https://gateway.test/checkout/" + id}, nil
}

func (g *fakeGateway) GetPayment(_ context.Context, paymentID string) (*GatewayPayment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fetches++
	if g.getErr != nil {
		return nil, g.getErr
	}
	p, ok := g.payments[paymentID]
	if !ok {
		return nil, errors.Upstream("payment not found at gateway", nil)
	}
	cp := *p
	return &cp, nil
}

// settle simulates the payer completing checkout for a reference.
func (g *fakeGateway) settle(paymentID, ref, status string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payments[paymentID] = &GatewayPayment{ID: paymentID, Status: status, ExternalReference: ref}
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type env struct {
	store      *repotest.Store
	gateway    *fakeGateway
	clock      *clock
	issuer     *Issuer
	reconciler *Reconciler
	gate       *subscription.Service
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		store:   repotest.NewStore(),
		gateway: newFakeGateway(),
		clock:   &clock{now: time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC)},
	}

	var err error
	e.issuer, err = NewIssuer(IssuerDeps{
		Gateway:       e.gateway,
		Payments:      e.store.PaymentRepo(),
		Subscriptions: e.store.Subscriptions(),
		Tx:            e.store.TxManager(),
		Now:           e.clock.Now,
	}, IssuerConfig{AmountCents: 4990, Currency: "BRL", Description: "Agenda subscription"})
	require.NoError(t, err)

	e.reconciler, err = NewReconciler(ReconcilerDeps{
		Gateway:       e.gateway,
		Payments:      e.store.PaymentRepo(),
		Subscriptions: e.store.Subscriptions(),
		Webhooks:      e.store.WebhookEventRepo(),
		Outbox:        e.store.Outbox(),
		Tx:            e.store.TxManager(),
		Now:           e.clock.Now,
	}, ReconcilerConfig{GrantDays: 30})
	require.NoError(t, err)

	e.gate = subscription.NewService(e.store.Subscriptions(), e.clock.Now)
	return e
}

func (e *env) intent(t *testing.T, professionalID uuid.UUID) *model.PaymentIntentResponse {
	t.Helper()
	resp, err := e.issuer.CreateIntent(context.Background(), professionalID, &model.CreatePaymentRequest{PayerEmail: "pro@example.com"})
	require.NoError(t, err)
	return resp
}

func paymentNotification(paymentID string) model.Notification {
	return model.Notification{ID: "n-" + paymentID, Type: TypePayment, Action: "payment.updated", PaymentID: paymentID}
}

func TestCreateIntent(t *testing.T) {
	e := newEnv(t)
	professionalID := uuid.New()

	resp := e.intent(t, professionalID)
	assert.Equal(t, "pref-1", resp.IntentID)
	assert.NotEmpty(t, resp.RedirectURL)

	gotID, _, err := ParseReference(resp.ExternalReference)
	require.NoError(t, err)
	assert.Equal(t, professionalID, gotID)

	require.Len(t, e.gateway.preferences, 1)
	assert.Equal(t, int64(4990), e.gateway.preferences[0].AmountCents)
	assert.Equal(t, resp.ExternalReference, e.gateway.preferences[0].ExternalReference)

	payments := e.store.Payments()
	require.Len(t, payments, 1)
	assert.Equal(t, model.PaymentStatusPending, payments[0].Status)
	assert.Equal(t, "pref-1", payments[0].GatewayIntentID)

	status, err := e.gate.GetStatus(context.Background(), professionalID)
	require.NoError(t, err)
	assert.Equal(t, model.SubscriptionStatusPending, status.Status)
}

func TestCreateIntentGatewayFailureLeavesNoState(t *testing.T) {
	e := newEnv(t)
	e.gateway.createErr = fmt.Errorf("connection refused")

	_, err := e.issuer.CreateIntent(context.Background(), uuid.New(), &model.CreatePaymentRequest{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUpstream))
	assert.True(t, errors.IsRetryable(err))
	assert.Empty(t, e.store.Payments())
}

func TestCreateIntentKeepsValidGrantActive(t *testing.T) {
	e := newEnv(t)
	professionalID := uuid.New()
	expires := e.clock.Now().AddDate(0, 0, 10)
	e.store.PutSubscription(model.SubscriptionRecord{
		ProfessionalID: professionalID,
		Status:         model.SubscriptionStatusActive,
		ExpiresAt:      &expires,
	})

	e.intent(t, professionalID)

	ok, err := e.gate.CanUseAgenda(context.Background(), professionalID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReconcileApproved(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	professionalID := uuid.New()
	resp := e.intent(t, professionalID)
	e.gateway.settle("1001", resp.ExternalReference, StatusApproved)

	outcome, err := e.reconciler.Handle(ctx, paymentNotification("1001"))
	require.NoError(t, err)
	assert.Equal(t, model.WebhookOutcomeApplied, outcome)

	rec, err := e.gate.GetStatus(ctx, professionalID)
	require.NoError(t, err)
	assert.Equal(t, model.SubscriptionStatusActive, rec.Status)
	require.NotNil(t, rec.ExpiresAt)
	assert.True(t, rec.ExpiresAt.Equal(e.clock.Now().AddDate(0, 0, 30)))

	payments := e.store.Payments()
	require.Len(t, payments, 1)
	assert.Equal(t, model.PaymentStatusPaid, payments[0].Status)
	require.NotNil(t, payments[0].ExternalPaymentID)
	assert.Equal(t, "1001", *payments[0].ExternalPaymentID)
	assert.Equal(t, payments[0].ID, *rec.LastPaymentID)

	events := e.store.OutboxEvents()
	require.Len(t, events, 1)
	assert.Equal(t, model.EventSubscriptionActivated, events[0].EventType)
}

func TestReconcileDuplicateDeliveryGrantsOnce(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	professionalID := uuid.New()
	resp := e.intent(t, professionalID)
	e.gateway.settle("2002", resp.ExternalReference, StatusApproved)

	_, err := e.reconciler.Handle(ctx, paymentNotification("2002"))
	require.NoError(t, err)
	first, err := e.gate.GetStatus(ctx, professionalID)
	require.NoError(t, err)

	e.clock.Advance(6 * time.Hour)
	outcome, err := e.reconciler.Handle(ctx, paymentNotification("2002"))
	require.NoError(t, err)
	assert.Equal(t, model.WebhookOutcomeDuplicate, outcome)

	second, err := e.gate.GetStatus(ctx, professionalID)
	require.NoError(t, err)
	assert.True(t, first.ExpiresAt.Equal(*second.ExpiresAt))
	assert.Len(t, e.store.OutboxEvents(), 1)
}

func TestReconcileConcurrentDeliveries(t *testing.T) {
	e := newEnv(t)
	professionalID := uuid.New()
	resp := e.intent(t, professionalID)
	e.gateway.settle("3003", resp.ExternalReference, StatusApproved)

	const deliveries = 10
	outcomes := make(chan model.WebhookOutcome, deliveries)
	var wg sync.WaitGroup
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := e.reconciler.Handle(context.Background(), paymentNotification("3003"))
			assert.NoError(t, err)
			outcomes <- outcome
		}()
	}
	wg.Wait()
	close(outcomes)

	counts := map[model.WebhookOutcome]int{}
	for o := range outcomes {
		counts[o]++
	}
	assert.Equal(t, 1, counts[model.WebhookOutcomeApplied])
	assert.Equal(t, deliveries-1, counts[model.WebhookOutcomeDuplicate])
	assert.Len(t, e.store.OutboxEvents(), 1)
}

func TestReconcileNoOps(t *testing.T) {
	ctx := context.Background()

	t.Run("non payment topic", func(t *testing.T) {
		e := newEnv(t)
		outcome, err := e.reconciler.Handle(ctx, model.Notification{ID: "x", Type: "merchant_order", PaymentID: "1"})
		require.NoError(t, err)
		assert.Equal(t, model.WebhookOutcomeIgnored, outcome)
		assert.Zero(t, e.gateway.fetches)
	})

	t.Run("missing payment id", func(t *testing.T) {
		e := newEnv(t)
		outcome, err := e.reconciler.Handle(ctx, model.Notification{Type: TypePayment})
		require.NoError(t, err)
		assert.Equal(t, model.WebhookOutcomeIgnored, outcome)
	})

	t.Run("pending settlement then approved", func(t *testing.T) {
		e := newEnv(t)
		professionalID := uuid.New()
		resp := e.intent(t, professionalID)

		e.gateway.settle("4004", resp.ExternalReference, "in_process")
		outcome, err := e.reconciler.Handle(ctx, paymentNotification("4004"))
		require.NoError(t, err)
		assert.Equal(t, model.WebhookOutcomeNotApproved, outcome)

		ok, err := e.gate.CanUseAgenda(ctx, professionalID)
		require.NoError(t, err)
		assert.False(t, ok)

		e.gateway.settle("4004", resp.ExternalReference, StatusApproved)
		outcome, err = e.reconciler.Handle(ctx, paymentNotification("4004"))
		require.NoError(t, err)
		assert.Equal(t, model.WebhookOutcomeApplied, outcome)
	})
}

func TestReconcileQuarantine(t *testing.T) {
	ctx := context.Background()

	t.Run("unparseable reference", func(t *testing.T) {
		e := newEnv(t)
		e.gateway.settle("5005", "order-77", StatusApproved)
		outcome, err := e.reconciler.Handle(ctx, paymentNotification("5005"))
		require.NoError(t, err)
		assert.Equal(t, model.WebhookOutcomeQuarantined, outcome)
	})

	t.Run("no matching payment record", func(t *testing.T) {
		e := newEnv(t)
		ref := FormatReference(uuid.New(), e.clock.Now().Add(-time.Hour))
		e.gateway.settle("6006", ref, StatusApproved)
		outcome, err := e.reconciler.Handle(ctx, paymentNotification("6006"))
		require.NoError(t, err)
		assert.Equal(t, model.WebhookOutcomeQuarantined, outcome)
	})

	t.Run("reference owner mismatch", func(t *testing.T) {
		e := newEnv(t)
		owner := uuid.New()
		e.intent(t, owner)

		// Rewrite the stored reference so it names another professional.
		other := uuid.New()
		forged := FormatReference(other, e.clock.Now())
		record := e.store.Payments()[0]
		record.ID = uuid.Nil
		record.ExternalReference = forged
		record.ProfessionalID = owner
		require.NoError(t, e.store.PaymentRepo().Create(ctx, &record))

		e.gateway.settle("7007", forged, StatusApproved)
		outcome, err := e.reconciler.Handle(ctx, paymentNotification("7007"))
		require.NoError(t, err)
		assert.Equal(t, model.WebhookOutcomeQuarantined, outcome)

		paid, err := e.store.PaymentRepo().GetByReference(ctx, forged)
		require.NoError(t, err)
		assert.Equal(t, model.PaymentStatusPending, paid.Status)

		quarantined, err := e.reconciler.Quarantined(ctx, 10)
		require.NoError(t, err)
		require.Len(t, quarantined, 1)
		assert.Equal(t, "7007", quarantined[0].PaymentID)
	})
}

func TestReconcileApprovalBeforeRecordIsStored(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	professionalID := uuid.New()
	ref := FormatReference(professionalID, e.clock.Now().Add(-time.Minute))
	e.gateway.settle("1111", ref, StatusApproved)

	_, err := e.reconciler.Handle(ctx, paymentNotification("1111"))
	require.Error(t, err)
	assert.True(t, errors.IsRetryable(err))
	assert.Empty(t, e.store.WebhookEvents())

	require.NoError(t, e.store.PaymentRepo().Create(ctx, &model.PaymentRecord{
		ProfessionalID:    professionalID,
		AmountCents:       4990,
		Currency:          "BRL",
		Status:            model.PaymentStatusPending,
		GatewayIntentID:   "pref-late",
		ExternalReference: ref,
	}))

	outcome, err := e.reconciler.Handle(ctx, paymentNotification("1111"))
	require.NoError(t, err)
	assert.Equal(t, model.WebhookOutcomeApplied, outcome)

	ok, err := e.gate.CanUseAgenda(ctx, professionalID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReconcileIgnoresPaymentsUnknownToGateway(t *testing.T) {
	e := newEnv(t)
	e.gateway.getErr = errors.NotFound("payment gateway resource", fmt.Errorf("404"))

	outcome, err := e.reconciler.Handle(context.Background(), paymentNotification("404404"))
	require.NoError(t, err)
	assert.Equal(t, model.WebhookOutcomeIgnored, outcome)

	events := e.store.WebhookEvents()
	require.Len(t, events, 1)
	assert.Equal(t, model.WebhookOutcomeIgnored, events[0].Outcome)
}

func TestQuarantinedPageSize(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	for i := 0; i < maxQuarantinedPage+20; i++ {
		require.NoError(t, e.store.WebhookEventRepo().Record(ctx, &model.WebhookEvent{
			Provider:  "mercadopago",
			PaymentID: fmt.Sprintf("%d", i),
			Outcome:   model.WebhookOutcomeQuarantined,
		}))
	}

	events, err := e.reconciler.Quarantined(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, events, 100)

	events, err = e.reconciler.Quarantined(ctx, 10000)
	require.NoError(t, err)
	assert.Len(t, events, maxQuarantinedPage)

	events, err = e.reconciler.Quarantined(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, events, 7)
}

func TestReconcileRetryableFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("gateway unreachable", func(t *testing.T) {
		e := newEnv(t)
		e.gateway.getErr = fmt.Errorf("timeout")
		_, err := e.reconciler.Handle(ctx, paymentNotification("8008"))
		assert.True(t, errors.Is(err, errors.ErrUpstream))
	})

	t.Run("storage unavailable then redelivered", func(t *testing.T) {
		e := newEnv(t)
		professionalID := uuid.New()
		resp := e.intent(t, professionalID)
		e.gateway.settle("9009", resp.ExternalReference, StatusApproved)

		e.store.FailOn("subscriptions.Activate", errors.TransientStorage(fmt.Errorf("connection reset")))
		_, err := e.reconciler.Handle(ctx, paymentNotification("9009"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrTransientStorage))
		assert.Equal(t, model.PaymentStatusPending, e.store.Payments()[0].Status)

		e.store.FailOn("subscriptions.Activate", nil)
		outcome, err := e.reconciler.Handle(ctx, paymentNotification("9009"))
		require.NoError(t, err)
		assert.Equal(t, model.WebhookOutcomeApplied, outcome)
	})
}

// A professional pays, the gateway confirms, and booking opens up.
func TestPaymentUnlocksBooking(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	professionalID, patientID := uuid.New(), uuid.New()
	require.NoError(t, e.store.Roster().Link(ctx, professionalID, patientID))

	booking := appointment.NewService(appointment.Deps{
		Appointments: e.store.Appointments(),
		Roster:       e.store.Roster(),
		Outbox:       e.store.Outbox(),
		Tx:           e.store.TxManager(),
		Gate:         e.gate,
	})
	req := &model.CreateAppointmentRequest{
		PatientID: patientID,
		Date:      e.clock.Now().Add(24 * time.Hour),
	}

	_, err := booking.Book(ctx, professionalID, req)
	require.True(t, errors.Is(err, errors.ErrForbidden))

	resp := e.intent(t, professionalID)
	e.gateway.settle("1234", resp.ExternalReference, StatusApproved)
	_, err = e.reconciler.Handle(ctx, paymentNotification("1234"))
	require.NoError(t, err)

	view, err := e.gate.Status(ctx, professionalID)
	require.NoError(t, err)
	assert.True(t, view.CanUseAgenda)
	assert.Equal(t, 30, view.DaysRemaining)

	_, err = booking.Book(ctx, professionalID, req)
	require.NoError(t, err)

	e.clock.Advance(30*24*time.Hour + time.Second)
	req.Date = e.clock.Now().Add(time.Hour)
	_, err = booking.Book(ctx, professionalID, req)
	assert.True(t, errors.Is(err, errors.ErrForbidden))
}

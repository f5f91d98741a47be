// Package repotest provides in-memory repositories for tests. They emulate
// the uniqueness rules the postgres schema enforces.
package repotest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/agenda-api/internal/model"
	"github.com/jwalitptl/agenda-api/internal/repository"
	apperrors "github.com/jwalitptl/agenda-api/pkg/errors"
)

type rosterKey struct {
	professionalID uuid.UUID
	patientID      uuid.UUID
}

// Store is the shared state behind every in-memory repository.
type Store struct {
	mu   sync.Mutex
	txMu sync.Mutex

	schedules     map[uuid.UUID]model.ScheduleConfig
	appointments  map[uuid.UUID]model.Appointment
	roster        map[rosterKey]bool
	clients       map[uuid.UUID]model.Membership
	dependents    map[uuid.UUID]uuid.UUID
	consultations map[uuid.UUID]model.Consultation
	subscriptions map[uuid.UUID]model.SubscriptionRecord
	payments      map[string]model.PaymentRecord
	webhookEvents []model.WebhookEvent
	outbox        []model.OutboxEvent

	failures map[string]error
}

func NewStore() *Store {
	return &Store{
		schedules:     map[uuid.UUID]model.ScheduleConfig{},
		appointments:  map[uuid.UUID]model.Appointment{},
		roster:        map[rosterKey]bool{},
		clients:       map[uuid.UUID]model.Membership{},
		dependents:    map[uuid.UUID]uuid.UUID{},
		consultations: map[uuid.UUID]model.Consultation{},
		subscriptions: map[uuid.UUID]model.SubscriptionRecord{},
		payments:      map[string]model.PaymentRecord{},
		failures:      map[string]error{},
	}
}

// FailOn makes the named operation (for example "payments.MarkPaid") return
// err until cleared with a nil err.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

func (s *Store) fail(op string) error {
	return s.failures[op]
}

// AddClient seeds a client membership.
func (s *Store) AddClient(m model.Membership) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[m.ClientID] = m
}

// AddDependent seeds a dependent of a client.
func (s *Store) AddDependent(dependentID, clientID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dependents[dependentID] = clientID
}

// PutSubscription seeds a subscription record.
func (s *Store) PutSubscription(rec model.SubscriptionRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscriptions[rec.ProfessionalID] = rec
}

func (s *Store) Payments() []model.PaymentRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.PaymentRecord, 0, len(s.payments))
	for _, p := range s.payments {
		out = append(out, p)
	}
	return out
}

func (s *Store) WebhookEvents() []model.WebhookEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.WebhookEvent(nil), s.webhookEvents...)
}

func (s *Store) OutboxEvents() []model.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.OutboxEvent(nil), s.outbox...)
}

func (s *Store) Consultations() []model.Consultation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Consultation, 0, len(s.consultations))
	for _, c := range s.consultations {
		out = append(out, c)
	}
	return out
}

type snapshot struct {
	appointments  map[uuid.UUID]model.Appointment
	subscriptions map[uuid.UUID]model.SubscriptionRecord
	payments      map[string]model.PaymentRecord
	webhookEvents []model.WebhookEvent
	outbox        []model.OutboxEvent
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *Store) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot{
		appointments:  copyMap(s.appointments),
		subscriptions: copyMap(s.subscriptions),
		payments:      copyMap(s.payments),
		webhookEvents: append([]model.WebhookEvent(nil), s.webhookEvents...),
		outbox:        append([]model.OutboxEvent(nil), s.outbox...),
	}
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appointments = snap.appointments
	s.subscriptions = snap.subscriptions
	s.payments = snap.payments
	s.webhookEvents = snap.webhookEvents
	s.outbox = snap.outbox
}

type txKey struct{}

// TxManager serialises transactions and restores the mutable tables when fn
// fails.
type TxManager struct {
	store *Store
}

func (s *Store) TxManager() repository.TxManager { return &TxManager{store: s} }

func (m *TxManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	m.store.txMu.Lock()
	defer m.store.txMu.Unlock()

	snap := m.store.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		m.store.restore(snap)
		return err
	}
	return nil
}

// Schedules

type scheduleRepo struct{ s *Store }

func (s *Store) Schedules() repository.ScheduleRepository { return &scheduleRepo{s} }

func (r *scheduleRepo) Get(_ context.Context, professionalID uuid.UUID) (*model.ScheduleConfig, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("schedules.Get"); err != nil {
		return nil, err
	}
	cfg, ok := r.s.schedules[professionalID]
	if !ok {
		return nil, apperrors.NotFound("schedule config", nil)
	}
	return &cfg, nil
}

func (r *scheduleRepo) Upsert(_ context.Context, cfg *model.ScheduleConfig) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("schedules.Upsert"); err != nil {
		return err
	}
	cfg.UpdatedAt = time.Now().UTC()
	r.s.schedules[cfg.ProfessionalID] = *cfg
	return nil
}

func (r *scheduleRepo) CreateIfAbsent(_ context.Context, cfg *model.ScheduleConfig) (*model.ScheduleConfig, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("schedules.CreateIfAbsent"); err != nil {
		return nil, err
	}
	if existing, ok := r.s.schedules[cfg.ProfessionalID]; ok {
		return &existing, nil
	}
	cfg.UpdatedAt = time.Now().UTC()
	r.s.schedules[cfg.ProfessionalID] = *cfg
	stored := *cfg
	return &stored, nil
}

// Appointments

type appointmentRepo struct{ s *Store }

func (s *Store) Appointments() repository.AppointmentRepository { return &appointmentRepo{s} }

// slotTakenLocked emulates the partial unique index on active slots.
func (s *Store) slotTakenLocked(apt model.Appointment) bool {
	if !apt.Status.OccupiesSlot() {
		return false
	}
	for id, other := range s.appointments {
		if id == apt.ID {
			continue
		}
		if other.ProfessionalID == apt.ProfessionalID &&
			other.ScheduledAt.Equal(apt.ScheduledAt) &&
			other.Status.OccupiesSlot() {
			return true
		}
	}
	return false
}

func (r *appointmentRepo) Create(_ context.Context, apt *model.Appointment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("appointments.Create"); err != nil {
		return err
	}
	if apt.ID == uuid.Nil {
		apt.ID = uuid.New()
	}
	if r.s.slotTakenLocked(*apt) {
		return apperrors.Conflict("slot already booked", nil)
	}
	now := time.Now().UTC()
	apt.CreatedAt, apt.UpdatedAt = now, now
	r.s.appointments[apt.ID] = *apt
	return nil
}

func (r *appointmentRepo) Get(_ context.Context, id uuid.UUID) (*model.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("appointments.Get"); err != nil {
		return nil, err
	}
	apt, ok := r.s.appointments[id]
	if !ok {
		return nil, apperrors.NotFound("appointment", nil)
	}
	return &apt, nil
}

// GetForUpdate relies on RunInTx serialising transactions.
func (r *appointmentRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	if ctx.Value(txKey{}) == nil {
		return nil, apperrors.Internal(errors.New("appointment row lock requested outside a transaction"))
	}
	return r.Get(ctx, id)
}

func (r *appointmentRepo) Update(_ context.Context, apt *model.Appointment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("appointments.Update"); err != nil {
		return err
	}
	current, ok := r.s.appointments[apt.ID]
	if !ok {
		return apperrors.NotFound("appointment", nil)
	}
	if r.s.slotTakenLocked(*apt) {
		return apperrors.Conflict("slot already booked", nil)
	}
	current.Status = apt.Status
	current.Notes = apt.Notes
	current.UpdatedAt = time.Now().UTC()
	r.s.appointments[apt.ID] = current
	apt.UpdatedAt = current.UpdatedAt
	return nil
}

func (r *appointmentRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.appointments[id]; !ok {
		return apperrors.NotFound("appointment", nil)
	}
	delete(r.s.appointments, id)
	return nil
}

func (r *appointmentRepo) ListByRange(_ context.Context, professionalID uuid.UUID, from, to time.Time) ([]*model.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("appointments.ListByRange"); err != nil {
		return nil, err
	}
	out := []*model.Appointment{}
	for _, apt := range r.s.appointments {
		if apt.ProfessionalID != professionalID {
			continue
		}
		if apt.ScheduledAt.Before(from) || !apt.ScheduledAt.Before(to) {
			continue
		}
		a := apt
		out = append(out, &a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ScheduledAt.Equal(out[j].ScheduledAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ScheduledAt.Before(out[j].ScheduledAt)
	})
	return out, nil
}

// Roster

type rosterRepo struct{ s *Store }

func (s *Store) Roster() repository.PatientRosterRepository { return &rosterRepo{s} }

func (r *rosterRepo) IsLinked(_ context.Context, professionalID, patientID uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("roster.IsLinked"); err != nil {
		return false, err
	}
	return r.s.roster[rosterKey{professionalID, patientID}], nil
}

func (r *rosterRepo) Link(_ context.Context, professionalID, patientID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.roster[rosterKey{professionalID, patientID}] = true
	return nil
}

// Memberships and consultations

type membershipRepo struct{ s *Store }

func (s *Store) Memberships() repository.MembershipRepository { return &membershipRepo{s} }

func (r *membershipRepo) GetClientMembership(_ context.Context, clientID uuid.UUID) (*model.Membership, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.clients[clientID]
	if !ok {
		return nil, apperrors.NotFound("client", nil)
	}
	return &m, nil
}

func (r *membershipRepo) GetDependentHolder(_ context.Context, dependentID uuid.UUID) (uuid.UUID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	clientID, ok := r.s.dependents[dependentID]
	if !ok {
		return uuid.Nil, apperrors.NotFound("dependent", nil)
	}
	return clientID, nil
}

type consultationRepo struct{ s *Store }

func (s *Store) ConsultationRepo() repository.ConsultationRepository { return &consultationRepo{s} }

func (r *consultationRepo) Create(_ context.Context, c *model.Consultation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = time.Now().UTC()
	r.s.consultations[c.ID] = *c
	return nil
}

// Subscriptions

type subscriptionRepo struct{ s *Store }

func (s *Store) Subscriptions() repository.SubscriptionRepository { return &subscriptionRepo{s} }

func (r *subscriptionRepo) Get(_ context.Context, professionalID uuid.UUID) (*model.SubscriptionRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("subscriptions.Get"); err != nil {
		return nil, err
	}
	rec, ok := r.s.subscriptions[professionalID]
	if !ok {
		return nil, apperrors.NotFound("subscription", nil)
	}
	return &rec, nil
}

func (r *subscriptionRepo) Activate(_ context.Context, professionalID uuid.UUID, expiresAt time.Time, paymentID uuid.UUID) (*model.SubscriptionRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("subscriptions.Activate"); err != nil {
		return nil, err
	}
	exp := expiresAt
	pid := paymentID
	rec := model.SubscriptionRecord{
		ProfessionalID: professionalID,
		Status:         model.SubscriptionStatusActive,
		ExpiresAt:      &exp,
		LastPaymentID:  &pid,
		UpdatedAt:      time.Now().UTC(),
	}
	r.s.subscriptions[professionalID] = rec
	return &rec, nil
}

func (r *subscriptionRepo) MarkPending(_ context.Context, professionalID uuid.UUID, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.subscriptions[professionalID]
	if ok && rec.Status == model.SubscriptionStatusActive && rec.ExpiresAt != nil && rec.ExpiresAt.After(now) {
		return nil
	}
	rec.ProfessionalID = professionalID
	rec.Status = model.SubscriptionStatusPending
	rec.UpdatedAt = time.Now().UTC()
	r.s.subscriptions[professionalID] = rec
	return nil
}

// Payments

type paymentRepo struct{ s *Store }

func (s *Store) PaymentRepo() repository.PaymentRepository { return &paymentRepo{s} }

func (r *paymentRepo) Create(_ context.Context, p *model.PaymentRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("payments.Create"); err != nil {
		return err
	}
	if _, exists := r.s.payments[p.ExternalReference]; exists {
		return apperrors.Conflict("record already exists", nil)
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = time.Now().UTC()
	r.s.payments[p.ExternalReference] = *p
	return nil
}

func (r *paymentRepo) GetByReference(_ context.Context, externalReference string) (*model.PaymentRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[externalReference]
	if !ok {
		return nil, apperrors.NotFound("payment", nil)
	}
	return &p, nil
}

func (r *paymentRepo) MarkPaid(_ context.Context, externalReference, externalPaymentID string, paidAt time.Time) (*model.PaymentRecord, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("payments.MarkPaid"); err != nil {
		return nil, false, err
	}
	p, ok := r.s.payments[externalReference]
	if !ok {
		return nil, false, apperrors.NotFound("payment", nil)
	}
	if p.Status != model.PaymentStatusPending {
		return &p, false, nil
	}
	ext := externalPaymentID
	paid := paidAt
	p.Status = model.PaymentStatusPaid
	p.ExternalPaymentID = &ext
	p.PaidAt = &paid
	r.s.payments[externalReference] = p
	return &p, true, nil
}

// Webhook journal

type webhookRepo struct{ s *Store }

func (s *Store) WebhookEventRepo() repository.WebhookEventRepository { return &webhookRepo{s} }

func (r *webhookRepo) Record(_ context.Context, e *model.WebhookEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("webhooks.Record"); err != nil {
		return err
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.ReceivedAt.IsZero() {
		e.ReceivedAt = time.Now().UTC()
	}
	r.s.webhookEvents = append(r.s.webhookEvents, *e)
	return nil
}

func (r *webhookRepo) ListQuarantined(_ context.Context, limit int) ([]*model.WebhookEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*model.WebhookEvent{}
	for i := len(r.s.webhookEvents) - 1; i >= 0 && len(out) < limit; i-- {
		if r.s.webhookEvents[i].Outcome == model.WebhookOutcomeQuarantined {
			e := r.s.webhookEvents[i]
			out = append(out, &e)
		}
	}
	return out, nil
}

// Outbox

type outboxRepo struct{ s *Store }

func (s *Store) Outbox() repository.OutboxRepository { return &outboxRepo{s} }

func (r *outboxRepo) Create(_ context.Context, event *model.OutboxEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("outbox.Create"); err != nil {
		return err
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.Status = model.OutboxStatusPending
	event.CreatedAt = time.Now().UTC()
	r.s.outbox = append(r.s.outbox, *event)
	return nil
}

func (r *outboxRepo) ProcessPending(ctx context.Context, limit int, fn func(context.Context, *model.OutboxEvent) error) (int, error) {
	r.s.mu.Lock()
	var batch []int
	for i, e := range r.s.outbox {
		if len(batch) == limit {
			break
		}
		if e.Status != model.OutboxStatusProcessed {
			batch = append(batch, i)
		}
	}
	r.s.mu.Unlock()

	for _, i := range batch {
		r.s.mu.Lock()
		e := r.s.outbox[i]
		r.s.mu.Unlock()

		err := fn(ctx, &e)

		r.s.mu.Lock()
		if err != nil {
			msg := err.Error()
			e.Status, e.ErrorMessage = model.OutboxStatusFailed, &msg
			e.RetryCount++
		} else {
			now := time.Now().UTC()
			e.Status, e.ProcessedAt = model.OutboxStatusProcessed, &now
		}
		r.s.outbox[i] = e
		r.s.mu.Unlock()
	}
	return len(batch), nil
}

func (r *outboxRepo) DeleteProcessedBefore(_ context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	kept := r.s.outbox[:0]
	var n int64
	for _, e := range r.s.outbox {
		if e.Status == model.OutboxStatusProcessed && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	r.s.outbox = kept
	return n, nil
}

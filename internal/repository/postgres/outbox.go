package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/agenda-api/internal/model"
	"github.com/jwalitptl/agenda-api/internal/repository"
)

// Failed events are retried on later polls until they reach this count.
const maxOutboxAttempts = 5

type outboxRepository struct {
	BaseRepository
	tx repository.TxManager
}

func NewOutboxRepository(db *sqlx.DB) repository.OutboxRepository {
	return &outboxRepository{BaseRepository: NewBaseRepository(db), tx: NewTxManager(db)}
}

func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if event.Payload == nil {
		return fmt.Errorf("event payload cannot be nil")
	}

	query := `
		INSERT INTO outbox_events (id, event_type, payload, status, retry_count, created_at)
		VALUES ($1, $2, $3, $4, 0, $5)
	`
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.Status = model.OutboxStatusPending
	event.CreatedAt = time.Now().UTC()

	_, err := r.q(ctx).ExecContext(ctx, query,
		event.ID,
		event.EventType,
		string(event.Payload),
		event.Status,
		event.CreatedAt,
	)
	return classify(err)
}

func (r *outboxRepository) ProcessPending(ctx context.Context, limit int, fn func(ctx context.Context, event *model.OutboxEvent) error) (int, error) {
	processed := 0
	err := r.tx.RunInTx(ctx, func(ctx context.Context) error {
		query := `
			SELECT id, event_type, payload, status, error_message, retry_count, created_at, processed_at
			FROM outbox_events
			WHERE status IN ('pending', 'failed') AND retry_count < $2
			ORDER BY created_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		`
		var events []*model.OutboxEvent
		if err := r.q(ctx).SelectContext(ctx, &events, query, limit, maxOutboxAttempts); err != nil {
			return classify(err)
		}

		for _, event := range events {
			status, errMsg := model.OutboxStatusProcessed, (*string)(nil)
			if err := fn(ctx, event); err != nil {
				msg := err.Error()
				status, errMsg = model.OutboxStatusFailed, &msg
			}

			update := `
				UPDATE outbox_events
				SET status = $1::text,
					error_message = $2,
					retry_count = retry_count + CASE WHEN $1::text = 'failed' THEN 1 ELSE 0 END,
					processed_at = CASE WHEN $1::text = 'processed' THEN NOW() ELSE processed_at END
				WHERE id = $3
			`
			if _, err := r.q(ctx).ExecContext(ctx, update, status, errMsg, event.ID); err != nil {
				return classify(err)
			}
			processed++
		}
		return nil
	})
	return processed, err
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	query := `
		DELETE FROM outbox_events
		WHERE status = 'processed'
		AND processed_at < $1
	`
	result, err := r.q(ctx).ExecContext(ctx, query, before)
	if err != nil {
		return 0, classify(err)
	}
	return result.RowsAffected()
}

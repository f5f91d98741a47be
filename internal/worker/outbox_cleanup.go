package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/jwalitptl/agenda-api/internal/repository"
	"github.com/jwalitptl/agenda-api/pkg/logger"
)

// OutboxCleanupWorker purges relayed outbox events once they are older than
// the retention window. Pending and failed events are never removed.
type OutboxCleanupWorker struct {
	repo            repository.OutboxRepository
	retention       time.Duration
	cleanupInterval time.Duration
	logger          *logger.Logger
	now             func() time.Time
}

func NewOutboxCleanupWorker(repo repository.OutboxRepository, retention, cleanupInterval time.Duration, log *logger.Logger) (*OutboxCleanupWorker, error) {
	if retention <= 0 {
		return nil, fmt.Errorf("retention must be greater than 0")
	}
	if cleanupInterval <= 0 {
		return nil, fmt.Errorf("cleanup interval must be greater than 0")
	}
	if log == nil {
		log = logger.Nop()
	}
	return &OutboxCleanupWorker{
		repo:            repo,
		retention:       retention,
		cleanupInterval: cleanupInterval,
		logger:          log,
		now:             time.Now,
	}, nil
}

func (w *OutboxCleanupWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.Cleanup(ctx); err != nil {
				w.logger.Error(err, "Failed to clean up outbox events")
			}
		}
	}
}

// Cleanup deletes processed events older than the retention window and
// returns how many were removed.
func (w *OutboxCleanupWorker) Cleanup(ctx context.Context) (int64, error) {
	cutoff := w.now().Add(-w.retention)

	rows, err := w.repo.DeleteProcessedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up outbox events: %w", err)
	}

	if rows > 0 {
		w.logger.Info("Cleaned up outbox events", "count", rows, "cutoff", cutoff)
	}
	return rows, nil
}

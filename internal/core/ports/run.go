package ports

import (
	"context"
	"time"

	"github.com/atvirokodosprendimai/tabcheck/internal/core/domain"
)

// RunRepository stores run summaries. Record writes the run and its outbox
// event in one transaction.
type RunRepository interface {
	Record(ctx context.Context, run domain.ValidationRun, event domain.EventEnvelope) (domain.ValidationRun, error)
	Get(ctx context.Context, tenantID, id string) (domain.ValidationRun, error)
	List(ctx context.Context, filter domain.RunFilter) ([]domain.ValidationRun, error)
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type OutboxRepository interface {
	FetchPending(ctx context.Context, limit int) ([]domain.OutboxEvent, error)
	MarkDispatched(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, attempts int, nextAttemptAt string, errMsg string) error
	MarkDead(ctx context.Context, id int64, attempts int, errMsg string) error
}

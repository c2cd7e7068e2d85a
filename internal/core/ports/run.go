package ports

import (
	"context"

	"github.com/atvirokodosprendimai/ruleapi/internal/core/domain"
)

// ValidationRunStore persists runs together with their outbox message.
type ValidationRunStore interface {
	RecordWithEvent(ctx context.Context, run domain.ValidationRun, msg domain.OutboxMessage) error
	List(ctx context.Context, filter domain.RunFilter) ([]domain.ValidationRun, error)
}

type OutboxRepository interface {
	FetchPending(ctx context.Context, limit int) ([]domain.OutboxEvent, error)
	MarkDispatched(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, attempts int, nextAttemptAt string, errMsg string) error
	MarkDead(ctx context.Context, id int64, attempts int, errMsg string) error
}

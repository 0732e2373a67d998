package ports

import (
	"context"

	"github.com/atvirokodosprendimai/tabcheck/internal/core/domain"
)

// EventPublisher delivers one outbox event. A returned error schedules a
// retry; the outbox row stays pending until Publish succeeds.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event domain.EventEnvelope) error
}

package events

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/atvirokodosprendimai/tabcheck/internal/core/domain"
)

// LogPublisher writes each outbox event to a structured logger. It is the
// publisher used when no webhook is configured.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, topic string, event domain.EventEnvelope) error {
	attrs := []any{
		"topic", topic,
		"event_id", event.EventID,
		"event_type", event.EventType,
		"tenant", event.TenantID,
		"aggregate", event.AggregateType + "/" + event.AggregateID,
	}
	if event.EventType == domain.EventValidationCompleted {
		var payload domain.ValidationCompletedPayload
		if err := json.Unmarshal(event.Payload, &payload); err == nil {
			attrs = append(attrs, "decision", payload.Decision, "total", payload.Summary.Total, "errors", payload.Errors)
		}
	}
	p.logger.InfoContext(ctx, "outbox publish", attrs...)
	return nil
}

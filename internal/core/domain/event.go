package domain

import (
	"encoding/json"
	"time"
)

const (
	CurrentEventSchemaVersion = 1

	EventValidationCompleted = "validation.completed"
)

// EventTopic is the outbox topic an event is published on.
func EventTopic(tenantID, eventType string) string {
	return "events." + tenantID + "." + eventType
}

type EventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	SchemaVersion int             `json:"schema_version"`
	TenantID      string          `json:"tenant_id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Actor         string          `json:"actor"`
	Source        string          `json:"source"`
	Payload       json.RawMessage `json:"payload"`
}

// ValidationCompletedPayload is the payload of validation.completed events.
type ValidationCompletedPayload struct {
	RunID      string    `json:"run_id"`
	Schema     string    `json:"schema"`
	Session    string    `json:"session,omitempty"`
	Status     RunStatus `json:"status"`
	Passed     bool      `json:"passed"`
	Decision   Decision  `json:"decision"`
	Summary    Summary   `json:"summary"`
	Errors     int       `json:"errors"`
	Warnings   int       `json:"warnings"`
	Info       int       `json:"info"`
	DurationMS int64     `json:"duration_ms"`
}

// NewValidationCompletedEvent builds the outbox envelope announcing a run.
func NewValidationCompletedEvent(eventID string, run ValidationRun) (EventEnvelope, error) {
	payload, err := json.Marshal(ValidationCompletedPayload{
		RunID:      run.ID,
		Schema:     run.SchemaName,
		Session:    run.Session,
		Status:     run.Status,
		Passed:     run.Passed,
		Decision:   run.Decision,
		Summary:    run.Summary,
		Errors:     run.ErrorCount,
		Warnings:   run.WarningCount,
		Info:       run.InfoCount,
		DurationMS: run.Duration().Milliseconds(),
	})
	if err != nil {
		return EventEnvelope{}, err
	}
	return EventEnvelope{
		EventID:       eventID,
		EventType:     EventValidationCompleted,
		SchemaVersion: CurrentEventSchemaVersion,
		TenantID:      run.TenantID,
		AggregateType: "schema/" + run.SchemaName,
		AggregateID:   run.ID,
		OccurredAt:    run.FinishedAt,
		Actor:         run.Actor,
		Source:        "tabcheck",
		Payload:       payload,
	}, nil
}

type OutboxEvent struct {
	ID            int64
	EventID       string
	TenantID      string
	Topic         string
	PayloadJSON   json.RawMessage
	Status        string
	Attempts      int
	NextAttemptAt time.Time
	LastError     string
	CreatedAt     time.Time
	DispatchedAt  *time.Time
}

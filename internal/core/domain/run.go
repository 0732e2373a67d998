package domain

import "time"

type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// ValidationRun is the persisted summary of one validation run. Violations
// themselves are returned to the caller and not stored. Seq is assigned by
// storage and orders runs for paging.
type ValidationRun struct {
	Seq          int64
	ID           string
	TenantID     string
	SchemaName   string
	Session      string
	Actor        string
	Status       RunStatus
	Passed       bool
	Decision     Decision
	Summary      Summary
	ErrorCount   int
	WarningCount int
	InfoCount    int
	StartedAt    time.Time
	FinishedAt   time.Time
}

// NewValidationRun derives the persisted summary from a finished report.
func NewValidationRun(id, tenantID, schemaName, session, actor string, report Report, startedAt, finishedAt time.Time) ValidationRun {
	status := RunCompleted
	if report.IsSystemFailure() {
		status = RunFailed
	}
	return ValidationRun{
		ID:           id,
		TenantID:     tenantID,
		SchemaName:   schemaName,
		Session:      session,
		Actor:        actor,
		Status:       status,
		Passed:       report.Passed(),
		Decision:     report.Decision(),
		Summary:      report.Summary,
		ErrorCount:   len(report.Errors),
		WarningCount: len(report.Warnings),
		InfoCount:    len(report.Info),
		StartedAt:    startedAt,
		FinishedAt:   finishedAt,
	}
}

func (r ValidationRun) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

type RunFilter struct {
	TenantID   string
	SchemaName string
	Session    string
	BeforeID   int64
	Limit      int
}

// RunFilter selects runs newest first. BeforeID is an exclusive Seq cursor.
func (f RunFilter) Validate() error {
	if err := ValidateKey(f.TenantID); err != nil {
		return err
	}
	if f.SchemaName != "" {
		if err := ValidateName(f.SchemaName); err != nil {
			return err
		}
	}
	if f.Session != "" {
		if err := ValidateKey(f.Session); err != nil {
			return err
		}
	}
	return nil
}

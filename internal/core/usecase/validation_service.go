package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/atvirokodosprendimai/tabcheck/internal/core/domain"
	"github.com/atvirokodosprendimai/tabcheck/internal/core/ports"
	"github.com/atvirokodosprendimai/tabcheck/internal/core/validation"
)

// SchemaResolver returns the schema a run evaluates against.
type SchemaResolver interface {
	Resolve(ctx context.Context, tenantID, name string) (domain.Schema, error)
}

type ValidationRequest struct {
	TenantID   string
	SchemaName string
	// Session groups runs of the same upload. A newer run for a session
	// supersedes older ones still in flight. Empty disables supersession.
	Session string
	Actor   string
	Records []domain.Record
}

func (r ValidationRequest) Validate() error {
	if err := domain.ValidateKey(r.TenantID); err != nil {
		return err
	}
	if err := domain.ValidateName(r.SchemaName); err != nil {
		return err
	}
	if r.Session != "" {
		if err := domain.ValidateKey(r.Session); err != nil {
			return err
		}
	}
	if len(r.Records) == 0 {
		return domain.ErrEmptyDataset
	}
	return nil
}

type ValidationResult struct {
	Run    domain.ValidationRun
	Report domain.Report
}

// Pending is the handle ValidateAsync returns before the scan starts.
type Pending struct {
	done   chan struct{}
	result ValidationResult
	err    error
}

// Done is closed once the run has finished or was superseded.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the run finishes or ctx is done.
func (p *Pending) Wait(ctx context.Context) (ValidationResult, error) {
	select {
	case <-p.done:
		return p.result, p.err
	case <-ctx.Done():
		return ValidationResult{}, ctx.Err()
	}
}

type ValidationService struct {
	schemas     SchemaResolver
	runs        ports.RunRepository
	coordinator *RunCoordinator
	observer    ports.ValidationObserver
	logger      *slog.Logger
	now         func() time.Time
	newID       func() string
}

func NewValidationService(schemas SchemaResolver, runs ports.RunRepository, coordinator *RunCoordinator, observer ports.ValidationObserver, logger *slog.Logger) *ValidationService {
	if coordinator == nil {
		coordinator = NewRunCoordinator()
	}
	if observer == nil {
		observer = ports.NopObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ValidationService{
		schemas:     schemas,
		runs:        runs,
		coordinator: coordinator,
		observer:    observer,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
	}
}

// Validate evaluates req.Records against the named schema, records the run
// and returns its report. It returns domain.ErrSuperseded when a newer run
// for the same session began before this one finished.
func (s *ValidationService) Validate(ctx context.Context, req ValidationRequest) (ValidationResult, error) {
	if err := req.Validate(); err != nil {
		return ValidationResult{}, err
	}
	runCtx, ticket := s.coordinator.Begin(ctx, sessionKey(req))
	defer ticket.Release()
	return s.run(ctx, runCtx, ticket, req)
}

// ValidateAsync checks req, registers the run with the coordinator and
// returns before any row is scanned. Registration happens synchronously so
// two calls for one session supersede in call order.
func (s *ValidationService) ValidateAsync(ctx context.Context, req ValidationRequest) (*Pending, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	runCtx, ticket := s.coordinator.Begin(context.WithoutCancel(ctx), sessionKey(req))

	p := &Pending{done: make(chan struct{})}
	go func() {
		defer close(p.done)
		defer ticket.Release()
		p.result, p.err = s.run(runCtx, runCtx, ticket, req)
	}()
	return p, nil
}

func (s *ValidationService) run(ctx, runCtx context.Context, ticket *RunTicket, req ValidationRequest) (ValidationResult, error) {
	schema, err := s.schemas.Resolve(runCtx, req.TenantID, req.SchemaName)
	if err != nil {
		if !ticket.Current() {
			return ValidationResult{}, s.superseded(req)
		}
		return ValidationResult{}, fmt.Errorf("resolve schema %q: %w", req.SchemaName, err)
	}

	startedAt := s.now()
	report, err := validation.ValidateContext(runCtx, req.Records, schema)
	if !ticket.Current() {
		return ValidationResult{}, s.superseded(req)
	}
	if err != nil {
		return ValidationResult{}, err
	}

	run := domain.NewValidationRun(s.newID(), req.TenantID, req.SchemaName, req.Session, req.Actor, report, startedAt, s.now())
	event, err := domain.NewValidationCompletedEvent(s.newID(), run)
	if err != nil {
		return ValidationResult{}, fmt.Errorf("build event: %w", err)
	}
	committed, err := ticket.Commit(func() error {
		var err error
		run, err = s.runs.Record(ctx, run, event)
		return err
	})
	if !committed {
		return ValidationResult{}, s.superseded(req)
	}
	if err != nil {
		return ValidationResult{}, fmt.Errorf("record run: %w", err)
	}

	s.observer.ObserveRun(run, report)
	s.logger.Info("validation run completed",
		"tenant", run.TenantID,
		"schema", run.SchemaName,
		"run_id", run.ID,
		"passed", run.Passed,
		"total", run.Summary.Total,
		"valid", run.Summary.Valid,
		"with_errors", run.Summary.WithErrors,
		"with_warnings", run.Summary.WithWarnings,
		"duration", run.Duration(),
	)
	return ValidationResult{Run: run, Report: report}, nil
}

func (s *ValidationService) superseded(req ValidationRequest) error {
	s.observer.ObserveSuperseded(req.TenantID, req.SchemaName)
	s.logger.Debug("validation run superseded",
		"tenant", req.TenantID, "schema", req.SchemaName, "session", req.Session)
	return domain.ErrSuperseded
}

func sessionKey(req ValidationRequest) string {
	if req.Session == "" {
		return ""
	}
	return req.TenantID + "/" + req.Session
}

package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/atvirokodosprendimai/tabcheck/internal/core/ports"
)

// RunPruner deletes run summaries older than the retention window on a cron
// schedule.
type RunPruner struct {
	repo      ports.RunRepository
	retention time.Duration
	schedule  string
	logger    *slog.Logger
	now       func() time.Time

	mu   sync.Mutex
	cron *cron.Cron
}

func NewRunPruner(repo ports.RunRepository, retention time.Duration, schedule string, logger *slog.Logger) (*RunPruner, error) {
	if retention <= 0 {
		return nil, fmt.Errorf("run retention must be positive, got %s", retention)
	}
	if schedule == "" {
		schedule = "@hourly"
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("parse prune schedule %q: %w", schedule, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RunPruner{
		repo:      repo,
		retention: retention,
		schedule:  schedule,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// Prune removes runs that finished before now minus the retention window.
func (p *RunPruner) Prune(ctx context.Context) (int64, error) {
	cutoff := p.now().Add(-p.retention)
	n, err := p.repo.PruneBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	if n > 0 {
		p.logger.Info("pruned validation runs", "deleted", n, "cutoff", cutoff)
	}
	return n, nil
}

func (p *RunPruner) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cron != nil {
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(p.schedule, func() {
		if _, err := p.Prune(ctx); err != nil {
			p.logger.Error("run retention failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule pruning: %w", err)
	}
	c.Start()
	p.cron = c
	return nil
}

func (p *RunPruner) Close() error {
	p.mu.Lock()
	c := p.cron
	p.cron = nil
	p.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
	return nil
}

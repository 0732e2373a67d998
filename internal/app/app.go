package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/atvirokodosprendimai/tabcheck/internal/adapters/events"
	"github.com/atvirokodosprendimai/tabcheck/internal/adapters/httpapi"
	"github.com/atvirokodosprendimai/tabcheck/internal/adapters/metrics"
	"github.com/atvirokodosprendimai/tabcheck/internal/adapters/schemafile"
	sqliteadapter "github.com/atvirokodosprendimai/tabcheck/internal/adapters/sqlite"
	"github.com/atvirokodosprendimai/tabcheck/internal/adapters/sqlite/gormsqlite"
	"github.com/atvirokodosprendimai/tabcheck/internal/core/domain"
	"github.com/atvirokodosprendimai/tabcheck/internal/core/ports"
	"github.com/atvirokodosprendimai/tabcheck/internal/core/usecase"
	"github.com/atvirokodosprendimai/tabcheck/migrations"
)

const (
	defaultTenant    = "default"
	defaultKeyName   = "bootstrap"
	dispatchInterval = 2 * time.Second
	dispatchBatch    = 100
)

type Config struct {
	Addr             string
	DBPath           string
	BootstrapAPIKey  string
	BootstrapTenant  string
	BootstrapKeyName string
	WebhookURL       string
	WebhookSecret    string
	WatchSchemas     bool
	PruneSchedule    string
	Logger           *slog.Logger

	// SchemaFiles are YAML schema definitions registered for the bootstrap
	// tenant at startup, next to the built-in schemas.
	SchemaFiles []string

	// RunRetention of zero keeps run history forever.
	RunRetention time.Duration
}

func (c Config) tenant() string {
	if c.BootstrapTenant == "" {
		return defaultTenant
	}
	return c.BootstrapTenant
}

type resourceCloser struct {
	closers []io.Closer
}

func (r resourceCloser) Close() error {
	var firstErr error
	for _, c := range r.closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// closerFunc adapts a cancel-and-wait pair to io.Closer.
type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func NewServer(ctx context.Context, cfg Config) (*http.Server, io.Closer, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	db, err := gormsqlite.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite: %w", err)
	}
	closers := resourceCloser{}
	fail := func(err error) (*http.Server, io.Closer, error) {
		_ = closers.Close()
		_ = db.Close()
		return nil, nil, err
	}

	writeSQLDB, err := db.WriteSQLDB()
	if err != nil {
		return fail(fmt.Errorf("resolve writer sql db: %w", err))
	}

	migrateCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	applied, err := migrations.Up(migrateCtx, writeSQLDB)
	cancel()
	if err != nil {
		return fail(err)
	}
	if applied > 0 {
		logger.Info("applied migrations", "count", applied)
	}

	schemaRepo := sqliteadapter.NewSchemaRepository(db)
	runRepo := sqliteadapter.NewRunRepository(db)
	apiKeyRepo := sqliteadapter.NewAPIKeyRepository(db)
	outboxRepo := sqliteadapter.NewOutboxRepository(db)

	collector := metrics.NewCollector("tabcheck", nil)

	schemaService, err := usecase.NewSchemaService(schemaRepo)
	if err != nil {
		return fail(err)
	}
	validationService := usecase.NewValidationService(schemaService, runRepo, usecase.NewRunCoordinator(), collector, logger)
	runService := usecase.NewRunService(runRepo)
	authService := usecase.NewAuthService(apiKeyRepo)

	if err := seedBuiltins(ctx, schemaService, cfg.tenant()); err != nil {
		return fail(err)
	}

	if len(cfg.SchemaFiles) > 0 {
		tenant := cfg.tenant()
		watcher, err := schemafile.NewWatcher(cfg.SchemaFiles, func(ctx context.Context, s domain.Schema) error {
			_, err := schemaService.Upsert(ctx, tenant, s)
			return err
		}, logger)
		if err != nil {
			return fail(err)
		}
		if err := watcher.LoadAll(ctx); err != nil {
			return fail(fmt.Errorf("load schema files: %w", err))
		}
		if cfg.WatchSchemas {
			closers.closers = append(closers.closers, runWatcher(watcher, logger))
		}
	}

	if cfg.BootstrapAPIKey != "" {
		name := cfg.BootstrapKeyName
		if name == "" {
			name = defaultKeyName
		}

		bootstrapCtx, bootstrapCancel := context.WithTimeout(context.Background(), 5*time.Second)
		_, err := authService.Issue(bootstrapCtx, cfg.BootstrapAPIKey, cfg.tenant(), name)
		bootstrapCancel()
		if err != nil {
			return fail(fmt.Errorf("bootstrap api key: %w", err))
		}
	}

	dispatcher := usecase.NewObservedOutboxDispatcher(outboxRepo, newPublisher(cfg, logger), dispatchInterval, dispatchBatch, collector, logger)
	dispatcher.Start(context.Background())
	closers.closers = append(closers.closers, dispatcher)

	if cfg.RunRetention > 0 {
		pruner, err := usecase.NewRunPruner(runRepo, cfg.RunRetention, cfg.PruneSchedule, logger)
		if err != nil {
			return fail(err)
		}
		if err := pruner.Start(context.Background()); err != nil {
			return fail(err)
		}
		closers.closers = append(closers.closers, pruner)
	}

	handler := httpapi.NewHandler(schemaService, validationService, runService, authService, collector.Handler())

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	closers.closers = append(closers.closers, db)
	return server, closers, nil
}

func newPublisher(cfg Config, logger *slog.Logger) ports.EventPublisher {
	if cfg.WebhookURL != "" {
		logger.Info("delivering outbox events by webhook", "url", cfg.WebhookURL)
		return events.NewWebhookPublisher(cfg.WebhookURL, cfg.WebhookSecret, 0)
	}
	return events.NewLogPublisher(logger)
}

// seedBuiltins registers the embedded schemas for tenant. Existing schemas
// of the same name are replaced.
func seedBuiltins(ctx context.Context, svc *usecase.SchemaService, tenant string) error {
	builtins, err := schemafile.Builtins()
	if err != nil {
		return fmt.Errorf("load builtin schemas: %w", err)
	}
	for _, s := range builtins {
		if _, err := svc.Upsert(ctx, tenant, s); err != nil {
			return fmt.Errorf("seed schema %s: %w", s.Name, err)
		}
	}
	return nil
}

func runWatcher(w *schemafile.Watcher, logger *slog.Logger) io.Closer {
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := w.Run(ctx); err != nil {
			logger.Error("schema watcher stopped", "error", err)
		}
	}()
	return closerFunc(func() error {
		cancel()
		wg.Wait()
		return nil
	})
}

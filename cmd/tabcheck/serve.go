package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/atvirokodosprendimai/tabcheck/internal/app"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the validation HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Value:   ":8080",
				Sources: cli.EnvVars(envPrefix + "ADDR"),
				Usage:   "HTTP listen address",
			},
			&cli.StringFlag{
				Name:    "db-path",
				Value:   "./tabcheck.sqlite",
				Sources: cli.EnvVars(envPrefix + "DB_PATH"),
				Usage:   "SQLite file path",
			},
			&cli.StringFlag{
				Name:    "bootstrap-api-key",
				Sources: cli.EnvVars(envPrefix + "BOOTSTRAP_API_KEY"),
				Usage:   "Optional API key to upsert at startup",
			},
			&cli.StringFlag{
				Name:    "bootstrap-tenant",
				Value:   "default",
				Sources: cli.EnvVars(envPrefix + "BOOTSTRAP_TENANT"),
				Usage:   "Tenant for the bootstrap API key, built-in schemas and schema files",
			},
			&cli.StringFlag{
				Name:    "bootstrap-key-name",
				Value:   "bootstrap",
				Sources: cli.EnvVars(envPrefix + "BOOTSTRAP_KEY_NAME"),
				Usage:   "Name for bootstrap API key",
			},
			&cli.StringFlag{
				Name:    "webhook-url",
				Sources: cli.EnvVars(envPrefix + "WEBHOOK_URL"),
				Usage:   "Deliver validation events to this URL instead of the log",
			},
			&cli.StringFlag{
				Name:    "webhook-secret",
				Sources: cli.EnvVars(envPrefix + "WEBHOOK_SECRET"),
				Usage:   "HMAC-SHA256 signing secret for outbound webhook requests",
			},
			&cli.StringSliceFlag{
				Name:    "schema-file",
				Sources: cli.EnvVars(envPrefix + "SCHEMA_FILES"),
				Usage:   "YAML schema file to register at startup (repeatable)",
			},
			&cli.BoolFlag{
				Name:    "watch-schemas",
				Sources: cli.EnvVars(envPrefix + "WATCH_SCHEMAS"),
				Usage:   "Reload schema files when they change",
			},
			&cli.DurationFlag{
				Name:    "run-retention",
				Value:   30 * 24 * time.Hour,
				Sources: cli.EnvVars(envPrefix + "RUN_RETENTION"),
				Usage:   "Delete run history older than this (0 keeps everything)",
			},
			&cli.StringFlag{
				Name:    "prune-schedule",
				Value:   "@hourly",
				Sources: cli.EnvVars(envPrefix + "PRUNE_SCHEDULE"),
				Usage:   "Cron schedule for run history pruning",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			logger, err := loggerFromCommand(c)
			if err != nil {
				return err
			}

			cfg := app.Config{
				Addr:             c.String("addr"),
				DBPath:           c.String("db-path"),
				BootstrapAPIKey:  c.String("bootstrap-api-key"),
				BootstrapTenant:  c.String("bootstrap-tenant"),
				BootstrapKeyName: c.String("bootstrap-key-name"),
				WebhookURL:       c.String("webhook-url"),
				WebhookSecret:    c.String("webhook-secret"),
				WatchSchemas:     c.Bool("watch-schemas"),
				PruneSchedule:    c.String("prune-schedule"),
				Logger:           logger,
				SchemaFiles:      c.StringSlice("schema-file"),
				RunRetention:     c.Duration("run-retention"),
			}

			server, closer, err := app.NewServer(ctx, cfg)
			if err != nil {
				return fmt.Errorf("create server: %w", err)
			}
			defer func() {
				if closeErr := closer.Close(); closeErr != nil {
					logger.Error("close resources", "error", closeErr)
				}
			}()

			errCh := make(chan error, 1)
			go func() {
				logger.Info("listening", "addr", cfg.Addr)
				errCh <- server.ListenAndServe()
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)

			select {
			case <-ctx.Done():
				return shutdown(server)
			case sig := <-sigCh:
				logger.Info("received signal", "signal", sig.String())
				return shutdown(server)
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			}
		},
	}
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}

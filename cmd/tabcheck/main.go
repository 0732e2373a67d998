package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
)

const envPrefix = "TABCHECK_"

func main() {
	if err := loadEnvFile(os.Getenv(envPrefix + "ENV_FILE")); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cmd := &cli.Command{
		Name:  "tabcheck",
		Usage: "Schema-driven validation of tabular uploads",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Sources: cli.EnvVars(envPrefix + "LOG_LEVEL"),
				Usage:   "Log level (debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:    "log-format",
				Value:   "text",
				Sources: cli.EnvVars(envPrefix + "LOG_FORMAT"),
				Usage:   "Log format (text, json)",
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			checkCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("tabcheck failed", "error", err)
		os.Exit(1)
	}
}

// loadEnvFile applies a dotenv file to the process environment. Variables
// already set win. An empty file means ".env", which may be missing.
func loadEnvFile(file string) error {
	explicit := file != ""
	if !explicit {
		file = ".env"
	}
	if err := godotenv.Load(file); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", file, err)
	}
	return nil
}

func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "", "info":
		lvl = slog.LevelInfo
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

func loggerFromCommand(c *cli.Command) (*slog.Logger, error) {
	logger, err := newLogger(os.Stderr, c.String("log-level"), c.String("log-format"))
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return logger, nil
}

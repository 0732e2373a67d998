package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/atvirokodosprendimai/tabcheck/internal/adapters/schemafile"
	"github.com/atvirokodosprendimai/tabcheck/internal/core/domain"
	"github.com/atvirokodosprendimai/tabcheck/internal/core/validation"
)

type checkOutput struct {
	Passed   bool                  `json:"passed"`
	Decision domain.Decision       `json:"decision"`
	Report   domain.Report         `json:"report"`
	Grouped  *domain.GroupedReport `json:"grouped,omitempty"`
}

func checkCommand() *cli.Command {
	return &cli.Command{
		Name:      "check",
		Usage:     "Validate a JSON array of records and print the report",
		ArgsUsage: "<records.json | ->",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "schema",
				Usage: "YAML schema file",
			},
			&cli.StringFlag{
				Name:  "builtin",
				Value: "projects",
				Usage: "Built-in schema to use when --schema is not set",
			},
			&cli.BoolFlag{
				Name:  "grouped",
				Usage: "Also print violations grouped by rule",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if _, err := loggerFromCommand(c); err != nil {
				return err
			}
			if c.Args().Len() != 1 {
				return cli.Exit("expected exactly one records file (use - for stdin)", 2)
			}

			schema, err := resolveSchema(c.String("schema"), c.String("builtin"))
			if err != nil {
				return err
			}

			in, closeIn, err := openInput(c.Args().First())
			if err != nil {
				return err
			}
			defer closeIn()

			report, err := runCheck(ctx, in, schema, os.Stdout, c.Bool("grouped"))
			if err != nil {
				return err
			}
			if !report.Passed() {
				return cli.Exit("", 1)
			}
			return nil
		},
	}
}

func resolveSchema(file, builtin string) (domain.Schema, error) {
	if file != "" {
		return schemafile.LoadFile(file)
	}
	return schemafile.Builtin(builtin)
}

func openInput(arg string) (io.Reader, func(), error) {
	if arg == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(arg)
	if err != nil {
		return nil, nil, fmt.Errorf("open records: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

// runCheck decodes a JSON array of records from in, validates it against
// schema and writes the report to out.
func runCheck(ctx context.Context, in io.Reader, schema domain.Schema, out io.Writer, grouped bool) (domain.Report, error) {
	var records []domain.Record
	if err := json.NewDecoder(in).Decode(&records); err != nil {
		return domain.Report{}, fmt.Errorf("decode records: %w", err)
	}
	if len(records) == 0 {
		return domain.Report{}, domain.ErrEmptyDataset
	}

	report, err := validation.ValidateContext(ctx, records, schema)
	if err != nil {
		return domain.Report{}, err
	}

	result := checkOutput{Passed: report.Passed(), Decision: report.Decision(), Report: report}
	if grouped {
		g := report.Grouped()
		result.Grouped = &g
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return domain.Report{}, fmt.Errorf("write report: %w", err)
	}
	return report, nil
}

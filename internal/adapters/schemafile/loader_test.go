package schemafile

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/atvirokodosprendimai/tabcheck/internal/core/domain"
	"github.com/atvirokodosprendimai/tabcheck/internal/core/validation"
)

func TestBuiltinProjects(t *testing.T) {
	schema, err := Builtin("projects")
	if err != nil {
		t.Fatalf("builtin: %v", err)
	}
	if schema.Name != "projects" || len(schema.Columns) != 14 {
		t.Fatalf("unexpected schema: %s with %d columns", schema.Name, len(schema.Columns))
	}
	if schema.Columns[0].Name != "name" || !schema.Columns[0].Unique || !schema.Columns[0].Required {
		t.Fatalf("unexpected first column: %+v", schema.Columns[0])
	}
	irr, _ := schema.Column("irr")
	if irr.Min == nil || *irr.Min != 0 || irr.Max == nil || *irr.Max != 1 {
		t.Fatalf("unexpected irr bounds: %+v", irr)
	}
	kind, _ := schema.Column("type")
	if len(kind.ValidValues) != 7 || kind.ValidValues[0] != "On-shore Wind" {
		t.Fatalf("unexpected type values: %v", kind.ValidValues)
	}
	location, _ := schema.Column("location")
	if location.Required || location.Type != domain.TypeArray || location.Format != domain.FormatCoordinates {
		t.Fatalf("unexpected location: %+v", location)
	}

	if _, err := Builtin("missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBuiltinProjectsValidatesAPortfolioRow(t *testing.T) {
	schema, err := Builtin("projects")
	if err != nil {
		t.Fatalf("builtin: %v", err)
	}
	row := domain.NewRecord(map[string]any{
		"name": "Baltic One", "type": "Off-shore Wind", "country": "LT", "status": "Construction",
		"capacity": 700, "investmentCost": 1200, "equity": 300, "revenue": 90,
		"ebitda": 60, "profit": 20, "yieldOnCost": 0.07, "irr": 0.09,
		"location": []any{21.1, 55.7},
	})
	report := validation.Validate([]domain.Record{row}, schema)
	if !report.Passed() || len(report.Warnings) != 0 || report.Summary.Valid != 1 {
		t.Fatalf("expected a clean row, got %+v", report)
	}
}

func TestBuiltins(t *testing.T) {
	all, err := Builtins()
	if err != nil {
		t.Fatalf("builtins: %v", err)
	}
	if len(all) == 0 || all[0].Name != "projects" {
		t.Fatalf("unexpected builtins: %+v", all)
	}
}

func TestDecodeRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"empty", "", "empty"},
		{"unknown key", "columns:\n  - name: a\n    type: string\n    pattern: x\n", "pattern"},
		{"unknown type", "columns:\n  - name: a\n    type: date\n", `unknown type "date"`},
		{"no columns", "name: x\ncolumns: []\n", "at least one column"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.doc), "fallback")
			if !errors.Is(err, domain.ErrInvalidSchema) {
				t.Fatalf("expected ErrInvalidSchema, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected %q in %q", tt.want, err)
			}
		})
	}
}

func TestLoadFileUsesFileNameAsFallback(t *testing.T) {
	file := filepath.Join(t.TempDir(), "assets.yml")
	if err := os.WriteFile(file, []byte("columns:\n  - name: id\n    type: string\n    required: true\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	schema, err := LoadFile(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if schema.Name != "assets" {
		t.Fatalf("expected fallback name, got %q", schema.Name)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not exist, got %v", err)
	}
}

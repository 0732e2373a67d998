package validation

import (
	"context"
	"fmt"

	"github.com/atvirokodosprendimai/tabcheck/internal/core/domain"
)

// cancelCheckInterval is how many rows are scanned between context checks.
const cancelCheckInterval = 256

// tally accumulates one scan. It is local to a single call of scan and is
// never shared between runs.
type tally struct {
	errors           []domain.Violation
	warnings         []domain.Violation
	info             []domain.Violation
	rowsWithErrors   map[int]struct{}
	rowsWithWarnings map[int]struct{}
}

func newTally() *tally {
	return &tally{
		errors:           make([]domain.Violation, 0),
		warnings:         make([]domain.Violation, 0),
		info:             make([]domain.Violation, 0),
		rowsWithErrors:   make(map[int]struct{}),
		rowsWithWarnings: make(map[int]struct{}),
	}
}

func (t *tally) add(vs ...domain.Violation) {
	for _, v := range vs {
		switch v.Severity {
		case domain.SeverityError:
			t.errors = append(t.errors, v)
			t.rowsWithErrors[v.Row] = struct{}{}
		case domain.SeverityWarning:
			t.warnings = append(t.warnings, v)
			t.rowsWithWarnings[v.Row] = struct{}{}
		case domain.SeverityInfo:
			t.info = append(t.info, v)
		default:
			panic(fmt.Sprintf("validation: unknown severity %q", v.Severity))
		}
	}
}

// scan walks the dataset: per row every declared column then every
// undeclared field, and after all rows the uniqueness pass.
func scan(ctx context.Context, p plan, records []domain.Record) (*tally, error) {
	t := newTally()

	for i, rec := range records {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		row := i + 1

		for _, field := range p.fields {
			value, state := rec.Field(field.name)
			t.add(evaluateField(row, field, value, state)...)
		}

		for _, name := range rec.Keys() {
			if _, ok := p.declared[name]; ok {
				continue
			}
			value, _ := rec.Field(name)
			t.add(violation(row, name, value, domain.RuleUnknown, domain.SeverityInfo,
				fmt.Sprintf("Unknown field \"%s\" in row %d will be ignored", name, row)))
		}
	}

	for _, field := range p.fields {
		if !field.unique {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t.add(duplicates(field.name, records)...)
	}

	return t, nil
}

// duplicates reports every row whose value in column was already seen in an
// earlier row. Absent values are skipped.
func duplicates(column string, records []domain.Record) []domain.Violation {
	var out []domain.Violation
	firstSeen := make(map[string]int)
	for i, rec := range records {
		value, state := rec.Field(column)
		if state.Absent() {
			continue
		}
		row := i + 1
		key := uniqueKey(value)
		if first, ok := firstSeen[key]; ok {
			out = append(out, violation(row, column, value, domain.RuleUnique, domain.SeverityError,
				fmt.Sprintf("Field \"%s\" in row %d has duplicate value \"%s\" also in row %d", column, row, render(value), first)))
			continue
		}
		firstSeen[key] = row
	}
	return out
}

package validation

import (
	"fmt"

	"github.com/atvirokodosprendimai/tabcheck/internal/core/domain"
)

// aggregate turns a finished tally into a Report. Rows with errors are
// removed from the warning-only count; the warning list itself is kept as is.
func aggregate(total int, t *tally) domain.Report {
	withWarnings := 0
	for row := range t.rowsWithWarnings {
		if _, hasErrors := t.rowsWithErrors[row]; !hasErrors {
			withWarnings++
		}
	}
	withErrors := len(t.rowsWithErrors)

	return domain.Report{
		Errors:   t.errors,
		Warnings: t.warnings,
		Info:     t.info,
		Summary: domain.Summary{
			Total:        total,
			Valid:        total - withErrors - withWarnings,
			WithErrors:   withErrors,
			WithWarnings: withWarnings,
		},
	}
}

// systemReport is the report of a run that could not be evaluated: one
// system error and every row counted as failed.
func systemReport(total int, cause error) domain.Report {
	return domain.Report{
		Errors: []domain.Violation{{
			Row:      0,
			Column:   "",
			Rule:     domain.RuleSystem,
			Severity: domain.SeverityError,
			Message:  fmt.Sprintf("Validation failed: %v", cause),
		}},
		Warnings: make([]domain.Violation, 0),
		Info:     make([]domain.Violation, 0),
		Summary: domain.Summary{
			Total:      total,
			Valid:      0,
			WithErrors: total,
		},
	}
}

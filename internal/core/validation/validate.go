// Package validation evaluates uploaded records against a column schema.
//
// The engine is a pure function of (records, schema): it performs no I/O,
// keeps no state between calls and returns the same Report for the same
// input. Rule failures are reported as Violations, never as Go errors. A
// schema that cannot be compiled, or a value shape that makes evaluation
// itself fail, yields a single system violation instead.
package validation

import (
	"context"
	"fmt"

	"github.com/atvirokodosprendimai/tabcheck/internal/core/domain"
)

// Validate evaluates records against schema.
func Validate(records []domain.Record, schema domain.Schema) domain.Report {
	report, _ := ValidateContext(context.Background(), records, schema)
	return report
}

// ValidateContext is Validate with cooperative cancellation. The only error
// it returns is ctx.Err(); a cancelled run has no partial report.
func ValidateContext(ctx context.Context, records []domain.Record, schema domain.Schema) (domain.Report, error) {
	p, err := compile(schema)
	if err != nil {
		return systemReport(len(records), err), nil
	}
	return evaluate(ctx, p, records)
}

// evaluate runs a compiled plan. A panic during the scan becomes the system
// report.
func evaluate(ctx context.Context, p plan, records []domain.Record) (report domain.Report, err error) {
	defer func() {
		if r := recover(); r != nil {
			report = systemReport(len(records), fmt.Errorf("%v", r))
			err = nil
		}
	}()

	t, err := scan(ctx, p, records)
	if err != nil {
		return domain.Report{}, err
	}
	return aggregate(len(records), t), nil
}

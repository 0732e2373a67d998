package validation

import (
	"fmt"
	"strings"

	"github.com/atvirokodosprendimai/tabcheck/internal/core/domain"
)

// evaluateField runs the compiled checks of one column against one value.
//
// A missing required value stops evaluation after the required violation,
// and an optional absent value is not checked at all. A type error stops
// evaluation too; a numeric string in a number column only warns and the
// parsed number is what the range check sees.
func evaluateField(row int, field fieldPlan, value any, state domain.FieldState) []domain.Violation {
	var out []domain.Violation
	present := !state.Absent()
	subject := value

	for _, c := range field.checks {
		if !present {
			if _, ok := c.(requiredCheck); ok {
				out = append(out, violation(row, field.name, value, c.rule(), domain.SeverityError,
					fmt.Sprintf("Required field \"%s\" is missing in row %d", field.name, row)))
			}
			return out
		}

		switch c := c.(type) {
		case requiredCheck:
		case typeCheck:
			actual := kindOf(value)
			if actual == string(c.want) {
				if n, ok := toNumber(value); ok && c.want == domain.TypeNumber {
					subject = n
				}
				continue
			}
			if c.want == domain.TypeNumber && actual == kindString {
				if n, ok := coerceNumber(render(value)); ok {
					out = append(out, violation(row, field.name, value, c.rule(), domain.SeverityWarning,
						fmt.Sprintf("Field \"%s\" in row %d is a string but should be a number. It will be converted automatically.", field.name, row)))
					subject = n
					continue
				}
			}
			out = append(out, violation(row, field.name, value, c.rule(), domain.SeverityError,
				fmt.Sprintf("Field \"%s\" in row %d should be of type %s but got %s", field.name, row, c.want, actual)))
			return out
		case rangeCheck:
			n, ok := subject.(float64)
			if !ok {
				continue
			}
			if c.min != nil && n < *c.min {
				out = append(out, violation(row, field.name, value, c.rule(), domain.SeverityError,
					fmt.Sprintf("Field \"%s\" in row %d should be at least %s", field.name, row, formatNumber(*c.min))))
			}
			if c.max != nil && n > *c.max {
				out = append(out, violation(row, field.name, value, c.rule(), domain.SeverityError,
					fmt.Sprintf("Field \"%s\" in row %d should be at most %s", field.name, row, formatNumber(*c.max))))
			}
		case enumCheck:
			if !containsValue(c.values, value) {
				out = append(out, violation(row, field.name, value, c.rule(), domain.SeverityError,
					fmt.Sprintf("Field \"%s\" in row %d has invalid value \"%s\". Valid values are: %s", field.name, row, render(value), joinValues(c.values))))
			}
		case formatCheck:
			if c.format == domain.FormatCoordinates && !isCoordinates(value) {
				out = append(out, violation(row, field.name, value, c.rule(), domain.SeverityError,
					fmt.Sprintf("Field \"%s\" in row %d should be coordinates [longitude, latitude]", field.name, row)))
			}
		default:
			panic(fmt.Sprintf("validation: unhandled check %T", c))
		}
	}
	return out
}

func violation(row int, column string, value any, rule domain.Rule, severity domain.Severity, message string) domain.Violation {
	return domain.Violation{
		Row:      row,
		Column:   column,
		Value:    value,
		Rule:     rule,
		Severity: severity,
		Message:  message,
	}
}

func containsValue(values []any, v any) bool {
	for _, allowed := range values {
		if sameValue(v, allowed) {
			return true
		}
	}
	return false
}

func joinValues(values []any) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = render(v)
	}
	return strings.Join(parts, ", ")
}

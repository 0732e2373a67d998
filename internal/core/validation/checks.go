package validation

import (
	"fmt"

	"github.com/atvirokodosprendimai/tabcheck/internal/core/domain"
)

// check is one compiled constraint. The set of implementations is closed;
// evaluateField switches over all of them.
type check interface {
	rule() domain.Rule
}

type requiredCheck struct{}

type typeCheck struct {
	want domain.DataType
}

type rangeCheck struct {
	min *float64
	max *float64
}

type enumCheck struct {
	values []any
}

type formatCheck struct {
	format domain.Format
}

func (requiredCheck) rule() domain.Rule { return domain.RuleRequired }
func (typeCheck) rule() domain.Rule     { return domain.RuleType }
func (rangeCheck) rule() domain.Rule    { return domain.RuleRange }
func (enumCheck) rule() domain.Rule     { return domain.RuleFormat }
func (formatCheck) rule() domain.Rule   { return domain.RuleFormat }

// fieldPlan is the compiled form of one schema column. Checks run in slice
// order: required, type, range, enum, format.
type fieldPlan struct {
	name   string
	unique bool
	checks []check
}

// plan is the compiled schema for one run.
type plan struct {
	fields   []fieldPlan
	declared map[string]struct{}
}

func compile(schema domain.Schema) (plan, error) {
	if err := schema.ValidateColumns(); err != nil {
		return plan{}, err
	}

	p := plan{
		fields:   make([]fieldPlan, 0, len(schema.Columns)),
		declared: make(map[string]struct{}, len(schema.Columns)),
	}
	for _, col := range schema.Columns {
		fp, err := compileColumn(col)
		if err != nil {
			return plan{}, err
		}
		p.fields = append(p.fields, fp)
		p.declared[col.Name] = struct{}{}
	}
	return p, nil
}

func compileColumn(col domain.Column) (fieldPlan, error) {
	fp := fieldPlan{name: col.Name, unique: col.Unique}
	if col.Required {
		fp.checks = append(fp.checks, requiredCheck{})
	}
	if !col.Type.Valid() {
		return fieldPlan{}, fmt.Errorf("column %q: unknown type %q", col.Name, col.Type)
	}
	fp.checks = append(fp.checks, typeCheck{want: col.Type})
	if col.Type == domain.TypeNumber && (col.Min != nil || col.Max != nil) {
		fp.checks = append(fp.checks, rangeCheck{min: col.Min, max: col.Max})
	}
	if len(col.ValidValues) > 0 {
		fp.checks = append(fp.checks, enumCheck{values: col.ValidValues})
	}
	switch col.Format {
	case domain.FormatNone:
	case domain.FormatCoordinates:
		fp.checks = append(fp.checks, formatCheck{format: col.Format})
	default:
		return fieldPlan{}, fmt.Errorf("column %q: unknown format %q", col.Name, col.Format)
	}
	return fp, nil
}

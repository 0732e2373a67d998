package domain

import (
	"fmt"
	"strings"
	"time"
)

// DataType is the declared type of a column.
type DataType string

const (
	TypeString DataType = "string"
	TypeNumber DataType = "number"
	TypeArray  DataType = "array"
)

func (t DataType) Valid() bool {
	switch t {
	case TypeString, TypeNumber, TypeArray:
		return true
	}
	return false
}

// Format is a structural format tag checked after type and range.
type Format string

const (
	FormatNone        Format = ""
	FormatCoordinates Format = "coordinates"
)

func (f Format) Valid() bool {
	switch f {
	case FormatNone, FormatCoordinates:
		return true
	}
	return false
}

// ColumnConstraint describes what a single column accepts. Zero values mean
// "no constraint": a nil Min skips the lower bound check, an empty
// ValidValues skips the membership check and so on.
type ColumnConstraint struct {
	Required    bool     `json:"required" yaml:"required"`
	Type        DataType `json:"type" yaml:"type"`
	Min         *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max         *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	ValidValues []any    `json:"validValues,omitempty" yaml:"validValues,omitempty"`
	Unique      bool     `json:"unique,omitempty" yaml:"unique,omitempty"`
	Format      Format   `json:"format,omitempty" yaml:"format,omitempty"`
}

// Column is a named ColumnConstraint. Its position inside Schema.Columns is
// the evaluation order.
type Column struct {
	Name             string `json:"name" yaml:"name"`
	ColumnConstraint `yaml:",inline"`
}

// Schema is an ordered set of columns. A Schema is treated as read-only once
// it has been handed to a validation run.
type Schema struct {
	Name    string   `json:"name" yaml:"name"`
	Columns []Column `json:"columns" yaml:"columns"`
}

// SchemaDefinitionError lists every reason a schema definition was rejected.
type SchemaDefinitionError struct {
	Problems []string
}

func (e *SchemaDefinitionError) Error() string {
	return fmt.Sprintf("invalid schema: %s", strings.Join(e.Problems, "; "))
}

func (e *SchemaDefinitionError) Unwrap() error {
	return ErrInvalidSchema
}

// Validate checks the schema name and everything ValidateColumns checks.
// It also rejects inverted ranges, which the engine itself tolerates.
func (s Schema) Validate() error {
	var problems []string
	if err := ValidateName(s.Name); err != nil {
		problems = append(problems, fmt.Sprintf("schema name %q is invalid", s.Name))
	}
	problems = append(problems, s.columnProblems()...)
	problems = append(problems, s.rangeProblems()...)
	if len(problems) > 0 {
		return &SchemaDefinitionError{Problems: problems}
	}
	return nil
}

// ValidateColumns reports structural problems: duplicate or empty column
// names and unknown types or formats. Bounds on a column that is not of type
// number are ignored rather than rejected. An inverted range is not a
// structural problem; both bounds are checked independently.
func (s Schema) ValidateColumns() error {
	if problems := s.columnProblems(); len(problems) > 0 {
		return &SchemaDefinitionError{Problems: problems}
	}
	return nil
}

func (s Schema) columnProblems() []string {
	var problems []string
	if len(s.Columns) == 0 {
		problems = append(problems, "schema must declare at least one column")
	}

	seen := make(map[string]struct{}, len(s.Columns))
	for i, col := range s.Columns {
		if col.Name == "" {
			problems = append(problems, fmt.Sprintf("columns[%d]: name is required", i))
			continue
		}
		if _, dup := seen[col.Name]; dup {
			problems = append(problems, fmt.Sprintf("column %q is declared more than once", col.Name))
		}
		seen[col.Name] = struct{}{}

		if !col.Type.Valid() {
			problems = append(problems, fmt.Sprintf("column %q: unknown type %q", col.Name, col.Type))
		}
		if !col.Format.Valid() {
			problems = append(problems, fmt.Sprintf("column %q: unknown format %q", col.Name, col.Format))
		}
	}
	return problems
}

func (s Schema) rangeProblems() []string {
	var problems []string
	for _, col := range s.Columns {
		if col.Min != nil && col.Max != nil && *col.Min > *col.Max {
			problems = append(problems, fmt.Sprintf("column %q: min %v is greater than max %v", col.Name, *col.Min, *col.Max))
		}
	}
	return problems
}

// Column returns the named column and whether it is declared.
func (s Schema) Column(name string) (Column, bool) {
	for _, col := range s.Columns {
		if col.Name == name {
			return col, true
		}
	}
	return Column{}, false
}

// StoredSchema is a Schema registered for a tenant.
type StoredSchema struct {
	TenantID  string
	Schema    Schema
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Float returns a pointer to v, for building Min/Max bounds in literals.
func Float(v float64) *float64 {
	return &v
}

package domain

import (
	"errors"
	"strings"
	"testing"
)

func validSchema() Schema {
	return Schema{
		Name: "projects",
		Columns: []Column{
			{Name: "name", ColumnConstraint: ColumnConstraint{Required: true, Type: TypeString, Unique: true}},
			{Name: "irr", ColumnConstraint: ColumnConstraint{Type: TypeNumber, Min: Float(0), Max: Float(1)}},
			{Name: "location", ColumnConstraint: ColumnConstraint{Type: TypeArray, Format: FormatCoordinates}},
		},
	}
}

func TestSchemaValidate(t *testing.T) {
	if err := validSchema().Validate(); err != nil {
		t.Fatalf("expected valid schema, got %v", err)
	}
}

func TestSchemaValidateCollectsProblems(t *testing.T) {
	s := validSchema()
	s.Name = "bad/name"
	s.Columns = append(s.Columns,
		Column{Name: "name", ColumnConstraint: ColumnConstraint{Type: TypeString}},
		Column{Name: "when", ColumnConstraint: ColumnConstraint{Type: "date"}},
		Column{Name: "ratio", ColumnConstraint: ColumnConstraint{Type: TypeNumber, Min: Float(2), Max: Float(1)}},
		Column{Name: "", ColumnConstraint: ColumnConstraint{Type: TypeString}},
	)

	err := s.Validate()
	if !errors.Is(err, ErrInvalidSchema) {
		t.Fatalf("expected ErrInvalidSchema, got %v", err)
	}
	var defErr *SchemaDefinitionError
	if !errors.As(err, &defErr) {
		t.Fatalf("expected SchemaDefinitionError, got %T", err)
	}
	if len(defErr.Problems) != 5 {
		t.Fatalf("expected 5 problems, got %d: %v", len(defErr.Problems), defErr.Problems)
	}
	if !strings.Contains(err.Error(), `column "name" is declared more than once`) {
		t.Fatalf("unexpected message: %s", err)
	}
}

func TestSchemaValidateColumnsIgnoresName(t *testing.T) {
	s := validSchema()
	s.Name = ""
	if err := s.ValidateColumns(); err != nil {
		t.Fatalf("expected columns to be valid, got %v", err)
	}
	if err := s.Validate(); err == nil {
		t.Fatal("expected Validate to reject an empty name")
	}
}

func TestSchemaInvertedRangeIsRejectedOnlyAtRegistration(t *testing.T) {
	s := validSchema()
	s.Columns = append(s.Columns, Column{Name: "ratio", ColumnConstraint: ColumnConstraint{Type: TypeNumber, Min: Float(10), Max: Float(0)}})

	if err := s.ValidateColumns(); err != nil {
		t.Fatalf("expected columns to be valid, got %v", err)
	}
	err := s.Validate()
	if !errors.Is(err, ErrInvalidSchema) {
		t.Fatalf("expected ErrInvalidSchema, got %v", err)
	}
	if !strings.Contains(err.Error(), `column "ratio": min 10 is greater than max 0`) {
		t.Fatalf("unexpected message: %s", err)
	}
}

func TestSchemaColumnLookup(t *testing.T) {
	col, ok := validSchema().Column("irr")
	if !ok || col.Type != TypeNumber {
		t.Fatalf("unexpected lookup: %+v %v", col, ok)
	}
	if _, ok := validSchema().Column("missing"); ok {
		t.Fatal("expected missing column")
	}
}

package domain

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestRecordFieldStates(t *testing.T) {
	rec := NewRecord(map[string]any{"zero": 0, "no": false, "empty": "", "null": nil, "name": "A"})

	tests := []struct {
		field string
		want  FieldState
	}{
		{"zero", FieldPresent},
		{"no", FieldPresent},
		{"name", FieldPresent},
		{"empty", FieldEmpty},
		{"null", FieldNull},
		{"missing", FieldMissing},
	}
	for _, tt := range tests {
		_, got := rec.Field(tt.field)
		if got != tt.want {
			t.Fatalf("field %q: expected state %d, got %d", tt.field, tt.want, got)
		}
		if got.Absent() != (tt.want != FieldPresent) {
			t.Fatalf("field %q: unexpected Absent()", tt.field)
		}
	}
}

func TestRecordUnmarshalKeepsOrder(t *testing.T) {
	var rec Record
	if err := json.Unmarshal([]byte(`{"b":1,"a":[1,2],"c":{"x":null},"b":2}`), &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got := rec.Keys(); !reflect.DeepEqual(got, []string{"b", "a", "c"}) {
		t.Fatalf("unexpected key order: %v", got)
	}
	v, _ := rec.Field("b")
	if v != json.Number("2") {
		t.Fatalf("expected later duplicate to win, got %#v", v)
	}

	encoded, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(encoded) != `{"b":2,"a":[1,2],"c":{"x":null}}` {
		t.Fatalf("unexpected encoding: %s", encoded)
	}
}

func TestRecordUnmarshalRejectsNonObject(t *testing.T) {
	var rec Record
	if err := json.Unmarshal([]byte(`[1,2]`), &rec); err == nil {
		t.Fatal("expected error for array input")
	}
}

func TestNewRecordSortsKeys(t *testing.T) {
	rec := NewRecord(map[string]any{"b": 1, "a": 2})
	if got := rec.Keys(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("unexpected key order: %v", got)
	}
}

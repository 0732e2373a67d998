package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

const (
	kindString  = "string"
	kindNumber  = "number"
	kindBoolean = "boolean"
	kindArray   = "array"
	kindObject  = "object"
)

// numericString matches decimal literals and the Infinity spellings. It is
// stricter than JavaScript's Number(): a blank or whitespace-only string is
// not zero here, and hex or binary literals ("0x10", "0b1") and digit
// separators ("1_000") are type errors rather than coercion warnings.
var numericString = regexp.MustCompile(`^[+-]?(Infinity|(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?)$`)

// kindOf classifies a decoded value. Arrays are their own kind; maps and
// structs are objects.
func kindOf(v any) string {
	switch v.(type) {
	case json.Number:
		return kindNumber
	case string:
		return kindString
	case bool:
		return kindBoolean
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return kindString
	case reflect.Bool:
		return kindBoolean
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return kindNumber
	case reflect.Slice, reflect.Array:
		return kindArray
	default:
		return kindObject
	}
}

// toNumber converts values whose kind is number. Strings are never
// converted here; see coerceNumber.
func toNumber(v any) (float64, bool) {
	if n, ok := v.(json.Number); ok {
		f, err := strconv.ParseFloat(n.String(), 64)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return 0, false
		}
		return f, true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		return f, !math.IsNaN(f)
	}
	return 0, false
}

// coerceNumber parses a numeric-looking string. Surrounding whitespace is
// tolerated, a blank string is not numeric.
func coerceNumber(s string) (float64, bool) {
	t := strings.TrimSpace(s)
	if !numericString.MatchString(t) {
		return 0, false
	}
	switch strings.TrimLeft(t, "+-") {
	case "Infinity":
		if strings.HasPrefix(t, "-") {
			return math.Inf(-1), true
		}
		return math.Inf(1), true
	}
	f, err := strconv.ParseFloat(t, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, false
	}
	return f, true
}

// sameValue compares a field value with an allowed literal. Numbers compare
// by value regardless of their Go type; everything else must match exactly.
func sameValue(a, b any) bool {
	if kindOf(a) == kindNumber && kindOf(b) == kindNumber {
		x, okA := toNumber(a)
		y, okB := toNumber(b)
		return okA && okB && x == y
	}
	if kindOf(a) != kindOf(b) {
		return false
	}
	return reflect.DeepEqual(a, b)
}

// uniqueKey maps a value to a comparable key. Scalars of different kinds
// never collide ("1" and 1 are distinct); arrays and objects compare by
// their JSON encoding.
func uniqueKey(v any) string {
	switch k := kindOf(v); k {
	case kindNumber:
		f, _ := toNumber(v)
		return "n:" + strconv.FormatFloat(f, 'g', -1, 64)
	case kindString:
		return "s:" + reflect.ValueOf(v).String()
	case kindBoolean:
		return "b:" + strconv.FormatBool(reflect.ValueOf(v).Bool())
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("g:%#v", v)
		}
		return "j:" + string(encoded)
	}
}

// render formats a value for a message.
func render(v any) string {
	if v == nil {
		return "null"
	}
	if n, ok := v.(json.Number); ok {
		return n.String()
	}
	switch kindOf(v) {
	case kindString:
		return reflect.ValueOf(v).String()
	case kindNumber:
		f, _ := toNumber(v)
		return formatNumber(f)
	case kindBoolean:
		return strconv.FormatBool(reflect.ValueOf(v).Bool())
	case kindArray:
		rv := reflect.ValueOf(v)
		parts := make([]string, rv.Len())
		for i := range parts {
			parts[i] = render(rv.Index(i).Interface())
		}
		return strings.Join(parts, ",")
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(encoded)
	}
}

func formatNumber(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// isCoordinates reports whether v is a pair of numbers.
func isCoordinates(v any) bool {
	if kindOf(v) != kindArray {
		return false
	}
	rv := reflect.ValueOf(v)
	if rv.Len() != 2 {
		return false
	}
	for i := 0; i < 2; i++ {
		elem := rv.Index(i).Interface()
		if kindOf(elem) != kindNumber {
			return false
		}
		if _, ok := toNumber(elem); !ok {
			return false
		}
	}
	return true
}

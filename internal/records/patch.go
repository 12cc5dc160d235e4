// internal/records/patch.go
package records

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// Patch is a partial update: field name to new value. Values arrive either as
// Go values or as decoded JSON (string, float64, bool, nil).
type Patch map[string]any

// Has reports whether the patch names field.
func (p Patch) Has(field string) bool {
	_, ok := p[field]
	return ok
}

// Fields returns the patched field names.
func (p Patch) Fields() []string {
	out := make([]string, 0, len(p))
	for k := range p {
		out = append(out, k)
	}
	return out
}

// Without returns a copy of p minus the given fields.
func (p Patch) Without(fields ...string) Patch {
	out := make(Patch, len(p))
	for k, v := range p {
		out[k] = v
	}
	for _, f := range fields {
		delete(out, f)
	}
	return out
}

func invalid(field string, v any, want string) error {
	return fmt.Errorf("%w: %s must be %s, got %T", ErrInvalidValue, field, want, v)
}

// Unknown reports a patch key the entity does not declare.
func Unknown(field string) error {
	return fmt.Errorf("%w: %s", ErrUnknownField, field)
}

func AsString(field string, v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case fmt.Stringer:
		return t.String(), nil
	case nil:
		return "", nil
	default:
		return "", invalid(field, v, "a string")
	}
}

func AsInt(field string, v any) (int, error) {
	switch t := v.(type) {
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case int32:
		return int(t), nil
	case float64:
		if t != math.Trunc(t) {
			return 0, invalid(field, v, "a whole number")
		}
		return int(t), nil
	case string:
		n, err := strconv.Atoi(t)
		if err != nil {
			return 0, invalid(field, v, "a whole number")
		}
		return n, nil
	default:
		return 0, invalid(field, v, "a whole number")
	}
}

func AsFloat(field string, v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, invalid(field, v, "a number")
		}
		return f, nil
	default:
		return 0, invalid(field, v, "a number")
	}
}

func AsBool(field string, v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		b, err := strconv.ParseBool(t)
		if err != nil {
			return false, invalid(field, v, "a boolean")
		}
		return b, nil
	default:
		return false, invalid(field, v, "a boolean")
	}
}

func AsDate(field string, v any) (Date, error) {
	switch t := v.(type) {
	case Date:
		return t, nil
	case *Date:
		if t == nil {
			return Date{}, invalid(field, v, "a date")
		}
		return *t, nil
	case time.Time:
		return DateOf(t), nil
	case string:
		d, err := ParseDate(t)
		if err != nil {
			return Date{}, fmt.Errorf("%s: %w", field, err)
		}
		return d, nil
	default:
		return Date{}, invalid(field, v, "a date")
	}
}

// AsOptionalDate accepts nil or "" as "no date".
func AsOptionalDate(field string, v any) (*Date, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case *Date:
		return t, nil
	case string:
		if t == "" {
			return nil, nil
		}
	}
	d, err := AsDate(field, v)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func AsTime(field string, v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case Date:
		return t.Time, nil
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			return time.Time{}, invalid(field, v, "an RFC 3339 timestamp")
		}
		return parsed, nil
	default:
		return time.Time{}, invalid(field, v, "a timestamp")
	}
}

// internal/records/date.go
package records

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// Date is a calendar day stored as UTC midnight.
type Date struct {
	time.Time
}

// DateOf truncates t to its calendar day in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: date %q: %v", ErrInvalidValue, s, err)
	}
	return Date{t.UTC()}, nil
}

// MustParseDate is for fixtures and tests.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" || s == `""` {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(strings.Trim(s, `"`))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

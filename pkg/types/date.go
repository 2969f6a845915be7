package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD string into UTC midnight.
func ParseDate(value string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(value), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected %s", value, DateLayout)
	}
	return t, nil
}

// ParseOptionalDate parses value when present.
func ParseOptionalDate(value *string) (*time.Time, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil, nil
	}
	t, err := ParseDate(*value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// DateOf returns the calendar day of t, as seen in loc, at UTC midnight.
// Every date stored or compared by the service uses this normalization.
func DateOf(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FormatDate renders a calendar date.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// FormatOptionalDate renders a nullable calendar date.
func FormatOptionalDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := FormatDate(*t)
	return &s
}

// NullableDate tracks whether a date field was present in a JSON patch and
// whether it was explicitly null.
type NullableDate struct {
	Set   bool
	Value *time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *NullableDate) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	n.Set = true
	if bytes.Equal(trimmed, []byte("null")) {
		n.Value = nil
		return nil
	}
	var raw string
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	t, err := ParseDate(raw)
	if err != nil {
		return err
	}
	n.Value = &t
	return nil
}

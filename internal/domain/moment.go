package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Moment decodes the timestamp and date formats the backend emits
// (RFC 3339 with or without zone, or a bare calendar date). JSON null and
// empty strings decode to the zero time.
//
// A bare calendar date is a civil day, not an instant: DateOnly is set and
// In places that day in the requested location instead of converting it.
type Moment struct {
	time.Time
	DateOnly bool
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func NewMoment(t time.Time) Moment {
	return Moment{Time: t}
}

// NewDate keeps only the calendar day of t.
func NewDate(t time.Time) Moment {
	return Moment{Time: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), DateOnly: true}
}

func ParseMoment(raw string) (Moment, error) {
	if raw == "" {
		return Moment{}, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return Moment{Time: t}, nil
		}
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return NewDate(t), nil
	}
	return Moment{}, fmt.Errorf("unrecognised timestamp %q", raw)
}

// In returns the moment in loc. A date-only moment becomes midnight of the
// same calendar day in loc.
func (m Moment) In(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	if m.DateOnly && !m.IsZero() {
		return time.Date(m.Year(), m.Month(), m.Day(), 0, 0, 0, 0, loc)
	}
	return m.Time.In(loc)
}

func (m *Moment) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*m = Moment{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseMoment(raw)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

func (m Moment) MarshalJSON() ([]byte, error) {
	if m.IsZero() {
		return []byte("null"), nil
	}
	if m.DateOnly {
		return json.Marshal(m.Format(time.DateOnly))
	}
	return json.Marshal(m.Format(time.RFC3339Nano))
}

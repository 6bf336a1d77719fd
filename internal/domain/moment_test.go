package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestMomentAcceptsBackendFormats(t *testing.T) {
	cases := []struct {
		raw  string
		want time.Time
	}{
		{`"2024-03-01T10:00:00Z"`, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
		{`"2024-03-01T10:00:00.123456+01:00"`, time.Date(2024, 3, 1, 9, 0, 0, 123456000, time.UTC)},
		{`"2024-03-01T10:00:00.5"`, time.Date(2024, 3, 1, 10, 0, 0, 500000000, time.UTC)},
		{`"2024-02-28"`, time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		var m Moment
		if err := json.Unmarshal([]byte(tc.raw), &m); err != nil {
			t.Fatalf("decode %s: %v", tc.raw, err)
		}
		if !m.Equal(tc.want) {
			t.Fatalf("decode %s: expected %v, got %v", tc.raw, tc.want, m.Time)
		}
	}
}

func TestMomentNullIsZero(t *testing.T) {
	var m Moment
	if err := json.Unmarshal([]byte(`null`), &m); err != nil {
		t.Fatalf("decode null: %v", err)
	}
	if !m.IsZero() {
		t.Fatalf("expected zero time, got %v", m.Time)
	}
	if err := json.Unmarshal([]byte(`"yesterday"`), &m); err == nil {
		t.Fatalf("expected garbage timestamp to be rejected")
	}
}

func TestBareDateIsCivilDay(t *testing.T) {
	var m Moment
	if err := json.Unmarshal([]byte(`"2024-03-01"`), &m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !m.DateOnly {
		t.Fatalf("expected a date-only moment")
	}
	west := time.FixedZone("UTC-5", -5*3600)
	if got := m.In(west); got.Day() != 1 || got.Hour() != 0 || got.Location() != west {
		t.Fatalf("expected midnight of 1 March in UTC-5, got %v", got)
	}
	out, err := json.Marshal(m)
	if err != nil || string(out) != `"2024-03-01"` {
		t.Fatalf("expected bare date re-encoded, got %s (%v)", out, err)
	}

	var ts Moment
	if err := json.Unmarshal([]byte(`"2024-03-01T02:00:00Z"`), &ts); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ts.DateOnly || ts.In(west).Day() != 29 {
		t.Fatalf("expected a timestamp to convert to 29 February, got %v", ts.In(west))
	}
}

package models

import (
	"fmt"
	"strings"
	"time"
)

// TimeOfDay is a bookable slot: hour and minute, no date, no zone.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay normalizes a slot value to a bare local time of day. It
// accepts "HH:MM", "HH:MM:SS" and full timestamps; for timestamps only the
// time of day in loc is kept.
func ParseTimeOfDay(raw string, loc *time.Location) (TimeOfDay, error) {
	if loc == nil {
		loc = time.Local
	}
	s := strings.TrimSpace(raw)
	if s == "" {
		return TimeOfDay{}, fmt.Errorf("empty time of day")
	}

	if strings.Contains(s, "T") || strings.Contains(s, " ") {
		t, ok := ParseBackendTime(s, loc)
		if !ok {
			return TimeOfDay{}, fmt.Errorf("invalid timestamp %q", raw)
		}
		return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
	}

	for _, layout := range []string{TimeOfDayLayout, "15:04:05", "15h04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
		}
	}
	return TimeOfDay{}, fmt.Errorf("invalid time of day %q", raw)
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

func (t TimeOfDay) Valid() bool {
	return t.Hour >= 0 && t.Hour < 24 && t.Minute >= 0 && t.Minute < 60
}

// Stamp renders t on day as local wall time without zone. The string is built
// from the fields directly so a day whose midnight is skipped by a daylight
// saving change keeps its date.
func (t TimeOfDay) Stamp(day Date) string {
	return fmt.Sprintf("%sT%02d:%02d:00", day, t.Hour, t.Minute)
}

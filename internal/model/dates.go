package model

import (
	"encoding/json"
	"strings"
	"time"
)

// Instant is a normalized UTC timestamp string. Empty marshals as null.
type Instant string

func (i Instant) MarshalJSON() ([]byte, error) {
	if i == "" {
		return []byte("null"), nil
	}
	return json.Marshal(string(i))
}

const dateOnly = "2006-01-02"

// ToISOZ normalizes a simulator or database timestamp to "YYYY-MM-DDTHH:MM:SS...Z".
// Values that already carry a "T" only get a trailing Z when they have no zone;
// otherwise the first space becomes "T" and a Z is appended, so a bare date
// turns into "YYYY-MM-DDZ". Zoned values are left as they are. The result is
// stable under repeated application.
func ToISOZ(s string) Instant {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if strings.Contains(s, "T") {
		if strings.HasSuffix(s, "Z") {
			return Instant(s)
		}
		if _, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return Instant(s)
		}
		return Instant(s + "Z")
	}
	if strings.HasSuffix(s, "Z") {
		return Instant(s)
	}
	r := strings.Replace(s, " ", "T", 1)
	if _, err := time.Parse(time.RFC3339Nano, r); err == nil {
		return Instant(r)
	}
	return Instant(r + "Z")
}

var parseLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	dateOnly,
	dateOnly + "Z07:00",
}

// ParseDate reads the timestamp shapes the simulator, the database and the API
// produce. Values without a zone are taken as UTC.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range parseLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// FormatInstant renders t with millisecond precision in UTC.
func FormatInstant(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

// EndOfDay returns 23:59:59.999 UTC on the UTC day of t.
func EndOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 23, 59, 59, int(999*time.Millisecond), time.UTC)
}

package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

const (
	dateLayout = "2006-01-02"
	dayMillis  = int64(24 * time.Hour / time.Millisecond)
)

// StartOfDayUTC pins the calendar day of t to 00:00:00.000 UTC.
func StartOfDayUTC(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// EndOfDayUTC pins the calendar day of t to 23:59:59.999 UTC.
func EndOfDayUTC(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(999*time.Millisecond), time.UTC)
}

// Today returns the UTC day start for the instant now.
func Today(now time.Time) time.Time {
	return StartOfDayUTC(now.UTC())
}

// DaysUntil is ceil((due - from) / 1 day) computed in milliseconds.
func DaysUntil(due, from time.Time) int {
	diff := due.Sub(from).Milliseconds()
	days := diff / dayMillis
	if diff%dayMillis > 0 {
		days++
	}
	return int(days)
}

// Date accepts "2006-01-02" or RFC 3339 in JSON and keeps the calendar day
// as written by the caller.
type Date struct {
	time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func ParseDate(s string) (Date, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return Date{t}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD or RFC 3339", s)
	}
	return Date{t}, nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format(dateLayout))
}

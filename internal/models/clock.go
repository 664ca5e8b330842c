package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the wire and storage format of calendar dates.
const DateLayout = "2006-01-02"

// Clock is a wall-clock time of day in minutes since midnight. It carries no date or zone.
type Clock int

// ParseClock parses "HH:MM" (or "HH:MM:SS", seconds discarded) into a Clock.
func ParseClock(raw string) (Clock, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("invalid time %q: expected HH:MM", raw)
	}
	for _, part := range parts {
		if !allDigits(part) {
			return 0, fmt.Errorf("invalid time %q: expected HH:MM", raw)
		}
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || len(parts[0]) == 0 || len(parts[0]) > 2 || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in %q", raw)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || len(parts[1]) != 2 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in %q", raw)
	}
	if len(parts) == 3 {
		second, err := strconv.Atoi(parts[2])
		if err != nil || len(parts[2]) != 2 || second < 0 || second > 59 {
			return 0, fmt.Errorf("invalid second in %q", raw)
		}
	}
	return Clock(hour*60 + minute), nil
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// String renders the canonical zero-padded "HH:MM" form.
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// Window is a [Start, End] time range within a single day, with Start < End.
type Window struct {
	Start Clock
	End   Clock
}

// ParseWindow parses both bounds and enforces start < end.
func ParseWindow(start, end string) (Window, error) {
	s, err := ParseClock(start)
	if err != nil {
		return Window{}, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return Window{}, err
	}
	if s >= e {
		return Window{}, fmt.Errorf("start time %s must be before end time %s", s, e)
	}
	return Window{Start: s, End: e}, nil
}

// Overlaps reports whether two windows conflict. With inclusive boundaries, windows that merely
// touch (one ends exactly when the other starts) also conflict.
func (w Window) Overlaps(other Window, inclusive bool) bool {
	if inclusive {
		return w.Start <= other.End && w.End >= other.Start
	}
	return w.Start < other.End && w.End > other.Start
}

// Contains reports whether other lies entirely within w, bounds included.
func (w Window) Contains(other Window) bool {
	return w.Start <= other.Start && w.End >= other.End
}

// Date is a naive calendar date. It is stored as a DATE column and sent as "YYYY-MM-DD".
type Date struct {
	time.Time
}

// ParseDate parses "YYYY-MM-DD". A full RFC3339 timestamp is also accepted and truncated to its date.
func ParseDate(raw string) (Date, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(DateLayout, raw); err == nil {
		return Date{Time: t}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", raw)
	}
	return NewDate(t), nil
}

// NewDate drops the clock and zone of t, keeping its calendar date.
func NewDate(t time.Time) Date {
	return Date{Time: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
}

// String renders "YYYY-MM-DD".
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// DayOfWeek returns the English weekday name used by recurring availability.
func (d Date) DayOfWeek() string {
	return d.Weekday().String()
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Scan implements sql.Scanner.
func (d *Date) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
		return nil
	case time.Time:
		*d = NewDate(v)
		return nil
	case []byte:
		return d.scanString(string(v))
	case string:
		return d.scanString(v)
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
}

func (d *Date) scanString(raw string) error {
	parsed, err := ParseDate(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value implements driver.Valuer.
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.String(), nil
}

// Weekdays lists valid day-of-week names in calendar order.
var Weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// NormalizeDayOfWeek returns the canonical capitalised weekday name, or "" if raw is not a weekday.
func NormalizeDayOfWeek(raw string) string {
	for _, day := range Weekdays {
		if strings.EqualFold(day, strings.TrimSpace(raw)) {
			return day
		}
	}
	return ""
}

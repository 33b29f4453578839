package tracker

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const day = 24 * time.Hour

// TimeOfDay is a wall-clock time without a date, stored as the offset from
// midnight with second precision. Valid values lie in [00:00:00, 24:00:00).
type TimeOfDay time.Duration

// NewTimeOfDay builds a clock time from its parts.
func NewTimeOfDay(hour, minute, second int) (TimeOfDay, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 || second < 0 || second > 59 {
		return 0, fmt.Errorf("invalid clock time %02d:%02d:%02d", hour, minute, second)
	}
	return TimeOfDay(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute + time.Duration(second)*time.Second), nil
}

// MustTimeOfDay is NewTimeOfDay for constants; it panics on bad input.
func MustTimeOfDay(hour, minute, second int) TimeOfDay {
	t, err := NewTimeOfDay(hour, minute, second)
	if err != nil {
		panic(err)
	}
	return t
}

// ParseTimeOfDay accepts "HH:MM" or "HH:MM:SS". Fractional seconds, as
// returned by Postgres TIME columns, are accepted and dropped.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return NewTimeOfDay(t.Hour(), t.Minute(), t.Second())
		}
	}
	return 0, fmt.Errorf("invalid clock time %q: want HH:MM or HH:MM:SS", s)
}

func (t TimeOfDay) parts() (int, int, int) {
	d := time.Duration(t)
	return int(d / time.Hour), int(d % time.Hour / time.Minute), int(d % time.Minute / time.Second)
}

// On places the clock time on the calendar day of anchor.
func (t TimeOfDay) On(anchor time.Time) time.Time {
	h, m, s := t.parts()
	y, mo, d := anchor.Date()
	return time.Date(y, mo, d, h, m, s, 0, anchor.Location())
}

func (t TimeOfDay) String() string {
	h, m, s := t.parts()
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Scan reads a Postgres TIME value.
func (t *TimeOfDay) Scan(src any) error {
	switch v := src.(type) {
	case string:
		parsed, err := ParseTimeOfDay(v)
		if err != nil {
			return err
		}
		*t = parsed
	case []byte:
		return t.Scan(string(v))
	case time.Time:
		parsed, err := NewTimeOfDay(v.Hour(), v.Minute(), v.Second())
		if err != nil {
			return err
		}
		*t = parsed
	default:
		return fmt.Errorf("cannot scan %T into TimeOfDay", src)
	}
	return nil
}

func (t TimeOfDay) Value() (driver.Value, error) {
	return t.String(), nil
}

// Date is a calendar date without a clock component.
type Date struct {
	time.Time
}

const dateLayout = "2006-01-02"

// NewDate returns the date y-m-d.
func NewDate(y int, m time.Month, d int) Date {
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date.
func DateOf(t time.Time) Date {
	return NewDate(t.Date())
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return DateOf(t), nil
}

// AddDays returns the date n days later.
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time.AddDate(0, 0, n))
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Scan reads a Postgres DATE value.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*d = DateOf(v)
	case string:
		parsed, err := ParseDate(v)
		if err != nil {
			return err
		}
		*d = parsed
	case []byte:
		return d.Scan(string(v))
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
	return nil
}

func (d Date) Value() (driver.Value, error) {
	return d.String(), nil
}

// Span is an elapsed duration. It is persisted as whole seconds and rendered
// as H:MM:SS.
type Span time.Duration

// ParseSpan accepts "H:MM", "H:MM:SS" or a Go duration string such as "1h30m".
func ParseSpan(s string) (Span, error) {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, ":") {
		d, err := time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		return Span(d.Truncate(time.Second)), nil
	}
	neg := strings.HasPrefix(s, "-")
	parts := strings.Split(strings.TrimPrefix(s, "-"), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid duration %q: want H:MM[:SS]", s)
	}
	units := []time.Duration{time.Hour, time.Minute, time.Second}
	var total time.Duration
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || (i > 0 && n > 59) {
			return 0, fmt.Errorf("invalid duration %q: want H:MM[:SS]", s)
		}
		total += time.Duration(n) * units[i]
	}
	if neg {
		total = -total
	}
	return Span(total), nil
}

// Seconds returns the span in whole seconds.
func (s Span) Seconds() int64 {
	return int64(time.Duration(s) / time.Second)
}

func (s Span) String() string {
	d := time.Duration(s).Truncate(time.Second)
	sign := ""
	if d < 0 {
		sign = "-"
		d = -d
	}
	return fmt.Sprintf("%s%d:%02d:%02d", sign, int64(d/time.Hour), int64(d%time.Hour/time.Minute), int64(d%time.Minute/time.Second))
}

func (s Span) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Span) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := ParseSpan(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Scan reads a BIGINT seconds column.
func (s *Span) Scan(src any) error {
	switch v := src.(type) {
	case int64:
		*s = Span(time.Duration(v) * time.Second)
	case int32:
		*s = Span(time.Duration(v) * time.Second)
	case []byte:
		n, err := strconv.ParseInt(string(v), 10, 64)
		if err != nil {
			return err
		}
		*s = Span(time.Duration(n) * time.Second)
	case string:
		return s.Scan([]byte(v))
	default:
		return fmt.Errorf("cannot scan %T into Span", src)
	}
	return nil
}

func (s Span) Value() (driver.Value, error) {
	return s.Seconds(), nil
}

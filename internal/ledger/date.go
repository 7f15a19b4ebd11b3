package ledger

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	dateLayout  = "2006-01-02"
	monthLayout = "2006-01"
)

// Date is a calendar day with no time zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate parses a zero-padded YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("date must be YYYY-MM-DD: %q", s)
	}
	return DateOf(t), nil
}

// DateOf returns the calendar day of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Time returns midnight UTC of the day.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
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

// YearMonth is a calendar month.
type YearMonth struct {
	Year  int
	Month time.Month
}

// ParseYearMonth parses a zero-padded YYYY-MM string.
func ParseYearMonth(s string) (YearMonth, error) {
	t, err := time.Parse(monthLayout, s)
	if err != nil {
		return YearMonth{}, fmt.Errorf("month must be YYYY-MM: %q", s)
	}
	return YearMonth{Year: t.Year(), Month: t.Month()}, nil
}

// Contains reports whether d falls inside the month.
func (ym YearMonth) Contains(d Date) bool {
	return d.Year == ym.Year && d.Month == ym.Month
}

func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month))
}

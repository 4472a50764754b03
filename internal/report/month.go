// Package report builds per-question aggregate summaries from raw response
// rows for a selected calendar month.
package report

import (
	"fmt"
	"time"
)

// Month is a calendar-month bucket. The zero value is invalid.
type Month struct {
	Year  int
	Month time.Month
}

// CurrentMonth resolves "now" in UTC so server and client timezone skew
// cannot shift the bucket boundary.
func CurrentMonth(now time.Time) Month {
	utc := now.UTC()
	return Month{Year: utc.Year(), Month: utc.Month()}
}

func NewMonth(year, month int) (Month, error) {
	if year < 2000 || year > 9999 {
		return Month{}, fmt.Errorf("year %d out of range", year)
	}
	if month < 1 || month > 12 {
		return Month{}, fmt.Errorf("month %d out of range", month)
	}
	return Month{Year: year, Month: time.Month(month)}, nil
}

// ParseMonth parses a "YYYY-MM" bucket label.
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Month{}, fmt.Errorf("parse month %q: %w", s, err)
	}
	return Month{Year: t.Year(), Month: t.Month()}, nil
}

// String returns the bucket label stored in the database, e.g. "2026-08".
func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

func (m Month) IsZero() bool {
	return m.Year == 0 && m.Month == 0
}

func (m Month) Before(other Month) bool {
	if m.Year != other.Year {
		return m.Year < other.Year
	}
	return m.Month < other.Month
}

func (m Month) Next() Month {
	if m.Month == time.December {
		return Month{Year: m.Year + 1, Month: time.January}
	}
	return Month{Year: m.Year, Month: m.Month + 1}
}

func (m Month) Prev() Month {
	if m.Month == time.January {
		return Month{Year: m.Year - 1, Month: time.December}
	}
	return Month{Year: m.Year, Month: m.Month - 1}
}

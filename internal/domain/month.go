package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// Month is a calendar month. Its text form is "MM/YYYY"; comparisons are
// always chronological, never lexical.
type Month struct {
	Year  int
	Month time.Month
}

// MonthOf returns the month a date falls in.
func MonthOf(d civil.Date) Month {
	return Month{Year: d.Year, Month: d.Month}
}

// ParseMonth parses "MM/YYYY" (a single-digit month is accepted).
func ParseMonth(s string) (Month, error) {
	mm, yyyy, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return Month{}, fmt.Errorf("ParseMonth: %q: want MM/YYYY", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 1 || m > 12 {
		return Month{}, fmt.Errorf("ParseMonth: %q: invalid month", s)
	}
	y, err := strconv.Atoi(yyyy)
	if err != nil || len(yyyy) != 4 {
		return Month{}, fmt.Errorf("ParseMonth: %q: invalid year", s)
	}
	return Month{Year: y, Month: time.Month(m)}, nil
}

func (m Month) String() string {
	return fmt.Sprintf("%02d/%04d", int(m.Month), m.Year)
}

// IsZero reports whether m is the zero Month.
func (m Month) IsZero() bool {
	return m.Year == 0 && m.Month == 0
}

// Compare returns -1, 0 or +1 depending on whether m is before, equal to or
// after o.
func (m Month) Compare(o Month) int {
	a, b := m.index(), o.index()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Before reports whether m is chronologically before o.
func (m Month) Before(o Month) bool {
	return m.Compare(o) < 0
}

// Next returns the following month.
func (m Month) Next() Month {
	return monthFromIndex(m.index() + 1)
}

// Prev returns the preceding month.
func (m Month) Prev() Month {
	return monthFromIndex(m.index() - 1)
}

func (m Month) index() int {
	return m.Year*12 + int(m.Month) - 1
}

func monthFromIndex(i int) Month {
	return Month{Year: i / 12, Month: time.Month(i%12 + 1)}
}

// MarshalText implements encoding.TextMarshaler.
func (m Month) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Month) UnmarshalText(b []byte) error {
	parsed, err := ParseMonth(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

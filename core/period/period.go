// Package period models monthly billing periods ("YYYY-MM") and the instant they expire.
package period

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidPeriod is matched by every *InvalidPeriodError through errors.Is.
var ErrInvalidPeriod = errors.New("invalid period")

// InvalidPeriodError reports a malformed or out of range period string.
type InvalidPeriodError struct {
	Period string // as received
}

func (err *InvalidPeriodError) Error() string {
	return fmt.Sprintf("Invalid period received for expiration calculation: %q", err.Period)
}

func (err *InvalidPeriodError) Is(target error) bool {
	return target == ErrInvalidPeriod
}

// Period is a calendar month.
type Period struct {
	Year  int
	Month time.Month
}

// Parse parses "YYYY-MM" (or "YYYY-M") into a Period.
func Parse(s string) (Period, error) {
	invalid := &InvalidPeriodError{Period: s}

	parts := strings.Split(s, "-")
	if len(parts) != 2 || !isDigits(parts[0]) || !isDigits(parts[1]) {
		return Period{}, invalid
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return Period{}, invalid
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil || month < 1 || month > 12 {
		return Period{}, invalid
	}
	return Period{Year: year, Month: time.Month(month)}, nil
}

// MustParse is like Parse but panics on invalid input. For tests & constants.
func MustParse(s string) Period {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

// FromTime returns the Period t falls in, in t's location.
func FromTime(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// ComputeExpiration returns the last instant (23:59:59.999 local time) of the month described by s.
func ComputeExpiration(s string) (time.Time, error) {
	return ComputeExpirationIn(s, time.Local)
}

// ComputeExpirationIn is like ComputeExpiration in the given location.
func ComputeExpirationIn(s string, loc *time.Location) (time.Time, error) {
	p, err := Parse(s)
	if err != nil {
		return time.Time{}, err
	}
	return p.ExpiresAt(loc), nil
}

// ExpiresAt is day 0 of the following month at 23:59:59.999, ie. the last millisecond of p.
func (p Period) ExpiresAt(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(p.Year, p.Month+1, 0, 23, 59, 59, int(999*time.Millisecond), loc)
}

// Start is the first instant of p.
func (p Period) Start(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, loc)
}

// Contains reports whether t falls within p, in the location of t.
func (p Period) Contains(t time.Time) bool {
	return FromTime(t) == p
}

// Next returns the following month.
func (p Period) Next() Period {
	if p.Month == time.December {
		return Period{Year: p.Year + 1, Month: time.January}
	}
	return Period{Year: p.Year, Month: p.Month + 1}
}

// Days returns the number of days in p.
func (p Period) Days() int {
	return p.ExpiresAt(time.UTC).Day()
}

// String formats p as YYYY-MM.
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

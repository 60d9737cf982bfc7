package core

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidMonthFilter is returned for month filters that are not YYYY-M or YYYY-MM
// with a positive year and a month in 1..12.
var ErrInvalidMonthFilter = errors.New("invalid month filter")

var monthFilterPattern = regexp.MustCompile(`^(\d{4})-(\d{1,2})$`)

// Month is a validated calendar month used to narrow a list query.
type Month struct {
	Year  int
	Month time.Month
}

// ParseMonth parses an optional month filter. An empty value means no filter
// and yields (nil, nil). Single digit months are accepted without padding,
// so "2019-1" and "2019-01" are the same month.
func ParseMonth(raw string) (*Month, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	parts := monthFilterPattern.FindStringSubmatch(raw)
	if parts == nil {
		return nil, fmt.Errorf("%w: %q does not match YYYY-MM", ErrInvalidMonthFilter, raw)
	}

	year, err := strconv.Atoi(parts[1])
	if err != nil || year < 1 {
		return nil, fmt.Errorf("%w: year %q must be a positive integer", ErrInvalidMonthFilter, parts[1])
	}
	month, err := strconv.Atoi(parts[2])
	if err != nil || month < 1 || month > 12 {
		return nil, fmt.Errorf("%w: month %q must be between 1 and 12", ErrInvalidMonthFilter, parts[2])
	}

	return &Month{Year: year, Month: time.Month(month)}, nil
}

// Contains reports whether d falls in the month. Only year and month are compared.
func (m Month) Contains(d Date) bool {
	return d.Year() == m.Year && d.Month() == int(m.Month)
}

// Start returns the first day of the month.
func (m Month) Start() Date {
	return NewDate(m.Year, int(m.Month), 1)
}

// Last returns the last day of the month. Stores compare dates as text, so
// the upper bound stays inside the month: year 9999 has no successor that
// sorts after it.
func (m Month) Last() Date {
	return Date{Time: m.Start().AddDate(0, 1, -1)}
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

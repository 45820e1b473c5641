package period

import (
	"errors"
	"fmt"
	"time"
)

const monthLayout = "2006-01"

// ErrInvalidPeriod is returned for months or quarters outside the accepted format/range.
var ErrInvalidPeriod = errors.New("invalid period")

// ParseMonth validates a "YYYY-MM" month string.
func ParseMonth(s string) (time.Time, error) {
	t, err := time.Parse(monthLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: month %q", ErrInvalidPeriod, s)
	}
	return t, nil
}

// FormatMonth formats a time as "YYYY-MM".
func FormatMonth(t time.Time) string {
	return t.Format(monthLayout)
}

// ValidQuarter reports whether q is 1..4.
func ValidQuarter(q int) bool {
	return q >= 1 && q <= 4
}

// QuarterOf returns the quarter and year a month belongs to.
func QuarterOf(month string) (quarter, year int, err error) {
	t, err := ParseMonth(month)
	if err != nil {
		return 0, 0, err
	}
	return (int(t.Month())-1)/3 + 1, t.Year(), nil
}

// QuarterMonths lists the three months of a quarter in order.
func QuarterMonths(quarter, year int) ([]string, error) {
	if !ValidQuarter(quarter) {
		return nil, fmt.Errorf("%w: quarter %d", ErrInvalidPeriod, quarter)
	}
	first := time.Date(year, time.Month((quarter-1)*3+1), 1, 0, 0, 0, 0, time.UTC)
	return []string{
		FormatMonth(first),
		FormatMonth(first.AddDate(0, 1, 0)),
		FormatMonth(first.AddDate(0, 2, 0)),
	}, nil
}

// YearMonths lists January..December of a year.
func YearMonths(year int) []string {
	months := make([]string, 0, 12)
	for m := 1; m <= 12; m++ {
		months = append(months, FormatMonth(time.Date(year, time.Month(m), 1, 0, 0, 0, 0, time.UTC)))
	}
	return months
}

// MonthRange lists every month from..to inclusive.
func MonthRange(from, to string) ([]string, error) {
	start, err := ParseMonth(from)
	if err != nil {
		return nil, err
	}
	end, err := ParseMonth(to)
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: %s is before %s", ErrInvalidPeriod, to, from)
	}

	var months []string
	for t := start; !t.After(end); t = t.AddDate(0, 1, 0) {
		months = append(months, FormatMonth(t))
	}
	return months, nil
}

// Years returns the distinct years covered by months, in first-seen order.
func Years(months []string) []int {
	seen := make(map[int]bool)
	var years []int
	for _, m := range months {
		t, err := ParseMonth(m)
		if err != nil {
			continue
		}
		if !seen[t.Year()] {
			seen[t.Year()] = true
			years = append(years, t.Year())
		}
	}
	return years
}

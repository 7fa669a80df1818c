package timex

import (
	"fmt"
	"time"
)

// Layouts for the date-derived keys of the vault.
const (
	DateLayout  = "2006-01-02"
	MonthLayout = "2006-01"
	TimeLayout  = "15:04:05"
)

// ParseDate parses a yyyy-mm-dd string as a UTC calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want yyyy-mm-dd", s)
	}
	return t, nil
}

// ParseMonth parses a yyyy-mm string as the first day of that month in UTC.
func ParseMonth(s string) (time.Time, error) {
	t, err := time.ParseInLocation(MonthLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid month %q, want yyyy-mm", s)
	}
	return t, nil
}

// MonthsBetween returns the month keys of every calendar month overlapping
// [start, end], partial months included. It is empty when end is before start.
func MonthsBetween(start, end time.Time) []string {
	var months []string
	cur := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, time.UTC)
	for !cur.After(last) {
		months = append(months, cur.Format(MonthLayout))
		cur = cur.AddDate(0, 1, 0)
	}
	return months
}

// DaySpan is the number of calendar days in [start, end], or 0 when end is
// before start. Unlike len(DaysBetween) it does not allocate.
func DaySpan(start, end time.Time) int {
	first := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	last := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	if last.Before(first) {
		return 0
	}
	// Unix seconds, since Sub saturates for spans beyond ~292 years.
	return int((last.Unix()-first.Unix())/86400) + 1
}

// DaysBetween returns the date keys of every day in [start, end].
func DaysBetween(start, end time.Time) []string {
	var days []string
	cur := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	last := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	for !cur.After(last) {
		days = append(days, cur.Format(DateLayout))
		cur = cur.AddDate(0, 0, 1)
	}
	return days
}

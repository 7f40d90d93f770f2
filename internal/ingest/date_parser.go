package ingest

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

const isoDate = "2006-01-02"

// endDateFields lists the labels an end date has appeared under, in order of
// preference. The search endpoint uses "End Date"; alternate response shapes
// use the snake_case or long-form period-of-performance names.
var endDateFields = []string{
	"End Date",
	"period_of_performance_current_end_date",
	"period_of_performance_potential_end_date",
	"Period of Performance Current End Date",
	"Period of Performance Potential End Date",
}

var datePrefixRegex = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)

// ExtractEndDate returns the record's period-of-performance end date as
// YYYY-MM-DD, or "" when it is absent or malformed. Only the first non-empty
// candidate field is considered; a malformed primary value is not rescued by
// a fallback label.
func ExtractEndDate(r Record) string {
	for _, field := range endDateFields {
		raw := strings.TrimSpace(Normalize(r.Get(field)))
		if raw == "" {
			continue
		}
		return dateOnly(raw)
	}
	return ""
}

// dateOnly returns the leading YYYY-MM-DD of s when it is a real calendar
// date. Works for "2026-02-01" and "2026-02-01T00:00:00" alike.
func dateOnly(s string) string {
	m := datePrefixRegex.FindString(s)
	if m == "" {
		return ""
	}
	if _, err := time.Parse(isoDate, m); err != nil {
		return ""
	}
	return m
}

// ParseDate parses a YYYY-MM-DD calendar date as UTC midnight.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(isoDate, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("unable to parse date %q: want YYYY-MM-DD", s)
	}
	return t, nil
}

// Window is the inclusive end-date range a run reports on.
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow builds a window from two calendar dates, dropping any time of day.
func NewWindow(start, end time.Time) (Window, error) {
	w := Window{Start: truncateDay(start), End: truncateDay(end)}
	if w.Start.After(w.End) {
		return Window{}, fmt.Errorf("window start %s is after end %s", w.StartISO(), w.EndISO())
	}
	return w, nil
}

func (w Window) StartISO() string { return w.Start.Format(isoDate) }
func (w Window) EndISO() string   { return w.End.Format(isoDate) }

// Contains reports whether a YYYY-MM-DD date falls inside the window,
// bounds included. Empty dates are never contained.
func (w Window) Contains(date string) bool {
	if date == "" {
		return false
	}
	return w.StartISO() <= date && date <= w.EndISO()
}

func (w Window) String() string {
	return w.StartISO() + " to " + w.EndISO()
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

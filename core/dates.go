/*
Package core provides the shared leaf types for the attendance engine.

PURPOSE:
  This package contains the domain-agnostic building blocks every other
  package depends on: civil-date handling, the error taxonomy, the member
  snapshot type, and the collaborator/persistence interfaces. It has no
  dependencies on the domain packages.

KEY CONCEPTS IN THIS FILE (dates.go):
  - Day: every submission and leave record is keyed by a civil date in the
    canonical DD-MM-YYYY form the ledgers store.
  - DayRange: an inclusive start/end pair used by leave requests.
  - IST: the UTC+5:30 frame the daily sweeps evaluate "yesterday" in.

DATE FORMATS:
  The canonical stored form is DD-MM-YYYY. Inputs are also accepted in
  ISO YYYY-MM-DD and converted; anything else is rejected with a
  ValidationError. The two formats are the only ones the ledgers have
  ever contained, so a parse failure on a stored date means the record
  is skipped, not that the query fails.

SEE ALSO:
  - errors.go: ValidationError returned by the parse helpers
  - submission, leave: the ledgers keyed by these dates
*/
package core

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// =============================================================================
// CANONICAL DAY FORMAT
// =============================================================================

const (
	// DayFormat is the canonical stored form for civil dates.
	DayFormat = "02-01-2006"

	// ISODayFormat is accepted on input and converted to DayFormat.
	ISODayFormat = "2006-01-02"
)

// IST is the civil-date frame for the daily sweeps (UTC+5:30).
var IST = time.FixedZone("IST", 5*3600+30*60)

var dayPattern = regexp.MustCompile(`^\d{2}-\d{2}-\d{4}$`)

// ParseDay parses a date in either accepted format and returns it at
// day granularity in UTC. Rejects anything else with a ValidationError.
func ParseDay(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, &ValidationError{Field: "date", Message: "date cannot be empty"}
	}
	if d, err := time.ParseInLocation(DayFormat, s, time.UTC); err == nil {
		return d, nil
	}
	if d, err := time.ParseInLocation(ISODayFormat, s, time.UTC); err == nil {
		return d, nil
	}
	return time.Time{}, &ValidationError{
		Field:   "date",
		Message: fmt.Sprintf("invalid date format: %s, expected DD-MM-YYYY", s),
	}
}

// ParseDayStrict accepts only the canonical DD-MM-YYYY form. Used for
// user-entered dates where the placeholder promises that exact shape.
func ParseDayStrict(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, &ValidationError{Field: "date", Message: "date cannot be empty"}
	}
	if !dayPattern.MatchString(s) {
		return time.Time{}, &ValidationError{
			Field:   "date",
			Message: "date must be in DD-MM-YYYY format (e.g., 14-09-2025)",
		}
	}
	d, err := time.ParseInLocation(DayFormat, s, time.UTC)
	if err != nil {
		return time.Time{}, &ValidationError{
			Field:   "date",
			Message: "invalid date, check day/month values are correct",
		}
	}
	return d, nil
}

// FormatDay renders a time in the canonical stored form.
func FormatDay(t time.Time) string { return t.Format(DayFormat) }

// Day truncates a time to day granularity in its own location.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// TodayIn returns today's civil date in the given location, at day
// granularity in UTC so it compares cleanly against parsed dates.
func TodayIn(loc *time.Location) time.Time {
	now := time.Now().In(loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// =============================================================================
// DAY RANGE - inclusive start/end pair
// =============================================================================

type DayRange struct {
	Start time.Time
	End   time.Time
}

// Days returns the inclusive day count of the range.
func (r DayRange) Days() int {
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}

// Contains reports whether d falls inside the range, endpoints included.
func (r DayRange) Contains(d time.Time) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}

func (r DayRange) String() string {
	return FormatDay(r.Start) + " to " + FormatDay(r.End)
}

const rangeSeparator = " to "

// ParseDayRange parses "DD-MM-YYYY to DD-MM-YYYY". Both endpoints are
// required and start must not be after end.
func ParseDayRange(s string) (DayRange, error) {
	if !strings.Contains(s, rangeSeparator) {
		return DayRange{}, &ValidationError{
			Field:   "date_range",
			Message: "date range must be in format 'DD-MM-YYYY to DD-MM-YYYY'",
		}
	}
	parts := strings.Split(s, rangeSeparator)
	if len(parts) != 2 {
		return DayRange{}, &ValidationError{
			Field:   "date_range",
			Message: "date range must contain exactly one ' to ' separator",
		}
	}
	startStr, endStr := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	if startStr == "" || endStr == "" {
		return DayRange{}, &ValidationError{
			Field:   "date_range",
			Message: "both start and end dates are required",
		}
	}
	start, err := ParseDayStrict(startStr)
	if err != nil {
		return DayRange{}, err
	}
	end, err := ParseDayStrict(endStr)
	if err != nil {
		return DayRange{}, err
	}
	if start.After(end) {
		return DayRange{}, &ValidationError{
			Field:   "date_range",
			Message: "start date cannot be after end date",
		}
	}
	return DayRange{Start: start, End: end}, nil
}

// =============================================================================
// CALENDAR HELPERS
// =============================================================================

// WeekStart returns the Monday of the week containing d.
func WeekStart(d time.Time) time.Time {
	offset := (int(d.Weekday()) + 6) % 7 // Monday = 0
	return Day(d).AddDate(0, 0, -offset)
}

// IsWeekend reports whether d is a Saturday or Sunday.
func IsWeekend(d time.Time) bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// MonthKey renders the yyyy-mm key used by the warning ledger.
func MonthKey(t time.Time) string { return t.Format("2006-01") }

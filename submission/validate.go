/*
validate.go - Input validation for status updates

Every rule runs before the first ledger write; a submission that fails any
check leaves no partial state behind. All failures are ValidationErrors
reported verbatim to the submitting user.
*/
package submission

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/crewtrack/attendance-engine/core"
)

// Daily-hour bounds and minimums. Work-from-hostel halves the minimum.
var (
	maxDailyHours = decimal.NewFromInt(15)

	minWeekday    = decimal.NewFromInt(4)
	minWeekdayWFH = decimal.NewFromInt(2)
	minWeekend    = decimal.NewFromInt(6)
	minWeekendWFH = decimal.NewFromInt(3)
)

const (
	maxDescriptionLen = 5000
	maxBlockersLen    = 500
)

// ValidateStatusDate parses a status-update date. Backdated submissions
// are allowed; future dates are not. today is the civil date in IST.
func ValidateStatusDate(raw string, today time.Time) (time.Time, error) {
	day, err := core.ParseDayStrict(raw)
	if err != nil {
		return time.Time{}, err
	}
	if day.After(today) {
		return time.Time{}, &core.ValidationError{Field: "date", Message: "date cannot be in the future"}
	}
	return day, nil
}

// IsLate reports whether a submission for day is backdated.
func IsLate(day, today time.Time) bool { return day.Before(today) }

// ValidateHours parses and bounds the hours-worked field against the
// day-type minimum and the 15-hour ceiling.
func ValidateHours(raw string, wfh, weekend bool) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, &core.ValidationError{Field: "hours", Message: "hours cannot be empty"}
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return decimal.Zero, &core.ValidationError{
			Field:   "hours",
			Message: "hours must be a valid number (e.g., 8, 8.5, 6.25)",
		}
	}
	hours := decimal.NewFromFloat(f)
	if hours.IsNegative() {
		return decimal.Zero, &core.ValidationError{Field: "hours", Message: "hours cannot be negative"}
	}
	if hours.GreaterThan(maxDailyHours) {
		return decimal.Zero, &core.ValidationError{Field: "hours", Message: "hours cannot exceed 15 in a single day"}
	}

	min, dayType := minWeekday, "weekday"
	switch {
	case weekend && wfh:
		min, dayType = minWeekendWFH, "weekend"
	case weekend:
		min, dayType = minWeekend, "weekend"
	case wfh:
		min = minWeekdayWFH
	}
	if hours.LessThan(min) {
		wfhNote := ""
		if wfh {
			wfhNote = " (WFH)"
		}
		return decimal.Zero, &core.ValidationError{
			Field:   "hours",
			Message: fmt.Sprintf("minimum %s hours required for %s%s, you submitted %s", min, dayType, wfhNote, hours),
		}
	}
	return hours, nil
}

// ValidateDescription bounds and trims the work description.
func ValidateDescription(raw string) (string, error) {
	desc := strings.TrimSpace(raw)
	if desc == "" {
		return "", &core.ValidationError{Field: "description", Message: "work description cannot be empty"}
	}
	if len(desc) > maxDescriptionLen {
		return "", &core.ValidationError{Field: "description", Message: "work description cannot exceed 5000 characters"}
	}
	if distinctMeaningfulChars(desc) < 3 {
		return "", &core.ValidationError{Field: "description", Message: "work description must contain meaningful content"}
	}
	return desc, nil
}

// ValidateBlockers normalizes the optional blockers field. Empty becomes
// the literal "None".
func ValidateBlockers(raw string) (string, error) {
	blockers := strings.TrimSpace(raw)
	if blockers == "" {
		return "None", nil
	}
	if len(blockers) > maxBlockersLen {
		return "", &core.ValidationError{Field: "blockers", Message: "blockers description cannot exceed 500 characters"}
	}
	return blockers, nil
}

func distinctMeaningfulChars(s string) int {
	seen := make(map[rune]bool)
	for _, r := range strings.ToLower(s) {
		if r != ' ' {
			seen[r] = true
		}
	}
	return len(seen)
}

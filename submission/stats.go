/*
stats.go - Derived statistics over the submission ledger

All aggregates are computed on demand from the stored submissions; only the
per-user running counters are maintained incrementally. Stored dates that
fail to parse are skipped, not failed: the ledger has only ever contained
the two accepted formats, so a bad date is a damaged record, not a bad query.
*/
package submission

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/crewtrack/attendance-engine/core"
)

// WeeklyTargetHours is the weekly minimum every member is measured against.
var WeeklyTargetHours = decimal.NewFromInt(32)

// =============================================================================
// WEEKLY STATS
// =============================================================================

type DayHours struct {
	Date    string          `json:"date"`
	DayName string          `json:"day_name"`
	Hours   decimal.Decimal `json:"hours"`
}

type WeeklyStats struct {
	TotalHours       decimal.Decimal `json:"total_hours"`
	SubmissionsCount int             `json:"submissions_count"`
	TargetMet        bool            `json:"target_met"`
	DailyBreakdown   []DayHours      `json:"daily_breakdown"`
	RemainingHours   decimal.Decimal `json:"remaining_hours"`
}

// WeeklyStats aggregates the week starting at weekStart (a Monday). The
// breakdown always has 7 zero-filled entries, whether or not the week has
// started.
func (s *Store) WeeklyStats(userID core.MemberID, weekStart time.Time) WeeklyStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := WeeklyStats{
		TotalHours:     decimal.Zero,
		DailyBreakdown: make([]DayHours, 0, 7),
	}

	ledger := s.users[userID]
	for i := 0; i < 7; i++ {
		day := weekStart.AddDate(0, 0, i)
		dateStr := core.FormatDay(day)
		dayHours := decimal.Zero

		if ledger != nil {
			for _, sub := range ledger.Submissions {
				if sub.Date == dateStr {
					dayHours = dayHours.Add(sub.Hours)
					stats.SubmissionsCount++
				}
			}
		}
		stats.TotalHours = stats.TotalHours.Add(dayHours)
		stats.DailyBreakdown = append(stats.DailyBreakdown, DayHours{
			Date:    dateStr,
			DayName: day.Weekday().String(),
			Hours:   dayHours,
		})
	}

	stats.TargetMet = stats.TotalHours.GreaterThanOrEqual(WeeklyTargetHours)
	stats.RemainingHours = decimal.Max(decimal.Zero, WeeklyTargetHours.Sub(stats.TotalHours))
	return stats
}

// WeeklyHours returns the total hours in the week containing day.
func (s *Store) WeeklyHours(userID core.MemberID, day time.Time) decimal.Decimal {
	return s.WeeklyStats(userID, core.WeekStart(day)).TotalHours
}

// =============================================================================
// MONTHLY STATS
// =============================================================================

type MonthlyStats struct {
	TotalHours       decimal.Decimal `json:"total_hours"`
	TotalSubmissions int             `json:"total_submissions"`
	LateSubmissions  int             `json:"late_submissions"`
	DaysWorked       int             `json:"days_worked"`
}

// MonthlyStats aggregates submissions whose parsed date falls in the
// month/year. Unparsable stored dates are skipped.
func (s *Store) MonthlyStats(userID core.MemberID, month time.Month, year int) MonthlyStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := MonthlyStats{TotalHours: decimal.Zero}
	ledger, ok := s.users[userID]
	if !ok {
		return stats
	}

	daysWorked := make(map[string]bool)
	for _, sub := range ledger.Submissions {
		day, err := core.ParseDay(sub.Date)
		if err != nil {
			logSkippedDate(userID, sub.Date)
			continue
		}
		if day.Month() != month || day.Year() != year {
			continue
		}
		stats.TotalHours = stats.TotalHours.Add(sub.Hours)
		stats.TotalSubmissions++
		daysWorked[sub.Date] = true
		if sub.Late {
			stats.LateSubmissions++
		}
	}
	stats.DaysWorked = len(daysWorked)
	return stats
}

// =============================================================================
// RANGE STATS
// =============================================================================

// LeaveCounter supplies the casual-leave side of a range aggregate. The
// leave ledger implements it; tests use a stub.
type LeaveCounter interface {
	LeavesStartingIn(userID core.MemberID, from, to time.Time) int
}

type RangeStats struct {
	TotalStatusUpdates int             `json:"total_status_updates"`
	TotalHoursWorked   decimal.Decimal `json:"total_hours_worked"`
	TotalLeaves        int             `json:"total_leaves"`
	LateStatusHours    decimal.Decimal `json:"late_status_hours"`
	TotalSubmissions   int             `json:"total_submissions"`
}

// RangeStats aggregates the inclusive [from, to] range. TotalLeaves counts
// casual-leave records whose start falls in range, not full overlap.
func (s *Store) RangeStats(userID core.MemberID, from, to time.Time, leaves LeaveCounter) RangeStats {
	s.mu.Lock()
	stats := RangeStats{
		TotalHoursWorked: decimal.Zero,
		LateStatusHours:  decimal.Zero,
	}
	if ledger, ok := s.users[userID]; ok {
		for _, sub := range ledger.Submissions {
			day, err := core.ParseDay(sub.Date)
			if err != nil {
				logSkippedDate(userID, sub.Date)
				continue
			}
			if day.Before(from) || day.After(to) {
				continue
			}
			stats.TotalStatusUpdates++
			stats.TotalSubmissions++
			stats.TotalHoursWorked = stats.TotalHoursWorked.Add(sub.Hours)
			if sub.Late {
				stats.LateStatusHours = stats.LateStatusHours.Add(sub.Hours)
			}
		}
	}
	s.mu.Unlock()

	if leaves != nil {
		stats.TotalLeaves = leaves.LeavesStartingIn(userID, from, to)
	}
	return stats
}

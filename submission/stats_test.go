package submission_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/crewtrack/attendance-engine/core"
	"github.com/crewtrack/attendance-engine/submission"
)

// =============================================================================
// WEEKLY AGGREGATE TESTS
// =============================================================================

func TestWeeklyStats_TotalEqualsBreakdownSum(t *testing.T) {
	// GIVEN: Submissions across a week, one overridden
	// WHEN: Computing the weekly aggregate
	// THEN: TotalHours equals the sum of the daily breakdown exactly

	s := newTestStore(t)
	record(t, s, "u1", "10-03-2025", "8")    // Monday
	record(t, s, "u1", "11-03-2025", "6.5")  // Tuesday
	record(t, s, "u1", "11-03-2025", "7.25") // Tuesday override
	record(t, s, "u1", "13-03-2025", "4")    // Thursday

	weekStart, _ := core.ParseDay("10-03-2025")
	stats := s.WeeklyStats("u1", weekStart)

	sum := decimal.Zero
	for _, d := range stats.DailyBreakdown {
		sum = sum.Add(d.Hours)
	}
	if !stats.TotalHours.Equal(sum) {
		t.Errorf("total %s != breakdown sum %s", stats.TotalHours, sum)
	}

	want, _ := decimal.NewFromString("19.25")
	if !stats.TotalHours.Equal(want) {
		t.Errorf("expected 19.25 total, got %s", stats.TotalHours)
	}
	if len(stats.DailyBreakdown) != 7 {
		t.Errorf("breakdown must always have 7 entries, got %d", len(stats.DailyBreakdown))
	}
	if stats.TargetMet {
		t.Error("19.25 hours should not meet the 32 hour target")
	}
	remaining, _ := decimal.NewFromString("12.75")
	if !stats.RemainingHours.Equal(remaining) {
		t.Errorf("expected 12.75 remaining, got %s", stats.RemainingHours)
	}
}

func TestWeeklyStats_TargetMet(t *testing.T) {
	s := newTestStore(t)
	record(t, s, "u1", "10-03-2025", "12")
	record(t, s, "u1", "11-03-2025", "12")
	record(t, s, "u1", "12-03-2025", "8")

	weekStart, _ := core.ParseDay("10-03-2025")
	stats := s.WeeklyStats("u1", weekStart)

	if !stats.TargetMet {
		t.Error("32 hours exactly should meet the target")
	}
	if !stats.RemainingHours.IsZero() {
		t.Errorf("remaining should clamp to zero, got %s", stats.RemainingHours)
	}
}

func TestWeeklyStats_EmptyWeek(t *testing.T) {
	s := newTestStore(t)
	weekStart, _ := core.ParseDay("10-03-2025")
	stats := s.WeeklyStats("nobody", weekStart)

	if !stats.TotalHours.IsZero() || stats.SubmissionsCount != 0 {
		t.Error("unknown member should aggregate to zero")
	}
	if len(stats.DailyBreakdown) != 7 {
		t.Errorf("empty week still gets 7 breakdown entries, got %d", len(stats.DailyBreakdown))
	}
}

// =============================================================================
// MONTHLY AND RANGE AGGREGATES
// =============================================================================

func TestMonthlyStats(t *testing.T) {
	s := newTestStore(t)
	record(t, s, "u1", "28-02-2025", "8") // previous month, excluded
	record(t, s, "u1", "03-03-2025", "8")
	record(t, s, "u1", "04-03-2025", "6")

	stats := s.MonthlyStats("u1", time.March, 2025)
	if stats.TotalSubmissions != 2 {
		t.Errorf("expected 2 March submissions, got %d", stats.TotalSubmissions)
	}
	if !stats.TotalHours.Equal(decimal.NewFromInt(14)) {
		t.Errorf("expected 14 hours, got %s", stats.TotalHours)
	}
	if stats.DaysWorked != 2 {
		t.Errorf("expected 2 days worked, got %d", stats.DaysWorked)
	}
}

type stubLeaves struct{ count int }

func (s stubLeaves) LeavesStartingIn(core.MemberID, time.Time, time.Time) int { return s.count }

func TestRangeStats_InclusiveEndpoints(t *testing.T) {
	// GIVEN: Submissions on both endpoints and one outside
	// WHEN: Aggregating the inclusive range
	// THEN: Endpoint submissions count, the outside one does not

	s := newTestStore(t)
	record(t, s, "u1", "01-03-2025", "8")
	record(t, s, "u1", "05-03-2025", "6")
	record(t, s, "u1", "06-03-2025", "7")

	from, _ := core.ParseDay("01-03-2025")
	to, _ := core.ParseDay("05-03-2025")
	stats := s.RangeStats("u1", from, to, stubLeaves{count: 2})

	if stats.TotalStatusUpdates != 2 {
		t.Errorf("expected 2 updates in range, got %d", stats.TotalStatusUpdates)
	}
	if !stats.TotalHoursWorked.Equal(decimal.NewFromInt(14)) {
		t.Errorf("expected 14 hours, got %s", stats.TotalHoursWorked)
	}
	if stats.TotalLeaves != 2 {
		t.Errorf("leave count should come from the counter, got %d", stats.TotalLeaves)
	}
}

func TestRangeStats_LateHours(t *testing.T) {
	s := newTestStore(t)
	h, _ := decimal.NewFromString("6")
	if _, err := s.Record(context.Background(), submission.RecordInput{
		UserID:      "u1",
		Username:    "u1",
		Date:        "02-03-2025",
		Hours:       h,
		Description: "backfilled day",
		Blockers:    "None",
		Late:        true,
	}); err != nil {
		t.Fatalf("record: %v", err)
	}

	from, _ := core.ParseDay("01-03-2025")
	to, _ := core.ParseDay("31-03-2025")
	stats := s.RangeStats("u1", from, to, nil)
	if !stats.LateStatusHours.Equal(h) {
		t.Errorf("late hours should sum backdated submissions, got %s", stats.LateStatusHours)
	}
}

package submission_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/crewtrack/attendance-engine/core"
	"github.com/crewtrack/attendance-engine/store/memory"
	"github.com/crewtrack/attendance-engine/submission"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func newTestStore(t *testing.T) *submission.Store {
	t.Helper()
	store, err := submission.NewStore(context.Background(), memory.New())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store
}

func record(t *testing.T, s *submission.Store, user, date, hours string) submission.Submission {
	t.Helper()
	h, err := decimal.NewFromString(hours)
	if err != nil {
		t.Fatalf("bad hours %q: %v", hours, err)
	}
	sub, err := s.Record(context.Background(), submission.RecordInput{
		UserID:      core.MemberID(user),
		Username:    user,
		Date:        date,
		Hours:       h,
		Description: "worked on parser",
		Blockers:    "None",
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	return sub
}

// =============================================================================
// OVERRIDE SEMANTICS
// =============================================================================

func TestRecord_OverrideReplacesHours(t *testing.T) {
	// GIVEN: A submission of 8 hours for a date
	// WHEN: A second submission of 5 hours arrives for the same date
	// THEN: Totals reflect only the second submission, count stays 1

	s := newTestStore(t)
	first := record(t, s, "u1", "10-03-2025", "8")
	second := record(t, s, "u1", "10-03-2025", "5")

	if first.ID == second.ID {
		t.Error("override should mint a fresh id")
	}

	day, _ := core.ParseDay("10-03-2025")
	subs := s.SubmissionsForDate("u1", day)
	if len(subs) != 1 {
		t.Fatalf("expected exactly one submission for the date, got %d", len(subs))
	}
	if !subs[0].Hours.Equal(decimal.NewFromInt(5)) {
		t.Errorf("expected 5 hours after override, got %s", subs[0].Hours)
	}

	stats := s.WeeklyStats("u1", core.WeekStart(day))
	if !stats.TotalHours.Equal(decimal.NewFromInt(5)) {
		t.Errorf("weekly total should be 5 after override, got %s", stats.TotalHours)
	}
	if stats.SubmissionsCount != 1 {
		t.Errorf("expected 1 submission counted, got %d", stats.SubmissionsCount)
	}
}

func TestRecord_ISOInputNormalized(t *testing.T) {
	// An ISO-dated submission and a canonical-dated one for the same day
	// must collide, not coexist.
	s := newTestStore(t)
	record(t, s, "u1", "2025-03-10", "8")
	record(t, s, "u1", "10-03-2025", "6")

	day, _ := core.ParseDay("10-03-2025")
	subs := s.SubmissionsForDate("u1", day)
	if len(subs) != 1 {
		t.Fatalf("expected both formats to key the same day, got %d submissions", len(subs))
	}
	if subs[0].Date != "10-03-2025" {
		t.Errorf("stored date should be canonical, got %q", subs[0].Date)
	}
}

func TestRecord_PersistsAcrossReload(t *testing.T) {
	// GIVEN: A store that has recorded submissions
	// WHEN: A new store loads from the same document store
	// THEN: The ledger round-trips, decimals included

	docs := memory.New()
	s1, err := submission.NewStore(context.Background(), docs)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	h, _ := decimal.NewFromString("7.25")
	if _, err := s1.Record(context.Background(), submission.RecordInput{
		UserID:      "u1",
		Username:    "Asha",
		Date:        "11-03-2025",
		Hours:       h,
		Description: "reviewed PRs",
		Blockers:    "None",
	}); err != nil {
		t.Fatalf("record: %v", err)
	}

	s2, err := submission.NewStore(context.Background(), docs)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	day, _ := core.ParseDay("11-03-2025")
	subs := s2.SubmissionsForDate("u1", day)
	if len(subs) != 1 {
		t.Fatalf("expected 1 submission after reload, got %d", len(subs))
	}
	if !subs[0].Hours.Equal(h) {
		t.Errorf("hours should round-trip exactly, got %s", subs[0].Hours)
	}
	if name, _ := s2.Username("u1"); name != "Asha" {
		t.Errorf("username should round-trip, got %q", name)
	}
}

func TestNewStore_MalformedDocument(t *testing.T) {
	docs := memory.New()
	docs.Seed(core.DocSubmissions, []byte("{not json"))

	_, err := submission.NewStore(context.Background(), docs)
	if err == nil {
		t.Fatal("expected a storage error for a malformed document")
	}
	if !core.IsStorage(err) {
		t.Errorf("expected storage category, got %v", err)
	}
}

// =============================================================================
// NON-SUBMITTER QUERY
// =============================================================================

func TestUsersWithoutSubmission(t *testing.T) {
	// GIVEN: One member submitted, one did not, plus a bot and a member
	//        without the current-team role
	// WHEN: Querying non-submitters for the date
	// THEN: Only the eligible non-submitter is returned

	s := newTestStore(t)
	record(t, s, "submitted", "12-03-2025", "8")

	day, _ := core.ParseDay("12-03-2025")
	members := []core.Member{
		{ID: "submitted", Roles: []string{"current-team"}},
		{ID: "missing", Roles: []string{"current-team"}},
		{ID: "bot", IsBot: true, Roles: []string{"current-team"}},
		{ID: "alumni", Roles: []string{"Mobile"}},
	}

	out := s.UsersWithoutSubmission(members, day)
	if len(out) != 1 || out[0].ID != "missing" {
		t.Fatalf("expected only the eligible non-submitter, got %v", out)
	}
}

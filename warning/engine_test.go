package warning_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/crewtrack/attendance-engine/core"
	"github.com/crewtrack/attendance-engine/eligibility"
	"github.com/crewtrack/attendance-engine/roles"
	"github.com/crewtrack/attendance-engine/store/memory"
	"github.com/crewtrack/attendance-engine/submission"
	"github.com/crewtrack/attendance-engine/warning"
)

// =============================================================================
// FAKES
// =============================================================================

type fakeNotifier struct{ posts []string }

func (n *fakeNotifier) Post(_ context.Context, _, message string) error {
	n.posts = append(n.posts, message)
	return nil
}

type fakeRoles struct {
	granted []string
	revoked []string
}

func (r *fakeRoles) Grant(_ context.Context, _ core.GuildID, id core.MemberID, role string) error {
	r.granted = append(r.granted, string(id)+":"+role)
	return nil
}

func (r *fakeRoles) Revoke(_ context.Context, _ core.GuildID, id core.MemberID, role string) error {
	r.revoked = append(r.revoked, string(id)+":"+role)
	return nil
}

type stubLeave struct{ covered map[core.MemberID]bool }

func (s stubLeave) CoversDate(id core.MemberID, _ time.Time) bool { return s.covered[id] }

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// =============================================================================
// TEST SETUP
// =============================================================================

var testNow = time.Date(2025, time.March, 10, 10, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) (*warning.Engine, *fakeNotifier, *fakeRoles) {
	t.Helper()
	subs, err := submission.NewStore(context.Background(), memory.New())
	if err != nil {
		t.Fatalf("submissions: %v", err)
	}
	engine, err := warning.NewEngine(context.Background(), memory.New())
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	notifier := &fakeNotifier{}
	mutator := &fakeRoles{}
	engine.Submissions = subs
	engine.Leaves = []warning.LeaveSource{stubLeave{}}
	engine.Notifier = notifier
	engine.Roles = mutator
	engine.Channel = "attendance-warnings"
	engine.WithClock(fixedClock{t: testNow})
	return engine, notifier, mutator
}

func eligibleMember(id string) core.Member {
	return core.Member{
		GuildID:     "g1",
		ID:          core.MemberID(id),
		DisplayName: id,
		Roles:       []string{"Mobile", "2nd_years", "current-team"},
	}
}

// =============================================================================
// DECISION CHAIN TESTS
// =============================================================================

func TestShouldWarn_DecisionOrder(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	date, _ := core.ParseDay("09-03-2025")

	// Exempt roles skip first.
	exempt := eligibleMember("m")
	exempt.Roles = append(exempt.Roles, roles.RoleCoreMember)
	if due, reason := engine.ShouldWarn(exempt, date); due || !strings.Contains(reason, "exempt") {
		t.Errorf("core member should be exempt, got due=%v reason=%q", due, reason)
	}

	fourth := eligibleMember("m")
	fourth.Roles = append(fourth.Roles, roles.RoleFourthYear)
	if due, _ := engine.ShouldWarn(fourth, date); due {
		t.Error("4th_years should be exempt")
	}

	// Missing team/year roles skip silently.
	roleless := core.Member{GuildID: "g1", ID: "m", Roles: []string{"current-team"}}
	if due, reason := engine.ShouldWarn(roleless, date); due || reason != "no required roles" {
		t.Errorf("missing roles should skip, got due=%v reason=%q", due, reason)
	}

	// Approved leave skips.
	engine.Leaves = []warning.LeaveSource{stubLeave{covered: map[core.MemberID]bool{"m": true}}}
	if due, reason := engine.ShouldWarn(eligibleMember("m"), date); due || reason != "has approved leave" {
		t.Errorf("leave should skip, got due=%v reason=%q", due, reason)
	}
	engine.Leaves = []warning.LeaveSource{stubLeave{}}

	// A submission for the date skips.
	if _, err := engine.Submissions.Record(context.Background(), submission.RecordInput{
		UserID: "m", Username: "m", Date: "09-03-2025",
		Hours: decimal.NewFromInt(8), Description: "work", Blockers: "None",
	}); err != nil {
		t.Fatal(err)
	}
	if due, reason := engine.ShouldWarn(eligibleMember("m"), date); due || reason != "already submitted" {
		t.Errorf("submission should skip, got due=%v reason=%q", due, reason)
	}

	// Nothing covering the date: warning due.
	if due, _ := engine.ShouldWarn(eligibleMember("other"), date); !due {
		t.Error("member with no submission and no leave should be warned")
	}
}

// =============================================================================
// ESCALATION TESTS
// =============================================================================

func TestGive_EscalationLadder(t *testing.T) {
	// GIVEN: A member accumulating warnings in one month
	// WHEN: Counts cross 3 and then exceed it
	// THEN: 3rd -> 1st Probation; every one after -> upgrade to 2nd

	engine, notifier, mutator := newTestEngine(t)
	member := eligibleMember("m")
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		count, err := engine.Give(ctx, member)
		if err != nil {
			t.Fatal(err)
		}
		if count != i {
			t.Errorf("expected count %d, got %d", i, count)
		}
	}
	if len(mutator.granted) != 0 {
		t.Errorf("no escalation below 3 warnings, got %v", mutator.granted)
	}

	// Third warning: 1st Probation.
	if _, err := engine.Give(ctx, member); err != nil {
		t.Fatal(err)
	}
	if len(mutator.granted) != 1 || mutator.granted[0] != "m:"+roles.RoleFirstProbation {
		t.Fatalf("third warning should grant 1st Probation, got %v", mutator.granted)
	}

	// Fourth warning: upgrade to 2nd Probation.
	if _, err := engine.Give(ctx, member); err != nil {
		t.Fatal(err)
	}
	if len(mutator.revoked) != 1 || mutator.revoked[0] != "m:"+roles.RoleFirstProbation {
		t.Errorf("upgrade should revoke 1st Probation, got %v", mutator.revoked)
	}
	if len(mutator.granted) != 2 || mutator.granted[1] != "m:"+roles.RoleSecondProbation {
		t.Errorf("upgrade should grant 2nd Probation, got %v", mutator.granted)
	}

	// Fifth warning: still 2nd Probation, never back to 1st.
	if _, err := engine.Give(ctx, member); err != nil {
		t.Fatal(err)
	}
	last := mutator.granted[len(mutator.granted)-1]
	if last != "m:"+roles.RoleSecondProbation {
		t.Errorf("escalation is monotonic, expected 2nd Probation again, got %q", last)
	}

	// Every warning posted a notice.
	if len(notifier.posts) < 5 {
		t.Errorf("expected at least 5 notices, got %d", len(notifier.posts))
	}
}

func TestCount_MonthScoped(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	if _, err := engine.Give(context.Background(), eligibleMember("m")); err != nil {
		t.Fatal(err)
	}
	if got := engine.Count("m", time.March, 2025); got != 1 {
		t.Errorf("expected 1 for March, got %d", got)
	}
	if got := engine.Count("m", time.February, 2025); got != 0 {
		t.Errorf("expected 0 for February, got %d", got)
	}
}

func TestResetMonthly_KeepsCurrentMonth(t *testing.T) {
	// GIVEN: Counts from last month and this month
	// WHEN: Resetting
	// THEN: Only last month's entries are cleared

	docs := memory.New()
	engine, err := warning.NewEngine(context.Background(), docs)
	if err != nil {
		t.Fatal(err)
	}
	notifier := &fakeNotifier{}
	mutator := &fakeRoles{}
	engine.Notifier = notifier
	engine.Roles = mutator

	february := time.Date(2025, time.February, 20, 10, 0, 0, 0, time.UTC)
	engine.WithClock(fixedClock{t: february})
	if _, err := engine.Give(context.Background(), eligibleMember("m")); err != nil {
		t.Fatal(err)
	}

	engine.WithClock(fixedClock{t: testNow}) // March
	if _, err := engine.Give(context.Background(), eligibleMember("m")); err != nil {
		t.Fatal(err)
	}

	cleared, err := engine.ResetMonthly(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if cleared != 1 {
		t.Errorf("expected 1 stale entry cleared, got %d", cleared)
	}
	if got := engine.Count("m", time.March, 2025); got != 1 {
		t.Errorf("current month must survive the reset, got %d", got)
	}
	if got := engine.Count("m", time.February, 2025); got != 0 {
		t.Errorf("stale month should be cleared, got %d", got)
	}
}

// =============================================================================
// SWEEP TESTS
// =============================================================================

type sweepDirectory struct {
	members []core.Member
}

func (d *sweepDirectory) Guilds(context.Context) ([]core.GuildID, error) {
	return []core.GuildID{"g1"}, nil
}

func (d *sweepDirectory) Members(context.Context, core.GuildID) ([]core.Member, error) {
	return d.members, nil
}

func (d *sweepDirectory) Resolve(_ context.Context, _ core.GuildID, id core.MemberID) (core.Member, error) {
	for _, m := range d.members {
		if m.ID == id {
			return m, nil
		}
	}
	return core.Member{}, &core.NotFoundError{Kind: "member", ID: string(id)}
}

func TestSweepYesterday(t *testing.T) {
	// GIVEN: Two eligible members, one of whom submitted yesterday
	// WHEN: Running the sweep
	// THEN: Only the non-submitter is warned

	engine, notifier, _ := newTestEngine(t)
	directory := &sweepDirectory{members: []core.Member{
		eligibleMember("submitted"),
		eligibleMember("missing"),
	}}
	cache, err := eligibility.NewCache(context.Background(), memory.New(), directory)
	if err != nil {
		t.Fatal(err)
	}
	engine.Eligibility = cache

	yesterday := core.TodayIn(core.IST).AddDate(0, 0, -1)
	if _, err := engine.Submissions.Record(context.Background(), submission.RecordInput{
		UserID: "submitted", Username: "submitted", Date: core.FormatDay(yesterday),
		Hours: decimal.NewFromInt(8), Description: "work", Blockers: "None",
	}); err != nil {
		t.Fatal(err)
	}

	engine.SweepYesterday(context.Background(), directory)

	warned := 0
	for _, post := range notifier.posts {
		if strings.Contains(post, "warning:") {
			warned++
			if !strings.Contains(post, "missing") {
				t.Errorf("unexpected warning target: %q", post)
			}
		}
	}
	if warned != 1 {
		t.Errorf("expected exactly 1 warning, got %d", warned)
	}
}

package leave_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/crewtrack/attendance-engine/core"
	"github.com/crewtrack/attendance-engine/leave"
	"github.com/crewtrack/attendance-engine/roles"
	"github.com/crewtrack/attendance-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestLedger(t *testing.T) *leave.Ledger {
	t.Helper()
	ledger, err := leave.NewLedger(context.Background(), memory.New())
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	return ledger
}

func dayRange(t *testing.T, s string) core.DayRange {
	t.Helper()
	rng, err := core.ParseDayRange(s)
	if err != nil {
		t.Fatalf("bad range %q: %v", s, err)
	}
	return rng
}

var regularRoles = []string{"Mobile", "2nd_years", "current-team"}

// =============================================================================
// QUOTA TIER TESTS
// =============================================================================

func TestQuotaFor_Tiers(t *testing.T) {
	cases := []struct {
		name      string
		roles     []string
		days      int
		unlimited bool
	}{
		{"regular member", regularRoles, 2, false},
		{"third-year core", []string{"Mobile", "3rd_years", roles.RoleCoreMember}, 10, false},
		{"core member", []string{"Mobile", "2nd_years", roles.RoleCoreMember}, 0, true},
		{"fourth year", []string{"Mobile", roles.RoleFourthYear}, 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q := leave.QuotaFor(tc.roles)
			if q.Unlimited != tc.unlimited {
				t.Errorf("Unlimited = %v, want %v", q.Unlimited, tc.unlimited)
			}
			if !tc.unlimited && q.Days != tc.days {
				t.Errorf("Days = %d, want %d", q.Days, tc.days)
			}
		})
	}
}

// =============================================================================
// CONSUMPTION TESTS
// =============================================================================

func TestRequestCasual_WithinQuota(t *testing.T) {
	// GIVEN: A regular member with a 2-day monthly quota
	// WHEN: Requesting exactly 2 days
	// THEN: The leave is consumed immediately

	l := newTestLedger(t)
	days, err := l.RequestCasual(context.Background(), "u1", dayRange(t, "10-03-2025 to 11-03-2025"), regularRoles)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if days != 2 {
		t.Errorf("expected 2 days consumed, got %d", days)
	}

	used, quota := l.Usage("u1", 3, 2025, regularRoles)
	if used != 2 || quota.Days != 2 {
		t.Errorf("expected 2/2 used, got %d/%d", used, quota.Days)
	}
}

func TestRequestCasual_OverQuota(t *testing.T) {
	// GIVEN: A regular member who already used the full monthly quota
	// WHEN: Requesting one more day in the same month
	// THEN: A quota error with the remaining-days detail, nothing persisted

	l := newTestLedger(t)
	if _, err := l.RequestCasual(context.Background(), "u1", dayRange(t, "10-03-2025 to 11-03-2025"), regularRoles); err != nil {
		t.Fatalf("setup: %v", err)
	}

	_, err := l.RequestCasual(context.Background(), "u1", dayRange(t, "20-03-2025 to 20-03-2025"), regularRoles)
	if err == nil {
		t.Fatal("expected quota rejection")
	}
	if !errors.Is(err, core.ErrQuotaExceeded) {
		t.Errorf("expected quota category, got %v", err)
	}
	var qe *core.QuotaExceededError
	if !errors.As(err, &qe) {
		t.Fatalf("expected QuotaExceededError, got %T", err)
	}
	if qe.Remaining() != 0 {
		t.Errorf("expected 0 remaining, got %d", qe.Remaining())
	}

	used, _ := l.Usage("u1", 3, 2025, regularRoles)
	if used != 2 {
		t.Errorf("rejected request must not consume days, used = %d", used)
	}
}

func TestRequestCasual_ConcurrentRequestsHonorQuota(t *testing.T) {
	// GIVEN: A 2-day allowance and eight simultaneous 1-day requests
	// WHEN: All race through the quota check
	// THEN: Exactly two succeed and usage never exceeds the allowance

	l := newTestLedger(t)
	rng := dayRange(t, "10-03-2025 to 10-03-2025")

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.RequestCasual(context.Background(), "u1", rng, regularRoles); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 2 {
		t.Errorf("expected exactly 2 requests to pass, got %d", succeeded)
	}
	used, quota := l.Usage("u1", 3, 2025, regularRoles)
	if used > quota.Days {
		t.Errorf("usage %d exceeds the %d-day allowance", used, quota.Days)
	}
}

func TestRequestCasual_UnlimitedNeverChecked(t *testing.T) {
	// A Core Member can take a long range without tripping any quota.
	l := newTestLedger(t)
	coreRoles := []string{"Mobile", "2nd_years", roles.RoleCoreMember}
	days, err := l.RequestCasual(context.Background(), "u1", dayRange(t, "01-03-2025 to 20-03-2025"), coreRoles)
	if err != nil {
		t.Fatalf("unlimited tier should never be rejected: %v", err)
	}
	if days != 20 {
		t.Errorf("expected 20 days, got %d", days)
	}
}

func TestRequestCasual_QuotaIsMonthly(t *testing.T) {
	// Usage keys on the month the leave starts in, so a new month resets it.
	l := newTestLedger(t)
	if _, err := l.RequestCasual(context.Background(), "u1", dayRange(t, "30-03-2025 to 31-03-2025"), regularRoles); err != nil {
		t.Fatalf("march: %v", err)
	}
	if _, err := l.RequestCasual(context.Background(), "u1", dayRange(t, "02-04-2025 to 03-04-2025"), regularRoles); err != nil {
		t.Fatalf("april should have a fresh quota: %v", err)
	}
}

func TestGrantBonusDays_ExtendsFiniteOnly(t *testing.T) {
	// GIVEN: A regular member granted 3 bonus days
	// WHEN: Requesting 5 days in one month
	// THEN: The extended allowance of 5 covers it

	l := newTestLedger(t)
	if err := l.GrantBonusDays(context.Background(), "u1", 3); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if _, err := l.RequestCasual(context.Background(), "u1", dayRange(t, "10-03-2025 to 14-03-2025"), regularRoles); err != nil {
		t.Fatalf("bonus days should extend the allowance: %v", err)
	}

	_, quota := l.Usage("u1", 3, 2025, regularRoles)
	if quota.Days != 5 {
		t.Errorf("expected extended allowance 5, got %d", quota.Days)
	}

	// The unlimited tier ignores bonus days.
	_, coreQuota := l.Usage("u1", 3, 2025, []string{"Mobile", roles.RoleCoreMember})
	if !coreQuota.Unlimited {
		t.Error("core tier should stay unlimited")
	}
}

// =============================================================================
// COVERAGE QUERIES
// =============================================================================

func TestCoversDate(t *testing.T) {
	l := newTestLedger(t)
	if _, err := l.RequestCasual(context.Background(), "u1", dayRange(t, "10-03-2025 to 12-03-2025"), regularRoles); err != nil {
		t.Fatalf("setup: %v", err)
	}

	inside, _ := core.ParseDay("11-03-2025")
	outside, _ := core.ParseDay("13-03-2025")
	if !l.CoversDate("u1", inside) {
		t.Error("date inside the range should be covered")
	}
	if l.CoversDate("u1", outside) {
		t.Error("date outside the range should not be covered")
	}
	if l.CoversDate("stranger", inside) {
		t.Error("unknown member has no coverage")
	}
}

func TestLeavesStartingIn(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	coreRoles := []string{"Mobile", roles.RoleCoreMember}
	if _, err := l.RequestCasual(ctx, "u1", dayRange(t, "05-03-2025 to 06-03-2025"), coreRoles); err != nil {
		t.Fatal(err)
	}
	if _, err := l.RequestCasual(ctx, "u1", dayRange(t, "20-03-2025 to 21-03-2025"), coreRoles); err != nil {
		t.Fatal(err)
	}

	from, _ := core.ParseDay("01-03-2025")
	to, _ := core.ParseDay("10-03-2025")
	if got := l.LeavesStartingIn("u1", from, to); got != 1 {
		t.Errorf("expected 1 leave starting in range, got %d", got)
	}
}

/*
Package leave owns leave policy: the casual-leave ledger with monthly
quotas, the medical/special leave-request collection, and the approval
state machine that drives requests to a terminal status.

CASUAL LEAVE IS THE ODD ONE OUT:
  Casual leave never enters the request workflow. A casual request is
  checked against the monthly quota and, on success, appended to the
  member's history as immediately consumed. Only medical and special
  leave create a Request routed through Approvals. The asymmetry is
  intentional and kept as an explicit branch.

QUOTA TIERS (per classified roles):
  - 3rd-year Core Member: 10 days/month
  - other Core Member, or 4th_years: unlimited
  - everyone else: 2 days/month
  Stored bonus days extend the finite tiers only. The unlimited tier is a
  distinguished sentinel, never numerically compared against usage.
*/
package leave

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/crewtrack/attendance-engine/core"
	"github.com/crewtrack/attendance-engine/roles"
)

// =============================================================================
// QUOTA
// =============================================================================

// Quota is a monthly casual-leave allowance. Unlimited quotas carry no
// meaningful Days value.
type Quota struct {
	Days      int
	Unlimited bool
}

const (
	regularMonthlyDays       = 2
	thirdYearCoreMonthlyDays = 10 // the source also mentions 22 in a stale comment; the code path says 10
)

// QuotaFor returns the base monthly quota for a role set, before bonus days.
func QuotaFor(roleNames []string) Quota {
	p := roles.Classify(roleNames)
	hasThirdYear := false
	hasFourthYear := false
	for _, r := range roleNames {
		if r == roles.RoleThirdYear {
			hasThirdYear = true
		}
		if r == roles.RoleFourthYear {
			hasFourthYear = true
		}
	}
	if hasThirdYear && p.IsCore {
		return Quota{Days: thirdYearCoreMonthlyDays}
	}
	if p.IsCore || hasFourthYear {
		return Quota{Unlimited: true}
	}
	return Quota{Days: regularMonthlyDays}
}

// =============================================================================
// CASUAL LEDGER
// =============================================================================

// CasualLeave is one consumed casual-leave range. Dates are stored in the
// canonical DD-MM-YYYY form; Days is the inclusive day count.
type CasualLeave struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Days  int    `json:"days"`
}

// CasualHistory is the per-member record: granted bonus days plus the
// ordered sequence of consumed leaves.
type CasualHistory struct {
	BonusDays int           `json:"bonus_days"`
	Leaves    []CasualLeave `json:"leaves"`
}

// Ledger holds every member's casual-leave history.
type Ledger struct {
	mu    sync.Mutex
	docs  core.DocumentStore
	users map[core.MemberID]*CasualHistory
}

// NewLedger loads the casual-leave document. Absent means empty; a
// malformed document surfaces a StorageError.
func NewLedger(ctx context.Context, docs core.DocumentStore) (*Ledger, error) {
	l := &Ledger{
		docs:  docs,
		users: make(map[core.MemberID]*CasualHistory),
	}
	body, err := docs.Load(ctx, core.DocCasualLeave)
	if err != nil {
		return nil, &core.StorageError{Document: core.DocCasualLeave, Op: "load", Err: err}
	}
	if body != nil {
		if err := json.Unmarshal(body, &l.users); err != nil {
			return nil, &core.StorageError{Document: core.DocCasualLeave, Op: "load", Err: err}
		}
	}
	return l, nil
}

func (l *Ledger) persistLocked(ctx context.Context) error {
	body, err := json.Marshal(l.users)
	if err != nil {
		return &core.StorageError{Document: core.DocCasualLeave, Op: "save", Err: err}
	}
	if err := l.docs.Save(ctx, core.DocCasualLeave, body); err != nil {
		return &core.StorageError{Document: core.DocCasualLeave, Op: "save", Err: err}
	}
	return nil
}

// Usage returns (used, allowed) for the member's month. Used sums the day
// counts of leaves whose start falls in the queried month/year. Bonus days
// are added to finite allowances only.
func (l *Ledger) Usage(userID core.MemberID, month time.Month, year int, roleNames []string) (int, Quota) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.usageLocked(userID, month, year, roleNames)
}

func (l *Ledger) usageLocked(userID core.MemberID, month time.Month, year int, roleNames []string) (int, Quota) {
	quota := QuotaFor(roleNames)

	used := 0
	if history, ok := l.users[userID]; ok {
		if !quota.Unlimited {
			quota.Days += history.BonusDays
		}
		for _, rec := range history.Leaves {
			start, err := core.ParseDay(rec.Start)
			if err != nil {
				continue
			}
			if start.Month() == month && start.Year() == year {
				used += rec.Days
			}
		}
	}
	return used, quota
}

// RequestCasual consumes casual leave for the inclusive range. Rejected
// with a QuotaExceededError when the finite allowance would be exceeded;
// unlimited tiers are never checked. On success the leave is immediately
// consumed; casual leave never enters the approval workflow. The quota
// check and the append happen under one lock, so concurrent requests
// cannot both pass against the same remaining allowance.
func (l *Ledger) RequestCasual(ctx context.Context, userID core.MemberID, rng core.DayRange, roleNames []string) (int, error) {
	requested := rng.Days()

	l.mu.Lock()
	defer l.mu.Unlock()

	used, quota := l.usageLocked(userID, rng.Start.Month(), rng.Start.Year(), roleNames)
	if !quota.Unlimited && used+requested > quota.Days {
		return 0, &core.QuotaExceededError{Used: used, Allowed: quota.Days, Requested: requested}
	}

	history, ok := l.users[userID]
	if !ok {
		history = &CasualHistory{}
		l.users[userID] = history
	}
	history.Leaves = append(history.Leaves, CasualLeave{
		Start: core.FormatDay(rng.Start),
		End:   core.FormatDay(rng.End),
		Days:  requested,
	})

	if err := l.persistLocked(ctx); err != nil {
		return 0, err
	}
	return requested, nil
}

// GrantBonusDays adds to a member's bonus-day balance.
func (l *Ledger) GrantBonusDays(ctx context.Context, userID core.MemberID, days int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	history, ok := l.users[userID]
	if !ok {
		history = &CasualHistory{}
		l.users[userID] = history
	}
	history.BonusDays += days
	return l.persistLocked(ctx)
}

// CoversDate reports whether any casual-leave range covers the date.
func (l *Ledger) CoversDate(userID core.MemberID, date time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	history, ok := l.users[userID]
	if !ok {
		return false
	}
	for _, rec := range history.Leaves {
		start, err := core.ParseDay(rec.Start)
		if err != nil {
			continue
		}
		end, err := core.ParseDay(rec.End)
		if err != nil {
			continue
		}
		if (core.DayRange{Start: start, End: end}).Contains(date) {
			return true
		}
	}
	return false
}

// LeavesStartingIn counts leaves whose start falls in the inclusive range.
// Implements submission.LeaveCounter for the range aggregates.
func (l *Ledger) LeavesStartingIn(userID core.MemberID, from, to time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	history, ok := l.users[userID]
	if !ok {
		return 0
	}
	count := 0
	for _, rec := range history.Leaves {
		start, err := core.ParseDay(rec.Start)
		if err != nil {
			continue
		}
		if !start.Before(from) && !start.After(to) {
			count++
		}
	}
	return count
}

/*
Package submission owns the daily status-update ledger.

PURPOSE:
  One submission per member per date, with override semantics: a second
  submission for the same date replaces the first, and the replaced hours
  are subtracted from the running totals before the new hours are added.
  The per-user counters (total hours, total submissions, late submissions)
  are maintained incrementally and must always equal the sum/count over
  the stored submissions.

PRECISION:
  Hour totals use decimal.Decimal. The subtract-then-add override cycle
  must be exact; float64 drift would break the weekly-aggregate invariant.

CONCURRENCY:
  A single mutex serializes every mutation and its save. Two concurrent
  submissions for the same member cannot race the totals.

SEE ALSO:
  - validate.go: input validation applied before any write
  - stats.go: weekly/monthly/range aggregates
*/
package submission

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/crewtrack/attendance-engine/core"
	"github.com/crewtrack/attendance-engine/roles"
)

// =============================================================================
// LEDGER TYPES
// =============================================================================

// Submission is one daily status update. Date is stored in the canonical
// DD-MM-YYYY form.
type Submission struct {
	ID          string          `json:"id"`
	Date        string          `json:"date"`
	Hours       decimal.Decimal `json:"hours"`
	Description string          `json:"description"`
	Blockers    string          `json:"blockers"`
	WFH         bool            `json:"is_wfh"`
	Late        bool            `json:"is_late"`
	CreatedAt   time.Time       `json:"created_at"`
}

// UserLedger is the per-member aggregate. The counters are invariant-
// maintained on every write: TotalHours always equals the sum of hours
// over Submissions.
type UserLedger struct {
	Username         string                `json:"username"`
	Submissions      map[string]Submission `json:"submissions"`
	TotalHours       decimal.Decimal       `json:"total_hours"`
	TotalSubmissions int                   `json:"total_submissions"`
	LateSubmissions  int                   `json:"late_submissions"`
}

// =============================================================================
// STORE
// =============================================================================

// Store holds every member's submission ledger and persists the whole
// document on each write.
type Store struct {
	mu    sync.Mutex
	docs  core.DocumentStore
	users map[core.MemberID]*UserLedger
	clock core.Clock
}

// NewStore loads the submissions document. An absent document starts
// empty; a malformed one surfaces a StorageError.
func NewStore(ctx context.Context, docs core.DocumentStore) (*Store, error) {
	s := &Store{
		docs:  docs,
		users: make(map[core.MemberID]*UserLedger),
		clock: core.SystemClock{},
	}
	body, err := docs.Load(ctx, core.DocSubmissions)
	if err != nil {
		return nil, &core.StorageError{Document: core.DocSubmissions, Op: "load", Err: err}
	}
	if body != nil {
		if err := json.Unmarshal(body, &s.users); err != nil {
			return nil, &core.StorageError{Document: core.DocSubmissions, Op: "load", Err: err}
		}
	}
	return s, nil
}

// WithClock overrides the clock. Test hook.
func (s *Store) WithClock(c core.Clock) *Store {
	s.clock = c
	return s
}

func (s *Store) persistLocked(ctx context.Context) error {
	body, err := json.Marshal(s.users)
	if err != nil {
		return &core.StorageError{Document: core.DocSubmissions, Op: "save", Err: err}
	}
	if err := s.docs.Save(ctx, core.DocSubmissions, body); err != nil {
		return &core.StorageError{Document: core.DocSubmissions, Op: "save", Err: err}
	}
	return nil
}

// =============================================================================
// RECORD - the override-semantics write path
// =============================================================================

// RecordInput carries a validated status update.
type RecordInput struct {
	UserID      core.MemberID
	Username    string
	Date        string // either accepted input format
	Hours       decimal.Decimal
	Description string
	Blockers    string
	WFH         bool
	Late        bool
}

// Record writes a status update. The date is normalized to canonical form;
// an existing submission for the same date is replaced in place under a
// fresh id, its hours subtracted from the total before the new hours are
// added. The whole cycle runs under one lock.
func (s *Store) Record(ctx context.Context, in RecordInput) (Submission, error) {
	day, err := core.ParseDay(in.Date)
	if err != nil {
		return Submission{}, err
	}
	dateStr := core.FormatDay(day)

	s.mu.Lock()
	defer s.mu.Unlock()

	ledger, ok := s.users[in.UserID]
	if !ok {
		ledger = &UserLedger{Submissions: make(map[string]Submission)}
		s.users[in.UserID] = ledger
	}
	ledger.Username = in.Username

	sub := Submission{
		ID:          uuid.NewString(),
		Date:        dateStr,
		Hours:       in.Hours,
		Description: in.Description,
		Blockers:    in.Blockers,
		WFH:         in.WFH,
		Late:        in.Late,
		CreatedAt:   s.clock.Now(),
	}

	var replacedID string
	for id, existing := range ledger.Submissions {
		if existing.Date == dateStr {
			replacedID = id
			break
		}
	}

	if replacedID != "" {
		// Remove old hours from the total before adding the new ones.
		old := ledger.Submissions[replacedID]
		ledger.TotalHours = ledger.TotalHours.Sub(old.Hours)
		delete(ledger.Submissions, replacedID)
		ledger.Submissions[sub.ID] = sub
	} else {
		ledger.Submissions[sub.ID] = sub
		ledger.TotalSubmissions++
		if in.Late {
			ledger.LateSubmissions++
		}
	}
	ledger.TotalHours = ledger.TotalHours.Add(in.Hours)

	if err := s.persistLocked(ctx); err != nil {
		return Submission{}, err
	}
	return sub, nil
}

// =============================================================================
// QUERIES
// =============================================================================

// Username returns the last recorded display name for a member.
func (s *Store) Username(userID core.MemberID) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ledger, ok := s.users[userID]
	if !ok {
		return "", false
	}
	return ledger.Username, true
}

// UserIDs lists every member with a ledger.
func (s *Store) UserIDs() []core.MemberID {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]core.MemberID, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	return ids
}

// SubmissionsForDate returns the submissions a member has for a date.
// The uniqueness policy keeps this at most one, but the query does not
// enforce it; callers use it for already-submitted checks.
func (s *Store) SubmissionsForDate(userID core.MemberID, date time.Time) []Submission {
	dateStr := core.FormatDay(date)
	s.mu.Lock()
	defer s.mu.Unlock()

	ledger, ok := s.users[userID]
	if !ok {
		return nil
	}
	var out []Submission
	for _, sub := range ledger.Submissions {
		if sub.Date == dateStr {
			out = append(out, sub)
		}
	}
	return out
}

// UsersWithoutSubmission filters members to non-bot current-team members
// lacking any submission on the date.
func (s *Store) UsersWithoutSubmission(members []core.Member, date time.Time) []core.Member {
	dateStr := core.FormatDay(date)
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []core.Member
	for _, m := range members {
		if m.IsBot || !roles.HasCurrentTeam(m.Roles) {
			continue
		}
		if s.hasSubmissionLocked(m.ID, dateStr) {
			continue
		}
		out = append(out, m)
	}
	return out
}

func (s *Store) hasSubmissionLocked(userID core.MemberID, dateStr string) bool {
	ledger, ok := s.users[userID]
	if !ok {
		return false
	}
	for _, sub := range ledger.Submissions {
		if sub.Date == dateStr {
			return true
		}
	}
	return false
}

func logSkippedDate(userID core.MemberID, raw string) {
	log.Printf("[Submissions] skipping submission with unparsable date %q for %s", raw, userID)
}

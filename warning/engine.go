/*
Package warning decides and records attendance warnings and drives
probation escalation.

DECISION ORDER (per member, per date):
  1. exempt roles (Core Member, 4th_years)      -> no warning
  2. missing team/year role                      -> no warning, silent skip
  3. approved leave covering the date            -> no warning
     (checked against both the request ledger and the casual history)
  4. existing submission for the date            -> no warning
  5. otherwise                                   -> warning due

Bots and non-eligible members never reach the decision; the sweep only
iterates the eligibility cache's set.

ESCALATION (against the count immediately after increment):
  count == 3 -> grant "1st Probation"
  count >  3 -> revoke "1st Probation" if held, grant "2nd Probation"
  The count only ever increases inside a month, so a threshold cannot be
  re-crossed without an explicit reset.
*/
package warning

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/crewtrack/attendance-engine/core"
	"github.com/crewtrack/attendance-engine/eligibility"
	"github.com/crewtrack/attendance-engine/roles"
	"github.com/crewtrack/attendance-engine/submission"
)

// LeaveSource answers whether a member is on approved leave for a date.
// Both leave.Requests and leave.Ledger satisfy it.
type LeaveSource interface {
	CoversDate(userID core.MemberID, date time.Time) bool
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine owns the monthly warning counts and the escalation side effects.
type Engine struct {
	mu     sync.Mutex
	docs   core.DocumentStore
	counts map[string]int // "<memberID>-<yyyy-mm>" -> count

	Submissions *submission.Store
	Leaves      []LeaveSource
	Eligibility *eligibility.Cache
	Notifier    core.Notifier
	Roles       core.RoleMutator
	Channel     string // warning notification channel

	clock core.Clock

	sweepMu sync.Mutex // non-reentrancy guard for the daily sweep
}

// NewEngine loads the warnings document.
func NewEngine(ctx context.Context, docs core.DocumentStore) (*Engine, error) {
	e := &Engine{
		docs:   docs,
		counts: make(map[string]int),
		clock:  core.SystemClock{},
	}
	body, err := docs.Load(ctx, core.DocWarnings)
	if err != nil {
		return nil, &core.StorageError{Document: core.DocWarnings, Op: "load", Err: err}
	}
	if body != nil {
		if err := json.Unmarshal(body, &e.counts); err != nil {
			return nil, &core.StorageError{Document: core.DocWarnings, Op: "load", Err: err}
		}
	}
	return e, nil
}

// WithClock overrides the clock. Test hook.
func (e *Engine) WithClock(c core.Clock) *Engine {
	e.clock = c
	return e
}

func monthlyKey(id core.MemberID, t time.Time) string {
	return fmt.Sprintf("%s-%s", id, core.MonthKey(t))
}

func (e *Engine) persistLocked(ctx context.Context) error {
	body, err := json.Marshal(e.counts)
	if err != nil {
		return &core.StorageError{Document: core.DocWarnings, Op: "save", Err: err}
	}
	if err := e.docs.Save(ctx, core.DocWarnings, body); err != nil {
		return &core.StorageError{Document: core.DocWarnings, Op: "save", Err: err}
	}
	return nil
}

// =============================================================================
// DECISION
// =============================================================================

// ShouldWarn evaluates the decision chain for an eligible member and date.
// The skip reason is returned for sweep logging.
func (e *Engine) ShouldWarn(member core.Member, date time.Time) (bool, string) {
	if member.IsBot {
		return false, "bot"
	}
	p := roles.Classify(member.Roles)
	if p.IsExempt {
		return false, "core member/4th year (exempt)"
	}
	if _, err := roles.Validate(member.Roles); err != nil {
		return false, "no required roles"
	}
	for _, src := range e.Leaves {
		if src.CoversDate(member.ID, date) {
			return false, "has approved leave"
		}
	}
	if len(e.Submissions.SubmissionsForDate(member.ID, date)) > 0 {
		return false, "already submitted"
	}
	return true, ""
}

// =============================================================================
// GIVE + ESCALATE
// =============================================================================

// Give increments the member's count for the current month, persists it,
// posts the warning notice, and escalates against the new count.
func (e *Engine) Give(ctx context.Context, member core.Member) (int, error) {
	e.mu.Lock()
	key := monthlyKey(member.ID, e.clock.Now())
	e.counts[key]++
	count := e.counts[key]
	if err := e.persistLocked(ctx); err != nil {
		e.mu.Unlock()
		return 0, err
	}
	e.mu.Unlock()

	warningsIssued.Inc()
	e.post(ctx, fmt.Sprintf("%s warning: %d", member.DisplayName, count))

	switch {
	case count == 3:
		if err := e.Roles.Grant(ctx, member.GuildID, member.ID, roles.RoleFirstProbation); err != nil {
			return count, fmt.Errorf("grant 1st probation: %w", err)
		}
		e.post(ctx, fmt.Sprintf("%s has been placed on 1st Probation.", member.DisplayName))
	case count > 3:
		// Upgrade: drop the 1st-level role if held, then grant the 2nd.
		if err := e.Roles.Revoke(ctx, member.GuildID, member.ID, roles.RoleFirstProbation); err != nil {
			log.Printf("[Warnings] revoke 1st probation for %s: %v", member.ID, err)
		}
		if err := e.Roles.Grant(ctx, member.GuildID, member.ID, roles.RoleSecondProbation); err != nil {
			return count, fmt.Errorf("grant 2nd probation: %w", err)
		}
		e.post(ctx, fmt.Sprintf("%s has been escalated to 2nd Probation.", member.DisplayName))
	}
	return count, nil
}

func (e *Engine) post(ctx context.Context, msg string) {
	if err := e.Notifier.Post(ctx, e.Channel, msg); err != nil {
		log.Printf("[Warnings] failed to post to %s: %v", e.Channel, err)
	}
}

// Count returns a member's warning count for a month.
func (e *Engine) Count(id core.MemberID, month time.Month, year int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.counts[fmt.Sprintf("%s-%04d-%02d", id, year, month)]
}

// ResetMonthly drops every key not belonging to the current month and
// returns the number cleared. Administrative operation, not scheduled.
func (e *Engine) ResetMonthly(ctx context.Context) (int, error) {
	suffix := "-" + core.MonthKey(e.clock.Now())

	e.mu.Lock()
	defer e.mu.Unlock()

	kept := make(map[string]int, len(e.counts))
	for key, count := range e.counts {
		if strings.HasSuffix(key, suffix) {
			kept[key] = count
		}
	}
	cleared := len(e.counts) - len(kept)
	e.counts = kept
	if err := e.persistLocked(ctx); err != nil {
		return 0, err
	}
	return cleared, nil
}

// =============================================================================
// DAILY SWEEP
// =============================================================================

// SweepYesterday evaluates every guild's eligible members for yesterday in
// the IST civil-date frame. Non-reentrant: an overlapping firing is
// skipped. A failure in one guild is logged and the rest still run.
func (e *Engine) SweepYesterday(ctx context.Context, directory core.Directory) {
	if !e.sweepMu.TryLock() {
		log.Printf("[Warnings] previous sweep still running, skipping")
		return
	}
	defer e.sweepMu.Unlock()

	yesterday := core.TodayIn(core.IST).AddDate(0, 0, -1)
	log.Printf("[Warnings] running daily sweep for %s", core.FormatDay(yesterday))

	guilds, err := directory.Guilds(ctx)
	if err != nil {
		log.Printf("[Warnings] listing guilds: %v", err)
		return
	}

	for _, guild := range guilds {
		if err := e.sweepGuild(ctx, guild, yesterday); err != nil {
			log.Printf("[Warnings] sweep failed for guild %s: %v", guild, err)
		}
	}
}

func (e *Engine) sweepGuild(ctx context.Context, guild core.GuildID, date time.Time) error {
	members, err := e.Eligibility.EligibleMembers(ctx, guild)
	if err != nil {
		return err
	}

	warned := 0
	for _, member := range members {
		due, reason := e.ShouldWarn(member, date)
		if !due {
			log.Printf("[Warnings] skipped %s: %s", member.DisplayName, reason)
			continue
		}
		if _, err := e.Give(ctx, member); err != nil {
			// Isolate per-member failures; keep sweeping.
			log.Printf("[Warnings] giving warning to %s: %v", member.DisplayName, err)
			continue
		}
		warned++
	}
	log.Printf("[Warnings] guild %s: checked %d eligible members, %d warnings", guild, len(members), warned)
	return nil
}

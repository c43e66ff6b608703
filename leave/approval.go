/*
approval.go - Leave approval state machine

STATES:
  pending -> approved | denied   (terminal, set exactly once)
  auto-approved                  (terminal, entered at creation for Core Members)

TRANSITION GUARDS (pending -> approved|denied), all checked BEFORE any
state write so a failed guard leaves the request untouched:
  1. actor is not the requester
  2. requester still resolvable in the member directory
  3. actor's hierarchy level strictly exceeds the requester's

On a successful transition the new status, approver and timestamp are
persisted, a tracking-channel notification is posted, and - when the
decision happened inside a discussion thread - that thread is closed.

Opening a discussion thread is a separate action, not a transition: any
participant can open one for a still-pending request; it re-posts the
request content into the new thread.
*/
package leave

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/crewtrack/attendance-engine/core"
	"github.com/crewtrack/attendance-engine/roles"
)

// Decision is the terminal outcome an approver selects.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionDeny    Decision = "deny"
)

func (d Decision) status() Status {
	if d == DecisionApprove {
		return StatusApproved
	}
	return StatusDenied
}

func (d Decision) outcome() string {
	if d == DecisionApprove {
		return "Approved"
	}
	return "Denied"
}

// Approvals drives leave requests through the approval workflow.
type Approvals struct {
	Requests        *Requests
	Directory       core.Directory
	Notifier        core.Notifier
	Threads         core.Threads // optional; thread actions are skipped when nil
	TrackingChannel string
	BotName         string // shown as the approver on auto-approved notices
}

// =============================================================================
// DECIDE - the pending -> terminal transition
// =============================================================================

// Decide applies an approve/deny decision to a pending request. threadID
// is the discussion thread the decision was made in, or empty.
func (a *Approvals) Decide(ctx context.Context, guild core.GuildID, requestID string, actor core.Member, decision Decision, threadID string) (Request, error) {
	req, ok := a.Requests.Find(requestID)
	if !ok {
		return Request{}, &core.NotFoundError{Kind: "request", ID: requestID}
	}
	if req.Status.Terminal() {
		return Request{}, &core.ValidationError{
			Field:   "request",
			Message: "this request no longer exists or has already been handled",
		}
	}

	// Guards run before any state change.
	if actor.ID == req.MemberID {
		return Request{}, fmt.Errorf("you cannot approve or deny your own leave request: %w", core.ErrPermissionDenied)
	}
	requester, err := a.Directory.Resolve(ctx, guild, req.MemberID)
	if err != nil {
		return Request{}, &core.NotFoundError{Kind: "member", ID: string(req.MemberID)}
	}
	if !roles.CanApprove(actor.Roles, requester.Roles) {
		// Generic denial only; no role-level detail is leaked.
		return Request{}, fmt.Errorf("insufficient permissions: %w", core.ErrPermissionDenied)
	}

	updated, found, err := a.Requests.UpdateStatus(ctx, requestID, decision.status(), actor.ID)
	if errors.Is(err, ErrAlreadyDecided) {
		// A competing decision won between the guard check and the write.
		return Request{}, &core.ValidationError{
			Field:   "request",
			Message: "this request no longer exists or has already been handled",
		}
	}
	if err != nil {
		return Request{}, err
	}
	if !found {
		return Request{}, &core.NotFoundError{Kind: "request", ID: requestID}
	}

	a.postTracking(ctx, updated, requester.DisplayName, actor.DisplayName, decision.outcome())

	if threadID != "" && a.Threads != nil {
		if err := a.Threads.Close(ctx, threadID, decision.outcome(), actor.DisplayName); err != nil {
			log.Printf("[Approvals] failed to close thread %s: %v", threadID, err)
		}
	}
	return updated, nil
}

// =============================================================================
// DISCUSSION THREADS - independent of the state machine
// =============================================================================

// OpenDiscussion opens a discussion thread for a still-pending request and
// re-posts the request content into it.
func (a *Approvals) OpenDiscussion(ctx context.Context, guild core.GuildID, requestID, parentChannel string, opener core.Member) (string, error) {
	if a.Threads == nil {
		return "", &core.ValidationError{Field: "thread", Message: "discussion threads are not available"}
	}
	req, ok := a.Requests.Find(requestID)
	if !ok {
		return "", &core.NotFoundError{Kind: "request", ID: requestID}
	}
	requester, err := a.Directory.Resolve(ctx, guild, req.MemberID)
	if err != nil {
		return "", &core.NotFoundError{Kind: "member", ID: string(req.MemberID)}
	}

	name := "Leave Discussion - " + requester.DisplayName
	thread, err := a.Threads.Open(ctx, parentChannel, name, []core.MemberID{requester.ID, opener.ID})
	if err != nil {
		return "", err
	}

	if err := a.Notifier.Post(ctx, thread, requestSummary(req, requester.DisplayName)); err != nil {
		log.Printf("[Approvals] failed to post request summary to thread %s: %v", thread, err)
	}
	notice := fmt.Sprintf("Hey %s, %s started this discussion thread.", requester.DisplayName, opener.DisplayName)
	if err := a.Notifier.Post(ctx, thread, notice); err != nil {
		log.Printf("[Approvals] failed to post thread notice to %s: %v", thread, err)
	}
	return thread, nil
}

// =============================================================================
// TRACKING NOTICES
// =============================================================================

// AnnounceAutoApproval posts the tracking notice for a request that was
// auto-approved at creation.
func (a *Approvals) AnnounceAutoApproval(ctx context.Context, req Request, requesterName string) {
	a.postTracking(ctx, req, requesterName, a.BotName, "auto approved")
}

func (a *Approvals) postTracking(ctx context.Context, req Request, requesterName, approverName, outcome string) {
	modeText := ""
	if req.Mode != "" {
		modeText = "\nMode: " + string(req.Mode)
	}
	msg := fmt.Sprintf("Leave on (%s to %s)\nLeave Type: %s\nReason: %s%s\nFrom %s %s by %s",
		req.Start, req.End, capitalize(string(req.Type)), req.Reason, modeText,
		requesterName, outcome, approverName)
	if err := a.Notifier.Post(ctx, a.TrackingChannel, msg); err != nil {
		log.Printf("[Approvals] failed to post tracking notice for %s: %v", req.RequestID, err)
	}
}

func requestSummary(req Request, requesterName string) string {
	modeText := ""
	if req.Mode != "" {
		modeText = "\nMode: " + string(req.Mode)
	}
	return fmt.Sprintf("New %s Leave Request\nSubmitted by: %s\nDate Range: %s to %s\nReason: %s%s\nStatus: Pending",
		capitalize(string(req.Type)), requesterName, req.Start, req.End, req.Reason, modeText)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

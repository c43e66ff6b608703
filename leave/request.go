/*
request.go - Medical and special leave requests

Requests live in an unordered append-only collection searchable by id.
A request is created pending, or auto-approved immediately when the
requester is a Core Member. Terminal status is set exactly once by the
approval service; otherwise a request stays pending until purged after
the retention window.

CreatedAt is stored as the raw string it was written with. Purge parses
it on the way out; a request whose creation time no longer parses is
conservatively retained for manual review.
*/
package leave

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/crewtrack/attendance-engine/core"
	"github.com/crewtrack/attendance-engine/roles"
)

// =============================================================================
// REQUEST MODEL
// =============================================================================

type Type string

const (
	TypeCasual  Type = "casual"
	TypeMedical Type = "medical"
	TypeSpecial Type = "special"
)

type Mode string

const (
	ModeDayOff Mode = "day-off"
	ModeWFH    Mode = "wfh"
)

type Status string

const (
	StatusPending      Status = "pending"
	StatusApproved     Status = "approved"
	StatusDenied       Status = "denied"
	StatusAutoApproved Status = "auto-approved"
)

// Terminal reports whether the status can no longer change.
func (s Status) Terminal() bool { return s != StatusPending }

// ErrAlreadyDecided signals a status write against a request that already
// reached a terminal status. The earlier outcome stands.
var ErrAlreadyDecided = errors.New("request already decided")

// Request is one medical or special leave request. Dates are canonical
// DD-MM-YYYY strings; CreatedAt/UpdatedAt are RFC3339.
type Request struct {
	RequestID  string        `json:"request_id"`
	Type       Type          `json:"type"`
	MemberID   core.MemberID `json:"member_id"`
	Start      string        `json:"start"`
	End        string        `json:"end"`
	Reason     string        `json:"reason"`
	Mode       Mode          `json:"mode,omitempty"`
	Status     Status        `json:"status"`
	ApproverID core.MemberID `json:"approver_id,omitempty"`
	CreatedAt  string        `json:"created_at"`
	UpdatedAt  string        `json:"updated_at,omitempty"`
}

// Range parses the request's date range.
func (r Request) Range() (core.DayRange, error) {
	start, err := core.ParseDay(r.Start)
	if err != nil {
		return core.DayRange{}, err
	}
	end, err := core.ParseDay(r.End)
	if err != nil {
		return core.DayRange{}, err
	}
	return core.DayRange{Start: start, End: end}, nil
}

// =============================================================================
// REQUEST BOOK
// =============================================================================

// DefaultRetentionDays is the purge window for still-pending requests.
const DefaultRetentionDays = 30

// SpecialLeaveMaxDays caps a special-leave range, inclusive of both ends.
const SpecialLeaveMaxDays = 92

const maxReasonLen = 500

// Requests is the durable request collection.
type Requests struct {
	mu    sync.Mutex
	docs  core.DocumentStore
	list  []Request
	clock core.Clock
}

// NewRequests loads the leave-requests document.
func NewRequests(ctx context.Context, docs core.DocumentStore) (*Requests, error) {
	r := &Requests{docs: docs, clock: core.SystemClock{}}
	body, err := docs.Load(ctx, core.DocLeaveRequests)
	if err != nil {
		return nil, &core.StorageError{Document: core.DocLeaveRequests, Op: "load", Err: err}
	}
	if body != nil {
		if err := json.Unmarshal(body, &r.list); err != nil {
			return nil, &core.StorageError{Document: core.DocLeaveRequests, Op: "load", Err: err}
		}
	}
	return r, nil
}

// WithClock overrides the clock. Test hook.
func (r *Requests) WithClock(c core.Clock) *Requests {
	r.clock = c
	return r
}

func (r *Requests) persistLocked(ctx context.Context) error {
	body, err := json.Marshal(r.list)
	if err != nil {
		return &core.StorageError{Document: core.DocLeaveRequests, Op: "save", Err: err}
	}
	if err := r.docs.Save(ctx, core.DocLeaveRequests, body); err != nil {
		return &core.StorageError{Document: core.DocLeaveRequests, Op: "save", Err: err}
	}
	return nil
}

// =============================================================================
// CREATE
// =============================================================================

// CreateInput carries a new medical or special leave request.
type CreateInput struct {
	Type      Type
	MemberID  core.MemberID
	Roles     []string
	DateRange string // "DD-MM-YYYY to DD-MM-YYYY"
	Reason    string
	Mode      string // medical only: "day-off" or "wfh"
	Today     time.Time
}

// Create validates and appends a request. Core Member requesters are
// auto-approved at creation, bypassing pending entirely. All validation
// runs before the append; a rejected request leaves no state behind.
func (r *Requests) Create(ctx context.Context, in CreateInput) (Request, error) {
	if in.Type != TypeMedical && in.Type != TypeSpecial {
		return Request{}, &core.ValidationError{Field: "type", Message: "leave type must be medical or special"}
	}

	p, err := roles.Validate(in.Roles)
	if err != nil {
		return Request{}, err
	}

	rng, err := core.ParseDayRange(in.DateRange)
	if err != nil {
		return Request{}, err
	}
	if rng.Start.Before(in.Today) {
		return Request{}, &core.ValidationError{Field: "date_range", Message: "leave start date cannot be in the past"}
	}
	if in.Type == TypeSpecial && rng.Days() > SpecialLeaveMaxDays {
		return Request{}, &core.ValidationError{
			Field:   "date_range",
			Message: "special leave requests cannot exceed 92 days, please adjust the date range",
		}
	}

	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return Request{}, &core.ValidationError{Field: "reason", Message: string(in.Type) + " leave reason is required"}
	}
	if len(reason) > maxReasonLen {
		return Request{}, &core.ValidationError{Field: "reason", Message: "reason cannot exceed 500 characters"}
	}

	var mode Mode
	if in.Type == TypeMedical {
		switch Mode(strings.ToLower(strings.TrimSpace(in.Mode))) {
		case ModeDayOff:
			mode = ModeDayOff
		case ModeWFH:
			mode = ModeWFH
		default:
			return Request{}, &core.ValidationError{Field: "mode", Message: "mode must be either 'Day-off' or 'WFH'"}
		}
	}

	status := StatusPending
	if p.IsCore {
		status = StatusAutoApproved
	}

	req := Request{
		RequestID: uuid.NewString(),
		Type:      in.Type,
		MemberID:  in.MemberID,
		Start:     core.FormatDay(rng.Start),
		End:       core.FormatDay(rng.End),
		Reason:    reason,
		Mode:      mode,
		Status:    status,
		CreatedAt: r.clock.Now().Format(time.RFC3339),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.list = append(r.list, req)
	if err := r.persistLocked(ctx); err != nil {
		return Request{}, err
	}
	return req, nil
}

// =============================================================================
// LOOKUP AND TRANSITIONS
// =============================================================================

// Find returns the request with the given id.
func (r *Requests) Find(requestID string) (Request, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, req := range r.list {
		if req.RequestID == requestID {
			return req, true
		}
	}
	return Request{}, false
}

// UpdateStatus sets status and approver, stamping UpdatedAt. Returns the
// updated request, or found=false when the id is unknown (no-match signal,
// not an error). The write is a compare-and-set: a request already in a
// terminal status is never overwritten and ErrAlreadyDecided is returned,
// so two racing decisions resolve to exactly one winner.
func (r *Requests) UpdateStatus(ctx context.Context, requestID string, status Status, approver core.MemberID) (Request, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.list {
		if r.list[i].RequestID != requestID {
			continue
		}
		if r.list[i].Status.Terminal() {
			return r.list[i], true, ErrAlreadyDecided
		}
		r.list[i].Status = status
		r.list[i].ApproverID = approver
		r.list[i].UpdatedAt = r.clock.Now().Format(time.RFC3339)
		updated := r.list[i]
		if err := r.persistLocked(ctx); err != nil {
			return Request{}, false, err
		}
		return updated, true, nil
	}
	return Request{}, false, nil
}

// ApprovedCovering reports whether the member has an approved or
// auto-approved request whose range covers the date.
func (r *Requests) ApprovedCovering(userID core.MemberID, date time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, req := range r.list {
		if req.MemberID != userID {
			continue
		}
		if req.Status != StatusApproved && req.Status != StatusAutoApproved {
			continue
		}
		rng, err := req.Range()
		if err != nil {
			continue
		}
		if rng.Contains(date) {
			return true
		}
	}
	return false
}

// CoversDate reports whether an approved or auto-approved request covers
// the date. Satisfies the warning engine's leave-source interface.
func (r *Requests) CoversDate(userID core.MemberID, date time.Time) bool {
	return r.ApprovedCovering(userID, date)
}

// PurgeStale removes requests created before the retention cutoff.
// Requests whose CreatedAt no longer parses are retained for manual
// review. Returns the number removed.
func (r *Requests) PurgeStale(ctx context.Context, retentionDays int) (int, error) {
	cutoff := r.clock.Now().AddDate(0, 0, -retentionDays)

	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.list[:0]
	for _, req := range r.list {
		createdAt, err := time.Parse(time.RFC3339, req.CreatedAt)
		if err != nil || createdAt.After(cutoff) {
			kept = append(kept, req)
		}
	}
	removed := len(r.list) - len(kept)
	r.list = kept
	if removed > 0 {
		if err := r.persistLocked(ctx); err != nil {
			return 0, err
		}
	}
	return removed, nil
}

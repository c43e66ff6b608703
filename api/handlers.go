/*
handlers.go - HTTP API handlers for the attendance engine

PURPOSE:
  Exposes the attendance engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to the ledgers.

ENDPOINTS:
  Status:
    POST /api/guilds/{guild}/status                     Submit daily status
    GET  /api/guilds/{guild}/members/{id}/reports/weekly   Weekly report (?offset=N)
    GET  /api/guilds/{guild}/members/{id}/reports/monthly  Monthly report (?month&year)
    GET  /api/guilds/{guild}/members/{id}/reports/range    Range export (?from&to)
    GET  /api/guilds/{guild}/reports/weekly                All-member weekly summary

  Leave:
    POST /api/guilds/{guild}/leaves                     Request leave (all types)
    POST /api/guilds/{guild}/leaves/{id}/approve        Approve pending request
    POST /api/guilds/{guild}/leaves/{id}/deny           Deny pending request
    POST /api/guilds/{guild}/leaves/{id}/discussion     Open discussion thread

  Events:
    POST /api/guilds/{guild}/events/role-change         Member role update

  Admin:
    POST /api/admin/guilds/{guild}/cache/refresh        Rebuild eligibility cache
    POST /api/admin/warnings/reset                      Clear stale warning months
    POST /api/admin/leaves/purge                        Purge stale requests
    POST /api/admin/bonus-days                          Grant casual bonus days

ELIGIBILITY GUARD:
  Every member-initiated write resolves the member against the directory
  and checks the eligibility cache first. Bots and members without the
  current-team designation get 403 before any policy logic runs.

ERROR HANDLING:
  Domain errors map onto HTTP statuses by category:
  - 400: validation, quota
  - 403: permission denied
  - 404: unknown request id, unresolvable member
  - 500: storage and everything else (logged, body stays generic)

SEE ALSO:
  - dto.go: request/response data structures
  - server.go: router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/crewtrack/attendance-engine/core"
	"github.com/crewtrack/attendance-engine/eligibility"
	"github.com/crewtrack/attendance-engine/leave"
	"github.com/crewtrack/attendance-engine/submission"
	"github.com/crewtrack/attendance-engine/warning"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Submissions *submission.Store
	Casual      *leave.Ledger
	Requests    *leave.Requests
	Approvals   *leave.Approvals
	Eligibility *eligibility.Cache
	Warnings    *warning.Engine
	Directory   core.Directory
	Notifier    core.Notifier

	// RequestChannel is where pending medical/special requests are announced
	// for approvers.
	RequestChannel string

	// RetentionDays bounds the admin purge of stale requests.
	RetentionDays int

	Clock core.Clock
}

func (h *Handler) now() time.Time {
	if h.Clock != nil {
		return h.Clock.Now()
	}
	return time.Now()
}

// today returns the current civil date in the sweep frame.
func (h *Handler) today() time.Time {
	now := h.now().In(core.IST)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// resolveEligible resolves a member and enforces the eligibility guard.
// The returned bool is false when a response has already been written.
func (h *Handler) resolveEligible(w http.ResponseWriter, r *http.Request, guild core.GuildID, id core.MemberID) (core.Member, bool) {
	member, err := h.Directory.Resolve(r.Context(), guild, id)
	if err != nil {
		writeDomainError(w, err)
		return core.Member{}, false
	}
	ok, err := h.Eligibility.IsEligible(r.Context(), member)
	if err != nil {
		writeDomainError(w, err)
		return core.Member{}, false
	}
	if !ok {
		writeError(w, http.StatusForbidden, "only active team members can use this command", nil)
		return core.Member{}, false
	}
	return member, true
}

// =============================================================================
// STATUS SUBMISSION
// =============================================================================

// SubmitStatus records a daily status update.
// POST /api/guilds/{guild}/status
func (h *Handler) SubmitStatus(w http.ResponseWriter, r *http.Request) {
	guild := core.GuildID(chi.URLParam(r, "guild"))

	var req SubmitStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	member, ok := h.resolveEligible(w, r, guild, core.MemberID(req.MemberID))
	if !ok {
		return
	}

	today := h.today()
	day, err := submission.ValidateStatusDate(req.Date, today)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	hours, err := submission.ValidateHours(req.Hours, req.WFH, core.IsWeekend(day))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	description, err := submission.ValidateDescription(req.Description)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	blockers, err := submission.ValidateBlockers(req.Blockers)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	replaced := len(h.Submissions.SubmissionsForDate(member.ID, day)) > 0

	sub, err := h.Submissions.Record(r.Context(), submission.RecordInput{
		UserID:      member.ID,
		Username:    member.DisplayName,
		Date:        req.Date,
		Hours:       hours,
		Description: description,
		Blockers:    blockers,
		WFH:         req.WFH,
		Late:        submission.IsLate(day, today),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	submissionsRecorded.Inc()

	stats := h.Submissions.WeeklyStats(member.ID, core.WeekStart(day))
	writeJSON(w, http.StatusCreated, SubmitStatusResponse{
		Submission: SubmissionDTO{
			ID:       sub.ID,
			Date:     sub.Date,
			Hours:    sub.Hours.String(),
			Blockers: sub.Blockers,
			WFH:      sub.WFH,
			Late:     sub.Late,
		},
		Replaced: replaced,
		Feedback: weeklyFeedback(stats),
	})
}

// weeklyWarnRemaining is the remaining-hours level above which the
// feedback turns into a warning rather than a progress note.
var weeklyWarnRemaining = decimal.NewFromInt(25)

// weeklyFeedback renders the progress line shown after every submission.
func weeklyFeedback(stats submission.WeeklyStats) string {
	if stats.TargetMet {
		return fmt.Sprintf("Weekly target of %s hours achieved! Total: %s hours.",
			submission.WeeklyTargetHours, stats.TotalHours)
	}
	if stats.RemainingHours.GreaterThan(weeklyWarnRemaining) {
		return fmt.Sprintf("You have logged only %s hours this week. %s more needed to hit the %s hour target.",
			stats.TotalHours, stats.RemainingHours, submission.WeeklyTargetHours)
	}
	return fmt.Sprintf("%s hours logged this week, %s to go.", stats.TotalHours, stats.RemainingHours)
}

// =============================================================================
// LEAVE
// =============================================================================

// RequestLeave handles all three leave types. Casual leave is consumed
// against the monthly quota immediately; medical and special leave create
// a request routed through the approval workflow.
// POST /api/guilds/{guild}/leaves
func (h *Handler) RequestLeave(w http.ResponseWriter, r *http.Request) {
	guild := core.GuildID(chi.URLParam(r, "guild"))

	var req RequestLeaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	member, ok := h.resolveEligible(w, r, guild, core.MemberID(req.MemberID))
	if !ok {
		return
	}

	// Casual leave bypasses the approval workflow entirely.
	if leave.Type(req.Type) == leave.TypeCasual {
		h.requestCasual(w, r, member, req.DateRange)
		return
	}

	created, err := h.Requests.Create(r.Context(), leave.CreateInput{
		Type:      leave.Type(req.Type),
		MemberID:  member.ID,
		Roles:     member.Roles,
		DateRange: req.DateRange,
		Reason:    req.Reason,
		Mode:      req.Mode,
		Today:     h.today(),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	leaveRequestsCreated.WithLabelValues(string(created.Type), string(created.Status)).Inc()

	if created.Status == leave.StatusAutoApproved {
		h.Approvals.AnnounceAutoApproval(r.Context(), created, member.DisplayName)
	} else {
		h.announcePending(r, created, member.DisplayName)
	}
	writeJSON(w, http.StatusCreated, toLeaveRequestDTO(created))
}

func (h *Handler) requestCasual(w http.ResponseWriter, r *http.Request, member core.Member, dateRange string) {
	rng, err := core.ParseDayRange(dateRange)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if rng.Start.Before(h.today()) {
		writeError(w, http.StatusBadRequest, "leave start date cannot be in the past", nil)
		return
	}

	days, err := h.Casual.RequestCasual(r.Context(), member.ID, rng, member.Roles)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	leaveRequestsCreated.WithLabelValues(string(leave.TypeCasual), "consumed").Inc()

	used, quota := h.Casual.Usage(member.ID, rng.Start.Month(), rng.Start.Year(), member.Roles)
	allowance := "unlimited"
	if !quota.Unlimited {
		allowance = strconv.Itoa(quota.Days)
	}
	writeJSON(w, http.StatusCreated, CasualLeaveDTO{
		Days:      days,
		UsedTotal: used,
		Allowance: allowance,
	})
}

// announcePending posts a pending request to the approver channel.
func (h *Handler) announcePending(r *http.Request, req leave.Request, requesterName string) {
	modeText := ""
	if req.Mode != "" {
		modeText = "\nMode: " + string(req.Mode)
	}
	msg := fmt.Sprintf("New leave request from %s\nType: %s\nDate Range: %s to %s\nReason: %s%s\nStatus: Pending",
		requesterName, req.Type, req.Start, req.End, req.Reason, modeText)
	if err := h.Notifier.Post(r.Context(), h.RequestChannel, msg); err != nil {
		log.Printf("[API] failed to announce request %s: %v", req.RequestID, err)
	}
}

// ApproveLeave applies an approve decision.
// POST /api/guilds/{guild}/leaves/{id}/approve
func (h *Handler) ApproveLeave(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, leave.DecisionApprove)
}

// DenyLeave applies a deny decision.
// POST /api/guilds/{guild}/leaves/{id}/deny
func (h *Handler) DenyLeave(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, leave.DecisionDeny)
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, decision leave.Decision) {
	guild := core.GuildID(chi.URLParam(r, "guild"))
	requestID := chi.URLParam(r, "id")

	var req DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	actor, err := h.Directory.Resolve(r.Context(), guild, core.MemberID(req.ActorID))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	updated, err := h.Approvals.Decide(r.Context(), guild, requestID, actor, decision, req.ThreadID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	leaveRequestsDecided.WithLabelValues(string(updated.Type), string(updated.Status)).Inc()
	writeJSON(w, http.StatusOK, toLeaveRequestDTO(updated))
}

// OpenDiscussion opens a discussion thread for a pending request.
// POST /api/guilds/{guild}/leaves/{id}/discussion
func (h *Handler) OpenDiscussion(w http.ResponseWriter, r *http.Request) {
	guild := core.GuildID(chi.URLParam(r, "guild"))
	requestID := chi.URLParam(r, "id")

	var req OpenDiscussionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	opener, err := h.Directory.Resolve(r.Context(), guild, core.MemberID(req.OpenerID))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	thread, err := h.Approvals.OpenDiscussion(r.Context(), guild, requestID, req.ParentChannel, opener)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"thread_id": thread})
}

// =============================================================================
// REPORTS
// =============================================================================

// WeeklyReport returns a member's week against the target. ?offset=N
// shifts N whole weeks back.
// GET /api/guilds/{guild}/members/{id}/reports/weekly
func (h *Handler) WeeklyReport(w http.ResponseWriter, r *http.Request) {
	memberID := core.MemberID(chi.URLParam(r, "id"))

	offset := 0
	if raw := r.URL.Query().Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "offset must be a non-negative integer", nil)
			return
		}
		offset = n
	}

	weekStart := core.WeekStart(h.today()).AddDate(0, 0, -7*offset)
	stats := h.Submissions.WeeklyStats(memberID, weekStart)
	username, _ := h.Submissions.Username(memberID)
	writeJSON(w, http.StatusOK, toWeeklyReportDTO(string(memberID), username, core.FormatDay(weekStart), stats))
}

// MonthlyReport combines submission, casual-leave and warning figures.
// Defaults to the current month. ?month=M&year=Y override.
// GET /api/guilds/{guild}/members/{id}/reports/monthly
func (h *Handler) MonthlyReport(w http.ResponseWriter, r *http.Request) {
	guild := core.GuildID(chi.URLParam(r, "guild"))
	memberID := core.MemberID(chi.URLParam(r, "id"))

	today := h.today()
	month, year := today.Month(), today.Year()
	if raw := r.URL.Query().Get("month"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 12 {
			writeError(w, http.StatusBadRequest, "month must be 1-12", nil)
			return
		}
		month = time.Month(n)
	}
	if raw := r.URL.Query().Get("year"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "year must be an integer", nil)
			return
		}
		year = n
	}

	// Quota tiers depend on current roles, so the member must still resolve.
	member, err := h.Directory.Resolve(r.Context(), guild, memberID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	stats := h.Submissions.MonthlyStats(memberID, month, year)
	used, quota := h.Casual.Usage(memberID, month, year, member.Roles)
	allowance := "unlimited"
	if !quota.Unlimited {
		allowance = strconv.Itoa(quota.Days)
	}

	writeJSON(w, http.StatusOK, MonthlyReportDTO{
		MemberID:         string(memberID),
		Month:            int(month),
		Year:             year,
		TotalHours:       stats.TotalHours.String(),
		TotalSubmissions: stats.TotalSubmissions,
		LateSubmissions:  stats.LateSubmissions,
		DaysWorked:       stats.DaysWorked,
		CasualLeavesUsed: used,
		CasualAllowance:  allowance,
		Warnings:         h.Warnings.Count(memberID, month, year),
	})
}

// RangeReport is the inclusive-range export aggregate.
// GET /api/guilds/{guild}/members/{id}/reports/range?from=DD-MM-YYYY&to=DD-MM-YYYY
func (h *Handler) RangeReport(w http.ResponseWriter, r *http.Request) {
	memberID := core.MemberID(chi.URLParam(r, "id"))

	from, err := core.ParseDay(r.URL.Query().Get("from"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	to, err := core.ParseDay(r.URL.Query().Get("to"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if from.After(to) {
		writeError(w, http.StatusBadRequest, "from date cannot be after to date", nil)
		return
	}

	stats := h.Submissions.RangeStats(memberID, from, to, h.Casual)
	writeJSON(w, http.StatusOK, RangeReportDTO{
		MemberID:           string(memberID),
		From:               core.FormatDay(from),
		To:                 core.FormatDay(to),
		TotalStatusUpdates: stats.TotalStatusUpdates,
		TotalSubmissions:   stats.TotalSubmissions,
		TotalHoursWorked:   stats.TotalHoursWorked.String(),
		TotalLeaves:        stats.TotalLeaves,
		LateStatusHours:    stats.LateStatusHours.String(),
	})
}

// TeamWeeklyReport summarizes the current week for every eligible member,
// most hours first.
// GET /api/guilds/{guild}/reports/weekly
func (h *Handler) TeamWeeklyReport(w http.ResponseWriter, r *http.Request) {
	guild := core.GuildID(chi.URLParam(r, "guild"))

	members, err := h.Eligibility.EligibleMembers(r.Context(), guild)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	weekStart := core.WeekStart(h.today())
	weekStartStr := core.FormatDay(weekStart)

	type memberWeek struct {
		member core.Member
		stats  submission.WeeklyStats
	}
	weeks := make([]memberWeek, 0, len(members))
	for _, m := range members {
		weeks = append(weeks, memberWeek{member: m, stats: h.Submissions.WeeklyStats(m.ID, weekStart)})
	}
	sort.SliceStable(weeks, func(i, j int) bool {
		return weeks[i].stats.TotalHours.GreaterThan(weeks[j].stats.TotalHours)
	})

	reports := make([]WeeklyReportDTO, 0, len(weeks))
	for _, wk := range weeks {
		reports = append(reports, toWeeklyReportDTO(string(wk.member.ID), wk.member.DisplayName, weekStartStr, wk.stats))
	}
	writeJSON(w, http.StatusOK, reports)
}

// =============================================================================
// EVENTS
// =============================================================================

// RoleChange patches the eligibility cache from a member role update.
// POST /api/guilds/{guild}/events/role-change
func (h *Handler) RoleChange(w http.ResponseWriter, r *http.Request) {
	guild := core.GuildID(chi.URLParam(r, "guild"))

	var ev RoleChangeEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if ev.MemberID == "" {
		writeError(w, http.StatusBadRequest, "member_id is required", nil)
		return
	}

	err := h.Eligibility.ApplyRoleChange(r.Context(), core.RoleChange{
		GuildID: guild,
		ID:      core.MemberID(ev.MemberID),
		Before:  ev.Before,
		After:   ev.After,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// ADMIN
// =============================================================================

// RefreshEligibility rebuilds a guild's eligibility set unconditionally.
// POST /api/admin/guilds/{guild}/cache/refresh
func (h *Handler) RefreshEligibility(w http.ResponseWriter, r *http.Request) {
	guild := core.GuildID(chi.URLParam(r, "guild"))
	count, err := h.Eligibility.ForceRefresh(r.Context(), guild)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Count: count})
}

// ResetWarnings drops warning counts from months other than the current one.
// POST /api/admin/warnings/reset
func (h *Handler) ResetWarnings(w http.ResponseWriter, r *http.Request) {
	cleared, err := h.Warnings.ResetMonthly(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Count: cleared})
}

// PurgeLeaveRequests removes requests older than the retention window.
// POST /api/admin/leaves/purge
func (h *Handler) PurgeLeaveRequests(w http.ResponseWriter, r *http.Request) {
	removed, err := h.Requests.PurgeStale(r.Context(), h.RetentionDays)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Count: removed})
}

// GrantBonusDays adds casual-leave bonus days to one member.
// POST /api/admin/bonus-days
func (h *Handler) GrantBonusDays(w http.ResponseWriter, r *http.Request) {
	var req BonusDaysRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.MemberID == "" || req.Days <= 0 {
		writeError(w, http.StatusBadRequest, "member_id and a positive days count are required", nil)
		return
	}
	if err := h.Casual.GrantBonusDays(r.Context(), core.MemberID(req.MemberID), req.Days); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain error categories onto HTTP statuses.
// Storage and unknown failures are logged and answered generically.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, core.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, err.Error(), nil)
	case core.IsClientError(err):
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	default:
		log.Printf("[API] internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error", nil)
	}
}

/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal ledgers from the external API contract.

NAMING CONVENTION:
  - *Request: Request body types from clients
  - *DTO: Response types returned to clients

VALIDATION:
  Validation is done in handlers and the domain packages, not in DTOs.
  DTOs are pure data carriers. Hours travel as strings in both directions
  so the decimal precision of the ledger never rides through a float64.

SEE ALSO:
  - handlers.go: Uses these types
  - leave/request.go: the domain Request these DTOs mirror
*/
package api

import (
	"github.com/crewtrack/attendance-engine/leave"
	"github.com/crewtrack/attendance-engine/submission"
)

// =============================================================================
// STATUS SUBMISSIONS
// =============================================================================

// SubmitStatusRequest is one daily status update.
type SubmitStatusRequest struct {
	MemberID    string `json:"member_id"`
	Date        string `json:"date"`
	Hours       string `json:"hours"`
	Description string `json:"description"`
	Blockers    string `json:"blockers"`
	WFH         bool   `json:"is_wfh"`
}

// SubmissionDTO represents a recorded submission in API responses.
type SubmissionDTO struct {
	ID       string `json:"id"`
	Date     string `json:"date"`
	Hours    string `json:"hours"`
	Blockers string `json:"blockers"`
	WFH      bool   `json:"is_wfh"`
	Late     bool   `json:"is_late"`
}

// SubmitStatusResponse pairs the recorded submission with the weekly
// progress feedback shown to the member.
type SubmitStatusResponse struct {
	Submission SubmissionDTO `json:"submission"`
	Replaced   bool          `json:"replaced"`
	Feedback   string        `json:"feedback"`
}

// =============================================================================
// LEAVE
// =============================================================================

// RequestLeaveRequest covers all three leave types. DateRange is
// "DD-MM-YYYY to DD-MM-YYYY". Mode applies to medical leave only.
type RequestLeaveRequest struct {
	MemberID  string `json:"member_id"`
	Type      string `json:"type"`
	DateRange string `json:"date_range"`
	Reason    string `json:"reason,omitempty"`
	Mode      string `json:"mode,omitempty"`
}

// CasualLeaveDTO is the response for a consumed casual leave.
type CasualLeaveDTO struct {
	Days      int    `json:"days"`
	UsedTotal int    `json:"used_total"`
	Allowance string `json:"allowance"` // day count or "unlimited"
}

// LeaveRequestDTO mirrors a medical/special request.
type LeaveRequestDTO struct {
	RequestID  string `json:"request_id"`
	Type       string `json:"type"`
	MemberID   string `json:"member_id"`
	Start      string `json:"start"`
	End        string `json:"end"`
	Reason     string `json:"reason"`
	Mode       string `json:"mode,omitempty"`
	Status     string `json:"status"`
	ApproverID string `json:"approver_id,omitempty"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at,omitempty"`
}

func toLeaveRequestDTO(req leave.Request) LeaveRequestDTO {
	return LeaveRequestDTO{
		RequestID:  req.RequestID,
		Type:       string(req.Type),
		MemberID:   string(req.MemberID),
		Start:      req.Start,
		End:        req.End,
		Reason:     req.Reason,
		Mode:       string(req.Mode),
		Status:     string(req.Status),
		ApproverID: string(req.ApproverID),
		CreatedAt:  req.CreatedAt,
		UpdatedAt:  req.UpdatedAt,
	}
}

// DecisionRequest carries an approve/deny action on a pending request.
type DecisionRequest struct {
	ActorID  string `json:"actor_id"`
	ThreadID string `json:"thread_id,omitempty"`
}

// OpenDiscussionRequest opens a discussion thread for a pending request.
type OpenDiscussionRequest struct {
	OpenerID      string `json:"opener_id"`
	ParentChannel string `json:"parent_channel"`
}

// =============================================================================
// REPORTS
// =============================================================================

// WeeklyReportDTO is a member's week against the target.
type WeeklyReportDTO struct {
	MemberID       string        `json:"member_id"`
	Username       string        `json:"username,omitempty"`
	WeekStart      string        `json:"week_start"`
	TotalHours     string        `json:"total_hours"`
	TargetMet      bool          `json:"target_met"`
	RemainingHours string        `json:"remaining_hours"`
	Submissions    int           `json:"submissions_count"`
	DailyBreakdown []DayHoursDTO `json:"daily_breakdown"`
}

type DayHoursDTO struct {
	Date    string `json:"date"`
	DayName string `json:"day_name"`
	Hours   string `json:"hours"`
}

func toWeeklyReportDTO(memberID, username, weekStart string, stats submission.WeeklyStats) WeeklyReportDTO {
	breakdown := make([]DayHoursDTO, len(stats.DailyBreakdown))
	for i, d := range stats.DailyBreakdown {
		breakdown[i] = DayHoursDTO{Date: d.Date, DayName: d.DayName, Hours: d.Hours.String()}
	}
	return WeeklyReportDTO{
		MemberID:       memberID,
		Username:       username,
		WeekStart:      weekStart,
		TotalHours:     stats.TotalHours.String(),
		TargetMet:      stats.TargetMet,
		RemainingHours: stats.RemainingHours.String(),
		Submissions:    stats.SubmissionsCount,
		DailyBreakdown: breakdown,
	}
}

// MonthlyReportDTO combines submission, leave and warning figures for a
// member's month.
type MonthlyReportDTO struct {
	MemberID         string `json:"member_id"`
	Month            int    `json:"month"`
	Year             int    `json:"year"`
	TotalHours       string `json:"total_hours"`
	TotalSubmissions int    `json:"total_submissions"`
	LateSubmissions  int    `json:"late_submissions"`
	DaysWorked       int    `json:"days_worked"`
	CasualLeavesUsed int    `json:"casual_leaves_used"`
	CasualAllowance  string `json:"casual_allowance"`
	Warnings         int    `json:"warnings"`
}

// RangeReportDTO is the inclusive-range export aggregate.
type RangeReportDTO struct {
	MemberID           string `json:"member_id"`
	From               string `json:"from"`
	To                 string `json:"to"`
	TotalStatusUpdates int    `json:"total_status_updates"`
	TotalSubmissions   int    `json:"total_submissions"`
	TotalHoursWorked   string `json:"total_hours_worked"`
	TotalLeaves        int    `json:"total_leaves"`
	LateStatusHours    string `json:"late_status_hours"`
}

// =============================================================================
// EVENTS AND ADMIN
// =============================================================================

// RoleChangeEvent is the member-update notification from the chat adapter.
type RoleChangeEvent struct {
	MemberID string   `json:"member_id"`
	Before   []string `json:"before"`
	After    []string `json:"after"`
}

// BonusDaysRequest grants extra casual-leave days to one member.
type BonusDaysRequest struct {
	MemberID string `json:"member_id"`
	Days     int    `json:"days"`
}

// CountResponse is the generic count result for admin operations.
type CountResponse struct {
	Count int `json:"count"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

/*
Package roles classifies a member's role-name set into the policy profile
every other component keys off: team, seniority year, hierarchy level, and
warning exemption.

PURPOSE:
  Pure functions over a role-name snapshot. Nothing here is persisted;
  a profile is computed fresh at every decision point.

THE TWO FOURTH-YEAR SPELLINGS:
  YearChannelPrefixes carries the key "4nd_years" while the hierarchy and
  exemption checks use "4th_years". These are two different literal strings
  in two independent maps and are deliberately NOT unified: a member holding
  only "4th_years" has hierarchy level 4 and is warning-exempt, yet fails
  year validation. Unifying them would change who passes Validate. See the
  non-interchangeability test.

AMBIGUOUS ROLE SETS:
  When a member holds two team roles (or two year roles), the last match in
  the supplied slice wins. The slice order is the directory's snapshot order,
  so the outcome is deterministic for a given snapshot.
*/
package roles

import (
	"strings"

	"github.com/crewtrack/attendance-engine/core"
)

// =============================================================================
// ROLE NAME CONSTANTS
// =============================================================================

const (
	RoleCoreMember      = "Core Member"
	RoleFourthYear      = "4th_years"
	RoleThirdYear       = "3rd_years"
	RoleCurrentTeam     = "current-team"
	RoleFirstProbation  = "1st Probation"
	RoleSecondProbation = "2nd Probation"
)

// TeamCategories maps each team role name to its status-channel category.
var TeamCategories = map[string]string{
	"RedTeam":    "Red Teaming",
	"Android":    "Mobile",
	"BlockChain": "Blockchain",
	"Mobile":     "Mobile",
}

// YearChannelPrefixes maps each year role name to its channel-name prefix.
// The "4nd_years" key is intentionally distinct from RoleFourthYear.
var YearChannelPrefixes = map[string]string{
	"Trainee Member": "1st",
	"1st_years":      "1st",
	"2nd_years":      "2nd",
	"3rd_years":      "3rd",
	"4nd_years":      "4th",
}

// Hierarchy assigns approval levels. Roles absent from this map contribute
// level 0; a member's level is the max across all held roles.
var Hierarchy = map[string]int{
	"Trainee Member": 1,
	"2nd_years":      2,
	"3rd_years":      3,
	"4th_years":      4,
	RoleCoreMember:   4,
}

// =============================================================================
// PROFILE
// =============================================================================

// Profile is the derived classification of a role set. Never persisted.
type Profile struct {
	Team         string // team role name, "" if none
	TeamCategory string
	Year         string // year role name, "" if none
	YearPrefix   string
	Level        int
	IsCore       bool
	IsExempt     bool // exempt from attendance warnings
}

// Eligible reports whether both a team and a year role were found.
func (p Profile) Eligible() bool { return p.Team != "" && p.Year != "" }

// Classify derives the profile from a role-name snapshot. When the snapshot
// contains more than one team or year role, the last one in slice order wins.
func Classify(roleNames []string) Profile {
	var p Profile
	for _, name := range roleNames {
		if category, ok := TeamCategories[name]; ok {
			p.Team = name
			p.TeamCategory = category
		}
		if prefix, ok := YearChannelPrefixes[name]; ok {
			p.Year = name
			p.YearPrefix = prefix
		}
		if level, ok := Hierarchy[name]; ok && level > p.Level {
			p.Level = level
		}
		if name == RoleCoreMember {
			p.IsCore = true
		}
		if name == RoleCoreMember || name == RoleFourthYear {
			p.IsExempt = true
		}
	}
	return p
}

// Validate classifies and rejects role sets missing a team or year role.
// The messages name the valid choices and are returned to the user verbatim.
func Validate(roleNames []string) (Profile, error) {
	p := Classify(roleNames)
	if p.Team == "" {
		return p, &core.ValidationError{
			Field:   "roles",
			Message: "you must have a team role (RedTeam, Android, BlockChain, Mobile) to use this bot",
		}
	}
	if p.Year == "" {
		return p, &core.ValidationError{
			Field:   "roles",
			Message: "you must have a year role (Trainee Member, 1st_years, 2nd_years, 3rd_years, 4th_years) to use this bot",
		}
	}
	return p, nil
}

// CanApprove reports whether the approver outranks the requester. Equal
// levels cannot approve each other; self-approval is rejected by the
// identity check upstream, independent of level.
func CanApprove(approverRoles, requesterRoles []string) bool {
	return Classify(approverRoles).Level > Classify(requesterRoles).Level
}

// HighestRoleName returns the name of the highest-ranked hierarchy role a
// member holds, for display. "Unknown" when none of the roles rank.
func HighestRoleName(roleNames []string) string {
	best, name := 0, "Unknown"
	for _, r := range roleNames {
		if level, ok := Hierarchy[r]; ok && level > best {
			best, name = level, r
		}
	}
	return name
}

// HasCurrentTeam reports whether the role set carries the current-team
// designation. The comparison is case-insensitive, matching how the
// eligibility cache rebuilds.
func HasCurrentTeam(roleNames []string) bool {
	for _, r := range roleNames {
		if strings.EqualFold(r, RoleCurrentTeam) {
			return true
		}
	}
	return false
}

package roles_test

import (
	"strings"
	"testing"

	"github.com/crewtrack/attendance-engine/roles"
)

// =============================================================================
// CLASSIFICATION TESTS
// =============================================================================

func TestClassify_TeamAndYear(t *testing.T) {
	// GIVEN: A member with one team and one year role
	// WHEN: Classifying
	// THEN: Team, category, year and prefix are all derived

	p := roles.Classify([]string{"RedTeam", "2nd_years", "current-team"})

	if p.Team != "RedTeam" {
		t.Errorf("expected team RedTeam, got %q", p.Team)
	}
	if p.TeamCategory != "Red Teaming" {
		t.Errorf("expected category Red Teaming, got %q", p.TeamCategory)
	}
	if p.Year != "2nd_years" {
		t.Errorf("expected year 2nd_years, got %q", p.Year)
	}
	if p.YearPrefix != "2nd" {
		t.Errorf("expected prefix 2nd, got %q", p.YearPrefix)
	}
	if p.Level != 2 {
		t.Errorf("expected level 2, got %d", p.Level)
	}
}

func TestClassify_LastMatchWins(t *testing.T) {
	// GIVEN: A member holding two team roles
	// WHEN: Classifying
	// THEN: The later role in slice order wins, but Level stays the max

	p := roles.Classify([]string{"Android", "BlockChain", "3rd_years", "2nd_years"})

	if p.Team != "BlockChain" {
		t.Errorf("expected last team role to win, got %q", p.Team)
	}
	if p.Year != "2nd_years" {
		t.Errorf("expected last year role to win, got %q", p.Year)
	}
	if p.Level != 3 {
		t.Errorf("level is max across roles, expected 3, got %d", p.Level)
	}
}

func TestClassify_Exemption(t *testing.T) {
	// Core Members and 4th_years are warning-exempt; nobody else is.
	cases := []struct {
		name   string
		roles  []string
		exempt bool
	}{
		{"core member", []string{"RedTeam", "3rd_years", roles.RoleCoreMember}, true},
		{"fourth year", []string{"Mobile", roles.RoleFourthYear}, true},
		{"third year", []string{"Mobile", "3rd_years"}, false},
		{"trainee", []string{"Android", "Trainee Member"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := roles.Classify(tc.roles).IsExempt; got != tc.exempt {
				t.Errorf("IsExempt = %v, want %v", got, tc.exempt)
			}
		})
	}
}

// =============================================================================
// THE TWO FOURTH-YEAR SPELLINGS
// =============================================================================

func TestFourthYearSpellings_NotInterchangeable(t *testing.T) {
	// GIVEN: The "4th_years" hierarchy role and the "4nd_years" channel key
	// WHEN: A member holds only one of them
	// THEN: Each unlocks its own half and not the other's

	// "4th_years": level 4 and exempt, but no year classification.
	p := roles.Classify([]string{"RedTeam", roles.RoleFourthYear})
	if p.Level != 4 {
		t.Errorf("4th_years should carry level 4, got %d", p.Level)
	}
	if !p.IsExempt {
		t.Error("4th_years should be warning-exempt")
	}
	if p.Year != "" {
		t.Errorf("4th_years must not classify as a year role, got %q", p.Year)
	}
	if _, err := roles.Validate([]string{"RedTeam", roles.RoleFourthYear}); err == nil {
		t.Error("4th_years alone should fail year validation")
	}

	// "4nd_years": year classification, but level 0 and not exempt.
	p = roles.Classify([]string{"RedTeam", "4nd_years"})
	if p.Year != "4nd_years" || p.YearPrefix != "4th" {
		t.Errorf("4nd_years should classify as year with prefix 4th, got %q/%q", p.Year, p.YearPrefix)
	}
	if p.Level != 0 {
		t.Errorf("4nd_years carries no hierarchy level, got %d", p.Level)
	}
	if p.IsExempt {
		t.Error("4nd_years must not be warning-exempt")
	}
}

// =============================================================================
// VALIDATION TESTS
// =============================================================================

func TestValidate_MissingTeam(t *testing.T) {
	_, err := roles.Validate([]string{"2nd_years", "current-team"})
	if err == nil {
		t.Fatal("expected error for missing team role")
	}
	if !strings.Contains(err.Error(), "team role") {
		t.Errorf("message should name the missing team role, got %q", err.Error())
	}
}

func TestValidate_MissingYear(t *testing.T) {
	_, err := roles.Validate([]string{"Mobile"})
	if err == nil {
		t.Fatal("expected error for missing year role")
	}
	if !strings.Contains(err.Error(), "year role") {
		t.Errorf("message should name the missing year role, got %q", err.Error())
	}
}

func TestValidate_Complete(t *testing.T) {
	p, err := roles.Validate([]string{"BlockChain", "Trainee Member"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.Eligible() {
		t.Error("complete role set should be eligible")
	}
}

// =============================================================================
// APPROVAL HIERARCHY TESTS
// =============================================================================

func TestCanApprove_StrictlyGreater(t *testing.T) {
	second := []string{"Mobile", "2nd_years"}
	third := []string{"Mobile", "3rd_years"}
	core := []string{"Mobile", "3rd_years", roles.RoleCoreMember}

	if !roles.CanApprove(third, second) {
		t.Error("3rd year should approve 2nd year")
	}
	if roles.CanApprove(third, third) {
		t.Error("equal levels must not approve each other")
	}
	if roles.CanApprove(second, third) {
		t.Error("lower level must not approve higher")
	}
	if !roles.CanApprove(core, third) {
		t.Error("Core Member (level 4) should approve 3rd year")
	}
}

func TestHasCurrentTeam_CaseInsensitive(t *testing.T) {
	if !roles.HasCurrentTeam([]string{"Mobile", "Current-Team"}) {
		t.Error("current-team match should be case-insensitive")
	}
	if roles.HasCurrentTeam([]string{"Mobile", "2nd_years"}) {
		t.Error("no current-team role should mean false")
	}
}

func TestHighestRoleName(t *testing.T) {
	got := roles.HighestRoleName([]string{"Trainee Member", "3rd_years", "RedTeam"})
	if got != "3rd_years" {
		t.Errorf("expected 3rd_years, got %q", got)
	}
	if roles.HighestRoleName([]string{"RedTeam"}) != "Unknown" {
		t.Error("no ranked role should report Unknown")
	}
}

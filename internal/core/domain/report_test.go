package domain

import "testing"

func TestReportDecision(t *testing.T) {
	warning := Violation{Row: 1, Column: "a", Rule: RuleType, Severity: SeverityWarning}
	failure := Violation{Row: 1, Column: "a", Rule: RuleRange, Severity: SeverityError}

	tests := []struct {
		name   string
		report Report
		want   Decision
		passed bool
	}{
		{"clean", Report{}, DecisionProceed, true},
		{"info only", Report{Info: []Violation{{Rule: RuleUnknown, Severity: SeverityInfo}}}, DecisionProceed, true},
		{"warnings", Report{Warnings: []Violation{warning}}, DecisionProceedWithWarnings, true},
		{"errors", Report{Errors: []Violation{failure}, Warnings: []Violation{warning}}, DecisionBlocked, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.report.Decision(); got != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got)
			}
			if tt.report.Passed() != tt.passed {
				t.Fatalf("expected passed=%v", tt.passed)
			}
		})
	}
}

func TestGroupByRuleEmpty(t *testing.T) {
	groups := GroupByRule(nil)
	if groups == nil || len(groups) != 0 {
		t.Fatalf("expected empty non-nil groups, got %#v", groups)
	}
}

func TestGroupByRuleKeepsFirstAppearanceOrder(t *testing.T) {
	vs := []Violation{
		{Row: 1, Rule: RuleRange},
		{Row: 1, Rule: RuleRequired},
		{Row: 2, Rule: RuleRange},
		{Row: 3, Rule: RuleUnique},
	}
	groups := GroupByRule(vs)
	if len(groups) != 3 || groups[0].Rule != RuleRange || groups[1].Rule != RuleRequired || groups[2].Rule != RuleUnique {
		t.Fatalf("unexpected groups: %+v", groups)
	}
	if len(groups[0].Violations) != 2 || groups[0].Violations[1].Row != 2 {
		t.Fatalf("unexpected range group: %+v", groups[0].Violations)
	}
}

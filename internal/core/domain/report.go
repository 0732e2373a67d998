package domain

// Summary counts rows, not violations. A row with any error counts towards
// WithErrors only; WithWarnings holds rows that have warnings and no errors.
type Summary struct {
	Total        int `json:"total"`
	Valid        int `json:"valid"`
	WithErrors   int `json:"withErrors"`
	WithWarnings int `json:"withWarnings"`
}

// Report is the outcome of one validation run.
//
// Warnings is not filtered by row classification: a row that has both an
// error and a warning contributes to both lists while Summary counts it once,
// under WithErrors.
type Report struct {
	Errors   []Violation `json:"errors"`
	Warnings []Violation `json:"warnings"`
	Info     []Violation `json:"info"`
	Summary  Summary     `json:"summary"`
}

// Passed reports whether the dataset may move on. Warnings never block.
func (r Report) Passed() bool {
	return len(r.Errors) == 0
}

// Decision is the upload gate derived from a Report.
type Decision string

const (
	DecisionProceed             Decision = "proceed"
	DecisionProceedWithWarnings Decision = "proceed_with_warnings"
	DecisionBlocked             Decision = "blocked"
)

// Decision returns proceed when the report is clean, proceed_with_warnings
// when only warnings exist (the caller must confirm an override), and blocked
// when any error exists.
func (r Report) Decision() Decision {
	switch {
	case !r.Passed():
		return DecisionBlocked
	case len(r.Warnings) > 0:
		return DecisionProceedWithWarnings
	default:
		return DecisionProceed
	}
}

// IsSystemFailure reports whether the run failed as a whole rather than
// row by row.
func (r Report) IsSystemFailure() bool {
	return len(r.Errors) == 1 && r.Errors[0].Rule == RuleSystem
}

// RuleGroup is the violations of one rule, in report order.
type RuleGroup struct {
	Rule       Rule        `json:"rule"`
	Violations []Violation `json:"violations"`
}

// GroupByRule buckets violations by rule. Buckets appear in the order their
// rule first occurs and each bucket keeps the input order.
func GroupByRule(violations []Violation) []RuleGroup {
	groups := make([]RuleGroup, 0)
	index := make(map[Rule]int)
	for _, v := range violations {
		i, ok := index[v.Rule]
		if !ok {
			i = len(groups)
			index[v.Rule] = i
			groups = append(groups, RuleGroup{Rule: v.Rule})
		}
		groups[i].Violations = append(groups[i].Violations, v)
	}
	return groups
}

// GroupedReport is the per-severity, per-rule projection of a Report.
type GroupedReport struct {
	Errors   []RuleGroup `json:"errors"`
	Warnings []RuleGroup `json:"warnings"`
	Info     []RuleGroup `json:"info"`
}

func (r Report) Grouped() GroupedReport {
	return GroupedReport{
		Errors:   GroupByRule(r.Errors),
		Warnings: GroupByRule(r.Warnings),
		Info:     GroupByRule(r.Info),
	}
}

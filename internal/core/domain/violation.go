package domain

// Rule names the check that produced a Violation.
type Rule string

const (
	RuleRequired Rule = "required"
	RuleType     Rule = "type"
	RuleRange    Rule = "range"
	RuleFormat   Rule = "format"
	RuleUnique   Rule = "unique"
	RuleUnknown  Rule = "unknown"
	RuleSystem   Rule = "system"
)

// Severity indicates how critical a Violation is.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Violation is a single finding. Row is 1-indexed within one run and is 0
// for dataset-level failures; Column is empty in that case.
type Violation struct {
	Row      int      `json:"row"`
	Column   string   `json:"column"`
	Value    any      `json:"value,omitempty"`
	Rule     Rule     `json:"rule"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

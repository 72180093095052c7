package models

import "time"

// IssueSeverity represents the severity of a static analysis issue.
type IssueSeverity string

const (
	IssueSeverityError   IssueSeverity = "error"
	IssueSeverityWarning IssueSeverity = "warning"
	IssueSeverityInfo    IssueSeverity = "info"
)

// IssueKind distinguishes where a static issue came from.
type IssueKind string

const (
	IssueKindSyntax       IssueKind = "syntax"
	IssueKindType         IssueKind = "type"
	IssueKindBestPractice IssueKind = "best_practice"
)

// StaticIssue is a single structural finding from static checks.
// Severity is fixed at creation and never mutated.
type StaticIssue struct {
	Kind     IssueKind     `json:"kind"`
	Line     int           `json:"line"`
	Column   int           `json:"column,omitempty"` // 0 = unknown
	Message  string        `json:"message"`
	Severity IssueSeverity `json:"severity"`
	Rule     string        `json:"rule,omitempty"`
}

// CodeMetrics holds the derived complexity metrics for one file.
type CodeMetrics struct {
	Cyclomatic      float64 `json:"cyclomatic"`
	Cognitive       float64 `json:"cognitive"`
	Maintainability float64 `json:"maintainability"` // 0-100
	Halstead        int     `json:"halstead"`
	LinesOfCode     int     `json:"lines_of_code"`
}

// StaticAnalysisResult is the aggregate static outcome for one file.
type StaticAnalysisResult struct {
	FileID       string        `json:"file_id"`
	Language     string        `json:"language"`
	SyntaxIssues []StaticIssue `json:"syntax_issues"`
	TypeIssues   []StaticIssue `json:"type_issues"`
	StyleIssues  []StaticIssue `json:"style_issues"`
	Metrics      CodeMetrics   `json:"metrics"`

	// Derived: true iff no error-severity issue of that kind exists.
	SyntaxValid     bool `json:"syntax_valid"`
	TypeCheckPassed bool `json:"type_check_passed"`

	Backend  string        `json:"backend"` // which backend produced the issues
	Duration time.Duration `json:"duration"`
}

// ErrorCount returns the number of error-severity issues across all kinds.
func (r *StaticAnalysisResult) ErrorCount() int {
	return r.countSeverity(IssueSeverityError)
}

// WarningCount returns the number of warning-severity issues across all kinds.
func (r *StaticAnalysisResult) WarningCount() int {
	return r.countSeverity(IssueSeverityWarning)
}

// InfoCount returns the number of info-severity issues across all kinds.
func (r *StaticAnalysisResult) InfoCount() int {
	return r.countSeverity(IssueSeverityInfo)
}

// IssueCount returns the total number of issues of any severity.
func (r *StaticAnalysisResult) IssueCount() int {
	return len(r.SyntaxIssues) + len(r.TypeIssues) + len(r.StyleIssues)
}

// HasErrorOfKind reports whether any error-severity issue of the given kind exists.
func (r *StaticAnalysisResult) HasErrorOfKind(kind IssueKind) bool {
	for _, iss := range r.allIssues() {
		if iss.Kind == kind && iss.Severity == IssueSeverityError {
			return true
		}
	}
	return false
}

func (r *StaticAnalysisResult) allIssues() []StaticIssue {
	out := make([]StaticIssue, 0, r.IssueCount())
	out = append(out, r.SyntaxIssues...)
	out = append(out, r.TypeIssues...)
	out = append(out, r.StyleIssues...)
	return out
}

func (r *StaticAnalysisResult) countSeverity(sev IssueSeverity) int {
	n := 0
	for _, iss := range r.allIssues() {
		if iss.Severity == sev {
			n++
		}
	}
	return n
}

// ReviewedFile is the input to the review pipeline.
type ReviewedFile struct {
	ID       string `json:"id"`
	Path     string `json:"path"`
	Language string `json:"language"`
	Content  string `json:"content"`
}

package models

import "time"

// Decision is the terminal outcome for a reviewed file.
type Decision string

const (
	DecisionApproved     Decision = "approved"
	DecisionRejected     Decision = "rejected"
	DecisionNeedsChanges Decision = "needs_changes"
	DecisionManualReview Decision = "requires_manual_review"
)

// ValidDecision reports whether d is one of the four allowed values.
func ValidDecision(d Decision) bool {
	switch d {
	case DecisionApproved, DecisionRejected, DecisionNeedsChanges, DecisionManualReview:
		return true
	default:
		return false
	}
}

// ApprovalRequest is the snapshot fed to the approval policy.
// It is immutable once evaluated.
type ApprovalRequest struct {
	FileID           string                `json:"file_id"`
	Static           *StaticAnalysisResult `json:"static,omitempty"`
	AI               *AIReviewResult       `json:"ai,omitempty"`
	RequiresApproval bool                  `json:"requires_approval"`
	Threshold        int                   `json:"threshold"` // auto-approve threshold used
}

// TotalIssues returns the combined static + AI issue count.
func (r *ApprovalRequest) TotalIssues() int {
	n := 0
	if r.Static != nil {
		n += r.Static.IssueCount()
	}
	if r.AI != nil {
		n += len(r.AI.Findings)
	}
	return n
}

// ApprovalDecision is one recorded outcome for a file. Decisions are
// appended to per-file history and never edited.
type ApprovalDecision struct {
	FileID           string    `json:"file_id"`
	Decision         Decision  `json:"decision"`
	Reasoning        string    `json:"reasoning"`
	Reviewer         string    `json:"reviewer"`
	Comments         string    `json:"comments,omitempty"`
	RequestedChanges []string  `json:"requested_changes,omitempty"`
	ApprovedIssues   int       `json:"approved_issues"`
	DecidedAt        time.Time `json:"decided_at"`
}

// PendingApproval is a file awaiting human input, tracked with its
// creation timestamp for timeout purposes.
type PendingApproval struct {
	FileID      string           `json:"file_id"`
	Request     *ApprovalRequest `json:"request"`
	CreatedAt   time.Time        `json:"created_at"`
	TimeoutRisk bool             `json:"timeout_risk"` // age > 80% of the timeout
}

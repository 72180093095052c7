package models

import "time"

// SessionStatus represents the state of a review session.
type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusCompleted SessionStatus = "completed"
)

// ReviewSession is one bounded run of the orchestrator over a set of
// files. Counters are monotonically non-decreasing while the session is
// active; the session is sealed on completion.
type ReviewSession struct {
	ID             string        `json:"id"`
	Status         SessionStatus `json:"status"`
	FilesReviewed  int           `json:"files_reviewed"`
	FilesApproved  int           `json:"files_approved"`
	FilesRejected  int           `json:"files_rejected"`
	TotalIssues    int           `json:"total_issues"`
	CriticalIssues int           `json:"critical_issues"`

	// Cumulative per-stage durations across all files in the session.
	StaticDuration   time.Duration `json:"static_duration"`
	AIDuration       time.Duration `json:"ai_duration"`
	ApprovalDuration time.Duration `json:"approval_duration"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// FileReview is the persisted per-file outcome of a session run.
type FileReview struct {
	ID            string        `json:"id"`
	SessionID     string        `json:"session_id"`
	FileID        string        `json:"file_id"`
	Path          string        `json:"path"`
	CombinedScore *int          `json:"combined_score,omitempty"`
	Decision      Decision      `json:"decision"`
	IssueCount    int           `json:"issue_count"`
	CriticalCount int           `json:"critical_count"`
	Duration      time.Duration `json:"duration"`
	CreatedAt     time.Time     `json:"created_at"`
}

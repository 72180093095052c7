// Package events provides a typed publish/subscribe bus for pipeline
// lifecycle notifications. Delivery is fire-and-forget: handlers run
// synchronously but can never fail a publish, so decision logic stays
// independent of observers.
package events

import "time"

// Event is the sealed interface for pipeline lifecycle events.
// All event types must implement the unexported isEvent() method.
type Event interface {
	isEvent()
}

// Ensure all event types implement Event.
func (AnalysisStarted) isEvent()   {}
func (AnalysisCompleted) isEvent() {}
func (AnalysisErrored) isEvent()   {}
func (ReviewStarted) isEvent()     {}
func (ReviewCompleted) isEvent()   {}
func (ReviewErrored) isEvent()     {}
func (ApprovalRequired) isEvent()  {}
func (DecisionRecorded) isEvent()  {}
func (SessionStarted) isEvent()    {}
func (SessionCompleted) isEvent()  {}

// AnalysisStarted is published when static analysis of a file begins.
type AnalysisStarted struct {
	FileID string
}

// AnalysisCompleted is published when static analysis of a file finishes.
type AnalysisCompleted struct {
	FileID     string
	IssueCount int
	Backend    string
}

// AnalysisErrored is published when static analysis of a file fails.
type AnalysisErrored struct {
	FileID string
	Err    error
}

// ReviewStarted is published when an AI review of a file begins.
type ReviewStarted struct {
	FileID string
}

// ReviewCompleted is published when an AI review of a file finishes.
type ReviewCompleted struct {
	FileID string
	Score  int
	Cached bool
}

// ReviewErrored is published when an AI review of a file fails.
type ReviewErrored struct {
	FileID string
	Err    error
}

// ApprovalRequired is published when a file enters the pending queue.
type ApprovalRequired struct {
	FileID    string
	CreatedAt time.Time
}

// DecisionRecorded is published whenever a decision is appended to a
// file's history, whether automatic, human, or timeout-driven.
type DecisionRecorded struct {
	FileID   string
	Decision string
}

// SessionStarted is published when a review session is created.
type SessionStarted struct {
	SessionID string
}

// SessionCompleted is published when a review session is sealed.
type SessionCompleted struct {
	SessionID     string
	FilesReviewed int
}

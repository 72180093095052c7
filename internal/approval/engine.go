// Package approval applies the layered decision policy to combined
// static and AI results, and owns the pending-approval queue and the
// append-only decision history.
package approval

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/joescharf/crit/internal/events"
	"github.com/joescharf/crit/internal/models"
)

// Config holds approval policy configuration.
type Config struct {
	AutoApproveThreshold     int           // AI score at or above which a file bypasses review
	RequireApprovalThreshold int           // AI score below which review is always required
	AutoRejectCritical       bool          // critical findings trigger review/rejection rules
	MaxIgnorableIssues       int           // total issues tolerated before review is required
	Timeout                  time.Duration // pending entries older than this expire
}

// DefaultConfig returns the default policy config, reading from viper
// when available.
func DefaultConfig() Config {
	autoApprove := viper.GetInt("approval.auto_approve_threshold")
	if autoApprove <= 0 {
		autoApprove = 90
	}

	requireApproval := viper.GetInt("approval.require_approval_threshold")
	if requireApproval <= 0 {
		requireApproval = 60
	}

	maxIgnorable := viper.GetInt("approval.max_ignorable_issues")
	if maxIgnorable <= 0 {
		maxIgnorable = 5
	}

	timeoutMin := viper.GetInt("approval.timeout_minutes")
	if timeoutMin <= 0 {
		timeoutMin = 60
	}

	autoReject := true
	if viper.IsSet("approval.auto_reject_critical") {
		autoReject = viper.GetBool("approval.auto_reject_critical")
	}

	return Config{
		AutoApproveThreshold:     autoApprove,
		RequireApprovalThreshold: requireApproval,
		AutoRejectCritical:       autoReject,
		MaxIgnorableIssues:       maxIgnorable,
		Timeout:                  time.Duration(timeoutMin) * time.Minute,
	}
}

// timeoutRiskFraction marks pending entries nearing expiry.
const timeoutRiskFraction = 0.8

// Engine evaluates approval requests and manages pending approvals.
// All state is mutex-guarded; the expiry sweep may run from a ticker
// goroutine.
type Engine struct {
	cfg Config
	bus *events.Bus

	mu      sync.Mutex
	pending map[string]*models.PendingApproval
	history map[string][]models.ApprovalDecision
	now     func() time.Time // replaceable in tests
}

// New creates an approval engine. A nil bus disables event publication.
func New(cfg Config, bus *events.Bus) *Engine {
	return &Engine{
		cfg:     cfg,
		bus:     bus,
		pending: make(map[string]*models.PendingApproval),
		history: make(map[string][]models.ApprovalDecision),
		now:     time.Now,
	}
}

// RequiresApproval applies the layered policy in fixed order; the first
// matching rule wins.
func (e *Engine) RequiresApproval(req *models.ApprovalRequest) bool {
	// 1. Any error-severity static issue forces review.
	if req.Static != nil && (!req.Static.SyntaxValid || !req.Static.TypeCheckPassed) {
		return true
	}
	if req.AI != nil {
		// 2. Low score forces review.
		if req.AI.OverallScore < e.cfg.RequireApprovalThreshold {
			return true
		}
		// 3. High score short-circuits the remaining checks.
		if req.AI.OverallScore >= e.cfg.AutoApproveThreshold {
			return false
		}
		// 4. Critical findings force review when enabled.
		if e.cfg.AutoRejectCritical && req.AI.CriticalCount() >= 1 {
			return true
		}
	}
	// 5. Too many total issues forces review.
	if req.TotalIssues() > e.cfg.MaxIgnorableIssues {
		return true
	}
	return false
}

// ShouldAutoReject is evaluated independently of RequiresApproval.
func (e *Engine) ShouldAutoReject(req *models.ApprovalRequest) bool {
	if e.cfg.AutoRejectCritical && req.Static != nil && req.Static.ErrorCount() > 0 {
		return true
	}
	if req.AI != nil {
		if req.AI.OverallScore < 50 {
			return true
		}
		if req.AI.CriticalCount() >= 3 {
			return true
		}
	}
	return false
}

// ProcessApprovalRequest evaluates the policy for one file. Files that
// need a human enter the pending queue and receive a
// requires_manual_review placeholder immediately; the real decision
// arrives later via ProcessApprovalDecision.
func (e *Engine) ProcessApprovalRequest(req *models.ApprovalRequest) (*models.ApprovalDecision, error) {
	if req == nil || req.FileID == "" {
		return nil, fmt.Errorf("approval request must carry a file id")
	}
	req.Threshold = e.cfg.AutoApproveThreshold
	req.RequiresApproval = e.RequiresApproval(req)

	if !req.RequiresApproval {
		if e.ShouldAutoReject(req) {
			return e.record(models.ApprovalDecision{
				FileID:    req.FileID,
				Decision:  models.DecisionRejected,
				Reasoning: e.rejectReasoning(req),
				Reviewer:  "auto",
			}), nil
		}
		return e.record(models.ApprovalDecision{
			FileID:    req.FileID,
			Decision:  models.DecisionApproved,
			Reasoning: "Auto-approved based on analysis results",
			Reviewer:  "auto",
		}), nil
	}

	created := e.now()
	e.mu.Lock()
	e.pending[req.FileID] = &models.PendingApproval{
		FileID:    req.FileID,
		Request:   req,
		CreatedAt: created,
	}
	e.mu.Unlock()
	e.bus.Publish(events.ApprovalRequired{FileID: req.FileID, CreatedAt: created})

	placeholder := models.ApprovalDecision{
		FileID:    req.FileID,
		Decision:  models.DecisionManualReview,
		Reasoning: "Analysis results require human review",
		Reviewer:  "auto",
		DecidedAt: created,
	}
	return &placeholder, nil
}

// ProcessApprovalDecision validates and records a human decision,
// removing the file from the pending queue. Validation failures record
// nothing.
func (e *Engine) ProcessApprovalDecision(d models.ApprovalDecision) (*models.ApprovalDecision, error) {
	if !models.ValidDecision(d.Decision) {
		return nil, fmt.Errorf("invalid decision %q", d.Decision)
	}
	if d.Decision == models.DecisionNeedsChanges && len(d.RequestedChanges) == 0 {
		return nil, fmt.Errorf("needs_changes requires at least one requested change")
	}
	if d.ApprovedIssues > e.cfg.MaxIgnorableIssues {
		return nil, fmt.Errorf("approved issue count %d exceeds maximum ignorable issues %d",
			d.ApprovedIssues, e.cfg.MaxIgnorableIssues)
	}

	e.mu.Lock()
	delete(e.pending, d.FileID)
	e.mu.Unlock()

	return e.record(d), nil
}

// ProcessBatchApproval classifies every request into exactly one of
// auto_approved, requires_review, or rejected, recording decisions for
// the first and third groups immediately.
func (e *Engine) ProcessBatchApproval(reqs []*models.ApprovalRequest) *BatchResult {
	out := &BatchResult{}
	for _, req := range reqs {
		req.Threshold = e.cfg.AutoApproveThreshold
		req.RequiresApproval = e.RequiresApproval(req)

		switch {
		case e.ShouldAutoReject(req):
			e.record(models.ApprovalDecision{
				FileID:    req.FileID,
				Decision:  models.DecisionRejected,
				Reasoning: e.rejectReasoning(req),
				Reviewer:  "auto",
			})
			out.Rejected = append(out.Rejected, req.FileID)
		case req.RequiresApproval:
			created := e.now()
			e.mu.Lock()
			e.pending[req.FileID] = &models.PendingApproval{
				FileID:    req.FileID,
				Request:   req,
				CreatedAt: created,
			}
			e.mu.Unlock()
			e.bus.Publish(events.ApprovalRequired{FileID: req.FileID, CreatedAt: created})
			out.RequiresReview = append(out.RequiresReview, req.FileID)
		default:
			e.record(models.ApprovalDecision{
				FileID:    req.FileID,
				Decision:  models.DecisionApproved,
				Reasoning: "Auto-approved based on analysis results",
				Reviewer:  "auto",
			})
			out.AutoApproved = append(out.AutoApproved, req.FileID)
		}
	}
	return out
}

// BatchResult groups file ids by batch classification.
type BatchResult struct {
	AutoApproved   []string `json:"auto_approved"`
	RequiresReview []string `json:"requires_review"`
	Rejected       []string `json:"rejected"`
}

// GetPendingApprovals returns a snapshot of the pending queue sorted by
// creation time, with TimeoutRisk derived from current age.
func (e *Engine) GetPendingApprovals() []models.PendingApproval {
	now := e.now()
	riskAge := time.Duration(float64(e.cfg.Timeout) * timeoutRiskFraction)

	e.mu.Lock()
	out := make([]models.PendingApproval, 0, len(e.pending))
	for _, p := range e.pending {
		cp := *p
		cp.TimeoutRisk = now.Sub(p.CreatedAt) > riskAge
		out = append(out, cp)
	}
	e.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// CleanupExpiredApprovals converts pending entries at or past the
// timeout into requires_manual_review decisions. Removal under the lock
// makes a re-run a no-op, so the sweep is idempotent.
func (e *Engine) CleanupExpiredApprovals() []string {
	now := e.now()

	e.mu.Lock()
	var expired []string
	for id, p := range e.pending {
		if now.Sub(p.CreatedAt) >= e.cfg.Timeout {
			expired = append(expired, id)
			delete(e.pending, id)
		}
	}
	e.mu.Unlock()

	for _, id := range expired {
		e.record(models.ApprovalDecision{
			FileID:    id,
			Decision:  models.DecisionManualReview,
			Reasoning: fmt.Sprintf("Approval request timed out after %s; escalated to manual review", e.cfg.Timeout),
			Reviewer:  "system",
		})
	}
	sort.Strings(expired)
	return expired
}

// DecisionHistory returns the append-only decision history for a file.
func (e *Engine) DecisionHistory(fileID string) []models.ApprovalDecision {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]models.ApprovalDecision(nil), e.history[fileID]...)
}

// Stats summarizes engine state for read-only accessors.
type Stats struct {
	Pending       int `json:"pending"`
	AtTimeoutRisk int `json:"at_timeout_risk"`
	FilesDecided  int `json:"files_decided"`
	Decisions     int `json:"decisions"`
}

// GetStats returns current queue and history counts.
func (e *Engine) GetStats() Stats {
	now := e.now()
	riskAge := time.Duration(float64(e.cfg.Timeout) * timeoutRiskFraction)

	e.mu.Lock()
	defer e.mu.Unlock()

	s := Stats{Pending: len(e.pending), FilesDecided: len(e.history)}
	for _, p := range e.pending {
		if now.Sub(p.CreatedAt) > riskAge {
			s.AtTimeoutRisk++
		}
	}
	for _, ds := range e.history {
		s.Decisions += len(ds)
	}
	return s
}

func (e *Engine) record(d models.ApprovalDecision) *models.ApprovalDecision {
	if d.DecidedAt.IsZero() {
		d.DecidedAt = e.now()
	}
	e.mu.Lock()
	e.history[d.FileID] = append(e.history[d.FileID], d)
	e.mu.Unlock()

	e.bus.Publish(events.DecisionRecorded{FileID: d.FileID, Decision: string(d.Decision)})
	return &d
}

func (e *Engine) rejectReasoning(req *models.ApprovalRequest) string {
	switch {
	case e.cfg.AutoRejectCritical && req.Static != nil && req.Static.ErrorCount() > 0:
		return fmt.Sprintf("Auto-rejected: %d error-severity static issue(s)", req.Static.ErrorCount())
	case req.AI != nil && req.AI.OverallScore < 50:
		return fmt.Sprintf("Auto-rejected: quality score %d below minimum 50", req.AI.OverallScore)
	case req.AI != nil && req.AI.CriticalCount() >= 3:
		return fmt.Sprintf("Auto-rejected: %d critical finding(s)", req.AI.CriticalCount())
	default:
		return "Auto-rejected based on analysis results"
	}
}

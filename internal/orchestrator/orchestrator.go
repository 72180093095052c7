// Package orchestrator owns the review session and drives the three
// pipeline stages per file: static analysis, AI review, approval. Each
// stage tolerates failure of the previous ones; across files, batches
// run in bounded concurrent chunks.
package orchestrator

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/joescharf/crit/internal/aireview"
	"github.com/joescharf/crit/internal/approval"
	"github.com/joescharf/crit/internal/events"
	"github.com/joescharf/crit/internal/models"
	"github.com/joescharf/crit/internal/staticcheck"
)

// ErrNoActiveSession indicates caller misuse: reviewing a file without
// starting a session first is fatal for the call.
var ErrNoActiveSession = errors.New("no active review session")

// ErrSessionActive is returned when starting a session while one is
// already running.
var ErrSessionActive = errors.New("a review session is already active")

// chunkSize is the number of files processed concurrently per batch
// chunk. Chunk N+1 starts only after chunk N fully completes.
const chunkSize = 5

// Static-score penalties per issue severity.
const (
	errorPenalty   = 15
	warningPenalty = 3
	infoPenalty    = 1
)

// Config holds orchestrator configuration.
type Config struct {
	StaticEnabled   bool
	AIEnabled       bool
	ApprovalEnabled bool
	ChunkDelay      time.Duration // pause between batch chunks
	ReviewContext   string        // optional context passed to every AI review
}

// DefaultConfig returns the default orchestrator config, reading from
// viper when available.
func DefaultConfig() Config {
	staticEnabled := true
	if viper.IsSet("static.enabled") {
		staticEnabled = viper.GetBool("static.enabled")
	}
	aiEnabled := true
	if viper.IsSet("review.enabled") {
		aiEnabled = viper.GetBool("review.enabled")
	}
	approvalEnabled := true
	if viper.IsSet("approval.enabled") {
		approvalEnabled = viper.GetBool("approval.enabled")
	}

	delay := viper.GetInt("orchestrator.chunk_delay_ms")
	if delay <= 0 {
		delay = 500
	}

	return Config{
		StaticEnabled:   staticEnabled,
		AIEnabled:       aiEnabled,
		ApprovalEnabled: approvalEnabled,
		ChunkDelay:      time.Duration(delay) * time.Millisecond,
	}
}

// FileResult is the aggregate outcome of one file's pipeline pass.
type FileResult struct {
	FileID        string                       `json:"file_id"`
	Path          string                       `json:"path"`
	Static        *models.StaticAnalysisResult `json:"static,omitempty"`
	AI            *models.AIReviewResult       `json:"ai,omitempty"`
	Decision      *models.ApprovalDecision     `json:"decision,omitempty"`
	CombinedScore *int                         `json:"combined_score,omitempty"`
	Duration      time.Duration                `json:"duration"`
}

// BatchSummary aggregates a ReviewFiles run.
type BatchSummary struct {
	SessionID  string                  `json:"session_id"`
	TotalFiles int                     `json:"total_files"`
	Succeeded  int                     `json:"succeeded"`
	Failed     int                     `json:"failed"`
	Decisions  map[models.Decision]int `json:"decisions"`
	MeanScore  *float64                `json:"mean_score,omitempty"`
	Failures   []models.FileError      `json:"failures,omitempty"`
	Results    []*FileResult           `json:"results"`
	Duration   time.Duration           `json:"duration"`
}

// Orchestrator drives the pipeline and owns the active session.
type Orchestrator struct {
	cfg      Config
	analyzer *staticcheck.Analyzer
	reviewer *aireview.Reviewer
	engine   *approval.Engine
	bus      *events.Bus

	mu      sync.Mutex
	session *models.ReviewSession
}

// New creates an orchestrator over the three stage components. Any of
// them may be nil when its stage is disabled.
func New(cfg Config, analyzer *staticcheck.Analyzer, reviewer *aireview.Reviewer, engine *approval.Engine, bus *events.Bus) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		analyzer: analyzer,
		reviewer: reviewer,
		engine:   engine,
		bus:      bus,
	}
}

// StartSession creates a fresh session with zeroed counters. Only one
// session is active at a time per orchestrator.
func (o *Orchestrator) StartSession() (*models.ReviewSession, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.session != nil && o.session.Status == models.SessionStatusActive {
		return nil, ErrSessionActive
	}
	o.session = &models.ReviewSession{
		ID:        ulid.Make().String(),
		Status:    models.SessionStatusActive,
		StartedAt: time.Now().UTC(),
	}
	snapshot := *o.session
	o.bus.Publish(events.SessionStarted{SessionID: snapshot.ID})
	return &snapshot, nil
}

// CompleteSession seals the active session's timestamps and totals.
func (o *Orchestrator) CompleteSession() (*models.ReviewSession, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.session == nil || o.session.Status != models.SessionStatusActive {
		return nil, ErrNoActiveSession
	}
	now := time.Now().UTC()
	o.session.Status = models.SessionStatusCompleted
	o.session.CompletedAt = &now
	snapshot := *o.session
	o.bus.Publish(events.SessionCompleted{SessionID: snapshot.ID, FilesReviewed: snapshot.FilesReviewed})
	return &snapshot, nil
}

// Session returns a snapshot of the current session, if any.
func (o *Orchestrator) Session() (*models.ReviewSession, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session == nil {
		return nil, false
	}
	snapshot := *o.session
	return &snapshot, true
}

// ReviewFile runs the three stages for one file. Stage failures are
// tolerated: a failed stage contributes no result and the pipeline
// continues with whatever the earlier stages produced.
func (o *Orchestrator) ReviewFile(ctx context.Context, file models.ReviewedFile) (*FileResult, error) {
	o.mu.Lock()
	active := o.session != nil && o.session.Status == models.SessionStatusActive
	o.mu.Unlock()
	if !active {
		return nil, ErrNoActiveSession
	}

	start := time.Now()
	result := &FileResult{FileID: file.ID, Path: file.Path}
	var staticDur, aiDur, approvalDur time.Duration

	if o.cfg.StaticEnabled && o.analyzer != nil {
		stageStart := time.Now()
		static, err := o.analyzer.Analyze(ctx, file)
		staticDur = time.Since(stageStart)
		if err == nil {
			result.Static = static
		}
		// Analyzer publishes its own error events; a failed static
		// stage simply means "no static result".
	}

	if o.cfg.AIEnabled && o.reviewer != nil && file.Content != "" {
		stageStart := time.Now()
		ai, err := o.reviewer.Review(ctx, aireview.Request{File: file, Context: o.cfg.ReviewContext})
		aiDur = time.Since(stageStart)
		if err == nil {
			result.AI = ai
		}
	}

	result.CombinedScore = combinedScore(result.Static, result.AI)

	if o.cfg.ApprovalEnabled && o.engine != nil {
		stageStart := time.Now()
		decision, err := o.engine.ProcessApprovalRequest(&models.ApprovalRequest{
			FileID: file.ID,
			Static: result.Static,
			AI:     result.AI,
		})
		approvalDur = time.Since(stageStart)
		if err == nil {
			result.Decision = decision
		}
		// Approval failure does not abort the file's overall result.
	}

	result.Duration = time.Since(start)
	o.accumulate(result, staticDur, aiDur, approvalDur)
	return result, nil
}

// ReviewFiles processes files in fixed-size chunks. Files within a
// chunk run concurrently; a fixed delay separates chunks to bound the
// external call rate.
func (o *Orchestrator) ReviewFiles(ctx context.Context, files []models.ReviewedFile) (*BatchSummary, error) {
	o.mu.Lock()
	if o.session == nil || o.session.Status != models.SessionStatusActive {
		o.mu.Unlock()
		return nil, ErrNoActiveSession
	}
	sessionID := o.session.ID
	o.mu.Unlock()

	start := time.Now()
	summary := &BatchSummary{
		SessionID:  sessionID,
		TotalFiles: len(files),
		Decisions:  make(map[models.Decision]int),
	}
	var mu sync.Mutex

	for offset := 0; offset < len(files); offset += chunkSize {
		end := offset + chunkSize
		if end > len(files) {
			end = len(files)
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, file := range files[offset:end] {
			g.Go(func() error {
				res, err := o.ReviewFile(gctx, file)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					summary.Failed++
					summary.Failures = append(summary.Failures, models.FileError{FileID: file.ID, Err: err})
					return nil
				}
				summary.Succeeded++
				summary.Results = append(summary.Results, res)
				if res.Decision != nil {
					summary.Decisions[res.Decision.Decision]++
				}
				return nil
			})
		}
		_ = g.Wait()

		if end < len(files) && o.cfg.ChunkDelay > 0 {
			select {
			case <-ctx.Done():
				mu.Lock()
				for _, file := range files[end:] {
					summary.Failed++
					summary.Failures = append(summary.Failures, models.FileError{FileID: file.ID, Err: ctx.Err()})
				}
				mu.Unlock()
				summary.MeanScore = meanScore(summary.Results)
				summary.Duration = time.Since(start)
				return summary, nil
			case <-time.After(o.cfg.ChunkDelay):
			}
		}
	}

	summary.MeanScore = meanScore(summary.Results)
	summary.Duration = time.Since(start)
	return summary, nil
}

// combinedScore averages the static-derived score and the AI score when
// both exist; otherwise returns whichever is available.
func combinedScore(static *models.StaticAnalysisResult, ai *models.AIReviewResult) *int {
	var scores []float64
	if static != nil {
		s := 100.0 - float64(errorPenalty*static.ErrorCount()) -
			float64(warningPenalty*static.WarningCount()) -
			float64(infoPenalty*static.InfoCount())
		scores = append(scores, math.Min(100, math.Max(0, s)))
	}
	if ai != nil {
		scores = append(scores, float64(ai.OverallScore))
	}
	if len(scores) == 0 {
		return nil
	}
	sum := 0.0
	for _, s := range scores {
		sum += s
	}
	combined := int(math.Round(sum / float64(len(scores))))
	return &combined
}

func meanScore(results []*FileResult) *float64 {
	var sum float64
	var n int
	for _, r := range results {
		if r.CombinedScore != nil {
			sum += float64(*r.CombinedScore)
			n++
		}
	}
	if n == 0 {
		return nil
	}
	mean := sum / float64(n)
	return &mean
}

// accumulate updates session counters after every file. Counters are
// monotonically non-decreasing while the session is active.
func (o *Orchestrator) accumulate(res *FileResult, staticDur, aiDur, approvalDur time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session == nil {
		return
	}

	o.session.FilesReviewed++
	o.session.StaticDuration += staticDur
	o.session.AIDuration += aiDur
	o.session.ApprovalDuration += approvalDur

	if res.Static != nil {
		o.session.TotalIssues += res.Static.IssueCount()
		o.session.CriticalIssues += res.Static.ErrorCount()
	}
	if res.AI != nil {
		o.session.TotalIssues += len(res.AI.Findings)
		o.session.CriticalIssues += res.AI.CriticalCount()
	}
	if res.Decision != nil {
		switch res.Decision.Decision {
		case models.DecisionApproved:
			o.session.FilesApproved++
		case models.DecisionRejected:
			o.session.FilesRejected++
		}
	}
}

// Engine exposes the approval engine for pending-queue operations.
func (o *Orchestrator) Engine() *approval.Engine {
	return o.engine
}

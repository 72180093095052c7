// Package aireview builds review prompts, invokes the completion
// service, and converts its free-form answer into a scored, validated
// review result. Parsing is deliberately defensive: a malformed
// response degrades into a synthetic finding rather than an error.
package aireview

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joescharf/crit/internal/events"
	"github.com/joescharf/crit/internal/llm"
	"github.com/joescharf/crit/internal/models"
)

// batchConcurrency bounds simultaneous completion calls in ReviewMany.
// Windows are separated by Config.BatchDelay to respect provider rate
// limits.
const batchConcurrency = 3

// Request is one file review request.
type Request struct {
	File    models.ReviewedFile
	Context string // optional caller-supplied context (diff summary, ticket, etc.)
}

// Reviewer produces AIReviewResults.
type Reviewer struct {
	cfg       Config
	completer llm.Completer
	cache     *resultCache
	bus       *events.Bus
}

// New creates a reviewer around a completion client. A nil bus disables
// event publication.
func New(cfg Config, completer llm.Completer, bus *events.Bus) *Reviewer {
	return &Reviewer{
		cfg:       cfg,
		completer: completer,
		cache:     newResultCache(cfg.CacheSize),
		bus:       bus,
	}
}

// Review runs one AI review. A cache hit returns the stored result
// without touching the completion service.
func (r *Reviewer) Review(ctx context.Context, req Request) (*models.AIReviewResult, error) {
	start := time.Now()
	r.bus.Publish(events.ReviewStarted{FileID: req.File.ID})

	key := cacheKey(r.cfg.Fingerprint(), req.File.Language, req.Context, req.File.Content)
	if cached, ok := r.cache.get(key); ok {
		cached.FileID = req.File.ID
		cached.Cached = true
		cached.Duration = time.Since(start)
		r.bus.Publish(events.ReviewCompleted{FileID: req.File.ID, Score: cached.OverallScore, Cached: true})
		return cached, nil
	}

	system, user := buildPrompt(req.File.Language, req.Context, req.File.Content)
	text, err := r.completer.Complete(ctx, system, user)
	if err != nil {
		r.bus.Publish(events.ReviewErrored{FileID: req.File.ID, Err: err})
		return nil, err
	}

	findings, summary, parseErr := parseResponse(text, r.cfg)
	if parseErr != nil {
		if !errors.Is(parseErr, ErrUnparsableResponse) {
			r.bus.Publish(events.ReviewErrored{FileID: req.File.ID, Err: parseErr})
			return nil, parseErr
		}
		// Degrade gracefully: one synthetic info finding, never an
		// empty result with no explanation.
		findings = []models.AIFinding{syntheticParseFinding()}
		summary = ""
	}

	scores, overall := scoreFindings(findings, r.cfg.Weights)
	if summary == "" {
		summary = buildSummary(findings)
	}

	result := &models.AIReviewResult{
		FileID:          req.File.ID,
		OverallScore:    overall,
		CategoryScores:  scores,
		Findings:        findings,
		Summary:         summary,
		Recommendations: buildRecommendations(findings),
		Strengths:       buildStrengths(findings),
		Weaknesses:      buildWeaknesses(findings),
		Model:           r.completer.Model(),
		Duration:        time.Since(start),
	}

	r.cache.put(key, result)
	r.bus.Publish(events.ReviewCompleted{FileID: req.File.ID, Score: overall})
	return result, nil
}

// ReviewMany reviews requests in windows of batchConcurrency, pausing
// between windows. Per-item failures are collected without aborting
// the batch.
func (r *Reviewer) ReviewMany(ctx context.Context, reqs []Request) ([]*models.AIReviewResult, []models.FileError) {
	var (
		mu       sync.Mutex
		results  []*models.AIReviewResult
		failures []models.FileError
	)

	for offset := 0; offset < len(reqs); offset += batchConcurrency {
		end := offset + batchConcurrency
		if end > len(reqs) {
			end = len(reqs)
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, req := range reqs[offset:end] {
			g.Go(func() error {
				res, err := r.Review(gctx, req)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					failures = append(failures, models.FileError{FileID: req.File.ID, Err: err})
					return nil
				}
				results = append(results, res)
				return nil
			})
		}
		_ = g.Wait()

		if end < len(reqs) && r.cfg.BatchDelay > 0 {
			select {
			case <-ctx.Done():
				for _, req := range reqs[end:] {
					failures = append(failures, models.FileError{FileID: req.File.ID, Err: ctx.Err()})
				}
				return results, failures
			case <-time.After(r.cfg.BatchDelay):
			}
		}
	}

	return results, failures
}

// CacheLen reports the number of cached results, for statistics.
func (r *Reviewer) CacheLen() int {
	return r.cache.len()
}

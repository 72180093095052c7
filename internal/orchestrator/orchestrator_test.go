package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/crit/internal/aireview"
	"github.com/joescharf/crit/internal/approval"
	"github.com/joescharf/crit/internal/events"
	"github.com/joescharf/crit/internal/models"
	"github.com/joescharf/crit/internal/staticcheck"
)

type fakeCompleter struct {
	response string
	err      error
}

func (f *fakeCompleter) Complete(_ context.Context, _, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func (f *fakeCompleter) Model() string { return "fake-model" }

const cleanReview = `{"summary": "Looks good.", "findings": []}`

func newTestOrchestrator(completer *fakeCompleter) *Orchestrator {
	analyzer := staticcheck.New(staticcheck.Config{
		MaxFileSize:   1 << 20,
		MaxLineLength: 120,
	}, nil)
	reviewer := aireview.New(aireview.Config{
		Weights:                map[models.FindingCategory]float64{models.CategoryLogic: 1},
		MinConfidence:          0.3,
		MaxFindingsPerCategory: 10,
		CacheSize:              16,
	}, completer, nil)
	engine := approval.New(approval.Config{
		AutoApproveThreshold:     90,
		RequireApprovalThreshold: 60,
		AutoRejectCritical:       true,
		MaxIgnorableIssues:       5,
		Timeout:                  time.Hour,
	}, nil)

	cfg := Config{StaticEnabled: true, AIEnabled: true, ApprovalEnabled: true}
	return New(cfg, analyzer, reviewer, engine, nil)
}

func goFile(id, content string) models.ReviewedFile {
	return models.ReviewedFile{ID: id, Path: id + ".go", Language: "go", Content: content}
}

func TestStartSession(t *testing.T) {
	o := newTestOrchestrator(&fakeCompleter{response: cleanReview})

	sess, err := o.StartSession()
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, models.SessionStatusActive, sess.Status)
	assert.Zero(t, sess.FilesReviewed)

	_, err = o.StartSession()
	assert.ErrorIs(t, err, ErrSessionActive)
}

func TestCompleteSession(t *testing.T) {
	o := newTestOrchestrator(&fakeCompleter{response: cleanReview})

	_, err := o.CompleteSession()
	assert.ErrorIs(t, err, ErrNoActiveSession)

	_, err = o.StartSession()
	require.NoError(t, err)

	sess, err := o.CompleteSession()
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusCompleted, sess.Status)
	require.NotNil(t, sess.CompletedAt)

	// A new session can start after completion.
	_, err = o.StartSession()
	assert.NoError(t, err)
}

func TestReviewFile_NoSession(t *testing.T) {
	o := newTestOrchestrator(&fakeCompleter{response: cleanReview})
	_, err := o.ReviewFile(context.Background(), goFile("f", "x := 1"))
	assert.ErrorIs(t, err, ErrNoActiveSession)
}

func TestReviewFile_CleanFileApproved(t *testing.T) {
	o := newTestOrchestrator(&fakeCompleter{response: cleanReview})
	_, err := o.StartSession()
	require.NoError(t, err)

	res, err := o.ReviewFile(context.Background(), goFile("f", "package main\n"))
	require.NoError(t, err)

	require.NotNil(t, res.Static)
	require.NotNil(t, res.AI)
	require.NotNil(t, res.Decision)
	assert.Equal(t, models.DecisionApproved, res.Decision.Decision)
	require.NotNil(t, res.CombinedScore)
	assert.Equal(t, 100, *res.CombinedScore)

	sess, ok := o.Session()
	require.True(t, ok)
	assert.Equal(t, 1, sess.FilesReviewed)
	assert.Equal(t, 1, sess.FilesApproved)
	assert.Equal(t, 0, sess.FilesRejected)
}

func TestReviewFile_EmptyContentSkipsAI(t *testing.T) {
	o := newTestOrchestrator(&fakeCompleter{err: errors.New("must not be called")})
	_, err := o.StartSession()
	require.NoError(t, err)

	res, err := o.ReviewFile(context.Background(), goFile("f", ""))
	require.NoError(t, err)
	assert.Nil(t, res.AI)
	assert.NotNil(t, res.Static)
}

func TestReviewFile_AIFailureTolerated(t *testing.T) {
	o := newTestOrchestrator(&fakeCompleter{err: errors.New("api down")})
	_, err := o.StartSession()
	require.NoError(t, err)

	res, err := o.ReviewFile(context.Background(), goFile("f", "package main\n"))
	require.NoError(t, err, "a failed AI stage must not fail the file")

	assert.Nil(t, res.AI)
	require.NotNil(t, res.Static)
	require.NotNil(t, res.Decision, "approval still runs on static results alone")
	require.NotNil(t, res.CombinedScore)
	assert.Equal(t, 100, *res.CombinedScore, "clean static result scores 100 without AI")
}

func TestReviewFile_StaticErrorsQueueManualReview(t *testing.T) {
	o := newTestOrchestrator(&fakeCompleter{response: cleanReview})
	_, err := o.StartSession()
	require.NoError(t, err)

	// Unbalanced braces produce an error-severity syntax issue, which
	// forces human review regardless of the AI score.
	res, err := o.ReviewFile(context.Background(), goFile("f", "func main() {\n\tif x {\n"))
	require.NoError(t, err)

	require.NotNil(t, res.Decision)
	assert.Equal(t, models.DecisionManualReview, res.Decision.Decision)
	assert.Len(t, o.Engine().GetPendingApprovals(), 1)

	sess, ok := o.Session()
	require.True(t, ok)
	assert.Equal(t, 0, sess.FilesApproved)
	assert.Greater(t, sess.CriticalIssues, 0)
}

func TestReviewFiles_Batch(t *testing.T) {
	o := newTestOrchestrator(&fakeCompleter{response: cleanReview})
	_, err := o.StartSession()
	require.NoError(t, err)

	var files []models.ReviewedFile
	for i := 0; i < 7; i++ {
		files = append(files, goFile(fmt.Sprintf("f%d", i), fmt.Sprintf("package p%d\n", i)))
	}

	summary, err := o.ReviewFiles(context.Background(), files)
	require.NoError(t, err)

	assert.Equal(t, 7, summary.TotalFiles)
	assert.Equal(t, 7, summary.Succeeded)
	assert.Equal(t, 0, summary.Failed)
	assert.Len(t, summary.Results, 7)
	assert.Equal(t, 7, summary.Decisions[models.DecisionApproved])
	require.NotNil(t, summary.MeanScore)
	assert.Equal(t, float64(100), *summary.MeanScore)

	sess, ok := o.Session()
	require.True(t, ok)
	assert.Equal(t, 7, sess.FilesReviewed)
}

// countingCompleter records how many Complete calls overlap in time.
// One call per file makes it a proxy for per-chunk file concurrency.
type countingCompleter struct {
	mu       sync.Mutex
	inFlight int
	maxSeen  int
	response string
}

func (f *countingCompleter) Complete(_ context.Context, _, _ string) (string, error) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxSeen {
		f.maxSeen = f.inFlight
	}
	f.mu.Unlock()

	// Hold the call open long enough for chunkmates to overlap.
	time.Sleep(5 * time.Millisecond)

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()
	return f.response, nil
}

func (f *countingCompleter) Model() string { return "fake-model" }

func TestReviewFiles_BoundsChunkConcurrency(t *testing.T) {
	completer := &countingCompleter{response: cleanReview}
	analyzer := staticcheck.New(staticcheck.Config{
		MaxFileSize:   1 << 20,
		MaxLineLength: 120,
	}, nil)
	reviewer := aireview.New(aireview.Config{
		Weights:                map[models.FindingCategory]float64{models.CategoryLogic: 1},
		MinConfidence:          0.3,
		MaxFindingsPerCategory: 10,
		CacheSize:              16,
	}, completer, nil)
	engine := approval.New(approval.Config{
		AutoApproveThreshold:     90,
		RequireApprovalThreshold: 60,
		AutoRejectCritical:       true,
		MaxIgnorableIssues:       5,
		Timeout:                  time.Hour,
	}, nil)
	o := New(Config{StaticEnabled: true, AIEnabled: true, ApprovalEnabled: true}, analyzer, reviewer, engine, nil)

	_, err := o.StartSession()
	require.NoError(t, err)

	var files []models.ReviewedFile
	for i := 0; i < 12; i++ {
		files = append(files, goFile(fmt.Sprintf("f%d", i), fmt.Sprintf("package p%d\n", i)))
	}

	summary, err := o.ReviewFiles(context.Background(), files)
	require.NoError(t, err)
	assert.Equal(t, 12, summary.Succeeded)

	completer.mu.Lock()
	defer completer.mu.Unlock()
	assert.LessOrEqual(t, completer.maxSeen, chunkSize,
		"at most %d files may be in flight at once", chunkSize)
}

func TestReviewFiles_NoSession(t *testing.T) {
	o := newTestOrchestrator(&fakeCompleter{response: cleanReview})
	_, err := o.ReviewFiles(context.Background(), []models.ReviewedFile{goFile("f", "x")})
	assert.ErrorIs(t, err, ErrNoActiveSession)
}

func TestReviewFiles_PublishesSessionEvents(t *testing.T) {
	bus := events.NewBus()
	var started, completed bool
	bus.Subscribe(func(e events.Event) {
		switch e.(type) {
		case events.SessionStarted:
			started = true
		case events.SessionCompleted:
			completed = true
		}
	})

	o := newTestOrchestrator(&fakeCompleter{response: cleanReview})
	o.bus = bus

	_, err := o.StartSession()
	require.NoError(t, err)
	_, err = o.CompleteSession()
	require.NoError(t, err)
	assert.True(t, started)
	assert.True(t, completed)
}

func TestCombinedScore(t *testing.T) {
	static := &models.StaticAnalysisResult{
		SyntaxIssues: []models.StaticIssue{{Severity: models.IssueSeverityError}},
		StyleIssues: []models.StaticIssue{
			{Severity: models.IssueSeverityWarning},
			{Severity: models.IssueSeverityInfo},
		},
	}
	ai := &models.AIReviewResult{OverallScore: 80}

	t.Run("both results", func(t *testing.T) {
		// static: 100 - 15 - 3 - 1 = 81; mean(81, 80) = 80.5 rounds to 81.
		score := combinedScore(static, ai)
		require.NotNil(t, score)
		assert.Equal(t, 81, *score)
	})

	t.Run("static only", func(t *testing.T) {
		score := combinedScore(static, nil)
		require.NotNil(t, score)
		assert.Equal(t, 81, *score)
	})

	t.Run("ai only", func(t *testing.T) {
		score := combinedScore(nil, ai)
		require.NotNil(t, score)
		assert.Equal(t, 80, *score)
	})

	t.Run("neither", func(t *testing.T) {
		assert.Nil(t, combinedScore(nil, nil))
	})

	t.Run("clamped at zero", func(t *testing.T) {
		bad := &models.StaticAnalysisResult{}
		for i := 0; i < 10; i++ {
			bad.SyntaxIssues = append(bad.SyntaxIssues, models.StaticIssue{Severity: models.IssueSeverityError})
		}
		score := combinedScore(bad, nil)
		require.NotNil(t, score)
		assert.Equal(t, 0, *score)
	})
}

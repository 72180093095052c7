package staticcheck

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/crit/internal/events"
	"github.com/joescharf/crit/internal/models"
)

func testConfig() Config {
	return Config{
		MaxFileSize:    1 << 20,
		TypedLanguages: []string{"go", "typescript", "java"},
		MaxLineLength:  120,
	}
}

func TestAnalyze_CleanFile(t *testing.T) {
	a := New(testConfig(), nil)

	res, err := a.Analyze(context.Background(), models.ReviewedFile{
		ID:      "f1",
		Path:    "main.go",
		Content: "package main\n\nfunc main() {\n\tdoWork()\n}\n",
	})
	require.NoError(t, err)

	assert.Equal(t, "f1", res.FileID)
	assert.Equal(t, "go", res.Language, "language detected from path")
	assert.True(t, res.SyntaxValid)
	assert.True(t, res.TypeCheckPassed)
	assert.Equal(t, 0, res.IssueCount())
	assert.Equal(t, "heuristic", res.Backend)
	assert.Greater(t, res.Metrics.LinesOfCode, 0)
}

func TestAnalyze_SyntaxErrorInvalidates(t *testing.T) {
	a := New(testConfig(), nil)

	res, err := a.Analyze(context.Background(), models.ReviewedFile{
		ID:      "f1",
		Path:    "broken.go",
		Content: "func main() {\n\tif x {\n",
	})
	require.NoError(t, err)

	assert.False(t, res.SyntaxValid)
	assert.True(t, res.TypeCheckPassed, "no type issues from the heuristic backend")
	assert.NotEmpty(t, res.SyntaxIssues)
	assert.Greater(t, res.ErrorCount(), 0)
}

func TestAnalyze_FileTooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.MaxFileSize = 10
	a := New(cfg, nil)

	_, err := a.Analyze(context.Background(), models.ReviewedFile{
		ID:      "big",
		Path:    "big.go",
		Content: strings.Repeat("x", 11),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFileTooLarge)
}

func TestAnalyze_ToolFallback(t *testing.T) {
	cfg := testConfig()
	cfg.ToolCommand = "crit-nonexistent-checker-binary"
	cfg.ToolTimeout = time.Second
	a := New(cfg, nil)

	// Typed language routes to the tool; the missing binary must fall
	// back to heuristics instead of failing the file.
	res, err := a.Analyze(context.Background(), models.ReviewedFile{
		ID:      "f1",
		Path:    "main.go",
		Content: "package main\n",
	})
	require.NoError(t, err)
	assert.Equal(t, "heuristic", res.Backend)
}

func TestAnalyze_UntypedLanguageSkipsTool(t *testing.T) {
	cfg := testConfig()
	cfg.ToolCommand = "crit-nonexistent-checker-binary"
	a := New(cfg, nil)

	res, err := a.Analyze(context.Background(), models.ReviewedFile{
		ID:      "f1",
		Path:    "script.py",
		Content: "x = 1\n",
	})
	require.NoError(t, err)
	assert.Equal(t, "heuristic", res.Backend)
}

func TestAnalyze_PublishesEvents(t *testing.T) {
	bus := events.NewBus()
	var started, completed bool
	bus.Subscribe(func(e events.Event) {
		switch e.(type) {
		case events.AnalysisStarted:
			started = true
		case events.AnalysisCompleted:
			completed = true
		}
	})

	a := New(testConfig(), bus)
	_, err := a.Analyze(context.Background(), models.ReviewedFile{ID: "f1", Path: "a.go", Content: "x := 1\n"})
	require.NoError(t, err)
	assert.True(t, started)
	assert.True(t, completed)
}

func TestAnalyzeMany_PartialFailure(t *testing.T) {
	cfg := testConfig()
	cfg.MaxFileSize = 20
	a := New(cfg, nil)

	files := []models.ReviewedFile{
		{ID: "ok1", Path: "a.go", Content: "x := 1"},
		{ID: "big", Path: "b.go", Content: strings.Repeat("y", 30)},
		{ID: "ok2", Path: "c.go", Content: "z := 2"},
	}

	results, failures := a.AnalyzeMany(context.Background(), files)
	assert.Len(t, results, 2)
	require.Len(t, failures, 1)
	assert.Equal(t, "big", failures[0].FileID)
	assert.ErrorIs(t, failures[0].Err, ErrFileTooLarge)
}

func TestAnalyzeMany_Empty(t *testing.T) {
	a := New(testConfig(), nil)
	results, failures := a.AnalyzeMany(context.Background(), nil)
	assert.Empty(t, results)
	assert.Empty(t, failures)
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"main.go", "go"},
		{"app.ts", "typescript"},
		{"app.tsx", "typescript"},
		{"index.js", "javascript"},
		{"script.py", "python"},
		{"Main.java", "java"},
		{"lib.rs", "rust"},
		{"notes.txt", "plaintext"},
		{"Makefile", "plaintext"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectLanguage(tt.path))
		})
	}
}

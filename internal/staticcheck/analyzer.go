// Package staticcheck runs structural checks and computes code metrics
// for one file at a time. Checking delegates to an external tool for
// statically-typed languages when one is configured, falling back to
// in-process heuristics when the tool is unavailable or fails.
package staticcheck

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joescharf/crit/internal/events"
	"github.com/joescharf/crit/internal/models"
)

// ErrFileTooLarge is returned when a file exceeds Config.MaxFileSize.
var ErrFileTooLarge = errors.New("file exceeds maximum size")

// batchConcurrency bounds simultaneous file analyses in AnalyzeMany.
const batchConcurrency = 5

// Analyzer produces StaticAnalysisResults.
type Analyzer struct {
	cfg       Config
	tool      Backend
	heuristic Backend
	bus       *events.Bus
}

// New creates an analyzer. A nil bus disables event publication. The
// tool backend is only constructed when a command is configured.
func New(cfg Config, bus *events.Bus) *Analyzer {
	a := &Analyzer{
		cfg:       cfg,
		heuristic: &HeuristicBackend{MaxLineLength: cfg.MaxLineLength},
		bus:       bus,
	}
	if cfg.ToolCommand != "" {
		a.tool = &ToolBackend{
			Command: cfg.ToolCommand,
			Args:    cfg.ToolArgs,
			Timeout: cfg.ToolTimeout,
		}
	}
	return a
}

// Analyze runs structural checks and metrics over one file.
func (a *Analyzer) Analyze(ctx context.Context, file models.ReviewedFile) (*models.StaticAnalysisResult, error) {
	start := time.Now()
	a.bus.Publish(events.AnalysisStarted{FileID: file.ID})

	if len(file.Content) > a.cfg.MaxFileSize {
		err := fmt.Errorf("%w: %d bytes > %d", ErrFileTooLarge, len(file.Content), a.cfg.MaxFileSize)
		a.bus.Publish(events.AnalysisErrored{FileID: file.ID, Err: err})
		return nil, err
	}

	lang := file.Language
	if lang == "" {
		lang = DetectLanguage(file.Path)
	}
	file.Language = lang

	backend := a.heuristic
	if a.tool != nil && a.isTypedLanguage(lang) {
		backend = a.tool
	}

	issues, err := backend.Check(ctx, file)
	if err != nil && backend == a.tool {
		// Tool crash, timeout, or unavailability must not fail the
		// file: fall back to heuristics.
		a.bus.Publish(events.AnalysisErrored{FileID: file.ID, Err: err})
		backend = a.heuristic
		issues, err = backend.Check(ctx, file)
	}
	if err != nil {
		a.bus.Publish(events.AnalysisErrored{FileID: file.ID, Err: err})
		return nil, err
	}

	result := &models.StaticAnalysisResult{
		FileID:   file.ID,
		Language: lang,
		Metrics:  ComputeMetrics(file.Content),
		Backend:  backend.Name(),
	}
	for _, iss := range issues {
		switch iss.Kind {
		case models.IssueKindSyntax:
			result.SyntaxIssues = append(result.SyntaxIssues, iss)
		case models.IssueKindType:
			result.TypeIssues = append(result.TypeIssues, iss)
		default:
			result.StyleIssues = append(result.StyleIssues, iss)
		}
	}
	result.SyntaxValid = !result.HasErrorOfKind(models.IssueKindSyntax)
	result.TypeCheckPassed = !result.HasErrorOfKind(models.IssueKindType)
	result.Duration = time.Since(start)

	a.bus.Publish(events.AnalysisCompleted{
		FileID:     file.ID,
		IssueCount: result.IssueCount(),
		Backend:    result.Backend,
	})
	return result, nil
}

// AnalyzeMany analyzes files with bounded concurrency. Each file's
// success or failure is independent; failures are collected, never
// propagated.
func (a *Analyzer) AnalyzeMany(ctx context.Context, files []models.ReviewedFile) ([]*models.StaticAnalysisResult, []models.FileError) {
	var (
		mu       sync.Mutex
		results  []*models.StaticAnalysisResult
		failures []models.FileError
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)

	for _, file := range files {
		g.Go(func() error {
			res, err := a.Analyze(ctx, file)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, models.FileError{FileID: file.ID, Err: err})
				return nil
			}
			results = append(results, res)
			return nil
		})
	}
	_ = g.Wait()

	return results, failures
}

func (a *Analyzer) isTypedLanguage(lang string) bool {
	for _, l := range a.cfg.TypedLanguages {
		if strings.EqualFold(l, lang) {
			return true
		}
	}
	return false
}

// DetectLanguage maps a file extension to a language name.
func DetectLanguage(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".go":
		return "go"
	case ".ts", ".tsx":
		return "typescript"
	case ".js", ".jsx", ".mjs":
		return "javascript"
	case ".py":
		return "python"
	case ".java":
		return "java"
	case ".c", ".h":
		return "c"
	case ".cc", ".cpp", ".hpp":
		return "cpp"
	case ".cs":
		return "csharp"
	case ".rb":
		return "ruby"
	case ".rs":
		return "rust"
	default:
		return "plaintext"
	}
}

package staticcheck

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joescharf/crit/internal/models"
)

// Backend runs structural checks over one file's content and returns
// the issues it found. Backends never compute metrics; that stays in
// the analyzer.
type Backend interface {
	Name() string
	Check(ctx context.Context, file models.ReviewedFile) ([]models.StaticIssue, error)
}

// ---------------------------------------------------------------------------
// Tool backend
// ---------------------------------------------------------------------------

// diagnosticRe matches one diagnostic line emitted by the external
// checker: "[path:]line:col: severity [code:] message".
var diagnosticRe = regexp.MustCompile(`(?m)^(?:[^\s:]+:)?(\d+):(\d+):?\s+(error|warning|info)\s+(?:([A-Za-z0-9_-]+):\s*)?(.+)$`)

// ToolBackend invokes an external type-checking tool against a scratch
// copy of the file. Each invocation carries a hard timeout.
type ToolBackend struct {
	Command string
	Args    []string
	Timeout time.Duration
}

func (t *ToolBackend) Name() string { return t.Command }

// Check writes the content to a temp file, runs the tool on it, and
// parses structured diagnostics from combined output. A non-zero exit
// with parseable diagnostics is a successful check; an unparseable
// failure is returned as an error so the caller can fall back.
func (t *ToolBackend) Check(ctx context.Context, file models.ReviewedFile) ([]models.StaticIssue, error) {
	if t.Command == "" {
		return nil, fmt.Errorf("no tool command configured")
	}

	ext := filepath.Ext(file.Path)
	if ext == "" {
		ext = ".txt"
	}
	tmp, err := os.CreateTemp("", "crit-*"+ext)
	if err != nil {
		return nil, fmt.Errorf("create scratch file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(file.Content); err != nil {
		_ = tmp.Close()
		return nil, fmt.Errorf("write scratch file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close scratch file: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, t.Timeout)
	defer cancel()

	args := append(append([]string{}, t.Args...), tmp.Name())
	out, runErr := exec.CommandContext(runCtx, t.Command, args...).CombinedOutput()
	if runCtx.Err() != nil {
		return nil, fmt.Errorf("tool timed out after %s", t.Timeout)
	}

	issues := parseDiagnostics(string(out))
	if runErr != nil && len(issues) == 0 {
		return nil, fmt.Errorf("tool failed: %w: %s", runErr, strings.TrimSpace(string(out)))
	}
	return issues, nil
}

func parseDiagnostics(out string) []models.StaticIssue {
	var issues []models.StaticIssue
	for _, m := range diagnosticRe.FindAllStringSubmatch(out, -1) {
		line, _ := strconv.Atoi(m[1])
		col, _ := strconv.Atoi(m[2])
		sev := models.IssueSeverity(m[3])
		rule := m[4]

		kind := models.IssueKindBestPractice
		if sev == models.IssueSeverityError {
			kind = models.IssueKindType
			if strings.Contains(strings.ToLower(rule), "syntax") {
				kind = models.IssueKindSyntax
			}
		}

		issues = append(issues, models.StaticIssue{
			Kind:     kind,
			Line:     line,
			Column:   col,
			Message:  strings.TrimSpace(m[5]),
			Severity: sev,
			Rule:     rule,
		})
	}
	return issues
}

// ---------------------------------------------------------------------------
// Heuristic backend
// ---------------------------------------------------------------------------

// HeuristicBackend is the pure in-process fallback: bracket balance for
// syntax plus line-level style patterns.
type HeuristicBackend struct {
	MaxLineLength int
}

func (h *HeuristicBackend) Name() string { return "heuristic" }

var debugPrintPatterns = []string{"console.log(", "fmt.Println(", "print(", "println!(", "System.out.println("}

// semicolonLanguages are languages whose statements end in semicolons.
var semicolonLanguages = map[string]bool{
	"javascript": true,
	"typescript": true,
	"java":       true,
	"c":          true,
	"cpp":        true,
	"csharp":     true,
}

var controlPrefixes = []string{"if", "else", "for", "while", "switch", "do", "try", "catch", "finally", "function", "class", "import", "export", "public", "private", "case", "default"}

// Check scans line by line, skipping comment lines, tracking delimiter
// balance and flagging style warnings.
func (h *HeuristicBackend) Check(_ context.Context, file models.ReviewedFile) ([]models.StaticIssue, error) {
	maxLine := h.MaxLineLength
	if maxLine <= 0 {
		maxLine = 120
	}

	var issues []models.StaticIssue
	var parens, brackets, braces int

	lines := strings.Split(file.Content, "\n")
	for i, line := range lines {
		lineNo := i + 1
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || isCommentLine(trimmed) {
			continue
		}

		parens += strings.Count(line, "(") - strings.Count(line, ")")
		brackets += strings.Count(line, "[") - strings.Count(line, "]")
		braces += strings.Count(line, "{") - strings.Count(line, "}")

		for _, pat := range debugPrintPatterns {
			if strings.Contains(line, pat) {
				issues = append(issues, models.StaticIssue{
					Kind:     models.IssueKindBestPractice,
					Line:     lineNo,
					Message:  fmt.Sprintf("debug print statement: %s", strings.TrimSuffix(pat, "(")),
					Severity: models.IssueSeverityWarning,
					Rule:     "no-debug-print",
				})
				break
			}
		}

		if len(line) > maxLine {
			issues = append(issues, models.StaticIssue{
				Kind:     models.IssueKindBestPractice,
				Line:     lineNo,
				Message:  fmt.Sprintf("line exceeds %d characters", maxLine),
				Severity: models.IssueSeverityWarning,
				Rule:     "max-line-length",
			})
		}

		if line != strings.TrimRight(line, " \t") {
			issues = append(issues, models.StaticIssue{
				Kind:     models.IssueKindBestPractice,
				Line:     lineNo,
				Message:  "trailing whitespace",
				Severity: models.IssueSeverityInfo,
				Rule:     "no-trailing-whitespace",
			})
		}

		if semicolonLanguages[file.Language] && missingSemicolon(trimmed) {
			issues = append(issues, models.StaticIssue{
				Kind:     models.IssueKindBestPractice,
				Line:     lineNo,
				Message:  "possible missing statement terminator",
				Severity: models.IssueSeverityWarning,
				Rule:     "missing-semicolon",
			})
		}
	}

	for kind, net := range map[string]int{"parenthesis": parens, "bracket": brackets, "brace": braces} {
		if net != 0 {
			issues = append(issues, models.StaticIssue{
				Kind:     models.IssueKindSyntax,
				Line:     len(lines),
				Message:  fmt.Sprintf("unbalanced %s count: %+d at end of file", kind, net),
				Severity: models.IssueSeverityError,
				Rule:     "unbalanced-delimiters",
			})
		}
	}

	return issues, nil
}

func isCommentLine(trimmed string) bool {
	return strings.HasPrefix(trimmed, "//") ||
		strings.HasPrefix(trimmed, "#") ||
		strings.HasPrefix(trimmed, "/*") ||
		strings.HasPrefix(trimmed, "*")
}

// missingSemicolon is intentionally loose: it only fires on lines that
// look like complete call or assignment statements.
func missingSemicolon(trimmed string) bool {
	last := trimmed[len(trimmed)-1]
	if last != ')' {
		return false
	}
	first := strings.FieldsFunc(trimmed, func(r rune) bool { return r == ' ' || r == '(' })
	if len(first) == 0 {
		return false
	}
	head := strings.ToLower(first[0])
	for _, kw := range controlPrefixes {
		if head == kw {
			return false
		}
	}
	return true
}

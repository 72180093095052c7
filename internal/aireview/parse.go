package aireview

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/joescharf/crit/internal/models"
)

// ErrUnparsableResponse means no JSON object could be recovered from
// the completion text. Callers convert it to a synthetic finding, never
// a hard failure.
var ErrUnparsableResponse = errors.New("no JSON object found in response")

// rawFinding is the JSON structure returned by the LLM. Confidence is a
// pointer so a missing value can be told apart from 0.
type rawFinding struct {
	Category    string   `json:"category"`
	Severity    string   `json:"severity"`
	Message     string   `json:"message"`
	Explanation string   `json:"explanation"`
	Suggestion  string   `json:"suggestion"`
	Confidence  *float64 `json:"confidence"`
	Line        int      `json:"line"`
	AutoFixable bool     `json:"auto_fixable"`
}

type rawResponse struct {
	Summary  string            `json:"summary"`
	Findings []json.RawMessage `json:"findings"`
}

// parseResponse extracts and validates findings from raw completion
// text. The returned findings are normalized, confidence-filtered, and
// capped per category; per-element garbage is dropped silently.
func parseResponse(text string, cfg Config) ([]models.AIFinding, string, error) {
	span, err := extractJSONObject(stripFences(text))
	if err != nil {
		return nil, "", err
	}

	var resp rawResponse
	if err := json.Unmarshal([]byte(span), &resp); err != nil {
		return nil, "", ErrUnparsableResponse
	}

	var findings []models.AIFinding
	for _, raw := range resp.Findings {
		var rf rawFinding
		if err := json.Unmarshal(raw, &rf); err != nil {
			continue
		}
		if rf.Category == "" || rf.Severity == "" || rf.Message == "" || rf.Explanation == "" {
			continue
		}
		if rf.Confidence == nil || *rf.Confidence < 0 || *rf.Confidence > 1 {
			continue
		}
		if *rf.Confidence < cfg.MinConfidence {
			continue
		}
		findings = append(findings, models.AIFinding{
			Category:    normalizeCategory(rf.Category),
			Severity:    normalizeSeverity(rf.Severity),
			Message:     rf.Message,
			Explanation: rf.Explanation,
			Suggestion:  rf.Suggestion,
			Confidence:  *rf.Confidence,
			Line:        rf.Line,
			AutoFixable: rf.AutoFixable,
		})
	}

	return capPerCategory(findings, cfg.MaxFindingsPerCategory), resp.Summary, nil
}

// stripFences removes a markdown code fence wrapper if present.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.SplitN(text, "\n", 2)
	if len(lines) > 1 {
		text = lines[1]
	}
	if idx := strings.LastIndex(text, "```"); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}

// extractJSONObject returns the first balanced {...} span in text.
// Braces inside JSON strings are ignored.
func extractJSONObject(text string) (string, error) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", ErrUnparsableResponse
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return text[start : i+1], nil
				}
			}
		}
	}
	return "", ErrUnparsableResponse
}

// normalizeCategory maps arbitrary category strings onto the closed
// enum; unknown values fall back to readability.
func normalizeCategory(s string) models.FindingCategory {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "logic", "bug", "correctness":
		return models.CategoryLogic
	case "architecture", "design":
		return models.CategoryArchitecture
	case "security":
		return models.CategorySecurity
	case "performance", "perf":
		return models.CategoryPerformance
	case "maintainability":
		return models.CategoryMaintainability
	case "readability", "style":
		return models.CategoryReadability
	default:
		return models.CategoryReadability
	}
}

// normalizeSeverity maps arbitrary severity strings onto the closed
// enum; unknown values fall back to info.
func normalizeSeverity(s string) models.FindingSeverity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical", "blocker":
		return models.SeverityCritical
	case "high", "major":
		return models.SeverityHigh
	case "medium", "moderate":
		return models.SeverityMedium
	case "low", "minor":
		return models.SeverityLow
	case "info", "informational":
		return models.SeverityInfo
	default:
		return models.SeverityInfo
	}
}

// capPerCategory keeps at most limit findings per category, preserving
// encounter order; excess findings are dropped, not merged.
func capPerCategory(findings []models.AIFinding, limit int) []models.AIFinding {
	if limit <= 0 {
		return findings
	}
	counts := make(map[models.FindingCategory]int)
	out := findings[:0]
	for _, f := range findings {
		if counts[f.Category] >= limit {
			continue
		}
		counts[f.Category]++
		out = append(out, f)
	}
	return out
}

// syntheticParseFinding documents a parse failure as the sole finding
// of a result, so a degraded review is never silently empty.
func syntheticParseFinding() models.AIFinding {
	return models.AIFinding{
		Category:    models.CategoryReadability,
		Severity:    models.SeverityInfo,
		Message:     "AI response parsing failed; review may be incomplete",
		Explanation: "The completion service returned text that did not contain a parseable JSON object, so no structured findings could be extracted.",
		Confidence:  1.0,
	}
}

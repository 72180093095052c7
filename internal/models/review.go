package models

import "time"

// FindingCategory classifies an AI review finding.
type FindingCategory string

const (
	CategoryLogic           FindingCategory = "logic"
	CategoryArchitecture    FindingCategory = "architecture"
	CategorySecurity        FindingCategory = "security"
	CategoryPerformance     FindingCategory = "performance"
	CategoryMaintainability FindingCategory = "maintainability"
	CategoryReadability     FindingCategory = "readability"
)

// FindingSeverity is the ordinal importance of an AI finding.
type FindingSeverity string

const (
	SeverityCritical FindingSeverity = "critical"
	SeverityHigh     FindingSeverity = "high"
	SeverityMedium   FindingSeverity = "medium"
	SeverityLow      FindingSeverity = "low"
	SeverityInfo     FindingSeverity = "info"
)

// SeverityRank returns a numeric rank for sorting (higher = more severe).
func SeverityRank(s FindingSeverity) int {
	switch s {
	case SeverityCritical:
		return 5
	case SeverityHigh:
		return 4
	case SeverityMedium:
		return 3
	case SeverityLow:
		return 2
	case SeverityInfo:
		return 1
	default:
		return 0
	}
}

// AIFinding is one LLM-sourced observation about a file.
type AIFinding struct {
	Category    FindingCategory `json:"category"`
	Severity    FindingSeverity `json:"severity"`
	Message     string          `json:"message"`
	Explanation string          `json:"explanation"`
	Suggestion  string          `json:"suggestion,omitempty"`
	Confidence  float64         `json:"confidence"` // always in [0,1]
	Line        int             `json:"line,omitempty"`
	AutoFixable bool            `json:"auto_fixable"`
}

// AIReviewResult is the aggregate AI outcome for one file.
// OverallScore is always clamped into [0,100].
type AIReviewResult struct {
	FileID          string                      `json:"file_id"`
	OverallScore    int                         `json:"overall_score"`
	CategoryScores  map[FindingCategory]float64 `json:"category_scores"`
	Findings        []AIFinding                 `json:"findings"`
	Summary         string                      `json:"summary"`
	Recommendations []string                    `json:"recommendations"`
	Strengths       []string                    `json:"strengths"`
	Weaknesses      []string                    `json:"weaknesses"`
	Model           string                      `json:"model"`
	Cached          bool                        `json:"cached"`
	Duration        time.Duration               `json:"duration"`
}

// CriticalCount returns the number of critical-severity findings.
func (r *AIReviewResult) CriticalCount() int {
	n := 0
	for _, f := range r.Findings {
		if f.Severity == SeverityCritical {
			n++
		}
	}
	return n
}

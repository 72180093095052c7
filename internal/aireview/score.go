package aireview

import (
	"fmt"
	"math"
	"sort"

	"github.com/joescharf/crit/internal/models"
)

// severityPenalty is the score deduction per finding, scaled by the
// finding's confidence.
var severityPenalty = map[models.FindingSeverity]float64{
	models.SeverityCritical: 25,
	models.SeverityHigh:     15,
	models.SeverityMedium:   8,
	models.SeverityLow:      3,
	models.SeverityInfo:     1,
}

// scoreDimensions are the five weighted scoring dimensions. Findings
// categorized as maintainability debit readability, which is also the
// normalization fallback dimension.
var scoreDimensions = []models.FindingCategory{
	models.CategoryLogic,
	models.CategorySecurity,
	models.CategoryPerformance,
	models.CategoryArchitecture,
	models.CategoryReadability,
}

func scoringDimension(c models.FindingCategory) models.FindingCategory {
	if c == models.CategoryMaintainability {
		return models.CategoryReadability
	}
	return c
}

// scoreFindings computes per-dimension scores and the weighted overall
// score. Every dimension starts at 100; each finding subtracts
// penalty(severity) x confidence from its dimension, clamped to
// [0,100]. A zero total weight yields an overall score of 0.
func scoreFindings(findings []models.AIFinding, weights map[models.FindingCategory]float64) (map[models.FindingCategory]float64, int) {
	scores := make(map[models.FindingCategory]float64, len(scoreDimensions))
	for _, dim := range scoreDimensions {
		scores[dim] = 100
	}

	for _, f := range findings {
		dim := scoringDimension(f.Category)
		scores[dim] -= severityPenalty[f.Severity] * f.Confidence
	}
	for dim, s := range scores {
		scores[dim] = math.Min(100, math.Max(0, s))
	}

	var weighted, totalWeight float64
	for _, dim := range scoreDimensions {
		w := weights[dim]
		weighted += scores[dim] * w
		totalWeight += w
	}
	if totalWeight == 0 {
		return scores, 0
	}
	return scores, int(math.Round(weighted / totalWeight))
}

// buildSummary counts findings by severity.
func buildSummary(findings []models.AIFinding) string {
	if len(findings) == 0 {
		return "No findings; the file passed AI review cleanly."
	}
	counts := make(map[models.FindingSeverity]int)
	for _, f := range findings {
		counts[f.Severity]++
	}
	return fmt.Sprintf("Found %d finding(s): %d critical, %d high, %d medium, %d low, %d info.",
		len(findings),
		counts[models.SeverityCritical],
		counts[models.SeverityHigh],
		counts[models.SeverityMedium],
		counts[models.SeverityLow],
		counts[models.SeverityInfo])
}

// buildRecommendations prioritizes critical/high counts, then
// per-category counts.
func buildRecommendations(findings []models.AIFinding) []string {
	var recs []string

	critical, high := 0, 0
	byCategory := make(map[models.FindingCategory]int)
	for _, f := range findings {
		switch f.Severity {
		case models.SeverityCritical:
			critical++
		case models.SeverityHigh:
			high++
		}
		byCategory[f.Category]++
	}

	if critical > 0 {
		recs = append(recs, fmt.Sprintf("Address %d critical finding(s) before this file can be accepted.", critical))
	}
	if high > 0 {
		recs = append(recs, fmt.Sprintf("Resolve %d high-severity finding(s).", high))
	}
	for _, cat := range sortedCategories(byCategory) {
		recs = append(recs, fmt.Sprintf("Review %d %s finding(s).", byCategory[cat], cat))
	}
	return recs
}

// buildStrengths fires when no critical/high findings exist or when at
// least four dimensions were examined.
func buildStrengths(findings []models.AIFinding) []string {
	var strengths []string

	hasSevere := false
	for _, f := range findings {
		if f.Severity == models.SeverityCritical || f.Severity == models.SeverityHigh {
			hasSevere = true
			break
		}
	}
	if !hasSevere {
		strengths = append(strengths, "No critical or high-severity problems found.")
	}
	if len(scoreDimensions) >= 4 {
		strengths = append(strengths, fmt.Sprintf("Review covered %d quality dimensions.", len(scoreDimensions)))
	}
	return strengths
}

// buildWeaknesses enumerates non-empty categories with counts.
func buildWeaknesses(findings []models.AIFinding) []string {
	byCategory := make(map[models.FindingCategory]int)
	for _, f := range findings {
		byCategory[f.Category]++
	}

	var weaknesses []string
	for _, cat := range sortedCategories(byCategory) {
		weaknesses = append(weaknesses, fmt.Sprintf("%s: %d finding(s)", cat, byCategory[cat]))
	}
	return weaknesses
}

func sortedCategories(m map[models.FindingCategory]int) []models.FindingCategory {
	cats := make([]models.FindingCategory, 0, len(m))
	for c := range m {
		cats = append(cats, c)
	}
	sort.Slice(cats, func(i, j int) bool {
		if m[cats[i]] != m[cats[j]] {
			return m[cats[i]] > m[cats[j]]
		}
		return cats[i] < cats[j]
	})
	return cats
}

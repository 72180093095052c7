package aireview

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/crit/internal/models"
)

func TestScoreFindings_NoFindings(t *testing.T) {
	scores, overall := scoreFindings(nil, defaultWeights())
	assert.Equal(t, 100, overall)
	for _, dim := range scoreDimensions {
		assert.Equal(t, float64(100), scores[dim])
	}
}

func TestScoreFindings_PenaltyScaledByConfidence(t *testing.T) {
	findings := []models.AIFinding{
		{Category: models.CategorySecurity, Severity: models.SeverityCritical, Confidence: 0.5},
	}
	scores, _ := scoreFindings(findings, defaultWeights())
	// critical penalty 25 x 0.5 confidence = 12.5 off security.
	assert.InDelta(t, 87.5, scores[models.CategorySecurity], 0.001)
	assert.Equal(t, float64(100), scores[models.CategoryLogic])
}

func TestScoreFindings_WeightedOverall(t *testing.T) {
	findings := []models.AIFinding{
		{Category: models.CategoryLogic, Severity: models.SeverityHigh, Confidence: 1.0},
	}
	_, overall := scoreFindings(findings, defaultWeights())
	// logic drops to 85; overall = 100 - 15 x 0.30 = 95.5, rounded to 96.
	assert.Equal(t, 96, overall)
}

func TestScoreFindings_MaintainabilityDebitsReadability(t *testing.T) {
	findings := []models.AIFinding{
		{Category: models.CategoryMaintainability, Severity: models.SeverityMedium, Confidence: 1.0},
	}
	scores, _ := scoreFindings(findings, defaultWeights())
	assert.InDelta(t, 92, scores[models.CategoryReadability], 0.001)
	_, hasMaint := scores[models.CategoryMaintainability]
	assert.False(t, hasMaint, "maintainability is not a scoring dimension of its own")
}

func TestScoreFindings_ClampedAtZero(t *testing.T) {
	var findings []models.AIFinding
	for i := 0; i < 10; i++ {
		findings = append(findings, models.AIFinding{
			Category: models.CategorySecurity, Severity: models.SeverityCritical, Confidence: 1.0,
		})
	}
	scores, _ := scoreFindings(findings, defaultWeights())
	assert.Equal(t, float64(0), scores[models.CategorySecurity])
}

func TestScoreFindings_ZeroWeights(t *testing.T) {
	_, overall := scoreFindings(nil, map[models.FindingCategory]float64{})
	assert.Equal(t, 0, overall)
}

func TestBuildSummary(t *testing.T) {
	assert.Contains(t, buildSummary(nil), "No findings")

	findings := []models.AIFinding{
		{Severity: models.SeverityCritical},
		{Severity: models.SeverityHigh},
		{Severity: models.SeverityHigh},
	}
	s := buildSummary(findings)
	assert.Contains(t, s, "3 finding(s)")
	assert.Contains(t, s, "1 critical")
	assert.Contains(t, s, "2 high")
}

func TestBuildRecommendations(t *testing.T) {
	findings := []models.AIFinding{
		{Category: models.CategorySecurity, Severity: models.SeverityCritical},
		{Category: models.CategorySecurity, Severity: models.SeverityHigh},
		{Category: models.CategoryLogic, Severity: models.SeverityLow},
	}
	recs := buildRecommendations(findings)
	require.NotEmpty(t, recs)
	assert.Contains(t, recs[0], "1 critical finding(s)")
	assert.Contains(t, recs[1], "1 high-severity")
	// Category recommendations sorted by count descending.
	assert.Contains(t, recs[2], "2 security")
}

func TestBuildStrengths(t *testing.T) {
	t.Run("clean file", func(t *testing.T) {
		strengths := buildStrengths(nil)
		require.NotEmpty(t, strengths)
		assert.Contains(t, strengths[0], "No critical or high-severity")
	})

	t.Run("severe findings suppress the clean line", func(t *testing.T) {
		strengths := buildStrengths([]models.AIFinding{{Severity: models.SeverityCritical}})
		for _, s := range strengths {
			assert.NotContains(t, s, "No critical")
		}
	})
}

func TestBuildWeaknesses(t *testing.T) {
	findings := []models.AIFinding{
		{Category: models.CategoryLogic},
		{Category: models.CategoryLogic},
		{Category: models.CategorySecurity},
	}
	weaknesses := buildWeaknesses(findings)
	require.Len(t, weaknesses, 2)
	assert.Contains(t, weaknesses[0], "logic: 2")
	assert.Contains(t, weaknesses[1], "security: 1")
}

func TestConfigFingerprint(t *testing.T) {
	a := parseConfig()
	b := parseConfig()
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	b.MinConfidence = 0.5
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}

func TestConfigFingerprint_IgnoresDeliveryFields(t *testing.T) {
	a := parseConfig()
	b := parseConfig()
	b.CacheSize = 512
	b.BatchDelay = 5 * time.Second

	assert.Equal(t, a.Fingerprint(), b.Fingerprint(),
		"cache sizing and batch pacing do not change review output")
}

package aireview

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/crit/internal/models"
)

func parseConfig() Config {
	return Config{
		Weights:                defaultWeights(),
		MinConfidence:          0.3,
		MaxFindingsPerCategory: 10,
	}
}

const validResponse = `{
	"summary": "Mostly fine.",
	"findings": [
		{"category": "security", "severity": "high", "message": "SQL injection",
		 "explanation": "User input reaches the query.", "confidence": 0.9, "line": 12},
		{"category": "readability", "severity": "low", "message": "Long function",
		 "explanation": "Hard to follow.", "confidence": 0.6}
	]
}`

func TestParseResponse_Valid(t *testing.T) {
	findings, summary, err := parseResponse(validResponse, parseConfig())
	require.NoError(t, err)
	assert.Equal(t, "Mostly fine.", summary)
	require.Len(t, findings, 2)
	assert.Equal(t, models.CategorySecurity, findings[0].Category)
	assert.Equal(t, models.SeverityHigh, findings[0].Severity)
	assert.Equal(t, 12, findings[0].Line)
	assert.Equal(t, 0.9, findings[0].Confidence)
}

func TestParseResponse_Fenced(t *testing.T) {
	fenced := "```json\n" + validResponse + "\n```"
	findings, _, err := parseResponse(fenced, parseConfig())
	require.NoError(t, err)
	assert.Len(t, findings, 2)
}

func TestParseResponse_SurroundingProse(t *testing.T) {
	wrapped := "Here is my review:\n" + validResponse + "\nLet me know if you need more."
	findings, _, err := parseResponse(wrapped, parseConfig())
	require.NoError(t, err)
	assert.Len(t, findings, 2)
}

func TestParseResponse_NoJSON(t *testing.T) {
	_, _, err := parseResponse("I could not review this file, sorry.", parseConfig())
	assert.ErrorIs(t, err, ErrUnparsableResponse)
}

func TestParseResponse_BracesInStrings(t *testing.T) {
	text := `{"summary": "uses {braces} safely", "findings": []}`
	findings, summary, err := parseResponse(text, parseConfig())
	require.NoError(t, err)
	assert.Empty(t, findings)
	assert.Equal(t, "uses {braces} safely", summary)
}

func TestParseResponse_DropsInvalidFindings(t *testing.T) {
	tests := []struct {
		name    string
		finding string
	}{
		{"missing message", `{"category": "logic", "severity": "high", "explanation": "x", "confidence": 0.9}`},
		{"missing explanation", `{"category": "logic", "severity": "high", "message": "x", "confidence": 0.9}`},
		{"missing confidence", `{"category": "logic", "severity": "high", "message": "x", "explanation": "y"}`},
		{"confidence above one", `{"category": "logic", "severity": "high", "message": "x", "explanation": "y", "confidence": 1.5}`},
		{"confidence negative", `{"category": "logic", "severity": "high", "message": "x", "explanation": "y", "confidence": -0.1}`},
		{"below min confidence", `{"category": "logic", "severity": "high", "message": "x", "explanation": "y", "confidence": 0.1}`},
		{"not an object", `"just a string"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := fmt.Sprintf(`{"summary": "s", "findings": [%s]}`, tt.finding)
			findings, _, err := parseResponse(text, parseConfig())
			require.NoError(t, err)
			assert.Empty(t, findings, "invalid finding must be dropped, not fail the parse")
		})
	}
}

func TestParseResponse_KeepsValidAmongGarbage(t *testing.T) {
	text := `{"summary": "s", "findings": [
		{"bogus": true},
		{"category": "logic", "severity": "critical", "message": "off by one",
		 "explanation": "loop bound", "confidence": 0.8},
		"not an object"
	]}`
	findings, _, err := parseResponse(text, parseConfig())
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, models.SeverityCritical, findings[0].Severity)
}

func TestNormalizeCategory(t *testing.T) {
	tests := []struct {
		in   string
		want models.FindingCategory
	}{
		{"logic", models.CategoryLogic},
		{"bug", models.CategoryLogic},
		{"correctness", models.CategoryLogic},
		{"Design", models.CategoryArchitecture},
		{"perf", models.CategoryPerformance},
		{"style", models.CategoryReadability},
		{"maintainability", models.CategoryMaintainability},
		{" SECURITY ", models.CategorySecurity},
		{"something else", models.CategoryReadability},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeCategory(tt.in), "input %q", tt.in)
	}
}

func TestNormalizeSeverity(t *testing.T) {
	tests := []struct {
		in   string
		want models.FindingSeverity
	}{
		{"critical", models.SeverityCritical},
		{"blocker", models.SeverityCritical},
		{"major", models.SeverityHigh},
		{"moderate", models.SeverityMedium},
		{"minor", models.SeverityLow},
		{"informational", models.SeverityInfo},
		{"catastrophic", models.SeverityInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeSeverity(tt.in), "input %q", tt.in)
	}
}

func TestCapPerCategory(t *testing.T) {
	var findings []models.AIFinding
	for i := 0; i < 5; i++ {
		findings = append(findings, models.AIFinding{Category: models.CategoryLogic, Message: fmt.Sprintf("logic-%d", i)})
	}
	findings = append(findings, models.AIFinding{Category: models.CategorySecurity, Message: "sec-0"})

	capped := capPerCategory(findings, 3)
	require.Len(t, capped, 4)
	// Encounter order preserved: the first three logic findings survive.
	assert.Equal(t, "logic-0", capped[0].Message)
	assert.Equal(t, "logic-2", capped[2].Message)
	assert.Equal(t, "sec-0", capped[3].Message)
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a": 1}`, stripFences("```json\n{\"a\": 1}\n```"))
	assert.Equal(t, `{"a": 1}`, stripFences("```\n{\"a\": 1}\n```"))
	assert.Equal(t, `{"a": 1}`, stripFences(`{"a": 1}`))
}

func TestBuildPrompt(t *testing.T) {
	system, user := buildPrompt("go", "PR #42", "package main")
	assert.Contains(t, system, "logic, security, performance, architecture, readability")
	assert.Contains(t, system, "valid JSON")
	assert.Contains(t, user, "Language: go")
	assert.Contains(t, user, "PR #42")
	assert.Contains(t, user, "package main")
}

func TestBuildPrompt_Defaults(t *testing.T) {
	_, user := buildPrompt("", "", "x")
	assert.Contains(t, user, "Language: plaintext")
	assert.NotContains(t, user, "Context:")
}

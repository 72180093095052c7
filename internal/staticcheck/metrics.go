package staticcheck

import (
	"math"
	"strings"

	"github.com/joescharf/crit/internal/models"
)

// branchTokens contribute one decision point each to cyclomatic
// complexity.
var branchTokens = []string{"if ", "else if", "for ", "while ", "case ", "catch ", "&&", "||", "?"}

// halsteadVocabulary is the fixed operator/keyword vocabulary used as a
// Halstead-style complexity proxy.
var halsteadVocabulary = []string{
	"+", "-", "*", "/", "%", "=", "==", "!=", "<", ">", "<=", ">=", "!",
	"&&", "||", "return", "if", "else", "for", "while", "func", "function",
	"var", "let", "const", "class", "switch", "case",
}

// ComputeMetrics derives code metrics from raw file content. Comment
// lines are excluded from complexity counting.
func ComputeMetrics(content string) models.CodeMetrics {
	var loc, halstead int
	branches := 0

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		loc++
		if isCommentLine(trimmed) {
			continue
		}
		for _, tok := range branchTokens {
			branches += strings.Count(line, tok)
		}
		for _, tok := range halsteadVocabulary {
			halstead += strings.Count(line, tok)
		}
	}

	cyclomatic := float64(1 + branches)
	cognitive := cyclomatic * 1.2 // declared simplification

	return models.CodeMetrics{
		Cyclomatic:      cyclomatic,
		Cognitive:       cognitive,
		Halstead:        halstead,
		LinesOfCode:     loc,
		Maintainability: maintainabilityIndex(loc, halstead, cyclomatic),
	}
}

// maintainabilityIndex computes the classic MI formula clamped to
// [0,100]. LOC and cyclomatic are floored at 1 so the logarithms stay
// defined for trivial files.
func maintainabilityIndex(loc, halstead int, cyclomatic float64) float64 {
	if loc < 1 {
		loc = 1
	}
	if cyclomatic < 1 {
		cyclomatic = 1
	}
	mi := 171 - 5.2*math.Log(float64(loc)) - 0.23*float64(halstead) - 16.2*math.Log(cyclomatic)
	return math.Min(100, math.Max(0, mi))
}

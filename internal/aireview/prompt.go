package aireview

import (
	"strings"
)

// reviewDimensions are the quality dimensions the model is asked to
// examine, in prompt order.
var reviewDimensions = []string{"logic", "security", "performance", "architecture", "readability"}

// buildPrompt constructs the system and user prompts for a file review.
func buildPrompt(language, context, content string) (system string, user string) {
	var sys strings.Builder
	sys.WriteString("You are a strict code reviewer. Analyze the submitted file across these dimensions: ")
	sys.WriteString(strings.Join(reviewDimensions, ", "))
	sys.WriteString(".\n\nReturn ONLY a single JSON object with these fields:\n")
	sys.WriteString(`- "summary": one-paragraph overview of the file's quality
- "findings": array of objects, each with:
  - "category": one of "logic", "architecture", "security", "performance", "maintainability", "readability"
  - "severity": one of "critical", "high", "medium", "low", "info"
  - "message": concise description of the problem
  - "explanation": why it matters and how to fix it
  - "suggestion": optional concrete fix
  - "confidence": number between 0 and 1
  - "line": line number if applicable, else omit
  - "auto_fixable": true if a tool could fix it mechanically

Rules:
- Report real problems only, no stylistic nitpicks below "low" severity
- Use "critical" only for bugs, vulnerabilities, or data loss
- Set confidence honestly; uncertain findings get low confidence
- Return valid JSON only, no markdown fencing or explanation`)
	system = sys.String()

	var sb strings.Builder
	sb.WriteString("Language: ")
	if language == "" {
		language = "plaintext"
	}
	sb.WriteString(language)
	sb.WriteString("\n")
	if context != "" {
		sb.WriteString("\nContext:\n")
		sb.WriteString(context)
		sb.WriteString("\n")
	}
	sb.WriteString("\nReview this file:\n\n")
	sb.WriteString(content)
	user = sb.String()
	return
}

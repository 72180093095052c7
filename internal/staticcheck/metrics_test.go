package staticcheck

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeMetrics_EmptyContent(t *testing.T) {
	m := ComputeMetrics("")
	assert.Equal(t, 0, m.LinesOfCode)
	assert.Equal(t, float64(1), m.Cyclomatic)
	assert.Equal(t, float64(100), m.Maintainability)
}

func TestComputeMetrics_CountsBranches(t *testing.T) {
	content := `func main() {
	if a {
		return
	}
	for i := 0; i < 10; i++ {
		if b && c {
			doThing()
		}
	}
}`
	m := ComputeMetrics(content)
	// if + for + if + && = 4 branch tokens
	assert.Equal(t, float64(5), m.Cyclomatic)
	assert.InDelta(t, 6.0, m.Cognitive, 0.001)
	assert.Equal(t, 10, m.LinesOfCode)
}

func TestComputeMetrics_SkipsCommentsAndBlanks(t *testing.T) {
	content := "// if this were code it would count\n\nx := 1\n# if python comment\n"
	m := ComputeMetrics(content)
	assert.Equal(t, float64(1), m.Cyclomatic, "branch tokens in comments must not count")
	assert.Equal(t, 3, m.LinesOfCode, "blank lines excluded, comment lines included")
}

func TestComputeMetrics_MaintainabilityDecreasesWithComplexity(t *testing.T) {
	simple := ComputeMetrics("x := 1")
	complex := ComputeMetrics(strings.Repeat("if a && b || c { x = y + z * w }\n", 40))
	assert.Greater(t, simple.Maintainability, complex.Maintainability)
}

func TestMaintainabilityIndex_Clamped(t *testing.T) {
	assert.Equal(t, float64(100), maintainabilityIndex(1, 0, 1))
	assert.Equal(t, float64(0), maintainabilityIndex(100000, 10000, 500))
}

func TestMaintainabilityIndex_FloorsInputs(t *testing.T) {
	// Zero LOC and cyclomatic must not blow up the logarithms.
	assert.Equal(t, maintainabilityIndex(0, 0, 0), maintainabilityIndex(1, 0, 1))
}

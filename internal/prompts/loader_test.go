package prompts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_KnownPrompts(t *testing.T) {
	analyze, err := Get("analyze.json", "analyze_resume")
	require.NoError(t, err)
	assert.Contains(t, analyze, "{{.JobDescription}}")
	assert.Contains(t, analyze, "matchScore")

	build, err := Get("build.json", "build_resume")
	require.NoError(t, err)
	assert.Contains(t, build, "{{.MaxExperiences}}")
	assert.Contains(t, build, "inlineSuggestions")
}

func TestGet_MissingKey(t *testing.T) {
	_, err := Get("analyze.json", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prompt key")
}

func TestGet_MissingFile(t *testing.T) {
	_, err := Get("missing.json", "analyze_resume")
	require.Error(t, err)
}

func TestFormat(t *testing.T) {
	out := Format("Job: {{.JobDescription}} | Max: {{.MaxChanges}}", map[string]string{
		"JobDescription": "Backend Engineer",
		"MaxChanges":     "10",
	})
	assert.Equal(t, "Job: Backend Engineer | Max: 10", out)
	assert.False(t, strings.Contains(out, "{{"))
}

func TestMustGet_PanicsOnMissing(t *testing.T) {
	assert.Panics(t, func() {
		MustGet("analyze.json", "definitely_not_here")
	})
}

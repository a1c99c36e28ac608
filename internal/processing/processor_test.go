package processing

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curahq/cura/internal/db"
	"github.com/curahq/cura/internal/llm"
)

// fakeLLM returns canned JSON and records the prompts it was given.
type fakeLLM struct {
	response string
	err      error
	prompts  []string
	tiers    []llm.ModelTier
}

func (f *fakeLLM) GenerateJSON(_ context.Context, prompt string, tier llm.ModelTier) (string, error) {
	f.prompts = append(f.prompts, prompt)
	f.tiers = append(f.tiers, tier)
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func (f *fakeLLM) Close() error { return nil }

const validAnalyzeResponse = `{
	"matchScore": 74,
	"overallFit": "Good match for the backend role.",
	"changes": [
		{"section": "experience", "sectionIndex": 0, "field": "bullets", "bulletIndex": 0,
		 "currentText": "Built services", "suggestedText": "Built Go services at 2M req/day", "reason": "scale"}
	]
}`

const validBuildResponse = `{
	"resume": {
		"basics": {"name": "Ada", "email": "ada@example.com"},
		"experiences": [{"company": "Acme", "role": "Engineer", "bullets": ["Shipped things"]}]
	},
	"reasoning": "Backend emphasis.",
	"inlineSuggestions": []
}`

func analyzeTask() *db.Task {
	return &db.Task{
		Mode:           db.TaskModeAnalyze,
		JobDescription: "Senior Backend Engineer at Acme",
		ResumeData:     json.RawMessage(`{"basics":{"name":"Ada"}}`),
	}
}

func TestProcess_Analyze(t *testing.T) {
	client := &fakeLLM{response: validAnalyzeResponse}
	p := NewProcessor(client)

	raw, err := p.Process(context.Background(), analyzeTask())
	require.NoError(t, err)

	result, err := DecodeAnalyzeResult(raw)
	require.NoError(t, err)
	assert.Equal(t, 74, result.MatchScore)
	require.Len(t, result.Changes, 1)
	assert.Equal(t, "experience", result.Changes[0].Section)

	require.Len(t, client.prompts, 1)
	assert.Contains(t, client.prompts[0], "Senior Backend Engineer at Acme")
	assert.Contains(t, client.prompts[0], `"name":"Ada"`)
	assert.Equal(t, llm.TierStandard, client.tiers[0])
}

func TestProcess_Analyze_RequiresResumeData(t *testing.T) {
	p := NewProcessor(&fakeLLM{response: validAnalyzeResponse})
	task := analyzeTask()
	task.ResumeData = nil

	_, err := p.Process(context.Background(), task)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires resume data")
}

func TestProcess_Analyze_RejectsMalformedOutput(t *testing.T) {
	p := NewProcessor(&fakeLLM{response: `{"overallFit": "no score"}`})

	_, err := p.Process(context.Background(), analyzeTask())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "analyze result rejected")
}

func TestProcess_Analyze_LLMError(t *testing.T) {
	p := NewProcessor(&fakeLLM{err: fmt.Errorf("upstream unavailable")})

	_, err := p.Process(context.Background(), analyzeTask())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "analyze processing failed")
}

func TestProcess_Build_DefaultsAndPreferences(t *testing.T) {
	client := &fakeLLM{response: validBuildResponse}
	p := NewProcessor(client)

	task := &db.Task{
		Mode:           db.TaskModeBuild,
		JobDescription: "Platform Engineer",
		Preferences:    &db.TaskPreferences{MaxExperiences: 2},
	}

	raw, err := p.Process(context.Background(), task)
	require.NoError(t, err)

	result, err := DecodeBuildResult(raw)
	require.NoError(t, err)
	assert.Equal(t, "Ada", result.Resume.Basics.Name)

	require.Len(t, client.prompts, 1)
	prompt := client.prompts[0]
	assert.Contains(t, prompt, "At most 2 experience entries")
	assert.Contains(t, prompt, "At most 3 project entries") // default
	assert.Equal(t, llm.TierAdvanced, client.tiers[0])
}

func TestProcess_Build_RejectsMalformedOutput(t *testing.T) {
	p := NewProcessor(&fakeLLM{response: `{"reasoning": "forgot the resume"}`})

	_, err := p.Process(context.Background(), &db.Task{Mode: db.TaskModeBuild, JobDescription: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "build result rejected")
}

func TestProcess_UnknownMode(t *testing.T) {
	p := NewProcessor(&fakeLLM{})

	_, err := p.Process(context.Background(), &db.Task{Mode: "transmogrify"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown task mode")
}

package processing

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/curahq/cura/internal/db"
	"github.com/curahq/cura/internal/llm"
	"github.com/curahq/cura/internal/prompts"
	"github.com/curahq/cura/internal/schemas"
)

// Default build constraints applied when the task carries no preferences.
const (
	defaultMaxExperiences          = 4
	defaultMaxProjects             = 3
	defaultMaxBulletsPerExperience = 4
	defaultMaxBulletsPerProject    = 3
	defaultMaxChanges              = 10
)

// Processor dispatches a task to its mode-specific LLM processing step and
// returns the validated result payload.
type Processor struct {
	client llm.Client
}

// NewProcessor creates a processor backed by the given LLM client.
func NewProcessor(client llm.Client) *Processor {
	return &Processor{client: client}
}

// Process runs the mode-specific processing for a task. The returned payload
// has been validated against the mode's result schema; any validation
// failure is a task-scoped error.
func (p *Processor) Process(ctx context.Context, task *db.Task) (json.RawMessage, error) {
	switch task.Mode {
	case db.TaskModeAnalyze:
		return p.analyze(ctx, task)
	case db.TaskModeBuild:
		return p.build(ctx, task)
	default:
		return nil, fmt.Errorf("unknown task mode: %s", task.Mode)
	}
}

// analyze compares the task's resume snapshot against the job description
// and produces a list of proposed edits.
func (p *Processor) analyze(ctx context.Context, task *db.Task) (json.RawMessage, error) {
	if len(task.ResumeData) == 0 {
		return nil, fmt.Errorf("analyze task requires resume data")
	}

	template, err := prompts.Get("analyze.json", "analyze_resume")
	if err != nil {
		return nil, err
	}

	prompt := prompts.Format(template, map[string]string{
		"JobDescription": task.JobDescription,
		"Resume":         string(task.ResumeData),
		"MaxChanges":     strconv.Itoa(defaultMaxChanges),
	})

	raw, err := p.client.GenerateJSON(ctx, prompt, llm.TierStandard)
	if err != nil {
		return nil, fmt.Errorf("analyze processing failed: %w", err)
	}

	if err := schemas.Validate(schemas.AnalyzeResultSchema, raw); err != nil {
		return nil, fmt.Errorf("analyze result rejected: %w", err)
	}

	return json.RawMessage(raw), nil
}

// build drafts a tailored resume from the job description and whatever
// source material the task carries.
func (p *Processor) build(ctx context.Context, task *db.Task) (json.RawMessage, error) {
	template, err := prompts.Get("build.json", "build_resume")
	if err != nil {
		return nil, err
	}

	source := "{}"
	if len(task.ResumeData) > 0 {
		source = string(task.ResumeData)
	}

	prefs := task.Preferences
	if prefs == nil {
		prefs = &db.TaskPreferences{}
	}

	prompt := prompts.Format(template, map[string]string{
		"JobDescription":          task.JobDescription,
		"Source":                  source,
		"MaxExperiences":          strconv.Itoa(orDefault(prefs.MaxExperiences, defaultMaxExperiences)),
		"MaxProjects":             strconv.Itoa(orDefault(prefs.MaxProjects, defaultMaxProjects)),
		"MaxBulletsPerExperience": strconv.Itoa(orDefault(prefs.MaxBulletsPerExperience, defaultMaxBulletsPerExperience)),
		"MaxBulletsPerProject":    strconv.Itoa(orDefault(prefs.MaxBulletsPerProject, defaultMaxBulletsPerProject)),
	})

	raw, err := p.client.GenerateJSON(ctx, prompt, llm.TierAdvanced)
	if err != nil {
		return nil, fmt.Errorf("build processing failed: %w", err)
	}

	if err := schemas.Validate(schemas.BuildResultSchema, raw); err != nil {
		return nil, fmt.Errorf("build result rejected: %w", err)
	}

	return json.RawMessage(raw), nil
}

func orDefault(value, fallback int) int {
	if value > 0 {
		return value
	}
	return fallback
}

// Package processing turns a task's inputs into a mode-specific result
// payload by prompting the LLM and validating its JSON output.
package processing

import (
	"encoding/json"

	"github.com/curahq/cura/internal/resume"
)

// RawChange is a single proposed edit as produced by the LLM. Field names
// are a contract with the prompt templates and the suggestion unpacker;
// the unpacking logic pattern-matches on them literally.
type RawChange struct {
	Section       string   `json:"section"`
	SectionIndex  int      `json:"sectionIndex"`
	Field         string   `json:"field"`
	BulletIndex   *int     `json:"bulletIndex,omitempty"`
	CurrentText   string   `json:"currentText"`
	SuggestedText string   `json:"suggestedText"`
	Reason        string   `json:"reason,omitempty"`
	KeywordsAdded []string `json:"keywordsAdded,omitempty"`
}

// KeywordAnalysis lists job keywords found in and missing from the resume.
type KeywordAnalysis struct {
	Present []string `json:"present,omitempty"`
	Missing []string `json:"missing,omitempty"`
}

// AnalyzeResult is the payload of a completed analyze task.
type AnalyzeResult struct {
	MatchScore      int             `json:"matchScore"`
	OverallFit      string          `json:"overallFit"`
	KeywordAnalysis KeywordAnalysis `json:"keywordAnalysis,omitempty"`
	KeyRequirements []string        `json:"keyRequirements,omitempty"`
	Changes         []RawChange     `json:"changes"`
}

// BuildSelections summarizes what the build mode chose to include.
type BuildSelections struct {
	ExperiencesIncluded int      `json:"experiencesIncluded,omitempty"`
	ProjectsIncluded    int      `json:"projectsIncluded,omitempty"`
	SkillsEmphasized    []string `json:"skillsEmphasized,omitempty"`
}

// BuildResult is the payload of a completed build task.
type BuildResult struct {
	Resume            resume.Document `json:"resume"`
	Selections        BuildSelections `json:"selections,omitempty"`
	Reasoning         string          `json:"reasoning,omitempty"`
	InlineSuggestions []RawChange     `json:"inlineSuggestions,omitempty"`
}

// DecodeAnalyzeResult parses a stored analyze task result.
func DecodeAnalyzeResult(raw json.RawMessage) (*AnalyzeResult, error) {
	var result AnalyzeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DecodeBuildResult parses a stored build task result.
func DecodeBuildResult(raw json.RawMessage) (*BuildResult, error) {
	var result BuildResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

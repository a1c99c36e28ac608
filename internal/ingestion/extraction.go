package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/curahq/cura/internal/llm"
	"github.com/curahq/cura/internal/prompts"
)

// extractedContent is the structured output of the extraction prompt.
type extractedContent struct {
	Company          string   `json:"company"`
	Title            string   `json:"title"`
	Requirements     []string `json:"requirements"`
	Responsibilities []string `json:"responsibilities"`
	NiceToHave       []string `json:"niceToHave"`
}

// Extractor refines heuristic posting metadata with a model pass: it fills
// in title and company and rewrites the description as a structured digest
// of requirements and responsibilities.
type Extractor struct {
	client llm.Client
}

// NewExtractor wraps an LLM client for posting extraction.
func NewExtractor(client llm.Client) *Extractor {
	return &Extractor{client: client}
}

// Refine runs the extraction prompt over the posting's cleaned description
// and merges the result in place. Heuristic values are kept wherever the
// model returns nothing.
func (e *Extractor) Refine(ctx context.Context, posting *JobPosting) error {
	template, err := prompts.Get("extract_job.json", "extract_job")
	if err != nil {
		return fmt.Errorf("failed to load extraction prompt: %w", err)
	}
	prompt := prompts.Format(template, map[string]string{
		"Posting": posting.Description,
	})

	raw, err := e.client.GenerateJSON(ctx, prompt, llm.TierStandard)
	if err != nil {
		return fmt.Errorf("extraction call failed: %w", err)
	}

	var extracted extractedContent
	if err := json.Unmarshal([]byte(raw), &extracted); err != nil {
		return fmt.Errorf("failed to decode extraction output: %w", err)
	}

	if extracted.Title != "" {
		posting.Title = extracted.Title
	}
	if extracted.Company != "" {
		posting.Company = extracted.Company
	}
	if digest := formatDigest(&extracted); digest != "" {
		posting.Description = digest
		posting.WordCount = WordCount(digest)
	}
	return nil
}

// formatDigest renders the structured extraction as readable posting text.
// Returns "" when the model extracted nothing usable.
func formatDigest(extracted *extractedContent) string {
	var sb strings.Builder

	writeSection := func(heading string, items []string) {
		if len(items) == 0 {
			return
		}
		sb.WriteString(heading + ":\n")
		for _, item := range items {
			sb.WriteString("- " + item + "\n")
		}
		sb.WriteString("\n")
	}

	writeSection("Requirements", extracted.Requirements)
	writeSection("Responsibilities", extracted.Responsibilities)
	writeSection("Nice to Have", extracted.NiceToHave)

	return strings.TrimSpace(sb.String())
}

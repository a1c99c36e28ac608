// Package ingestion turns a job posting URL into the cleaned text and
// metadata used to prefill a task: description, job title, and company.
package ingestion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/curahq/cura/internal/fetch"
)

// ErrContentTooShort is returned when a page yields no usable description
// even after the browser fallback.
var ErrContentTooShort = errors.New("page yielded no usable job description")

// JobPosting is the ingestion result offered to the task creation form.
type JobPosting struct {
	URL         string    `json:"url"`
	Platform    string    `json:"platform"`
	Title       string    `json:"title,omitempty"`
	Company     string    `json:"company,omitempty"`
	Description string    `json:"description"`
	Hash        string    `json:"hash"`
	WordCount   int       `json:"word_count"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// Options tunes ingestion behavior.
type Options struct {
	// UseBrowser enables the headless-browser fallback for pages whose
	// static HTML carries too little text.
	UseBrowser bool
	// Extractor, when set, refines title/company/description with an LLM
	// pass. Ingestion still succeeds without it.
	Extractor *Extractor
}

// IngestFromURL fetches a posting page, extracts its main text with
// platform-aware selectors, and cleans it.
func IngestFromURL(ctx context.Context, urlStr string, opts Options) (*JobPosting, error) {
	platform := fetch.DetectPlatform(urlStr)

	result, err := fetch.URL(ctx, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch job posting: %w", err)
	}

	contentSelectors := fetch.ContentSelectors(platform)
	noiseSelectors := fetch.NoiseSelectors(platform)

	text, err := fetch.ExtractMainText(result.HTML, contentSelectors, noiseSelectors...)
	if err != nil {
		return nil, fmt.Errorf("failed to extract posting text: %w", err)
	}
	pageTitle := fetch.PageTitle(result.HTML)

	if opts.UseBrowser && fetch.ShouldUseBrowser(text) {
		log.Printf("[ingest] static content too short for %s, rendering in browser", urlStr)
		browserHTML, browserErr := fetch.BrowserSimple(ctx, urlStr)
		if browserErr != nil {
			log.Printf("[ingest] browser fallback failed: %v", browserErr)
		} else {
			rendered, extractErr := fetch.ExtractMainText(browserHTML, contentSelectors, noiseSelectors...)
			if extractErr == nil && len(rendered) > len(text) {
				text = rendered
				if t := fetch.PageTitle(browserHTML); t != "" {
					pageTitle = t
				}
			}
		}
	}

	cleaned := CleanText(text)
	if cleaned == "" {
		return nil, ErrContentTooShort
	}

	posting := &JobPosting{
		URL:         urlStr,
		Platform:    string(platform),
		Description: cleaned,
		Hash:        contentHash(cleaned),
		WordCount:   WordCount(cleaned),
		FetchedAt:   time.Now().UTC(),
	}
	posting.Title, posting.Company = titleAndCompanyFromPage(pageTitle)

	if opts.Extractor != nil {
		if err := opts.Extractor.Refine(ctx, posting); err != nil {
			// Heuristic metadata is good enough when the model pass fails.
			log.Printf("[ingest] structured extraction failed: %v", err)
		}
	}

	return posting, nil
}

// titleAndCompanyFromPage guesses the job title and company from a page
// title like "Senior Go Engineer - Acme" or "Acme | Senior Go Engineer".
func titleAndCompanyFromPage(pageTitle string) (title, company string) {
	pageTitle = strings.TrimSpace(pageTitle)
	if pageTitle == "" {
		return "", ""
	}

	// Job boards put the role first: "Role - Company", "Role at Company".
	for _, sep := range []string{" - ", " | ", " – ", " at "} {
		if idx := strings.Index(pageTitle, sep); idx > 0 {
			return strings.TrimSpace(pageTitle[:idx]), strings.TrimSpace(pageTitle[idx+len(sep):])
		}
	}
	return pageTitle, ""
}

func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

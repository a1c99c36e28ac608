// Package suggest tracks the review lifecycle of inline resume suggestions
// produced by an analysis task and applies accepted ones to the document.
package suggest

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/curahq/cura/internal/processing"
	"github.com/curahq/cura/internal/resume"
)

// Suggestion statuses.
const (
	StatusPending  = "pending"
	StatusApplied  = "applied"
	StatusRejected = "rejected"
)

// Suggestion types. Only modifications and additions are produced today.
const (
	TypeAdd    = "add"
	TypeModify = "modify"
)

// Suggestion is a single proposed edit, addressable by its location tuple
// (section, sectionIndex, field, bulletIndex).
type Suggestion struct {
	ID             string         `json:"id"`
	Type           string         `json:"type"`
	Section        resume.Section `json:"section"`
	SectionIndex   int            `json:"sectionIndex"`
	Field          string         `json:"field"`
	BulletIndex    *int           `json:"bulletIndex,omitempty"`
	OriginalText   string         `json:"originalText"`
	SuggestedText  string         `json:"suggestedText"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	Reasoning      string         `json:"reasoning"`
	Status         string         `json:"status"`
	HighlightColor string         `json:"highlightColor"`
}

// Session holds one review session: the resume draft being edited and the
// suggestion list unpacked from a completed analysis. Each session is an
// isolated instance; callers create one per document review.
type Session struct {
	mu          sync.Mutex
	doc         *resume.Document
	suggestions []*Suggestion
	resolved    bool
}

// NewSession wraps a resume document for suggestion review. The document is
// mutated in place as suggestions are applied.
func NewSession(doc *resume.Document) *Session {
	return &Session{doc: doc}
}

// Load replaces the session's suggestion list with one built from raw
// analysis changes. Section names are normalized and every suggestion starts
// pending. Loading resets the review-complete latch.
func (s *Session) Load(changes []processing.RawChange) []Suggestion {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.suggestions = make([]*Suggestion, 0, len(changes))
	s.resolved = false
	for _, c := range changes {
		s.suggestions = append(s.suggestions, fromRawChange(c))
	}
	return s.snapshotLocked()
}

func fromRawChange(c processing.RawChange) *Suggestion {
	section := resume.NormalizeSection(c.Section)

	kind := TypeModify
	color := "yellow"
	title := fmt.Sprintf("Update %s", section)
	if strings.TrimSpace(c.CurrentText) == "" {
		kind = TypeAdd
		color = "green"
		title = fmt.Sprintf("Add to %s", section)
	}

	description := c.Reason
	if len(c.KeywordsAdded) > 0 {
		if description != "" {
			description += " "
		}
		description += fmt.Sprintf("(adds keywords: %s)", strings.Join(c.KeywordsAdded, ", "))
	}

	return &Suggestion{
		ID:             uuid.New().String(),
		Type:           kind,
		Section:        section,
		SectionIndex:   c.SectionIndex,
		Field:          c.Field,
		BulletIndex:    c.BulletIndex,
		OriginalText:   c.CurrentText,
		SuggestedText:  c.SuggestedText,
		Title:          title,
		Description:    description,
		Reasoning:      c.Reason,
		Status:         StatusPending,
		HighlightColor: color,
	}
}

// Suggestions returns a copy of the current list.
func (s *Session) Suggestions() []Suggestion {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() []Suggestion {
	out := make([]Suggestion, len(s.suggestions))
	for i, sg := range s.suggestions {
		out[i] = *sg
	}
	return out
}

// Document returns the resume being edited.
func (s *Session) Document() *resume.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc
}

// Apply mutates the document with the suggestion's edit and marks it
// applied. Suggestions that are not pending are left untouched. The document
// write and the status flip happen together under the session lock; a failed
// write leaves the suggestion pending.
func (s *Session) Apply(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sg := s.findLocked(id)
	if sg == nil {
		return fmt.Errorf("suggestion %s not found", id)
	}
	if sg.Status != StatusPending {
		return nil
	}

	if err := s.applyEditLocked(sg); err != nil {
		return err
	}
	sg.Status = StatusApplied
	return nil
}

func (s *Session) applyEditLocked(sg *Suggestion) error {
	if _, isList := s.doc.ListAt(sg.Section, sg.SectionIndex, sg.Field); isList {
		if strings.TrimSpace(sg.OriginalText) == "" {
			if !s.doc.AppendListItem(sg.Section, sg.SectionIndex, sg.Field, sg.SuggestedText) {
				return fmt.Errorf("cannot append to %s[%d].%s", sg.Section, sg.SectionIndex, sg.Field)
			}
			return nil
		}
		if sg.BulletIndex == nil {
			return fmt.Errorf("suggestion for %s[%d].%s is missing a bullet index", sg.Section, sg.SectionIndex, sg.Field)
		}
		if !s.doc.ReplaceListItem(sg.Section, sg.SectionIndex, sg.Field, *sg.BulletIndex, sg.SuggestedText) {
			return fmt.Errorf("no item at %s[%d].%s[%d]", sg.Section, sg.SectionIndex, sg.Field, *sg.BulletIndex)
		}
		return nil
	}

	if !s.doc.SetScalar(sg.Section, sg.SectionIndex, sg.Field, sg.SuggestedText) {
		return fmt.Errorf("no field %q at %s[%d]", sg.Field, sg.Section, sg.SectionIndex)
	}
	return nil
}

// Reject marks a pending suggestion rejected. The document is never touched.
func (s *Session) Reject(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sg := s.findLocked(id)
	if sg == nil {
		return fmt.Errorf("suggestion %s not found", id)
	}
	if sg.Status != StatusPending {
		return nil
	}
	sg.Status = StatusRejected
	return nil
}

// ClearAll discards the suggestion list and the review-complete latch.
func (s *Session) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suggestions = nil
	s.resolved = false
}

func (s *Session) findLocked(id string) *Suggestion {
	for _, sg := range s.suggestions {
		if sg.ID == id {
			return sg
		}
	}
	return nil
}

// MatchBullet finds the pending suggestion annotating a rendered bullet.
// The location tuple must match and the suggestion's original text must
// equal the live text, exactly first, then whitespace-trimmed. Returns nil
// when the bullet renders un-annotated.
func (s *Session) MatchBullet(section resume.Section, sectionIndex int, field string, bulletIndex int, liveText string) *Suggestion {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sg := s.matchLocked(section, sectionIndex, field, bulletIndex, liveText, false); sg != nil {
		copied := *sg
		return &copied
	}
	if sg := s.matchLocked(section, sectionIndex, field, bulletIndex, liveText, true); sg != nil {
		copied := *sg
		return &copied
	}
	return nil
}

func (s *Session) matchLocked(section resume.Section, sectionIndex int, field string, bulletIndex int, liveText string, trimmed bool) *Suggestion {
	for _, sg := range s.suggestions {
		if sg.Status != StatusPending {
			continue
		}
		if sg.Section != section || sg.SectionIndex != sectionIndex || sg.Field != field {
			continue
		}
		if sg.BulletIndex == nil || *sg.BulletIndex != bulletIndex {
			continue
		}
		if trimmed {
			if strings.TrimSpace(sg.OriginalText) == strings.TrimSpace(liveText) {
				return sg
			}
		} else if sg.OriginalText == liveText {
			return sg
		}
	}
	return nil
}

// Unmatched returns pending suggestions whose recorded original text no
// longer matches the live document content at their location. They must be
// surfaced separately rather than dropped; Apply and Reject still work on
// them via their stored location.
func (s *Session) Unmatched() []Suggestion {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Suggestion
	for _, sg := range s.suggestions {
		if sg.Status != StatusPending {
			continue
		}
		if strings.TrimSpace(sg.OriginalText) == "" {
			// Additions target a new slot, not existing text.
			continue
		}
		if !s.locatedLocked(sg) {
			out = append(out, *sg)
		}
	}
	return out
}

func (s *Session) locatedLocked(sg *Suggestion) bool {
	if items, isList := s.doc.ListAt(sg.Section, sg.SectionIndex, sg.Field); isList {
		if sg.BulletIndex == nil || *sg.BulletIndex < 0 || *sg.BulletIndex >= len(items) {
			return false
		}
		live := items[*sg.BulletIndex]
		return live == sg.OriginalText || strings.TrimSpace(live) == strings.TrimSpace(sg.OriginalText)
	}
	live, ok := s.doc.Scalar(sg.Section, sg.SectionIndex, sg.Field)
	if !ok {
		return false
	}
	return live == sg.OriginalText || strings.TrimSpace(live) == strings.TrimSpace(sg.OriginalText)
}

// ReviewComplete reports whether the review session just finished: the list
// is non-empty and no suggestion is still pending. It fires exactly once per
// loaded list so the consumer transitions out of the diff view a single time.
func (s *Session) ReviewComplete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.resolved || len(s.suggestions) == 0 {
		return false
	}
	for _, sg := range s.suggestions {
		if sg.Status == StatusPending {
			return false
		}
	}
	s.resolved = true
	return true
}

// Package resume defines the resume document value object that tailored
// resumes and inline suggestions operate on.
package resume

import "strings"

// Section identifies a top-level region of the resume document.
type Section string

// Canonical section names. Suggestion payloads may carry plural or legacy
// aliases; use NormalizeSection before addressing the document.
const (
	SectionBasics     Section = "basics"
	SectionExperience Section = "experience"
	SectionEducation  Section = "education"
	SectionProject    Section = "project"
	SectionSkills     Section = "skills"
	SectionSummary    Section = "summary"
)

// sectionAliases maps the section spellings produced by the LLM processors
// to canonical names.
var sectionAliases = map[string]Section{
	"basics":      SectionBasics,
	"basic":       SectionBasics,
	"experience":  SectionExperience,
	"experiences": SectionExperience,
	"work":        SectionExperience,
	"education":   SectionEducation,
	"educations":  SectionEducation,
	"project":     SectionProject,
	"projects":    SectionProject,
	"skill":       SectionSkills,
	"skills":      SectionSkills,
	"summary":     SectionSummary,
}

// NormalizeSection collapses known aliases to the canonical section name.
// Unknown names are returned lowercased and untouched so callers can surface
// them instead of silently dropping the suggestion.
func NormalizeSection(name string) Section {
	lower := strings.ToLower(strings.TrimSpace(name))
	if canonical, ok := sectionAliases[lower]; ok {
		return canonical
	}
	return Section(lower)
}

// Basics holds the contact header and professional summary.
type Basics struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	Location string `json:"location,omitempty"`
	Summary  string `json:"summary,omitempty"`
}

// Experience is a single employment entry with its bullet points.
type Experience struct {
	Company   string   `json:"company"`
	Role      string   `json:"role"`
	Location  string   `json:"location,omitempty"`
	StartDate string   `json:"start_date,omitempty"`
	EndDate   string   `json:"end_date,omitempty"`
	Bullets   []string `json:"bullets"`
}

// Education is a single education entry.
type Education struct {
	School    string `json:"school"`
	Degree    string `json:"degree,omitempty"`
	Field     string `json:"field,omitempty"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
}

// SkillCategory groups related skills under a display name.
type SkillCategory struct {
	Name   string   `json:"name"`
	Skills []string `json:"skills"`
}

// Project is a portfolio project entry with its bullet points.
type Project struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	URL         string   `json:"url,omitempty"`
	Bullets     []string `json:"bullets"`
}

// Document is the aggregate resume value object. Every section addressed by
// an inline suggestion is an ordered, index-addressable list, and bullet and
// skill lists are ordered lists of strings.
type Document struct {
	Basics      Basics          `json:"basics"`
	Experiences []Experience    `json:"experiences"`
	Education   []Education     `json:"education"`
	Skills      []SkillCategory `json:"skills"`
	Projects    []Project       `json:"projects"`
}

// Clone returns a deep copy of the document. Review sessions mutate a copy so
// a dismissed review never leaks partial edits into the stored resume.
func (d *Document) Clone() *Document {
	out := &Document{
		Basics:      d.Basics,
		Experiences: make([]Experience, len(d.Experiences)),
		Education:   make([]Education, len(d.Education)),
		Skills:      make([]SkillCategory, len(d.Skills)),
		Projects:    make([]Project, len(d.Projects)),
	}
	for i, exp := range d.Experiences {
		out.Experiences[i] = exp
		out.Experiences[i].Bullets = append([]string(nil), exp.Bullets...)
	}
	copy(out.Education, d.Education)
	for i, cat := range d.Skills {
		out.Skills[i] = cat
		out.Skills[i].Skills = append([]string(nil), cat.Skills...)
	}
	for i, proj := range d.Projects {
		out.Projects[i] = proj
		out.Projects[i].Bullets = append([]string(nil), proj.Bullets...)
	}
	return out
}

// ListAt returns the string list addressed by (section, sectionIndex, field),
// or false when the location does not resolve to a list in this document.
func (d *Document) ListAt(section Section, sectionIndex int, field string) ([]string, bool) {
	switch section {
	case SectionExperience:
		if sectionIndex < 0 || sectionIndex >= len(d.Experiences) {
			return nil, false
		}
		if field == "bullets" || field == "" {
			return d.Experiences[sectionIndex].Bullets, true
		}
	case SectionProject:
		if sectionIndex < 0 || sectionIndex >= len(d.Projects) {
			return nil, false
		}
		if field == "bullets" || field == "" {
			return d.Projects[sectionIndex].Bullets, true
		}
	case SectionSkills:
		if sectionIndex < 0 || sectionIndex >= len(d.Skills) {
			return nil, false
		}
		if field == "skills" || field == "" {
			return d.Skills[sectionIndex].Skills, true
		}
	}
	return nil, false
}

// ReplaceListItem overwrites one element of the list at the given location.
func (d *Document) ReplaceListItem(section Section, sectionIndex int, field string, itemIndex int, text string) bool {
	list, ok := d.ListAt(section, sectionIndex, field)
	if !ok || itemIndex < 0 || itemIndex >= len(list) {
		return false
	}
	list[itemIndex] = text
	return true
}

// AppendListItem grows the list at the given location by one element.
func (d *Document) AppendListItem(section Section, sectionIndex int, field string, text string) bool {
	switch section {
	case SectionExperience:
		if sectionIndex < 0 || sectionIndex >= len(d.Experiences) {
			return false
		}
		d.Experiences[sectionIndex].Bullets = append(d.Experiences[sectionIndex].Bullets, text)
	case SectionProject:
		if sectionIndex < 0 || sectionIndex >= len(d.Projects) {
			return false
		}
		d.Projects[sectionIndex].Bullets = append(d.Projects[sectionIndex].Bullets, text)
	case SectionSkills:
		if sectionIndex < 0 || sectionIndex >= len(d.Skills) {
			return false
		}
		d.Skills[sectionIndex].Skills = append(d.Skills[sectionIndex].Skills, text)
	default:
		return false
	}
	return true
}

// Scalar returns the scalar field addressed by (section, sectionIndex, field),
// or false when the location does not resolve to a scalar.
func (d *Document) Scalar(section Section, sectionIndex int, field string) (string, bool) {
	switch section {
	case SectionSummary:
		return d.Basics.Summary, true
	case SectionBasics:
		switch field {
		case "name":
			return d.Basics.Name, true
		case "email":
			return d.Basics.Email, true
		case "phone":
			return d.Basics.Phone, true
		case "location":
			return d.Basics.Location, true
		case "summary":
			return d.Basics.Summary, true
		}
	case SectionExperience:
		if sectionIndex < 0 || sectionIndex >= len(d.Experiences) {
			return "", false
		}
		switch field {
		case "role":
			return d.Experiences[sectionIndex].Role, true
		case "company":
			return d.Experiences[sectionIndex].Company, true
		}
	case SectionEducation:
		if sectionIndex < 0 || sectionIndex >= len(d.Education) {
			return "", false
		}
		switch field {
		case "school":
			return d.Education[sectionIndex].School, true
		case "degree":
			return d.Education[sectionIndex].Degree, true
		case "field":
			return d.Education[sectionIndex].Field, true
		}
	case SectionProject:
		if sectionIndex < 0 || sectionIndex >= len(d.Projects) {
			return "", false
		}
		switch field {
		case "name":
			return d.Projects[sectionIndex].Name, true
		case "description":
			return d.Projects[sectionIndex].Description, true
		}
	case SectionSkills:
		if sectionIndex < 0 || sectionIndex >= len(d.Skills) {
			return "", false
		}
		if field == "name" {
			return d.Skills[sectionIndex].Name, true
		}
	}
	return "", false
}

// SetScalar overwrites the scalar field addressed by (section, sectionIndex, field).
func (d *Document) SetScalar(section Section, sectionIndex int, field string, text string) bool {
	switch section {
	case SectionSummary:
		d.Basics.Summary = text
		return true
	case SectionBasics:
		switch field {
		case "name":
			d.Basics.Name = text
		case "email":
			d.Basics.Email = text
		case "phone":
			d.Basics.Phone = text
		case "location":
			d.Basics.Location = text
		case "summary":
			d.Basics.Summary = text
		default:
			return false
		}
		return true
	case SectionExperience:
		if sectionIndex < 0 || sectionIndex >= len(d.Experiences) {
			return false
		}
		switch field {
		case "role":
			d.Experiences[sectionIndex].Role = text
		case "company":
			d.Experiences[sectionIndex].Company = text
		default:
			return false
		}
		return true
	case SectionEducation:
		if sectionIndex < 0 || sectionIndex >= len(d.Education) {
			return false
		}
		switch field {
		case "school":
			d.Education[sectionIndex].School = text
		case "degree":
			d.Education[sectionIndex].Degree = text
		case "field":
			d.Education[sectionIndex].Field = text
		default:
			return false
		}
		return true
	case SectionProject:
		if sectionIndex < 0 || sectionIndex >= len(d.Projects) {
			return false
		}
		switch field {
		case "name":
			d.Projects[sectionIndex].Name = text
		case "description":
			d.Projects[sectionIndex].Description = text
		default:
			return false
		}
		return true
	case SectionSkills:
		if sectionIndex < 0 || sectionIndex >= len(d.Skills) {
			return false
		}
		if field == "name" {
			d.Skills[sectionIndex].Name = text
			return true
		}
	}
	return false
}

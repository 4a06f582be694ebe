// Package rubric defines the fixed evaluation form used for script reviews:
// a title response plus nine rated criteria, each with free-text notes.
//
// The same schema backs the whole-script review row, the per-page rubric
// rows, the admin viewer and the PDF export.
package rubric

import (
	"fmt"
	"sort"
	"strings"
)

type Criterion struct {
	Key       string `json:"key"`
	Label     string `json:"label"`
	MaxRating int    `json:"maxRating"`
}

// Criteria is the display and feedback order.
var Criteria = []Criterion{
	{Key: "plot", Label: "Plot", MaxRating: 5},
	{Key: "characters", Label: "Characters", MaxRating: 5},
	{Key: "concept_originality", Label: "Concept/Originality", MaxRating: 5},
	{Key: "structure", Label: "Structure", MaxRating: 5},
	{Key: "dialogue", Label: "Dialogue", MaxRating: 5},
	{Key: "format_pacing", Label: "Format/Pacing", MaxRating: 5},
	{Key: "theme", Label: "Theme/Tone", MaxRating: 5},
	{Key: "catharsis", Label: "Catharsis", MaxRating: 5},
	{Key: "production_budget", Label: "Production Budget", MaxRating: 6},
}

const (
	TitleKey   = "title_response"
	TitleLabel = "Title"
)

// FieldCount is the number of persisted rubric fields.
var FieldCount = 1 + 2*len(Criteria)

func Lookup(key string) (Criterion, bool) {
	for _, c := range Criteria {
		if c.Key == key {
			return c, true
		}
	}
	return Criterion{}, false
}

type Score struct {
	Rating *int   `json:"rating"`
	Notes  string `json:"notes"`
}

func (s Score) empty() bool {
	return s.Rating == nil && strings.TrimSpace(s.Notes) == ""
}

// Fields is one filled-in rubric. Scores are keyed by criterion key.
type Fields struct {
	TitleResponse string           `json:"titleResponse"`
	Scores        map[string]Score `json:"scores"`
}

func (f Fields) Score(key string) Score {
	if f.Scores == nil {
		return Score{}
	}
	return f.Scores[key]
}

// Normalize trims free text and drops scores that carry nothing.
func (f Fields) Normalize() Fields {
	out := Fields{
		TitleResponse: strings.TrimSpace(f.TitleResponse),
		Scores:        make(map[string]Score, len(f.Scores)),
	}
	for key, score := range f.Scores {
		score.Notes = strings.TrimSpace(score.Notes)
		if score.empty() {
			continue
		}
		out.Scores[key] = score
	}
	return out
}

func (f Fields) IsEmpty() bool {
	if strings.TrimSpace(f.TitleResponse) != "" {
		return false
	}
	for _, score := range f.Scores {
		if !score.empty() {
			return false
		}
	}
	return true
}

// Validate rejects unknown criteria and out-of-range ratings.
func (f Fields) Validate() error {
	keys := make([]string, 0, len(f.Scores))
	for key := range f.Scores {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		criterion, ok := Lookup(key)
		if !ok {
			return fmt.Errorf("unknown rubric criterion %q", key)
		}
		rating := f.Scores[key].Rating
		if rating == nil {
			continue
		}
		if *rating < 1 || *rating > criterion.MaxRating {
			return fmt.Errorf("%s rating must be between 1 and %d", criterion.Label, criterion.MaxRating)
		}
	}
	return nil
}

// MissingRequired lists the required fields that are empty, using column names.
func (f Fields) MissingRequired() []string {
	missing := []string{}
	if strings.TrimSpace(f.TitleResponse) == "" {
		missing = append(missing, TitleKey)
	}
	if f.Score("plot").Rating == nil {
		missing = append(missing, "plot_rating")
	}
	if f.Score("characters").Rating == nil {
		missing = append(missing, "characters_rating")
	}
	return missing
}

// Feedback joins the non-empty criterion notes as "<Label>: <notes>" blocks
// separated by a blank line, in criteria order.
func (f Fields) Feedback() string {
	parts := make([]string, 0, len(Criteria))
	for _, c := range Criteria {
		notes := strings.TrimSpace(f.Score(c.Key).Notes)
		if notes == "" {
			continue
		}
		parts = append(parts, c.Label+": "+notes)
	}
	return strings.Join(parts, "\n\n")
}

// Section is one rendered line of a rubric: the title response (no rating)
// or a criterion.
type Section struct {
	Key       string `json:"key"`
	Label     string `json:"label"`
	Rating    *int   `json:"rating,omitempty"`
	MaxRating int    `json:"maxRating,omitempty"`
	Text      string `json:"text"`
}

func (f Fields) Sections() []Section {
	sections := make([]Section, 0, len(Criteria)+1)
	sections = append(sections, Section{Key: TitleKey, Label: TitleLabel, Text: f.TitleResponse})
	for _, c := range Criteria {
		score := f.Score(c.Key)
		sections = append(sections, Section{
			Key:       c.Key,
			Label:     c.Label,
			Rating:    score.Rating,
			MaxRating: c.MaxRating,
			Text:      score.Notes,
		})
	}
	return sections
}

// Granularity says whether a review carries one rubric or one per PDF page.
type Granularity string

const (
	WholeScript Granularity = "whole_script"
	PerPage     Granularity = "per_page"
)

func ParseGranularity(raw string) (Granularity, error) {
	switch Granularity(strings.ToLower(strings.TrimSpace(raw))) {
	case WholeScript, "":
		return WholeScript, nil
	case PerPage:
		return PerPage, nil
	}
	return "", fmt.Errorf("unknown rubric granularity %q", raw)
}

package rubric

import (
	"fmt"
	"strings"
)

// Row is the column mapping shared by script_reviews and script_page_rubrics.
// It is embedded in those models so sqlx scans the rubric columns directly.
type Row struct {
	TitleResponse          *string `db:"title_response"`
	PlotRating             *int    `db:"plot_rating"`
	PlotNotes              *string `db:"plot_notes"`
	CharactersRating       *int    `db:"characters_rating"`
	CharactersNotes        *string `db:"characters_notes"`
	ConceptOriginalityRate *int    `db:"concept_originality_rating"`
	ConceptOriginalityNote *string `db:"concept_originality_notes"`
	StructureRating        *int    `db:"structure_rating"`
	StructureNotes         *string `db:"structure_notes"`
	DialogueRating         *int    `db:"dialogue_rating"`
	DialogueNotes          *string `db:"dialogue_notes"`
	FormatPacingRating     *int    `db:"format_pacing_rating"`
	FormatPacingNotes      *string `db:"format_pacing_notes"`
	ThemeRating            *int    `db:"theme_rating"`
	ThemeNotes             *string `db:"theme_notes"`
	CatharsisRating        *int    `db:"catharsis_rating"`
	CatharsisNotes         *string `db:"catharsis_notes"`
	ProductionBudgetRating *int    `db:"production_budget_rating"`
	ProductionBudgetNotes  *string `db:"production_budget_notes"`
}

type slot struct {
	key    string
	rating **int
	notes  **string
}

func (r *Row) slots() []slot {
	return []slot{
		{"plot", &r.PlotRating, &r.PlotNotes},
		{"characters", &r.CharactersRating, &r.CharactersNotes},
		{"concept_originality", &r.ConceptOriginalityRate, &r.ConceptOriginalityNote},
		{"structure", &r.StructureRating, &r.StructureNotes},
		{"dialogue", &r.DialogueRating, &r.DialogueNotes},
		{"format_pacing", &r.FormatPacingRating, &r.FormatPacingNotes},
		{"theme", &r.ThemeRating, &r.ThemeNotes},
		{"catharsis", &r.CatharsisRating, &r.CatharsisNotes},
		{"production_budget", &r.ProductionBudgetRating, &r.ProductionBudgetNotes},
	}
}

func (r Row) Fields() Fields {
	f := Fields{TitleResponse: deref(r.TitleResponse), Scores: map[string]Score{}}
	for _, s := range r.slots() {
		score := Score{Rating: *s.rating, Notes: deref(*s.notes)}
		if score.empty() {
			continue
		}
		f.Scores[s.key] = score
	}
	return f
}

func RowFromFields(f Fields) Row {
	f = f.Normalize()
	var r Row
	r.TitleResponse = nilIfEmpty(f.TitleResponse)
	for _, s := range r.slots() {
		score := f.Score(s.key)
		*s.rating = score.Rating
		*s.notes = nilIfEmpty(score.Notes)
	}
	return r
}

// Columns returns the rubric column names in persistence order.
func Columns() []string {
	cols := make([]string, 0, FieldCount)
	cols = append(cols, TitleKey)
	for _, c := range Criteria {
		cols = append(cols, c.Key+"_rating", c.Key+"_notes")
	}
	return cols
}

// Values returns the row's values in the same order as Columns.
func (r Row) Values() []interface{} {
	values := make([]interface{}, 0, FieldCount)
	values = append(values, r.TitleResponse)
	for _, s := range r.slots() {
		values = append(values, *s.rating, *s.notes)
	}
	return values
}

// Assignments renders "col = $n, ..." for the rubric columns starting at
// placeholder index start.
func Assignments(start int) string {
	cols := Columns()
	parts := make([]string, len(cols))
	for i, col := range cols {
		parts[i] = fmt.Sprintf("%s = $%d", col, start+i)
	}
	return strings.Join(parts, ", ")
}

// TypedPlaceholders renders "$start::text, $start+1::smallint, ..." for the
// rubric columns. INSERT ... SELECT needs the casts.
func TypedPlaceholders(start int) string {
	cols := Columns()
	parts := make([]string, len(cols))
	for i, col := range cols {
		kind := "text"
		if strings.HasSuffix(col, "_rating") {
			kind = "smallint"
		}
		parts[i] = fmt.Sprintf("$%d::%s", start+i, kind)
	}
	return strings.Join(parts, ", ")
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func nilIfEmpty(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}

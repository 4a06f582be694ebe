package services

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"scriptportal-backend-go/internal/models"
	"scriptportal-backend-go/internal/rubric"
)

type PageRubricView struct {
	PageNumber int              `json:"pageNumber"`
	Sections   []rubric.Section `json:"sections"`
}

// ReviewDetail is a review as shown to admins and rendered to PDF.
type ReviewDetail struct {
	Review         ReviewView        `json:"review"`
	Script         models.Script     `json:"script"`
	ContractorName string            `json:"contractorName"`
	Sections       []rubric.Section  `json:"sections"`
	Notes          []models.PageNote `json:"notes"`
	PageRubrics    []PageRubricView  `json:"pageRubrics"`
}

func LoadReviewDetail(ctx context.Context, db *sqlx.DB, reviewID string) (ReviewDetail, error) {
	review, err := getReview(ctx, db, reviewID)
	if err != nil {
		return ReviewDetail{}, err
	}
	return buildReviewDetail(ctx, db, review)
}

func buildReviewDetail(ctx context.Context, db *sqlx.DB, review models.Review) (ReviewDetail, error) {
	script, err := GetScript(ctx, db, review.ScriptID)
	if err != nil {
		return ReviewDetail{}, err
	}
	var name string
	err = db.GetContext(ctx, &name, `SELECT name FROM judges WHERE id = $1`, review.JudgeID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return ReviewDetail{}, err
	}
	notes, err := ListPageNotes(ctx, db, review.ID)
	if err != nil {
		return ReviewDetail{}, err
	}
	pages := []models.PageRubric{}
	if err := db.SelectContext(ctx, &pages, "SELECT "+pageRubricColumns+"\nFROM script_page_rubrics\nWHERE script_review_id = $1\nORDER BY page_number", review.ID); err != nil {
		return ReviewDetail{}, err
	}
	pageViews := make([]PageRubricView, 0, len(pages))
	for _, page := range pages {
		pageViews = append(pageViews, PageRubricView{PageNumber: page.PageNumber, Sections: page.Row.Fields().Sections()})
	}
	view := NewReviewView(review)
	return ReviewDetail{
		Review:         view,
		Script:         script,
		ContractorName: name,
		Sections:       view.Rubric.Sections(),
		Notes:          notes,
		PageRubrics:    pageViews,
	}, nil
}

// ReviewsForScript returns every review written for a script, newest first.
func ReviewsForScript(ctx context.Context, db *sqlx.DB, scriptID string) ([]ReviewDetail, error) {
	if _, err := GetScript(ctx, db, scriptID); err != nil {
		return nil, err
	}
	reviews := []models.Review{}
	if err := db.SelectContext(ctx, &reviews, "SELECT "+reviewColumns+"\nFROM script_reviews\nWHERE script_id = $1\nORDER BY created_at DESC", scriptID); err != nil {
		return nil, err
	}
	items := make([]ReviewDetail, 0, len(reviews))
	for _, review := range reviews {
		detail, err := buildReviewDetail(ctx, db, review)
		if err != nil {
			return nil, err
		}
		items = append(items, detail)
	}
	return items, nil
}

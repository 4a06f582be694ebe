package services

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"scriptportal-backend-go/internal/autosave"
	"scriptportal-backend-go/internal/models"
	"scriptportal-backend-go/internal/rubric"
)

// RecommendationReviewed is stored on every submitted review. The legacy
// approve/decline verdicts are no longer produced.
const RecommendationReviewed = "reviewed"

var ErrIncompleteRubric = ErrBadRequest("Please complete all required fields")

// ErrScriptNotHeld rejects a submission from a contractor the script has
// moved away from.
var ErrScriptNotHeld = ErrConflict("This script is no longer assigned to you for review")

var reviewColumns = `id, script_id, judge_id, status, recommendation, feedback, overall_notes,
       created_at, updated_at, submitted_at, ` + strings.Join(rubric.Columns(), ", ")

var pageRubricColumns = `id, script_review_id, page_number, updated_at, ` + strings.Join(rubric.Columns(), ", ")

// Reviews owns the contractor workspace: opening reviews, debounced rubric
// saves, page notes and submission.
type Reviews struct {
	DB      *sqlx.DB
	Queue   *autosave.Queue
	Storage Storage
	Now     func() time.Time
}

func (r *Reviews) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

func reviewKey(reviewID string) string {
	return "review:" + reviewID
}

func pageKeyPrefix(reviewID string) string {
	return "page:" + reviewID + ":"
}

func pageKey(reviewID string, page int) string {
	return pageKeyPrefix(reviewID) + strconv.Itoa(page)
}

type ReviewView struct {
	ID             string              `json:"id"`
	ScriptID       string              `json:"scriptId"`
	JudgeID        string              `json:"judgeId"`
	Status         models.ReviewStatus `json:"status"`
	Recommendation *string             `json:"recommendation,omitempty"`
	Feedback       *string             `json:"feedback,omitempty"`
	OverallNotes   *string             `json:"overallNotes,omitempty"`
	Rubric         rubric.Fields       `json:"rubric"`
	CreatedAt      time.Time           `json:"createdAt"`
	UpdatedAt      time.Time           `json:"updatedAt"`
	SubmittedAt    *time.Time          `json:"submittedAt,omitempty"`
}

func NewReviewView(review models.Review) ReviewView {
	return ReviewView{
		ID:             review.ID,
		ScriptID:       review.ScriptID,
		JudgeID:        review.JudgeID,
		Status:         review.Status,
		Recommendation: review.Recommendation,
		Feedback:       review.Feedback,
		OverallNotes:   review.OverallNotes,
		Rubric:         review.Row.Fields(),
		CreatedAt:      review.CreatedAt,
		UpdatedAt:      review.UpdatedAt,
		SubmittedAt:    review.SubmittedAt,
	}
}

type Workspace struct {
	Script      models.Script      `json:"script"`
	Review      ReviewView         `json:"review"`
	Granularity rubric.Granularity `json:"granularity"`
	FileURL     string             `json:"fileUrl"`
	Notes       []models.PageNote  `json:"notes"`
	RubricPages []int              `json:"rubricPages"`
	Criteria    []rubric.Criterion `json:"criteria"`
}

// OpenWorkspace returns the contractor's review for a script, creating it on
// first open.
func (r *Reviews) OpenWorkspace(ctx context.Context, judgeID, scriptID string) (Workspace, error) {
	script, err := GetScript(ctx, r.DB, scriptID)
	if err != nil {
		return Workspace{}, err
	}
	if script.AssignedJudgeID == nil || *script.AssignedJudgeID != judgeID {
		return Workspace{}, ErrForbidden("This script is not assigned to you")
	}
	now := r.now()
	_, err = r.DB.ExecContext(ctx, `
INSERT INTO script_reviews (id, script_id, judge_id, status, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$5)
ON CONFLICT (script_id, judge_id) DO NOTHING
`, uuid.NewString(), scriptID, judgeID, models.ReviewInProgress, now)
	if err != nil {
		return Workspace{}, WrapError(err, "create review")
	}
	var review models.Review
	if err := r.DB.GetContext(ctx, &review, "SELECT "+reviewColumns+"\nFROM script_reviews\nWHERE script_id = $1 AND judge_id = $2", scriptID, judgeID); err != nil {
		return Workspace{}, WrapError(err, "load review")
	}
	if r.Queue != nil {
		key := reviewKey(review.ID)
		stale := r.Queue.Active(key)
		if err := r.Queue.Flush(ctx, key); err != nil {
			return Workspace{}, WrapError(err, "flush rubric")
		}
		if stale {
			if review, err = getReview(ctx, r.DB, review.ID); err != nil {
				return Workspace{}, err
			}
		}
	}
	notes, err := ListPageNotes(ctx, r.DB, review.ID)
	if err != nil {
		return Workspace{}, err
	}
	pages := []int{}
	if script.Granularity == rubric.PerPage {
		if err := r.DB.SelectContext(ctx, &pages, `SELECT page_number FROM script_page_rubrics WHERE script_review_id = $1 ORDER BY page_number`, review.ID); err != nil {
			return Workspace{}, err
		}
	}
	fileURL, err := r.Storage.SignedURL(BucketScripts, script.FileKey)
	if err != nil {
		return Workspace{}, WrapError(err, "sign file url")
	}
	return Workspace{
		Script:      script,
		Review:      NewReviewView(review),
		Granularity: script.Granularity,
		FileURL:     fileURL,
		Notes:       notes,
		RubricPages: pages,
		Criteria:    rubric.Criteria,
	}, nil
}

func getReview(ctx context.Context, db *sqlx.DB, reviewID string) (models.Review, error) {
	var review models.Review
	err := db.GetContext(ctx, &review, "SELECT "+reviewColumns+"\nFROM script_reviews\nWHERE id = $1", reviewID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Review{}, ErrNotFound("Review not found")
	}
	return review, err
}

func (r *Reviews) ownedReview(ctx context.Context, judgeID, reviewID string) (models.Review, error) {
	review, err := getReview(ctx, r.DB, reviewID)
	if err != nil {
		return models.Review{}, err
	}
	if review.JudgeID != judgeID {
		return models.Review{}, ErrForbidden("This review belongs to another contractor")
	}
	return review, nil
}

func (r *Reviews) editableReview(ctx context.Context, judgeID, reviewID string) (models.Review, error) {
	review, err := r.ownedReview(ctx, judgeID, reviewID)
	if err != nil {
		return models.Review{}, err
	}
	if review.Status == models.ReviewSubmitted {
		return models.Review{}, ErrConflict("Review has already been submitted")
	}
	return review, nil
}

// SaveRubric queues a debounced write of the whole-script rubric. An empty
// rubric is ignored; it reports whether a write was queued.
func (r *Reviews) SaveRubric(ctx context.Context, judgeID, reviewID string, fields rubric.Fields) (bool, error) {
	if err := fields.Validate(); err != nil {
		return false, ErrBadRequest(err.Error())
	}
	review, err := r.editableReview(ctx, judgeID, reviewID)
	if err != nil {
		return false, err
	}
	if fields.IsEmpty() {
		return false, nil
	}
	row := rubric.RowFromFields(fields)
	r.Queue.Schedule(reviewKey(review.ID), func(ctx context.Context) error {
		return writeReviewRubric(ctx, r.DB, review.ID, row, r.now())
	})
	return true, nil
}

func writeReviewRubric(ctx context.Context, db *sqlx.DB, reviewID string, row rubric.Row, now time.Time) error {
	args := append([]interface{}{reviewID}, row.Values()...)
	args = append(args, now)
	_, err := db.ExecContext(ctx, "UPDATE script_reviews SET "+rubric.Assignments(2)+", updated_at = $"+
		strconv.Itoa(rubric.FieldCount+2)+" WHERE id = $1 AND status = 'in_progress'", args...)
	return err
}

func (r *Reviews) perPageReview(ctx context.Context, judgeID, reviewID string, page int, editable bool) (models.Review, error) {
	if page < 1 {
		return models.Review{}, ErrBadRequest("Page number must be positive")
	}
	var (
		review models.Review
		err    error
	)
	if editable {
		review, err = r.editableReview(ctx, judgeID, reviewID)
	} else {
		review, err = r.ownedReview(ctx, judgeID, reviewID)
	}
	if err != nil {
		return models.Review{}, err
	}
	var granularity string
	if err := r.DB.GetContext(ctx, &granularity, `SELECT granularity FROM scripts WHERE id = $1`, review.ScriptID); err != nil {
		return models.Review{}, err
	}
	if rubric.Granularity(granularity) != rubric.PerPage {
		return models.Review{}, ErrBadRequest("This review does not use page-by-page rubrics")
	}
	return review, nil
}

// SavePageRubric queues a debounced upsert of one page's rubric.
func (r *Reviews) SavePageRubric(ctx context.Context, judgeID, reviewID string, page int, fields rubric.Fields) (bool, error) {
	if err := fields.Validate(); err != nil {
		return false, ErrBadRequest(err.Error())
	}
	review, err := r.perPageReview(ctx, judgeID, reviewID, page, true)
	if err != nil {
		return false, err
	}
	if fields.IsEmpty() {
		return false, nil
	}
	row := rubric.RowFromFields(fields)
	r.Queue.Schedule(pageKey(review.ID, page), func(ctx context.Context) error {
		return writePageRubric(ctx, r.DB, review.ID, page, row, r.now())
	})
	return true, nil
}

// writePageRubric upserts one page's rubric. Nothing is written once the
// review has been submitted.
func writePageRubric(ctx context.Context, db *sqlx.DB, reviewID string, page int, row rubric.Row, now time.Time) error {
	cols := rubric.Columns()
	updates := make([]string, len(cols))
	for i, col := range cols {
		updates[i] = col + " = EXCLUDED." + col
	}
	query := "INSERT INTO script_page_rubrics (id, script_review_id, page_number, " + strings.Join(cols, ", ") +
		", updated_at)\nSELECT $1::uuid, $2::uuid, $3::int, " + rubric.TypedPlaceholders(4) + ", $" + strconv.Itoa(rubric.FieldCount+4) + "::timestamptz" +
		"\nWHERE EXISTS (SELECT 1 FROM script_reviews WHERE id = $2::uuid AND status = 'in_progress')" +
		"\nON CONFLICT (script_review_id, page_number) DO UPDATE SET " + strings.Join(updates, ", ") +
		", updated_at = EXCLUDED.updated_at"
	args := append([]interface{}{uuid.NewString(), reviewID, page}, row.Values()...)
	args = append(args, now)
	_, err := db.ExecContext(ctx, query, args...)
	return err
}

// GetPageRubric returns a page's stored rubric, or an empty one.
func (r *Reviews) GetPageRubric(ctx context.Context, judgeID, reviewID string, page int) (rubric.Fields, error) {
	review, err := r.perPageReview(ctx, judgeID, reviewID, page, false)
	if err != nil {
		return rubric.Fields{}, err
	}
	if err := r.Queue.Flush(ctx, pageKey(review.ID, page)); err != nil {
		return rubric.Fields{}, WrapError(err, "flush page rubric")
	}
	var stored models.PageRubric
	err = r.DB.GetContext(ctx, &stored, "SELECT "+pageRubricColumns+"\nFROM script_page_rubrics\nWHERE script_review_id = $1 AND page_number = $2", review.ID, page)
	if errors.Is(err, sql.ErrNoRows) {
		return rubric.Fields{Scores: map[string]rubric.Score{}}, nil
	}
	if err != nil {
		return rubric.Fields{}, err
	}
	return stored.Row.Fields(), nil
}

// SavePageNote upserts a page note; blank content removes it.
func (r *Reviews) SavePageNote(ctx context.Context, judgeID, reviewID string, page int, content string) (*models.PageNote, error) {
	if page < 1 {
		return nil, ErrBadRequest("Page number must be positive")
	}
	review, err := r.editableReview(ctx, judgeID, reviewID)
	if err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		_, err := r.DB.ExecContext(ctx, `DELETE FROM script_page_notes WHERE script_review_id = $1 AND page_number = $2`, review.ID, page)
		return nil, err
	}
	note := models.PageNote{
		ID:             uuid.NewString(),
		ScriptReviewID: review.ID,
		PageNumber:     page,
		NoteContent:    content,
		UpdatedAt:      r.now(),
	}
	err = r.DB.GetContext(ctx, &note.ID, `
INSERT INTO script_page_notes (id, script_review_id, page_number, note_content, updated_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (script_review_id, page_number)
DO UPDATE SET note_content = EXCLUDED.note_content, updated_at = EXCLUDED.updated_at
RETURNING id
`, note.ID, note.ScriptReviewID, note.PageNumber, note.NoteContent, note.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &note, nil
}

func (r *Reviews) ListNotes(ctx context.Context, judgeID, reviewID string) ([]models.PageNote, error) {
	review, err := r.ownedReview(ctx, judgeID, reviewID)
	if err != nil {
		return nil, err
	}
	return ListPageNotes(ctx, r.DB, review.ID)
}

func ListPageNotes(ctx context.Context, db *sqlx.DB, reviewID string) ([]models.PageNote, error) {
	notes := []models.PageNote{}
	err := db.SelectContext(ctx, &notes, `
SELECT id, script_review_id, page_number, note_content, updated_at
FROM script_page_notes
WHERE script_review_id = $1
ORDER BY page_number
`, reviewID)
	return notes, err
}

// SubmitReview flushes pending saves, checks the required fields and marks
// the review submitted and its script reviewed. Nothing is written when a
// required field is missing.
func (r *Reviews) SubmitReview(ctx context.Context, judgeID, reviewID, overallNotes string) (models.Review, error) {
	review, err := r.editableReview(ctx, judgeID, reviewID)
	if err != nil {
		return models.Review{}, err
	}
	script, err := GetScript(ctx, r.DB, review.ScriptID)
	if err != nil {
		return models.Review{}, err
	}
	if script.AssignedJudgeID == nil || *script.AssignedJudgeID != judgeID || !models.CanTransition(script.Status, models.ScriptReviewed) {
		return models.Review{}, ErrScriptNotHeld
	}
	if err := r.Queue.Flush(ctx, reviewKey(review.ID)); err != nil {
		return models.Review{}, WrapError(err, "flush rubric")
	}
	if err := r.Queue.FlushPrefix(ctx, pageKeyPrefix(review.ID)); err != nil {
		return models.Review{}, WrapError(err, "flush page rubrics")
	}
	if review, err = getReview(ctx, r.DB, review.ID); err != nil {
		return models.Review{}, err
	}
	fields := review.Row.Fields()
	if missing := fields.MissingRequired(); len(missing) > 0 {
		return models.Review{}, ErrIncompleteRubric
	}
	feedback := nullIfBlank(fields.Feedback())
	notes := nullIfBlank(strings.TrimSpace(overallNotes))

	_, err = r.DB.ExecContext(ctx, `SELECT submit_script_review($1, $2, $3, $4)`, review.ID, RecommendationReviewed, feedback, notes)
	if err != nil {
		log.Printf("reviews: submit_script_review failed for %s, updating directly: %v", review.ID, err)
		if err := r.submitDirect(ctx, review, feedback, notes); err != nil {
			return models.Review{}, err
		}
	}
	_, err = r.DB.ExecContext(ctx, `
UPDATE judges
SET total_scripts_reviewed = total_scripts_reviewed + 1,
    current_workload = GREATEST(current_workload - 1, 0)
WHERE id = $1
`, judgeID)
	if err != nil {
		log.Printf("reviews: update counters for %s: %v", judgeID, err)
	}
	LogActivity(ctx, r.DB, Actor{Type: ActorContractor, ID: judgeID}, "review_submitted", "script", review.ScriptID, map[string]interface{}{
		"reviewId": review.ID,
	})
	return getReview(ctx, r.DB, review.ID)
}

// submitDirect does the procedure's work in one statement. The review only
// flips when its script is still assigned to the same contractor.
func (r *Reviews) submitDirect(ctx context.Context, review models.Review, feedback, notes *string) error {
	now := r.now()
	res, err := r.DB.ExecContext(ctx, `
WITH submitted AS (
  UPDATE script_reviews
  SET status = 'submitted', recommendation = $2, feedback = $3, overall_notes = $4, submitted_at = $5, updated_at = $5
  WHERE id = $1 AND status = 'in_progress'
    AND EXISTS (SELECT 1 FROM scripts WHERE id = $6 AND assigned_judge_id = $7 AND status = 'assigned')
  RETURNING script_id
)
UPDATE scripts SET status = 'reviewed', reviewed_at = $5
WHERE id IN (SELECT script_id FROM submitted)
`, review.ID, RecommendationReviewed, feedback, notes, now, review.ScriptID, review.JudgeID)
	if err != nil {
		return WrapError(err, "submit review")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrScriptNotHeld
	}
	return nil
}

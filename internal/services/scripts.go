package services

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log"
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"scriptportal-backend-go/internal/models"
)

const scriptColumns = `id, title, author_name, author_email, author_phone, file_url, file_name, file_key,
       file_checksum, amount, original_amount, discount_code, tier_id, tier_name, granularity,
       payment_status, status, assigned_judge_id, created_at, reviewed_at`

// ScriptInput is the intake form of a public submission.
type ScriptInput struct {
	Title        string
	AuthorName   string
	AuthorEmail  string
	AuthorPhone  string
	TierID       string
	DiscountCode string
	FileName     string
}

func (in ScriptInput) normalize() (ScriptInput, error) {
	var err error
	if in.Title, err = NormalizeRequired(in.Title, "Title is required"); err != nil {
		return in, err
	}
	if in.AuthorName, err = NormalizeRequired(in.AuthorName, "Author name is required"); err != nil {
		return in, err
	}
	if in.AuthorEmail, err = NormalizeRequired(in.AuthorEmail, "Author email is required"); err != nil {
		return in, err
	}
	if _, perr := mail.ParseAddress(in.AuthorEmail); perr != nil {
		return in, ErrBadRequest("Author email is invalid")
	}
	if in.TierID, err = NormalizeRequired(in.TierID, "Pricing tier is required"); err != nil {
		return in, err
	}
	if in.FileName, err = NormalizeRequired(in.FileName, "A PDF file is required"); err != nil {
		return in, err
	}
	if !strings.HasSuffix(strings.ToLower(in.FileName), ".pdf") {
		return in, ErrBadRequest("Only PDF files are accepted")
	}
	in.AuthorPhone = strings.TrimSpace(in.AuthorPhone)
	in.DiscountCode = strings.TrimSpace(in.DiscountCode)
	return in, nil
}

// NormalizeRequired trims value and rejects it with a 400 when blank.
func NormalizeRequired(value, message string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", ErrBadRequest(message)
	}
	return trimmed, nil
}

type ScriptSubmission struct {
	Script   models.Script
	Tier     models.Tier
	Discount DiscountResult
}

// CreateScript validates the form, prices it, stores the file and inserts the
// script row. Nothing is stored when validation or the discount code fails;
// the file is removed again if the insert fails.
func CreateScript(ctx context.Context, db *sqlx.DB, store Storage, tiers []models.Tier, in ScriptInput, file io.Reader, now time.Time) (ScriptSubmission, error) {
	in, err := in.normalize()
	if err != nil {
		return ScriptSubmission{}, err
	}
	tier, ok := FindTier(tiers, in.TierID)
	if !ok {
		return ScriptSubmission{}, ErrBadRequest("Unknown pricing tier")
	}
	discount, err := ApplyDiscount(tier.Amount, in.DiscountCode)
	if err != nil {
		return ScriptSubmission{}, err
	}
	stored, err := store.Save(BucketScripts, in.FileName, file, now)
	if err != nil {
		return ScriptSubmission{}, err
	}

	payment := models.PaymentPending
	if IsPrepaid(tier, discount.Amount) {
		payment = models.PaymentPaid
	}
	checksum := stored.Checksum
	script := models.Script{
		ID:             uuid.NewString(),
		Title:          in.Title,
		AuthorName:     in.AuthorName,
		AuthorEmail:    in.AuthorEmail,
		AuthorPhone:    nullIfBlank(in.AuthorPhone),
		FileURL:        store.PublicURL(stored.Bucket, stored.Key),
		FileName:       in.FileName,
		FileKey:        stored.Key,
		FileChecksum:   &checksum,
		Amount:         discount.Amount,
		OriginalAmount: discount.OriginalAmount,
		DiscountCode:   nullIfBlank(discount.Code),
		TierID:         tier.ID,
		TierName:       tier.Name,
		Granularity:    tier.Granularity,
		PaymentStatus:  payment,
		Status:         models.ScriptPending,
		CreatedAt:      now.UTC(),
	}
	_, err = db.ExecContext(ctx, `
INSERT INTO scripts (
  id, title, author_name, author_email, author_phone, file_url, file_name, file_key, file_checksum,
  amount, original_amount, discount_code, tier_id, tier_name, granularity, payment_status, status, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
`, script.ID, script.Title, script.AuthorName, script.AuthorEmail, script.AuthorPhone, script.FileURL,
		script.FileName, script.FileKey, script.FileChecksum, script.Amount, script.OriginalAmount,
		script.DiscountCode, script.TierID, script.TierName, string(script.Granularity), script.PaymentStatus,
		script.Status, script.CreatedAt)
	if err != nil {
		if rmErr := store.Remove(stored.Bucket, stored.Key); rmErr != nil {
			log.Printf("scripts: remove orphaned upload %s: %v", stored.Key, rmErr)
		}
		return ScriptSubmission{}, WrapError(err, "insert script")
	}
	LogActivity(ctx, db, Actor{Type: ActorPublic}, "script_submitted", "script", script.ID, map[string]interface{}{
		"title":  script.Title,
		"tierId": tier.ID,
		"amount": script.Amount,
	})
	return ScriptSubmission{Script: script, Tier: tier, Discount: discount}, nil
}

type ScriptFilter struct {
	Status  string
	JudgeID string
	Search  string
}

func ListScripts(ctx context.Context, db *sqlx.DB, filter ScriptFilter) ([]models.Script, error) {
	clauses := []string{}
	args := []interface{}{}
	if filter.Status != "" {
		status, err := models.ParseScriptStatus(filter.Status)
		if err != nil {
			return nil, ErrBadRequest("Unknown status filter")
		}
		args = append(args, status)
		clauses = append(clauses, "status = "+placeholder(len(args)))
	}
	if filter.JudgeID != "" {
		args = append(args, filter.JudgeID)
		clauses = append(clauses, "assigned_judge_id = "+placeholder(len(args)))
	}
	if term := cleanSearchTerm(filter.Search); term != "" {
		args = append(args, "%"+term+"%")
		p := placeholder(len(args))
		clauses = append(clauses, "(title ILIKE "+p+" OR author_name ILIKE "+p+" OR author_email ILIKE "+p+")")
	}
	query := "SELECT " + scriptColumns + "\nFROM scripts"
	if len(clauses) > 0 {
		query += "\nWHERE " + strings.Join(clauses, " AND ")
	}
	query += "\nORDER BY created_at DESC"
	items := []models.Script{}
	err := db.SelectContext(ctx, &items, query, args...)
	return items, err
}

func GetScript(ctx context.Context, db *sqlx.DB, id string) (models.Script, error) {
	var script models.Script
	err := db.GetContext(ctx, &script, "SELECT "+scriptColumns+"\nFROM scripts\nWHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Script{}, ErrNotFound("Script not found")
	}
	return script, err
}

// AssignScript points a script at an approved contractor, or back to pending
// when judgeID is empty. Reviewed and completed scripts are frozen.
func AssignScript(ctx context.Context, db *sqlx.DB, actor Actor, scriptID, judgeID string) (models.Script, *models.Contractor, error) {
	script, err := GetScript(ctx, db, scriptID)
	if err != nil {
		return models.Script{}, nil, err
	}
	if script.Status.Terminal() {
		return models.Script{}, nil, ErrBadRequest("Reviewed scripts cannot be reassigned")
	}

	if judgeID == "" {
		if script.Status != models.ScriptPending && !models.CanTransition(script.Status, models.ScriptPending) {
			return models.Script{}, nil, ErrBadRequest("Script cannot be unassigned from " + string(script.Status))
		}
		if _, err := db.ExecContext(ctx, `SELECT assign_script_to_judge($1, NULL)`, scriptID); err != nil {
			return models.Script{}, nil, err
		}
		if script.AssignedJudgeID != nil {
			adjustWorkload(ctx, db, *script.AssignedJudgeID, -1)
		}
		LogActivity(ctx, db, actor, "script_unassigned", "script", scriptID, nil)
		script.AssignedJudgeID = nil
		script.Status = models.ScriptPending
		return script, nil, nil
	}

	contractor, err := GetContractor(ctx, db, judgeID)
	if err != nil {
		return models.Script{}, nil, err
	}
	if contractor.Status != models.ContractorApproved {
		return models.Script{}, nil, ErrBadRequest("Contractor is not approved")
	}
	if script.Status != models.ScriptAssigned && !models.CanTransition(script.Status, models.ScriptAssigned) {
		return models.Script{}, nil, ErrBadRequest("Script cannot be assigned from " + string(script.Status))
	}
	previous := script.AssignedJudgeID
	if _, err := db.ExecContext(ctx, `SELECT assign_script_to_judge($1, $2)`, scriptID, contractor.ID); err != nil {
		return models.Script{}, nil, err
	}
	if previous == nil || *previous != contractor.ID {
		adjustWorkload(ctx, db, contractor.ID, 1)
		if previous != nil {
			adjustWorkload(ctx, db, *previous, -1)
		}
	}
	LogActivity(ctx, db, actor, "script_assigned", "script", scriptID, map[string]interface{}{
		"judgeId":   contractor.ID,
		"judgeName": contractor.Name,
	})
	script.AssignedJudgeID = &contractor.ID
	script.Status = models.ScriptAssigned
	return script, &contractor, nil
}

// adjustWorkload is best effort: the counter is informational.
func adjustWorkload(ctx context.Context, db *sqlx.DB, judgeID string, delta int) {
	_, err := db.ExecContext(ctx, `UPDATE judges SET current_workload = GREATEST(current_workload + $1, 0) WHERE id = $2`, delta, judgeID)
	if err != nil {
		log.Printf("scripts: adjust workload for %s: %v", judgeID, err)
	}
}

// SetScriptStatus applies an admin decision. Only completed and incomplete
// can be set directly; the legacy verdicts map to completed.
func SetScriptStatus(ctx context.Context, db *sqlx.DB, actor Actor, scriptID, raw string) (models.Script, error) {
	status, err := models.ParseScriptStatus(raw)
	if err != nil {
		return models.Script{}, ErrBadRequest("Unknown status")
	}
	if status != models.ScriptCompleted && status != models.ScriptIncomplete {
		return models.Script{}, ErrBadRequest("Status can only be set to completed or incomplete")
	}
	script, err := GetScript(ctx, db, scriptID)
	if err != nil {
		return models.Script{}, err
	}
	if script.Status == status {
		return script, nil
	}
	if !models.CanTransition(script.Status, status) {
		return models.Script{}, ErrBadRequest("Cannot move script from " + string(script.Status) + " to " + string(status))
	}
	if _, err := db.ExecContext(ctx, `UPDATE scripts SET status = $1 WHERE id = $2`, status, scriptID); err != nil {
		return models.Script{}, err
	}
	LogActivity(ctx, db, actor, "script_status_changed", "script", scriptID, map[string]interface{}{
		"from": string(script.Status),
		"to":   string(status),
	})
	script.Status = status
	return script, nil
}

// DeleteScript removes the script with its reviews through delete_script_admin
// and then drops the stored file.
func DeleteScript(ctx context.Context, db *sqlx.DB, store Storage, actor Actor, scriptID string) error {
	script, err := GetScript(ctx, db, scriptID)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `SELECT delete_script_admin($1)`, scriptID); err != nil {
		return WrapError(err, "delete script")
	}
	if script.AssignedJudgeID != nil && script.Status == models.ScriptAssigned {
		adjustWorkload(ctx, db, *script.AssignedJudgeID, -1)
	}
	if err := store.Remove(BucketScripts, script.FileKey); err != nil {
		log.Printf("scripts: remove file %s: %v", script.FileKey, err)
	}
	LogActivity(ctx, db, actor, "script_deleted", "script", scriptID, map[string]interface{}{"title": script.Title})
	return nil
}

// MarkPayment records the checkout outcome reported by the payment webhook.
func MarkPayment(ctx context.Context, db *sqlx.DB, scriptID, raw string) error {
	status, err := models.ParsePaymentStatus(raw)
	if err != nil {
		return ErrBadRequest("Unknown payment status")
	}
	res, err := db.ExecContext(ctx, `UPDATE scripts SET payment_status = $1 WHERE id = $2`, status, scriptID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound("Script not found")
	}
	LogActivity(ctx, db, SystemActor, "payment_"+string(status), "script", scriptID, nil)
	return nil
}

var whitespace = regexp.MustCompile(`\s+`)

// cleanSearchTerm collapses whitespace and escapes LIKE wildcards.
func cleanSearchTerm(term string) string {
	cleaned := whitespace.ReplaceAllString(strings.TrimSpace(term), " ")
	return likeEscaper.Replace(cleaned)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

package services

import (
	"context"
	"database/sql"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"scriptportal-backend-go/internal/models"
)

const contractorColumns = `id, name, email, password_hash, status, specialization, current_workload,
       total_scripts_reviewed, availability, created_at`

type ContractorSignup struct {
	Name           string
	Email          string
	Password       string
	Specialization string
	Availability   string
}

// SignupContractor creates a contractor account awaiting admin approval.
func SignupContractor(ctx context.Context, db *sqlx.DB, tokens TokenService, in ContractorSignup) (models.Contractor, error) {
	name, err := NormalizeRequired(in.Name, "Name is required")
	if err != nil {
		return models.Contractor{}, err
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return models.Contractor{}, ErrBadRequest("Email is invalid")
	}
	if len(in.Password) < 8 {
		return models.Contractor{}, ErrBadRequest("Password must be at least 8 characters")
	}
	var exists bool
	if err := db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM judges WHERE lower(email) = $1)`, email); err != nil {
		return models.Contractor{}, err
	}
	if exists {
		return models.Contractor{}, ErrConflict("An account with this email already exists")
	}
	hash, err := tokens.HashPassword(in.Password)
	if err != nil {
		return models.Contractor{}, err
	}
	contractor := models.Contractor{
		ID:             uuid.NewString(),
		Name:           name,
		Email:          email,
		PasswordHash:   hash,
		Status:         models.ContractorPending,
		Specialization: nullIfBlank(strings.TrimSpace(in.Specialization)),
		Availability:   nullIfBlank(strings.TrimSpace(in.Availability)),
		CreatedAt:      time.Now().UTC(),
	}
	_, err = db.ExecContext(ctx, `
INSERT INTO judges (id, name, email, password_hash, status, specialization, availability, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`, contractor.ID, contractor.Name, contractor.Email, contractor.PasswordHash, contractor.Status,
		contractor.Specialization, contractor.Availability, contractor.CreatedAt)
	if err != nil {
		return models.Contractor{}, WrapError(err, "insert contractor")
	}
	LogActivity(ctx, db, Actor{Type: ActorContractor, ID: contractor.ID}, "contractor_signed_up", "contractor", contractor.ID, nil)
	return contractor, nil
}

// AuthenticateContractor checks credentials; only approved contractors may sign in.
func AuthenticateContractor(ctx context.Context, db *sqlx.DB, tokens TokenService, email, password string) (models.Contractor, error) {
	var contractor models.Contractor
	err := db.GetContext(ctx, &contractor, "SELECT "+contractorColumns+"\nFROM judges\nWHERE lower(email) = $1",
		strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Contractor{}, ErrUnauthorized("Invalid email or password")
	}
	if err != nil {
		return models.Contractor{}, err
	}
	if !tokens.VerifyPassword(password, contractor.PasswordHash) {
		return models.Contractor{}, ErrUnauthorized("Invalid email or password")
	}
	switch contractor.Status {
	case models.ContractorPending:
		return models.Contractor{}, ErrForbidden("Your application is still pending approval")
	case models.ContractorDeclined:
		return models.Contractor{}, ErrForbidden("Your application was declined")
	}
	return contractor, nil
}

func GetContractor(ctx context.Context, db *sqlx.DB, id string) (models.Contractor, error) {
	var contractor models.Contractor
	err := db.GetContext(ctx, &contractor, "SELECT "+contractorColumns+"\nFROM judges\nWHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Contractor{}, ErrNotFound("Contractor not found")
	}
	return contractor, err
}

func ListContractors(ctx context.Context, db *sqlx.DB, status string) ([]models.Contractor, error) {
	items := []models.Contractor{}
	if status == "" {
		err := db.SelectContext(ctx, &items, "SELECT "+contractorColumns+"\nFROM judges\nORDER BY created_at DESC")
		return items, err
	}
	parsed, err := models.ParseContractorStatus(status)
	if err != nil {
		return nil, ErrBadRequest("Unknown status filter")
	}
	err = db.SelectContext(ctx, &items, "SELECT "+contractorColumns+"\nFROM judges\nWHERE status = $1\nORDER BY created_at DESC", parsed)
	return items, err
}

func SetContractorStatus(ctx context.Context, db *sqlx.DB, actor Actor, id, raw string) (models.Contractor, error) {
	status, err := models.ParseContractorStatus(raw)
	if err != nil {
		return models.Contractor{}, ErrBadRequest("Unknown status")
	}
	res, err := db.ExecContext(ctx, `UPDATE judges SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return models.Contractor{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.Contractor{}, ErrNotFound("Contractor not found")
	}
	LogActivity(ctx, db, actor, "contractor_"+string(status), "contractor", id, nil)
	return GetContractor(ctx, db, id)
}

// DeleteContractor refuses while the contractor still holds assigned scripts.
func DeleteContractor(ctx context.Context, db *sqlx.DB, actor Actor, id string) error {
	var assigned int
	if err := db.GetContext(ctx, &assigned, `SELECT COUNT(*) FROM scripts WHERE assigned_judge_id = $1 AND status = 'assigned'`, id); err != nil {
		return err
	}
	if assigned > 0 {
		return ErrConflict("Contractor still has assigned scripts")
	}
	var reviews int
	if err := db.GetContext(ctx, &reviews, `SELECT COUNT(*) FROM script_reviews WHERE judge_id = $1`, id); err != nil {
		return err
	}
	if reviews > 0 {
		return ErrConflict("Contractor has review history; decline the account instead")
	}
	res, err := db.ExecContext(ctx, `DELETE FROM judges WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound("Contractor not found")
	}
	LogActivity(ctx, db, actor, "contractor_deleted", "contractor", id, nil)
	return nil
}

// ContractorScripts lists the scripts currently or previously assigned to a contractor.
func ContractorScripts(ctx context.Context, db *sqlx.DB, judgeID string) ([]models.Script, error) {
	return ListScripts(ctx, db, ScriptFilter{JudgeID: judgeID})
}

package services

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"scriptportal-backend-go/internal/models"
)

// EnsureAdmin seeds an admin account when none exists for email.
func EnsureAdmin(ctx context.Context, db *sqlx.DB, tokens TokenService, email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil
	}
	var exists bool
	if err := db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM admins WHERE lower(email) = $1)`, email); err != nil {
		return err
	}
	if exists {
		return nil
	}
	hash, err := tokens.HashPassword(password)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
INSERT INTO admins (id, email, name, password_hash, created_at)
VALUES ($1,$2,$3,$4,$5)
`, uuid.NewString(), email, "Administrator", hash, time.Now().UTC())
	if err == nil {
		log.Printf("admin account seeded for %s", email)
	}
	return err
}

func AuthenticateAdmin(ctx context.Context, db *sqlx.DB, tokens TokenService, email, password string) (models.Admin, error) {
	var admin models.Admin
	err := db.GetContext(ctx, &admin, `
SELECT id, email, name, password_hash, created_at, last_login_at
FROM admins
WHERE lower(email) = $1
`, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Admin{}, ErrUnauthorized("Invalid email or password")
	}
	if err != nil {
		return models.Admin{}, err
	}
	if !tokens.VerifyPassword(password, admin.PasswordHash) {
		return models.Admin{}, ErrUnauthorized("Invalid email or password")
	}
	now := time.Now().UTC()
	if _, err := db.ExecContext(ctx, `UPDATE admins SET last_login_at = $1 WHERE id = $2`, now, admin.ID); err != nil {
		log.Printf("admins: touch last login: %v", err)
	}
	admin.LastLoginAt = &now
	return admin, nil
}

func AdminExists(ctx context.Context, db *sqlx.DB, id string) (bool, error) {
	var exists bool
	err := db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM admins WHERE id = $1)`, id)
	return exists, err
}

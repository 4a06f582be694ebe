package services

import (
	"context"
	"encoding/json"
	"log"

	"github.com/jmoiron/sqlx"

	"scriptportal-backend-go/internal/models"
)

const (
	ActorAdmin      = "admin"
	ActorContractor = "contractor"
	ActorPublic     = "public"
	ActorSystem     = "system"
)

type Actor struct {
	Type string
	ID   string
}

var SystemActor = Actor{Type: ActorSystem}

// LogActivity records an entry through the log_activity procedure. Failures
// are logged and swallowed so the triggering operation still succeeds.
func LogActivity(ctx context.Context, db sqlx.ExecerContext, actor Actor, action, entityType, entityID string, details map[string]interface{}) {
	if details == nil {
		details = map[string]interface{}{}
	}
	payload, err := json.Marshal(details)
	if err != nil {
		log.Printf("activity: encode details for %s: %v", action, err)
		return
	}
	_, err = db.ExecContext(ctx, `SELECT log_activity($1, $2, $3, $4, $5, $6::jsonb)`,
		actor.Type, nullIfBlank(actor.ID), action, entityType, nullIfBlank(entityID), string(payload))
	if err != nil {
		log.Printf("activity: log %s %s/%s: %v", action, entityType, entityID, err)
	}
}

func ListActivity(ctx context.Context, db *sqlx.DB, limit int) ([]models.ActivityEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	items := []models.ActivityEntry{}
	err := db.SelectContext(ctx, &items, `
SELECT id, actor_type, actor_id, action, entity_type, entity_id, details, created_at
FROM activity_log
ORDER BY created_at DESC
LIMIT $1
`, limit)
	return items, err
}

func nullIfBlank(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

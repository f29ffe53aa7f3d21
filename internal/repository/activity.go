package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/homelink/hub-go/internal/model"
)

// ActivityLogRepository is append-only; entries are never updated or
// deleted through this surface.
type ActivityLogRepository interface {
	Create(ctx context.Context, clientID *string, action, details, ip string) error
	FindByClientID(ctx context.Context, clientID string, limit int) ([]model.ActivityLogEntry, error)
}

type activityLogRepo struct {
	db *sqlx.DB
}

func NewActivityLogRepository(db *sqlx.DB) ActivityLogRepository {
	return &activityLogRepo{db: db}
}

func (r *activityLogRepo) Create(ctx context.Context, clientID *string, action, details, ip string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO activity_log (client_id, action, details, ip)
		VALUES ($1, $2, $3, $4)
	`, clientID, action, details, ip)
	return err
}

func (r *activityLogRepo) FindByClientID(ctx context.Context, clientID string, limit int) ([]model.ActivityLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	var entries []model.ActivityLogEntry
	err := r.db.SelectContext(ctx, &entries, `
		SELECT * FROM activity_log
		WHERE client_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, clientID, limit)
	return entries, err
}

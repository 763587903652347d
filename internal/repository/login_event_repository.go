package repository

import (
	"context"
	"fmt"
	"time"

	"plannr/internal/models"
)

type LoginEventRepository struct {
	db DB
}

func NewLoginEventRepository(db DB) *LoginEventRepository {
	return &LoginEventRepository{db: db}
}

func (r *LoginEventRepository) Record(ctx context.Context, event models.LoginEvent) error {
	const query = `
		INSERT INTO login_events (id, account_id, role, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.Exec(ctx, query,
		event.ID,
		event.AccountID,
		event.Role,
		event.IPAddress,
		event.UserAgent,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert login event: %w", err)
	}
	return nil
}

func (r *LoginEventRepository) ListByAccount(ctx context.Context, role models.Role, accountID string, limit int) ([]models.LoginEvent, error) {
	const query = `
		SELECT id, account_id, role, ip_address, user_agent, created_at
		FROM login_events
		WHERE role = $1 AND account_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`
	rows, err := r.db.Query(ctx, query, role, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("query login events: %w", err)
	}
	defer rows.Close()

	var events []models.LoginEvent
	for rows.Next() {
		var event models.LoginEvent
		if err := rows.Scan(
			&event.ID,
			&event.AccountID,
			&event.Role,
			&event.IPAddress,
			&event.UserAgent,
			&event.CreatedAt,
		); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// PruneBefore deletes events older than cutoff and returns how many went.
func (r *LoginEventRepository) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM login_events WHERE created_at < $1`
	cmd, err := r.db.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune login events: %w", err)
	}
	return cmd.RowsAffected(), nil
}

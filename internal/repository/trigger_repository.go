package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ITriggerLog is the per-rule append-only record of trigger times used for
// the daily and weekly caps.
type ITriggerLog interface {
	Append(ctx context.Context, ruleID string, at time.Time) error
	// CountBetween counts triggers with from <= triggeredAt < to.
	CountBetween(ctx context.Context, ruleID string, from, to time.Time) (int, error)
	// Prune drops entries older than before and returns how many were removed.
	Prune(ctx context.Context, before time.Time) (int64, error)
}

type TriggerRepository struct {
	db *sql.DB
}

func NewTriggerRepository(db *sql.DB) *TriggerRepository {
	return &TriggerRepository{db: db}
}

func (r *TriggerRepository) Append(ctx context.Context, ruleID string, at time.Time) error {
	query := `INSERT INTO alert_triggers (rule_id, triggered_at) VALUES ($1, $2)`

	if _, err := r.db.ExecContext(ctx, query, ruleID, at); err != nil {
		return fmt.Errorf("failed to append trigger for rule %s: %w", ruleID, err)
	}
	return nil
}

func (r *TriggerRepository) CountBetween(ctx context.Context, ruleID string, from, to time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM alert_triggers
		WHERE rule_id = $1 AND triggered_at >= $2 AND triggered_at < $3
	`

	var count int
	if err := r.db.QueryRowContext(ctx, query, ruleID, from, to).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count triggers for rule %s: %w", ruleID, err)
	}
	return count, nil
}

func (r *TriggerRepository) Prune(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM alert_triggers WHERE triggered_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to prune trigger log: %w", err)
	}
	return result.RowsAffected()
}

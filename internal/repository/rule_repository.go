package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"PetAlertAPI/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// IRuleRepository stores alert rules.
type IRuleRepository interface {
	// FindActiveRulesForUser returns the user's active rules covering petID.
	// An empty petID returns every active rule of the user.
	FindActiveRulesForUser(ctx context.Context, userID, petID string) ([]*models.AlertRule, error)
	FindAllActiveRules(ctx context.Context) ([]*models.AlertRule, error)
	FindByUser(ctx context.Context, userID string) ([]*models.AlertRule, error)
	FindByID(ctx context.Context, id string) (*models.AlertRule, error)
	Save(ctx context.Context, rule *models.AlertRule) error
	Delete(ctx context.Context, id string) (bool, error)
}

type RuleRepository struct {
	db *sql.DB
}

func NewRuleRepository(db *sql.DB) *RuleRepository {
	return &RuleRepository{db: db}
}

const ruleColumns = `
	id, user_id, pet_id, name, description, is_active,
	anomaly_types, severity_levels, minimum_confidence,
	notify_in_app, notify_email, notify_push,
	max_per_day, max_per_week, cooldown_hours,
	total_triggered, last_triggered, total_notifications_sent,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRule(row rowScanner) (*models.AlertRule, error) {
	var (
		rule       models.AlertRule
		petID      sql.NullString
		lastFired  sql.NullTime
		types      pq.StringArray
		severities pq.StringArray
	)

	err := row.Scan(
		&rule.ID,
		&rule.UserID,
		&petID,
		&rule.Name,
		&rule.Description,
		&rule.IsActive,
		&types,
		&severities,
		&rule.Triggers.MinimumConfidence,
		&rule.Notifications.InApp,
		&rule.Notifications.Email,
		&rule.Notifications.Push,
		&rule.Frequency.MaxPerDay,
		&rule.Frequency.MaxPerWeek,
		&rule.Frequency.CooldownHours,
		&rule.Stats.TotalTriggered,
		&lastFired,
		&rule.Stats.TotalNotificationsSent,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if petID.Valid {
		rule.PetID = &petID.String
	}
	if lastFired.Valid {
		t := lastFired.Time
		rule.Stats.LastTriggered = &t
	}
	for _, t := range types {
		rule.Triggers.AnomalyTypes = append(rule.Triggers.AnomalyTypes, models.AnomalyType(t))
	}
	for _, s := range severities {
		rule.Triggers.SeverityLevels = append(rule.Triggers.SeverityLevels, models.Severity(s))
	}

	return &rule, nil
}

func (r *RuleRepository) queryRules(ctx context.Context, query string, args ...interface{}) ([]*models.AlertRule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert rules: %w", err)
	}
	defer rows.Close()

	rules := []*models.AlertRule{}
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert rule: %w", err)
		}
		rules = append(rules, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alert rules: %w", err)
	}

	return rules, nil
}

func (r *RuleRepository) FindActiveRulesForUser(ctx context.Context, userID, petID string) ([]*models.AlertRule, error) {
	if petID == "" {
		query := `SELECT ` + ruleColumns + `
			FROM alert_rules
			WHERE user_id = $1 AND is_active = TRUE
			ORDER BY created_at, id`
		return r.queryRules(ctx, query, userID)
	}

	query := `SELECT ` + ruleColumns + `
		FROM alert_rules
		WHERE user_id = $1 AND is_active = TRUE AND (pet_id IS NULL OR pet_id = $2)
		ORDER BY created_at, id`
	return r.queryRules(ctx, query, userID, petID)
}

func (r *RuleRepository) FindAllActiveRules(ctx context.Context) ([]*models.AlertRule, error) {
	query := `SELECT ` + ruleColumns + `
		FROM alert_rules
		WHERE is_active = TRUE
		ORDER BY user_id, created_at, id`
	return r.queryRules(ctx, query)
}

func (r *RuleRepository) FindByUser(ctx context.Context, userID string) ([]*models.AlertRule, error) {
	query := `SELECT ` + ruleColumns + `
		FROM alert_rules
		WHERE user_id = $1
		ORDER BY created_at, id`
	return r.queryRules(ctx, query, userID)
}

// FindByID returns nil, nil when the rule does not exist.
func (r *RuleRepository) FindByID(ctx context.Context, id string) (*models.AlertRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM alert_rules WHERE id = $1`

	rule, err := scanRule(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert rule by id: %w", err)
	}

	return rule, nil
}

// Save inserts the rule or overwrites the stored copy with the same ID.
func (r *RuleRepository) Save(ctx context.Context, rule *models.AlertRule) error {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}

	now := time.Now()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now

	query := `
		INSERT INTO alert_rules (` + ruleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (id) DO UPDATE SET
			pet_id = EXCLUDED.pet_id,
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			is_active = EXCLUDED.is_active,
			anomaly_types = EXCLUDED.anomaly_types,
			severity_levels = EXCLUDED.severity_levels,
			minimum_confidence = EXCLUDED.minimum_confidence,
			notify_in_app = EXCLUDED.notify_in_app,
			notify_email = EXCLUDED.notify_email,
			notify_push = EXCLUDED.notify_push,
			max_per_day = EXCLUDED.max_per_day,
			max_per_week = EXCLUDED.max_per_week,
			cooldown_hours = EXCLUDED.cooldown_hours,
			total_triggered = EXCLUDED.total_triggered,
			last_triggered = EXCLUDED.last_triggered,
			total_notifications_sent = EXCLUDED.total_notifications_sent,
			updated_at = EXCLUDED.updated_at
	`

	types := make([]string, len(rule.Triggers.AnomalyTypes))
	for i, t := range rule.Triggers.AnomalyTypes {
		types[i] = string(t)
	}
	severities := make([]string, len(rule.Triggers.SeverityLevels))
	for i, s := range rule.Triggers.SeverityLevels {
		severities[i] = string(s)
	}

	_, err := r.db.ExecContext(
		ctx, query,
		rule.ID,
		rule.UserID,
		rule.PetID,
		rule.Name,
		rule.Description,
		rule.IsActive,
		pq.Array(types),
		pq.Array(severities),
		rule.Triggers.MinimumConfidence,
		rule.Notifications.InApp,
		rule.Notifications.Email,
		rule.Notifications.Push,
		rule.Frequency.MaxPerDay,
		rule.Frequency.MaxPerWeek,
		rule.Frequency.CooldownHours,
		rule.Stats.TotalTriggered,
		rule.Stats.LastTriggered,
		rule.Stats.TotalNotificationsSent,
		rule.CreatedAt,
		rule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save alert rule %s: %w", rule.ID, err)
	}

	return nil
}

func (r *RuleRepository) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM alert_rules WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete alert rule %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return affected > 0, nil
}

package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/drtc-peru/tramite-api/internal/models"
)

const alertColumns = `id, name, kind, predicate_sql, period_minutes, recipients, title_tmpl,
       message_tmpl, priority, last_run_at, next_run_at, run_count, emitted_count, last_error, active`

// AlertRepository handles scheduled-alert definitions and runs their
// predicates.
type AlertRepository struct {
	db *sqlx.DB
}

// NewAlertRepository constructs the repository.
func NewAlertRepository(db *sqlx.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// DueAlerts lists active alerts whose next run time has arrived. A NULL
// next_run_at means the alert never ran and is due immediately.
func (r *AlertRepository) DueAlerts(ctx context.Context) ([]models.ScheduledAlert, error) {
	const query = `SELECT ` + alertColumns + ` FROM scheduled_alerts
	WHERE active = TRUE AND (next_run_at IS NULL OR next_run_at <= NOW())
	ORDER BY next_run_at ASC NULLS FIRST`
	var items []models.ScheduledAlert
	if err := r.db.SelectContext(ctx, &items, query); err != nil {
		return nil, fmt.Errorf("due alerts: %w", err)
	}
	return items, nil
}

// List returns every alert definition.
func (r *AlertRepository) List(ctx context.Context) ([]models.ScheduledAlert, error) {
	var items []models.ScheduledAlert
	if err := r.db.SelectContext(ctx, &items, `SELECT `+alertColumns+` FROM scheduled_alerts ORDER BY name ASC`); err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	return items, nil
}

// UpdateAfterRun records the outcome of one alert execution and schedules
// the next run.
func (r *AlertRepository) UpdateAfterRun(ctx context.Context, id string, ranAt, nextRun time.Time, emitted int64, lastError *string) error {
	const query = `UPDATE scheduled_alerts SET last_run_at = $2, next_run_at = $3,
	run_count = run_count + 1, emitted_count = emitted_count + $4, last_error = $5 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, ranAt, nextRun, emitted, lastError)
	if err != nil {
		return fmt.Errorf("update alert after run: %w", err)
	}
	return requireAffected(res)
}

// ExecutePredicate runs the alert's stored query and returns each row as a
// column-keyed map for template substitution. Predicates are operator-
// managed SQL, so they run verbatim.
func (r *AlertRepository) ExecutePredicate(ctx context.Context, predicateSQL string) ([]map[string]interface{}, error) {
	rows, err := r.db.QueryxContext(ctx, predicateSQL)
	if err != nil {
		return nil, fmt.Errorf("execute alert predicate: %w", err)
	}
	defer rows.Close()

	var results []map[string]interface{}
	for rows.Next() {
		row := map[string]interface{}{}
		if err := rows.MapScan(row); err != nil {
			return nil, fmt.Errorf("scan alert predicate row: %w", err)
		}
		for key, value := range row {
			if b, ok := value.([]byte); ok {
				row[key] = string(b)
			}
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alert predicate rows: %w", err)
	}
	return results, nil
}

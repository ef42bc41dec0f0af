package wiki

import (
	"context"
	"fmt"

	models "arbor/internal/domain/models/wiki"
	wikiRepo "arbor/internal/domain/repositories/wiki"
	"arbor/internal/repository/postgres"
)

// PostgresDismissalRepository persists per-operator suppression rows.
type PostgresDismissalRepository struct {
	cfg *postgres.RepositoryConfig
}

// NewDismissalRepository creates a new dismissal repository.
func NewDismissalRepository(cfg *postgres.RepositoryConfig) wikiRepo.DismissalRepository {
	return &PostgresDismissalRepository{cfg: cfg}
}

// Dismiss upserts the suppression row. Returns false when the operator had
// already dismissed this log.
func (r *PostgresDismissalRepository) Dismiss(ctx context.Context, d *models.DismissedLog) (bool, error) {
	exec := postgres.GetExecutor(ctx, r.cfg.Pool)

	query := fmt.Sprintf(`
		INSERT INTO %s (log_type, log_id, operator_id, dismissed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (log_type, log_id, operator_id) DO NOTHING
	`, r.cfg.Tables.DismissedLogs)

	result, err := exec.Exec(ctx, query, d.LogType, d.LogID, d.OperatorID, d.DismissedAt)
	if err != nil {
		return false, fmt.Errorf("dismiss log: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// ListByOperator returns the log ids the operator has dismissed for the
// given log type.
func (r *PostgresDismissalRepository) ListByOperator(ctx context.Context, logType, operatorID string) ([]string, error) {
	exec := postgres.GetExecutor(ctx, r.cfg.Pool)

	query := fmt.Sprintf(`
		SELECT log_id FROM %s WHERE log_type = $1 AND operator_id = $2
	`, r.cfg.Tables.DismissedLogs)

	rows, err := exec.Query(ctx, query, logType, operatorID)
	if err != nil {
		return nil, fmt.Errorf("query dismissals: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan dismissal: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dismissals: %w", err)
	}
	return ids, nil
}

package wiki

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"arbor/internal/domain"
	models "arbor/internal/domain/models/wiki"
	wikiRepo "arbor/internal/domain/repositories/wiki"
	"arbor/internal/repository/postgres"
)

const logColumns = `id, node_id, invalid_department_ids, invalid_rank_ids,
	invalid_position_ids, snapshot, action, note, detected_at, resolved_at, resolved_by`

// PostgresPermissionLogRepository persists the audit trail. Rows are never
// deleted; RESOLVED rows are never modified again.
type PostgresPermissionLogRepository struct {
	cfg *postgres.RepositoryConfig
}

// NewPermissionLogRepository creates a new permission log repository.
func NewPermissionLogRepository(cfg *postgres.RepositoryConfig) wikiRepo.PermissionLogRepository {
	return &PostgresPermissionLogRepository{cfg: cfg}
}

// Create inserts a new log entry. A partial unique index on open DETECTED
// entries makes concurrent duplicate detection a Conflict instead of a
// duplicate row.
func (r *PostgresPermissionLogRepository) Create(ctx context.Context, log *models.PermissionLog) error {
	exec := postgres.GetExecutor(ctx, r.cfg.Pool)

	query := fmt.Sprintf(`
		INSERT INTO %s (node_id, invalid_department_ids, invalid_rank_ids,
			invalid_position_ids, snapshot, action, note, detected_at, resolved_at, resolved_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`, r.cfg.Tables.PermissionLogs)

	err := exec.QueryRow(ctx, query,
		log.NodeID, log.InvalidDepartmentIDs, log.InvalidRankIDs, log.InvalidPositionIDs,
		log.Snapshot, log.Action, log.Note, log.DetectedAt, log.ResolvedAt, log.ResolvedBy,
	).Scan(&log.ID)
	if err != nil {
		if postgres.IsPgDuplicateError(err) {
			return fmt.Errorf("open detection for node %s: %w", log.NodeID, domain.ErrConflict)
		}
		return fmt.Errorf("create permission log: %w", err)
	}
	return nil
}

// GetOpenByNode returns the unresolved DETECTED entry for the node, or nil.
func (r *PostgresPermissionLogRepository) GetOpenByNode(ctx context.Context, nodeID string) (*models.PermissionLog, error) {
	exec := postgres.GetExecutor(ctx, r.cfg.Pool)

	query := fmt.Sprintf(`
		SELECT %s FROM %s WHERE node_id = $1 AND action = 'DETECTED'
	`, logColumns, r.cfg.Tables.PermissionLogs)

	log, err := scanLog(exec.QueryRow(ctx, query, nodeID))
	if err != nil {
		if postgres.IsPgNoRowsError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get open permission log: %w", err)
	}
	return log, nil
}

// Resolve flips an open entry to RESOLVED. Rows that are already RESOLVED
// do not match and surface as NotFound.
func (r *PostgresPermissionLogRepository) Resolve(ctx context.Context, logID string, resolvedAt time.Time, resolvedBy *string, note string) error {
	exec := postgres.GetExecutor(ctx, r.cfg.Pool)

	query := fmt.Sprintf(`
		UPDATE %s
		SET action = 'RESOLVED', resolved_at = $1, resolved_by = $2,
			note = CASE WHEN note = '' THEN $3 ELSE note || E'\n' || $3 END
		WHERE id = $4 AND action = 'DETECTED'
	`, r.cfg.Tables.PermissionLogs)

	result, err := exec.Exec(ctx, query, resolvedAt, resolvedBy, note, logID)
	if err != nil {
		return fmt.Errorf("resolve permission log: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("open permission log %s: %w", logID, domain.ErrNotFound)
	}
	return nil
}

// List returns entries filtered by resolution state, newest first.
func (r *PostgresPermissionLogRepository) List(ctx context.Context, resolved *bool, limit int) ([]models.PermissionLog, error) {
	var query string
	args := []interface{}{limit}

	switch {
	case resolved == nil:
		query = fmt.Sprintf(`
			SELECT %s FROM %s ORDER BY detected_at DESC LIMIT $1
		`, logColumns, r.cfg.Tables.PermissionLogs)
	case *resolved:
		query = fmt.Sprintf(`
			SELECT %s FROM %s WHERE action = 'RESOLVED' ORDER BY detected_at DESC LIMIT $1
		`, logColumns, r.cfg.Tables.PermissionLogs)
	default:
		query = fmt.Sprintf(`
			SELECT %s FROM %s WHERE action = 'DETECTED' ORDER BY detected_at DESC LIMIT $1
		`, logColumns, r.cfg.Tables.PermissionLogs)
	}

	return r.queryMany(ctx, query, args...)
}

// ListOpenNodeIDs returns the node ids carrying an unresolved DETECTED entry.
func (r *PostgresPermissionLogRepository) ListOpenNodeIDs(ctx context.Context) ([]string, error) {
	exec := postgres.GetExecutor(ctx, r.cfg.Pool)

	query := fmt.Sprintf(`
		SELECT node_id FROM %s WHERE action = 'DETECTED'
	`, r.cfg.Tables.PermissionLogs)

	rows, err := exec.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query open permission logs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan open permission log: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate open permission logs: %w", err)
	}
	return ids, nil
}

// ListUnresolvedExcludingDismissed returns DETECTED entries the operator has
// not dismissed, newest first.
func (r *PostgresPermissionLogRepository) ListUnresolvedExcludingDismissed(ctx context.Context, operatorID string) ([]models.PermissionLog, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s l
		WHERE l.action = 'DETECTED'
		  AND NOT EXISTS (
			SELECT 1 FROM %s d
			WHERE d.log_type = $1 AND d.log_id = l.id AND d.operator_id = $2
		  )
		ORDER BY l.detected_at DESC
	`, prefixedLogColumns("l"), r.cfg.Tables.PermissionLogs, r.cfg.Tables.DismissedLogs)

	return r.queryMany(ctx, query, models.LogTypeWikiPermission, operatorID)
}

// Exists reports whether a log row with the id exists.
func (r *PostgresPermissionLogRepository) Exists(ctx context.Context, logID string) (bool, error) {
	exec := postgres.GetExecutor(ctx, r.cfg.Pool)

	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)`, r.cfg.Tables.PermissionLogs)

	var exists bool
	if err := exec.QueryRow(ctx, query, logID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check permission log: %w", err)
	}
	return exists, nil
}

func (r *PostgresPermissionLogRepository) queryMany(ctx context.Context, query string, args ...interface{}) ([]models.PermissionLog, error) {
	exec := postgres.GetExecutor(ctx, r.cfg.Pool)

	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query permission logs: %w", err)
	}
	defer rows.Close()

	var logs []models.PermissionLog
	for rows.Next() {
		log, err := scanLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan permission log: %w", err)
		}
		logs = append(logs, *log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate permission logs: %w", err)
	}
	return logs, nil
}

func scanLog(row pgx.Row) (*models.PermissionLog, error) {
	var log models.PermissionLog
	err := row.Scan(
		&log.ID, &log.NodeID,
		&log.InvalidDepartmentIDs, &log.InvalidRankIDs, &log.InvalidPositionIDs,
		&log.Snapshot, &log.Action, &log.Note,
		&log.DetectedAt, &log.ResolvedAt, &log.ResolvedBy,
	)
	if err != nil {
		return nil, err
	}
	return &log, nil
}

func prefixedLogColumns(alias string) string {
	return fmt.Sprintf(`%[1]s.id, %[1]s.node_id, %[1]s.invalid_department_ids,
		%[1]s.invalid_rank_ids, %[1]s.invalid_position_ids, %[1]s.snapshot,
		%[1]s.action, %[1]s.note, %[1]s.detected_at, %[1]s.resolved_at, %[1]s.resolved_by`, alias)
}

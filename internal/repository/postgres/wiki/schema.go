package wiki

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"arbor/internal/repository/postgres"
)

// EnsureSchema creates the wiki tables for the configured prefix if they do
// not exist yet. The closure table is derived state: only the node
// repository's structural paths write it.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, tables *postgres.TableNames) error {
	statements := []string{
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
				node_type text NOT NULL CHECK (node_type IN ('folder', 'file')),
				name text NOT NULL,
				parent_id uuid REFERENCES %s(id),
				depth integer NOT NULL DEFAULT 0,
				sort_order integer NOT NULL DEFAULT 0,
				is_public boolean NOT NULL DEFAULT true,
				department_ids text[],
				rank_ids text[],
				position_ids text[],
				title text NOT NULL DEFAULT '',
				body text NOT NULL DEFAULT '',
				attachment jsonb,
				attachments jsonb,
				created_at timestamptz NOT NULL DEFAULT now(),
				updated_at timestamptz NOT NULL DEFAULT now(),
				deleted_at timestamptz,
				created_by text NOT NULL DEFAULT '',
				updated_by text NOT NULL DEFAULT '',
				version integer NOT NULL DEFAULT 1
			)
		`, tables.Nodes, tables.Nodes),
		fmt.Sprintf(`
			CREATE INDEX IF NOT EXISTS %s_parent_idx
			ON %s (parent_id) WHERE deleted_at IS NULL
		`, tables.Nodes, tables.Nodes),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				ancestor_id uuid NOT NULL,
				descendant_id uuid NOT NULL,
				depth integer NOT NULL,
				PRIMARY KEY (ancestor_id, descendant_id)
			)
		`, tables.Closure),
		fmt.Sprintf(`
			CREATE INDEX IF NOT EXISTS %s_descendant_idx
			ON %s (descendant_id)
		`, tables.Closure, tables.Closure),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
				node_id uuid NOT NULL,
				invalid_department_ids text[],
				invalid_rank_ids text[],
				invalid_position_ids text[],
				snapshot jsonb NOT NULL,
				action text NOT NULL,
				note text NOT NULL DEFAULT '',
				detected_at timestamptz NOT NULL DEFAULT now(),
				resolved_at timestamptz,
				resolved_by uuid
			)
		`, tables.PermissionLogs),
		// At most one open DETECTED entry per node; this is what makes
		// detector sweeps idempotent under concurrency.
		fmt.Sprintf(`
			CREATE UNIQUE INDEX IF NOT EXISTS %s_open_idx
			ON %s (node_id) WHERE action = 'DETECTED'
		`, tables.PermissionLogs, tables.PermissionLogs),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				log_type text NOT NULL,
				log_id uuid NOT NULL,
				operator_id uuid NOT NULL,
				dismissed_at timestamptz NOT NULL DEFAULT now(),
				PRIMARY KEY (log_type, log_id, operator_id)
			)
		`, tables.DismissedLogs),
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure wiki schema: %w", err)
		}
	}
	return nil
}

package wiki

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"arbor/internal/domain"
	models "arbor/internal/domain/models/wiki"
	wikiRepo "arbor/internal/domain/repositories/wiki"
	"arbor/internal/repository/postgres"
)

const nodeColumns = `id, node_type, name, parent_id, depth, sort_order, is_public,
	department_ids, rank_ids, position_ids, title, body, attachment, attachments,
	created_at, updated_at, created_by, updated_by, version`

// PostgresNodeRepository implements the NodeRepository interface. It is the
// sole writer of the closure table: Create, Move and SoftDeleteSubtree keep
// the index in step with the parent-pointer tree inside the caller's
// transaction.
type PostgresNodeRepository struct {
	cfg *postgres.RepositoryConfig
}

// NewNodeRepository creates a new node repository.
func NewNodeRepository(cfg *postgres.RepositoryConfig) wikiRepo.NodeRepository {
	return &PostgresNodeRepository{cfg: cfg}
}

// Create inserts the node and its closure edges.
func (r *PostgresNodeRepository) Create(ctx context.Context, node *models.Node) error {
	exec := postgres.GetExecutor(ctx, r.cfg.Pool)

	deptIDs, rankIDs, posIDs := policyArrays(node)
	title, body, attachment, attachments := contentFields(node)

	query := fmt.Sprintf(`
		INSERT INTO %s (node_type, name, parent_id, depth, sort_order, is_public,
			department_ids, rank_ids, position_ids, title, body, attachment, attachments,
			created_at, updated_at, created_by, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id, created_at, updated_at, version
	`, r.cfg.Tables.Nodes)

	err := exec.QueryRow(ctx, query,
		node.Type, node.Name, node.ParentID, node.Depth, node.SortOrder, node.IsPublic,
		deptIDs, rankIDs, posIDs, title, body, attachment, attachments,
		node.CreatedAt, node.UpdatedAt, node.CreatedBy, node.UpdatedBy,
	).Scan(&node.ID, &node.CreatedAt, &node.UpdatedAt, &node.Version)
	if err != nil {
		if postgres.IsPgForeignKeyError(err) {
			return fmt.Errorf("parent %v: %w", node.ParentID, domain.ErrNotFound)
		}
		return fmt.Errorf("create node: %w", err)
	}

	// Self-edge plus one edge per ancestor of the parent.
	if node.ParentID == nil {
		selfEdge := fmt.Sprintf(`
			INSERT INTO %s (ancestor_id, descendant_id, depth) VALUES ($1, $1, 0)
		`, r.cfg.Tables.Closure)
		if _, err := exec.Exec(ctx, selfEdge, node.ID); err != nil {
			return fmt.Errorf("insert self closure edge: %w", err)
		}
		return nil
	}

	edges := fmt.Sprintf(`
		INSERT INTO %s (ancestor_id, descendant_id, depth)
		SELECT ancestor_id, $1::uuid, depth + 1 FROM %s WHERE descendant_id = $2
		UNION ALL
		SELECT $1::uuid, $1::uuid, 0
	`, r.cfg.Tables.Closure, r.cfg.Tables.Closure)
	if _, err := exec.Exec(ctx, edges, node.ID, *node.ParentID); err != nil {
		return fmt.Errorf("insert closure edges: %w", err)
	}
	return nil
}

// GetByID retrieves a live node by id.
func (r *PostgresNodeRepository) GetByID(ctx context.Context, id string) (*models.Node, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s WHERE id = $1 AND deleted_at IS NULL
	`, nodeColumns, r.cfg.Tables.Nodes)
	return r.queryOne(ctx, query, id)
}

// GetByIDForUpdate loads the node under an exclusive row lock. Concurrent
// repairs and structural edits on the same node serialize here.
func (r *PostgresNodeRepository) GetByIDForUpdate(ctx context.Context, id string) (*models.Node, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s WHERE id = $1 AND deleted_at IS NULL FOR UPDATE
	`, nodeColumns, r.cfg.Tables.Nodes)
	return r.queryOne(ctx, query, id)
}

// Update persists mutable fields with an optimistic version check.
func (r *PostgresNodeRepository) Update(ctx context.Context, node *models.Node) error {
	exec := postgres.GetExecutor(ctx, r.cfg.Pool)

	deptIDs, rankIDs, posIDs := policyArrays(node)
	title, body, attachment, attachments := contentFields(node)

	query := fmt.Sprintf(`
		UPDATE %s
		SET name = $1, sort_order = $2, is_public = $3,
			department_ids = $4, rank_ids = $5, position_ids = $6,
			title = $7, body = $8, attachment = $9, attachments = $10,
			updated_at = $11, updated_by = $12, version = version + 1
		WHERE id = $13 AND deleted_at IS NULL AND version = $14
	`, r.cfg.Tables.Nodes)

	result, err := exec.Exec(ctx, query,
		node.Name, node.SortOrder, node.IsPublic,
		deptIDs, rankIDs, posIDs,
		title, body, attachment, attachments,
		time.Now(), node.UpdatedBy,
		node.ID, node.Version,
	)
	if err != nil {
		if postgres.IsPgCheckViolation(err) || postgres.IsPgForeignKeyError(err) {
			return fmt.Errorf("update node %s: %w", node.ID, domain.ErrValidation)
		}
		return fmt.Errorf("update node: %w", err)
	}

	if result.RowsAffected() == 0 {
		// Distinguish a vanished node from a lost version race.
		if _, getErr := r.GetByID(ctx, node.ID); getErr != nil {
			return fmt.Errorf("node %s: %w", node.ID, domain.ErrNotFound)
		}
		return fmt.Errorf("node %s was concurrently modified: %w", node.ID, domain.ErrConflict)
	}

	node.Version++
	return nil
}

// ListChildren returns the live immediate children, roots when parentID is nil.
func (r *PostgresNodeRepository) ListChildren(ctx context.Context, parentID *string) ([]models.Node, error) {
	var query string
	var args []interface{}

	if parentID == nil {
		query = fmt.Sprintf(`
			SELECT %s FROM %s
			WHERE parent_id IS NULL AND deleted_at IS NULL
			ORDER BY sort_order ASC, name ASC
		`, nodeColumns, r.cfg.Tables.Nodes)
	} else {
		query = fmt.Sprintf(`
			SELECT %s FROM %s
			WHERE parent_id = $1 AND deleted_at IS NULL
			ORDER BY sort_order ASC, name ASC
		`, nodeColumns, r.cfg.Tables.Nodes)
		args = append(args, *parentID)
	}

	return r.queryMany(ctx, query, args...)
}

// ListSubtree returns every live node under ancestorID via the closure index.
func (r *PostgresNodeRepository) ListSubtree(ctx context.Context, ancestorID string) ([]models.Node, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s n
		JOIN %s c ON c.descendant_id = n.id
		WHERE c.ancestor_id = $1 AND n.deleted_at IS NULL
		ORDER BY n.depth ASC, n.sort_order ASC, n.name ASC
	`, prefixedColumns("n"), r.cfg.Tables.Nodes, r.cfg.Tables.Closure)
	return r.queryMany(ctx, query, ancestorID)
}

// ListRestricted returns live folders with at least one non-empty
// permission id list.
func (r *PostgresNodeRepository) ListRestricted(ctx context.Context) ([]models.Node, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE node_type = 'folder' AND deleted_at IS NULL
		  AND (cardinality(department_ids) > 0
			OR cardinality(rank_ids) > 0
			OR cardinality(position_ids) > 0)
		ORDER BY depth ASC, name ASC
	`, nodeColumns, r.cfg.Tables.Nodes)
	return r.queryMany(ctx, query)
}

// Move re-parents the node and rewrites every closure edge crossing the
// subtree boundary. Must run inside a transaction; the caller holds the row
// lock on the subtree root.
func (r *PostgresNodeRepository) Move(ctx context.Context, node *models.Node, newParentID *string, depthDelta int) error {
	exec := postgres.GetExecutor(ctx, r.cfg.Pool)

	// Drop edges from outside ancestors into the moved subtree. Edges
	// internal to the subtree stay valid and are kept.
	detach := fmt.Sprintf(`
		DELETE FROM %s
		WHERE descendant_id IN (SELECT descendant_id FROM %s WHERE ancestor_id = $1)
		  AND ancestor_id NOT IN (SELECT descendant_id FROM %s WHERE ancestor_id = $1)
	`, r.cfg.Tables.Closure, r.cfg.Tables.Closure, r.cfg.Tables.Closure)
	if _, err := exec.Exec(ctx, detach, node.ID); err != nil {
		return fmt.Errorf("detach closure edges: %w", err)
	}

	// Cross join the new parent's ancestor chain (self included) with the
	// subtree to recreate the crossing edges.
	if newParentID != nil {
		attach := fmt.Sprintf(`
			INSERT INTO %s (ancestor_id, descendant_id, depth)
			SELECT super.ancestor_id, sub.descendant_id, super.depth + sub.depth + 1
			FROM %s AS super
			CROSS JOIN %s AS sub
			WHERE super.descendant_id = $1 AND sub.ancestor_id = $2
		`, r.cfg.Tables.Closure, r.cfg.Tables.Closure, r.cfg.Tables.Closure)
		if _, err := exec.Exec(ctx, attach, *newParentID, node.ID); err != nil {
			return fmt.Errorf("attach closure edges: %w", err)
		}
	}

	if depthDelta != 0 {
		reDepth := fmt.Sprintf(`
			UPDATE %s SET depth = depth + $1
			WHERE id IN (SELECT descendant_id FROM %s WHERE ancestor_id = $2)
		`, r.cfg.Tables.Nodes, r.cfg.Tables.Closure)
		if _, err := exec.Exec(ctx, reDepth, depthDelta, node.ID); err != nil {
			return fmt.Errorf("shift subtree depth: %w", err)
		}
	}

	reParent := fmt.Sprintf(`
		UPDATE %s SET parent_id = $1, updated_at = $2, updated_by = $3, version = version + 1
		WHERE id = $4 AND deleted_at IS NULL
	`, r.cfg.Tables.Nodes)
	result, err := exec.Exec(ctx, reParent, newParentID, time.Now(), node.UpdatedBy, node.ID)
	if err != nil {
		return fmt.Errorf("re-parent node: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("node %s: %w", node.ID, domain.ErrNotFound)
	}

	node.ParentID = newParentID
	node.Depth += depthDelta
	node.Version++
	return nil
}

// SoftDeleteSubtree marks the node and every descendant deleted via the
// closure index. The closure edges are kept; they remain recomputable from
// the (still present) parent pointers of the soft-deleted rows.
func (r *PostgresNodeRepository) SoftDeleteSubtree(ctx context.Context, id string) (int, error) {
	exec := postgres.GetExecutor(ctx, r.cfg.Pool)

	query := fmt.Sprintf(`
		UPDATE %s SET deleted_at = $1, version = version + 1
		WHERE deleted_at IS NULL
		  AND id IN (SELECT descendant_id FROM %s WHERE ancestor_id = $2)
	`, r.cfg.Tables.Nodes, r.cfg.Tables.Closure)

	result, err := exec.Exec(ctx, query, time.Now(), id)
	if err != nil {
		return 0, fmt.Errorf("soft delete subtree: %w", err)
	}
	if result.RowsAffected() == 0 {
		return 0, fmt.Errorf("node %s: %w", id, domain.ErrNotFound)
	}
	return int(result.RowsAffected()), nil
}

// IsDescendant reports whether candidate lies in the subtree under
// ancestorID, self included.
func (r *PostgresNodeRepository) IsDescendant(ctx context.Context, ancestorID, candidateID string) (bool, error) {
	exec := postgres.GetExecutor(ctx, r.cfg.Pool)

	query := fmt.Sprintf(`
		SELECT EXISTS (SELECT 1 FROM %s WHERE ancestor_id = $1 AND descendant_id = $2)
	`, r.cfg.Tables.Closure)

	var exists bool
	if err := exec.QueryRow(ctx, query, ancestorID, candidateID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check descendant: %w", err)
	}
	return exists, nil
}

// NearestAncestorFolder returns the closest live ancestor folder, or nil.
func (r *PostgresNodeRepository) NearestAncestorFolder(ctx context.Context, id string) (*models.Node, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s n
		JOIN %s c ON c.ancestor_id = n.id
		WHERE c.descendant_id = $1 AND c.depth > 0
		  AND n.node_type = 'folder' AND n.deleted_at IS NULL
		ORDER BY c.depth ASC
		LIMIT 1
	`, prefixedColumns("n"), r.cfg.Tables.Nodes, r.cfg.Tables.Closure)

	node, err := r.queryOne(ctx, query, id)
	if err != nil {
		if postgres.IsPgNoRowsError(err) || isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return node, nil
}

// Path returns the ancestor chain root-first, self included.
func (r *PostgresNodeRepository) Path(ctx context.Context, id string) ([]models.Node, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s n
		JOIN %s c ON c.ancestor_id = n.id
		WHERE c.descendant_id = $1 AND n.deleted_at IS NULL
		ORDER BY c.depth DESC
	`, prefixedColumns("n"), r.cfg.Tables.Nodes, r.cfg.Tables.Closure)
	return r.queryMany(ctx, query, id)
}

// Search matches live file names, titles and bodies against the query.
// Plain substring match; relevance ranking is out of scope here.
func (r *PostgresNodeRepository) Search(ctx context.Context, query string, limit int) ([]models.Node, error) {
	sql := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE node_type = 'file' AND deleted_at IS NULL
		  AND (name ILIKE '%%' || $1 || '%%'
			OR title ILIKE '%%' || $1 || '%%'
			OR body ILIKE '%%' || $1 || '%%')
		ORDER BY updated_at DESC
		LIMIT $2
	`, nodeColumns, r.cfg.Tables.Nodes)
	return r.queryMany(ctx, sql, query, limit)
}

func (r *PostgresNodeRepository) queryOne(ctx context.Context, query string, args ...interface{}) (*models.Node, error) {
	exec := postgres.GetExecutor(ctx, r.cfg.Pool)

	row := exec.QueryRow(ctx, query, args...)
	node, err := scanNode(row)
	if err != nil {
		if postgres.IsPgNoRowsError(err) {
			return nil, fmt.Errorf("node: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get node: %w", err)
	}
	return node, nil
}

func (r *PostgresNodeRepository) queryMany(ctx context.Context, query string, args ...interface{}) ([]models.Node, error) {
	exec := postgres.GetExecutor(ctx, r.cfg.Pool)

	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query nodes: %w", err)
	}
	defer rows.Close()

	var nodes []models.Node
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		nodes = append(nodes, *node)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nodes: %w", err)
	}
	return nodes, nil
}

// scanNode reads one row and reconstructs the tagged payloads: folders get
// their policy lists, files get their content fields.
func scanNode(row pgx.Row) (*models.Node, error) {
	var (
		node        models.Node
		deptIDs     []string
		rankIDs     []string
		posIDs      []string
		title, body string
		attachment  *models.BlobRef
		attachments []models.BlobRef
	)

	err := row.Scan(
		&node.ID, &node.Type, &node.Name, &node.ParentID, &node.Depth, &node.SortOrder,
		&node.IsPublic, &deptIDs, &rankIDs, &posIDs, &title, &body, &attachment, &attachments,
		&node.CreatedAt, &node.UpdatedAt, &node.CreatedBy, &node.UpdatedBy, &node.Version,
	)
	if err != nil {
		return nil, err
	}

	switch node.Type {
	case models.NodeTypeFolder:
		node.Folder = &models.FolderPolicy{
			DepartmentIDs: deptIDs,
			RankIDs:       rankIDs,
			PositionIDs:   posIDs,
		}
	case models.NodeTypeFile:
		node.File = &models.FileContent{
			Title:       title,
			Body:        body,
			Attachment:  attachment,
			Attachments: attachments,
		}
	}
	return &node, nil
}

// policyArrays flattens the folder payload for persistence. Files always
// store NULL lists, and a public folder stores cleared lists rather than
// dormant ones.
func policyArrays(node *models.Node) ([]string, []string, []string) {
	p := node.Policy()
	if p == nil || node.IsPublic {
		return nil, nil, nil
	}
	return p.DepartmentIDs, p.RankIDs, p.PositionIDs
}

func contentFields(node *models.Node) (string, string, *models.BlobRef, []models.BlobRef) {
	if node.File == nil {
		return "", "", nil, nil
	}
	return node.File.Title, node.File.Body, node.File.Attachment, node.File.Attachments
}

func prefixedColumns(alias string) string {
	return fmt.Sprintf(`%[1]s.id, %[1]s.node_type, %[1]s.name, %[1]s.parent_id, %[1]s.depth,
		%[1]s.sort_order, %[1]s.is_public, %[1]s.department_ids, %[1]s.rank_ids,
		%[1]s.position_ids, %[1]s.title, %[1]s.body, %[1]s.attachment, %[1]s.attachments,
		%[1]s.created_at, %[1]s.updated_at, %[1]s.created_by, %[1]s.updated_by, %[1]s.version`, alias)
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}

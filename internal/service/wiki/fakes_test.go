package wiki

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"arbor/internal/domain"
	models "arbor/internal/domain/models/wiki"
	"arbor/internal/domain/repositories"
	"arbor/internal/identity"
)

type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

// fakeTxManager runs the function directly. When given repos to guard it
// snapshots their state first and restores it on error, mimicking rollback.
type fakeTxManager struct {
	nodeRepo *fakeNodeRepo
	logRepo  *fakeLogRepo
}

func (m *fakeTxManager) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	var nodeSnap map[string]*models.Node
	var edgeSnap []models.ClosureEdge
	var logSnap map[string]*models.PermissionLog
	if m.nodeRepo != nil {
		nodeSnap = m.nodeRepo.snapshot()
		edgeSnap = append([]models.ClosureEdge(nil), m.nodeRepo.edges...)
	}
	if m.logRepo != nil {
		logSnap = m.logRepo.snapshot()
	}

	if err := fn(ctx); err != nil {
		if m.nodeRepo != nil {
			m.nodeRepo.nodes = nodeSnap
			m.nodeRepo.edges = edgeSnap
		}
		if m.logRepo != nil {
			m.logRepo.entries = logSnap
		}
		return err
	}
	return nil
}

// fakeNodeRepo keeps nodes in memory and maintains closure edges with the
// same detach/attach algorithm the real repository uses, so structural tests
// exercise the actual edge bookkeeping.
type fakeNodeRepo struct {
	nodes map[string]*models.Node
	edges []models.ClosureEdge
}

func newFakeNodeRepo() *fakeNodeRepo {
	return &fakeNodeRepo{nodes: make(map[string]*models.Node)}
}

func (r *fakeNodeRepo) snapshot() map[string]*models.Node {
	out := make(map[string]*models.Node, len(r.nodes))
	for id, n := range r.nodes {
		out[id] = copyNode(n)
	}
	return out
}

func copyNode(n *models.Node) *models.Node {
	c := *n
	if n.Folder != nil {
		f := *n.Folder
		f.DepartmentIDs = append([]string(nil), n.Folder.DepartmentIDs...)
		f.RankIDs = append([]string(nil), n.Folder.RankIDs...)
		f.PositionIDs = append([]string(nil), n.Folder.PositionIDs...)
		c.Folder = &f
	}
	if n.File != nil {
		fc := *n.File
		c.File = &fc
	}
	return &c
}

func (r *fakeNodeRepo) Create(_ context.Context, node *models.Node) error {
	node.ID = uuid.NewString()
	node.Version = 1
	r.nodes[node.ID] = copyNode(node)

	r.edges = append(r.edges, models.ClosureEdge{AncestorID: node.ID, DescendantID: node.ID, Depth: 0})
	if node.ParentID != nil {
		for _, e := range r.edgesTo(*node.ParentID) {
			r.edges = append(r.edges, models.ClosureEdge{
				AncestorID:   e.AncestorID,
				DescendantID: node.ID,
				Depth:        e.Depth + 1,
			})
		}
	}
	return nil
}

func (r *fakeNodeRepo) edgesTo(descendantID string) []models.ClosureEdge {
	var out []models.ClosureEdge
	for _, e := range r.edges {
		if e.DescendantID == descendantID {
			out = append(out, e)
		}
	}
	return out
}

func (r *fakeNodeRepo) GetByID(_ context.Context, id string) (*models.Node, error) {
	n, ok := r.nodes[id]
	if !ok || n.DeletedAt != nil {
		return nil, fmt.Errorf("node %s: %w", id, domain.ErrNotFound)
	}
	return copyNode(n), nil
}

func (r *fakeNodeRepo) GetByIDForUpdate(ctx context.Context, id string) (*models.Node, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeNodeRepo) Update(_ context.Context, node *models.Node) error {
	stored, ok := r.nodes[node.ID]
	if !ok || stored.DeletedAt != nil {
		return fmt.Errorf("node %s: %w", node.ID, domain.ErrNotFound)
	}
	if stored.Version != node.Version {
		return fmt.Errorf("node %s was modified concurrently: %w", node.ID, domain.ErrConflict)
	}
	node.Version++
	r.nodes[node.ID] = copyNode(node)
	return nil
}

func (r *fakeNodeRepo) ListChildren(_ context.Context, parentID *string) ([]models.Node, error) {
	var out []models.Node
	for _, n := range r.nodes {
		if n.DeletedAt != nil {
			continue
		}
		if (parentID == nil) != (n.ParentID == nil) {
			continue
		}
		if parentID != nil && *n.ParentID != *parentID {
			continue
		}
		out = append(out, *copyNode(n))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (r *fakeNodeRepo) ListSubtree(_ context.Context, ancestorID string) ([]models.Node, error) {
	var out []models.Node
	for _, e := range r.edges {
		if e.AncestorID != ancestorID {
			continue
		}
		if n, ok := r.nodes[e.DescendantID]; ok && n.DeletedAt == nil {
			out = append(out, *copyNode(n))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Depth != out[j].Depth {
			return out[i].Depth < out[j].Depth
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (r *fakeNodeRepo) ListRestricted(_ context.Context) ([]models.Node, error) {
	var out []models.Node
	for _, n := range r.nodes {
		if n.DeletedAt == nil && n.IsFolder() && !n.IsPublic && n.Folder.HasRestrictions() {
			out = append(out, *copyNode(n))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *fakeNodeRepo) Move(_ context.Context, node *models.Node, newParentID *string, depthDelta int) error {
	subtree := r.subtreeIDs(node.ID)

	// Detach: drop edges crossing into the subtree from outside.
	kept := r.edges[:0]
	for _, e := range r.edges {
		_, descIn := subtree[e.DescendantID]
		_, ancIn := subtree[e.AncestorID]
		if descIn && !ancIn {
			continue
		}
		kept = append(kept, e)
	}
	r.edges = kept

	// Attach: cross join new ancestors with the subtree.
	if newParentID != nil {
		for _, super := range r.edgesTo(*newParentID) {
			for _, sub := range r.edges {
				if sub.AncestorID != node.ID {
					continue
				}
				if _, in := subtree[sub.DescendantID]; !in {
					continue
				}
				r.edges = append(r.edges, models.ClosureEdge{
					AncestorID:   super.AncestorID,
					DescendantID: sub.DescendantID,
					Depth:        super.Depth + sub.Depth + 1,
				})
			}
		}
	}

	for id := range subtree {
		r.nodes[id].Depth += depthDelta
	}

	stored := r.nodes[node.ID]
	stored.ParentID = newParentID
	stored.Version++
	stored.UpdatedBy = node.UpdatedBy
	*node = *copyNode(stored)
	return nil
}

func (r *fakeNodeRepo) subtreeIDs(ancestorID string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, e := range r.edges {
		if e.AncestorID == ancestorID {
			out[e.DescendantID] = struct{}{}
		}
	}
	return out
}

func (r *fakeNodeRepo) SoftDeleteSubtree(_ context.Context, id string) (int, error) {
	now := time.Now()
	count := 0
	for did := range r.subtreeIDs(id) {
		if n, ok := r.nodes[did]; ok && n.DeletedAt == nil {
			n.DeletedAt = &now
			count++
		}
	}
	return count, nil
}

func (r *fakeNodeRepo) IsDescendant(_ context.Context, ancestorID, candidateID string) (bool, error) {
	for _, e := range r.edges {
		if e.AncestorID == ancestorID && e.DescendantID == candidateID {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeNodeRepo) NearestAncestorFolder(_ context.Context, id string) (*models.Node, error) {
	var best *models.ClosureEdge
	for _, e := range r.edgesTo(id) {
		if e.Depth == 0 {
			continue
		}
		n, ok := r.nodes[e.AncestorID]
		if !ok || n.DeletedAt != nil || !n.IsFolder() {
			continue
		}
		if best == nil || e.Depth < best.Depth {
			copied := e
			best = &copied
		}
	}
	if best == nil {
		return nil, nil
	}
	return copyNode(r.nodes[best.AncestorID]), nil
}

func (r *fakeNodeRepo) Path(_ context.Context, id string) ([]models.Node, error) {
	edges := r.edgesTo(id)
	sort.Slice(edges, func(i, j int) bool { return edges[i].Depth > edges[j].Depth })
	var out []models.Node
	for _, e := range edges {
		if n, ok := r.nodes[e.AncestorID]; ok {
			out = append(out, *copyNode(n))
		}
	}
	return out, nil
}

func (r *fakeNodeRepo) Search(_ context.Context, query string, limit int) ([]models.Node, error) {
	q := strings.ToLower(query)
	var out []models.Node
	for _, n := range r.nodes {
		if n.DeletedAt != nil || !n.IsFile() {
			continue
		}
		if strings.Contains(strings.ToLower(n.Name), q) ||
			strings.Contains(strings.ToLower(n.File.Title), q) ||
			strings.Contains(strings.ToLower(n.File.Body), q) {
			out = append(out, *copyNode(n))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeLogRepo struct {
	entries   map[string]*models.PermissionLog
	dismissed *fakeDismissalRepo
	createErr error
}

func newFakeLogRepo() *fakeLogRepo {
	return &fakeLogRepo{entries: make(map[string]*models.PermissionLog)}
}

func (r *fakeLogRepo) snapshot() map[string]*models.PermissionLog {
	out := make(map[string]*models.PermissionLog, len(r.entries))
	for id, l := range r.entries {
		c := *l
		out[id] = &c
	}
	return out
}

func (r *fakeLogRepo) Create(_ context.Context, log *models.PermissionLog) error {
	if r.createErr != nil {
		return r.createErr
	}
	if log.Action == models.LogActionDetected {
		for _, existing := range r.entries {
			if existing.NodeID == log.NodeID && existing.Action == models.LogActionDetected {
				return fmt.Errorf("open entry exists for node %s: %w", log.NodeID, domain.ErrConflict)
			}
		}
	}
	log.ID = uuid.NewString()
	c := *log
	r.entries[log.ID] = &c
	return nil
}

func (r *fakeLogRepo) GetOpenByNode(_ context.Context, nodeID string) (*models.PermissionLog, error) {
	for _, l := range r.entries {
		if l.NodeID == nodeID && l.Action == models.LogActionDetected {
			c := *l
			return &c, nil
		}
	}
	return nil, nil
}

func (r *fakeLogRepo) Resolve(_ context.Context, logID string, resolvedAt time.Time, resolvedBy *string, note string) error {
	l, ok := r.entries[logID]
	if !ok || l.Action != models.LogActionDetected {
		return fmt.Errorf("open log %s: %w", logID, domain.ErrNotFound)
	}
	l.Action = models.LogActionResolved
	l.ResolvedAt = &resolvedAt
	l.ResolvedBy = resolvedBy
	if l.Note == "" {
		l.Note = note
	} else {
		l.Note = l.Note + "\n" + note
	}
	return nil
}

func (r *fakeLogRepo) List(_ context.Context, resolved *bool, limit int) ([]models.PermissionLog, error) {
	var out []models.PermissionLog
	for _, l := range r.entries {
		if resolved != nil && l.IsResolved() != *resolved {
			continue
		}
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DetectedAt.After(out[j].DetectedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeLogRepo) ListOpenNodeIDs(_ context.Context) ([]string, error) {
	var out []string
	for _, l := range r.entries {
		if l.Action == models.LogActionDetected {
			out = append(out, l.NodeID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *fakeLogRepo) ListUnresolvedExcludingDismissed(_ context.Context, operatorID string) ([]models.PermissionLog, error) {
	var out []models.PermissionLog
	for _, l := range r.entries {
		if l.Action != models.LogActionDetected {
			continue
		}
		if r.dismissed != nil && r.dismissed.has(models.LogTypeWikiPermission, l.ID, operatorID) {
			continue
		}
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DetectedAt.After(out[j].DetectedAt) })
	return out, nil
}

func (r *fakeLogRepo) Exists(_ context.Context, logID string) (bool, error) {
	_, ok := r.entries[logID]
	return ok, nil
}

type fakeDismissalRepo struct {
	rows map[string]models.DismissedLog
}

func newFakeDismissalRepo() *fakeDismissalRepo {
	return &fakeDismissalRepo{rows: make(map[string]models.DismissedLog)}
}

func dismissalKey(logType, logID, operatorID string) string {
	return logType + "|" + logID + "|" + operatorID
}

func (r *fakeDismissalRepo) has(logType, logID, operatorID string) bool {
	_, ok := r.rows[dismissalKey(logType, logID, operatorID)]
	return ok
}

func (r *fakeDismissalRepo) Dismiss(_ context.Context, d *models.DismissedLog) (bool, error) {
	key := dismissalKey(d.LogType, d.LogID, d.OperatorID)
	if _, ok := r.rows[key]; ok {
		return false, nil
	}
	r.rows[key] = *d
	return true, nil
}

func (r *fakeDismissalRepo) ListByOperator(_ context.Context, logType, operatorID string) ([]string, error) {
	var out []string
	for _, d := range r.rows {
		if d.LogType == logType && d.OperatorID == operatorID {
			out = append(out, d.LogID)
		}
	}
	sort.Strings(out)
	return out, nil
}

type fakeLookup struct {
	snapshot *identity.OrgSnapshot
	err      error
	calls    int
}

func (l *fakeLookup) ListMemberships(_ context.Context, includeInactive bool) (*identity.OrgSnapshot, error) {
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	if includeInactive {
		return l.snapshot, nil
	}
	filtered := &identity.OrgSnapshot{}
	for _, u := range l.snapshot.Departments {
		if u.Active {
			filtered.Departments = append(filtered.Departments, u)
		}
	}
	for _, u := range l.snapshot.Ranks {
		if u.Active {
			filtered.Ranks = append(filtered.Ranks, u)
		}
	}
	for _, u := range l.snapshot.Positions {
		if u.Active {
			filtered.Positions = append(filtered.Positions, u)
		}
	}
	return filtered, nil
}

func (l *fakeLookup) ResolveNames(_ context.Context, ids []string) (map[string]string, error) {
	if l.err != nil {
		return nil, l.err
	}
	names := make(map[string]string)
	all := append(append(append([]identity.OrgUnit(nil), l.snapshot.Departments...), l.snapshot.Ranks...), l.snapshot.Positions...)
	for _, u := range all {
		for _, id := range ids {
			if u.ID == id {
				names[id] = u.Name
			}
		}
	}
	return names, nil
}

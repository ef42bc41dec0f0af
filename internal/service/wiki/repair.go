package wiki

import (
	"context"
	"fmt"
	"log/slog"

	"arbor/internal/domain"
	models "arbor/internal/domain/models/wiki"
	"arbor/internal/domain/repositories"
	wikiRepo "arbor/internal/domain/repositories/wiki"
	wikiSvc "arbor/internal/domain/services/wiki"
)

type repairService struct {
	nodeRepo  wikiRepo.NodeRepository
	logRepo   wikiRepo.PermissionLogRepository
	txManager repositories.TransactionManager
	clock     Clock
	logger    *slog.Logger
}

// NewRepairService creates a new permission repair service.
func NewRepairService(
	nodeRepo wikiRepo.NodeRepository,
	logRepo wikiRepo.PermissionLogRepository,
	txManager repositories.TransactionManager,
	clock Clock,
	logger *slog.Logger,
) wikiSvc.RepairService {
	return &repairService{
		nodeRepo:  nodeRepo,
		logRepo:   logRepo,
		txManager: txManager,
		clock:     clock,
		logger:    logger,
	}
}

// ReplacePermissions remaps stale identifiers on one node inside a single
// transaction. The row lock serializes concurrent repairs; the second
// transaction observes the already-updated lists and simply replaces
// nothing. The node update and its RESOLVED audit entry commit atomically.
func (s *repairService) ReplacePermissions(ctx context.Context, nodeID string, req *wikiSvc.RepairRequest) (*wikiSvc.RepairResult, error) {
	if err := requireUUID("node_id", nodeID); err != nil {
		return nil, err
	}
	if err := requireUUID("operator_id", req.OperatorID); err != nil {
		return nil, err
	}
	if len(req.Departments)+len(req.Ranks)+len(req.Positions) == 0 {
		return nil, fmt.Errorf("%w: no replacements given", domain.ErrValidation)
	}
	for _, group := range [][]wikiSvc.Remap{req.Departments, req.Ranks, req.Positions} {
		for _, r := range group {
			if r.OldID == "" || r.NewID == "" {
				return nil, fmt.Errorf("%w: replacement ids must be non-empty", domain.ErrValidation)
			}
		}
	}

	result := &wikiSvc.RepairResult{}
	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		node, err := s.nodeRepo.GetByIDForUpdate(txCtx, nodeID)
		if err != nil {
			return err
		}
		policy := node.Policy()
		if node.IsPublic || policy == nil {
			return fmt.Errorf("%w: node %s carries no permission lists to repair", domain.ErrValidation, nodeID)
		}

		policy.DepartmentIDs, result.ReplacedDepartments = remapIDs(policy.DepartmentIDs, req.Departments)
		policy.RankIDs, result.ReplacedRanks = remapIDs(policy.RankIDs, req.Ranks)
		policy.PositionIDs, result.ReplacedPositions = remapIDs(policy.PositionIDs, req.Positions)

		node.UpdatedBy = req.OperatorID
		if err := s.nodeRepo.Update(txCtx, node); err != nil {
			return err
		}

		return s.recordResolution(txCtx, node, req, result)
	})
	if err != nil {
		return nil, err
	}

	result.Success = true
	replaced := result.ReplacedDepartments + result.ReplacedRanks + result.ReplacedPositions
	result.Message = fmt.Sprintf("replaced %d identifier(s)", replaced)

	s.logger.Info("permissions repaired",
		"node_id", nodeID, "operator", req.OperatorID,
		"departments", result.ReplacedDepartments, "ranks", result.ReplacedRanks, "positions", result.ReplacedPositions)
	return result, nil
}

// recordResolution flips the node's open DETECTED entry to RESOLVED, or
// writes a standalone RESOLVED entry when the repair was not preceded by a
// detection.
func (s *repairService) recordResolution(ctx context.Context, node *models.Node, req *wikiSvc.RepairRequest, result *wikiSvc.RepairResult) error {
	note := req.Note
	if note == "" {
		note = fmt.Sprintf("operator replaced %d identifier(s)",
			result.ReplacedDepartments+result.ReplacedRanks+result.ReplacedPositions)
	}
	operator := req.OperatorID
	now := s.clock.Now()

	open, err := s.logRepo.GetOpenByNode(ctx, node.ID)
	if err != nil {
		return err
	}
	if open != nil {
		return s.logRepo.Resolve(ctx, open.ID, now, &operator, note)
	}

	return s.logRepo.Create(ctx, &models.PermissionLog{
		NodeID:     node.ID,
		Snapshot:   models.SnapshotOf(node),
		Action:     models.LogActionResolved,
		Note:       note,
		DetectedAt: now,
		ResolvedAt: &now,
		ResolvedBy: &operator,
	})
}

// remapIDs applies old->new replacements to a list, deduplicating in case a
// replacement target already appears in it. Unmatched old ids are ignored.
func remapIDs(ids []string, remaps []wikiSvc.Remap) ([]string, int) {
	if len(remaps) == 0 {
		return ids, 0
	}
	mapping := make(map[string]string, len(remaps))
	for _, r := range remaps {
		mapping[r.OldID] = r.NewID
	}

	replaced := 0
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if newID, ok := mapping[id]; ok {
			id = newID
			replaced++
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, replaced
}

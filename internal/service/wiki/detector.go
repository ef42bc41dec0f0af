package wiki

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"arbor/internal/domain"
	models "arbor/internal/domain/models/wiki"
	wikiRepo "arbor/internal/domain/repositories/wiki"
	wikiSvc "arbor/internal/domain/services/wiki"
	"arbor/internal/identity"
)

type detectorService struct {
	nodeRepo wikiRepo.NodeRepository
	logRepo  wikiRepo.PermissionLogRepository
	lookup   identity.Lookup
	clock    Clock
	logger   *slog.Logger
	nudges   chan string
}

// NewDetectorService creates the stale-permission detector. nudgeBacklog
// bounds the queue of single-node check requests; requests beyond it are
// dropped, the next full sweep covers them anyway.
func NewDetectorService(
	nodeRepo wikiRepo.NodeRepository,
	logRepo wikiRepo.PermissionLogRepository,
	lookup identity.Lookup,
	clock Clock,
	logger *slog.Logger,
	nudgeBacklog int,
) wikiSvc.DetectorService {
	if nudgeBacklog <= 0 {
		nudgeBacklog = 16
	}
	return &detectorService{
		nodeRepo: nodeRepo,
		logRepo:  logRepo,
		lookup:   lookup,
		clock:    clock,
		logger:   logger,
		nudges:   make(chan string, nudgeBacklog),
	}
}

// Sweep cross-checks every restricted folder against one upstream snapshot.
// The snapshot is fetched once per pass so all nodes are judged against the
// same view of the directory.
func (s *detectorService) Sweep(ctx context.Context) (*wikiSvc.SweepStats, error) {
	snapshot, err := s.lookup.ListMemberships(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("identity snapshot: %w", err)
	}
	departments, ranks, positions := snapshot.Sets()

	nodes, err := s.nodeRepo.ListRestricted(ctx)
	if err != nil {
		return nil, err
	}

	stats := &wikiSvc.SweepStats{}
	scanned := make(map[string]bool, len(nodes))
	for i := range nodes {
		stats.Scanned++
		scanned[nodes[i].ID] = true
		if err := s.checkAgainst(ctx, &nodes[i], departments, ranks, positions, stats); err != nil {
			// One bad node must not abort the pass.
			s.logger.Error("detector check failed", "node_id", nodes[i].ID, "error", err)
		}
	}

	// Nodes with an open entry that no longer appear in the restricted
	// listing (made public, lists cleared, or deleted) still need a visit,
	// otherwise the entry would linger as DETECTED forever.
	openIDs, err := s.logRepo.ListOpenNodeIDs(ctx)
	if err != nil {
		return nil, err
	}
	for _, id := range openIDs {
		if scanned[id] {
			continue
		}
		stats.Scanned++
		if err := s.revisit(ctx, id, departments, ranks, positions, stats); err != nil {
			s.logger.Error("detector revisit failed", "node_id", id, "error", err)
		}
	}

	s.logger.Info("detector sweep complete",
		"scanned", stats.Scanned, "detected", stats.Detected, "system_resolved", stats.SystemResolved)
	return stats, nil
}

// CheckNode runs detection for a single node. Nodes that are not restricted
// folders are skipped without error.
func (s *detectorService) CheckNode(ctx context.Context, nodeID string) error {
	node, err := s.nodeRepo.GetByID(ctx, nodeID)
	if err != nil {
		return err
	}
	policy := node.Policy()
	if node.IsPublic || policy == nil || !policy.HasRestrictions() {
		return nil
	}

	snapshot, err := s.lookup.ListMemberships(ctx, true)
	if err != nil {
		return fmt.Errorf("identity snapshot: %w", err)
	}
	departments, ranks, positions := snapshot.Sets()
	return s.checkAgainst(ctx, node, departments, ranks, positions, &wikiSvc.SweepStats{})
}

// Nudge queues a single-node check without blocking the caller.
func (s *detectorService) Nudge(nodeID string) {
	select {
	case s.nudges <- nodeID:
	default:
		s.logger.Debug("detector nudge dropped, backlog full", "node_id", nodeID)
	}
}

// Nudges exposes the queued single-node check requests to the scheduler.
func (s *detectorService) Nudges() <-chan string {
	return s.nudges
}

// revisit re-checks a node that carries an open entry but fell out of the
// restricted listing. A vanished node closes its entry outright; anything
// else goes through the usual comparison, which resolves once the node's
// lists are empty or valid again.
func (s *detectorService) revisit(
	ctx context.Context,
	nodeID string,
	departments, ranks, positions identity.IDSet,
	stats *wikiSvc.SweepStats,
) error {
	node, err := s.nodeRepo.GetByID(ctx, nodeID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			open, err := s.logRepo.GetOpenByNode(ctx, nodeID)
			if err != nil || open == nil {
				return err
			}
			if err := s.logRepo.Resolve(ctx, open.ID, s.clock.Now(), nil, "node no longer exists"); err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					return nil
				}
				return err
			}
			stats.SystemResolved++
			s.logger.Info("stale permission entry system-resolved", "node_id", nodeID, "log_id", open.ID)
			return nil
		}
		return err
	}
	return s.checkAgainst(ctx, node, departments, ranks, positions, stats)
}

// checkAgainst compares one node's lists with the upstream sets, opening a
// DETECTED entry for newly stale nodes and system-resolving entries whose
// identifiers all resolve again. At most one open entry per node exists at
// any time.
func (s *detectorService) checkAgainst(
	ctx context.Context,
	node *models.Node,
	departments, ranks, positions identity.IDSet,
	stats *wikiSvc.SweepStats,
) error {
	policy := node.Policy()
	if policy == nil {
		return nil
	}

	invalidDepts := invalidIDs(policy.DepartmentIDs, departments)
	invalidRanks := invalidIDs(policy.RankIDs, ranks)
	invalidPositions := invalidIDs(policy.PositionIDs, positions)
	stale := len(invalidDepts)+len(invalidRanks)+len(invalidPositions) > 0

	open, err := s.logRepo.GetOpenByNode(ctx, node.ID)
	if err != nil {
		return err
	}

	switch {
	case stale && open == nil:
		entry := &models.PermissionLog{
			NodeID:               node.ID,
			InvalidDepartmentIDs: invalidDepts,
			InvalidRankIDs:       invalidRanks,
			InvalidPositionIDs:   invalidPositions,
			Snapshot:             models.SnapshotOf(node),
			Action:               models.LogActionDetected,
			Note:                 detectionNote(invalidDepts, invalidRanks, invalidPositions, departments, ranks, positions),
			DetectedAt:           s.clock.Now(),
		}
		if err := s.logRepo.Create(ctx, entry); err != nil {
			// A concurrent sweep may have won the insert; the partial unique
			// index guarantees a single open entry either way.
			if errors.Is(err, domain.ErrConflict) {
				return nil
			}
			return err
		}
		stats.Detected++
		s.logger.Warn("stale permission references detected",
			"node_id", node.ID,
			"departments", invalidDepts, "ranks", invalidRanks, "positions", invalidPositions)

	case !stale && open != nil:
		err := s.logRepo.Resolve(ctx, open.ID, s.clock.Now(), nil, "all referenced identifiers resolve again")
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil
			}
			return err
		}
		stats.SystemResolved++
		s.logger.Info("stale permission entry system-resolved", "node_id", node.ID, "log_id", open.ID)
	}
	return nil
}

// detectionNote distinguishes soft-retired identifiers from ones the
// directory has never heard of, per category.
func detectionNote(depts, ranks, positions []string, deptSet, rankSet, positionSet identity.IDSet) string {
	var parts []string
	appendPart := func(label string, ids []string, set identity.IDSet) {
		for _, id := range ids {
			if set.Retired(id) {
				parts = append(parts, fmt.Sprintf("%s %s is deactivated", label, id))
			} else {
				parts = append(parts, fmt.Sprintf("%s %s is unknown", label, id))
			}
		}
	}
	appendPart("department", depts, deptSet)
	appendPart("rank", ranks, rankSet)
	appendPart("position", positions, positionSet)
	return strings.Join(parts, "; ")
}

func invalidIDs(ids []string, set identity.IDSet) []string {
	var invalid []string
	for _, id := range ids {
		if !set.Contains(id) {
			invalid = append(invalid, id)
		}
	}
	return invalid
}

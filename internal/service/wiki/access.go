package wiki

import (
	"context"
	"log/slog"

	models "arbor/internal/domain/models/wiki"
	wikiRepo "arbor/internal/domain/repositories/wiki"
	wikiSvc "arbor/internal/domain/services/wiki"
)

type accessService struct {
	nodeRepo wikiRepo.NodeRepository
	logger   *slog.Logger
}

// NewAccessService creates a new access resolution service.
func NewAccessService(nodeRepo wikiRepo.NodeRepository, logger *slog.Logger) wikiSvc.AccessService {
	return &accessService{nodeRepo: nodeRepo, logger: logger}
}

// Resolve computes the effective policy of a node.
//
// Files own nothing: a non-public file denies everyone outright, a public
// file defers to its nearest ancestor folder. Folders are always
// authoritative for themselves. A deferring file with no ancestor folder at
// all is open to everyone.
func (s *accessService) Resolve(ctx context.Context, nodeID string) (*models.EffectivePolicy, error) {
	if err := requireUUID("node_id", nodeID); err != nil {
		return nil, err
	}

	node, err := s.nodeRepo.GetByID(ctx, nodeID)
	if err != nil {
		return nil, err
	}

	if node.IsFile() {
		if !node.IsPublic {
			return &models.EffectivePolicy{DenyAll: true}, nil
		}

		ancestor, err := s.nodeRepo.NearestAncestorFolder(ctx, node.ID)
		if err != nil {
			return nil, err
		}
		if ancestor == nil {
			return &models.EffectivePolicy{AllowAll: true}, nil
		}

		policy := folderPolicy(ancestor)
		policy.IsInherited = true
		policy.InheritedFromID = &ancestor.ID
		policy.InheritedFrom = ancestor.Name
		return policy, nil
	}

	return folderPolicy(node), nil
}

// Check evaluates whether a principal may see a node.
func (s *accessService) Check(ctx context.Context, nodeID string, principal *models.Principal) (*models.AccessDecision, error) {
	policy, err := s.Resolve(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	return &models.AccessDecision{
		Allowed: policy.Permits(principal),
		Policy:  policy,
	}, nil
}

func folderPolicy(folder *models.Node) *models.EffectivePolicy {
	if folder.IsPublic {
		return &models.EffectivePolicy{AllowAll: true}
	}
	p := folder.Policy()
	return &models.EffectivePolicy{
		DepartmentIDs: p.DepartmentIDs,
		RankIDs:       p.RankIDs,
		PositionIDs:   p.PositionIDs,
	}
}

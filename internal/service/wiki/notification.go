package wiki

import (
	"context"
	"fmt"
	"log/slog"

	"arbor/internal/config"
	"arbor/internal/domain"
	models "arbor/internal/domain/models/wiki"
	wikiRepo "arbor/internal/domain/repositories/wiki"
	wikiSvc "arbor/internal/domain/services/wiki"
)

type notificationService struct {
	logRepo       wikiRepo.PermissionLogRepository
	dismissalRepo wikiRepo.DismissalRepository
	clock         Clock
	logger        *slog.Logger
}

// NewNotificationService creates a new notification service.
func NewNotificationService(
	logRepo wikiRepo.PermissionLogRepository,
	dismissalRepo wikiRepo.DismissalRepository,
	clock Clock,
	logger *slog.Logger,
) wikiSvc.NotificationService {
	return &notificationService{
		logRepo:       logRepo,
		dismissalRepo: dismissalRepo,
		clock:         clock,
		logger:        logger,
	}
}

func (s *notificationService) ListUnread(ctx context.Context, operatorID string) ([]models.PermissionLog, error) {
	if err := requireUUID("operator_id", operatorID); err != nil {
		return nil, err
	}
	return s.logRepo.ListUnresolvedExcludingDismissed(ctx, operatorID)
}

func (s *notificationService) ListLogs(ctx context.Context, resolved *bool, limit int) ([]models.PermissionLog, error) {
	if limit <= 0 {
		limit = config.DefaultLogListLimit
	}
	if limit > config.MaxLogListLimit {
		limit = config.MaxLogListLimit
	}
	return s.logRepo.List(ctx, resolved, limit)
}

// Dismiss suppresses log entries for one operator. Other operators keep
// seeing the entries; nothing on the log rows themselves changes.
func (s *notificationService) Dismiss(ctx context.Context, logIDs []string, operatorID string) (*models.DismissResult, error) {
	if err := requireUUID("operator_id", operatorID); err != nil {
		return nil, err
	}
	if len(logIDs) == 0 {
		return nil, fmt.Errorf("%w: no log ids given", domain.ErrValidation)
	}

	result := &models.DismissResult{}
	for _, logID := range logIDs {
		if err := requireUUID("log_id", logID); err != nil {
			result.NotFound++
			continue
		}
		exists, err := s.logRepo.Exists(ctx, logID)
		if err != nil {
			return nil, err
		}
		if !exists {
			result.NotFound++
			continue
		}

		inserted, err := s.dismissalRepo.Dismiss(ctx, &models.DismissedLog{
			LogType:     models.LogTypeWikiPermission,
			LogID:       logID,
			OperatorID:  operatorID,
			DismissedAt: s.clock.Now(),
		})
		if err != nil {
			return nil, err
		}
		if inserted {
			result.Dismissed++
		} else {
			result.AlreadyDismissed++
		}
	}

	s.logger.Info("logs dismissed",
		"operator", operatorID,
		"dismissed", result.Dismissed, "already_dismissed", result.AlreadyDismissed, "not_found", result.NotFound)
	return result, nil
}

package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/spacestore/internal/domain"
	"github.com/persistorai/spacestore/internal/models"
)

// Compile-time check: *ActivityService must satisfy domain.ActivityService.
var _ domain.ActivityService = (*ActivityService)(nil)

// ActivityService wraps an ActivityStore with logging for destructive operations.
type ActivityService struct {
	store domain.ActivityStore
	log   *logrus.Logger
}

// NewActivityService creates an ActivityService.
func NewActivityService(store domain.ActivityStore, log *logrus.Logger) *ActivityService {
	return &ActivityService{store: store, log: log}
}

// QueryActivity returns entries matching the given filters (pass-through).
func (s *ActivityService) QueryActivity(
	ctx context.Context, spaceID string, opts models.ActivityQueryOpts,
) ([]models.ActivityEntry, bool, error) {
	return s.store.QueryActivity(ctx, spaceID, opts)
}

// PurgeOldEntries deletes entries older than retentionDays and logs the result.
func (s *ActivityService) PurgeOldEntries(ctx context.Context, spaceID string, retentionDays int) (int, error) {
	deleted, err := s.store.PurgeOldEntries(ctx, spaceID, retentionDays)
	if err != nil {
		return 0, err
	}

	s.log.WithFields(logrus.Fields{
		"space":          spaceID,
		"retention_days": retentionDays,
		"deleted":        deleted,
	}).Info("activity.purge")

	return deleted, nil
}

// RunRetention purges entries of every space older than retentionDays once
// per interval until ctx is cancelled. Failures are logged and retried on the
// next tick.
func (s *ActivityService) RunRetention(ctx context.Context, retentionDays int, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.PurgeOldEntries(ctx, "", retentionDays); err != nil && ctx.Err() == nil {
				s.log.WithError(err).Warn("activity.purge.failed")
			}
		}
	}
}

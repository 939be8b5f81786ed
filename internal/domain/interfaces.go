// Package domain defines the canonical service and storage interfaces shared
// by the backends, the services and the CLI. Consumers should depend on these
// interfaces rather than re-declaring equivalent ones.
package domain

import (
	"context"

	"github.com/persistorai/spacestore/internal/engine"
	"github.com/persistorai/spacestore/internal/models"
)

// FeatureWriter performs logical feature writes.
type FeatureWriter interface {
	Write(ctx context.Context, req models.WriteRequest) (*engine.Result, error)
}

// FeatureReader reads stored versions. Missing records are reported as
// models.ErrRecordNotFound.
type FeatureReader interface {
	// GetHead returns the newest version, which may be a tombstone.
	GetHead(ctx context.Context, spaceID, featureID string) (*models.VersionRecord, error)
	GetVersion(ctx context.Context, spaceID, featureID string, version int64) (*models.VersionRecord, error)
	History(ctx context.Context, spaceID, featureID string, opts models.HistoryOpts) ([]models.VersionRecord, bool, error)
	// Predecessor returns the version rec superseded.
	Predecessor(ctx context.Context, spaceID string, rec *models.VersionRecord) (*models.VersionRecord, error)
}

// ActivityRecorder is the minimal interface for appending activity entries.
type ActivityRecorder interface {
	RecordActivity(ctx context.Context, entry *models.ActivityEntry) error
}

// ActivityStore defines activity log persistence.
type ActivityStore interface {
	ActivityRecorder
	QueryActivity(ctx context.Context, spaceID string, opts models.ActivityQueryOpts) ([]models.ActivityEntry, bool, error)
	PurgeOldEntries(ctx context.Context, spaceID string, retentionDays int) (int, error)
}

// FeatureService defines feature operations offered to callers.
type FeatureService interface {
	WriteFeature(ctx context.Context, req models.WriteRequest) (*engine.Result, error)
	GetFeature(ctx context.Context, spaceID, featureID string) (*models.VersionRecord, error)
	GetVersion(ctx context.Context, spaceID, featureID string, version int64) (*models.VersionRecord, error)
	History(ctx context.Context, spaceID, featureID string, opts models.HistoryOpts) ([]models.VersionRecord, bool, error)
}

// ActivityService defines activity log queries and maintenance.
type ActivityService interface {
	QueryActivity(ctx context.Context, spaceID string, opts models.ActivityQueryOpts) ([]models.ActivityEntry, bool, error)
	PurgeOldEntries(ctx context.Context, spaceID string, retentionDays int) (int, error)
}

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/persistorai/spacestore/internal/models"
)

// GetHead returns the head of a feature, which may be a tombstone.
func (s *FeatureStore) GetHead(ctx context.Context, spaceID, featureID string) (*models.VersionRecord, error) {
	return s.getOne(ctx,
		`SELECT `+recordColumns+` FROM features WHERE space_id = $1 AND id = $2 AND next_version = $3`,
		spaceID, featureID, models.HeadVersion,
	)
}

// GetVersion returns one specific version of a feature.
func (s *FeatureStore) GetVersion(ctx context.Context, spaceID, featureID string, version int64) (*models.VersionRecord, error) {
	return s.getOne(ctx,
		`SELECT `+recordColumns+` FROM features WHERE space_id = $1 AND id = $2 AND version = $3`,
		spaceID, featureID, version,
	)
}

// Predecessor returns the version superseded by rec.
func (s *FeatureStore) Predecessor(ctx context.Context, spaceID string, rec *models.VersionRecord) (*models.VersionRecord, error) {
	return s.getOne(ctx,
		`SELECT `+recordColumns+` FROM features WHERE space_id = $1 AND id = $2 AND next_version = $3`,
		spaceID, rec.ID, rec.Version,
	)
}

func (s *FeatureStore) getOne(ctx context.Context, query string, args ...any) (*models.VersionRecord, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginReadTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // read-only tx, rollback is a no-op.

	rec, err := scanRecord(tx.QueryRow(ctx, query, args...).Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading version: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing read: %w", err)
	}

	return rec, nil
}

// History returns versions of a feature, newest first, and whether more exist.
func (s *FeatureStore) History(
	ctx context.Context, spaceID, featureID string, opts models.HistoryOpts,
) ([]models.VersionRecord, bool, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	tx, err := s.beginReadTx(ctx)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // read-only tx, rollback is a no-op.

	rows, err := tx.Query(ctx,
		`SELECT `+recordColumns+` FROM features
		WHERE space_id = $1 AND id = $2
		ORDER BY version DESC
		LIMIT $3 OFFSET $4`,
		spaceID, featureID, limit+1, opts.Offset,
	)
	if err != nil {
		return nil, false, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	records, err := collectRecords(rows)
	if err != nil {
		return nil, false, err
	}

	hasMore := len(records) > limit
	if hasMore {
		records = records[:limit]
	}

	return records, hasMore, nil
}

// maxListLimit is a defense-in-depth cap on limit values for list queries.
const maxListLimit = 1000

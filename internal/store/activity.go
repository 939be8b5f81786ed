package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/persistorai/spacestore/internal/models"
)

// ActivityStore provides data access for the activity_log table.
type ActivityStore struct {
	Base
}

// NewActivityStore creates an ActivityStore.
func NewActivityStore(base Base) *ActivityStore {
	return &ActivityStore{Base: base}
}

// RecordActivity inserts an entry and fills in its sequence number and
// recording time.
func (s *ActivityStore) RecordActivity(ctx context.Context, entry *models.ActivityEntry) error {
	if entry.SpaceID == "" {
		return models.ErrMissingSpaceID
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	original, err := json.Marshal(entry.Original)
	if err != nil {
		return fmt.Errorf("marshaling activity original: %w", err)
	}

	var diff []byte
	if entry.Diff != nil {
		diff, err = json.Marshal(entry.Diff)
		if err != nil {
			return fmt.Errorf("marshaling activity diff: %w", err)
		}
	}

	err = s.Pool.QueryRow(ctx, `
		INSERT INTO activity_log (space_id, feature_id, uuid, version, action, original, diff)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING seq, recorded_at`,
		entry.SpaceID, entry.ID, entry.UUID, entry.Version, string(entry.Action), original, diff,
	).Scan(&entry.Seq, &entry.RecordedAt)
	if err != nil {
		return fmt.Errorf("inserting activity entry: %w", err)
	}

	return nil
}

// buildActivityFilter builds the WHERE clause and args from ActivityQueryOpts.
func buildActivityFilter(spaceID string, opts models.ActivityQueryOpts) (where string, args []any, nextArg int) {
	conditions := []string{"space_id = $1"}
	args = []any{spaceID}
	argIdx := 2

	if opts.FeatureID != "" {
		conditions = append(conditions, "feature_id = $"+strconv.Itoa(argIdx))
		args = append(args, opts.FeatureID)
		argIdx++
	}
	if opts.Action != "" {
		conditions = append(conditions, "action = $"+strconv.Itoa(argIdx))
		args = append(args, string(opts.Action))
		argIdx++
	}
	if opts.Since != nil {
		conditions = append(conditions, "recorded_at >= $"+strconv.Itoa(argIdx))
		args = append(args, *opts.Since)
		argIdx++
	}

	return "WHERE " + strings.Join(conditions, " AND "), args, argIdx
}

// QueryActivity returns entries matching the given filters, newest first.
// Returns entries, hasMore flag, and any error.
func (s *ActivityStore) QueryActivity(
	ctx context.Context, spaceID string, opts models.ActivityQueryOpts,
) ([]models.ActivityEntry, bool, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginReadTx(ctx)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // read-only tx, rollback is a no-op.

	where, args, argIdx := buildActivityFilter(spaceID, opts)

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	query := fmt.Sprintf(
		"SELECT %s FROM activity_log %s ORDER BY seq DESC LIMIT $%d OFFSET $%d",
		activityColumns, where, argIdx, argIdx+1,
	)
	args = append(args, limit+1, opts.Offset)

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("querying activity log: %w", err)
	}
	defer rows.Close()

	var entries []models.ActivityEntry
	for rows.Next() {
		e, err := scanActivity(rows.Scan)
		if err != nil {
			s.Log.WithError(err).Warn("failed to scan activity entry")
			continue
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterating activity rows: %w", err)
	}

	hasMore := len(entries) > limit
	if hasMore {
		entries = entries[:limit]
	}

	return entries, hasMore, nil
}

// purgeBatchSize limits the number of rows deleted per transaction to avoid
// holding long locks on activity_log.
const purgeBatchSize = 5000

// PurgeOldEntries deletes entries older than retentionDays in batches. An
// empty spaceID purges every space. Returns the number of deleted entries.
func (s *ActivityStore) PurgeOldEntries(ctx context.Context, spaceID string, retentionDays int) (int, error) {
	var totalDeleted int

	for {
		batchCtx, cancel := withTimeout(ctx)

		deleted, err := s.purgeOldEntriesBatch(batchCtx, spaceID, retentionDays)
		cancel()

		if err != nil {
			return totalDeleted, err
		}

		totalDeleted += deleted
		if deleted < purgeBatchSize {
			break
		}
	}

	return totalDeleted, nil
}

// purgeOldEntriesBatch deletes a single batch of expired entries.
func (s *ActivityStore) purgeOldEntriesBatch(ctx context.Context, spaceID string, retentionDays int) (int, error) {
	tag, err := s.Pool.Exec(ctx, `
		DELETE FROM activity_log WHERE seq IN (
			SELECT seq FROM activity_log
			WHERE recorded_at < now() - make_interval(days => $1)
			AND ($2::text = '' OR space_id = $2)
			LIMIT $3
		)`,
		retentionDays, spaceID, purgeBatchSize,
	)
	if err != nil {
		return 0, fmt.Errorf("purging activity entries: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/persistorai/spacestore/internal/engine"
	"github.com/persistorai/spacestore/internal/models"
)

// FeatureStore keeps feature versions in the features table. It implements
// engine.Backend and the history reads.
type FeatureStore struct {
	Base
}

var _ engine.Backend = (*FeatureStore)(nil)

// NewFeatureStore creates a new FeatureStore.
func NewFeatureStore(base Base) *FeatureStore {
	return &FeatureStore{Base: base}
}

// InTx runs fn in one transaction and announces the inserted versions after
// commit. Lost races surface as engine.ErrStaleHead.
func (s *FeatureStore) InTx(ctx context.Context, spaceID string, fn func(ctx context.Context, tx engine.Tx) error) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	ftx := &featureTx{tx: tx}
	if err := fn(ctx, ftx); err != nil {
		return staleOr(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return staleOr(fmt.Errorf("committing write: %w", err))
	}

	for _, rec := range ftx.inserted {
		s.notify(spaceID, rec.ID, rec.Version)
	}

	return nil
}

type featureTx struct {
	tx       pgx.Tx
	inserted []*models.VersionRecord
}

// Head locks the open head row so concurrent writers of the feature queue up.
//
// A writer queued on the lock skips the row once the winner supersedes it,
// so an empty result is only trusted when the feature has no versions at all.
// Otherwise the head moved and the write must start over.
func (t *featureTx) Head(ctx context.Context, spaceID, featureID string) (*models.VersionRecord, error) {
	row := t.tx.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM features
		WHERE space_id = $1 AND id = $2 AND next_version = $3
		FOR UPDATE`,
		spaceID, featureID, models.HeadVersion,
	)

	rec, err := scanRecord(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, t.checkAbsent(ctx, spaceID, featureID)
	}
	if err != nil {
		return nil, fmt.Errorf("reading head: %w", err)
	}

	return rec, nil
}

// checkAbsent returns engine.ErrStaleHead if any version of the feature is
// visible to a fresh statement snapshot.
func (t *featureTx) checkAbsent(ctx context.Context, spaceID, featureID string) error {
	var exists bool

	err := t.tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM features WHERE space_id = $1 AND id = $2)`,
		spaceID, featureID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking feature versions: %w", err)
	}

	if exists {
		return engine.ErrStaleHead
	}

	return nil
}

// NextVersion increments the space counter. The row lock it takes is held
// until commit, which serializes version allocation per space.
func (t *featureTx) NextVersion(ctx context.Context, spaceID string) (int64, error) {
	var version int64

	err := t.tx.QueryRow(ctx,
		`INSERT INTO spaces (id, version) VALUES ($1, 1)
		ON CONFLICT (id) DO UPDATE SET version = spaces.version + 1
		RETURNING version`,
		spaceID,
	).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("incrementing space version: %w", err)
	}

	return version, nil
}

func (t *featureTx) Supersede(ctx context.Context, spaceID, featureID string, headVersion, nextVersion int64) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE features SET next_version = $4
		WHERE space_id = $1 AND id = $2 AND version = $3 AND next_version = $5`,
		spaceID, featureID, headVersion, nextVersion, models.HeadVersion,
	)
	if err != nil {
		return fmt.Errorf("updating next_version: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return engine.ErrStaleHead
	}

	return nil
}

func (t *featureTx) Insert(ctx context.Context, spaceID string, rec *models.VersionRecord) error {
	data, err := rec.JSONData()
	if err != nil {
		return err
	}

	geo, err := rec.GeoText()
	if err != nil {
		return err
	}

	_, err = t.tx.Exec(ctx,
		`INSERT INTO features (space_id, id, version, next_version, operation, author, jsondata, geo)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		spaceID, rec.ID, rec.Version, rec.NextVersion, string(rec.Operation), rec.Author, data, geo,
	)
	if err != nil {
		return fmt.Errorf("inserting version: %w", err)
	}

	t.inserted = append(t.inserted, rec)

	return nil
}

// DeleteSpace removes every version, the counter and the activity log of a space.
func (s *FeatureStore) DeleteSpace(ctx context.Context, spaceID string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	for _, q := range []string{
		`DELETE FROM features WHERE space_id = $1`,
		`DELETE FROM activity_log WHERE space_id = $1`,
		`DELETE FROM spaces WHERE id = $1`,
	} {
		if _, err := tx.Exec(ctx, q, spaceID); err != nil {
			return fmt.Errorf("deleting space: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing delete space: %w", err)
	}

	s.Log.WithField("space", spaceID).Info("space.delete")

	return nil
}

package engine

import (
	"context"
	"errors"

	"github.com/persistorai/spacestore/internal/models"
)

// ErrStaleHead is returned by a Tx when the head it was asked to supersede
// or replace changed under it. The store retries the whole write.
var ErrStaleHead = errors.New("stale head")

// Tx is the persistence view of one write. All calls of one InTx callback
// commit or roll back together.
type Tx interface {
	// Head returns the current head of the feature, including a tombstone
	// head, or nil when the feature has no versions.
	Head(ctx context.Context, spaceID, featureID string) (*models.VersionRecord, error)

	// NextVersion allocates the next version number of the space.
	NextVersion(ctx context.Context, spaceID string) (int64, error)

	// Supersede closes the head at headVersion by setting its next_version.
	// It returns ErrStaleHead if that record is no longer the head.
	Supersede(ctx context.Context, spaceID, featureID string, headVersion, nextVersion int64) error

	// Insert persists rec as the new head. It returns ErrStaleHead if
	// another head for the feature exists.
	Insert(ctx context.Context, spaceID string, rec *models.VersionRecord) error
}

// Backend runs write transactions against a storage engine.
type Backend interface {
	InTx(ctx context.Context, spaceID string, fn func(ctx context.Context, tx Tx) error) error
}

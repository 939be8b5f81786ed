// Package store provides the PostgreSQL persistence of spacestore: the
// versioned feature table behind the write engine, the history reads and
// the activity log.
//
// Each store embeds shared helpers (Pool, logger) via the Base struct.
// Stores never import each other; shared logic lives in this file.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/spacestore/internal/dbpool"
	"github.com/persistorai/spacestore/internal/engine"
)

const defaultQueryTimeout = 30 * time.Second

// ChangeChannel is the LISTEN/NOTIFY channel announcing committed versions.
const ChangeChannel = "feature_changes"

// Base contains shared dependencies for all stores.
// Embed this in each store struct.
type Base struct {
	Pool *dbpool.Pool
	Log  *logrus.Logger
}

// withTimeout creates a context with the default query timeout.
func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, defaultQueryTimeout)
}

// beginTx starts a read-write transaction.
func (b *Base) beginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := b.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}

	return tx, nil
}

// beginReadTx starts a read-only transaction.
func (b *Base) beginReadTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := b.Pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("beginning read transaction: %w", err)
	}

	return tx, nil
}

// ChangePayload is the JSON payload sent on ChangeChannel.
type ChangePayload struct {
	Space   string `json:"space"`
	ID      string `json:"id"`
	Version int64  `json:"version"`
}

// notify sends a pg_notify on the change channel (best-effort, post-commit).
func (b *Base) notify(spaceID, featureID string, version int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	payload, _ := json.Marshal(ChangePayload{Space: spaceID, ID: featureID, Version: version}) //nolint:errcheck // plain struct, cannot fail.
	if _, err := b.Pool.Exec(ctx, "SELECT pg_notify($1, $2)", ChangeChannel, string(payload)); err != nil {
		b.Log.WithError(err).WithField("space", spaceID).Warn("failed to send feature change notification")
	}
}

// Postgres error codes that mean a concurrent writer changed the head.
const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// staleOr marks err as engine.ErrStaleHead when it reports a lost race.
func staleOr(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case codeUniqueViolation, codeSerializationFailure, codeDeadlockDetected:
		return fmt.Errorf("%w: %w", engine.ErrStaleHead, err)
	default:
		return err
	}
}

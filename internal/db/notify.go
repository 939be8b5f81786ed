package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/spacestore/internal/dbpool"
	"github.com/persistorai/spacestore/internal/service"
	"github.com/persistorai/spacestore/internal/store"
)

// validChannel matches safe PostgreSQL LISTEN channel names.
var validChannel = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const (
	initialBackoff    = 1 * time.Second
	maxBackoff        = 30 * time.Second
	backoffMultiplier = 2
)

// ActivityEnqueuer accepts activity jobs for recording.
type ActivityEnqueuer interface {
	Enqueue(job *service.ActivityJob)
}

// NotifyBridge subscribes to PostgreSQL LISTEN/NOTIFY on the feature change
// channel and hands each committed version to the activity worker. It lets
// the activity log follow writers running in other processes.
type NotifyBridge struct {
	log     *logrus.Logger
	pool    *dbpool.Pool
	worker  ActivityEnqueuer
	channel string
}

// NewNotifyBridge creates a NotifyBridge wired to the given pool and worker.
func NewNotifyBridge(log *logrus.Logger, pool *dbpool.Pool, worker ActivityEnqueuer) *NotifyBridge {
	return &NotifyBridge{
		log:     log,
		pool:    pool,
		worker:  worker,
		channel: store.ChangeChannel,
	}
}

// Run verifies the connection, then listens until ctx is cancelled,
// reconnecting with backoff. It returns an error only if the initial check
// fails.
func (b *NotifyBridge) Run(ctx context.Context) error {
	if !validChannel.MatchString(b.channel) {
		return fmt.Errorf("notify bridge: invalid channel name %q", b.channel)
	}

	if err := b.pool.Ping(ctx); err != nil {
		return fmt.Errorf("notify bridge: database not reachable: %w", err)
	}

	b.listen(ctx)

	return nil
}

// listen is the main loop that acquires a connection, subscribes to the
// channel, and processes notifications until the context is cancelled.
func (b *NotifyBridge) listen(ctx context.Context) {
	backoff := initialBackoff

	for {
		if ctx.Err() != nil {
			return
		}

		err := b.subscribeAndForward(ctx)
		if err == nil || ctx.Err() != nil {
			return
		}

		b.log.WithError(err).WithField("retry_in", backoff).
			Warn("notify bridge connection lost, reconnecting")

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		backoff = nextBackoff(backoff)
	}
}

// subscribeAndForward acquires a connection, issues LISTEN, and blocks on
// notifications until the connection fails or the context is cancelled.
func (b *NotifyBridge) subscribeAndForward(ctx context.Context) error {
	conn, err := b.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquiring connection: %w", err)
	}
	defer conn.Release()

	// LISTEN requires the channel name inline (not a parameter), so we use
	// pgx.Identifier to safely quote/sanitize the channel name.
	sanitizedChannel := pgx.Identifier{b.channel}.Sanitize()
	if _, err := conn.Exec(ctx, "LISTEN "+sanitizedChannel); err != nil {
		return fmt.Errorf("executing LISTEN: %w", err)
	}

	b.log.WithField("channel", b.channel).Info("notify bridge listening")

	for {
		// Set a 2-minute read deadline so we periodically check ctx cancellation.
		if err := conn.Conn().PgConn().Conn().SetReadDeadline(time.Now().Add(2 * time.Minute)); err != nil {
			return fmt.Errorf("setting read deadline: %w", err)
		}

		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			// On timeout, loop back to check context and retry.
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}

			return fmt.Errorf("waiting for notification: %w", err)
		}

		b.handleNotification(notification)
	}
}

// handleNotification turns one change payload into an activity job. The
// worker loads the version and its predecessor itself.
func (b *NotifyBridge) handleNotification(n *pgconn.Notification) {
	b.log.WithFields(logrus.Fields{
		"channel": n.Channel,
		"pid":     n.PID,
	}).Debug("notification received")

	job, err := parseChange(n.Payload)
	if err != nil {
		b.log.WithError(err).Warn("dropping malformed change notification")
		return
	}

	b.worker.Enqueue(job)
}

func parseChange(payload string) (*service.ActivityJob, error) {
	var p store.ChangePayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}

	if p.Space == "" || p.ID == "" || p.Version < 1 {
		return nil, fmt.Errorf("incomplete payload %q", payload)
	}

	return &service.ActivityJob{SpaceID: p.Space, FeatureID: p.ID, Version: p.Version}, nil
}

// nextBackoff doubles the current backoff duration with random jitter (±25%),
// capped at maxBackoff. Jitter prevents thundering herd on reconnect.
func nextBackoff(current time.Duration) time.Duration {
	next := current * backoffMultiplier
	if next > maxBackoff {
		next = maxBackoff
	}

	// Add ±25% jitter.
	jitter := float64(next) * (0.75 + rand.Float64()*0.5) //nolint:gosec // jitter doesn't need crypto rand.

	return time.Duration(jitter)
}

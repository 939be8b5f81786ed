package kvstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/spacestore/internal/models"
)

// purgeBatchSize limits the number of keys deleted per transaction.
const purgeBatchSize = 1000

// ActivityStore keeps the activity log in Badger, append-only per space.
type ActivityStore struct {
	db  *DB
	log *logrus.Logger
	mu  sync.Mutex
}

// NewActivityStore creates an ActivityStore on db.
func NewActivityStore(db *DB, log *logrus.Logger) *ActivityStore {
	return &ActivityStore{db: db, log: log}
}

// RecordActivity appends entry to its space's log and assigns its sequence number.
func (s *ActivityStore) RecordActivity(_ context.Context, entry *models.ActivityEntry) error {
	if entry.SpaceID == "" {
		return models.ErrMissingSpaceID
	}
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		seq, err := incrementCounter(txn, activitySeqKey(entry.SpaceID))
		if err != nil {
			return err
		}
		entry.Seq = seq

		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("encoding activity entry: %w", err)
		}

		if err := txn.Set(activityEntryKey(entry.SpaceID, seq), data); err != nil {
			return fmt.Errorf("writing activity entry: %w", err)
		}

		return nil
	})
}

// QueryActivity returns entries of a space matching opts, newest first,
// and whether more exist.
func (s *ActivityStore) QueryActivity(_ context.Context, spaceID string, opts models.ActivityQueryOpts) ([]models.ActivityEntry, bool, error) {
	limit := clampLimit(opts.Limit)
	var entries []models.ActivityEntry

	err := s.db.View(func(txn *badger.Txn) error {
		prefix := activityEntryPrefix(spaceID)
		itOpts := badger.DefaultIteratorOptions
		itOpts.Reverse = true
		itOpts.Prefix = prefix
		it := txn.NewIterator(itOpts)
		defer it.Close()

		skipped := 0
		for it.Seek(activityEntryKey(spaceID, math.MaxInt64)); it.ValidForPrefix(prefix); it.Next() {
			var e models.ActivityEntry
			if err := it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &e) }); err != nil {
				s.log.WithError(err).Warn("failed to decode activity entry")
				continue
			}

			if !matches(&e, opts) {
				continue
			}
			if skipped < opts.Offset {
				skipped++
				continue
			}

			e.SpaceID = spaceID
			entries = append(entries, e)
			if len(entries) > limit {
				break
			}
		}

		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("querying activity log: %w", err)
	}

	hasMore := len(entries) > limit
	if hasMore {
		entries = entries[:limit]
	}

	return entries, hasMore, nil
}

func matches(e *models.ActivityEntry, opts models.ActivityQueryOpts) bool {
	if opts.FeatureID != "" && e.ID != opts.FeatureID {
		return false
	}
	if opts.Action != "" && e.Action != opts.Action {
		return false
	}
	if opts.Since != nil && e.RecordedAt.Before(*opts.Since) {
		return false
	}

	return true
}

// PurgeOldEntries deletes entries older than retentionDays. An empty
// spaceID purges every space. Returns the number of deleted entries.
func (s *ActivityStore) PurgeOldEntries(ctx context.Context, spaceID string, retentionDays int) (int, error) {
	cutoff := time.Now().Add(-time.Duration(retentionDays) * 24 * time.Hour)

	prefix := []byte("a" + sep)
	if spaceID != "" {
		prefix = activityEntryPrefix(spaceID)
	}

	var total int
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		keys, err := s.expiredKeys(prefix, cutoff)
		if err != nil {
			return total, err
		}
		if len(keys) == 0 {
			return total, nil
		}

		err = s.db.Update(func(txn *badger.Txn) error {
			for _, k := range keys {
				if err := txn.Delete(k); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return total, fmt.Errorf("purging activity entries: %w", err)
		}

		total += len(keys)
		if len(keys) < purgeBatchSize {
			return total, nil
		}
	}
}

// expiredKeys collects up to purgeBatchSize entry keys recorded before cutoff.
func (s *ActivityStore) expiredKeys(prefix []byte, cutoff time.Time) ([][]byte, error) {
	var keys [][]byte

	err := s.db.View(func(txn *badger.Txn) error {
		itOpts := badger.DefaultIteratorOptions
		itOpts.Prefix = prefix
		it := txn.NewIterator(itOpts)
		defer it.Close()

		for it.Rewind(); it.Valid() && len(keys) < purgeBatchSize; it.Next() {
			item := it.Item()
			if !isEntryKey(item.Key()) {
				continue
			}

			var e struct {
				RecordedAt time.Time `json:"recorded_at"`
			}
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &e) }); err != nil {
				return err
			}
			if e.RecordedAt.Before(cutoff) {
				keys = append(keys, item.KeyCopy(nil))
			}
		}

		return nil
	})
	if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("scanning activity entries: %w", err)
	}

	return keys, nil
}

// isEntryKey tells entry keys apart from the per-space sequence counters
// that share the activity prefix.
func isEntryKey(key []byte) bool {
	rest := key[2:] // "a\0"
	i := bytes.IndexByte(rest, 0)
	if i < 0 {
		return false
	}

	return bytes.HasPrefix(rest[i+1:], []byte("e"+sep))
}

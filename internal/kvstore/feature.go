package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/spacestore/internal/engine"
	"github.com/persistorai/spacestore/internal/models"
)

// recordRow is the stored form of a version, named after the persisted columns.
type recordRow struct {
	ID          string          `json:"id"`
	Version     int64           `json:"version"`
	NextVersion int64           `json:"next_version"`
	Operation   string          `json:"operation"`
	Author      string          `json:"author"`
	JSONData    json.RawMessage `json:"jsondata"`
	Geo         *string         `json:"geo,omitempty"`
}

func encodeRecord(rec *models.VersionRecord) ([]byte, error) {
	data, err := rec.JSONData()
	if err != nil {
		return nil, err
	}

	geo, err := rec.GeoText()
	if err != nil {
		return nil, err
	}

	return json.Marshal(recordRow{
		ID:          rec.ID,
		Version:     rec.Version,
		NextVersion: rec.NextVersion,
		Operation:   string(rec.Operation),
		Author:      rec.Author,
		JSONData:    data,
		Geo:         geo,
	})
}

func decodeRecord(b []byte) (*models.VersionRecord, error) {
	var row recordRow
	if err := json.Unmarshal(b, &row); err != nil {
		return nil, fmt.Errorf("decoding record: %w", err)
	}

	rec := &models.VersionRecord{
		ID:          row.ID,
		Version:     row.Version,
		NextVersion: row.NextVersion,
		Operation:   models.Operation(row.Operation),
		Author:      row.Author,
	}
	if err := rec.SetJSONData(row.JSONData); err != nil {
		return nil, err
	}
	if err := rec.SetGeoText(row.Geo); err != nil {
		return nil, err
	}

	return rec, nil
}

// FeatureStore keeps feature versions in Badger. It implements
// engine.Backend and the history reads.
type FeatureStore struct {
	db    *DB
	log   *logrus.Logger
	locks sync.Map // space id -> *sync.Mutex
}

var _ engine.Backend = (*FeatureStore)(nil)

// NewFeatureStore creates a FeatureStore on db.
func NewFeatureStore(db *DB, log *logrus.Logger) *FeatureStore {
	return &FeatureStore{db: db, log: log}
}

func (s *FeatureStore) spaceLock(spaceID string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(spaceID, &sync.Mutex{})

	return mu.(*sync.Mutex) //nolint:forcetypeassert // only *sync.Mutex is stored.
}

// InTx runs fn in a read-write transaction. Writes to one space are
// serialized, which also serializes the version counter.
func (s *FeatureStore) InTx(ctx context.Context, spaceID string, fn func(ctx context.Context, tx engine.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	mu := s.spaceLock(spaceID)
	mu.Lock()
	defer mu.Unlock()

	err := s.db.Update(func(txn *badger.Txn) error {
		return fn(ctx, &featureTx{txn: txn})
	})
	if errors.Is(err, badger.ErrConflict) {
		return fmt.Errorf("%w: %v", engine.ErrStaleHead, err)
	}

	return err
}

type featureTx struct {
	txn *badger.Txn
}

func (t *featureTx) Head(_ context.Context, spaceID, featureID string) (*models.VersionRecord, error) {
	return loadHead(t.txn, spaceID, featureID)
}

func (t *featureTx) NextVersion(_ context.Context, spaceID string) (int64, error) {
	return incrementCounter(t.txn, seqKey(spaceID))
}

func (t *featureTx) Supersede(_ context.Context, spaceID, featureID string, headVersion, nextVersion int64) error {
	head, err := loadHead(t.txn, spaceID, featureID)
	if err != nil {
		return err
	}
	if head == nil || head.Version != headVersion || !head.IsHead() {
		return engine.ErrStaleHead
	}

	head.NextVersion = nextVersion

	return putRecord(t.txn, spaceID, head)
}

func (t *featureTx) Insert(_ context.Context, spaceID string, rec *models.VersionRecord) error {
	head, err := loadHead(t.txn, spaceID, rec.ID)
	if err != nil {
		return err
	}
	if head != nil && head.IsHead() {
		return engine.ErrStaleHead
	}

	if err := putRecord(t.txn, spaceID, rec); err != nil {
		return err
	}

	if err := t.txn.Set(headKey(spaceID, rec.ID), encodeCounter(rec.Version)); err != nil {
		return fmt.Errorf("setting head pointer: %w", err)
	}

	return nil
}

func putRecord(txn *badger.Txn, spaceID string, rec *models.VersionRecord) error {
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}

	if err := txn.Set(recordKey(spaceID, rec.ID, rec.Version), data); err != nil {
		return fmt.Errorf("writing version %d: %w", rec.Version, err)
	}

	return nil
}

// loadHead follows the head pointer. It returns nil when the feature has
// no versions.
func loadHead(txn *badger.Txn, spaceID, featureID string) (*models.VersionRecord, error) {
	item, err := txn.Get(headKey(spaceID, featureID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading head pointer: %w", err)
	}

	ptr, err := item.ValueCopy(nil)
	if err != nil {
		return nil, fmt.Errorf("reading head pointer: %w", err)
	}

	rec, err := loadVersion(txn, spaceID, featureID, decodeCounter(ptr))
	if errors.Is(err, models.ErrRecordNotFound) {
		return nil, fmt.Errorf("head pointer of %s references missing version: %w", featureID, err)
	}

	return rec, err
}

func loadVersion(txn *badger.Txn, spaceID, featureID string, version int64) (*models.VersionRecord, error) {
	item, err := txn.Get(recordKey(spaceID, featureID, version))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, models.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading version %d: %w", version, err)
	}

	var rec *models.VersionRecord
	err = item.Value(func(val []byte) error {
		var decErr error
		rec, decErr = decodeRecord(val)
		return decErr
	})

	return rec, err
}

func incrementCounter(txn *badger.Txn, key []byte) (int64, error) {
	var current int64

	item, err := txn.Get(key)
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
	case err != nil:
		return 0, fmt.Errorf("reading counter: %w", err)
	default:
		b, err := item.ValueCopy(nil)
		if err != nil {
			return 0, fmt.Errorf("reading counter: %w", err)
		}
		current = decodeCounter(b)
	}

	next := current + 1
	if err := txn.Set(key, encodeCounter(next)); err != nil {
		return 0, fmt.Errorf("writing counter: %w", err)
	}

	return next, nil
}

// GetHead returns the head of a feature, which may be a tombstone.
func (s *FeatureStore) GetHead(_ context.Context, spaceID, featureID string) (*models.VersionRecord, error) {
	var rec *models.VersionRecord

	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = loadHead(txn, spaceID, featureID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, models.ErrRecordNotFound
	}

	return rec, nil
}

// GetVersion returns one specific version of a feature.
func (s *FeatureStore) GetVersion(_ context.Context, spaceID, featureID string, version int64) (*models.VersionRecord, error) {
	var rec *models.VersionRecord

	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = loadVersion(txn, spaceID, featureID, version)
		return err
	})

	return rec, err
}

// History returns versions of a feature, newest first, and whether more exist.
func (s *FeatureStore) History(_ context.Context, spaceID, featureID string, opts models.HistoryOpts) ([]models.VersionRecord, bool, error) {
	limit := clampLimit(opts.Limit)
	var out []models.VersionRecord

	err := s.db.View(func(txn *badger.Txn) error {
		prefix := recordPrefix(spaceID, featureID)
		itOpts := badger.DefaultIteratorOptions
		itOpts.Reverse = true
		itOpts.Prefix = prefix
		it := txn.NewIterator(itOpts)
		defer it.Close()

		skipped := 0
		for it.Seek(recordKey(spaceID, featureID, math.MaxInt64)); it.ValidForPrefix(prefix); it.Next() {
			if skipped < opts.Offset {
				skipped++
				continue
			}
			if len(out) > limit {
				break
			}

			var rec *models.VersionRecord
			err := it.Item().Value(func(val []byte) error {
				var decErr error
				rec, decErr = decodeRecord(val)
				return decErr
			})
			if err != nil {
				return err
			}
			out = append(out, *rec)
		}

		return nil
	})
	if err != nil {
		return nil, false, err
	}

	hasMore := len(out) > limit
	if hasMore {
		out = out[:limit]
	}

	return out, hasMore, nil
}

// Predecessor returns the version superseded by rec.
func (s *FeatureStore) Predecessor(_ context.Context, spaceID string, rec *models.VersionRecord) (*models.VersionRecord, error) {
	if rec.Version <= 1 {
		return nil, models.ErrRecordNotFound
	}

	var prev *models.VersionRecord

	err := s.db.View(func(txn *badger.Txn) error {
		prefix := recordPrefix(spaceID, rec.ID)
		itOpts := badger.DefaultIteratorOptions
		itOpts.Reverse = true
		itOpts.Prefix = prefix
		it := txn.NewIterator(itOpts)
		defer it.Close()

		it.Seek(recordKey(spaceID, rec.ID, rec.Version-1))
		if !it.ValidForPrefix(prefix) {
			return models.ErrRecordNotFound
		}

		return it.Item().Value(func(val []byte) error {
			var decErr error
			prev, decErr = decodeRecord(val)
			return decErr
		})
	})
	if err != nil {
		return nil, err
	}

	if prev.NextVersion != rec.Version {
		return nil, models.ErrRecordNotFound
	}

	return prev, nil
}

// maxListLimit caps page sizes of history and activity queries.
const maxListLimit = 1000

func clampLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > maxListLimit {
		return maxListLimit
	}

	return limit
}

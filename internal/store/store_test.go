package store_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/spacestore/internal/db"
	"github.com/persistorai/spacestore/internal/dbpool"
	"github.com/persistorai/spacestore/internal/engine"
	"github.com/persistorai/spacestore/internal/models"
	"github.com/persistorai/spacestore/internal/store"
)

// testEnv holds shared test infrastructure (single pool across all tests).
type testEnv struct {
	pool *dbpool.Pool
	log  *logrus.Logger
}

var (
	sharedEnv  *testEnv
	sharedOnce sync.Once
	sharedErr  error
)

func getTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	sharedOnce.Do(func() {
		ctx := context.Background()

		log := logrus.New()
		log.SetLevel(logrus.ErrorLevel)

		pool, err := dbpool.NewPool(ctx, dbURL, dbpool.DefaultMaxConns)
		if err != nil {
			sharedErr = err
			return
		}

		if err := db.Migrate(ctx, pool, log); err != nil {
			sharedErr = err
			return
		}

		sharedEnv = &testEnv{pool: pool, log: log}
	})
	if sharedErr != nil {
		t.Fatalf("setting up test DB: %v", sharedErr)
	}

	return sharedEnv
}

// setupTestSpace returns a Base and a fresh space id, removed after the test.
func setupTestSpace(t *testing.T) (store.Base, string) {
	t.Helper()

	env := getTestEnv(t)
	base := store.Base{Pool: env.pool, Log: env.log}
	spaceID := "test-" + uuid.NewString()

	t.Cleanup(func() {
		if err := store.NewFeatureStore(base).DeleteSpace(context.Background(), spaceID); err != nil {
			t.Logf("cleanup: %v", err)
		}
	})

	return base, spaceID
}

func writeFeature(t *testing.T, eng *engine.Store, spaceID string, req models.WriteRequest) *engine.Result {
	t.Helper()

	req.SpaceID = spaceID
	res, err := eng.Write(context.Background(), req)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	return res
}

func alice() models.Feature {
	return models.Feature{
		ID:         "id1",
		Geometry:   geojson.NewGeometry(orb.Point{8, 50}),
		Properties: map[string]any{"firstName": "Alice", "age": 35},
	}
}

func TestFeatureStore_WriteAndRead(t *testing.T) {
	base, spaceID := setupTestSpace(t)
	fs := store.NewFeatureStore(base)
	eng := engine.New(fs, base.Log, engine.Options{})
	ctx := context.Background()

	first := writeFeature(t, eng, spaceID, models.WriteRequest{Feature: alice()})
	if first.Record.Version != 1 {
		t.Fatalf("first version = %d, want 1", first.Record.Version)
	}

	second := writeFeature(t, eng, spaceID, models.WriteRequest{
		Feature: models.Feature{ID: "id1", Properties: map[string]any{"age": 36}},
		Partial: true,
	})
	if second.Record.Version != 2 {
		t.Fatalf("second version = %d, want 2", second.Record.Version)
	}

	head, err := fs.GetHead(ctx, spaceID, "id1")
	if err != nil {
		t.Fatalf("GetHead: %v", err)
	}
	if head.Version != 2 || head.Operation != models.OpUpdate {
		t.Errorf("head = v%d %s, want v2 U", head.Version, head.Operation)
	}
	if head.Properties["firstName"] != "Alice" {
		t.Errorf("firstName = %v, want Alice", head.Properties["firstName"])
	}
	if head.Geometry == nil {
		t.Fatal("patched head lost its geometry")
	}
	if head.Namespace.PUUID != first.Record.Namespace.UUID {
		t.Errorf("puuid = %q, want %q", head.Namespace.PUUID, first.Record.Namespace.UUID)
	}

	prev, err := fs.Predecessor(ctx, spaceID, head)
	if err != nil {
		t.Fatalf("Predecessor: %v", err)
	}
	if prev.Version != 1 || prev.NextVersion != 2 {
		t.Errorf("predecessor = v%d next %d, want v1 next 2", prev.Version, prev.NextVersion)
	}

	if _, err := fs.Predecessor(ctx, spaceID, prev); !errors.Is(err, models.ErrRecordNotFound) {
		t.Errorf("Predecessor of first version: err = %v, want ErrRecordNotFound", err)
	}

	history, hasMore, err := fs.History(ctx, spaceID, "id1", models.HistoryOpts{Limit: 1})
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 || !hasMore || history[0].Version != 2 {
		t.Errorf("History(limit 1) = %d records, hasMore %v", len(history), hasMore)
	}

	if _, err := fs.GetHead(ctx, spaceID, "missing"); !errors.Is(err, models.ErrRecordNotFound) {
		t.Errorf("GetHead(missing): err = %v, want ErrRecordNotFound", err)
	}
}

func TestFeatureStore_DeleteLeavesTombstone(t *testing.T) {
	base, spaceID := setupTestSpace(t)
	fs := store.NewFeatureStore(base)
	eng := engine.New(fs, base.Log, engine.Options{})

	writeFeature(t, eng, spaceID, models.WriteRequest{Feature: alice()})
	res := writeFeature(t, eng, spaceID, models.WriteRequest{Feature: models.Feature{ID: "id1"}, Delete: true})
	if res.Record.Operation != models.OpDelete {
		t.Fatalf("operation = %s, want D", res.Record.Operation)
	}

	head, err := fs.GetHead(context.Background(), spaceID, "id1")
	if err != nil {
		t.Fatalf("GetHead: %v", err)
	}
	if !head.IsTombstone() || !head.IsHead() {
		t.Errorf("head = %+v, want open tombstone", head)
	}

	again := writeFeature(t, eng, spaceID, models.WriteRequest{Feature: alice()})
	if again.Record.Operation != models.OpInsert || again.Record.Version != 3 {
		t.Errorf("re-insert = v%d %s, want v3 I", again.Record.Version, again.Record.Operation)
	}
}

func TestFeatureStore_ConcurrentWritersSameFeature(t *testing.T) {
	base, spaceID := setupTestSpace(t)
	fs := store.NewFeatureStore(base)
	eng := engine.New(fs, base.Log, engine.Options{})

	writeFeature(t, eng, spaceID, models.WriteRequest{Feature: alice()})

	const writers = 8
	base1 := int64(1)

	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = eng.Write(context.Background(), models.WriteRequest{
				SpaceID:           spaceID,
				Feature:           models.Feature{ID: "id1", Properties: map[string]any{"writer": i}},
				BaseVersion:       &base1,
				OnVersionConflict: models.ConflictError,
			})
		}()
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		switch {
		case err == nil:
			winners++
		case models.CodeOf(err) != models.CodeVersionConflict:
			t.Errorf("loser err = %v, want VersionConflictError", err)
		}
	}
	if winners != 1 {
		t.Errorf("winners = %d, want 1", winners)
	}

	history, _, err := fs.History(context.Background(), spaceID, "id1", models.HistoryOpts{})
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 {
		t.Errorf("history has %d versions, want 2", len(history))
	}
}

func TestFeatureStore_ConcurrentUpdatesRequireExisting(t *testing.T) {
	base, spaceID := setupTestSpace(t)
	fs := store.NewFeatureStore(base)
	eng := engine.New(fs, base.Log, engine.Options{MaxAttempts: 10})

	writeFeature(t, eng, spaceID, models.WriteRequest{Feature: alice()})

	const writers = 6

	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = eng.Write(context.Background(), models.WriteRequest{
				SpaceID:     spaceID,
				Feature:     models.Feature{ID: "id1", Properties: map[string]any{"writer": i}},
				OnNotExists: models.NotExistsError,
			})
		}()
	}
	wg.Wait()

	written := 0
	for _, err := range errs {
		switch {
		case err == nil:
			written++
		case models.CodeOf(err) != models.CodeVersionConflict:
			t.Errorf("err = %v, want success or VersionConflictError", err)
		}
	}
	if written == 0 {
		t.Fatal("no writer succeeded")
	}

	history, _, err := fs.History(context.Background(), spaceID, "id1", models.HistoryOpts{})
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != written+1 {
		t.Errorf("history has %d versions, want %d", len(history), written+1)
	}
}

func TestFeatureStore_ConcurrentInsertsDistinctFeatures(t *testing.T) {
	base, spaceID := setupTestSpace(t)
	fs := store.NewFeatureStore(base)
	eng := engine.New(fs, base.Log, engine.Options{MaxAttempts: 5})

	const writers = 10

	var wg sync.WaitGroup
	versions := make([]int64, writers)
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := eng.Write(context.Background(), models.WriteRequest{
				SpaceID: spaceID,
				Feature: models.Feature{ID: uuid.NewString(), Properties: map[string]any{}},
			})
			if err != nil {
				t.Errorf("Write: %v", err)
				return
			}
			versions[i] = res.Record.Version
		}()
	}
	wg.Wait()

	seen := make(map[int64]bool, writers)
	for _, v := range versions {
		if seen[v] {
			t.Errorf("version %d allocated twice", v)
		}
		seen[v] = true
	}
}

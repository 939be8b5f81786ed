package service

import (
	"context"
	"sync"

	"github.com/persistorai/spacestore/internal/engine"
	"github.com/persistorai/spacestore/internal/models"
)

// mockWriter records write requests and returns configured responses.
type mockWriter struct {
	mu    sync.Mutex
	calls []models.WriteRequest

	write func(ctx context.Context, req models.WriteRequest) (*engine.Result, error)
}

func (m *mockWriter) Write(ctx context.Context, req models.WriteRequest) (*engine.Result, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()
	return m.write(ctx, req)
}

// mockReader returns configured responses for version reads.
type mockReader struct {
	mu    sync.Mutex
	calls []string

	getHead     func(ctx context.Context, spaceID, featureID string) (*models.VersionRecord, error)
	getVersion  func(ctx context.Context, spaceID, featureID string, version int64) (*models.VersionRecord, error)
	history     func(ctx context.Context, spaceID, featureID string, opts models.HistoryOpts) ([]models.VersionRecord, bool, error)
	predecessor func(ctx context.Context, spaceID string, rec *models.VersionRecord) (*models.VersionRecord, error)
}

func (m *mockReader) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, name)
}

func (m *mockReader) getCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]string, len(m.calls))
	copy(cp, m.calls)
	return cp
}

func (m *mockReader) GetHead(ctx context.Context, spaceID, featureID string) (*models.VersionRecord, error) {
	m.record("GetHead")
	return m.getHead(ctx, spaceID, featureID)
}

func (m *mockReader) GetVersion(ctx context.Context, spaceID, featureID string, version int64) (*models.VersionRecord, error) {
	m.record("GetVersion")
	return m.getVersion(ctx, spaceID, featureID, version)
}

func (m *mockReader) History(ctx context.Context, spaceID, featureID string, opts models.HistoryOpts) ([]models.VersionRecord, bool, error) {
	m.record("History")
	return m.history(ctx, spaceID, featureID, opts)
}

func (m *mockReader) Predecessor(ctx context.Context, spaceID string, rec *models.VersionRecord) (*models.VersionRecord, error) {
	m.record("Predecessor")
	return m.predecessor(ctx, spaceID, rec)
}

// mockRecorder records activity entries.
type mockRecorder struct {
	mu      sync.Mutex
	entries []models.ActivityEntry
	err     error
}

func (m *mockRecorder) RecordActivity(_ context.Context, entry *models.ActivityEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *mockRecorder) getEntries() []models.ActivityEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]models.ActivityEntry, len(m.entries))
	copy(cp, m.entries)
	return cp
}

// mockActivityStore is a recorder with canned query and purge responses.
type mockActivityStore struct {
	mockRecorder
	queryOpts models.ActivityQueryOpts
	purged    int
	purgeErr  error

	purgeCalls int
	purgeSpace string
}

func (m *mockActivityStore) QueryActivity(_ context.Context, _ string, opts models.ActivityQueryOpts) ([]models.ActivityEntry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queryOpts = opts
	return m.entries, false, nil
}

func (m *mockActivityStore) PurgeOldEntries(_ context.Context, spaceID string, _ int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purgeCalls++
	m.purgeSpace = spaceID
	return m.purged, m.purgeErr
}

func (m *mockActivityStore) getPurgeCalls() (int, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.purgeCalls, m.purgeSpace
}

// mockEnqueuer captures enqueued activity jobs.
type mockEnqueuer struct {
	mu   sync.Mutex
	jobs []*ActivityJob
}

func (m *mockEnqueuer) Enqueue(job *ActivityJob) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = append(m.jobs, job)
}

func (m *mockEnqueuer) getJobs() []*ActivityJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]*ActivityJob, len(m.jobs))
	copy(cp, m.jobs)
	return cp
}

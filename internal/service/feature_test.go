package service

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/persistorai/spacestore/internal/conflict"
	"github.com/persistorai/spacestore/internal/engine"
	"github.com/persistorai/spacestore/internal/models"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	return log
}

func TestFeatureService_WriteFeature(t *testing.T) {
	prev := &models.VersionRecord{ID: "f1", Version: 1, Operation: models.OpInsert}
	next := &models.VersionRecord{ID: "f1", Version: 2, Operation: models.OpUpdate}

	tests := []struct {
		name     string
		result   *engine.Result
		err      error
		wantErr  bool
		wantJobs int
	}{
		{
			name:     "update enqueues activity",
			result:   &engine.Result{Record: next, Previous: prev, Disposition: conflict.Update},
			wantJobs: 1,
		},
		{
			name:     "retain does not enqueue",
			result:   &engine.Result{Record: prev, Previous: prev, Disposition: conflict.Retain},
			wantJobs: 0,
		},
		{
			name:    "write error",
			err:     models.NewWriteError(models.CodeFeatureExists, "s1", "f1", "feature exists"),
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			writer := &mockWriter{
				write: func(_ context.Context, _ models.WriteRequest) (*engine.Result, error) {
					return tc.result, tc.err
				},
			}
			enq := &mockEnqueuer{}
			svc := NewFeatureService(writer, &mockReader{}, enq, quietLogger())

			res, err := svc.WriteFeature(context.Background(), models.WriteRequest{
				SpaceID: "s1",
				Feature: models.Feature{ID: "f1"},
			})

			if tc.wantErr {
				if !errors.Is(err, models.ErrFeatureExists) {
					t.Fatalf("err = %v, want FeatureExists", err)
				}
				if len(enq.getJobs()) != 0 {
					t.Error("failed write must not enqueue activity")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res != tc.result {
				t.Error("result not passed through")
			}

			jobs := enq.getJobs()
			if len(jobs) != tc.wantJobs {
				t.Fatalf("jobs = %d, want %d", len(jobs), tc.wantJobs)
			}
			if tc.wantJobs == 1 {
				if jobs[0].Older != prev || jobs[0].Younger != next {
					t.Error("job does not carry the version pair")
				}
				if jobs[0].SpaceID != "s1" || jobs[0].Version != 2 {
					t.Errorf("job = %+v", jobs[0])
				}
			}
		})
	}
}

func TestFeatureService_WriteFeature_NilEnqueuer(t *testing.T) {
	writer := &mockWriter{
		write: func(_ context.Context, _ models.WriteRequest) (*engine.Result, error) {
			return &engine.Result{Record: &models.VersionRecord{ID: "f1", Version: 1}, Disposition: conflict.Insert}, nil
		},
	}
	svc := NewFeatureService(writer, &mockReader{}, nil, quietLogger())

	if _, err := svc.WriteFeature(context.Background(), models.WriteRequest{SpaceID: "s1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestFeatureService_WriteFeature_LogsSpaceContext(t *testing.T) {
	writer := &mockWriter{
		write: func(_ context.Context, _ models.WriteRequest) (*engine.Result, error) {
			return &engine.Result{Record: &models.VersionRecord{ID: "f1", Version: 1}, Disposition: conflict.Insert}, nil
		},
	}
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	svc := NewFeatureService(writer, &mockReader{}, nil, log)

	for _, tc := range []struct {
		in   models.SpaceContext
		want models.SpaceContext
	}{
		{"", models.ContextDefault},
		{models.ContextExtension, models.ContextExtension},
	} {
		hook.Reset()
		_, err := svc.WriteFeature(context.Background(), models.WriteRequest{SpaceID: "s1", SpaceContext: tc.in})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		entry := hook.LastEntry()
		if entry == nil || entry.Message != "feature.write" {
			t.Fatalf("last entry = %+v, want feature.write", entry)
		}
		if got := entry.Data["context"]; got != tc.want {
			t.Errorf("context = %v, want %s", got, tc.want)
		}
	}
}

func TestFeatureService_GetFeature(t *testing.T) {
	live := &models.VersionRecord{ID: "f1", Version: 3, Operation: models.OpUpdate}
	tomb := &models.VersionRecord{ID: "f1", Version: 4, Operation: models.OpDelete}
	boom := errors.New("disk on fire")

	tests := []struct {
		name     string
		head     *models.VersionRecord
		err      error
		wantCode models.ErrorCode
		wantErr  error
	}{
		{name: "live head", head: live},
		{name: "tombstone", head: tomb, wantCode: models.CodeFeatureNotExists},
		{name: "missing", err: models.ErrRecordNotFound, wantCode: models.CodeFeatureNotExists},
		{name: "store error", err: boom, wantErr: boom},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			reader := &mockReader{
				getHead: func(_ context.Context, _, _ string) (*models.VersionRecord, error) {
					return tc.head, tc.err
				},
			}
			svc := NewFeatureService(&mockWriter{}, reader, nil, quietLogger())

			rec, err := svc.GetFeature(context.Background(), "s1", "f1")
			switch {
			case tc.wantCode != "":
				if models.CodeOf(err) != tc.wantCode {
					t.Fatalf("code = %q, want %q", models.CodeOf(err), tc.wantCode)
				}
			case tc.wantErr != nil:
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("err = %v, want %v", err, tc.wantErr)
				}
			default:
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if rec != tc.head {
					t.Error("head not returned")
				}
			}
		})
	}
}

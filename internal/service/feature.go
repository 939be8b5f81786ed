// Package service provides the logic between callers and the write engine
// and stores: metrics, logging and activity log dispatch.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/spacestore/internal/domain"
	"github.com/persistorai/spacestore/internal/engine"
	"github.com/persistorai/spacestore/internal/metrics"
	"github.com/persistorai/spacestore/internal/models"
)

// Compile-time check: *FeatureService must satisfy domain.FeatureService.
var _ domain.FeatureService = (*FeatureService)(nil)

// ActivityEnqueuer accepts activity jobs for asynchronous recording.
type ActivityEnqueuer interface {
	Enqueue(job *ActivityJob)
}

// FeatureService wraps the write engine and a FeatureReader.
type FeatureService struct {
	writer   domain.FeatureWriter
	reader   domain.FeatureReader
	activity ActivityEnqueuer
	log      *logrus.Logger
}

// NewFeatureService creates a FeatureService. activity may be nil when the
// activity log is fed from elsewhere or disabled.
func NewFeatureService(writer domain.FeatureWriter, reader domain.FeatureReader, activity ActivityEnqueuer, log *logrus.Logger) *FeatureService {
	return &FeatureService{writer: writer, reader: reader, activity: activity, log: log}
}

// WriteFeature performs one write and hands the resulting version pair to
// the activity worker.
func (s *FeatureService) WriteFeature(ctx context.Context, req models.WriteRequest) (*engine.Result, error) {
	start := time.Now()
	res, err := s.writer.Write(ctx, req)
	metrics.WriteDuration.Observe(time.Since(start).Seconds())

	spaceContext := req.SpaceContext
	if spaceContext == "" {
		spaceContext = models.ContextDefault
	}

	fields := logrus.Fields{
		"space":   req.SpaceID,
		"feature": req.Feature.ID,
		"context": spaceContext,
	}

	if err != nil {
		code := models.CodeOf(err)
		metrics.WriteErrorsTotal.WithLabelValues(string(code)).Inc()

		entry := s.log.WithFields(fields).WithField("code", code).WithError(err)
		if code == models.CodeException {
			entry.Error("feature.write.failed")
		} else {
			entry.Debug("feature.write.rejected")
		}

		return nil, err
	}

	metrics.WritesTotal.WithLabelValues(res.Disposition.String()).Inc()

	if res.Record != nil {
		fields["version"] = res.Record.Version
	}
	s.log.WithFields(fields).WithField("disposition", res.Disposition.String()).Debug("feature.write")

	if res.Written() && s.activity != nil {
		s.activity.Enqueue(&ActivityJob{
			SpaceID:   req.SpaceID,
			FeatureID: res.Record.ID,
			Version:   res.Record.Version,
			Older:     res.Previous,
			Younger:   res.Record,
		})
	}

	return res, nil
}

// GetFeature returns the live head of a feature. A deleted or unknown
// feature yields a FeatureNotExists error.
func (s *FeatureService) GetFeature(ctx context.Context, spaceID, featureID string) (*models.VersionRecord, error) {
	rec, err := s.reader.GetHead(ctx, spaceID, featureID)
	if errors.Is(err, models.ErrRecordNotFound) || (err == nil && !rec.Live()) {
		return nil, models.NewWriteError(models.CodeFeatureNotExists, spaceID, featureID, "feature does not exist")
	}
	if err != nil {
		return nil, err
	}

	return rec, nil
}

// GetVersion returns one version of a feature, tombstones included (pass-through).
func (s *FeatureService) GetVersion(ctx context.Context, spaceID, featureID string, version int64) (*models.VersionRecord, error) {
	return s.reader.GetVersion(ctx, spaceID, featureID, version)
}

// History returns the versions of a feature, newest first (pass-through).
func (s *FeatureService) History(
	ctx context.Context, spaceID, featureID string, opts models.HistoryOpts,
) ([]models.VersionRecord, bool, error) {
	return s.reader.History(ctx, spaceID, featureID, opts)
}

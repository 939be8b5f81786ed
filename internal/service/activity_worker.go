package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/spacestore/internal/activitylog"
	"github.com/persistorai/spacestore/internal/domain"
	"github.com/persistorai/spacestore/internal/metrics"
	"github.com/persistorai/spacestore/internal/models"
)

const recordTimeout = 10 * time.Second

// ActivityJob identifies one written version. Older and Younger are set
// when the writer already holds them; otherwise they are loaded.
type ActivityJob struct {
	SpaceID   string
	FeatureID string
	Version   int64
	Older     *models.VersionRecord
	Younger   *models.VersionRecord
}

// ActivityWorker buffers written versions and records their activity
// entries from a single goroutine.
type ActivityWorker struct {
	recorder domain.ActivityRecorder
	reader   domain.FeatureReader
	log      *logrus.Logger
	jobs     chan *ActivityJob
}

// NewActivityWorker creates an ActivityWorker with the given queue capacity.
// reader is needed only for jobs that carry no records.
func NewActivityWorker(recorder domain.ActivityRecorder, reader domain.FeatureReader, log *logrus.Logger, queueSize int) *ActivityWorker {
	if queueSize <= 0 {
		queueSize = 1000
	}
	return &ActivityWorker{
		recorder: recorder,
		reader:   reader,
		log:      log,
		jobs:     make(chan *ActivityJob, queueSize),
	}
}

// Enqueue adds a job. Non-blocking; drops the job if the queue is full.
func (w *ActivityWorker) Enqueue(job *ActivityJob) {
	select {
	case w.jobs <- job:
		metrics.ActivityQueueDepth.Set(float64(len(w.jobs)))
	default:
		w.log.WithFields(logrus.Fields{
			"space":   job.SpaceID,
			"feature": job.FeatureID,
			"version": job.Version,
		}).Warn("activity queue full, dropping entry")
	}
}

// Run processes jobs until the context is cancelled, then drains remaining jobs.
func (w *ActivityWorker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return
		case job := <-w.jobs:
			w.process(job)
		}
	}
}

func (w *ActivityWorker) drain() {
	for {
		select {
		case job := <-w.jobs:
			w.process(job)
		default:
			return
		}
	}
}

func (w *ActivityWorker) process(job *ActivityJob) {
	metrics.ActivityQueueDepth.Set(float64(len(w.jobs)))

	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	log := w.log.WithFields(logrus.Fields{
		"space":   job.SpaceID,
		"feature": job.FeatureID,
		"version": job.Version,
	})

	older, younger := job.Older, job.Younger
	if younger == nil {
		if w.reader == nil {
			log.Warn("activity job without record or reader")
			return
		}

		var err error
		younger, err = w.reader.GetVersion(ctx, job.SpaceID, job.FeatureID, job.Version)
		if err != nil {
			log.WithError(err).Warn("activity: loading version failed")
			return
		}

		if younger.Operation != models.OpInsert {
			older, err = w.reader.Predecessor(ctx, job.SpaceID, younger)
			if err != nil && !errors.Is(err, models.ErrRecordNotFound) {
				log.WithError(err).Warn("activity: loading predecessor failed")
			}
		}
	}

	entry := activitylog.BuildEntry(job.SpaceID, older, younger, w.log)
	if err := w.recorder.RecordActivity(ctx, &entry); err != nil {
		log.WithError(err).Warn("activity record failed")
		return
	}

	metrics.ActivityEntriesTotal.WithLabelValues(string(entry.Action)).Inc()
	log.WithField("action", entry.Action).Debug("activity.record")
}

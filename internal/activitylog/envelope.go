package activitylog

import (
	"github.com/sirupsen/logrus"

	"github.com/persistorai/spacestore/internal/metrics"
	"github.com/persistorai/spacestore/internal/models"
)

// Anomaly reasons counted when an entry is recorded without its diff.
const (
	AnomalyMissingPredecessor = "missing_predecessor"
	AnomalyDiffFailed         = "diff_failed"
)

// BuildEntry builds the activity entry of younger. older is its predecessor
// and may be nil. Only updates carry a diff; history defects are logged and
// leave the diff out.
func BuildEntry(spaceID string, older, younger *models.VersionRecord, log *logrus.Logger) models.ActivityEntry {
	entry := models.ActivityEntry{
		SpaceID: spaceID,
		ID:      younger.ID,
		UUID:    younger.Namespace.UUID,
		Version: younger.Version,
		Action:  younger.Operation.Action(),
		Original: models.ActivityOriginal{
			PUUID:     younger.Namespace.PUUID,
			MUUID:     younger.Namespace.MUUID,
			Space:     spaceID,
			CreatedAt: younger.Namespace.CreatedAt,
			UpdatedAt: younger.Namespace.UpdatedAt,
		},
	}

	if older != nil {
		entry.Original.PUUID = older.Namespace.PUUID
		entry.Original.CreatedAt = older.Namespace.CreatedAt
		entry.Original.UpdatedAt = older.Namespace.UpdatedAt
	}

	if younger.Operation != models.OpUpdate {
		return entry
	}

	fields := logrus.Fields{
		"space":   spaceID,
		"feature": younger.ID,
		"version": younger.Version,
	}

	if older == nil {
		metrics.ActivityAnomaliesTotal.WithLabelValues(AnomalyMissingPredecessor).Inc()
		log.WithFields(fields).Warn("activity.missing_predecessor")
		return entry
	}

	diff, err := ReversePatch(older, younger)
	if err != nil {
		metrics.ActivityAnomaliesTotal.WithLabelValues(AnomalyDiffFailed).Inc()
		log.WithFields(fields).WithError(err).Warn("activity.diff_failed")
		return entry
	}
	entry.Diff = diff

	return entry
}

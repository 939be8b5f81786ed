package store

import (
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/persistorai/spacestore/internal/models"
)

// recordColumns lists the columns selected for version queries.
const recordColumns = `id, version, next_version, operation, author, jsondata, geo`

// scanRecord scans a single row into a models.VersionRecord.
func scanRecord(scan func(dest ...any) error) (*models.VersionRecord, error) {
	var r models.VersionRecord
	var op string
	var data []byte
	var geo *string

	if err := scan(&r.ID, &r.Version, &r.NextVersion, &op, &r.Author, &data, &geo); err != nil {
		return nil, err
	}

	r.Operation = models.Operation(op)

	if err := r.SetJSONData(data); err != nil {
		return nil, err
	}
	if err := r.SetGeoText(geo); err != nil {
		return nil, err
	}

	return &r, nil
}

// collectRecords scans all rows into a record slice.
func collectRecords(rows pgx.Rows) ([]models.VersionRecord, error) {
	records := make([]models.VersionRecord, 0, 16)

	for rows.Next() {
		r, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning version row: %w", err)
		}

		records = append(records, *r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating version rows: %w", err)
	}

	return records, nil
}

// activityColumns lists the columns selected for activity log queries.
const activityColumns = `seq, space_id, feature_id, uuid, version, action, original, diff, recorded_at`

// scanActivity scans a single row into a models.ActivityEntry.
func scanActivity(scan func(dest ...any) error) (*models.ActivityEntry, error) {
	var e models.ActivityEntry
	var action string
	var original, diff []byte

	if err := scan(&e.Seq, &e.SpaceID, &e.ID, &e.UUID, &e.Version, &action, &original, &diff, &e.RecordedAt); err != nil {
		return nil, err
	}

	e.Action = models.Action(action)

	if err := models.DecodeJSON(original, &e.Original); err != nil {
		return nil, fmt.Errorf("decoding activity original: %w", err)
	}

	if diff != nil {
		e.Diff = &models.ReversePatch{}
		if err := models.DecodeJSON(diff, e.Diff); err != nil {
			return nil, fmt.Errorf("decoding activity diff: %w", err)
		}
	}

	return &e, nil
}

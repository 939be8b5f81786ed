package models

import (
	"encoding/json"
	"time"
)

// Reverse patch operation names.
const (
	PatchAdd     = "add"
	PatchRemove  = "remove"
	PatchReplace = "replace"
)

// PatchOp is one operation of a reverse patch.
type PatchOp struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value,omitempty"`
}

// MarshalJSON always writes value for add and replace, even when it is null,
// and never for remove.
func (p PatchOp) MarshalJSON() ([]byte, error) {
	if p.Op == PatchRemove {
		return json.Marshal(struct {
			Op   string `json:"op"`
			Path string `json:"path"`
		}{p.Op, p.Path})
	}

	return json.Marshal(struct {
		Op    string `json:"op"`
		Path  string `json:"path"`
		Value any    `json:"value"`
	}{p.Op, p.Path, p.Value})
}

// ReversePatch reconstructs an older feature version from its successor.
type ReversePatch struct {
	Add     int       `json:"add"`
	Remove  int       `json:"remove"`
	Replace int       `json:"replace"`
	Ops     []PatchOp `json:"ops"`
}

// ActivityOriginal identifies the version an activity entry diffs against.
type ActivityOriginal struct {
	PUUID     string `json:"puuid,omitempty"`
	MUUID     string `json:"muuid,omitempty"`
	Space     string `json:"space"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
}

// ActivityEntry is one audit envelope of the activity log.
type ActivityEntry struct {
	Seq        int64            `json:"seq,omitempty"`
	SpaceID    string           `json:"-"`
	ID         string           `json:"id"`
	UUID       string           `json:"uuid"`
	Version    int64            `json:"version"`
	Action     Action           `json:"action"`
	Original   ActivityOriginal `json:"original"`
	Diff       *ReversePatch    `json:"diff,omitempty"`
	RecordedAt time.Time        `json:"recorded_at"`
}

// ActivityQueryOpts holds filters for querying the activity log.
type ActivityQueryOpts struct {
	FeatureID string
	Action    Action
	Since     *time.Time
	Limit     int
	Offset    int
}

// HistoryOpts pages through the versions of one feature, newest first.
type HistoryOpts struct {
	Limit  int
	Offset int
}

package namespace

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/persistorai/spacestore/internal/models"
)

// fixedManager returns a manager whose clock is frozen at ms and whose
// uuids count up from u1.
func fixedManager(ms int64) *Manager {
	n := 0
	return &Manager{
		Now: func() time.Time { return time.UnixMilli(ms) },
		NewUUID: func() string {
			n++
			return fmt.Sprintf("u%d", n)
		},
	}
}

func TestStamp_FirstVersion(t *testing.T) {
	m := fixedManager(1000)

	ns := m.Stamp(nil, StampInput{Version: 1, Operation: models.OpInsert, Author: "ANONYMOUS", Space: "s1"})

	assert.Equal(t, "u1", ns.UUID)
	assert.Empty(t, ns.PUUID)
	assert.Equal(t, int64(1000), ns.CreatedAt)
	assert.Equal(t, ns.CreatedAt, ns.UpdatedAt)
	assert.Equal(t, int64(1), ns.Version)
	assert.Equal(t, models.ActionCreate, ns.Action)
	assert.Equal(t, "s1", ns.Space)
}

func TestStamp_ChainsToPrevious(t *testing.T) {
	prev := &models.VersionRecord{
		ID: "f1", Version: 1, Operation: models.OpInsert,
		Namespace: models.Namespace{UUID: "prev-uuid", CreatedAt: 500, UpdatedAt: 500},
	}
	m := fixedManager(2000)

	ns := m.Stamp(prev, StampInput{Version: 7, Operation: models.OpUpdate, Author: "ANONYMOUS_UPDATE"})

	assert.Equal(t, "prev-uuid", ns.PUUID)
	assert.Equal(t, int64(500), ns.CreatedAt)
	assert.Equal(t, int64(2000), ns.UpdatedAt)
	assert.Equal(t, int64(7), ns.Version)
	assert.Equal(t, "ANONYMOUS_UPDATE", ns.Author)
	assert.Equal(t, models.ActionUpdate, ns.Action)
}

func TestStamp_UpdatedAtStrictlyIncreasesOnFrozenClock(t *testing.T) {
	m := fixedManager(1000)

	first := &models.VersionRecord{Operation: models.OpInsert}
	first.Namespace = m.Stamp(nil, StampInput{Version: 1, Operation: models.OpInsert})

	second := &models.VersionRecord{Operation: models.OpUpdate}
	second.Namespace = m.Stamp(first, StampInput{Version: 2, Operation: models.OpUpdate})

	third := m.Stamp(second, StampInput{Version: 3, Operation: models.OpDelete})

	assert.Greater(t, second.Namespace.UpdatedAt, first.Namespace.CreatedAt)
	assert.Greater(t, third.UpdatedAt, second.Namespace.UpdatedAt)
	assert.Equal(t, first.Namespace.CreatedAt, third.CreatedAt)
	assert.Equal(t, models.ActionDelete, third.Action)
}

func TestStrip(t *testing.T) {
	props := map[string]any{
		"name": "x",
		models.NamespaceKey: map[string]any{
			"uuid":      "caller-uuid",
			"createdAt": json.Number("1"),
			"version":   json.Number("4"),
			"tags":      []any{"A", "b"},
			"deleted":   true,
			"muuid":     "merge-base",
		},
	}

	clean, in := Strip(props)

	assert.Equal(t, map[string]any{"name": "x"}, clean)
	assert.Contains(t, props, models.NamespaceKey, "input must not be modified")
	require.NotNil(t, in.Version)
	assert.Equal(t, int64(4), *in.Version)
	assert.True(t, in.HasTags)
	assert.Equal(t, []string{"A", "b"}, in.Tags)
	assert.True(t, in.Deleted)
	assert.Equal(t, "merge-base", in.MUUID)
}

func TestStrip_NoNamespace(t *testing.T) {
	clean, in := Strip(map[string]any{"a": 1})

	assert.Equal(t, map[string]any{"a": 1}, clean)
	assert.Nil(t, in.Version)
	assert.False(t, in.HasTags)
	assert.False(t, in.Deleted)
}

func TestResolveTags(t *testing.T) {
	head := &models.VersionRecord{
		Operation: models.OpUpdate,
		Namespace: models.Namespace{Tags: []string{"alpha", "beta"}},
	}

	assert.Equal(t, []string{"alpha", "gamma"},
		ResolveTags(head, Incoming{}, []string{"Gamma"}, []string{"beta"}))

	assert.Equal(t, []string{"delta"},
		ResolveTags(head, Incoming{HasTags: true, Tags: []string{"DELTA"}}, nil, nil),
		"tags in the payload replace the head's")

	tomb := &models.VersionRecord{Operation: models.OpDelete, Namespace: head.Namespace}
	assert.Equal(t, []string{"x"}, ResolveTags(tomb, Incoming{}, []string{"x"}, nil))

	assert.Nil(t, ResolveTags(nil, Incoming{}, nil, nil))
}

func TestNormalizeTag(t *testing.T) {
	tests := map[string]string{
		"Road":          "road",
		"~Private":      "~Private",
		"#Hash":         "#Hash",
		"ref_Upstream":  "ref_Upstream",
		"sourceID_ABC":  "sourceID_ABC",
		"SOURCEID_ABC":  "sourceid_abc",
		"already_lower": "already_lower",
	}

	for in, want := range tests {
		assert.Equal(t, want, NormalizeTag(in), in)
	}
}

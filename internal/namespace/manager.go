// Package namespace stamps the bookkeeping metadata carried by every
// feature version: the uuid chain, timestamps, version, author and tags.
package namespace

import (
	"encoding/json"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/persistorai/spacestore/internal/models"
)

// Manager derives namespace metadata. Now and NewUUID are replaceable for tests.
type Manager struct {
	Now     func() time.Time
	NewUUID func() string
}

// New creates a Manager using the wall clock and random UUIDs.
func New() *Manager {
	return &Manager{Now: time.Now, NewUUID: uuid.NewString}
}

// StampInput carries the write context of the version being stamped.
type StampInput struct {
	Version   int64
	Operation models.Operation
	Author    string
	Space     string
	Tags      []string
	MUUID     string
}

// Stamp returns the namespace of a new version following prev, which is the
// current head or nil for the first version of the feature.
func (m *Manager) Stamp(prev *models.VersionRecord, in StampInput) models.Namespace {
	now := m.Now().UnixMilli()

	ns := models.Namespace{
		UUID:      m.NewUUID(),
		CreatedAt: now,
		UpdatedAt: now,
		Version:   in.Version,
		Author:    in.Author,
		Tags:      in.Tags,
		Action:    in.Operation.Action(),
		Space:     in.Space,
		MUUID:     in.MUUID,
	}

	if prev != nil {
		ns.PUUID = prev.Namespace.UUID
		ns.CreatedAt = prev.Namespace.CreatedAt
		// Keep updatedAt strictly increasing along the chain even when the
		// clock does not advance between two writes.
		floor := max(prev.Namespace.UpdatedAt, ns.CreatedAt)
		if ns.UpdatedAt <= floor {
			ns.UpdatedAt = floor + 1
		}
	}

	return ns
}

// Incoming holds what a caller put into the namespace of its payload.
// Everything else there is derived and discarded.
type Incoming struct {
	// Version is the caller's base version, if one was supplied.
	Version *int64
	Tags    []string
	HasTags bool
	Deleted bool
	MUUID   string
}

// Strip returns a copy of props without the namespace subtree, together
// with the hints read from it.
func Strip(props map[string]any) (map[string]any, Incoming) {
	var in Incoming

	out := make(map[string]any, len(props))
	for k, v := range props {
		if k != models.NamespaceKey {
			out[k] = v
		}
	}

	raw, ok := props[models.NamespaceKey].(map[string]any)
	if !ok {
		return out, in
	}

	if v, ok := toInt64(raw["version"]); ok {
		in.Version = &v
	}

	if list, ok := raw["tags"].([]any); ok {
		in.HasTags = true
		for _, t := range list {
			if s, ok := t.(string); ok {
				in.Tags = append(in.Tags, s)
			}
		}
	}

	if muuid, ok := raw["muuid"].(string); ok {
		in.MUUID = muuid
	}

	if deleted, ok := raw["deleted"].(bool); ok {
		in.Deleted = deleted
	}

	return out, in
}

// ResolveTags computes the tag set of the new version: the incoming tags if
// the payload carried any, otherwise those of the live head, with the add
// and remove deltas applied on top.
func ResolveTags(head *models.VersionRecord, in Incoming, add, remove []string) []string {
	var base []string
	switch {
	case in.HasTags:
		base = in.Tags
	case head.Live():
		base = head.Namespace.Tags
	}

	set := make(map[string]struct{}, len(base)+len(add))
	for _, t := range base {
		if n := NormalizeTag(t); n != "" {
			set[n] = struct{}{}
		}
	}
	for _, t := range add {
		if n := NormalizeTag(t); n != "" {
			set[n] = struct{}{}
		}
	}
	for _, t := range remove {
		delete(set, NormalizeTag(t))
	}

	if len(set) == 0 {
		return nil
	}

	tags := make([]string, 0, len(set))
	for t := range set {
		tags = append(tags, t)
	}
	sort.Strings(tags)

	return tags
}

// preservedPrefixes mark tags whose case is significant.
var preservedPrefixes = []string{"~", "#", "ref_", "sourceID_"}

// NormalizeTag lower-cases a tag unless it carries a case-preserving prefix.
func NormalizeTag(tag string) string {
	for _, p := range preservedPrefixes {
		if strings.HasPrefix(tag, p) {
			return tag
		}
	}

	return strings.ToLower(tag)
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case float64:
		if n != math.Trunc(n) || n < math.MinInt64 || n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}

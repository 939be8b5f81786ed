// Package merge combines an incoming feature payload with the current head.
package merge

import (
	"github.com/paulmach/orb/geojson"

	"github.com/persistorai/spacestore/internal/models"
)

// Result is the payload of the version about to be written.
type Result struct {
	Properties map[string]any
	Geometry   *geojson.Geometry
}

// Merger computes the resulting payload in replace or patch mode.
type Merger struct {
	// MaxDepth limits how many levels of nested maps are merged key by key
	// in patch mode. Below the limit values are replaced wholesale.
	// Zero means unlimited.
	MaxDepth int
}

// New creates a Merger.
func New(maxDepth int) *Merger {
	if maxDepth < 0 {
		maxDepth = 0
	}

	return &Merger{MaxDepth: maxDepth}
}

// Merge returns the payload for in applied to head. head may be nil, in
// which case patch mode behaves like replace mode. Neither head nor in is
// modified. The namespace subtree must already be stripped from in.
func (m *Merger) Merge(head *models.VersionRecord, in models.Feature, partial bool) Result {
	if !partial || head == nil {
		return Result{
			Properties: cloneProps(in.Properties),
			Geometry:   in.Geometry,
		}
	}

	props := cloneProps(head.Properties)
	m.mergeMaps(props, in.Properties, 1)

	geometry := head.Geometry
	if in.Geometry != nil {
		geometry = in.Geometry
	}

	return Result{Properties: props, Geometry: geometry}
}

func (m *Merger) mergeMaps(dst, src map[string]any, level int) {
	for k, sv := range src {
		srcMap, srcIsMap := sv.(map[string]any)
		dstMap, dstIsMap := dst[k].(map[string]any)

		if srcIsMap && dstIsMap && (m.MaxDepth == 0 || level < m.MaxDepth) {
			m.mergeMaps(dstMap, srcMap, level+1)
			continue
		}

		dst[k] = models.CloneValue(sv)
	}
}

func cloneProps(props map[string]any) map[string]any {
	if props == nil {
		return map[string]any{}
	}

	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = models.CloneValue(v)
	}

	return out
}

// Package activitylog derives audit entries from pairs of consecutive
// feature versions. Everything here is pure and safe for concurrent use.
package activitylog

import (
	"encoding/json"
	"math"
	"reflect"
)

// Kind classifies a node of a difference tree.
type Kind int

const (
	// Insert marks a value present only in the younger state.
	Insert Kind = iota
	// Remove marks a value present only in the older state.
	Remove
	// Update marks a scalar (or type) change.
	Update
	// Map holds per-key differences of two objects.
	Map
	// List holds per-index differences of two arrays.
	List
)

// Node is one node of a difference tree.
type Node struct {
	Kind Kind
	// Old and New are set on leaves. Insert has no Old, Remove has no New.
	Old any
	New any
	// Fields holds the changed keys of a Map node.
	Fields map[string]*Node
	// Items holds one entry per index of a List node, nil where unchanged.
	Items []*Node
}

// Diff returns the difference tree from older to younger, or nil when both
// are equal. A nil value counts as absent.
func Diff(older, younger any) *Node {
	switch {
	case older == nil && younger == nil:
		return nil
	case older == nil:
		return &Node{Kind: Insert, New: younger}
	case younger == nil:
		return &Node{Kind: Remove, Old: older}
	}

	if om, ok := older.(map[string]any); ok {
		if ym, ok := younger.(map[string]any); ok {
			return diffMaps(om, ym)
		}
	}

	if ol, ok := older.([]any); ok {
		if yl, ok := younger.([]any); ok {
			return diffLists(ol, yl)
		}
	}

	if scalarEqual(older, younger) {
		return nil
	}

	return &Node{Kind: Update, Old: older, New: younger}
}

func diffMaps(older, younger map[string]any) *Node {
	fields := make(map[string]*Node)

	for k, ov := range older {
		yv, ok := younger[k]
		if !ok {
			if ov != nil {
				fields[k] = &Node{Kind: Remove, Old: ov}
			}
			continue
		}
		if d := Diff(ov, yv); d != nil {
			fields[k] = d
		}
	}

	for k, yv := range younger {
		if _, ok := older[k]; ok || yv == nil {
			continue
		}
		fields[k] = &Node{Kind: Insert, New: yv}
	}

	if len(fields) == 0 {
		return nil
	}

	return &Node{Kind: Map, Fields: fields}
}

func diffLists(older, younger []any) *Node {
	n := max(len(older), len(younger))
	items := make([]*Node, n)
	changed := false

	for i := range n {
		var ov, yv any
		if i < len(older) {
			ov = older[i]
		}
		if i < len(younger) {
			yv = younger[i]
		}

		var d *Node
		switch {
		case i >= len(younger):
			d = &Node{Kind: Remove, Old: ov}
		case i >= len(older):
			d = &Node{Kind: Insert, New: yv}
		default:
			d = Diff(ov, yv)
		}

		if d != nil {
			items[i] = d
			changed = true
		}
	}

	if !changed {
		return nil
	}

	return &Node{Kind: List, Items: items}
}

// scalarEqual compares two non-nil values that are not both maps or both
// lists. Numbers compare by value whatever their Go representation.
func scalarEqual(a, b any) bool {
	if na, ok := toNumber(a); ok {
		nb, ok := toNumber(b)
		if !ok {
			return false
		}
		return na.equal(nb)
	}

	switch a.(type) {
	case map[string]any, []any:
		return false
	}
	switch b.(type) {
	case map[string]any, []any:
		return false
	}

	if reflect.TypeOf(a) != reflect.TypeOf(b) || !reflect.TypeOf(a).Comparable() {
		return reflect.DeepEqual(a, b)
	}

	return a == b
}

type number struct {
	i     int64
	f     float64
	isInt bool
}

func (n number) equal(o number) bool {
	if n.isInt && o.isInt {
		return n.i == o.i
	}

	return n.float() == o.float()
}

func (n number) float() float64 {
	if n.isInt {
		return float64(n.i)
	}

	return n.f
}

func toNumber(v any) (number, bool) {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return number{i: i, isInt: true}, true
		}
		f, err := t.Float64()
		if err != nil {
			return number{}, false
		}
		return number{f: f}, true
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1<<53 {
			return number{i: int64(t), isInt: true}, true
		}
		return number{f: t}, true
	case float32:
		return toNumber(float64(t))
	case int:
		return number{i: int64(t), isInt: true}, true
	case int32:
		return number{i: int64(t), isInt: true}, true
	case int64:
		return number{i: t, isInt: true}, true
	default:
		return number{}, false
	}
}

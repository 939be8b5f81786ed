// Package models defines data types for versioned geospatial features.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/paulmach/orb/geojson"
)

// NamespaceKey is the property key under which namespace metadata is embedded.
const NamespaceKey = "@ns:com:here:xyz"

// HeadVersion is the next_version value of the current head record.
const HeadVersion int64 = math.MaxInt64

// Operation is the persisted operation code of a VersionRecord.
type Operation string

// Operations.
const (
	OpInsert Operation = "I"
	OpUpdate Operation = "U"
	OpDelete Operation = "D"
)

// Valid reports whether o is a known operation.
func (o Operation) Valid() bool {
	return o == OpInsert || o == OpUpdate || o == OpDelete
}

// Action returns the namespace action mirroring the operation.
func (o Operation) Action() Action {
	switch o {
	case OpInsert:
		return ActionCreate
	case OpDelete:
		return ActionDelete
	default:
		return ActionUpdate
	}
}

// Action is the namespace action of a version, mirroring its operation.
type Action string

// Actions.
const (
	ActionCreate Action = "CREATE"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
)

// Feature is one logical georeferenced entity as supplied by writers.
type Feature struct {
	ID         string
	Geometry   *geojson.Geometry
	Properties map[string]any
}

type featureJSON struct {
	Type       string            `json:"type"`
	ID         any               `json:"id"`
	Geometry   *geojson.Geometry `json:"geometry"`
	Properties map[string]any    `json:"properties"`
}

// MarshalJSON encodes the feature as a GeoJSON Feature.
func (f Feature) MarshalJSON() ([]byte, error) {
	return json.Marshal(featureJSON{
		Type:       "Feature",
		ID:         f.ID,
		Geometry:   f.Geometry,
		Properties: f.Properties,
	})
}

// UnmarshalJSON decodes a GeoJSON Feature. Numbers in properties are kept
// as json.Number so integers survive round trips unchanged.
func (f *Feature) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type       string          `json:"type"`
		ID         any             `json:"id"`
		Geometry   json.RawMessage `json:"geometry"`
		Properties map[string]any  `json:"properties"`
	}
	if err := DecodeJSON(data, &raw); err != nil {
		return err
	}

	if raw.Type != "" && raw.Type != "Feature" {
		return fmt.Errorf("unsupported GeoJSON type %q", raw.Type)
	}

	switch id := raw.ID.(type) {
	case nil:
		f.ID = ""
	case string:
		f.ID = id
	case json.Number:
		f.ID = id.String()
	default:
		return fmt.Errorf("feature id must be a string or number")
	}

	f.Geometry = nil
	if len(raw.Geometry) > 0 && !bytes.Equal(bytes.TrimSpace(raw.Geometry), []byte("null")) {
		g, err := geojson.UnmarshalGeometry(raw.Geometry)
		if err != nil {
			return fmt.Errorf("geometry: %w", err)
		}
		f.Geometry = g
	}

	f.Properties = raw.Properties

	return nil
}

// VersionRecord is one persisted version of a feature.
type VersionRecord struct {
	ID          string
	Version     int64
	NextVersion int64
	Operation   Operation
	Author      string
	Geometry    *geojson.Geometry
	// Properties holds the payload without the namespace subtree.
	Properties map[string]any
	Namespace  Namespace
}

// IsHead reports whether r has not been superseded.
func (r *VersionRecord) IsHead() bool {
	return r.NextVersion == HeadVersion
}

// IsTombstone reports whether r marks a deletion.
func (r *VersionRecord) IsTombstone() bool {
	return r.Operation == OpDelete
}

// Live reports whether r is a non-deleted record. A nil record is not live.
func (r *VersionRecord) Live() bool {
	return r != nil && r.Operation != OpDelete
}

// FullProperties returns a copy of the properties with the namespace embedded.
func (r *VersionRecord) FullProperties() map[string]any {
	props := make(map[string]any, len(r.Properties)+1)
	for k, v := range r.Properties {
		props[k] = CloneValue(v)
	}
	props[NamespaceKey] = r.Namespace.Map()

	return props
}

// Feature returns the record as a feature carrying its namespace.
func (r *VersionRecord) Feature() Feature {
	return Feature{ID: r.ID, Geometry: r.Geometry, Properties: r.FullProperties()}
}

// Tree returns the record as a generic JSON-shaped tree (maps, slices and
// scalars), the form compared by the activity log differ.
func (r *VersionRecord) Tree() (map[string]any, error) {
	tree := map[string]any{
		"type":       "Feature",
		"id":         r.ID,
		"properties": r.FullProperties(),
	}

	if r.Geometry != nil {
		data, err := json.Marshal(r.Geometry)
		if err != nil {
			return nil, fmt.Errorf("encoding geometry: %w", err)
		}

		var g any
		if err := DecodeJSON(data, &g); err != nil {
			return nil, fmt.Errorf("decoding geometry: %w", err)
		}
		tree["geometry"] = g
	}

	return tree, nil
}

// JSONData encodes the jsondata column: the feature without geometry,
// namespace embedded in its properties.
func (r *VersionRecord) JSONData() ([]byte, error) {
	data, err := json.Marshal(featureJSON{Type: "Feature", ID: r.ID, Properties: r.FullProperties()})
	if err != nil {
		return nil, fmt.Errorf("encoding jsondata: %w", err)
	}

	return data, nil
}

// GeoText encodes the geo column. A nil geometry yields nil.
func (r *VersionRecord) GeoText() (*string, error) {
	if r.Geometry == nil {
		return nil, nil
	}

	data, err := json.Marshal(r.Geometry)
	if err != nil {
		return nil, fmt.Errorf("encoding geo: %w", err)
	}
	s := string(data)

	return &s, nil
}

// SetJSONData decodes the jsondata column into r, splitting out the namespace.
func (r *VersionRecord) SetJSONData(data []byte) error {
	var raw struct {
		Properties map[string]any `json:"properties"`
	}
	if err := DecodeJSON(data, &raw); err != nil {
		return fmt.Errorf("decoding jsondata: %w", err)
	}

	props := raw.Properties
	if props == nil {
		props = map[string]any{}
	}

	if nsRaw, ok := props[NamespaceKey].(map[string]any); ok {
		ns, err := NamespaceFromMap(nsRaw)
		if err != nil {
			return err
		}
		r.Namespace = ns
	}
	delete(props, NamespaceKey)
	r.Properties = props

	return nil
}

// SetGeoText decodes the geo column into r.
func (r *VersionRecord) SetGeoText(geo *string) error {
	r.Geometry = nil
	if geo == nil || *geo == "" {
		return nil
	}

	g, err := geojson.UnmarshalGeometry([]byte(*geo))
	if err != nil {
		return fmt.Errorf("decoding geo: %w", err)
	}
	r.Geometry = g

	return nil
}

type versionRecordJSON struct {
	ID          string            `json:"id"`
	Version     int64             `json:"version"`
	NextVersion int64             `json:"next_version"`
	Operation   Operation         `json:"operation"`
	Author      string            `json:"author"`
	Geometry    *geojson.Geometry `json:"geometry,omitempty"`
	Properties  map[string]any    `json:"properties"`
}

// MarshalJSON encodes the record with the namespace embedded in its properties.
func (r VersionRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(versionRecordJSON{
		ID:          r.ID,
		Version:     r.Version,
		NextVersion: r.NextVersion,
		Operation:   r.Operation,
		Author:      r.Author,
		Geometry:    r.Geometry,
		Properties:  r.FullProperties(),
	})
}

// DecodeJSON unmarshals data into v keeping numbers as json.Number.
func DecodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	return dec.Decode(v)
}

// CloneValue deep-copies a JSON-shaped value. Scalars are returned as is.
func CloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = CloneValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = CloneValue(val)
		}
		return out
	default:
		return v
	}
}

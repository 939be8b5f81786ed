package models

import (
	"encoding/json"
	"fmt"
)

// Namespace is the bookkeeping block every version carries. MUUID is the
// uuid of the state a client merged against, as declared in its payload.
type Namespace struct {
	UUID      string   `json:"uuid"`
	PUUID     string   `json:"puuid,omitempty"`
	MUUID     string   `json:"muuid,omitempty"`
	CreatedAt int64    `json:"createdAt"`
	UpdatedAt int64    `json:"updatedAt"`
	Version   int64    `json:"version"`
	Author    string   `json:"author"`
	Tags      []string `json:"tags,omitempty"`
	Action    Action   `json:"action"`
	Space     string   `json:"space,omitempty"`
}

// Map returns the namespace as a JSON-shaped map. Tags are []any so the
// map compares equal to one decoded from stored JSON.
func (n Namespace) Map() map[string]any {
	m := map[string]any{
		"uuid":      n.UUID,
		"createdAt": n.CreatedAt,
		"updatedAt": n.UpdatedAt,
		"version":   n.Version,
		"author":    n.Author,
		"action":    string(n.Action),
	}
	if n.PUUID != "" {
		m["puuid"] = n.PUUID
	}
	if n.MUUID != "" {
		m["muuid"] = n.MUUID
	}
	if n.Space != "" {
		m["space"] = n.Space
	}
	if len(n.Tags) > 0 {
		tags := make([]any, len(n.Tags))
		for i, t := range n.Tags {
			tags[i] = t
		}
		m["tags"] = tags
	}

	return m
}

// NamespaceFromMap decodes a namespace previously produced by Map or read
// back from stored JSON.
func NamespaceFromMap(m map[string]any) (Namespace, error) {
	var ns Namespace

	data, err := json.Marshal(m)
	if err != nil {
		return ns, fmt.Errorf("encoding namespace: %w", err)
	}
	if err := json.Unmarshal(data, &ns); err != nil {
		return ns, fmt.Errorf("decoding namespace: %w", err)
	}

	return ns, nil
}

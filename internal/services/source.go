package services

import (
	"fmt"
	"strings"
)

// Source is the provenance of a retrieved chunk. It is either a plain
// label or a structured reference carrying the store's native id plus
// whatever metadata was recorded at ingestion. Exactly one of the two
// forms is populated.
type Source struct {
	// Label is set for the plain form.
	Label string
	// ID and Metadata are set for the structured form.
	ID       string
	Metadata map[string]any
}

// PlainSource wraps a bare display string.
func PlainSource(label string) Source {
	return Source{Label: label}
}

// StructuredSource wraps a store id and its metadata map.
func StructuredSource(id string, metadata map[string]any) Source {
	return Source{ID: id, Metadata: metadata}
}

// DisplayName resolves a human-readable name through the documented
// fallback chain: metadata file name, then the recorded source property,
// then the raw id. It never fails; the worst case is "Unknown".
func (s Source) DisplayName() string {
	if s.Label != "" {
		return s.Label
	}
	if s.Metadata != nil {
		if name := stringValue(s.Metadata["file_name"]); name != "" {
			return name
		}
		if name := stringValue(s.Metadata["source"]); name != "" {
			return name
		}
	}
	if strings.TrimSpace(s.ID) != "" {
		return s.ID
	}
	return "Unknown"
}

// sourceFromValue normalizes the loosely-typed source values that come
// back from vector payloads and graph rows: a string, a metadata map, or
// nothing at all.
func sourceFromValue(v any) Source {
	switch val := v.(type) {
	case nil:
		return Source{}
	case string:
		return PlainSource(val)
	case Source:
		return val
	case map[string]any:
		id := stringValue(val["sourceId"])
		if id == "" {
			id = stringValue(val["source_id"])
		}
		meta, _ := val["metadata"].(map[string]any)
		if meta == nil {
			meta = val
		}
		return StructuredSource(id, meta)
	default:
		return PlainSource(fmt.Sprint(val))
	}
}

func stringValue(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

package extract

import (
	"encoding/json"
	"strings"

	"github.com/custodia-labs/harvester/internal/core/domain"
)

// bootstrapMarker anchors the single bootstrap block that server-rendered
// pages embed for client-side hydration.
const bootstrapMarker = `<script id="__NEXT_DATA__"`

// Bootstrap locates the page's bootstrap script block and parses its
// body as one JSON document.
func Bootstrap(markup string) (map[string]any, error) {
	idx := strings.Index(markup, bootstrapMarker)
	if idx == -1 {
		return nil, &domain.ExtractionError{Reason: "bootstrap block not found"}
	}
	start := strings.Index(markup[idx:], ">")
	if start == -1 {
		return nil, &domain.ExtractionError{Reason: "malformed bootstrap script tag"}
	}
	start += idx + 1
	end := strings.Index(markup[start:], "</script>")
	if end == -1 {
		return nil, &domain.ExtractionError{Reason: "unterminated bootstrap script"}
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(markup[start:start+end]), &payload); err != nil {
		return nil, &domain.ExtractionError{Reason: "bootstrap payload is not valid JSON: " + err.Error()}
	}
	return payload, nil
}

// CollectionAt walks a dot-separated path of object keys from the
// payload root and returns the record collection found there. When
// wrapKey is non-empty each element is unwrapped at that key, which
// handles search-hit shaped records ({"fields": {...}}).
func CollectionAt(payload map[string]any, path, wrapKey string) ([]map[string]any, error) {
	var node any = payload
	for _, key := range strings.Split(path, ".") {
		obj, ok := node.(map[string]any)
		if !ok {
			return nil, &domain.ExtractionError{Reason: "record path broken at " + key}
		}
		node = obj[key]
	}

	items, ok := node.([]any)
	if !ok {
		return nil, &domain.ExtractionError{Reason: "record path does not end in a collection"}
	}

	records := make([]map[string]any, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if wrapKey != "" {
			inner, ok := obj[wrapKey].(map[string]any)
			if !ok {
				continue
			}
			// Keep the envelope's identifiers reachable under their
			// wire names when the inner record lacks them.
			merged := make(map[string]any, len(inner)+1)
			for k, v := range inner {
				merged[k] = v
			}
			if id, ok := obj["_id"]; ok {
				if _, present := merged["_id"]; !present {
					merged["_id"] = id
				}
			}
			obj = merged
		}
		records = append(records, obj)
	}
	return records, nil
}

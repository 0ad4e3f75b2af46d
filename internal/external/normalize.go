package external

import (
	"bytes"
	"encoding/json"

	"bioclim/internal/types"
)

// normalizeSamples converts a sampling response into attribute rows.
// The platform has been observed to answer in two shapes: a GeoJSON-style
// object with features[].properties, and a bare list of sample objects.
// Both normalize to the same rows, so nothing past this function knows
// which shape arrived. Only numeric-typed values are retained; strings,
// booleans, nulls, and nested structures are dropped.
func normalizeSamples(data []byte) ([]types.AttributeRow, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, types.NewAppError(types.ErrCodeUpstreamBadResponse,
			"the platform returned an empty response", nil)
	}

	if trimmed[0] == '[' {
		var items []map[string]any
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, types.NewAppError(types.ErrCodeUpstreamBadResponse,
				"the platform response could not be parsed", err)
		}
		return rowsFromMaps(items), nil
	}

	var wrapped struct {
		Features []struct {
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamBadResponse,
			"the platform response could not be parsed", err)
	}
	if wrapped.Features == nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamBadResponse,
			"the platform response has an unrecognized shape", nil)
	}

	items := make([]map[string]any, len(wrapped.Features))
	for i, f := range wrapped.Features {
		items[i] = f.Properties
	}
	return rowsFromMaps(items), nil
}

func rowsFromMaps(items []map[string]any) []types.AttributeRow {
	rows := make([]types.AttributeRow, len(items))
	for i, item := range items {
		row := make(types.AttributeRow, len(item))
		for k, v := range item {
			if f, ok := numericValue(v); ok {
				row[k] = f
			}
		}
		rows[i] = row
	}
	return rows
}

// numericValue reports whether v is a JSON number. encoding/json decodes
// every number into float64 unless a decoder opts into json.Number, so
// both are accepted.
func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

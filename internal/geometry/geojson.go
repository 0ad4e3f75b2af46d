package geometry

import (
	"encoding/json"
	"fmt"

	"bioclim/internal/types"
)

// geoJSONNode is the minimal recursive view of a GeoJSON document. Only
// the fields needed to walk down to point coordinates are decoded.
type geoJSONNode struct {
	Type        string          `json:"type"`
	Features    []geoJSONNode   `json:"features"`
	Geometry    *geoJSONNode    `json:"geometry"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// parseGeoJSON extracts every point position from a GeoJSON document.
// Accepted forms: Point, MultiPoint, Feature wrapping either, and
// FeatureCollection. Any other geometry type fails the whole parse; a
// file mixing points with lines or polygons is rejected rather than
// partially loaded.
func parseGeoJSON(data []byte) ([]types.Point, error) {
	var root geoJSONNode
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, types.NewAppError(types.ErrCodeGeometryUnreadable,
			"the file is not valid GeoJSON", err)
	}
	return collectPoints(&root)
}

// collectPoints walks a node and gathers the points it contains, in
// document order. Order matters: labels are matched to points by
// position.
func collectPoints(node *geoJSONNode) ([]types.Point, error) {
	switch node.Type {
	case "FeatureCollection":
		points := make([]types.Point, 0, len(node.Features))
		for i := range node.Features {
			pts, err := collectPoints(&node.Features[i])
			if err != nil {
				return nil, err
			}
			points = append(points, pts...)
		}
		return points, nil

	case "Feature":
		if node.Geometry == nil {
			return nil, types.NewAppError(types.ErrCodeGeometryUnreadable,
				"a feature is missing its geometry", nil)
		}
		return collectPoints(node.Geometry)

	case "Point":
		pt, err := decodePosition(node.Coordinates)
		if err != nil {
			return nil, err
		}
		return []types.Point{pt}, nil

	case "MultiPoint":
		var positions []json.RawMessage
		if err := json.Unmarshal(node.Coordinates, &positions); err != nil {
			return nil, types.NewAppError(types.ErrCodeGeometryUnreadable,
				"MultiPoint coordinates are malformed", err)
		}
		points := make([]types.Point, 0, len(positions))
		for _, raw := range positions {
			pt, err := decodePosition(raw)
			if err != nil {
				return nil, err
			}
			points = append(points, pt)
		}
		return points, nil

	case "":
		return nil, types.NewAppError(types.ErrCodeGeometryUnreadable,
			"the document has no GeoJSON type", nil)

	default:
		return nil, types.NewAppErrorWithDetails(types.ErrCodeGeometryUnsupportedType,
			fmt.Sprintf("geometry type %q is not supported; only points can be extracted", node.Type),
			nil,
			map[string]any{"geometry_type": node.Type})
	}
}

// decodePosition decodes a single GeoJSON position. GeoJSON orders
// coordinates [lon, lat, alt?]; the altitude element is ignored.
func decodePosition(raw json.RawMessage) (types.Point, error) {
	var coords []float64
	if err := json.Unmarshal(raw, &coords); err != nil {
		return types.Point{}, types.NewAppError(types.ErrCodeGeometryUnreadable,
			"a coordinate position is malformed", err)
	}
	if len(coords) < 2 || len(coords) > 3 {
		return types.Point{}, types.NewAppErrorWithDetails(types.ErrCodeGeometryUnreadable,
			"a coordinate position must have two or three elements", nil,
			map[string]any{"element_count": len(coords)})
	}
	return types.Point{Lat: coords[1], Lon: coords[0]}, nil
}

package geometry

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"bioclim/internal/types"
)

// kmlPoint carries the coordinate text of a KML Point element.
type kmlPoint struct {
	Coordinates string `xml:"coordinates"`
}

// kmlShape is a presence marker for geometry kinds the loader rejects.
// Decoding them lets the error name the offending type instead of
// silently dropping the placemark.
type kmlShape struct{}

// kmlPlacemark reads the single geometry a KML placemark carries.
type kmlPlacemark struct {
	Point         *kmlPoint `xml:"Point"`
	LineString    *kmlShape `xml:"LineString"`
	LinearRing    *kmlShape `xml:"LinearRing"`
	Polygon       *kmlShape `xml:"Polygon"`
	MultiGeometry *kmlShape `xml:"MultiGeometry"`
}

// parseKML extracts placemark points from a KML document. Placemarks can
// be nested in Document and Folder elements to arbitrary depth; walking
// the token stream keeps them in document order, which is what labels
// are matched against.
func parseKML(data []byte) ([]types.Point, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))

	var points []types.Point
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeGeometryUnreadable,
				"the file is not valid KML", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "Placemark" {
			continue
		}

		var pm kmlPlacemark
		if err := dec.DecodeElement(&pm, &start); err != nil {
			return nil, types.NewAppError(types.ErrCodeGeometryUnreadable,
				"a placemark could not be parsed", err)
		}
		pts, err := pm.points()
		if err != nil {
			return nil, err
		}
		points = append(points, pts...)
	}
	return points, nil
}

func (pm *kmlPlacemark) points() ([]types.Point, error) {
	switch {
	case pm.LineString != nil:
		return nil, unsupportedKMLGeometry("LineString")
	case pm.LinearRing != nil:
		return nil, unsupportedKMLGeometry("LinearRing")
	case pm.Polygon != nil:
		return nil, unsupportedKMLGeometry("Polygon")
	case pm.MultiGeometry != nil:
		return nil, unsupportedKMLGeometry("MultiGeometry")
	case pm.Point == nil:
		return nil, types.NewAppError(types.ErrCodeGeometryUnreadable,
			"a placemark has no point geometry", nil)
	}
	return parseCoordinateText(pm.Point.Coordinates)
}

func unsupportedKMLGeometry(kind string) error {
	return types.NewAppErrorWithDetails(types.ErrCodeGeometryUnsupportedType,
		fmt.Sprintf("geometry type %q is not supported; only points can be extracted", kind),
		nil,
		map[string]any{"geometry_type": kind})
}

// parseCoordinateText splits KML coordinate text into points. Tuples are
// whitespace-separated, each "lon,lat" or "lon,lat,alt"; the altitude is
// ignored.
func parseCoordinateText(text string) ([]types.Point, error) {
	tuples := strings.Fields(text)
	if len(tuples) == 0 {
		return nil, types.NewAppError(types.ErrCodeGeometryUnreadable,
			"a point has no coordinates", nil)
	}

	points := make([]types.Point, 0, len(tuples))
	for _, tuple := range tuples {
		parts := strings.Split(tuple, ",")
		if len(parts) < 2 || len(parts) > 3 {
			return nil, types.NewAppErrorWithDetails(types.ErrCodeGeometryUnreadable,
				"a coordinate tuple is malformed", nil,
				map[string]any{"tuple": tuple})
		}
		lon, lonErr := strconv.ParseFloat(parts[0], 64)
		lat, latErr := strconv.ParseFloat(parts[1], 64)
		if lonErr != nil || latErr != nil {
			return nil, types.NewAppErrorWithDetails(types.ErrCodeGeometryUnreadable,
				"a coordinate tuple is not numeric", nil,
				map[string]any{"tuple": tuple})
		}
		points = append(points, types.Point{Lat: lat, Lon: lon})
	}
	return points, nil
}

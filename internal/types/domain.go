package types

// Point is a geographic coordinate extracted from an uploaded geometry file.
// GeoJSON stores coordinates as [lon, lat]; Point always carries them as
// named fields so downstream code never guesses the axis order.
type Point struct {
	Lat float64 `json:"lat" validate:"min=-90,max=90"`
	Lon float64 `json:"lon" validate:"min=-180,max=180"`
}

// AttributeRow holds the numeric properties sampled for a single point.
// Keys are upstream band/property names (e.g. "bio01"); non-numeric
// properties are dropped during normalization and never reach the assembler.
type AttributeRow map[string]float64

// UploadMeta describes an uploaded file before any of its content is read.
// The input validator operates on this alone, so oversized or ill-named
// uploads are rejected without the geometry loader ever running.
type UploadMeta struct {
	Filename string
	Size     int64
}

// ExtractionResult is the assembled outcome of one extraction request.
// The table is already transposed (variables as rows, point labels as
// columns). The suggested filename carries the only timestamp in the
// result; the table and its CSV encoding are fully deterministic.
type ExtractionResult struct {
	Dataset           string  `json:"dataset"`
	ScaleMeters       float64 `json:"scale_meters"`
	Table             Table   `json:"table"`
	SuggestedFilename string  `json:"suggested_filename"`
}

// ResponseMeta contains non-blocking metadata returned with API responses.
type ResponseMeta struct {
	Warnings []string `json:"warnings,omitempty"`
}

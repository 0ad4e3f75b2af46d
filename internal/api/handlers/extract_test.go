package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bioclim/internal/config"
	"bioclim/internal/core"
	"bioclim/internal/geometry"
	"bioclim/internal/input"
	"bioclim/internal/results"
	"bioclim/internal/types"
)

// =============================================================================
// Fixtures and mocks
// =============================================================================

const canonicalGeoJSON = `{"type":"FeatureCollection","features":[
	{"type":"Feature","properties":{},"geometry":{"type":"Point","coordinates":[-50.10,-27.80]}},
	{"type":"Feature","properties":{},"geometry":{"type":"Point","coordinates":[-50.20,-27.85]}},
	{"type":"Feature","properties":{},"geometry":{"type":"Point","coordinates":[-50.30,-27.90]}}
]}`

const twoPlacemarkKML = `<?xml version="1.0" encoding="UTF-8"?>
<kml xmlns="http://www.opengis.net/kml/2.2"><Document>
	<Placemark><name>north</name><Point><coordinates>-50.10,-27.80,0</coordinates></Point></Placemark>
	<Placemark><name>south</name><Point><coordinates>-50.20,-27.85,0</coordinates></Point></Placemark>
</Document></kml>`

const polygonGeoJSON = `{"type":"Feature","properties":{},"geometry":{
	"type":"Polygon","coordinates":[[[-50.1,-27.8],[-50.2,-27.8],[-50.2,-27.9],[-50.1,-27.8]]]}}`

// mockFetcher implements types.AttributeFetcher without touching the network.
// By default it answers every point with the same two bioclim values.
type mockFetcher struct {
	fetchFn func(ctx context.Context, points []types.Point) ([]types.AttributeRow, error)
	calls   int
}

func (m *mockFetcher) FetchAttributes(ctx context.Context, points []types.Point) ([]types.AttributeRow, error) {
	m.calls++
	if m.fetchFn != nil {
		return m.fetchFn(ctx, points)
	}
	rows := make([]types.AttributeRow, len(points))
	for i := range rows {
		rows[i] = types.AttributeRow{"BIO1": 180, "BIO12": 1500}
	}
	return rows, nil
}

// fixedClock pins the suggested filename for assertions.
type fixedClock struct{}

func (fixedClock) Now() time.Time {
	return time.Date(2026, time.March, 14, 9, 30, 0, 0, time.UTC)
}

const fixedFilename = "bioclim_20260314_093000.csv"

// =============================================================================
// Helpers
// =============================================================================

// newExtractRouter builds the extraction handler on the real input, loader,
// and assembler implementations; only the upstream fetcher is mocked.
func newExtractRouter(t *testing.T, fetcher types.AttributeFetcher, maxBytes int64) http.Handler {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	uploadCfg := config.UploadConfig{
		MaxBytes:          maxBytes,
		AllowedExtensions: []string{".geojson", ".json", ".kml", ".kmz"},
		TempDir:           t.TempDir(),
	}
	labelCfg := config.LabelConfig{MaxCount: 50, MaxLength: 100}
	extractCfg := config.ExtractConfig{Dataset: "WORLDCLIM/V1/BIO", ScaleMeters: 927.67, BandPrefix: "bio"}

	h := NewExtractHandler(ExtractHandlerConfig{
		Input:     input.NewService(uploadCfg, labelCfg),
		Loader:    geometry.NewLoader(uploadCfg.TempDir, logger),
		Fetcher:   fetcher,
		Assembler: results.NewAssembler(extractCfg, logger),
		Validator: core.NewValidator(logger),
		Logger:    logger,
		Clock:     fixedClock{},
		Extract:   extractCfg,
		MaxBytes:  uploadCfg.MaxBytes,
	})

	r := chi.NewRouter()
	r.Route("/v1", h.RegisterRoutes)
	return r
}

// multipartBody builds a multipart form with an optional file part and a
// labels field.
func multipartBody(t *testing.T, filename string, content []byte, labels string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.WriteField("labels", labels))
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func postMultipart(t *testing.T, router http.Handler, target, filename string, content []byte, labels string) *httptest.ResponseRecorder {
	t.Helper()

	body, contentType := multipartBody(t, filename, content, labels)
	req := httptest.NewRequest(http.MethodPost, target, body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

type dataEnvelope struct {
	Data extractResponse `json:"data"`
	Meta *struct {
		Warnings []string `json:"warnings"`
	} `json:"meta"`
}

type errorEnvelope struct {
	Error struct {
		Code      string         `json:"code"`
		Message   string         `json:"message"`
		Details   map[string]any `json:"details"`
		RequestID string         `json:"request_id"`
	} `json:"error"`
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) extractResponse {
	t.Helper()
	var env dataEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env.Data
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

// =============================================================================
// Multipart upload tests
// =============================================================================

func TestHandleExtract_GeoJSONUpload(t *testing.T) {
	fetcher := &mockFetcher{}
	router := newExtractRouter(t, fetcher, 10<<20)

	rec := postMultipart(t, router, "/v1/extract", "points.geojson", []byte(canonicalGeoJSON), "P1, P2, P3")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, fetcher.calls)

	data := decodeData(t, rec)
	assert.Equal(t, "WORLDCLIM/V1/BIO", data.Dataset)
	assert.Equal(t, 927.67, data.ScaleMeters)
	assert.Equal(t, []string{"P1", "P2", "P3"}, data.Columns)
	assert.Equal(t, []string{"latitude", "longitude", "BIO1", "BIO12"}, data.Index)
	assert.Equal(t, fixedFilename, data.SuggestedFilename)

	require.Len(t, data.Cells, 4)
	require.Len(t, data.Cells[0], 3)
	assert.Equal(t, -27.80, *data.Cells[0][0])
	assert.Equal(t, -50.20, *data.Cells[1][1])
	assert.Equal(t, 180.0, *data.Cells[2][2])
	assert.Equal(t, 1500.0, *data.Cells[3][0])
}

func TestHandleExtract_CSVDownload(t *testing.T) {
	router := newExtractRouter(t, &mockFetcher{}, 10<<20)

	rec := postMultipart(t, router, "/v1/extract?format=csv", "points.geojson", []byte(canonicalGeoJSON), "P1, P2, P3")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, fmt.Sprintf("attachment; filename=%q", fixedFilename), rec.Header().Get("Content-Disposition"))

	want := ";P1;P2;P3\n" +
		"latitude;-27,8;-27,85;-27,9\n" +
		"longitude;-50,1;-50,2;-50,3\n" +
		"BIO1;180;180;180\n" +
		"BIO12;1500;1500;1500\n"
	assert.Equal(t, want, rec.Body.String())
}

func TestHandleExtract_KMLUpload(t *testing.T) {
	router := newExtractRouter(t, &mockFetcher{}, 10<<20)

	rec := postMultipart(t, router, "/v1/extract", "points.kml", []byte(twoPlacemarkKML), "north, south")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := decodeData(t, rec)
	assert.Equal(t, []string{"north", "south"}, data.Columns)
}

func TestHandleExtract_LabelMismatchSkipsFetch(t *testing.T) {
	fetcher := &mockFetcher{}
	router := newExtractRouter(t, fetcher, 10<<20)

	rec := postMultipart(t, router, "/v1/extract", "points.geojson", []byte(canonicalGeoJSON), "P1, P2")

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	env := decodeError(t, rec)
	assert.Equal(t, "shape_label_count_mismatch", env.Error.Code)
	assert.EqualValues(t, 3, env.Error.Details["expected"])
	assert.EqualValues(t, 2, env.Error.Details["actual"])
	assert.Equal(t, 0, fetcher.calls, "a mismatched request must never reach the platform")
}

func TestHandleExtract_MissingFile(t *testing.T) {
	fetcher := &mockFetcher{}
	router := newExtractRouter(t, fetcher, 10<<20)

	rec := postMultipart(t, router, "/v1/extract", "", nil, "P1")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_missing_file", decodeError(t, rec).Error.Code)
	assert.Equal(t, 0, fetcher.calls)
}

func TestHandleExtract_DisallowedExtension(t *testing.T) {
	fetcher := &mockFetcher{}
	router := newExtractRouter(t, fetcher, 10<<20)

	rec := postMultipart(t, router, "/v1/extract", "points.shp", []byte("not geometry"), "P1")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_file_extension_not_allowed", decodeError(t, rec).Error.Code)
	assert.Equal(t, 0, fetcher.calls)
}

func TestHandleExtract_MissingLabels(t *testing.T) {
	fetcher := &mockFetcher{}
	router := newExtractRouter(t, fetcher, 10<<20)

	rec := postMultipart(t, router, "/v1/extract", "points.geojson", []byte(canonicalGeoJSON), "  ,  ")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_missing_labels", decodeError(t, rec).Error.Code)
	assert.Equal(t, 0, fetcher.calls)
}

func TestHandleExtract_OversizedFileRejectedFromHeader(t *testing.T) {
	fetcher := &mockFetcher{}
	router := newExtractRouter(t, fetcher, 1024)

	rec := postMultipart(t, router, "/v1/extract", "points.geojson", bytes.Repeat([]byte("x"), 5000), "P1")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeError(t, rec)
	assert.Equal(t, "validation_file_too_large", env.Error.Code)
	assert.EqualValues(t, 1024, env.Error.Details["max_bytes"])
	assert.Equal(t, 0, fetcher.calls)
}

func TestHandleExtract_OversizedBodyRejectedInTransport(t *testing.T) {
	fetcher := &mockFetcher{}
	router := newExtractRouter(t, fetcher, 1024)

	huge := bytes.Repeat([]byte("x"), (1<<20)+4096)
	rec := postMultipart(t, router, "/v1/extract", "points.geojson", huge, "P1")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_file_too_large", decodeError(t, rec).Error.Code)
	assert.Equal(t, 0, fetcher.calls)
}

func TestHandleExtract_PolygonRejected(t *testing.T) {
	fetcher := &mockFetcher{}
	router := newExtractRouter(t, fetcher, 10<<20)

	rec := postMultipart(t, router, "/v1/extract", "area.geojson", []byte(polygonGeoJSON), "P1")

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	env := decodeError(t, rec)
	assert.Equal(t, "geometry_unsupported_type", env.Error.Code)
	assert.Equal(t, "Polygon", env.Error.Details["geometry_type"])
	assert.Equal(t, 0, fetcher.calls)
}

func TestHandleExtract_UpstreamFailureMapsTo502(t *testing.T) {
	fetcher := &mockFetcher{
		fetchFn: func(context.Context, []types.Point) ([]types.AttributeRow, error) {
			return nil, types.NewAppError(types.ErrCodeUpstreamCallFailed, "the platform could not be reached", nil)
		},
	}
	router := newExtractRouter(t, fetcher, 10<<20)

	rec := postMultipart(t, router, "/v1/extract", "points.geojson", []byte(canonicalGeoJSON), "P1, P2, P3")

	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "upstream_call_failed", decodeError(t, rec).Error.Code)
	assert.Equal(t, 1, fetcher.calls)
}

func TestHandleExtract_AuthFailureMapsTo503(t *testing.T) {
	fetcher := &mockFetcher{
		fetchFn: func(context.Context, []types.Point) ([]types.AttributeRow, error) {
			return nil, types.NewAppError(types.ErrCodeAuthUpstreamDenied, "the platform denied the service credentials", nil)
		},
	}
	router := newExtractRouter(t, fetcher, 10<<20)

	rec := postMultipart(t, router, "/v1/extract", "points.geojson", []byte(canonicalGeoJSON), "P1, P2, P3")

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "auth_upstream_denied", decodeError(t, rec).Error.Code)
}

func TestHandleExtract_RowCountMismatchMapsTo422(t *testing.T) {
	fetcher := &mockFetcher{
		fetchFn: func(_ context.Context, points []types.Point) ([]types.AttributeRow, error) {
			return []types.AttributeRow{{"BIO1": 180}, {"BIO1": 176}}, nil
		},
	}
	router := newExtractRouter(t, fetcher, 10<<20)

	rec := postMultipart(t, router, "/v1/extract", "points.geojson", []byte(canonicalGeoJSON), "P1, P2, P3")

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	env := decodeError(t, rec)
	assert.Equal(t, "shape_attribute_count_mismatch", env.Error.Code)
	assert.EqualValues(t, 3, env.Error.Details["expected"])
	assert.EqualValues(t, 2, env.Error.Details["actual"])
}

func TestHandleExtract_MissingValueSerializesAsNull(t *testing.T) {
	fetcher := &mockFetcher{
		fetchFn: func(_ context.Context, points []types.Point) ([]types.AttributeRow, error) {
			rows := make([]types.AttributeRow, len(points))
			for i := range rows {
				rows[i] = types.AttributeRow{"BIO1": 180}
			}
			rows[1]["BIO12"] = 1500
			return rows, nil
		},
	}
	router := newExtractRouter(t, fetcher, 10<<20)

	rec := postMultipart(t, router, "/v1/extract", "points.geojson", []byte(canonicalGeoJSON), "P1, P2, P3")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := decodeData(t, rec)
	require.Equal(t, []string{"latitude", "longitude", "BIO1", "BIO12"}, data.Index)
	assert.Nil(t, data.Cells[3][0])
	require.NotNil(t, data.Cells[3][1])
	assert.Equal(t, 1500.0, *data.Cells[3][1])
	assert.Nil(t, data.Cells[3][2])
}

func TestHandleExtract_NoDataPointWarnsInMeta(t *testing.T) {
	fetcher := &mockFetcher{
		fetchFn: func(_ context.Context, points []types.Point) ([]types.AttributeRow, error) {
			rows := make([]types.AttributeRow, len(points))
			for i := range rows {
				rows[i] = types.AttributeRow{"BIO1": 180}
			}
			// The second point samples to nothing, as an ocean point would.
			rows[1] = types.AttributeRow{}
			return rows, nil
		},
	}
	router := newExtractRouter(t, fetcher, 10<<20)

	rec := postMultipart(t, router, "/v1/extract", "points.geojson", []byte(canonicalGeoJSON), "P1, P2, P3")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var env dataEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))

	require.NotNil(t, env.Meta)
	require.Len(t, env.Meta.Warnings, 1)
	assert.Contains(t, env.Meta.Warnings[0], "1 of 3 points")
	assert.Contains(t, env.Meta.Warnings[0], "P2")
}

func TestHandleExtract_FullySampledOmitsMeta(t *testing.T) {
	router := newExtractRouter(t, &mockFetcher{}, 10<<20)

	rec := postMultipart(t, router, "/v1/extract", "points.geojson", []byte(canonicalGeoJSON), "P1, P2, P3")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var env dataEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Nil(t, env.Meta)
}

// =============================================================================
// Inline JSON tests
// =============================================================================

func postInline(t *testing.T, router http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/extract", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandleExtract_InlineJSON(t *testing.T) {
	fetcher := &mockFetcher{}
	router := newExtractRouter(t, fetcher, 10<<20)

	body := fmt.Sprintf(`{"geojson": %s, "labels": "P1, P2, P3"}`, canonicalGeoJSON)
	rec := postInline(t, router, body)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, fetcher.calls)

	data := decodeData(t, rec)
	assert.Equal(t, []string{"P1", "P2", "P3"}, data.Columns)
	assert.Equal(t, []string{"latitude", "longitude", "BIO1", "BIO12"}, data.Index)
}

func TestHandleExtract_InlineJSON_BlankLabels(t *testing.T) {
	router := newExtractRouter(t, &mockFetcher{}, 10<<20)

	body := fmt.Sprintf(`{"geojson": %s, "labels": "   "}`, canonicalGeoJSON)
	rec := postInline(t, router, body)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_missing_labels", decodeError(t, rec).Error.Code)
}

func TestHandleExtract_InlineJSON_MalformedBody(t *testing.T) {
	router := newExtractRouter(t, &mockFetcher{}, 10<<20)

	rec := postInline(t, router, `{"geojson": {`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_invalid_json", decodeError(t, rec).Error.Code)
}

func TestHandleExtract_InlineJSON_UnknownField(t *testing.T) {
	router := newExtractRouter(t, &mockFetcher{}, 10<<20)

	body := fmt.Sprintf(`{"geojson": %s, "labels": "P1, P2, P3", "format": "csv"}`, canonicalGeoJSON)
	rec := postInline(t, router, body)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_invalid_json", decodeError(t, rec).Error.Code)
}

func TestHandleExtract_InlineJSON_CSVDownload(t *testing.T) {
	router := newExtractRouter(t, &mockFetcher{}, 10<<20)

	body := fmt.Sprintf(`{"geojson": %s, "labels": "P1, P2, P3"}`, canonicalGeoJSON)
	req := httptest.NewRequest(http.MethodPost, "/v1/extract?format=csv", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "latitude;-27,8;-27,85;-27,9\n")
}

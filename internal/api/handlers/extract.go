// Package handlers contains the HTTP handler implementations for the bioclim
// extraction API. It covers:
//   - Point extraction (POST /v1/extract), multipart upload or inline GeoJSON
//   - Variable catalog listing (GET /v1/variables)
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"bioclim/internal/config"
	"bioclim/internal/core"
	"bioclim/internal/export"
	"bioclim/internal/results"
	"bioclim/internal/types"
)

// multipartFormMemory caps how much of a parsed form is held in memory;
// larger uploads spill to the form's own temporary storage, which is
// removed when the handler returns.
const multipartFormMemory = 8 << 20

// formOverheadBytes is the slack allowed on top of the upload limit for
// multipart boundaries and the labels field.
const formOverheadBytes = 1 << 20

// inlineFilename is the synthetic name given to inline GeoJSON documents so
// they flow through the same validation and loading pipeline as uploads.
const inlineFilename = "inline.geojson"

// InputValidator gates requests on metadata alone: upload filename, size,
// and the raw label string. Matches the input package service but is defined
// locally to avoid tight coupling per the handler injection pattern.
type InputValidator interface {
	ValidateUpload(meta types.UploadMeta) error
	ParseLabels(raw string) ([]string, error)
}

// GeometryLoader spools an uploaded document and parses it into points.
type GeometryLoader interface {
	Load(ctx context.Context, r io.Reader, filename string) ([]types.Point, error)
}

// TableAssembler builds the labeled result table from fetched rows.
type TableAssembler interface {
	Assemble(points []types.Point, labels []string, rows []types.AttributeRow) (types.Table, error)
}

// ExtractHandler maps extraction requests onto the input, geometry, fetch,
// and assembly stages.
type ExtractHandler struct {
	input     InputValidator
	loader    GeometryLoader
	fetcher   types.AttributeFetcher
	assembler TableAssembler
	validator *core.Validator
	logger    *slog.Logger
	clock     types.Clock
	extract   config.ExtractConfig
	maxBytes  int64
}

// ExtractHandlerConfig holds the dependencies for NewExtractHandler.
type ExtractHandlerConfig struct {
	Input     InputValidator
	Loader    GeometryLoader
	Fetcher   types.AttributeFetcher
	Assembler TableAssembler
	Validator *core.Validator
	Logger    *slog.Logger
	Clock     types.Clock
	Extract   config.ExtractConfig
	MaxBytes  int64
}

// NewExtractHandler creates an ExtractHandler with the provided dependencies.
func NewExtractHandler(cfg ExtractHandlerConfig) *ExtractHandler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	return &ExtractHandler{
		input:     cfg.Input,
		loader:    cfg.Loader,
		fetcher:   cfg.Fetcher,
		assembler: cfg.Assembler,
		validator: cfg.Validator,
		logger:    logger,
		clock:     clock,
		extract:   cfg.Extract,
		maxBytes:  cfg.MaxBytes,
	}
}

// RegisterRoutes mounts the extraction endpoint onto the mux.
func (h *ExtractHandler) RegisterRoutes(r chi.Router) {
	r.Post("/extract", h.HandleExtract)
}

// extractResponse is the JSON body of a successful extraction: the transposed
// table (variables as index, labels as columns) plus the sampling parameters.
// Cells are pointers so missing values serialize as null instead of breaking
// the encoder with NaN.
type extractResponse struct {
	Dataset           string       `json:"dataset"`
	ScaleMeters       float64      `json:"scale_meters"`
	Columns           []string     `json:"columns"`
	Index             []string     `json:"index"`
	Cells             [][]*float64 `json:"cells"`
	SuggestedFilename string       `json:"suggested_filename"`
}

// inlineExtractRequest is the application/json form of an extraction request
// for clients that already hold the GeoJSON document in memory.
type inlineExtractRequest struct {
	GeoJSON json.RawMessage `json:"geojson" validate:"required"`
	Labels  string          `json:"labels" validate:"required"`
}

// Validate implements types.Validator with the checks struct tags cannot
// express.
func (req *inlineExtractRequest) Validate() error {
	if len(bytes.TrimSpace(req.GeoJSON)) == 0 || bytes.Equal(bytes.TrimSpace(req.GeoJSON), []byte("null")) {
		return types.NewAppError(
			types.ErrCodeValidationMissingField,
			"the geojson document must not be empty",
			nil,
		)
	}
	if strings.TrimSpace(req.Labels) == "" {
		return types.NewAppError(
			types.ErrCodeValidationMissingLabels,
			"no labels were provided",
			nil,
		)
	}
	return nil
}

// HandleExtract handles POST /v1/extract. Flow:
//  1. Validate the upload metadata and label list (no content read).
//  2. Spool and parse the geometry into points.
//  3. Check the label count against the point count BEFORE fetching.
//  4. Fetch attribute rows from the platform (exactly one attempt).
//  5. Assemble the labeled table and respond as JSON or CSV.
func (h *ExtractHandler) HandleExtract(w http.ResponseWriter, r *http.Request) {
	var (
		points []types.Point
		labels []string
		err    error
	)
	if isJSONRequest(r) {
		points, labels, err = h.parseInlineRequest(w, r)
	} else {
		points, labels, err = h.parseMultipartRequest(w, r)
	}
	if err != nil {
		core.Error(w, r, err)
		return
	}

	result, err := h.runExtraction(r.Context(), points, labels)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if r.URL.Query().Get("format") == "csv" {
		h.respondCSV(w, r, result)
		return
	}

	resp := core.APIResponse{Data: newExtractResponse(result)}
	if warning := noDataWarning(result.Table); warning != "" {
		resp.Meta = &types.ResponseMeta{Warnings: []string{warning}}
	}
	core.JSON(w, r, http.StatusOK, resp)
}

// noDataWarning describes the points that sampled to nothing, or returns ""
// when every point produced at least one value. Listed labels are capped to
// keep the warning readable for large uploads.
func noDataWarning(table types.Table) string {
	noData := results.NoDataLabels(table)
	if len(noData) == 0 {
		return ""
	}

	const maxListed = 10
	listed := noData
	if len(listed) > maxListed {
		listed = listed[:maxListed]
	}
	names := strings.Join(listed, ", ")
	if len(noData) > maxListed {
		names = fmt.Sprintf("%s and %d more", names, len(noData)-maxListed)
	}
	return fmt.Sprintf("no values were sampled for %d of %d points (%s); they may fall outside the dataset's coverage",
		len(noData), len(table.Columns), names)
}

// parseMultipartRequest reads the multipart form, validates the upload
// metadata before any content is consumed, and loads the points. The form's
// spill files and the upload stream are released before returning.
func (h *ExtractHandler) parseMultipartRequest(w http.ResponseWriter, r *http.Request) ([]types.Point, []string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+formOverheadBytes)

	if err := r.ParseMultipartForm(multipartFormMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, nil, types.NewAppErrorWithDetails(
				types.ErrCodeValidationFileTooLarge,
				fmt.Sprintf("the upload exceeds the limit of %d bytes", h.maxBytes),
				err,
				map[string]any{"max_bytes": h.maxBytes},
			)
		}
		return nil, nil, types.NewAppError(
			types.ErrCodeValidationMalformedForm,
			"the multipart form could not be parsed",
			err,
		)
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil, types.NewAppError(
				types.ErrCodeValidationMissingFile,
				"no file was provided",
				nil,
			)
		}
		return nil, nil, types.NewAppError(
			types.ErrCodeValidationMalformedForm,
			"the file field could not be read",
			err,
		)
	}
	defer file.Close()

	meta := types.UploadMeta{Filename: header.Filename, Size: header.Size}
	if err := h.input.ValidateUpload(meta); err != nil {
		return nil, nil, err
	}
	labels, err := h.input.ParseLabels(r.FormValue("labels"))
	if err != nil {
		return nil, nil, err
	}

	points, err := h.loader.Load(r.Context(), file, header.Filename)
	if err != nil {
		return nil, nil, err
	}
	return points, labels, nil
}

// parseInlineRequest decodes the application/json request form. The inline
// document gets a synthetic filename and flows through the same validation
// and loading pipeline as an upload, under the same size limit.
func (h *ExtractHandler) parseInlineRequest(w http.ResponseWriter, r *http.Request) ([]types.Point, []string, error) {
	var req inlineExtractRequest
	if err := core.DecodeJSONLimit(w, r, &req, h.maxBytes+formOverheadBytes); err != nil {
		return nil, nil, err
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		return nil, nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, nil, err
	}

	meta := types.UploadMeta{Filename: inlineFilename, Size: int64(len(req.GeoJSON))}
	if err := h.input.ValidateUpload(meta); err != nil {
		return nil, nil, err
	}
	labels, err := h.input.ParseLabels(req.Labels)
	if err != nil {
		return nil, nil, err
	}

	points, err := h.loader.Load(r.Context(), bytes.NewReader(req.GeoJSON), inlineFilename)
	if err != nil {
		return nil, nil, err
	}
	return points, labels, nil
}

// runExtraction performs the fetch-and-assemble stages. The shape check runs
// first so a label/point mismatch never costs an upstream call.
func (h *ExtractHandler) runExtraction(ctx context.Context, points []types.Point, labels []string) (*types.ExtractionResult, error) {
	if err := results.ValidateShape(len(points), len(labels)); err != nil {
		return nil, err
	}

	rows, err := h.fetcher.FetchAttributes(ctx, points)
	if err != nil {
		return nil, err
	}

	table, err := h.assembler.Assemble(points, labels, rows)
	if err != nil {
		return nil, err
	}

	h.logger.InfoContext(ctx, "extraction completed",
		"point_count", len(points),
		"variable_count", len(table.Index)-2,
	)

	return &types.ExtractionResult{
		Dataset:           h.extract.Dataset,
		ScaleMeters:       h.extract.ScaleMeters,
		Table:             table,
		SuggestedFilename: export.SuggestedFilename(h.clock.Now()),
	}, nil
}

// respondCSV streams the encoded table as a download attachment.
func (h *ExtractHandler) respondCSV(w http.ResponseWriter, r *http.Request, result *types.ExtractionResult) {
	data, err := export.EncodeCSV(result.Table)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.SuggestedFilename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func newExtractResponse(result *types.ExtractionResult) extractResponse {
	return extractResponse{
		Dataset:           result.Dataset,
		ScaleMeters:       result.ScaleMeters,
		Columns:           result.Table.Columns,
		Index:             result.Table.Index,
		Cells:             jsonCells(result.Table.Cells),
		SuggestedFilename: result.SuggestedFilename,
	}
}

// jsonCells converts NaN cells to nil so they serialize as JSON null.
func jsonCells(cells [][]float64) [][]*float64 {
	out := make([][]*float64, len(cells))
	for i, row := range cells {
		converted := make([]*float64, len(row))
		for j := range row {
			if !math.IsNaN(row[j]) {
				v := row[j]
				converted[j] = &v
			}
		}
		out[i] = converted
	}
	return out
}

func isJSONRequest(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(ct)), "application/json")
}

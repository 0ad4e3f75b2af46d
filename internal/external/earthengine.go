package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"bioclim/internal/types"
)

// earthEngineBaseURL is the default platform API base URL.
// Overridable in tests via ClientConfig.BaseURL.
const earthEngineBaseURL = "https://earthengine.googleapis.com"

// upstreamEarthEngine labels upstream-call metrics.
const upstreamEarthEngine = "earthengine"

// maxSampleResponseBytes caps how much of a sampling response is read.
// Responses for the label-count limit are a few kilobytes; anything near
// this ceiling is garbage.
const maxSampleResponseBytes = 16 << 20

// MetricsRecorder records upstream call outcomes. The observability
// collector satisfies it; nil disables recording.
type MetricsRecorder interface {
	RecordUpstreamCall(upstream, outcome string, duration time.Duration)
}

// ClientConfig holds the configuration for creating a Client.
type ClientConfig struct {
	BaseURL     string // Override for testing; defaults to earthEngineBaseURL
	ProjectID   string // Defaults to the credential handle's project
	Dataset     string
	ScaleMeters float64
	UserAgent   string
	Logger      *slog.Logger
	Metrics     MetricsRecorder
}

// sampleRequest is the envelope POSTed to the platform's compute
// endpoint.
type sampleRequest struct {
	Expression sampleExpression `json:"expression"`
}

// sampleExpression describes the computation: sample the dataset image
// at each point geometry, reduced at the given scale.
type sampleExpression struct {
	Dataset     string           `json:"dataset"`
	ScaleMeters float64          `json:"scaleMeters"`
	Points      sampleCollection `json:"points"`
}

type sampleCollection struct {
	Type     string          `json:"type"`
	Features []sampleFeature `json:"features"`
}

type sampleFeature struct {
	Type     string         `json:"type"`
	Geometry sampleGeometry `json:"geometry"`
}

// sampleGeometry carries coordinates in GeoJSON order, [lon, lat].
type sampleGeometry struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

// Client samples dataset bands at point locations on the remote
// geospatial platform. It implements types.AttributeFetcher.
//
// The row count in the response is untrusted here: the assembler
// re-checks it against the request's point count before any merge.
type Client struct {
	base    *BaseClient
	handle  *CredentialHandle
	baseURL string
	project string
	dataset string
	scale   float64
	logger  *slog.Logger
	metrics MetricsRecorder
}

var _ types.AttributeFetcher = (*Client)(nil)

// NewClient creates a platform client. The httpClient timeout bounds
// each sampling call; the credential handle supplies bearer tokens.
func NewClient(httpClient *http.Client, handle *CredentialHandle, cfg ClientConfig) *Client {
	base := NewBaseClient(httpClient, "earthengine", cfg.UserAgent)
	return newClient(base, handle, cfg)
}

// NewClientWithBase creates a Client with a pre-configured BaseClient.
// This is useful for testing when you want to control the breaker.
func NewClientWithBase(base *BaseClient, handle *CredentialHandle, cfg ClientConfig) *Client {
	return newClient(base, handle, cfg)
}

func newClient(base *BaseClient, handle *CredentialHandle, cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = earthEngineBaseURL
	}

	project := cfg.ProjectID
	if project == "" && handle != nil {
		project = handle.ProjectID()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		base:    base,
		handle:  handle,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		project: project,
		dataset: cfg.Dataset,
		scale:   cfg.ScaleMeters,
		logger:  logger,
		metrics: cfg.Metrics,
	}
}

// FetchAttributes samples the dataset at every point, in order, and
// returns one attribute row per point. The call is made exactly once;
// failures are returned to the caller, never retried here.
func (c *Client) FetchAttributes(ctx context.Context, points []types.Point) ([]types.AttributeRow, error) {
	if len(points) == 0 {
		return nil, types.NewAppError(types.ErrCodeGeometryEmpty,
			"there are no points to sample", nil)
	}

	tok, err := c.handle.Token(ctx)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(c.buildRequest(points))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected,
			"failed to serialize the sampling request", err)
	}

	url := fmt.Sprintf("%s/v1/projects/%s/value:compute", c.baseURL, c.project)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected,
			"failed to create the sampling request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	tok.SetAuthHeader(req)

	c.logger.DebugContext(ctx, "sampling dataset at points",
		"dataset", c.dataset,
		"point_count", len(points),
		"scale_meters", c.scale,
	)

	start := time.Now()
	resp, err := c.base.Do(req)
	if err != nil {
		c.record("error", start)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		c.record("auth_error", start)
		return nil, c.authDenied(resp)
	}
	if resp.StatusCode >= 400 {
		c.record("error", start)
		return nil, c.handleErrorResponse(resp)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSampleResponseBytes))
	if err != nil {
		c.record("error", start)
		return nil, types.NewAppError(types.ErrCodeUpstreamBadResponse,
			"the sampling response could not be read", err)
	}

	rows, err := normalizeSamples(data)
	if err != nil {
		c.record("error", start)
		return nil, err
	}

	c.record("ok", start)
	c.logger.InfoContext(ctx, "sampling completed",
		"dataset", c.dataset,
		"point_count", len(points),
		"row_count", len(rows),
	)
	return rows, nil
}

func (c *Client) buildRequest(points []types.Point) sampleRequest {
	features := make([]sampleFeature, len(points))
	for i, p := range points {
		features[i] = sampleFeature{
			Type: "Feature",
			Geometry: sampleGeometry{
				Type:        "Point",
				Coordinates: [2]float64{p.Lon, p.Lat},
			},
		}
	}
	return sampleRequest{
		Expression: sampleExpression{
			Dataset:     c.dataset,
			ScaleMeters: c.scale,
			Points: sampleCollection{
				Type:     "FeatureCollection",
				Features: features,
			},
		},
	}
}

// record reports one upstream call outcome.
func (c *Client) record(outcome string, start time.Time) {
	if c.metrics == nil {
		return
	}
	c.metrics.RecordUpstreamCall(upstreamEarthEngine, outcome, time.Since(start))
}

// authDenied maps 401/403 to the fatal auth class. The response body is
// logged server-side and never reaches the client.
func (c *Client) authDenied(resp *http.Response) *types.AppError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	c.logger.Error("platform denied the service credentials",
		"status_code", resp.StatusCode,
		"response_body", string(body),
	)
	return types.NewAppError(types.ErrCodeAuthUpstreamDenied,
		"the platform denied the service credentials", nil)
}

// handleErrorResponse logs a non-2xx body and returns an upstream error
// carrying the status code but never the payload.
func (c *Client) handleErrorResponse(resp *http.Response) *types.AppError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	c.logger.Error("platform sampling call failed",
		"status_code", resp.StatusCode,
		"response_body", string(body),
	)
	return types.NewAppErrorWithDetails(types.ErrCodeUpstreamCallFailed,
		"the platform rejected the sampling request", nil,
		map[string]any{"status_code": resp.StatusCode})
}

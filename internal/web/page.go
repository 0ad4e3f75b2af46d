// Package web serves the embedded extraction front page: a map for picking
// points, the upload form, and the variable reference table.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"bioclim/internal/config"
	"bioclim/internal/types"
)

//go:embed templates/index.html
var templateFS embed.FS

// Default map view. The service grew out of a study area in the Santa
// Catarina highlands; the page opens there.
const (
	mapCenterLat = -27.86
	mapCenterLon = -50.20
	mapZoom      = 10
)

// pageData is the struct passed into the page template for rendering.
type pageData struct {
	Dataset      string
	Resolution   string
	Citation     string
	MaxUploadMB  int64
	AcceptExts   string
	MapCenterLat float64
	MapCenterLon float64
	MapZoom      int
	Variables    []types.VariableMetadata
	Version      string
}

// PageConfig holds the parameters needed to construct a Page.
type PageConfig struct {
	Extract config.ExtractConfig
	Upload  config.UploadConfig
	Version string
}

// Page serves the front page. Everything on it is fixed for the process
// lifetime, so the template is rendered once at construction and served
// as bytes afterwards.
type Page struct {
	body []byte
}

// NewPage parses the embedded template and renders the page.
// Returns an error if the template fails to parse or execute.
func NewPage(cfg PageConfig) (*Page, error) {
	raw, err := templateFS.ReadFile("templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("page: failed to read index.html: %w", err)
	}
	tmpl, err := template.New("index").Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("page: failed to parse index.html: %w", err)
	}

	data := pageData{
		Dataset:      cfg.Extract.Dataset,
		Resolution:   strconv.FormatFloat(cfg.Extract.ScaleMeters, 'f', -1, 64) + " m",
		Citation:     types.DatasetCitation,
		MaxUploadMB:  cfg.Upload.MaxBytes >> 20,
		AcceptExts:   strings.Join(cfg.Upload.AllowedExtensions, ","),
		MapCenterLat: mapCenterLat,
		MapCenterLon: mapCenterLon,
		MapZoom:      mapZoom,
		Variables:    types.BioclimVariables,
		Version:      cfg.Version,
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("page: failed to render index.html: %w", err)
	}
	return &Page{body: buf.Bytes()}, nil
}

// ServeHTTP writes the pre-rendered page.
func (p *Page) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(p.body)
}

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"bioclim/internal/config"
	"bioclim/internal/core"
	"bioclim/internal/types"
)

// VariablesHandler serves the bioclim variable catalog. The catalog is
// static reference data, so no service layer sits behind this handler.
type VariablesHandler struct {
	extract config.ExtractConfig
	logger  *slog.Logger
}

// NewVariablesHandler creates a VariablesHandler.
func NewVariablesHandler(extract config.ExtractConfig, logger *slog.Logger) *VariablesHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &VariablesHandler{extract: extract, logger: logger}
}

// RegisterRoutes mounts the catalog endpoint onto the mux.
func (h *VariablesHandler) RegisterRoutes(r chi.Router) {
	r.Get("/variables", h.HandleList)
}

// variablesResponse carries the catalog plus the dataset parameters needed
// to interpret it.
type variablesResponse struct {
	Dataset          string                   `json:"dataset"`
	ResolutionMeters float64                  `json:"resolution_meters"`
	Citation         string                   `json:"citation"`
	Variables        []types.VariableMetadata `json:"variables"`
}

// HandleList handles GET /v1/variables.
func (h *VariablesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=86400")

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: variablesResponse{
		Dataset:          h.extract.Dataset,
		ResolutionMeters: h.extract.ScaleMeters,
		Citation:         types.DatasetCitation,
		Variables:        types.BioclimVariables,
	}})
}

// Package geometry turns validated uploads into point coordinates.
// The loader spools each upload into a uniquely named temporary file,
// parses it by extension (GeoJSON, KML, or KMZ), and removes the file
// before returning on every path. Only point-typed geometry is accepted;
// the extraction pipeline has no interpretation for lines or polygons.
package geometry

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"bioclim/internal/types"
)

// tempFilePrefix names spool files so stray ones are recognizable.
const tempFilePrefix = "bioclim-"

// Loader parses uploaded geometry files into point sets.
type Loader struct {
	tempDir string
	logger  *slog.Logger
}

// NewLoader builds a Loader that spools uploads into tempDir. An empty
// tempDir falls back to the operating system default.
func NewLoader(tempDir string, logger *slog.Logger) *Loader {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Loader{tempDir: tempDir, logger: logger}
}

// Load spools r into a temporary file and parses it according to the
// extension of filename. The temporary file is uniquely named so
// concurrent requests cannot collide, and it is removed before Load
// returns on success and on every failure path.
//
// The upload is assumed to have passed input validation already; Load
// enforces content-level rules (parseability, geometry types, coordinate
// ranges, at least one point).
func (l *Loader) Load(ctx context.Context, r io.Reader, filename string) ([]types.Point, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	path, err := l.spool(r, ext)
	if path != "" {
		defer func() {
			if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
				l.logger.Warn("failed to remove temporary upload",
					"path", path,
					"error", rmErr,
				)
			}
		}()
	}
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	points, err := l.parseFile(path, ext)
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, types.NewAppError(types.ErrCodeGeometryEmpty,
			"the uploaded file contains no points", nil)
	}
	for _, p := range points {
		if err := types.ValidateCoordinate(p.Lat, p.Lon); err != nil {
			return nil, err
		}
	}
	return points, nil
}

// spool copies the upload into a uniquely named file under the loader's
// temp directory. The path is returned even on error so the caller's
// deferred cleanup can remove partial writes.
func (l *Loader) spool(r io.Reader, ext string) (string, error) {
	path := filepath.Join(l.tempDir, tempFilePrefix+uuid.NewString()+ext)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalTempStorage,
			"could not create temporary storage for the upload", err)
	}

	_, copyErr := io.Copy(f, r)
	closeErr := f.Close()
	if copyErr != nil {
		return path, types.NewAppError(types.ErrCodeInternalTempStorage,
			"could not write the upload to temporary storage", copyErr)
	}
	if closeErr != nil {
		return path, types.NewAppError(types.ErrCodeInternalTempStorage,
			"could not write the upload to temporary storage", closeErr)
	}
	return path, nil
}

// parseFile dispatches on the (already lowercased) extension.
func (l *Loader) parseFile(path, ext string) ([]types.Point, error) {
	switch ext {
	case ".geojson", ".json":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalTempStorage,
				"could not read the upload back from temporary storage", err)
		}
		return parseGeoJSON(data)
	case ".kml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalTempStorage,
				"could not read the upload back from temporary storage", err)
		}
		return parseKML(data)
	case ".kmz":
		return parseKMZ(path)
	default:
		return nil, types.NewAppErrorWithDetails(types.ErrCodeValidationFileExtension,
			"the file type is not supported", nil,
			map[string]any{"extension": ext})
	}
}

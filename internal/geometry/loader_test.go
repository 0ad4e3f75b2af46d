package geometry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bioclim/internal/types"
)

func testLoader(t *testing.T) (*Loader, string) {
	t.Helper()

	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewLoader(dir, logger), dir
}

// assertDirEmpty verifies the spool file was removed.
func assertDirEmpty(t *testing.T, dir string) {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read spool dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected spool dir to be empty, found %d entries", len(entries))
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("disk error")
}

func TestLoad_GeoJSON(t *testing.T) {
	l, dir := testLoader(t)

	doc := `{
		"type": "FeatureCollection",
		"features": [
			{"type": "Feature", "geometry": {"type": "Point", "coordinates": [-50.10, -27.80]}},
			{"type": "Feature", "geometry": {"type": "Point", "coordinates": [-50.20, -27.85]}},
			{"type": "Feature", "geometry": {"type": "Point", "coordinates": [-50.30, -27.90]}}
		]
	}`

	points, err := l.Load(context.Background(), strings.NewReader(doc), "points.geojson")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(points))
	}
	if points[0].Lat != -27.80 || points[0].Lon != -50.10 {
		t.Errorf("first point = %+v", points[0])
	}
	assertDirEmpty(t, dir)
}

func TestLoad_JSONExtension(t *testing.T) {
	l, dir := testLoader(t)

	doc := `{"type": "Point", "coordinates": [10.0, 20.0]}`
	points, err := l.Load(context.Background(), strings.NewReader(doc), "export.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 1 {
		t.Errorf("expected 1 point, got %v", points)
	}
	assertDirEmpty(t, dir)
}

func TestLoad_KML(t *testing.T) {
	l, dir := testLoader(t)

	doc := `<kml><Document>
		<Placemark><Point><coordinates>-50.10,-27.80</coordinates></Point></Placemark>
	</Document></kml>`

	points, err := l.Load(context.Background(), strings.NewReader(doc), "points.kml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 1 || points[0].Lat != -27.80 {
		t.Errorf("points = %v", points)
	}
	assertDirEmpty(t, dir)
}

func TestLoad_KMZ(t *testing.T) {
	l, dir := testLoader(t)

	archivePath := writeArchive(t, []archiveEntry{{name: "doc.kml", body: kmzTestKML}})
	data, err := os.ReadFile(archivePath)
	if err != nil {
		t.Fatalf("read fixture archive: %v", err)
	}

	points, err := l.Load(context.Background(), strings.NewReader(string(data)), "points.kmz")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 1 {
		t.Errorf("expected 1 point, got %v", points)
	}
	assertDirEmpty(t, dir)
}

func TestLoad_CaseInsensitiveExtension(t *testing.T) {
	l, dir := testLoader(t)

	doc := `{"type": "Point", "coordinates": [1.0, 2.0]}`
	if _, err := l.Load(context.Background(), strings.NewReader(doc), "Points.GEOJSON"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertDirEmpty(t, dir)
}

func TestLoad_CleanupOnParseFailure(t *testing.T) {
	l, dir := testLoader(t)

	_, err := l.Load(context.Background(), strings.NewReader(`{"broken`), "points.geojson")
	assertGeometryCode(t, err, types.ErrCodeGeometryUnreadable)
	assertDirEmpty(t, dir)
}

func TestLoad_EmptyGeometry(t *testing.T) {
	l, dir := testLoader(t)

	doc := `{"type": "FeatureCollection", "features": []}`
	_, err := l.Load(context.Background(), strings.NewReader(doc), "points.geojson")
	assertGeometryCode(t, err, types.ErrCodeGeometryEmpty)
	assertDirEmpty(t, dir)
}

func TestLoad_CoordinateOutOfRange(t *testing.T) {
	l, dir := testLoader(t)

	doc := `{"type": "Point", "coordinates": [200.0, 100.0]}`
	_, err := l.Load(context.Background(), strings.NewReader(doc), "points.geojson")
	assertGeometryCode(t, err, types.ErrCodeGeometryCoordinateRange)
	assertDirEmpty(t, dir)
}

func TestLoad_ReaderFailure(t *testing.T) {
	l, dir := testLoader(t)

	_, err := l.Load(context.Background(), failingReader{}, "points.geojson")
	assertGeometryCode(t, err, types.ErrCodeInternalTempStorage)
	// The partial spool file must not survive the failed copy.
	assertDirEmpty(t, dir)
}

func TestLoad_ContextCanceled(t *testing.T) {
	l, dir := testLoader(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.Load(ctx, strings.NewReader(`{"type": "Point", "coordinates": [1, 2]}`), "points.geojson")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	assertDirEmpty(t, dir)
}

func TestLoad_UnrecognizedExtension(t *testing.T) {
	l, dir := testLoader(t)

	_, err := l.Load(context.Background(), strings.NewReader("data"), "points.gpx")
	assertGeometryCode(t, err, types.ErrCodeValidationFileExtension)
	assertDirEmpty(t, dir)
}

func TestNewLoader_EmptyDirFallsBack(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	l := NewLoader("", logger)
	if l.tempDir != os.TempDir() {
		t.Errorf("tempDir = %q, want %q", l.tempDir, os.TempDir())
	}
}

// --- TempDirProbe ---

func TestTempDirProbe_Healthy(t *testing.T) {
	dir := t.TempDir()
	p := NewTempDirProbe(dir)

	if got := p.Name(); got != "temp_storage" {
		t.Errorf("Name() = %q", got)
	}
	if err := p.Check(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertDirEmpty(t, dir)
}

func TestTempDirProbe_MissingDir(t *testing.T) {
	p := NewTempDirProbe(filepath.Join(t.TempDir(), "does-not-exist"))

	if err := p.Check(context.Background()); err == nil {
		t.Fatal("expected an error for a missing directory")
	}
}

func TestTempDirProbe_PathIsAFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	p := NewTempDirProbe(path)

	if err := p.Check(context.Background()); err == nil {
		t.Fatal("expected an error when the spool path is a regular file")
	}
}

func TestTempDirProbe_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewTempDirProbe(t.TempDir())
	if err := p.Check(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

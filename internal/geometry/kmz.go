package geometry

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"

	"bioclim/internal/types"
)

// maxKMLEntryBytes bounds how far a KMZ entry is decompressed. Uploads
// are size-capped before they reach the loader, but compression ratios
// are not, so the archived document gets its own ceiling.
const maxKMLEntryBytes = 64 << 20

// parseKMZ opens a KMZ archive (a zip wrapping a KML document) and
// parses its KML entry. Reading a zip needs random access, which is one
// of the reasons uploads are spooled to disk first.
func parseKMZ(path string) ([]types.Point, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeGeometryUnreadable,
			"the file is not a valid KMZ archive", err)
	}
	defer archive.Close()

	entry := findKMLEntry(archive.File)
	if entry == nil {
		return nil, types.NewAppError(types.ErrCodeGeometryUnreadable,
			"the KMZ archive contains no KML document", nil)
	}

	rc, err := entry.Open()
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeGeometryUnreadable,
			"the KML document inside the archive could not be opened", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxKMLEntryBytes+1))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeGeometryUnreadable,
			"the KML document inside the archive could not be read", err)
	}
	if int64(len(data)) > maxKMLEntryBytes {
		return nil, types.NewAppError(types.ErrCodeGeometryUnreadable,
			"the KML document inside the archive is too large", nil)
	}
	return parseKML(data)
}

// findKMLEntry returns the archive's KML document, preferring the
// conventional doc.kml at the root, otherwise the first .kml entry.
func findKMLEntry(files []*zip.File) *zip.File {
	var first *zip.File
	for _, f := range files {
		if strings.ToLower(filepath.Ext(f.Name)) != ".kml" {
			continue
		}
		if strings.EqualFold(f.Name, "doc.kml") {
			return f
		}
		if first == nil {
			first = f
		}
	}
	return first
}

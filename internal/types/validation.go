package types

import (
	"fmt"
	"strings"
	"unicode"
)

// Validation constraint constants.
const (
	MinLat = -90.0
	MaxLat = 90.0
	MinLon = -180.0
	MaxLon = 180.0
)

// filenameUnsafeChars are rejected in upload filenames: path separators,
// null bytes, and shell metacharacters. Parent-directory references are
// checked separately because ".." is multi-character.
const filenameUnsafeChars = "/\\\x00;|&$><`!'\"*?"

// labelUnsafeChars are rejected in point labels: angle brackets (markup)
// on top of the control characters checked per rune.
const labelUnsafeChars = "<>"

// ValidateCoordinate checks that a parsed coordinate pair is on the globe.
func ValidateCoordinate(lat, lon float64) error {
	if lat < MinLat || lat > MaxLat || lon < MinLon || lon > MaxLon {
		return NewAppErrorWithDetails(
			ErrCodeGeometryCoordinateRange,
			fmt.Sprintf("coordinate (%v, %v) is outside valid latitude/longitude ranges", lat, lon),
			nil,
			map[string]any{"lat": lat, "lon": lon},
		)
	}
	return nil
}

// ValidateUploadName rejects filenames that could enable path traversal or
// shell injection if the name were ever echoed into a path or command.
func ValidateUploadName(filename string) error {
	if filename == "" {
		return NewAppError(ErrCodeValidationFilenameUnsafe, "filename must not be empty", nil)
	}
	if strings.Contains(filename, "..") {
		return NewAppError(ErrCodeValidationFilenameUnsafe, "filename must not contain parent directory references", nil)
	}
	if i := strings.IndexAny(filename, filenameUnsafeChars); i >= 0 {
		return NewAppErrorWithDetails(
			ErrCodeValidationFilenameUnsafe,
			"filename contains a forbidden character",
			nil,
			map[string]any{"character": string(filename[i])},
		)
	}
	for _, r := range filename {
		if unicode.IsControl(r) {
			return NewAppError(ErrCodeValidationFilenameUnsafe, "filename must not contain control characters", nil)
		}
	}
	return nil
}

// ValidateLabel checks a single point label against the length limit and the
// character rules. Labels end up as table headers and CSV cells, so markup
// and control characters are rejected outright.
func ValidateLabel(label string, maxLen int) error {
	if len(label) > maxLen {
		return NewAppErrorWithDetails(
			ErrCodeValidationLabelTooLong,
			fmt.Sprintf("label exceeds maximum length of %d characters", maxLen),
			nil,
			map[string]any{"label_length": len(label), "max_length": maxLen},
		)
	}
	if strings.ContainsAny(label, labelUnsafeChars) {
		return NewAppErrorWithDetails(
			ErrCodeValidationLabelCharacters,
			"label must not contain markup characters",
			nil,
			map[string]any{"label": label},
		)
	}
	for _, r := range label {
		if unicode.IsControl(r) {
			return NewAppError(ErrCodeValidationLabelCharacters, "label must not contain control characters", nil)
		}
	}
	return nil
}

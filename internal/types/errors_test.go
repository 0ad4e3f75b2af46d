package types

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

// TestAppErrorImplementsError verifies that *AppError satisfies the error interface.
func TestAppErrorImplementsError(t *testing.T) {
	var _ error = (*AppError)(nil)
}

// TestAppErrorErrorFormat verifies the Error() method produces "code: message".
func TestAppErrorErrorFormat(t *testing.T) {
	appErr := &AppError{
		Code:    ErrCodeValidationFileTooLarge,
		Message: "file exceeds the upload limit",
	}

	expected := "validation_file_too_large: file exceeds the upload limit"
	if appErr.Error() != expected {
		t.Errorf("Error() = %q, want %q", appErr.Error(), expected)
	}
}

// TestAppErrorUnwrap verifies the error chain support via Unwrap.
func TestAppErrorUnwrap(t *testing.T) {
	underlying := errors.New("unexpected end of JSON input")
	appErr := &AppError{
		Code:    ErrCodeGeometryUnreadable,
		Message: "failed to parse uploaded geometry",
		Err:     underlying,
	}

	if appErr.Unwrap() != underlying {
		t.Errorf("Unwrap() returned unexpected error: got %v, want %v", appErr.Unwrap(), underlying)
	}
}

// TestAppErrorUnwrapNil verifies Unwrap returns nil when no underlying error exists.
func TestAppErrorUnwrapNil(t *testing.T) {
	appErr := &AppError{
		Code:    ErrCodeGeometryEmpty,
		Message: "no point geometries found",
	}

	if appErr.Unwrap() != nil {
		t.Errorf("Unwrap() should return nil when Err is nil, got %v", appErr.Unwrap())
	}
}

// TestAppErrorErrorsAs verifies that errors.As can extract AppError from an error chain.
func TestAppErrorErrorsAs(t *testing.T) {
	appErr := &AppError{
		Code:    ErrCodeUpstreamCallFailed,
		Message: "sampling request failed",
	}
	wrappedErr := fmt.Errorf("handler failed: %w", appErr)

	var extracted *AppError
	if !errors.As(wrappedErr, &extracted) {
		t.Fatal("errors.As failed to extract *AppError from wrapped chain")
	}
	if extracted.Code != ErrCodeUpstreamCallFailed {
		t.Errorf("extracted code = %q, want %q", extracted.Code, ErrCodeUpstreamCallFailed)
	}
}

// TestErrorCodeHTTPStatus verifies the prefix-based status mapping for every
// error class the service emits.
func TestErrorCodeHTTPStatus(t *testing.T) {
	cases := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeValidationMissingFile, http.StatusBadRequest},
		{ErrCodeValidationFileTooLarge, http.StatusBadRequest},
		{ErrCodeValidationFileExtension, http.StatusBadRequest},
		{ErrCodeValidationFilenameUnsafe, http.StatusBadRequest},
		{ErrCodeValidationTooManyLabels, http.StatusBadRequest},
		{ErrCodeValidationLabelTooLong, http.StatusBadRequest},
		{ErrCodeValidationLabelCharacters, http.StatusBadRequest},
		{ErrCodeValidationMalformedForm, http.StatusBadRequest},
		{ErrCodeGeometryUnreadable, http.StatusUnprocessableEntity},
		{ErrCodeGeometryEmpty, http.StatusUnprocessableEntity},
		{ErrCodeGeometryUnsupportedType, http.StatusUnprocessableEntity},
		{ErrCodeGeometryCoordinateRange, http.StatusUnprocessableEntity},
		{ErrCodeShapeLabelMismatch, http.StatusUnprocessableEntity},
		{ErrCodeShapeAttributeMismatch, http.StatusUnprocessableEntity},
		{ErrCodeShapeNoVariables, http.StatusUnprocessableEntity},
		{ErrCodeAuthCredentialsMissing, http.StatusServiceUnavailable},
		{ErrCodeAuthCredentialsInvalid, http.StatusServiceUnavailable},
		{ErrCodeAuthTokenExchange, http.StatusServiceUnavailable},
		{ErrCodeAuthUpstreamDenied, http.StatusServiceUnavailable},
		{ErrCodeUpstreamCallFailed, http.StatusBadGateway},
		{ErrCodeUpstreamBadResponse, http.StatusBadGateway},
		{ErrCodeUpstreamUnavailable, http.StatusBadGateway},
		{ErrCodeUpstreamTimeout, http.StatusBadGateway},
		{ErrCodeNotFoundRoute, http.StatusNotFound},
		{ErrCodeInternalTempStorage, http.StatusInternalServerError},
		{ErrCodeInternalEncoding, http.StatusInternalServerError},
		{ErrCodeInternalUnexpected, http.StatusInternalServerError},
		{ErrorCode("something_unrecognized"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		if got := tc.code.HTTPStatus(); got != tc.want {
			t.Errorf("HTTPStatus(%q) = %d, want %d", tc.code, got, tc.want)
		}
	}
}

// TestWithDetailsDoesNotMutate verifies WithDetails returns a copy and leaves
// the original error untouched.
func TestWithDetailsDoesNotMutate(t *testing.T) {
	original := NewAppErrorWithDetails(
		ErrCodeShapeAttributeMismatch,
		"attribute row count does not match point count",
		nil,
		map[string]any{"expected": 3},
	)

	derived := original.WithDetails(map[string]any{"actual": 5})

	if _, ok := original.Details["actual"]; ok {
		t.Error("WithDetails mutated the original error's details")
	}
	if derived.Details["expected"] != 3 {
		t.Errorf("derived details lost original key: %v", derived.Details)
	}
	if derived.Details["actual"] != 5 {
		t.Errorf("derived details missing merged key: %v", derived.Details)
	}
	if derived.Code != original.Code || derived.Message != original.Message {
		t.Error("WithDetails changed code or message")
	}
}

// TestNewShapeMismatchCarriesBothCounts verifies the canonical mismatch error
// always reports what was expected and what arrived.
func TestNewShapeMismatchCarriesBothCounts(t *testing.T) {
	err := NewShapeMismatch(ErrCodeShapeLabelMismatch, "label count does not match point count", 3, 7)

	if err.Details["expected"] != 3 {
		t.Errorf("expected count = %v, want 3", err.Details["expected"])
	}
	if err.Details["actual"] != 7 {
		t.Errorf("actual count = %v, want 7", err.Details["actual"])
	}
	if err.HTTPStatus() != http.StatusUnprocessableEntity {
		t.Errorf("HTTPStatus() = %d, want 422", err.HTTPStatus())
	}
}

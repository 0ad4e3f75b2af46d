package types

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Complete error code constants.
// All handlers MUST use these constants instead of hardcoded strings.
const (
	// Validation (400): the request was rejected before any file content
	// was parsed.
	ErrCodeValidationMissingFile     ErrorCode = "validation_missing_file"
	ErrCodeValidationFileTooLarge    ErrorCode = "validation_file_too_large"
	ErrCodeValidationFileExtension   ErrorCode = "validation_file_extension_not_allowed"
	ErrCodeValidationFilenameUnsafe  ErrorCode = "validation_filename_unsafe"
	ErrCodeValidationMissingLabels   ErrorCode = "validation_missing_labels"
	ErrCodeValidationTooManyLabels   ErrorCode = "validation_too_many_labels"
	ErrCodeValidationLabelTooLong    ErrorCode = "validation_label_too_long"
	ErrCodeValidationLabelCharacters ErrorCode = "validation_label_invalid_characters"
	ErrCodeValidationMissingField    ErrorCode = "validation_missing_required_field"
	ErrCodeValidationMalformedForm   ErrorCode = "validation_malformed_form"

	// Geometry (422): the upload passed validation but its content could
	// not be turned into a usable point set.
	ErrCodeGeometryUnreadable      ErrorCode = "geometry_unreadable"
	ErrCodeGeometryEmpty           ErrorCode = "geometry_empty"
	ErrCodeGeometryUnsupportedType ErrorCode = "geometry_unsupported_type"
	ErrCodeGeometryCoordinateRange ErrorCode = "geometry_coordinates_out_of_range"

	// Shape (422): row counts disagree between labels, points, and fetched
	// attribute rows. Both counts are carried in Details.
	ErrCodeShapeLabelMismatch     ErrorCode = "shape_label_count_mismatch"
	ErrCodeShapeAttributeMismatch ErrorCode = "shape_attribute_count_mismatch"
	ErrCodeShapeNoVariables       ErrorCode = "shape_no_variable_columns"

	// Auth (503): the service's own upstream credentials are missing,
	// malformed, or rejected. Not a client fault and not retried.
	ErrCodeAuthCredentialsMissing ErrorCode = "auth_credentials_missing"
	ErrCodeAuthCredentialsInvalid ErrorCode = "auth_credentials_invalid"
	ErrCodeAuthTokenExchange      ErrorCode = "auth_token_exchange_failed"
	ErrCodeAuthUpstreamDenied     ErrorCode = "auth_upstream_denied"

	// Upstream (502): the remote platform call failed after auth.
	ErrCodeUpstreamCallFailed  ErrorCode = "upstream_call_failed"
	ErrCodeUpstreamBadResponse ErrorCode = "upstream_bad_response"
	ErrCodeUpstreamUnavailable ErrorCode = "upstream_unavailable"
	ErrCodeUpstreamTimeout     ErrorCode = "upstream_timeout"

	// Not Found (404)
	ErrCodeNotFoundRoute ErrorCode = "not_found_route"

	// Internal (500)
	ErrCodeInternalTempStorage ErrorCode = "internal_temp_storage_error"
	ErrCodeInternalEncoding    ErrorCode = "internal_encoding_error"
	ErrCodeInternalUnexpected  ErrorCode = "internal_unexpected_error"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Used by the API layer to translate AppErrors into HTTP responses.
// Returns 500 for unrecognized error codes as a safe default.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest // 400
	case strings.HasPrefix(s, "geometry_"):
		return http.StatusUnprocessableEntity // 422
	case strings.HasPrefix(s, "shape_"):
		return http.StatusUnprocessableEntity // 422
	case strings.HasPrefix(s, "auth_"):
		return http.StatusServiceUnavailable // 503
	case strings.HasPrefix(s, "upstream_"):
		return http.StatusBadGateway // 502
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound // 404
	case strings.HasPrefix(s, "internal_"):
		return http.StatusInternalServerError // 500
	default:
		return http.StatusInternalServerError // 500
	}
}

// AppError is the standard application error type used throughout the service.
// All domain and handler errors should be expressed as AppError to enable
// consistent error formatting, HTTP status mapping, and error chain support.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a copy of the error with the provided details merged in.
// This is useful for adding context without mutating the original error.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: merged,
	}
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error. This is the standard constructor for domain errors.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError with the given code, message,
// underlying error, and structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}

// NewShapeMismatch builds the canonical row-count mismatch error. The two
// counts are always carried in Details so clients can see what disagreed.
func NewShapeMismatch(code ErrorCode, message string, expected, actual int) *AppError {
	return NewAppErrorWithDetails(code, message, nil, map[string]any{
		"expected": expected,
		"actual":   actual,
	})
}

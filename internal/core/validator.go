package core

import (
	"errors"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"bioclim/internal/types"
)

// errCodeValidationFieldValue is returned when a request field is present but
// violates a non-required constraint (range, oneof, format). Missing required
// fields use types.ErrCodeValidationMissingField instead.
const errCodeValidationFieldValue types.ErrorCode = "validation_invalid_field_value"

// Validator wraps go-playground/validator to translate struct tag violations
// into the service's structured AppError format. Request structs carry
// `validate` tags; handlers call ValidateStruct after decoding.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a new Validator. Field names in error details use the
// struct's JSON tag so clients see the wire name, not the Go identifier.
func NewValidator(logger *slog.Logger) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Validator{
		validate: v,
		logger:   logger,
	}
}

// ValidateStruct runs tag validation on s and returns nil when all constraints
// pass. On failure it returns a single *types.AppError whose Details map lists
// every violated field and the rule it failed, so clients can fix an entire
// request in one round trip.
//
// The error code is validation_missing_required_field when at least one
// failure is a required-family rule, validation_invalid_field_value otherwise.
func (v *Validator) ValidateStruct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		// Programming error: a non-struct was passed in.
		v.logger.Error("validator received a non-struct value", "error", err)
		return types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"request validation failed unexpectedly",
			err,
		)
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"request validation failed unexpectedly",
			err,
		)
	}

	details := make(map[string]any, len(verrs))
	anyRequired := false
	for _, fe := range verrs {
		details[fe.Field()] = fe.Tag()
		if strings.HasPrefix(fe.Tag(), "required") {
			anyRequired = true
		}
	}

	code := errCodeValidationFieldValue
	message := "one or more fields have invalid values"
	if anyRequired {
		code = types.ErrCodeValidationMissingField
		message = "one or more required fields are missing"
	}

	return types.NewAppErrorWithDetails(code, message, err, details)
}

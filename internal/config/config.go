// Package config defines the global configuration structure for the bioclim
// extraction service. Configuration is loaded once at process initialization
// and is immutable thereafter. It follows 12-Factor App principles by strictly
// separating code from configuration.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> Mounted Secret Files (Lowest)
//
// Any missing required value or invalid format causes the application to fail
// immediately on startup (fail fast).
package config

import (
	"os"
	"time"

	"bioclim/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type used
// throughout configuration to prevent accidental logging of sensitive values.
type SecretString = types.SecretString

// Config is the top-level configuration struct for the extraction service.
// It is populated once during process initialization and never modified.
// Sub-components receive only the specific config subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"bioclim-api"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Domain Configurations
	Server      ServerConfig
	Upload      UploadConfig
	Labels      LabelConfig
	Extract     ExtractConfig
	EarthEngine EarthEngineConfig
	Security    SecurityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// UploadConfig holds limits applied to geometry uploads before any content
// is read.
type UploadConfig struct {
	MaxBytes          int64    `envconfig:"UPLOAD_MAX_BYTES" default:"10485760" validate:"min=1"`
	AllowedExtensions []string `envconfig:"UPLOAD_ALLOWED_EXTENSIONS" default:".geojson,.json,.kml,.kmz"`
	// TempDir overrides the directory for spooled uploads. Empty means
	// os.TempDir().
	TempDir string `envconfig:"UPLOAD_TEMP_DIR"`
}

// LabelConfig holds limits applied to the comma-separated label input.
type LabelConfig struct {
	MaxCount  int `envconfig:"LABELS_MAX_COUNT" default:"50" validate:"min=1"`
	MaxLength int `envconfig:"LABELS_MAX_LENGTH" default:"100" validate:"min=1"`
}

// ExtractConfig holds the sampling parameters sent to the remote platform.
// The dataset ID and scale are configurable constants: changing them points
// the service at a different image, but the extraction semantics (bioclim
// bands sampled per point) stay fixed.
type ExtractConfig struct {
	Dataset     string  `envconfig:"EXTRACT_DATASET" default:"WORLDCLIM/V1/BIO" validate:"required"`
	ScaleMeters float64 `envconfig:"EXTRACT_SCALE_METERS" default:"927.67" validate:"gt=0"`
	// BandPrefix selects which sampled properties count as variables.
	// Matching is case-insensitive on substring.
	BandPrefix string `envconfig:"EXTRACT_BAND_PREFIX" default:"bio" validate:"required"`
}

// EarthEngineConfig holds the remote platform endpoint and credentials.
// Credentials are a service-account key supplied either inline
// (GOOGLE_SERVICE_ACCOUNT_JSON, typically mounted via the _FILE secret
// convention) or as a key-file path (GOOGLE_APPLICATION_CREDENTIALS).
type EarthEngineConfig struct {
	BaseURL         string        `envconfig:"EE_BASE_URL" default:"https://earthengine.googleapis.com" validate:"required,url"`
	Timeout         time.Duration `envconfig:"EE_TIMEOUT" default:"30s"`
	CredentialsJSON SecretString  `envconfig:"GOOGLE_SERVICE_ACCOUNT_JSON"`
	CredentialsFile string        `envconfig:"GOOGLE_APPLICATION_CREDENTIALS"`
}

// SecurityConfig holds CORS settings.
type SecurityConfig struct {
	CorsAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// RawServiceAccount returns the service-account key bytes from whichever
// source is configured, preferring the inline JSON over the key-file path.
// Returns a missing-credentials error when neither source is set; the caller
// treats that as fatal at startup.
func (c EarthEngineConfig) RawServiceAccount() (types.SecretBytes, error) {
	if c.CredentialsJSON.IsSet() {
		return types.SecretBytes(c.CredentialsJSON.Unmask()), nil
	}
	if c.CredentialsFile != "" {
		raw, err := os.ReadFile(c.CredentialsFile)
		if err != nil {
			return nil, types.NewAppError(
				types.ErrCodeAuthCredentialsMissing,
				"service account key file could not be read",
				err,
			)
		}
		return types.SecretBytes(raw), nil
	}
	return nil, types.NewAppError(
		types.ErrCodeAuthCredentialsMissing,
		"no service account credentials configured",
		nil,
	)
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrMissingEnv indicates a required environment variable was not found.
	ErrMissingEnv ConfigErrorType = "MISSING_ENV"
	// ErrSecretResolution indicates a failure when reading mounted secret files.
	ErrSecretResolution ConfigErrorType = "SECRET_RESOLUTION_FAILED"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)

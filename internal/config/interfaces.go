package config

import "context"

// SecretProvider abstracts the retrieval of secrets to support both mounted
// secret files (container deployments) and environment variables (local
// development). This interface enables dependency injection for testing and
// environment-specific secret resolution.
type SecretProvider interface {
	// GetSecretsBatch retrieves multiple secret values at once. The refs
	// slice contains the secret references (file paths or equivalent
	// identifiers) to resolve. Returns a map of ref -> plaintext value for
	// all successfully resolved secrets; unresolvable refs are omitted
	// rather than reported as errors so the caller can name the missing
	// ones precisely.
	GetSecretsBatch(ctx context.Context, refs []string) (map[string]string, error)
}

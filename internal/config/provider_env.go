package config

import (
	"context"
	"os"
)

// EnvVarProvider implements SecretProvider by resolving secret references as
// OS environment variable names. This is an escape hatch for test setups
// where secrets are staged in the environment under their reference name
// instead of being mounted as files.
type EnvVarProvider struct{}

// NewEnvVarProvider creates a new EnvVarProvider.
func NewEnvVarProvider() *EnvVarProvider {
	return &EnvVarProvider{}
}

// GetSecretsBatch resolves each ref by looking it up as an OS environment
// variable via os.LookupEnv. Only refs that are found in the environment are
// included in the returned map; missing refs are silently omitted.
//
// The context parameter is accepted for interface compatibility but is not
// used, as environment variable lookups are synchronous and non-cancellable.
func (p *EnvVarProvider) GetSecretsBatch(_ context.Context, refs []string) (map[string]string, error) {
	result := make(map[string]string, len(refs))
	for _, ref := range refs {
		if val, ok := os.LookupEnv(ref); ok {
			result[ref] = val
		}
	}
	return result, nil
}

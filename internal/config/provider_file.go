package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// maxSecretFileSize caps how much of a mounted secret file is read. Secret
// material (service-account keys, tokens) is small; anything larger is a
// misconfigured reference, not a secret.
const maxSecretFileSize = 1 << 20 // 1 MB

// FileProvider implements SecretProvider by reading mounted secret files.
// This is the primary provider for container deployments where secrets are
// projected into the filesystem (Docker secrets, Kubernetes secret volumes)
// and referenced via _FILE environment variables.
//
// A non-empty root confines resolution to that directory tree, so a
// mis-set reference cannot read arbitrary paths on the host.
type FileProvider struct {
	// root, when non-empty, is the directory all references must resolve
	// under (e.g., /run/secrets).
	root string
}

// NewFileProvider creates a FileProvider without a confinement root:
// references are treated as absolute or working-directory-relative paths.
func NewFileProvider() *FileProvider {
	return &FileProvider{}
}

// NewFileProviderWithRoot creates a FileProvider that only resolves
// references under the given directory.
func NewFileProviderWithRoot(root string) *FileProvider {
	return &FileProvider{root: root}
}

// resolvePath validates a reference against the confinement root.
func (p *FileProvider) resolvePath(ref string) (string, error) {
	if p.root == "" {
		return ref, nil
	}
	joined := filepath.Join(p.root, filepath.Clean("/"+ref))
	rel, err := filepath.Rel(p.root, joined)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("secret reference %q escapes the provider root", ref)
	}
	return joined, nil
}

// GetSecretsBatch reads each referenced file and returns its contents with
// surrounding whitespace trimmed (mounted secrets commonly end in a newline).
//
// Missing files are omitted from the result rather than failing the batch,
// matching the SecretProvider contract: the loader reports exactly which
// target variables stayed unresolved. Read errors other than non-existence
// fail the batch, since they indicate permission or mount problems that
// should halt startup.
func (p *FileProvider) GetSecretsBatch(ctx context.Context, refs []string) (map[string]string, error) {
	result := make(map[string]string, len(refs))

	for _, ref := range refs {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled during secret file resolution: %w", ctx.Err())
		default:
		}

		path, err := p.resolvePath(ref)
		if err != nil {
			return nil, err
		}

		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("stat secret file %q: %w", ref, err)
		}
		if !info.Mode().IsRegular() {
			return nil, fmt.Errorf("secret reference %q is not a regular file", ref)
		}
		if info.Size() > maxSecretFileSize {
			return nil, fmt.Errorf("secret file %q exceeds %d bytes", ref, maxSecretFileSize)
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			// The file can vanish between Stat and ReadFile during
			// secret rotation; treat that like a missing reference.
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("read secret file %q: %w", ref, err)
		}

		result[ref] = strings.TrimSpace(string(raw))
	}

	return result, nil
}

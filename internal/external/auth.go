package external

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/jwt"
	"golang.org/x/sync/singleflight"

	"bioclim/internal/types"
)

// Scopes requested for the platform token. Sampling needs both: the
// dataset lives behind the earthengine scope and the project binding
// behind cloud-platform.
var earthEngineScopes = []string{
	"https://www.googleapis.com/auth/earthengine",
	"https://www.googleapis.com/auth/cloud-platform",
}

// CredentialHandle is the process-wide handle to the platform
// credentials. The service-account key is parsed and presence-validated
// at startup, which is fatal when it is absent or malformed; the OAuth2
// token source is built on first use and cached for the rest of the
// process lifetime. Concurrent first uses share a single token exchange.
type CredentialHandle struct {
	account *types.ServiceAccount
	client  *http.Client

	group  singleflight.Group
	mu     sync.RWMutex
	source oauth2.TokenSource
}

// NewCredentialHandle wraps an already-parsed service account. httpClient
// carries the token exchange; nil falls back to http.DefaultClient with
// its lack of timeouts, so callers should pass a configured client.
func NewCredentialHandle(account *types.ServiceAccount, httpClient *http.Client) *CredentialHandle {
	return &CredentialHandle{
		account: account,
		client:  httpClient,
	}
}

// ProjectID returns the project the credentials are bound to.
func (h *CredentialHandle) ProjectID() string {
	if h.account == nil {
		return ""
	}
	return h.account.ProjectID
}

// EnsureReady performs the one-time credential initialization: it builds
// the token source and proves the key works with an initial exchange.
// Safe for concurrent use; once it has succeeded it returns immediately.
// A failed initialization is not cached, so the next request attempts it
// again.
func (h *CredentialHandle) EnsureReady(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.RLock()
	ready := h.source != nil
	h.mu.RUnlock()
	if ready {
		return nil
	}

	_, err, _ := h.group.Do("init", func() (any, error) {
		h.mu.RLock()
		src := h.source
		h.mu.RUnlock()
		if src != nil {
			return nil, nil
		}

		if h.account == nil {
			return nil, types.NewAppError(types.ErrCodeAuthCredentialsMissing,
				"service account credentials are not loaded", nil)
		}

		source := h.buildTokenSource()
		if _, err := source.Token(); err != nil {
			return nil, types.NewAppError(types.ErrCodeAuthTokenExchange,
				"the platform rejected the service account credentials", err)
		}

		h.mu.Lock()
		h.source = source
		h.mu.Unlock()
		return nil, nil
	})
	return err
}

// Token returns a valid access token, initializing the credentials if
// this is the first use. The token source refreshes expired tokens on
// its own; refresh failures map to the same auth error as the initial
// exchange.
func (h *CredentialHandle) Token(ctx context.Context) (*oauth2.Token, error) {
	if err := h.EnsureReady(ctx); err != nil {
		return nil, err
	}

	h.mu.RLock()
	source := h.source
	h.mu.RUnlock()

	tok, err := source.Token()
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeAuthTokenExchange,
			"the platform rejected the service account credentials", err)
	}
	return tok, nil
}

// buildTokenSource assembles the two-legged JWT flow for the service
// account. The token endpoint comes from the key file, so tests can
// point it at a local server.
func (h *CredentialHandle) buildTokenSource() oauth2.TokenSource {
	ctx := context.Background()
	if h.client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, h.client)
	}

	cfg := &jwt.Config{
		Email:      h.account.ClientEmail,
		PrivateKey: []byte(h.account.PrivateKey.Unmask()),
		Scopes:     earthEngineScopes,
		TokenURL:   h.account.TokenURI,
	}
	return cfg.TokenSource(ctx)
}

// CredentialProbe reports whether parsed credentials are held. It never
// performs a token exchange: health checks must not call the network.
type CredentialProbe struct {
	handle *CredentialHandle
}

// NewCredentialProbe builds the health probe for a credential handle.
func NewCredentialProbe(handle *CredentialHandle) *CredentialProbe {
	return &CredentialProbe{handle: handle}
}

// Name identifies the probe in health responses.
func (p *CredentialProbe) Name() string { return "credentials" }

// Check verifies that a parsed service account is present.
func (p *CredentialProbe) Check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.handle == nil || p.handle.account == nil {
		return errors.New("service account credentials are not loaded")
	}
	return nil
}

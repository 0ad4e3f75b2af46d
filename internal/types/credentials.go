package types

import "encoding/json"

// ServiceAccount holds the parsed Google service-account key used to
// authenticate against the remote platform. The private key is typed as
// SecretString so it can never leak through logs or serialized config.
type ServiceAccount struct {
	Type        string       `json:"type"`
	ProjectID   string       `json:"project_id"`
	PrivateKey  SecretString `json:"private_key"`
	ClientEmail string       `json:"client_email"`
	TokenURI    string       `json:"token_uri"`
}

// googleTokenURI is the default OAuth2 token endpoint when the key file
// omits token_uri.
const googleTokenURI = "https://oauth2.googleapis.com/token"

// ParseServiceAccount decodes and presence-validates a service-account key.
// Malformed JSON or a missing client_email, private_key, or project_id is a
// startup-fatal credential error; the raw JSON is never included in the
// returned error.
func ParseServiceAccount(raw []byte) (*ServiceAccount, error) {
	if len(raw) == 0 {
		return nil, NewAppError(ErrCodeAuthCredentialsMissing, "service account credentials are not configured", nil)
	}

	var sa struct {
		Type        string `json:"type"`
		ProjectID   string `json:"project_id"`
		PrivateKey  string `json:"private_key"`
		ClientEmail string `json:"client_email"`
		TokenURI    string `json:"token_uri"`
	}
	if err := json.Unmarshal(raw, &sa); err != nil {
		return nil, NewAppError(ErrCodeAuthCredentialsInvalid, "service account credentials are not valid JSON", err)
	}

	missing := make([]string, 0, 3)
	if sa.ClientEmail == "" {
		missing = append(missing, "client_email")
	}
	if sa.PrivateKey == "" {
		missing = append(missing, "private_key")
	}
	if sa.ProjectID == "" {
		missing = append(missing, "project_id")
	}
	if len(missing) > 0 {
		return nil, NewAppErrorWithDetails(
			ErrCodeAuthCredentialsInvalid,
			"service account credentials are missing required fields",
			nil,
			map[string]any{"missing_fields": missing},
		)
	}

	tokenURI := sa.TokenURI
	if tokenURI == "" {
		tokenURI = googleTokenURI
	}

	return &ServiceAccount{
		Type:        sa.Type,
		ProjectID:   sa.ProjectID,
		PrivateKey:  SecretString(sa.PrivateKey),
		ClientEmail: sa.ClientEmail,
		TokenURI:    tokenURI,
	}, nil
}

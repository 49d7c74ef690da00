package authenticator

import (
	"context"
	"errors"

	"github.com/coreos/go-oidc/v3/oidc"
)

// OIDCVerifier validates bearer tokens against an OpenID Connect issuer
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// OIDCConfig holds OpenID Connect configuration
type OIDCConfig struct {
	IssuerURL string
	ClientID  string
}

// NewOIDCVerifier creates a verifier bound to the given issuer
func NewOIDCVerifier(ctx context.Context, cfg OIDCConfig) (Verifier, error) {
	// Validate required configuration
	if cfg.IssuerURL == "" {
		return nil, errors.New("issuer URL is required")
	}
	if cfg.ClientID == "" {
		return nil, errors.New("client ID is required")
	}

	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, err
	}

	oidcConfig := &oidc.Config{
		ClientID: cfg.ClientID,
	}

	return &OIDCVerifier{
		verifier: provider.Verifier(oidcConfig),
	}, nil
}

// Verify checks the token signature, issuer, audience and expiry, and
// extracts the caller claims
func (v *OIDCVerifier) Verify(ctx context.Context, rawToken string) (Claims, error) {
	idToken, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, err
	}

	var claims Claims
	if err := idToken.Claims(&claims); err != nil {
		return nil, err
	}

	return claims, nil
}

// Mode identifies this variant for health reporting
func (v *OIDCVerifier) Mode() string {
	return "oidc"
}

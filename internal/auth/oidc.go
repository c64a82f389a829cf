package auth

import (
	"context"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
)

// tokenClaims maps the raw ID-token payload. The custom account_id and
// role claims are minted by the identity provider from the account
// enrollment record.
type tokenClaims struct {
	// Standard OIDC claims (sub, exp, iat, etc.)
	jwt.RegisteredClaims

	Email       string `json:"email"`
	DisplayName string `json:"name"`
	AccountID   string `json:"account_id"`
	Role        string `json:"role"`
}

// OIDCVerifier validates bearer tokens against the identity provider's
// published signing keys. It is the production TokenVerifier.
type OIDCVerifier struct {
	provider *oidc.Provider
	verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier initializes the connection to the identity provider.
// Call this ONCE in main.go
func NewOIDCVerifier(ctx context.Context, issuerURL, clientID string) (*OIDCVerifier, error) {
	// Discovery: hits {issuer}/.well-known/openid-configuration
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, err
	}

	// We want to check that the token is for OUR client ID
	config := &oidc.Config{
		ClientID: clientID,
	}

	return &OIDCVerifier{
		provider: provider,
		verifier: provider.Verifier(config),
	}, nil
}

// Verify checks signature, expiry and audience, then lifts the payload
// into Claims. This uses cached keys from the provider.
func (v *OIDCVerifier) Verify(ctx context.Context, rawToken string) (Claims, error) {
	idToken, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return Claims{}, err
	}

	var tc tokenClaims
	if err := idToken.Claims(&tc); err != nil {
		return Claims{}, err
	}

	return Claims{
		Subject:     tc.Subject,
		Email:       tc.Email,
		AccountID:   tc.AccountID,
		DisplayName: tc.DisplayName,
		Role:        tc.Role,
	}, nil
}

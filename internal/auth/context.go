package auth

import (
	"context"
	"errors"
)

type ContextKey string

const (
	securityContextKey ContextKey = "security_context"
	edgeClaimsKey      ContextKey = "edge_claims"
)

// WithSecurityContext attaches the validated caller identity.
func WithSecurityContext(ctx context.Context, sc SecurityContext) context.Context {
	return context.WithValue(ctx, securityContextKey, sc)
}

// FromContext retrieves the caller identity placed by one of the auth
// middlewares. Handlers behind those middlewares can rely on it being
// present.
func FromContext(ctx context.Context) (SecurityContext, error) {
	val := ctx.Value(securityContextKey)
	if sc, ok := val.(SecurityContext); ok {
		return sc, nil
	}
	return SecurityContext{}, errors.New("no security context in request context")
}

// GetAccountID is a shortcut for the tenant scope every repository
// call needs.
func GetAccountID(ctx context.Context) (string, error) {
	sc, err := FromContext(ctx)
	if err != nil {
		return "", err
	}
	return sc.AccountID, nil
}

func withEdgeClaims(ctx context.Context, claims EdgeClaims) context.Context {
	return context.WithValue(ctx, edgeClaimsKey, claims)
}

func edgeClaimsFrom(ctx context.Context) (EdgeClaims, bool) {
	claims, ok := ctx.Value(edgeClaimsKey).(EdgeClaims)
	return claims, ok
}

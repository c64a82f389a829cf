package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// TokenVerifier cryptographically validates a raw bearer token and
// yields the claims it asserts. Implementations may fail for any
// reason (expired, bad signature, signing keys unreachable); the
// caller treats every failure identically. Injected rather than
// global so tests can substitute a deterministic fake.
type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (Claims, error)
}

// Authenticator is the bearer-token entry point into context
// extraction. One instance is shared by all requests; it holds no
// mutable state.
type Authenticator struct {
	verifier TokenVerifier
}

func NewAuthenticator(verifier TokenVerifier) *Authenticator {
	return &Authenticator{verifier: verifier}
}

// Only this exact scheme is accepted: capital B, one trailing space.
const bearerPrefix = "Bearer "

// Authenticate inspects the request headers and produces an Outcome.
// The verifier is invoked only after the header passes shape checks;
// malformed or absent credentials are refused without touching it.
func (a *Authenticator) Authenticate(ctx context.Context, header http.Header) Outcome {
	raw, ok := bearerToken(header)
	if !ok {
		return denied(denyMissingCredential)
	}

	claims, err := a.verify(ctx, raw)
	if err != nil {
		// Expired, forged, unparseable, IdP unreachable: the caller
		// learns none of that.
		return denied(denyVerificationFailed)
	}

	sc, ok := validateClaims(claims)
	if !ok {
		return denied(denyInsufficientPrivilege)
	}
	return authorized(sc)
}

// verify isolates the verifier call so a panicking implementation
// converts into an ordinary verification failure instead of killing
// the request.
func (a *Authenticator) verify(ctx context.Context, raw string) (claims Claims, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			claims = Claims{}
			err = fmt.Errorf("verifier panicked: %v", rec)
		}
	}()
	return a.verifier.Verify(ctx, raw)
}

// bearerToken extracts the raw token. The header NAME is matched
// case-insensitively; the scheme prefix is matched exactly. Returns
// false for absent headers, foreign schemes, and empty tokens alike.
func bearerToken(header http.Header) (string, bool) {
	value := header.Get("Authorization")
	if value == "" {
		// Header.Get only sees canonical MIME keys. Maps built
		// outside net/http's parser can carry literal lowercase
		// names, so scan for those before giving up.
		for name, values := range header {
			if strings.EqualFold(name, "Authorization") && len(values) > 0 {
				value = values[0]
				break
			}
		}
	}
	if value == "" {
		return "", false
	}
	if !strings.HasPrefix(value, bearerPrefix) {
		return "", false
	}
	token := value[len(bearerPrefix):]
	if token == "" {
		return "", false
	}
	return token, true
}

// Middleware is the standard Go/Chi middleware wrapping Authenticate.
// Denied requests receive the denial's canned response verbatim;
// authorized ones continue with the SecurityContext in the request
// context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		outcome := a.Authenticate(r.Context(), r.Header)
		if outcome.Denied() {
			outcome.Denial.Write(w)
			return
		}

		ctx := WithSecurityContext(r.Context(), outcome.Context)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

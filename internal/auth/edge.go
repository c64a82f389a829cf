package auth

import (
	"encoding/json"
	"net/http"
)

// EdgeClaims is the claim set a trusted edge authorizer attaches after
// it has already verified the caller's token upstream. This path never
// re-verifies signatures; it only checks that the forwarded shape is
// complete. It exists as a backstop for edge misconfiguration, which
// is why every defect collapses to the same 401 below.
type EdgeClaims map[string]string

// EdgeClaimsHeader carries the decoded claim set as JSON. The fronting
// proxy strips any client-supplied copy before forwarding, so its
// presence is trustworthy inside the perimeter.
const EdgeClaimsHeader = "X-Edge-Claims"

// EdgeClaimsAdapter decodes the forwarded claim set onto the request
// context. Absent or unparseable headers attach nothing; the extractor
// downstream turns that into a denial. The adapter itself never
// rejects.
func EdgeClaimsAdapter(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(EdgeClaimsHeader)
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}

		var claims EdgeClaims
		if err := json.Unmarshal([]byte(raw), &claims); err != nil {
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(withEdgeClaims(r.Context(), claims)))
	})
}

// ExtractContext is the synchronous, injection-free entry point for
// platform-attached claims. All five identity fields must be present
// and non-empty and the role must parse; any defect, an invalid role
// included, denies with the uniform {"message":"Unauthorized"} body.
// Unlike the bearer path there is no 403 here: this check is a last
// line of defense, not the primary authorization decision.
func ExtractContext(r *http.Request) Outcome {
	claims, ok := edgeClaimsFrom(r.Context())
	if !ok || len(claims) == 0 {
		return denied(denyEdgeUnauthorized)
	}

	subject := claims["sub"]
	if subject == "" {
		subject = claims["subject"]
	}

	c := Claims{
		Subject:     subject,
		Email:       claims["email"],
		AccountID:   claims["account_id"],
		DisplayName: claims["display_name"],
		Role:        claims["role"],
	}
	if c.Subject == "" || c.Email == "" || c.AccountID == "" || c.DisplayName == "" || c.Role == "" {
		// Which field failed is intentionally not disclosed.
		return denied(denyEdgeUnauthorized)
	}

	sc, ok := validateClaims(c)
	if !ok {
		return denied(denyEdgeUnauthorized)
	}
	return authorized(sc)
}

// RequireEdgeClaims wraps ExtractContext as middleware, mirroring
// Authenticator.Middleware for the edge path.
func RequireEdgeClaims(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		outcome := ExtractContext(r)
		if outcome.Denied() {
			outcome.Denial.Write(w)
			return
		}

		ctx := WithSecurityContext(r.Context(), outcome.Context)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

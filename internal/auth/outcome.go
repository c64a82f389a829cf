package auth

import "net/http"

// DenialKind tags why an extraction was refused. Handlers may branch
// on it for logging; the response bytes are fixed per kind and never
// vary with the underlying cause.
type DenialKind string

const (
	DenialMissingCredential     DenialKind = "missing_credential"
	DenialVerificationFailed    DenialKind = "verification_failed"
	DenialInsufficientPrivilege DenialKind = "insufficient_privilege"
	DenialEdgeClaimsMissing     DenialKind = "edge_claims_missing"
)

// Denial carries a ready-made response. The body is pre-marshaled so
// every refusal of a given kind is byte-identical; that uniformity is
// a security property, not an optimization.
type Denial struct {
	Kind   DenialKind
	Status int
	body   []byte
}

// The two bearer-path shapes and the edge-path shape. These literals
// are load-bearing: clients match on them.
var (
	denyMissingCredential = &Denial{
		Kind:   DenialMissingCredential,
		Status: http.StatusUnauthorized,
		body:   []byte(`{"error":"Unauthorized","code":"UNAUTHORIZED"}`),
	}
	denyVerificationFailed = &Denial{
		Kind:   DenialVerificationFailed,
		Status: http.StatusUnauthorized,
		body:   []byte(`{"error":"Unauthorized","code":"UNAUTHORIZED"}`),
	}
	denyInsufficientPrivilege = &Denial{
		Kind:   DenialInsufficientPrivilege,
		Status: http.StatusForbidden,
		body:   []byte(`{"error":"Forbidden","code":"FORBIDDEN"}`),
	}
	denyEdgeUnauthorized = &Denial{
		Kind:   DenialEdgeClaimsMissing,
		Status: http.StatusUnauthorized,
		body:   []byte(`{"message":"Unauthorized"}`),
	}
)

// Body exposes the canned response payload.
func (d *Denial) Body() []byte {
	return d.body
}

// Write emits the denial verbatim. Callers must not re-wrap the status
// or body.
func (d *Denial) Write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(d.Status)
	w.Write(d.body)
}

// Outcome is the tagged result of an extraction attempt: exactly one
// of Context or Denial is populated. Branch on Denied, never inspect
// both sides.
type Outcome struct {
	Context SecurityContext
	Denial  *Denial
}

func (o Outcome) Denied() bool {
	return o.Denial != nil
}

func authorized(sc SecurityContext) Outcome {
	return Outcome{Context: sc}
}

func denied(d *Denial) Outcome {
	return Outcome{Denial: d}
}

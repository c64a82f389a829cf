package auth

// Role is the closed set of privilege tags an ABLE account caller can
// hold. Anything outside the set (case variants included) is invalid
// and is never defaulted.
type Role string

const (
	// RoleOwner is the beneficiary who owns the ABLE account.
	RoleOwner Role = "owner"
	// RoleAuthorizedRepresentative acts on the owner's behalf
	// (parent, guardian, agent under power of attorney).
	RoleAuthorizedRepresentative Role = "authorized_representative"
)

// ParseRole validates a raw role tag against the closed set.
// The comparison is exact: "Owner" and "" are both rejected.
func ParseRole(raw string) (Role, bool) {
	switch Role(raw) {
	case RoleOwner:
		return RoleOwner, true
	case RoleAuthorizedRepresentative:
		return RoleAuthorizedRepresentative, true
	default:
		return "", false
	}
}

func (r Role) String() string {
	return string(r)
}

// Claims is the untrusted identity assertion handed to us by a token
// verifier or a trusted edge proxy. Values cross into a
// SecurityContext only after validation.
type Claims struct {
	Subject     string
	Email       string
	AccountID   string
	DisplayName string
	Role        string
}

// SecurityContext is the validated caller identity. Built fresh per
// request, immutable, never persisted.
type SecurityContext struct {
	UserID      string
	AccountID   string
	Email       string
	DisplayName string
	Role        Role
}

// validateClaims is the validation funnel both extraction paths share:
// the role must parse against the closed set and the account scope
// must be present. On success the claims freeze into a
// SecurityContext. The reason for a false return is deliberately not
// reported; each path maps it to its own generic denial.
func validateClaims(c Claims) (SecurityContext, bool) {
	role, ok := ParseRole(c.Role)
	if !ok {
		return SecurityContext{}, false
	}
	if c.AccountID == "" {
		return SecurityContext{}, false
	}
	return SecurityContext{
		UserID:      c.Subject,
		AccountID:   c.AccountID,
		Email:       c.Email,
		DisplayName: c.DisplayName,
		Role:        role,
	}, true
}

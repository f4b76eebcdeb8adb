package auth

import "time"

// TokenStatus is the server-side activation status of a credential.
type TokenStatus string

const (
	TokenActive  TokenStatus = "ACTIVE"
	TokenExpired TokenStatus = "EXPIRED"
	TokenRevoked TokenStatus = "REVOKED"
)

// Credential is the bearer token proving this client's identity.
// It is persisted as the sole current credential and replaced wholesale
// on sign-in and sign-out, never merged.
type Credential struct {
	Token    string      `json:"token"`
	CreateAt time.Time   `json:"createAt"`
	ExpiryAt time.Time   `json:"expiryAt"`
	Status   TokenStatus `json:"status"`
}

// IsZero reports whether c holds no token.
func (c Credential) IsZero() bool { return c.Token == "" }

// Role is one authorization role tag. The set is closed.
type Role string

const (
	RoleAnonymous Role = "ANONYMOUS"
	RoleStudent   Role = "STUDENT"
	RoleTeacher   Role = "TEACHER"
)

// Scope is the authorization scope derived from the current credential.
// A credential without a companion scope is unusable for role-gated
// operations; callers fail closed.
type Scope struct {
	Login string `json:"login"`
	Code  string `json:"code"`
	Roles []Role `json:"scope"`
}

// Has reports whether the scope carries the given role.
func (s Scope) Has(role Role) bool {
	for _, r := range s.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// tokenStatusResponse is the wire shape of the token-status query.
type tokenStatusResponse struct {
	Status TokenStatus `json:"status"`
}

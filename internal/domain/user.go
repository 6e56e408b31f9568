package domain

// RoleAdmin lets a caller trigger the background jobs by hand.
const RoleAdmin = "admin"

// Principal is the caller identified by a verified token.
type Principal struct {
	UserID string
	Roles  []string
}

// TokenVerifier verifies a token and returns the authenticated principal.
// Token issuance lives in the identity service.
type TokenVerifier interface {
	Verify(token string) (*Principal, error)
}

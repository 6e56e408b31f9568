package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"eventsettlement/internal/domain"
)

// jwtClaims matches the tokens minted by the identity service. Older tokens carry
// the user ID in "id" instead of "sub".
type jwtClaims struct {
	jwt.RegisteredClaims
	LegacyID string   `json:"id,omitempty"`
	Email    string   `json:"email,omitempty"`
	Roles    []string `json:"roles,omitempty"`
}

type jwtVerifier struct {
	secret []byte
}

// NewJWTVerifier returns a TokenVerifier for HS256 tokens signed with secret.
func NewJWTVerifier(secret string) domain.TokenVerifier {
	return &jwtVerifier{secret: []byte(secret)}
}

func (v *jwtVerifier) Verify(tokenString string) (*domain.Principal, error) {
	claims := &jwtClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("failed to verify token: %w", err)
	}
	userID := claims.Subject
	if userID == "" {
		userID = claims.LegacyID
	}
	if userID == "" {
		return nil, errors.New("token has no subject")
	}
	return &domain.Principal{UserID: userID, Roles: claims.Roles}, nil
}

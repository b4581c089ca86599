package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// TokenParser validates bearer credentials and extracts principals.
// Verification is delegated to the configured keyfunc (JWKS-backed in
// production, a static key in tests).
type TokenParser struct {
	keyfunc          jwt.Keyfunc
	resourceServerID string
	parser           *jwt.Parser
}

// NewTokenParser creates a TokenParser. resourceServerID is the URI
// prefix stripped from client scope claims, e.g. "https://catalog.example.com".
func NewTokenParser(keyfunc jwt.Keyfunc, resourceServerID string) *TokenParser {
	return &TokenParser{
		keyfunc:          keyfunc,
		resourceServerID: resourceServerID,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
			jwt.WithExpirationRequired(),
		),
	}
}

// Parse verifies the raw token and extracts its Principal. Verification
// failures surface as ErrInvalidToken; a missing or empty subject claim
// surfaces as ErrNoSubject.
func (p *TokenParser) Parse(raw string) (Principal, error) {
	token, err := p.parser.Parse(raw, p.keyfunc)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Principal{}, fmt.Errorf("%w: unexpected claims type", ErrInvalidToken)
	}

	return NewPrincipal(claims, p.resourceServerID)
}

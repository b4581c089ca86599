// Package auth turns opaque bearer credentials into typed principals.
// Tokens are verified against the identity provider's JWKS endpoint and
// their claims reduced to a subject id plus a raw permission-string list.
package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken indicates a credential that failed signature or expiry
// validation, or one missing the claims a principal needs.
var ErrInvalidToken = errors.New("invalid token")

// ErrNoSubject indicates a structurally valid token whose subject claim
// is absent or empty. Reported distinctly because the token is useless
// for authorization even though it verified.
var ErrNoSubject = errors.New("token has no subject")

// PrincipalKind distinguishes group-based user tokens from scope-based
// client-credentials tokens.
type PrincipalKind string

const (
	KindUser   PrincipalKind = "USER"
	KindClient PrincipalKind = "CLIENT"
)

// Principal is the authenticated caller derived from a validated token.
// RawPermissions preserves the claim order.
type Principal struct {
	Subject        string
	Kind           PrincipalKind
	RawPermissions []string
}

// groupsClaim carries a user's permission groups; scopeClaim carries a
// client's space-delimited OAuth2 scopes.
const (
	groupsClaim = "cognito:groups"
	scopeClaim  = "scope"
)

// NewPrincipal extracts a Principal from verified claims. A token
// carrying both group and scope claims resolves to a USER principal:
// group membership is the more specific grant. Client scopes outside the
// resource server are dropped silently.
func NewPrincipal(claims jwt.MapClaims, resourceServerID string) (Principal, error) {
	subject, err := extractSubject(claims)
	if err != nil {
		return Principal{}, err
	}

	if groups := extractGroups(claims); len(groups) > 0 {
		return Principal{Subject: subject, Kind: KindUser, RawPermissions: groups}, nil
	}

	if scopes, ok := extractScopes(claims, resourceServerID); ok {
		return Principal{Subject: subject, Kind: KindClient, RawPermissions: scopes}, nil
	}

	return Principal{}, fmt.Errorf("%w: no group or scope claims", ErrInvalidToken)
}

func extractSubject(claims jwt.MapClaims) (string, error) {
	raw, ok := claims["sub"]
	if !ok {
		return "", ErrNoSubject
	}
	subject, ok := raw.(string)
	if !ok || subject == "" {
		return "", ErrNoSubject
	}
	return subject, nil
}

func extractGroups(claims jwt.MapClaims) []string {
	raw, ok := claims[groupsClaim].([]any)
	if !ok {
		return nil
	}
	var groups []string
	for _, entry := range raw {
		if group, ok := entry.(string); ok && group != "" {
			groups = append(groups, group)
		}
	}
	return groups
}

// extractScopes splits the space-delimited scope claim and strips the
// resource-server prefix from each entry. Scopes for other resource
// servers are not an error: the token may legitimately carry them.
func extractScopes(claims jwt.MapClaims, resourceServerID string) ([]string, bool) {
	raw, ok := claims[scopeClaim].(string)
	if !ok || raw == "" {
		return nil, false
	}

	prefix := strings.TrimSuffix(resourceServerID, "/") + "/"
	var scopes []string
	for _, scope := range strings.Fields(raw) {
		if stripped, found := strings.CutPrefix(scope, prefix); found && stripped != "" {
			scopes = append(scopes, stripped)
		}
	}
	// A scope claim that yields nothing for this resource server still
	// authenticates the client; the decision engine will deny it.
	return scopes, true
}

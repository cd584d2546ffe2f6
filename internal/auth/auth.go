// Package auth resolves bearer tokens into party identities. Tokens are
// HS256 JWTs carrying the subject (party id) and role claims.
package auth

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/golang-jwt/jwt/v5"

	"github.com/gastcinema/seat-reservations/internal/domain"
)

type Authenticator struct {
	secret []byte
}

func New(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// IssueToken signs a token for the given identity. Used by the login
// collaborator and by tests.
func (a *Authenticator) IssueToken(id domain.Identity, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub":  id.PartyID,
		"role": id.Role,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// ResolveIdentity validates an Authorization header value and returns the
// caller's identity.
func (a *Authenticator) ResolveIdentity(header string) (domain.Identity, error) {
	if !strings.HasPrefix(header, "Bearer ") {
		return domain.Identity{}, errors.Wrap(domain.ErrUnauthorized, "missing bearer token")
	}
	raw := strings.TrimPrefix(header, "Bearer ")

	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Wrap(domain.ErrUnauthorized, "unexpected signing method")
		}
		return a.secret, nil
	})
	if err != nil || !tok.Valid {
		return domain.Identity{}, errors.Wrap(domain.ErrUnauthorized, "invalid token")
	}

	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return domain.Identity{}, errors.Wrap(domain.ErrUnauthorized, "invalid claims")
	}
	sub, _ := claims["sub"].(string)
	role, _ := claims["role"].(string)
	if sub == "" {
		return domain.Identity{}, errors.Wrap(domain.ErrUnauthorized, "missing subject")
	}
	if role == "" {
		role = domain.RoleCustomer
	}
	return domain.Identity{PartyID: sub, Role: role}, nil
}

// Package token issues and validates the signed bearer tokens that gate
// mutation. Tokens are stateless: expiry is the only invalidation mechanism,
// there is no revocation list.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/blurbapp/blurb/internal/domain"
)

const issuerName = "blurb"

// Issuer mints and validates HS256-signed tokens binding an identity claim
// to a time window.
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

// NewIssuer creates an Issuer signing with the given HMAC secret. Tokens
// expire ttl after issuance.
func NewIssuer(secret []byte, ttl time.Duration) *Issuer {
	return &Issuer{secret: secret, ttl: ttl}
}

// Issue produces a signed token carrying identity as its subject claim.
func (i *Issuer) Issue(identity string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    issuerName,
		Subject:   identity,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", domain.Errorf(domain.KindStorage, err, "sign token")
	}
	return signed, nil
}

// Validate checks the token's signature and time bounds and returns the
// identity it binds. Expired tokens fail with an Expired error, everything
// else structurally or cryptographically wrong fails with Malformed.
func (i *Issuer) Validate(tokenString string) (string, error) {
	parsed, err := jwt.ParseWithClaims(
		tokenString,
		&jwt.RegisteredClaims{},
		func(t *jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuerName),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", domain.E(domain.KindExpired, "token is expired")
		}
		return "", domain.Errorf(domain.KindMalformed, err, "token is malformed")
	}

	subject, err := parsed.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", domain.E(domain.KindMalformed, "token carries no identity")
	}
	return subject, nil
}

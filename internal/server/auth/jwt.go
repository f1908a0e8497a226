// Package auth issues and validates the signed bearer tokens of taskgrid.
// Tokens are stateless: signature and expiry are the only things checked,
// there is no revocation list and no refresh; an expired token means the
// client re-authenticates.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/kpawlak/taskgrid/internal/common"
)

// Claims carries the registered claim set plus the admin flag. Subject is
// the username.
type Claims struct {
	jwt.RegisteredClaims
	Admin bool `json:"adm,omitempty"`
}

// TokenOptions configures issuance. Issuer and Audience are optional; when
// set at issuance they must also be configured for validation, which then
// enforces an exact match.
type TokenOptions struct {
	TTL      time.Duration
	Issuer   string
	Audience string
	Admin    bool
}

// GenerateToken mints an HS256-signed token for the given subject with an
// absolute expiry of now+TTL.
func GenerateToken(subject string, secretKey []byte, opts TokenOptions) (string, error) {
	now := time.Now()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(opts.TTL)),
		},
		Admin: opts.Admin,
	}
	if opts.Issuer != "" {
		claims.Issuer = opts.Issuer
	}
	if opts.Audience != "" {
		claims.Audience = jwt.ClaimStrings{opts.Audience}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseToken verifies signature, expiry and, when issuer/audience are
// configured, their exact match, and returns the claims.
//
// Every failure mode maps to a sentinel: common.ErrTokenExpired for an
// expired token, common.ErrInvalidToken for anything else (malformed,
// mis-signed, wrong signing method, issuer/audience mismatch). Callers
// that answer to clients must collapse both into one generic unauthorized
// outcome.
func ParseToken(tokenString string, secretKey []byte, issuer, audience string) (*Claims, error) {
	claims := &Claims{}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(issuer))
	}
	if audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(audience))
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, parserOpts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}

	if !token.Valid || claims.Subject == "" {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}

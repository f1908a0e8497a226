// Package common contains shared constants and sentinel errors used across
// taskgrid components.
package common

// AuthorizationHeaderName is the HTTP header carrying the bearer token on
// authenticated requests.
const AuthorizationHeaderName = "Authorization"

// BearerScheme is the expected prefix of the Authorization header value.
const BearerScheme = "Bearer "

// TokenType is the value returned alongside every issued access token.
const TokenType = "bearer"

// Package models defines the persistent data shapes of the server.
package models

import (
	"database/sql"
	"time"
)

// User is a registered account. PublicKey is the currently trusted RSA
// public key in PEM form; it is NULL until the first login and is
// overwritten on every successful login (key rotation on login is allowed
// and expected). The presented key is trusted as-is, there is no
// out-of-band verification.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	PublicKey    sql.NullString
	CreatedAt    time.Time
}

// Package userdir defines the user-directory collaborator the game server
// authenticates against. The directory owns credential storage and password
// verification; the core only ever sees account records.
package userdir

import (
	"context"
	"errors"
	"strings"
)

// ErrDuplicate is returned by Insert when the email or username is taken.
var ErrDuplicate = errors.New("userdir: email or username already registered")

// Account is one directory entry. Password material never leaves the
// directory; Profile is the mutable blob the game persists on disconnect.
type Account struct {
	ID                 int64
	Email              string
	Username           string
	NormalizedUsername string
	Profile            map[string]string
}

// Directory is the external collaborator contract. Implementations handle
// hashing and verification; plaintext passwords are only ever inputs.
type Directory interface {
	// FindByEmailAndPassword authenticates. Returns nil with no error when
	// the credentials do not match any account.
	FindByEmailAndPassword(ctx context.Context, email, password string) (*Account, error)

	// ReplaceByEmail persists mutated profile fields. Returns false when no
	// account with that email exists.
	ReplaceByEmail(ctx context.Context, email string, acc *Account) (bool, error)

	// Insert registers a new account with the given plaintext password,
	// hashing it before storage. Returns ErrDuplicate on collision.
	Insert(ctx context.Context, email, username, password string) (*Account, error)
}

// Normalize lower-cases directory keys (emails, usernames) the way every
// implementation must.
func Normalize(s string) string {
	return strings.ToLower(s)
}

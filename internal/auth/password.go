package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials is returned for an unknown user or a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// HashPassword returns a bcrypt hash for storing in the user directory.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// verifyPassword accepts bcrypt hashes and legacy hex SHA-256 digests.
func verifyPassword(hash, password string) bool {
	switch {
	case strings.HasPrefix(hash, "$2"):
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
	case len(hash) == sha256.Size*2:
		sum := sha256.Sum256([]byte(password))
		want, err := hex.DecodeString(strings.ToLower(hash))
		if err != nil {
			return false
		}
		return subtle.ConstantTimeCompare(sum[:], want) == 1
	default:
		return false
	}
}

// Authenticate checks username and password against the directory.
func (d *Directory) Authenticate(username, password string) (User, error) {
	u, ok := d.Lookup(username)
	if !ok || u.PasswordHash == "" {
		return User{}, ErrInvalidCredentials
	}
	if !verifyPassword(u.PasswordHash, password) {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

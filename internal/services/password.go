package services

import (
	"strings"

	"github.com/alexedwards/argon2id"
	"golang.org/x/crypto/bcrypt"
)

// VerifyPassword checks password against hash, dispatching on the hash's
// own format marker rather than a stored algorithm column: bcrypt hashes
// for accounts carried over from the legacy Rust daemon's database dump
// (original_source's src/db/accounts.rs stores bcrypt, not argon2id),
// argon2id for everything registered through this daemon's REGISTER.
func VerifyPassword(password, hash string) (bool, error) {
	if isBcryptHash(hash) {
		err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
		if err != nil {
			return false, nil
		}
		return true, nil
	}
	return argon2id.ComparePasswordAndHash(password, hash)
}

func isBcryptHash(hash string) bool {
	return strings.HasPrefix(hash, "$2a$") || strings.HasPrefix(hash, "$2b$") || strings.HasPrefix(hash, "$2y$")
}

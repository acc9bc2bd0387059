package identity

import (
	"crypto/sha256"
	"crypto/subtle"

	"golang.org/x/crypto/argon2"
)

// deriveKey stretches a password with Argon2id.
func deriveKey(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, 1, 64*1024, 4, 32)
}

func makeVerifier(key []byte) []byte {
	sum := sha256.Sum256(key)
	return sum[:]
}

func checkPassword(password []byte, a *Account) bool {
	v := makeVerifier(deriveKey(password, a.Salt))
	return subtle.ConstantTimeCompare(v, a.Verifier) == 1
}

// Package cryptox derives login credentials from a password. The password
// never leaves the client: the server only stores the salt and a verifier.
package cryptox

import (
	"crypto/sha256"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters for DeriveMasterKey.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	KeyLength    = 32
	SaltLength   = 32
)

// DeriveMasterKey stretches password with salt using Argon2id.
func DeriveMasterKey(password []byte, salt []byte) []byte {
	return argon2.IDKey(password, salt, argonTime, argonMemory, argonThreads, KeyLength)
}

// MakeVerifier is what the server stores and compares on login.
func MakeVerifier(masterKey []byte) []byte {
	hash := sha256.Sum256(masterKey)
	return hash[:]
}

// internal/auth/password.go
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
	saltLen      = 16
)

// HashPassword returns a base64 argon2id hash and the base64 salt used.
func HashPassword(password string) (hash string, salt string, err error) {
	rawSalt := make([]byte, saltLen)
	if _, err := rand.Read(rawSalt); err != nil {
		return "", "", err
	}

	key := argon2.IDKey([]byte(password), rawSalt, argonTime, argonMemory, argonThreads, argonKeyLen)

	return base64.StdEncoding.EncodeToString(key), base64.StdEncoding.EncodeToString(rawSalt), nil
}

// VerifyPassword compares password with a stored hash in constant time.
func VerifyPassword(password, salt, hash string) (bool, error) {
	decodedSalt, err := base64.StdEncoding.DecodeString(salt)
	if err != nil {
		return false, fmt.Errorf("failed to decode salt: %w", err)
	}

	decodedHash, err := base64.StdEncoding.DecodeString(hash)
	if err != nil {
		return false, fmt.Errorf("failed to decode hash: %w", err)
	}

	candidate := argon2.IDKey([]byte(password), decodedSalt, argonTime, argonMemory, argonThreads, uint32(len(decodedHash)))

	return subtle.ConstantTimeCompare(decodedHash, candidate) == 1, nil
}

package store

import (
	"crypto/rand"
	"fmt"

	"github.com/mr-tron/base58"
)

// tokenBytes is the entropy in a session token.
const tokenBytes = 32

// NewSessionToken returns an unguessable, base58 encoded session token. Base58
// never produces the separators used by the directory cookie.
func NewSessionToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base58.Encode(b), nil
}

package identity

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// tokenBytes gives 256 bits of entropy per bearer token.
const tokenBytes = 32

// NewToken generates an opaque bearer token. Tokens are never client-supplied
// and carry no claims; resolution treats them as pure lookup keys.
func NewToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

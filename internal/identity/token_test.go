package identity

import (
	"encoding/base64"
	"testing"
)

func TestNewToken(t *testing.T) {
	t.Run("carries at least 256 bits of entropy", func(t *testing.T) {
		token, err := NewToken()
		if err != nil {
			t.Fatalf("NewToken() error = %v", err)
		}
		raw, err := base64.RawURLEncoding.DecodeString(token)
		if err != nil {
			t.Fatalf("token is not base64url: %v", err)
		}
		if len(raw) < 32 {
			t.Fatalf("token has %d bytes of entropy, want >= 32", len(raw))
		}
	})

	t.Run("unique across generations", func(t *testing.T) {
		seen := make(map[string]bool)
		for i := 0; i < 1000; i++ {
			token, err := NewToken()
			if err != nil {
				t.Fatalf("NewToken() error = %v", err)
			}
			if seen[token] {
				t.Fatalf("duplicate token generated: %s", token)
			}
			seen[token] = true
		}
	})
}

package token

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// tokenBytes gives 256 bits of entropy per token.
const tokenBytes = 32

// Generate returns an opaque, URL-safe bearer token.
// Tokens carry no embedded structure: they are looked up, never parsed,
// and the three credential namespaces (registration, runner, processing job)
// are kept apart by the column they are stored in.
func Generate() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

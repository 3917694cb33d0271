package token

import (
	"encoding/base64"
	"testing"
)

func TestGenerate_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		tok, err := Generate()
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		if seen[tok] {
			t.Fatalf("duplicate token generated: %s", tok)
		}
		seen[tok] = true
	}
}

func TestGenerate_URLSafe(t *testing.T) {
	tok, err := Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	raw, err := base64.RawURLEncoding.DecodeString(tok)
	if err != nil {
		t.Fatalf("token is not URL-safe base64: %v", err)
	}
	if len(raw)*8 < 128 {
		t.Errorf("token entropy too low: %d bits", len(raw)*8)
	}
}

package util

import (
	"encoding/hex"
	"testing"
)

func TestLockTokenIsFortyHexAndFresh(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		tok := LockToken("user:1")
		if len(tok) != 40 {
			t.Fatalf("len=%d want 40", len(tok))
		}
		if _, err := hex.DecodeString(tok); err != nil {
			t.Fatalf("not hex: %q", tok)
		}
		if _, dup := seen[tok]; dup {
			t.Fatalf("token repeated: %s", tok)
		}
		seen[tok] = struct{}{}
	}
}

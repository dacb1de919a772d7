package util

import (
	"crypto/sha1"
	"encoding/hex"

	"github.com/google/uuid"
)

// LockToken returns a fresh 40-hex-char token for key: sha1(key | random uuid).
func LockToken(key string) string {
	id := uuid.New()
	h := sha1.New()
	h.Write([]byte(key))
	h.Write([]byte{0})
	h.Write(id[:])
	return hex.EncodeToString(h.Sum(nil))
}

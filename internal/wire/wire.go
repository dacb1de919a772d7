package wire

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"time"
)

// Lock markers are stored in place of a cached value while a fill is in progress:
//
//	"LOCK|||" | token(40 lowercase hex)
const (
	LockPrefix = "LOCK|||"
	TokenLen   = 40
	MarkerLen  = len(LockPrefix) + TokenLen // 47

	// ProbeEnd is the inclusive GETRANGE end offset that covers a whole marker.
	ProbeEnd = MarkerLen - 1
)

var (
	ErrCorrupt  = errors.New("balancer: corrupt entry")
	ErrBadToken = errors.New("balancer: lock token must be 40 hex characters")

	magic4 = [...]byte{'B', 'L', 'N', 'C'}
)

const (
	version   byte = 1
	kindEntry byte = 1
)

// EncodeLock returns the marker stored for token.
func EncodeLock(token string) (string, error) {
	if !validToken(token) {
		return "", ErrBadToken
	}
	return LockPrefix + token, nil
}

// IsLock reports whether b starts with the lock prefix. Any value sharing the
// 7-byte prefix counts, even if the token part is truncated or malformed.
func IsLock(b []byte) bool {
	return len(b) >= len(LockPrefix) && string(b[:len(LockPrefix)]) == LockPrefix
}

// LockToken extracts the token of a well-formed marker.
func LockToken(b []byte) (string, bool) {
	if len(b) != MarkerLen || !IsLock(b) {
		return "", false
	}
	t := string(b[len(LockPrefix):])
	return t, validToken(t)
}

func validToken(t string) bool {
	if len(t) != TokenLen {
		return false
	}
	_, err := hex.DecodeString(t)
	return err == nil
}

// Entry framing for in-process stores that have no per-entry TTL of their own:
//
//	magic(4) | ver(1) | kind(1=entry) | deadline(i64 be, unix nanos, 0 = none) | vlen(u32 be) | value(vlen)
func EncodeEntry(deadline time.Time, value []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(4 + 1 + 1 + 8 + 4 + len(value))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindEntry)

	var u8 [8]byte
	var u4 [4]byte

	var nanos int64
	if !deadline.IsZero() {
		nanos = deadline.UnixNano()
	}
	binary.BigEndian.PutUint64(u8[:], uint64(nanos))
	buf.Write(u8[:])

	binary.BigEndian.PutUint32(u4[:], uint32(len(value)))
	buf.Write(u4[:])

	buf.Write(value)
	return buf.Bytes()
}

func DecodeEntry(b []byte) (deadline time.Time, value []byte, err error) {
	const hdr = 4 + 1 + 1 + 8 + 4
	if len(b) < hdr || !bytes.Equal(b[:4], magic4[:]) || b[4] != version || b[5] != kindEntry {
		return time.Time{}, nil, ErrCorrupt
	}
	off := 6

	nanos := int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8
	if nanos != 0 {
		deadline = time.Unix(0, nanos)
	}

	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen != len(b)-off {
		return time.Time{}, nil, ErrCorrupt
	}
	return deadline, b[off:], nil
}

package wire

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"
	"time"
)

const tok = "0123456789abcdef0123456789abcdef01234567"

func mustDecodeEntry(t *testing.T, b []byte) (time.Time, []byte) {
	t.Helper()
	d, v, err := DecodeEntry(b)
	if err != nil {
		t.Fatalf("DecodeEntry error: %v", err)
	}
	return d, v
}

func TestLockMarkerLayout(t *testing.T) {
	m, err := EncodeLock(tok)
	if err != nil {
		t.Fatalf("EncodeLock: %v", err)
	}
	if len(m) != 47 || MarkerLen != 47 || ProbeEnd != 46 {
		t.Fatalf("marker len=%d MarkerLen=%d ProbeEnd=%d", len(m), MarkerLen, ProbeEnd)
	}
	if !strings.HasPrefix(m, "LOCK|||") {
		t.Fatalf("marker %q lacks prefix", m)
	}
	got, ok := LockToken([]byte(m))
	if !ok || got != tok {
		t.Fatalf("LockToken=%q ok=%v", got, ok)
	}
}

func TestEncodeLockRejectsBadTokens(t *testing.T) {
	for _, bad := range []string{"", "abc", tok + "0", strings.Repeat("z", 40)} {
		if _, err := EncodeLock(bad); err != ErrBadToken {
			t.Fatalf("EncodeLock(%q) err=%v, want ErrBadToken", bad, err)
		}
	}
}

func TestIsLockUsesPrefixOnly(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"", false},
		{"LOCK||", false},
		{"LOCK|||", true},
		{"LOCK|||not-a-token", true},
		{"LOCK|||" + tok, true},
		{"lock|||" + tok, false},
		{"value", false},
	}
	for _, tc := range cases {
		if got := IsLock([]byte(tc.in)); got != tc.want {
			t.Fatalf("IsLock(%q)=%v want %v", tc.in, got, tc.want)
		}
	}
	if _, ok := LockToken([]byte("LOCK|||short")); ok {
		t.Fatalf("LockToken accepted a truncated marker")
	}
}

func TestEntryRoundTrip(t *testing.T) {
	deadline := time.Unix(1700000000, 123)
	cases := []struct {
		deadline time.Time
		value    []byte
	}{
		{time.Time{}, nil},
		{deadline, []byte("hello")},
		{deadline, []byte{0, 1, 2, 3}},
	}
	for _, tc := range cases {
		d, v := mustDecodeEntry(t, EncodeEntry(tc.deadline, tc.value))
		if !d.Equal(tc.deadline) {
			t.Fatalf("deadline got %v want %v", d, tc.deadline)
		}
		if !bytes.Equal(v, tc.value) {
			t.Fatalf("value got %x want %x", v, tc.value)
		}
	}
}

func TestEntryRejectsCorruption(t *testing.T) {
	enc := EncodeEntry(time.Time{}, []byte("abc"))

	badMagic := append([]byte(nil), enc...)
	badMagic[0] = 'X'
	if _, _, err := DecodeEntry(badMagic); err == nil {
		t.Fatalf("expected error on bad magic")
	}

	badVer := append([]byte(nil), enc...)
	badVer[4] = version + 1
	if _, _, err := DecodeEntry(badVer); err == nil {
		t.Fatalf("expected error on bad version")
	}

	trailing := append(append([]byte(nil), enc...), 0xDE)
	if _, _, err := DecodeEntry(trailing); err == nil {
		t.Fatalf("expected error on trailing bytes")
	}

	short := append([]byte(nil), enc...)
	binary.BigEndian.PutUint32(short[14:18], 99)
	if _, _, err := DecodeEntry(short); err == nil {
		t.Fatalf("expected error on oversized vlen")
	}

	if _, _, err := DecodeEntry(enc[:10]); err == nil {
		t.Fatalf("expected error on truncated header")
	}
}

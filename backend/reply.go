package backend

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
)

// Kind classifies the outcome of one command.
type Kind uint8

const (
	// Failure: the command could not be executed on this backend.
	Failure Kind = iota
	// Miss: the backend answered nil, the key is absent.
	Miss
	// Hit: the backend answered with a value.
	Hit
)

func (k Kind) String() string {
	switch k {
	case Failure:
		return "failure"
	case Miss:
		return "miss"
	case Hit:
		return "hit"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Reply is the tagged result of a command.
type Reply struct {
	Kind Kind
	Val  any
	Err  error // set only for Failure
}

// Result builds a Reply from the (value, error) pair returned by Conn.Do.
func Result(v any, err error) Reply {
	switch {
	case errors.Is(err, ErrNil):
		return Reply{Kind: Miss}
	case err != nil:
		return Reply{Kind: Failure, Err: err}
	case v == nil:
		return Reply{Kind: Miss}
	default:
		return Reply{Kind: Hit, Val: v}
	}
}

func (r Reply) Ok() bool     { return r.Kind == Hit }
func (r Reply) Failed() bool { return r.Kind == Failure }

// Bytes returns the value of a string-like hit.
func (r Reply) Bytes() ([]byte, bool) {
	if r.Kind != Hit {
		return nil, false
	}
	return AsBytes(r.Val)
}

// Int returns the value of an integer hit.
func (r Reply) Int() (int64, bool) {
	if r.Kind != Hit {
		return 0, false
	}
	switch v := r.Val.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// Slice returns the elements of an array hit.
func (r Reply) Slice() ([]any, bool) {
	if r.Kind != Hit {
		return nil, false
	}
	switch v := r.Val.(type) {
	case []any:
		return v, true
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}

// Equal reports whether two replies carry the same outcome and value.
func (r Reply) Equal(o Reply) bool {
	if r.Kind != o.Kind {
		return false
	}
	if r.Kind != Hit {
		return true
	}
	// Conns differ in whether bulk strings come back as string or []byte.
	rb, rok := AsBytes(r.Val)
	ob, ook := AsBytes(o.Val)
	if rok || ook {
		return rok && ook && bytes.Equal(rb, ob)
	}
	return fmt.Sprint(r.Val) == fmt.Sprint(o.Val)
}

// AsBytes converts a string-like reply element. nil elements are absent.
func AsBytes(v any) ([]byte, bool) {
	switch b := v.(type) {
	case string:
		return []byte(b), true
	case []byte:
		return b, true
	default:
		return nil, false
	}
}

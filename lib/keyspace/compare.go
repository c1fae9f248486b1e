package keyspace

import (
	"bytes"
	"errors"
)

// ErrNilOperand is returned when one side of a comparison is absent.
// The position of "no value" in the key order is undefined.
var ErrNilOperand = errors.New("keyspace: cannot compare against a nil operand")

// Comparable is implemented by every byte representation that takes part in
// the key order. Both owned keys and views into shared buffers expose their
// content through Bytes, and all ordering decisions are made on that content.
type Comparable interface {
	Bytes() []byte
}

// CompareBytes orders two byte sequences as unsigned bytes, lexicographically.
// If one sequence is a strict prefix of the other, the shorter one is smaller.
func CompareBytes(a, b []byte) int {
	return bytes.Compare(a, b)
}

// Less reports whether a sorts before b.
func Less(a, b []byte) bool {
	return bytes.Compare(a, b) < 0
}

// Compare orders a and b by their byte content. A nil interface, a nil Key or
// a nil *Slice on either side yields ErrNilOperand. The empty key is Key{}.
func Compare(a, b Comparable) (int, error) {
	if isNil(a) || isNil(b) {
		return 0, ErrNilOperand
	}
	return CompareBytes(a.Bytes(), b.Bytes()), nil
}

func isNil(c Comparable) bool {
	switch v := c.(type) {
	case nil:
		return true
	case Key:
		return v == nil
	case *Key:
		return v == nil || *v == nil
	case *Slice:
		return v == nil
	}
	return false
}

// --------------------------------------------------------------------------
// Representations
// --------------------------------------------------------------------------

// Key is an owned byte sequence.
type Key []byte

func (k Key) Bytes() []byte { return k }

// Slice is a view into a buffer owned by someone else, such as a decoded
// response frame. Creating a Slice never copies.
type Slice struct {
	buf []byte
	off int
	n   int
}

// NewSlice returns a view of n bytes of buf starting at off. The bounds are
// clamped to the buffer.
func NewSlice(buf []byte, off, n int) Slice {
	if off < 0 {
		off = 0
	}
	if off > len(buf) {
		off = len(buf)
	}
	if n < 0 || off+n > len(buf) {
		n = len(buf) - off
	}
	return Slice{buf: buf, off: off, n: n}
}

func (s Slice) Bytes() []byte { return s.buf[s.off : s.off+s.n] }

// Len returns the number of bytes in the view.
func (s Slice) Len() int { return s.n }

// Clone copies the viewed bytes into an owned Key.
func (s Slice) Clone() Key {
	out := make([]byte, s.n)
	copy(out, s.Bytes())
	return out
}

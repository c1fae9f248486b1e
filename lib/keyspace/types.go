package keyspace

import "fmt"

// Pair is a key together with its value. Value is nil for key-only reads.
type Pair struct {
	Key   []byte `json:"key" msgpack:"k"`
	Value []byte `json:"value,omitempty" msgpack:"v,omitempty"`
}

// Range is the half open interval [Start, End). An empty End is unbounded.
type Range struct {
	Start []byte `json:"start" msgpack:"s"`
	End   []byte `json:"end,omitempty" msgpack:"e,omitempty"`
}

// Contains reports whether key lies inside the range.
func (r Range) Contains(key []byte) bool {
	if CompareBytes(key, r.Start) < 0 {
		return false
	}
	return len(r.End) == 0 || CompareBytes(key, r.End) < 0
}

// ContainsRange reports whether other lies completely inside r.
func (r Range) ContainsRange(other Range) bool {
	if CompareBytes(other.Start, r.Start) < 0 {
		return false
	}
	if len(r.End) == 0 {
		return true
	}
	if len(other.End) == 0 {
		return false
	}
	return CompareBytes(other.End, r.End) <= 0
}

func (r Range) String() string {
	end := "+inf"
	if len(r.End) > 0 {
		end = fmt.Sprintf("%q", r.End)
	}
	return fmt.Sprintf("[%q, %s)", r.Start, end)
}

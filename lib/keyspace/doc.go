// Package keyspace defines the key order used everywhere in regionKV and the
// small value types built on it.
//
// Keys are opaque byte sequences. They are ordered as unsigned bytes,
// lexicographically, and a strict prefix sorts before the longer key. This
// differs from comparing signed bytes, so every component compares keys through
// CompareBytes or Compare and never on its own.
//
// Key Components:
//
//   - Comparable: the capability shared by all byte representations. Key owns
//     its bytes, Slice is a view into a shared buffer. Both are ordered by the
//     same function on their content.
//
//   - Compare: orders two Comparable values and rejects a nil operand with
//     ErrNilOperand instead of placing it first or last.
//
//   - Pair and Range: a key/value pair and a half open key range.
package keyspace

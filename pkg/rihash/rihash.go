// Package rihash implements the representation-independent hash used to bind
// structured request/response data into a single digest regardless of how it
// was serialized on the wire.
package rihash

import (
	"crypto/sha256"
	"sort"

	"github.com/certen/response-verification/pkg/leb128"
)

// Kind discriminates the closed set of value shapes this hash accepts.
type Kind int

const (
	KindString Kind = iota
	KindBytes
	KindNumber
	KindArray
)

// Value is the sum type representation-independent hashing operates over.
// Only one of the fields matching Kind is meaningful.
type Value struct {
	Kind     Kind
	Str      string
	Bytes    []byte
	Number   uint64
	Elements []Value
}

func String(s string) Value   { return Value{Kind: KindString, Str: s} }
func Bytes(b []byte) Value    { return Value{Kind: KindBytes, Bytes: b} }
func Number(n uint64) Value   { return Value{Kind: KindNumber, Number: n} }
func Array(v []Value) Value   { return Value{Kind: KindArray, Elements: v} }

// Pair is a single (key, value) entry in an ordered map to be hashed.
type Pair struct {
	Key   string
	Value Value
}

// Hash computes the representation-independent hash of an ordered sequence of
// key/value pairs. Duplicate keys are permitted; each pair contributes its own
// (key_hash, value_hash) entry to the sort and concatenation.
func Hash(pairs []Pair) [32]byte {
	type entry struct {
		keyHash   [32]byte
		valueHash [32]byte
	}

	entries := make([]entry, len(pairs))
	for i, p := range pairs {
		entries[i] = entry{
			keyHash:   sha256.Sum256([]byte(p.Key)),
			valueHash: HashValue(p.Value),
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		if c := compareBytes(entries[i].keyHash[:], entries[j].keyHash[:]); c != 0 {
			return c < 0
		}
		return compareBytes(entries[i].valueHash[:], entries[j].valueHash[:]) < 0
	})

	h := sha256.New()
	for _, e := range entries {
		h.Write(e.keyHash[:])
		h.Write(e.valueHash[:])
	}

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// HashValue hashes a single Value per its kind.
func HashValue(v Value) [32]byte {
	switch v.Kind {
	case KindString:
		return sha256.Sum256([]byte(v.Str))
	case KindBytes:
		return sha256.Sum256(v.Bytes)
	case KindNumber:
		return sha256.Sum256(leb128.EncodeUnsigned(v.Number))
	case KindArray:
		return hashArray(v.Elements)
	default:
		panic("rihash: unknown value kind")
	}
}

// hashArray hashes the concatenation of the element hashes, per §4.A.
func hashArray(elements []Value) [32]byte {
	h := sha256.New()
	for _, e := range elements {
		eh := HashValue(e)
		h.Write(eh[:])
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func compareBytes(a, b []byte) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

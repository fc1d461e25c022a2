package rihash

import (
	"encoding/hex"
	"testing"
)

func fromHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("invalid hex fixture: %v", err)
	}
	return b
}

func TestHashKeyValueMap(t *testing.T) {
	pairs := []Pair{
		{Key: "name", Value: String("foo")},
		{Key: "message", Value: String("Hello World!")},
		{Key: "answer", Value: Number(42)},
	}
	want := fromHex(t, "b0c6f9191e37dceafdfc47fbfc7e9cc95f21c7b985c2f7ba5855015c2a8f13ac")
	got := Hash(pairs)
	if hex.EncodeToString(got[:]) != hex.EncodeToString(want) {
		t.Fatalf("hash mismatch: got %x want %x", got, want)
	}
}

func TestHandlesDuplicateKeys(t *testing.T) {
	pairs := []Pair{
		{Key: "name", Value: String("foo")},
		{Key: "name", Value: String("bar")},
		{Key: "message", Value: String("Hello World!")},
	}
	want := fromHex(t, "435f77c9bdeca5dba4a4b8a34e4f732b4311f1fc252ec6d4e8ee475234b170f9")
	got := Hash(pairs)
	if hex.EncodeToString(got[:]) != hex.EncodeToString(want) {
		t.Fatalf("hash mismatch: got %x want %x", got, want)
	}
}

func TestHashReorderedKeyValueMap(t *testing.T) {
	a := []Pair{
		{Key: "name", Value: String("foo")},
		{Key: "message", Value: String("Hello World!")},
		{Key: "name", Value: String("bar")},
	}
	b := []Pair{
		{Key: "message", Value: String("Hello World!")},
		{Key: "name", Value: String("bar")},
		{Key: "name", Value: String("foo")},
	}
	if Hash(a) != Hash(b) {
		t.Fatal("expected reordered multiset map to hash identically")
	}
}

func TestHashBytes(t *testing.T) {
	pairs := []Pair{{Key: "bytes", Value: Bytes([]byte{0x01, 0x02, 0x03, 0x04})}}
	want := fromHex(t, "546729666d96a712bd94f902a0388e33f9a19a335c35bc3d95b0221a4a574455")
	got := Hash(pairs)
	if hex.EncodeToString(got[:]) != hex.EncodeToString(want) {
		t.Fatalf("hash mismatch: got %x want %x", got, want)
	}
}

func TestHashArrayReferenceVectors(t *testing.T) {
	cases := []struct {
		name string
		arr  []Value
		want string
	}{
		{"single", []Value{String("a")}, "bf5d3affb73efd2ec6c36ad3112dd933efed63c4e1cbffcfa88e2759c144f2d8"},
		{"two_strings", []Value{String("a"), String("b")}, "e5a01fee14e0ed5c48714f22180f25ad8365b53f9779f79dc4a3d7e93963f94a"},
		{"bytes_then_string", []Value{Bytes([]byte{97}), String("b")}, "e5a01fee14e0ed5c48714f22180f25ad8365b53f9779f79dc4a3d7e93963f94a"},
		{"nested_single", []Value{Array([]Value{String("a")})}, "eb48bdfa15fc43dbea3aabb1ee847b6e69232c0f0d9705935e50d60cce77877f"},
		{"nested_pair", []Value{Array([]Value{String("a"), String("b")})}, "029fd80ca2dd66e7c527428fc148e812a9d99a5e41483f28892ef9013eee4a19"},
		{"mixed_nested", []Value{Array([]Value{String("a"), String("b")}), Bytes([]byte{97})}, "aec3805593d9ec6df50da070597f73507050ce098b5518d0456876701ada7bb7"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			want := fromHex(t, c.want)
			got := hashArray(c.arr)
			if hex.EncodeToString(got[:]) != hex.EncodeToString(want) {
				t.Fatalf("hash mismatch: got %x want %x", got, want)
			}
			valueGot := HashValue(Array(c.arr))
			if valueGot != got {
				t.Fatalf("HashValue(Array) disagrees with hashArray")
			}
		})
	}
}

package certificate

import (
	"testing"

	"github.com/fxamacker/cbor/v2"

	"github.com/certen/response-verification/pkg/hashtree"
)

func encodeRaw(t *testing.T, tree *hashtree.Node, signature []byte, delegation *wireDelegation) []byte {
	t.Helper()
	treeBytes, err := cbor.Marshal(tree)
	if err != nil {
		t.Fatalf("marshal tree: %v", err)
	}
	wire := wireCertificate{
		Tree:       treeBytes,
		Signature:  signature,
		Delegation: delegation,
	}
	data, err := cbor.Marshal(wire)
	if err != nil {
		t.Fatalf("marshal certificate: %v", err)
	}
	return data
}

func TestDecodeCertificateWithoutDelegation(t *testing.T) {
	tree := hashtree.Labeled([]byte("time"), hashtree.Leaf([]byte{0x05}))
	sig := []byte{1, 2, 3, 4}

	data := encodeRaw(t, tree, sig, nil)

	cert, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if string(cert.Signature) != string(sig) {
		t.Errorf("signature mismatch: got %v, want %v", cert.Signature, sig)
	}
	if cert.Delegation != nil {
		t.Errorf("expected no delegation, got %+v", cert.Delegation)
	}
	if cert.Tree.Digest() != tree.Digest() {
		t.Error("decoded tree digest does not match original")
	}
}

func TestDecodeCertificateWithDelegation(t *testing.T) {
	innerTree := hashtree.Leaf([]byte("inner"))
	innerCert := encodeRaw(t, innerTree, []byte{9, 9}, nil)

	outerTree := hashtree.Leaf([]byte("outer"))
	data := encodeRaw(t, outerTree, []byte{1}, &wireDelegation{
		SubnetID:    []byte("subnet-a"),
		Certificate: innerCert,
	})

	cert, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cert.Delegation == nil {
		t.Fatal("expected a delegation")
	}
	if string(cert.Delegation.SubnetID) != "subnet-a" {
		t.Errorf("subnet id mismatch: got %q", cert.Delegation.SubnetID)
	}

	inner, err := Decode(cert.Delegation.Certificate)
	if err != nil {
		t.Fatalf("decode inner delegation certificate: %v", err)
	}
	if inner.Delegation != nil {
		t.Error("inner certificate must not itself carry a delegation")
	}
}

func TestDecodeRejectsMalformedCBOR(t *testing.T) {
	if _, err := Decode([]byte{0xff, 0xff, 0xff}); err == nil {
		t.Fatal("expected an error decoding malformed CBOR")
	}
}

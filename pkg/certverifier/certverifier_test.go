package certverifier

import (
	"math/big"
	"testing"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/fxamacker/cbor/v2"

	"github.com/certen/response-verification/pkg/blssig"
	"github.com/certen/response-verification/pkg/certificate"
	"github.com/certen/response-verification/pkg/hashtree"
)

// keypair mirrors blssig's own test helper: production code never signs, so
// this stays local to the test suite.
func keypair(t *testing.T) (sk fr.Element, derPub []byte) {
	t.Helper()
	if _, err := sk.SetRandom(); err != nil {
		t.Fatalf("random scalar: %v", err)
	}
	_, _, _, g2Gen := bls12381.Generators()
	var skBig big.Int
	sk.BigInt(&skBig)
	var pk bls12381.G2Affine
	pk.ScalarMultiplication(&g2Gen, &skBig)
	raw := pk.Bytes()

	der := append(append([]byte{}, derPrefix...), raw[:]...)
	return sk, der
}

func signRoot(t *testing.T, sk fr.Element, tree *hashtree.Node) []byte {
	t.Helper()
	rootHash := tree.Digest()
	msg := append(append([]byte{}, stateRootDomainSeparator...), rootHash[:]...)

	h, err := bls12381.HashToG1(msg, []byte(blssig.DomainSeparationTag))
	if err != nil {
		t.Fatalf("hash to curve: %v", err)
	}
	var skBig big.Int
	sk.BigInt(&skBig)
	var sigPoint bls12381.G1Affine
	sigPoint.ScalarMultiplication(&h, &skBig)
	sig := sigPoint.Bytes()
	return sig[:]
}

func encodeCert(t *testing.T, cert *certificate.Certificate) []byte {
	t.Helper()
	treeBytes, err := cbor.Marshal(cert.Tree)
	if err != nil {
		t.Fatalf("marshal tree: %v", err)
	}
	m := map[string]interface{}{
		"tree":      cbor.RawMessage(treeBytes),
		"signature": cert.Signature,
	}
	if cert.Delegation != nil {
		m["delegation"] = map[string]interface{}{
			"subnet_id":   cert.Delegation.SubnetID,
			"certificate": cert.Delegation.Certificate,
		}
	}
	data, err := cbor.Marshal(m)
	if err != nil {
		t.Fatalf("marshal certificate: %v", err)
	}
	return data
}

func TestVerifyDirectCertificate(t *testing.T) {
	sk, derPub := keypair(t)

	tree := hashtree.Labeled([]byte("time"), hashtree.Leaf([]byte{0x80, 0x94, 0xeb, 0xdc, 0x03}))
	cert := &certificate.Certificate{Tree: tree}
	cert.Signature = signRoot(t, sk, tree)

	if err := Verify(cert, []byte("canister"), derPub); err != nil {
		t.Fatalf("expected genuine direct certificate to verify, got %v", err)
	}
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	_, derPub := keypair(t)
	tree := hashtree.Labeled([]byte("time"), hashtree.Leaf([]byte{0}))
	cert := &certificate.Certificate{Tree: tree, Signature: make([]byte, blssig.SignatureSize)}

	err := Verify(cert, []byte("canister"), derPub)
	if err == nil {
		t.Fatal("expected verification failure for an all-zero signature")
	}
}

func TestVerifyWithDelegation(t *testing.T) {
	rootSk, rootDer := keypair(t)
	subnetSk, subnetDer := keypair(t)

	canisterID := []byte("canister-id")
	subnetID := []byte("subnet-1")

	subnetTree := hashtree.Fork(
		hashtree.Labeled([]byte("subnet"),
			hashtree.Labeled(subnetID,
				hashtree.Fork(
					hashtree.Labeled([]byte("canister_ranges"), hashtree.Leaf(mustMarshalRanges(t, canisterID))),
					hashtree.Labeled([]byte("public_key"), hashtree.Leaf(subnetDer)),
				),
			),
		),
		hashtree.Labeled([]byte("time"), hashtree.Leaf([]byte{0})),
	)
	innerCert := &certificate.Certificate{Tree: subnetTree}
	innerCert.Signature = signRoot(t, rootSk, subnetTree)
	innerCertBytes := encodeCert(t, innerCert)

	leafTree := hashtree.Labeled([]byte("time"), hashtree.Leaf([]byte{0}))
	outerCert := &certificate.Certificate{
		Tree: leafTree,
		Delegation: &certificate.Delegation{
			SubnetID:    subnetID,
			Certificate: innerCertBytes,
		},
	}
	outerCert.Signature = signRoot(t, subnetSk, leafTree)

	if err := Verify(outerCert, canisterID, rootDer); err != nil {
		t.Fatalf("expected delegated certificate to verify, got %v", err)
	}
}

func mustMarshalRanges(t *testing.T, canisterID []byte) []byte {
	t.Helper()
	low := append([]byte{}, canisterID...)
	high := append([]byte{}, canisterID...)
	ranges := [][2][]byte{{low, high}}
	data, err := cbor.Marshal(ranges)
	if err != nil {
		t.Fatalf("marshal ranges: %v", err)
	}
	return data
}

func TestValidateTimeWithinWindow(t *testing.T) {
	tree := hashtree.Labeled([]byte("time"), hashtree.Leaf([]byte{0xe8, 0x07})) // LEB128(1000)
	cert := &certificate.Certificate{Tree: tree}

	if err := ValidateTime(cert, 1000, 300); err != nil {
		t.Fatalf("expected time within window, got %v", err)
	}
}

func TestValidateTimeTooFarInFuture(t *testing.T) {
	tree := hashtree.Labeled([]byte("time"), hashtree.Leaf([]byte{0xe8, 0x07})) // 1000
	cert := &certificate.Certificate{Tree: tree}

	err := ValidateTime(cert, 0, 300)
	if err == nil {
		t.Fatal("expected time-too-far-in-future error")
	}
}

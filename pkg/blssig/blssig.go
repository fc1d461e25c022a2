// Package blssig verifies the BLS12-381 signatures carried by Internet
// Computer certificates: a min-pk scheme with signatures on G1 and public
// keys on G2, checked via a single pairing equation against a message
// hashed to G1 with the standard signature-suite domain separation tag.
package blssig

import (
	"errors"
	"fmt"
	"sync"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
)

// DomainSeparationTag is the hash-to-curve suite used by IC certificate
// signatures, per the BLS standard draft referenced by §4.G.
const DomainSeparationTag = "BLS_SIG_BLS12381G1_XMD:SHA-256_SSWU_RO_"

const (
	PublicKeySize = 96 // compressed G2 point
	SignatureSize = 48 // compressed G1 point
)

var (
	initOnce sync.Once
	g2Gen    bls12381.G2Affine
)

func initialize() {
	initOnce.Do(func() {
		_, _, _, g2 := bls12381.Generators()
		g2Gen = g2
	})
}

// ErrInvalidPublicKey and ErrInvalidSignature report malformed or
// out-of-subgroup points.
var (
	ErrInvalidPublicKey = errors.New("blssig: invalid public key")
	ErrInvalidSignature = errors.New("blssig: invalid signature")
)

// PublicKey wraps a validated G2 point.
type PublicKey struct {
	point bls12381.G2Affine
}

// Signature wraps a validated G1 point.
type Signature struct {
	point bls12381.G1Affine
}

// ParsePublicKey deserializes and validates a raw 96-byte compressed G2
// public key, rejecting points off-curve, at infinity, or outside the
// prime-order subgroup. DER unwrapping is left to the caller.
func ParsePublicKey(data []byte) (*PublicKey, error) {
	initialize()
	if len(data) != PublicKeySize {
		return nil, fmt.Errorf("%w: size %d, want %d", ErrInvalidPublicKey, len(data), PublicKeySize)
	}
	var pk bls12381.G2Affine
	if _, err := pk.SetBytes(data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	if !pk.IsOnCurve() || pk.IsInfinity() || !pk.IsInSubGroup() {
		return nil, ErrInvalidPublicKey
	}
	return &PublicKey{point: pk}, nil
}

// ParseSignature deserializes and validates a raw compressed G1 signature.
func ParseSignature(data []byte) (*Signature, error) {
	initialize()
	if len(data) != SignatureSize {
		return nil, fmt.Errorf("%w: size %d, want %d", ErrInvalidSignature, len(data), SignatureSize)
	}
	var sig bls12381.G1Affine
	if _, err := sig.SetBytes(data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if !sig.IsOnCurve() || sig.IsInfinity() || !sig.IsInSubGroup() {
		return nil, ErrInvalidSignature
	}
	return &Signature{point: sig}, nil
}

// Verify checks e(sig, G2) == e(H(message), pk) via a single pairing-check
// call, equivalently e(sig, G2) * e(H(message), -pk) == 1.
func Verify(pk *PublicKey, sig *Signature, message []byte) (bool, error) {
	initialize()

	h, err := bls12381.HashToG1(message, []byte(DomainSeparationTag))
	if err != nil {
		return false, fmt.Errorf("blssig: hash to curve: %w", err)
	}

	var negPk bls12381.G2Affine
	negPk.Neg(&pk.point)

	ok, err := bls12381.PairingCheck(
		[]bls12381.G1Affine{sig.point, h},
		[]bls12381.G2Affine{g2Gen, negPk},
	)
	if err != nil {
		return false, fmt.Errorf("blssig: pairing check: %w", err)
	}
	return ok, nil
}

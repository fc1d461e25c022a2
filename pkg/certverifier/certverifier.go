// Package certverifier validates an IC certificate's authenticity: it
// walks at most one subnet delegation, extracts the DER-wrapped BLS public
// key, checks the root signature, confirms the canister falls within the
// delegated subnet's canister ranges, and enforces clock-skew bounds on the
// certificate's embedded time. See §4.G.
package certverifier

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/fxamacker/cbor/v2"

	"github.com/certen/response-verification/pkg/blssig"
	"github.com/certen/response-verification/pkg/certificate"
	"github.com/certen/response-verification/pkg/hashtree"
	"github.com/certen/response-verification/pkg/leb128"
)

// Logger receives warnings that do not affect the pass/fail outcome of
// Verify or ValidateTime, such as a certificate presenting a delegation
// chain at all (every extra hop is a discouraged but legal topology).
var Logger = log.New(os.Stderr, "[certverifier] ", log.LstdFlags)

var stateRootDomainSeparator = []byte("\x0Dic-state-root")

// derPrefix is the fixed ASN.1 DER wrapper preceding a raw BLS12-381 G2
// public key in every IC root/subnet key encoding.
var derPrefix = []byte{
	0x30, 0x81, 0x82, 0x30, 0x1d, 0x06, 0x0d, 0x2b, 0x06, 0x01, 0x04, 0x01, 0x82, 0xdc, 0x7c, 0x05,
	0x03, 0x01, 0x02, 0x01, 0x06, 0x0c, 0x2b, 0x06, 0x01, 0x04, 0x01, 0x82, 0xdc, 0x7c, 0x05, 0x03,
	0x02, 0x01, 0x03, 0x61, 0x00,
}

const derKeyLength = 96

var (
	ErrDerKeyLengthMismatch          = errors.New("certverifier: DER key has unexpected length")
	ErrDerPrefixMismatch             = errors.New("certverifier: DER key prefix mismatch")
	ErrTooManyDelegations            = errors.New("certverifier: certificate has too many delegations")
	ErrSubnetCanisterRangesNotFound  = errors.New("certverifier: subnet canister_ranges not found in tree")
	ErrSubnetPublicKeyNotFound       = errors.New("certverifier: subnet public_key not found in tree")
	ErrPrincipalOutOfRange           = errors.New("certverifier: canister is not within the delegated subnet's ranges")
	ErrSignatureVerificationFailed   = errors.New("certverifier: signature verification failed")
	ErrMissingTimePath               = errors.New("certverifier: certificate tree has no /time path")
	ErrTimeDecodingFailed            = errors.New("certverifier: could not decode certificate time as LEB128")
	ErrTimeTooFarInFuture            = errors.New("certverifier: certificate time is too far in the future")
	ErrTimeTooFarInPast              = errors.New("certverifier: certificate time is too far in the past")
)

// ExtractDERKey validates the fixed DER wrapper and returns the raw
// 96-byte BLS12-381 G2 public key beneath it.
func ExtractDERKey(buf []byte) ([]byte, error) {
	want := len(derPrefix) + derKeyLength
	if len(buf) != want {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDerKeyLengthMismatch, len(buf), want)
	}
	if !bytes.Equal(buf[:len(derPrefix)], derPrefix) {
		return nil, ErrDerPrefixMismatch
	}
	return buf[len(derPrefix):], nil
}

// PrincipalInRanges reports whether principal falls within any of the
// inclusive [low, high] ranges, compared byte-wise as IC principals are.
func PrincipalInRanges(principal []byte, ranges [][2][]byte) bool {
	for _, r := range ranges {
		if bytes.Compare(principal, r[0]) >= 0 && bytes.Compare(principal, r[1]) <= 0 {
			return true
		}
	}
	return false
}

// Verify checks cert's signature chain against rootPublicKey for
// canisterID, walking at most one delegation.
func Verify(cert *certificate.Certificate, canisterID []byte, rootPublicKey []byte) error {
	rootHash := cert.Tree.Digest()
	msg := append(append([]byte{}, stateRootDomainSeparator...), rootHash[:]...)

	derKey := rootPublicKey
	if cert.Delegation != nil {
		Logger.Printf("certificate presents a subnet delegation for canister %x", canisterID)
		key, err := verifyDelegation(cert.Delegation, canisterID, rootPublicKey)
		if err != nil {
			return err
		}
		derKey = key
	}

	pubKeyBytes, err := ExtractDERKey(derKey)
	if err != nil {
		return err
	}

	pk, err := blssig.ParsePublicKey(pubKeyBytes)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSignatureVerificationFailed, err)
	}
	sig, err := blssig.ParseSignature(cert.Signature)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSignatureVerificationFailed, err)
	}

	ok, err := blssig.Verify(pk, sig, msg)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSignatureVerificationFailed, err)
	}
	if !ok {
		return ErrSignatureVerificationFailed
	}
	return nil
}

func verifyDelegation(delegation *certificate.Delegation, canisterID []byte, rootPublicKey []byte) ([]byte, error) {
	inner, err := certificate.Decode(delegation.Certificate)
	if err != nil {
		return nil, fmt.Errorf("certverifier: decode delegation certificate: %w", err)
	}
	if inner.Delegation != nil {
		return nil, ErrTooManyDelegations
	}
	if err := Verify(inner, canisterID, rootPublicKey); err != nil {
		return nil, err
	}

	rangesPath := [][]byte{[]byte("subnet"), delegation.SubnetID, []byte("canister_ranges")}
	rangesRes := inner.Tree.LookupPath(rangesPath)
	if rangesRes.Status != hashtree.StatusFound {
		return nil, ErrSubnetCanisterRangesNotFound
	}
	ranges, err := decodePrincipalRanges(rangesRes.Value)
	if err != nil {
		return nil, fmt.Errorf("certverifier: decode canister_ranges: %w", err)
	}
	if !PrincipalInRanges(canisterID, ranges) {
		return nil, ErrPrincipalOutOfRange
	}

	keyPath := [][]byte{[]byte("subnet"), delegation.SubnetID, []byte("public_key")}
	keyRes := inner.Tree.LookupPath(keyPath)
	if keyRes.Status != hashtree.StatusFound {
		return nil, ErrSubnetPublicKeyNotFound
	}
	return keyRes.Value, nil
}

// decodePrincipalRanges decodes the CBOR array of [low, high] principal
// byte-string pairs found at a subnet's canister_ranges path.
func decodePrincipalRanges(data []byte) ([][2][]byte, error) {
	var raw [][2][]byte
	if err := cbor.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// ValidateTime checks the certificate's embedded /time path against
// currentTimeNs, allowing up to allowedOffsetNs of clock skew in either
// direction.
func ValidateTime(cert *certificate.Certificate, currentTimeNs, allowedOffsetNs uint64) error {
	res := cert.Tree.LookupPath([][]byte{[]byte("time")})
	if res.Status != hashtree.StatusFound {
		return ErrMissingTimePath
	}

	certTime, _, err := leb128.DecodeUnsigned(res.Value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTimeDecodingFailed, err)
	}

	maxTime := currentTimeNs + allowedOffsetNs
	minTime := uint64(0)
	if currentTimeNs > allowedOffsetNs {
		minTime = currentTimeNs - allowedOffsetNs
	}

	if certTime > maxTime {
		return fmt.Errorf("%w: certificate time %d exceeds max %d", ErrTimeTooFarInFuture, certTime, maxTime)
	}
	if certTime < minTime {
		return fmt.Errorf("%w: certificate time %d below min %d", ErrTimeTooFarInPast, certTime, minTime)
	}
	return nil
}

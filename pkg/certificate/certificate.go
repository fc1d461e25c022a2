// Package certificate decodes the CBOR-encoded Certificate and Delegation
// structures an IC replica attaches to certified responses: a state tree,
// a BLS signature over its root hash, and an optional one-level subnet
// delegation chain.
package certificate

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/certen/response-verification/pkg/hashtree"
)

// Certificate is the top-level CBOR structure: {tree, signature, delegation?}.
type Certificate struct {
	Tree       *hashtree.Node
	Signature  []byte
	Delegation *Delegation
}

// Delegation is {subnet_id, certificate}, where Certificate is itself a
// CBOR-encoded Certificate (recursively decodable, but per §4.G a
// delegation's own certificate must not carry a further delegation).
type Delegation struct {
	SubnetID    []byte
	Certificate []byte
}

type wireCertificate struct {
	Tree       cbor.RawMessage  `cbor:"tree"`
	Signature  []byte           `cbor:"signature"`
	Delegation *wireDelegation  `cbor:"delegation,omitempty"`
}

type wireDelegation struct {
	SubnetID    []byte `cbor:"subnet_id"`
	Certificate []byte `cbor:"certificate"`
}

// Decode parses data as a CBOR-encoded Certificate.
func Decode(data []byte) (*Certificate, error) {
	var wire wireCertificate
	if err := cbor.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("certificate: decode: %w", err)
	}

	var tree hashtree.Node
	if err := cbor.Unmarshal(wire.Tree, &tree); err != nil {
		return nil, fmt.Errorf("certificate: decode tree: %w", err)
	}

	cert := &Certificate{Tree: &tree, Signature: wire.Signature}
	if wire.Delegation != nil {
		cert.Delegation = &Delegation{
			SubnetID:    wire.Delegation.SubnetID,
			Certificate: wire.Delegation.Certificate,
		}
	}
	return cert, nil
}

package hashtree

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Wire tags per §4.B: the node's shape is encoded as a CBOR array whose
// first element is one of these small integers, followed by the node's
// fields in a fixed order.
const (
	tagEmpty   = 0
	tagFork    = 1
	tagLabeled = 2
	tagLeaf    = 3
	tagPruned  = 4
)

// MarshalCBOR encodes n as the tagged-array wire shape used throughout the
// certification system's CBOR payloads.
func (n *Node) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(n.toWire())
}

func (n *Node) toWire() []interface{} {
	switch n.Kind {
	case KindEmpty:
		return []interface{}{uint64(tagEmpty)}
	case KindLeaf:
		return []interface{}{uint64(tagLeaf), n.Content}
	case KindPruned:
		return []interface{}{uint64(tagPruned), n.PrunedHash[:]}
	case KindLabeled:
		return []interface{}{uint64(tagLabeled), n.Label, n.Sub.toWire()}
	case KindFork:
		return []interface{}{uint64(tagFork), n.Left.toWire(), n.Right.toWire()}
	default:
		panic("hashtree: unknown node kind")
	}
}

// UnmarshalCBOR decodes the tagged-array wire shape into n, dispatching on
// the leading tag the way parsed_cbor_to_tree does in the reference
// implementation.
func (n *Node) UnmarshalCBOR(data []byte) error {
	var raw []cbor.RawMessage
	if err := cbor.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedHashTree, err)
	}
	decoded, err := fromWire(raw)
	if err != nil {
		return err
	}
	*n = *decoded
	return nil
}

func fromWire(raw []cbor.RawMessage) (*Node, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty array", ErrMalformedHashTree)
	}
	var tag uint64
	if err := cbor.Unmarshal(raw[0], &tag); err != nil {
		return nil, fmt.Errorf("%w: bad tag: %v", ErrMalformedHashTree, err)
	}

	switch tag {
	case tagEmpty:
		if len(raw) != 1 {
			return nil, fmt.Errorf("%w: empty node with extra fields", ErrMalformedHashTree)
		}
		return Empty(), nil

	case tagLeaf:
		if len(raw) != 2 {
			return nil, fmt.Errorf("%w: leaf node wrong arity", ErrMalformedHashTree)
		}
		var content []byte
		if err := cbor.Unmarshal(raw[1], &content); err != nil {
			return nil, fmt.Errorf("%w: leaf content: %v", ErrMalformedHashTree, err)
		}
		return Leaf(content), nil

	case tagPruned:
		if len(raw) != 2 {
			return nil, fmt.Errorf("%w: pruned node wrong arity", ErrMalformedHashTree)
		}
		var hash []byte
		if err := cbor.Unmarshal(raw[1], &hash); err != nil {
			return nil, fmt.Errorf("%w: pruned hash: %v", ErrMalformedHashTree, err)
		}
		if len(hash) != 32 {
			return nil, fmt.Errorf("%w: pruned hash must be 32 bytes, got %d", ErrMalformedHashTree, len(hash))
		}
		var h [32]byte
		copy(h[:], hash)
		return Pruned(h), nil

	case tagLabeled:
		if len(raw) != 3 {
			return nil, fmt.Errorf("%w: labeled node wrong arity", ErrMalformedHashTree)
		}
		var label []byte
		if err := cbor.Unmarshal(raw[1], &label); err != nil {
			return nil, fmt.Errorf("%w: label: %v", ErrMalformedHashTree, err)
		}
		var subRaw []cbor.RawMessage
		if err := cbor.Unmarshal(raw[2], &subRaw); err != nil {
			return nil, fmt.Errorf("%w: labeled subtree: %v", ErrMalformedHashTree, err)
		}
		sub, err := fromWire(subRaw)
		if err != nil {
			return nil, err
		}
		return Labeled(label, sub), nil

	case tagFork:
		if len(raw) != 3 {
			return nil, fmt.Errorf("%w: fork node wrong arity", ErrMalformedHashTree)
		}
		var leftRaw, rightRaw []cbor.RawMessage
		if err := cbor.Unmarshal(raw[1], &leftRaw); err != nil {
			return nil, fmt.Errorf("%w: fork left: %v", ErrMalformedHashTree, err)
		}
		if err := cbor.Unmarshal(raw[2], &rightRaw); err != nil {
			return nil, fmt.Errorf("%w: fork right: %v", ErrMalformedHashTree, err)
		}
		left, err := fromWire(leftRaw)
		if err != nil {
			return nil, err
		}
		right, err := fromWire(rightRaw)
		if err != nil {
			return nil, err
		}
		return Fork(left, right), nil

	default:
		return nil, fmt.Errorf("%w: unrecognized tag %d", ErrMalformedHashTree, tag)
	}
}

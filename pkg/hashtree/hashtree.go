// Package hashtree implements the labeled Merkle hash tree that underlies
// both the certification tree (component E) and the certificate state tree
// (component F): a recursive structure of Empty, Leaf, Labeled, Fork and
// Pruned nodes with a domain-separated digest and path-lookup semantics that
// distinguish a proven absence from an indeterminate one hidden behind a
// pruned sibling.
package hashtree

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"sync"
)

// Kind discriminates the five node shapes a hash tree can take.
type Kind int

const (
	KindEmpty Kind = iota
	KindFork
	KindLabeled
	KindLeaf
	KindPruned
)

var (
	domainEmpty   = []byte("\x0Dic-hashtree-empty")
	domainLeaf    = []byte("\x0Aic-hashtree-leaf")
	domainLabeled = []byte("\x0Dic-hashtree-labeled")
	domainFork    = []byte("\x0Aic-hashtree-fork")
)

// ErrMalformedHashTree is returned by CBOR decoding when a node's shape does
// not match one of the five recognized tags, per §4.B.
var ErrMalformedHashTree = errors.New("hashtree: malformed hash tree")

// Node is an immutable hash tree value. Only the fields relevant to Kind are
// meaningful; digests are computed lazily and cached for the lifetime of the
// node, since trees are never mutated in place once constructed.
type Node struct {
	Kind       Kind
	Label      []byte
	Content    []byte
	PrunedHash [32]byte
	Left       *Node
	Right      *Node
	Sub        *Node

	once   sync.Once
	digest [32]byte
}

func Empty() *Node { return &Node{Kind: KindEmpty} }

func Leaf(content []byte) *Node { return &Node{Kind: KindLeaf, Content: content} }

func Labeled(label []byte, sub *Node) *Node {
	return &Node{Kind: KindLabeled, Label: label, Sub: sub}
}

func Fork(left, right *Node) *Node { return &Node{Kind: KindFork, Left: left, Right: right} }

func Pruned(hash [32]byte) *Node { return &Node{Kind: KindPruned, PrunedHash: hash} }

// Digest computes the node's digest per the domain-separated formulas of
// §3, memoizing the result since hash trees are immutable.
func (n *Node) Digest() [32]byte {
	n.once.Do(func() {
		n.digest = n.computeDigest()
	})
	return n.digest
}

func (n *Node) computeDigest() [32]byte {
	switch n.Kind {
	case KindEmpty:
		return sha256.Sum256(domainEmpty)
	case KindLeaf:
		h := sha256.New()
		h.Write(domainLeaf)
		h.Write(n.Content)
		return sum(h)
	case KindLabeled:
		h := sha256.New()
		h.Write(domainLabeled)
		h.Write(n.Label)
		subDigest := n.Sub.Digest()
		h.Write(subDigest[:])
		return sum(h)
	case KindFork:
		h := sha256.New()
		h.Write(domainFork)
		ld := n.Left.Digest()
		rd := n.Right.Digest()
		h.Write(ld[:])
		h.Write(rd[:])
		return sum(h)
	case KindPruned:
		return n.PrunedHash
	default:
		panic("hashtree: unknown node kind")
	}
}

func sum(h interface{ Sum([]byte) []byte }) [32]byte {
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// LookupStatus discriminates the four possible outcomes of a path lookup.
type LookupStatus int

const (
	StatusFound LookupStatus = iota
	StatusAbsent
	StatusUnknown
	StatusError
)

// LookupResult is the outcome of LookupPath.
type LookupResult struct {
	Status LookupStatus
	Value  []byte // meaningful only when Status == StatusFound
}

// SubtreeLookupResult is the outcome of LookupSubtree.
type SubtreeLookupResult struct {
	Status  LookupStatus // one of Found, Absent, Unknown
	Subtree *Node        // meaningful only when Status == StatusFound
}

// LookupPath descends through labeled forks following path, requiring the
// terminal node to be a Leaf to report Found.
func (n *Node) LookupPath(path [][]byte) LookupResult {
	if len(path) == 0 {
		switch n.Kind {
		case KindLeaf:
			return LookupResult{Status: StatusFound, Value: n.Content}
		case KindEmpty:
			return LookupResult{Status: StatusAbsent}
		case KindPruned:
			return LookupResult{Status: StatusUnknown}
		default:
			// Fork or Labeled: the path ended on a non-terminal node.
			return LookupResult{Status: StatusError}
		}
	}

	head, rest := path[0], path[1:]
	res := findLabel(n, head)
	switch res.status {
	case slotFound:
		return res.subtree.LookupPath(rest)
	case slotUnknown:
		return LookupResult{Status: StatusUnknown}
	default:
		return LookupResult{Status: StatusAbsent}
	}
}

// LookupSubtree is identical to LookupPath except that, once the path is
// exhausted, any non-Pruned node counts as Found.
func (n *Node) LookupSubtree(path [][]byte) SubtreeLookupResult {
	if len(path) == 0 {
		if n.Kind == KindPruned {
			return SubtreeLookupResult{Status: StatusUnknown}
		}
		return SubtreeLookupResult{Status: StatusFound, Subtree: n}
	}

	head, rest := path[0], path[1:]
	res := findLabel(n, head)
	switch res.status {
	case slotFound:
		return res.subtree.LookupSubtree(rest)
	case slotUnknown:
		return SubtreeLookupResult{Status: StatusUnknown}
	default:
		return SubtreeLookupResult{Status: StatusAbsent}
	}
}

type slotStatus int

const (
	slotFound slotStatus = iota
	slotAbsent
	slotUnknown
)

type slotResult struct {
	status  slotStatus
	subtree *Node
}

// findLabel searches the sibling spine rooted at n for a Labeled child whose
// label equals target. The spine (nested Forks) is scanned left to right;
// a Pruned sibling only prevents concluding Absent for labels that could
// plausibly fall in the gap it occupies - once a real, lesser label has been
// passed, an earlier Pruned sibling becomes irrelevant to later comparisons,
// since the sort order rules out it hiding anything greater than what's
// already been confirmed smaller than the target.
func findLabel(n *Node, target []byte) slotResult {
	seenPruned := false
	var walk func(node *Node) (slotResult, bool) // bool: stop scanning

	walk = func(node *Node) (slotResult, bool) {
		switch node.Kind {
		case KindFork:
			if res, stop := walk(node.Left); stop {
				return res, true
			}
			return walk(node.Right)
		case KindPruned:
			seenPruned = true
			return slotResult{}, false
		case KindLabeled:
			cmp := bytes.Compare(node.Label, target)
			switch {
			case cmp == 0:
				return slotResult{status: slotFound, subtree: node.Sub}, true
			case cmp < 0:
				// This landmark sorts before target: everything seen so far
				// (including any earlier Pruned) is now behind us.
				seenPruned = false
				return slotResult{}, false
			default:
				if seenPruned {
					return slotResult{status: slotUnknown}, true
				}
				return slotResult{status: slotAbsent}, true
			}
		default:
			// Empty/Leaf appearing bare under a Fork carries no label
			// information; it neither advances nor threatens the bound.
			return slotResult{}, false
		}
	}

	if res, stop := walk(n); stop {
		return res
	}
	if seenPruned {
		return slotResult{status: slotUnknown}
	}
	return slotResult{status: slotAbsent}
}

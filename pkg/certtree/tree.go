// Package certtree is the producer-side certification tree: a nested map
// keyed by HTTP expression path segments (the literal "http_expr" root,
// URL path segments, an exact/wildcard terminator, then a CEL-hash /
// request-hash / response-hash triple) whose root hash a canister
// publishes to the network after each batch of mutations. See §4.E.
package certtree

import (
	"bytes"
	"os"
	"sort"
	"sync"

	cmtlog "github.com/cometbft/cometbft/libs/log"

	"github.com/certen/response-verification/pkg/hashtree"
)

// CertifiedDataSink is the injected boundary through which a tree
// publishes its new root hash after a mutation batch; the tree itself
// never reads the value back.
type CertifiedDataSink interface {
	SetCertifiedData(root [32]byte)
}

// pathNode is one segment-keyed level of the tree. A node is a leaf
// (Leaf("")) when isLeaf is set and has no children; every other node is
// a Labeled fork over its children, or Empty when it has none.
type pathNode struct {
	children map[string]*pathNode
	isLeaf   bool
}

func newPathNode() *pathNode {
	return &pathNode{children: map[string]*pathNode{}}
}

func (n *pathNode) empty() bool { return len(n.children) == 0 && !n.isLeaf }

func (n *pathNode) child(seg []byte) *pathNode {
	key := string(seg)
	c, ok := n.children[key]
	if !ok {
		c = newPathNode()
		n.children[key] = c
	}
	return c
}

// Tree is the mutable certification tree. Mutations are guarded by a
// RWMutex the way pkg/merkle.Tree guards its node slices, even though a
// canister's own execution model already serializes calls into it.
type Tree struct {
	mu     sync.RWMutex
	root   *pathNode
	sink   CertifiedDataSink
	logger cmtlog.Logger
}

// New creates an empty certification tree. sink may be nil. Mutation
// batches are logged through a CometBFT-style logger the way a replica
// logs block application, defaulting to stdout when none is supplied.
func New(sink CertifiedDataSink) *Tree {
	return &Tree{
		root:   newPathNode(),
		sink:   sink,
		logger: cmtlog.NewTMLogger(cmtlog.NewSyncWriter(os.Stdout)),
	}
}

// WithLogger overrides the tree's logger, returning the same *Tree for
// chaining at construction time.
func (t *Tree) WithLogger(logger cmtlog.Logger) *Tree {
	t.logger = logger
	return t
}

func emptyToken(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}

// fullPath builds the segment chain below http_expr: pathSegments holds
// only the URL path segments (the http_expr label is added around the
// whole tree by buildHashTree and Witness); this appends the terminator
// and the (cel_hash, request_hash, response_hash) triple.
func fullPath(pathSegments [][]byte, terminator, celHash, requestHash, responseHash []byte) [][]byte {
	full := append(append([][]byte{}, pathSegments...), terminator, emptyToken(celHash), emptyToken(requestHash), emptyToken(responseHash))
	return full
}

// Insert creates (as needed) the nested sub-path
// seg0/seg1/.../terminator/cel_hash/request_hash/response_hash with
// Leaf("") at the end, then republishes the root hash to the sink.
func (t *Tree) Insert(pathSegments [][]byte, terminator []byte, celHash, requestHash, responseHash []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()

	node := t.root
	for _, seg := range fullPath(pathSegments, terminator, celHash, requestHash, responseHash) {
		node = node.child(seg)
	}
	node.isLeaf = true

	t.logger.Info("certtree mutation applied", "op", "insert", "segments", len(pathSegments))
	t.publish()
}

// Delete removes the leaf identified by the full path and prunes any
// ancestor segment left with no children.
func (t *Tree) Delete(pathSegments [][]byte, terminator []byte, celHash, requestHash, responseHash []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()

	deletePath(t.root, fullPath(pathSegments, terminator, celHash, requestHash, responseHash))
	t.logger.Info("certtree mutation applied", "op", "delete", "segments", len(pathSegments))
	t.publish()
}

func deletePath(node *pathNode, segs [][]byte) bool {
	if len(segs) == 0 {
		node.isLeaf = false
		return node.empty()
	}
	key := string(segs[0])
	child, ok := node.children[key]
	if !ok {
		return node.empty()
	}
	if deletePath(child, segs[1:]) {
		delete(node.children, key)
	}
	return node.empty()
}

func (t *Tree) publish() {
	if t.sink == nil {
		return
	}
	t.sink.SetCertifiedData(t.buildHashTree().Digest())
}

// RootHash returns the current hash-tree digest of the whole
// certification tree.
func (t *Tree) RootHash() [32]byte {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.buildHashTree().Digest()
}

// HashTree materializes the full, unpruned hash tree rooted at this
// certification tree.
func (t *Tree) HashTree() *hashtree.Node {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.buildHashTree()
}

func (t *Tree) buildHashTree() *hashtree.Node {
	return hashtree.Labeled(pathPrefixBytes, toHashTree(t.root))
}

func toHashTree(n *pathNode) *hashtree.Node {
	if n.isLeaf && len(n.children) == 0 {
		return hashtree.Leaf(nil)
	}
	if len(n.children) == 0 {
		return hashtree.Empty()
	}

	type labeled struct {
		label []byte
		node  *hashtree.Node
	}
	items := make([]labeled, 0, len(n.children))
	for seg, child := range n.children {
		items = append(items, labeled{[]byte(seg), toHashTree(child)})
	}
	sort.Slice(items, func(i, j int) bool { return bytes.Compare(items[i].label, items[j].label) < 0 })

	// Left-leaning fork spine, not a balanced one. Producer and witness
	// construction (buildWitness) both walk it the same way, so digests
	// and proofs stay internally consistent despite the imbalance.
	var acc *hashtree.Node
	for _, it := range items {
		node := hashtree.Labeled(it.label, it.node)
		if acc == nil {
			acc = node
		} else {
			acc = hashtree.Fork(acc, node)
		}
	}
	return acc
}

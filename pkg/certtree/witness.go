package certtree

import (
	"sort"

	"github.com/certen/response-verification/pkg/hashtree"
)

// witnessTarget is a still-relevant label suffix a witness must either
// fully disclose (the responding path) or bracket with enough sibling
// structure to prove absence (a more-specific wildcard, or the exact
// path, that must not exist in the tree).
type witnessTarget struct {
	remaining [][]byte
}

// Witness produces a pruned hash tree that discloses the full leaf chain
// identified by (pathSegments, terminator, celHash, requestHash,
// responseHash) and proves the absence of every wildcard path more
// specific than the responding one, plus the exact-terminator path, for
// requestedURLPath. See §4.E.
func (t *Tree) Witness(
	pathSegments [][]byte, terminator []byte, celHash, requestHash, responseHash []byte,
	requestedURLPath [][]byte,
) *hashtree.Node {
	t.mu.RLock()
	defer t.mu.RUnlock()

	servePath := fullPath(pathSegments, terminator, celHash, requestHash, responseHash)
	targets := []witnessTarget{{remaining: servePath}}

	respondingExprPath := append(append([][]byte{}, pathSegments...), terminator)
	for _, msp := range MoreSpecificWildcardsFor(requestedURLPath, respondingExprPath) {
		targets = append(targets, witnessTarget{remaining: msp})
	}

	exactPath := append(append([][]byte{}, requestedURLPath...), exactTerminatorBytes)
	targets = append(targets, witnessTarget{remaining: exactPath})

	sub := buildWitness(t.root, targets)
	return hashtree.Labeled(pathPrefixBytes, sub)
}

func buildWitness(n *pathNode, targets []witnessTarget) *hashtree.Node {
	if n.isLeaf && len(n.children) == 0 {
		return hashtree.Leaf(nil)
	}
	if len(n.children) == 0 {
		return hashtree.Empty()
	}

	groups := map[string][][][]byte{}
	for _, tgt := range targets {
		if len(tgt.remaining) == 0 {
			continue
		}
		head := string(tgt.remaining[0])
		groups[head] = append(groups[head], tgt.remaining[1:])
	}

	labels := make([]string, 0, len(n.children))
	for k := range n.children {
		labels = append(labels, k)
	}
	sort.Strings(labels)

	var missingHeads []string
	for head := range groups {
		if _, ok := n.children[head]; !ok {
			missingHeads = append(missingHeads, head)
		}
	}

	bracket := map[string]bool{}
	for _, mh := range missingHeads {
		idx := sort.SearchStrings(labels, mh)
		if idx > 0 {
			bracket[labels[idx-1]] = true
		}
		if idx < len(labels) {
			bracket[labels[idx]] = true
		}
	}

	var chain *hashtree.Node
	for _, lbl := range labels {
		child := n.children[lbl]

		var slot *hashtree.Node
		switch {
		case len(groups[lbl]) > 0:
			tails := make([]witnessTarget, len(groups[lbl]))
			for i, tail := range groups[lbl] {
				tails[i] = witnessTarget{remaining: tail}
			}
			slot = hashtree.Labeled([]byte(lbl), buildWitness(child, tails))
		case bracket[lbl]:
			d := toHashTree(child).Digest()
			slot = hashtree.Labeled([]byte(lbl), hashtree.Pruned(d))
		default:
			d := hashtree.Labeled([]byte(lbl), toHashTree(child)).Digest()
			slot = hashtree.Pruned(d)
		}

		if chain == nil {
			chain = slot
		} else {
			chain = hashtree.Fork(chain, slot)
		}
	}

	return chain
}

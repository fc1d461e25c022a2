package certtree

import "bytes"

// Path segment conventions for HTTP expression paths, per §3.
const (
	PathPrefix         = "http_expr"
	PathDirSeparator   = ""
	ExactTerminator    = "<$>"
	WildcardTerminator = "<*>"
)

var (
	pathPrefixBytes         = []byte(PathPrefix)
	pathDirSeparatorBytes   = []byte(PathDirSeparator)
	exactTerminatorBytes    = []byte(ExactTerminator)
	wildcardTerminatorBytes = []byte(WildcardTerminator)
)

// PathPrefixBytes is the []byte form of PathPrefix ("http_expr"), the
// literal label every expression path starts with.
var PathPrefixBytes = pathPrefixBytes

func segEqual(a, b []byte) bool { return bytes.Equal(a, b) }

func pathStartsWith(path, prefix [][]byte) bool {
	if len(prefix) > len(path) {
		return false
	}
	for i, p := range prefix {
		if !segEqual(path[i], p) {
			return false
		}
	}
	return true
}

// IsWildcardPathValidForRequestPath reports whether wildcardPath is a
// prefix of requestPath, tolerating a trailing directory-separator segment
// on wildcardPath that requestPath never carries.
func IsWildcardPathValidForRequestPath(wildcardPath, requestPath [][]byte) bool {
	if pathStartsWith(requestPath, wildcardPath) {
		return true
	}
	if len(wildcardPath) > 0 && segEqual(wildcardPath[len(wildcardPath)-1], pathDirSeparatorBytes) {
		return pathStartsWith(requestPath, wildcardPath[:len(wildcardPath)-1])
	}
	return false
}

// stripPathAffixes removes a leading "http_expr" segment and a trailing
// "<$>"/"<*>" terminator, and collapses a lone leading directory separator
// unless the path is the single-segment root path.
func stripPathAffixes(path [][]byte) [][]byte {
	out := append([][]byte{}, path...)

	if len(out) > 0 && segEqual(out[0], pathPrefixBytes) {
		out = out[1:]
	}
	if len(out) > 0 {
		last := out[len(out)-1]
		if segEqual(last, exactTerminatorBytes) || segEqual(last, wildcardTerminatorBytes) {
			out = out[:len(out)-1]
		}
	}
	if len(out) > 1 && segEqual(out[0], pathDirSeparatorBytes) {
		out = out[1:]
	}
	return out
}

func pathsEqual(a, b [][]byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !segEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

func lastSegment(path [][]byte) []byte {
	if len(path) == 0 {
		return nil
	}
	return path[len(path)-1]
}

// MoreSpecificWildcardsFor returns the list of wildcard expression paths
// that are more specific than respondingWildcardPath but still match
// requestedPath, walking from the deepest match up to the root wildcard.
// respondingWildcardPath is expected to be a prefix of requestedPath; if it
// is not, every valid wildcard for requestedPath is returned.
func MoreSpecificWildcardsFor(requestedPath, respondingWildcardPath [][]byte) [][][]byte {
	var validWildcards [][][]byte

	potentialPath := stripPathAffixes(requestedPath)
	respondingPath := stripPathAffixes(respondingWildcardPath)

	if !IsWildcardPathValidForRequestPath(respondingPath, potentialPath) {
		respondingPath = [][]byte{}
	}

	for len(potentialPath) > len(respondingPath) || !segEqual(lastSegment(potentialPath), lastSegment(respondingPath)) {
		candidate := append(append([][]byte{}, potentialPath...), wildcardTerminatorBytes)
		validWildcards = append(validWildcards, candidate)

		// Pop the last real segment of potentialPath: a trailing directory
		// separator is dropped, any other segment is replaced by one.
		if len(potentialPath) == 0 {
			break
		}
		last := len(potentialPath) - 1
		if segEqual(potentialPath[last], pathDirSeparatorBytes) {
			potentialPath = potentialPath[:last]
		} else {
			potentialPath = append(potentialPath[:last], pathDirSeparatorBytes)
		}
	}

	return validWildcards
}

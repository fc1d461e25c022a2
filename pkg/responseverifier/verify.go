// Package responseverifier implements the response-verification entry
// point (component H): it parses the Ic-Certificate header, verifies the
// embedded certificate and time, binds the witness tree to the observed
// response, and dispatches to the v1 or v2 algorithm.
package responseverifier

import (
	"bytes"
	"crypto/sha256"
	"net/url"
	"strings"
	"time"

	"github.com/certen/response-verification/pkg/cel"
	"github.com/certen/response-verification/pkg/certhash"
	"github.com/certen/response-verification/pkg/certtree"
	"github.com/certen/response-verification/pkg/certverifier"
	"github.com/certen/response-verification/pkg/hashtree"
	"github.com/certen/response-verification/pkg/httpmodel"
)

const (
	headerCertificate           = "IC-Certificate"
	headerCertificateExpression = "IC-CertificateExpression"
)

// VerifiedResponse is the result of a successful verification.
type VerifiedResponse struct {
	StatusCode *uint16
	Headers    []httpmodel.Header
	Body       []byte
}

// Options configures a single verification call.
type Options struct {
	CanisterID          []byte
	RootPublicKey       []byte
	CurrentTimeNs       uint64
	AllowedTimeOffsetNs uint64
	MinRequestedVersion int
	Metrics             *Metrics // optional; nil disables metrics
}

// Verify runs the full certificate-header-driven verification of resp
// against req, dispatching to v1 or v2 based on the header's version.
func Verify(req httpmodel.Request, resp httpmodel.Response, opts Options) (*VerifiedResponse, *Error) {
	start := time.Now()
	version := 0
	verified, verr := verify(req, resp, opts, &version)

	result := "ok"
	if verr != nil {
		result = "error"
	}
	opts.Metrics.observe(version, result, time.Since(start))

	return verified, verr
}

func verify(req httpmodel.Request, resp httpmodel.Response, opts Options, version *int) (*VerifiedResponse, *Error) {
	headerValue, ok := httpmodel.HeaderValue(resp.Headers, headerCertificate)
	if !ok {
		return nil, newErr(ErrHeaderMissingCertificate, "response has no Ic-Certificate header")
	}

	header, err := ParseCertificateHeader(headerValue)
	if err != nil {
		return nil, err
	}

	if header.Version < MinVerificationVersion || header.Version > MaxVerificationVersion {
		return nil, newErr(ErrUnsupportedVerificationVersion, "unsupported Ic-Certificate version")
	}
	*version = header.Version
	if opts.MinRequestedVersion > 0 && header.Version < opts.MinRequestedVersion {
		return nil, newErr(ErrRequestedVersionMismatch, "certificate version is lower than the caller's minimum")
	}

	if cerr := certverifier.Verify(header.Certificate, opts.CanisterID, opts.RootPublicKey); cerr != nil {
		return nil, wrapErr(ErrCertificateVerificationFailed, "certificate signature verification failed", cerr)
	}
	if cerr := certverifier.ValidateTime(header.Certificate, opts.CurrentTimeNs, opts.AllowedTimeOffsetNs); cerr != nil {
		return nil, wrapErr(ErrCertificateVerificationFailed, "certificate time validation failed", cerr)
	}

	if err := checkCertifiedDataBinding(header, opts.CanisterID); err != nil {
		return nil, err
	}

	if header.Version == 1 {
		return verifyV1(req, resp, header, opts)
	}
	return verifyV2(req, resp, header, opts)
}

func checkCertifiedDataBinding(header *CertificateHeader, canisterID []byte) *Error {
	path := [][]byte{[]byte("canister"), canisterID, []byte("certified_data")}
	res := header.Certificate.Tree.LookupPath(path)
	if res.Status != hashtree.StatusFound {
		return newErr(ErrInvalidTree, "certified_data not found for canister in certificate tree")
	}
	treeDigest := header.Tree.Digest()
	if !bytes.Equal(res.Value, treeDigest[:]) {
		return newErr(ErrInvalidTree, "witness tree digest does not match the canister's certified_data")
	}
	return nil
}

// verifyV1 implements the legacy body-only algorithm of §4.H. The body is
// hashed as received; Content-Encoding is not decoded.
func verifyV1(req httpmodel.Request, resp httpmodel.Response, header *CertificateHeader, opts Options) (*VerifiedResponse, *Error) {
	path, _ := httpmodel.SplitURL(req.URL)
	bodyHash := sha256.Sum256(resp.Body)

	for _, candidate := range []string{path, "/index.html"} {
		res := header.Tree.LookupPath(assetPath(candidate))
		if res.Status == hashtree.StatusFound && bytes.Equal(res.Value, bodyHash[:]) {
			return &VerifiedResponse{Headers: []httpmodel.Header{}, Body: resp.Body}, nil
		}
	}
	return nil, newErr(ErrInvalidResponseBody, "no http_assets entry matches the response body hash for the request path or index fallback")
}

func assetPath(requestPath string) [][]byte {
	return [][]byte{[]byte("http_assets"), []byte(requestPath)}
}

// verifyV2 implements the full CEL-descriptor-bound algorithm of §4.H.
func verifyV2(req httpmodel.Request, resp httpmodel.Response, header *CertificateHeader, opts Options) (*VerifiedResponse, *Error) {
	exprHeaderValue, haveExpr := httpmodel.HeaderValue(resp.Headers, headerCertificateExpression)
	if !haveExpr {
		return nil, newErr(ErrMissingCertificateExpressionHeader, "response has no IC-CertificateExpression header")
	}
	descriptor, perr := cel.ParseDescriptor(exprHeaderValue)
	if perr != nil {
		return nil, wrapErr(ErrMalformedCertificateExpression, "parsing IC-CertificateExpression", perr)
	}
	exprHashArr := sha256.Sum256([]byte(exprHeaderValue))
	exprHash := exprHashArr[:]

	if header.ExprPath == nil {
		return nil, newErr(ErrMalformedExprPath, "Ic-Certificate header has no expr_path for v2 verification")
	}
	exprPath := stringsToBytes(header.ExprPath)
	if len(exprPath) == 0 || string(exprPath[0]) != certtree.PathPrefix {
		return nil, newErr(ErrMalformedExprPath, "expr_path must start with http_expr")
	}
	terminator := exprPath[len(exprPath)-1]
	isWildcard := string(terminator) == certtree.WildcardTerminator
	isExact := string(terminator) == certtree.ExactTerminator
	if !isWildcard && !isExact {
		return nil, newErr(ErrMalformedExprPath, "expr_path must end in <$> or <*>")
	}

	requestPathSegs := splitRequestPath(req.URL)
	respondingSegs := exprPath[1 : len(exprPath)-1] // between http_expr and terminator, both excluded

	fullRespondingExprPath := append(append([][]byte{}, exprPath[1:len(exprPath)-1]...), terminator)
	if isExact {
		if !pathSegsEqual(respondingSegs, requestPathSegs) {
			return nil, newErr(ErrExpressionPathMismatch, "exact expr_path does not match the request path")
		}
	} else {
		if !certtree.IsWildcardPathValidForRequestPath(respondingSegs, requestPathSegs) {
			return nil, newErr(ErrExpressionPathMismatch, "wildcard expr_path is not a valid prefix of the request path")
		}
	}

	moreSpecific := certtree.MoreSpecificWildcardsFor(requestPathSegs, fullRespondingExprPath)
	for _, msp := range moreSpecific {
		absencePath := append([][]byte{certtree.PathPrefixBytes}, msp...)
		res := header.Tree.LookupSubtree(absencePath)
		if res.Status == hashtree.StatusFound {
			return nil, newErr(ErrMoreSpecificWildcardExpressionMightExistInTree, "a more specific wildcard expression path might exist")
		}
		if res.Status == hashtree.StatusUnknown {
			return nil, newErr(ErrMoreSpecificWildcardExpressionMightExistInTree, "a more specific wildcard expression path could not be ruled out")
		}
	}
	if isWildcard {
		exactCandidate := append(append([][]byte{certtree.PathPrefixBytes}, requestPathSegs...), []byte(certtree.ExactTerminator))
		res := header.Tree.LookupSubtree(exactCandidate)
		if res.Status != hashtree.StatusAbsent {
			return nil, newErr(ErrExactExpressionPathMightExistInTree, "an exact expression path might exist for this request")
		}
	}

	exprHashPath := append(append([][]byte{}, exprPath...), exprHash)
	exprLookup := header.Tree.LookupSubtree(exprHashPath)
	if exprLookup.Status != hashtree.StatusFound {
		if isExact {
			return nil, newErr(ErrExactExpressionPathMismatch, "expression hash not bound at exact expr_path")
		}
		return nil, newErr(ErrWildcardExpressionPathMismatch, "expression hash not bound at wildcard expr_path")
	}

	if descriptor.Kind == cel.Skip {
		return &VerifiedResponse{Headers: []httpmodel.Header{}, Body: []byte{}}, nil
	}

	responseHash, herr := certhash.ResponseHash(resp, *descriptor.Response, exprHeaderValue, true)
	if herr != nil {
		return nil, wrapErr(ErrInvalidResponseHashes, "computing response hash", herr)
	}

	leafPath := make([][]byte, 0, len(exprHashPath)+2)
	leafPath = append(leafPath, exprHashPath...)
	if descriptor.Kind == cel.Full {
		requestHash := certhash.RequestHash(req, *descriptor.Request)
		leafPath = append(leafPath, requestHash[:], responseHash[:])
	} else {
		leafPath = append(leafPath, []byte{}, responseHash[:])
	}

	leafLookup := header.Tree.LookupPath(leafPath)
	if leafLookup.Status != hashtree.StatusFound {
		return nil, newErr(ErrInvalidResponseHashes, "response/request hash binding not found in witness tree")
	}

	status := resp.StatusCode
	return &VerifiedResponse{
		StatusCode: &status,
		Headers:    certifiedResponseHeaders(resp.Headers, *descriptor.Response),
		Body:       resp.Body,
	}, nil
}

func stringsToBytes(ss []string) [][]byte {
	out := make([][]byte, len(ss))
	for i, s := range ss {
		out[i] = []byte(s)
	}
	return out
}

// splitRequestPath turns a request path into its segments the way
// path_to_segments does: only the single leading "/" is stripped, so a
// trailing "/" yields a trailing empty segment and "/" itself yields a
// single empty segment, rather than being collapsed away. "/foo/" and
// "/foo" are therefore distinct paths, each with their own segment count.
func splitRequestPath(rawURL string) [][]byte {
	path, _ := httpmodel.SplitURL(rawURL)
	trimmed := strings.TrimPrefix(path, "/")
	parts := strings.Split(trimmed, "/")
	out := make([][]byte, len(parts))
	for i, p := range parts {
		if decoded, err := url.PathUnescape(p); err == nil {
			p = decoded
		}
		out[i] = []byte(p)
	}
	return out
}

func pathSegsEqual(a, b [][]byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !bytes.Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// certifiedResponseHeaders returns the headers selected by rc (allow-list or
// deny-list, matched case-insensitively), without IC-Certificate and
// IC-CertificateExpression, with their names lowercased.
func certifiedResponseHeaders(headers []httpmodel.Header, rc cel.ResponseCertification) []httpmodel.Header {
	listed := make(map[string]bool, len(rc.Headers))
	for _, name := range rc.Headers {
		listed[strings.ToLower(name)] = true
	}
	out := []httpmodel.Header{}
	for _, h := range httpmodel.RemoveHeaders(headers, headerCertificate, headerCertificateExpression) {
		name := strings.ToLower(h.Name)
		if listed[name] == (rc.Mode == cel.CertifiedResponseHeaders) {
			out = append(out, httpmodel.Header{Name: name, Value: h.Value})
		}
	}
	return out
}

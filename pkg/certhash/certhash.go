// Package certhash computes the request and response hashes a certified
// response binds into the certification tree, per §4.D. Both hashes are
// representation-independent (pkg/rihash) hashes of a pseudo-header map,
// concatenated with the hash of the body and re-hashed.
package certhash

import (
	"crypto/sha256"
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/certen/response-verification/pkg/cel"
	"github.com/certen/response-verification/pkg/httpmodel"
	"github.com/certen/response-verification/pkg/rihash"
)

// ErrMissingCertificateExpression is returned by ResponseHash when the
// response being hashed carries no IC-CertificateExpression header.
var ErrMissingCertificateExpression = errors.New("certhash: response has no IC-CertificateExpression header")

const (
	certMethodKey = ":ic-cert-method"
	certQueryKey  = ":ic-cert-query"
	certStatusKey = ":ic-cert-status"

	headerCertificate           = "IC-Certificate"
	headerCertificateExpression = "IC-CertificateExpression"
)

func bodyTail(body []byte) [32]byte { return sha256.Sum256(body) }

// RequestHash computes the §4.D request hash for req under the given
// Full-mode request certification configuration. Only called when the
// descriptor is Full.
func RequestHash(req httpmodel.Request, cfg cel.RequestCertification) [32]byte {
	pairs := []rihash.Pair{
		{Key: certMethodKey, Value: rihash.String(strings.ToUpper(req.Method))},
	}

	for _, name := range cfg.Headers {
		for _, v := range httpmodel.HeaderValues(req.Headers, name) {
			pairs = append(pairs, rihash.Pair{Key: strings.ToLower(name), Value: rihash.String(v)})
		}
	}

	pairs = append(pairs, rihash.Pair{Key: certQueryKey, Value: rihash.String(filteredQuery(req.URL, cfg.QueryParameters))})

	metaHash := rihash.Hash(pairs)
	tail := bodyTail(req.Body)

	h := sha256.New()
	h.Write(metaHash[:])
	h.Write(tail[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// filteredQuery retains only the query parameters named in allow, in the
// order they appear in rawURL, rendered as "name=value" joined by "&".
func filteredQuery(rawURL string, allow []string) string {
	_, query := httpmodel.SplitURL(rawURL)
	if query == "" || len(allow) == 0 {
		return ""
	}

	allowed := make(map[string]bool, len(allow))
	for _, a := range allow {
		allowed[strings.ToLower(a)] = true
	}

	var kept []string
	for _, raw := range strings.Split(query, "&") {
		if raw == "" {
			continue
		}
		name := raw
		if i := strings.IndexByte(raw, '='); i >= 0 {
			name = raw[:i]
		}
		decodedName, err := url.QueryUnescape(name)
		if err != nil {
			decodedName = name
		}
		if allowed[strings.ToLower(decodedName)] {
			kept = append(kept, raw)
		}
	}
	return strings.Join(kept, "&")
}

// ResponseHash computes the §4.D response hash for resp under the
// descriptor's response-certification rule. certificateExpression is the
// unhashed CEL expression string served in the IC-CertificateExpression
// header; its absence is an error since the response cannot be bound to
// an expression hash without it.
func ResponseHash(resp httpmodel.Response, rc cel.ResponseCertification, certificateExpression string, hasExpression bool) ([32]byte, error) {
	if !hasExpression {
		return [32]byte{}, ErrMissingCertificateExpression
	}

	filtered := filterResponseHeaders(resp.Headers, rc)
	filtered = httpmodel.RemoveHeaders(filtered, headerCertificate, headerCertificateExpression)

	pairs := make([]rihash.Pair, 0, len(filtered)+2)
	for _, h := range filtered {
		pairs = append(pairs, rihash.Pair{Key: strings.ToLower(h.Name), Value: rihash.String(h.Value)})
	}
	pairs = append(pairs, rihash.Pair{Key: strings.ToLower(headerCertificateExpression), Value: rihash.String(certificateExpression)})
	pairs = append(pairs, rihash.Pair{Key: certStatusKey, Value: rihash.Number(uint64(resp.StatusCode))})

	headersHash := rihash.Hash(pairs)
	tail := bodyTail(resp.Body)

	h := sha256.New()
	h.Write(headersHash[:])
	h.Write(tail[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out, nil
}

func filterResponseHeaders(headers []httpmodel.Header, rc cel.ResponseCertification) []httpmodel.Header {
	switch rc.Mode {
	case cel.CertifiedResponseHeaders:
		allow := toLowerSet(rc.Headers)
		var out []httpmodel.Header
		for _, h := range headers {
			if allow[strings.ToLower(h.Name)] {
				out = append(out, h)
			}
		}
		return out
	case cel.ResponseHeaderExclusions:
		deny := toLowerSet(rc.Headers)
		var out []httpmodel.Header
		for _, h := range headers {
			if !deny[strings.ToLower(h.Name)] {
				out = append(out, h)
			}
		}
		return out
	default:
		return nil
	}
}

func toLowerSet(names []string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[strings.ToLower(n)] = true
	}
	return m
}

// StatusCodeString is a small diagnostic helper for logging.
func StatusCodeString(code uint16) string { return strconv.Itoa(int(code)) }

// Package httpmodel defines the logical HTTP request/response records that
// the hashing (component D) and response-verification (component H) layers
// operate on, independent of any concrete transport.
package httpmodel

import "strings"

// Header is a single (name, value) pair. Names are compared
// case-insensitively; duplicate names are preserved in the order received.
type Header struct {
	Name  string
	Value string
}

// Request is the logical record certification reads a request from.
type Request struct {
	Method  string
	URL     string // path with optional "?query" suffix
	Headers []Header
	Body    []byte
}

// Response is the logical record certification reads a response from.
type Response struct {
	StatusCode uint16
	Headers    []Header
	Body       []byte
	// Upgrade is a transport hint only; it plays no role in verification.
	Upgrade bool
}

// HeaderValues returns every value of headers whose name matches name,
// case-insensitively, in the order they appear.
func HeaderValues(headers []Header, name string) []string {
	var out []string
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			out = append(out, h.Value)
		}
	}
	return out
}

// HeaderValue returns the first value of the header named name,
// case-insensitively, and whether it was present.
func HeaderValue(headers []Header, name string) (string, bool) {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}

// RemoveHeaders returns a copy of headers with every entry whose name
// matches any of names (case-insensitively) removed.
func RemoveHeaders(headers []Header, names ...string) []Header {
	out := make([]Header, 0, len(headers))
	for _, h := range headers {
		drop := false
		for _, n := range names {
			if strings.EqualFold(h.Name, n) {
				drop = true
				break
			}
		}
		if !drop {
			out = append(out, h)
		}
	}
	return out
}

// SplitURL divides a request URL into its path and raw query string (without
// the leading "?"); query is empty if there is none.
func SplitURL(url string) (path, query string) {
	if i := strings.IndexByte(url, '?'); i >= 0 {
		return url[:i], url[i+1:]
	}
	return url, ""
}

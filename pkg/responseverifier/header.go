package responseverifier

import (
	"encoding/base64"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"github.com/certen/response-verification/pkg/certificate"
	"github.com/certen/response-verification/pkg/hashtree"
)

// Logger receives warnings that do not affect control flow: a duplicate
// Ic-Certificate field name being ignored, or an unrecognized field name.
// Verification itself stays pure and synchronous; this is advisory only.
var Logger = log.New(os.Stderr, "[responseverifier] ", log.LstdFlags)

// MinVerificationVersion is the default version assumed when the
// Ic-Certificate header carries no explicit version field.
const MinVerificationVersion = 1

// MaxVerificationVersion is the highest response-verification algorithm
// version this package implements.
const MaxVerificationVersion = 2

// CertificateHeader is the parsed form of the Ic-Certificate response
// header: a certificate, a pruned witness tree, an algorithm version, and
// (v2 only) the expression path the witness was built for.
type CertificateHeader struct {
	Certificate *certificate.Certificate
	Tree        *hashtree.Node
	Version     int
	ExprPath    []string // nil for v1 headers
}

// ParseCertificateHeader parses the comma-separated Ic-Certificate header
// value into a CertificateHeader. Unknown field names are ignored;
// duplicate field names keep the first occurrence.
func ParseCertificateHeader(headerValue string) (*CertificateHeader, *Error) {
	var certBytes, treeBytes, exprPathBytes []byte
	var haveCert, haveTree, haveVersion, haveExprPath bool
	version := MinVerificationVersion

	for _, field := range strings.Split(headerValue, ",") {
		name, value, ok := splitHeaderField(field)
		if !ok {
			continue
		}
		switch name {
		case "certificate":
			if haveCert {
				Logger.Printf("duplicate certificate field ignored")
				continue
			}
			if value == "" {
				continue
			}
			decoded, err := decodeBase64Field(value)
			if err != nil {
				return nil, wrapErr(ErrBase64Decoding, "decoding certificate field", err)
			}
			certBytes = decoded
			haveCert = true
		case "tree":
			if haveTree {
				Logger.Printf("duplicate tree field ignored")
				continue
			}
			if value == "" {
				continue
			}
			decoded, err := decodeBase64Field(value)
			if err != nil {
				return nil, wrapErr(ErrBase64Decoding, "decoding tree field", err)
			}
			treeBytes = decoded
			haveTree = true
		case "version":
			if haveVersion {
				Logger.Printf("duplicate version field ignored")
				continue
			}
			if value == "" {
				continue
			}
			v, err := strconv.Atoi(value)
			if err != nil {
				return nil, wrapErr(ErrParseInt, "parsing version field", err)
			}
			version = v
			haveVersion = true
		case "expr_path":
			if haveExprPath {
				Logger.Printf("duplicate expr_path field ignored")
				continue
			}
			if value == "" {
				continue
			}
			decoded, err := decodeBase64Field(value)
			if err != nil {
				return nil, wrapErr(ErrBase64Decoding, "decoding expr_path field", err)
			}
			exprPathBytes = decoded
			haveExprPath = true
		default:
			Logger.Printf("ignoring unrecognized Ic-Certificate field %q", name)
		}
	}

	if !haveCert {
		return nil, newErr(ErrHeaderMissingCertificate, "Ic-Certificate header has no certificate field")
	}
	if !haveTree {
		return nil, newErr(ErrHeaderMissingTree, "Ic-Certificate header has no tree field")
	}

	cert, err := certificate.Decode(certBytes)
	if err != nil {
		return nil, wrapErr(ErrHeaderMissingCertificate, "decoding certificate CBOR", err)
	}

	var tree hashtree.Node
	if err := cbor.Unmarshal(treeBytes, &tree); err != nil {
		return nil, wrapErr(ErrHeaderMissingTree, "decoding tree CBOR", err)
	}

	result := &CertificateHeader{Certificate: cert, Tree: &tree, Version: version}

	if haveExprPath {
		var path []string
		if err := cbor.Unmarshal(exprPathBytes, &path); err != nil {
			return nil, wrapErr(ErrMalformedExprPath, "decoding expr_path CBOR", err)
		}
		result.ExprPath = path
	}

	return result, nil
}

// splitHeaderField parses one "name=value" field, tolerating surrounding
// whitespace. ok is false if field carries no "=".
func splitHeaderField(field string) (name, value string, ok bool) {
	field = strings.TrimSpace(field)
	i := strings.IndexByte(field, '=')
	if i < 0 {
		return "", "", false
	}
	name = strings.TrimSpace(field[:i])
	value = strings.TrimSpace(field[i+1:])
	value = strings.Trim(value, ":")
	return name, value, true
}

// decodeBase64Field decodes value as standard base64, tolerating both
// padded and unpadded forms.
func decodeBase64Field(value string) ([]byte, error) {
	if decoded, err := base64.StdEncoding.DecodeString(value); err == nil {
		return decoded, nil
	}
	return base64.RawStdEncoding.DecodeString(value)
}

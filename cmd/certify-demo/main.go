// certify-demo wires a toy canister-side producer and a gateway-side
// verifier together over a single in-memory HTTP round trip, exercising
// the full certify -> serve -> verify path end to end.
package main

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"flag"
	"fmt"
	"log"
	"math/big"
	"os/signal"
	"strings"
	"syscall"
	"time"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/certen/response-verification/pkg/blssig"
	"github.com/certen/response-verification/pkg/cel"
	"github.com/certen/response-verification/pkg/certhash"
	"github.com/certen/response-verification/pkg/certtree"
	"github.com/certen/response-verification/pkg/config"
	"github.com/certen/response-verification/pkg/hashtree"
	"github.com/certen/response-verification/pkg/httpmodel"
	"github.com/certen/response-verification/pkg/leb128"
	"github.com/certen/response-verification/pkg/responseverifier"
)

var derPrefix = []byte{
	0x30, 0x81, 0x82, 0x30, 0x1d, 0x06, 0x0d, 0x2b, 0x06, 0x01, 0x04, 0x01, 0x82, 0xdc, 0x7c, 0x05,
	0x03, 0x01, 0x02, 0x01, 0x06, 0x0c, 0x2b, 0x06, 0x01, 0x04, 0x01, 0x82, 0xdc, 0x7c, 0x05, 0x03,
	0x02, 0x01, 0x03, 0x61, 0x00,
}

func main() {
	requestPath := flag.String("path", "/widgets", "request path the demo certifies and then verifies")
	canisterID := flag.String("canister-id", "", "synthetic canister identifier (overrides VERIFIER_CANISTER_ID)")
	flag.Parse()

	cfg, err := config.LoadVerifierConfig()
	if err != nil {
		log.Fatalf("certify-demo: loading verifier config: %v", err)
	}
	if *canisterID != "" {
		cfg.CanisterID = *canisterID
	}
	if cfg.CanisterID == "" {
		cfg.CanisterID = "demo-canister"
	}
	if err := cfg.Validate(); err != nil {
		log.Printf("[certify-demo] proceeding with a self-signed demo key despite config warnings: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *requestPath, cfg); err != nil {
		log.Fatalf("certify-demo: %v", err)
	}
}

func run(ctx context.Context, requestPath string, cfg *config.VerifierConfig) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	correlationID := uuid.New().String()
	log.Printf("[certify-demo] %s: certifying %s", correlationID, requestPath)

	canisterID := []byte(cfg.CanisterID)

	rootSK, rootDER, err := genRootKeypair()
	if err != nil {
		return fmt.Errorf("generating root keypair: %w", err)
	}

	descriptor := cel.Descriptor{
		Kind: cel.ResponseOnly,
		Response: &cel.ResponseCertification{
			Mode:    cel.CertifiedResponseHeaders,
			Headers: []string{"content-type"},
		},
	}
	exprString := cel.Emit(descriptor)
	exprHashArr := sha256.Sum256([]byte(exprString))
	exprHash := exprHashArr[:]

	resp := httpmodel.Response{
		StatusCode: 200,
		Headers:    []httpmodel.Header{{Name: "Content-Type", Value: "application/json"}},
		Body:       []byte(`{"hello":"world"}`),
	}
	responseHash, err := certhash.ResponseHash(resp, *descriptor.Response, exprString, true)
	if err != nil {
		return fmt.Errorf("hashing response: %w", err)
	}

	segments, err := segmentsFor(requestPath)
	if err != nil {
		return fmt.Errorf("splitting request path: %w", err)
	}

	tree := certtree.New(nil)
	tree.Insert(segments, []byte(certtree.ExactTerminator), exprHash, nil, responseHash[:])
	witness := tree.Witness(segments, []byte(certtree.ExactTerminator), exprHash, nil, responseHash[:], segments)

	now := uint64(time.Now().UnixNano())
	rootStateTree := buildRootStateTree(canisterID, tree.RootHash(), now)
	sig, err := signStateRoot(rootSK, rootStateTree)
	if err != nil {
		return fmt.Errorf("signing state root: %w", err)
	}

	certBytes, err := encodeCertificate(rootStateTree, sig)
	if err != nil {
		return fmt.Errorf("encoding certificate: %w", err)
	}
	witnessBytes, err := cbor.Marshal(witness)
	if err != nil {
		return fmt.Errorf("encoding witness: %w", err)
	}
	exprPathBytes, err := cbor.Marshal(append([]string{"http_expr"}, append(stringSegments(segments), certtree.ExactTerminator)...))
	if err != nil {
		return fmt.Errorf("encoding expr_path: %w", err)
	}

	headerValue := fieldEncoded("certificate", certBytes) + "," +
		fieldEncoded("tree", witnessBytes) + "," +
		"version=2," +
		fieldEncoded("expr_path", exprPathBytes)

	resp.Headers = append(resp.Headers,
		httpmodel.Header{Name: "IC-Certificate", Value: headerValue},
		httpmodel.Header{Name: "IC-CertificateExpression", Value: exprString},
	)

	req := httpmodel.Request{Method: "GET", URL: requestPath}
	opts := responseverifier.Options{
		CanisterID:          canisterID,
		RootPublicKey:       rootDER,
		CurrentTimeNs:       now,
		AllowedTimeOffsetNs: uint64(cfg.AllowedTimeOffset.Nanoseconds()),
		MinRequestedVersion: cfg.MinRequestedVersion,
	}

	verified, verr := responseverifier.Verify(req, resp, opts)
	if verr != nil {
		return fmt.Errorf("verification failed: %s", verr.Error())
	}

	log.Printf("[certify-demo] %s: verified response for %s: status=%v body=%s", correlationID, requestPath, *verified.StatusCode, verified.Body)
	return nil
}

// segmentsFor strips only the single leading "/", matching
// pkg/responseverifier's splitRequestPath: "/" yields one empty segment,
// a trailing "/" yields a trailing empty segment.
func segmentsFor(requestPath string) ([][]byte, error) {
	path, _ := httpmodel.SplitURL(requestPath)
	trimmed := strings.TrimPrefix(path, "/")
	parts := strings.Split(trimmed, "/")
	segs := make([][]byte, len(parts))
	for i, p := range parts {
		segs[i] = []byte(p)
	}
	return segs, nil
}

func stringSegments(segs [][]byte) []string {
	out := make([]string, len(segs))
	for i, s := range segs {
		out[i] = string(s)
	}
	return out
}

func buildRootStateTree(canisterID []byte, certifiedData [32]byte, timeNs uint64) *hashtree.Node {
	canisterLeaf := hashtree.Labeled([]byte("canister"),
		hashtree.Labeled(canisterID,
			hashtree.Labeled([]byte("certified_data"), hashtree.Leaf(certifiedData[:]))))
	timeLeaf := hashtree.Labeled([]byte("time"), hashtree.Leaf(leb128.EncodeUnsigned(timeNs)))
	return hashtree.Fork(canisterLeaf, timeLeaf)
}

func genRootKeypair() (fr.Element, []byte, error) {
	var sk fr.Element
	if _, err := sk.SetRandom(); err != nil {
		return sk, nil, err
	}
	_, _, _, g2Gen := bls12381.Generators()
	var skBig big.Int
	sk.BigInt(&skBig)
	var pk bls12381.G2Affine
	pk.ScalarMultiplication(&g2Gen, &skBig)
	raw := pk.Bytes()
	return sk, append(append([]byte{}, derPrefix...), raw[:]...), nil
}

func signStateRoot(sk fr.Element, tree *hashtree.Node) ([]byte, error) {
	rootHash := tree.Digest()
	msg := append([]byte("\x0Dic-state-root"), rootHash[:]...)
	h, err := bls12381.HashToG1(msg, []byte(blssig.DomainSeparationTag))
	if err != nil {
		return nil, err
	}
	var skBig big.Int
	sk.BigInt(&skBig)
	var sigPoint bls12381.G1Affine
	sigPoint.ScalarMultiplication(&h, &skBig)
	sig := sigPoint.Bytes()
	return sig[:], nil
}

func encodeCertificate(tree *hashtree.Node, signature []byte) ([]byte, error) {
	treeBytes, err := cbor.Marshal(tree)
	if err != nil {
		return nil, err
	}
	m := map[string]interface{}{
		"tree":      cbor.RawMessage(treeBytes),
		"signature": signature,
	}
	return cbor.Marshal(m)
}

func fieldEncoded(name string, data []byte) string {
	return fmt.Sprintf("%s=:%s:", name, base64.StdEncoding.EncodeToString(data))
}

package amazonpay

import (
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	signingAlgorithm = "AMZN-PAY-RSASSA-PSS-V2"
	dateFormat       = "20060102T150405Z"

	headerDate           = "x-amz-pay-date"
	headerHost           = "x-amz-pay-host"
	headerRegion         = "x-amz-pay-region"
	headerIdempotencyKey = "x-amz-pay-idempotency-key"

	// pssSaltLength is the salt length Amazon Pay verifies signatures with.
	pssSaltLength = 20
)

// signingMethod is RSASSA-PSS over SHA-256 with a 20 byte salt.
var signingMethod = &jwt.SigningMethodRSAPSS{
	SigningMethodRSA: jwt.SigningMethodPS256.SigningMethodRSA,
	Options:          &rsa.PSSOptions{SaltLength: pssSaltLength},
}

// Signer signs API requests with the merchant's RSA key.
type Signer struct {
	PublicKeyID string
	Region      string // value of x-amz-pay-region

	key *rsa.PrivateKey
	now func() time.Time
}

// NewSigner parses a PEM encoded RSA private key.
func NewSigner(publicKeyID, region string, privateKeyPEM []byte) (*Signer, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM(privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("amazonpay: parse private key: %w", err)
	}
	return &Signer{PublicKeyID: publicKeyID, Region: region, key: key, now: time.Now}, nil
}

// LoadSigner reads the private key from path.
func LoadSigner(publicKeyID, region, path string) (*Signer, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("amazonpay: read private key: %w", err)
	}
	return NewSigner(publicKeyID, region, raw)
}

// Sign sets the x-amz-pay headers on req and adds the Authorization header.
// body must be the exact payload that will be sent.
func (s *Signer) Sign(req *http.Request, body []byte) error {
	req.Header.Set(headerDate, s.now().UTC().Format(dateFormat))
	req.Header.Set(headerHost, req.URL.Host)
	req.Header.Set(headerRegion, s.Region)

	canonical, signed := canonicalRequest(req, body)
	sig, err := signingMethod.Sign(stringToSign(canonical), s.key)
	if err != nil {
		return fmt.Errorf("amazonpay: sign request: %w", err)
	}

	req.Header.Set("Authorization", fmt.Sprintf("%s PublicKeyId=%s, SignedHeaders=%s, Signature=%s",
		signingAlgorithm, s.PublicKeyID, signed, base64.StdEncoding.EncodeToString(sig)))
	return nil
}

func hexSHA256(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func stringToSign(canonical string) string {
	return signingAlgorithm + "\n" + hexSHA256([]byte(canonical))
}

// canonicalRequest builds the canonical form of req and returns it along with
// the semicolon separated list of signed header names.
func canonicalRequest(req *http.Request, body []byte) (string, string) {
	names := []string{"accept", "content-type", headerDate, headerHost, headerRegion}
	if req.Header.Get(headerIdempotencyKey) != "" {
		names = append(names, headerIdempotencyKey)
	}
	sort.Strings(names)

	var headers strings.Builder
	for _, name := range names {
		headers.WriteString(name)
		headers.WriteByte(':')
		headers.WriteString(strings.TrimSpace(req.Header.Get(name)))
		headers.WriteByte('\n')
	}
	signed := strings.Join(names, ";")

	uri := req.URL.EscapedPath()
	if uri == "" {
		uri = "/"
	}

	parts := []string{
		req.Method,
		uri,
		canonicalQuery(req.URL.Query()),
		headers.String(),
		signed,
		hexSHA256(body),
	}
	return strings.Join(parts, "\n"), signed
}

func canonicalQuery(q url.Values) string {
	if len(q) == 0 {
		return ""
	}
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var pairs []string
	for _, k := range keys {
		vals := append([]string(nil), q[k]...)
		sort.Strings(vals)
		for _, v := range vals {
			pairs = append(pairs, url.QueryEscape(k)+"="+url.QueryEscape(v))
		}
	}
	return strings.Join(pairs, "&")
}

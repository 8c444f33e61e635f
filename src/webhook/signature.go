package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
)

var (
	ErrMissingSignature = errors.New("missing webhook signature")
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

const signatureVersion = "v1"

// SignatureVerifier checks an HMAC-SHA256 of the raw request body.
//
// The header may carry several comma separated signatures so the shared
// secret can be rotated. Each one is either prefixed with "v1:" or bare, and
// encoded as base64 or hex.
type SignatureVerifier struct {
	secret []byte
}

func NewSignatureVerifier(secret string) *SignatureVerifier {
	return &SignatureVerifier{secret: []byte(secret)}
}

func (v *SignatureVerifier) mac(payload []byte) []byte {
	h := hmac.New(sha256.New, v.secret)
	h.Write(payload)
	return h.Sum(nil)
}

// Sign produces a header value accepted by Verify.
func (v *SignatureVerifier) Sign(payload []byte) string {
	return signatureVersion + ":" + base64.StdEncoding.EncodeToString(v.mac(payload))
}

func (v *SignatureVerifier) Verify(payload []byte, header string) error {
	if strings.TrimSpace(header) == "" {
		return ErrMissingSignature
	}
	// without a secret nothing can be authenticated
	if len(v.secret) == 0 {
		return ErrInvalidSignature
	}
	expected := v.mac(payload)
	for _, candidate := range strings.Split(header, ",") {
		sig, ok := decodeSignature(candidate)
		if ok && hmac.Equal(sig, expected) {
			return nil
		}
	}
	return ErrInvalidSignature
}

func decodeSignature(value string) ([]byte, bool) {
	value = strings.TrimSpace(value)
	for _, prefix := range []string{signatureVersion + ":", signatureVersion + "="} {
		value = strings.TrimPrefix(value, prefix)
	}
	if value == "" {
		return nil, false
	}
	if len(value) == hex.EncodedLen(sha256.Size) {
		if b, err := hex.DecodeString(value); err == nil {
			return b, true
		}
	}
	if b, err := base64.StdEncoding.DecodeString(value); err == nil {
		return b, true
	}
	if b, err := base64.RawURLEncoding.DecodeString(value); err == nil {
		return b, true
	}
	return nil, false
}

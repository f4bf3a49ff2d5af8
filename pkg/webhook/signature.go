// Package webhook delivers signed event notifications to external consumers.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignatureHeader carries the hex HMAC-SHA256 digest of the raw request body.
const SignatureHeader = "X-Eryxon-Signature"

// Sign computes the hex HMAC-SHA256 digest of body under the given secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches the body under the secret.
// Comparison is constant-time.
func Verify(secret string, body []byte, signature string) bool {
	expected := Sign(secret, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}

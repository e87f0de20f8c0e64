package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"github.com/go-faster/errors"
)

// ErrVerificationFailed is returned for a bad payment signature. It is
// security-sensitive: a failed verification is final for that payment
// attempt and must never create or advance an order.
var ErrVerificationFailed = errors.New("payment verification failed")

// Verifier checks gateway payment signatures. The algorithm is a fixed
// external contract: HMAC-SHA256 over "<gatewayOrderID>|<gatewayPaymentID>"
// with the key secret, hex-encoded.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a Verifier for the given gateway secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify recomputes the expected signature and compares it against the
// supplied one in constant time.
func (v *Verifier) Verify(gatewayOrderID, gatewayPaymentID, signature string) error {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(gatewayOrderID + "|" + gatewayPaymentID))
	expected := hex.EncodeToString(mac.Sum(nil))

	if subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) != 1 {
		return ErrVerificationFailed
	}
	return nil
}

package github

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

const signaturePrefix = "sha256="

// ErrInvalidSignature marks a webhook delivery whose signature header does
// not match the configured secret. Unverified payloads are never accepted.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// VerifySignature checks the X-Hub-Signature-256 header value against the
// HMAC-SHA256 of the raw request body.
func (a *App) VerifySignature(body []byte, signature string) error {
	if a.webhookSecret == "" {
		return errors.New("no webhook secret configured")
	}

	if signature == "" {
		return ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, []byte(a.webhookSecret))
	mac.Write(body)
	expected := signaturePrefix + hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}

	return nil
}

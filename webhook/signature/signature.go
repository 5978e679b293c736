package signature

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	// SignaturePrefix marks the scheme in the X-Webhook-Signature header
	SignaturePrefix = "sha256="

	// SecretBytes is the size of generated signing secrets (256 bits)
	SecretBytes = 32
)

/* The signed content is: {timestamp}.{canonicalPayload}
 * The canonical payload has stable key ordering and no incidental
 * whitespace, so both sides derive the same bytes. The same canonical
 * form is used as the request body, which lets receivers verify over
 * the exact raw bytes they received.
 */

// Canonicalize returns the deterministic serialization of a JSON payload
func Canonicalize(payload json.RawMessage) ([]byte, error) {
	var v any
	if err := json.Unmarshal(payload, &v); err != nil {
		return nil, fmt.Errorf("parsing payload: %w", err)
	}
	// encoding/json sorts map keys and emits no extra whitespace
	canonical, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("serializing payload: %w", err)
	}
	return canonical, nil
}

// Sign computes the lower-case hex HMAC-SHA256 over the canonical
// payload bound to the given unix-seconds timestamp
func Sign(payload json.RawMessage, secret, timestamp string) (string, error) {
	canonical, err := Canonicalize(payload)
	if err != nil {
		return "", fmt.Errorf("canonicalizing payload: %w", err)
	}
	return signRaw(canonical, secret, timestamp), nil
}

// Header returns the full signature header value for a payload
func Header(payload json.RawMessage, secret, timestamp string) (string, error) {
	sig, err := Sign(payload, secret, timestamp)
	if err != nil {
		return "", err
	}
	return SignaturePrefix + sig, nil
}

/* Verify recomputes the expected signature from the exact raw bytes
 * received (not a re-serialized copy) and compares it against the
 * header value using constant-time comparison
 * Returns false on any malformed input; never panics
 */
func Verify(rawPayload []byte, signatureHeader, secret, timestampHeader string) bool {
	if len(rawPayload) == 0 || signatureHeader == "" || secret == "" || timestampHeader == "" {
		return false
	}

	given := strings.TrimPrefix(signatureHeader, SignaturePrefix)
	givenBytes, err := hex.DecodeString(given)
	if err != nil {
		return false
	}

	expected := signRaw(rawPayload, secret, timestampHeader)
	expectedBytes, err := hex.DecodeString(expected)
	if err != nil {
		return false
	}

	return subtle.ConstantTimeCompare(givenBytes, expectedBytes) == 1
}

// GenerateSecret creates a new cryptographically secure signing secret
func GenerateSecret() (string, error) {
	bytes := make([]byte, SecretBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("generating random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

func signRaw(payload []byte, secret, timestamp string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

package signature

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSign(t *testing.T) {
	secret := "test-secret"
	timestamp := "1704110400"
	payload := json.RawMessage(`{"id": 42, "title": "test item"}`)

	t.Run("success - creates lower-case hex signature", func(t *testing.T) {
		sig, err := Sign(payload, secret, timestamp)
		require.NoError(t, err)
		assert.Len(t, sig, 64)
		assert.Regexp(t, "^[0-9a-f]+$", sig)
	})

	t.Run("success - same inputs produce same signature", func(t *testing.T) {
		sig1, err1 := Sign(payload, secret, timestamp)
		sig2, err2 := Sign(payload, secret, timestamp)
		require.NoError(t, err1)
		require.NoError(t, err2)
		assert.Equal(t, sig1, sig2)
	})

	t.Run("success - key order does not change the signature", func(t *testing.T) {
		sig1, err1 := Sign(json.RawMessage(`{"a":1,"b":2}`), secret, timestamp)
		sig2, err2 := Sign(json.RawMessage(`{"b": 2, "a": 1}`), secret, timestamp)
		require.NoError(t, err1)
		require.NoError(t, err2)
		assert.Equal(t, sig1, sig2)
	})

	t.Run("success - different payloads produce different signatures", func(t *testing.T) {
		sig1, err1 := Sign(payload, secret, timestamp)
		sig2, err2 := Sign(json.RawMessage(`{"id":43}`), secret, timestamp)
		require.NoError(t, err1)
		require.NoError(t, err2)
		assert.NotEqual(t, sig1, sig2)
	})

	t.Run("error - malformed payload", func(t *testing.T) {
		_, err := Sign(json.RawMessage(`{not json`), secret, timestamp)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "canonicalizing payload")
	})
}

func TestVerify(t *testing.T) {
	secret := "test-secret"
	timestamp := "1704110400"
	payload := json.RawMessage(`{"id":42,"title":"test item"}`)

	signedBody := func(t *testing.T) ([]byte, string) {
		t.Helper()
		body, err := Canonicalize(payload)
		require.NoError(t, err)
		header, err := Header(payload, secret, timestamp)
		require.NoError(t, err)
		return body, header
	}

	t.Run("success - valid signature with sha256= prefix", func(t *testing.T) {
		body, header := signedBody(t)
		assert.True(t, Verify(body, header, secret, timestamp))
	})

	t.Run("success - valid signature without prefix", func(t *testing.T) {
		body, _ := signedBody(t)
		sig, err := Sign(payload, secret, timestamp)
		require.NoError(t, err)
		assert.True(t, Verify(body, sig, secret, timestamp))
	})

	t.Run("failure - tampered payload", func(t *testing.T) {
		body, header := signedBody(t)
		tampered := append([]byte{}, body...)
		tampered[0] ^= 0x01
		assert.False(t, Verify(tampered, header, secret, timestamp))
	})

	t.Run("failure - wrong secret", func(t *testing.T) {
		body, header := signedBody(t)
		assert.False(t, Verify(body, header, "other-secret", timestamp))
	})

	t.Run("failure - wrong timestamp", func(t *testing.T) {
		body, header := signedBody(t)
		assert.False(t, Verify(body, header, secret, "1704110401"))
	})

	t.Run("failure - empty inputs", func(t *testing.T) {
		body, header := signedBody(t)
		assert.False(t, Verify(nil, header, secret, timestamp))
		assert.False(t, Verify(body, "", secret, timestamp))
		assert.False(t, Verify(body, header, "", timestamp))
		assert.False(t, Verify(body, header, secret, ""))
	})

	t.Run("failure - malformed signature header", func(t *testing.T) {
		body, _ := signedBody(t)
		assert.False(t, Verify(body, "sha256=not-hex!!", secret, timestamp))
		assert.False(t, Verify(body, "garbage", secret, timestamp))
	})
}

func TestCanonicalize(t *testing.T) {
	t.Run("success - stable key ordering, no whitespace", func(t *testing.T) {
		canonical, err := Canonicalize(json.RawMessage(`{ "b": 2, "a": { "d": 4, "c": 3 } }`))
		require.NoError(t, err)
		assert.Equal(t, `{"a":{"c":3,"d":4},"b":2}`, string(canonical))
	})

	t.Run("error - invalid JSON", func(t *testing.T) {
		_, err := Canonicalize(json.RawMessage(`[1,`))
		require.Error(t, err)
	})
}

func TestGenerateSecret(t *testing.T) {
	t.Run("success - generates non-empty secret", func(t *testing.T) {
		secret, err := GenerateSecret()
		require.NoError(t, err)
		assert.NotEmpty(t, secret)
	})

	t.Run("randomness - generates different secrets", func(t *testing.T) {
		secret1, err1 := GenerateSecret()
		secret2, err2 := GenerateSecret()
		require.NoError(t, err1)
		require.NoError(t, err2)
		assert.NotEqual(t, secret1, secret2)
	})
}

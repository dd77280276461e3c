package crypto

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndVerify(t *testing.T) {
	keyDir := filepath.Join(t.TempDir(), "keys")
	signer, err := NewSigner(keyDir, "test-key")
	require.NoError(t, err)

	payload := []byte(`{"id":"dec-1"}`)
	sig := signer.Sign(payload)
	assert.Equal(t, Algorithm, sig.Alg)
	assert.Equal(t, "test-key", sig.KeyID)
	assert.NotEmpty(t, sig.PayloadSHA256)
	require.NoError(t, Verify(keyDir, payload, sig))

	assert.Error(t, Verify(keyDir, []byte(`{"id":"dec-2"}`), sig), "digest mismatch")

	sig.PayloadSHA256 = ""
	assert.Error(t, Verify(keyDir, []byte(`{"id":"dec-2"}`), sig), "signature over another payload")

	if runtime.GOOS != "windows" {
		info, err := os.Stat(filepath.Join(keyDir, "test-key.key"))
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	}
}

func TestNewSignerReusesKey(t *testing.T) {
	keyDir := t.TempDir()
	first, err := NewSigner(keyDir, "k")
	require.NoError(t, err)
	second, err := NewSigner(keyDir, "k")
	require.NoError(t, err)
	assert.True(t, first.PublicKey.Equal(second.PublicKey), "stored key is reused")

	_, err = NewSigner(keyDir, "")
	assert.Error(t, err)
}

func TestVerifyRejectsMalformedSignatures(t *testing.T) {
	keyDir := t.TempDir()
	signer, err := NewSigner(keyDir, "k")
	require.NoError(t, err)
	payload := []byte("x")

	cases := map[string]Signature{
		"alg":     {Alg: "rsa", KeyID: "k", Sig: "AA=="},
		"key":     {Alg: Algorithm, Sig: "AA=="},
		"sig":     {Alg: Algorithm, KeyID: "k"},
		"base64":  {Alg: Algorithm, KeyID: "k", Sig: "%%%"},
		"unknown": {Alg: Algorithm, KeyID: "other", Sig: signer.Sign(payload).Sig},
	}
	for name, sig := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, Verify(keyDir, payload, sig))
		})
	}
}

// Package crypto signs and verifies evidence bundles with ed25519 keys kept
// in a local key directory.
package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

// Algorithm is the only supported signature algorithm.
const Algorithm = "ed25519"

// Signature is a detached signature over a payload.
type Signature struct {
	Alg           string `json:"alg"`
	KeyID         string `json:"pubkey_id"`
	PayloadSHA256 string `json:"payload_sha256"`
	Sig           string `json:"sig"`
}

// Validate checks that all fields are present.
func (s Signature) Validate() error {
	if s.Alg != Algorithm {
		return fmt.Errorf("unsupported signature algorithm %q", s.Alg)
	}
	if s.KeyID == "" {
		return fmt.Errorf("pubkey_id required")
	}
	if s.Sig == "" {
		return fmt.Errorf("sig required")
	}
	return nil
}

// Signer handles signing of evidence.
type Signer struct {
	PrivateKey ed25519.PrivateKey
	PublicKey  ed25519.PublicKey
	KeyID      string
}

// NewSigner loads keyDir/keyID.key, generating the key on first use.
func NewSigner(keyDir, keyID string) (*Signer, error) {
	if keyID == "" {
		return nil, fmt.Errorf("key ID is required")
	}
	if err := os.MkdirAll(keyDir, 0700); err != nil {
		return nil, err
	}

	keyPath := filepath.Join(keyDir, keyID+".key")

	var privateKey ed25519.PrivateKey

	data, err := os.ReadFile(keyPath)
	if err == nil {
		if len(data) != ed25519.PrivateKeySize {
			return nil, fmt.Errorf("invalid private key size in %s", keyPath)
		}
		privateKey = ed25519.PrivateKey(data)
	} else {
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, err
		}
		privateKey = priv
		if err := os.WriteFile(keyPath, []byte(privateKey), 0600); err != nil {
			return nil, err
		}
	}

	return &Signer{
		PrivateKey: privateKey,
		PublicKey:  privateKey.Public().(ed25519.PublicKey),
		KeyID:      keyID,
	}, nil
}

// Sign returns a detached signature over payload.
func (s *Signer) Sign(payload []byte) Signature {
	sum := sha256.Sum256(payload)
	return Signature{
		Alg:           Algorithm,
		KeyID:         s.KeyID,
		PayloadSHA256: hex.EncodeToString(sum[:]),
		Sig:           base64.StdEncoding.EncodeToString(ed25519.Sign(s.PrivateKey, payload)),
	}
}

// Verify checks sig against payload using the key named by sig in keyDir.
func Verify(keyDir string, payload []byte, sig Signature) error {
	if err := sig.Validate(); err != nil {
		return err
	}

	sum := sha256.Sum256(payload)
	if sig.PayloadSHA256 != "" && sig.PayloadSHA256 != hex.EncodeToString(sum[:]) {
		return fmt.Errorf("payload digest mismatch")
	}

	sigBytes, err := base64.StdEncoding.DecodeString(sig.Sig)
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}

	pubKey, err := loadPublicKey(keyDir, sig.KeyID)
	if err != nil {
		return err
	}

	if !ed25519.Verify(pubKey, payload, sigBytes) {
		return fmt.Errorf("invalid signature")
	}
	return nil
}

func loadPublicKey(keyDir, keyID string) (ed25519.PublicKey, error) {
	keyPath := filepath.Join(keyDir, keyID+".key")
	data, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, err
	}
	priv := ed25519.PrivateKey(data)
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid private key size")
	}
	return priv.Public().(ed25519.PublicKey), nil
}

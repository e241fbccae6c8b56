// Package keymaterial produces and validates the evidence signing key pairs
// distributed to repositories and published to the platform trusted-key store.
package keymaterial

import (
	"bytes"
	"context"
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

// Algorithm is the asymmetric key family for a generated pair.
type Algorithm string

const (
	AlgorithmRSA     Algorithm = "rsa"
	AlgorithmEC      Algorithm = "ec"
	AlgorithmED25519 Algorithm = "ed25519"
)

// ParseAlgorithm validates an operator-supplied algorithm name.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(s) {
	case AlgorithmRSA, AlgorithmEC, AlgorithmED25519:
		return Algorithm(s), nil
	default:
		return "", fmt.Errorf("unsupported key algorithm %q (expected rsa, ec or ed25519)", s)
	}
}

// Pair is a PEM-encoded key pair plus the alias it will be published under.
type Pair struct {
	Alias      string
	PrivatePEM []byte
	PublicPEM  []byte
}

// PublicKeyString returns the public half as the string the trusted-key API
// expects.
func (p *Pair) PublicKeyString() string {
	return string(p.PublicPEM)
}

// Source produces a validated key pair for an algorithm and alias.
type Source interface {
	Generate(ctx context.Context, alg Algorithm, alias string) (*Pair, error)
}

// Load reads an existing key pair from PEM files on disk and validates it.
func Load(privatePath, publicPath, alias string) (*Pair, error) {
	priv, err := os.ReadFile(privatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key: %w", err)
	}
	pub, err := os.ReadFile(publicPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read public key: %w", err)
	}
	pair := &Pair{Alias: alias, PrivatePEM: priv, PublicPEM: pub}
	if err := Validate(pair); err != nil {
		return nil, err
	}
	return pair, nil
}

// Validate derives the public key from the private half and requires it to
// match the supplied public key byte for byte. A mismatched pair would
// silently break every downstream signature verification, so this is a hard
// gate, never a warning.
func Validate(pair *Pair) error {
	signer, err := parsePrivateKey(pair.PrivatePEM)
	if err != nil {
		return fmt.Errorf("invalid private key: %w", err)
	}
	derived, err := x509.MarshalPKIXPublicKey(signer.Public())
	if err != nil {
		return fmt.Errorf("failed to derive public key: %w", err)
	}
	supplied, err := parsePublicKeyDER(pair.PublicPEM)
	if err != nil {
		return fmt.Errorf("invalid public key: %w", err)
	}
	if !bytes.Equal(derived, supplied) {
		return errors.New("public key does not match the private key")
	}
	return nil
}

func parsePrivateKey(pemBytes []byte) (crypto.Signer, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("no PEM data found")
	}
	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		signer, ok := key.(crypto.Signer)
		if !ok {
			return nil, errors.New("private key does not support signing")
		}
		return signer, nil
	}
	if key, err := x509.ParseECPrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	return nil, errors.New("unrecognized private key encoding")
}

// parsePublicKeyDER decodes a PEM public key and re-marshals it so the
// comparison in Validate is over canonical DER rather than PEM formatting.
func parsePublicKeyDER(pemBytes []byte) ([]byte, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("no PEM data found")
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	return x509.MarshalPKIXPublicKey(key)
}

func encodePrivatePEM(der []byte) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
}

func encodePublicPEM(der []byte) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
}

package keymaterial

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"fmt"
	"strings"

	"github.com/tyler-smith/go-bip39"
)

// LocalSource generates key pairs with the standard library crypto
// primitives. It backs the external generator as a fallback and is the only
// source capable of deterministic ed25519 generation from a recovery phrase.
type LocalSource struct{}

// Generate produces a fresh pair for the requested family.
func (LocalSource) Generate(ctx context.Context, alg Algorithm, alias string) (*Pair, error) {
	var signer crypto.Signer
	var err error
	switch alg {
	case AlgorithmRSA:
		signer, err = rsa.GenerateKey(rand.Reader, 2048)
	case AlgorithmEC:
		signer, err = ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	case AlgorithmED25519:
		_, signer, err = ed25519.GenerateKey(rand.Reader)
	default:
		return nil, fmt.Errorf("unsupported key algorithm %q", alg)
	}
	if err != nil {
		return nil, fmt.Errorf("key generation failed: %w", err)
	}
	return pairFromSigner(signer, alias)
}

// NewMnemonic creates a 24-word BIP39 recovery phrase whose entropy seeds a
// deterministic ed25519 key pair.
func NewMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return "", fmt.Errorf("failed to generate entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("failed to generate mnemonic: %w", err)
	}
	return mnemonic, nil
}

// FromMnemonic rebuilds the ed25519 pair a given recovery phrase encodes.
// The same phrase always yields the same pair.
func FromMnemonic(mnemonic, alias string) (*Pair, error) {
	mnemonic = strings.Join(strings.Fields(strings.TrimSpace(mnemonic)), " ")
	if len(strings.Fields(mnemonic)) != 24 {
		return nil, fmt.Errorf("invalid recovery phrase: must be exactly 24 words")
	}
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, fmt.Errorf("invalid recovery phrase")
	}
	entropy, err := bip39.MnemonicToByteArray(mnemonic, true)
	if err != nil {
		return nil, fmt.Errorf("failed to convert mnemonic to entropy: %w", err)
	}
	if len(entropy) != ed25519.SeedSize {
		return nil, fmt.Errorf("unexpected entropy length: got %d, want %d", len(entropy), ed25519.SeedSize)
	}
	return pairFromSigner(ed25519.NewKeyFromSeed(entropy), alias)
}

func pairFromSigner(signer crypto.Signer, alias string) (*Pair, error) {
	privDER, err := x509.MarshalPKCS8PrivateKey(signer)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(signer.Public())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal public key: %w", err)
	}
	return &Pair{
		Alias:      alias,
		PrivatePEM: encodePrivatePEM(privDER),
		PublicPEM:  encodePublicPEM(pubDER),
	}, nil
}

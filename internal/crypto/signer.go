package crypto

import (
	"crypto/ecdsa"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Signer signs transaction payloads for one ledger account. The signing key
// is derived deterministically from the account seed; the account address is
// supplied by the credential source (faucet or wallet store) and is never
// re-derived here.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    string
	publicKey  string // compressed secp256k1 public key, hex
}

// NewSigner creates a Signer for address from its seed.
func NewSigner(seed, address string) (*Signer, error) {
	if seed == "" {
		return nil, errors.New("crypto/signer: seed must not be empty")
	}
	if address == "" {
		return nil, errors.New("crypto/signer: address must not be empty")
	}

	// First half of SHA-512 over the seed bytes becomes the secp256k1 scalar.
	digest := sha512.Sum512([]byte(seed))
	pk, err := ethcrypto.ToECDSA(digest[:32])
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: deriving key: %w", err)
	}

	pub := ethcrypto.CompressPubkey(&pk.PublicKey)

	return &Signer{
		privateKey: pk,
		address:    address,
		publicKey:  strings.ToUpper(hex.EncodeToString(pub)),
	}, nil
}

// Address returns the account address this signer signs for.
func (s *Signer) Address() string {
	return s.address
}

// PublicKey returns the hex-encoded compressed public key, suitable for the
// transaction's SigningPubKey field.
func (s *Signer) PublicKey() string {
	return s.publicKey
}

// Sign signs a transaction payload and returns the hex-encoded signature.
// The digest is the first half of SHA-512 over the payload bytes.
func (s *Signer) Sign(payload []byte) (string, error) {
	sum := sha512.Sum512(payload)
	sig, err := ethcrypto.Sign(sum[:32], s.privateKey)
	if err != nil {
		return "", fmt.Errorf("crypto/signer: signing: %w", err)
	}

	// Drop the recovery byte; verification uses the attached public key.
	return strings.ToUpper(hex.EncodeToString(sig[:64])), nil
}

// Verify checks a signature produced by Sign against a compressed public key.
func Verify(publicKeyHex string, payload []byte, signatureHex string) (bool, error) {
	pub, err := hex.DecodeString(strings.ToLower(publicKeyHex))
	if err != nil {
		return false, fmt.Errorf("crypto/signer: decoding public key: %w", err)
	}
	sig, err := hex.DecodeString(strings.ToLower(signatureHex))
	if err != nil {
		return false, fmt.Errorf("crypto/signer: decoding signature: %w", err)
	}
	if len(sig) != 64 {
		return false, fmt.Errorf("crypto/signer: expected 64-byte signature, got %d", len(sig))
	}

	sum := sha512.Sum512(payload)
	return ethcrypto.VerifySignature(pub, sum[:32], sig), nil
}

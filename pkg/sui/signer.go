package sui

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Ed25519 is the Sui signature scheme flag for ed25519 keys.
const Ed25519 byte = 0x00

// transactionIntent prefixes transaction bytes before hashing:
// scope TransactionData, version V0, app id Sui.
var transactionIntent = []byte{0, 0, 0}

// ErrNoSigner is returned by SubmitTransaction when the client has no signer.
var ErrNoSigner = errors.New("no signer configured")

// Signer produces serialized Sui signatures over transaction bytes.
type Signer interface {
	Address() string
	SignTransaction(txBytes []byte) (string, error)
}

// KeypairSigner signs with an in-process ed25519 key.
type KeypairSigner struct {
	key     ed25519.PrivateKey
	address string
}

// NewKeypairSigner wraps an ed25519 private key.
func NewKeypairSigner(key ed25519.PrivateKey) *KeypairSigner {
	pub := key.Public().(ed25519.PublicKey)
	return &KeypairSigner{key: key, address: AddressFromPublicKey(pub)}
}

// ParsePrivateKey decodes a 32 byte ed25519 seed given as 0x hex, base64, or
// base64 of the flag byte followed by the seed (the keystore format).
func ParsePrivateKey(s string) (*KeypairSigner, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("empty private key")
	}

	var raw []byte
	var err error
	if strings.HasPrefix(s, "0x") {
		raw, err = hex.DecodeString(s[2:])
	} else {
		raw, err = base64.StdEncoding.DecodeString(s)
	}
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}

	switch {
	case len(raw) == ed25519.SeedSize+1 && raw[0] == Ed25519:
		raw = raw[1:]
	case len(raw) == ed25519.SeedSize+1:
		return nil, fmt.Errorf("unsupported signature scheme flag 0x%02x", raw[0])
	case len(raw) != ed25519.SeedSize:
		return nil, fmt.Errorf("private key must be %d bytes, got %d", ed25519.SeedSize, len(raw))
	}
	return NewKeypairSigner(ed25519.NewKeyFromSeed(raw)), nil
}

// Address returns the Sui address of the key.
func (s *KeypairSigner) Address() string { return s.address }

// SignTransaction signs the intent digest of txBytes and returns
// base64(flag || signature || public key).
func (s *KeypairSigner) SignTransaction(txBytes []byte) (string, error) {
	digest := blake2b.Sum256(append(append([]byte{}, transactionIntent...), txBytes...))
	sig := ed25519.Sign(s.key, digest[:])

	pub := s.key.Public().(ed25519.PublicKey)
	out := make([]byte, 0, 1+len(sig)+len(pub))
	out = append(out, Ed25519)
	out = append(out, sig...)
	out = append(out, pub...)
	return base64.StdEncoding.EncodeToString(out), nil
}

// AddressFromPublicKey derives the 0x prefixed address of an ed25519 key.
func AddressFromPublicKey(pub ed25519.PublicKey) string {
	h := blake2b.Sum256(append([]byte{Ed25519}, pub...))
	return "0x" + hex.EncodeToString(h[:])
}

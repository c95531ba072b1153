package crypto

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"filippo.io/edwards25519"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mr-tron/base58"
)

// Scheme is the discriminant carried in the first byte of an encoded public
// key. It selects the signature algorithm used to verify permits.
type Scheme byte

const (
	SchemeEd25519   Scheme = 0x01
	SchemeSecp256k1 Scheme = 0x02
)

const (
	ed25519KeyLength   = ed25519.PublicKeySize
	secp256k1KeyLength = 33
)

var (
	ErrUnknownScheme    = errors.New("crypto: unknown signature scheme")
	ErrInvalidPublicKey = errors.New("crypto: invalid public key")
)

func (s Scheme) String() string {
	switch s {
	case SchemeEd25519:
		return "ed25519"
	case SchemeSecp256k1:
		return "secp256k1"
	default:
		return fmt.Sprintf("scheme(%d)", byte(s))
	}
}

// ParseScheme resolves a scheme from its textual name.
func ParseScheme(name string) (Scheme, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "ed25519":
		return SchemeEd25519, nil
	case "secp256k1":
		return SchemeSecp256k1, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownScheme, name)
	}
}

// PublicKey is a scheme-tagged verification key.
type PublicKey interface {
	Scheme() Scheme
	// Raw returns the key bytes without the scheme tag.
	Raw() []byte
	// Bytes returns the tagged encoding: one scheme byte followed by Raw.
	Bytes() []byte
	Address() Address
	String() string
	// Verify reports whether signature is valid for message under this key.
	Verify(message, signature []byte) bool
}

// PrivateKey signs permit messages for one scheme.
type PrivateKey interface {
	Scheme() Scheme
	PublicKey() PublicKey
	Sign(message []byte) ([]byte, error)
	// Bytes returns the secret material (Ed25519 seed or secp256k1 scalar).
	Bytes() []byte
}

// --- Public keys ---

// Ed25519PublicKey is a validated Ed25519 point.
type Ed25519PublicKey struct {
	key ed25519.PublicKey
}

// NewEd25519PublicKey validates raw as a canonical, non small-order Ed25519
// point.
func NewEd25519PublicKey(raw []byte) (*Ed25519PublicKey, error) {
	if len(raw) != ed25519KeyLength {
		return nil, fmt.Errorf("%w: ed25519 key must be %d bytes", ErrInvalidPublicKey, ed25519KeyLength)
	}
	point, err := new(edwards25519.Point).SetBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	if new(edwards25519.Point).MultByCofactor(point).Equal(edwards25519.NewIdentityPoint()) == 1 {
		return nil, fmt.Errorf("%w: ed25519 key has small order", ErrInvalidPublicKey)
	}
	return &Ed25519PublicKey{key: append(ed25519.PublicKey(nil), raw...)}, nil
}

func (k *Ed25519PublicKey) Scheme() Scheme { return SchemeEd25519 }

func (k *Ed25519PublicKey) Raw() []byte {
	if k == nil {
		return nil
	}
	return append([]byte(nil), k.key...)
}

func (k *Ed25519PublicKey) Bytes() []byte {
	if k == nil {
		return nil
	}
	return tagged(SchemeEd25519, k.key)
}

// Address returns the account hash of the key, or ZeroAddress for a nil key.
func (k *Ed25519PublicKey) Address() Address {
	if k == nil {
		return ZeroAddress
	}
	return AccountHash(SchemeEd25519, k.key)
}

func (k *Ed25519PublicKey) String() string { return hex.EncodeToString(k.Bytes()) }

// Verify checks an Ed25519 signature over the raw message.
func (k *Ed25519PublicKey) Verify(message, signature []byte) bool {
	if k == nil {
		return false
	}
	sig, ok := normalizeSignature(SchemeEd25519, signature)
	if !ok {
		return false
	}
	return ed25519.Verify(k.key, message, sig)
}

// Secp256k1PublicKey is a secp256k1 point stored in compressed form.
type Secp256k1PublicKey struct {
	compressed []byte
}

// NewSecp256k1PublicKey accepts a 33-byte compressed or 65-byte uncompressed
// secp256k1 point.
func NewSecp256k1PublicKey(raw []byte) (*Secp256k1PublicKey, error) {
	var (
		pub *ecdsa.PublicKey
		err error
	)
	switch len(raw) {
	case secp256k1KeyLength:
		pub, err = crypto.DecompressPubkey(raw)
	case 65:
		pub, err = crypto.UnmarshalPubkey(raw)
	default:
		return nil, fmt.Errorf("%w: secp256k1 key must be 33 or 65 bytes", ErrInvalidPublicKey)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	return &Secp256k1PublicKey{compressed: crypto.CompressPubkey(pub)}, nil
}

func (k *Secp256k1PublicKey) Scheme() Scheme { return SchemeSecp256k1 }

func (k *Secp256k1PublicKey) Raw() []byte {
	if k == nil {
		return nil
	}
	return append([]byte(nil), k.compressed...)
}

func (k *Secp256k1PublicKey) Bytes() []byte {
	if k == nil {
		return nil
	}
	return tagged(SchemeSecp256k1, k.compressed)
}

// Address returns the account hash of the key, or ZeroAddress for a nil key.
func (k *Secp256k1PublicKey) Address() Address {
	if k == nil {
		return ZeroAddress
	}
	return AccountHash(SchemeSecp256k1, k.compressed)
}

func (k *Secp256k1PublicKey) String() string { return hex.EncodeToString(k.Bytes()) }

// Verify checks a 64-byte [R || S] signature over SHA-256(message). High-S
// signatures are rejected.
func (k *Secp256k1PublicKey) Verify(message, signature []byte) bool {
	if k == nil {
		return false
	}
	sig, ok := normalizeSignature(SchemeSecp256k1, signature)
	if !ok {
		return false
	}
	digest := sha256.Sum256(message)
	return crypto.VerifySignature(k.compressed, digest[:], sig)
}

func tagged(scheme Scheme, raw []byte) []byte {
	out := make([]byte, 0, 1+len(raw))
	out = append(out, byte(scheme))
	return append(out, raw...)
}

// PublicKeyFromBytes decodes a tagged public key.
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	if len(b) < 2 {
		return nil, fmt.Errorf("%w: encoding too short", ErrInvalidPublicKey)
	}
	switch Scheme(b[0]) {
	case SchemeEd25519:
		return NewEd25519PublicKey(b[1:])
	case SchemeSecp256k1:
		return NewSecp256k1PublicKey(b[1:])
	default:
		return nil, fmt.Errorf("%w: tag 0x%02x", ErrUnknownScheme, b[0])
	}
}

// ParsePublicKey decodes the hex form of a tagged key (optionally 0x
// prefixed). Untagged base58 strings are accepted as Ed25519 keys.
func ParsePublicKey(s string) (PublicKey, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidPublicKey)
	}
	hexStr := strings.TrimPrefix(strings.TrimPrefix(trimmed, "0x"), "0X")
	if raw, err := hex.DecodeString(hexStr); err == nil {
		return PublicKeyFromBytes(raw)
	}
	raw, err := base58.Decode(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: not hex or base58", ErrInvalidPublicKey)
	}
	return NewEd25519PublicKey(raw)
}

// --- Private keys ---

type Ed25519PrivateKey struct {
	key ed25519.PrivateKey
}

func (k *Ed25519PrivateKey) Scheme() Scheme { return SchemeEd25519 }
func (k *Ed25519PrivateKey) Bytes() []byte  { return append([]byte(nil), k.key.Seed()...) }

func (k *Ed25519PrivateKey) PublicKey() PublicKey {
	pub := k.key.Public().(ed25519.PublicKey)
	return &Ed25519PublicKey{key: append(ed25519.PublicKey(nil), pub...)}
}

func (k *Ed25519PrivateKey) Sign(message []byte) ([]byte, error) {
	return ed25519.Sign(k.key, message), nil
}

type Secp256k1PrivateKey struct {
	*ecdsa.PrivateKey
}

func (k *Secp256k1PrivateKey) Scheme() Scheme { return SchemeSecp256k1 }
func (k *Secp256k1PrivateKey) Bytes() []byte  { return crypto.FromECDSA(k.PrivateKey) }

func (k *Secp256k1PrivateKey) PublicKey() PublicKey {
	return &Secp256k1PublicKey{compressed: crypto.CompressPubkey(&k.PrivateKey.PublicKey)}
}

// Sign returns a 64-byte low-S [R || S] signature over SHA-256(message).
func (k *Secp256k1PrivateKey) Sign(message []byte) ([]byte, error) {
	digest := sha256.Sum256(message)
	sig, err := crypto.Sign(digest[:], k.PrivateKey)
	if err != nil {
		return nil, err
	}
	return sig[:64], nil
}

// GeneratePrivateKey creates a fresh key for the requested scheme.
func GeneratePrivateKey(scheme Scheme) (PrivateKey, error) {
	switch scheme {
	case SchemeEd25519:
		_, key, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, err
		}
		return &Ed25519PrivateKey{key: key}, nil
	case SchemeSecp256k1:
		key, err := crypto.GenerateKey()
		if err != nil {
			return nil, err
		}
		return &Secp256k1PrivateKey{key}, nil
	default:
		return nil, ErrUnknownScheme
	}
}

// PrivateKeyFromBytes restores a key from its secret material.
func PrivateKeyFromBytes(scheme Scheme, b []byte) (PrivateKey, error) {
	switch scheme {
	case SchemeEd25519:
		if len(b) != ed25519.SeedSize {
			return nil, fmt.Errorf("crypto: ed25519 seed must be %d bytes", ed25519.SeedSize)
		}
		return &Ed25519PrivateKey{key: ed25519.NewKeyFromSeed(b)}, nil
	case SchemeSecp256k1:
		key, err := crypto.ToECDSA(b)
		if err != nil {
			return nil, err
		}
		return &Secp256k1PrivateKey{key}, nil
	default:
		return nil, ErrUnknownScheme
	}
}

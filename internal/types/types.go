// Package types defines the core key and hash types shared by the runtime,
// the native programs and the CLI.
//
// Keys and signatures follow Solana conventions and use base58 as their text
// form, so addresses printed by this node can be pasted into X1 tooling.
package types

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
	"github.com/zeebo/blake3"
)

// Size constants for core types.
const (
	PubkeySize    = 32
	SignatureSize = 64
	HashSize      = 32
)

var (
	// ErrInvalidPubkey is returned when a pubkey has invalid length.
	ErrInvalidPubkey = errors.New("invalid pubkey: must be 32 bytes")

	// ErrInvalidSignature is returned when a signature has invalid length.
	ErrInvalidSignature = errors.New("invalid signature: must be 64 bytes")

	// ErrInvalidHash is returned when a hash has invalid length.
	ErrInvalidHash = errors.New("invalid hash: must be 32 bytes")
)

// Pubkey represents a 32-byte Ed25519 public key or a program derived address.
type Pubkey [PubkeySize]byte

// PubkeyFromBase58 parses a base58-encoded public key.
func PubkeyFromBase58(s string) (Pubkey, error) {
	var p Pubkey
	data, err := base58.Decode(s)
	if err != nil {
		return p, fmt.Errorf("base58 decode: %w", err)
	}
	if len(data) != PubkeySize {
		return p, ErrInvalidPubkey
	}
	copy(p[:], data)
	return p, nil
}

// PubkeyFromBytes creates a Pubkey from a byte slice.
func PubkeyFromBytes(b []byte) (Pubkey, error) {
	var p Pubkey
	if len(b) != PubkeySize {
		return p, ErrInvalidPubkey
	}
	copy(p[:], b)
	return p, nil
}

// PubkeyFromPrivateKey returns the public half of an ed25519 key.
func PubkeyFromPrivateKey(key ed25519.PrivateKey) Pubkey {
	var p Pubkey
	copy(p[:], key.Public().(ed25519.PublicKey))
	return p
}

// String returns the base58-encoded representation.
func (p Pubkey) String() string {
	return base58.Encode(p[:])
}

// IsZero returns true if the pubkey is all zeros.
func (p Pubkey) IsZero() bool {
	return p == Pubkey{}
}

// Bytes returns the pubkey as a byte slice.
func (p Pubkey) Bytes() []byte {
	return p[:]
}

// MarshalText implements encoding.TextMarshaler.
func (p Pubkey) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Pubkey) UnmarshalText(text []byte) error {
	parsed, err := PubkeyFromBase58(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Signature represents a 64-byte Ed25519 signature.
type Signature [SignatureSize]byte

// SignatureFromBase58 parses a base58-encoded signature.
func SignatureFromBase58(s string) (Signature, error) {
	var sig Signature
	data, err := base58.Decode(s)
	if err != nil {
		return sig, fmt.Errorf("base58 decode: %w", err)
	}
	if len(data) != SignatureSize {
		return sig, ErrInvalidSignature
	}
	copy(sig[:], data)
	return sig, nil
}

// SignatureFromBytes creates a Signature from a byte slice.
func SignatureFromBytes(b []byte) (Signature, error) {
	var sig Signature
	if len(b) != SignatureSize {
		return sig, ErrInvalidSignature
	}
	copy(sig[:], b)
	return sig, nil
}

// String returns the base58-encoded representation.
func (s Signature) String() string {
	return base58.Encode(s[:])
}

// IsZero returns true if the signature is all zeros.
func (s Signature) IsZero() bool {
	return s == Signature{}
}

// Verify verifies this signature against a message and public key.
func (s Signature) Verify(pubkey Pubkey, message []byte) bool {
	return ed25519.Verify(pubkey[:], message, s[:])
}

// Bytes returns the signature as a byte slice.
func (s Signature) Bytes() []byte {
	return s[:]
}

// Hash represents a 32-byte digest.
type Hash [HashSize]byte

// HashFromBase58 parses a base58-encoded hash.
func HashFromBase58(s string) (Hash, error) {
	var h Hash
	data, err := base58.Decode(s)
	if err != nil {
		return h, fmt.Errorf("base58 decode: %w", err)
	}
	if len(data) != HashSize {
		return h, ErrInvalidHash
	}
	copy(h[:], data)
	return h, nil
}

// ComputeHash computes the blake3 digest of data.
func ComputeHash(data []byte) Hash {
	return blake3.Sum256(data)
}

// String returns the base58-encoded representation.
func (h Hash) String() string {
	return base58.Encode(h[:])
}

// IsZero returns true if the hash is all zeros.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

package syscall_test

import (
	"crypto/ed25519"
)

// testKey returns a deterministic keypair for index i.
func testKey(i byte) ed25519.PrivateKey {
	seed := make([]byte, ed25519.SeedSize)
	seed[0] = i
	return ed25519.NewKeyFromSeed(seed)
}

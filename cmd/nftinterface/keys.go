package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mr-tron/base58"

	"github.com/fortiblox/X1-Interface/internal/types"
)

var errInvalidKeyFile = errors.New("invalid key file")

// Key files hold the base58 encoding of the 64 byte ed25519 private key.

func writeKeyFile(path string, key ed25519.PrivateKey) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return err
		}
	}
	return os.WriteFile(path, []byte(base58.Encode(key)+"\n"), 0600)
}

func readKeyFile(path string) (ed25519.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	decoded, err := base58.Decode(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", errInvalidKeyFile, path, err)
	}
	if len(decoded) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w %s: %d bytes", errInvalidKeyFile, path, len(decoded))
	}
	return ed25519.PrivateKey(decoded), nil
}

func generateKey() (ed25519.PrivateKey, error) {
	_, key, err := ed25519.GenerateKey(rand.Reader)
	return key, err
}

// parsePubkey accepts either a base58 address or the path of a key file.
func parsePubkey(s string) (types.Pubkey, error) {
	if pubkey, err := types.PubkeyFromBase58(s); err == nil {
		return pubkey, nil
	}
	key, err := readKeyFile(s)
	if err != nil {
		return types.Pubkey{}, fmt.Errorf("%q is neither an address nor a key file: %w", s, err)
	}
	return types.PubkeyFromPrivateKey(key), nil
}

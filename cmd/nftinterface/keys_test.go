package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortiblox/X1-Interface/internal/types"
)

func TestKeyFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "authority.key")
	key, err := generateKey()
	require.NoError(t, err)
	require.NoError(t, writeKeyFile(path, key))

	loaded, err := readKeyFile(path)
	require.NoError(t, err)
	assert.Equal(t, key, loaded)

	fromFile, err := parsePubkey(path)
	require.NoError(t, err)
	assert.Equal(t, types.PubkeyFromPrivateKey(key), fromFile)

	fromAddress, err := parsePubkey(fromFile.String())
	require.NoError(t, err)
	assert.Equal(t, fromFile, fromAddress)
}

func TestReadKeyFileRejectsShortKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.key")
	require.NoError(t, os.WriteFile(path, []byte("3yZe7d\n"), 0600))

	_, err := readKeyFile(path)
	assert.ErrorIs(t, err, errInvalidKeyFile)

	_, err = parsePubkey(path)
	assert.Error(t, err)
}

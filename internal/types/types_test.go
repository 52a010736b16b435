package types

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPubkeyBase58RoundTrip(t *testing.T) {
	p, err := PubkeyFromBase58("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	require.NoError(t, err)
	assert.Equal(t, "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA", p.String())
	assert.Equal(t, TokenProgramAddr, p)

	_, err = PubkeyFromBase58("abc")
	assert.ErrorIs(t, err, ErrInvalidPubkey)

	_, err = PubkeyFromBytes(make([]byte, 31))
	assert.ErrorIs(t, err, ErrInvalidPubkey)
}

func TestSystemProgramIsZero(t *testing.T) {
	assert.True(t, SystemProgramAddr.IsZero())
	assert.False(t, SysvarRentAddr.IsZero())
}

func TestPubkeyText(t *testing.T) {
	var p Pubkey
	require.NoError(t, p.UnmarshalText([]byte(SysvarRentAddr.String())))
	assert.Equal(t, SysvarRentAddr, p)

	text, err := p.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "SysvarRent111111111111111111111111111111111", string(text))
}

func TestSignatureVerify(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	msg := []byte("mint")
	sig, err := SignatureFromBytes(ed25519.Sign(priv, msg))
	require.NoError(t, err)

	key := PubkeyFromPrivateKey(priv)
	assert.Equal(t, pub, ed25519.PublicKey(key[:]))
	assert.True(t, sig.Verify(key, msg))
	assert.False(t, sig.Verify(key, []byte("other")))

	parsed, err := SignatureFromBase58(sig.String())
	require.NoError(t, err)
	assert.Equal(t, sig, parsed)
}

func TestRentMinimumBalance(t *testing.T) {
	rent := DefaultRent()

	// (128 + 77) * 3480 * 2
	assert.Equal(t, uint64(1_426_800), rent.MinimumBalance(77))
	assert.Equal(t, uint64(890_880), rent.MinimumBalance(0))
	assert.True(t, rent.IsExempt(1_426_800, 77))
	assert.False(t, rent.IsExempt(1_426_799, 77))
}

func TestRentSysvarRoundTrip(t *testing.T) {
	rent := Rent{LamportsPerByteYear: 10, ExemptionThreshold: 1.5, BurnPercent: 20}
	decoded, err := DeserializeRent(rent.Serialize())
	require.NoError(t, err)
	assert.Equal(t, rent, decoded)

	_, err = DeserializeRent([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrInvalidRentData)
}

func TestComputeHashDeterministic(t *testing.T) {
	a := ComputeHash([]byte("ledger"))
	b := ComputeHash([]byte("ledger"))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, ComputeHash([]byte("ledger2")))
	assert.False(t, a.IsZero())
}

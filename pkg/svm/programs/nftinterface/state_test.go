package nftinterface

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortiblox/X1-Interface/internal/types"
	"github.com/fortiblox/X1-Interface/pkg/svm/syscall"
)

func TestInterfaceRecordLayout(t *testing.T) {
	r := &InterfaceRecord{
		PricePerUnit:    0x0807060504030201,
		MaxSupply:       0x0a09,
		TotalSupply:     0x0c0b,
		UpdateAuthority: testKey(1),
		FeeReceiver:     testKey(2),
		Sealed:          1,
	}
	data := r.Encode()
	require.Len(t, data, InterfaceRecordSize)

	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, data[0:8])
	assert.Equal(t, []byte{9, 10}, data[8:10])
	assert.Equal(t, []byte{11, 12}, data[10:12])
	assert.Equal(t, r.UpdateAuthority.Bytes(), data[12:44])
	assert.Equal(t, r.FeeReceiver.Bytes(), data[44:76])
	assert.Equal(t, byte(1), data[76])

	decoded, err := DecodeInterfaceRecord(data)
	require.NoError(t, err)
	assert.Equal(t, r, decoded)
}

func TestDecodeZeroedStorage(t *testing.T) {
	r, err := DecodeInterfaceRecord(make([]byte, InterfaceRecordSize))
	require.NoError(t, err)
	assert.Equal(t, &InterfaceRecord{}, r)

	w, err := DecodeWhitelistRecord(make([]byte, WhitelistRecordSize))
	require.NoError(t, err)
	assert.Equal(t, &WhitelistRecord{}, w)
}

func TestDecodeShortStorage(t *testing.T) {
	_, err := DecodeInterfaceRecord(make([]byte, InterfaceRecordSize-1))
	assert.ErrorIs(t, err, Uninitialized)

	_, err = DecodeWhitelistRecord(nil)
	assert.ErrorIs(t, err, Uninitialized)

	acc := &syscall.AccountInfo{Data: make([]byte, 10)}
	assert.ErrorIs(t, (&InterfaceRecord{}).Store(acc), Uninitialized)
}

func TestStoreLeavesTrailingBytes(t *testing.T) {
	acc := &syscall.AccountInfo{Data: []byte{0xff, 0xee}}
	require.NoError(t, (&WhitelistRecord{Sealed: 1}).Store(acc))
	assert.Equal(t, []byte{1, 0xee}, acc.Data)
}

func TestOptionalPubkey(t *testing.T) {
	key := testKey(7)

	none, err := DecodeOptionalPubkey(NoPubkey().Encode())
	require.NoError(t, err)
	_, ok := none.Get()
	assert.False(t, ok)
	assert.Equal(t, "None", none.String())

	some, err := DecodeOptionalPubkey(SomePubkey(key).Encode())
	require.NoError(t, err)
	got, ok := some.Get()
	assert.True(t, ok)
	assert.Equal(t, key, got)

	bad := SomePubkey(key).Encode()
	bad[0] = 2
	_, err = DecodeOptionalPubkey(bad)
	assert.ErrorIs(t, err, ErrInvalidAccountData)

	bad[0], bad[3] = 1, 1
	_, err = DecodeOptionalPubkey(bad)
	assert.ErrorIs(t, err, ErrInvalidAccountData)

	_, err = DecodeOptionalPubkey(make([]byte, 35))
	assert.ErrorIs(t, err, ErrInvalidAccountData)
}

func TestMintAuthorityChecks(t *testing.T) {
	authority := testKey(1)
	mintData := append(SomePubkey(authority).Encode(), make([]byte, 46)...)
	mint := &syscall.AccountInfo{Key: testKey(2), Owner: types.TokenProgramAddr, Data: mintData}

	got, err := GetMintAuthority(mint)
	require.NoError(t, err)

	signer := &syscall.AccountInfo{Key: authority, IsSigner: true}
	assert.NoError(t, AssertMintAuthorityMatchesMint(got, signer))

	unsigned := &syscall.AccountInfo{Key: authority}
	assert.ErrorIs(t, AssertMintAuthorityMatchesMint(got, unsigned), NotMintAuthority)

	stranger := &syscall.AccountInfo{Key: testKey(3), IsSigner: true}
	assert.ErrorIs(t, AssertMintAuthorityMatchesMint(got, stranger), InvalidMintAuthority)
	assert.ErrorIs(t, AssertMintAuthorityMatchesMint(NoPubkey(), signer), InvalidMintAuthority)

	_, err = GetMintAuthority(&syscall.AccountInfo{Data: make([]byte, 4)})
	assert.ErrorIs(t, err, ErrInvalidAccountData)
}

func TestAccountAssertions(t *testing.T) {
	acc := &syscall.AccountInfo{Key: testKey(1), Owner: ProgramID, Data: make([]byte, InterfaceRecordSize)}

	assert.NoError(t, AssertOwnedBy(acc, ProgramID))
	assert.ErrorIs(t, AssertOwnedBy(acc, types.SystemProgramAddr), IncorrectOwner)

	assert.ErrorIs(t, AssertInitialized(acc, InterfaceRecordSize), Uninitialized)
	acc.Data[3] = 1
	assert.NoError(t, AssertInitialized(acc, InterfaceRecordSize))
	assert.ErrorIs(t, AssertInitialized(acc, InterfaceRecordSize+1), Uninitialized)

	assert.NoError(t, AssertTokenProgramMatchesPackage(&syscall.AccountInfo{Key: types.TokenProgramAddr}))
	assert.ErrorIs(t, AssertTokenProgramMatchesPackage(acc), InvalidTokenProgram)
}

func TestErrorCodes(t *testing.T) {
	cases := []struct {
		err  Error
		code uint32
		text string
	}{
		{InvalidNFTAccountKey, 0, "Invalid new account key."},
		{InvalidFeeReceiverAccountKey, 1, "Invalid fee receiver account key."},
		{InvalidMintAuthority, 2, "Invalid Mint Authority."},
		{NotMintAuthority, 3, "Invalid not mint authority."},
		{IncorrectOwner, 4, "Incorrect owner."},
		{InvalidTokenProgram, 5, "Incorrect Token program Id."},
		{Uninitialized, 6, "Uninitialized account."},
		{NotEnoughSOL, 7, "Not Enough Sol."},
		{NotSealed, 8, "Not Allow to mint."},
		{ExceedMaxSupply, 9, "Exceed Max supply."},
		{InvalidWhitelistAccountKey, 10, "Invalid Whitelist account key."},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.code, tc.err.Code())
		assert.Equal(t, tc.text, tc.err.Error())
	}
	assert.Equal(t, "unknown nft interface error 11", Error(11).Error())

	_, ok := ErrorCode(ErrInvalidInstructionData)
	assert.False(t, ok)
}

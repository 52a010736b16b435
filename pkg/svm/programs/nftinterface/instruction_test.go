package nftinterface

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortiblox/X1-Interface/internal/types"
	"github.com/fortiblox/X1-Interface/pkg/svm/syscall"
)

func TestEncodeInstruction(t *testing.T) {
	cases := []struct {
		name string
		args Args
		want []byte
	}{
		{
			name: "create interface",
			args: &CreateInterfaceArgs{PricePerUnit: 100, MaxSupply: 3, Sealed: 1},
			want: []byte{0, 100, 0, 0, 0, 0, 0, 0, 0, 3, 0, 1},
		},
		{
			name: "modify interface, nothing set",
			args: &ModifyInterfaceArgs{},
			want: []byte{1, 0, 0, 0, 0},
		},
		{
			name: "modify interface, max supply only",
			args: &ModifyInterfaceArgs{MaxSupply: ptr(uint16(0x0102))},
			want: []byte{1, 0, 1, 0x02, 0x01, 0, 0},
		},
		{
			name: "modify interface, all set",
			args: &ModifyInterfaceArgs{
				PricePerUnit: ptr(uint64(1)),
				MaxSupply:    ptr(uint16(2)),
				TotalSupply:  ptr(uint16(3)),
				Sealed:       ptr(uint8(4)),
			},
			want: []byte{1, 1, 1, 0, 0, 0, 0, 0, 0, 0, 1, 2, 0, 1, 3, 0, 1, 4},
		},
		{
			name: "mint",
			args: &MintInterfaceArgs{},
			want: []byte{2},
		},
		{
			name: "get fee, everything",
			args: &GetFeeInterfaceArgs{},
			want: []byte{3, 0},
		},
		{
			name: "get fee, amount",
			args: &GetFeeInterfaceArgs{Amount: ptr(uint64(256))},
			want: []byte{3, 1, 0, 1, 0, 0, 0, 0, 0, 0},
		},
		{
			name: "create whitelist",
			args: &CreateWhitelistArgs{Sealed: 1},
			want: []byte{4, 1},
		},
		{
			name: "modify whitelist",
			args: &ModifyWhitelistArgs{Sealed: 0},
			want: []byte{5, 0},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := EncodeInstruction(tc.args)
			require.NoError(t, err)
			assert.Equal(t, tc.want, data)

			decoded, err := DecodeInstruction(data)
			require.NoError(t, err)
			assert.Equal(t, tc.args, decoded)
		})
	}
}

func TestDecodeInstructionErrors(t *testing.T) {
	cases := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"unknown tag", []byte{6}},
		{"short create", []byte{0, 100, 0, 0}},
		{"trailing bytes", []byte{2, 0}},
		{"bad option flag", []byte{3, 2}},
		{"missing option body", []byte{3, 1, 0}},
		{"missing whitelist flag", []byte{5}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeInstruction(tc.data)
			assert.ErrorIs(t, err, ErrInvalidInstructionData)
		})
	}
}

func TestInstructionKindString(t *testing.T) {
	assert.Equal(t, "Mint Nft Interface Account", InstructionMintInterface.String())
	assert.Equal(t, "Unknown(9)", InstructionKind(9).String())
}

func TestBuilderAccountOrder(t *testing.T) {
	authority, feeReceiver, payer, target := testKey(1), testKey(2), testKey(3), testKey(4)
	record, _, err := DefaultSeeds().InterfaceAddress(ProgramID, authority)
	require.NoError(t, err)
	whitelist, _, err := DefaultSeeds().WhitelistAddress(ProgramID, authority, target)
	require.NoError(t, err)

	ix, err := CreateInterface(ProgramID, feeReceiver, payer, authority, CreateInterfaceArgs{})
	require.NoError(t, err)
	assert.Equal(t, []types.Pubkey{record, feeReceiver, payer, authority, types.SystemProgramAddr, types.SysvarRentAddr}, metaKeys(ix.Accounts))

	ix, err = ModifyInterface(ProgramID, authority, ModifyInterfaceArgs{})
	require.NoError(t, err)
	assert.Equal(t, []types.Pubkey{record, authority}, metaKeys(ix.Accounts))

	ix, err = MintInterface(ProgramID, authority, feeReceiver, payer)
	require.NoError(t, err)
	assert.Equal(t, []types.Pubkey{record, authority, feeReceiver, payer, types.SystemProgramAddr}, metaKeys(ix.Accounts))

	ix, err = GetFeeInterface(ProgramID, authority, feeReceiver, target, nil)
	require.NoError(t, err)
	assert.Equal(t, []types.Pubkey{record, authority, feeReceiver, target, types.SystemProgramAddr}, metaKeys(ix.Accounts))

	ix, err = CreateWhitelist(ProgramID, authority, payer, target, 0)
	require.NoError(t, err)
	assert.Equal(t, []types.Pubkey{whitelist, authority, payer, target, types.SystemProgramAddr, types.SysvarRentAddr}, metaKeys(ix.Accounts))

	ix, err = ModifyWhitelist(ProgramID, authority, target, 0)
	require.NoError(t, err)
	assert.Equal(t, []types.Pubkey{whitelist, authority, target}, metaKeys(ix.Accounts))
	assert.Equal(t, ProgramID, ix.ProgramID)
}

func metaKeys(metas []syscall.AccountMeta) []types.Pubkey {
	out := make([]types.Pubkey, len(metas))
	for i, m := range metas {
		out[i] = m.Pubkey
	}
	return out
}

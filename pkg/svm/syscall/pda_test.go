package syscall

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortiblox/X1-Interface/internal/types"
)

func TestCreateProgramAddress(t *testing.T) {
	seedKey := types.MustPubkeyFromBase58("SeedPubey1111111111111111111111111111111111")
	programID := types.MustPubkeyFromBase58("BPFLoader1111111111111111111111111111111111")

	_, err := CreateProgramAddress([][]byte{make([]byte, MaxSeedLen+1)}, programID)
	assert.ErrorIs(t, err, ErrMaxSeedLengthExceeded)
	_, err = CreateProgramAddress([][]byte{[]byte("short seed"), make([]byte, MaxSeedLen+1)}, programID)
	assert.ErrorIs(t, err, ErrMaxSeedLengthExceeded)

	_, err = CreateProgramAddress([][]byte{make([]byte, MaxSeedLen)}, programID)
	assert.NoError(t, err)

	cases := []struct {
		expected string
		input    [][]byte
	}{
		{"3gF2KMe9KiC6FNVBmfg9i267aMPvK37FewCip4eGBFcT", [][]byte{{}, {1}}},
		{"7ytmC1nT1xY4RfxCV2ZgyA7UakC93do5ZdyhdF3EtPj7", [][]byte{[]byte("☉")}},
		{"HwRVBufQ4haG5XSgpspwKtNd3PC9GM9m1196uJW36vds", [][]byte{[]byte("Talking"), []byte("Squirrels")}},
		{"GUs5qLUfsEHkcMB9T38vjr18ypEhRuNWiePW2LoK4E3K", [][]byte{seedKey[:]}},
	}
	for _, tc := range cases {
		pda, err := CreateProgramAddress(tc.input, programID)
		require.NoError(t, err)
		assert.Equal(t, tc.expected, pda.String())
	}
}

func TestCreateProgramAddressTooManySeeds(t *testing.T) {
	seeds := make([][]byte, MaxSeeds+1)
	_, err := CreateProgramAddress(seeds, types.SystemProgramAddr)
	assert.ErrorIs(t, err, ErrMaxSeedsExceeded)

	_, _, err = FindProgramAddress(make([][]byte, MaxSeeds), types.SystemProgramAddr)
	assert.ErrorIs(t, err, ErrMaxSeedsExceeded)
}

func TestFindProgramAddress(t *testing.T) {
	programID := types.MustPubkeyFromBase58("BPFLoader1111111111111111111111111111111111")
	seeds := [][]byte{[]byte("nftinterface"), make([]byte, 32)}

	pda, bump, err := FindProgramAddress(seeds, programID)
	require.NoError(t, err)
	assert.False(t, isOnCurve(pda[:]))

	again, againBump, err := FindProgramAddress(seeds, programID)
	require.NoError(t, err)
	assert.Equal(t, pda, again)
	assert.Equal(t, bump, againBump)

	recreated, err := CreateProgramAddress(append(seeds, []byte{bump}), programID)
	require.NoError(t, err)
	assert.Equal(t, pda, recreated)

	other, _, err := FindProgramAddress([][]byte{[]byte("whitelist"), make([]byte, 32)}, programID)
	require.NoError(t, err)
	assert.NotEqual(t, pda, other)
}

type countingMeter struct {
	used, limit uint64
}

func (m *countingMeter) Consume(cost uint64) error {
	m.used += cost
	if m.used > m.limit {
		return assert.AnError
	}
	return nil
}

func TestExecutionContextFindProgramAddressChargesCU(t *testing.T) {
	programID := types.MustPubkeyFromBase58("BPFLoader1111111111111111111111111111111111")
	meter := &countingMeter{limit: 1_000_000}
	ctx := NewExecutionContext(&Environment{Meter: meter}, programID, nil)

	_, bump, err := ctx.FindProgramAddress([]byte("Talking"))
	require.NoError(t, err)
	assert.Equal(t, uint64(256-int(bump))*CUFindPDA, meter.used)

	meter = &countingMeter{limit: 0}
	ctx = NewExecutionContext(&Environment{Meter: meter}, programID, nil)
	_, _, err = ctx.FindProgramAddress([]byte("Talking"))
	assert.ErrorIs(t, err, assert.AnError)
}

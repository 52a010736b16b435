package system

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortiblox/X1-Interface/internal/types"
	"github.com/fortiblox/X1-Interface/pkg/svm/syscall"
)

func key(b byte) types.Pubkey {
	var p types.Pubkey
	p[0] = b
	p[31] = b
	return p
}

// run executes ix against accounts with the privileges the metas request.
func run(t *testing.T, ix syscall.Instruction, accounts map[types.Pubkey]*syscall.AccountInfo) ([]string, error) {
	t.Helper()

	var logs []string
	env := &syscall.Environment{
		Programs: map[types.Pubkey]syscall.Program{ProgramID: NewProcessor()},
		Rent:     types.DefaultRent(),
		Logs:     &logs,
	}

	infos := make([]*syscall.AccountInfo, len(ix.Accounts))
	for i, meta := range ix.Accounts {
		acc, ok := accounts[meta.Pubkey]
		require.True(t, ok, "missing account %s", meta.Pubkey)
		acc.Key = meta.Pubkey
		acc.IsSigner = meta.IsSigner
		acc.IsWritable = meta.IsWritable
		infos[i] = acc
	}

	ctx := syscall.NewExecutionContext(env, ix.ProgramID, infos)
	err := NewProcessor().Execute(ctx, ix.Data)
	return logs, err
}

func TestTransfer(t *testing.T) {
	from, to := key(1), key(2)
	accounts := map[types.Pubkey]*syscall.AccountInfo{
		from: {Lamports: 1_000},
		to:   {Lamports: 5},
	}

	logs, err := run(t, Transfer(from, to, 400), accounts)
	require.NoError(t, err)
	assert.Equal(t, uint64(600), accounts[from].Lamports)
	assert.Equal(t, uint64(405), accounts[to].Lamports)
	assert.Equal(t, []string{"Program log: Transfer: 400 lamports"}, logs)

	_, err = run(t, Transfer(from, to, 601), accounts)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, uint64(600), accounts[from].Lamports)
}

func TestTransferRequiresSigner(t *testing.T) {
	from, to := key(1), key(2)
	accounts := map[types.Pubkey]*syscall.AccountInfo{
		from: {Lamports: 1_000},
		to:   {},
	}

	ix := Transfer(from, to, 1)
	ix.Accounts[0].IsSigner = false

	_, err := run(t, ix, accounts)
	assert.ErrorIs(t, err, ErrMissingRequiredSignature)
}

func TestTransferFromDataAccount(t *testing.T) {
	from, to := key(1), key(2)
	accounts := map[types.Pubkey]*syscall.AccountInfo{
		from: {Lamports: 1_000, Data: []byte{1}},
		to:   {},
	}

	_, err := run(t, Transfer(from, to, 1), accounts)
	assert.ErrorIs(t, err, ErrTransferFromDataAccount)
}

func TestCreateAccount(t *testing.T) {
	funder, newAcc, owner := key(1), key(2), key(3)
	rent := types.DefaultRent().MinimumBalance(10)
	accounts := map[types.Pubkey]*syscall.AccountInfo{
		funder: {Lamports: rent + 1},
		newAcc: {},
	}

	_, err := run(t, CreateAccount(funder, newAcc, owner, rent, 10), accounts)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), accounts[funder].Lamports)
	assert.Equal(t, rent, accounts[newAcc].Lamports)
	assert.Len(t, accounts[newAcc].Data, 10)
	assert.Equal(t, owner, accounts[newAcc].Owner)

	// A second create on the same address fails.
	accounts[funder].Lamports = rent * 2
	_, err = run(t, CreateAccount(funder, newAcc, owner, rent, 10), accounts)
	assert.ErrorIs(t, err, ErrAccountAlreadyInUse)
}

func TestCreateAccountNotRentExempt(t *testing.T) {
	funder, newAcc := key(1), key(2)
	accounts := map[types.Pubkey]*syscall.AccountInfo{
		funder: {Lamports: 10_000_000},
		newAcc: {},
	}

	_, err := run(t, CreateAccount(funder, newAcc, key(3), 1, 10), accounts)
	assert.ErrorIs(t, err, ErrAccountNotRentExempt)
}

func TestAllocateRequiresEmptyAccount(t *testing.T) {
	acc := key(1)
	accounts := map[types.Pubkey]*syscall.AccountInfo{
		acc: {Lamports: 1},
	}

	_, err := run(t, Allocate(acc, 77), accounts)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 77), accounts[acc].Data)

	_, err = run(t, Allocate(acc, 77), accounts)
	assert.ErrorIs(t, err, ErrAccountAlreadyInUse)
}

func TestAllocateTooLarge(t *testing.T) {
	acc := key(1)
	accounts := map[types.Pubkey]*syscall.AccountInfo{acc: {}}

	_, err := run(t, Allocate(acc, MaxAccountDataSize+1), accounts)
	assert.ErrorIs(t, err, ErrAccountDataTooLarge)
}

func TestAssign(t *testing.T) {
	acc, owner := key(1), key(9)
	accounts := map[types.Pubkey]*syscall.AccountInfo{acc: {}}

	_, err := run(t, Assign(acc, owner), accounts)
	require.NoError(t, err)
	assert.Equal(t, owner, accounts[acc].Owner)

	// Re-assigning to the same owner is a no-op, any other owner is rejected.
	_, err = run(t, Assign(acc, owner), accounts)
	require.NoError(t, err)

	_, err = run(t, Assign(acc, key(8)), accounts)
	assert.ErrorIs(t, err, ErrInvalidAccountOwner)
}

func TestAssignRequiresWritable(t *testing.T) {
	acc, owner := key(1), key(9)
	accounts := map[types.Pubkey]*syscall.AccountInfo{acc: {}}

	ix := Assign(acc, owner)
	ix.Accounts[0].IsWritable = false

	logs, err := run(t, ix, accounts)
	assert.ErrorIs(t, err, ErrAccountNotWritable)
	assert.Equal(t, types.Pubkey{}, accounts[acc].Owner)
	assert.Empty(t, logs)
}

func TestAllocateRequiresWritable(t *testing.T) {
	acc := key(1)
	accounts := map[types.Pubkey]*syscall.AccountInfo{acc: {Lamports: 1}}

	ix := Allocate(acc, 77)
	ix.Accounts[0].IsWritable = false

	logs, err := run(t, ix, accounts)
	assert.ErrorIs(t, err, ErrAccountNotWritable)
	assert.Empty(t, accounts[acc].Data)
	assert.Empty(t, logs)
}

func TestUnsupportedInstruction(t *testing.T) {
	accounts := map[types.Pubkey]*syscall.AccountInfo{}
	_, err := run(t, syscall.Instruction{ProgramID: ProgramID, Data: []byte{99, 0, 0, 0}}, accounts)
	assert.ErrorIs(t, err, ErrInvalidInstructionData)

	_, err = run(t, syscall.Instruction{ProgramID: ProgramID, Data: []byte{1}}, accounts)
	assert.ErrorIs(t, err, ErrInvalidInstructionData)
}

package nftinterface

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fortiblox/X1-Interface/internal/types"
	"github.com/fortiblox/X1-Interface/pkg/svm/programs/system"
	"github.com/fortiblox/X1-Interface/pkg/svm/syscall"
)

// testKey returns a deterministic wallet address for index i.
func testKey(i byte) types.Pubkey {
	seed := make([]byte, ed25519.SeedSize)
	seed[0] = i
	seed[1] = 0xA5
	return types.PubkeyFromPrivateKey(ed25519.NewKeyFromSeed(seed))
}

// ledger runs single instructions against an in-memory account set, with
// the all-or-nothing semantics of the runtime.
type ledger struct {
	t        *testing.T
	accounts map[types.Pubkey]*syscall.AccountInfo
	logs     []string
	env      *syscall.Environment
}

func newLedger(t *testing.T) *ledger {
	l := &ledger{
		t:        t,
		accounts: make(map[types.Pubkey]*syscall.AccountInfo),
	}
	l.env = &syscall.Environment{
		Programs: map[types.Pubkey]syscall.Program{
			system.ProgramID: system.NewProcessor(),
			ProgramID:        NewProgram(DefaultSeeds()),
		},
		Rent: types.DefaultRent(),
		Logs: &l.logs,
	}
	l.accounts[types.SysvarRentAddr] = &syscall.AccountInfo{
		Key:      types.SysvarRentAddr,
		Owner:    types.SysvarOwnerAddr,
		Lamports: 1,
		Data:     types.DefaultRent().Serialize(),
	}
	l.accounts[system.ProgramID] = &syscall.AccountInfo{
		Key:        system.ProgramID,
		Owner:      types.NativeLoaderAddr,
		Lamports:   1,
		Executable: true,
	}
	return l
}

func (l *ledger) fund(key types.Pubkey, lamports uint64) {
	l.account(key).Lamports += lamports
}

func (l *ledger) account(key types.Pubkey) *syscall.AccountInfo {
	acc, ok := l.accounts[key]
	if !ok {
		acc = &syscall.AccountInfo{Key: key}
		l.accounts[key] = acc
	}
	return acc
}

func (l *ledger) lamports(key types.Pubkey) uint64 {
	return l.account(key).Lamports
}

// snapshot deep copies every account.
func (l *ledger) snapshot() map[types.Pubkey]syscall.AccountInfo {
	out := make(map[types.Pubkey]syscall.AccountInfo, len(l.accounts))
	for k, acc := range l.accounts {
		c := *acc
		c.Data = append([]byte(nil), acc.Data...)
		c.IsSigner, c.IsWritable = false, false
		out[k] = c
	}
	return out
}

func (l *ledger) restore(snap map[types.Pubkey]syscall.AccountInfo) {
	l.accounts = make(map[types.Pubkey]*syscall.AccountInfo, len(snap))
	for k, acc := range snap {
		c := acc
		l.accounts[k] = &c
	}
}

// exec runs ix without discarding effects on failure.
func (l *ledger) exec(ix syscall.Instruction) error {
	l.t.Helper()

	for _, acc := range l.accounts {
		acc.IsSigner, acc.IsWritable = false, false
	}
	infos := make([]*syscall.AccountInfo, len(ix.Accounts))
	for i, meta := range ix.Accounts {
		acc := l.account(meta.Pubkey)
		acc.IsSigner = acc.IsSigner || meta.IsSigner
		acc.IsWritable = acc.IsWritable || meta.IsWritable
		infos[i] = acc
	}

	program, ok := l.env.Programs[ix.ProgramID]
	require.True(l.t, ok, "unknown program %s", ix.ProgramID)
	return program.Execute(syscall.NewExecutionContext(l.env, ix.ProgramID, infos), ix.Data)
}

// process runs ix and rolls every account back if it fails.
func (l *ledger) process(ix syscall.Instruction) error {
	l.t.Helper()

	snap := l.snapshot()
	if err := l.exec(ix); err != nil {
		l.restore(snap)
		return err
	}
	return nil
}

func (l *ledger) interfaceRecord(authority types.Pubkey) *InterfaceRecord {
	l.t.Helper()

	addr, _, err := DefaultSeeds().InterfaceAddress(ProgramID, authority)
	require.NoError(l.t, err)
	state, err := DecodeInterfaceRecord(l.account(addr).Data)
	require.NoError(l.t, err)
	return state
}

func (l *ledger) createInterface(feeReceiver, payer, authority types.Pubkey, args CreateInterfaceArgs) error {
	l.t.Helper()

	ix, err := CreateInterface(ProgramID, feeReceiver, payer, authority, args)
	require.NoError(l.t, err)
	return l.process(ix)
}

func (l *ledger) mint(authority, feeReceiver, payer types.Pubkey) error {
	l.t.Helper()

	ix, err := MintInterface(ProgramID, authority, feeReceiver, payer)
	require.NoError(l.t, err)
	return l.process(ix)
}

func ptr[T any](v T) *T {
	return &v
}

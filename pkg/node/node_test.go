package node

import (
	"crypto/ed25519"
	"errors"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortiblox/X1-Interface/internal/config"
	"github.com/fortiblox/X1-Interface/internal/types"
	"github.com/fortiblox/X1-Interface/pkg/accounts"
	"github.com/fortiblox/X1-Interface/pkg/journal"
	"github.com/fortiblox/X1-Interface/pkg/svm"
	"github.com/fortiblox/X1-Interface/pkg/svm/programs/nftinterface"
	"github.com/fortiblox/X1-Interface/pkg/svm/programs/system"
	"github.com/fortiblox/X1-Interface/pkg/svm/syscall"
)

const sol = 1_000_000_000

var (
	rentInterface = types.DefaultRent().MinimumBalance(nftinterface.InterfaceRecordSize)
	rentWallet    = types.DefaultRent().MinimumBalance(0)
)

func testKey(i byte) ed25519.PrivateKey {
	seed := make([]byte, ed25519.SeedSize)
	seed[0] = i
	seed[31] = 0x5A
	return ed25519.NewKeyFromSeed(seed)
}

func pub(key ed25519.PrivateKey) types.Pubkey {
	return types.PubkeyFromPrivateKey(key)
}

func openTestNode(t *testing.T, dir string) *Node {
	t.Helper()
	n, err := Open(&Config{
		DataDir:   dir,
		ProgramID: nftinterface.ProgramID,
	})
	require.NoError(t, err)
	return n
}

func submit(t *testing.T, n *Node, payer ed25519.PrivateKey, signers []ed25519.PrivateKey, ix syscall.Instruction) *svm.ExecutionResult {
	t.Helper()
	tx, err := svm.NewTransaction(pub(payer), n.LatestBlockhash(), ix)
	require.NoError(t, err)
	require.NoError(t, tx.Sign(append([]ed25519.PrivateKey{payer}, signers...)...))
	result, err := n.Submit(tx)
	require.NoError(t, err)
	return result
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "./data", cfg.DataDir)
	assert.True(t, cfg.SyncWrites)
	assert.Equal(t, nftinterface.ProgramID, cfg.ProgramID)
	assert.Equal(t, uint64(svm.CUDefault), cfg.ComputeLimit)
	assert.Equal(t, types.DefaultRent(), cfg.Rent)
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"valid", Config{DataDir: "/tmp/nfti", ProgramID: nftinterface.ProgramID}, false},
		{"missing data dir", Config{ProgramID: nftinterface.ProgramID}, true},
		{"zero program id", Config{DataDir: "/tmp/nfti"}, true},
		{"system program id", Config{DataDir: "/tmp/nfti", ProgramID: system.ProgramID}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrConfigInvalid)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFromConfig(t *testing.T) {
	c := config.Default()
	c.DataDir = "/srv/nfti"
	c.InMemory = true
	c.ComputeLimit = 50_000
	c.RentBurnPercent = 10

	cfg := FromConfig(c)
	assert.Equal(t, "/srv/nfti", cfg.DataDir)
	assert.True(t, cfg.InMemory)
	assert.Equal(t, nftinterface.ProgramID, cfg.ProgramID)
	assert.Equal(t, uint64(50_000), cfg.ComputeLimit)
	assert.Equal(t, uint8(10), cfg.Rent.BurnPercent)
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	_, err := Open(&Config{DataDir: t.TempDir(), ProgramID: system.ProgramID})
	assert.ErrorIs(t, err, ErrConfigInvalid)
}

func TestAirdropAndBalance(t *testing.T) {
	n := openTestNode(t, t.TempDir())
	defer n.Close()

	key := pub(testKey(1))
	balance, err := n.Balance(key)
	require.NoError(t, err)
	assert.Zero(t, balance)

	require.NoError(t, n.Airdrop(key, 500))
	require.NoError(t, n.Airdrop(key, 250))
	balance, err = n.Balance(key)
	require.NoError(t, err)
	assert.Equal(t, uint64(750), balance)

	acc, err := n.Account(key)
	require.NoError(t, err)
	assert.Equal(t, system.ProgramID, acc.Owner)

	assert.ErrorIs(t, n.Airdrop(key, ^uint64(0)), ErrLamportOverflow)
}

func TestInterfaceLifecycle(t *testing.T) {
	dir := t.TempDir()
	n := openTestNode(t, dir)

	var executed []*svm.ExecutionResult
	n.config.OnTransaction = func(result *svm.ExecutionResult) {
		executed = append(executed, result)
	}

	authority := testKey(1)
	feeReceiver := testKey(2)
	minter := testKey(3)
	poor := testKey(4)

	require.NoError(t, n.Airdrop(pub(authority), 10*sol))
	require.NoError(t, n.Airdrop(pub(minter), 10*sol))
	require.NoError(t, n.Airdrop(pub(poor), 1_000))

	// Create.
	ix, err := nftinterface.CreateInterface(n.ProgramID(), pub(feeReceiver), pub(authority), pub(authority),
		nftinterface.CreateInterfaceArgs{PricePerUnit: sol, MaxSupply: 3})
	require.NoError(t, err)
	created := submit(t, n, authority, []ed25519.PrivateKey{feeReceiver}, ix)
	require.True(t, created.Success, created.Error())

	address, record, err := n.InterfaceRecord(pub(authority))
	require.NoError(t, err)
	assert.Equal(t, uint64(sol), record.PricePerUnit)
	assert.Equal(t, uint16(3), record.MaxSupply)
	assert.Zero(t, record.TotalSupply)
	assert.Equal(t, pub(authority), record.UpdateAuthority)
	assert.Equal(t, pub(feeReceiver), record.FeeReceiver)

	balance, _ := n.Balance(address)
	assert.Equal(t, rentInterface, balance)
	balance, _ = n.Balance(pub(feeReceiver))
	assert.Equal(t, rentWallet, balance)

	// Mint.
	ix, err = nftinterface.MintInterface(n.ProgramID(), pub(authority), pub(feeReceiver), pub(minter))
	require.NoError(t, err)
	minted := submit(t, n, minter, nil, ix)
	require.True(t, minted.Success, minted.Error())

	_, record, err = n.InterfaceRecord(pub(authority))
	require.NoError(t, err)
	assert.Equal(t, uint16(1), record.TotalSupply)
	balance, _ = n.Balance(pub(feeReceiver))
	assert.Equal(t, rentWallet+sol, balance)

	// Replaying the exact transaction is rejected without being journaled.
	tx, err := svm.NewTransaction(pub(minter), n.LatestBlockhash(), ix)
	require.NoError(t, err)
	require.NoError(t, tx.Sign(minter))
	_, err = n.Submit(tx)
	require.NoError(t, err)
	_, err = n.Submit(tx)
	assert.ErrorIs(t, err, ErrAlreadyProcessed)

	// A mint the payer cannot afford fails and is journaled.
	ix, err = nftinterface.MintInterface(n.ProgramID(), pub(authority), pub(feeReceiver), pub(poor))
	require.NoError(t, err)
	failed := submit(t, n, poor, nil, ix)
	assert.False(t, failed.Success)
	code, ok := nftinterface.ErrorCode(failed.Err)
	require.True(t, ok)
	assert.Equal(t, nftinterface.NotEnoughSOL.Code(), code)
	balance, _ = n.Balance(pub(poor))
	assert.Equal(t, uint64(1_000), balance)

	entry, err := n.Transaction(failed.Signature)
	require.NoError(t, err)
	assert.False(t, entry.Success)
	assert.Equal(t, failed.Error(), entry.Err)
	assert.Equal(t, []string{"Mint Nft Interface Account"}, entry.Instructions)

	// Withdraw everything the fee receiver holds.
	ix, err = nftinterface.GetFeeInterface(n.ProgramID(), pub(authority), pub(feeReceiver), pub(authority), nil)
	require.NoError(t, err)
	before, _ := n.Balance(pub(authority))
	withdrawn := submit(t, n, feeReceiver, nil, ix)
	require.True(t, withdrawn.Success, withdrawn.Error())

	balance, _ = n.Balance(pub(feeReceiver))
	assert.Zero(t, balance)
	after, _ := n.Balance(pub(authority))
	assert.Equal(t, before+rentWallet+2*sol, after)

	history, err := n.History(pub(feeReceiver), nil)
	require.NoError(t, err)
	require.Len(t, history, 5)
	assert.Equal(t, withdrawn.Signature, history[0].Signature)
	assert.Equal(t, failed.Signature, history[1].Signature)
	assert.Equal(t, created.Signature, history[4].Signature)
	assert.Equal(t, []string{"Create Nft Interface Account"}, history[4].Instructions)

	paged, err := n.History(pub(feeReceiver), &journal.QueryOptions{Limit: 2, Before: &failed.Signature})
	require.NoError(t, err)
	require.Len(t, paged, 2)
	assert.Equal(t, tx.Signature(), paged[0].Signature)
	assert.Equal(t, minted.Signature, paged[1].Signature)

	status := n.Status()
	assert.Equal(t, uint64(5), status.TxsProcessed)
	assert.Equal(t, uint64(1), status.TxsFailed)
	assert.Equal(t, uint64(5), status.JournalEntries)
	assert.Equal(t, uint64(4), status.Slot)
	assert.Len(t, executed, 5)

	require.NoError(t, n.Close())
	assert.ErrorIs(t, n.Close(), ErrClosed)
	_, err = n.Balance(pub(authority))
	assert.ErrorIs(t, err, ErrClosed)

	// State and journal survive a restart.
	n = openTestNode(t, dir)
	defer n.Close()

	_, record, err = n.InterfaceRecord(pub(authority))
	require.NoError(t, err)
	assert.Equal(t, uint16(2), record.TotalSupply)
	assert.Equal(t, uint64(4), n.Status().Slot)
	assert.Equal(t, uint64(5), n.Status().JournalEntries)

	_, err = n.Submit(tx)
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
}

func TestWhitelistRecord(t *testing.T) {
	n := openTestNode(t, t.TempDir())
	defer n.Close()

	authority := testKey(1)
	target := pub(testKey(9))
	require.NoError(t, n.Airdrop(pub(authority), sol))

	_, _, err := n.WhitelistRecord(pub(authority), target)
	assert.ErrorIs(t, err, accounts.ErrAccountNotFound)

	ix, err := nftinterface.CreateWhitelist(n.ProgramID(), pub(authority), pub(authority), target, 1)
	require.NoError(t, err)
	result := submit(t, n, authority, nil, ix)
	require.True(t, result.Success, result.Error())

	_, record, err := n.WhitelistRecord(pub(authority), target)
	require.NoError(t, err)
	assert.Equal(t, uint8(1), record.Sealed)

	ix, err = nftinterface.ModifyWhitelist(n.ProgramID(), pub(authority), target, 0)
	require.NoError(t, err)
	result = submit(t, n, authority, nil, ix)
	require.True(t, result.Success, result.Error())

	_, record, err = n.WhitelistRecord(pub(authority), target)
	require.NoError(t, err)
	assert.Zero(t, record.Sealed)

	// No interface was created for this authority.
	_, _, err = n.InterfaceRecord(pub(authority))
	assert.ErrorIs(t, err, accounts.ErrAccountNotFound)
}

func TestSnapshotBootstrapsNewNode(t *testing.T) {
	n := openTestNode(t, t.TempDir())

	authority := testKey(1)
	feeReceiver := testKey(2)
	require.NoError(t, n.Airdrop(pub(authority), 10*sol))

	ix, err := nftinterface.CreateInterface(n.ProgramID(), pub(feeReceiver), pub(authority), pub(authority),
		nftinterface.CreateInterfaceArgs{PricePerUnit: 42, MaxSupply: 7, Sealed: 1})
	require.NoError(t, err)
	result := submit(t, n, authority, []ed25519.PrivateKey{feeReceiver}, ix)
	require.True(t, result.Success, result.Error())

	path := filepath.Join(t.TempDir(), "state.snap")
	header, err := n.ExportSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), header.Slot)
	require.NoError(t, n.Close())

	restored, err := Open(&Config{
		DataDir:      t.TempDir(),
		InMemory:     true,
		ProgramID:    nftinterface.ProgramID,
		SnapshotPath: path,
	})
	require.NoError(t, err)
	defer restored.Close()

	assert.Equal(t, uint64(1), restored.Status().Slot)
	assert.Equal(t, header.AccountsCount, restored.Status().AccountsCount)
	_, record, err := restored.InterfaceRecord(pub(authority))
	require.NoError(t, err)
	assert.Equal(t, uint64(42), record.PricePerUnit)
	assert.Equal(t, uint8(1), record.Sealed)
}

// countFailingDB fails AccountsCount and delegates everything else.
type countFailingDB struct {
	accounts.DB
}

func (countFailingDB) AccountsCount() (uint64, error) {
	return 0, errors.New("count unavailable")
}

func TestStatusLogsCountFailure(t *testing.T) {
	n, err := Open(&Config{
		DataDir:   t.TempDir(),
		InMemory:  true,
		ProgramID: nftinterface.ProgramID,
	})
	require.NoError(t, err)
	defer n.Close()

	logger, hook := test.NewNullLogger()
	n.log = logrus.NewEntry(logger)
	n.accounts = countFailingDB{n.accounts}

	status := n.Status()
	assert.Equal(t, uint64(0), status.AccountsCount)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "failed to count accounts", entry.Message)
	assert.EqualError(t, entry.Data[logrus.ErrorKey].(error), "count unavailable")
}

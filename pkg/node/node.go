// Package node ties the components of an NFT interface node together.
//
// The Node owns:
// - AccountsDB for account state (BadgerDB)
// - Journal for executed transactions (BoltDB)
// - The runtime with the System and NFT interface programs registered
//
// Transactions are executed one at a time and every executed transaction is
// journaled, whether it committed or not.
package node

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fortiblox/X1-Interface/internal/config"
	"github.com/fortiblox/X1-Interface/internal/types"
	"github.com/fortiblox/X1-Interface/pkg/accounts"
	"github.com/fortiblox/X1-Interface/pkg/journal"
	"github.com/fortiblox/X1-Interface/pkg/snapshot"
	"github.com/fortiblox/X1-Interface/pkg/svm"
	"github.com/fortiblox/X1-Interface/pkg/svm/programs/nftinterface"
	"github.com/fortiblox/X1-Interface/pkg/svm/programs/system"
)

// Node errors.
var (
	ErrClosed           = errors.New("node is closed")
	ErrConfigInvalid    = errors.New("invalid node configuration")
	ErrAlreadyProcessed = errors.New("transaction already processed")
	ErrLamportOverflow  = errors.New("lamport overflow")
)

// Config holds node configuration.
type Config struct {
	// DataDir is the root directory for all node data.
	// Subdirectories are created for the accounts database and the journal.
	DataDir string

	// InMemory keeps accounts in memory.
	InMemory bool

	// SyncWrites fsyncs every write.
	SyncWrites bool

	// ProgramID is the address the NFT interface program is served at.
	ProgramID types.Pubkey

	// ComputeLimit is the compute budget of one transaction.
	ComputeLimit uint64

	// Rent is served through the rent sysvar.
	Rent types.Rent

	// SnapshotPath is an optional snapshot loaded into an empty accounts
	// database on open.
	SnapshotPath string

	// OnTransaction is called after every executed transaction.
	OnTransaction func(result *svm.ExecutionResult)
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DataDir:      "./data",
		SyncWrites:   true,
		ProgramID:    nftinterface.ProgramID,
		ComputeLimit: svm.CUDefault,
		Rent:         types.DefaultRent(),
	}
}

// FromConfig builds a node configuration from loaded settings.
func FromConfig(c config.Config) Config {
	return Config{
		DataDir:      c.DataDir,
		InMemory:     c.InMemory,
		SyncWrites:   c.SyncWrites,
		ProgramID:    c.Program(),
		ComputeLimit: c.ComputeLimit,
		Rent:         c.Rent(),
		SnapshotPath: c.SnapshotPath,
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("%w: data directory is required", ErrConfigInvalid)
	}
	if c.ProgramID.IsZero() || c.ProgramID == system.ProgramID {
		return fmt.Errorf("%w: program id %s is reserved", ErrConfigInvalid, c.ProgramID)
	}
	return nil
}

// Node is a running NFT interface node.
type Node struct {
	config Config
	log    *logrus.Entry

	accounts accounts.DB
	journal  *journal.Store
	runtime  *svm.SVM

	// mu serializes submissions with airdrops so journal order matches
	// execution order.
	mu        sync.Mutex
	closed    atomic.Bool
	startTime time.Time

	txsProcessed atomic.Uint64
	txsFailed    atomic.Uint64
}

// Open initializes storage and the runtime.
func Open(config *Config) (*Node, error) {
	if config == nil {
		defaults := DefaultConfig()
		config = &defaults
	}
	if config.ComputeLimit == 0 {
		config.ComputeLimit = svm.CUDefault
	}
	if config.Rent == (types.Rent{}) {
		config.Rent = types.DefaultRent()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	n := &Node{
		config:    *config,
		log:       logrus.StandardLogger().WithField("type", "node"),
		startTime: time.Now(),
	}

	if err := os.MkdirAll(n.config.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	accountsConfig := accounts.DefaultBadgerDBConfig(filepath.Join(n.config.DataDir, "accounts"))
	accountsConfig.InMemory = n.config.InMemory
	accountsConfig.SyncWrites = n.config.SyncWrites
	accountsConfig.Logger = logrus.StandardLogger().WithField("type", "accounts/badger")
	accts, err := accounts.NewBadgerDB(accountsConfig)
	if err != nil {
		return nil, fmt.Errorf("open accounts database: %w", err)
	}
	n.accounts = accts

	journalConfig := journal.DefaultConfig(filepath.Join(n.config.DataDir, "journal", "journal.db"))
	journalConfig.NoSync = !n.config.SyncWrites
	jrnl, err := journal.Open(journalConfig)
	if err != nil {
		accts.Close()
		return nil, fmt.Errorf("open journal: %w", err)
	}
	n.journal = jrnl

	if err := n.loadInitialSnapshot(); err != nil {
		n.closeStorage()
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	n.runtime = svm.New(accts, svm.Config{
		ComputeLimit: n.config.ComputeLimit,
		Rent:         n.config.Rent,
	})
	n.runtime.RegisterProgram(system.ProgramID, system.NewProcessor())
	n.runtime.RegisterProgram(n.config.ProgramID, nftinterface.NewProgram(nftinterface.DefaultSeeds()))

	n.log.WithFields(logrus.Fields{
		"data_dir":   n.config.DataDir,
		"program_id": n.config.ProgramID,
		"slot":       accts.GetSlot(),
	}).Info("node opened")
	return n, nil
}

// loadInitialSnapshot imports the configured snapshot into a fresh database.
// An already populated database is left alone.
func (n *Node) loadInitialSnapshot() error {
	if n.config.SnapshotPath == "" {
		return nil
	}
	count, err := n.accounts.AccountsCount()
	if err != nil {
		return err
	}
	if count > 0 {
		n.log.WithField("path", n.config.SnapshotPath).Info("accounts present, skipping snapshot")
		return nil
	}

	header, err := snapshot.ImportFile(n.config.SnapshotPath, n.accounts)
	if err != nil {
		return err
	}
	n.log.WithFields(logrus.Fields{
		"slot":     header.Slot,
		"accounts": header.AccountsCount,
		"hash":     header.AccountsHash,
	}).Info("snapshot loaded")
	return nil
}

func (n *Node) closeStorage() {
	if n.journal != nil {
		if err := n.journal.Close(); err != nil {
			n.log.WithError(err).Warn("failed to close journal")
		}
	}
	if n.accounts != nil {
		if err := n.accounts.Close(); err != nil {
			n.log.WithError(err).Warn("failed to close accounts database")
		}
	}
}

// ProgramID returns the address the NFT interface program is served at.
func (n *Node) ProgramID() types.Pubkey {
	return n.config.ProgramID
}

// LatestBlockhash returns a blockhash for new transactions.
func (n *Node) LatestBlockhash() types.Hash {
	slot := n.accounts.GetSlot()
	var buf [8]byte
	for i := range buf {
		buf[i] = byte(slot >> (8 * i))
	}
	return types.ComputeHash(buf[:])
}

// Submit executes tx and journals the outcome. A transaction rejected before
// execution (malformed, unsigned, replayed) is returned as an error and not
// journaled.
func (n *Node) Submit(tx *svm.Transaction) (*svm.ExecutionResult, error) {
	if n.closed.Load() {
		return nil, ErrClosed
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	signature := tx.Signature()
	if n.journal.Has(signature) {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyProcessed, signature)
	}

	result, err := n.runtime.ExecuteTransaction(tx)
	if err != nil {
		return nil, err
	}

	n.txsProcessed.Add(1)
	if !result.Success {
		n.txsFailed.Add(1)
	}

	entry := &journal.Entry{
		Signature:            signature,
		Slot:                 result.Slot,
		Success:              result.Success,
		Err:                  result.Error(),
		Instructions:         n.describe(tx),
		Accounts:             tx.Message.AccountKeys,
		ModifiedAccounts:     result.ModifiedAccounts,
		Logs:                 result.Logs,
		ComputeUnitsConsumed: result.ComputeUnitsConsumed,
		DeltaHash:            result.DeltaHash,
		BlockTime:            time.Now().Unix(),
	}
	if err := n.journal.Append(entry); err != nil {
		return nil, fmt.Errorf("journal transaction: %w", err)
	}

	n.log.WithFields(logrus.Fields{
		"signature": signature,
		"success":   result.Success,
		"cu":        result.ComputeUnitsConsumed,
	}).Info("transaction executed")

	if n.config.OnTransaction != nil {
		n.config.OnTransaction(result)
	}
	return result, nil
}

// describe names every instruction of tx for the journal.
func (n *Node) describe(tx *svm.Transaction) []string {
	names := make([]string, len(tx.Message.Instructions))
	for i, ix := range tx.Message.Instructions {
		programID := tx.Message.AccountKeys[ix.ProgramIDIndex]
		switch programID {
		case system.ProgramID:
			names[i] = "System Program"
		case n.config.ProgramID:
			args, err := nftinterface.DecodeInstruction(ix.Data)
			if err != nil {
				names[i] = "Invalid Nft Interface Instruction"
				continue
			}
			names[i] = args.Kind().String()
		default:
			names[i] = programID.String()
		}
	}
	return names
}

// Airdrop credits lamports to pubkey outside of any transaction.
func (n *Node) Airdrop(pubkey types.Pubkey, lamports uint64) error {
	if n.closed.Load() {
		return ErrClosed
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	acc, err := n.accounts.GetAccount(pubkey)
	if errors.Is(err, accounts.ErrAccountNotFound) {
		acc = &accounts.Account{Owner: system.ProgramID}
	} else if err != nil {
		return err
	}
	if acc.Lamports > ^uint64(0)-lamports {
		return ErrLamportOverflow
	}
	acc.Lamports += lamports

	if err := n.accounts.SetAccount(pubkey, acc); err != nil {
		return err
	}
	if err := n.accounts.Commit(); err != nil {
		return err
	}

	n.log.WithFields(logrus.Fields{
		"pubkey":   pubkey,
		"lamports": lamports,
	}).Info("airdrop")
	return nil
}

// Account returns the stored account at pubkey.
func (n *Node) Account(pubkey types.Pubkey) (*accounts.Account, error) {
	if n.closed.Load() {
		return nil, ErrClosed
	}
	return n.accounts.GetAccount(pubkey)
}

// ProgramAccounts returns every account owned by owner in pubkey order.
func (n *Node) ProgramAccounts(owner types.Pubkey) ([]accounts.AccountEntry, error) {
	if n.closed.Load() {
		return nil, ErrClosed
	}
	var entries []accounts.AccountEntry
	err := n.accounts.IterateAccounts(func(pubkey types.Pubkey, acc *accounts.Account) error {
		if acc.Owner == owner {
			entries = append(entries, accounts.AccountEntry{Pubkey: pubkey, Account: acc})
		}
		return nil
	})
	return entries, err
}

// Rent returns the rent configuration served to programs.
func (n *Node) Rent() types.Rent {
	return n.config.Rent
}

// Balance returns the lamports held at pubkey, zero for unknown accounts.
func (n *Node) Balance(pubkey types.Pubkey) (uint64, error) {
	acc, err := n.Account(pubkey)
	if errors.Is(err, accounts.ErrAccountNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return acc.Lamports, nil
}

// InterfaceRecord loads the interface record of authority.
func (n *Node) InterfaceRecord(authority types.Pubkey) (types.Pubkey, *nftinterface.InterfaceRecord, error) {
	address, _, err := nftinterface.DefaultSeeds().InterfaceAddress(n.config.ProgramID, authority)
	if err != nil {
		return types.Pubkey{}, nil, err
	}
	acc, err := n.ownedAccount(address)
	if err != nil {
		return address, nil, err
	}
	record, err := nftinterface.DecodeInterfaceRecord(acc.Data)
	return address, record, err
}

// WhitelistRecord loads the whitelist record binding authority to target.
func (n *Node) WhitelistRecord(authority, target types.Pubkey) (types.Pubkey, *nftinterface.WhitelistRecord, error) {
	address, _, err := nftinterface.DefaultSeeds().WhitelistAddress(n.config.ProgramID, authority, target)
	if err != nil {
		return types.Pubkey{}, nil, err
	}
	acc, err := n.ownedAccount(address)
	if err != nil {
		return address, nil, err
	}
	record, err := nftinterface.DecodeWhitelistRecord(acc.Data)
	return address, record, err
}

func (n *Node) ownedAccount(address types.Pubkey) (*accounts.Account, error) {
	acc, err := n.Account(address)
	if err != nil {
		return nil, err
	}
	if acc.Owner != n.config.ProgramID {
		return nil, nftinterface.IncorrectOwner
	}
	return acc, nil
}

// Transaction returns the journal entry of signature.
func (n *Node) Transaction(signature types.Signature) (*journal.Entry, error) {
	return n.journal.Get(signature)
}

// History returns the journaled transactions involving address, newest first.
func (n *Node) History(address types.Pubkey, opts *journal.QueryOptions) ([]*journal.Entry, error) {
	return n.journal.History(address, opts)
}

// ExportSnapshot writes the accounts state to path.
func (n *Node) ExportSnapshot(path string) (*snapshot.Header, error) {
	if n.closed.Load() {
		return nil, ErrClosed
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	return snapshot.ExportFile(n.accounts, path)
}

// Status contains node status information.
type Status struct {
	// Slot is the number of committed transactions.
	Slot uint64

	// AccountsCount is the total number of accounts in the database.
	AccountsCount uint64

	// TxsProcessed is the number of transactions executed since open.
	TxsProcessed uint64

	// TxsFailed is the number of executed transactions that did not commit.
	TxsFailed uint64

	// JournalEntries is the number of journaled transactions.
	JournalEntries uint64

	// Uptime is how long the node has been open.
	Uptime time.Duration
}

// Status returns the current node status.
func (n *Node) Status() Status {
	count, err := n.accounts.AccountsCount()
	if err != nil {
		n.log.WithError(err).Warn("failed to count accounts")
	}
	return Status{
		Slot:           n.accounts.GetSlot(),
		AccountsCount:  count,
		TxsProcessed:   n.txsProcessed.Load(),
		TxsFailed:      n.txsFailed.Load(),
		JournalEntries: n.journal.Count(),
		Uptime:         time.Since(n.startTime),
	}
}

// Close flushes and closes storage.
func (n *Node) Close() error {
	if n.closed.Swap(true) {
		return ErrClosed
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	var errs []error
	if err := n.journal.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close journal: %w", err))
	}
	if err := n.accounts.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close accounts: %w", err))
	}
	n.log.Info("node closed")
	return errors.Join(errs...)
}

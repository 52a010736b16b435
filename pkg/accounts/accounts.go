// Package accounts stores the ledger state: one record per account holding
// lamports, data, owner and flags.
//
// Two implementations are provided: MemoryDB for tests and ephemeral nodes,
// and BadgerDB for persistent state. Both commit a transaction's modified
// accounts as one atomic batch through SetAccounts.
package accounts

import (
	"encoding/binary"
	"errors"
	"sort"
	"sync"

	"github.com/fortiblox/X1-Interface/internal/types"
)

var (
	// ErrAccountNotFound is returned when an account doesn't exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrClosed is returned when operating on a closed database.
	ErrClosed = errors.New("database closed")

	// ErrInvalidData is returned when account data is malformed.
	ErrInvalidData = errors.New("invalid account data")
)

// MaxAccountDataSize bounds the data of a single account.
const MaxAccountDataSize = 10 * 1024 * 1024

// accountHeaderSize is the fixed part of a serialized account:
// lamports (8) + data_len (8) + owner (32) + executable (1) + rent_epoch (8).
const accountHeaderSize = 8 + 8 + 32 + 1 + 8

// Account is the stored state of one address.
type Account struct {
	Lamports   uint64
	Data       []byte
	Owner      types.Pubkey
	Executable bool
	RentEpoch  uint64
}

// Clone creates a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	c.Data = append([]byte(nil), a.Data...)
	return &c
}

// IsZero returns true if the account has no lamports and no data.
// Zero accounts are deleted from storage.
func (a *Account) IsZero() bool {
	return a.Lamports == 0 && len(a.Data) == 0
}

// Serialize encodes the account as
// lamports | data_len | data | owner | executable | rent_epoch.
func (a *Account) Serialize() []byte {
	buf := make([]byte, accountHeaderSize+len(a.Data))
	binary.LittleEndian.PutUint64(buf[0:], a.Lamports)
	binary.LittleEndian.PutUint64(buf[8:], uint64(len(a.Data)))
	off := 16 + copy(buf[16:], a.Data)
	off += copy(buf[off:], a.Owner[:])
	if a.Executable {
		buf[off] = 1
	}
	binary.LittleEndian.PutUint64(buf[off+1:], a.RentEpoch)
	return buf
}

// DeserializeAccount decodes an account encoded by Serialize.
func DeserializeAccount(data []byte) (*Account, error) {
	if len(data) < accountHeaderSize {
		return nil, ErrInvalidData
	}
	dataLen := binary.LittleEndian.Uint64(data[8:16])
	if dataLen > MaxAccountDataSize || uint64(len(data)) != accountHeaderSize+dataLen {
		return nil, ErrInvalidData
	}

	acc := &Account{
		Lamports: binary.LittleEndian.Uint64(data[0:8]),
		Data:     append([]byte(nil), data[16:16+dataLen]...),
	}
	off := 16 + int(dataLen)
	copy(acc.Owner[:], data[off:off+32])
	acc.Executable = data[off+32] != 0
	acc.RentEpoch = binary.LittleEndian.Uint64(data[off+33:])
	return acc, nil
}

// AccountEntry pairs a pubkey with its account.
type AccountEntry struct {
	Pubkey  types.Pubkey
	Account *Account
}

// DB is the accounts database interface.
// Implementations must be safe for concurrent use.
type DB interface {
	// GetAccount retrieves an account by public key.
	// Returns ErrAccountNotFound if the account doesn't exist.
	GetAccount(pubkey types.Pubkey) (*Account, error)

	// SetAccount stores an account. Zero accounts are deleted.
	SetAccount(pubkey types.Pubkey, account *Account) error

	// SetAccounts stores several accounts atomically.
	SetAccounts(entries []AccountEntry) error

	// DeleteAccount removes an account.
	// Returns nil if the account doesn't exist.
	DeleteAccount(pubkey types.Pubkey) error

	// HasAccount checks if an account exists.
	HasAccount(pubkey types.Pubkey) (bool, error)

	// IterateAccounts calls fn for every account in ascending pubkey order.
	// An error from fn stops the iteration and is returned.
	IterateAccounts(fn func(pubkey types.Pubkey, account *Account) error) error

	// GetSlot returns the ledger height, bumped once per committed
	// transaction.
	GetSlot() uint64

	// SetSlot updates the ledger height.
	SetSlot(slot uint64) error

	// AccountsCount returns the total number of accounts.
	AccountsCount() (uint64, error)

	// Commit persists pending metadata.
	Commit() error

	// Close closes the database.
	Close() error
}

// MemoryDB is an in-memory implementation of DB.
type MemoryDB struct {
	mu       sync.RWMutex
	accounts map[types.Pubkey]*Account
	slot     uint64
	closed   bool
}

// NewMemoryDB creates a new in-memory accounts database.
func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		accounts: make(map[types.Pubkey]*Account),
	}
}

// GetAccount retrieves an account.
func (m *MemoryDB) GetAccount(pubkey types.Pubkey) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	acc, ok := m.accounts[pubkey]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return acc.Clone(), nil
}

// SetAccount stores an account.
func (m *MemoryDB) SetAccount(pubkey types.Pubkey, account *Account) error {
	return m.SetAccounts([]AccountEntry{{Pubkey: pubkey, Account: account}})
}

// SetAccounts stores several accounts under one lock.
func (m *MemoryDB) SetAccounts(entries []AccountEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	for _, e := range entries {
		if e.Account == nil || e.Account.IsZero() {
			delete(m.accounts, e.Pubkey)
			continue
		}
		m.accounts[e.Pubkey] = e.Account.Clone()
	}
	return nil
}

// DeleteAccount removes an account.
func (m *MemoryDB) DeleteAccount(pubkey types.Pubkey) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	delete(m.accounts, pubkey)
	return nil
}

// HasAccount checks if an account exists.
func (m *MemoryDB) HasAccount(pubkey types.Pubkey) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return false, ErrClosed
	}
	_, ok := m.accounts[pubkey]
	return ok, nil
}

// IterateAccounts visits accounts in ascending pubkey order. fn receives
// copies and may call back into the database.
func (m *MemoryDB) IterateAccounts(fn func(pubkey types.Pubkey, account *Account) error) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return ErrClosed
	}
	entries := make([]AccountEntry, 0, len(m.accounts))
	for k, v := range m.accounts {
		entries = append(entries, AccountEntry{Pubkey: k, Account: v.Clone()})
	}
	m.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		return comparePubkeys(entries[i].Pubkey, entries[j].Pubkey) < 0
	})
	for _, e := range entries {
		if err := fn(e.Pubkey, e.Account); err != nil {
			return err
		}
	}
	return nil
}

// GetSlot returns the ledger height.
func (m *MemoryDB) GetSlot() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.slot
}

// SetSlot updates the ledger height.
func (m *MemoryDB) SetSlot(slot uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	m.slot = slot
	return nil
}

// AccountsCount returns the number of accounts.
func (m *MemoryDB) AccountsCount() (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, ErrClosed
	}
	return uint64(len(m.accounts)), nil
}

// Commit is a no-op for MemoryDB.
func (m *MemoryDB) Commit() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return ErrClosed
	}
	return nil
}

// Close closes the database.
func (m *MemoryDB) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.accounts = nil
	return nil
}

var _ DB = (*MemoryDB)(nil)

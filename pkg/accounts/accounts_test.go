package accounts

import (
	"bytes"
	"errors"
	"testing"

	"github.com/fortiblox/X1-Interface/internal/types"
)

func testPubkey(b byte) types.Pubkey {
	var p types.Pubkey
	p[0] = b
	p[31] = ^b
	return p
}

func TestAccountSerialization(t *testing.T) {
	account := &Account{
		Lamports:   1_000_000_000,
		Data:       []byte("test data"),
		Owner:      types.TokenProgramAddr,
		Executable: true,
		RentEpoch:  100,
	}

	restored, err := DeserializeAccount(account.Serialize())
	if err != nil {
		t.Fatalf("Failed to deserialize: %v", err)
	}
	if restored.Lamports != account.Lamports {
		t.Errorf("Lamports mismatch: got %d, want %d", restored.Lamports, account.Lamports)
	}
	if !bytes.Equal(restored.Data, account.Data) {
		t.Errorf("Data mismatch: got %v, want %v", restored.Data, account.Data)
	}
	if restored.Owner != account.Owner {
		t.Errorf("Owner mismatch: got %v, want %v", restored.Owner, account.Owner)
	}
	if !restored.Executable {
		t.Error("Executable flag lost")
	}
	if restored.RentEpoch != account.RentEpoch {
		t.Errorf("RentEpoch mismatch: got %d, want %d", restored.RentEpoch, account.RentEpoch)
	}
}

func TestDeserializeAccountRejectsTruncatedData(t *testing.T) {
	data := (&Account{Lamports: 1, Data: []byte{1, 2, 3}}).Serialize()

	for _, n := range []int{0, accountHeaderSize - 1, len(data) - 1} {
		if _, err := DeserializeAccount(data[:n]); !errors.Is(err, ErrInvalidData) {
			t.Errorf("len %d: got %v, want ErrInvalidData", n, err)
		}
	}
	if _, err := DeserializeAccount(append(data, 0)); !errors.Is(err, ErrInvalidData) {
		t.Errorf("trailing byte: got %v, want ErrInvalidData", err)
	}
}

func testDB(t *testing.T, db DB) {
	t.Helper()

	pubkey := testPubkey(1)
	account := &Account{Lamports: 500, Data: []byte("account data"), Owner: types.SystemProgramAddr}

	if err := db.SetAccount(pubkey, account); err != nil {
		t.Fatalf("SetAccount failed: %v", err)
	}
	exists, err := db.HasAccount(pubkey)
	if err != nil || !exists {
		t.Fatalf("HasAccount: got %v, %v", exists, err)
	}

	retrieved, err := db.GetAccount(pubkey)
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}
	if retrieved.Lamports != 500 || !bytes.Equal(retrieved.Data, account.Data) {
		t.Errorf("Retrieved account mismatch: %+v", retrieved)
	}

	// Mutating the returned copy must not leak into the store.
	retrieved.Data[0] = 'X'
	again, _ := db.GetAccount(pubkey)
	if again.Data[0] != 'a' {
		t.Error("GetAccount returned shared data")
	}

	err = db.SetAccounts([]AccountEntry{
		{Pubkey: testPubkey(3), Account: &Account{Lamports: 3}},
		{Pubkey: testPubkey(2), Account: &Account{Lamports: 2}},
		{Pubkey: pubkey, Account: &Account{}},
	})
	if err != nil {
		t.Fatalf("SetAccounts failed: %v", err)
	}
	if _, err := db.GetAccount(pubkey); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("zero account should be deleted, got %v", err)
	}

	count, err := db.AccountsCount()
	if err != nil {
		t.Fatalf("AccountsCount failed: %v", err)
	}
	if count != 2 {
		t.Errorf("AccountsCount: got %d, want 2", count)
	}

	var order []types.Pubkey
	err = db.IterateAccounts(func(pubkey types.Pubkey, account *Account) error {
		order = append(order, pubkey)
		return nil
	})
	if err != nil {
		t.Fatalf("IterateAccounts failed: %v", err)
	}
	if len(order) != 2 || order[0] != testPubkey(2) || order[1] != testPubkey(3) {
		t.Errorf("IterateAccounts order: got %v", order)
	}

	stop := errors.New("stop")
	if err := db.IterateAccounts(func(types.Pubkey, *Account) error { return stop }); !errors.Is(err, stop) {
		t.Errorf("IterateAccounts should return callback error, got %v", err)
	}

	if err := db.DeleteAccount(testPubkey(2)); err != nil {
		t.Fatalf("DeleteAccount failed: %v", err)
	}
	if err := db.DeleteAccount(testPubkey(9)); err != nil {
		t.Fatalf("DeleteAccount of missing account failed: %v", err)
	}
	if count, _ := db.AccountsCount(); count != 1 {
		t.Errorf("AccountsCount after delete: got %d, want 1", count)
	}

	if err := db.SetSlot(100); err != nil {
		t.Fatalf("SetSlot failed: %v", err)
	}
	if db.GetSlot() != 100 {
		t.Errorf("GetSlot: got %d, want 100", db.GetSlot())
	}
	if err := db.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
}

func TestMemoryDB(t *testing.T) {
	db := NewMemoryDB()
	testDB(t, db)

	if err := db.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := db.GetAccount(testPubkey(3)); !errors.Is(err, ErrClosed) {
		t.Errorf("GetAccount after close: got %v, want ErrClosed", err)
	}
}

func TestBadgerDB(t *testing.T) {
	db, err := NewBadgerDB(BadgerDBConfig{InMemory: true})
	if err != nil {
		t.Fatalf("NewBadgerDB failed: %v", err)
	}
	testDB(t, db)

	if err := db.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := db.Close(); !errors.Is(err, ErrClosed) {
		t.Errorf("second Close: got %v, want ErrClosed", err)
	}
}

func TestBadgerDBPersistsMetadata(t *testing.T) {
	dir := t.TempDir()

	db, err := NewBadgerDB(DefaultBadgerDBConfig(dir))
	if err != nil {
		t.Fatalf("NewBadgerDB failed: %v", err)
	}
	if err := db.SetAccount(testPubkey(1), &Account{Lamports: 7}); err != nil {
		t.Fatalf("SetAccount failed: %v", err)
	}
	if err := db.SetSlot(42); err != nil {
		t.Fatalf("SetSlot failed: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	db, err = NewBadgerDB(DefaultBadgerDBConfig(dir))
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer db.Close()

	if db.GetSlot() != 42 {
		t.Errorf("GetSlot after reopen: got %d, want 42", db.GetSlot())
	}
	if count, _ := db.AccountsCount(); count != 1 {
		t.Errorf("AccountsCount after reopen: got %d, want 1", count)
	}
	acc, err := db.GetAccount(testPubkey(1))
	if err != nil || acc.Lamports != 7 {
		t.Errorf("GetAccount after reopen: got %+v, %v", acc, err)
	}
}

func TestAccountHash(t *testing.T) {
	account := &Account{Lamports: 1_000_000_000, Data: []byte{1, 2, 3}, Owner: types.SystemProgramAddr}

	h1 := ComputeAccountHash(testPubkey(1), account)
	h2 := ComputeAccountHash(testPubkey(1), account)
	if h1 != h2 {
		t.Error("Same account should produce same hash")
	}
	if h1 == (types.Hash{}) {
		t.Error("Hash should not be zero")
	}
	if ComputeAccountHash(testPubkey(2), account) == h1 {
		t.Error("Different pubkey should produce different hash")
	}

	modified := account.Clone()
	modified.Lamports++
	if ComputeAccountHash(testPubkey(1), modified) == h1 {
		t.Error("Different lamports should produce different hash")
	}
	if ComputeAccountHash(testPubkey(1), &Account{}) != (types.Hash{}) {
		t.Error("Zero account should hash to zero")
	}
}

func TestMerkleRoot(t *testing.T) {
	if ComputeMerkleRoot(nil) != (types.Hash{}) {
		t.Error("Empty root should be zero")
	}

	a, b, c := types.ComputeHash([]byte("a")), types.ComputeHash([]byte("b")), types.ComputeHash([]byte("c"))
	if ComputeMerkleRoot([]types.Hash{a, b}) == ComputeMerkleRoot([]types.Hash{b, a}) {
		t.Error("Merkle root should depend on order")
	}
	if ComputeMerkleRoot([]types.Hash{a, b, c}) == ComputeMerkleRoot([]types.Hash{a, b}) {
		t.Error("Merkle root should depend on every leaf")
	}
}

func TestDeltaHashIgnoresInputOrder(t *testing.T) {
	e1 := AccountEntry{Pubkey: testPubkey(1), Account: &Account{Lamports: 1}}
	e2 := AccountEntry{Pubkey: testPubkey(2), Account: &Account{Lamports: 2}}

	if ComputeDeltaHash([]AccountEntry{e1, e2}) != ComputeDeltaHash([]AccountEntry{e2, e1}) {
		t.Error("Delta hash should not depend on input order")
	}
}

func TestAccountsHash(t *testing.T) {
	db := NewMemoryDB()
	db.SetAccount(testPubkey(1), &Account{Lamports: 1})
	db.SetAccount(testPubkey(2), &Account{Lamports: 2})

	h, err := ComputeAccountsHash(db)
	if err != nil {
		t.Fatalf("ComputeAccountsHash failed: %v", err)
	}
	if err := VerifyAccountsHash(db, h); err != nil {
		t.Errorf("VerifyAccountsHash failed: %v", err)
	}

	db.SetAccount(testPubkey(2), &Account{Lamports: 3})
	if err := VerifyAccountsHash(db, h); !errors.Is(err, ErrHashMismatch) {
		t.Errorf("VerifyAccountsHash: got %v, want ErrHashMismatch", err)
	}
}

func TestSortPubkeys(t *testing.T) {
	keys := []types.Pubkey{testPubkey(3), testPubkey(1), testPubkey(2)}
	SortPubkeys(keys)
	for i := 1; i < len(keys); i++ {
		if comparePubkeys(keys[i-1], keys[i]) >= 0 {
			t.Errorf("Pubkeys not sorted at %d", i)
		}
	}
}

func TestAccountClone(t *testing.T) {
	original := &Account{Lamports: 1000, Data: []byte{1, 2, 3}, RentEpoch: 50}
	clone := original.Clone()
	clone.Data[0] = 99
	clone.Lamports = 2000

	if original.Data[0] != 1 || original.Lamports != 1000 {
		t.Error("Clone shares state with original")
	}
	var nilAccount *Account
	if nilAccount.Clone() != nil {
		t.Error("Clone of nil should be nil")
	}
}

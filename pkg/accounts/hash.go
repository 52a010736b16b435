package accounts

import (
	"bytes"
	"encoding/binary"
	"errors"
	"sort"

	"github.com/zeebo/blake3"

	"github.com/fortiblox/X1-Interface/internal/types"
)

// ComputeAccountHash hashes the account fields with BLAKE3:
// lamports || rent_epoch || data || executable || owner || pubkey.
// Zero accounts hash to the zero hash.
func ComputeAccountHash(pubkey types.Pubkey, account *Account) types.Hash {
	if account == nil || account.IsZero() {
		return types.Hash{}
	}

	h := blake3.New()
	var u64 [8]byte
	binary.LittleEndian.PutUint64(u64[:], account.Lamports)
	h.Write(u64[:])
	binary.LittleEndian.PutUint64(u64[:], account.RentEpoch)
	h.Write(u64[:])
	h.Write(account.Data)
	if account.Executable {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}
	h.Write(account.Owner[:])
	h.Write(pubkey[:])

	var out types.Hash
	copy(out[:], h.Sum(nil))
	return out
}

// ComputeDeltaHash hashes a set of modified accounts. Entries are sorted by
// pubkey first, so the result does not depend on input order.
func ComputeDeltaHash(entries []AccountEntry) types.Hash {
	sorted := append([]AccountEntry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool {
		return comparePubkeys(sorted[i].Pubkey, sorted[j].Pubkey) < 0
	})

	hashes := make([]types.Hash, len(sorted))
	for i, e := range sorted {
		hashes[i] = ComputeAccountHash(e.Pubkey, e.Account)
	}
	return ComputeMerkleRoot(hashes)
}

// ComputeAccountsHash hashes the full state of db.
func ComputeAccountsHash(db DB) (types.Hash, error) {
	var hashes []types.Hash
	err := db.IterateAccounts(func(pubkey types.Pubkey, account *Account) error {
		hashes = append(hashes, ComputeAccountHash(pubkey, account))
		return nil
	})
	if err != nil {
		return types.Hash{}, err
	}
	return ComputeMerkleRoot(hashes), nil
}

// ComputeMerkleRoot computes a binary Merkle root.
//
//	leaf: BLAKE3(0x00 || hash)
//	node: BLAKE3(0x01 || left || right)
//
// An odd node is paired with the zero hash.
func ComputeMerkleRoot(hashes []types.Hash) types.Hash {
	if len(hashes) == 0 {
		return types.Hash{}
	}

	level := make([]types.Hash, len(hashes))
	for i, h := range hashes {
		level[i] = hashParts([]byte{0x00}, h[:])
	}
	for len(level) > 1 {
		next := make([]types.Hash, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			var right types.Hash
			if i+1 < len(level) {
				right = level[i+1]
			}
			next[i/2] = hashParts([]byte{0x01}, level[i][:], right[:])
		}
		level = next
	}
	return level[0]
}

func hashParts(parts ...[]byte) types.Hash {
	return types.ComputeHash(bytes.Join(parts, nil))
}

// ErrHashMismatch is returned when a recomputed hash differs from the
// expected one.
var ErrHashMismatch = errors.New("accounts hash mismatch")

// VerifyAccountsHash recomputes the state hash of db and compares it with
// expected.
func VerifyAccountsHash(db DB, expected types.Hash) error {
	got, err := ComputeAccountsHash(db)
	if err != nil {
		return err
	}
	if got != expected {
		return ErrHashMismatch
	}
	return nil
}

// comparePubkeys compares two pubkeys lexicographically.
func comparePubkeys(a, b types.Pubkey) int {
	return bytes.Compare(a[:], b[:])
}

// SortPubkeys sorts a slice of pubkeys in ascending order.
func SortPubkeys(pubkeys []types.Pubkey) {
	sort.Slice(pubkeys, func(i, j int) bool {
		return comparePubkeys(pubkeys[i], pubkeys[j]) < 0
	})
}

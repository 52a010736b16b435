// Package journal provides persistent storage for executed transactions.
//
// Every transaction the node executes, successful or not, is appended with
// its logs and outcome. An address index answers "which transactions touched
// this account", newest first.
package journal

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/fortiblox/X1-Interface/internal/types"
)

var (
	// ErrEntryNotFound is returned when a transaction isn't journaled.
	ErrEntryNotFound = errors.New("transaction not found")

	// ErrDuplicateSignature is returned when appending a known signature.
	ErrDuplicateSignature = errors.New("transaction already journaled")

	// ErrClosed is returned when operating on a closed journal.
	ErrClosed = errors.New("journal closed")
)

// Bucket names for BoltDB.
var (
	// bucketEntries stores entries keyed by signature.
	bucketEntries = []byte("entries")

	// bucketAddressSignatures indexes signatures by address+sequence.
	bucketAddressSignatures = []byte("addr_sigs")

	// bucketMetadata stores journal metadata.
	bucketMetadata = []byte("metadata")
)

var keySequence = []byte("sequence")

// DefaultHistoryLimit caps History when no limit is given.
const DefaultHistoryLimit = 1000

// Config holds journal configuration options.
type Config struct {
	// Path is the database file.
	Path string

	// NoSync disables fsync after each write (faster but less durable).
	NoSync bool

	// Timeout bounds the wait for the file lock.
	Timeout time.Duration
}

// DefaultConfig returns the default journal configuration.
func DefaultConfig(path string) Config {
	return Config{
		Path:    path,
		Timeout: 5 * time.Second,
	}
}

// Entry is one executed transaction.
type Entry struct {
	Signature types.Signature

	// Sequence orders entries by append time, starting at 1.
	Sequence uint64

	// Slot is the ledger height the transaction executed at.
	Slot uint64

	Success bool
	Err     string

	// Instructions holds a readable name for each instruction.
	Instructions []string

	// Accounts lists every account key of the message.
	Accounts []types.Pubkey

	ModifiedAccounts     []types.Pubkey
	Logs                 []string
	ComputeUnitsConsumed uint64
	DeltaHash            types.Hash
	BlockTime            int64
}

// QueryOptions configures History.
type QueryOptions struct {
	// Limit is the maximum number of entries to return.
	Limit int

	// Before returns entries older than (not including) this signature.
	Before *types.Signature
}

// Store is a BoltDB-backed journal.
type Store struct {
	db *bolt.DB

	mu       sync.RWMutex
	sequence uint64
	closed   bool
}

// Open creates or opens a journal.
func Open(config Config) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(config.Path), 0755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	db, err := bolt.Open(config.Path, 0600, &bolt.Options{
		Timeout: config.Timeout,
		NoSync:  config.NoSync,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketEntries, bucketAddressSignatures, bucketMetadata} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		if v := tx.Bucket(bucketMetadata).Get(keySequence); v != nil {
			s.sequence = decodeUint64(v)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Append journals entry and indexes it under every account it lists.
// entry.Sequence is assigned by the store.
func (s *Store) Append(entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	seq := s.sequence + 1
	err := s.db.Update(func(tx *bolt.Tx) error {
		entries := tx.Bucket(bucketEntries)
		if entries.Get(entry.Signature[:]) != nil {
			return fmt.Errorf("%w: %s", ErrDuplicateSignature, entry.Signature)
		}

		stored := *entry
		stored.Sequence = seq

		var buf bytes.Buffer
		if err := gob.NewEncoder(&buf).Encode(&stored); err != nil {
			return fmt.Errorf("encode entry: %w", err)
		}
		if err := entries.Put(entry.Signature[:], buf.Bytes()); err != nil {
			return err
		}

		index := tx.Bucket(bucketAddressSignatures)
		seen := make(map[types.Pubkey]bool, len(entry.Accounts))
		for _, addr := range entry.Accounts {
			if seen[addr] {
				continue
			}
			seen[addr] = true
			if err := index.Put(encodeAddressKey(addr, seq), entry.Signature[:]); err != nil {
				return err
			}
		}

		return tx.Bucket(bucketMetadata).Put(keySequence, encodeUint64(seq))
	})
	if err != nil {
		return err
	}

	s.sequence = seq
	entry.Sequence = seq
	return nil
}

// Get retrieves an entry by signature.
func (s *Store) Get(signature types.Signature) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	var entry *Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		entry, err = getEntry(tx, signature)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Has reports whether signature is journaled.
func (s *Store) Has(signature types.Signature) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false
	}

	var found bool
	s.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(bucketEntries).Get(signature[:]) != nil
		return nil
	})
	return found
}

// History returns entries involving address, newest first.
func (s *Store) History(address types.Pubkey, opts *QueryOptions) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	limit := DefaultHistoryLimit
	if opts != nil && opts.Limit > 0 {
		limit = opts.Limit
	}

	var results []*Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		// Start from the highest sequence unless a cursor entry is given.
		startKey := encodeAddressKey(address, ^uint64(0))
		if opts != nil && opts.Before != nil {
			before, err := getEntry(tx, *opts.Before)
			if err != nil {
				return err
			}
			if before.Sequence == 0 {
				return nil
			}
			startKey = encodeAddressKey(address, before.Sequence-1)
		}

		prefix := address[:]
		c := tx.Bucket(bucketAddressSignatures).Cursor()

		// Seek positions at the first key >= startKey; step back when that
		// key is past the one we want.
		k, v := c.Seek(startKey)
		switch {
		case k == nil:
			k, v = c.Last()
		case !bytes.Equal(k, startKey):
			k, v = c.Prev()
		}

		for ; k != nil && bytes.HasPrefix(k, prefix); k, v = c.Prev() {
			sig, err := types.SignatureFromBytes(v)
			if err != nil {
				return fmt.Errorf("corrupt index entry: %w", err)
			}
			entry, err := getEntry(tx, sig)
			if err != nil {
				return err
			}
			results = append(results, entry)
			if len(results) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// Count returns the number of journaled transactions.
func (s *Store) Count() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sequence
}

// Close closes the journal. Closing twice is a no-op.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func getEntry(tx *bolt.Tx, signature types.Signature) (*Entry, error) {
	data := tx.Bucket(bucketEntries).Get(signature[:])
	if data == nil {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, signature)
	}
	var entry Entry
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&entry); err != nil {
		return nil, fmt.Errorf("decode entry %s: %w", signature, err)
	}
	return &entry, nil
}

// encodeAddressKey encodes an address+sequence composite key.
// Format: [32-byte address][8-byte sequence big-endian]
func encodeAddressKey(addr types.Pubkey, seq uint64) []byte {
	key := make([]byte, 40)
	copy(key[:32], addr[:])
	binary.BigEndian.PutUint64(key[32:], seq)
	return key
}

func encodeUint64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func decodeUint64(b []byte) uint64 {
	if len(b) < 8 {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

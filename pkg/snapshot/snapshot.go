// Package snapshot exports and imports the full accounts state.
//
// Snapshot format:
//   - Magic (4 bytes): "X1NI"
//   - Version (4 bytes, little-endian)
//   - Slot (8 bytes, little-endian)
//   - AccountsCount (8 bytes, little-endian)
//   - AccountsHash (32 bytes)
//   - Accounts data (zstd compressed), in ascending pubkey order:
//   - For each account:
//   - Pubkey (32 bytes)
//   - AccountSize (4 bytes, little-endian)
//   - AccountData (variable, serialized account)
package snapshot

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/fortiblox/X1-Interface/internal/types"
	"github.com/fortiblox/X1-Interface/pkg/accounts"
)

// Snapshot file format version.
const Version uint32 = 1

// headerSize is the uncompressed header length.
const headerSize = 4 + 4 + 8 + 8 + 32

// importBatch is the number of accounts written per SetAccounts call.
const importBatch = 1024

// Snapshot file magic bytes for format validation.
var magic = []byte{'X', '1', 'N', 'I'}

var (
	// ErrInvalidMagic indicates the file is not a snapshot.
	ErrInvalidMagic = errors.New("invalid snapshot magic")

	// ErrUnsupportedVersion indicates the snapshot version is not supported.
	ErrUnsupportedVersion = errors.New("unsupported snapshot version")

	// ErrCorruptedData indicates data corruption was detected.
	ErrCorruptedData = errors.New("corrupted snapshot data")

	// ErrHashMismatch indicates the computed hash doesn't match the header.
	ErrHashMismatch = errors.New("snapshot hash mismatch")

	// ErrNotEmpty is returned when importing into a database holding accounts.
	ErrNotEmpty = errors.New("accounts database is not empty")
)

// Header contains metadata about a snapshot.
type Header struct {
	Version       uint32
	Slot          uint64
	AccountsCount uint64
	AccountsHash  types.Hash
}

func (h *Header) marshal() []byte {
	buf := make([]byte, headerSize)
	copy(buf[0:4], magic)
	binary.LittleEndian.PutUint32(buf[4:8], h.Version)
	binary.LittleEndian.PutUint64(buf[8:16], h.Slot)
	binary.LittleEndian.PutUint64(buf[16:24], h.AccountsCount)
	copy(buf[24:56], h.AccountsHash[:])
	return buf
}

// ReadHeader reads and validates a snapshot header.
func ReadHeader(r io.Reader) (*Header, error) {
	buf := make([]byte, headerSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("%w: read header: %v", ErrCorruptedData, err)
	}
	if !bytes.Equal(buf[0:4], magic) {
		return nil, ErrInvalidMagic
	}

	h := &Header{
		Version:       binary.LittleEndian.Uint32(buf[4:8]),
		Slot:          binary.LittleEndian.Uint64(buf[8:16]),
		AccountsCount: binary.LittleEndian.Uint64(buf[16:24]),
	}
	copy(h.AccountsHash[:], buf[24:56])
	if h.Version != Version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}
	return h, nil
}

// Export writes every account of db to w.
func Export(db accounts.DB, w io.Writer) (*Header, error) {
	hash, err := accounts.ComputeAccountsHash(db)
	if err != nil {
		return nil, fmt.Errorf("compute accounts hash: %w", err)
	}
	count, err := db.AccountsCount()
	if err != nil {
		return nil, err
	}

	header := &Header{
		Version:       Version,
		Slot:          db.GetSlot(),
		AccountsCount: count,
		AccountsHash:  hash,
	}
	if _, err := w.Write(header.marshal()); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	enc, err := zstd.NewWriter(w)
	if err != nil {
		return nil, err
	}
	bw := bufio.NewWriter(enc)

	var written uint64
	sizeBuf := make([]byte, 4)
	err = db.IterateAccounts(func(pubkey types.Pubkey, account *accounts.Account) error {
		data := account.Serialize()
		binary.LittleEndian.PutUint32(sizeBuf, uint32(len(data)))
		if _, err := bw.Write(pubkey[:]); err != nil {
			return err
		}
		if _, err := bw.Write(sizeBuf); err != nil {
			return err
		}
		if _, err := bw.Write(data); err != nil {
			return err
		}
		written++
		return nil
	})
	if err == nil {
		err = bw.Flush()
	}
	if closeErr := enc.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, fmt.Errorf("write accounts: %w", err)
	}
	if written != count {
		return nil, fmt.Errorf("%w: exported %d accounts, expected %d", ErrCorruptedData, written, count)
	}
	return header, nil
}

// ExportFile writes a snapshot of db to path.
func ExportFile(db accounts.DB, path string) (*Header, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create snapshot directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create snapshot file: %w", err)
	}

	header, err := Export(db, file)
	if err != nil {
		file.Close()
		os.Remove(path)
		return nil, err
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return nil, err
	}
	return header, file.Close()
}

// Import loads a snapshot from r into an empty db, then verifies the
// account count and accounts hash against the header.
func Import(r io.Reader, db accounts.DB) (*Header, error) {
	count, err := db.AccountsCount()
	if err != nil {
		return nil, err
	}
	if count != 0 {
		return nil, fmt.Errorf("%w: %d accounts", ErrNotEmpty, count)
	}

	header, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}

	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptedData, err)
	}
	defer dec.Close()
	br := bufio.NewReader(dec)

	var (
		loaded uint64
		batch  []accounts.AccountEntry
	)
	record := make([]byte, 32+4)
	for {
		if _, err := io.ReadFull(br, record); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("%w: account %d: %v", ErrCorruptedData, loaded, err)
		}

		var pubkey types.Pubkey
		copy(pubkey[:], record[:32])
		size := binary.LittleEndian.Uint32(record[32:])
		if size > accounts.MaxAccountDataSize+128 {
			return nil, fmt.Errorf("%w: account %s size %d", ErrCorruptedData, pubkey, size)
		}

		data := make([]byte, size)
		if _, err := io.ReadFull(br, data); err != nil {
			return nil, fmt.Errorf("%w: account %s: %v", ErrCorruptedData, pubkey, err)
		}
		account, err := accounts.DeserializeAccount(data)
		if err != nil {
			return nil, fmt.Errorf("%w: account %s: %v", ErrCorruptedData, pubkey, err)
		}

		batch = append(batch, accounts.AccountEntry{Pubkey: pubkey, Account: account})
		loaded++
		if len(batch) == importBatch {
			if err := db.SetAccounts(batch); err != nil {
				return nil, err
			}
			batch = batch[:0]
		}
	}
	if err := db.SetAccounts(batch); err != nil {
		return nil, err
	}

	if loaded != header.AccountsCount {
		return nil, fmt.Errorf("%w: loaded %d accounts, header says %d", ErrCorruptedData, loaded, header.AccountsCount)
	}
	if err := accounts.VerifyAccountsHash(db, header.AccountsHash); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHashMismatch, err)
	}

	if err := db.SetSlot(header.Slot); err != nil {
		return nil, err
	}
	if err := db.Commit(); err != nil {
		return nil, err
	}
	return header, nil
}

// ImportFile loads the snapshot at path into db.
func ImportFile(path string, db accounts.DB) (*Header, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer file.Close()

	return Import(bufio.NewReader(file), db)
}

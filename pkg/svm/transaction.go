package svm

import (
	"bytes"
	"crypto/ed25519"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/fortiblox/X1-Interface/internal/types"
	"github.com/fortiblox/X1-Interface/pkg/svm/syscall"
)

// Transaction errors.
var (
	ErrInvalidTransaction    = errors.New("invalid transaction")
	ErrSignatureVerification = errors.New("signature verification failed")
	ErrMissingSigner         = errors.New("missing signer key")
	ErrTooManyAccounts       = errors.New("too many account keys")
)

// MessageHeader describes the account types in a transaction.
type MessageHeader struct {
	// NumRequiredSignatures is the number of signatures required.
	NumRequiredSignatures uint8

	// NumReadonlySignedAccounts is the number of readonly signer accounts.
	NumReadonlySignedAccounts uint8

	// NumReadonlyUnsignedAccounts is the number of readonly non-signer accounts.
	NumReadonlyUnsignedAccounts uint8
}

// CompiledInstruction references its program and accounts by index into the
// message account keys.
type CompiledInstruction struct {
	ProgramIDIndex uint8
	AccountIndexes []uint8
	Data           []byte
}

// Message is the signed part of a transaction.
type Message struct {
	Header          MessageHeader
	AccountKeys     []types.Pubkey
	RecentBlockhash types.Hash
	Instructions    []CompiledInstruction
}

// Transaction is a signed message.
type Transaction struct {
	Signatures []types.Signature
	Message    Message
}

type keyMeta struct {
	pubkey     types.Pubkey
	isSigner   bool
	isWritable bool
	isPayer    bool
}

// NewTransaction compiles instructions into an unsigned transaction.
//
// Account keys are ordered: payer first, then signers before non-signers and
// writable before read-only, keeping first-appearance order within each group.
// Program ids are read-only non-signers.
func NewTransaction(payer types.Pubkey, blockhash types.Hash, instructions ...syscall.Instruction) (*Transaction, error) {
	metas := []keyMeta{{pubkey: payer, isSigner: true, isWritable: true, isPayer: true}}
	index := map[types.Pubkey]int{payer: 0}

	add := func(pubkey types.Pubkey, isSigner, isWritable bool) {
		if i, ok := index[pubkey]; ok {
			metas[i].isSigner = metas[i].isSigner || isSigner
			metas[i].isWritable = metas[i].isWritable || isWritable
			return
		}
		index[pubkey] = len(metas)
		metas = append(metas, keyMeta{pubkey: pubkey, isSigner: isSigner, isWritable: isWritable})
	}
	for _, ix := range instructions {
		for _, a := range ix.Accounts {
			add(a.Pubkey, a.IsSigner, a.IsWritable)
		}
		add(ix.ProgramID, false, false)
	}
	if len(metas) > 256 {
		return nil, fmt.Errorf("%w: %d", ErrTooManyAccounts, len(metas))
	}

	sort.SliceStable(metas, func(i, j int) bool {
		return metaRank(metas[i]) < metaRank(metas[j])
	})

	var m Message
	m.RecentBlockhash = blockhash
	positions := make(map[types.Pubkey]uint8, len(metas))
	for i, meta := range metas {
		positions[meta.pubkey] = uint8(i)
		m.AccountKeys = append(m.AccountKeys, meta.pubkey)

		if meta.isSigner {
			m.Header.NumRequiredSignatures++
			if !meta.isWritable {
				m.Header.NumReadonlySignedAccounts++
			}
		} else if !meta.isWritable {
			m.Header.NumReadonlyUnsignedAccounts++
		}
	}

	for _, ix := range instructions {
		c := CompiledInstruction{
			ProgramIDIndex: positions[ix.ProgramID],
			AccountIndexes: make([]uint8, len(ix.Accounts)),
			Data:           append([]byte(nil), ix.Data...),
		}
		for i, a := range ix.Accounts {
			c.AccountIndexes[i] = positions[a.Pubkey]
		}
		m.Instructions = append(m.Instructions, c)
	}

	return &Transaction{
		Signatures: make([]types.Signature, m.Header.NumRequiredSignatures),
		Message:    m,
	}, nil
}

func metaRank(m keyMeta) int {
	switch {
	case m.isPayer:
		return 0
	case m.isSigner && m.isWritable:
		return 1
	case m.isSigner:
		return 2
	case m.isWritable:
		return 3
	default:
		return 4
	}
}

// Sign signs the message with every provided key that is a required signer.
// It fails if a required signer has no key and no signature yet.
func (tx *Transaction) Sign(keys ...ed25519.PrivateKey) error {
	message := tx.Message.Serialize()
	required := tx.Message.Signers()
	if len(tx.Signatures) != len(required) {
		tx.Signatures = make([]types.Signature, len(required))
	}

	for _, key := range keys {
		pubkey := types.PubkeyFromPrivateKey(key)
		for i, signer := range required {
			if signer == pubkey {
				copy(tx.Signatures[i][:], ed25519.Sign(key, message))
			}
		}
	}

	for i, sig := range tx.Signatures {
		if sig.IsZero() {
			return fmt.Errorf("%w: %s", ErrMissingSigner, required[i])
		}
	}
	return nil
}

// Signature returns the first signature, used as the transaction id.
func (tx *Transaction) Signature() types.Signature {
	if len(tx.Signatures) == 0 {
		return types.Signature{}
	}
	return tx.Signatures[0]
}

// Signers returns the keys that must sign the message.
func (m *Message) Signers() []types.Pubkey {
	n := int(m.Header.NumRequiredSignatures)
	if n > len(m.AccountKeys) {
		n = len(m.AccountKeys)
	}
	return m.AccountKeys[:n]
}

// IsWritable reports whether the account at index is writable per the header.
func (m *Message) IsWritable(index int) bool {
	return isAccountWritable(index,
		int(m.Header.NumRequiredSignatures),
		int(m.Header.NumReadonlySignedAccounts),
		int(m.Header.NumReadonlyUnsignedAccounts),
		len(m.AccountKeys))
}

// IsSigner reports whether the account at index signed the message.
func (m *Message) IsSigner(index int) bool {
	return index < int(m.Header.NumRequiredSignatures)
}

// isAccountWritable determines if an account is writable based on its position.
func isAccountWritable(index, numSigners, numReadonlySigned, numReadonlyUnsigned, total int) bool {
	if index < numSigners {
		// Signer accounts: first (numSigners - numReadonlySigned) are writable
		return index < (numSigners - numReadonlySigned)
	}
	// Non-signer accounts: first (total - numSigners - numReadonlyUnsigned) are writable
	nonSignerIndex := index - numSigners
	numWritableUnsigned := total - numSigners - numReadonlyUnsigned
	return nonSignerIndex < numWritableUnsigned
}

// Serialize encodes the message in the legacy wire format. This is the byte
// string covered by the signatures.
func (m *Message) Serialize() []byte {
	b := bytes.NewBuffer(nil)

	// Header
	b.WriteByte(m.Header.NumRequiredSignatures)
	b.WriteByte(m.Header.NumReadonlySignedAccounts)
	b.WriteByte(m.Header.NumReadonlyUnsignedAccounts)

	// Accounts
	writeShortVecLen(b, len(m.AccountKeys))
	for _, key := range m.AccountKeys {
		b.Write(key[:])
	}

	// Recent Blockhash
	b.Write(m.RecentBlockhash[:])

	// Instructions
	writeShortVecLen(b, len(m.Instructions))
	for _, ix := range m.Instructions {
		b.WriteByte(ix.ProgramIDIndex)

		writeShortVecLen(b, len(ix.AccountIndexes))
		b.Write(ix.AccountIndexes)

		writeShortVecLen(b, len(ix.Data))
		b.Write(ix.Data)
	}

	return b.Bytes()
}

// Validate checks the structure of the message against its header.
func (m *Message) Validate() error {
	h := m.Header
	if h.NumRequiredSignatures == 0 {
		return fmt.Errorf("%w: no required signatures", ErrInvalidTransaction)
	}
	if int(h.NumRequiredSignatures)+int(h.NumReadonlyUnsignedAccounts) > len(m.AccountKeys) {
		return fmt.Errorf("%w: header exceeds %d account keys", ErrInvalidTransaction, len(m.AccountKeys))
	}
	if h.NumReadonlySignedAccounts >= h.NumRequiredSignatures {
		return fmt.Errorf("%w: fee payer must be writable", ErrInvalidTransaction)
	}

	seen := make(map[types.Pubkey]bool, len(m.AccountKeys))
	for _, key := range m.AccountKeys {
		if seen[key] {
			return fmt.Errorf("%w: duplicate account key %s", ErrInvalidTransaction, key)
		}
		seen[key] = true
	}

	for i, ix := range m.Instructions {
		if int(ix.ProgramIDIndex) >= len(m.AccountKeys) {
			return fmt.Errorf("%w: instruction %d: program index %d out of range", ErrInvalidTransaction, i, ix.ProgramIDIndex)
		}
		for _, idx := range ix.AccountIndexes {
			if int(idx) >= len(m.AccountKeys) {
				return fmt.Errorf("%w: instruction %d: account index %d out of range", ErrInvalidTransaction, i, idx)
			}
		}
	}
	return nil
}

// VerifySignatures checks every required signature against the message.
func (tx *Transaction) VerifySignatures() error {
	signers := tx.Message.Signers()
	if len(tx.Signatures) != len(signers) {
		return fmt.Errorf("%w: have %d signatures, need %d", ErrSignatureVerification, len(tx.Signatures), len(signers))
	}

	message := tx.Message.Serialize()
	for i, signer := range signers {
		if !tx.Signatures[i].Verify(signer, message) {
			return fmt.Errorf("%w: %s", ErrSignatureVerification, signer)
		}
	}
	return nil
}

// Serialize encodes the signed transaction in the legacy wire format.
func (tx *Transaction) Serialize() []byte {
	b := bytes.NewBuffer(nil)
	writeShortVecLen(b, len(tx.Signatures))
	for _, sig := range tx.Signatures {
		b.Write(sig[:])
	}
	b.Write(tx.Message.Serialize())
	return b.Bytes()
}

// DeserializeTransaction decodes a legacy wire format transaction. Trailing
// bytes are rejected.
func DeserializeTransaction(data []byte) (*Transaction, error) {
	r := bytes.NewReader(data)
	tx := &Transaction{}

	sigLen, err := readShortVecLen(r)
	if err != nil {
		return nil, fmt.Errorf("%w: signature count: %v", ErrInvalidTransaction, err)
	}
	tx.Signatures = make([]types.Signature, sigLen)
	for i := range tx.Signatures {
		if _, err := io.ReadFull(r, tx.Signatures[i][:]); err != nil {
			return nil, fmt.Errorf("%w: signature %d: %v", ErrInvalidTransaction, i, err)
		}
	}

	m := &tx.Message
	header := make([]byte, 3)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrInvalidTransaction, err)
	}
	if header[0] > 127 {
		return nil, fmt.Errorf("%w: versioned messages not supported", ErrInvalidTransaction)
	}
	m.Header = MessageHeader{
		NumRequiredSignatures:       header[0],
		NumReadonlySignedAccounts:   header[1],
		NumReadonlyUnsignedAccounts: header[2],
	}

	keyLen, err := readShortVecLen(r)
	if err != nil {
		return nil, fmt.Errorf("%w: account count: %v", ErrInvalidTransaction, err)
	}
	m.AccountKeys = make([]types.Pubkey, keyLen)
	for i := range m.AccountKeys {
		if _, err := io.ReadFull(r, m.AccountKeys[i][:]); err != nil {
			return nil, fmt.Errorf("%w: account %d: %v", ErrInvalidTransaction, i, err)
		}
	}

	if _, err := io.ReadFull(r, m.RecentBlockhash[:]); err != nil {
		return nil, fmt.Errorf("%w: recent blockhash: %v", ErrInvalidTransaction, err)
	}

	ixLen, err := readShortVecLen(r)
	if err != nil {
		return nil, fmt.Errorf("%w: instruction count: %v", ErrInvalidTransaction, err)
	}
	m.Instructions = make([]CompiledInstruction, ixLen)
	for i := range m.Instructions {
		ix := &m.Instructions[i]
		if ix.ProgramIDIndex, err = r.ReadByte(); err != nil {
			return nil, fmt.Errorf("%w: instruction %d program index: %v", ErrInvalidTransaction, i, err)
		}

		n, err := readShortVecLen(r)
		if err != nil {
			return nil, fmt.Errorf("%w: instruction %d account count: %v", ErrInvalidTransaction, i, err)
		}
		ix.AccountIndexes = make([]uint8, n)
		if _, err := io.ReadFull(r, ix.AccountIndexes); err != nil {
			return nil, fmt.Errorf("%w: instruction %d accounts: %v", ErrInvalidTransaction, i, err)
		}

		if n, err = readShortVecLen(r); err != nil {
			return nil, fmt.Errorf("%w: instruction %d data length: %v", ErrInvalidTransaction, i, err)
		}
		ix.Data = make([]byte, n)
		if _, err := io.ReadFull(r, ix.Data); err != nil {
			return nil, fmt.Errorf("%w: instruction %d data: %v", ErrInvalidTransaction, i, err)
		}
	}

	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrInvalidTransaction, r.Len())
	}
	return tx, nil
}

// readShortVecLen reads a compact-u16 length prefix.
func readShortVecLen(r io.ByteReader) (int, error) {
	var val int
	for offset := 0; offset < 3; offset++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		val |= int(b&0x7f) << (offset * 7)
		if b&0x80 == 0 {
			return val, nil
		}
	}
	return 0, errors.New("compact-u16 longer than 3 bytes")
}

// writeShortVecLen writes a compact-u16 length prefix.
func writeShortVecLen(b *bytes.Buffer, n int) {
	for {
		v := byte(n & 0x7f)
		n >>= 7
		if n == 0 {
			b.WriteByte(v)
			return
		}
		b.WriteByte(v | 0x80)
	}
}

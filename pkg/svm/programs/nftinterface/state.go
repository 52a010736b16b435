package nftinterface

import (
	"bytes"
	"encoding/binary"
	"fmt"

	bin "github.com/gagliardetto/binary"

	"github.com/fortiblox/X1-Interface/internal/types"
	"github.com/fortiblox/X1-Interface/pkg/svm/syscall"
)

// Record sizes. There is no version field, so any layout change breaks
// existing accounts.
const (
	InterfaceRecordSize = 8 + 2 + 2 + 32 + 32 + 1
	WhitelistRecordSize = 1

	// optionalPubkeySize is the COption<Pubkey> layout: u32 tag + key.
	optionalPubkeySize = 4 + 32
)

// Seeds holds the namespace prefixes used to derive record addresses.
type Seeds struct {
	Interface string
	Whitelist string
}

// DefaultSeeds returns the namespaces deployed programs use.
func DefaultSeeds() Seeds {
	return Seeds{
		Interface: "nftinterface",
		Whitelist: "whitelist",
	}
}

// InterfaceSeeds returns the seeds of the interface record owned by authority.
func (s Seeds) InterfaceSeeds(programID, authority types.Pubkey) [][]byte {
	return [][]byte{[]byte(s.Interface), programID.Bytes(), authority.Bytes()}
}

// WhitelistSeeds returns the seeds of the whitelist record binding authority
// to target.
func (s Seeds) WhitelistSeeds(programID, authority, target types.Pubkey) [][]byte {
	return [][]byte{[]byte(s.Whitelist), programID.Bytes(), authority.Bytes(), target.Bytes()}
}

// InterfaceAddress derives the interface record address of authority.
func (s Seeds) InterfaceAddress(programID, authority types.Pubkey) (types.Pubkey, uint8, error) {
	return syscall.FindProgramAddress(s.InterfaceSeeds(programID, authority), programID)
}

// WhitelistAddress derives the whitelist record address of (authority, target).
func (s Seeds) WhitelistAddress(programID, authority, target types.Pubkey) (types.Pubkey, uint8, error) {
	return syscall.FindProgramAddress(s.WhitelistSeeds(programID, authority, target), programID)
}

// InterfaceRecord is the sale configuration of one update authority.
type InterfaceRecord struct {
	PricePerUnit    uint64
	MaxSupply       uint16
	TotalSupply     uint16
	UpdateAuthority types.Pubkey
	FeeReceiver     types.Pubkey
	Sealed          uint8
}

func (r *InterfaceRecord) MarshalWithEncoder(encoder *bin.Encoder) error {
	if err := encoder.WriteUint64(r.PricePerUnit, bin.LE); err != nil {
		return err
	}
	if err := encoder.WriteUint16(r.MaxSupply, bin.LE); err != nil {
		return err
	}
	if err := encoder.WriteUint16(r.TotalSupply, bin.LE); err != nil {
		return err
	}
	if err := encoder.WriteBytes(r.UpdateAuthority[:], false); err != nil {
		return err
	}
	if err := encoder.WriteBytes(r.FeeReceiver[:], false); err != nil {
		return err
	}
	return encoder.WriteUint8(r.Sealed)
}

func (r *InterfaceRecord) UnmarshalWithDecoder(decoder *bin.Decoder) (err error) {
	if r.PricePerUnit, err = decoder.ReadUint64(bin.LE); err != nil {
		return err
	}
	if r.MaxSupply, err = decoder.ReadUint16(bin.LE); err != nil {
		return err
	}
	if r.TotalSupply, err = decoder.ReadUint16(bin.LE); err != nil {
		return err
	}
	authority, err := decoder.ReadBytes(32)
	if err != nil {
		return err
	}
	copy(r.UpdateAuthority[:], authority)
	receiver, err := decoder.ReadBytes(32)
	if err != nil {
		return err
	}
	copy(r.FeeReceiver[:], receiver)
	r.Sealed, err = decoder.ReadUint8()
	return err
}

// DecodeInterfaceRecord reads a record from account data. All-zero storage
// decodes to the zero record; trailing bytes are ignored.
func DecodeInterfaceRecord(data []byte) (*InterfaceRecord, error) {
	if len(data) < InterfaceRecordSize {
		return nil, Uninitialized
	}
	var r InterfaceRecord
	if err := r.UnmarshalWithDecoder(bin.NewBorshDecoder(data[:InterfaceRecordSize])); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAccountData, err)
	}
	return &r, nil
}

// Encode returns the 77-byte record layout.
func (r *InterfaceRecord) Encode() []byte {
	buf := new(bytes.Buffer)
	buf.Grow(InterfaceRecordSize)
	// Writes into a bytes.Buffer cannot fail.
	_ = r.MarshalWithEncoder(bin.NewBorshEncoder(buf))
	return buf.Bytes()
}

// Store writes the record into the first bytes of an account.
func (r *InterfaceRecord) Store(acc *syscall.AccountInfo) error {
	if len(acc.Data) < InterfaceRecordSize {
		return Uninitialized
	}
	copy(acc.Data, r.Encode())
	return nil
}

// WhitelistRecord gates an (authority, target) pair.
type WhitelistRecord struct {
	Sealed uint8
}

func (r *WhitelistRecord) MarshalWithEncoder(encoder *bin.Encoder) error {
	return encoder.WriteUint8(r.Sealed)
}

func (r *WhitelistRecord) UnmarshalWithDecoder(decoder *bin.Decoder) (err error) {
	r.Sealed, err = decoder.ReadUint8()
	return err
}

// DecodeWhitelistRecord reads a whitelist record from account data.
func DecodeWhitelistRecord(data []byte) (*WhitelistRecord, error) {
	if len(data) < WhitelistRecordSize {
		return nil, Uninitialized
	}
	var r WhitelistRecord
	if err := r.UnmarshalWithDecoder(bin.NewBorshDecoder(data[:WhitelistRecordSize])); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAccountData, err)
	}
	return &r, nil
}

// Encode returns the 1-byte record layout.
func (r *WhitelistRecord) Encode() []byte {
	return []byte{r.Sealed}
}

// Store writes the record into the first byte of an account.
func (r *WhitelistRecord) Store(acc *syscall.AccountInfo) error {
	if len(acc.Data) < WhitelistRecordSize {
		return Uninitialized
	}
	copy(acc.Data, r.Encode())
	return nil
}

// OptionalPubkey is a nullable key as stored by the SPL token program
// (COption<Pubkey>).
type OptionalPubkey struct {
	key     types.Pubkey
	present bool
}

// NoPubkey returns the absent variant.
func NoPubkey() OptionalPubkey {
	return OptionalPubkey{}
}

// SomePubkey returns the present variant holding key.
func SomePubkey(key types.Pubkey) OptionalPubkey {
	return OptionalPubkey{key: key, present: true}
}

// Get returns the key and whether it is present.
func (o OptionalPubkey) Get() (types.Pubkey, bool) {
	return o.key, o.present
}

func (o OptionalPubkey) String() string {
	if !o.present {
		return "None"
	}
	return "Some(" + o.key.String() + ")"
}

// DecodeOptionalPubkey decodes the 36-byte COption<Pubkey> layout. Tags other
// than 0 and 1 are rejected.
func DecodeOptionalPubkey(b []byte) (OptionalPubkey, error) {
	if len(b) != optionalPubkeySize {
		return OptionalPubkey{}, fmt.Errorf("%w: optional pubkey needs %d bytes, got %d", ErrInvalidAccountData, optionalPubkeySize, len(b))
	}
	switch tag := binary.LittleEndian.Uint32(b[:4]); tag {
	case 0:
		return NoPubkey(), nil
	case 1:
		var key types.Pubkey
		copy(key[:], b[4:])
		return SomePubkey(key), nil
	default:
		return OptionalPubkey{}, fmt.Errorf("%w: optional pubkey tag %d", ErrInvalidAccountData, tag)
	}
}

// Encode returns the 36-byte COption<Pubkey> layout.
func (o OptionalPubkey) Encode() []byte {
	b := make([]byte, optionalPubkeySize)
	if o.present {
		binary.LittleEndian.PutUint32(b, 1)
		copy(b[4:], o.key[:])
	}
	return b
}

package nftinterface

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"

	"github.com/fortiblox/X1-Interface/internal/types"
	"github.com/fortiblox/X1-Interface/pkg/svm/syscall"
)

// InstructionKind is the borsh enum tag of an instruction.
type InstructionKind uint8

// Instruction tags, in declaration order of the wire enum.
const (
	InstructionCreateInterface InstructionKind = iota
	InstructionModifyInterface
	InstructionMintInterface
	InstructionGetFeeInterface
	InstructionCreateWhitelist
	InstructionModifyWhitelist
)

func (k InstructionKind) String() string {
	switch k {
	case InstructionCreateInterface:
		return "Create Nft Interface Account"
	case InstructionModifyInterface:
		return "Modify Nft Interface Account"
	case InstructionMintInterface:
		return "Mint Nft Interface Account"
	case InstructionGetFeeInterface:
		return "Get Fee Nft Interface Account"
	case InstructionCreateWhitelist:
		return "Create Whitelist Account"
	case InstructionModifyWhitelist:
		return "Modify Whitelist Account"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(k))
	}
}

// Args is the body of one instruction variant.
type Args interface {
	Kind() InstructionKind
	MarshalWithEncoder(encoder *bin.Encoder) error
	UnmarshalWithDecoder(decoder *bin.Decoder) error
}

// CreateInterfaceArgs configures a new interface record.
type CreateInterfaceArgs struct {
	PricePerUnit uint64
	MaxSupply    uint16
	Sealed       uint8
}

func (*CreateInterfaceArgs) Kind() InstructionKind { return InstructionCreateInterface }

func (a *CreateInterfaceArgs) MarshalWithEncoder(encoder *bin.Encoder) error {
	if err := encoder.WriteUint64(a.PricePerUnit, bin.LE); err != nil {
		return err
	}
	if err := encoder.WriteUint16(a.MaxSupply, bin.LE); err != nil {
		return err
	}
	return encoder.WriteUint8(a.Sealed)
}

func (a *CreateInterfaceArgs) UnmarshalWithDecoder(decoder *bin.Decoder) (err error) {
	if a.PricePerUnit, err = decoder.ReadUint64(bin.LE); err != nil {
		return err
	}
	if a.MaxSupply, err = decoder.ReadUint16(bin.LE); err != nil {
		return err
	}
	a.Sealed, err = decoder.ReadUint8()
	return err
}

// ModifyInterfaceArgs is a patch: nil fields are left unchanged.
type ModifyInterfaceArgs struct {
	PricePerUnit *uint64
	MaxSupply    *uint16
	TotalSupply  *uint16
	Sealed       *uint8
}

func (*ModifyInterfaceArgs) Kind() InstructionKind { return InstructionModifyInterface }

func (a *ModifyInterfaceArgs) MarshalWithEncoder(encoder *bin.Encoder) error {
	if err := encoder.WriteOption(a.PricePerUnit != nil); err != nil {
		return err
	}
	if a.PricePerUnit != nil {
		if err := encoder.WriteUint64(*a.PricePerUnit, bin.LE); err != nil {
			return err
		}
	}
	if err := writeOptionalUint16(encoder, a.MaxSupply); err != nil {
		return err
	}
	if err := writeOptionalUint16(encoder, a.TotalSupply); err != nil {
		return err
	}
	if err := encoder.WriteOption(a.Sealed != nil); err != nil {
		return err
	}
	if a.Sealed != nil {
		return encoder.WriteUint8(*a.Sealed)
	}
	return nil
}

func (a *ModifyInterfaceArgs) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	ok, err := readOption(decoder)
	if err != nil {
		return err
	}
	if ok {
		v, err := decoder.ReadUint64(bin.LE)
		if err != nil {
			return err
		}
		a.PricePerUnit = &v
	}
	if a.MaxSupply, err = readOptionalUint16(decoder); err != nil {
		return err
	}
	if a.TotalSupply, err = readOptionalUint16(decoder); err != nil {
		return err
	}
	if ok, err = readOption(decoder); err != nil {
		return err
	}
	if ok {
		v, err := decoder.ReadUint8()
		if err != nil {
			return err
		}
		a.Sealed = &v
	}
	return nil
}

// Apply patches r with the supplied fields.
func (a *ModifyInterfaceArgs) Apply(r *InterfaceRecord) {
	if a.PricePerUnit != nil {
		r.PricePerUnit = *a.PricePerUnit
	}
	if a.MaxSupply != nil {
		r.MaxSupply = *a.MaxSupply
	}
	if a.TotalSupply != nil {
		r.TotalSupply = *a.TotalSupply
	}
	if a.Sealed != nil {
		r.Sealed = *a.Sealed
	}
}

// MintInterfaceArgs has no fields.
type MintInterfaceArgs struct{}

func (*MintInterfaceArgs) Kind() InstructionKind { return InstructionMintInterface }

func (*MintInterfaceArgs) MarshalWithEncoder(*bin.Encoder) error { return nil }

func (*MintInterfaceArgs) UnmarshalWithDecoder(*bin.Decoder) error { return nil }

// GetFeeInterfaceArgs withdraws Amount lamports, or the whole balance when nil.
type GetFeeInterfaceArgs struct {
	Amount *uint64
}

func (*GetFeeInterfaceArgs) Kind() InstructionKind { return InstructionGetFeeInterface }

func (a *GetFeeInterfaceArgs) MarshalWithEncoder(encoder *bin.Encoder) error {
	if err := encoder.WriteOption(a.Amount != nil); err != nil {
		return err
	}
	if a.Amount != nil {
		return encoder.WriteUint64(*a.Amount, bin.LE)
	}
	return nil
}

func (a *GetFeeInterfaceArgs) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	ok, err := readOption(decoder)
	if err != nil || !ok {
		return err
	}
	v, err := decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}
	a.Amount = &v
	return nil
}

// CreateWhitelistArgs configures a new whitelist record.
type CreateWhitelistArgs struct {
	Sealed uint8
}

func (*CreateWhitelistArgs) Kind() InstructionKind { return InstructionCreateWhitelist }

func (a *CreateWhitelistArgs) MarshalWithEncoder(encoder *bin.Encoder) error {
	return encoder.WriteUint8(a.Sealed)
}

func (a *CreateWhitelistArgs) UnmarshalWithDecoder(decoder *bin.Decoder) (err error) {
	a.Sealed, err = decoder.ReadUint8()
	return err
}

// ModifyWhitelistArgs overwrites the sealed flag.
type ModifyWhitelistArgs struct {
	Sealed uint8
}

func (*ModifyWhitelistArgs) Kind() InstructionKind { return InstructionModifyWhitelist }

func (a *ModifyWhitelistArgs) MarshalWithEncoder(encoder *bin.Encoder) error {
	return encoder.WriteUint8(a.Sealed)
}

func (a *ModifyWhitelistArgs) UnmarshalWithDecoder(decoder *bin.Decoder) (err error) {
	a.Sealed, err = decoder.ReadUint8()
	return err
}

// EncodeInstruction serializes args with its enum tag.
func EncodeInstruction(args Args) ([]byte, error) {
	buf := new(bytes.Buffer)
	encoder := bin.NewBorshEncoder(buf)
	if err := encoder.WriteUint8(uint8(args.Kind())); err != nil {
		return nil, err
	}
	if err := args.MarshalWithEncoder(encoder); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeInstruction parses instruction data. The whole input must be
// consumed.
func DecodeInstruction(data []byte) (Args, error) {
	decoder := bin.NewBorshDecoder(data)
	tag, err := decoder.ReadUint8()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInstructionData, err)
	}

	var args Args
	switch InstructionKind(tag) {
	case InstructionCreateInterface:
		args = new(CreateInterfaceArgs)
	case InstructionModifyInterface:
		args = new(ModifyInterfaceArgs)
	case InstructionMintInterface:
		args = new(MintInterfaceArgs)
	case InstructionGetFeeInterface:
		args = new(GetFeeInterfaceArgs)
	case InstructionCreateWhitelist:
		args = new(CreateWhitelistArgs)
	case InstructionModifyWhitelist:
		args = new(ModifyWhitelistArgs)
	default:
		return nil, fmt.Errorf("%w: unknown instruction %d", ErrInvalidInstructionData, tag)
	}

	if err := args.UnmarshalWithDecoder(decoder); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidInstructionData, args.Kind(), err)
	}
	if decoder.Remaining() > 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrInvalidInstructionData, decoder.Remaining())
	}
	return args, nil
}

// readOption reads a borsh Option flag. Only 0 and 1 are valid.
func readOption(decoder *bin.Decoder) (bool, error) {
	flag, err := decoder.ReadUint8()
	if err != nil {
		return false, err
	}
	switch flag {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("invalid option flag %d", flag)
	}
}

func readOptionalUint16(decoder *bin.Decoder) (*uint16, error) {
	ok, err := readOption(decoder)
	if err != nil || !ok {
		return nil, err
	}
	v, err := decoder.ReadUint16(bin.LE)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func writeOptionalUint16(encoder *bin.Encoder, v *uint16) error {
	if err := encoder.WriteOption(v != nil); err != nil {
		return err
	}
	if v != nil {
		return encoder.WriteUint16(*v, bin.LE)
	}
	return nil
}

// Client-side builders. Account order is part of the wire contract.

func newInstruction(programID types.Pubkey, args Args, metas ...syscall.AccountMeta) (syscall.Instruction, error) {
	data, err := EncodeInstruction(args)
	if err != nil {
		return syscall.Instruction{}, err
	}
	return syscall.Instruction{ProgramID: programID, Accounts: metas, Data: data}, nil
}

// CreateInterface builds a CreateInterface instruction.
//
//	0. [WRITE] Interface record (derived from update authority)
//	1. [WRITE, SIGNER] Fee receiver
//	2. [WRITE, SIGNER] Payer
//	3. [] Update authority
//	4. [] System program
//	5. [] Rent sysvar
func CreateInterface(programID, feeReceiver, payer, updateAuthority types.Pubkey, args CreateInterfaceArgs) (syscall.Instruction, error) {
	record, _, err := DefaultSeeds().InterfaceAddress(programID, updateAuthority)
	if err != nil {
		return syscall.Instruction{}, err
	}
	return newInstruction(programID, &args,
		syscall.NewAccountMeta(record, false),
		syscall.NewAccountMeta(feeReceiver, true),
		syscall.NewAccountMeta(payer, true),
		syscall.NewReadonlyAccountMeta(updateAuthority, false),
		syscall.NewReadonlyAccountMeta(types.SystemProgramAddr, false),
		syscall.NewReadonlyAccountMeta(types.SysvarRentAddr, false),
	)
}

// ModifyInterface builds a ModifyInterface instruction.
//
//	0. [WRITE] Interface record
//	1. [] Update authority
func ModifyInterface(programID, updateAuthority types.Pubkey, args ModifyInterfaceArgs) (syscall.Instruction, error) {
	record, _, err := DefaultSeeds().InterfaceAddress(programID, updateAuthority)
	if err != nil {
		return syscall.Instruction{}, err
	}
	return newInstruction(programID, &args,
		syscall.NewAccountMeta(record, false),
		syscall.NewReadonlyAccountMeta(updateAuthority, false),
	)
}

// MintInterface builds a MintInterface instruction.
//
//	0. [WRITE] Interface record
//	1. [] Update authority
//	2. [WRITE] Fee receiver
//	3. [WRITE, SIGNER] Payer
//	4. [] System program
func MintInterface(programID, updateAuthority, feeReceiver, payer types.Pubkey) (syscall.Instruction, error) {
	record, _, err := DefaultSeeds().InterfaceAddress(programID, updateAuthority)
	if err != nil {
		return syscall.Instruction{}, err
	}
	return newInstruction(programID, &MintInterfaceArgs{},
		syscall.NewAccountMeta(record, false),
		syscall.NewReadonlyAccountMeta(updateAuthority, false),
		syscall.NewAccountMeta(feeReceiver, false),
		syscall.NewAccountMeta(payer, true),
		syscall.NewReadonlyAccountMeta(types.SystemProgramAddr, false),
	)
}

// GetFeeInterface builds a GetFeeInterface instruction. A nil amount
// withdraws the whole fee receiver balance.
//
//	0. [] Interface record
//	1. [] Update authority
//	2. [WRITE, SIGNER] Fee receiver
//	3. [WRITE] Receiver
//	4. [] System program
func GetFeeInterface(programID, updateAuthority, feeReceiver, receiver types.Pubkey, amount *uint64) (syscall.Instruction, error) {
	record, _, err := DefaultSeeds().InterfaceAddress(programID, updateAuthority)
	if err != nil {
		return syscall.Instruction{}, err
	}
	return newInstruction(programID, &GetFeeInterfaceArgs{Amount: amount},
		syscall.NewReadonlyAccountMeta(record, false),
		syscall.NewReadonlyAccountMeta(updateAuthority, false),
		syscall.NewAccountMeta(feeReceiver, true),
		syscall.NewAccountMeta(receiver, false),
		syscall.NewReadonlyAccountMeta(types.SystemProgramAddr, false),
	)
}

// CreateWhitelist builds a CreateWhitelist instruction.
//
//	0. [WRITE] Whitelist record (derived from update authority and target)
//	1. [] Update authority
//	2. [WRITE, SIGNER] Payer
//	3. [] Target account
//	4. [] System program
//	5. [] Rent sysvar
func CreateWhitelist(programID, updateAuthority, payer, target types.Pubkey, sealed uint8) (syscall.Instruction, error) {
	record, _, err := DefaultSeeds().WhitelistAddress(programID, updateAuthority, target)
	if err != nil {
		return syscall.Instruction{}, err
	}
	return newInstruction(programID, &CreateWhitelistArgs{Sealed: sealed},
		syscall.NewAccountMeta(record, false),
		syscall.NewReadonlyAccountMeta(updateAuthority, false),
		syscall.NewAccountMeta(payer, true),
		syscall.NewReadonlyAccountMeta(target, false),
		syscall.NewReadonlyAccountMeta(types.SystemProgramAddr, false),
		syscall.NewReadonlyAccountMeta(types.SysvarRentAddr, false),
	)
}

// ModifyWhitelist builds a ModifyWhitelist instruction.
//
//	0. [WRITE] Whitelist record
//	1. [] Update authority
//	2. [] Target account
func ModifyWhitelist(programID, updateAuthority, target types.Pubkey, sealed uint8) (syscall.Instruction, error) {
	record, _, err := DefaultSeeds().WhitelistAddress(programID, updateAuthority, target)
	if err != nil {
		return syscall.Instruction{}, err
	}
	return newInstruction(programID, &ModifyWhitelistArgs{Sealed: sealed},
		syscall.NewAccountMeta(record, false),
		syscall.NewReadonlyAccountMeta(updateAuthority, false),
		syscall.NewReadonlyAccountMeta(target, false),
	)
}

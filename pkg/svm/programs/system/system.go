// Package system implements the Solana System Program.
//
// The System Program is responsible for:
// - Creating new accounts
// - Transferring lamports
// - Assigning account ownership
// - Allocating account space
//
// Program derived addresses reach Allocate and Assign through a signed CPI,
// which is how other native programs provision their storage.
package system

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/fortiblox/X1-Interface/internal/types"
	"github.com/fortiblox/X1-Interface/pkg/svm/syscall"
)

// ProgramID is the System Program address (all zeros).
var ProgramID = types.SystemProgramAddr

// Instruction discriminants.
const (
	InstructionCreateAccount uint32 = iota
	InstructionAssign
	InstructionTransfer
	InstructionCreateAccountWithSeed
	InstructionAdvanceNonceAccount
	InstructionWithdrawNonceAccount
	InstructionInitializeNonceAccount
	InstructionAuthorizeNonceAccount
	InstructionAllocate
)

// CUDefault is charged for every System Program instruction.
const CUDefault = uint64(150)

// Error types.
var (
	ErrInvalidInstructionData   = errors.New("invalid instruction data")
	ErrInsufficientFunds        = errors.New("insufficient funds")
	ErrAccountAlreadyInUse      = errors.New("account already in use")
	ErrInvalidAccountOwner      = errors.New("invalid account owner")
	ErrAccountNotRentExempt     = errors.New("account not rent exempt")
	ErrMissingRequiredSignature = errors.New("missing required signature")
	ErrAccountNotWritable       = errors.New("account not writable")
	ErrAccountDataTooLarge      = errors.New("account data too large")
	ErrTransferFromDataAccount  = errors.New("transfer: from must not carry data")
	ErrLamportOverflow          = errors.New("lamport overflow")
)

// Maximum account data size.
const MaxAccountDataSize = 10 * 1024 * 1024 // 10 MB

// Processor executes System Program instructions.
type Processor struct{}

// NewProcessor creates a new System Program processor.
func NewProcessor() *Processor {
	return &Processor{}
}

// Execute executes a System Program instruction.
func (p *Processor) Execute(ctx *syscall.ExecutionContext, data []byte) error {
	if err := ctx.ConsumeCU(CUDefault); err != nil {
		return err
	}
	if len(data) < 4 {
		return ErrInvalidInstructionData
	}

	instruction := binary.LittleEndian.Uint32(data[:4])

	switch instruction {
	case InstructionCreateAccount:
		return p.processCreateAccount(ctx, data[4:])
	case InstructionAssign:
		return p.processAssign(ctx, data[4:])
	case InstructionTransfer:
		return p.processTransfer(ctx, data[4:])
	case InstructionAllocate:
		return p.processAllocate(ctx, data[4:])
	default:
		return fmt.Errorf("%w: unsupported instruction %d", ErrInvalidInstructionData, instruction)
	}
}

// processCreateAccount creates a new account.
//
//	0. [WRITE, SIGNER] Funding account
//	1. [WRITE, SIGNER] New account
func (p *Processor) processCreateAccount(ctx *syscall.ExecutionContext, data []byte) error {
	// lamports (8) + space (8) + owner (32)
	if len(data) < 48 {
		return ErrInvalidInstructionData
	}
	lamports := binary.LittleEndian.Uint64(data[0:8])
	space := binary.LittleEndian.Uint64(data[8:16])
	var owner types.Pubkey
	copy(owner[:], data[16:48])

	if space > MaxAccountDataSize {
		return ErrAccountDataTooLarge
	}

	funder, err := ctx.GetAccount(0)
	if err != nil {
		return err
	}
	newAccount, err := ctx.GetAccount(1)
	if err != nil {
		return err
	}

	if !funder.IsSigner || !newAccount.IsSigner {
		return ErrMissingRequiredSignature
	}
	if !funder.IsWritable || !newAccount.IsWritable {
		return ErrAccountNotWritable
	}

	// New account must be empty: owned by system program, no data, no lamports
	if newAccount.Owner != ProgramID || len(newAccount.Data) > 0 || newAccount.Lamports > 0 {
		return fmt.Errorf("%w: %s", ErrAccountAlreadyInUse, newAccount.Key)
	}

	if lamports < ctx.Rent().MinimumBalance(space) {
		return ErrAccountNotRentExempt
	}
	if funder.Lamports < lamports {
		return ErrInsufficientFunds
	}

	funder.Lamports -= lamports
	newAccount.Lamports = lamports
	newAccount.Data = make([]byte, space)
	newAccount.Owner = owner

	ctx.Log("CreateAccount: success")
	return nil
}

// processAssign changes the owner of an account.
//
//	0. [WRITE, SIGNER] Assigned account
func (p *Processor) processAssign(ctx *syscall.ExecutionContext, data []byte) error {
	if len(data) < 32 {
		return ErrInvalidInstructionData
	}
	var newOwner types.Pubkey
	copy(newOwner[:], data[0:32])

	account, err := ctx.GetAccount(0)
	if err != nil {
		return err
	}

	// Assigning to the current owner is a no-op.
	if account.Owner == newOwner {
		return nil
	}
	if !account.IsSigner {
		return ErrMissingRequiredSignature
	}
	if !account.IsWritable {
		return fmt.Errorf("%w: %s", ErrAccountNotWritable, account.Key)
	}
	if account.Owner != ProgramID {
		return ErrInvalidAccountOwner
	}

	account.Owner = newOwner

	ctx.Log("Assign: success")
	return nil
}

// processTransfer transfers lamports between accounts.
//
//	0. [WRITE, SIGNER] Funding account
//	1. [WRITE] Recipient account
func (p *Processor) processTransfer(ctx *syscall.ExecutionContext, data []byte) error {
	if len(data) < 8 {
		return ErrInvalidInstructionData
	}
	lamports := binary.LittleEndian.Uint64(data[0:8])

	from, err := ctx.GetAccount(0)
	if err != nil {
		return err
	}
	to, err := ctx.GetAccount(1)
	if err != nil {
		return err
	}

	if !from.IsSigner {
		return fmt.Errorf("%w: %s", ErrMissingRequiredSignature, from.Key)
	}
	if !from.IsWritable || !to.IsWritable {
		return ErrAccountNotWritable
	}
	if len(from.Data) > 0 {
		return ErrTransferFromDataAccount
	}
	if from.Owner != ProgramID {
		return ErrInvalidAccountOwner
	}
	if from.Lamports < lamports {
		return ErrInsufficientFunds
	}
	if from.Key == to.Key {
		return nil
	}
	if to.Lamports > ^uint64(0)-lamports {
		return ErrLamportOverflow
	}

	from.Lamports -= lamports
	to.Lamports += lamports

	ctx.Logf("Transfer: %d lamports", lamports)
	return nil
}

// processAllocate allocates space in an account. The account must not hold
// any data yet.
//
//	0. [WRITE, SIGNER] Account to allocate
func (p *Processor) processAllocate(ctx *syscall.ExecutionContext, data []byte) error {
	if len(data) < 8 {
		return ErrInvalidInstructionData
	}
	space := binary.LittleEndian.Uint64(data[0:8])

	if space > MaxAccountDataSize {
		return ErrAccountDataTooLarge
	}

	account, err := ctx.GetAccount(0)
	if err != nil {
		return err
	}
	if !account.IsSigner {
		return fmt.Errorf("%w: %s", ErrMissingRequiredSignature, account.Key)
	}
	if !account.IsWritable {
		return fmt.Errorf("%w: %s", ErrAccountNotWritable, account.Key)
	}
	if len(account.Data) > 0 || account.Owner != ProgramID {
		return fmt.Errorf("%w: %s", ErrAccountAlreadyInUse, account.Key)
	}

	account.Data = make([]byte, space)

	ctx.Log("Allocate: success")
	return nil
}

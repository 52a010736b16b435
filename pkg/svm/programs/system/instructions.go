package system

import (
	"encoding/binary"

	"github.com/fortiblox/X1-Interface/internal/types"
	"github.com/fortiblox/X1-Interface/pkg/svm/syscall"
)

// CreateAccount builds a CreateAccount instruction.
//
//	0. [WRITE, SIGNER] Funding account
//	1. [WRITE, SIGNER] New account
func CreateAccount(funder, address, owner types.Pubkey, lamports, space uint64) syscall.Instruction {
	data := make([]byte, 4+2*8+32)
	binary.LittleEndian.PutUint32(data, InstructionCreateAccount)
	binary.LittleEndian.PutUint64(data[4:], lamports)
	binary.LittleEndian.PutUint64(data[4+8:], space)
	copy(data[4+2*8:], owner[:])

	return syscall.Instruction{
		ProgramID: ProgramID,
		Accounts: []syscall.AccountMeta{
			syscall.NewAccountMeta(funder, true),
			syscall.NewAccountMeta(address, true),
		},
		Data: data,
	}
}

// Assign builds an Assign instruction.
//
//	0. [WRITE, SIGNER] Assigned account
func Assign(address, owner types.Pubkey) syscall.Instruction {
	data := make([]byte, 4+32)
	binary.LittleEndian.PutUint32(data, InstructionAssign)
	copy(data[4:], owner[:])

	return syscall.Instruction{
		ProgramID: ProgramID,
		Accounts: []syscall.AccountMeta{
			syscall.NewAccountMeta(address, true),
		},
		Data: data,
	}
}

// Transfer builds a Transfer instruction.
//
//	0. [WRITE, SIGNER] Funding account
//	1. [WRITE] Recipient account
func Transfer(from, to types.Pubkey, lamports uint64) syscall.Instruction {
	data := make([]byte, 4+8)
	binary.LittleEndian.PutUint32(data, InstructionTransfer)
	binary.LittleEndian.PutUint64(data[4:], lamports)

	return syscall.Instruction{
		ProgramID: ProgramID,
		Accounts: []syscall.AccountMeta{
			syscall.NewAccountMeta(from, true),
			syscall.NewAccountMeta(to, false),
		},
		Data: data,
	}
}

// Allocate builds an Allocate instruction.
//
//	0. [WRITE, SIGNER] Account to allocate
func Allocate(address types.Pubkey, space uint64) syscall.Instruction {
	data := make([]byte, 4+8)
	binary.LittleEndian.PutUint32(data, InstructionAllocate)
	binary.LittleEndian.PutUint64(data[4:], space)

	return syscall.Instruction{
		ProgramID: ProgramID,
		Accounts: []syscall.AccountMeta{
			syscall.NewAccountMeta(address, true),
		},
		Data: data,
	}
}

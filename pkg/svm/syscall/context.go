// Package syscall implements the host services a native program sees while it
// executes: positional account access, rent, compute metering, program logs,
// program derived addresses and cross-program invocation.
package syscall

import (
	"errors"
	"fmt"

	"github.com/fortiblox/X1-Interface/internal/types"
)

// Execution errors.
var (
	ErrNotEnoughAccountKeys = errors.New("not enough account keys")
	ErrUnknownProgram       = errors.New("unknown program")
)

// AccountInfo holds account data during execution.
//
// Lamports, Data and Owner are the live state; IsSigner and IsWritable are the
// privileges granted to the current instruction.
type AccountInfo struct {
	Key        types.Pubkey
	Owner      types.Pubkey
	Lamports   uint64
	Data       []byte
	Executable bool
	RentEpoch  uint64
	IsSigner   bool
	IsWritable bool
}

// AccountMeta describes an account referenced by an instruction.
type AccountMeta struct {
	Pubkey     types.Pubkey
	IsSigner   bool
	IsWritable bool
}

// NewAccountMeta returns a writable account meta.
func NewAccountMeta(pubkey types.Pubkey, isSigner bool) AccountMeta {
	return AccountMeta{Pubkey: pubkey, IsSigner: isSigner, IsWritable: true}
}

// NewReadonlyAccountMeta returns a read-only account meta.
func NewReadonlyAccountMeta(pubkey types.Pubkey, isSigner bool) AccountMeta {
	return AccountMeta{Pubkey: pubkey, IsSigner: isSigner, IsWritable: false}
}

// Instruction is a program invocation with its accounts and opaque data.
type Instruction struct {
	ProgramID types.Pubkey
	Accounts  []AccountMeta
	Data      []byte
}

// Program is a native program.
type Program interface {
	Execute(ctx *ExecutionContext, data []byte) error
}

// ComputeMeter charges compute units.
type ComputeMeter interface {
	Consume(cost uint64) error
}

// Environment is shared by every instruction of one transaction.
type Environment struct {
	// Programs maps program ids to native implementations.
	Programs map[types.Pubkey]Program

	// Rent is the rent configuration served to programs.
	Rent types.Rent

	// Meter charges compute units for the whole transaction.
	Meter ComputeMeter

	// Logs collects program log lines.
	Logs *[]string
}

// ExecutionContext is the view of one program invocation.
type ExecutionContext struct {
	// ProgramID is the id of the executing program.
	ProgramID types.Pubkey

	env      *Environment
	accounts []*AccountInfo
	depth    uint64
}

// NewExecutionContext creates a top-level invocation context.
func NewExecutionContext(env *Environment, programID types.Pubkey, accounts []*AccountInfo) *ExecutionContext {
	return &ExecutionContext{
		ProgramID: programID,
		env:       env,
		accounts:  accounts,
		depth:     1,
	}
}

// AccountCount returns the number of instruction accounts.
func (c *ExecutionContext) AccountCount() int {
	return len(c.accounts)
}

// GetAccount returns the instruction account at index.
func (c *ExecutionContext) GetAccount(index int) (*AccountInfo, error) {
	if index < 0 || index >= len(c.accounts) {
		return nil, fmt.Errorf("%w: index %d of %d", ErrNotEnoughAccountKeys, index, len(c.accounts))
	}
	return c.accounts[index], nil
}

// Rent returns the rent configuration.
func (c *ExecutionContext) Rent() types.Rent {
	return c.env.Rent
}

// StackHeight returns the invocation depth, 1 for top-level instructions.
func (c *ExecutionContext) StackHeight() uint64 {
	return c.depth
}

// ConsumeCU charges compute units against the transaction meter.
func (c *ExecutionContext) ConsumeCU(cost uint64) error {
	if c.env.Meter == nil {
		return nil
	}
	return c.env.Meter.Consume(cost)
}

// Log records a program log message.
func (c *ExecutionContext) Log(msg string) {
	if c.env.Logs != nil {
		*c.env.Logs = append(*c.env.Logs, fmt.Sprintf("Program log: %s", msg))
	}
}

// Logf records a formatted program log message.
func (c *ExecutionContext) Logf(format string, args ...any) {
	c.Log(fmt.Sprintf(format, args...))
}

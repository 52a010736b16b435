// Package syscall implements Cross-Program Invocation (CPI).
//
// A native program invokes another program with InvokeSigned, which:
// - Resolves every callee account among the caller's own accounts
// - Grants signer status for accounts signed by the transaction or by the
//   caller's PDA seeds
// - Executes the target program with the derived privileges
// - Copies the callee's account changes back into the caller's view
package syscall

import (
	"errors"
	"fmt"

	"github.com/fortiblox/X1-Interface/internal/types"
)

// CPI constants.
const (
	MaxCPIDepth           = 4         // Maximum CPI nesting depth
	MaxCPIInstructionSize = 10 * 1024 // Maximum CPI instruction data size
	MaxCPIAccountInfos    = 128       // Maximum account infos per CPI
	MaxCPISignerSeeds     = 16        // Maximum signer seed sets

	// Compute costs for CPI
	CUCPIBaseInvoke  = uint64(1000) // Base cost for invoke
	CUCPIPerAccount  = uint64(10)   // Cost per account in CPI
	CUCPIPerDataByte = uint64(1)    // Cost per data byte
)

// CPI errors.
var (
	ErrCPIDepthExceeded       = errors.New("CPI depth exceeded")
	ErrCPITooManyAccounts     = errors.New("too many accounts in CPI")
	ErrCPITooManySignerSeeds  = errors.New("too many signer seeds")
	ErrCPIDataTooLarge        = errors.New("CPI instruction data too large")
	ErrCPIPrivilegeEscalation = errors.New("CPI privilege escalation")
	ErrCPIAccountMismatch     = errors.New("CPI account not passed to caller")
)

// Invoke calls another program with the caller's privileges only.
func (c *ExecutionContext) Invoke(ix Instruction) error {
	return c.InvokeSigned(ix)
}

// InvokeSigned calls another program. Each entry of signerSeeds is a full
// seed list (including the bump) of a PDA owned by the calling program; the
// derived address is treated as a signer for the callee.
func (c *ExecutionContext) InvokeSigned(ix Instruction, signerSeeds ...[][]byte) error {
	if c.depth >= MaxCPIDepth {
		return ErrCPIDepthExceeded
	}
	if len(ix.Accounts) > MaxCPIAccountInfos {
		return ErrCPITooManyAccounts
	}
	if len(ix.Data) > MaxCPIInstructionSize {
		return ErrCPIDataTooLarge
	}
	if len(signerSeeds) > MaxCPISignerSeeds {
		return ErrCPITooManySignerSeeds
	}

	cost := CUCPIBaseInvoke + CUCPIPerAccount*uint64(len(ix.Accounts)) + CUCPIPerDataByte*uint64(len(ix.Data))
	if err := c.ConsumeCU(cost); err != nil {
		return err
	}

	program, ok := c.env.Programs[ix.ProgramID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProgram, ix.ProgramID)
	}

	pdaSigners := make(map[types.Pubkey]bool, len(signerSeeds))
	for _, seeds := range signerSeeds {
		pda, err := CreateProgramAddress(seeds, c.ProgramID)
		if err != nil {
			return err
		}
		pdaSigners[pda] = true
	}

	// Callee views share one copy per key so duplicate metas alias.
	views := make(map[types.Pubkey]*AccountInfo, len(ix.Accounts))
	callerViews := make(map[types.Pubkey]*AccountInfo, len(ix.Accounts))
	calleeAccounts := make([]*AccountInfo, len(ix.Accounts))

	for i, meta := range ix.Accounts {
		caller := c.lookup(meta.Pubkey)
		if caller == nil {
			return fmt.Errorf("%w: %s", ErrCPIAccountMismatch, meta.Pubkey)
		}

		isSigner := caller.IsSigner || pdaSigners[meta.Pubkey]
		if meta.IsSigner && !isSigner {
			return fmt.Errorf("%w: %s must sign", ErrCPIPrivilegeEscalation, meta.Pubkey)
		}
		if meta.IsWritable && !caller.IsWritable {
			return fmt.Errorf("%w: %s is read-only", ErrCPIPrivilegeEscalation, meta.Pubkey)
		}

		view, ok := views[meta.Pubkey]
		if !ok {
			copied := *caller
			copied.IsSigner = false
			copied.IsWritable = false
			view = &copied
			views[meta.Pubkey] = view
			callerViews[meta.Pubkey] = caller
		}
		view.IsSigner = view.IsSigner || (meta.IsSigner && isSigner)
		view.IsWritable = view.IsWritable || meta.IsWritable
		calleeAccounts[i] = view
	}

	callee := &ExecutionContext{
		ProgramID: ix.ProgramID,
		env:       c.env,
		accounts:  calleeAccounts,
		depth:     c.depth + 1,
	}
	if err := program.Execute(callee, ix.Data); err != nil {
		return err
	}

	for key, view := range views {
		caller := callerViews[key]
		if !view.IsWritable {
			continue
		}
		caller.Lamports = view.Lamports
		caller.Data = view.Data
		caller.Owner = view.Owner
	}
	return nil
}

// lookup finds one of the caller's accounts by key.
func (c *ExecutionContext) lookup(key types.Pubkey) *AccountInfo {
	for _, acc := range c.accounts {
		if acc.Key == key {
			return acc
		}
	}
	return nil
}

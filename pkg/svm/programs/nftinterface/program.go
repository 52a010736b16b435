// Package nftinterface implements the NFT interface native program.
//
// An update authority publishes an interface record holding a unit price
// and a supply cap. Anyone may then mint against it: minting charges the
// price to the payer, sends it to the fee receiver and increments the
// running supply. Whitelist records bind an authority to a target account
// and carry a single sealed flag.
//
// Records live at program derived addresses:
//
//	interface: ["nftinterface", program id, update authority]
//	whitelist: ["whitelist", program id, update authority, target]
//
// Storage is provisioned with System Program CPIs signed by those seeds.
package nftinterface

import (
	"github.com/fortiblox/X1-Interface/internal/types"
	"github.com/fortiblox/X1-Interface/pkg/svm/syscall"
)

// ProgramID is the default deployment address of the program.
var ProgramID = types.MustPubkeyFromBase58("NFTinterface1111111111111111111111111111111")

// Program executes NFT interface instructions.
type Program struct {
	seeds Seeds
}

// NewProgram creates a program deriving record addresses from seeds.
func NewProgram(seeds Seeds) *Program {
	return &Program{seeds: seeds}
}

// Seeds returns the namespaces used for address derivation.
func (p *Program) Seeds() Seeds {
	return p.seeds
}

// Execute decodes and runs one instruction. Program errors are logged with
// their text and returned unchanged.
func (p *Program) Execute(ctx *syscall.ExecutionContext, data []byte) error {
	args, err := DecodeInstruction(data)
	if err != nil {
		ctx.Log(err.Error())
		return err
	}
	ctx.Log(args.Kind().String())

	switch a := args.(type) {
	case *CreateInterfaceArgs:
		err = p.createInterface(ctx, a)
	case *ModifyInterfaceArgs:
		err = p.modifyInterface(ctx, a)
	case *MintInterfaceArgs:
		err = p.mintInterface(ctx)
	case *GetFeeInterfaceArgs:
		err = p.getFeeInterface(ctx, a)
	case *CreateWhitelistArgs:
		err = p.createWhitelist(ctx, a)
	case *ModifyWhitelistArgs:
		err = p.modifyWhitelist(ctx, a)
	}
	if err != nil {
		ctx.Log(err.Error())
		return err
	}
	return nil
}

// accounts returns the first n instruction accounts.
func accounts(ctx *syscall.ExecutionContext, n int) ([]*syscall.AccountInfo, error) {
	out := make([]*syscall.AccountInfo, n)
	for i := range out {
		acc, err := ctx.GetAccount(i)
		if err != nil {
			return nil, err
		}
		out[i] = acc
	}
	return out, nil
}

package nftinterface

import (
	"github.com/fortiblox/X1-Interface/pkg/svm/syscall"
)

// createInterface provisions the interface record of an update authority.
//
//	0. [WRITE] Interface record
//	1. [WRITE, SIGNER] Fee receiver
//	2. [WRITE, SIGNER] Payer
//	3. [] Update authority
//	4. [] System program
//	5. [] Rent sysvar
func (p *Program) createInterface(ctx *syscall.ExecutionContext, args *CreateInterfaceArgs) error {
	accs, err := accounts(ctx, 6)
	if err != nil {
		return err
	}
	record, feeReceiver, payer, authority, rentInfo := accs[0], accs[1], accs[2], accs[3], accs[5]

	seeds := p.seeds.InterfaceSeeds(ctx.ProgramID, authority.Key)
	expected, bump, err := ctx.FindProgramAddress(seeds...)
	if err != nil {
		return err
	}
	if err := assertDerivedKey(record, expected, InvalidNFTAccountKey); err != nil {
		return err
	}

	rent, err := readRent(rentInfo)
	if err != nil {
		return err
	}
	if err := provisionAccount(ctx, rent, record, payer, InterfaceRecordSize, append(seeds, []byte{bump})); err != nil {
		return err
	}
	if err := openFeeReceiver(ctx, rent, feeReceiver, payer); err != nil {
		return err
	}

	state := &InterfaceRecord{
		PricePerUnit:    args.PricePerUnit,
		MaxSupply:       args.MaxSupply,
		TotalSupply:     0,
		UpdateAuthority: authority.Key,
		FeeReceiver:     feeReceiver.Key,
		Sealed:          args.Sealed,
	}
	if err := state.Store(record); err != nil {
		return err
	}

	ctx.Log("Create account success.")
	return nil
}

// modifyInterface patches the supplied fields of an interface record.
//
//	0. [WRITE] Interface record
//	1. [] Update authority
func (p *Program) modifyInterface(ctx *syscall.ExecutionContext, args *ModifyInterfaceArgs) error {
	accs, err := accounts(ctx, 2)
	if err != nil {
		return err
	}
	record, authority := accs[0], accs[1]

	state, err := p.loadInterface(ctx, record, authority)
	if err != nil {
		return err
	}

	args.Apply(state)
	if err := state.Store(record); err != nil {
		return err
	}

	ctx.Log("Finished modify.")
	return nil
}

// mintInterface charges the unit price and increments the running supply.
// The update authority mints for free.
//
//	0. [WRITE] Interface record
//	1. [] Update authority
//	2. [WRITE] Fee receiver
//	3. [WRITE, SIGNER] Payer
//	4. [] System program
func (p *Program) mintInterface(ctx *syscall.ExecutionContext) error {
	accs, err := accounts(ctx, 5)
	if err != nil {
		return err
	}
	record, authority, feeReceiver, payer := accs[0], accs[1], accs[2], accs[3]

	state, err := p.loadInterface(ctx, record, authority)
	if err != nil {
		return err
	}
	if feeReceiver.Key != state.FeeReceiver {
		return InvalidFeeReceiverAccountKey
	}

	ctx.Log("Sending Sol to fee receiver.")
	fee := state.PricePerUnit
	if payer.Key == authority.Key {
		fee = 0
	}
	if payer.Lamports < fee {
		return NotEnoughSOL
	}
	if uint32(state.TotalSupply)+1 > uint32(state.MaxSupply) {
		return ExceedMaxSupply
	}

	if err := transferLamports(ctx, payer, feeReceiver, fee); err != nil {
		return err
	}

	state.TotalSupply++
	return state.Store(record)
}

// getFeeInterface withdraws from the fee receiver. The program performs no
// authorization beyond the record address check; the System Program still
// requires the fee receiver to sign.
//
//	0. [] Interface record
//	1. [] Update authority
//	2. [WRITE, SIGNER] Fee receiver
//	3. [WRITE] Receiver
//	4. [] System program
func (p *Program) getFeeInterface(ctx *syscall.ExecutionContext, args *GetFeeInterfaceArgs) error {
	accs, err := accounts(ctx, 5)
	if err != nil {
		return err
	}
	record, authority, feeReceiver, receiver := accs[0], accs[1], accs[2], accs[3]

	expected, _, err := ctx.FindProgramAddress(p.seeds.InterfaceSeeds(ctx.ProgramID, authority.Key)...)
	if err != nil {
		return err
	}
	if err := assertDerivedKey(record, expected, InvalidNFTAccountKey); err != nil {
		return err
	}

	ctx.Log("Sending Sol to fee receiver.")
	amount := feeReceiver.Lamports
	if args.Amount != nil {
		amount = min(*args.Amount, feeReceiver.Lamports)
	}
	return transferLamports(ctx, feeReceiver, receiver, amount)
}

// createWhitelist provisions the whitelist record of (authority, target).
//
//	0. [WRITE] Whitelist record
//	1. [] Update authority
//	2. [WRITE, SIGNER] Payer
//	3. [] Target account
//	4. [] System program
//	5. [] Rent sysvar
func (p *Program) createWhitelist(ctx *syscall.ExecutionContext, args *CreateWhitelistArgs) error {
	accs, err := accounts(ctx, 6)
	if err != nil {
		return err
	}
	record, authority, payer, target, rentInfo := accs[0], accs[1], accs[2], accs[3], accs[5]

	seeds := p.seeds.WhitelistSeeds(ctx.ProgramID, authority.Key, target.Key)
	expected, bump, err := ctx.FindProgramAddress(seeds...)
	if err != nil {
		return err
	}
	if err := assertDerivedKey(record, expected, InvalidWhitelistAccountKey); err != nil {
		return err
	}

	rent, err := readRent(rentInfo)
	if err != nil {
		return err
	}
	if err := provisionAccount(ctx, rent, record, payer, WhitelistRecordSize, append(seeds, []byte{bump})); err != nil {
		return err
	}

	state := &WhitelistRecord{Sealed: args.Sealed}
	if err := state.Store(record); err != nil {
		return err
	}

	ctx.Log("Create account success.")
	return nil
}

// modifyWhitelist overwrites the sealed flag of a whitelist record.
//
//	0. [WRITE] Whitelist record
//	1. [] Update authority
//	2. [] Target account
func (p *Program) modifyWhitelist(ctx *syscall.ExecutionContext, args *ModifyWhitelistArgs) error {
	accs, err := accounts(ctx, 3)
	if err != nil {
		return err
	}
	record, authority, target := accs[0], accs[1], accs[2]

	expected, _, err := ctx.FindProgramAddress(p.seeds.WhitelistSeeds(ctx.ProgramID, authority.Key, target.Key)...)
	if err != nil {
		return err
	}
	if err := assertDerivedKey(record, expected, InvalidWhitelistAccountKey); err != nil {
		return err
	}
	if err := AssertOwnedBy(record, ctx.ProgramID); err != nil {
		return err
	}

	state, err := DecodeWhitelistRecord(record.Data)
	if err != nil {
		return err
	}
	state.Sealed = args.Sealed
	if err := state.Store(record); err != nil {
		return err
	}

	ctx.Log("Modify account success.")
	return nil
}

// loadInterface checks that record is the interface record of authority and
// decodes it.
func (p *Program) loadInterface(ctx *syscall.ExecutionContext, record, authority *syscall.AccountInfo) (*InterfaceRecord, error) {
	expected, _, err := ctx.FindProgramAddress(p.seeds.InterfaceSeeds(ctx.ProgramID, authority.Key)...)
	if err != nil {
		return nil, err
	}
	if err := assertDerivedKey(record, expected, InvalidNFTAccountKey); err != nil {
		return nil, err
	}
	if err := AssertOwnedBy(record, ctx.ProgramID); err != nil {
		return nil, err
	}
	return DecodeInterfaceRecord(record.Data)
}

package nftinterface

import (
	"fmt"

	"github.com/fortiblox/X1-Interface/internal/types"
	"github.com/fortiblox/X1-Interface/pkg/svm/programs/system"
	"github.com/fortiblox/X1-Interface/pkg/svm/syscall"
)

// provisionAccount funds, allocates and assigns target to the executing
// program. signerSeeds must include the bump of target.
//
// The three System Program calls are not compensated locally: if one fails
// the transaction is discarded by the runtime.
func provisionAccount(
	ctx *syscall.ExecutionContext,
	rent types.Rent,
	target *syscall.AccountInfo,
	payer *syscall.AccountInfo,
	size uint64,
	signerSeeds [][]byte,
) error {
	required := saturatingSub(max(rent.MinimumBalance(size), 1), target.Lamports)
	if required > 0 {
		ctx.Logf("Transfer %d lamports to the new account", required)
		if err := ctx.Invoke(system.Transfer(payer.Key, target.Key, required)); err != nil {
			return err
		}
	}

	ctx.Log("Allocate space for the account")
	if err := ctx.InvokeSigned(system.Allocate(target.Key, size), signerSeeds); err != nil {
		return err
	}

	ctx.Log("Assign the account to the owning program")
	return ctx.InvokeSigned(system.Assign(target.Key, ctx.ProgramID), signerSeeds)
}

// openFeeReceiver creates a zero-size system account at receiver, funded by
// payer, unless it already exists.
func openFeeReceiver(ctx *syscall.ExecutionContext, rent types.Rent, receiver, payer *syscall.AccountInfo) error {
	if receiver.Lamports > 0 || len(receiver.Data) > 0 {
		return nil
	}
	required := saturatingSub(max(rent.MinimumBalance(0), 1), receiver.Lamports)
	return ctx.Invoke(system.CreateAccount(payer.Key, receiver.Key, system.ProgramID, required, 0))
}

// transferLamports moves lamports between two system accounts. from must sign.
func transferLamports(ctx *syscall.ExecutionContext, from, to *syscall.AccountInfo, lamports uint64) error {
	return ctx.Invoke(system.Transfer(from.Key, to.Key, lamports))
}

// readRent decodes the rent sysvar account.
func readRent(acc *syscall.AccountInfo) (types.Rent, error) {
	if acc.Key != types.SysvarRentAddr {
		return types.Rent{}, fmt.Errorf("%w: %s", ErrInvalidRentSysvar, acc.Key)
	}
	rent, err := types.DeserializeRent(acc.Data)
	if err != nil {
		return types.Rent{}, fmt.Errorf("%w: %v", ErrInvalidRentSysvar, err)
	}
	return rent, nil
}

// assertDerivedKey fails with mismatch unless acc sits at expected.
func assertDerivedKey(acc *syscall.AccountInfo, expected types.Pubkey, mismatch Error) error {
	if acc.Key != expected {
		return mismatch
	}
	return nil
}

// AssertOwnedBy fails with IncorrectOwner unless acc is owned by owner.
func AssertOwnedBy(acc *syscall.AccountInfo, owner types.Pubkey) error {
	if acc.Owner != owner {
		return IncorrectOwner
	}
	return nil
}

// AssertTokenProgramMatchesPackage fails with InvalidTokenProgram unless acc
// is the SPL token program.
func AssertTokenProgramMatchesPackage(acc *syscall.AccountInfo) error {
	if acc.Key != types.TokenProgramAddr {
		return InvalidTokenProgram
	}
	return nil
}

// AssertInitialized fails with Uninitialized when acc holds less than size
// bytes or only zeros.
func AssertInitialized(acc *syscall.AccountInfo, size int) error {
	if len(acc.Data) < size {
		return Uninitialized
	}
	for _, b := range acc.Data[:size] {
		if b != 0 {
			return nil
		}
	}
	return Uninitialized
}

// GetMintAuthority reads the mint authority of an SPL token mint account.
// The mint layout starts with the authority as a COption<Pubkey>.
func GetMintAuthority(mint *syscall.AccountInfo) (OptionalPubkey, error) {
	if len(mint.Data) < optionalPubkeySize {
		return OptionalPubkey{}, fmt.Errorf("%w: mint holds %d bytes", ErrInvalidAccountData, len(mint.Data))
	}
	return DecodeOptionalPubkey(mint.Data[:optionalPubkeySize])
}

// AssertMintAuthorityMatchesMint checks that authority is the mint authority
// and signed the transaction.
func AssertMintAuthorityMatchesMint(mintAuthority OptionalPubkey, authority *syscall.AccountInfo) error {
	key, ok := mintAuthority.Get()
	if !ok || key != authority.Key {
		return InvalidMintAuthority
	}
	if !authority.IsSigner {
		return NotMintAuthority
	}
	return nil
}

func saturatingSub(a, b uint64) uint64 {
	if b >= a {
		return 0
	}
	return a - b
}

// Package types provides well-known program addresses for the Solana/X1 network.
package types

import "fmt"

// Native program addresses.
// These are the same across Solana mainnet and X1.
var (
	// SystemProgramAddr is the System Program address.
	SystemProgramAddr = MustPubkeyFromBase58("11111111111111111111111111111111")

	// TokenProgramAddr is the SPL Token program address.
	TokenProgramAddr = MustPubkeyFromBase58("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")

	// NativeLoaderAddr owns every native program account.
	NativeLoaderAddr = MustPubkeyFromBase58("NativeLoader1111111111111111111111111111111")

	// SysvarOwnerAddr owns every sysvar account.
	SysvarOwnerAddr = MustPubkeyFromBase58("Sysvar1111111111111111111111111111111111111")
)

// Sysvar addresses.
var (
	// SysvarRentAddr is the Rent sysvar address.
	SysvarRentAddr = MustPubkeyFromBase58("SysvarRent111111111111111111111111111111111")
)

// MustPubkeyFromBase58 parses a base58 pubkey or panics.
// Only use for compile-time constants.
func MustPubkeyFromBase58(s string) Pubkey {
	p, err := PubkeyFromBase58(s)
	if err != nil {
		panic(fmt.Sprintf("invalid pubkey constant %q: %v", s, err))
	}
	return p
}

// IsSysvar returns true if the pubkey is a sysvar this runtime can serve.
func IsSysvar(p Pubkey) bool {
	return p == SysvarRentAddr
}

package nftinterface

import (
	"errors"
	"fmt"
)

// Error is a custom program error. Its numeric value is the code reported to
// callers and is part of the compatibility surface: never reorder.
type Error uint32

// Program errors.
const (
	InvalidNFTAccountKey Error = iota
	InvalidFeeReceiverAccountKey
	InvalidMintAuthority
	NotMintAuthority
	IncorrectOwner
	InvalidTokenProgram
	Uninitialized
	NotEnoughSOL
	NotSealed
	ExceedMaxSupply
	InvalidWhitelistAccountKey
)

var errorText = [...]string{
	InvalidNFTAccountKey:         "Invalid new account key.",
	InvalidFeeReceiverAccountKey: "Invalid fee receiver account key.",
	InvalidMintAuthority:         "Invalid Mint Authority.",
	NotMintAuthority:             "Invalid not mint authority.",
	IncorrectOwner:               "Incorrect owner.",
	InvalidTokenProgram:          "Incorrect Token program Id.",
	Uninitialized:                "Uninitialized account.",
	NotEnoughSOL:                 "Not Enough Sol.",
	NotSealed:                    "Not Allow to mint.",
	ExceedMaxSupply:              "Exceed Max supply.",
	InvalidWhitelistAccountKey:   "Invalid Whitelist account key.",
}

func (e Error) Error() string {
	if int(e) < len(errorText) {
		return errorText[e]
	}
	return fmt.Sprintf("unknown nft interface error %d", uint32(e))
}

// Code returns the custom program error code.
func (e Error) Code() uint32 {
	return uint32(e)
}

// Decoding errors.
var (
	ErrInvalidInstructionData = errors.New("invalid instruction data")
	ErrInvalidAccountData     = errors.New("invalid account data")
	ErrInvalidRentSysvar      = errors.New("invalid rent sysvar account")
)

// ErrorCode extracts the custom program error code from err.
func ErrorCode(err error) (uint32, bool) {
	var e Error
	if errors.As(err, &e) {
		return e.Code(), true
	}
	return 0, false
}

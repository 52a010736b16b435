// Package syscall implements PDA (Program Derived Address) operations.
package syscall

import (
	"crypto/sha256"
	"errors"

	"filippo.io/edwards25519"

	"github.com/fortiblox/X1-Interface/internal/types"
)

// PDA constants.
const (
	MaxSeeds   = 16
	MaxSeedLen = 32

	// CUFindPDA is charged for every bump tried by FindProgramAddress.
	CUFindPDA = uint64(1_500)
)

// PDA marker used in address derivation.
var pdaMarker = []byte("ProgramDerivedAddress")

// PDA errors.
var (
	ErrMaxSeedLengthExceeded = errors.New("max seed length exceeded")
	ErrMaxSeedsExceeded      = errors.New("max seeds exceeded")
	ErrInvalidSeeds          = errors.New("invalid seeds - derived address is on curve")
	ErrNoViableBump          = errors.New("unable to find a viable program address bump seed")
)

// CreateProgramAddress derives a program address from seeds and a program ID.
// Returns ErrInvalidSeeds if the derived address is on the ed25519 curve.
func CreateProgramAddress(seeds [][]byte, programID types.Pubkey) (types.Pubkey, error) {
	if len(seeds) > MaxSeeds {
		return types.Pubkey{}, ErrMaxSeedsExceeded
	}

	h := sha256.New()
	for _, seed := range seeds {
		if len(seed) > MaxSeedLen {
			return types.Pubkey{}, ErrMaxSeedLengthExceeded
		}
		h.Write(seed)
	}
	h.Write(programID[:])
	h.Write(pdaMarker)

	var pda types.Pubkey
	copy(pda[:], h.Sum(nil))

	if isOnCurve(pda[:]) {
		return types.Pubkey{}, ErrInvalidSeeds
	}
	return pda, nil
}

// FindProgramAddress finds a valid PDA by iterating bump seeds from 255 to 0.
func FindProgramAddress(seeds [][]byte, programID types.Pubkey) (types.Pubkey, uint8, error) {
	return findProgramAddress(seeds, programID, nil)
}

// FindProgramAddress derives a PDA for the executing program, charging
// CUFindPDA per bump tried.
func (c *ExecutionContext) FindProgramAddress(seeds ...[]byte) (types.Pubkey, uint8, error) {
	return findProgramAddress(seeds, c.ProgramID, c.ConsumeCU)
}

func findProgramAddress(seeds [][]byte, programID types.Pubkey, consume func(uint64) error) (types.Pubkey, uint8, error) {
	if len(seeds) > MaxSeeds-1 {
		return types.Pubkey{}, 0, ErrMaxSeedsExceeded
	}

	seedsWithBump := make([][]byte, len(seeds)+1)
	copy(seedsWithBump, seeds)

	for bump := 255; bump >= 0; bump-- {
		if consume != nil {
			if err := consume(CUFindPDA); err != nil {
				return types.Pubkey{}, 0, err
			}
		}

		seedsWithBump[len(seeds)] = []byte{uint8(bump)}
		pda, err := CreateProgramAddress(seedsWithBump, programID)
		if err == nil {
			return pda, uint8(bump), nil
		}
		if !errors.Is(err, ErrInvalidSeeds) {
			return types.Pubkey{}, 0, err
		}
	}

	return types.Pubkey{}, 0, ErrNoViableBump
}

// isOnCurve reports whether b decodes to a point on the ed25519 curve.
func isOnCurve(b []byte) bool {
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}

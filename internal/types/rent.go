package types

import (
	"encoding/binary"
	"errors"
	"math"
)

// Rent parameters, matching the Solana genesis defaults.
const (
	DefaultLamportsPerByteYear = uint64(3480)
	DefaultExemptionThreshold  = 2.0
	DefaultBurnPercent         = uint8(50)

	// AccountStorageOverhead is charged on top of the data length of every account.
	AccountStorageOverhead = uint64(128)

	// RentSysvarSize is the serialized size of the Rent sysvar.
	RentSysvarSize = 8 + 8 + 1
)

// ErrInvalidRentData is returned when rent sysvar bytes cannot be decoded.
var ErrInvalidRentData = errors.New("invalid rent sysvar data")

// Rent is the Rent sysvar.
type Rent struct {
	LamportsPerByteYear uint64
	ExemptionThreshold  float64
	BurnPercent         uint8
}

// DefaultRent returns the genesis rent configuration.
func DefaultRent() Rent {
	return Rent{
		LamportsPerByteYear: DefaultLamportsPerByteYear,
		ExemptionThreshold:  DefaultExemptionThreshold,
		BurnPercent:         DefaultBurnPercent,
	}
}

// MinimumBalance returns the balance an account holding dataLen bytes needs
// to be rent exempt.
func (r Rent) MinimumBalance(dataLen uint64) uint64 {
	bytes := AccountStorageOverhead + dataLen
	return uint64(float64(bytes*r.LamportsPerByteYear) * r.ExemptionThreshold)
}

// IsExempt reports whether balance covers the rent-exempt minimum for dataLen.
func (r Rent) IsExempt(balance, dataLen uint64) bool {
	return balance >= r.MinimumBalance(dataLen)
}

// Serialize encodes the sysvar as lamports_per_byte_year (u64) ||
// exemption_threshold (f64) || burn_percent (u8).
func (r Rent) Serialize() []byte {
	buf := make([]byte, RentSysvarSize)
	binary.LittleEndian.PutUint64(buf[0:8], r.LamportsPerByteYear)
	binary.LittleEndian.PutUint64(buf[8:16], math.Float64bits(r.ExemptionThreshold))
	buf[16] = r.BurnPercent
	return buf
}

// DeserializeRent decodes the Rent sysvar.
func DeserializeRent(data []byte) (Rent, error) {
	if len(data) < RentSysvarSize {
		return Rent{}, ErrInvalidRentData
	}
	return Rent{
		LamportsPerByteYear: binary.LittleEndian.Uint64(data[0:8]),
		ExemptionThreshold:  math.Float64frombits(binary.LittleEndian.Uint64(data[8:16])),
		BurnPercent:         data[16],
	}, nil
}

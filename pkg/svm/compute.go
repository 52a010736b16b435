package svm

import (
	"errors"
	"sync/atomic"
)

// Compute unit cost constants.
const (
	CUDefault = uint64(200_000)   // Default CU limit per transaction
	CUMax     = uint64(1_400_000) // Max CU limit per transaction

	// Signature verification
	CUSignatureVerify = uint64(720) // Ed25519 signature verification
)

var (
	// ErrComputeExceeded is returned when compute units are exhausted.
	ErrComputeExceeded = errors.New("compute budget exceeded")
)

// ComputeMeter tracks compute unit consumption for one transaction.
type ComputeMeter struct {
	remaining uint64
	consumed  uint64
	limit     uint64
}

// NewComputeMeter creates a new compute meter with the specified limit.
// Limits above CUMax are clamped and a zero limit selects CUDefault.
func NewComputeMeter(limit uint64) *ComputeMeter {
	if limit == 0 {
		limit = CUDefault
	}
	if limit > CUMax {
		limit = CUMax
	}
	return &ComputeMeter{
		remaining: limit,
		limit:     limit,
	}
}

// Consume attempts to consume the specified compute units.
// Returns ErrComputeExceeded if insufficient units remain; the meter is then
// drained.
func (cm *ComputeMeter) Consume(cost uint64) error {
	for {
		remaining := atomic.LoadUint64(&cm.remaining)
		if remaining < cost {
			atomic.StoreUint64(&cm.remaining, 0)
			atomic.AddUint64(&cm.consumed, remaining)
			return ErrComputeExceeded
		}
		if atomic.CompareAndSwapUint64(&cm.remaining, remaining, remaining-cost) {
			atomic.AddUint64(&cm.consumed, cost)
			return nil
		}
	}
}

// Remaining returns the remaining compute units.
func (cm *ComputeMeter) Remaining() uint64 {
	return atomic.LoadUint64(&cm.remaining)
}

// Consumed returns the total consumed compute units.
func (cm *ComputeMeter) Consumed() uint64 {
	return atomic.LoadUint64(&cm.consumed)
}

// Limit returns the compute unit limit.
func (cm *ComputeMeter) Limit() uint64 {
	return cm.limit
}

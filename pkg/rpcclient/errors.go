package rpcclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fortiblox/X1-Interface/internal/types"
)

// Package errors.
var (
	// ErrNoEndpoints is returned when the pool holds no endpoints.
	ErrNoEndpoints = errors.New("no RPC endpoints available")

	// ErrTransactionNotFound is returned when the node has no journal entry
	// for a signature.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrRecordNotFound is returned when a record account does not exist or
	// is not owned by the program.
	ErrRecordNotFound = errors.New("record not found")
)

// RPCError represents a JSON-RPC error response.
type RPCError struct {
	Code    int
	Message string
	Data    json.RawMessage
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// TransactionError is returned by SendTransaction for a transaction the node
// executed but did not commit.
type TransactionError struct {
	Signature     types.Signature
	Logs          []string
	UnitsConsumed uint64

	// Err is the program error when the node reported a custom error code.
	Err error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("transaction %s failed: %v", e.Signature, e.Err)
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is likely transient and worth
// retrying against another endpoint. Errors reported by the node are final.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return false
	}
	var txErr *TransactionError
	if errors.As(err, &txErr) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return !errors.Is(err, ErrNoEndpoints)
}

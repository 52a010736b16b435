// Package rpc provides JSON-RPC 2.0 types for the node API.
package rpc

import (
	"encoding/json"
)

// JSON-RPC 2.0 constants.
const (
	JSONRPCVersion = "2.0"
)

// Request represents a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response represents a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC 2.0 error.
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Context provides slot context for RPC responses.
type Context struct {
	Slot uint64 `json:"slot"`
}

// ResponseWithContext wraps a value with context.
type ResponseWithContext struct {
	Context Context     `json:"context"`
	Value   interface{} `json:"value"`
}

// Encoding types for account and transaction data.
type Encoding string

const (
	EncodingBase58     Encoding = "base58"
	EncodingBase64     Encoding = "base64"
	EncodingBase64Zstd Encoding = "base64+zstd"
)

// DataSlice specifies a portion of account data to return.
type DataSlice struct {
	Offset uint64 `json:"offset"`
	Length uint64 `json:"length"`
}

// AccountInfoConfig configures getAccountInfo and getMultipleAccounts requests.
type AccountInfoConfig struct {
	Encoding       Encoding   `json:"encoding,omitempty"`
	DataSlice      *DataSlice `json:"dataSlice,omitempty"`
	MinContextSlot *uint64    `json:"minContextSlot,omitempty"`
}

// ProgramAccountsConfig configures getProgramAccounts requests.
type ProgramAccountsConfig struct {
	Encoding    Encoding               `json:"encoding,omitempty"`
	DataSlice   *DataSlice             `json:"dataSlice,omitempty"`
	Filters     []ProgramAccountFilter `json:"filters,omitempty"`
	WithContext bool                   `json:"withContext,omitempty"`
}

// ProgramAccountFilter filters program accounts.
type ProgramAccountFilter struct {
	Memcmp   *MemcmpFilter `json:"memcmp,omitempty"`
	DataSize *uint64       `json:"dataSize,omitempty"`
}

// MemcmpFilter matches account data at an offset.
type MemcmpFilter struct {
	Offset   uint64   `json:"offset"`
	Bytes    string   `json:"bytes"`
	Encoding Encoding `json:"encoding,omitempty"`
}

// SignaturesForAddressConfig configures getSignaturesForAddress requests.
type SignaturesForAddressConfig struct {
	Limit  int    `json:"limit,omitempty"`
	Before string `json:"before,omitempty"`
}

// SendTransactionConfig configures sendTransaction requests.
type SendTransactionConfig struct {
	// Encoding of the wire transaction, base58 when empty.
	Encoding Encoding `json:"encoding,omitempty"`
}

// AccountInfo represents account information returned by RPC.
type AccountInfo struct {
	Data       interface{} `json:"data"` // [encoded, encoding]
	Executable bool        `json:"executable"`
	Lamports   uint64      `json:"lamports"`
	Owner      string      `json:"owner"`
	RentEpoch  uint64      `json:"rentEpoch"`
	Space      uint64      `json:"space"`
}

// KeyedAccountInfo wraps AccountInfo with its pubkey.
type KeyedAccountInfo struct {
	Pubkey  string       `json:"pubkey"`
	Account *AccountInfo `json:"account"`
}

// TransactionMeta contains transaction execution metadata.
type TransactionMeta struct {
	Err                  interface{} `json:"err"`
	Fee                  uint64      `json:"fee"`
	LogMessages          []string    `json:"logMessages"`
	ComputeUnitsConsumed uint64      `json:"computeUnitsConsumed"`
	ModifiedAccounts     []string    `json:"modifiedAccounts"`
	DeltaHash            string      `json:"deltaHash"`
}

// TransactionInfo is the journaled view of a transaction.
type TransactionInfo struct {
	Signatures   []string `json:"signatures"`
	AccountKeys  []string `json:"accountKeys"`
	Instructions []string `json:"instructions"`
}

// TransactionResponse represents a transaction returned by RPC.
type TransactionResponse struct {
	Slot        uint64           `json:"slot"`
	Transaction TransactionInfo  `json:"transaction"`
	Meta        *TransactionMeta `json:"meta"`
	BlockTime   *int64           `json:"blockTime"`
}

// SignatureInfo represents signature information for getSignaturesForAddress.
type SignatureInfo struct {
	Signature          string      `json:"signature"`
	Slot               uint64      `json:"slot"`
	Err                interface{} `json:"err"`
	BlockTime          *int64      `json:"blockTime"`
	ConfirmationStatus string      `json:"confirmationStatus,omitempty"`
}

// SignatureStatus represents the status of a transaction signature.
type SignatureStatus struct {
	Slot               uint64      `json:"slot"`
	Confirmations      *uint64     `json:"confirmations"`
	Err                interface{} `json:"err"`
	ConfirmationStatus string      `json:"confirmationStatus,omitempty"`
}

// SimulationFailure is attached to a failed sendTransaction response.
type SimulationFailure struct {
	Signature     string   `json:"signature"`
	Err           string   `json:"err"`
	Code          *uint32  `json:"code,omitempty"`
	Logs          []string `json:"logs"`
	UnitsConsumed uint64   `json:"unitsConsumed"`
}

// VersionInfo represents node version information.
type VersionInfo struct {
	Core       string `json:"core"`
	FeatureSet uint64 `json:"feature-set"`
}

// LatestBlockhash represents the latest blockhash.
type LatestBlockhash struct {
	Blockhash            string `json:"blockhash"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

// InterfaceRecordInfo is the decoded interface record.
type InterfaceRecordInfo struct {
	Address         string `json:"address"`
	PricePerUnit    uint64 `json:"pricePerUnit"`
	MaxSupply       uint16 `json:"maxSupply"`
	TotalSupply     uint16 `json:"totalSupply"`
	UpdateAuthority string `json:"updateAuthority"`
	FeeReceiver     string `json:"feeReceiver"`
	Sealed          uint8  `json:"sealed"`
}

// WhitelistRecordInfo is the decoded whitelist record.
type WhitelistRecordInfo struct {
	Address string `json:"address"`
	Sealed  uint8  `json:"sealed"`
}

// NodeStatus is returned by getNodeStatus.
type NodeStatus struct {
	ProgramID      string `json:"programId"`
	Slot           uint64 `json:"slot"`
	AccountsCount  uint64 `json:"accountsCount"`
	TxsProcessed   uint64 `json:"txsProcessed"`
	TxsFailed      uint64 `json:"txsFailed"`
	JournalEntries uint64 `json:"journalEntries"`
	UptimeSeconds  int64  `json:"uptimeSeconds"`
}

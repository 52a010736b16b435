package rpc

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/fortiblox/X1-Interface/internal/types"
	"github.com/fortiblox/X1-Interface/pkg/accounts"
	"github.com/fortiblox/X1-Interface/pkg/journal"
	"github.com/fortiblox/X1-Interface/pkg/node"
	"github.com/fortiblox/X1-Interface/pkg/svm"
	"github.com/fortiblox/X1-Interface/pkg/svm/programs/nftinterface"
)

// Version information.
const (
	CoreVersion = "x1-interface-0.1.0"
	FeatureSet  = 0
)

// blockhashValidity is how many slots past the current one a blockhash is
// reported valid for.
const blockhashValidity = 150

// Account Methods

// getAccountInfo retrieves account information.
func (s *Server) getAccountInfo(params json.RawMessage) (interface{}, *RPCError) {
	args, rpcErr := parseArgs(params, 1)
	if rpcErr != nil {
		return nil, rpcErr
	}
	pubkey, rpcErr := pubkeyArg(args[0], "pubkey")
	if rpcErr != nil {
		return nil, rpcErr
	}

	var config AccountInfoConfig
	if rpcErr := optionalConfig(args, 1, &config); rpcErr != nil {
		return nil, rpcErr
	}

	currentSlot := s.slot()
	if config.MinContextSlot != nil && *config.MinContextSlot > currentSlot {
		return nil, MinContextSlotError(*config.MinContextSlot, currentSlot)
	}

	account, err := s.backend.Account(pubkey)
	if err != nil {
		if errors.Is(err, accounts.ErrAccountNotFound) {
			return ResponseWithContext{
				Context: Context{Slot: currentSlot},
				Value:   nil,
			}, nil
		}
		return nil, InternalServerErrorf("failed to get account: %v", err)
	}

	accountInfo, rpcErr := accountToAccountInfo(account, config.Encoding, config.DataSlice)
	if rpcErr != nil {
		return nil, rpcErr
	}

	return ResponseWithContext{
		Context: Context{Slot: currentSlot},
		Value:   accountInfo,
	}, nil
}

// getBalance retrieves account balance.
func (s *Server) getBalance(params json.RawMessage) (interface{}, *RPCError) {
	args, rpcErr := parseArgs(params, 1)
	if rpcErr != nil {
		return nil, rpcErr
	}
	pubkey, rpcErr := pubkeyArg(args[0], "pubkey")
	if rpcErr != nil {
		return nil, rpcErr
	}

	currentSlot := s.slot()
	account, err := s.backend.Account(pubkey)
	if err != nil {
		if errors.Is(err, accounts.ErrAccountNotFound) {
			return ResponseWithContext{
				Context: Context{Slot: currentSlot},
				Value:   uint64(0),
			}, nil
		}
		return nil, InternalServerErrorf("failed to get account: %v", err)
	}

	return ResponseWithContext{
		Context: Context{Slot: currentSlot},
		Value:   account.Lamports,
	}, nil
}

// getMultipleAccounts retrieves multiple accounts.
func (s *Server) getMultipleAccounts(params json.RawMessage) (interface{}, *RPCError) {
	args, rpcErr := parseArgs(params, 1)
	if rpcErr != nil {
		return nil, rpcErr
	}

	var pubkeyStrs []string
	if err := json.Unmarshal(args[0], &pubkeyStrs); err != nil {
		return nil, InvalidParamsError("invalid pubkeys array")
	}
	if len(pubkeyStrs) > 100 {
		return nil, InvalidParamsError("too many pubkeys (max 100)")
	}

	var config AccountInfoConfig
	if rpcErr := optionalConfig(args, 1, &config); rpcErr != nil {
		return nil, rpcErr
	}

	currentSlot := s.slot()
	if config.MinContextSlot != nil && *config.MinContextSlot > currentSlot {
		return nil, MinContextSlotError(*config.MinContextSlot, currentSlot)
	}

	accountInfos := make([]*AccountInfo, len(pubkeyStrs))
	for i, pubkeyStr := range pubkeyStrs {
		pubkey, err := types.PubkeyFromBase58(pubkeyStr)
		if err != nil {
			return nil, InvalidParamsErrorf("invalid pubkey at index %d", i)
		}

		account, err := s.backend.Account(pubkey)
		if err != nil {
			if errors.Is(err, accounts.ErrAccountNotFound) {
				continue
			}
			return nil, InternalServerErrorf("failed to get account: %v", err)
		}

		info, rpcErr := accountToAccountInfo(account, config.Encoding, config.DataSlice)
		if rpcErr != nil {
			return nil, rpcErr
		}
		accountInfos[i] = info
	}

	return ResponseWithContext{
		Context: Context{Slot: currentSlot},
		Value:   accountInfos,
	}, nil
}

// getProgramAccounts retrieves accounts owned by a program.
func (s *Server) getProgramAccounts(params json.RawMessage) (interface{}, *RPCError) {
	args, rpcErr := parseArgs(params, 1)
	if rpcErr != nil {
		return nil, rpcErr
	}
	programID, rpcErr := pubkeyArg(args[0], "program ID")
	if rpcErr != nil {
		return nil, rpcErr
	}

	var config ProgramAccountsConfig
	if rpcErr := optionalConfig(args, 1, &config); rpcErr != nil {
		return nil, rpcErr
	}

	currentSlot := s.slot()
	entries, err := s.backend.ProgramAccounts(programID)
	if err != nil {
		return nil, InternalServerErrorf("iteration failed: %v", err)
	}

	results := []KeyedAccountInfo{}
	for _, entry := range entries {
		if !matchesFilters(entry.Account, config.Filters) {
			continue
		}
		info, rpcErr := accountToAccountInfo(entry.Account, config.Encoding, config.DataSlice)
		if rpcErr != nil {
			return nil, rpcErr
		}
		results = append(results, KeyedAccountInfo{
			Pubkey:  entry.Pubkey.String(),
			Account: info,
		})
	}

	if config.WithContext {
		return ResponseWithContext{
			Context: Context{Slot: currentSlot},
			Value:   results,
		}, nil
	}
	return results, nil
}

// Transaction Methods

// sendTransaction executes a signed wire transaction and returns its
// signature. A transaction that executed but failed is journaled and
// reported as a preflight failure carrying the program logs.
func (s *Server) sendTransaction(params json.RawMessage) (interface{}, *RPCError) {
	args, rpcErr := parseArgs(params, 1)
	if rpcErr != nil {
		return nil, rpcErr
	}

	var encoded string
	if err := json.Unmarshal(args[0], &encoded); err != nil {
		return nil, InvalidParamsError("invalid transaction")
	}

	var config SendTransactionConfig
	if rpcErr := optionalConfig(args, 1, &config); rpcErr != nil {
		return nil, rpcErr
	}
	if config.Encoding == "" {
		config.Encoding = EncodingBase58
	}

	raw, err := DecodeData(encoded, config.Encoding)
	if err != nil {
		return nil, InvalidParamsErrorf("failed to decode transaction: %v", err)
	}
	tx, err := svm.DeserializeTransaction(raw)
	if err != nil {
		return nil, InvalidParamsErrorf("failed to deserialize transaction: %v", err)
	}

	result, err := s.backend.Submit(tx)
	switch {
	case errors.Is(err, svm.ErrSignatureVerification):
		return nil, NewRPCError(TransactionSignatureVerificationFailure, err.Error())
	case errors.Is(err, node.ErrAlreadyProcessed):
		return nil, NewRPCError(SendTransactionPreflightFailure, err.Error())
	case errors.Is(err, svm.ErrInvalidTransaction):
		return nil, InvalidParamsError(err.Error())
	case err != nil:
		return nil, InternalServerErrorf("failed to submit transaction: %v", err)
	}

	if !result.Success {
		failure := SimulationFailure{
			Signature:     result.Signature.String(),
			Err:           result.Error(),
			Logs:          result.Logs,
			UnitsConsumed: result.ComputeUnitsConsumed,
		}
		if code, ok := nftinterface.ErrorCode(result.Err); ok {
			failure.Code = &code
		}
		return nil, NewRPCErrorWithData(SendTransactionPreflightFailure,
			"Transaction simulation failed: "+result.Error(), failure)
	}
	return result.Signature.String(), nil
}

// getTransaction retrieves a journaled transaction by signature.
func (s *Server) getTransaction(params json.RawMessage) (interface{}, *RPCError) {
	args, rpcErr := parseArgs(params, 1)
	if rpcErr != nil {
		return nil, rpcErr
	}
	sig, rpcErr := signatureArg(args[0])
	if rpcErr != nil {
		return nil, rpcErr
	}

	entry, err := s.backend.Transaction(sig)
	if err != nil {
		if errors.Is(err, journal.ErrEntryNotFound) {
			return nil, nil
		}
		return nil, InternalServerErrorf("failed to get transaction: %v", err)
	}
	return entryToResponse(entry), nil
}

// getSignaturesForAddress retrieves signatures for transactions involving an address.
func (s *Server) getSignaturesForAddress(params json.RawMessage) (interface{}, *RPCError) {
	args, rpcErr := parseArgs(params, 1)
	if rpcErr != nil {
		return nil, rpcErr
	}
	addr, rpcErr := pubkeyArg(args[0], "address")
	if rpcErr != nil {
		return nil, rpcErr
	}

	var config SignaturesForAddressConfig
	if rpcErr := optionalConfig(args, 1, &config); rpcErr != nil {
		return nil, rpcErr
	}
	if config.Limit <= 0 || config.Limit > journal.DefaultHistoryLimit {
		config.Limit = journal.DefaultHistoryLimit
	}

	opts := &journal.QueryOptions{Limit: config.Limit}
	if config.Before != "" {
		sig, err := types.SignatureFromBase58(config.Before)
		if err != nil {
			return nil, InvalidParamsError("invalid before signature")
		}
		opts.Before = &sig
	}

	entries, err := s.backend.History(addr, opts)
	if err != nil {
		if errors.Is(err, journal.ErrEntryNotFound) {
			return nil, InvalidParamsError("before signature not found")
		}
		return nil, InternalServerErrorf("failed to get signatures: %v", err)
	}

	results := make([]SignatureInfo, len(entries))
	for i, entry := range entries {
		blockTime := entry.BlockTime
		results[i] = SignatureInfo{
			Signature:          entry.Signature.String(),
			Slot:               entry.Slot,
			Err:                entryErr(entry),
			BlockTime:          &blockTime,
			ConfirmationStatus: "finalized",
		}
	}
	return results, nil
}

// getSignatureStatuses retrieves the status of signatures.
func (s *Server) getSignatureStatuses(params json.RawMessage) (interface{}, *RPCError) {
	args, rpcErr := parseArgs(params, 1)
	if rpcErr != nil {
		return nil, rpcErr
	}

	var sigStrs []string
	if err := json.Unmarshal(args[0], &sigStrs); err != nil {
		return nil, InvalidParamsError("invalid signatures array")
	}
	if len(sigStrs) > 256 {
		return nil, InvalidParamsError("too many signatures (max 256)")
	}

	statuses := make([]*SignatureStatus, len(sigStrs))
	for i, sigStr := range sigStrs {
		sig, err := types.SignatureFromBase58(sigStr)
		if err != nil {
			continue
		}
		entry, err := s.backend.Transaction(sig)
		if err != nil {
			continue
		}
		statuses[i] = &SignatureStatus{
			Slot:               entry.Slot,
			Err:                entryErr(entry),
			ConfirmationStatus: "finalized",
		}
	}

	return ResponseWithContext{
		Context: Context{Slot: s.slot()},
		Value:   statuses,
	}, nil
}

// Node Methods

// getSlot returns the current slot.
func (s *Server) getSlot(params json.RawMessage) (interface{}, *RPCError) {
	return s.slot(), nil
}

// getHealth returns the node health status.
func (s *Server) getHealth(params json.RawMessage) (interface{}, *RPCError) {
	if !s.IsHealthy() {
		return nil, ErrNodeUnhealthy
	}
	return "ok", nil
}

// getVersion returns the node version.
func (s *Server) getVersion(params json.RawMessage) (interface{}, *RPCError) {
	return VersionInfo{
		Core:       CoreVersion,
		FeatureSet: FeatureSet,
	}, nil
}

// getNodeStatus returns node counters.
func (s *Server) getNodeStatus(params json.RawMessage) (interface{}, *RPCError) {
	status := s.backend.Status()
	return NodeStatus{
		ProgramID:      s.backend.ProgramID().String(),
		Slot:           status.Slot,
		AccountsCount:  status.AccountsCount,
		TxsProcessed:   status.TxsProcessed,
		TxsFailed:      status.TxsFailed,
		JournalEntries: status.JournalEntries,
		UptimeSeconds:  int64(status.Uptime / time.Second),
	}, nil
}

// getLatestBlockhash returns the blockhash new transactions should carry.
func (s *Server) getLatestBlockhash(params json.RawMessage) (interface{}, *RPCError) {
	slot := s.slot()
	return ResponseWithContext{
		Context: Context{Slot: slot},
		Value: LatestBlockhash{
			Blockhash:            s.backend.LatestBlockhash().String(),
			LastValidBlockHeight: slot + blockhashValidity,
		},
	}, nil
}

// getMinimumBalanceForRentExemption returns the minimum balance for rent exemption.
func (s *Server) getMinimumBalanceForRentExemption(params json.RawMessage) (interface{}, *RPCError) {
	args, rpcErr := parseArgs(params, 1)
	if rpcErr != nil {
		return nil, rpcErr
	}

	var dataLen uint64
	if err := json.Unmarshal(args[0], &dataLen); err != nil {
		return nil, InvalidParamsError("invalid data length")
	}
	return s.backend.Rent().MinimumBalance(dataLen), nil
}

// requestAirdrop credits lamports to an account and returns the new balance.
func (s *Server) requestAirdrop(params json.RawMessage) (interface{}, *RPCError) {
	if !s.config.EnableAirdrop {
		return nil, ErrAirdropDisabled
	}

	args, rpcErr := parseArgs(params, 2)
	if rpcErr != nil {
		return nil, rpcErr
	}
	pubkey, rpcErr := pubkeyArg(args[0], "pubkey")
	if rpcErr != nil {
		return nil, rpcErr
	}

	var lamports uint64
	if err := json.Unmarshal(args[1], &lamports); err != nil {
		return nil, InvalidParamsError("invalid lamports")
	}
	if s.config.MaxAirdrop != 0 && lamports > s.config.MaxAirdrop {
		return nil, InvalidParamsErrorf("airdrop above %d lamports", s.config.MaxAirdrop)
	}

	if err := s.backend.Airdrop(pubkey, lamports); err != nil {
		if errors.Is(err, node.ErrLamportOverflow) {
			return nil, InvalidParamsError(err.Error())
		}
		return nil, InternalServerErrorf("airdrop failed: %v", err)
	}

	account, err := s.backend.Account(pubkey)
	if err != nil {
		return nil, InternalServerErrorf("failed to get account: %v", err)
	}
	return ResponseWithContext{
		Context: Context{Slot: s.slot()},
		Value:   account.Lamports,
	}, nil
}

// NFT Interface Methods

// getInterfaceRecord returns the decoded interface record of an update authority.
func (s *Server) getInterfaceRecord(params json.RawMessage) (interface{}, *RPCError) {
	args, rpcErr := parseArgs(params, 1)
	if rpcErr != nil {
		return nil, rpcErr
	}
	authority, rpcErr := pubkeyArg(args[0], "authority")
	if rpcErr != nil {
		return nil, rpcErr
	}

	address, record, err := s.backend.InterfaceRecord(authority)
	if err != nil {
		return s.missingRecord(err)
	}

	return ResponseWithContext{
		Context: Context{Slot: s.slot()},
		Value: InterfaceRecordInfo{
			Address:         address.String(),
			PricePerUnit:    record.PricePerUnit,
			MaxSupply:       record.MaxSupply,
			TotalSupply:     record.TotalSupply,
			UpdateAuthority: record.UpdateAuthority.String(),
			FeeReceiver:     record.FeeReceiver.String(),
			Sealed:          record.Sealed,
		},
	}, nil
}

// getWhitelistRecord returns the decoded whitelist record of (authority, target).
func (s *Server) getWhitelistRecord(params json.RawMessage) (interface{}, *RPCError) {
	args, rpcErr := parseArgs(params, 2)
	if rpcErr != nil {
		return nil, rpcErr
	}
	authority, rpcErr := pubkeyArg(args[0], "authority")
	if rpcErr != nil {
		return nil, rpcErr
	}
	target, rpcErr := pubkeyArg(args[1], "target")
	if rpcErr != nil {
		return nil, rpcErr
	}

	address, record, err := s.backend.WhitelistRecord(authority, target)
	if err != nil {
		return s.missingRecord(err)
	}

	return ResponseWithContext{
		Context: Context{Slot: s.slot()},
		Value: WhitelistRecordInfo{
			Address: address.String(),
			Sealed:  record.Sealed,
		},
	}, nil
}

// Helper methods

func (s *Server) slot() uint64 {
	return s.backend.Status().Slot
}

// missingRecord maps record lookup errors. Missing and foreign-owned accounts
// read as a null value rather than an error.
func (s *Server) missingRecord(err error) (interface{}, *RPCError) {
	if errors.Is(err, accounts.ErrAccountNotFound) || errors.Is(err, nftinterface.IncorrectOwner) {
		return ResponseWithContext{Context: Context{Slot: s.slot()}, Value: nil}, nil
	}
	if errors.Is(err, nftinterface.ErrInvalidAccountData) {
		return nil, InternalServerErrorf("record is malformed: %v", err)
	}
	return nil, InternalServerErrorf("failed to load record: %v", err)
}

// parseArgs decodes positional params, requiring at least min of them.
func parseArgs(params json.RawMessage, min int) ([]json.RawMessage, *RPCError) {
	var args []json.RawMessage
	if len(params) > 0 {
		if err := json.Unmarshal(params, &args); err != nil {
			return nil, InvalidParamsError("invalid params")
		}
	}
	if len(args) < min {
		return nil, InvalidParamsErrorf("expected at least %d params, got %d", min, len(args))
	}
	return args, nil
}

func optionalConfig(args []json.RawMessage, index int, config interface{}) *RPCError {
	if len(args) <= index {
		return nil
	}
	if err := json.Unmarshal(args[index], config); err != nil {
		return InvalidParamsError("invalid config")
	}
	return nil
}

func pubkeyArg(raw json.RawMessage, name string) (types.Pubkey, *RPCError) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return types.Pubkey{}, InvalidParamsErrorf("invalid %s", name)
	}
	pubkey, err := types.PubkeyFromBase58(s)
	if err != nil {
		return types.Pubkey{}, InvalidParamsErrorf("invalid %s format", name)
	}
	return pubkey, nil
}

func signatureArg(raw json.RawMessage) (types.Signature, *RPCError) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return types.Signature{}, InvalidParamsError("invalid signature")
	}
	sig, err := types.SignatureFromBase58(s)
	if err != nil {
		return types.Signature{}, InvalidParamsError("invalid signature format")
	}
	return sig, nil
}

// accountToAccountInfo converts an internal account to RPC AccountInfo.
func accountToAccountInfo(account *accounts.Account, encoding Encoding, dataSlice *DataSlice) (*AccountInfo, *RPCError) {
	data := ApplyDataSlice(account.Data, dataSlice)

	encodedData, err := EncodeAccountData(data, encoding)
	if err != nil {
		return nil, InternalServerErrorf("failed to encode data: %v", err)
	}

	return &AccountInfo{
		Data:       encodedData,
		Executable: account.Executable,
		Lamports:   account.Lamports,
		Owner:      account.Owner.String(),
		RentEpoch:  account.RentEpoch,
		Space:      uint64(len(account.Data)),
	}, nil
}

// matchesFilters checks if an account matches the given filters.
func matchesFilters(account *accounts.Account, filters []ProgramAccountFilter) bool {
	for _, filter := range filters {
		if filter.DataSize != nil && uint64(len(account.Data)) != *filter.DataSize {
			return false
		}

		if filter.Memcmp != nil {
			encoding := filter.Memcmp.Encoding
			if encoding == "" {
				encoding = EncodingBase58
			}
			cmpBytes, err := DecodeData(filter.Memcmp.Bytes, encoding)
			if err != nil {
				return false
			}

			offset := filter.Memcmp.Offset
			if offset+uint64(len(cmpBytes)) > uint64(len(account.Data)) {
				return false
			}
			for i, b := range cmpBytes {
				if account.Data[offset+uint64(i)] != b {
					return false
				}
			}
		}
	}
	return true
}

// entryErr renders the journaled error, nil for successful transactions.
func entryErr(entry *journal.Entry) interface{} {
	if entry.Success {
		return nil
	}
	return entry.Err
}

func entryToResponse(entry *journal.Entry) *TransactionResponse {
	blockTime := entry.BlockTime
	return &TransactionResponse{
		Slot: entry.Slot,
		Transaction: TransactionInfo{
			Signatures:   []string{entry.Signature.String()},
			AccountKeys:  pubkeysToStrings(entry.Accounts),
			Instructions: entry.Instructions,
		},
		Meta: &TransactionMeta{
			Err:                  entryErr(entry),
			LogMessages:          entry.Logs,
			ComputeUnitsConsumed: entry.ComputeUnitsConsumed,
			ModifiedAccounts:     pubkeysToStrings(entry.ModifiedAccounts),
			DeltaHash:            entry.DeltaHash.String(),
		},
		BlockTime: &blockTime,
	}
}

func pubkeysToStrings(pubkeys []types.Pubkey) []string {
	result := make([]string, len(pubkeys))
	for i, pk := range pubkeys {
		result[i] = pk.String()
	}
	return result
}

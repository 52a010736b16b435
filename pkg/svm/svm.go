// Package svm executes transactions against the accounts database.
//
// A transaction is verified, its accounts are loaded into execution views,
// and each instruction is dispatched to a registered native program under a
// shared compute meter. Account changes are committed as one batch only when
// every instruction succeeds; a failed transaction leaves no trace in state.
package svm

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/fortiblox/X1-Interface/internal/types"
	"github.com/fortiblox/X1-Interface/pkg/accounts"
	"github.com/fortiblox/X1-Interface/pkg/svm/syscall"
)

var (
	// ErrUnbalancedInstruction is returned when an instruction creates or
	// destroys lamports.
	ErrUnbalancedInstruction = errors.New("sum of account balances changed")

	// ErrReadonlyModified is returned when an instruction changes an account
	// the transaction did not mark writable.
	ErrReadonlyModified = errors.New("instruction modified a read-only account")

	// ErrNotExecutable is returned when an instruction targets an account that
	// is not a registered program.
	ErrNotExecutable = errors.New("program is not executable")
)

// Config configures the runtime.
type Config struct {
	// ComputeLimit is the compute budget of one transaction.
	ComputeLimit uint64

	// Rent is served through the rent sysvar when the ledger has none stored.
	Rent types.Rent
}

// DefaultConfig returns the default runtime configuration.
func DefaultConfig() Config {
	return Config{
		ComputeLimit: CUDefault,
		Rent:         types.DefaultRent(),
	}
}

// SVM executes transactions one at a time.
type SVM struct {
	log *logrus.Entry

	config   Config
	accounts accounts.DB

	mu       sync.Mutex
	programs map[types.Pubkey]syscall.Program
}

// New creates a runtime over db.
func New(db accounts.DB, config Config) *SVM {
	if config.ComputeLimit == 0 {
		config.ComputeLimit = CUDefault
	}
	return &SVM{
		log:      logrus.StandardLogger().WithField("type", "svm/runtime"),
		config:   config,
		accounts: db,
		programs: make(map[types.Pubkey]syscall.Program),
	}
}

// RegisterProgram makes a native program invocable at id.
func (s *SVM) RegisterProgram(id types.Pubkey, program syscall.Program) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.programs[id] = program
}

// ExecutionResult contains the result of transaction execution.
type ExecutionResult struct {
	Signature types.Signature

	// Slot is the slot a committed transaction created. A failed
	// transaction reports the current slot, which it does not advance.
	Slot uint64

	Success bool

	// Err is the first instruction failure, nil on success.
	Err error

	Logs                 []string
	ComputeUnitsConsumed uint64

	// ModifiedAccounts lists the accounts committed by the transaction.
	ModifiedAccounts []types.Pubkey

	// DeltaHash commits to the modified accounts' new state.
	DeltaHash types.Hash
}

// Error returns the failure message, empty on success.
func (r *ExecutionResult) Error() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// ExecuteTransaction verifies and executes tx.
//
// A non-nil error means the transaction was rejected before execution
// (malformed, bad signatures) or that storage failed; state is unchanged.
// Instruction failures are reported through the result.
func (s *SVM) ExecuteTransaction(tx *Transaction) (*ExecutionResult, error) {
	if err := tx.Message.Validate(); err != nil {
		return nil, err
	}
	if err := tx.VerifySignatures(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	slot := s.accounts.GetSlot()
	log := s.log.WithFields(logrus.Fields{
		"signature": tx.Signature(),
		"slot":      slot,
	})

	meter := NewComputeMeter(s.config.ComputeLimit)
	result := &ExecutionResult{
		Signature: tx.Signature(),
		Slot:      slot,
		Logs:      make([]string, 0),
	}

	// Signatures are paid for out of the same budget as execution.
	verifyCost := CUSignatureVerify * uint64(len(tx.Signatures))

	views, originals, err := s.loadAccounts(tx)
	if err != nil {
		return nil, err
	}

	env := &syscall.Environment{
		Programs: s.programs,
		Rent:     s.rentFor(views),
		Meter:    meter,
		Logs:     &result.Logs,
	}

	execErr := meter.Consume(verifyCost)
	for i := range tx.Message.Instructions {
		if execErr != nil {
			break
		}
		if err := s.executeInstruction(env, tx, i, views); err != nil {
			execErr = fmt.Errorf("instruction %d failed: %w", i, err)
		}
	}
	result.ComputeUnitsConsumed = meter.Consumed()

	if execErr != nil {
		log.WithError(execErr).Debug("transaction failed")
		result.Err = execErr
		return result, nil
	}

	var entries []accounts.AccountEntry
	for i, view := range views {
		if !tx.Message.IsWritable(i) || !changed(originals[i], view) {
			continue
		}
		entries = append(entries, accounts.AccountEntry{
			Pubkey: view.Key,
			Account: &accounts.Account{
				Lamports:   view.Lamports,
				Data:       view.Data,
				Owner:      view.Owner,
				Executable: view.Executable,
				RentEpoch:  view.RentEpoch,
			},
		})
		result.ModifiedAccounts = append(result.ModifiedAccounts, view.Key)
	}

	if err := s.accounts.SetAccounts(entries); err != nil {
		return nil, fmt.Errorf("commit accounts: %w", err)
	}
	if err := s.accounts.SetSlot(slot + 1); err != nil {
		return nil, fmt.Errorf("advance slot: %w", err)
	}
	if err := s.accounts.Commit(); err != nil {
		return nil, fmt.Errorf("commit metadata: %w", err)
	}

	result.Success = true
	result.Slot = slot + 1
	result.DeltaHash = accounts.ComputeDeltaHash(entries)

	log.WithFields(logrus.Fields{
		"modified": len(entries),
		"cu":       result.ComputeUnitsConsumed,
	}).Debug("transaction committed")
	return result, nil
}

// loadAccounts builds one execution view per account key. The returned
// originals hold untouched copies for change detection.
func (s *SVM) loadAccounts(tx *Transaction) ([]*syscall.AccountInfo, []*accounts.Account, error) {
	keys := tx.Message.AccountKeys
	views := make([]*syscall.AccountInfo, len(keys))
	originals := make([]*accounts.Account, len(keys))

	for i, key := range keys {
		acc, err := s.loadAccount(key)
		if err != nil {
			return nil, nil, fmt.Errorf("load account %s: %w", key, err)
		}
		originals[i] = acc.Clone()

		// Sysvars and programs can be read but never written.
		writable := tx.Message.IsWritable(i) && !types.IsSysvar(key) && !s.isProgram(key)

		views[i] = &syscall.AccountInfo{
			Key:        key,
			Owner:      acc.Owner,
			Lamports:   acc.Lamports,
			Data:       acc.Data,
			Executable: acc.Executable,
			RentEpoch:  acc.RentEpoch,
			IsSigner:   tx.Message.IsSigner(i),
			IsWritable: writable,
		}
	}
	return views, originals, nil
}

func (s *SVM) loadAccount(key types.Pubkey) (*accounts.Account, error) {
	acc, err := s.accounts.GetAccount(key)
	if err == nil {
		return acc, nil
	}
	if !errors.Is(err, accounts.ErrAccountNotFound) {
		return nil, err
	}

	switch {
	case key == types.SysvarRentAddr:
		return &accounts.Account{
			Lamports: 1,
			Data:     s.config.Rent.Serialize(),
			Owner:    types.SysvarOwnerAddr,
		}, nil
	case s.isProgram(key):
		return &accounts.Account{
			Lamports:   1,
			Owner:      types.NativeLoaderAddr,
			Executable: true,
		}, nil
	default:
		// Unknown addresses are empty system accounts.
		return &accounts.Account{Owner: types.SystemProgramAddr}, nil
	}
}

func (s *SVM) isProgram(key types.Pubkey) bool {
	_, ok := s.programs[key]
	return ok
}

// rentFor serves the rent sysvar the transaction loaded, falling back to the
// configured rent.
func (s *SVM) rentFor(views []*syscall.AccountInfo) types.Rent {
	for _, v := range views {
		if v.Key != types.SysvarRentAddr {
			continue
		}
		if rent, err := types.DeserializeRent(v.Data); err == nil {
			return rent
		}
	}
	return s.config.Rent
}

// executeInstruction runs one compiled instruction. The instruction may only
// move lamports between its accounts and may only change writable accounts.
func (s *SVM) executeInstruction(env *syscall.Environment, tx *Transaction, index int, views []*syscall.AccountInfo) error {
	ix := tx.Message.Instructions[index]
	programID := tx.Message.AccountKeys[ix.ProgramIDIndex]

	if _, ok := s.programs[programID]; !ok {
		return fmt.Errorf("%w: %s", ErrNotExecutable, programID)
	}

	infos := make([]*syscall.AccountInfo, len(ix.AccountIndexes))
	before := make(map[types.Pubkey]syscall.AccountInfo, len(ix.AccountIndexes))
	for i, idx := range ix.AccountIndexes {
		infos[i] = views[idx]
		if _, ok := before[views[idx].Key]; !ok {
			snap := *views[idx]
			snap.Data = append([]byte(nil), views[idx].Data...)
			before[views[idx].Key] = snap
		}
	}

	*env.Logs = append(*env.Logs, fmt.Sprintf("Program %s invoke [1]", programID))

	ctx := syscall.NewExecutionContext(env, programID, infos)
	if err := s.programs[programID].Execute(ctx, ix.Data); err != nil {
		*env.Logs = append(*env.Logs, fmt.Sprintf("Program %s failed: %v", programID, err))
		return err
	}

	var pre, post uint64
	for i, idx := range ix.AccountIndexes {
		view := views[idx]
		snap, ok := before[view.Key]
		if !ok {
			continue
		}
		delete(before, view.Key)

		pre += snap.Lamports
		post += view.Lamports
		if !infos[i].IsWritable && !sameState(&snap, view) {
			return fmt.Errorf("%w: %s", ErrReadonlyModified, view.Key)
		}
	}
	if pre != post {
		return fmt.Errorf("%w: %d before, %d after", ErrUnbalancedInstruction, pre, post)
	}

	*env.Logs = append(*env.Logs, fmt.Sprintf("Program %s success", programID))
	return nil
}

func sameState(a, b *syscall.AccountInfo) bool {
	return a.Lamports == b.Lamports && a.Owner == b.Owner && string(a.Data) == string(b.Data)
}

func changed(orig *accounts.Account, view *syscall.AccountInfo) bool {
	return orig.Lamports != view.Lamports ||
		orig.Owner != view.Owner ||
		orig.Executable != view.Executable ||
		string(orig.Data) != string(view.Data)
}

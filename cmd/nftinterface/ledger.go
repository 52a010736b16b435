package main

import (
	"context"
	"crypto/ed25519"
	"errors"
	"strings"
	"time"

	"github.com/fortiblox/X1-Interface/internal/config"
	"github.com/fortiblox/X1-Interface/internal/types"
	"github.com/fortiblox/X1-Interface/pkg/node"
	"github.com/fortiblox/X1-Interface/pkg/rpcclient"
	"github.com/fortiblox/X1-Interface/pkg/svm"
	"github.com/fortiblox/X1-Interface/pkg/svm/programs/nftinterface"
	"github.com/fortiblox/X1-Interface/pkg/svm/syscall"
)

// ledger is what the account and program commands need from a node, either
// opened locally or reached over JSON-RPC.
type ledger interface {
	ProgramID() types.Pubkey
	Status() (node.Status, error)
	Balance(pubkey types.Pubkey) (uint64, error)
	Airdrop(pubkey types.Pubkey, lamports uint64) (uint64, error)
	InterfaceRecord(authority types.Pubkey) (types.Pubkey, *nftinterface.InterfaceRecord, error)
	WhitelistRecord(authority, target types.Pubkey) (types.Pubkey, *nftinterface.WhitelistRecord, error)

	// Submit builds a transaction paid by payer, signs it and executes it.
	Submit(payer ed25519.PrivateKey, signers []ed25519.PrivateKey, ix syscall.Instruction) (*svm.ExecutionResult, error)
}

// withLedger runs fn against the node at cfg.RPCURL when set, otherwise
// against the local data directory.
func withLedger(cfg config.Config, fn func(l ledger) error) error {
	if cfg.RPCURL == "" {
		return withNode(cfg, func(n *node.Node) error {
			return fn(localLedger{n})
		})
	}

	remote, err := dialLedger(context.Background(), strings.Split(cfg.RPCURL, ","), cfg.RPCTimeout)
	if err != nil {
		return err
	}
	return fn(remote)
}

type localLedger struct {
	n *node.Node
}

func (l localLedger) ProgramID() types.Pubkey {
	return l.n.ProgramID()
}

func (l localLedger) Status() (node.Status, error) {
	return l.n.Status(), nil
}

func (l localLedger) Balance(pubkey types.Pubkey) (uint64, error) {
	return l.n.Balance(pubkey)
}

func (l localLedger) Airdrop(pubkey types.Pubkey, lamports uint64) (uint64, error) {
	if err := l.n.Airdrop(pubkey, lamports); err != nil {
		return 0, err
	}
	return l.n.Balance(pubkey)
}

func (l localLedger) InterfaceRecord(authority types.Pubkey) (types.Pubkey, *nftinterface.InterfaceRecord, error) {
	return l.n.InterfaceRecord(authority)
}

func (l localLedger) WhitelistRecord(authority, target types.Pubkey) (types.Pubkey, *nftinterface.WhitelistRecord, error) {
	return l.n.WhitelistRecord(authority, target)
}

func (l localLedger) Submit(payer ed25519.PrivateKey, signers []ed25519.PrivateKey, ix syscall.Instruction) (*svm.ExecutionResult, error) {
	tx, err := signTransaction(l.n.LatestBlockhash(), payer, signers, ix)
	if err != nil {
		return nil, err
	}
	return l.n.Submit(tx)
}

type remoteLedger struct {
	ctx       context.Context
	client    *rpcclient.Client
	programID types.Pubkey
}

// dialLedger connects to the nodes at urls and learns the program id they serve.
func dialLedger(ctx context.Context, urls []string, timeout time.Duration) (*remoteLedger, error) {
	client := rpcclient.Dial(urls, timeout)
	status, err := client.GetNodeStatus(ctx)
	if err != nil {
		return nil, err
	}
	programID, err := types.PubkeyFromBase58(status.ProgramID)
	if err != nil {
		return nil, err
	}
	return &remoteLedger{ctx: ctx, client: client, programID: programID}, nil
}

func (l *remoteLedger) ProgramID() types.Pubkey {
	return l.programID
}

func (l *remoteLedger) Status() (node.Status, error) {
	status, err := l.client.GetNodeStatus(l.ctx)
	if err != nil {
		return node.Status{}, err
	}
	return node.Status{
		Slot:           status.Slot,
		AccountsCount:  status.AccountsCount,
		TxsProcessed:   status.TxsProcessed,
		TxsFailed:      status.TxsFailed,
		JournalEntries: status.JournalEntries,
		Uptime:         time.Duration(status.UptimeSeconds) * time.Second,
	}, nil
}

func (l *remoteLedger) Balance(pubkey types.Pubkey) (uint64, error) {
	return l.client.GetBalance(l.ctx, pubkey)
}

func (l *remoteLedger) Airdrop(pubkey types.Pubkey, lamports uint64) (uint64, error) {
	return l.client.RequestAirdrop(l.ctx, pubkey, lamports)
}

func (l *remoteLedger) InterfaceRecord(authority types.Pubkey) (types.Pubkey, *nftinterface.InterfaceRecord, error) {
	return l.client.GetInterfaceRecord(l.ctx, authority)
}

func (l *remoteLedger) WhitelistRecord(authority, target types.Pubkey) (types.Pubkey, *nftinterface.WhitelistRecord, error) {
	return l.client.GetWhitelistRecord(l.ctx, authority, target)
}

// Submit sends the transaction and reads back its journal entry. A
// transaction the node executed but did not commit is returned as a failed
// result, as the local ledger does.
func (l *remoteLedger) Submit(payer ed25519.PrivateKey, signers []ed25519.PrivateKey, ix syscall.Instruction) (*svm.ExecutionResult, error) {
	blockhash, err := l.client.GetLatestBlockhash(l.ctx)
	if err != nil {
		return nil, err
	}
	tx, err := signTransaction(blockhash, payer, signers, ix)
	if err != nil {
		return nil, err
	}

	signature, err := l.client.SendTransaction(l.ctx, tx)
	var txErr *rpcclient.TransactionError
	if errors.As(err, &txErr) {
		return &svm.ExecutionResult{
			Signature:            txErr.Signature,
			Err:                  txErr.Err,
			Logs:                 txErr.Logs,
			ComputeUnitsConsumed: txErr.UnitsConsumed,
		}, nil
	}
	if err != nil {
		return nil, err
	}

	result := &svm.ExecutionResult{Signature: signature, Success: true}
	entry, err := l.client.GetTransaction(l.ctx, signature)
	if err != nil {
		return nil, err
	}
	result.Slot = entry.Slot
	if entry.Meta != nil {
		result.Logs = entry.Meta.LogMessages
		result.ComputeUnitsConsumed = entry.Meta.ComputeUnitsConsumed
	}
	return result, nil
}

func signTransaction(blockhash types.Hash, payer ed25519.PrivateKey, signers []ed25519.PrivateKey, ix syscall.Instruction) (*svm.Transaction, error) {
	tx, err := svm.NewTransaction(types.PubkeyFromPrivateKey(payer), blockhash, ix)
	if err != nil {
		return nil, err
	}
	if err := tx.Sign(append([]ed25519.PrivateKey{payer}, signers...)...); err != nil {
		return nil, err
	}
	return tx, nil
}

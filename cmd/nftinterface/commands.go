package main

import (
	"crypto/ed25519"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fortiblox/X1-Interface/internal/config"
	"github.com/fortiblox/X1-Interface/internal/types"
	"github.com/fortiblox/X1-Interface/pkg/journal"
	"github.com/fortiblox/X1-Interface/pkg/node"
	"github.com/fortiblox/X1-Interface/pkg/snapshot"
	"github.com/fortiblox/X1-Interface/pkg/svm"
	"github.com/fortiblox/X1-Interface/pkg/svm/programs/nftinterface"
	"github.com/fortiblox/X1-Interface/pkg/svm/syscall"
)

var errUsage = errors.New("invalid arguments")

// withNode opens the node described by cfg for the duration of fn.
func withNode(cfg config.Config, fn func(n *node.Node) error) error {
	return withNodeConfig(node.FromConfig(cfg), fn)
}

func withNodeConfig(nodeConfig node.Config, fn func(n *node.Node) error) error {
	n, err := node.Open(&nodeConfig)
	if err != nil {
		return err
	}
	err = fn(n)
	if closeErr := n.Close(); err == nil {
		err = closeErr
	}
	return err
}

// send signs a transaction paid by payer and submits it. A transaction that
// executed but failed is reported as an error carrying the program error.
func send(l ledger, payer ed25519.PrivateKey, signers []ed25519.PrivateKey, ix syscall.Instruction) error {
	result, err := l.Submit(payer, signers, ix)
	if err != nil {
		return err
	}
	printResult(result)
	if !result.Success {
		return fmt.Errorf("transaction %s failed: %w", result.Signature, result.Err)
	}
	return nil
}

func printResult(result *svm.ExecutionResult) {
	fmt.Printf("Signature: %s\n", result.Signature)
	fmt.Printf("Slot: %d\n", result.Slot)
	if result.Success {
		fmt.Println("Status: Ok")
	} else {
		fmt.Printf("Status: Err(%v)\n", result.Err)
	}
	fmt.Printf("Compute units: %d\n", result.ComputeUnitsConsumed)
	for _, line := range result.Logs {
		fmt.Printf("  %s\n", line)
	}
}

func parseArgs(fs *flag.FlagSet, args []string) (map[string]bool, error) {
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set, nil
}

func requireFlags(set map[string]bool, names ...string) error {
	for _, name := range names {
		if !set[name] {
			return fmt.Errorf("%w: -%s is required", errUsage, name)
		}
	}
	return nil
}

func runKeygen(_ config.Config, args []string) error {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	out := fs.String("out", "", "Key file to write")
	force := fs.Bool("force", false, "Overwrite an existing key file")
	set, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if err := requireFlags(set, "out"); err != nil {
		return err
	}
	if _, err := os.Stat(*out); err == nil && !*force {
		return fmt.Errorf("%s already exists", *out)
	}

	key, err := generateKey()
	if err != nil {
		return err
	}
	if err := writeKeyFile(*out, key); err != nil {
		return err
	}
	fmt.Println(types.PubkeyFromPrivateKey(key))
	return nil
}

func runAirdrop(cfg config.Config, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: airdrop PUBKEY LAMPORTS", errUsage)
	}
	pubkey, err := parsePubkey(args[0])
	if err != nil {
		return err
	}
	lamports, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("%w: lamports: %v", errUsage, err)
	}
	return withLedger(cfg, func(l ledger) error {
		balance, err := l.Airdrop(pubkey, lamports)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d lamports\n", pubkey, balance)
		return nil
	})
}

func runBalance(cfg config.Config, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: balance PUBKEY", errUsage)
	}
	pubkey, err := parsePubkey(args[0])
	if err != nil {
		return err
	}
	return withLedger(cfg, func(l ledger) error {
		balance, err := l.Balance(pubkey)
		if err != nil {
			return err
		}
		fmt.Printf("%d lamports\n", balance)
		return nil
	})
}

func runCreateInterface(cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("create-interface", flag.ContinueOnError)
	authorityPath := fs.String("authority", "", "Update authority key file, also pays rent")
	feeReceiverPath := fs.String("fee-receiver", "", "Fee receiver key file")
	price := fs.Uint64("price", 0, "Price per unit in lamports")
	maxSupply := fs.Uint("max-supply", 0, "Maximum number of mints")
	sealed := fs.Uint("sealed", 0, "Sealed flag")
	set, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if err := requireFlags(set, "authority", "fee-receiver", "price", "max-supply"); err != nil {
		return err
	}

	authority, err := readKeyFile(*authorityPath)
	if err != nil {
		return err
	}
	feeReceiver, err := readKeyFile(*feeReceiverPath)
	if err != nil {
		return err
	}

	return withLedger(cfg, func(l ledger) error {
		authorityKey := types.PubkeyFromPrivateKey(authority)
		ix, err := nftinterface.CreateInterface(l.ProgramID(), types.PubkeyFromPrivateKey(feeReceiver), authorityKey, authorityKey,
			nftinterface.CreateInterfaceArgs{
				PricePerUnit: *price,
				MaxSupply:    uint16(*maxSupply),
				Sealed:       uint8(*sealed),
			})
		if err != nil {
			return err
		}
		return send(l, authority, []ed25519.PrivateKey{feeReceiver}, ix)
	})
}

func runModifyInterface(cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("modify-interface", flag.ContinueOnError)
	authorityPath := fs.String("authority", "", "Update authority key file")
	price := fs.Uint64("price", 0, "New price per unit in lamports")
	maxSupply := fs.Uint("max-supply", 0, "New maximum supply")
	totalSupply := fs.Uint("total-supply", 0, "New total supply")
	sealed := fs.Uint("sealed", 0, "New sealed flag")
	set, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if err := requireFlags(set, "authority"); err != nil {
		return err
	}
	authority, err := readKeyFile(*authorityPath)
	if err != nil {
		return err
	}

	var modify nftinterface.ModifyInterfaceArgs
	if set["price"] {
		modify.PricePerUnit = price
	}
	if set["max-supply"] {
		v := uint16(*maxSupply)
		modify.MaxSupply = &v
	}
	if set["total-supply"] {
		v := uint16(*totalSupply)
		modify.TotalSupply = &v
	}
	if set["sealed"] {
		v := uint8(*sealed)
		modify.Sealed = &v
	}

	return withLedger(cfg, func(l ledger) error {
		ix, err := nftinterface.ModifyInterface(l.ProgramID(), types.PubkeyFromPrivateKey(authority), modify)
		if err != nil {
			return err
		}
		return send(l, authority, nil, ix)
	})
}

func runMint(cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("mint", flag.ContinueOnError)
	payerPath := fs.String("payer", "", "Payer key file")
	authorityArg := fs.String("authority", "", "Update authority of the interface")
	set, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if err := requireFlags(set, "payer", "authority"); err != nil {
		return err
	}
	payer, err := readKeyFile(*payerPath)
	if err != nil {
		return err
	}
	authority, err := parsePubkey(*authorityArg)
	if err != nil {
		return err
	}

	return withLedger(cfg, func(l ledger) error {
		_, record, err := l.InterfaceRecord(authority)
		if err != nil {
			return fmt.Errorf("load interface of %s: %w", authority, err)
		}
		ix, err := nftinterface.MintInterface(l.ProgramID(), authority, record.FeeReceiver, types.PubkeyFromPrivateKey(payer))
		if err != nil {
			return err
		}
		return send(l, payer, nil, ix)
	})
}

func runWithdraw(cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("withdraw", flag.ContinueOnError)
	feeReceiverPath := fs.String("fee-receiver", "", "Fee receiver key file, also pays for the transaction")
	authorityArg := fs.String("authority", "", "Update authority of the interface")
	receiverArg := fs.String("receiver", "", "Account credited with the fees")
	amount := fs.Uint64("amount", 0, "Lamports to withdraw, the whole balance when unset")
	set, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if err := requireFlags(set, "fee-receiver", "authority", "receiver"); err != nil {
		return err
	}
	feeReceiver, err := readKeyFile(*feeReceiverPath)
	if err != nil {
		return err
	}
	authority, err := parsePubkey(*authorityArg)
	if err != nil {
		return err
	}
	receiver, err := parsePubkey(*receiverArg)
	if err != nil {
		return err
	}
	var withdraw *uint64
	if set["amount"] {
		withdraw = amount
	}

	return withLedger(cfg, func(l ledger) error {
		ix, err := nftinterface.GetFeeInterface(l.ProgramID(), authority, types.PubkeyFromPrivateKey(feeReceiver), receiver, withdraw)
		if err != nil {
			return err
		}
		return send(l, feeReceiver, nil, ix)
	})
}

func whitelistFlags(name string, args []string, required ...string) (ed25519.PrivateKey, types.Pubkey, uint8, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	authorityPath := fs.String("authority", "", "Update authority key file, also pays for the transaction")
	targetArg := fs.String("target", "", "Whitelisted account")
	sealed := fs.Uint("sealed", 0, "Sealed flag")
	set, err := parseArgs(fs, args)
	if err != nil {
		return nil, types.Pubkey{}, 0, err
	}
	if err := requireFlags(set, append([]string{"authority", "target"}, required...)...); err != nil {
		return nil, types.Pubkey{}, 0, err
	}
	authority, err := readKeyFile(*authorityPath)
	if err != nil {
		return nil, types.Pubkey{}, 0, err
	}
	target, err := parsePubkey(*targetArg)
	if err != nil {
		return nil, types.Pubkey{}, 0, err
	}
	return authority, target, uint8(*sealed), nil
}

func runCreateWhitelist(cfg config.Config, args []string) error {
	authority, target, sealed, err := whitelistFlags("create-whitelist", args)
	if err != nil {
		return err
	}
	return withLedger(cfg, func(l ledger) error {
		authorityKey := types.PubkeyFromPrivateKey(authority)
		ix, err := nftinterface.CreateWhitelist(l.ProgramID(), authorityKey, authorityKey, target, sealed)
		if err != nil {
			return err
		}
		return send(l, authority, nil, ix)
	})
}

func runModifyWhitelist(cfg config.Config, args []string) error {
	authority, target, sealed, err := whitelistFlags("modify-whitelist", args, "sealed")
	if err != nil {
		return err
	}
	return withLedger(cfg, func(l ledger) error {
		ix, err := nftinterface.ModifyWhitelist(l.ProgramID(), types.PubkeyFromPrivateKey(authority), target, sealed)
		if err != nil {
			return err
		}
		return send(l, authority, nil, ix)
	})
}

func runShow(cfg config.Config, args []string) error {
	if len(args) != 1 && len(args) != 2 {
		return fmt.Errorf("%w: show AUTHORITY [TARGET]", errUsage)
	}
	authority, err := parsePubkey(args[0])
	if err != nil {
		return err
	}

	if len(args) == 2 {
		target, err := parsePubkey(args[1])
		if err != nil {
			return err
		}
		return withLedger(cfg, func(l ledger) error {
			address, record, err := l.WhitelistRecord(authority, target)
			if err != nil {
				return err
			}
			fmt.Printf("Whitelist: %s\n", address)
			fmt.Printf("  Sealed: %d\n", record.Sealed)
			return nil
		})
	}

	return withLedger(cfg, func(l ledger) error {
		address, record, err := l.InterfaceRecord(authority)
		if err != nil {
			return err
		}
		fmt.Printf("Interface: %s\n", address)
		fmt.Printf("  Price per unit:   %d\n", record.PricePerUnit)
		fmt.Printf("  Supply:           %d / %d\n", record.TotalSupply, record.MaxSupply)
		fmt.Printf("  Update authority: %s\n", record.UpdateAuthority)
		fmt.Printf("  Fee receiver:     %s\n", record.FeeReceiver)
		fmt.Printf("  Sealed:           %d\n", record.Sealed)
		return nil
	})
}

func runHistory(cfg config.Config, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: history ADDRESS", errUsage)
	}
	address, err := parsePubkey(args[0])
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "Maximum number of entries")
	before := fs.String("before", "", "Only entries older than this signature")
	set, err := parseArgs(fs, args[1:])
	if err != nil {
		return err
	}

	opts := &journal.QueryOptions{Limit: *limit}
	if set["before"] {
		signature, err := types.SignatureFromBase58(*before)
		if err != nil {
			return fmt.Errorf("%w: before: %v", errUsage, err)
		}
		opts.Before = &signature
	}

	return withNode(cfg, func(n *node.Node) error {
		entries, err := n.History(address, opts)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			status := "ok"
			if !entry.Success {
				status = "failed"
			}
			fmt.Printf("%d\t%s\t%s\t%v\n", entry.Slot, entry.Signature, status, entry.Instructions)
		}
		return nil
	})
}

func runTransaction(cfg config.Config, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: tx SIGNATURE", errUsage)
	}
	signature, err := types.SignatureFromBase58(args[0])
	if err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	return withNode(cfg, func(n *node.Node) error {
		entry, err := n.Transaction(signature)
		if err != nil {
			return err
		}
		fmt.Printf("Signature: %s\n", entry.Signature)
		fmt.Printf("Slot: %d\n", entry.Slot)
		fmt.Printf("Time: %s\n", time.Unix(entry.BlockTime, 0).UTC().Format(time.RFC3339))
		if entry.Success {
			fmt.Println("Status: Ok")
		} else {
			fmt.Printf("Status: Err(%s)\n", entry.Err)
		}
		fmt.Printf("Instructions: %v\n", entry.Instructions)
		fmt.Printf("Compute units: %d\n", entry.ComputeUnitsConsumed)
		fmt.Printf("Delta hash: %s\n", entry.DeltaHash)
		for _, line := range entry.Logs {
			fmt.Printf("  %s\n", line)
		}
		return nil
	})
}

func runStatus(cfg config.Config, _ []string) error {
	return withLedger(cfg, func(l ledger) error {
		status, err := l.Status()
		if err != nil {
			return err
		}
		fmt.Printf("Program:         %s\n", l.ProgramID())
		fmt.Printf("Slot:            %d\n", status.Slot)
		fmt.Printf("Accounts:        %d\n", status.AccountsCount)
		fmt.Printf("Journal entries: %d\n", status.JournalEntries)
		return nil
	})
}

func runSnapshotExport(cfg config.Config, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: snapshot-export FILE", errUsage)
	}
	return withNode(cfg, func(n *node.Node) error {
		header, err := n.ExportSnapshot(args[0])
		if err != nil {
			return err
		}
		logrus.WithFields(logrus.Fields{
			"path":     args[0],
			"slot":     header.Slot,
			"accounts": header.AccountsCount,
		}).Info("snapshot exported")
		fmt.Printf("Accounts hash: %s\n", header.AccountsHash)
		return nil
	})
}

func runSnapshotImport(cfg config.Config, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: snapshot-import FILE", errUsage)
	}
	file, err := os.Open(args[0])
	if err != nil {
		return err
	}
	header, err := snapshot.ReadHeader(file)
	file.Close()
	if err != nil {
		return err
	}

	nodeConfig := node.FromConfig(cfg)
	nodeConfig.SnapshotPath = args[0]
	return withNodeConfig(nodeConfig, func(n *node.Node) error {
		status := n.Status()
		if status.Slot != header.Slot || status.AccountsCount != header.AccountsCount {
			return fmt.Errorf("%w: node already holds %d accounts at slot %d", snapshot.ErrNotEmpty, status.AccountsCount, status.Slot)
		}
		fmt.Printf("Imported %d accounts at slot %d\n", header.AccountsCount, header.Slot)
		return nil
	})
}

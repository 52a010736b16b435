// X1-Interface: NFT interface node
//
// This is the command line entry point. Every subcommand opens the node's
// data directory, performs one operation and closes it again, except serve,
// which keeps the node open behind the JSON-RPC server.
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/fortiblox/X1-Interface/internal/config"
	"github.com/fortiblox/X1-Interface/pkg/svm/programs/nftinterface"
)

// Version information
var (
	Version   = "0.1.0"
	GitCommit = "dev"
)

// Global flags. Set flags override the config file and environment.
var (
	configPath  = flag.String("config", "", "Path to a config file (yaml, json or toml)")
	dataDir     = flag.String("data-dir", "", "Data directory for accounts and journal")
	logLevel    = flag.String("log-level", "", "Log level: debug, info, warn, error")
	inMemory    = flag.Bool("in-memory", false, "Keep accounts in memory")
	rpcURL      = flag.String("url", "", "Comma separated node RPC URLs; account and program commands use them instead of the data directory")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

type command struct {
	usage string
	run   func(cfg config.Config, args []string) error
}

var commands = map[string]command{
	"keygen":           {"keygen -out FILE", runKeygen},
	"airdrop":          {"airdrop PUBKEY LAMPORTS", runAirdrop},
	"balance":          {"balance PUBKEY", runBalance},
	"create-interface": {"create-interface -authority FILE -fee-receiver FILE -price N -max-supply N [-sealed N]", runCreateInterface},
	"modify-interface": {"modify-interface -authority FILE [-price N] [-max-supply N] [-total-supply N] [-sealed N]", runModifyInterface},
	"mint":             {"mint -payer FILE -authority PUBKEY", runMint},
	"withdraw":         {"withdraw -fee-receiver FILE -authority PUBKEY -receiver PUBKEY [-amount N]", runWithdraw},
	"create-whitelist": {"create-whitelist -authority FILE -target PUBKEY [-sealed N]", runCreateWhitelist},
	"modify-whitelist": {"modify-whitelist -authority FILE -target PUBKEY -sealed N", runModifyWhitelist},
	"show":             {"show AUTHORITY [TARGET]", runShow},
	"history":          {"history ADDRESS [-limit N] [-before SIGNATURE]", runHistory},
	"tx":               {"tx SIGNATURE", runTransaction},
	"status":           {"status", runStatus},
	"snapshot-export":  {"snapshot-export FILE", runSnapshotExport},
	"snapshot-import":  {"snapshot-import FILE", runSnapshotImport},
	"serve":            {"serve [-addr HOST:PORT] [-airdrop]", runServe},
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "Usage: %s [flags] COMMAND [args]\n\nCommands:\n", os.Args[0])
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "  %s\n", commands[name].usage)
	}
	fmt.Fprintln(out, "\nFlags:")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if *showVersion {
		fmt.Printf("X1-Interface %s (%s)\n", Version, GitCommit)
		os.Exit(0)
	}

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}
	cmd, ok := commands[flag.Arg(0)]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", flag.Arg(0))
		usage()
		os.Exit(2)
	}

	cfg, err := loadConfig()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}
	logrus.SetLevel(cfg.Level())
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if err := cmd.run(cfg, flag.Args()[1:]); err != nil {
		if code, ok := nftinterface.ErrorCode(err); ok {
			fmt.Fprintf(os.Stderr, "error: %v (custom program error 0x%x)\n", err, code)
		} else {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

// loadConfig reads the config file and environment, then applies the flags
// given on the command line.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return cfg, err
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "data-dir":
			cfg.DataDir = *dataDir
		case "log-level":
			cfg.LogLevel = *logLevel
		case "in-memory":
			cfg.InMemory = *inMemory
		case "url":
			cfg.RPCURL = *rpcURL
		}
	})
	return cfg, cfg.Validate()
}

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/fortiblox/X1-Interface/internal/config"
	"github.com/fortiblox/X1-Interface/pkg/node"
	"github.com/fortiblox/X1-Interface/pkg/rpc"
)

// rpcConfig builds the RPC server configuration from loaded settings.
func rpcConfig(cfg config.Config) rpc.Config {
	c := rpc.DefaultConfig()
	c.Addr = cfg.RPCAddr
	c.EnableAirdrop = cfg.EnableAirdrop
	c.MaxAirdrop = cfg.MaxAirdrop
	c.LogRequests = cfg.Level() >= logrus.DebugLevel
	return c
}

// runServe keeps the node open and serves JSON-RPC until SIGINT or SIGTERM.
func runServe(cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := fs.String("addr", cfg.RPCAddr, "Listen address")
	airdrop := fs.Bool("airdrop", cfg.EnableAirdrop, "Serve requestAirdrop")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}
	cfg.RPCAddr = *addr
	cfg.EnableAirdrop = *airdrop

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			logrus.WithField("signal", sig).Info("shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()

	return withNode(cfg, func(n *node.Node) error {
		server := rpc.New(rpcConfig(cfg), n)
		logrus.WithFields(logrus.Fields{
			"addr":       cfg.RPCAddr,
			"program_id": n.ProgramID(),
			"airdrop":    cfg.EnableAirdrop,
		}).Info("serving")
		return server.Start(ctx)
	})
}

// Command sphagnumdb runs a single clustered key-value store node: it
// binds a peer transport, optionally dials a seed peer, and exposes an
// operator line shell over stdin/stdout.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"sphagnumdb/internal/engine"
	"sphagnumdb/internal/logging"
	"sphagnumdb/internal/node"
	"sphagnumdb/internal/shell"
	"sphagnumdb/internal/transport"
	"sphagnumdb/pkg/config"
)

var (
	configPath = flag.String("config", "configs/sphagnumdb.yaml", "Path to configuration file")
	nodeID     = flag.String("node-id", "", "Unique node identifier (for logging only)")
	bindAddr   = flag.String("bind", "", "Multiaddress to listen on, e.g. /ip4/0.0.0.0/tcp/7946")
	peerAddr   = flag.String("peer", "", "Multiaddress of an initial peer to dial")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *nodeID != "" {
		cfg.Node.ID = *nodeID
	}
	if *bindAddr != "" {
		cfg.Network.ListenAddr = *bindAddr
	}

	logger, err := logging.InitializeFromConfig(cfg.Node.ID, logging.LogConfig{
		Level:         cfg.Logging.Level,
		EnableConsole: cfg.Logging.EnableConsole,
		EnableFile:    cfg.Logging.EnableFile,
		LogFile:       cfg.Logging.LogFile,
		BufferSize:    cfg.Logging.BufferSize,
		LogDir:        cfg.Logging.LogDir,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	startupCorrelationID := logging.NewCorrelationID()
	ctx := logging.WithCorrelationID(context.Background(), startupCorrelationID)

	logging.Info(ctx, logging.ComponentMain, logging.ActionStart, "sphagnumdb node starting", map[string]interface{}{
		"node_id":     cfg.Node.ID,
		"config_file": *configPath,
	})

	n := node.New(engine.NewStringEngine(), transport.NewSerfAdapter())

	if err := n.ListenOn(cfg.Network.ListenAddr); err != nil {
		logging.Fatal(ctx, logging.ComponentMain, logging.ActionListen, "failed to listen", err)
		fmt.Fprintf(os.Stderr, "FATAL: failed to listen on %s: %v\n", cfg.Network.ListenAddr, err)
		os.Exit(1)
	}
	fmt.Printf("PeerID: %s\n", n.PeerID())
	fmt.Printf("Node is listening on: %s\n", cfg.Network.ListenAddr)

	dialTargets := cfg.Cluster.Seeds
	if *peerAddr != "" {
		dialTargets = append(dialTargets, *peerAddr)
	}
	for _, addr := range dialTargets {
		if err := n.Dial(addr); err != nil {
			logging.Error(ctx, logging.ComponentMain, logging.ActionDial, "failed to dial seed", err,
				map[string]interface{}{"address": addr})
			continue
		}
		fmt.Printf("Connected to node at: %s\n", addr)
	}
	for _, peer := range cfg.Cluster.ReplicaSet {
		n.AddToReplicaSet(peer)
	}
	if cfg.Cluster.PingVerbose {
		n.EnablePingVerbose()
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		for {
			if err := n.HandleEvent(runCtx); err != nil {
				return
			}
		}
	}()

	sh := shell.New(n)
	go func() {
		if err := sh.Run(runCtx, os.Stdin, os.Stdout); err != nil && !strings.Contains(err.Error(), "context canceled") {
			logging.Warn(runCtx, logging.ComponentShell, logging.ActionRequest, "shell exited", map[string]interface{}{"error": err.Error()})
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	fmt.Println("\nshutting down sphagnumdb node")
	cancel()
	logging.Info(ctx, logging.ComponentMain, logging.ActionStop, "sphagnumdb node stopped", nil)
}

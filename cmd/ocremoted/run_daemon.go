package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/cyb0124/ocremote/config"
	"github.com/cyb0124/ocremote/factory"
	"github.com/cyb0124/ocremote/transport"
)

// runDaemon loads the controller's configuration, brings up the agent
// transport, and drives the factory's cycle engine until a shutdown
// signal arrives.
//
// Wiring storages, processes, recipes, and the bus inventory location
// into the Factory stays a Go assembly API (see config.Config's doc
// comment): a concrete deployment builds its own main package, or its
// own init step, that imports this one's pieces and calls
// AddStorage/AddProcess/AddBackup/SetBusInventory before handing the
// Factory to Run. This entrypoint brings up an empty plant.
func runDaemon(args []string) {
	daemonCmd := flag.NewFlagSet("daemon", flag.ExitOnError)
	configPath := daemonCmd.String("c", "", "path to the YAML config file (required)")
	if daemonCmd.Parse(args) != nil {
		os.Exit(1)
	}
	logger := log.New(os.Stderr, "", log.Lshortfile)
	if *configPath == "" {
		logger.Fatal("missing required -c <config file> flag")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal(err)
	}
	logf := logger.Printf
	if !cfg.LogVerbose {
		logf = func(string, ...any) {}
	}

	f := factory.New(cfg.BusSize, cfg.MinCycleTime)
	f.Logf = logger.Printf
	registry := transport.NewRegistry(logger.Printf)
	server, err := transport.NewServer(cfg.ListenAddr, registry, f.Loop(), f.Alive(), logf)
	if err != nil {
		logger.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		logger.Printf("ocremoted listening on %v", server.Addr())
		if err := server.Serve(ctx); err != nil {
			logger.Printf("transport server stopped: %s", err)
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		logger.Println("shutting down")
		cancel()
	}()

	if err := f.Run(ctx); err != nil {
		logger.Printf("factory run stopped: %s", err)
	}
	f.Shutdown()
}

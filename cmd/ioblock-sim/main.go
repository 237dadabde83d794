// Command ioblock-sim is an interactive simulator for the conditioned I/O
// block family.
//
// It creates blocks from a YAML definition file (or a built-in demo set),
// drives their manual pins from a readline shell, steps them on a fixed
// cycle or on demand, and exposes the whole block surface: outputs, fault
// tables, operating modes, hot reconfiguration and parameter snapshots.
//
// Usage:
//
//	ioblock-sim [flags]
//
// Flags:
//
//	-blocks string     Block definition file (default "blocks.yaml")
//	-values string     YAML value-provider file for keyed links
//	-log string        CBOR diagnostic event log file
//	-snapshots string  Parameter snapshot store (default "snapshots.json")
//	-cycle duration    Cycle period (default 25ms)
//	-auto              Start free-running immediately
//
// Examples:
//
//	# Built-in demo set, one block of each type
//	ioblock-sim
//
//	# Custom block set with an event log
//	ioblock-sim -blocks rig.yaml -log events.cbor
//
//	# Free-run a 10ms control cycle
//	ioblock-sim -cycle 10ms -auto
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ioblock/ioblock-go/cmd/ioblock-sim/interactive"
	"github.com/ioblock/ioblock-go/pkg/block"
	"github.com/ioblock/ioblock-go/pkg/blocks"
	"github.com/ioblock/ioblock-go/pkg/confdb"
	evlog "github.com/ioblock/ioblock-go/pkg/log"
	"github.com/ioblock/ioblock-go/pkg/persistence"
	"github.com/ioblock/ioblock-go/pkg/version"
)

// Config holds the simulator configuration.
type Config struct {
	Definitions string
	Values      string
	EventLog    string
	Snapshots   string
	Cycle       time.Duration
	Auto        bool
}

var config Config

func init() {
	flag.StringVar(&config.Definitions, "blocks", "blocks.yaml", "Block definition file")
	flag.StringVar(&config.Values, "values", "", "YAML value-provider file for keyed links")
	flag.StringVar(&config.EventLog, "log", "", "CBOR diagnostic event log file")
	flag.StringVar(&config.Snapshots, "snapshots", "snapshots.json", "Parameter snapshot store")
	flag.DurationVar(&config.Cycle, "cycle", 25*time.Millisecond, "Cycle period")
	flag.BoolVar(&config.Auto, "auto", false, "Start free-running immediately")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	log.Printf("I/O Block Simulator (library %s)", version.Current)
	log.Println("===================")

	defs := loadBlockSet()

	cycle := config.Cycle
	if defs.Cycle != "" {
		d, err := time.ParseDuration(defs.Cycle)
		if err != nil || d <= 0 {
			log.Fatalf("Invalid cycle in definitions: %q", defs.Cycle)
		}
		cycle = d
	}

	var provider confdb.Provider
	valuesPath := config.Values
	if valuesPath == "" {
		valuesPath = defs.Values
	}
	if valuesPath != "" {
		file, err := confdb.LoadFile(valuesPath)
		if err != nil {
			log.Fatalf("Failed to load value provider: %v", err)
		}
		log.Printf("Value provider: %s (%d keys)", valuesPath, file.Len())
		provider = file
	}

	var logger evlog.Logger
	var fileLogger *evlog.FileLogger
	if config.EventLog != "" {
		fl, err := evlog.NewFileLogger(config.EventLog)
		if err != nil {
			log.Fatalf("Failed to open event log: %v", err)
		}
		fileLogger = fl
		logger = fl
		log.Printf("Event log: %s", config.EventLog)
	}

	registry, err := block.NewRegistry()
	if err != nil {
		log.Fatalf("Failed to create registry: %v", err)
	}
	if err := blocks.RegisterStandardTypes(registry); err != nil {
		log.Fatalf("Failed to register block types: %v", err)
	}

	simBlocks, err := buildBlocks(defs, registry, provider, logger)
	if err != nil {
		log.Fatalf("Failed to build blocks: %v", err)
	}
	for _, b := range simBlocks {
		if err := b.Core().Init(); err != nil {
			log.Printf("Warning: init %s: %v", b.Name, err)
		}
	}
	log.Printf("Blocks: %d, cycle %s", len(simBlocks), cycle)

	store := persistence.NewStore(config.Snapshots)

	sim, err := interactive.New(registry, simBlocks, store, cycle)
	if err != nil {
		log.Fatalf("Failed to create shell: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redirect log output through readline to avoid interfering with input
	log.SetOutput(sim.Stdout())

	if config.Auto {
		sim.StartFreeRun()
	}
	go sim.Run(ctx, cancel)

	// Wait for shutdown signal or context cancellation
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("Received signal: %v", sig)
	case <-ctx.Done():
		// Context was cancelled by the quit command
	}

	log.Println("Shutting down...")
	cancel()
	if fileLogger != nil {
		if err := fileLogger.Close(); err != nil {
			log.Printf("Error closing event log: %v", err)
		}
	}
	log.Println("Goodbye!")
}

// loadBlockSet reads the definitions file, falling back to the demo set
// when the default file does not exist.
func loadBlockSet() *definitionsFile {
	if _, err := os.Stat(config.Definitions); err != nil {
		if config.Definitions == "blocks.yaml" && os.IsNotExist(err) {
			log.Println("No definitions file, using built-in demo set")
			return demoDefinitions()
		}
		log.Fatalf("Definitions file: %v", err)
	}
	defs, err := loadDefinitions(config.Definitions)
	if err != nil {
		log.Fatalf("Failed to load definitions: %v", err)
	}
	if len(defs.Blocks) == 0 {
		log.Fatalf("Definitions file %s names no blocks", config.Definitions)
	}
	log.Printf("Definitions: %s", config.Definitions)
	return defs
}

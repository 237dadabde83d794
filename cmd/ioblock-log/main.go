// Command ioblock-log is a tool for viewing and analyzing block diagnostic
// log files.
//
// Log files are created by passing a log.FileLogger to block configurations
// or running ioblock-sim with the -log flag.
//
// Usage:
//
//	ioblock-log <command> [flags] <file.cbor>
//
// Commands:
//
//	view     View log file in human-readable format
//	export   Export log file to JSON or CSV format
//	stats    Show statistics about the log file
//
// Examples:
//
//	# View all events
//	ioblock-log view events.cbor
//
//	# View only fault edges of one block
//	ioblock-log view -block front-axle -type fault events.cbor
//
//	# Export a time window to JSONL
//	ioblock-log export -format jsonl -since 2026-08-23T10:00:00Z events.cbor
//
//	# Show statistics
//	ioblock-log stats events.cbor
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ioblock/ioblock-go/cmd/ioblock-log/commands"
	"github.com/ioblock/ioblock-go/pkg/log"
)

const usage = `ioblock-log - I/O Block Diagnostic Log Analyzer

Usage:
  ioblock-log <command> [flags] <file.cbor>

Commands:
  view     View log file in human-readable format
  export   Export log file to JSON or CSV format
  stats    Show statistics about the log file

Use "ioblock-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "export":
		runExport(args)
	case "stats":
		runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

// filterFlags registers the shared filter flags on fs and returns a builder
// that assembles the log.Filter after parsing.
func filterFlags(fs *flag.FlagSet) func() log.Filter {
	blockName := fs.String("block", "", "Filter by block name")
	blockType := fs.String("block-type", "", "Filter by registered type name")
	instance := fs.String("instance", "", "Filter by instance UUID")
	eventType := fs.String("type", "", "Filter by event type (state, fault, reconfig, lock, snapshot)")
	kind := fs.Int("kind", -1, "Filter fault events by check bit position")
	since := fs.String("since", "", "Filter by start time (RFC3339)")
	until := fs.String("until", "", "Filter by end time (RFC3339)")

	return func() log.Filter {
		filter := log.Filter{
			Block:     *blockName,
			BlockType: *blockType,
			Instance:  *instance,
		}
		if *eventType != "" {
			t, err := commands.ParseTypeFlag(*eventType)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			filter.Type = &t
		}
		if *kind >= 0 {
			if *kind > 255 {
				fmt.Fprintf(os.Stderr, "Error: invalid fault kind: %d\n", *kind)
				os.Exit(1)
			}
			k := uint8(*kind)
			filter.FaultKind = &k
		}
		if *since != "" {
			t, err := time.Parse(time.RFC3339, *since)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: invalid -since: %v\n", err)
				os.Exit(1)
			}
			filter.TimeStart = &t
		}
		if *until != "" {
			t, err := time.Parse(time.RFC3339, *until)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: invalid -until: %v\n", err)
				os.Exit(1)
			}
			filter.TimeEnd = &t
		}
		return filter
	}
}

func runView(args []string) {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `ioblock-log view - View log file in human-readable format

Usage:
  ioblock-log view [flags] <file.cbor>

Flags:
`)
		fs.PrintDefaults()
	}

	buildFilter := filterFlags(fs)

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}

	if err := commands.RunView(fs.Arg(0), buildFilter(), os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `ioblock-log export - Export log file to JSON or CSV format

Usage:
  ioblock-log export [flags] <file.cbor>

Flags:
`)
		fs.PrintDefaults()
	}

	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.String("o", "", "Output file (default: stdout)")
	buildFilter := filterFlags(fs)

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}

	if err := commands.RunExport(fs.Arg(0), buildFilter(), *format, *output); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `ioblock-log stats - Show statistics about the log file

Usage:
  ioblock-log stats <file.cbor>

`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}

	if err := commands.RunStats(fs.Arg(0), os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

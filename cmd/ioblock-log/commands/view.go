// Package commands implements the ioblock-log CLI commands.
package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/ioblock/ioblock-go/pkg/log"
)

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	// Header line: timestamp [block] TYPE block-type
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	fmt.Fprintf(w, "%s [%s] %-8s %s\n", ts, event.Block, event.Type, event.BlockType)

	// Type-specific details
	switch {
	case event.State != nil:
		formatStateDetails(w, event.State)
	case event.Fault != nil:
		formatFaultDetails(w, event.Fault)
	case event.Reconfig != nil:
		formatReconfigDetails(w, event.Reconfig)
	case event.Lock != nil:
		fmt.Fprintf(w, "  Cause: %s\n", event.Lock.Cause)
	case event.Snapshot != nil:
		formatSnapshotDetails(w, event.Snapshot)
	}

	fmt.Fprintln(w) // Blank line between events
}

// formatStateDetails writes lifecycle transition details.
func formatStateDetails(w io.Writer, sc *log.StateEvent) {
	if sc.From != "" {
		fmt.Fprintf(w, "  %s -> %s", sc.From, sc.To)
	} else {
		fmt.Fprintf(w, "  -> %s", sc.To)
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, " (%s)", sc.Reason)
	}
	fmt.Fprintln(w)
}

// formatFaultDetails writes fault edge details.
func formatFaultDetails(w io.Writer, fe *log.FaultEvent) {
	name := fe.Name
	if name == "" {
		name = fmt.Sprintf("KIND_%d", fe.Kind)
	}
	fmt.Fprintf(w, "  [%d] %s %s %s\n", fe.Kind, name, fe.Class, fe.Edge)
}

// formatReconfigDetails writes reconfiguration attempt details.
func formatReconfigDetails(w io.Writer, rc *log.ReconfigEvent) {
	if rc.Accepted {
		fmt.Fprintf(w, "  %s accepted\n", rc.Operation)
		return
	}
	if rc.Detail != "" {
		fmt.Fprintf(w, "  %s refused: %s\n", rc.Operation, rc.Detail)
	} else {
		fmt.Fprintf(w, "  %s refused\n", rc.Operation)
	}
}

// formatSnapshotDetails writes snapshot persistence details.
func formatSnapshotDetails(w io.Writer, snap *log.SnapshotEvent) {
	fmt.Fprintf(w, "  Key: %s\n", snap.Key)
	if snap.Digest != "" {
		fmt.Fprintf(w, "  Digest: %s\n", snap.Digest)
	}
	if snap.Path != "" {
		fmt.Fprintf(w, "  Path: %s\n", snap.Path)
	}
}

// ParseTypeFlag parses an event type string from a command-line flag
// (case-insensitive).
func ParseTypeFlag(s string) (log.Type, error) {
	switch strings.ToLower(s) {
	case "state":
		return log.TypeState, nil
	case "fault":
		return log.TypeFault, nil
	case "reconfig":
		return log.TypeReconfig, nil
	case "lock":
		return log.TypeLock, nil
	case "snapshot":
		return log.TypeSnapshot, nil
	default:
		return 0, fmt.Errorf("invalid type: %s (must be state, fault, reconfig, lock, or snapshot)", s)
	}
}

// RunView executes the view command.
func RunView(path string, filter log.Filter, output io.Writer) error {
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}

		formatEvent(output, event)
	}

	return nil
}

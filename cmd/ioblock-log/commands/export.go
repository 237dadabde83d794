package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/ioblock/ioblock-go/pkg/log"
)

// RunExport exports the log file to the specified format.
func RunExport(path string, filter log.Filter, format, output string) error {
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	// Determine output writer
	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	switch format {
	case "jsonl":
		return exportJSONL(reader, w)
	case "csv":
		return exportCSV(reader, w)
	default:
		return fmt.Errorf("unknown format: %s (supported: jsonl, csv)", format)
	}
}

func exportJSONL(reader *log.Reader, w io.Writer) error {
	encoder := json.NewEncoder(w)
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := encoder.Encode(event); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
	}
	return nil
}

func exportCSV(reader *log.Reader, w io.Writer) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	// Write header
	header := []string{"timestamp", "block", "block_type", "instance", "event", "detail"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}

		row := []string{
			event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z"),
			event.Block,
			event.BlockType,
			event.Instance,
			event.Type.String(),
			eventDetail(event),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	return nil
}

// eventDetail returns a one-line summary of the type-specific payload.
func eventDetail(event log.Event) string {
	switch {
	case event.State != nil:
		s := event.State
		detail := s.To
		if s.From != "" {
			detail = s.From + "->" + s.To
		}
		if s.Reason != "" {
			detail += " (" + s.Reason + ")"
		}
		return detail

	case event.Fault != nil:
		f := event.Fault
		name := f.Name
		if name == "" {
			name = "KIND_" + strconv.Itoa(int(f.Kind))
		}
		return name + " " + f.Edge.String()

	case event.Reconfig != nil:
		r := event.Reconfig
		if r.Accepted {
			return r.Operation + " accepted"
		}
		if r.Detail != "" {
			return r.Operation + " refused: " + r.Detail
		}
		return r.Operation + " refused"

	case event.Lock != nil:
		return event.Lock.Cause

	case event.Snapshot != nil:
		return event.Snapshot.Key

	default:
		return ""
	}
}

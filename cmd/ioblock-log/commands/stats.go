package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/ioblock/ioblock-go/pkg/log"
)

// Stats holds aggregate statistics about a log file.
type Stats struct {
	TotalEvents  int
	EventsByType map[log.Type]int
	FaultEdges   map[string]int
	Blocks       map[string]*BlockStats
	Locks        int
	Refused      int
	TimeRange    struct {
		Start time.Time
		End   time.Time
	}
}

// BlockStats holds statistics for a single block.
type BlockStats struct {
	FirstSeen time.Time
	LastSeen  time.Time
	Events    int
	BlockType string
	Instance  string
	Faults    int
	LastState string
}

// RunStats analyzes the log file and prints statistics.
func RunStats(path string, w io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := &Stats{
		EventsByType: make(map[log.Type]int),
		FaultEdges:   make(map[string]int),
		Blocks:       make(map[string]*BlockStats),
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}

		stats.TotalEvents++
		stats.EventsByType[event.Type]++

		// Track time range
		if stats.TimeRange.Start.IsZero() || event.Timestamp.Before(stats.TimeRange.Start) {
			stats.TimeRange.Start = event.Timestamp
		}
		if event.Timestamp.After(stats.TimeRange.End) {
			stats.TimeRange.End = event.Timestamp
		}

		// Track per-block stats
		blk, ok := stats.Blocks[event.Block]
		if !ok {
			blk = &BlockStats{
				FirstSeen: event.Timestamp,
				LastSeen:  event.Timestamp,
			}
			stats.Blocks[event.Block] = blk
		}
		blk.Events++
		if event.Timestamp.After(blk.LastSeen) {
			blk.LastSeen = event.Timestamp
		}
		if event.BlockType != "" && blk.BlockType == "" {
			blk.BlockType = event.BlockType
		}
		if event.Instance != "" && blk.Instance == "" {
			blk.Instance = event.Instance
		}

		switch {
		case event.Fault != nil:
			blk.Faults++
			name := event.Fault.Name
			if name == "" {
				name = fmt.Sprintf("KIND_%d", event.Fault.Kind)
			}
			stats.FaultEdges[name]++

		case event.State != nil:
			blk.LastState = event.State.To

		case event.Lock != nil:
			stats.Locks++

		case event.Reconfig != nil:
			if !event.Reconfig.Accepted {
				stats.Refused++
			}
		}
	}

	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== I/O Block Log Statistics ===")
	fmt.Fprintln(w)

	// Time range
	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Millisecond))
		fmt.Fprintln(w)
	}

	// Total events
	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	// Events by type
	fmt.Fprintln(w, "Events by Type:")
	for _, typ := range []log.Type{log.TypeState, log.TypeFault, log.TypeReconfig, log.TypeLock, log.TypeSnapshot} {
		if count := stats.EventsByType[typ]; count > 0 {
			fmt.Fprintf(w, "  %-10s %d\n", typ.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	// Fault edges by check name
	if len(stats.FaultEdges) > 0 {
		fmt.Fprintln(w, "Fault Edges:")
		names := make([]string, 0, len(stats.FaultEdges))
		for name := range stats.FaultEdges {
			names = append(names, name)
		}
		sort.Slice(names, func(i, j int) bool {
			if stats.FaultEdges[names[i]] != stats.FaultEdges[names[j]] {
				return stats.FaultEdges[names[i]] > stats.FaultEdges[names[j]]
			}
			return names[i] < names[j]
		})
		for _, name := range names {
			fmt.Fprintf(w, "  %-28s %d\n", name+":", stats.FaultEdges[name])
		}
		fmt.Fprintln(w)
	}

	if stats.Locks > 0 {
		fmt.Fprintf(w, "Lock Events: %d\n", stats.Locks)
	}
	if stats.Refused > 0 {
		fmt.Fprintf(w, "Refused Reconfigurations: %d\n", stats.Refused)
	}
	if stats.Locks > 0 || stats.Refused > 0 {
		fmt.Fprintln(w)
	}

	// Blocks
	fmt.Fprintf(w, "Blocks: %d\n", len(stats.Blocks))
	if len(stats.Blocks) > 0 {
		type blockInfo struct {
			name  string
			stats *BlockStats
		}
		infos := make([]blockInfo, 0, len(stats.Blocks))
		for name, bs := range stats.Blocks {
			infos = append(infos, blockInfo{name, bs})
		}
		// Sort by first seen time
		sort.Slice(infos, func(i, j int) bool {
			return infos[i].stats.FirstSeen.Before(infos[j].stats.FirstSeen)
		})

		fmt.Fprintln(w)
		for _, bi := range infos {
			bs := bi.stats
			fmt.Fprintf(w, "  %s (%s)\n", bi.name, bs.BlockType)
			if bs.Instance != "" {
				fmt.Fprintf(w, "    Instance:    %s\n", bs.Instance)
			}
			fmt.Fprintf(w, "    Events:      %d\n", bs.Events)
			if bs.Faults > 0 {
				fmt.Fprintf(w, "    Fault edges: %d\n", bs.Faults)
			}
			if bs.LastState != "" {
				fmt.Fprintf(w, "    Last state:  %s\n", bs.LastState)
			}
		}
	}
}

package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes diagnostic events to an slog.Logger.
// Useful for development when events should be visible in the console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger at Debug level.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("block", event.Block),
		slog.String("type", event.Type.String()),
	}

	if event.BlockType != "" {
		attrs = append(attrs, slog.String("block_type", event.BlockType))
	}
	if event.Instance != "" {
		attrs = append(attrs, slog.String("instance", event.Instance))
	}

	switch {
	case event.State != nil:
		attrs = append(attrs,
			slog.String("from", event.State.From),
			slog.String("to", event.State.To),
		)
		if event.State.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.State.Reason))
		}
	case event.Fault != nil:
		attrs = append(attrs,
			slog.Uint64("kind", uint64(event.Fault.Kind)),
			slog.String("name", event.Fault.Name),
			slog.String("edge", event.Fault.Edge.String()),
			slog.String("class", event.Fault.Class.String()),
		)
	case event.Reconfig != nil:
		attrs = append(attrs,
			slog.String("operation", event.Reconfig.Operation),
			slog.Bool("accepted", event.Reconfig.Accepted),
		)
		if event.Reconfig.Detail != "" {
			attrs = append(attrs, slog.String("detail", event.Reconfig.Detail))
		}
	case event.Lock != nil:
		attrs = append(attrs, slog.String("cause", event.Lock.Cause))
	case event.Snapshot != nil:
		attrs = append(attrs, slog.String("key", event.Snapshot.Key))
		if event.Snapshot.Digest != "" {
			attrs = append(attrs, slog.String("digest", event.Snapshot.Digest))
		}
		if event.Snapshot.Path != "" {
			attrs = append(attrs, slog.String("path", event.Snapshot.Path))
		}
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "ioblock", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)

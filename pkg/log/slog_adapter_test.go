package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/ioblock/ioblock-go/pkg/fault"
)

func newTestSlog(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

func TestSlogAdapterStateEvent(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewSlogAdapter(newTestSlog(&buf))

	adapter.Log(Event{
		Timestamp: time.Now(),
		Type:      TypeState,
		Block:     "pedal-sensor",
		State:     &StateEvent{From: "NOT_INITIALIZED", To: "RUNNING", Reason: "init"},
	})

	out := buf.String()
	for _, want := range []string{"pedal-sensor", "STATE", "RUNNING", "init"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %s", want, out)
		}
	}
}

func TestSlogAdapterFaultEvent(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewSlogAdapter(newTestSlog(&buf))

	adapter.Log(Event{
		Timestamp: time.Now(),
		Type:      TypeFault,
		Block:     "coolant-temp",
		Fault: &FaultEvent{
			Kind:  1,
			Name:  "SHORT_TO_GROUND_OPEN_LOAD",
			Edge:  fault.EdgeActivated,
			Class: fault.ClassFault,
		},
	})

	out := buf.String()
	for _, want := range []string{"SHORT_TO_GROUND_OPEN_LOAD", "edge=ACTIVATED", "class=FAULT"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %s", want, out)
		}
	}
}

package log

import (
	"testing"
	"time"
)

// captureLogger records events for test assertions.
type captureLogger struct {
	events []Event
}

func (c *captureLogger) Log(event Event) {
	c.events = append(c.events, event)
}

func TestMultiLoggerFanOut(t *testing.T) {
	a := &captureLogger{}
	b := &captureLogger{}
	multi := NewMultiLogger(a, b)

	event := Event{Timestamp: time.Now(), Type: TypeReconfig, Block: "pump"}
	multi.Log(event)

	if len(a.events) != 1 || len(b.events) != 1 {
		t.Fatalf("fan-out counts = %d/%d, want 1/1", len(a.events), len(b.events))
	}
	if a.events[0].Block != "pump" || b.events[0].Block != "pump" {
		t.Error("fan-out should deliver the same event to all loggers")
	}
}

func TestMultiLoggerEmpty(t *testing.T) {
	multi := NewMultiLogger()
	multi.Log(Event{Timestamp: time.Now(), Type: TypeState})
}

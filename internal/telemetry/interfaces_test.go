package telemetry

import (
	"bytes"
	"log"
	"testing"
)

func TestWrapLogger(t *testing.T) {
	t.Run("nil logger", func(t *testing.T) {
		logger := WrapLogger(nil)
		logger.Printf("ignored %d", 42)
	})

	t.Run("forwards to logger", func(t *testing.T) {
		var buf bytes.Buffer
		base := log.New(&buf, "", 0)
		logger := WrapLogger(base)
		logger.Printf("hello %s", "world")
		if got := buf.String(); got != "hello world\n" {
			t.Fatalf("unexpected log output: %q", got)
		}
	})
}

func TestCounterSet(t *testing.T) {
	counters := NewCounterSet()
	counters.Add("shots_total", 2)
	counters.Store("shots_total", 5)
	counters.Add("shots_total", 3)

	if got := counters.Value("shots_total"); got != 8 {
		t.Fatalf("unexpected counter value: %d", got)
	}
	counters.Add("targets_spawned", 1)
	snapshot := counters.Snapshot()
	if len(snapshot) != 2 || snapshot["targets_spawned"] != 1 {
		t.Fatalf("unexpected snapshot: %v", snapshot)
	}
	keys := counters.Keys()
	if len(keys) != 2 || keys[0] != "shots_total" {
		t.Fatalf("unexpected keys: %v", keys)
	}

	// A nil set must swallow updates without panicking.
	var nilSet *CounterSet
	nilSet.Add("ignored", 1)
	nilSet.Store("ignored", 1)
	if nilSet.Value("ignored") != 0 {
		t.Fatalf("nil set should read zero")
	}
}

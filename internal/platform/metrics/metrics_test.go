package metrics

import (
	"testing"
	"time"
)

type fixedReconnects uint64

func (f fixedReconnects) Reconnects() uint64 { return uint64(f) }

func TestCollectorSnapshot(t *testing.T) {
	c := New()
	c.Record(200, 10*time.Millisecond)
	c.Record(503, 30*time.Millisecond)
	c.Record(429, 0)
	c.RecordEntries("created", 2)
	c.RecordEntries("imported", 5)
	c.RecordEntries("created", 1)
	c.RecordEntries("deleted", 0)
	c.Watch(fixedReconnects(3))

	snap := c.Snapshot()
	if snap["requestsTotal"] != uint64(3) || snap["errorsTotal"] != uint64(1) || snap["rateLimitedTotal"] != uint64(1) {
		t.Fatalf("unexpected request counters: %+v", snap)
	}
	if snap["avgDurationMs"] != float64(40)/3 {
		t.Fatalf("unexpected average: %v", snap["avgDurationMs"])
	}
	entries := snap["entriesTotal"].(map[string]uint64)
	if entries["created"] != 3 || entries["imported"] != 5 {
		t.Fatalf("unexpected entry counters: %+v", entries)
	}
	if _, ok := entries["deleted"]; ok {
		t.Fatal("expected zero counts to be ignored")
	}
	if snap["reconnectsTotal"] != uint64(3) {
		t.Fatalf("unexpected reconnects: %v", snap["reconnectsTotal"])
	}
}

package metrics

import (
	"errors"
	"testing"
	"time"
)

func TestSnapshotEmptyForUnrecordedCommand(t *testing.T) {
	c := NewCommandLatencies()
	snap := c.Snapshot("replay")
	if snap.Count != 0 {
		t.Fatalf("Count = %d, want 0", snap.Count)
	}
}

func TestRecordAccumulatesCountAndErrors(t *testing.T) {
	c := NewCommandLatencies()
	c.Record("start-recording", 10*time.Millisecond, nil)
	c.Record("start-recording", 20*time.Millisecond, nil)
	c.Record("start-recording", 5*time.Millisecond, errors.New("boom"))

	snap := c.Snapshot("start-recording")
	if snap.Count != 3 {
		t.Fatalf("Count = %d, want 3", snap.Count)
	}
	if snap.ErrorCount != 1 {
		t.Fatalf("ErrorCount = %d, want 1", snap.ErrorCount)
	}
	if snap.Max < 19*time.Millisecond || snap.Max > 21*time.Millisecond {
		t.Fatalf("Max = %v, want ~20ms", snap.Max)
	}
	if snap.Min < 4*time.Millisecond || snap.Min > 6*time.Millisecond {
		t.Fatalf("Min = %v, want ~5ms", snap.Min)
	}
}

func TestCommandsListsOnlyRecordedNames(t *testing.T) {
	c := NewCommandLatencies()
	c.Record("stop-recording", time.Millisecond, nil)
	c.Snapshot("start-recording") // reading an unrecorded command must not create an entry

	names := c.Commands()
	if len(names) != 1 || names[0] != "stop-recording" {
		t.Fatalf("Commands() = %v, want [stop-recording]", names)
	}
}

func TestLatenciesAreIndependentPerCommand(t *testing.T) {
	c := NewCommandLatencies()
	c.Record("replay", 100*time.Millisecond, nil)
	c.Record("stop-replay", time.Millisecond, nil)

	if got := c.Snapshot("replay").Count; got != 1 {
		t.Fatalf("replay Count = %d, want 1", got)
	}
	if got := c.Snapshot("stop-replay").Count; got != 1 {
		t.Fatalf("stop-replay Count = %d, want 1", got)
	}
	if c.Snapshot("replay").Max == c.Snapshot("stop-replay").Max {
		t.Fatal("distinct commands must not share a histogram")
	}
}

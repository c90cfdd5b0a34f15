// Package metrics records round-trip latency of archive commands with
// HdrHistogram-go, the way test/drv/junoload/stats.go records request
// latency: a mutex-guarded histogram per name, snapshotted on demand rather
// than pushed to an outbound sink (DESIGN.md: no metrics-push dependency is
// in scope without an embedding service).
package metrics

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

const (
	lowestTrackableValue  = 1
	highestTrackableValue = int64(60 * time.Second)
	significantFigures    = 3
)

// Snapshot is a read-only view of one command's recorded latencies.
type Snapshot struct {
	Count      int64
	Min        time.Duration
	Max        time.Duration
	Mean       time.Duration
	P50        time.Duration
	P95        time.Duration
	P99        time.Duration
	P999       time.Duration
	ErrorCount int64
}

type commandHistogram struct {
	mu     sync.Mutex
	hist   *hdrhistogram.Histogram
	errors int64
}

func newCommandHistogram() *commandHistogram {
	return &commandHistogram{hist: hdrhistogram.New(lowestTrackableValue, highestTrackableValue, significantFigures)}
}

func (c *commandHistogram) record(d time.Duration, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hist.RecordValue(int64(d))
	if err != nil {
		c.errors++
	}
}

func (c *commandHistogram) snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Count:      c.hist.TotalCount(),
		Min:        time.Duration(c.hist.Min()),
		Max:        time.Duration(c.hist.Max()),
		Mean:       time.Duration(c.hist.Mean()),
		P50:        time.Duration(c.hist.ValueAtQuantile(50)),
		P95:        time.Duration(c.hist.ValueAtQuantile(95)),
		P99:        time.Duration(c.hist.ValueAtQuantile(99)),
		P999:       time.Duration(c.hist.ValueAtQuantile(99.9)),
		ErrorCount: c.errors,
	}
}

// CommandLatencies holds one histogram per archive command name, created
// lazily on first use.
type CommandLatencies struct {
	mu   sync.Mutex
	byOp map[string]*commandHistogram
}

func NewCommandLatencies() *CommandLatencies {
	return &CommandLatencies{byOp: make(map[string]*commandHistogram)}
}

func (c *CommandLatencies) histogramFor(command string) *commandHistogram {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.byOp[command]
	if !ok {
		h = newCommandHistogram()
		c.byOp[command] = h
	}
	return h
}

// Record adds one round-trip observation (mint correlation id → matching
// response) for command.
func (c *CommandLatencies) Record(command string, elapsed time.Duration, err error) {
	c.histogramFor(command).record(elapsed, err)
}

// Snapshot returns the current latency distribution for command, or the
// zero Snapshot if nothing has been recorded for it yet.
func (c *CommandLatencies) Snapshot(command string) Snapshot {
	c.mu.Lock()
	h, ok := c.byOp[command]
	c.mu.Unlock()
	if !ok {
		return Snapshot{}
	}
	return h.snapshot()
}

// Commands returns every command name with at least one recorded
// observation.
func (c *CommandLatencies) Commands() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.byOp))
	for name := range c.byOp {
		names = append(names, name)
	}
	return names
}

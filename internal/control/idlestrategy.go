package control

import "runtime"

// IdleStrategy is the pluggable backoff policy applied between unsuccessful
// polls or offers, carried forward from the original's YieldingIdleStrategy
// as a substitutable interface (SPEC_FULL.md §C.3) so a latency-sensitive
// embedder can supply a spinning or parking strategy instead.
type IdleStrategy interface {
	Idle()
	Reset()
}

// YieldingIdleStrategy yields the goroutine's remaining scheduling quantum,
// the default and the only strategy the archive itself requires.
type YieldingIdleStrategy struct{}

func (YieldingIdleStrategy) Idle()  { runtime.Gosched() }
func (YieldingIdleStrategy) Reset() {}

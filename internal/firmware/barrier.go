package firmware

import "sync"

// BlockingUpgradeBarrier is the process-wide set of in-progress blocking
// upgrades, gating driver shutdown until it drains (§4.F step 9, §9).
// The wait is unbounded by contract; the hosting process supplies an
// outer kill deadline.
type BlockingUpgradeBarrier struct {
	mu      sync.Mutex
	cond    *sync.Cond
	inFlight map[string]bool
}

// NewBlockingUpgradeBarrier constructs an empty barrier.
func NewBlockingUpgradeBarrier() *BlockingUpgradeBarrier {
	b := &BlockingUpgradeBarrier{inFlight: map[string]bool{}}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// SetBlockingUpgrade marks eui64 as in-progress (inProgress=true) or
// clears it (inProgress=false), waking any shutdown waiter when the set
// becomes empty.
func (b *BlockingUpgradeBarrier) SetBlockingUpgrade(eui64 string, inProgress bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if inProgress {
		b.inFlight[eui64] = true
	} else {
		delete(b.inFlight, eui64)
	}

	if len(b.inFlight) == 0 {
		b.cond.Broadcast()
	}
}

// Wait blocks until the blocking-upgrade set is empty.
func (b *BlockingUpgradeBarrier) Wait() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for len(b.inFlight) > 0 {
		b.cond.Wait()
	}
}

// Empty reports whether the set is currently empty, without blocking.
func (b *BlockingUpgradeBarrier) Empty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.inFlight) == 0
}

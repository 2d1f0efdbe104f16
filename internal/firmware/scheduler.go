package firmware

import (
	"sync"
	"time"
)

// TaskHandle is a cancel handle for a scheduled delay task (§9: "Scheduled
// delay tasks with cancel handles").
type TaskHandle struct {
	timer     *time.Timer
	cancelled *atomicBool
}

// Cancel prevents the task body from running if it hasn't fired yet.
// Cancellation is a happens-before fence: once Cancel returns, the task
// body (if it hasn't already started) will observe the cancelled flag
// and exit without doing work (§5).
func (h *TaskHandle) Cancel() {
	h.cancelled.set(true)
	h.timer.Stop()
}

type atomicBool struct {
	mu sync.Mutex
	v  bool
}

func (a *atomicBool) set(v bool) {
	a.mu.Lock()
	a.v = v
	a.mu.Unlock()
}

func (a *atomicBool) get() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.v
}

// Scheduler runs a single delayed body, supporting cancellation. It's a
// thin wrapper over time.AfterFunc grounded in §9's "timer wheel /
// scheduled executor" guidance: callers get a handle, not a raw timer.
type Scheduler struct{}

// NewScheduler returns a Scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Schedule runs body after delay unless the returned handle is cancelled
// first.
func (s *Scheduler) Schedule(delay time.Duration, body func()) *TaskHandle {
	cancelled := &atomicBool{}
	h := &TaskHandle{cancelled: cancelled}
	h.timer = time.AfterFunc(delay, func() {
		if cancelled.get() {
			return
		}
		body()
	})
	return h
}

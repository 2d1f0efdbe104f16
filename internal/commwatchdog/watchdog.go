// Package commwatchdog implements the process-wide communication watchdog
// described in §4.D: a single supervisor that fires commFailed when a
// device has been silent beyond its timeout, and commRestored on the next
// pet. The locking discipline follows the teacher's devicesLock /
// nodesLock pattern in gateway.go: a single mutex guards the map, and
// callbacks always run after the lock is released.
package commwatchdog

import (
	"errors"
	"log"
	"sync"
	"time"
)

// MonitorInterval is the default scan cadence (§4.D).
const MonitorInterval = 60 * time.Second

// antiThrashWindow bounds how often dateLastContacted is updated per
// device (invariant 6).
const antiThrashWindow = 5 * time.Second

// FailedFunc is invoked after releasing the lock, once per Healthy ->
// InCommFail transition.
type FailedFunc func(uuid string)

// RestoredFunc is invoked after releasing the lock, once per InCommFail ->
// Healthy transition.
type RestoredFunc func(uuid string)

// ContactedFunc persists dateLastContacted for a device; called at most
// once per antiThrashWindow per device (invariant 6).
type ContactedFunc func(uuid string, at time.Time)

type entry struct {
	uuid                  string
	commFailTimeoutSeconds int
	msRemaining           int64
	lastSyncMonotonic     time.Time
	inCommFail            bool
	lastContactPersisted  time.Time
}

func (e *entry) remainingAt(now time.Time) int64 {
	elapsed := now.Sub(e.lastSyncMonotonic).Milliseconds()
	r := e.msRemaining - elapsed
	if r < 0 {
		return 0
	}
	return r
}

// Watchdog is the process-wide communication supervisor (§4.D).
type Watchdog struct {
	mu       sync.Mutex
	entries  map[string]*entry
	onFailed FailedFunc
	onRestored RestoredFunc
	onContacted ContactedFunc

	running  bool
	fastMode bool

	wake chan struct{}
	stop chan struct{}
	done chan struct{}

	monitorInterval time.Duration

	now func() time.Time
}

// New constructs a Watchdog; call Init to supply callbacks and start the
// monitor loop.
func New() *Watchdog {
	return &Watchdog{
		entries:         map[string]*entry{},
		wake:            make(chan struct{}, 1),
		monitorInterval: MonitorInterval,
		now:             time.Now,
	}
}

// Init wires the callbacks and starts the monitor goroutine. Re-init is a
// programming error (§4.D) and panics, matching the "log error, return
// early; never crash" policy would be wrong here since a double-init
// indicates a wiring bug the caller must fix before going further -
// callers are expected to call Init exactly once at startup.
func (w *Watchdog) Init(onFailed FailedFunc, onRestored RestoredFunc, onContacted ContactedFunc) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		panic("commwatchdog: Init called twice")
	}
	w.onFailed = onFailed
	w.onRestored = onRestored
	w.onContacted = onContacted
	w.running = true
	w.stop = make(chan struct{})
	w.done = make(chan struct{})
	w.mu.Unlock()

	go w.monitorLoop()
}

// Shutdown stops the monitor loop and waits for it to exit. After
// Shutdown returns, no further callback bodies run (§8: "After
// driverShutdown, no watchdog... task executes its body").
func (w *Watchdog) Shutdown() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stop)
	w.mu.Unlock()

	<-w.done
}

// Monitor creates a watchdog entry for uuid with the given timeout.
// Duplicate monitor calls replace the existing entry without leaking
// (§4.D). Ignored if the watchdog isn't running.
func (w *Watchdog) Monitor(uuid string, timeoutSeconds int, initiallyInCommFail bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}

	w.entries[uuid] = &entry{
		uuid:                   uuid,
		commFailTimeoutSeconds: timeoutSeconds,
		msRemaining:            int64(timeoutSeconds) * 1000,
		lastSyncMonotonic:      w.now(),
		inCommFail:             initiallyInCommFail,
	}
}

// StopMonitoring removes uuid's entry.
func (w *Watchdog) StopMonitoring(uuid string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.entries, uuid)
}

// Pet resets uuid's remaining time to full. If the device had been in
// commFail, it transitions to healthy and onRestored fires after the
// lock is released (invariant 5). dateLastContacted is only persisted if
// at least antiThrashWindow has elapsed since the last persist
// (invariant 6).
func (w *Watchdog) Pet(uuid string) {
	now := w.now()

	w.mu.Lock()
	e, ok := w.entries[uuid]
	if !ok {
		w.mu.Unlock()
		return
	}

	e.msRemaining = int64(e.commFailTimeoutSeconds) * 1000
	e.lastSyncMonotonic = now

	wasInCommFail := e.inCommFail
	e.inCommFail = false

	shouldPersist := now.Sub(e.lastContactPersisted) >= antiThrashWindow
	if shouldPersist {
		e.lastContactPersisted = now
	}
	onContacted := w.onContacted
	onRestored := w.onRestored
	w.mu.Unlock()

	if shouldPersist && onContacted != nil {
		onContacted(uuid, now)
	}
	if wasInCommFail && onRestored != nil {
		onRestored(uuid)
	}
}

// ForceCommFail transitions uuid into commFail, notifying exactly once
// for a Healthy entry; InCommFail entries produce no event.
func (w *Watchdog) ForceCommFail(uuid string) {
	w.mu.Lock()
	e, ok := w.entries[uuid]
	if !ok {
		w.mu.Unlock()
		return
	}

	alreadyFailed := e.inCommFail
	e.inCommFail = true
	e.msRemaining = 0
	onFailed := w.onFailed
	w.mu.Unlock()

	if !alreadyFailed && onFailed != nil {
		onFailed(uuid)
	}
}

var errShortenRejected = errors.New("commwatchdog: refusing to shorten effective timeout")

// GetRemainingForLPM returns the remaining seconds extended by
// max(0, floorSeconds - timeoutSeconds). A request that would shorten the
// effective timeout is rejected: logged, and the original remaining value
// is returned unchanged. Returns -1 if already in commFail.
func (w *Watchdog) GetRemainingForLPM(uuid string, floorSeconds int) int {
	now := w.now()

	w.mu.Lock()
	defer w.mu.Unlock()

	e, ok := w.entries[uuid]
	if !ok {
		return -1
	}
	if e.inCommFail {
		return -1
	}

	remainingSeconds := int(e.remainingAt(now) / 1000)

	extension := floorSeconds - e.commFailTimeoutSeconds
	if extension < 0 {
		log.Printf("commwatchdog: %v", errShortenRejected)
		return remainingSeconds
	}

	return remainingSeconds + extension
}

// SetRemainingFromLPM updates msRemaining for an entry that is not already
// in commFail.
func (w *Watchdog) SetRemainingFromLPM(uuid string, seconds int) {
	now := w.now()

	w.mu.Lock()
	defer w.mu.Unlock()

	e, ok := w.entries[uuid]
	if !ok || e.inCommFail {
		return
	}

	e.msRemaining = int64(seconds) * 1000
	e.lastSyncMonotonic = now
}

// SetFastMode toggles the fast-comm-fail test mode, which divides the
// monitor loop's wait by 100 (see loopInterval). Entry countdowns are not
// scaled.
func (w *Watchdog) SetFastMode(on bool) {
	w.mu.Lock()
	w.fastMode = on
	w.mu.Unlock()

	w.wakeMonitor()
}

// wakeMonitor nudges the monitor loop to re-evaluate immediately, e.g.
// after SetFastMode/CheckDevices calls, mirroring §4.D's "wake on checkDevices".
func (w *Watchdog) wakeMonitor() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// CheckDevices forces an immediate monitor scan.
func (w *Watchdog) CheckDevices() {
	w.wakeMonitor()
}

func (w *Watchdog) monitorLoop() {
	defer close(w.done)

	for {
		w.scan()

		interval := w.loopInterval()

		select {
		case <-w.stop:
			return
		case <-w.wake:
			continue
		case <-time.After(interval):
			continue
		}
	}
}

func (w *Watchdog) loopInterval() time.Duration {
	w.mu.Lock()
	fast := w.fastMode
	base := w.monitorInterval
	w.mu.Unlock()

	if fast {
		// Fast-comm-fail test mode divides the monitor loop's wait by
		// 100 (a 60s interval becomes 600ms). Entry countdowns still run
		// at real elapsed time; stored timeouts are not scaled.
		return base / 100
	}
	return base
}

func (w *Watchdog) scan() {
	now := w.now()

	w.mu.Lock()
	var expired []string
	for uuid, e := range w.entries {
		if e.inCommFail {
			continue
		}
		remaining := e.remainingAt(now)
		if remaining <= 0 {
			e.msRemaining = 0
			e.inCommFail = true
			expired = append(expired, uuid)
		}
	}
	onFailed := w.onFailed
	w.mu.Unlock()

	// Callbacks run after releasing the lock (invariant 7).
	for _, uuid := range expired {
		if onFailed != nil {
			onFailed(uuid)
		}
	}
}

// InCommFail reports an entry's current failure state, for tests and
// diagnostics.
func (w *Watchdog) InCommFail(uuid string) (inCommFail bool, known bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.entries[uuid]
	if !ok {
		return false, false
	}
	return e.inCommFail, true
}

package commwatchdog

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// testClock lets tests advance virtual time deterministically instead of
// sleeping in real time.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Unix(0, 0)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestWatchdog() (*Watchdog, *testClock) {
	w := New()
	clock := newTestClock()
	w.now = clock.Now
	return w, clock
}

func TestWatchdog_CommFailTransition(t *testing.T) {
	w, clock := newTestWatchdog()

	var failedCh = make(chan string, 10)
	var restoredCh = make(chan string, 10)

	w.Init(
		func(uuid string) { failedCh <- uuid },
		func(uuid string) { restoredCh <- uuid },
		nil,
	)
	defer w.Shutdown()

	w.Monitor("eui-A", 5, false)

	clock.Advance(5001 * time.Millisecond)
	w.scan()

	select {
	case uuid := <-failedCh:
		assert.Equal(t, "eui-A", uuid)
	default:
		t.Fatal("expected commFailed to fire")
	}

	w.Pet("eui-A")

	select {
	case uuid := <-restoredCh:
		assert.Equal(t, "eui-A", uuid)
	default:
		t.Fatal("expected commRestored to fire")
	}
}

func TestWatchdog_PetWithinWindowPreventsCommFail(t *testing.T) {
	w, clock := newTestWatchdog()
	failed := make(chan string, 10)
	w.Init(func(uuid string) { failed <- uuid }, func(string) {}, nil)
	defer w.Shutdown()

	w.Monitor("eui-A", 5, false)
	clock.Advance(3 * time.Second)
	w.Pet("eui-A")
	clock.Advance(3 * time.Second)
	w.scan()

	select {
	case <-failed:
		t.Fatal("commFailed should not have fired")
	default:
	}
}

func TestWatchdog_ForceCommFail(t *testing.T) {
	w, _ := newTestWatchdog()
	failed := make(chan string, 10)
	w.Init(func(uuid string) { failed <- uuid }, func(string) {}, nil)
	defer w.Shutdown()

	w.Monitor("eui-A", 5, false)

	w.ForceCommFail("eui-A")
	assert.Len(t, failed, 1)

	w.ForceCommFail("eui-A")
	assert.Len(t, failed, 1) // no second event for an already-failed entry
}

func TestWatchdog_DateLastContactedAntiThrash(t *testing.T) {
	w, clock := newTestWatchdog()
	var contacts []time.Time
	w.Init(func(string) {}, func(string) {}, func(uuid string, at time.Time) {
		contacts = append(contacts, at)
	})
	defer w.Shutdown()

	w.Monitor("eui-A", 60, false)

	w.Pet("eui-A")
	clock.Advance(1 * time.Second)
	w.Pet("eui-A") // within 5s window, should not persist again
	assert.Len(t, contacts, 1)

	clock.Advance(5 * time.Second)
	w.Pet("eui-A") // now >= 5s since last persist
	assert.Len(t, contacts, 2)
}

func TestWatchdog_GetRemainingForLPM_RefusesToShorten(t *testing.T) {
	w, _ := newTestWatchdog()
	w.Init(func(string) {}, func(string) {}, nil)
	defer w.Shutdown()

	w.Monitor("eui-A", 60, false)

	original := w.GetRemainingForLPM("eui-A", 10) // floor below baseline timeout
	assert.Equal(t, 60, original)

	extended := w.GetRemainingForLPM("eui-A", 120)
	assert.Equal(t, 120, extended)
}

func TestWatchdog_GetRemainingForLPM_InCommFailReturnsNegativeOne(t *testing.T) {
	w, _ := newTestWatchdog()
	w.Init(func(string) {}, func(string) {}, nil)
	defer w.Shutdown()

	w.Monitor("eui-A", 5, true)
	assert.Equal(t, -1, w.GetRemainingForLPM("eui-A", 10))
}

func TestWatchdog_MonitorDuplicateReplacesWithoutLeaking(t *testing.T) {
	w, _ := newTestWatchdog()
	w.Init(func(string) {}, func(string) {}, nil)
	defer w.Shutdown()

	w.Monitor("eui-A", 5, false)
	w.Monitor("eui-A", 10, false)

	assert.Len(t, w.entries, 1)
	assert.Equal(t, 10, w.entries["eui-A"].commFailTimeoutSeconds)
}

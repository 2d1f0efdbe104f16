package commondriver

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"
)

// DiagnosticsReader reads a single device's fe-rssi/fe-lqi off the radio,
// e.g. by issuing a live ZCL read of the Diagnostics cluster.
type DiagnosticsReader interface {
	ReadFarEndLinkQuality(ctx context.Context, uuid string) (feRSSI int8, feLQI uint8, err error)
}

// DiagnosticsTask implements §4.H's diagnostics collection task: a
// fixed-rate repeating scan over every non-commFail device that hosts the
// Diagnostics cluster, reading fe-rssi/fe-lqi and writing the linkQuality
// resource, whose detail JSON carries ferssi/felqi. The first tick
// is a no-op (startup dampener) and the task sleeps between devices to
// avoid network storms.
type DiagnosticsTask struct {
	driver *Driver
	reader DiagnosticsReader

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}

	interDeviceDelay time.Duration
	tickSource       func(time.Duration) <-chan time.Time
}

// NewDiagnosticsTask constructs a DiagnosticsTask bound to driver. The
// reader is wired separately (SetReader) once the host knows which
// devices host the Diagnostics cluster, since that's device-class
// specific.
func NewDiagnosticsTask(driver *Driver) *DiagnosticsTask {
	return &DiagnosticsTask{
		driver:           driver,
		interDeviceDelay: 5 * time.Second,
		tickSource: func(d time.Duration) <-chan time.Time {
			return time.NewTicker(d).C
		},
	}
}

// SetReader wires the radio-backed reader used to fetch fe-rssi/fe-lqi.
func (t *DiagnosticsTask) SetReader(reader DiagnosticsReader) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reader = reader
}

// Start begins the repeating task at the given interval. Idempotent: a
// second call while already running is a no-op.
func (t *DiagnosticsTask) Start(interval time.Duration) {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return
	}
	t.running = true
	t.stop = make(chan struct{})
	t.done = make(chan struct{})
	tick := t.tickSource(interval)
	t.mu.Unlock()

	go t.run(tick)
}

// Stop halts the task and waits for the current tick, if any, to finish.
func (t *DiagnosticsTask) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	close(t.stop)
	done := t.done
	t.mu.Unlock()

	<-done
}

func (t *DiagnosticsTask) run(tick <-chan time.Time) {
	defer close(t.done)

	first := true
	for {
		select {
		case <-t.stop:
			return
		case <-tick:
			if first {
				// Startup dampener (§4.H): the first invocation is
				// skipped so collection doesn't race pairing.
				first = false
				continue
			}
			t.collectOnce()
		}
	}
}

func (t *DiagnosticsTask) collectOnce() {
	t.mu.Lock()
	reader := t.reader
	delay := t.interDeviceDelay
	t.mu.Unlock()

	if reader == nil {
		return
	}

	t.driver.mu.RLock()
	uuids := append([]string(nil), t.driver.deviceIDs...)
	t.driver.mu.RUnlock()

	for i, uuid := range uuids {
		select {
		case <-t.stop:
			return
		default:
		}

		if t.driver.deviceService.IsDeviceInCommFail(uuid) {
			continue
		}
		if !t.hostsDiagnosticsCluster(uuid) {
			continue
		}

		ctx := context.Background()
		feRSSI, feLQI, err := reader.ReadFarEndLinkQuality(ctx, uuid)
		if err != nil {
			log.Printf("commondriver: diagnostics read for %s: %v", uuid, err)
			continue
		}

		level, detail := t.driver.linkQuality.update(uuid, &DiagnosticsReading{FeRSSI: &feRSSI, FeLQI: &feLQI})
		encoded, _ := json.Marshal(detail)
		if err := t.driver.deviceService.UpdateResource(ctx, uuid, "", "linkQuality", level, string(encoded)); err != nil {
			log.Printf("commondriver: writing diagnostics resources for %s: %v", uuid, err)
		}

		if i < len(uuids)-1 {
			time.Sleep(delay)
		}
	}
}

func (t *DiagnosticsTask) hostsDiagnosticsCluster(uuid string) bool {
	details, err := t.driver.discovery.GetOrLoad(uuid)
	if err != nil {
		return false
	}
	for _, ep := range details.Endpoints {
		for _, clusterID := range ep.ServerClusters {
			if clusterID == DiagnosticsClusterID {
				return true
			}
		}
	}
	return false
}

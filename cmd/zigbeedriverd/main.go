// Command zigbeedriverd is an example host binary: it wires the
// commondriver engine and the supporting collaborators (firmware
// pipeline, watchdog, health supervisor, discovery store) to a
// caller-supplied radio and device service. No poll-control coordinator
// is wired.
//
// The zigbee.Provider, radio.Radio and deviceservice.DeviceService
// implementations are the host's own integration points (see
// internal/radio's package doc) — this binary does not fabricate a
// zcl/communicator-backed radio adapter, since the running process has no
// way to validate one against the real wire protocol. Run wires everything
// else: discovery cache, firmware download/scheduling and the commFail
// watchdog, and shuts them down when its context is cancelled; main
// cancels that context on SIGINT/SIGTERM.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"

	"github.com/rdkcentral/barton-zigbee-core/internal/commondriver"
	"github.com/rdkcentral/barton-zigbee-core/internal/commwatchdog"
	"github.com/rdkcentral/barton-zigbee-core/internal/deviceservice"
	"github.com/rdkcentral/barton-zigbee-core/internal/discoverystore"
	"github.com/rdkcentral/barton-zigbee-core/internal/firmware"
	"github.com/rdkcentral/barton-zigbee-core/internal/health"
	"github.com/rdkcentral/barton-zigbee-core/internal/radio"
)

// Config bundles the per-process knobs a host wires in alongside its radio
// and device-service implementations.
type Config struct {
	State         commondriver.State
	Higher        commondriver.HigherDriverHooks
	DeviceService deviceservice.DeviceService
	Properties    deviceservice.PropertyProvider
	Radio         radio.Radio

	FirmwareDir string
	FirmwareURL string
}

// loggingHealthEvents is the minimal health.EventSink: it logs the two
// network-health transitions the supervisor reports rather than wiring
// them to an external alerting system, which is out of scope for this
// example binary.
type loggingHealthEvents struct{}

func (loggingHealthEvents) NetworkInterference(active bool) {
	log.Printf("zigbeedriverd: network interference active=%v", active)
}

func (loggingHealthEvents) PanIDAttack(active bool) {
	log.Printf("zigbeedriverd: PAN-ID attack active=%v", active)
}

// Run wires the common driver and its collaborators, starts it, and
// returns the constructed Driver at once so callers (tests, or a fuller
// host binary) can reach DeviceDiscovered/ConfigureDevice/etc. directly.
// A background goroutine shuts the driver and the watchdog down when ctx
// is cancelled.
func Run(ctx context.Context, cfg Config) (*commondriver.Driver, error) {
	fs := afero.NewOsFs()
	getter := firmware.NewDefaultHTTPGetter()
	downloader := firmware.NewDownloader(fs, getter, cfg.FirmwareURL, cfg.FirmwareDir)
	scheduler := firmware.NewScheduler()
	barrier := firmware.NewBlockingUpgradeBarrier()
	fwMetadata := firmware.NewMetadataStore(cfg.DeviceService)
	pipeline := firmware.NewPipeline(cfg.Properties, fwMetadata, downloader, scheduler, nil, nil, nil, nil, barrier)

	healthSup := health.New(cfg.Properties, loggingHealthEvents{})

	watchdog := commwatchdog.New()

	var driver *commondriver.Driver
	watchdog.Init(
		func(uuid string) {
			driver.CommFailed(context.Background(), uuid)
		},
		func(uuid string) {
			driver.CommRestored(context.Background(), uuid)
		},
		nil,
	)

	discovery := discoverystore.New(cfg.DeviceService)

	driver = commondriver.New(
		cfg.State,
		cfg.Higher,
		cfg.DeviceService,
		cfg.Properties,
		cfg.Radio,
		discovery,
		pipeline,
		fwMetadata,
		watchdog,
		healthSup,
		nil, // poll-control coordination is wired by the device-class driver that needs it
	)

	if err := driver.Startup(ctx); err != nil {
		watchdog.Shutdown()
		return nil, err
	}

	go func() {
		<-ctx.Done()
		driver.Shutdown(context.Background())
		watchdog.Shutdown()
	}()

	return driver, nil
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("zigbeedriverd: received %v, shutting down", sig)
		cancel()
	}()

	log.Printf("zigbeedriverd: this binary is a wiring example; a production deployment " +
		"must supply its own zigbee.Provider-backed radio.Radio and deviceservice.DeviceService " +
		"before calling Run")

	// A real deployment plugs its radio/device-service implementations and
	// device-class state in here and calls Run; without them there is
	// nothing to serve, so the example exits after a short grace period to
	// demonstrate the shutdown path instead of blocking forever.
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		log.Printf("zigbeedriverd: no radio/device-service configured, exiting")
	}
}

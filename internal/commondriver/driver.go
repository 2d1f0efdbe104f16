// Package commondriver implements the per-device-class orchestrator
// described in §4.H: it owns a driver instance's cluster registries,
// discovery cache, firmware pipeline, and watchdog wiring, and drives the
// lifecycle hooks (discovery, configuration, resource access, teardown)
// that a higher-level device-class driver plugs into.
package commondriver

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rdkcentral/barton-zigbee-core/internal/cluster"
	"github.com/rdkcentral/barton-zigbee-core/internal/commwatchdog"
	"github.com/rdkcentral/barton-zigbee-core/internal/devicemodel"
	"github.com/rdkcentral/barton-zigbee-core/internal/deviceservice"
	"github.com/rdkcentral/barton-zigbee-core/internal/discoverystore"
	"github.com/rdkcentral/barton-zigbee-core/internal/firmware"
	"github.com/rdkcentral/barton-zigbee-core/internal/health"
	"github.com/rdkcentral/barton-zigbee-core/internal/pollcontrol"
	"github.com/rdkcentral/barton-zigbee-core/internal/radio"
)

// RxMode is a device's receiver behavior, driving reconfiguration and
// poll-control handling (§4.H).
type RxMode int

const (
	RxModeNonSleepy RxMode = iota
	RxModePseudoSleepy
	RxModeSleepy
)

// Metadata keys persisted by the common driver itself (§6).
const (
	MetaSchemaVersion         = "zigbeeCommonVersion"
	MetaCommFailOverrideSecs  = "commFailOverrideSeconds"
	MetaBatterySaveExtra      = "comcast.battSave.extra"
	MetaEndpointEPID          = "zigbee_epid"

	currentSchemaVersion = 2
)

// HigherDriverHooks is the device-class-specific extension point the
// common driver calls at the documented position in each lifecycle hook
// (§4.H).
type HigherDriverHooks interface {
	// ClaimDevice lets the higher driver claim a discovered device by
	// inspecting raw details, bypassing the default app-device-id match.
	// handled=false defers to the common driver's own matching.
	ClaimDevice(ctx context.Context, details *devicemodel.DiscoveredDeviceDetails) (claimed bool, handled bool)

	// DeviceRejected is called when device service refused to accept a
	// discovered device.
	DeviceRejected(ctx context.Context, details *devicemodel.DiscoveredDeviceDetails)

	// ExtraMetadata supplies additional metadata entries merged into the
	// deviceFound payload.
	ExtraMetadata(ctx context.Context, details *devicemodel.DiscoveredDeviceDetails) map[string]string

	// FetchInitialResourceValues lets the higher driver contribute
	// cluster-specific resource values; the common driver layers its own
	// standard-cluster values on top (§4.H).
	FetchInitialResourceValues(ctx context.Context, uuid string, details *devicemodel.DiscoveredDeviceDetails) (map[string]string, error)

	// WriteResource handles a resource write the common layer doesn't own
	// itself. baseDriverUpdatesResource, when true, tells the common
	// driver to persist value itself since no attribute report will do it.
	WriteResource(ctx context.Context, uuid, endpointID, resourceID, value string) (baseDriverUpdatesResource bool, err error)

	// ExecuteResource handles an executable resource invocation.
	ExecuteResource(ctx context.Context, uuid, endpointID, resourceID string, args map[string]string) error

	// PostDeviceRemoved runs after the common driver's own teardown steps.
	PostDeviceRemoved(ctx context.Context, uuid string)
}

// State is a single driver instance's configuration, held for the
// lifetime of the process (§4.H: "per-driver state").
type State struct {
	DriverName         string
	DeviceClass        devicemodel.DeviceClass
	DeviceClassVersion int
	AppDeviceIDs       []uint16
	RxMode             RxMode

	SkipConfiguration            bool
	BatteryBackedUp              bool
	ReadInitialBatteryThresholds bool
	DiagnosticsCollectionEnabled bool
}

// Driver is the common-driver orchestrator for a single device class
// (§4.H).
type Driver struct {
	state State
	higher HigherDriverHooks

	deviceService deviceservice.DeviceService
	properties    deviceservice.PropertyProvider
	radio         radio.Radio

	discovery  *discoverystore.Store
	firmware   *firmware.Pipeline
	fwMetadata *firmware.MetadataStore
	watchdog   *commwatchdog.Watchdog
	healthSup  *health.Supervisor
	pollctl    *pollcontrol.Coordinator

	mu             sync.RWMutex
	registries     map[string]*cluster.Registry // uuid -> cluster registry
	deviceIDs      []string                     // every uuid currently owned

	discoveryActive bool
	migrating       bool

	diagnostics *DiagnosticsTask
	linkQuality *linkQualityTracker
}

// New constructs a Driver. Every collaborator is expected to already be
// wired by the host process (cmd/zigbeedriverd); commondriver only
// orchestrates calls between them.
func New(
	state State,
	higher HigherDriverHooks,
	deviceService deviceservice.DeviceService,
	properties deviceservice.PropertyProvider,
	radioImpl radio.Radio,
	discovery *discoverystore.Store,
	fw *firmware.Pipeline,
	fwMetadata *firmware.MetadataStore,
	watchdog *commwatchdog.Watchdog,
	healthSup *health.Supervisor,
	pollctl *pollcontrol.Coordinator,
) *Driver {
	d := &Driver{
		state:         state,
		higher:        higher,
		deviceService: deviceService,
		properties:    properties,
		radio:         radioImpl,
		discovery:     discovery,
		firmware:      fw,
		fwMetadata:    fwMetadata,
		watchdog:      watchdog,
		healthSup:     healthSup,
		pollctl:       pollctl,
		registries:    map[string]*cluster.Registry{},
		linkQuality:   newLinkQualityTracker(),
	}
	d.diagnostics = NewDiagnosticsTask(d)
	return d
}

// RegistryFor returns (creating if necessary) the per-device cluster
// registry, so device-class drivers can register their clusters before
// configureDevice runs.
func (d *Driver) RegistryFor(uuid string, higher cluster.HigherDriverHooks) *cluster.Registry {
	d.mu.Lock()
	defer d.mu.Unlock()

	if r, ok := d.registries[uuid]; ok {
		return r
	}
	r := cluster.NewRegistry(higher)
	d.registries[uuid] = r
	return r
}

func (d *Driver) registryOrNil(uuid string) (*cluster.Registry, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.registries[uuid]
	return r, ok
}

// Startup runs §4.H's startup hook: schema migration, starting watchdog
// monitoring for each persisted device, and conditionally starting the
// diagnostics collection task. No per-device registration is made with
// the radio.
func (d *Driver) Startup(ctx context.Context) error {
	d.mu.Lock()
	d.migrating = true
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.migrating = false
		d.mu.Unlock()
	}()

	devices, err := d.deviceService.GetDevicesByDriver(ctx, d.state.DriverName)
	if err != nil {
		return fmt.Errorf("commondriver: listing persisted devices: %w", err)
	}

	for _, dev := range devices {
		d.migrateSchema(ctx, dev)

		uuid := dev.UUID
		d.mu.Lock()
		d.deviceIDs = append(d.deviceIDs, uuid)
		d.mu.Unlock()

		eui64, err := devicemodel.UUIDToEUI64(uuid)
		if err != nil {
			log.Printf("commondriver: skipping malformed uuid %s at startup: %v", uuid, err)
			continue
		}
		d.registerForRadioCallbacks(uuid, eui64)
	}

	if d.state.DiagnosticsCollectionEnabled && len(devices) > 0 {
		d.diagnostics.Start(30 * time.Minute)
	}

	return nil
}

// migrateSchema applies the zigbeeCommonVersion 1->2 migration: introduces
// the linkQuality resource (§4.H).
func (d *Driver) migrateSchema(ctx context.Context, dev *devicemodel.Device) {
	raw, ok := d.deviceService.GetMetadata(dev.UUID, MetaSchemaVersion)
	version := 0
	if ok {
		fmt.Sscanf(raw, "%d", &version)
	}
	if version >= currentSchemaVersion {
		return
	}

	if version < 2 {
		if _, exists := dev.Resources["linkQuality"]; !exists {
			if err := d.deviceService.UpdateResource(ctx, dev.UUID, "", "linkQuality", "", ""); err != nil {
				log.Printf("commondriver: migrating %s to schema 2 (linkQuality): %v", dev.UUID, err)
			}
		}
	}

	if err := d.deviceService.SetMetadata(dev.UUID, MetaSchemaVersion, fmt.Sprintf("%d", currentSchemaVersion)); err != nil {
		log.Printf("commondriver: persisting schema version for %s: %v", dev.UUID, err)
	}
}

func (d *Driver) registerForRadioCallbacks(uuid string, eui64 uint64) {
	timeout := d.commFailTimeoutSeconds(uuid)
	d.watchdog.Monitor(uuid, timeout, d.deviceService.IsDeviceInCommFail(uuid))
}

// commFailTimeoutSeconds reads the per-device commFail override, falling
// back to the health supervisor's default window.
func (d *Driver) commFailTimeoutSeconds(uuid string) int {
	if raw, ok := d.deviceService.GetMetadata(uuid, MetaCommFailOverrideSecs); ok {
		var secs int
		if _, err := fmt.Sscanf(raw, "%d", &secs); err == nil && secs > 0 {
			return secs
		}
	}
	return d.healthSup.HealthCheckConfig().IntervalMs / 1000
}

// DiscoverStart toggles radio discovery on and marks the driver as
// actively accepting discoveries.
func (d *Driver) DiscoverStart(ctx context.Context) error {
	d.mu.Lock()
	d.discoveryActive = true
	d.mu.Unlock()
	return d.radio.StartDiscovery(ctx)
}

// DiscoverStop toggles radio discovery off.
func (d *Driver) DiscoverStop(ctx context.Context) error {
	d.mu.Lock()
	d.discoveryActive = false
	d.mu.Unlock()
	return d.radio.StopDiscovery(ctx)
}

func (d *Driver) discoveryGateOpen() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.discoveryActive || d.migrating
}

// Shutdown stops the diagnostics task and cancels each owned device's
// pending firmware upgrade, running the cancellations concurrently. It
// does not stop the watchdog or any other collaborator, and it does not
// wait on the blocking-upgrade barrier.
func (d *Driver) Shutdown(ctx context.Context) {
	d.diagnostics.Stop()

	d.mu.RLock()
	uuids := append([]string(nil), d.deviceIDs...)
	d.mu.RUnlock()

	g, _ := errgroup.WithContext(ctx)
	for _, uuid := range uuids {
		uuid := uuid
		g.Go(func() error {
			d.firmware.CancelPendingUpgrade(uuid)
			return nil
		})
	}
	_ = g.Wait()
}

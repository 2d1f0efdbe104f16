// Package pollcontrol implements the sleepy-device checkin coordinator
// described in §4.G: fast-poll windows, reconfiguration-pending
// handshakes, and age-based attribute refresh.
package pollcontrol

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/rdkcentral/barton-zigbee-core/internal/cluster"
	"github.com/rdkcentral/barton-zigbee-core/internal/deviceservice"
)

// Property keys and defaults (§6).
const (
	PropBatteryVoltageRefreshMinSecs = "BatteryVoltageRefreshMinSecs"
	PropFeRssiRefreshMinSecs         = "FeRssiRefreshMinSecs"
	PropFeLqiRefreshMinSecs          = "FeLqiRefreshMinSecs"
	PropTempRefreshMinSecs           = "TempRefreshMinSecs"

	DefaultBatteryVoltageRefreshSecs = 86400
	DefaultRssiRefreshSecs           = 1500
	DefaultLqiRefreshSecs            = 1500
	DefaultTempRefreshSecs           = 3000
)

// Metadata keys a device may override the property-level floors with.
const (
	MetaBatteryVoltageRefreshSecs = "pollcontrol.batteryVoltageRefreshSecs"
	MetaRssiRefreshSecs           = "pollcontrol.rssiRefreshSecs"
	MetaLqiRefreshSecs            = "pollcontrol.lqiRefreshSecs"
	MetaTempRefreshSecs           = "pollcontrol.tempRefreshSecs"
)

// ResourceKind names a refreshable common resource (§4.G step 3).
type ResourceKind string

const (
	ResourceBatteryVoltage ResourceKind = "batteryVoltage"
	ResourceFeRSSI         ResourceKind = "feRssi"
	ResourceFeLQI          ResourceKind = "feLqi"
	ResourceTemperature    ResourceKind = "temperature"
)

// ResourceAgeFunc supplies the current age (ms) of a device's backing
// resource for a ResourceKind, or ok=false if the device doesn't expose
// that resource.
type ResourceAgeFunc func(ctx context.Context, uuid string, kind ResourceKind) (ageMillis int64, ok bool)

// Radio is the subset of outbound radio operations the coordinator needs.
type Radio interface {
	SendCheckinResponse(ctx context.Context, uuid string, enterFastPoll bool) error
	SendCustomCheckinResponse(ctx context.Context, uuid string) error
	EnterFastPoll(ctx context.Context, uuid string) error
	StopFastPoll(ctx context.Context, uuid string) error
}

// BatteryUpdater updates the common battery/diagnostic resources from a
// Comcast battery-saving checkin payload (§4.G step 2).
type BatteryUpdater interface {
	UpdateFromBatterySavingPayload(ctx context.Context, uuid string, payload *cluster.BatterySavingPayload) error
}

// ReconfigurationWaiter is signaled when a pending reconfiguration's
// checkin handshake has occurred (§4.G step 1, §8 scenario 2).
type ReconfigurationWaiter interface {
	IsReconfigurationPending(uuid string) bool
	SignalReconfigurationCheckin(uuid string)
	ReconfigureASAPAllowed(uuid string) bool
}

// ClusterDispatcher dispatches a poll-control checkin to the owning
// driver's cluster registry for on-demand attribute reads (§4.G step 4).
type ClusterDispatcher interface {
	DispatchPollControlCheckin(ctx context.Context, event cluster.PollControlCheckinEvent) error
}

// Coordinator implements §4.G.
type Coordinator struct {
	properties deviceservice.PropertyProvider
	metadata   deviceservice.DeviceService
	radio      Radio
	battery    BatteryUpdater
	reconfig   ReconfigurationWaiter
	dispatcher ClusterDispatcher
	resourceAge ResourceAgeFunc
}

// New constructs a Coordinator.
func New(
	properties deviceservice.PropertyProvider,
	metadata deviceservice.DeviceService,
	radio Radio,
	battery BatteryUpdater,
	reconfig ReconfigurationWaiter,
	dispatcher ClusterDispatcher,
	resourceAge ResourceAgeFunc,
) *Coordinator {
	return &Coordinator{
		properties:  properties,
		metadata:    metadata,
		radio:       radio,
		battery:     battery,
		reconfig:    reconfig,
		dispatcher:  dispatcher,
		resourceAge: resourceAge,
	}
}

// refreshFloor returns the minimum age (as a duration) below which kind's
// backing resource does not need a refresh. Device metadata is consulted
// first, falling back to properties (§4.G step 3).
func (c *Coordinator) refreshFloor(uuid string, kind ResourceKind) time.Duration {
	var metaKey, propKey string
	var def int

	switch kind {
	case ResourceBatteryVoltage:
		metaKey, propKey, def = MetaBatteryVoltageRefreshSecs, PropBatteryVoltageRefreshMinSecs, DefaultBatteryVoltageRefreshSecs
	case ResourceFeRSSI:
		metaKey, propKey, def = MetaRssiRefreshSecs, PropFeRssiRefreshMinSecs, DefaultRssiRefreshSecs
	case ResourceFeLQI:
		metaKey, propKey, def = MetaLqiRefreshSecs, PropFeLqiRefreshMinSecs, DefaultLqiRefreshSecs
	case ResourceTemperature:
		metaKey, propKey, def = MetaTempRefreshSecs, PropTempRefreshMinSecs, DefaultTempRefreshSecs
	}

	if raw, ok := c.metadata.GetMetadata(uuid, metaKey); ok {
		var secs int
		if err := json.Unmarshal([]byte(raw), &secs); err == nil {
			return time.Duration(secs) * time.Second
		}
	}

	return time.Duration(c.properties.GetIntOrDefault(propKey, def)) * time.Second
}

func (c *Coordinator) refreshSet(ctx context.Context, uuid string) []ResourceKind {
	var stale []ResourceKind
	for _, kind := range []ResourceKind{ResourceTemperature, ResourceBatteryVoltage, ResourceFeRSSI, ResourceFeLQI} {
		ageMillis, ok := c.resourceAge(ctx, uuid, kind)
		if !ok {
			continue
		}
		floor := c.refreshFloor(uuid, kind)
		if time.Duration(ageMillis)*time.Millisecond >= floor {
			stale = append(stale, kind)
		}
	}
	return stale
}

// Checkin handles an inbound poll-control checkin event per §4.G.
func (c *Coordinator) Checkin(ctx context.Context, uuid string, endpointID string, payload *cluster.BatterySavingPayload) error {
	if c.reconfig != nil && c.reconfig.IsReconfigurationPending(uuid) {
		if err := c.radio.SendCheckinResponse(ctx, uuid, true); err != nil {
			return err
		}
		c.reconfig.SignalReconfigurationCheckin(uuid)
		return nil
	}

	if payload != nil {
		if c.battery != nil {
			if err := c.battery.UpdateFromBatterySavingPayload(ctx, uuid, payload); err != nil {
				log.Printf("pollcontrol: updating battery-saving resources for %s: %v", uuid, err)
			}
		}
		return c.radio.SendCustomCheckinResponse(ctx, uuid)
	}

	stale := c.refreshSet(ctx, uuid)
	if len(stale) == 0 {
		return c.radio.SendCheckinResponse(ctx, uuid, false)
	}

	if err := c.radio.EnterFastPoll(ctx, uuid); err != nil {
		return err
	}
	defer func() {
		if err := c.radio.StopFastPoll(ctx, uuid); err != nil {
			log.Printf("pollcontrol: stopping fast poll for %s: %v", uuid, err)
		}
	}()

	if err := c.radio.SendCheckinResponse(ctx, uuid, true); err != nil {
		return err
	}

	if c.dispatcher != nil {
		if err := c.dispatcher.DispatchPollControlCheckin(ctx, cluster.PollControlCheckinEvent{}); err != nil {
			log.Printf("pollcontrol: dispatching checkin for %s: %v", uuid, err)
		}
	}

	return nil
}

// PollControlClusterID is the well-known 0x0020 PollControl cluster id
// referenced by deviceRejoined handling (§4.G).
const PollControlClusterID = 0x0020

// DeviceRejoined handles §4.G's deviceRejoined behavior: if the device was
// awaiting reconfiguration and reconfigure-ASAP is allowed, it behaves as
// the reconfiguration-pending checkin path.
func (c *Coordinator) DeviceRejoined(ctx context.Context, uuid string) error {
	if c.reconfig == nil || !c.reconfig.IsReconfigurationPending(uuid) {
		return nil
	}
	if !c.reconfig.ReconfigureASAPAllowed(uuid) {
		return nil
	}

	if err := c.radio.SendCheckinResponse(ctx, uuid, true); err != nil {
		return err
	}
	c.reconfig.SignalReconfigurationCheckin(uuid)
	return nil
}

package commondriver

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"github.com/rdkcentral/barton-zigbee-core/internal/cluster"
	"github.com/rdkcentral/barton-zigbee-core/internal/devicemodel"
	"github.com/rdkcentral/barton-zigbee-core/internal/deviceservice"
	"github.com/shimmeringbee/zigbee"
)

// DeviceDiscovered implements §4.H's device-discovered hook: the higher
// driver gets first refusal via ClaimDevice; otherwise the first
// endpoint's app-device-id must be one of the driver's configured ids. A
// claimed device is cached, offered to the device service, and either
// accepted (caller proceeds to configureDevice) or rejected (cleaned up
// and, outside migration, sent a leave request).
func (d *Driver) DeviceDiscovered(ctx context.Context, details *devicemodel.DiscoveredDeviceDetails) (uuid string, accepted bool, err error) {
	if !d.discoveryGateOpen() {
		return "", false, nil
	}

	claimed, handled := false, false
	if d.higher != nil {
		claimed, handled = d.higher.ClaimDevice(ctx, details)
	}
	if !handled {
		claimed = d.matchesAppDeviceID(details)
	}
	if !claimed {
		return "", false, nil
	}

	uuid = devicemodel.EUI64ToUUID(details.EUI64)
	d.discovery.Put(uuid, details)

	payload := d.buildDeviceFoundPayload(ctx, uuid, details)

	ok, err := d.deviceService.DeviceFound(ctx, payload)
	if err != nil {
		return uuid, false, fmt.Errorf("commondriver: offering %s to device service: %w", uuid, err)
	}
	if !ok {
		if d.higher != nil {
			d.higher.DeviceRejected(ctx, details)
		}
		d.discovery.Remove(uuid)

		d.mu.RLock()
		migrating := d.migrating
		d.mu.RUnlock()

		if !migrating {
			go d.sendResetToFactoryAndLeave(context.Background(), details.EUI64)
		}
		return uuid, false, nil
	}

	d.mu.Lock()
	d.deviceIDs = append(d.deviceIDs, uuid)
	d.mu.Unlock()

	return uuid, true, nil
}

func (d *Driver) matchesAppDeviceID(details *devicemodel.DiscoveredDeviceDetails) bool {
	if len(details.Endpoints) == 0 {
		return false
	}
	first := details.Endpoints[0]
	for _, want := range d.state.AppDeviceIDs {
		if first.AppDeviceID == want {
			return true
		}
	}
	return false
}

func (d *Driver) buildDeviceFoundPayload(ctx context.Context, uuid string, details *devicemodel.DiscoveredDeviceDetails) deviceservice.DeviceFoundPayload {
	endpointProfiles := map[string]string{}
	for _, ep := range details.Endpoints {
		endpointProfiles[strconv.Itoa(int(ep.EndpointID))] = devicemodel.ProfileForDeviceClass(d.state.DeviceClass)
	}

	metadata := map[string]string{}
	if d.higher != nil {
		for k, v := range d.higher.ExtraMetadata(ctx, details) {
			metadata[k] = v
		}
	}

	return deviceservice.DeviceFoundPayload{
		DeviceClass:        d.state.DeviceClass,
		DeviceClassVersion: d.state.DeviceClassVersion,
		UUID:               uuid,
		Manufacturer:       details.Manufacturer,
		Model:              details.Model,
		HardwareVersion:    strconv.FormatUint(uint64(details.HardwareVersion), 10),
		FirmwareVersion:    fmt.Sprintf("0x%08x", details.FirmwareVersion),
		Metadata:           metadata,
		EndpointProfiles:   endpointProfiles,
	}
}

// sendResetToFactoryAndLeave sends a leave request to eui64. It does not
// send the Basic cluster reset-to-factory command.
func (d *Driver) sendResetToFactoryAndLeave(ctx context.Context, eui64 uint64) {
	addr := zigbee.IEEEAddress(eui64)
	if err := d.radio.RequestLeave(ctx, addr); err != nil {
		log.Printf("commondriver: requesting leave for rejected device %016x: %v", eui64, err)
	}
}

// ConfigureDevice implements §4.H's configureDevice hook. If the device's
// reported power source is unknown, configuration aborts and must be
// retried after a subsequent announce enriches the details (§7 item 3).
func (d *Driver) ConfigureDevice(ctx context.Context, uuid string) (bool, error) {
	if d.state.SkipConfiguration {
		return true, nil
	}

	details, err := d.discovery.GetOrLoad(uuid)
	if err != nil {
		return false, fmt.Errorf("commondriver: loading discovered details for %s: %w", uuid, err)
	}

	if details.PowerSource == devicemodel.PowerSourceUnknown {
		log.Printf("commondriver: %s has unknown power source, deferring configuration", uuid)
		return false, nil
	}

	sleepy := d.state.RxMode == RxModeSleepy
	if sleepy && d.deviceService.IsReconfigurationPending(uuid) {
		d.deviceService.SendReconfigurationSignal(uuid)
	}

	registry, ok := d.registryOrNil(uuid)
	if !ok {
		return true, nil
	}

	cfg := d.configureContextFor(uuid, details)
	return registry.Configure(ctx, cfg), nil
}

func (d *Driver) configureContextFor(uuid string, details *devicemodel.DiscoveredDeviceDetails) *cluster.ConfigureContext {
	var eui64 zigbee.IEEEAddress
	if v, err := devicemodel.UUIDToEUI64(uuid); err == nil {
		eui64 = zigbee.IEEEAddress(v)
	}

	var endpointID zigbee.Endpoint
	if len(details.Endpoints) > 0 {
		endpointID = zigbee.Endpoint(details.Endpoints[0].EndpointID)
	}

	return cluster.NewConfigureContext(eui64, endpointID, nil, details)
}

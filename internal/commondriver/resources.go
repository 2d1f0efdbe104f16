package commondriver

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/rdkcentral/barton-zigbee-core/internal/devicemodel"
)

// RegisterResources implements §4.H's registerResources hook: writes each
// fetched initial value as a device-level resource (empty endpoint id)
// and always writes the networkType resource. It does not create
// endpoints.
func (d *Driver) RegisterResources(ctx context.Context, uuid string, initialValues map[string]string) error {
	for id, value := range initialValues {
		if err := d.deviceService.UpdateResource(ctx, uuid, "", id, value, ""); err != nil {
			return fmt.Errorf("commondriver: registering resource %s for %s: %w", id, uuid, err)
		}
	}

	return d.deviceService.UpdateResource(ctx, uuid, "", "networkType", "zigbee", "")
}

// DevicePersisted implements §4.H's devicePersisted hook: starts watchdog
// monitoring for the device (no registration is made with the radio) and
// starts diagnostics collection if it is not already running.
func (d *Driver) DevicePersisted(ctx context.Context, uuid string) error {
	eui64, err := devicemodel.UUIDToEUI64(uuid)
	if err != nil {
		return fmt.Errorf("commondriver: parsing uuid %s: %w", uuid, err)
	}
	d.registerForRadioCallbacks(uuid, eui64)

	if d.state.DiagnosticsCollectionEnabled {
		d.diagnostics.Start(30 * time.Minute)
	}

	return nil
}

// ReadResource returns the resource as stored by the device service; it
// does not call the higher driver.
func (d *Driver) ReadResource(ctx context.Context, uuid, endpointID, resourceID string) (*devicemodel.Resource, error) {
	return d.deviceService.GetResourceByID(ctx, uuid, endpointID, resourceID)
}

const resourceResetToFactory = "resetToFactory"
const resourceLabel = "label"

// WriteResource implements §4.H's write-resource hook: label writes are
// handled in the common layer, resetToFactory triggers a background leave
// request, and everything else is delegated to the higher driver. A
// true baseDriverUpdatesResource returned by the higher driver tells the
// common layer to persist the value itself, since no attribute report
// will reflect it back.
func (d *Driver) WriteResource(ctx context.Context, uuid, endpointID, resourceID, value string) error {
	switch resourceID {
	case resourceLabel:
		return d.deviceService.UpdateResource(ctx, uuid, endpointID, resourceID, value, "")

	case resourceResetToFactory:
		go d.resetToFactoryAndLeave(context.Background(), uuid)
		return nil
	}

	if d.higher == nil {
		return nil
	}

	updatesResource, err := d.higher.WriteResource(ctx, uuid, endpointID, resourceID, value)
	if err != nil {
		return err
	}
	if updatesResource {
		return d.deviceService.UpdateResource(ctx, uuid, endpointID, resourceID, value, "")
	}
	return nil
}

// ExecuteResource delegates directly to the higher driver (§4.H).
func (d *Driver) ExecuteResource(ctx context.Context, uuid, endpointID, resourceID string, args map[string]string) error {
	if d.higher == nil {
		return nil
	}
	return d.higher.ExecuteResource(ctx, uuid, endpointID, resourceID, args)
}

func (d *Driver) resetToFactoryAndLeave(ctx context.Context, uuid string) {
	eui64, err := devicemodel.UUIDToEUI64(uuid)
	if err != nil {
		log.Printf("commondriver: resetToFactory for %s: %v", uuid, err)
		return
	}
	d.sendResetToFactoryAndLeave(ctx, eui64)
}

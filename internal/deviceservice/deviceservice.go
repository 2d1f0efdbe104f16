package deviceservice

import (
	"context"

	"github.com/rdkcentral/barton-zigbee-core/internal/devicemodel"
)

// DeviceFoundPayload is the claim-request payload the common driver
// assembles when a higher driver accepts a discovered device (§4.H).
type DeviceFoundPayload struct {
	DeviceClass        devicemodel.DeviceClass
	DeviceClassVersion int
	UUID               string
	Manufacturer       string
	Model              string
	HardwareVersion    string // decimal string
	FirmwareVersion    string // "0x%08x" string
	Metadata           map[string]string
	EndpointProfiles   map[string]string // endpoint id -> profile name
}

// DeviceService is the collaborator surface the core consumes from the
// surrounding service (§6). It is intentionally coarse: every method here
// corresponds 1:1 to a bullet in §6's "Device service" list.
type DeviceService interface {
	GetDevicesByDriver(ctx context.Context, driverName string) ([]*devicemodel.Device, error)
	GetResourceByID(ctx context.Context, uuid, endpointID, resourceID string) (*devicemodel.Resource, error)
	UpdateResource(ctx context.Context, uuid, endpointID, resourceID, value string, detailsJSON string) error
	GetMetadata(uuid, key string) (string, bool)
	SetMetadata(uuid, key, value string) error
	DeviceFound(ctx context.Context, payload DeviceFoundPayload) (accepted bool, err error)
	IsShuttingDown() bool
	IsInRecoveryMode() bool
	ReconfigureDevice(ctx context.Context, uuid string, delaySeconds int) error
	IsReconfigurationPending(uuid string) bool
	SendReconfigurationSignal(uuid string)
	GetPostUpgradeAction(uuid string) string
	IsDeviceInCommFail(uuid string) bool
	GetResourceAgeMillis(ctx context.Context, uuid, endpointID, resourceID string) (int64, error)
}

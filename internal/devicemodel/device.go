// Package devicemodel holds the logical device/endpoint/resource types
// shared by every package in the core, mirroring §3 of the specification.
package devicemodel

import (
	"encoding/hex"
	"strconv"
	"strings"
)

// DeviceClass identifies a higher-level driver, e.g. "sensor", "light".
type DeviceClass string

// Well-known device classes referenced directly by the common driver.
const (
	DeviceClassSensor        DeviceClass = "sensor"
	DeviceClassThermostat    DeviceClass = "thermostat"
	DeviceClassLight         DeviceClass = "light"
	DeviceClassLightCtrl     DeviceClass = "lightController"
	DeviceClassDoorLock      DeviceClass = "doorLock"
	DeviceClassSiren         DeviceClass = "siren"
	DeviceClassKeypad        DeviceClass = "keypad"
	DeviceClassBatteryBackup DeviceClass = "batteryBackup"
)

// ResourceMode is a bitmask combining the access/caching modes a Resource
// supports.
type ResourceMode uint8

const (
	ResourceModeReadable ResourceMode = 1 << iota
	ResourceModeWritable
	ResourceModeExecutable
	ResourceModeDynamic
	ResourceModeEmitsEvents
	ResourceModeLazySave
)

// Has reports whether all bits in want are set in m.
func (m ResourceMode) Has(want ResourceMode) bool {
	return m&want == want
}

// Resource is a single key/value pair exposed on a device or endpoint.
type Resource struct {
	ID    string
	Value string
	Mode  ResourceMode
	// AgeMillis is populated by the device service when resources are
	// fetched for age-based refresh decisions (§4.G).
	AgeMillis int64
}

// Endpoint is a single Zigbee endpoint on a device.
type Endpoint struct {
	// ID is the decimal string form of the 8-bit Zigbee endpoint number,
	// the canonical on-wire representation used in metadata key
	// zigbee_epid (ground truth for parsing back to an integer).
	ID      string
	Profile string

	Resources map[string]*Resource
}

// IntID parses Endpoint.ID back into the 8-bit endpoint number. Returns an
// error rather than panicking: a malformed ID is a programmer/data error
// per §7 item 7, logged and handled by the caller, never fatal.
func (e *Endpoint) IntID() (uint8, error) {
	v, err := strconv.ParseUint(e.ID, 10, 8)
	if err != nil {
		return 0, err
	}
	return uint8(v), nil
}

// Device is the logical, persisted representation of a claimed Zigbee
// device.
type Device struct {
	UUID               string
	DeviceClass        DeviceClass
	DeviceClassVersion int

	Endpoints []*Endpoint
	Resources map[string]*Resource

	// Metadata is the opaque string map persisted alongside the device;
	// see §3 for the reserved keys this core reads/writes.
	Metadata map[string]string
}

// EndpointByID returns the endpoint whose ID matches the decimal string id.
func (d *Device) EndpointByID(id string) (*Endpoint, bool) {
	for _, ep := range d.Endpoints {
		if ep.ID == id {
			return ep, true
		}
	}
	return nil, false
}

// FirstEndpoint returns the device's first endpoint, or ep 1 as fallback
// per §4.F step 6 ("falling back to endpoint 1 if unknown").
func (d *Device) FirstEndpoint() string {
	if len(d.Endpoints) > 0 {
		return d.Endpoints[0].ID
	}
	return "1"
}

// EUI64ToUUID renders a 64-bit radio address as the lowercase,
// separator-free hex uuid form (invariant 1).
func EUI64ToUUID(eui64 uint64) string {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(eui64)
		eui64 >>= 8
	}
	return hex.EncodeToString(b)
}

// UUIDToEUI64 is the inverse of EUI64ToUUID.
func UUIDToEUI64(uuid string) (uint64, error) {
	b, err := hex.DecodeString(strings.ToLower(uuid))
	if err != nil {
		return 0, err
	}
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v, nil
}

// ProfileForDeviceClass maps a device class to the device-service profile
// name used when registering endpoints (§4.H registerResources).
//
// This preserves a quirk of the original C source (§9 open question):
// getProfileForDeviceClass compared the device class against the
// "presence" class with a truthy strcmp instead of an explicit
// zero-comparison, so presence-class devices silently fall through to
// the sensor profile rather than getting their own. We reproduce that
// fallthrough rather than "fixing" it; flagged for product review.
func ProfileForDeviceClass(class DeviceClass) string {
	switch class {
	case DeviceClassThermostat:
		return "thermostat"
	case DeviceClassLight:
		return "light"
	case DeviceClassLightCtrl:
		return "lightController"
	case DeviceClassDoorLock:
		return "doorLock"
	default:
		// presence/keypad/siren/batteryBackup/sensor and the buggy
		// presence fallthrough all land here, matching the source.
		return "sensor"
	}
}

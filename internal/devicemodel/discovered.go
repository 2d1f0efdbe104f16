package devicemodel

// PowerSource is the device's reported power source, as it appears in
// DiscoveredDeviceDetails.
type PowerSource string

const (
	PowerSourceMains   PowerSource = "mains"
	PowerSourceBattery PowerSource = "battery"
	PowerSourceUnknown PowerSource = "unknown"
)

// RadioDeviceType is the device's Zigbee network role.
type RadioDeviceType string

const (
	RadioDeviceTypeEndDevice  RadioDeviceType = "end-device"
	RadioDeviceTypeRouter     RadioDeviceType = "router"
	RadioDeviceTypeCoordinator RadioDeviceType = "coordinator"
)

// EndpointDescriptor is one entry of DiscoveredDeviceDetails.Endpoints.
type EndpointDescriptor struct {
	EndpointID    uint8
	AppDeviceID   uint16
	AppVersion    uint8
	ServerClusters []uint16
	ClientClusters []uint16

	// AttributeIDs is populated on demand (§3), keyed by cluster id, once
	// configureDevice performs detailed attribute-info discovery.
	AttributeIDs map[uint16][]uint16
}

// DiscoveredDeviceDetails is the immutable-after-pairing snapshot recorded
// at discovery time (§3).
type DiscoveredDeviceDetails struct {
	EUI64           uint64
	Manufacturer    string
	Model           string
	HardwareVersion uint32
	FirmwareVersion uint32
	PowerSource     PowerSource
	DeviceType      RadioDeviceType
	Endpoints       []EndpointDescriptor
}

// Clone returns a deep copy so that the caller producing a
// DiscoveredDeviceDetails retains no aliasing with what gets cached
// (§4.C: "cloning on ingest").
func (d *DiscoveredDeviceDetails) Clone() *DiscoveredDeviceDetails {
	if d == nil {
		return nil
	}
	cp := *d
	cp.Endpoints = make([]EndpointDescriptor, len(d.Endpoints))
	for i, ep := range d.Endpoints {
		epCopy := ep
		epCopy.ServerClusters = append([]uint16(nil), ep.ServerClusters...)
		epCopy.ClientClusters = append([]uint16(nil), ep.ClientClusters...)
		if ep.AttributeIDs != nil {
			epCopy.AttributeIDs = make(map[uint16][]uint16, len(ep.AttributeIDs))
			for k, v := range ep.AttributeIDs {
				epCopy.AttributeIDs[k] = append([]uint16(nil), v...)
			}
		}
		cp.Endpoints[i] = epCopy
	}
	return &cp
}

// EndpointByID returns the descriptor for the given endpoint id.
func (d *DiscoveredDeviceDetails) EndpointByID(id uint8) (*EndpointDescriptor, bool) {
	for i := range d.Endpoints {
		if d.Endpoints[i].EndpointID == id {
			return &d.Endpoints[i], true
		}
	}
	return nil, false
}

// Package radio declares the low-level radio abstraction (zhal in the
// original source) the core consumes: async send/receive and
// endpoint/attribute I/O primitives (§6). It is an external collaborator
// boundary — only the contract is specified here, grounded in
// github.com/shimmeringbee/zigbee's Provider/event types, the same
// primitives the teacher's gateway.go wires into its communicator.
package radio

import (
	"context"

	"github.com/shimmeringbee/zigbee"
)

// Inbound events the core consumes from the radio layer (§6).

type AttributeReportReceived struct {
	EUI64      zigbee.IEEEAddress
	EndpointID zigbee.Endpoint
	ClusterID  zigbee.ClusterID
	RSSI       int8
	LQI        uint8
	Payload    []byte
}

type ClusterCommandReceived struct {
	EUI64       zigbee.IEEEAddress
	EndpointID  zigbee.Endpoint
	ClusterID   zigbee.ClusterID
	CommandID   uint8
	MfgSpecific bool
	MfgCode     uint16
	RSSI        int8
	LQI         uint8
	Payload     []byte
}

type DeviceRejoined struct {
	EUI64    zigbee.IEEEAddress
	IsSecure bool
}

type DeviceLeft struct {
	EUI64 zigbee.IEEEAddress
}

type DeviceAnnounced struct {
	EUI64       zigbee.IEEEAddress
	DeviceType  string
	PowerSource string
}

// OTAEventType mirrors zclcodec.OTAEventType at the radio boundary so
// this package doesn't need to import zclcodec.
type OTAEventType int

type OTAUpgradeMessageSent struct {
	EUI64      zigbee.IEEEAddress
	EventType  OTAEventType
	TimestampMs int64
	SentStatus *uint8
	Buffer     []byte
}

type OTAUpgradeMessageReceived struct {
	EUI64      zigbee.IEEEAddress
	EventType  OTAEventType
	TimestampMs int64
	Buffer     []byte
}

// Outbound operations the core invokes on the radio layer (§6).
type Radio interface {
	SendUnicastClusterCommand(ctx context.Context, eui64 zigbee.IEEEAddress, endpointID zigbee.Endpoint, clusterID zigbee.ClusterID, commandID uint8, mfgSpecific bool, mfgCode uint16, encrypted bool, payload []byte) error

	ReadAttribute(ctx context.Context, eui64 zigbee.IEEEAddress, endpointID zigbee.Endpoint, clusterID zigbee.ClusterID, mfgCode *uint16, attributeID uint16) ([]byte, error)
	WriteAttribute(ctx context.Context, eui64 zigbee.IEEEAddress, endpointID zigbee.Endpoint, clusterID zigbee.ClusterID, mfgCode *uint16, attributeID uint16, value []byte) error

	SetBinding(ctx context.Context, eui64 zigbee.IEEEAddress, endpointID zigbee.Endpoint, clusterID zigbee.ClusterID) error
	SetReportingConfiguration(ctx context.Context, eui64 zigbee.IEEEAddress, endpointID zigbee.Endpoint, clusterID zigbee.ClusterID, attributeID uint16, minIntervalSeconds, maxIntervalSeconds int) error

	StartDiscovery(ctx context.Context) error
	StopDiscovery(ctx context.Context) error

	RequestLeave(ctx context.Context, eui64 zigbee.IEEEAddress) error
	RefreshOTAFiles(ctx context.Context, eui64 zigbee.IEEEAddress) error
}

// Package cluster implements the per-cluster handler registry described in
// §4.B: it holds the set of clusters a driver instance cares about and
// dispatches inbound radio events to the matching cluster, then always to
// the higher-level driver's equivalent hook.
package cluster

import (
	"context"

	"github.com/shimmeringbee/zigbee"
)

// Priority orders cluster configuration: highest-priority clusters
// configure before default-priority ones (§4.B).
type Priority int

const (
	PriorityDefault Priority = iota
	PriorityHighest
)

// ConfigureContext carries everything a cluster needs to make
// configuration decisions: the descriptor/details the device announced,
// plus a mutable scratch space for cluster-specific choices (poll
// intervals, reporting flags, attribute ids) that clusters consult with
// typed get-with-default helpers.
type ConfigureContext struct {
	EUI64      zigbee.IEEEAddress
	EndpointID zigbee.Endpoint

	Descriptor interface{}
	Details    interface{}

	options map[string]interface{}
}

// NewConfigureContext returns a ConfigureContext with an initialized
// options map.
func NewConfigureContext(eui64 zigbee.IEEEAddress, endpointID zigbee.Endpoint, descriptor, details interface{}) *ConfigureContext {
	return &ConfigureContext{
		EUI64:      eui64,
		EndpointID: endpointID,
		Descriptor: descriptor,
		Details:    details,
		options:    map[string]interface{}{},
	}
}

// SetOption stores a cluster-specific configuration choice.
func (c *ConfigureContext) SetOption(key string, value interface{}) {
	c.options[key] = value
}

// IntOption returns a previously-set int option, or def if absent or of
// the wrong type.
func (c *ConfigureContext) IntOption(key string, def int) int {
	if v, ok := c.options[key]; ok {
		if iv, ok := v.(int); ok {
			return iv
		}
	}
	return def
}

// BoolOption returns a previously-set bool option, or def if absent or of
// the wrong type.
func (c *ConfigureContext) BoolOption(key string, def bool) bool {
	if v, ok := c.options[key]; ok {
		if bv, ok := v.(bool); ok {
			return bv
		}
	}
	return def
}

// StringOption returns a previously-set string option, or def if absent
// or of the wrong type.
func (c *ConfigureContext) StringOption(key string, def string) string {
	if v, ok := c.options[key]; ok {
		if sv, ok := v.(string); ok {
			return sv
		}
	}
	return def
}

// AttributeReportEvent is the inbound event raised when a device reports
// attribute values.
type AttributeReportEvent struct {
	EUI64      zigbee.IEEEAddress
	EndpointID zigbee.Endpoint
	ClusterID  zigbee.ClusterID
	RSSI       int8
	LQI        uint8
	Payload    []byte
}

// ClusterCommandEvent is the inbound event raised when a device sends a
// ZCL cluster command.
type ClusterCommandEvent struct {
	EUI64        zigbee.IEEEAddress
	EndpointID   zigbee.Endpoint
	ClusterID    zigbee.ClusterID
	CommandID    uint8
	MfgSpecific  bool
	MfgCode      uint16
	RSSI         int8
	LQI          uint8
	Payload      []byte
}

// AlarmEvent is the inbound event raised by the Alarms cluster.
type AlarmEvent struct {
	EUI64      zigbee.IEEEAddress
	EndpointID zigbee.Endpoint
	ClusterID  zigbee.ClusterID
	AlarmCode  uint8
}

// PollControlCheckinEvent is the inbound event raised by a sleepy device
// polling the PollControl cluster (§4.G).
type PollControlCheckinEvent struct {
	EUI64      zigbee.IEEEAddress
	EndpointID zigbee.Endpoint

	// BatterySavingPayload is non-nil when the device attached the
	// Comcast battery-saving checkin payload.
	BatterySavingPayload *BatterySavingPayload
}

// BatterySavingPayload is the optional Comcast checkin payload (§4.G).
type BatterySavingPayload struct {
	VoltageMillivolts int
	HasSensorDatum    bool
	SensorDatum       int32
	TempCentiC        int16
	RSSI              int8
	LQI               uint8
	Retries           uint16
	Rejoins           uint16
}

// Cluster is the capability set a cluster handler may implement (§3). A
// handler implements only the subset it needs; the registry type-asserts
// for each capability when dispatching.
type Cluster interface {
	ClusterID() zigbee.ClusterID
	Priority() Priority
}

// Configurer clusters run during configureDevice, in priority order.
type Configurer interface {
	Cluster
	ConfigureCluster(ctx context.Context, cfg *ConfigureContext) error
}

// AttributeReportHandler clusters react to attribute reports.
type AttributeReportHandler interface {
	Cluster
	HandleAttributeReport(ctx context.Context, event AttributeReportEvent) error
}

// ClusterCommandHandler clusters react to cluster commands.
type ClusterCommandHandler interface {
	Cluster
	HandleClusterCommand(ctx context.Context, event ClusterCommandEvent) error
}

// AlarmHandler clusters react to alarms.
type AlarmHandler interface {
	Cluster
	HandleAlarm(ctx context.Context, event AlarmEvent) error
}

// AlarmClearedHandler clusters react to alarm-cleared notifications.
type AlarmClearedHandler interface {
	Cluster
	HandleAlarmCleared(ctx context.Context, event AlarmEvent) error
}

// PollControlCheckinHandler clusters read attributes on-demand during a
// sleepy device's fast-poll window (§4.G).
type PollControlCheckinHandler interface {
	Cluster
	HandlePollControlCheckin(ctx context.Context, event PollControlCheckinEvent) error
}

// Destroyer clusters release resources when removed from a driver.
type Destroyer interface {
	Cluster
	Destroy(ctx context.Context) error
}

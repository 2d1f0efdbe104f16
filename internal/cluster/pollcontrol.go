package cluster

import (
	"context"
	"strconv"

	"github.com/rdkcentral/barton-zigbee-core/internal/zclcodec"
	"github.com/shimmeringbee/zigbee"
)

// pollControlClusterID is the well-known PollControl cluster (§4.G).
const pollControlClusterID = zigbee.ClusterID(0x0020)

const pollControlCheckinCommandID = 0x00

const (
	pollControlAttrCheckinInterval   = 0x0000
	pollControlAttrLongPollInterval  = 0x0002
	pollControlAttrShortPollInterval = 0x0003
)

// batterySavingPayloadSize is the exact wire length of the optional
// Comcast checkin payload (§4.G): voltage(u16) + hasSensorDatum(u8) +
// sensorDatum(i32) + tempCentiC(i16) + rssi(i8) + lqi(u8) + retries(u16)
// + rejoins(u16).
const batterySavingPayloadSize = 2 + 1 + 4 + 2 + 1 + 1 + 2 + 2

// CheckinHandler is the narrow surface the PollControl cluster needs from
// whatever coordinates sleepy-device checkins (pollcontrol.Coordinator in
// practice); kept here, rather than importing that package directly, to
// avoid a cluster<->pollcontrol import cycle (pollcontrol already imports
// cluster for its event/payload types).
type CheckinHandler interface {
	Checkin(ctx context.Context, uuid string, endpointID string, payload *BatterySavingPayload) error
}

// AttributeWriter is the narrow radio surface PollControlCluster needs to
// push quarter-second poll intervals during configuration.
type AttributeWriter interface {
	WriteAttribute(ctx context.Context, eui64 zigbee.IEEEAddress, endpointID zigbee.Endpoint, clusterID zigbee.ClusterID, mfgCode *uint16, attributeID uint16, value []byte) error
}

// PollControlCluster bridges inbound PollControl checkin commands to a
// CheckinHandler and writes the configured poll intervals during
// configureDevice (§4.G).
type PollControlCluster struct {
	uuidOf func(zigbee.IEEEAddress) string
	writer AttributeWriter
	handler CheckinHandler

	longPollIntervalQuarterSeconds  int
	shortPollIntervalQuarterSeconds int
	checkinIntervalQuarterSeconds   int
}

// NewPollControlCluster constructs a PollControlCluster. Interval values
// are quarter-seconds, matching the ZCL PollControl attribute unit.
func NewPollControlCluster(uuidOf func(zigbee.IEEEAddress) string, writer AttributeWriter, handler CheckinHandler, checkinIntervalQuarterSeconds, longPollIntervalQuarterSeconds, shortPollIntervalQuarterSeconds int) *PollControlCluster {
	return &PollControlCluster{
		uuidOf:                          uuidOf,
		writer:                          writer,
		handler:                         handler,
		checkinIntervalQuarterSeconds:   checkinIntervalQuarterSeconds,
		longPollIntervalQuarterSeconds:  longPollIntervalQuarterSeconds,
		shortPollIntervalQuarterSeconds: shortPollIntervalQuarterSeconds,
	}
}

func (c *PollControlCluster) ClusterID() zigbee.ClusterID { return pollControlClusterID }
func (c *PollControlCluster) Priority() Priority          { return PriorityDefault }

// ConfigureCluster writes the checkin/long-poll/short-poll intervals this
// driver instance wants, reading overrides the higher driver may have
// stashed in cfg's options (§4.B: "poll intervals in quarter-seconds").
func (c *PollControlCluster) ConfigureCluster(ctx context.Context, cfg *ConfigureContext) error {
	checkin := cfg.IntOption("pollControlCheckinInterval", c.checkinIntervalQuarterSeconds)
	long := cfg.IntOption("pollControlLongPollInterval", c.longPollIntervalQuarterSeconds)
	short := cfg.IntOption("pollControlShortPollInterval", c.shortPollIntervalQuarterSeconds)

	if err := c.writeU32(ctx, cfg, pollControlAttrCheckinInterval, uint32(checkin)); err != nil {
		return err
	}
	if err := c.writeU32(ctx, cfg, pollControlAttrLongPollInterval, uint32(long)); err != nil {
		return err
	}
	return c.writeU32(ctx, cfg, pollControlAttrShortPollInterval, uint32(short))
}

func (c *PollControlCluster) writeU32(ctx context.Context, cfg *ConfigureContext, attributeID uint16, value uint32) error {
	w := zclcodec.NewWriter()
	w.PutU32(value)
	return c.writer.WriteAttribute(ctx, cfg.EUI64, cfg.EndpointID, pollControlClusterID, nil, attributeID, w.Bytes())
}

// HandleClusterCommand recognizes the Check-in command (0x00) and
// forwards to the handler, decoding the optional Comcast battery-saving
// payload only when its length matches the fixed wire size exactly.
func (c *PollControlCluster) HandleClusterCommand(ctx context.Context, event ClusterCommandEvent) error {
	if event.CommandID != pollControlCheckinCommandID {
		return nil
	}
	if c.handler == nil {
		return nil
	}

	var payload *BatterySavingPayload
	if len(event.Payload) == batterySavingPayloadSize {
		payload = decodeBatterySavingPayload(event.Payload)
	}

	uuid := c.uuidOf(event.EUI64)
	return c.handler.Checkin(ctx, uuid, strconv.Itoa(int(event.EndpointID)), payload)
}

func decodeBatterySavingPayload(buf []byte) *BatterySavingPayload {
	r := zclcodec.NewReader(buf)

	voltage, err := r.GetU16()
	if err != nil {
		return nil
	}
	hasSensor, err := r.GetU8()
	if err != nil {
		return nil
	}
	sensorDatum, err := r.GetI32()
	if err != nil {
		return nil
	}
	tempCentiC, err := r.GetI16()
	if err != nil {
		return nil
	}
	rssi, err := r.GetI8()
	if err != nil {
		return nil
	}
	lqi, err := r.GetU8()
	if err != nil {
		return nil
	}
	retries, err := r.GetU16()
	if err != nil {
		return nil
	}
	rejoins, err := r.GetU16()
	if err != nil {
		return nil
	}

	return &BatterySavingPayload{
		VoltageMillivolts: int(voltage),
		HasSensorDatum:    hasSensor != 0,
		SensorDatum:       sensorDatum,
		TempCentiC:        tempCentiC,
		RSSI:              rssi,
		LQI:               lqi,
		Retries:           retries,
		Rejoins:           rejoins,
	}
}

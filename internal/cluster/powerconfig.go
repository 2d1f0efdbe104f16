package cluster

import (
	"context"

	"github.com/rdkcentral/barton-zigbee-core/internal/zclcodec"
	"github.com/shimmeringbee/zigbee"
)

// PowerConfigurationClusterID is the well-known Power Configuration
// cluster (§4.H: battery-powered devices' batteryVoltage/Percentage).
const PowerConfigurationClusterID = zigbee.ClusterID(0x0001)

const (
	powerAttrBatteryVoltage             = 0x0020 // deci-volts
	powerAttrBatteryPercentageRemaining = 0x0021 // half-percent units
	powerAttrBatteryAlarmState          = 0x003e
)

const batteryAlarmVoltageLowBit = 1 << 0

// BatterySink receives parsed battery readings, decoupling this cluster
// from commondriver's resource-writing concerns.
type BatterySink interface {
	ReportBattery(uuid string, voltageMillivolts int, percentRemaining int, isLow bool)
}

// PowerConfigurationCluster decodes BatteryVoltage, BatteryPercentageRemaining
// and BatteryAlarmState attribute reports (§4.H).
type PowerConfigurationCluster struct {
	uuidOf func(zigbee.IEEEAddress) string
	sink   BatterySink

	lastVoltage int
	lastPercent int
	lastLow     bool
}

// NewPowerConfigurationCluster constructs a PowerConfigurationCluster.
func NewPowerConfigurationCluster(uuidOf func(zigbee.IEEEAddress) string, sink BatterySink) *PowerConfigurationCluster {
	return &PowerConfigurationCluster{uuidOf: uuidOf, sink: sink}
}

func (c *PowerConfigurationCluster) ClusterID() zigbee.ClusterID { return PowerConfigurationClusterID }
func (c *PowerConfigurationCluster) Priority() Priority          { return PriorityDefault }

// HandleAttributeReport tracks the most recently reported voltage and
// percentage across however many reports carry them (a device may split
// the two across separate reports) and forwards the combined pair plus
// the most recently reported low-battery-alarm bit after every report of
// one of the three attributes.
func (c *PowerConfigurationCluster) HandleAttributeReport(ctx context.Context, event AttributeReportEvent) error {
	r := zclcodec.NewReader(event.Payload)
	attrID, err := r.GetU16()
	if err != nil {
		return nil
	}

	switch attrID {
	case powerAttrBatteryVoltage:
		v, err := r.GetU8()
		if err != nil {
			return nil
		}
		c.lastVoltage = int(v) * 100 // millivolts from 100mV units

	case powerAttrBatteryPercentageRemaining:
		v, err := r.GetU8()
		if err != nil {
			return nil
		}
		c.lastPercent = int(v) / 2

	case powerAttrBatteryAlarmState:
		bitmap, err := r.GetU32()
		if err != nil {
			return nil
		}
		c.lastLow = bitmap&batteryAlarmVoltageLowBit != 0

	default:
		return nil
	}

	if c.sink != nil {
		c.sink.ReportBattery(c.uuidOf(event.EUI64), c.lastVoltage, c.lastPercent, c.lastLow)
	}
	return nil
}

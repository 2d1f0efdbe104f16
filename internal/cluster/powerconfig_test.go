package cluster

import (
	"context"
	"testing"

	"github.com/rdkcentral/barton-zigbee-core/internal/zclcodec"
	"github.com/shimmeringbee/zigbee"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBatterySink struct {
	uuid              string
	voltageMillivolts int
	percentRemaining  int
	isLow             bool
	calls             int
}

func (f *fakeBatterySink) ReportBattery(uuid string, voltageMillivolts int, percentRemaining int, isLow bool) {
	f.uuid, f.voltageMillivolts, f.percentRemaining, f.isLow = uuid, voltageMillivolts, percentRemaining, isLow
	f.calls++
}

func u16u8Payload(attrID uint16, value uint8) []byte {
	w := zclcodec.NewWriter()
	w.PutU16(attrID)
	w.PutU8(value)
	return w.Bytes()
}

func TestPowerConfigurationCluster_TracksVoltageThenPercentage(t *testing.T) {
	sink := &fakeBatterySink{}
	c := NewPowerConfigurationCluster(func(zigbee.IEEEAddress) string { return "dev1" }, sink)

	require.NoError(t, c.HandleAttributeReport(context.Background(), AttributeReportEvent{
		Payload: u16u8Payload(powerAttrBatteryVoltage, 30), // 3.0V in 100mV units
	}))
	assert.Equal(t, 3000, sink.voltageMillivolts)

	require.NoError(t, c.HandleAttributeReport(context.Background(), AttributeReportEvent{
		Payload: u16u8Payload(powerAttrBatteryPercentageRemaining, 150), // 75%
	}))
	assert.Equal(t, 75, sink.percentRemaining)
	assert.Equal(t, 2, sink.calls)
}

func TestPowerConfigurationCluster_AlarmStateReportsLowBit(t *testing.T) {
	sink := &fakeBatterySink{}
	c := NewPowerConfigurationCluster(func(zigbee.IEEEAddress) string { return "dev1" }, sink)

	w := zclcodec.NewWriter()
	w.PutU16(powerAttrBatteryAlarmState)
	w.PutU32(batteryAlarmVoltageLowBit)

	require.NoError(t, c.HandleAttributeReport(context.Background(), AttributeReportEvent{Payload: w.Bytes()}))
	assert.True(t, sink.isLow)
}

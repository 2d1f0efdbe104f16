package cluster

import (
	"context"
	"testing"

	"github.com/rdkcentral/barton-zigbee-core/internal/zclcodec"
	"github.com/shimmeringbee/zigbee"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLinkQualitySink struct {
	uuid string
	rssi int8
	lqi  uint8
	seen bool
}

func (f *fakeLinkQualitySink) ReportLinkQuality(uuid string, rssi int8, lqi uint8) {
	f.uuid, f.rssi, f.lqi, f.seen = uuid, rssi, lqi, true
}

func attrPayload(t *testing.T, attrID uint16, value byte) []byte {
	t.Helper()
	w := zclcodec.NewWriter()
	w.PutU16(attrID)
	w.PutU8(value)
	return w.Bytes()
}

func TestDiagnosticsCluster_ForwardsRSSISample(t *testing.T) {
	sink := &fakeLinkQualitySink{}
	c := NewDiagnosticsCluster(func(zigbee.IEEEAddress) string { return "abc123" }, sink)

	err := c.HandleAttributeReport(context.Background(), AttributeReportEvent{
		ClusterID: DiagnosticsClusterID,
		Payload:   attrPayload(t, diagAttrLastMessageRSSI, 0xce), // -50 as int8
	})
	require.NoError(t, err)

	require.True(t, sink.seen)
	assert.Equal(t, "abc123", sink.uuid)
	assert.Equal(t, int8(-50), sink.rssi)
}

func TestDiagnosticsCluster_IgnoresUnrelatedAttribute(t *testing.T) {
	sink := &fakeLinkQualitySink{}
	c := NewDiagnosticsCluster(func(zigbee.IEEEAddress) string { return "abc123" }, sink)

	err := c.HandleAttributeReport(context.Background(), AttributeReportEvent{
		Payload: attrPayload(t, 0x9999, 0x01),
	})
	require.NoError(t, err)
	assert.False(t, sink.seen)
}

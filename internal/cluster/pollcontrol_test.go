package cluster

import (
	"context"
	"testing"

	"github.com/rdkcentral/barton-zigbee-core/internal/zclcodec"
	"github.com/shimmeringbee/zigbee"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAttributeWriter struct {
	written map[uint16][]byte
}

func (f *fakeAttributeWriter) WriteAttribute(ctx context.Context, eui64 zigbee.IEEEAddress, endpointID zigbee.Endpoint, clusterID zigbee.ClusterID, mfgCode *uint16, attributeID uint16, value []byte) error {
	if f.written == nil {
		f.written = map[uint16][]byte{}
	}
	f.written[attributeID] = value
	return nil
}

type fakeCheckinHandler struct {
	uuid       string
	endpointID string
	payload    *BatterySavingPayload
	calls      int
}

func (f *fakeCheckinHandler) Checkin(ctx context.Context, uuid string, endpointID string, payload *BatterySavingPayload) error {
	f.uuid, f.endpointID, f.payload = uuid, endpointID, payload
	f.calls++
	return nil
}

func TestPollControlCluster_ConfigureWritesIntervals(t *testing.T) {
	writer := &fakeAttributeWriter{}
	c := NewPollControlCluster(func(zigbee.IEEEAddress) string { return "dev1" }, writer, nil, 800, 20, 2)

	require.NoError(t, c.ConfigureCluster(context.Background(), NewConfigureContext(0, 1, nil, nil)))

	assert.Contains(t, writer.written, uint16(pollControlAttrCheckinInterval))
	assert.Contains(t, writer.written, uint16(pollControlAttrLongPollInterval))
	assert.Contains(t, writer.written, uint16(pollControlAttrShortPollInterval))
}

func TestPollControlCluster_HandleClusterCommandIgnoresNonCheckin(t *testing.T) {
	handler := &fakeCheckinHandler{}
	c := NewPollControlCluster(func(zigbee.IEEEAddress) string { return "dev1" }, nil, handler, 0, 0, 0)

	require.NoError(t, c.HandleClusterCommand(context.Background(), ClusterCommandEvent{CommandID: 0x05}))
	assert.Equal(t, 0, handler.calls)
}

func TestPollControlCluster_HandleClusterCommandForwardsPlainCheckin(t *testing.T) {
	handler := &fakeCheckinHandler{}
	c := NewPollControlCluster(func(zigbee.IEEEAddress) string { return "dev1" }, nil, handler, 0, 0, 0)

	require.NoError(t, c.HandleClusterCommand(context.Background(), ClusterCommandEvent{
		CommandID:  pollControlCheckinCommandID,
		EndpointID: 3,
	}))

	assert.Equal(t, 1, handler.calls)
	assert.Equal(t, "dev1", handler.uuid)
	assert.Equal(t, "3", handler.endpointID)
	assert.Nil(t, handler.payload)
}

func TestPollControlCluster_HandleClusterCommandDecodesBatterySavingPayload(t *testing.T) {
	handler := &fakeCheckinHandler{}
	c := NewPollControlCluster(func(zigbee.IEEEAddress) string { return "dev1" }, nil, handler, 0, 0, 0)

	w := zclcodec.NewWriter()
	w.PutU16(3300) // voltage mV
	w.PutU8(1)     // has sensor datum
	w.PutI32(42)   // sensor datum
	w.PutI16(2150) // temp centi-C
	w.PutI8(-60)   // rssi
	w.PutU8(200)   // lqi
	w.PutU16(1)    // retries
	w.PutU16(0)    // rejoins

	require.NoError(t, c.HandleClusterCommand(context.Background(), ClusterCommandEvent{
		CommandID: pollControlCheckinCommandID,
		Payload:   w.Bytes(),
	}))

	require.NotNil(t, handler.payload)
	assert.Equal(t, 3300, handler.payload.VoltageMillivolts)
	assert.True(t, handler.payload.HasSensorDatum)
	assert.Equal(t, int32(42), handler.payload.SensorDatum)
	assert.Equal(t, int16(2150), handler.payload.TempCentiC)
	assert.Equal(t, int8(-60), handler.payload.RSSI)
	assert.Equal(t, uint8(200), handler.payload.LQI)
	assert.Equal(t, uint16(1), handler.payload.Retries)
}

package cluster

import (
	"context"
	"errors"
	"testing"

	"github.com/rdkcentral/barton-zigbee-core/internal/zclcodec"
	"github.com/shimmeringbee/zigbee"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAttributeReader struct {
	byAttr map[uint16][]byte
	errFor map[uint16]error
	calls  int
}

func (f *fakeAttributeReader) ReadAttribute(ctx context.Context, eui64 zigbee.IEEEAddress, endpointID zigbee.Endpoint, clusterID zigbee.ClusterID, mfgCode *uint16, attributeID uint16) ([]byte, error) {
	f.calls++
	if err, ok := f.errFor[attributeID]; ok {
		return nil, err
	}
	return f.byAttr[attributeID], nil
}

func encodedString(t *testing.T, s string) []byte {
	t.Helper()
	w := zclcodec.NewWriter()
	require.NoError(t, w.PutString(s))
	return w.Bytes()
}

func TestBasicCluster_ConfigureReadsManufacturerAndModel(t *testing.T) {
	radio := &fakeAttributeReader{byAttr: map[uint16][]byte{
		basicAttrManufacturerName: encodedString(t, "Acme"),
		basicAttrModelIdentifier:  encodedString(t, "Widget-1"),
	}}

	c := NewBasicCluster(radio)
	err := c.ConfigureCluster(context.Background(), NewConfigureContext(0, 0, nil, nil))
	require.NoError(t, err)

	assert.Equal(t, "Acme", c.Manufacturer)
	assert.Equal(t, "Widget-1", c.Model)
}

func TestBasicCluster_FailedReadLeavesZeroValueAndDoesNotAbort(t *testing.T) {
	radio := &fakeAttributeReader{errFor: map[uint16]error{
		basicAttrManufacturerName: errors.New("timeout"),
		basicAttrModelIdentifier:  errors.New("timeout"),
	}}

	c := NewBasicCluster(radio)
	err := c.ConfigureCluster(context.Background(), NewConfigureContext(0, 0, nil, nil))
	require.NoError(t, err)

	assert.Empty(t, c.Manufacturer)
	assert.Empty(t, c.Model)
	assert.GreaterOrEqual(t, radio.calls, 2, "expected a read attempt for each of manufacturer and model")
}

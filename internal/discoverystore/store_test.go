package discoverystore

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/rdkcentral/barton-zigbee-core/internal/devicemodel"
	"github.com/stretchr/testify/assert"
)

type fakeMetadata struct {
	mu   sync.Mutex
	data map[string]map[string]string
}

func newFakeMetadata() *fakeMetadata {
	return &fakeMetadata{data: map[string]map[string]string{}}
}

func (f *fakeMetadata) GetMetadata(uuid, key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.data[uuid]
	if !ok {
		return "", false
	}
	v, ok := m[key]
	return v, ok
}

func (f *fakeMetadata) SetMetadata(uuid, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.data[uuid] == nil {
		f.data[uuid] = map[string]string{}
	}
	f.data[uuid][key] = value
	return nil
}

func TestStore_GetOrLoad_FromPersisted(t *testing.T) {
	md := newFakeMetadata()
	details := devicemodel.DiscoveredDeviceDetails{EUI64: 0x1122334455667788, Manufacturer: "Acme"}
	raw, _ := json.Marshal(details)
	md.SetMetadata("uuid-1", MetadataKey, string(raw))

	s := New(md)
	got, err := s.GetOrLoad("uuid-1")
	assert.NoError(t, err)
	assert.Equal(t, "Acme", got.Manufacturer)

	// Second call hits the cache, still returns a clone.
	got2, err := s.GetOrLoad("uuid-1")
	assert.NoError(t, err)
	got2.Manufacturer = "mutated"
	got3, _ := s.GetOrLoad("uuid-1")
	assert.Equal(t, "Acme", got3.Manufacturer)
}

func TestStore_PutDoesNotAliasCaller(t *testing.T) {
	md := newFakeMetadata()
	s := New(md)

	details := &devicemodel.DiscoveredDeviceDetails{Manufacturer: "Acme"}
	s.Put("uuid-1", details)

	details.Manufacturer = "mutated-by-caller"

	cached, err := s.GetOrLoad("uuid-1")
	assert.NoError(t, err)
	assert.Equal(t, "Acme", cached.Manufacturer)
}

func TestStore_UpdateAnnounce_PersistsOnlyOnChange(t *testing.T) {
	md := newFakeMetadata()
	s := New(md)
	s.Put("uuid-1", &devicemodel.DiscoveredDeviceDetails{
		PowerSource: devicemodel.PowerSourceUnknown,
		DeviceType:  devicemodel.RadioDeviceTypeEndDevice,
	})

	err := s.UpdateAnnounce("uuid-1", devicemodel.RadioDeviceTypeEndDevice, devicemodel.PowerSourceBattery)
	assert.NoError(t, err)

	raw, ok := md.GetMetadata("uuid-1", MetadataKey)
	assert.True(t, ok)

	var persisted devicemodel.DiscoveredDeviceDetails
	assert.NoError(t, json.Unmarshal([]byte(raw), &persisted))
	assert.Equal(t, devicemodel.PowerSourceBattery, persisted.PowerSource)
}

func TestStore_GetOrLoad_MissingReturnsError(t *testing.T) {
	s := New(newFakeMetadata())
	_, err := s.GetOrLoad("unknown")
	assert.Error(t, err)
}

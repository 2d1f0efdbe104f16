// Package discoverystore implements the in-memory, write-through cache of
// per-device radio-discovery details described in §4.C.
package discoverystore

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rdkcentral/barton-zigbee-core/internal/devicemodel"
)

// MetadataKey is the device metadata key discoveredDetails is persisted
// under (§3, §6).
const MetadataKey = "discoveredDetails"

// MetadataProvider is the subset of the device service the store needs to
// read/write persisted metadata (§6).
type MetadataProvider interface {
	GetMetadata(uuid, key string) (string, bool)
	SetMetadata(uuid, key, value string) error
}

// Store is the per-driver cache keyed by eui64/uuid, guarded by its own
// mutex (§5: discoveredDeviceDetailsMtx).
type Store struct {
	mu       sync.Mutex
	cache    map[string]*devicemodel.DiscoveredDeviceDetails
	metadata MetadataProvider
}

// New constructs a Store backed by metadata.
func New(metadata MetadataProvider) *Store {
	return &Store{
		cache:    map[string]*devicemodel.DiscoveredDeviceDetails{},
		metadata: metadata,
	}
}

// GetOrLoad returns the cached details for uuid if present; otherwise it
// loads and parses the persisted JSON, caches, and returns a clone so the
// caller retains no aliasing with the store's copy.
func (s *Store) GetOrLoad(uuid string) (*devicemodel.DiscoveredDeviceDetails, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cached, ok := s.cache[uuid]; ok {
		return cached.Clone(), nil
	}

	raw, ok := s.metadata.GetMetadata(uuid, MetadataKey)
	if !ok || raw == "" {
		return nil, fmt.Errorf("discoverystore: no discovered details persisted for %s", uuid)
	}

	var details devicemodel.DiscoveredDeviceDetails
	if err := json.Unmarshal([]byte(raw), &details); err != nil {
		return nil, fmt.Errorf("discoverystore: parsing persisted details for %s: %w", uuid, err)
	}

	s.cache[uuid] = details.Clone()
	return details.Clone(), nil
}

// Put caches a clone of details for uuid, without persisting. Used when a
// fresh discovery arrives and the caller will separately decide whether
// to persist (Put is the ingest path; Store never retains the caller's
// pointer).
func (s *Store) Put(uuid string, details *devicemodel.DiscoveredDeviceDetails) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[uuid] = details.Clone()
}

// UpdateAnnounce writes through deviceType/powerSource observed at a
// device-announce event: only persists if either field actually changed
// (§4.C).
func (s *Store) UpdateAnnounce(uuid string, deviceType devicemodel.RadioDeviceType, powerSource devicemodel.PowerSource) error {
	s.mu.Lock()
	cached, ok := s.cache[uuid]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("discoverystore: unknown device %s", uuid)
	}

	if cached.DeviceType == deviceType && cached.PowerSource == powerSource {
		s.mu.Unlock()
		return nil
	}

	cached.DeviceType = deviceType
	cached.PowerSource = powerSource
	toPersist := cached.Clone()
	s.mu.Unlock()

	raw, err := json.Marshal(toPersist)
	if err != nil {
		return fmt.Errorf("discoverystore: marshalling details for %s: %w", uuid, err)
	}

	return s.metadata.SetMetadata(uuid, MetadataKey, string(raw))
}

// Remove drops uuid from the cache (e.g. on device removal).
func (s *Store) Remove(uuid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, uuid)
}

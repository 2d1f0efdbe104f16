// Package deviceservice declares the external collaborator interfaces the
// core consumes from the surrounding device-service layer (§6): property
// provider and device/resource access. Apart from the map-backed
// MapPropertyProvider, none of these are implemented here — they're the
// boundary the spec treats as externally provided.
package deviceservice

import "strconv"

// PropertyProvider reads configuration options with defaults, matching
// the property table in §6. All accessors are total: a missing or
// malformed property yields the supplied default rather than an error.
type PropertyProvider interface {
	GetStringOrDefault(key, def string) string
	GetIntOrDefault(key string, def int) int
	GetBoolOrDefault(key string, def bool) bool
}

// MapPropertyProvider is a simple in-memory PropertyProvider, useful for
// tests and for hosts that load configuration from flat key/value
// sources.
type MapPropertyProvider map[string]string

func (m MapPropertyProvider) GetStringOrDefault(key, def string) string {
	if v, ok := m[key]; ok {
		return v
	}
	return def
}

func (m MapPropertyProvider) GetIntOrDefault(key string, def int) int {
	if v, ok := m[key]; ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func (m MapPropertyProvider) GetBoolOrDefault(key string, def bool) bool {
	if v, ok := m[key]; ok {
		return v == "true" || v == "1"
	}
	return def
}

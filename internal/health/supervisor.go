// Package health implements the network health-check configuration and
// PAN-ID attack defender described in §4.E.
package health

import (
	"context"
	"log"
	"sync"

	"github.com/rdkcentral/barton-zigbee-core/internal/deviceservice"
)

// Property keys, §6.
const (
	propHealthCheckIntervalMs = "cpe.zigbee.healthCheck.intervalMs"
	propCCAThresholdDbm       = "cpe.zigbee.healthCheck.ccaThresholdDbm"
	propCCAFailureThreshold   = "cpe.zigbee.healthCheck.ccaFailureThreshold"
	propCCARestoreThreshold   = "cpe.zigbee.healthCheck.ccaRestoreThreshold"
	propRetryDelayMs          = "cpe.zigbee.healthCheck.retryDelayMs"

	propDefenderPanIDThreshold = "cpe.zigbee.defender.panIdChangeThreshold"
	propDefenderWindowMs       = "cpe.zigbee.defender.windowMs"
	propDefenderRestoreMs      = "cpe.zigbee.defender.restoreMs"
)

// Defaults, floors enforced by the getters below.
const (
	defaultHealthCheckIntervalMs = 300000
	defaultCCAThresholdDbm       = -75
	defaultCCAFailureThreshold   = 3
	defaultCCARestoreThreshold   = 1
	defaultRetryDelayMs          = 1000

	defaultDefenderWindowMs  = 60000
	defaultDefenderRestoreMs = 300000

	minHealthCheckIntervalMs = 60000
)

// HealthCheckConfig is the radio's energy-level / CCA health check
// configuration (§4.E).
type HealthCheckConfig struct {
	IntervalMs        int
	CCAThresholdDbm   int
	CCAFailureThreshold int
	CCARestoreThreshold int
	RetryDelayMs      int
}

// DefenderConfig is the PAN-ID attack defender's configuration (§4.E). A
// zero Threshold means the defender is disabled.
type DefenderConfig struct {
	Threshold  int
	WindowMs   int
	RestoreMs  int
}

// EventSink receives the outbound events this supervisor emits (§6).
type EventSink interface {
	NetworkInterference(active bool)
	PanIDAttack(active bool)
}

// Supervisor configures the radio's health check and PAN-ID defender and
// translates their raw signals into the outbound events (§4.E).
type Supervisor struct {
	properties deviceservice.PropertyProvider
	events     EventSink

	mu                sync.Mutex
	interferenceActive bool
	panIDAttackActive  bool
}

// New constructs a Supervisor.
func New(properties deviceservice.PropertyProvider, events EventSink) *Supervisor {
	return &Supervisor{properties: properties, events: events}
}

// HealthCheckConfig reads the radio health-check tuning from properties,
// enforcing the floor on interval.
func (s *Supervisor) HealthCheckConfig() HealthCheckConfig {
	interval := s.properties.GetIntOrDefault(propHealthCheckIntervalMs, defaultHealthCheckIntervalMs)
	if interval < minHealthCheckIntervalMs {
		interval = minHealthCheckIntervalMs
	}

	return HealthCheckConfig{
		IntervalMs:          interval,
		CCAThresholdDbm:     s.properties.GetIntOrDefault(propCCAThresholdDbm, defaultCCAThresholdDbm),
		CCAFailureThreshold: s.properties.GetIntOrDefault(propCCAFailureThreshold, defaultCCAFailureThreshold),
		CCARestoreThreshold: s.properties.GetIntOrDefault(propCCARestoreThreshold, defaultCCARestoreThreshold),
		RetryDelayMs:        s.properties.GetIntOrDefault(propRetryDelayMs, defaultRetryDelayMs),
	}
}

// DefenderConfig reads the PAN-ID defender tuning from properties. A
// threshold of 0 disables the defender.
func (s *Supervisor) DefenderConfig() DefenderConfig {
	return DefenderConfig{
		Threshold: s.properties.GetIntOrDefault(propDefenderPanIDThreshold, 0),
		WindowMs:  s.properties.GetIntOrDefault(propDefenderWindowMs, defaultDefenderWindowMs),
		RestoreMs: s.properties.GetIntOrDefault(propDefenderRestoreMs, defaultDefenderRestoreMs),
	}
}

// SetNetworkInterference reports a health-check-derived interference
// signal; emits NetworkInterference only on a state transition.
func (s *Supervisor) SetNetworkInterference(active bool) {
	s.mu.Lock()
	changed := s.interferenceActive != active
	s.interferenceActive = active
	s.mu.Unlock()

	if changed {
		s.events.NetworkInterference(active)
	}
}

// Reconfigure re-reads the defender configuration. When the threshold has
// been set to 0 (disabled) and an attack was previously signaled, this
// emits a clearing event per §4.E / scenario 6.
func (s *Supervisor) Reconfigure(ctx context.Context) {
	cfg := s.DefenderConfig()

	if cfg.Threshold == 0 {
		s.mu.Lock()
		wasActive := s.panIDAttackActive
		s.panIDAttackActive = false
		s.mu.Unlock()

		if wasActive {
			s.events.PanIDAttack(false)
		}
		return
	}
}

// ReportPanIDAttack reports a raw defender signal; emits PanIDAttack only
// on a state transition.
func (s *Supervisor) ReportPanIDAttack(active bool) {
	cfg := s.DefenderConfig()
	if cfg.Threshold == 0 {
		log.Printf("health: ignoring panIdAttack signal, defender disabled")
		return
	}

	s.mu.Lock()
	changed := s.panIDAttackActive != active
	s.panIDAttackActive = active
	s.mu.Unlock()

	if changed {
		s.events.PanIDAttack(active)
	}
}

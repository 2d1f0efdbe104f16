package health

import (
	"context"
	"testing"

	"github.com/rdkcentral/barton-zigbee-core/internal/deviceservice"
	"github.com/stretchr/testify/assert"
)

type fakeEventSink struct {
	interference []bool
	panID        []bool
}

func (f *fakeEventSink) NetworkInterference(active bool) { f.interference = append(f.interference, active) }
func (f *fakeEventSink) PanIDAttack(active bool)          { f.panID = append(f.panID, active) }

func TestSupervisor_HealthCheckConfigFloors(t *testing.T) {
	props := deviceservice.MapPropertyProvider{propHealthCheckIntervalMs: "1000"}
	s := New(props, &fakeEventSink{})

	cfg := s.HealthCheckConfig()
	assert.Equal(t, minHealthCheckIntervalMs, cfg.IntervalMs)
}

func TestSupervisor_NetworkInterferenceOnlyFiresOnTransition(t *testing.T) {
	sink := &fakeEventSink{}
	s := New(deviceservice.MapPropertyProvider{}, sink)

	s.SetNetworkInterference(true)
	s.SetNetworkInterference(true)
	s.SetNetworkInterference(false)

	assert.Equal(t, []bool{true, false}, sink.interference)
}

func TestSupervisor_PanIDDefenderDisableEmitsClearingEvent(t *testing.T) {
	sink := &fakeEventSink{}
	props := deviceservice.MapPropertyProvider{propDefenderPanIDThreshold: "3"}
	s := New(props, sink)

	s.ReportPanIDAttack(true)
	assert.Equal(t, []bool{true}, sink.panID)

	// Disable the defender and reconfigure: expect exactly one clearing
	// event, no further events until re-enabled (scenario 6).
	props[propDefenderPanIDThreshold] = "0"
	s.Reconfigure(context.Background())

	assert.Equal(t, []bool{true, false}, sink.panID)

	s.Reconfigure(context.Background())
	assert.Equal(t, []bool{true, false}, sink.panID)
}

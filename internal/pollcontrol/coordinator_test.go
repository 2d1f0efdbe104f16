package pollcontrol

import (
	"context"
	"testing"

	"github.com/rdkcentral/barton-zigbee-core/internal/cluster"
	"github.com/rdkcentral/barton-zigbee-core/internal/deviceservice"
	"github.com/stretchr/testify/assert"
)

type fakeRadio struct {
	checkinResponses  []bool
	customResponses   int
	fastPollEntered   int
	fastPollStopped   int
}

func (f *fakeRadio) SendCheckinResponse(ctx context.Context, uuid string, enterFastPoll bool) error {
	f.checkinResponses = append(f.checkinResponses, enterFastPoll)
	return nil
}
func (f *fakeRadio) SendCustomCheckinResponse(ctx context.Context, uuid string) error {
	f.customResponses++
	return nil
}
func (f *fakeRadio) EnterFastPoll(ctx context.Context, uuid string) error {
	f.fastPollEntered++
	return nil
}
func (f *fakeRadio) StopFastPoll(ctx context.Context, uuid string) error {
	f.fastPollStopped++
	return nil
}

type fakeReconfig struct {
	pending       map[string]bool
	signaled      []string
	asapAllowed   bool
}

func (f *fakeReconfig) IsReconfigurationPending(uuid string) bool { return f.pending[uuid] }
func (f *fakeReconfig) SignalReconfigurationCheckin(uuid string)  { f.signaled = append(f.signaled, uuid) }
func (f *fakeReconfig) ReconfigureASAPAllowed(uuid string) bool   { return f.asapAllowed }

type fakeDispatcher struct {
	dispatched int
}

func (f *fakeDispatcher) DispatchPollControlCheckin(ctx context.Context, event cluster.PollControlCheckinEvent) error {
	f.dispatched++
	return nil
}

type fakeMetadataDeviceService struct {
	deviceservice.DeviceService
}

func (fakeMetadataDeviceService) GetMetadata(uuid, key string) (string, bool) { return "", false }

func TestCheckin_ReconfigurationPendingShortCircuits(t *testing.T) {
	radio := &fakeRadio{}
	reconfig := &fakeReconfig{pending: map[string]bool{"uuid-1": true}}
	ageCalls := 0

	c := New(
		deviceservice.MapPropertyProvider{},
		fakeMetadataDeviceService{},
		radio,
		nil,
		reconfig,
		nil,
		func(ctx context.Context, uuid string, kind ResourceKind) (int64, bool) {
			ageCalls++
			return 0, true
		},
	)

	err := c.Checkin(context.Background(), "uuid-1", "1", nil)
	assert.NoError(t, err)
	assert.Equal(t, []bool{true}, radio.checkinResponses)
	assert.Equal(t, []string{"uuid-1"}, reconfig.signaled)
	assert.Equal(t, 0, ageCalls, "no attribute reads should occur on the reconfiguration handshake path")
}

func TestCheckin_BatterySavingPayloadUpdatesAndResponds(t *testing.T) {
	radio := &fakeRadio{}
	updated := false
	battery := batteryUpdaterFunc(func(ctx context.Context, uuid string, payload *cluster.BatterySavingPayload) error {
		updated = true
		return nil
	})

	c := New(deviceservice.MapPropertyProvider{}, fakeMetadataDeviceService{}, radio, battery, &fakeReconfig{pending: map[string]bool{}}, nil, nil)

	err := c.Checkin(context.Background(), "uuid-1", "1", &cluster.BatterySavingPayload{VoltageMillivolts: 3000})
	assert.NoError(t, err)
	assert.True(t, updated)
	assert.Equal(t, 1, radio.customResponses)
}

func TestCheckin_EmptyRefreshSetRespondsNoFastPoll(t *testing.T) {
	radio := &fakeRadio{}
	c := New(
		deviceservice.MapPropertyProvider{},
		fakeMetadataDeviceService{},
		radio,
		nil,
		&fakeReconfig{pending: map[string]bool{}},
		nil,
		func(ctx context.Context, uuid string, kind ResourceKind) (int64, bool) { return 0, false },
	)

	err := c.Checkin(context.Background(), "uuid-1", "1", nil)
	assert.NoError(t, err)
	assert.Equal(t, []bool{false}, radio.checkinResponses)
	assert.Equal(t, 0, radio.fastPollEntered)
}

func TestCheckin_StaleResourcesEnterFastPollAndDispatch(t *testing.T) {
	radio := &fakeRadio{}
	dispatcher := &fakeDispatcher{}
	c := New(
		deviceservice.MapPropertyProvider{},
		fakeMetadataDeviceService{},
		radio,
		nil,
		&fakeReconfig{pending: map[string]bool{}},
		dispatcher,
		func(ctx context.Context, uuid string, kind ResourceKind) (int64, bool) {
			return int64(DefaultTempRefreshSecs+1) * 1000, true
		},
	)

	err := c.Checkin(context.Background(), "uuid-1", "1", nil)
	assert.NoError(t, err)
	assert.Equal(t, 1, radio.fastPollEntered)
	assert.Equal(t, 1, radio.fastPollStopped)
	assert.Equal(t, 1, dispatcher.dispatched)
	assert.Equal(t, []bool{true}, radio.checkinResponses)
}

func TestDeviceRejoined_ReconfigureASAP(t *testing.T) {
	radio := &fakeRadio{}
	reconfig := &fakeReconfig{pending: map[string]bool{"uuid-1": true}, asapAllowed: true}

	c := New(deviceservice.MapPropertyProvider{}, fakeMetadataDeviceService{}, radio, nil, reconfig, nil, nil)

	err := c.DeviceRejoined(context.Background(), "uuid-1")
	assert.NoError(t, err)
	assert.Equal(t, []string{"uuid-1"}, reconfig.signaled)
}

type batteryUpdaterFunc func(ctx context.Context, uuid string, payload *cluster.BatterySavingPayload) error

func (f batteryUpdaterFunc) UpdateFromBatterySavingPayload(ctx context.Context, uuid string, payload *cluster.BatterySavingPayload) error {
	return f(ctx, uuid, payload)
}

package firmware

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rdkcentral/barton-zigbee-core/internal/devicemodel"
	"github.com/rdkcentral/barton-zigbee-core/internal/deviceservice"
	"github.com/stretchr/testify/assert"
)

type fakeDeviceAccessor struct {
	mu       sync.Mutex
	versions map[string]string
	statuses map[string]Status
	endpoint string
}

func newFakeDeviceAccessor() *fakeDeviceAccessor {
	return &fakeDeviceAccessor{versions: map[string]string{}, statuses: map[string]Status{}, endpoint: "1"}
}

func (f *fakeDeviceAccessor) GetFirmwareVersion(ctx context.Context, uuid string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.versions[uuid]
	return v, ok
}
func (f *fakeDeviceAccessor) SetFirmwareVersionResource(ctx context.Context, uuid, version string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.versions[uuid] = version
	return nil
}
func (f *fakeDeviceAccessor) GetFirmwareStatus(uuid string) Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statuses[uuid]
}
func (f *fakeDeviceAccessor) SetFirmwareStatus(ctx context.Context, uuid string, status Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[uuid] = status
	return nil
}
func (f *fakeDeviceAccessor) FirstEndpointID(uuid string) string { return f.endpoint }

type fakeMetadataDS struct {
	mu   sync.Mutex
	data map[string]string
}

func newFakeMetadataDS() *fakeMetadataDS { return &fakeMetadataDS{data: map[string]string{}} }

func (f *fakeMetadataDS) GetMetadata(uuid, key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[uuid+"/"+key]
	return v, ok
}
func (f *fakeMetadataDS) SetMetadata(uuid, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[uuid+"/"+key] = value
	return nil
}

// fakeMetadataDeviceService adapts fakeMetadataDS to deviceservice.DeviceService
// for use by MetadataStore, which only calls GetMetadata/SetMetadata; every
// other method is an unused stub.
type fakeMetadataDeviceService struct {
	*fakeMetadataDS
}

func (fakeMetadataDeviceService) GetDevicesByDriver(ctx context.Context, driverName string) ([]*devicemodel.Device, error) {
	return nil, nil
}
func (fakeMetadataDeviceService) GetResourceByID(ctx context.Context, uuid, endpointID, resourceID string) (*devicemodel.Resource, error) {
	return nil, nil
}
func (fakeMetadataDeviceService) UpdateResource(ctx context.Context, uuid, endpointID, resourceID, value, detailsJSON string) error {
	return nil
}
func (fakeMetadataDeviceService) DeviceFound(ctx context.Context, payload deviceservice.DeviceFoundPayload) (bool, error) {
	return false, nil
}
func (fakeMetadataDeviceService) IsShuttingDown() bool                          { return false }
func (fakeMetadataDeviceService) IsInRecoveryMode() bool                        { return false }
func (fakeMetadataDeviceService) ReconfigureDevice(ctx context.Context, uuid string, delaySeconds int) error {
	return nil
}
func (fakeMetadataDeviceService) IsReconfigurationPending(uuid string) bool { return false }
func (fakeMetadataDeviceService) SendReconfigurationSignal(uuid string)     {}
func (fakeMetadataDeviceService) GetPostUpgradeAction(uuid string) string   { return "" }
func (fakeMetadataDeviceService) IsDeviceInCommFail(uuid string) bool       { return false }
func (fakeMetadataDeviceService) GetResourceAgeMillis(ctx context.Context, uuid, endpointID, resourceID string) (int64, error) {
	return 0, nil
}

type fakeFileEnsurer struct {
	mu      sync.Mutex
	fail    bool
	ensured []string
}

func (f *fakeFileEnsurer) EnsureFile(ctx context.Context, info FileInfo) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return "", assertError
	}
	f.ensured = append(f.ensured, info.FileName)
	return "/fw/" + info.FileName, nil
}

var assertError = &testErr{"download failed"}

type testErr struct{ msg string }

func (e *testErr) Error() string { return e.msg }

type fakeNotifier struct {
	mu             sync.Mutex
	imageNotifies  []string
	refreshedIndex bool
}

func (f *fakeNotifier) SendImageNotify(ctx context.Context, uuid, endpointID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.imageNotifies = append(f.imageNotifies, uuid)
	return nil
}
func (f *fakeNotifier) RefreshOTAFileIndex(ctx context.Context, uuid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshedIndex = true
	return nil
}

type fakeReconfigRequester struct {
	action    string
	requested []string
}

func (f *fakeReconfigRequester) ReconfigureDevice(ctx context.Context, uuid string, delaySeconds int) error {
	f.requested = append(f.requested, uuid)
	return nil
}
func (f *fakeReconfigRequester) GetPostUpgradeAction(uuid string) string { return f.action }

func newTestPipeline(props deviceservice.PropertyProvider, devices *fakeDeviceAccessor, files FileEnsurer, notifier *fakeNotifier, reconfig ReconfigurationRequester) (*Pipeline, *fakeMetadataDS) {
	mds := newFakeMetadataDS()
	ms := NewMetadataStore(fakeMetadataDeviceService{fakeMetadataDS: mds})
	p := NewPipeline(props, ms, files, NewScheduler(), devices, nil, notifier, reconfig, NewBlockingUpgradeBarrier())
	return p, mds
}

func TestPipeline_EndToEndUpgrade(t *testing.T) {
	devices := newFakeDeviceAccessor()
	devices.versions["uuid-1"] = "0x00000100"

	files := &fakeFileEnsurer{}
	notifier := &fakeNotifier{}
	reconfig := &fakeReconfigRequester{action: "reconfigure"}

	props := deviceservice.MapPropertyProvider{PropNoDelayFlag: "true", PropFirmwareBaseURL: "https://fw.example"}
	p, _ := newTestPipeline(props, devices, files, notifier, reconfig)

	descriptor := Descriptor{
		LatestFirmware: LatestFirmware{
			Version: "0x00000200",
			FileInfos: []FileInfo{{Type: "app", FileName: "fw.bin", ExpectedMD5: "m"}},
		},
	}

	err := p.ProcessDescriptor(context.Background(), "uuid-1", descriptor)
	assert.NoError(t, err)

	// nodelay flag => schedule fires immediately (delay 0); poll until
	// the background task has run.
	assert.Eventually(t, func() bool {
		return len(files.ensured) == 1
	}, time.Second, time.Millisecond)

	assert.Eventually(t, func() bool {
		return len(notifier.imageNotifies) == 1
	}, time.Second, time.Millisecond)

	assert.Equal(t, StatusPending, devices.GetFirmwareStatus("uuid-1"))

	assert.NoError(t, p.OnUpgradeStarted(context.Background(), "uuid-1", time.Unix(0, 0)))
	assert.Equal(t, StatusStarted, devices.GetFirmwareStatus("uuid-1"))

	assert.NoError(t, p.OnQueryNextImageRequest(context.Background(), "uuid-1", 0x200, time.Unix(0, 0)))
	assert.Equal(t, StatusCompleted, devices.GetFirmwareStatus("uuid-1"))
	assert.Equal(t, "0x00000200", devices.versions["uuid-1"])
	assert.Equal(t, []string{"uuid-1"}, reconfig.requested)
}

func TestPipeline_NoUpgradeNeededSetsUpToDate(t *testing.T) {
	devices := newFakeDeviceAccessor()
	devices.versions["uuid-1"] = "0x00000200"

	p, _ := newTestPipeline(deviceservice.MapPropertyProvider{}, devices, &fakeFileEnsurer{}, &fakeNotifier{}, nil)

	descriptor := Descriptor{LatestFirmware: LatestFirmware{Version: "0x00000100"}}
	err := p.ProcessDescriptor(context.Background(), "uuid-1", descriptor)
	assert.NoError(t, err)
	assert.Equal(t, StatusUpToDate, devices.GetFirmwareStatus("uuid-1"))
}

func TestPipeline_MissingFirmwareVersionSkipsSilently(t *testing.T) {
	devices := newFakeDeviceAccessor()
	p, _ := newTestPipeline(deviceservice.MapPropertyProvider{}, devices, &fakeFileEnsurer{}, &fakeNotifier{}, nil)

	descriptor := Descriptor{LatestFirmware: LatestFirmware{Version: "0x00000100"}}
	err := p.ProcessDescriptor(context.Background(), "uuid-1", descriptor)
	assert.NoError(t, err)
	assert.Equal(t, Status(""), devices.GetFirmwareStatus("uuid-1"))
}

func TestPipeline_DownloadFailureReschedulesWithRetryDelay(t *testing.T) {
	devices := newFakeDeviceAccessor()
	devices.versions["uuid-1"] = "0x00000100"

	files := &fakeFileEnsurer{fail: true}
	props := deviceservice.MapPropertyProvider{PropNoDelayFlag: "true", PropFirmwareBaseURL: "https://fw.example"}
	p, _ := newTestPipeline(props, devices, files, &fakeNotifier{}, nil)

	descriptor := Descriptor{
		LatestFirmware: LatestFirmware{
			Version:   "0x00000200",
			FileInfos: []FileInfo{{Type: "app", FileName: "fw.bin"}},
		},
	}

	err := p.ProcessDescriptor(context.Background(), "uuid-1", descriptor)
	assert.NoError(t, err)

	assert.Eventually(t, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		_, pending := p.pending["uuid-1"]
		return pending
	}, time.Second, time.Millisecond, "a retry should be rescheduled after download failure")
}

func TestPipeline_CancelPendingUpgradePreventsFire(t *testing.T) {
	devices := newFakeDeviceAccessor()
	devices.versions["uuid-1"] = "0x00000100"

	files := &fakeFileEnsurer{}
	props := deviceservice.MapPropertyProvider{} // delayed (no nodelay), so we can cancel before it fires
	p, _ := newTestPipeline(props, devices, files, &fakeNotifier{}, nil)

	descriptor := Descriptor{
		LatestFirmware: LatestFirmware{
			Version:   "0x00000200",
			FileInfos: []FileInfo{{Type: "app", FileName: "fw.bin"}},
		},
	}

	err := p.ProcessDescriptor(context.Background(), "uuid-1", descriptor)
	assert.NoError(t, err)

	p.CancelPendingUpgrade("uuid-1")

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, files.ensured)
}

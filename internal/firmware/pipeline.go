package firmware

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/rdkcentral/barton-zigbee-core/internal/deviceservice"
	"github.com/rdkcentral/barton-zigbee-core/internal/zclcodec"
)

// Property keys and defaults (§6).
const (
	PropFirmwareBaseURL  = "deviceFirmwareBaseUrl"
	PropUpgradeDelaySecs = "firmware.upgrade.delaySecs"
	PropRetryDelaySecs   = "firmware.upgrade.retryDelaySecs"
	PropNoDelayFlag      = "zigbee.fw.upgrade.nodelay.flag"

	DefaultUpgradeDelaySecs = 7200
	DefaultRetryDelaySecs   = 3600

	ReconfigurationDelaySecs = 60
)

// FileEnsurer is the subset of *Downloader the pipeline depends on,
// narrowed for testability.
type FileEnsurer interface {
	EnsureFile(ctx context.Context, info FileInfo) (string, error)
}

// DeviceAccessor is the device-specific surface the pipeline needs from
// the device service / common driver (§6).
type DeviceAccessor interface {
	GetFirmwareVersion(ctx context.Context, uuid string) (string, bool)
	SetFirmwareVersionResource(ctx context.Context, uuid, version string) error
	GetFirmwareStatus(uuid string) Status
	SetFirmwareStatus(ctx context.Context, uuid string, status Status) error
	FirstEndpointID(uuid string) string
}

// HigherDriverHooks are the optional, higher-driver-supplied overrides
// described in §4.F steps 2 and 6.
type HigherDriverHooks interface {
	// FirmwareUpgradeRequired, if non-nil, replaces the version-compare
	// decision in step 2.
	FirmwareUpgradeRequired(ctx context.Context, uuid string, descriptor Descriptor) (required bool, handled bool)

	// InitiateFirmwareUpgrade, if it returns handled=true, replaces the
	// default ImageNotify send in step 6.
	InitiateFirmwareUpgrade(ctx context.Context, uuid string, descriptor Descriptor) (handled bool, err error)
}

// ImageNotifier sends the default OTA ImageNotify command (§4.F step 6).
type ImageNotifier interface {
	SendImageNotify(ctx context.Context, uuid, endpointID string) error
	RefreshOTAFileIndex(ctx context.Context, uuid string) error
}

// ReconfigurationRequester schedules a post-upgrade reconfiguration
// (§4.F step 7).
type ReconfigurationRequester interface {
	ReconfigureDevice(ctx context.Context, uuid string, delaySeconds int) error
	GetPostUpgradeAction(uuid string) string
}

// Pipeline implements §4.F end to end.
type Pipeline struct {
	properties deviceservice.PropertyProvider
	metadata   *MetadataStore
	files      FileEnsurer
	scheduler  *Scheduler
	devices    DeviceAccessor
	higher     HigherDriverHooks
	notifier   ImageNotifier
	reconfig   ReconfigurationRequester
	barrier    *BlockingUpgradeBarrier

	mu       sync.Mutex
	pending  map[string]*TaskHandle // uuid -> scheduled task
}

// NewPipeline wires a Pipeline.
func NewPipeline(
	properties deviceservice.PropertyProvider,
	metadata *MetadataStore,
	files FileEnsurer,
	scheduler *Scheduler,
	devices DeviceAccessor,
	higher HigherDriverHooks,
	notifier ImageNotifier,
	reconfig ReconfigurationRequester,
	barrier *BlockingUpgradeBarrier,
) *Pipeline {
	return &Pipeline{
		properties: properties,
		metadata:   metadata,
		files:      files,
		scheduler:  scheduler,
		devices:    devices,
		higher:     higher,
		notifier:   notifier,
		reconfig:   reconfig,
		barrier:    barrier,
		pending:    map[string]*TaskHandle{},
	}
}

// ProcessDescriptor runs §4.F steps 1-4 for a single device/descriptor
// pair. Called on every descriptor-processing pass.
func (p *Pipeline) ProcessDescriptor(ctx context.Context, uuid string, descriptor Descriptor) error {
	currentStr, ok := p.devices.GetFirmwareVersion(ctx, uuid)
	if !ok {
		log.Printf("firmware: no firmwareVersion resource for %s, skipping descriptor", uuid)
		return nil
	}

	upgradeNeeded, err := p.upgradeNeeded(ctx, uuid, currentStr, descriptor)
	if err != nil {
		return err
	}

	if upgradeNeeded {
		current := p.devices.GetFirmwareStatus(uuid)
		if !ShouldPreserve(current) && current != StatusStarted {
			if err := p.devices.SetFirmwareStatus(ctx, uuid, StatusPending); err != nil {
				return err
			}
		}
	} else {
		if err := p.devices.SetFirmwareStatus(ctx, uuid, StatusUpToDate); err != nil {
			return err
		}
		return nil
	}

	if len(descriptor.LatestFirmware.FileInfos) == 0 {
		return nil
	}

	p.cancelPending(uuid)
	p.scheduleUpgrade(uuid, descriptor, p.initialDelay(descriptor))

	return nil
}

func (p *Pipeline) upgradeNeeded(ctx context.Context, uuid, currentStr string, descriptor Descriptor) (bool, error) {
	if p.higher != nil {
		if required, handled := p.higher.FirmwareUpgradeRequired(ctx, uuid, descriptor); handled {
			return required, nil
		}
	}

	current, err := zclcodec.ParseFirmwareVersion(currentStr)
	if err != nil {
		return false, err
	}
	latest, err := zclcodec.ParseFirmwareVersion(descriptor.LatestFirmware.Version)
	if err != nil {
		return false, err
	}

	return current < latest, nil
}

func (p *Pipeline) initialDelay(descriptor Descriptor) time.Duration {
	noDelay := p.properties.GetBoolOrDefault(PropNoDelayFlag, false)
	if descriptor.NoDelayOverride != nil {
		noDelay = *descriptor.NoDelayOverride
	}
	if noDelay {
		return 0
	}
	secs := p.properties.GetIntOrDefault(PropUpgradeDelaySecs, DefaultUpgradeDelaySecs)
	return time.Duration(secs) * time.Second
}

func (p *Pipeline) retryDelay() time.Duration {
	secs := p.properties.GetIntOrDefault(PropRetryDelaySecs, DefaultRetryDelaySecs)
	return time.Duration(secs) * time.Second
}

func (p *Pipeline) cancelPending(uuid string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if h, ok := p.pending[uuid]; ok {
		h.Cancel()
		delete(p.pending, uuid)
	}
}

func (p *Pipeline) scheduleUpgrade(uuid string, descriptor Descriptor, delay time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	h := p.scheduler.Schedule(delay, func() {
		// The handler atomically removes itself from pendingUpgrades
		// before executing its body (invariant 4); if it was already
		// removed (cancelled in flight) it exits without doing work.
		p.mu.Lock()
		cur, stillPending := p.pending[uuid]
		if !stillPending {
			p.mu.Unlock()
			return
		}
		delete(p.pending, uuid)
		p.mu.Unlock()
		_ = cur

		p.fire(context.Background(), uuid, descriptor)
	})

	p.pending[uuid] = h
}

func (p *Pipeline) fire(ctx context.Context, uuid string, descriptor Descriptor) {
	baseURL := p.properties.GetStringOrDefault(PropFirmwareBaseURL, "")
	if baseURL == "" {
		log.Printf("firmware: %v for %s", ErrEmptyBaseURL, uuid)
		p.markFailed(ctx, uuid)
		return
	}

	anyAvailable := false
	downloadFailed := false

	for _, info := range descriptor.LatestFirmware.FileInfos {
		if _, err := p.files.EnsureFile(ctx, info); err != nil {
			log.Printf("firmware: downloading %s for %s: %v", info.FileName, uuid, err)
			downloadFailed = true
			continue
		}
		anyAvailable = true
	}

	if anyAvailable && p.notifier != nil {
		if err := p.notifier.RefreshOTAFileIndex(ctx, uuid); err != nil {
			log.Printf("firmware: refreshing OTA file index for %s: %v", uuid, err)
		}
	}

	allAvailable := anyAvailable && !downloadFailed
	if allAvailable {
		p.initiateUpgrade(ctx, uuid, descriptor)
		return
	}

	if downloadFailed {
		p.cancelPending(uuid)
		p.scheduleUpgrade(uuid, descriptor, p.retryDelay())
	}
}

func (p *Pipeline) initiateUpgrade(ctx context.Context, uuid string, descriptor Descriptor) {
	if p.higher != nil {
		if handled, err := p.higher.InitiateFirmwareUpgrade(ctx, uuid, descriptor); handled {
			if err != nil {
				log.Printf("firmware: higher driver initiate failed for %s: %v", uuid, err)
				p.markFailed(ctx, uuid)
			}
			return
		}
	}

	endpointID := p.devices.FirstEndpointID(uuid)
	if p.notifier != nil {
		if err := p.notifier.SendImageNotify(ctx, uuid, endpointID); err != nil {
			log.Printf("firmware: sending ImageNotify to %s: %v", uuid, err)
			return
		}
	}

	_ = p.metadata.SetMilestone(uuid, MilestoneINSentStatus, "sent")
}

func (p *Pipeline) markFailed(ctx context.Context, uuid string) {
	if err := p.devices.SetFirmwareStatus(ctx, uuid, StatusFailed); err != nil {
		log.Printf("firmware: marking %s failed: %v", uuid, err)
	}
}

// CancelPendingUpgrade cancels any scheduled upgrade task for uuid, e.g.
// on device removal or driver shutdown (§3, §5).
func (p *Pipeline) CancelPendingUpgrade(uuid string) {
	p.cancelPending(uuid)
}

// OnUpgradeStarted records the UpgradeStartedDate milestone and flips the
// firmwareUpdateStatus resource to started, when the radio reports the
// device has begun applying the image.
func (p *Pipeline) OnUpgradeStarted(ctx context.Context, uuid string, at time.Time) error {
	if err := p.metadata.SetMilestone(uuid, MilestoneUpgradeStartedDate, at.UnixMilli()); err != nil {
		return err
	}
	return p.devices.SetFirmwareStatus(ctx, uuid, StatusStarted)
}

// OnQueryNextImageRequest implements §4.F step 7: completion detection.
// When the reported currentVersion differs from what's persisted, this
// records it, updates the firmwareVersion resource, marks the upgrade
// completed, and (if the device service wants a post-upgrade
// reconfiguration) enqueues one after ReconfigurationDelaySecs.
func (p *Pipeline) OnQueryNextImageRequest(ctx context.Context, uuid string, reportedVersion uint32, at time.Time) error {
	if err := p.metadata.SetMilestone(uuid, MilestoneQNIRequestDate, at.UnixMilli()); err != nil {
		return err
	}

	currentStr, ok := p.devices.GetFirmwareVersion(ctx, uuid)
	if !ok {
		return nil
	}
	current, err := zclcodec.ParseFirmwareVersion(currentStr)
	if err != nil {
		return err
	}

	if reportedVersion == current {
		return nil
	}

	newVersionStr := zclcodec.FormatFirmwareVersion(reportedVersion)
	if err := p.devices.SetFirmwareVersionResource(ctx, uuid, newVersionStr); err != nil {
		return err
	}
	if err := p.devices.SetFirmwareStatus(ctx, uuid, StatusCompleted); err != nil {
		return err
	}

	if p.reconfig != nil && p.reconfig.GetPostUpgradeAction(uuid) == "reconfigure" {
		if err := p.reconfig.ReconfigureDevice(ctx, uuid, ReconfigurationDelaySecs); err != nil {
			log.Printf("firmware: scheduling post-upgrade reconfiguration for %s: %v", uuid, err)
		}
	}

	return nil
}

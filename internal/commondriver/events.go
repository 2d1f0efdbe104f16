package commondriver

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/rdkcentral/barton-zigbee-core/internal/cluster"
	"github.com/rdkcentral/barton-zigbee-core/internal/devicemodel"
	"github.com/rdkcentral/barton-zigbee-core/internal/firmware"
	"github.com/rdkcentral/barton-zigbee-core/internal/radio"
	"github.com/rdkcentral/barton-zigbee-core/internal/zclcodec"
)

// AttributeReportReceived implements §4.H: updates ne-rssi/lqi from the
// inbound link metadata on every message, then dispatches to the device's
// cluster registry.
func (d *Driver) AttributeReportReceived(ctx context.Context, uuid string, event radio.AttributeReportReceived) error {
	d.updateNearEndLinkMetadata(uuid, event.RSSI, event.LQI)
	d.watchdog.Pet(uuid)

	registry, ok := d.registryOrNil(uuid)
	if !ok {
		return nil
	}

	return registry.DispatchAttributeReport(ctx, cluster.AttributeReportEvent{
		EUI64:      event.EUI64,
		EndpointID: event.EndpointID,
		ClusterID:  event.ClusterID,
		RSSI:       event.RSSI,
		LQI:        event.LQI,
		Payload:    event.Payload,
	})
}

// ClusterCommandReceived implements §4.H's cluster-command hook, mirroring
// AttributeReportReceived's metadata-then-dispatch ordering.
func (d *Driver) ClusterCommandReceived(ctx context.Context, uuid string, event radio.ClusterCommandReceived) error {
	d.updateNearEndLinkMetadata(uuid, event.RSSI, event.LQI)
	d.watchdog.Pet(uuid)

	registry, ok := d.registryOrNil(uuid)
	if !ok {
		return nil
	}

	return registry.DispatchClusterCommand(ctx, cluster.ClusterCommandEvent{
		EUI64:       event.EUI64,
		EndpointID:  event.EndpointID,
		ClusterID:   event.ClusterID,
		CommandID:   event.CommandID,
		MfgSpecific: event.MfgSpecific,
		MfgCode:     event.MfgCode,
		RSSI:        event.RSSI,
		LQI:         event.LQI,
		Payload:     event.Payload,
	})
}

func (d *Driver) updateNearEndLinkMetadata(uuid string, rssi int8, lqi uint8) {
	if rssi == 0 && lqi == 0 {
		return
	}
	r, l := rssi, lqi
	level, detail := d.linkQuality.update(uuid, &DiagnosticsReading{NeRSSI: &r, NeLQI: &l})
	detailJSON, _ := json.Marshal(detail)
	if err := d.deviceService.UpdateResource(context.Background(), uuid, "", "linkQuality", level, string(detailJSON)); err != nil {
		log.Printf("commondriver: updating linkQuality for %s: %v", uuid, err)
	}
}

// DeviceRemoved implements §4.H's deviceRemoved hook: stops the watchdog,
// removes the discovery cache entry, best-effort sends a leave request,
// cancels pending firmware upgrades, and runs postDeviceRemoved.
func (d *Driver) DeviceRemoved(ctx context.Context, uuid string) error {
	d.watchdog.StopMonitoring(uuid)
	d.discovery.Remove(uuid)

	d.mu.Lock()
	delete(d.registries, uuid)
	for i, id := range d.deviceIDs {
		if id == uuid {
			d.deviceIDs = append(d.deviceIDs[:i], d.deviceIDs[i+1:]...)
			break
		}
	}
	d.mu.Unlock()

	if eui64, err := devicemodel.UUIDToEUI64(uuid); err == nil {
		go d.sendResetToFactoryAndLeave(context.Background(), eui64)
	}

	d.firmware.CancelPendingUpgrade(uuid)

	if d.higher != nil {
		d.higher.PostDeviceRemoved(ctx, uuid)
	}

	return nil
}

// CommFailed implements §4.H's commFailed hook: sets the device's
// commFail resource to true. Nothing is forwarded to the radio layer.
func (d *Driver) CommFailed(ctx context.Context, uuid string) {
	if err := d.deviceService.UpdateResource(ctx, uuid, "", "commFail", "true", ""); err != nil {
		log.Printf("commondriver: setting commFail for %s: %v", uuid, err)
	}
}

// CommRestored implements §4.H's commRestored hook.
func (d *Driver) CommRestored(ctx context.Context, uuid string) {
	if err := d.deviceService.UpdateResource(ctx, uuid, "", "commFail", "false", ""); err != nil {
		log.Printf("commondriver: clearing commFail for %s: %v", uuid, err)
	}
}

// DeviceAnnounced implements the portion of §4.C driven through the
// common driver: writes through the announced deviceType/powerSource.
func (d *Driver) DeviceAnnounced(ctx context.Context, uuid string, deviceType devicemodel.RadioDeviceType, powerSource devicemodel.PowerSource) error {
	return d.discovery.UpdateAnnounce(uuid, deviceType, powerSource)
}

// DeviceRejoined forwards to the poll-control coordinator's rejoin
// handling (§4.G) and re-pets the watchdog.
func (d *Driver) DeviceRejoined(ctx context.Context, uuid string) error {
	d.watchdog.Pet(uuid)
	if d.pollctl == nil {
		return nil
	}
	return d.pollctl.DeviceRejoined(ctx, uuid)
}

// otaSentVariantForwarded mirrors the three OTA sent-event variants the
// source actually forwards to higher drivers (§9 open question:
// otaUpgradeMessageSent only forwards three of the defined event variants;
// any other sent variant is logged as unexpected and not recorded). These are
// also the only variants our side of the exchange ever sends: ImageNotify
// and the two responses.
var otaSentVariantForwarded = map[zclcodec.OTAEventType]bool{
	zclcodec.OTAImageNotify:            true,
	zclcodec.OTAQueryNextImageResponse: true,
	zclcodec.OTAUpgradeEndResponse:     true,
}

// OTAUpgradeMessageSent records the named milestone pair for each sent OTA
// event variant (§4.F step 8: INSentDate/INSentStatus,
// QNIResponseSentDate/QNIResponseSentStatus/QNIResponseImageStatus,
// UEResponseSentDate/UEResponseSentStatus). The UpgradeEndResponse case only
// ever writes its own sent milestones; it does not flip firmwareUpdateStatus
// to started — that transition belongs to the received upgradeStarted event.
func (d *Driver) OTAUpgradeMessageSent(ctx context.Context, uuid string, event radio.OTAUpgradeMessageSent) {
	eventType := zclcodec.OTAEventType(event.EventType)
	if !otaSentVariantForwarded[eventType] {
		log.Printf("commondriver: unexpected sent OTA event type=%d for %s", eventType, uuid)
		return
	}

	switch eventType {
	case zclcodec.OTAImageNotify:
		d.setMilestone(uuid, firmware.MilestoneINSentDate, event.TimestampMs)
		if event.SentStatus != nil {
			d.setMilestone(uuid, firmware.MilestoneINSentStatus, *event.SentStatus)
		}

	case zclcodec.OTAQueryNextImageResponse:
		d.setMilestone(uuid, firmware.MilestoneQNIResponseSentDate, event.TimestampMs)
		if event.SentStatus != nil {
			d.setMilestone(uuid, firmware.MilestoneQNIResponseSentStatus, *event.SentStatus)
		}
		if len(event.Buffer) >= 1 {
			d.setMilestone(uuid, firmware.MilestoneQNIResponseImageStatus, event.Buffer[0])
		}

	case zclcodec.OTAUpgradeEndResponse:
		d.setMilestone(uuid, firmware.MilestoneUEResponseSentDate, event.TimestampMs)
		if event.SentStatus != nil {
			d.setMilestone(uuid, firmware.MilestoneUEResponseSentStatus, *event.SentStatus)
		}
	}
}

func (d *Driver) setMilestone(uuid, key string, value interface{}) {
	if err := d.fwMetadata.SetMilestone(uuid, key, value); err != nil {
		log.Printf("commondriver: recording ota milestone %s for %s: %v", key, uuid, err)
	}
}

// OTAUpgradeMessageReceived validates the inbound OTA frame (§4.A), records
// the named milestone for each received variant (§4.F step 8), and forwards
// QueryNextImageRequest and UpgradeStarted to the firmware pipeline's
// completion detector and started-transition handler respectively;
// malformed frames are dropped with a warning, never propagated (§7 item 2).
func (d *Driver) OTAUpgradeMessageReceived(ctx context.Context, uuid string, event radio.OTAUpgradeMessageReceived) {
	eventType := zclcodec.OTAEventType(event.EventType)

	if !zclcodec.ValidateOTAFrame(eventType, event.Buffer) {
		log.Printf("commondriver: dropping malformed OTA frame type=%d len=%d for %s", eventType, len(event.Buffer), uuid)
		return
	}
	if zclcodec.ShouldWarnOnNonEmpty(eventType) && len(event.Buffer) > 0 {
		log.Printf("commondriver: unexpected non-empty OTA frame type=%d for %s", eventType, uuid)
	}

	at := time.UnixMilli(event.TimestampMs)

	switch eventType {
	case zclcodec.OTALegacyBootloadStarted:
		d.setMilestone(uuid, firmware.MilestoneLegacyBootloadStartedDate, event.TimestampMs)

	case zclcodec.OTALegacyBootloadFailed:
		d.setMilestone(uuid, firmware.MilestoneLegacyBootloadFailedDate, event.TimestampMs)

	case zclcodec.OTALegacyBootloadCompleted:
		d.setMilestone(uuid, firmware.MilestoneLegacyBootloadCompletedDate, event.TimestampMs)

	case zclcodec.OTAUpgradeStarted:
		if err := d.firmware.OnUpgradeStarted(ctx, uuid, at); err != nil {
			log.Printf("commondriver: handling UpgradeStarted for %s: %v", uuid, err)
		}

	case zclcodec.OTAUpgradeEndRequest:
		d.setMilestone(uuid, firmware.MilestoneUERequestDate, event.TimestampMs)
		if len(event.Buffer) >= 1 {
			d.setMilestone(uuid, firmware.MilestoneUERequestStatus, event.Buffer[0])
		}

	case zclcodec.OTAQueryNextImageRequest:
		if len(event.Buffer) < 9 {
			return
		}

		r := zclcodec.NewReader(event.Buffer[5:9])
		currentVersion, err := r.GetU32()
		if err != nil {
			log.Printf("commondriver: parsing QueryNextImageRequest version for %s: %v", uuid, err)
			return
		}

		if err := d.firmware.OnQueryNextImageRequest(ctx, uuid, currentVersion, at); err != nil {
			log.Printf("commondriver: handling QueryNextImageRequest for %s: %v", uuid, err)
		}
	}
}

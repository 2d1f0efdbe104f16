// Package zigbeeadapter bridges a github.com/shimmeringbee/zigbee.Provider
// to the core's domain: it runs the same provider event loop the teacher's
// gateway.go used, but fans node join/leave events out to this package's
// own callers instead of rebuilding the teacher's zda.Device/Node model,
// and exposes a thin Basic-cluster attribute read used to seed
// internal/cluster.BasicCluster's manufacturer/model fields.
package zigbeeadapter

import (
	"context"
	"log"
	"time"

	"github.com/shimmeringbee/callbacks"
	"github.com/shimmeringbee/zcl"
	"github.com/shimmeringbee/zcl/commands/global"
	"github.com/shimmeringbee/zcl/communicator"
	"github.com/shimmeringbee/zigbee"
)

// pollInterval bounds how long providerHandler blocks on a single
// ReadEvent call before checking for shutdown, mirroring gateway.go's
// 250ms polling window.
const pollInterval = 250 * time.Millisecond

// NodeJoined is fanned out to every registered listener when the radio
// reports a new node on the network.
type NodeJoined struct {
	EUI64 zigbee.IEEEAddress
}

// NodeLeft is fanned out when the radio reports a node has left.
type NodeLeft struct {
	EUI64 zigbee.IEEEAddress
}

// Adapter owns a zigbee.Provider's event loop and the ZCL communicator
// built on top of it.
type Adapter struct {
	provider     zigbee.Provider
	communicator *communicator.Communicator

	callbacks *callbacks.Callbacks

	stop chan struct{}
	done chan struct{}
}

// New constructs an Adapter. It registers no endpoint; Start registers the
// caller's endpoint on the adapter node the same way gateway.go registers
// its default endpoint.
func New(provider zigbee.Provider) *Adapter {
	registry := zcl.NewCommandRegistry()
	global.Register(registry)

	return &Adapter{
		provider:     provider,
		communicator: communicator.NewCommunicator(provider, registry),
		callbacks:    callbacks.Create(),
		stop:         make(chan struct{}, 1),
		done:         make(chan struct{}),
	}
}

// OnNodeJoined registers fn to be called whenever a NodeJoined event is
// observed. fn runs on the adapter's event-loop goroutine; it should not
// block on further radio round-trips without its own timeout.
func (a *Adapter) OnNodeJoined(fn func(ctx context.Context, event NodeJoined) error) {
	a.callbacks.Add(fn)
}

// OnNodeLeft registers fn to be called whenever a NodeLeft event is
// observed.
func (a *Adapter) OnNodeLeft(fn func(ctx context.Context, event NodeLeft) error) {
	a.callbacks.Add(fn)
}

// Start registers the adapter's endpoint and begins the provider event
// loop in a background goroutine.
func (a *Adapter) Start(ctx context.Context, endpoint zigbee.Endpoint) error {
	if err := a.provider.RegisterAdapterEndpoint(ctx, endpoint, zigbee.ProfileHomeAutomation, 1, 1, []zigbee.ClusterID{}, []zigbee.ClusterID{}); err != nil {
		return err
	}

	go a.run()
	return nil
}

// Stop signals the event loop to exit and waits for it to do so.
func (a *Adapter) Stop() {
	select {
	case a.stop <- struct{}{}:
	default:
	}
	<-a.done
}

func (a *Adapter) run() {
	defer close(a.done)

	for {
		select {
		case <-a.stop:
			return
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), pollInterval)
		event, err := a.provider.ReadEvent(ctx)
		cancel()

		if err != nil {
			if err != zigbee.ContextExpired {
				log.Printf("zigbeeadapter: reading provider event: %v", err)
			}
			continue
		}

		switch e := event.(type) {
		case zigbee.NodeJoinEvent:
			if err := a.callbacks.Call(context.Background(), NodeJoined{EUI64: e.IEEEAddress}); err != nil {
				log.Printf("zigbeeadapter: node join callback for %016x: %v", uint64(e.IEEEAddress), err)
			}

		case zigbee.NodeLeaveEvent:
			if err := a.callbacks.Call(context.Background(), NodeLeft{EUI64: e.IEEEAddress}); err != nil {
				log.Printf("zigbeeadapter: node leave callback for %016x: %v", uint64(e.IEEEAddress), err)
			}

		case zigbee.NodeIncomingMessageEvent:
			a.communicator.ProcessIncomingMessage(e)
		}
	}
}

// ReadBasicAttributes reads the Basic cluster's ManufacturerName (0x0004)
// and ModelIdentifier (0x0005) attributes in a single global ZCL read,
// the same request shape the teacher's product-information enumeration
// used (has_product_information.go).
func (a *Adapter) ReadBasicAttributes(ctx context.Context, eui64 zigbee.IEEEAddress, supportsAPSAck bool, endpoint zigbee.Endpoint, transactionSequence uint8) (manufacturer string, model string, err error) {
	records, err := a.communicator.Global().ReadAttributes(ctx, eui64, supportsAPSAck, zcl.BasicId, zigbee.NoManufacturer, endpoint, endpoint, transactionSequence, []zcl.AttributeID{0x0004, 0x0005})
	if err != nil {
		return "", "", err
	}

	for _, record := range records {
		if record.Status != 0 {
			continue
		}
		switch record.Identifier {
		case 0x0004:
			if s, ok := record.DataTypeValue.Value.(string); ok {
				manufacturer = s
			}
		case 0x0005:
			if s, ok := record.DataTypeValue.Value.(string); ok {
				model = s
			}
		}
	}

	return manufacturer, model, nil
}

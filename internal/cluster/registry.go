package cluster

import (
	"context"
	"sort"
	"sync"

	"github.com/shimmeringbee/zigbee"
)

// HigherDriverHooks is the higher-level, per-device-class driver's
// equivalent hook set. The registry always invokes the matching hook
// after the cluster hook runs, even when the cluster handled the event
// itself (§4.B).
type HigherDriverHooks interface {
	AttributeReportReceived(ctx context.Context, event AttributeReportEvent) error
	ClusterCommandReceived(ctx context.Context, event ClusterCommandEvent) error
	AlarmReceived(ctx context.Context, event AlarmEvent) error
	AlarmCleared(ctx context.Context, event AlarmEvent) error
	PollControlCheckin(ctx context.Context, event PollControlCheckinEvent) error
}

// Registry holds the clusters a single driver instance cares about, keyed
// by cluster id, and dispatches inbound events to them (§4.B).
type Registry struct {
	mu       sync.RWMutex
	clusters map[zigbee.ClusterID]Cluster
	higher   HigherDriverHooks
}

// NewRegistry returns an empty Registry that forwards to higher after
// every cluster dispatch.
func NewRegistry(higher HigherDriverHooks) *Registry {
	return &Registry{
		clusters: map[zigbee.ClusterID]Cluster{},
		higher:   higher,
	}
}

// AddCluster registers c. Idempotent by cluster id: a second call with
// the same id replaces the prior handler.
func (r *Registry) AddCluster(c Cluster) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clusters[c.ClusterID()] = c
}

// GetCluster returns the handler registered for id, if any.
func (r *Registry) GetCluster(id zigbee.ClusterID) (Cluster, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clusters[id]
	return c, ok
}

// orderedClusters returns every registered cluster, highest priority
// first. The clusters are collected from a map before sorting, so their
// order within a priority band is not defined.
func (r *Registry) orderedClusters() []Cluster {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Cluster, 0, len(r.clusters))
	for _, c := range r.clusters {
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority() > out[j].Priority()
	})
	return out
}

// Configure runs ConfigureCluster on every Configurer cluster in priority
// order. It aborts on the first failure and returns false (§4.B).
func (r *Registry) Configure(ctx context.Context, cfg *ConfigureContext) bool {
	for _, c := range r.orderedClusters() {
		configurer, ok := c.(Configurer)
		if !ok {
			continue
		}
		if err := configurer.ConfigureCluster(ctx, cfg); err != nil {
			return false
		}
	}
	return true
}

// DispatchAttributeReport looks up the cluster by id, invokes its
// HandleAttributeReport if present, then always invokes the higher
// driver's hook.
func (r *Registry) DispatchAttributeReport(ctx context.Context, event AttributeReportEvent) error {
	if c, ok := r.GetCluster(event.ClusterID); ok {
		if h, ok := c.(AttributeReportHandler); ok {
			_ = h.HandleAttributeReport(ctx, event)
		}
	}
	if r.higher != nil {
		return r.higher.AttributeReportReceived(ctx, event)
	}
	return nil
}

// DispatchClusterCommand looks up the cluster by id, invokes its
// HandleClusterCommand if present, then always invokes the higher
// driver's hook.
func (r *Registry) DispatchClusterCommand(ctx context.Context, event ClusterCommandEvent) error {
	if c, ok := r.GetCluster(event.ClusterID); ok {
		if h, ok := c.(ClusterCommandHandler); ok {
			_ = h.HandleClusterCommand(ctx, event)
		}
	}
	if r.higher != nil {
		return r.higher.ClusterCommandReceived(ctx, event)
	}
	return nil
}

// DispatchAlarm looks up the cluster by id, invokes its HandleAlarm if
// present, then always invokes the higher driver's hook.
func (r *Registry) DispatchAlarm(ctx context.Context, event AlarmEvent) error {
	if c, ok := r.GetCluster(event.ClusterID); ok {
		if h, ok := c.(AlarmHandler); ok {
			_ = h.HandleAlarm(ctx, event)
		}
	}
	if r.higher != nil {
		return r.higher.AlarmReceived(ctx, event)
	}
	return nil
}

// DispatchAlarmCleared looks up the cluster by id, invokes its
// HandleAlarmCleared if present, then always invokes the higher driver's
// hook.
func (r *Registry) DispatchAlarmCleared(ctx context.Context, event AlarmEvent) error {
	if c, ok := r.GetCluster(event.ClusterID); ok {
		if h, ok := c.(AlarmClearedHandler); ok {
			_ = h.HandleAlarmCleared(ctx, event)
		}
	}
	if r.higher != nil {
		return r.higher.AlarmCleared(ctx, event)
	}
	return nil
}

// DispatchPollControlCheckin looks up the PollControl cluster, invokes
// its HandlePollControlCheckin if present, then always invokes the
// higher driver's hook.
func (r *Registry) DispatchPollControlCheckin(ctx context.Context, event PollControlCheckinEvent) error {
	const pollControlClusterID = zigbee.ClusterID(0x0020)

	if c, ok := r.GetCluster(pollControlClusterID); ok {
		if h, ok := c.(PollControlCheckinHandler); ok {
			_ = h.HandlePollControlCheckin(ctx, event)
		}
	}
	if r.higher != nil {
		return r.higher.PollControlCheckin(ctx, event)
	}
	return nil
}

// DestroyAll calls Destroy on every registered cluster that implements
// Destroyer.
func (r *Registry) DestroyAll(ctx context.Context) {
	for _, c := range r.orderedClusters() {
		if d, ok := c.(Destroyer); ok {
			_ = d.Destroy(ctx)
		}
	}
}

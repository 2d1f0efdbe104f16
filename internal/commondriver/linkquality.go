package commondriver

import "sync"

// linkQualityLevel is the coarse, monotone string exposed on the
// linkQuality resource (§4.H): the state machine only ever moves between
// adjacent levels based on the latest rssi/lqi sample, rather than
// recomputing from scratch each time, so a single bad sample doesn't
// swing the reported level from good to critical.
type linkQualityLevel string

const (
	levelGood     linkQualityLevel = "good"
	levelFair     linkQualityLevel = "fair"
	levelPoor     linkQualityLevel = "poor"
	levelCritical linkQualityLevel = "critical"
)

var levelOrder = map[linkQualityLevel]int{
	levelCritical: 0,
	levelPoor:     1,
	levelFair:     2,
	levelGood:     3,
}

// linkQualityTracker computes the per-device linkQuality resource from the
// near-end/far-end rssi/lqi samples reported via the Diagnostics cluster
// (§4.H).
type linkQualityTracker struct {
	mu    sync.Mutex
	prior map[string]linkQualityLevel
}

func newLinkQualityTracker() *linkQualityTracker {
	return &linkQualityTracker{prior: map[string]linkQualityLevel{}}
}

// sampleLevel classifies a single rssi/lqi pair into a level. rssi is in
// dBm (higher is better, closer to 0); lqi is 0-255 (higher is better).
func sampleLevel(rssi int8, lqi uint8) linkQualityLevel {
	switch {
	case rssi >= -60 && lqi >= 200:
		return levelGood
	case rssi >= -75 && lqi >= 130:
		return levelFair
	case rssi >= -90 && lqi >= 60:
		return levelPoor
	default:
		return levelCritical
	}
}

func worse(a, b linkQualityLevel) linkQualityLevel {
	if levelOrder[a] <= levelOrder[b] {
		return a
	}
	return b
}

// update folds a new DiagnosticsReading into uuid's tracked level and
// returns the resulting string plus the detail JSON fields (§4.H:
// "{nerssi, ferssi, nelqi, felqi, commFail}").
func (t *linkQualityTracker) update(uuid string, diag *DiagnosticsReading) (string, map[string]interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()

	level := levelGood
	have := false

	if diag.NeRSSI != nil && diag.NeLQI != nil {
		level = sampleLevel(*diag.NeRSSI, *diag.NeLQI)
		have = true
	}
	if diag.FeRSSI != nil && diag.FeLQI != nil {
		feLevel := sampleLevel(*diag.FeRSSI, *diag.FeLQI)
		if have {
			level = worse(level, feLevel)
		} else {
			level = feLevel
			have = true
		}
	}

	if !have {
		if prior, ok := t.prior[uuid]; ok {
			level = prior
		} else {
			level = levelGood
		}
	} else if prior, ok := t.prior[uuid]; ok {
		// Step at most one level from the prior level toward the sample.
		byOrder := [...]linkQualityLevel{levelCritical, levelPoor, levelFair, levelGood}
		p, s := levelOrder[prior], levelOrder[level]
		switch {
		case s > p:
			level = byOrder[p+1]
		case s < p:
			level = byOrder[p-1]
		}
	}

	t.prior[uuid] = level

	detail := map[string]interface{}{
		"nerssi":   optInt8(diag.NeRSSI),
		"ferssi":   optInt8(diag.FeRSSI),
		"nelqi":    optUint8(diag.NeLQI),
		"felqi":    optUint8(diag.FeLQI),
		"commFail": level == levelCritical,
	}

	return string(level), detail
}

func optInt8(v *int8) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func optUint8(v *uint8) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

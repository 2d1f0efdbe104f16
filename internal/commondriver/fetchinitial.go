package commondriver

import (
	"context"
	"encoding/json"
	"strconv"
)

// DiagnosticsClusterID is the well-known 0x0b05 Diagnostics cluster.
const DiagnosticsClusterID = 0x0b05

// PowerConfigurationClusterID is the well-known 0x0001 Power Configuration
// cluster.
const PowerConfigurationClusterID = 0x0001

// TemperatureMeasurementClusterID is the well-known 0x0402 cluster.
const TemperatureMeasurementClusterID = 0x0402

// invalidTemperatureSentinel is the ZCL "not reported" temperature value
// (§4.H: "null if device reports the invalid sentinel 0x8000").
const invalidTemperatureSentinel = -32768

// BatteryReading carries the raw values the higher driver or a live
// attribute read supplies for battery-resource population (§4.H).
type BatteryReading struct {
	VoltageDeciVolts int
	PercentRemaining int
	IsLow            bool
	IsBad            bool
	IsMissing        bool
	IsACMains        bool
	ThresholdDeciVolts *int
}

// DiagnosticsReading carries fe/ne rssi/lqi as read or reported (§4.H).
type DiagnosticsReading struct {
	NeRSSI *int8
	FeRSSI *int8
	NeLQI  *uint8
	FeLQI  *uint8
}

// FetchInitialResourceValues implements §4.H: the higher driver
// contributes per-cluster values first, then the common driver layers its
// own standard-cluster values on top; a common value replaces a higher
// driver value stored under the same key.
func (d *Driver) FetchInitialResourceValues(ctx context.Context, uuid string, hasDiagnostics bool, diag *DiagnosticsReading, hasTemperature bool, tempCentiC *int16, batteryPowered bool, battery *BatteryReading) (map[string]string, error) {
	values := map[string]string{}

	if d.higher != nil {
		higherValues, err := d.higher.FetchInitialResourceValues(ctx, uuid, nil)
		if err != nil {
			return nil, err
		}
		for k, v := range higherValues {
			values[k] = v
		}
	}

	if hasDiagnostics && diag != nil {
		d.applyDiagnostics(uuid, values, diag)
	}

	values["temperature"] = ""
	if hasTemperature && tempCentiC != nil && *tempCentiC != invalidTemperatureSentinel {
		values["temperature"] = itoa(int(*tempCentiC))
	}

	if batteryPowered || d.state.BatteryBackedUp {
		d.applyBattery(values, battery)
	}

	values["lastUserInteractionDate"] = ""

	return values, nil
}

func (d *Driver) applyDiagnostics(uuid string, values map[string]string, diag *DiagnosticsReading) {
	level, detail := d.linkQuality.update(uuid, diag)
	values["linkQuality"] = level
	encoded, _ := json.Marshal(detail)
	values["linkQualityDetails"] = string(encoded)
}

func (d *Driver) applyBattery(values map[string]string, battery *BatteryReading) {
	if battery == nil {
		return
	}

	thresholds := map[string]interface{}{}
	if battery.ThresholdDeciVolts != nil {
		thresholds["lowVoltageThreshold"] = *battery.ThresholdDeciVolts
	}

	values["batteryVoltage"] = itoa(battery.VoltageDeciVolts)
	values["batteryPercentage"] = itoa(battery.PercentRemaining)
	values["batteryLow"] = boolStr(battery.IsLow)
	values["batteryBad"] = boolStr(battery.IsBad)
	values["batteryMissing"] = boolStr(battery.IsMissing)
	values["acMainsConnected"] = boolStr(battery.IsACMains)

	if len(thresholds) > 0 {
		encoded, _ := json.Marshal(thresholds)
		values["batteryThresholds"] = string(encoded)
	}
}

func itoa(v int) string {
	return strconv.Itoa(v)
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

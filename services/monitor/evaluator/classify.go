package evaluator

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/gr4ytips/anavi-monitoring/services/monitor/common"
)

var errNotANumber = errors.New("threshold bound is not a finite number")

// Classify returns the state of a value against a threshold. Values strictly outside [Low, High]
// are critical, values strictly outside [WarnLow, WarnHigh] are warnings. A missing value is normal.
func Classify(value *float64, threshold common.Threshold) common.AlertState {
	if value == nil {
		return common.AlertNormal
	}

	v := *value
	if below(v, threshold.Low) || above(v, threshold.High) {
		return common.AlertCritical
	}
	if below(v, threshold.WarnLow) || above(v, threshold.WarnHigh) {
		return common.AlertWarning
	}

	return common.AlertNormal
}

func below(v float64, bound *float64) bool {
	return bound != nil && v < *bound
}

func above(v float64, bound *float64) bool {
	return bound != nil && v > *bound
}

// Evaluate classifies every metric of the snapshot. Metrics without a threshold are normal.
func Evaluate(snapshot common.Snapshot, thresholds common.ThresholdTable) common.AlertStates {
	states := make(common.AlertStates)
	for sensor, metrics := range snapshot.Readings {
		for metric, value := range metrics {
			threshold, _ := thresholds.Get(sensor, metric)
			states[common.MetricKey{Sensor: sensor, Metric: metric}] = Classify(value, threshold)
		}
	}

	return states
}

// AnyAlert returns true if any state is not normal
func AnyAlert(states common.AlertStates) bool {
	for _, state := range states {
		if state.IsAlert() {
			return true
		}
	}

	return false
}

// ValidateThreshold checks that the defined bounds are finite and ordered
func ValidateThreshold(threshold common.Threshold) error {
	for _, bound := range []*float64{threshold.Low, threshold.High, threshold.WarnLow, threshold.WarnHigh} {
		if bound != nil && (math.IsNaN(*bound) || math.IsInf(*bound, 0)) {
			return errNotANumber
		}
	}
	if threshold.Low != nil && threshold.High != nil && *threshold.Low > *threshold.High {
		return fmt.Errorf("low bound %v is greater than high bound %v", *threshold.Low, *threshold.High)
	}
	if threshold.WarnLow != nil && threshold.WarnHigh != nil && *threshold.WarnLow > *threshold.WarnHigh {
		return fmt.Errorf("warning low bound %v is greater than warning high bound %v", *threshold.WarnLow, *threshold.WarnHigh)
	}

	return nil
}

func sortedKeys(states ...common.AlertStates) []common.MetricKey {
	seen := make(map[common.MetricKey]struct{})
	keys := make([]common.MetricKey, 0)
	for _, s := range states {
		for key := range s {
			if _, found := seen[key]; found {
				continue
			}
			seen[key] = struct{}{}
			keys = append(keys, key)
		}
	}

	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})

	return keys
}

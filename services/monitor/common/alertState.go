package common

import "fmt"

// AlertState is the classification of a metric value against its threshold
type AlertState int

// Alert states, ordered by severity
const (
	AlertNormal AlertState = iota
	AlertWarning
	AlertCritical
)

// String returns the lower case name of the state
func (s AlertState) String() string {
	switch s {
	case AlertNormal:
		return "normal"
	case AlertWarning:
		return "warning"
	case AlertCritical:
		return "critical"
	default:
		return fmt.Sprintf("AlertState(%d)", int(s))
	}
}

// IsAlert returns true for every non-normal state
func (s AlertState) IsAlert() bool {
	return s != AlertNormal
}

// MarshalText encodes the state by name
func (s AlertState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name
func (s *AlertState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "normal":
		*s = AlertNormal
	case "warning":
		*s = AlertWarning
	case "critical":
		*s = AlertCritical
	default:
		return fmt.Errorf("unknown alert state %q", string(text))
	}

	return nil
}

// AlertStates maps each metric to its current state
type AlertStates map[MetricKey]AlertState

// Clone returns a copy of the states
func (as AlertStates) Clone() AlertStates {
	out := make(AlertStates, len(as))
	for k, v := range as {
		out[k] = v
	}
	return out
}

package common

// EventKind names the kind of a notifier event
type EventKind string

// Event kinds
const (
	EventStatus            EventKind = "status"
	EventAlertTransition   EventKind = "alert_transition"
	EventAnyAlertChanged   EventKind = "any_alert_changed"
	EventThresholdsChanged EventKind = "thresholds_changed"
	EventSnapshot          EventKind = "snapshot"
)

// Event is the unit published on the notifier bus. Only the field matching Kind is set.
type Event struct {
	Kind       EventKind        `json:"kind"`
	Timestamp  int64            `json:"timestamp"`
	Status     *StatusMessage   `json:"status,omitempty"`
	Transition *AlertTransition `json:"transition,omitempty"`
	AnyAlert   *bool            `json:"anyAlert,omitempty"`
	Thresholds ThresholdTable   `json:"thresholds,omitempty"`
	Snapshot   *Snapshot        `json:"snapshot,omitempty"`
}

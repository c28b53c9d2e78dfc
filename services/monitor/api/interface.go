package api

import (
	"context"
	"time"

	"github.com/gr4ytips/anavi-monitoring/services/monitor/common"
)

// DataStore defines the in-memory history served by the API
type DataStore interface {
	Latest() (common.Snapshot, bool)
	Query(rangeSpec string) []common.Snapshot
	Len() int
	Capacity() int
	Resize(capacity int) error
	IsInterfaceNil() bool
}

// ThresholdManager defines the threshold evaluator operations exposed to the user
type ThresholdManager interface {
	Thresholds() common.ThresholdTable
	ReplaceThresholds(table common.ThresholdTable) (common.ThresholdTable, error)
	UpdateThreshold(sensor common.SensorType, metric common.MetricType, threshold common.Threshold) (common.ThresholdTable, error)
	States() common.AlertStates
	AnyAlertActive() bool
	IsInterfaceNil() bool
}

// PollerSettings defines the runtime settings of the sampling loop
type PollerSettings interface {
	Interval() time.Duration
	SetInterval(interval time.Duration)
	MockMode() bool
	SetMockMode(mock bool)
	IsInterfaceNil() bool
}

// Archive defines the persisted history. It is optional.
type Archive interface {
	QueryRange(ctx context.Context, from int64, to int64) ([]common.Snapshot, error)
	AlertHistory(ctx context.Context, from int64, to int64) ([]common.AlertRecord, error)
	IsInterfaceNil() bool
}

// EventSource defines the bus the websocket clients are fed from
type EventSource interface {
	Subscribe(handler func(event common.Event)) func()
	IsInterfaceNil() bool
}

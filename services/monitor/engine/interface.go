package engine

import (
	"context"
	"time"

	"github.com/gr4ytips/anavi-monitoring/services/monitor/common"
)

// Poller defines the component able to read all sensors once
type Poller interface {
	// Tick reads every enabled sensor and returns a complete snapshot. It never fails, unavailable
	// readings are nil.
	Tick(ctx context.Context) common.Snapshot
	IsInterfaceNil() bool
}

// Store defines the in-memory history of snapshots
type Store interface {
	Add(snapshot common.Snapshot) error
	Len() int
	IsInterfaceNil() bool
}

// Evaluator defines the component classifying snapshots against the thresholds
type Evaluator interface {
	Process(snapshot common.Snapshot) common.AlertStates
	IsInterfaceNil() bool
}

// Reporter defines a sink receiving every accepted snapshot together with its alert states.
// Report failures are logged and not retried.
type Reporter interface {
	Report(ctx context.Context, snapshot common.Snapshot, states common.AlertStates) error
	IsInterfaceNil() bool
}

// TickObserver receives the per tick engine measurements
type TickObserver interface {
	ObserveTickDuration(duration time.Duration)
	SetHistoryLength(length int)
	IsInterfaceNil() bool
}

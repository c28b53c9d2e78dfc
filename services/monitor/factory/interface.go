package factory

import (
	"context"
	"time"
)

// Engine defines the monitor's sampling cycle
type Engine interface {
	Process(ctx context.Context)
	IsInterfaceNil() bool
}

// Server defines the operation of an entity able to serve requests
type Server interface {
	Start()
	Address() string
	Close() error
}

// SensorPoller defines the poller operations the components handler drives
type SensorPoller interface {
	Interval() time.Duration
	IntervalChanged() <-chan struct{}
	Close() error
	IsInterfaceNil() bool
}

type closer interface {
	Close() error
}

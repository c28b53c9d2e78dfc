package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gr4ytips/anavi-monitoring/services/monitor/common"
	"github.com/multiversx/mx-chain-core-go/core/check"
	logger "github.com/multiversx/mx-chain-logger-go"
)

var log = logger.GetOrCreate("engine")

const (
	tickTimeout   = 30 * time.Second
	reportTimeout = 10 * time.Second
)

// ArgsMonitorEngine is the DTO used to create a new monitor engine
type ArgsMonitorEngine struct {
	Poller    Poller
	Store     Store
	Evaluator Evaluator
	Observer  TickObserver
	Reporters []Reporter
}

// monitorEngine runs one sampling cycle: read, store, evaluate, report
type monitorEngine struct {
	poller    Poller
	store     Store
	evaluator Evaluator
	observer  TickObserver
	reporters []Reporter
}

// NewMonitorEngine creates a new engine instance
func NewMonitorEngine(args ArgsMonitorEngine) (*monitorEngine, error) {
	if check.IfNil(args.Poller) {
		return nil, errors.New("nil poller")
	}
	if check.IfNil(args.Store) {
		return nil, errors.New("nil store")
	}
	if check.IfNil(args.Evaluator) {
		return nil, errors.New("nil evaluator")
	}
	if check.IfNil(args.Observer) {
		return nil, errors.New("nil tick observer")
	}
	for i, r := range args.Reporters {
		if check.IfNil(r) {
			return nil, fmt.Errorf("nil reporter at index %d", i)
		}
	}

	return &monitorEngine{
		poller:    args.Poller,
		store:     args.Store,
		evaluator: args.Evaluator,
		observer:  args.Observer,
		reporters: args.Reporters,
	}, nil
}

// Process reads all sensors once, appends the snapshot to the history, evaluates the thresholds
// and hands the result to every reporter
func (e *monitorEngine) Process(ctx context.Context) {
	start := time.Now()
	defer func() {
		e.observer.ObserveTickDuration(time.Since(start))
	}()

	tickCtx, cancelTick := context.WithTimeout(ctx, tickTimeout)
	snapshot := e.poller.Tick(tickCtx)
	cancelTick()

	if len(snapshot.Readings) == 0 {
		log.Debug("no sensor produced readings, skipping the cycle")
		return
	}

	err := e.store.Add(snapshot)
	if err != nil {
		log.Warn("snapshot rejected by the store", "timestamp", snapshot.Timestamp, "error", err)
		return
	}
	e.observer.SetHistoryLength(e.store.Len())

	states := e.evaluator.Process(snapshot)

	for _, r := range e.reporters {
		e.report(ctx, r, snapshot, states)
	}

	log.Debug("cycle done", "timestamp", snapshot.Timestamp, "alerts", countAlerts(states))
}

func (e *monitorEngine) report(ctx context.Context, r Reporter, snapshot common.Snapshot, states common.AlertStates) {
	reportCtx, cancel := context.WithTimeout(ctx, reportTimeout)
	defer cancel()

	err := r.Report(reportCtx, snapshot, states)
	if err != nil {
		log.Warn("failed to report snapshot, it will be discarded",
			"reporter", fmt.Sprintf("%T", r), "timestamp", snapshot.Timestamp, "error", err)
	}
}

func countAlerts(states common.AlertStates) int {
	count := 0
	for _, state := range states {
		if state.IsAlert() {
			count++
		}
	}

	return count
}

// IsInterfaceNil returns true if the value under the interface is nil
func (e *monitorEngine) IsInterfaceNil() bool {
	return e == nil
}

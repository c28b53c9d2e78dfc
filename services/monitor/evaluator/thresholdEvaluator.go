package evaluator

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gr4ytips/anavi-monitoring/services/monitor/common"
	"github.com/multiversx/mx-chain-core-go/core/check"
	logger "github.com/multiversx/mx-chain-logger-go"
)

var log = logger.GetOrCreate("evaluator")

var errNilPublisher = errors.New("nil publisher")

// ArgsThresholdEvaluator is the DTO used to create a new threshold evaluator
type ArgsThresholdEvaluator struct {
	Thresholds common.ThresholdTable
	Publisher  Publisher
	TimeFunc   func() time.Time
}

type thresholdEvaluator struct {
	// processMut serializes snapshot processing and threshold changes, publishing included
	processMut sync.Mutex
	// stateMut guards the fields below for the readers
	stateMut   sync.RWMutex
	thresholds common.ThresholdTable
	states     common.AlertStates
	anyAlert   bool
	latest     *common.Snapshot
	publisher  Publisher
	timeFunc   func() time.Time
}

// NewThresholdEvaluator creates the owner of the threshold table and of the alert states
func NewThresholdEvaluator(args ArgsThresholdEvaluator) (*thresholdEvaluator, error) {
	if check.IfNil(args.Publisher) {
		return nil, errNilPublisher
	}
	if args.TimeFunc == nil {
		args.TimeFunc = time.Now
	}
	if args.Thresholds == nil {
		args.Thresholds = common.ThresholdTable{}
	}

	return &thresholdEvaluator{
		thresholds: args.Thresholds.Clone(),
		states:     make(common.AlertStates),
		publisher:  args.Publisher,
		timeFunc:   args.TimeFunc,
	}, nil
}

// Process evaluates the snapshot and publishes one transition for every metric whose state changed,
// plus an any-alert event when the aggregate flag flips. It returns the new states.
func (te *thresholdEvaluator) Process(snapshot common.Snapshot) common.AlertStates {
	te.processMut.Lock()
	defer te.processMut.Unlock()

	stored := snapshot.Clone()
	te.stateMut.Lock()
	te.latest = &stored
	te.stateMut.Unlock()

	return te.evaluateLatest(snapshot.Timestamp)
}

// evaluateLatest must be called with processMut held
func (te *thresholdEvaluator) evaluateLatest(timestamp int64) common.AlertStates {
	te.stateMut.RLock()
	latest := te.latest
	thresholds := te.thresholds
	previous := te.states
	previousAny := te.anyAlert
	te.stateMut.RUnlock()

	if latest == nil {
		return previous.Clone()
	}

	current := Evaluate(*latest, thresholds)
	currentAny := AnyAlert(current)

	te.stateMut.Lock()
	te.states = current
	te.anyAlert = currentAny
	te.stateMut.Unlock()

	for _, key := range sortedKeys(previous, current) {
		from, to := previous[key], current[key]
		if from == to {
			continue
		}

		value := latest.Readings[key.Sensor][key.Metric]
		if value != nil {
			value = common.Float(*value)
		}

		log.Debug("alert state changed", "metric", key.String(), "from", from.String(), "to", to.String())
		te.publisher.Publish(common.Event{
			Kind:      common.EventAlertTransition,
			Timestamp: timestamp,
			Transition: &common.AlertTransition{
				Timestamp: timestamp,
				Key:       key,
				From:      from,
				To:        to,
				Value:     value,
			},
		})
	}

	if currentAny != previousAny {
		anyAlert := currentAny
		te.publisher.Publish(common.Event{
			Kind:      common.EventAnyAlertChanged,
			Timestamp: timestamp,
			AnyAlert:  &anyAlert,
		})
	}

	return current.Clone()
}

// ReplaceThresholds installs a copy of the table, broadcasts it and re-evaluates the latest
// snapshot immediately. It returns a copy of the installed table.
func (te *thresholdEvaluator) ReplaceThresholds(table common.ThresholdTable) (common.ThresholdTable, error) {
	for sensor, metrics := range table {
		for metric, threshold := range metrics {
			err := ValidateThreshold(threshold)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", sensor, metric, err)
			}
		}
	}

	te.processMut.Lock()
	defer te.processMut.Unlock()

	installed := table.Clone()
	if installed == nil {
		installed = common.ThresholdTable{}
	}
	te.stateMut.Lock()
	te.thresholds = installed
	te.stateMut.Unlock()

	te.afterThresholdChange()

	return installed.Clone(), nil
}

// UpdateThreshold changes the threshold of a single metric, with the same effects as ReplaceThresholds
func (te *thresholdEvaluator) UpdateThreshold(
	sensor common.SensorType,
	metric common.MetricType,
	threshold common.Threshold,
) (common.ThresholdTable, error) {
	err := ValidateThreshold(threshold)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", sensor, metric, err)
	}

	te.processMut.Lock()
	defer te.processMut.Unlock()

	te.stateMut.Lock()
	updated := te.thresholds.Clone()
	updated.Set(sensor, metric, threshold.Clone())
	te.thresholds = updated
	te.stateMut.Unlock()

	te.afterThresholdChange()

	return updated.Clone(), nil
}

// afterThresholdChange must be called with processMut held
func (te *thresholdEvaluator) afterThresholdChange() {
	timestamp := te.timeFunc().UnixMilli()
	log.Info("thresholds changed")

	te.publisher.Publish(common.Event{
		Kind:       common.EventThresholdsChanged,
		Timestamp:  timestamp,
		Thresholds: te.Thresholds(),
	})

	te.evaluateLatest(timestamp)
}

// Thresholds returns a copy of the current table
func (te *thresholdEvaluator) Thresholds() common.ThresholdTable {
	te.stateMut.RLock()
	defer te.stateMut.RUnlock()

	return te.thresholds.Clone()
}

// States returns a copy of the current alert states
func (te *thresholdEvaluator) States() common.AlertStates {
	te.stateMut.RLock()
	defer te.stateMut.RUnlock()

	return te.states.Clone()
}

// AnyAlertActive returns true while any metric is not normal
func (te *thresholdEvaluator) AnyAlertActive() bool {
	te.stateMut.RLock()
	defer te.stateMut.RUnlock()

	return te.anyAlert
}

// IsInterfaceNil returns true if the value under the interface is nil
func (te *thresholdEvaluator) IsInterfaceNil() bool {
	return te == nil
}

package poller

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gr4ytips/anavi-monitoring/services/monitor/common"
	"github.com/gr4ytips/anavi-monitoring/services/monitor/config"
	"github.com/gr4ytips/anavi-monitoring/services/monitor/sensors"
	"github.com/multiversx/mx-chain-core-go/core/check"
	logger "github.com/multiversx/mx-chain-logger-go"
)

var log = logger.GetOrCreate("poller")

// MinInterval is the smallest accepted sampling interval
const MinInterval = 100 * time.Millisecond

// MaxInterval is the largest accepted sampling interval
const MaxInterval = 24 * time.Hour

// Status texts published for every sensor on every tick
const (
	StatusOK              = "OK"
	StatusReadErrorPrefix = common.StatusReadErrorPrefix
	StatusMockNoData      = "Mock sensor not providing data"
	StatusHardwarePrefix  = "Hardware unavailable, using simulated data - "
)

// ArgsSensorPoller is the DTO used to create a new sensor poller
type ArgsSensorPoller struct {
	Sensors   []config.SensorConfig
	Polling   config.PollingConfig
	Factory   DriverFactory
	Publisher Publisher
	TimeFunc  func() time.Time
}

type sensorEntry struct {
	config   config.SensorConfig
	metrics  []common.MetricType
	driver   sensors.Driver
	isMock   bool
	fallback sensors.Driver
}

type readResult struct {
	data map[common.MetricType]*float64
	err  error
}

type sensorPoller struct {
	// tickMut serializes ticks, mode switches and closing so a driver is never closed mid-read
	tickMut        sync.Mutex
	entries        []*sensorEntry
	mockMode       bool
	fallbackToMock bool
	closed         bool
	warned         map[string]struct{}
	interval       atomic.Int64
	intervalChange chan struct{}
	factory        DriverFactory
	publisher      Publisher
	timeFunc       func() time.Time
}

// NewSensorPoller creates the poller of all enabled sensors and initialises their drivers
func NewSensorPoller(args ArgsSensorPoller) (*sensorPoller, error) {
	if check.IfNil(args.Factory) {
		return nil, errNilDriverFactory
	}
	if check.IfNil(args.Publisher) {
		return nil, errNilPublisher
	}
	if args.TimeFunc == nil {
		args.TimeFunc = time.Now
	}

	p := &sensorPoller{
		mockMode:       args.Polling.MockMode,
		fallbackToMock: args.Polling.FallbackToMock,
		warned:         make(map[string]struct{}),
		intervalChange: make(chan struct{}, 1),
		factory:        args.Factory,
		publisher:      args.Publisher,
		timeFunc:       args.TimeFunc,
	}
	p.SetInterval(time.Duration(args.Polling.IntervalInMilliseconds) * time.Millisecond)

	for _, sensorConfig := range args.Sensors {
		if !sensorConfig.Enabled {
			log.Debug("sensor disabled, skipping", "sensor", sensorConfig.Name)
			continue
		}

		p.entries = append(p.entries, &sensorEntry{
			config:  sensorConfig,
			metrics: sensorConfig.MetricsOf(),
		})
	}
	p.initDrivers()

	return p, nil
}

// Tick reads every enabled sensor once and returns the resulting snapshot. Every metric of every
// enabled sensor is present in the snapshot; unavailable readings are nil. Tick never fails.
func (p *sensorPoller) Tick(ctx context.Context) common.Snapshot {
	p.tickMut.Lock()
	defer p.tickMut.Unlock()

	if p.closed {
		log.Debug("tick on a closed poller")
		return p.emptySnapshot()
	}

	results := p.readAll(ctx)
	timestamp := p.timeFunc().UnixMilli()

	snapshot := common.Snapshot{
		Timestamp: timestamp,
		Readings:  make(common.Readings, len(p.entries)),
	}
	for i, entry := range p.entries {
		snapshot.Readings[common.SensorType(entry.config.Name)] = p.handleResult(ctx, timestamp, entry, results[i])
	}

	return snapshot
}

func (p *sensorPoller) readAll(ctx context.Context) []readResult {
	results := make([]readResult, len(p.entries))

	var wg sync.WaitGroup
	wg.Add(len(p.entries))
	for i, entry := range p.entries {
		go func(idx int, driver sensors.Driver) {
			defer wg.Done()
			defer func() {
				r := recover()
				if r != nil {
					log.Error("sensor driver panicked", "sensor", p.entries[idx].config.Name, "panic", r)
					results[idx] = readResult{err: fmt.Errorf("%w: %v", errDriverPanic, r)}
				}
			}()

			if check.IfNil(driver) {
				results[idx] = readResult{err: errNilDriver}
				return
			}

			data, err := driver.ReadData(ctx)
			results[idx] = readResult{data: data, err: err}
		}(i, entry.driver)
	}
	wg.Wait()

	return results
}

func (p *sensorPoller) handleResult(
	ctx context.Context,
	timestamp int64,
	entry *sensorEntry,
	result readResult,
) map[common.MetricType]*float64 {
	sensor := common.SensorType(entry.config.Name)

	switch {
	case result.err != nil:
		log.Warn("sensor read failed", "sensor", sensor, "error", result.err)
		p.publishStatus(timestamp, sensor, common.StatusWarning, StatusReadErrorPrefix+result.err.Error())
		if p.fallbackToMock {
			return fill(entry.metrics, p.fallbackData(ctx, entry))
		}
		return fill(entry.metrics, nil)
	case entry.isMock && len(result.data) == 0:
		p.publishStatus(timestamp, sensor, common.StatusWarning, StatusMockNoData)
		return fill(entry.metrics, nil)
	default:
		p.publishStatus(timestamp, sensor, common.StatusInfo, StatusOK)
		return fill(entry.metrics, result.data)
	}
}

func (p *sensorPoller) fallbackData(ctx context.Context, entry *sensorEntry) map[common.MetricType]*float64 {
	if entry.isMock {
		return nil
	}
	if check.IfNil(entry.fallback) {
		entry.fallback = p.factory.CreateMock(entry.config)
	}

	data, err := entry.fallback.ReadData(ctx)
	if err != nil {
		log.Debug("fallback driver failed", "sensor", entry.config.Name, "error", err)
		return nil
	}

	return data
}

func fill(metrics []common.MetricType, data map[common.MetricType]*float64) map[common.MetricType]*float64 {
	values := make(map[common.MetricType]*float64, len(metrics))
	for _, metric := range metrics {
		value := data[metric]
		if value != nil {
			value = common.Float(*value)
		}
		values[metric] = value
	}

	return values
}

// emptySnapshot carries no readings so the consumers skip it
func (p *sensorPoller) emptySnapshot() common.Snapshot {
	return common.Snapshot{
		Timestamp: p.timeFunc().UnixMilli(),
		Readings:  make(common.Readings),
	}
}

func (p *sensorPoller) publishStatus(timestamp int64, sensor common.SensorType, level common.StatusLevel, text string) {
	p.publisher.Publish(common.Event{
		Kind:      common.EventStatus,
		Timestamp: timestamp,
		Status: &common.StatusMessage{
			Timestamp: timestamp,
			Sensor:    sensor,
			Level:     level,
			Text:      text,
		},
	})
}

// initDrivers must be called with tickMut held or before the poller is shared
func (p *sensorPoller) initDrivers() {
	for _, entry := range p.entries {
		entry.driver, entry.isMock = p.createDriver(entry.config)
	}
}

func (p *sensorPoller) createDriver(cfg config.SensorConfig) (sensors.Driver, bool) {
	if p.mockMode {
		return p.factory.CreateMock(cfg), true
	}

	driver, err := p.factory.Create(cfg, false)
	if err == nil {
		return driver, false
	}

	log.Warn("sensor hardware unavailable, using simulated data", "sensor", cfg.Name, "error", err)
	if _, found := p.warned[cfg.Name]; !found {
		p.warned[cfg.Name] = struct{}{}
		p.publishStatus(p.timeFunc().UnixMilli(), common.SensorType(cfg.Name), common.StatusWarning, StatusHardwarePrefix+err.Error())
	}

	return p.factory.CreateMock(cfg), true
}

func (p *sensorPoller) closeDrivers() {
	for _, entry := range p.entries {
		for _, driver := range []sensors.Driver{entry.driver, entry.fallback} {
			if check.IfNil(driver) {
				continue
			}

			err := driver.Close()
			if err != nil {
				log.Warn("error closing sensor driver", "sensor", entry.config.Name, "error", err)
			}
		}
		entry.driver = nil
		entry.fallback = nil
	}
}

// SetInterval changes the sampling interval. It takes effect on the next tick. Values below MinInterval are raised.
func (p *sensorPoller) SetInterval(interval time.Duration) {
	if interval < MinInterval {
		interval = MinInterval
	}
	if interval > MaxInterval {
		interval = MaxInterval
	}

	previous := p.interval.Swap(int64(interval))
	log.Debug("sampling interval set", "interval", interval)
	if previous == int64(interval) {
		return
	}

	select {
	case p.intervalChange <- struct{}{}:
	default:
	}
}

// IntervalChanged returns a channel signalled after the sampling interval changes
func (p *sensorPoller) IntervalChanged() <-chan struct{} {
	return p.intervalChange
}

// Interval returns the current sampling interval
func (p *sensorPoller) Interval() time.Duration {
	return time.Duration(p.interval.Load())
}

// SetMockMode switches between mock and real drivers. On change the current drivers are closed,
// after any in-flight tick, and re-created.
func (p *sensorPoller) SetMockMode(mock bool) {
	p.tickMut.Lock()
	defer p.tickMut.Unlock()

	if p.closed || p.mockMode == mock {
		return
	}

	log.Info("switching sensor mode", "mock", mock)
	p.closeDrivers()
	p.mockMode = mock
	p.initDrivers()
}

// MockMode returns true when the poller uses mock drivers
func (p *sensorPoller) MockMode() bool {
	p.tickMut.Lock()
	defer p.tickMut.Unlock()

	return p.mockMode
}

// Close waits for an in-flight tick and closes all drivers
func (p *sensorPoller) Close() error {
	p.tickMut.Lock()
	defer p.tickMut.Unlock()

	if p.closed {
		return nil
	}

	p.closeDrivers()
	p.closed = true

	return nil
}

// IsInterfaceNil returns true if the value under the interface is nil
func (p *sensorPoller) IsInterfaceNil() bool {
	return p == nil
}

package poller

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gr4ytips/anavi-monitoring/services/monitor/common"
	"github.com/gr4ytips/anavi-monitoring/services/monitor/config"
	"github.com/gr4ytips/anavi-monitoring/services/monitor/sensors"
	"github.com/gr4ytips/anavi-monitoring/services/monitor/testsCommon"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type driverFactoryStub struct {
	CreateHandler     func(cfg config.SensorConfig, mock bool) (sensors.Driver, error)
	CreateMockHandler func(cfg config.SensorConfig) sensors.Driver
}

func (stub *driverFactoryStub) Create(cfg config.SensorConfig, mock bool) (sensors.Driver, error) {
	if stub.CreateHandler != nil {
		return stub.CreateHandler(cfg, mock)
	}

	return &testsCommon.DriverStub{}, nil
}

func (stub *driverFactoryStub) CreateMock(cfg config.SensorConfig) sensors.Driver {
	if stub.CreateMockHandler != nil {
		return stub.CreateMockHandler(cfg)
	}

	return sensors.NewMockDriver(cfg.MetricsOf(), 1)
}

func (stub *driverFactoryStub) IsInterfaceNil() bool {
	return stub == nil
}

var testSensors = []config.SensorConfig{
	{Name: "HTU21D", Driver: config.DriverHTU21D, Enabled: true},
	{Name: "BMP180", Driver: config.DriverBMP180, Enabled: true},
	{Name: "BH1750", Driver: config.DriverBH1750, Enabled: false},
}

func fixedTime() time.Time {
	return time.UnixMilli(1700000000000)
}

func createMockArgs() ArgsSensorPoller {
	return ArgsSensorPoller{
		Sensors:   testSensors,
		Polling:   config.PollingConfig{IntervalInMilliseconds: 1000},
		Factory:   &driverFactoryStub{},
		Publisher: &testsCommon.PublisherStub{},
		TimeFunc:  fixedTime,
	}
}

func statusTexts(publisher *testsCommon.PublisherStub) map[common.SensorType][]string {
	result := make(map[common.SensorType][]string)
	for _, event := range publisher.EventsOfKind(common.EventStatus) {
		result[event.Status.Sensor] = append(result[event.Status.Sensor], event.Status.Text)
	}

	return result
}

func TestNewSensorPoller(t *testing.T) {
	t.Parallel()

	t.Run("nil factory should error", func(t *testing.T) {
		t.Parallel()

		args := createMockArgs()
		args.Factory = nil
		p, err := NewSensorPoller(args)
		assert.Nil(t, p)
		assert.Equal(t, errNilDriverFactory, err)
	})
	t.Run("nil publisher should error", func(t *testing.T) {
		t.Parallel()

		args := createMockArgs()
		args.Publisher = nil
		p, err := NewSensorPoller(args)
		assert.Nil(t, p)
		assert.Equal(t, errNilPublisher, err)
	})
	t.Run("should skip disabled sensors", func(t *testing.T) {
		t.Parallel()

		p, err := NewSensorPoller(createMockArgs())
		require.NoError(t, err)
		assert.False(t, p.IsInterfaceNil())
		assert.Len(t, p.entries, 2)
		assert.Equal(t, time.Second, p.Interval())
	})
}

func TestSensorPoller_Tick(t *testing.T) {
	t.Parallel()

	t.Run("healthy drivers should report OK", func(t *testing.T) {
		t.Parallel()

		args := createMockArgs()
		args.Factory = &driverFactoryStub{
			CreateHandler: func(cfg config.SensorConfig, mock bool) (sensors.Driver, error) {
				return &testsCommon.DriverStub{
					ReadDataHandler: func(ctx context.Context) (map[common.MetricType]*float64, error) {
						return map[common.MetricType]*float64{
							common.MetricTemperature: common.Float(21),
							common.MetricHumidity:    common.Float(40),
						}, nil
					},
				}, nil
			},
		}
		publisher := &testsCommon.PublisherStub{}
		args.Publisher = publisher

		p, _ := NewSensorPoller(args)
		snapshot := p.Tick(context.Background())

		assert.Equal(t, int64(1700000000000), snapshot.Timestamp)
		require.Len(t, snapshot.Readings, 2)
		assert.Equal(t, 21.0, *snapshot.Readings["HTU21D"][common.MetricTemperature])
		assert.Equal(t, 40.0, *snapshot.Readings["HTU21D"][common.MetricHumidity])
		assert.Equal(t, 21.0, *snapshot.Readings["BMP180"][common.MetricTemperature])
		// the driver did not provide pressure, the metric is still present
		value, found := snapshot.Readings["BMP180"][common.MetricPressure]
		assert.True(t, found)
		assert.Nil(t, value)

		texts := statusTexts(publisher)
		assert.Equal(t, []string{StatusOK}, texts["HTU21D"])
		assert.Equal(t, []string{StatusOK}, texts["BMP180"])
	})
	t.Run("failing driver should still produce a snapshot after all attempts", func(t *testing.T) {
		t.Parallel()

		const attempts = 3
		calls := atomic.Int32{}
		args := createMockArgs()
		args.Sensors = testSensors[:1]
		args.Factory = &driverFactoryStub{
			CreateHandler: func(cfg config.SensorConfig, mock bool) (sensors.Driver, error) {
				failing := &testsCommon.DriverStub{
					ReadDataHandler: func(ctx context.Context) (map[common.MetricType]*float64, error) {
						calls.Add(1)
						return nil, errors.New("remote I/O error")
					},
				}
				return sensors.NewRetryingDriver(cfg.Name, failing, attempts, 0), nil
			},
		}
		publisher := &testsCommon.PublisherStub{}
		args.Publisher = publisher

		p, _ := NewSensorPoller(args)

		var snapshot common.Snapshot
		assert.NotPanics(t, func() {
			snapshot = p.Tick(context.Background())
		})

		assert.Equal(t, int32(attempts), calls.Load())
		require.Contains(t, snapshot.Readings, common.SensorType("HTU21D"))
		assert.Len(t, snapshot.Readings["HTU21D"], 2)
		assert.Nil(t, snapshot.Readings["HTU21D"][common.MetricTemperature])
		assert.Nil(t, snapshot.Readings["HTU21D"][common.MetricHumidity])

		events := publisher.EventsOfKind(common.EventStatus)
		require.Len(t, events, 1)
		assert.Equal(t, common.StatusWarning, events[0].Status.Level)
		assert.True(t, strings.HasPrefix(events[0].Status.Text, StatusReadErrorPrefix+"remote I/O error"))
	})
	t.Run("panicking driver should be reported as a read error", func(t *testing.T) {
		t.Parallel()

		args := createMockArgs()
		args.Factory = &driverFactoryStub{
			CreateHandler: func(cfg config.SensorConfig, mock bool) (sensors.Driver, error) {
				if cfg.Name != "BMP180" {
					return &testsCommon.DriverStub{}, nil
				}
				return &testsCommon.DriverStub{
					ReadDataHandler: func(ctx context.Context) (map[common.MetricType]*float64, error) {
						var divisor int64
						return map[common.MetricType]*float64{
							common.MetricPressure: common.Float(float64(1 / divisor)),
						}, nil
					},
				}, nil
			},
		}
		publisher := &testsCommon.PublisherStub{}
		args.Publisher = publisher

		p, _ := NewSensorPoller(args)

		var snapshot common.Snapshot
		assert.NotPanics(t, func() {
			snapshot = p.Tick(context.Background())
		})

		require.Contains(t, snapshot.Readings, common.SensorType("BMP180"))
		assert.Nil(t, snapshot.Readings["BMP180"][common.MetricPressure])
		texts := statusTexts(publisher)
		require.Len(t, texts["BMP180"], 1)
		assert.True(t, strings.HasPrefix(texts["BMP180"][0], StatusReadErrorPrefix+errDriverPanic.Error()))
		assert.Equal(t, []string{StatusOK}, texts["HTU21D"])
	})
	t.Run("failing driver with fallback should use mock values", func(t *testing.T) {
		t.Parallel()

		args := createMockArgs()
		args.Polling.FallbackToMock = true
		args.Factory = &driverFactoryStub{
			CreateHandler: func(cfg config.SensorConfig, mock bool) (sensors.Driver, error) {
				return &testsCommon.DriverStub{
					ReadDataHandler: func(ctx context.Context) (map[common.MetricType]*float64, error) {
						return nil, errors.New("nack")
					},
				}, nil
			},
		}

		p, _ := NewSensorPoller(args)
		snapshot := p.Tick(context.Background())

		assert.NotNil(t, snapshot.Readings["HTU21D"][common.MetricTemperature])
		assert.NotNil(t, snapshot.Readings["BMP180"][common.MetricPressure])
	})
	t.Run("mock driver without data should warn", func(t *testing.T) {
		t.Parallel()

		args := createMockArgs()
		args.Polling.MockMode = true
		args.Factory = &driverFactoryStub{
			CreateMockHandler: func(cfg config.SensorConfig) sensors.Driver {
				return sensors.NewMockDriver(nil, 1)
			},
		}
		publisher := &testsCommon.PublisherStub{}
		args.Publisher = publisher

		p, _ := NewSensorPoller(args)
		snapshot := p.Tick(context.Background())

		assert.Nil(t, snapshot.Readings["HTU21D"][common.MetricTemperature])
		texts := statusTexts(publisher)
		assert.Equal(t, []string{StatusMockNoData}, texts["HTU21D"])
		assert.Equal(t, []string{StatusMockNoData}, texts["BMP180"])
	})
	t.Run("unavailable hardware should fall back to mock with a single warning", func(t *testing.T) {
		t.Parallel()

		args := createMockArgs()
		args.Sensors = testSensors[:1]
		args.Factory = &driverFactoryStub{
			CreateHandler: func(cfg config.SensorConfig, mock bool) (sensors.Driver, error) {
				return nil, sensors.ErrI2CNotSupported
			},
		}
		publisher := &testsCommon.PublisherStub{}
		args.Publisher = publisher

		p, _ := NewSensorPoller(args)
		snapshot := p.Tick(context.Background())
		assert.NotNil(t, snapshot.Readings["HTU21D"][common.MetricTemperature])

		p.SetMockMode(true)
		p.SetMockMode(false)
		_ = p.Tick(context.Background())

		warnings := 0
		for _, event := range publisher.EventsOfKind(common.EventStatus) {
			if strings.HasPrefix(event.Status.Text, StatusHardwarePrefix) {
				warnings++
				assert.Equal(t, common.StatusWarning, event.Status.Level)
			}
		}
		assert.Equal(t, 1, warnings)
		assert.Equal(t, []string{StatusHardwarePrefix + sensors.ErrI2CNotSupported.Error(), StatusOK, StatusOK}, statusTexts(publisher)["HTU21D"])
	})
}

func TestSensorPoller_SetInterval(t *testing.T) {
	t.Parallel()

	p, _ := NewSensorPoller(createMockArgs())

	p.SetInterval(250 * time.Millisecond)
	assert.Equal(t, 250*time.Millisecond, p.Interval())

	p.SetInterval(time.Millisecond)
	assert.Equal(t, MinInterval, p.Interval())

	p.SetInterval(time.Duration(1<<62))
	assert.Equal(t, MaxInterval, p.Interval())

	// the pending signal coalesces
	select {
	case <-p.IntervalChanged():
	default:
		require.Fail(t, "interval change was not signalled")
	}
	p.SetInterval(MaxInterval)
	select {
	case <-p.IntervalChanged():
		require.Fail(t, "unchanged interval should not be signalled")
	default:
	}
}

func TestSensorPoller_SetMockMode(t *testing.T) {
	t.Parallel()

	closed := atomic.Int32{}
	created := atomic.Int32{}
	args := createMockArgs()
	args.Factory = &driverFactoryStub{
		CreateHandler: func(cfg config.SensorConfig, mock bool) (sensors.Driver, error) {
			created.Add(1)
			return &testsCommon.DriverStub{
				CloseHandler: func() error {
					closed.Add(1)
					return nil
				},
			}, nil
		},
	}

	p, _ := NewSensorPoller(args)
	assert.Equal(t, int32(2), created.Load())
	assert.False(t, p.MockMode())

	p.SetMockMode(false)
	assert.Equal(t, int32(0), closed.Load())

	p.SetMockMode(true)
	assert.True(t, p.MockMode())
	assert.Equal(t, int32(2), closed.Load())

	p.SetMockMode(false)
	assert.Equal(t, int32(4), created.Load())
}

func TestSensorPoller_Close(t *testing.T) {
	t.Parallel()

	t.Run("should wait for the in-flight tick", func(t *testing.T) {
		t.Parallel()

		readStarted := make(chan struct{})
		releaseRead := make(chan struct{})
		readFinished := atomic.Bool{}
		closedDuringRead := atomic.Bool{}

		args := createMockArgs()
		args.Sensors = testSensors[:1]
		args.Factory = &driverFactoryStub{
			CreateHandler: func(cfg config.SensorConfig, mock bool) (sensors.Driver, error) {
				return &testsCommon.DriverStub{
					ReadDataHandler: func(ctx context.Context) (map[common.MetricType]*float64, error) {
						close(readStarted)
						<-releaseRead
						readFinished.Store(true)
						return nil, nil
					},
					CloseHandler: func() error {
						closedDuringRead.Store(!readFinished.Load())
						return nil
					},
				}, nil
			},
		}

		p, _ := NewSensorPoller(args)
		go p.Tick(context.Background())
		<-readStarted

		closeDone := make(chan struct{})
		go func() {
			_ = p.Close()
			close(closeDone)
		}()

		select {
		case <-closeDone:
			require.Fail(t, "close returned during an in-flight tick")
		case <-time.After(50 * time.Millisecond):
		}

		close(releaseRead)
		select {
		case <-closeDone:
		case <-time.After(time.Second):
			require.Fail(t, "close did not return")
		}
		assert.False(t, closedDuringRead.Load())
	})
	t.Run("tick after close should return an empty snapshot", func(t *testing.T) {
		t.Parallel()

		publisher := &testsCommon.PublisherStub{}
		args := createMockArgs()
		args.Publisher = publisher
		p, _ := NewSensorPoller(args)
		require.NoError(t, p.Close())
		require.NoError(t, p.Close())

		snapshot := p.Tick(context.Background())
		assert.Equal(t, fixedTime().UnixMilli(), snapshot.Timestamp)
		assert.NotNil(t, snapshot.Readings)
		assert.Empty(t, snapshot.Readings)
		assert.Empty(t, publisher.EventsOfKind(common.EventStatus))
	})
}

package sensors

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gr4ytips/anavi-monitoring/services/monitor/common"
	"github.com/gr4ytips/anavi-monitoring/services/monitor/config"
	"github.com/gr4ytips/anavi-monitoring/services/monitor/testsCommon"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockDriver_ReadData(t *testing.T) {
	t.Parallel()

	t.Run("values should stay in range", func(t *testing.T) {
		t.Parallel()

		driver := NewMockDriver([]common.MetricType{common.MetricTemperature, common.MetricLight, "wind"}, 42)
		for i := 0; i < 1000; i++ {
			data, err := driver.ReadData(context.Background())
			require.NoError(t, err)
			require.Len(t, data, 3)

			assert.GreaterOrEqual(t, *data[common.MetricTemperature], 15.0)
			assert.LessOrEqual(t, *data[common.MetricTemperature], 35.0)
			assert.GreaterOrEqual(t, *data[common.MetricLight], 0.0)
			assert.LessOrEqual(t, *data["wind"], 100.0)
		}
	})
	t.Run("same seed should produce the same walk", func(t *testing.T) {
		t.Parallel()

		first := NewMockDriver([]common.MetricType{common.MetricPressure}, 7)
		second := NewMockDriver([]common.MetricType{common.MetricPressure}, 7)
		for i := 0; i < 10; i++ {
			a, _ := first.ReadData(context.Background())
			b, _ := second.ReadData(context.Background())
			assert.Equal(t, *a[common.MetricPressure], *b[common.MetricPressure])
		}
	})
	t.Run("no metrics should return empty readings", func(t *testing.T) {
		t.Parallel()

		driver := NewMockDriver(nil, 1)
		data, err := driver.ReadData(context.Background())
		require.NoError(t, err)
		assert.Empty(t, data)
	})
	t.Run("closed driver should error", func(t *testing.T) {
		t.Parallel()

		driver := NewMockDriver([]common.MetricType{common.MetricHumidity}, 1)
		require.NoError(t, driver.Close())

		_, err := driver.ReadData(context.Background())
		assert.Equal(t, ErrDriverClosed, err)
	})
}

func TestRemoteDriver_ReadData(t *testing.T) {
	t.Parallel()

	successServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data": {"temp": 21.5, "humidity": "40.25", "state": "on"}}`))
	}))
	defer successServer.Close()

	failingServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer failingServer.Close()

	metrics := []config.RemoteMetricConfig{
		{Name: "temperature", Path: "data.temp"},
		{Name: "humidity", Path: "data.humidity"},
		{Name: "state", Path: "data.state"},
		{Name: "light", Path: "data.lux"},
	}

	t.Run("should extract every path", func(t *testing.T) {
		driver := NewRemoteDriver(successServer.URL, metrics, time.Second)
		defer func() {
			_ = driver.Close()
		}()

		data, err := driver.ReadData(context.Background())
		require.NoError(t, err)
		require.Len(t, data, 4)
		assert.Equal(t, 21.5, *data[common.MetricTemperature])
		assert.Equal(t, 40.25, *data[common.MetricHumidity])
		assert.Nil(t, data["state"])
		assert.Nil(t, data[common.MetricLight])
	})
	t.Run("non-2xx should error", func(t *testing.T) {
		driver := NewRemoteDriver(failingServer.URL, metrics, time.Second)

		data, err := driver.ReadData(context.Background())
		assert.Nil(t, data)
		assert.Equal(t, errStatusNotOK(http.StatusServiceUnavailable), err)
	})
	t.Run("connection refused should error", func(t *testing.T) {
		driver := NewRemoteDriver("http://localhost:59999", metrics, time.Second)

		_, err := driver.ReadData(context.Background())
		assert.Error(t, err)
	})
}

func TestRetryingDriver_ReadData(t *testing.T) {
	t.Parallel()

	t.Run("should retry until success", func(t *testing.T) {
		t.Parallel()

		calls := 0
		inner := &testsCommon.DriverStub{
			ReadDataHandler: func(ctx context.Context) (map[common.MetricType]*float64, error) {
				calls++
				if calls < 3 {
					return nil, errors.New("bus busy")
				}
				return map[common.MetricType]*float64{common.MetricLight: common.Float(5)}, nil
			},
		}

		var delays []time.Duration
		driver := NewRetryingDriver("BH1750", inner, 3, 10*time.Millisecond)
		driver.sleep = func(_ context.Context, d time.Duration) error {
			delays = append(delays, d)
			return nil
		}

		data, err := driver.ReadData(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 5.0, *data[common.MetricLight])
		assert.Equal(t, 3, calls)
		assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, delays)
	})
	t.Run("should give up after all attempts", func(t *testing.T) {
		t.Parallel()

		expectedErr := errors.New("no ack")
		calls := 0
		inner := &testsCommon.DriverStub{
			ReadDataHandler: func(ctx context.Context) (map[common.MetricType]*float64, error) {
				calls++
				return nil, expectedErr
			},
		}

		driver := NewRetryingDriver("HTU21D", inner, 4, 0)
		driver.sleep = noSleep

		data, err := driver.ReadData(context.Background())
		assert.Nil(t, data)
		assert.ErrorIs(t, err, expectedErr)
		assert.Contains(t, err.Error(), "after 4 attempts")
		assert.Equal(t, 4, calls)
	})
	t.Run("cancelled context should stop retrying", func(t *testing.T) {
		t.Parallel()

		calls := 0
		inner := &testsCommon.DriverStub{
			ReadDataHandler: func(ctx context.Context) (map[common.MetricType]*float64, error) {
				calls++
				return nil, errors.New("no ack")
			},
		}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		driver := NewRetryingDriver("HTU21D", inner, 5, time.Second)
		_, err := driver.ReadData(ctx)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})
	t.Run("close should close the inner driver", func(t *testing.T) {
		t.Parallel()

		closed := false
		inner := &testsCommon.DriverStub{
			CloseHandler: func() error {
				closed = true
				return nil
			},
		}

		driver := NewRetryingDriver("HTU21D", inner, 0, 0)
		assert.Equal(t, 1, driver.attempts)
		require.NoError(t, driver.Close())
		assert.True(t, closed)
	})
}

func TestDriverFactory_Create(t *testing.T) {
	t.Parallel()

	polling := config.PollingConfig{ReadAttempts: 2, RetryDelayInMilliseconds: 1}

	t.Run("mock mode should create mock drivers", func(t *testing.T) {
		t.Parallel()

		factory := NewDriverFactory(polling)
		factory.openI2C = func(busPath string, address uint16) (I2CDevice, error) {
			require.Fail(t, "should not open the bus in mock mode")
			return nil, nil
		}

		driver, err := factory.Create(config.SensorConfig{Name: "BMP180", Driver: config.DriverBMP180}, true)
		require.NoError(t, err)

		data, err := driver.ReadData(context.Background())
		require.NoError(t, err)
		assert.Contains(t, data, common.MetricTemperature)
		assert.Contains(t, data, common.MetricPressure)
	})
	t.Run("hardware failure should be returned", func(t *testing.T) {
		t.Parallel()

		factory := NewDriverFactory(polling)
		factory.openI2C = func(busPath string, address uint16) (I2CDevice, error) {
			return nil, ErrI2CNotSupported
		}

		driver, err := factory.Create(config.SensorConfig{Name: "HTU21D", Driver: config.DriverHTU21D}, false)
		assert.Nil(t, driver)
		assert.Equal(t, ErrI2CNotSupported, err)
	})
	t.Run("should use the default address and close the device on init error", func(t *testing.T) {
		t.Parallel()

		closed := false
		var openedAddress uint16
		factory := NewDriverFactory(polling)
		factory.openI2C = func(busPath string, address uint16) (I2CDevice, error) {
			openedAddress = address
			return &testsCommon.I2CDeviceStub{
				WriteHandler: func(buff []byte) error {
					return errors.New("nack")
				},
				CloseHandler: func() error {
					closed = true
					return nil
				},
			}, nil
		}

		_, err := factory.Create(config.SensorConfig{Name: "BH1750", Driver: config.DriverBH1750, Bus: "/dev/i2c-1"}, false)
		assert.Error(t, err)
		assert.Equal(t, uint16(0x23), openedAddress)
		assert.True(t, closed)
	})
	t.Run("hardware driver should be wrapped by the retrying driver", func(t *testing.T) {
		t.Parallel()

		factory := NewDriverFactory(polling)
		factory.openI2C = func(busPath string, address uint16) (I2CDevice, error) {
			assert.Equal(t, uint16(0x41), address)
			return &testsCommon.I2CDeviceStub{}, nil
		}

		driver, err := factory.Create(config.SensorConfig{Name: "HTU21D", Driver: config.DriverHTU21D, Address: 0x41}, false)
		require.NoError(t, err)

		retrying, ok := driver.(*retryingDriver)
		require.True(t, ok)
		assert.Equal(t, 2, retrying.attempts)
		assert.Equal(t, time.Millisecond, retrying.delay)
	})
	t.Run("unknown driver should error", func(t *testing.T) {
		t.Parallel()

		factory := NewDriverFactory(polling)
		_, err := factory.Create(config.SensorConfig{Name: "X", Driver: "dht22"}, false)
		assert.Equal(t, errUnknownDriver("dht22"), err)
	})
}

package sensors

import (
	"hash/fnv"
	"time"

	"github.com/gr4ytips/anavi-monitoring/services/monitor/config"
	logger "github.com/multiversx/mx-chain-logger-go"
)

var log = logger.GetOrCreate("sensors")

var defaultAddresses = map[string]uint16{
	config.DriverHTU21D: 0x40,
	config.DriverBMP180: 0x77,
	config.DriverBH1750: 0x23,
}

type driverFactory struct {
	readAttempts int
	retryDelay   time.Duration
	openI2C      func(busPath string, address uint16) (I2CDevice, error)
	seed         func(name string) uint64
}

// NewDriverFactory creates the factory used to build sensor drivers from their configuration.
// Hardware and remote drivers are wrapped by a retrying driver.
func NewDriverFactory(polling config.PollingConfig) *driverFactory {
	return &driverFactory{
		readAttempts: polling.ReadAttempts,
		retryDelay:   time.Duration(polling.RetryDelayInMilliseconds) * time.Millisecond,
		openI2C:      OpenI2C,
		seed:         timeSeed,
	}
}

// Create builds the driver of the given sensor. With mock set, a mock driver producing the
// sensor's metrics is returned. A hardware initialisation failure is returned to the caller.
func (f *driverFactory) Create(cfg config.SensorConfig, mock bool) (Driver, error) {
	if mock {
		return f.CreateMock(cfg), nil
	}

	var driver Driver
	switch cfg.Driver {
	case config.DriverRemote:
		driver = NewRemoteDriver(cfg.URL, cfg.Metrics, time.Duration(cfg.TimeoutInSeconds)*time.Second)
	case config.DriverHTU21D, config.DriverBMP180, config.DriverBH1750:
		hardware, err := f.createHardware(cfg)
		if err != nil {
			return nil, err
		}
		driver = hardware
	default:
		return nil, errUnknownDriver(cfg.Driver)
	}

	return NewRetryingDriver(cfg.Name, driver, f.readAttempts, f.retryDelay), nil
}

// CreateMock builds a mock driver producing the sensor's metrics
func (f *driverFactory) CreateMock(cfg config.SensorConfig) Driver {
	return NewMockDriver(cfg.MetricsOf(), f.seed(cfg.Name))
}

func (f *driverFactory) createHardware(cfg config.SensorConfig) (Driver, error) {
	address := cfg.Address
	if address == 0 {
		address = defaultAddresses[cfg.Driver]
	}

	device, err := f.openI2C(cfg.Bus, address)
	if err != nil {
		return nil, err
	}

	var driver Driver
	switch cfg.Driver {
	case config.DriverHTU21D:
		driver, err = NewHTU21D(device)
	case config.DriverBMP180:
		driver, err = NewBMP180(device, cfg.Oversampling)
	default:
		driver, err = NewBH1750(device)
	}
	if err != nil {
		_ = device.Close()
		return nil, err
	}

	log.Debug("hardware sensor initialised", "sensor", cfg.Name, "bus", cfg.Bus, "address", address)

	return driver, nil
}

// IsInterfaceNil returns true if the value under the interface is nil
func (f *driverFactory) IsInterfaceNil() bool {
	return f == nil
}

func timeSeed(name string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))

	return h.Sum64() ^ uint64(time.Now().UnixNano())
}

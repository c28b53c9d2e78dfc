package poller

import (
	"github.com/gr4ytips/anavi-monitoring/services/monitor/common"
	"github.com/gr4ytips/anavi-monitoring/services/monitor/config"
	"github.com/gr4ytips/anavi-monitoring/services/monitor/sensors"
)

// DriverFactory builds the sensor drivers
type DriverFactory interface {
	// Create returns a hardware (or remote) driver, or a mock one when mock is set.
	// Hardware initialisation failures are returned as errors.
	Create(cfg config.SensorConfig, mock bool) (sensors.Driver, error)
	CreateMock(cfg config.SensorConfig) sensors.Driver
	IsInterfaceNil() bool
}

// Publisher receives the status messages emitted on every tick
type Publisher interface {
	Publish(event common.Event)
	IsInterfaceNil() bool
}

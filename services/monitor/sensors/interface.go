package sensors

import (
	"context"

	"github.com/gr4ytips/anavi-monitoring/services/monitor/common"
)

// Driver defines the contract every sensor implementation conforms to
type Driver interface {
	// ReadData returns one value per metric of the sensor. A nil value marks a metric the sensor could not
	// provide on this read. Failures are reported through the error, never through sentinel values.
	ReadData(ctx context.Context) (map[common.MetricType]*float64, error)
	Close() error
	IsInterfaceNil() bool
}

// I2CDevice is a handle to one slave address on an I2C bus
type I2CDevice interface {
	Write(buff []byte) error
	Read(buff []byte) error
	Close() error
}

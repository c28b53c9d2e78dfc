package sensors

import (
	"context"
	"fmt"
	"time"

	"github.com/gr4ytips/anavi-monitoring/services/monitor/common"
)

const (
	bh1750PowerOn           = 0x01
	bh1750OneTimeHighRes    = 0x20
	bh1750MeasurementTime   = 180 * time.Millisecond
	bh1750MeasurementFactor = 1.2
)

type bh1750 struct {
	device I2CDevice
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewBH1750 creates an ambient light driver over the given I2C device
func NewBH1750(device I2CDevice) (*bh1750, error) {
	if device == nil {
		return nil, ErrNilI2CDevice
	}

	err := device.Write([]byte{bh1750PowerOn})
	if err != nil {
		return nil, fmt.Errorf("bh1750 power on: %w", err)
	}

	return &bh1750{
		device: device,
		sleep:  sleepContext,
	}, nil
}

// ReadData performs a one-time high resolution measurement. The sensor powers down afterwards.
func (s *bh1750) ReadData(ctx context.Context) (map[common.MetricType]*float64, error) {
	err := s.device.Write([]byte{bh1750PowerOn})
	if err != nil {
		return nil, fmt.Errorf("bh1750 power on: %w", err)
	}

	err = s.device.Write([]byte{bh1750OneTimeHighRes})
	if err != nil {
		return nil, fmt.Errorf("bh1750 measurement: %w", err)
	}

	err = s.sleep(ctx, bh1750MeasurementTime)
	if err != nil {
		return nil, err
	}

	buff := make([]byte, 2)
	err = s.device.Read(buff)
	if err != nil {
		return nil, fmt.Errorf("bh1750 read: %w", err)
	}

	raw := uint16(buff[0])<<8 | uint16(buff[1])

	return map[common.MetricType]*float64{
		common.MetricLight: common.Float(float64(raw) / bh1750MeasurementFactor),
	}, nil
}

// Close releases the I2C device
func (s *bh1750) Close() error {
	return s.device.Close()
}

// IsInterfaceNil returns true if the value under the interface is nil
func (s *bh1750) IsInterfaceNil() bool {
	return s == nil
}

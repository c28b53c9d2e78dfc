package sensors

import (
	"context"
	"fmt"
	"time"

	"github.com/gr4ytips/anavi-monitoring/services/monitor/common"
)

const (
	htu21dTriggerTempNoHold     = 0xF3
	htu21dTriggerHumidityNoHold = 0xF5
	htu21dSoftReset             = 0xFE
	htu21dTempConversionTime    = 50 * time.Millisecond
	htu21dHumidConversionTime   = 16 * time.Millisecond
	htu21dResetTime             = 15 * time.Millisecond
	htu21dCRCPolynomial         = 0x31
)

type htu21d struct {
	device I2CDevice
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewHTU21D creates a temperature/humidity driver over the given I2C device. It soft-resets the sensor.
func NewHTU21D(device I2CDevice) (*htu21d, error) {
	if device == nil {
		return nil, ErrNilI2CDevice
	}

	sensor := &htu21d{
		device: device,
		sleep:  sleepContext,
	}

	err := device.Write([]byte{htu21dSoftReset})
	if err != nil {
		return nil, fmt.Errorf("htu21d soft reset: %w", err)
	}
	time.Sleep(htu21dResetTime)

	return sensor, nil
}

// ReadData triggers one temperature and one humidity measurement
func (s *htu21d) ReadData(ctx context.Context) (map[common.MetricType]*float64, error) {
	rawTemp, err := s.measure(ctx, htu21dTriggerTempNoHold, htu21dTempConversionTime)
	if err != nil {
		return nil, fmt.Errorf("htu21d temperature: %w", err)
	}

	rawHumidity, err := s.measure(ctx, htu21dTriggerHumidityNoHold, htu21dHumidConversionTime)
	if err != nil {
		return nil, fmt.Errorf("htu21d humidity: %w", err)
	}

	return map[common.MetricType]*float64{
		common.MetricTemperature: common.Float(htu21dTemperature(rawTemp)),
		common.MetricHumidity:    common.Float(htu21dHumidity(rawHumidity)),
	}, nil
}

func (s *htu21d) measure(ctx context.Context, command byte, conversion time.Duration) (uint16, error) {
	err := s.device.Write([]byte{command})
	if err != nil {
		return 0, err
	}

	err = s.sleep(ctx, conversion)
	if err != nil {
		return 0, err
	}

	buff := make([]byte, 3)
	err = s.device.Read(buff)
	if err != nil {
		return 0, err
	}

	crc := crc8(buff[:2])
	if crc != buff[2] {
		return 0, errCRCMismatch{expected: crc, actual: buff[2]}
	}

	raw := uint16(buff[0])<<8 | uint16(buff[1])
	// the two least significant bits are status bits
	raw &^= 0x0003

	return raw, nil
}

func htu21dTemperature(raw uint16) float64 {
	return -46.85 + 175.72*float64(raw)/65536
}

func htu21dHumidity(raw uint16) float64 {
	rh := -6 + 125*float64(raw)/65536
	return min(max(rh, 0), 100)
}

func crc8(data []byte) byte {
	var crc byte
	for _, b := range data {
		crc ^= b
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ htu21dCRCPolynomial
			} else {
				crc <<= 1
			}
		}
	}

	return crc
}

// Close releases the I2C device
func (s *htu21d) Close() error {
	return s.device.Close()
}

// IsInterfaceNil returns true if the value under the interface is nil
func (s *htu21d) IsInterfaceNil() bool {
	return s == nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

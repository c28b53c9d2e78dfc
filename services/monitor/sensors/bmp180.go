package sensors

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/gr4ytips/anavi-monitoring/services/monitor/common"
)

const (
	bmp180RegCalibration = 0xAA
	bmp180RegControl     = 0xF4
	bmp180RegData        = 0xF6
	bmp180CmdTemperature = 0x2E
	bmp180CmdPressure    = 0x34
	bmp180TempConversion = 5 * time.Millisecond
	bmp180CalibrationLen = 22
	bmp180MaxOss         = 3
)

var bmp180PressureConversion = [bmp180MaxOss + 1]time.Duration{
	5 * time.Millisecond,
	8 * time.Millisecond,
	14 * time.Millisecond,
	26 * time.Millisecond,
}

type bmp180Calibration struct {
	AC1, AC2, AC3 int16
	AC4, AC5, AC6 uint16
	B1, B2        int16
	MB, MC, MD    int16
}

type bmp180 struct {
	device I2CDevice
	oss    uint8
	calib  bmp180Calibration
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewBMP180 creates a temperature/pressure driver over the given I2C device and loads the calibration table
func NewBMP180(device I2CDevice, oversampling uint8) (*bmp180, error) {
	if device == nil {
		return nil, ErrNilI2CDevice
	}
	if oversampling > bmp180MaxOss {
		return nil, fmt.Errorf("%w: %d", ErrInvalidOversampling, oversampling)
	}

	sensor := &bmp180{
		device: device,
		oss:    oversampling,
		sleep:  sleepContext,
	}

	buff, err := sensor.readRegister(bmp180RegCalibration, bmp180CalibrationLen)
	if err != nil {
		return nil, fmt.Errorf("bmp180 calibration: %w", err)
	}
	err = validateBMP180Calibration(buff)
	if err != nil {
		return nil, err
	}
	sensor.calib = parseBMP180Calibration(buff)

	return sensor, nil
}

// validateBMP180Calibration rejects the all-zero and all-one words an absent device answers with
func validateBMP180Calibration(buff []byte) error {
	for i := 0; i+1 < len(buff); i += 2 {
		word := binary.BigEndian.Uint16(buff[i:])
		if word == 0x0000 || word == 0xFFFF {
			return fmt.Errorf("%w: word %d is 0x%04x", ErrInvalidCalibration, i/2, word)
		}
	}

	return nil
}

func parseBMP180Calibration(buff []byte) bmp180Calibration {
	word := func(i int) uint16 {
		return binary.BigEndian.Uint16(buff[2*i:])
	}

	return bmp180Calibration{
		AC1: int16(word(0)),
		AC2: int16(word(1)),
		AC3: int16(word(2)),
		AC4: word(3),
		AC5: word(4),
		AC6: word(5),
		B1:  int16(word(6)),
		B2:  int16(word(7)),
		MB:  int16(word(8)),
		MC:  int16(word(9)),
		MD:  int16(word(10)),
	}
}

// ReadData reads the uncompensated temperature and pressure and applies the compensation
func (s *bmp180) ReadData(ctx context.Context) (map[common.MetricType]*float64, error) {
	ut, err := s.readUncompensatedTemperature(ctx)
	if err != nil {
		return nil, fmt.Errorf("bmp180 temperature: %w", err)
	}

	up, err := s.readUncompensatedPressure(ctx)
	if err != nil {
		return nil, fmt.Errorf("bmp180 pressure: %w", err)
	}

	temperature, pressure, err := s.calib.compensate(ut, up, s.oss)
	if err != nil {
		return nil, fmt.Errorf("bmp180 compensation: %w", err)
	}

	return map[common.MetricType]*float64{
		common.MetricTemperature: common.Float(float64(temperature) / 10),
		common.MetricPressure:    common.Float(float64(pressure) / 100),
	}, nil
}

func (s *bmp180) readUncompensatedTemperature(ctx context.Context) (int64, error) {
	err := s.device.Write([]byte{bmp180RegControl, bmp180CmdTemperature})
	if err != nil {
		return 0, err
	}

	err = s.sleep(ctx, bmp180TempConversion)
	if err != nil {
		return 0, err
	}

	buff, err := s.readRegister(bmp180RegData, 2)
	if err != nil {
		return 0, err
	}

	return int64(buff[0])<<8 | int64(buff[1]), nil
}

func (s *bmp180) readUncompensatedPressure(ctx context.Context) (int64, error) {
	err := s.device.Write([]byte{bmp180RegControl, bmp180CmdPressure + s.oss<<6})
	if err != nil {
		return 0, err
	}

	err = s.sleep(ctx, bmp180PressureConversion[s.oss])
	if err != nil {
		return 0, err
	}

	buff, err := s.readRegister(bmp180RegData, 3)
	if err != nil {
		return 0, err
	}

	raw := int64(buff[0])<<16 | int64(buff[1])<<8 | int64(buff[2])
	return raw >> (8 - s.oss), nil
}

func (s *bmp180) readRegister(register byte, length int) ([]byte, error) {
	err := s.device.Write([]byte{register})
	if err != nil {
		return nil, err
	}

	buff := make([]byte, length)
	err = s.device.Read(buff)
	if err != nil {
		return nil, err
	}

	return buff, nil
}

// compensate returns the temperature in 0.1 °C and the pressure in Pa
func (c bmp180Calibration) compensate(ut int64, up int64, oss uint8) (int64, int64, error) {
	x1 := (ut - int64(c.AC6)) * int64(c.AC5) >> 15
	if x1+int64(c.MD) == 0 {
		return 0, 0, ErrInvalidCalibration
	}
	x2 := (int64(c.MC) << 11) / (x1 + int64(c.MD))
	b5 := x1 + x2
	temperature := (b5 + 8) >> 4

	b6 := b5 - 4000
	x1 = (int64(c.B2) * (b6 * b6 >> 12)) >> 11
	x2 = int64(c.AC2) * b6 >> 11
	x3 := x1 + x2
	b3 := ((int64(c.AC1)*4+x3)<<oss + 2) / 4
	x1 = int64(c.AC3) * b6 >> 13
	x2 = (int64(c.B1) * (b6 * b6 >> 12)) >> 16
	x3 = (x1 + x2 + 2) >> 2
	b4 := int64(c.AC4) * (x3 + 32768) >> 15
	if b4 == 0 {
		return 0, 0, ErrInvalidCalibration
	}
	b7 := (up - b3) * (50000 >> oss)

	var p int64
	if b7 < 0x80000000 {
		p = b7 * 2 / b4
	} else {
		p = b7 / b4 * 2
	}

	x1 = (p >> 8) * (p >> 8)
	x1 = (x1 * 3038) >> 16
	x2 = (-7357 * p) >> 16
	pressure := p + (x1+x2+3791)>>4

	return temperature, pressure, nil
}

// Close releases the I2C device
func (s *bmp180) Close() error {
	return s.device.Close()
}

// IsInterfaceNil returns true if the value under the interface is nil
func (s *bmp180) IsInterfaceNil() bool {
	return s == nil
}

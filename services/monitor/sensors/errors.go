package sensors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrI2CNotSupported signals that the platform has no I2C device interface
var ErrI2CNotSupported = errors.New("i2c is not supported on this platform")

// ErrDriverClosed signals a read on a closed driver
var ErrDriverClosed = errors.New("driver is closed")

// ErrNilI2CDevice signals that a nil I2C device was provided
var ErrNilI2CDevice = errors.New("nil i2c device")

// ErrInvalidOversampling signals an oversampling setting outside 0..3
var ErrInvalidOversampling = errors.New("invalid oversampling setting")

// ErrInvalidCalibration signals calibration data that cannot be used for compensation
var ErrInvalidCalibration = errors.New("invalid calibration data")

type errStatusNotOK int

func (e errStatusNotOK) Error() string {
	return "non-2xx HTTP status code: " + http.StatusText(int(e))
}

type errCRCMismatch struct {
	expected byte
	actual   byte
}

func (e errCRCMismatch) Error() string {
	return fmt.Sprintf("crc mismatch: expected 0x%02x, got 0x%02x", e.expected, e.actual)
}

type errUnknownDriver string

func (e errUnknownDriver) Error() string {
	return "unknown sensor driver: " + string(e)
}

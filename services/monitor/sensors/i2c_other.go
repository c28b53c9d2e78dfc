//go:build !linux

package sensors

// OpenI2C is not available outside linux
func OpenI2C(_ string, _ uint16) (I2CDevice, error) {
	return nil, ErrI2CNotSupported
}

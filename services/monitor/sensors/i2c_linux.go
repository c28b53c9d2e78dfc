//go:build linux

package sensors

import (
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// i2cSlave is the I2C_SLAVE request of linux/i2c-dev.h
const i2cSlave = 0x0703

type linuxI2CDevice struct {
	mut  sync.Mutex
	file *os.File
}

// OpenI2C opens the bus device file and binds it to the given slave address
func OpenI2C(busPath string, address uint16) (I2CDevice, error) {
	file, err := os.OpenFile(busPath, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open i2c bus %s: %w", busPath, err)
	}

	err = unix.IoctlSetInt(int(file.Fd()), i2cSlave, int(address))
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to select i2c address 0x%02x on %s: %w", address, busPath, err)
	}

	return &linuxI2CDevice{file: file}, nil
}

// Write sends the bytes to the device
func (d *linuxI2CDevice) Write(buff []byte) error {
	d.mut.Lock()
	defer d.mut.Unlock()

	if d.file == nil {
		return ErrDriverClosed
	}

	_, err := d.file.Write(buff)
	return err
}

// Read fills the buffer with bytes from the device
func (d *linuxI2CDevice) Read(buff []byte) error {
	d.mut.Lock()
	defer d.mut.Unlock()

	if d.file == nil {
		return ErrDriverClosed
	}

	_, err := io.ReadFull(d.file, buff)
	return err
}

// Close releases the bus file
func (d *linuxI2CDevice) Close() error {
	d.mut.Lock()
	defer d.mut.Unlock()

	if d.file == nil {
		return nil
	}

	err := d.file.Close()
	d.file = nil
	return err
}

package testsCommon

// I2CDeviceStub -
type I2CDeviceStub struct {
	WriteHandler func(buff []byte) error
	ReadHandler  func(buff []byte) error
	CloseHandler func() error
}

// Write -
func (stub *I2CDeviceStub) Write(buff []byte) error {
	if stub.WriteHandler != nil {
		return stub.WriteHandler(buff)
	}

	return nil
}

// Read -
func (stub *I2CDeviceStub) Read(buff []byte) error {
	if stub.ReadHandler != nil {
		return stub.ReadHandler(buff)
	}

	return nil
}

// Close -
func (stub *I2CDeviceStub) Close() error {
	if stub.CloseHandler != nil {
		return stub.CloseHandler()
	}

	return nil
}

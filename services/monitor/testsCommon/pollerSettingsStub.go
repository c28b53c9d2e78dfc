package testsCommon

import (
	"sync"
	"time"
)

// PollerSettingsStub -
type PollerSettingsStub struct {
	mut      sync.Mutex
	interval time.Duration
	mockMode bool
}

// Interval -
func (stub *PollerSettingsStub) Interval() time.Duration {
	stub.mut.Lock()
	defer stub.mut.Unlock()

	return stub.interval
}

// SetInterval -
func (stub *PollerSettingsStub) SetInterval(interval time.Duration) {
	stub.mut.Lock()
	stub.interval = interval
	stub.mut.Unlock()
}

// MockMode -
func (stub *PollerSettingsStub) MockMode() bool {
	stub.mut.Lock()
	defer stub.mut.Unlock()

	return stub.mockMode
}

// SetMockMode -
func (stub *PollerSettingsStub) SetMockMode(mock bool) {
	stub.mut.Lock()
	stub.mockMode = mock
	stub.mut.Unlock()
}

// IsInterfaceNil -
func (stub *PollerSettingsStub) IsInterfaceNil() bool {
	return stub == nil
}

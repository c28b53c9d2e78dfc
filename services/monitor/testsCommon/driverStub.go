package testsCommon

import (
	"context"

	"github.com/gr4ytips/anavi-monitoring/services/monitor/common"
)

// DriverStub -
type DriverStub struct {
	ReadDataHandler func(ctx context.Context) (map[common.MetricType]*float64, error)
	CloseHandler    func() error
}

// ReadData -
func (stub *DriverStub) ReadData(ctx context.Context) (map[common.MetricType]*float64, error) {
	if stub.ReadDataHandler != nil {
		return stub.ReadDataHandler(ctx)
	}

	return make(map[common.MetricType]*float64), nil
}

// Close -
func (stub *DriverStub) Close() error {
	if stub.CloseHandler != nil {
		return stub.CloseHandler()
	}

	return nil
}

// IsInterfaceNil -
func (stub *DriverStub) IsInterfaceNil() bool {
	return stub == nil
}

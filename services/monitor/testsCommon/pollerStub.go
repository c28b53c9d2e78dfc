package testsCommon

import (
	"context"

	"github.com/gr4ytips/anavi-monitoring/services/monitor/common"
)

// PollerStub -
type PollerStub struct {
	TickHandler func(ctx context.Context) common.Snapshot
}

// Tick -
func (stub *PollerStub) Tick(ctx context.Context) common.Snapshot {
	if stub.TickHandler != nil {
		return stub.TickHandler(ctx)
	}

	return common.Snapshot{}
}

// IsInterfaceNil -
func (stub *PollerStub) IsInterfaceNil() bool {
	return stub == nil
}

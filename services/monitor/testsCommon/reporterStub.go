package testsCommon

import (
	"context"

	"github.com/gr4ytips/anavi-monitoring/services/monitor/common"
)

// ReporterStub -
type ReporterStub struct {
	ReportHandler func(ctx context.Context, snapshot common.Snapshot, states common.AlertStates) error
}

// Report -
func (stub *ReporterStub) Report(ctx context.Context, snapshot common.Snapshot, states common.AlertStates) error {
	if stub.ReportHandler != nil {
		return stub.ReportHandler(ctx, snapshot, states)
	}

	return nil
}

// IsInterfaceNil -
func (stub *ReporterStub) IsInterfaceNil() bool {
	return stub == nil
}

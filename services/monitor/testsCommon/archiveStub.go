package testsCommon

import (
	"context"

	"github.com/gr4ytips/anavi-monitoring/services/monitor/common"
)

// ArchiveStub -
type ArchiveStub struct {
	QueryRangeHandler   func(ctx context.Context, from int64, to int64) ([]common.Snapshot, error)
	AlertHistoryHandler func(ctx context.Context, from int64, to int64) ([]common.AlertRecord, error)
}

// QueryRange -
func (stub *ArchiveStub) QueryRange(ctx context.Context, from int64, to int64) ([]common.Snapshot, error) {
	if stub.QueryRangeHandler != nil {
		return stub.QueryRangeHandler(ctx, from, to)
	}

	return make([]common.Snapshot, 0), nil
}

// AlertHistory -
func (stub *ArchiveStub) AlertHistory(ctx context.Context, from int64, to int64) ([]common.AlertRecord, error) {
	if stub.AlertHistoryHandler != nil {
		return stub.AlertHistoryHandler(ctx, from, to)
	}

	return make([]common.AlertRecord, 0), nil
}

// IsInterfaceNil -
func (stub *ArchiveStub) IsInterfaceNil() bool {
	return stub == nil
}

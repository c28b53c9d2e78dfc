package testsCommon

import "github.com/gr4ytips/anavi-monitoring/services/monitor/common"

// EvaluatorStub -
type EvaluatorStub struct {
	ProcessHandler func(snapshot common.Snapshot) common.AlertStates
}

// Process -
func (stub *EvaluatorStub) Process(snapshot common.Snapshot) common.AlertStates {
	if stub.ProcessHandler != nil {
		return stub.ProcessHandler(snapshot)
	}

	return make(common.AlertStates)
}

// IsInterfaceNil -
func (stub *EvaluatorStub) IsInterfaceNil() bool {
	return stub == nil
}

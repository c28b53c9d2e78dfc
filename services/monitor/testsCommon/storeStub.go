package testsCommon

import "github.com/gr4ytips/anavi-monitoring/services/monitor/common"

// StoreStub -
type StoreStub struct {
	AddHandler func(snapshot common.Snapshot) error
	LenHandler func() int
}

// Add -
func (stub *StoreStub) Add(snapshot common.Snapshot) error {
	if stub.AddHandler != nil {
		return stub.AddHandler(snapshot)
	}

	return nil
}

// Len -
func (stub *StoreStub) Len() int {
	if stub.LenHandler != nil {
		return stub.LenHandler()
	}

	return 0
}

// IsInterfaceNil -
func (stub *StoreStub) IsInterfaceNil() bool {
	return stub == nil
}

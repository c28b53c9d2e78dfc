package testsCommon

import "time"

// TickObserverStub -
type TickObserverStub struct {
	ObserveTickDurationHandler func(duration time.Duration)
	SetHistoryLengthHandler    func(length int)
}

// ObserveTickDuration -
func (stub *TickObserverStub) ObserveTickDuration(duration time.Duration) {
	if stub.ObserveTickDurationHandler != nil {
		stub.ObserveTickDurationHandler(duration)
	}
}

// SetHistoryLength -
func (stub *TickObserverStub) SetHistoryLength(length int) {
	if stub.SetHistoryLengthHandler != nil {
		stub.SetHistoryLengthHandler(length)
	}
}

// IsInterfaceNil -
func (stub *TickObserverStub) IsInterfaceNil() bool {
	return stub == nil
}

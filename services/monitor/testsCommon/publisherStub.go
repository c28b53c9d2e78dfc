package testsCommon

import (
	"sync"

	"github.com/gr4ytips/anavi-monitoring/services/monitor/common"
)

// PublisherStub -
type PublisherStub struct {
	mut            sync.Mutex
	events         []common.Event
	PublishHandler func(event common.Event)
}

// Publish -
func (stub *PublisherStub) Publish(event common.Event) {
	stub.mut.Lock()
	stub.events = append(stub.events, event)
	stub.mut.Unlock()

	if stub.PublishHandler != nil {
		stub.PublishHandler(event)
	}
}

// Events returns a copy of all published events
func (stub *PublisherStub) Events() []common.Event {
	stub.mut.Lock()
	defer stub.mut.Unlock()

	return append([]common.Event(nil), stub.events...)
}

// EventsOfKind returns the published events of the given kind
func (stub *PublisherStub) EventsOfKind(kind common.EventKind) []common.Event {
	result := make([]common.Event, 0)
	for _, event := range stub.Events() {
		if event.Kind == kind {
			result = append(result, event)
		}
	}

	return result
}

// Reset clears the recorded events
func (stub *PublisherStub) Reset() {
	stub.mut.Lock()
	stub.events = nil
	stub.mut.Unlock()
}

// IsInterfaceNil -
func (stub *PublisherStub) IsInterfaceNil() bool {
	return stub == nil
}

package notifier

import (
	"sync"

	"github.com/gr4ytips/anavi-monitoring/services/monitor/common"
)

type handlerEntry struct {
	id      uint64
	handler func(event common.Event)
}

type bus struct {
	mut      sync.RWMutex
	handlers []handlerEntry
	nextID   uint64
}

// NewBus creates a synchronous publish/subscribe event bus
func NewBus() *bus {
	return &bus{}
}

// Publish calls every subscribed handler, in subscription order, on the caller's goroutine
func (b *bus) Publish(event common.Event) {
	b.mut.RLock()
	handlers := make([]func(event common.Event), 0, len(b.handlers))
	for _, entry := range b.handlers {
		handlers = append(handlers, entry.handler)
	}
	b.mut.RUnlock()

	for _, handler := range handlers {
		handler(event)
	}
}

// Subscribe registers a handler and returns the function that removes it
func (b *bus) Subscribe(handler func(event common.Event)) func() {
	b.mut.Lock()
	defer b.mut.Unlock()

	b.nextID++
	id := b.nextID
	b.handlers = append(b.handlers, handlerEntry{id: id, handler: handler})

	return func() {
		b.mut.Lock()
		defer b.mut.Unlock()

		for i, entry := range b.handlers {
			if entry.id == id {
				b.handlers = append(b.handlers[:i:i], b.handlers[i+1:]...)
				return
			}
		}
	}
}

// NumSubscribers returns the number of registered handlers
func (b *bus) NumSubscribers() int {
	b.mut.RLock()
	defer b.mut.RUnlock()

	return len(b.handlers)
}

// IsInterfaceNil returns true if the value under the interface is nil
func (b *bus) IsInterfaceNil() bool {
	return b == nil
}

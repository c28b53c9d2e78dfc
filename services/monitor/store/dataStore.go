package store

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gr4ytips/anavi-monitoring/services/monitor/common"
	logger "github.com/multiversx/mx-chain-logger-go"
)

var log = logger.GetOrCreate("store")

// MaxHistoryPoints is the largest capacity the history accepts
const MaxHistoryPoints = 100_000

var errInvalidCapacity = errors.New("capacity must be positive")

// ErrCapacityTooLarge signals a capacity above MaxHistoryPoints
var ErrCapacityTooLarge = fmt.Errorf("capacity must not exceed %d", MaxHistoryPoints)

// ErrOutOfOrder signals a snapshot older than the latest stored one
var ErrOutOfOrder = errors.New("snapshot is older than the latest stored snapshot")

type subscriber struct {
	id      uint64
	handler func(snapshot common.Snapshot)
}

type dataStore struct {
	mut         sync.RWMutex
	buffer      *historyBuffer
	latest      *common.Snapshot
	subscribers []subscriber
	nextID      uint64
	timeFunc    func() time.Time
}

// NewDataStore creates the bounded snapshot history
func NewDataStore(capacity int) (*dataStore, error) {
	return NewDataStoreWithTime(capacity, time.Now)
}

// NewDataStoreWithTime creates the bounded snapshot history using the given clock for range queries
func NewDataStoreWithTime(capacity int, timeFunc func() time.Time) (*dataStore, error) {
	err := checkCapacity(capacity)
	if err != nil {
		return nil, err
	}
	if timeFunc == nil {
		timeFunc = time.Now
	}

	return &dataStore{
		buffer:   newHistoryBuffer(capacity),
		timeFunc: timeFunc,
	}, nil
}

// Add stores a copy of the snapshot, evicting the oldest one at capacity, and then notifies
// the subscribers synchronously. Snapshots older than the latest one are rejected.
func (ds *dataStore) Add(snapshot common.Snapshot) error {
	stored := snapshot.Clone()

	ds.mut.Lock()
	if ds.latest != nil && stored.Timestamp < ds.latest.Timestamp {
		latestTimestamp := ds.latest.Timestamp
		ds.mut.Unlock()

		log.Warn("dropping out of order snapshot", "timestamp", stored.Timestamp, "latest", latestTimestamp)
		return ErrOutOfOrder
	}

	ds.buffer.push(stored)
	ds.latest = &stored
	handlers := make([]func(snapshot common.Snapshot), 0, len(ds.subscribers))
	for _, sub := range ds.subscribers {
		handlers = append(handlers, sub.handler)
	}
	ds.mut.Unlock()

	for _, handler := range handlers {
		handler(stored.Clone())
	}

	return nil
}

// Latest returns a copy of the most recent snapshot, if any
func (ds *dataStore) Latest() (common.Snapshot, bool) {
	ds.mut.RLock()
	defer ds.mut.RUnlock()

	if ds.latest == nil {
		return common.Snapshot{}, false
	}

	return ds.latest.Clone(), true
}

// Query returns the snapshots selected by the range specification in chronological order.
// "Last N minutes" selects every snapshot with timestamp >= now - N minutes. An unrecognised
// specification returns the whole history.
func (ds *dataStore) Query(rangeSpec string) []common.Snapshot {
	lookBack, all, ok := ParseRange(rangeSpec)
	if !ok {
		log.Warn("unrecognised time range, returning the whole history", "range", rangeSpec)
		all = true
	}

	ds.mut.RLock()
	defer ds.mut.RUnlock()

	if all {
		return ds.buffer.slice(0)
	}

	cutoff := ds.timeFunc().Add(-lookBack).UnixMilli()
	n := ds.buffer.len()
	first := sort.Search(n, func(i int) bool {
		return ds.buffer.at(i).Timestamp >= cutoff
	})

	return ds.buffer.slice(first)
}

// Len returns the number of stored snapshots
func (ds *dataStore) Len() int {
	ds.mut.RLock()
	defer ds.mut.RUnlock()

	return ds.buffer.len()
}

// Capacity returns the maximum number of stored snapshots
func (ds *dataStore) Capacity() int {
	ds.mut.RLock()
	defer ds.mut.RUnlock()

	return ds.buffer.capacity()
}

// Resize changes the capacity, keeping the newest snapshots
func (ds *dataStore) Resize(capacity int) error {
	err := checkCapacity(capacity)
	if err != nil {
		return err
	}

	ds.mut.Lock()
	defer ds.mut.Unlock()

	if capacity == ds.buffer.capacity() {
		return nil
	}
	ds.buffer = ds.buffer.resized(capacity)
	log.Debug("history resized", "capacity", capacity, "len", ds.buffer.len())

	return nil
}

func checkCapacity(capacity int) error {
	if capacity <= 0 {
		return errInvalidCapacity
	}
	if capacity > MaxHistoryPoints {
		return ErrCapacityTooLarge
	}

	return nil
}

// Subscribe registers a handler called after every Add. The returned function removes it.
func (ds *dataStore) Subscribe(handler func(snapshot common.Snapshot)) func() {
	ds.mut.Lock()
	defer ds.mut.Unlock()

	ds.nextID++
	id := ds.nextID
	ds.subscribers = append(ds.subscribers, subscriber{id: id, handler: handler})

	return func() {
		ds.mut.Lock()
		defer ds.mut.Unlock()

		for i, sub := range ds.subscribers {
			if sub.id == id {
				ds.subscribers = append(ds.subscribers[:i:i], ds.subscribers[i+1:]...)
				return
			}
		}
	}
}

// IsInterfaceNil returns true if the value under the interface is nil
func (ds *dataStore) IsInterfaceNil() bool {
	return ds == nil
}

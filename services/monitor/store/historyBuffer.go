package store

import "github.com/gr4ytips/anavi-monitoring/services/monitor/common"

// historyBuffer is a fixed-capacity ring of snapshots. It is not safe for concurrent use.
type historyBuffer struct {
	data []common.Snapshot
	pos  int
	full bool
}

func newHistoryBuffer(capacity int) *historyBuffer {
	return &historyBuffer{
		data: make([]common.Snapshot, capacity),
	}
}

// push stores the snapshot, overwriting the oldest one when full
func (r *historyBuffer) push(snapshot common.Snapshot) {
	r.data[r.pos] = snapshot
	r.pos++
	if r.pos >= len(r.data) {
		r.pos = 0
		r.full = true
	}
}

func (r *historyBuffer) len() int {
	if r.full {
		return len(r.data)
	}
	return r.pos
}

func (r *historyBuffer) capacity() int {
	return len(r.data)
}

// at returns the i-th snapshot in insertion order
func (r *historyBuffer) at(i int) common.Snapshot {
	if r.full {
		return r.data[(r.pos+i)%len(r.data)]
	}
	return r.data[i]
}

// slice returns copies of the contents in insertion order, starting at index from
func (r *historyBuffer) slice(from int) []common.Snapshot {
	n := r.len()
	if from < 0 {
		from = 0
	}
	if from >= n {
		return make([]common.Snapshot, 0)
	}

	out := make([]common.Snapshot, 0, n-from)
	for i := from; i < n; i++ {
		out = append(out, r.at(i).Clone())
	}

	return out
}

// resized returns a new buffer with the given capacity holding the newest snapshots
func (r *historyBuffer) resized(capacity int) *historyBuffer {
	out := newHistoryBuffer(capacity)
	n := r.len()
	start := 0
	if n > capacity {
		start = n - capacity
	}
	for i := start; i < n; i++ {
		out.push(r.at(i))
	}

	return out
}

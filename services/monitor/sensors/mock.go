package sensors

import (
	"context"
	"math/rand/v2"
	"sync"

	"github.com/gr4ytips/anavi-monitoring/services/monitor/common"
)

type mockRange struct {
	min   float64
	max   float64
	start float64
	step  float64
}

var mockRanges = map[common.MetricType]mockRange{
	common.MetricTemperature: {min: 15, max: 35, start: 22, step: 0.3},
	common.MetricHumidity:    {min: 20, max: 80, start: 45, step: 1},
	common.MetricPressure:    {min: 980, max: 1040, start: 1013, step: 0.5},
	common.MetricLight:       {min: 0, max: 2000, start: 300, step: 25},
}

var defaultMockRange = mockRange{min: 0, max: 100, start: 50, step: 1}

type mockDriver struct {
	mut     sync.Mutex
	rnd     *rand.Rand
	metrics []common.MetricType
	values  map[common.MetricType]float64
	closed  bool
}

// NewMockDriver creates a driver producing a bounded random walk for every given metric.
// A driver without metrics returns empty readings.
func NewMockDriver(metrics []common.MetricType, seed uint64) *mockDriver {
	values := make(map[common.MetricType]float64, len(metrics))
	for _, metric := range metrics {
		values[metric] = rangeOf(metric).start
	}

	return &mockDriver{
		rnd:     rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15)),
		metrics: append([]common.MetricType(nil), metrics...),
		values:  values,
	}
}

// ReadData advances every metric by a random step, kept inside the metric's plausible range
func (m *mockDriver) ReadData(_ context.Context) (map[common.MetricType]*float64, error) {
	m.mut.Lock()
	defer m.mut.Unlock()

	if m.closed {
		return nil, ErrDriverClosed
	}

	result := make(map[common.MetricType]*float64, len(m.metrics))
	for _, metric := range m.metrics {
		r := rangeOf(metric)
		next := m.values[metric] + (m.rnd.Float64()*2-1)*r.step
		next = min(max(next, r.min), r.max)
		m.values[metric] = next
		result[metric] = common.Float(next)
	}

	return result, nil
}

func rangeOf(metric common.MetricType) mockRange {
	r, found := mockRanges[metric]
	if !found {
		return defaultMockRange
	}

	return r
}

// Close marks the driver as closed
func (m *mockDriver) Close() error {
	m.mut.Lock()
	m.closed = true
	m.mut.Unlock()

	return nil
}

// IsInterfaceNil returns true if the value under the interface is nil
func (m *mockDriver) IsInterfaceNil() bool {
	return m == nil
}

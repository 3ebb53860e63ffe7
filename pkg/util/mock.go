package util

import (
	"sync"

	"github.com/influxdata/influxdb-client-go/api/write"
)

// MockWriteAPI stands in for InfluxDB when no host is configured. Points are dropped;
// only a per-measurement tally is kept.
type MockWriteAPI struct {
	mu     sync.Mutex
	counts map[string]int
}

func (m *MockWriteAPI) WriteRecord(line string) {}

func (m *MockWriteAPI) WritePoint(point *write.Point) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = make(map[string]int)
	}
	m.counts[point.Name()]++
}

// Count reports how many points named measurement were written.
func (m *MockWriteAPI) Count(measurement string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[measurement]
}

func (m *MockWriteAPI) Flush() {}

func (m *MockWriteAPI) Close() {}

func (m *MockWriteAPI) Errors() <-chan error { return nil }

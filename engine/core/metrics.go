package core

import "sync"

const AVG_COUNT uint8 = 30

// Metrics keeps a rolling average over the last AVG_COUNT samples plus a total count.
type Metrics struct {
	mu         sync.Mutex
	avgCounter uint8
	msTimes    [AVG_COUNT]float64
	msAvg      float64
	samples    uint64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

// Update records one sample, given in seconds.
func (m *Metrics) Update(elapsedSeconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ms := elapsedSeconds * 1000.0
	m.msTimes[m.avgCounter] = ms
	m.samples++

	n := AVG_COUNT
	if m.samples < uint64(AVG_COUNT) {
		n = uint8(m.samples)
	}
	sum := 0.0
	for i := uint8(0); i < n; i++ {
		sum += m.msTimes[i]
	}
	m.msAvg = sum / float64(n)

	m.avgCounter++
	m.avgCounter %= AVG_COUNT
}

// Snapshot returns the total number of samples and the rolling average in milliseconds.
func (m *Metrics) Snapshot() (uint64, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.samples, m.msAvg
}

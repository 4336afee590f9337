package observability

import "sync"

type Inmem struct {
	mu     sync.Mutex
	last   []any
	max    int
	totals struct {
		deduped, dropped int
	}
}

func NewInmem(max int) *Inmem {
	return &Inmem{
		max: max,
	}
}

func (m *Inmem) push(v any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = append(m.last, v)
	if len(m.last) > m.max {
		m.last = m.last[1:]
	}
}

func (m *Inmem) ObservePoll(durMs float64, newOrders int, ok bool) {
	m.push(struct {
		Kind      string
		Dur       float64
		NewOrders int
		OK        bool
	}{"poll", durMs, newOrders, ok})
}

func (m *Inmem) ObserveHTTP(method, route string, status int, durMs float64) {
	m.push(struct {
		Kind          string
		Method, Route string
		Status        int
		Dur           float64
	}{"http", method, route, status, durMs})
}

func (m *Inmem) ObserveIngest(processMs float64, ok bool) {
	m.push(struct {
		Kind string
		Dur  float64
		OK   bool
	}{"ingest", processMs, ok})
}

func (m *Inmem) IncDeduped() {
	m.mu.Lock()
	m.totals.deduped++
	m.mu.Unlock()
}

func (m *Inmem) IncDropped() {
	m.mu.Lock()
	m.totals.dropped++
	m.mu.Unlock()
}

// Totals reports the dedup/drop counters, mostly for tests.
func (m *Inmem) Totals() (deduped, dropped int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totals.deduped, m.totals.dropped
}

// Last returns a copy of the rolling event window.
func (m *Inmem) Last() []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]any, len(m.last))
	copy(out, m.last)
	return out
}

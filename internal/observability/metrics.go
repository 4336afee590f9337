package observability

type Metrics interface {
	ObservePoll(durMs float64, newOrders int, ok bool)
	ObserveHTTP(method, route string, status int, durMs float64)
	ObserveIngest(processMs float64, ok bool)
	IncDeduped()
	IncDropped()
}

type Noop struct{}

func NewNoop() Noop { return Noop{} }

func (Noop) ObservePoll(float64, int, bool)           {}
func (Noop) ObserveHTTP(string, string, int, float64) {}
func (Noop) ObserveIngest(float64, bool)              {}
func (Noop) IncDeduped()                              {}
func (Noop) IncDropped()                              {}

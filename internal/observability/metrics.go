package observability

type Metrics interface {
	ObserveLookup(source string, cacheMs, dbMs float64)
	ObserveCreate(dbWriteMs, publishMs float64)
	ObserveHTTP(method, route string, status int, durMs float64)
	ObserveConsume(processMs float64, ok bool)
	IncCacheHit()
	IncCacheMiss()
	IncRateLimited()
}

type Noop struct{}

func NewNoop() Noop { return Noop{} }

func (Noop) ObserveLookup(string, float64, float64)   {}
func (Noop) ObserveCreate(float64, float64)           {}
func (Noop) ObserveHTTP(string, string, int, float64) {}
func (Noop) ObserveConsume(float64, bool)             {}
func (Noop) IncCacheHit()                             {}
func (Noop) IncCacheMiss()                            {}
func (Noop) IncRateLimited()                          {}

package middleware

import (
	"net/http"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
)

// unmatchedRoute labels requests no route pattern claimed.
const unmatchedRoute = "unmatched"

// RouteMetrics are the counters for one route pattern. Conflicts (409) and
// unprocessable requests (422) are how the planner rejects work it cannot do,
// such as resuming a finished goal, so they are tracked on their own.
type RouteMetrics struct {
	Route        string `json:"route"`
	Requests     int64  `json:"requests"`
	ClientErrors int64  `json:"client_errors"`
	Rejections   int64  `json:"rejections"`
	ServerErrors int64  `json:"server_errors"`
}

// MetricsCollector counts requests and errors globally and per chi route
// pattern.
type MetricsCollector struct {
	requestCount *atomic.Int64
	errorCount   *atomic.Int64
	serverErrors atomic.Int64

	mu     sync.Mutex
	routes map[string]*RouteMetrics
}

func NewMetricsCollector(requestCount, errorCount *atomic.Int64) *MetricsCollector {
	return &MetricsCollector{
		requestCount: requestCount,
		errorCount:   errorCount,
		routes:       make(map[string]*RouteMetrics),
	}
}

// ServerErrors returns the number of 5xx responses seen.
func (mc *MetricsCollector) ServerErrors() int64 {
	return mc.serverErrors.Load()
}

// Routes returns a copy of the per-route counters ordered by route.
func (mc *MetricsCollector) Routes() []RouteMetrics {
	mc.mu.Lock()
	out := make([]RouteMetrics, 0, len(mc.routes))
	for _, m := range mc.routes {
		out = append(out, *m)
	}
	mc.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Route < out[j].Route })
	return out
}

func (mc *MetricsCollector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mc.requestCount.Add(1)

		rw := newResponseWriter(w)
		next.ServeHTTP(rw, r)

		status := rw.statusCode
		if status >= 400 {
			mc.errorCount.Add(1)
		}
		if status >= 500 {
			mc.serverErrors.Add(1)
		}
		mc.observe(routePattern(r), status)
	})
}

func (mc *MetricsCollector) observe(route string, status int) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	m, ok := mc.routes[route]
	if !ok {
		m = &RouteMetrics{Route: route}
		mc.routes[route] = m
	}
	m.Requests++
	switch {
	case status >= 500:
		m.ServerErrors++
	case status == http.StatusConflict || status == http.StatusUnprocessableEntity:
		m.Rejections++
		m.ClientErrors++
	case status >= 400:
		m.ClientErrors++
	}
}

// routePattern reads the matched pattern after routing, so path parameters
// such as fingerprints do not create a series each.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return unmatchedRoute
	}
	if p := rctx.RoutePattern(); p != "" {
		return r.Method + " " + p
	}
	return unmatchedRoute
}

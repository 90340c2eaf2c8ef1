// Package health serves liveness and readiness probes backed by named checks.
package health

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fluxorio/todoapi/pkg/web"
	"github.com/valyala/fasthttp"
)

// Status values reported by probes
const (
	StatusUp   = "UP"
	StatusDown = "DOWN"
)

// Check returns nil when the dependency is healthy
type Check func(ctx context.Context) error

// Report is the readiness response body
type Report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Registry holds named checks
type Registry struct {
	mu     sync.RWMutex
	checks map[string]Check
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{checks: make(map[string]Check)}
}

// Register adds or replaces the check called name
func (r *Registry) Register(name string, check Check) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checks[name] = check
}

// Run executes every check concurrently. The report is UP only if all pass.
func (r *Registry) Run(ctx context.Context) Report {
	r.mu.RLock()
	names := make([]string, 0, len(r.checks))
	for name := range r.checks {
		names = append(names, name)
	}
	checks := make([]Check, len(names))
	sort.Strings(names)
	for i, name := range names {
		checks[i] = r.checks[name]
	}
	r.mu.RUnlock()

	results := make([]error, len(checks))
	var wg sync.WaitGroup
	for i, check := range checks {
		wg.Add(1)
		go func(i int, check Check) {
			defer wg.Done()
			results[i] = check(ctx)
		}(i, check)
	}
	wg.Wait()

	report := Report{Status: StatusUp, Checks: make(map[string]string, len(names))}
	for i, name := range names {
		if results[i] != nil {
			report.Status = StatusDown
			report.Checks[name] = results[i].Error()
			continue
		}
		report.Checks[name] = StatusUp
	}
	return report
}

// ReadyHandler runs the checks with timeout and answers 200 or 503
func (r *Registry) ReadyHandler(timeout time.Duration) web.FastRequestHandler {
	return func(ctx *web.FastRequestContext) error {
		checkCtx, cancel := context.WithTimeout(ctx.Context(), timeout)
		defer cancel()

		report := r.Run(checkCtx)
		status := fasthttp.StatusOK
		if report.Status != StatusUp {
			status = fasthttp.StatusServiceUnavailable
		}
		return ctx.JSON(status, report)
	}
}

// LiveHandler reports the process as up with the service name
func LiveHandler(service string) web.FastRequestHandler {
	return func(ctx *web.FastRequestContext) error {
		return ctx.JSON(fasthttp.StatusOK, map[string]string{
			"status":  StatusUp,
			"service": service,
		})
	}
}

// Pinger is satisfied by *db.Pool
type Pinger interface {
	Ping(ctx context.Context) error
}

// DatabaseCheck pings the database
func DatabaseCheck(p Pinger) Check {
	return func(ctx context.Context) error {
		return p.Ping(ctx)
	}
}

// CapacityCheck fails when the server's utilization reaches maxPercent
func CapacityCheck(server interface{ Metrics() web.ServerMetrics }, maxPercent float64) Check {
	return func(context.Context) error {
		if u := server.Metrics().CCUUtilization; u >= maxPercent {
			return fmt.Errorf("utilization %.1f%% at or above %.0f%%", u, maxPercent)
		}
		return nil
	}
}

// Copyright (c) 2026 TailorFit Labs
//
// This file is part of tailorfit.
//
// tailorfit is licensed under the GNU Affero General Public License v3.0.
// See the LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

// Package health manages liveness and readiness checks following Kubernetes
// probe semantics. Liveness only asserts the process is running; readiness
// runs the registered dependency checks (database connectivity, blob store).
package health

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Status is the health status of a component.
type Status string

const (
	// StatusHealthy indicates the component is operating normally.
	StatusHealthy Status = "healthy"
	// StatusUnhealthy indicates the component is not functioning.
	StatusUnhealthy Status = "unhealthy"
)

// CheckFunc probes a single dependency. It should return quickly, ideally
// under a second, and report nil when the dependency is usable.
type CheckFunc func(ctx context.Context) error

// Result is the outcome of one dependency check.
type Result struct {
	// Name identifies the dependency.
	Name string `json:"name"`
	// Status is the health status of the dependency.
	Status Status `json:"status"`
	// Latency is how long the check took.
	Latency time.Duration `json:"latency"`
	// Error carries the failure detail when the check did not pass.
	Error string `json:"error,omitempty"`
}

// Checker runs registered dependency checks for the readiness probe.
type Checker struct {
	mu        sync.RWMutex
	ready     bool
	startTime time.Time
	checks    map[string]CheckFunc
}

// NewChecker creates an empty health checker.
func NewChecker() *Checker {
	return &Checker{
		checks:    make(map[string]CheckFunc),
		startTime: time.Now(),
	}
}

// Register adds a dependency check under the given name, replacing any
// existing check with that name. Nil checks are ignored.
func (c *Checker) Register(name string, check CheckFunc) {
	if check == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// Unregister removes a dependency check.
func (c *Checker) Unregister(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.checks, name)
}

// MarkReady marks initialization as complete. Readiness reports unhealthy
// until this is called, so a pod never receives traffic mid-startup.
func (c *Checker) MarkReady() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ready = true
}

// MarkNotReady flips readiness off, for graceful shutdown.
func (c *Checker) MarkNotReady() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ready = false
}

// IsReady reports whether MarkReady has been called.
func (c *Checker) IsReady() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ready
}

// Uptime returns how long the process has been running.
func (c *Checker) Uptime() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Since(c.startTime)
}

// Check runs every registered dependency check and returns the results in
// name order. With no checks registered it returns an empty slice, which
// aggregates to healthy.
func (c *Checker) Check(ctx context.Context) []Result {
	c.mu.RLock()
	checks := make(map[string]CheckFunc, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()

	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]Result, 0, len(names))
	for _, name := range names {
		start := time.Now()
		err := checks[name](ctx)
		result := Result{
			Name:    name,
			Status:  StatusHealthy,
			Latency: time.Since(start),
		}
		if err != nil {
			result.Status = StatusUnhealthy
			result.Error = err.Error()
		}
		results = append(results, result)
	}
	return results
}

// Healthy reports whether the service is ready and every dependency check
// passes.
func (c *Checker) Healthy(ctx context.Context) bool {
	if !c.IsReady() {
		return false
	}
	return Aggregate(c.Check(ctx)) == StatusHealthy
}

// Aggregate folds check results into an overall status: unhealthy if any
// check failed, healthy otherwise.
func Aggregate(results []Result) Status {
	for _, r := range results {
		if r.Status != StatusHealthy {
			return StatusUnhealthy
		}
	}
	return StatusHealthy
}

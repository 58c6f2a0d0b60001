// Package health reports whether the deployer's collaborators — the cloud
// provider, the topology store, the deployment journal — are reachable, and
// serves the results plus Prometheus metrics over HTTP during long-running
// operations.
package health

import (
	"context"
	"sync"
	"time"
)

// Status of one component or of the whole response. Worst status wins.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Check is one component's result.
type Check struct {
	Name        string        `json:"name"`
	Status      Status        `json:"status"`
	Message     string        `json:"message,omitempty"`
	LastChecked time.Time     `json:"last_checked"`
	Duration    time.Duration `json:"duration_ms"`
}

// CheckFunc probes one component.
type CheckFunc func(ctx context.Context) Check

// Response is the aggregate over all registered checks.
type Response struct {
	Status    Status           `json:"status"`
	Timestamp time.Time        `json:"timestamp"`
	Uptime    time.Duration    `json:"uptime_seconds"`
	Checks    map[string]Check `json:"checks"`
}

// Checker runs registered component checks on demand.
type Checker struct {
	mu          sync.RWMutex
	checks      map[string]CheckFunc
	readyChecks map[string]CheckFunc
	started     time.Time
}

// NewChecker creates an empty checker.
func NewChecker() *Checker {
	return &Checker{
		checks:      make(map[string]CheckFunc),
		readyChecks: make(map[string]CheckFunc),
		started:     time.Now(),
	}
}

// Register adds a health check.
func (c *Checker) Register(name string, check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// RegisterReadiness adds a check that gates readiness only.
func (c *Checker) RegisterReadiness(name string, check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readyChecks[name] = check
}

// Run performs every health check.
func (c *Checker) Run(ctx context.Context) Response {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.perform(ctx, c.checks)
}

// RunReadiness performs the readiness checks.
func (c *Checker) RunReadiness(ctx context.Context) Response {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.perform(ctx, c.readyChecks)
}

func (c *Checker) perform(ctx context.Context, checks map[string]CheckFunc) Response {
	response := Response{
		Status:    StatusHealthy,
		Timestamp: time.Now(),
		Uptime:    time.Since(c.started),
		Checks:    make(map[string]Check),
	}

	for name, fn := range checks {
		start := time.Now()
		check := fn(ctx)
		check.Name = name
		check.Duration = time.Since(start)
		check.LastChecked = start
		response.Checks[name] = check

		if check.Status == StatusUnhealthy {
			response.Status = StatusUnhealthy
		} else if check.Status == StatusDegraded && response.Status != StatusUnhealthy {
			response.Status = StatusDegraded
		}
	}
	return response
}

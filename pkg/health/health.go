// Package health reports whether the searcher can answer queries. The index
// and the backends it serves parts from are required: when one fails the
// service is down. The result cache and the analytics publisher are
// optional: when one fails queries still run, and the service is degraded.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/pkg/resilience"
)

type Status string

const (
	StatusUp       Status = "up"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

func (s Status) worse(than Status) bool {
	return rank(s) > rank(than)
}

func rank(s Status) int {
	switch s {
	case StatusUp:
		return 0
	case StatusDegraded:
		return 1
	default:
		return 2
	}
}

// Check probes one component.
type Check func(ctx context.Context) ComponentHealth

type ComponentHealth struct {
	Status   Status `json:"status"`
	Required bool   `json:"required"`
	Message  string `json:"message,omitempty"`
	Latency  string `json:"latency,omitempty"`
}

// Report is the outcome of one readiness run. Degraded lists the optional
// components that failed.
type Report struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	Degraded   []string                   `json:"degraded,omitempty"`
	Timestamp  string                     `json:"timestamp"`
}

// Checker holds the readiness checks of one process.
type Checker struct {
	mu     sync.RWMutex
	checks map[string]entry
	logger *slog.Logger
}

type entry struct {
	check    Check
	required bool
}

func NewChecker() *Checker {
	return &Checker{
		checks: make(map[string]entry),
		logger: slog.Default().With("component", "health"),
	}
}

// Require registers a component queries cannot run without.
func (c *Checker) Require(name string, check Check) {
	c.register(name, check, true)
}

// Optional registers a component whose loss only degrades the service.
func (c *Checker) Optional(name string, check Check) {
	c.register(name, check, false)
}

func (c *Checker) register(name string, check Check, required bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = entry{check: check, required: required}
}

// Ping turns a backend ping into a check.
func Ping(ping func(ctx context.Context) error) Check {
	return func(ctx context.Context) ComponentHealth {
		if err := ping(ctx); err != nil {
			return ComponentHealth{Status: StatusDown, Message: err.Error()}
		}
		return ComponentHealth{Status: StatusUp}
	}
}

// Index checks the served index: probe must read it back, and an index
// without documents is degraded.
func Index(documents func() int64, probe func() error) Check {
	return func(context.Context) ComponentHealth {
		if err := probe(); err != nil {
			return ComponentHealth{Status: StatusDown, Message: fmt.Sprintf("reading index: %v", err)}
		}
		n := documents()
		if n == 0 {
			return ComponentHealth{Status: StatusDegraded, Message: "index has no documents"}
		}
		return ComponentHealth{Status: StatusUp, Message: fmt.Sprintf("%d documents", n)}
	}
}

// Breaker reports a backend behind a circuit breaker. While the circuit is
// not closed the backend is reported down without calling check.
func Breaker(state func() resilience.State, check Check) Check {
	return func(ctx context.Context) ComponentHealth {
		if s := state(); s != resilience.StateClosed {
			return ComponentHealth{Status: StatusDown, Message: "circuit " + s.String()}
		}
		return check(ctx)
	}
}

// Run executes every check concurrently. A failed required component takes
// the service down; a failed optional one degrades it.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	checks := make(map[string]entry, len(c.checks))
	for name, e := range c.checks {
		checks[name] = e
	}
	c.mu.RUnlock()

	report := Report{
		Status:     StatusUp,
		Components: make(map[string]ComponentHealth, len(checks)),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for name, e := range checks {
		wg.Add(1)
		go func(name string, e entry) {
			defer wg.Done()
			start := time.Now()
			result := e.check(ctx)
			result.Latency = time.Since(start).Round(time.Millisecond).String()
			result.Required = e.required
			if !e.required && result.Status == StatusDown {
				result.Status = StatusDegraded
			}
			mu.Lock()
			report.Components[name] = result
			mu.Unlock()
		}(name, e)
	}
	wg.Wait()

	for name, comp := range report.Components {
		if comp.Status != StatusUp && !comp.Required {
			report.Degraded = append(report.Degraded, name)
		}
		if comp.Status.worse(report.Status) {
			report.Status = comp.Status
		}
	}
	sort.Strings(report.Degraded)
	if report.Status != StatusUp {
		c.logger.Warn("readiness check failed", "status", report.Status, "degraded", report.Degraded)
	}
	return report
}

func (c *Checker) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "alive"})
	}
}

// ReadyHandler answers 200 while queries can run, degraded included, and
// 503 once a required component is down.
func (c *Checker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		report := c.Run(ctx)
		w.Header().Set("Content-Type", "application/json")
		if report.Status == StatusDown {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		json.NewEncoder(w).Encode(report)
	}
}

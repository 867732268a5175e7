package health

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"radiance/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Status represents the health status of a component
type Status string

const (
	// StatusUp indicates a component is working correctly
	StatusUp Status = "up"
	// StatusDown indicates a component is not working
	StatusDown Status = "down"
	// StatusDegraded indicates a component is working but with reduced functionality
	StatusDegraded Status = "degraded"
)

// Component represents a system component that can be health-checked
type Component struct {
	Name        string    `json:"name"`
	Status      Status    `json:"status"`
	Critical    bool      `json:"critical"`
	Description string    `json:"description,omitempty"`
	Error       string    `json:"error,omitempty"`
	LastChecked time.Time `json:"last_checked"`
}

// Check probes one component. It must return once ctx is done.
type Check func(ctx context.Context) (Status, string, error)

type registration struct {
	check    Check
	critical bool
}

// Checker runs registered checks periodically and keeps the latest result
// of each.
type Checker struct {
	checks       map[string]registration
	components   map[string]*Component
	checkPeriod  time.Duration
	checkTimeout time.Duration
	mutex        sync.RWMutex
	log          *logger.Logger

	listenersMu sync.Mutex
	listeners   []func(healthy bool)
}

// NewChecker creates a new health checker
func NewChecker(log *logger.Logger, checkPeriod time.Duration) *Checker {
	if log == nil {
		log = logger.Nop()
	}
	if checkPeriod <= 0 {
		checkPeriod = 30 * time.Second
	}

	checker := &Checker{
		checks:       make(map[string]registration),
		components:   make(map[string]*Component),
		checkPeriod:  checkPeriod,
		checkTimeout: 5 * time.Second,
		log:          log.With("component", "health"),
	}

	checker.RegisterCheck("self", false, func(context.Context) (Status, string, error) {
		return StatusUp, "Health checker is running", nil
	})

	return checker
}

// RegisterCheck registers a new health check. A critical component that is
// down makes the whole system unhealthy.
func (c *Checker) RegisterCheck(name string, critical bool, check Check) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.checks[name] = registration{check: check, critical: critical}
	c.components[name] = &Component{
		Name:        name,
		Status:      StatusDown,
		Critical:    critical,
		Description: "Not checked yet",
	}
}

// OnChange registers fn to be called with the overall health after every run
func (c *Checker) OnChange(fn func(healthy bool)) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// RunChecks executes all registered health checks. Checks run without the
// lock held so a slow probe does not block readers.
func (c *Checker) RunChecks(ctx context.Context) {
	c.mutex.RLock()
	checks := make(map[string]registration, len(c.checks))
	for name, reg := range c.checks {
		checks[name] = reg
	}
	c.mutex.RUnlock()

	for name, reg := range checks {
		checkCtx, cancel := context.WithTimeout(ctx, c.checkTimeout)
		status, description, err := reg.check(checkCtx)
		cancel()

		c.mutex.Lock()
		component, ok := c.components[name]
		if ok {
			component.Status = status
			component.Description = description
			component.LastChecked = time.Now()
			component.Error = ""
			if err != nil {
				component.Error = err.Error()
			}
		}
		c.mutex.Unlock()

		if err != nil {
			c.log.Error("Health check failed",
				"check", name,
				"status", string(status),
				"error", err.Error(),
			)
		} else {
			c.log.Debug("Health check completed",
				"check", name,
				"status", string(status),
			)
		}
	}

	healthy := c.IsSystemHealthy()
	c.listenersMu.Lock()
	listeners := append([]func(bool){}, c.listeners...)
	c.listenersMu.Unlock()
	for _, fn := range listeners {
		fn(healthy)
	}
}

// Start runs the checks immediately and then every period until ctx is done
func (c *Checker) Start(ctx context.Context) {
	go func() {
		c.RunChecks(ctx)

		ticker := time.NewTicker(c.checkPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.RunChecks(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// GetStatus returns a copy of the current component states
func (c *Checker) GetStatus() map[string]*Component {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	result := make(map[string]*Component, len(c.components))
	for k, v := range c.components {
		componentCopy := *v
		result[k] = &componentCopy
	}

	return result
}

// IsSystemHealthy returns true if all critical components are up
func (c *Checker) IsSystemHealthy() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	for _, component := range c.components {
		if component.Critical && component.Status == StatusDown {
			return false
		}
	}

	return true
}

// Handler serves the component report. extra is merged into the body.
func (c *Checker) Handler(extra func() gin.H) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		status := "ok"
		code := http.StatusOK
		if !c.IsSystemHealthy() {
			status = "unavailable"
			code = http.StatusServiceUnavailable
		}

		body := gin.H{
			"status":     status,
			"timestamp":  time.Now().Format(time.RFC3339),
			"components": c.GetStatus(),
		}
		if extra != nil {
			for k, v := range extra() {
				body[k] = v
			}
		}

		ctx.JSON(code, body)
	}
}

// RegisterDatabaseCheck registers a critical database health check
func (c *Checker) RegisterDatabaseCheck(ping func(ctx context.Context) error) {
	c.RegisterCheck("database", true, func(ctx context.Context) (Status, string, error) {
		if err := ping(ctx); err != nil {
			return StatusDown, "Database connection failed", err
		}
		return StatusUp, "Database connection is established", nil
	})
}

// RegisterRedisCheck registers the pub/sub backend check. Without Redis
// sessions on other processes miss events, so it is critical.
func (c *Checker) RegisterRedisCheck(ping func(ctx context.Context) error) {
	c.RegisterCheck("redis", true, func(ctx context.Context) (Status, string, error) {
		if err := ping(ctx); err != nil {
			return StatusDown, "Redis is unreachable", err
		}
		return StatusUp, "Redis is responding", nil
	})
}

// RegisterAPICheck registers a non-critical check of an upstream HTTP API.
// Any response below 500 counts as reachable.
func (c *Checker) RegisterAPICheck(name, endpoint string, client *http.Client) {
	if client == nil {
		client = http.DefaultClient
	}

	c.RegisterCheck(fmt.Sprintf("api-%s", name), false, func(ctx context.Context) (Status, string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return StatusDown, "Invalid endpoint", err
		}

		start := time.Now()
		resp, err := client.Do(req)
		elapsed := time.Since(start)
		if err != nil {
			return StatusDown, "API request failed", err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= http.StatusInternalServerError {
			return StatusDegraded, fmt.Sprintf("API returned status %d", resp.StatusCode),
				fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}

		return StatusUp, fmt.Sprintf("API is responding (latency: %s)", elapsed), nil
	})
}

package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"radiance/backend/pkg/logger"
)

// ErrCircuitOpen is returned without calling the wrapped function while the
// breaker is open
var ErrCircuitOpen = errors.New("circuit open")

// State is the current position of a circuit breaker
type State string

const (
	// StateClosed lets every call through
	StateClosed State = "closed"
	// StateOpen short-circuits calls until the cool-down expires
	StateOpen State = "open"
	// StateHalfOpen lets a limited number of probe calls through
	StateHalfOpen State = "half-open"
)

// Config holds configuration for a circuit breaker
type Config struct {
	Name             string
	FailureThreshold uint
	SuccessThreshold uint
	// CoolDown is how long the breaker stays open before probing again
	CoolDown time.Duration
}

// DefaultConfig returns the breaker settings used for upstream model calls
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		CoolDown:         30 * time.Second,
	}
}

// CircuitBreaker stops calling a failing dependency for a while after
// repeated errors.
type CircuitBreaker struct {
	cfg Config
	log *logger.Logger
	now func() time.Time

	mu           sync.Mutex
	state        State
	failures     uint
	successes    uint
	inFlight     uint
	openedUntil  time.Time
	openCount    uint64
	totalCalls   uint64
	totalFailure uint64
}

// NewCircuitBreaker creates a closed circuit breaker
func NewCircuitBreaker(cfg Config, log *logger.Logger) *CircuitBreaker {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 1
	}
	if cfg.SuccessThreshold == 0 {
		cfg.SuccessThreshold = 1
	}
	if log == nil {
		log = logger.Nop()
	}
	return &CircuitBreaker{
		cfg:   cfg,
		log:   log,
		now:   time.Now,
		state: StateClosed,
	}
}

// Execute runs fn unless the breaker is open. Context cancellation by the
// caller is not counted as a dependency failure.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if !cb.allow() {
		cb.log.Warn("Circuit breaker rejected call", "name", cb.cfg.Name)
		return ErrCircuitOpen
	}

	start := cb.now()
	err := fn(ctx)

	switch {
	case err == nil:
		cb.onSuccess()
	case errors.Is(err, context.Canceled):
		cb.release()
	default:
		cb.onFailure()
		cb.log.Warn("Circuit breaker recorded failure",
			"name", cb.cfg.Name,
			"error", err.Error(),
			"duration", cb.now().Sub(start).String(),
		)
	}
	return err
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Before(cb.openedUntil) {
			return false
		}
		cb.state = StateHalfOpen
		cb.successes = 0
		cb.inFlight = 0
		cb.log.Info("Circuit breaker half-open", "name", cb.cfg.Name)
		fallthrough
	case StateHalfOpen:
		if cb.inFlight >= cb.cfg.SuccessThreshold {
			return false
		}
	}

	cb.inFlight++
	cb.totalCalls++
	return true
}

func (cb *CircuitBreaker) release() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.inFlight > 0 {
		cb.inFlight--
	}
}

func (cb *CircuitBreaker) onSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.inFlight > 0 {
		cb.inFlight--
	}
	switch cb.state {
	case StateClosed:
		cb.failures = 0
	case StateHalfOpen:
		cb.successes++
		if cb.successes >= cb.cfg.SuccessThreshold {
			cb.state = StateClosed
			cb.failures = 0
			cb.successes = 0
			cb.log.Info("Circuit breaker closed", "name", cb.cfg.Name)
		}
	}
}

func (cb *CircuitBreaker) onFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.inFlight > 0 {
		cb.inFlight--
	}
	cb.totalFailure++
	switch cb.state {
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.cfg.FailureThreshold {
			cb.open()
		}
	case StateHalfOpen:
		cb.open()
	}
}

// open moves to StateOpen. Caller holds mu.
func (cb *CircuitBreaker) open() {
	cb.state = StateOpen
	cb.openCount++
	cb.openedUntil = cb.now().Add(cb.cfg.CoolDown)
	cb.log.Info("Circuit breaker opened",
		"name", cb.cfg.Name,
		"failures", cb.failures,
		"nextAttempt", cb.openedUntil.Format(time.RFC3339),
	)
}

// State returns the current state
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return cb.state
}

// Stats is a point-in-time view of breaker counters
type Stats struct {
	Name      string `json:"name"`
	State     State  `json:"state"`
	Calls     uint64 `json:"total_calls"`
	Failures  uint64 `json:"total_failures"`
	OpenCount uint64 `json:"open_count"`
}

// Stats returns the breaker counters
func (cb *CircuitBreaker) Stats() Stats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return Stats{
		Name:      cb.cfg.Name,
		State:     cb.state,
		Calls:     cb.totalCalls,
		Failures:  cb.totalFailure,
		OpenCount: cb.openCount,
	}
}

package engine

import (
	"sync"
	"time"

	"github.com/rendis/stepflow/pkg/schema"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	CircuitClosed   CircuitState = iota // dispatch allowed
	CircuitOpen                         // dispatch rejected until the cooldown elapses
	CircuitHalfOpen                     // a limited number of probe dispatches allowed
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures the per-action circuit breakers.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failed dispatches of one
	// action, across all runs of an engine, that opens its circuit.
	FailureThreshold int
	// Cooldown is how long the circuit stays open before probing again.
	Cooldown time.Duration
	// HalfOpenMax is the number of probe dispatches allowed while half-open.
	HalfOpenMax int
	// Exempt lists actions that are never guarded (block and signal actions
	// are exempt regardless).
	Exempt []string
}

// DefaultCircuitBreakerConfig returns a sensible default configuration.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
		HalfOpenMax:      1,
	}
}

// BreakerStats is a diagnostic snapshot of one action's breaker.
type BreakerStats struct {
	Action              string `json:"action"`
	State               string `json:"state"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
	FailureThreshold    int    `json:"failure_threshold"`
	Cooldown            string `json:"cooldown"`
}

type circuitBreaker struct {
	mu          sync.Mutex
	state       CircuitState
	failures    int
	lastFailure time.Time
	probes      int
}

// CircuitBreakerRegistry manages per-action circuit breakers. A dispatch is a
// failure when the action returns an error or a Failure result.
type CircuitBreakerRegistry struct {
	mu       sync.Mutex
	breakers map[string]*circuitBreaker
	config   CircuitBreakerConfig
	now      func() time.Time
}

// NewCircuitBreakerRegistry creates a new registry with the given config.
// Non-positive thresholds fall back to the defaults.
func NewCircuitBreakerRegistry(config CircuitBreakerConfig) *CircuitBreakerRegistry {
	def := DefaultCircuitBreakerConfig()
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = def.FailureThreshold
	}
	if config.HalfOpenMax <= 0 {
		config.HalfOpenMax = def.HalfOpenMax
	}
	return &CircuitBreakerRegistry{
		breakers: make(map[string]*circuitBreaker),
		config:   config,
		now:      time.Now,
	}
}

// Guards reports whether dispatches of action go through a breaker.
func (r *CircuitBreakerRegistry) Guards(action string, behavior schema.BlockBehavior) bool {
	if behavior.IsBlock() {
		return false
	}
	for _, name := range r.config.Exempt {
		if name == action {
			return false
		}
	}
	return true
}

// Allow checks whether a dispatch of action may proceed. It returns a
// MODULE_EXECUTION_ERROR while the circuit is open.
func (r *CircuitBreakerRegistry) Allow(action string) error {
	cb := r.get(action)
	cb.mu.Lock()
	defer cb.mu.Unlock()

	r.refresh(cb)
	switch cb.state {
	case CircuitOpen:
		remaining := r.config.Cooldown - r.now().Sub(cb.lastFailure)
		return schema.NewErrorf(schema.ErrCodeModuleExecution,
			"action %q is unavailable after %d consecutive failures; retry in %s",
			action, cb.failures, remaining.Round(time.Millisecond)).
			WithDetails(map[string]any{
				"action":               action,
				"consecutive_failures": cb.failures,
				"state":                cb.state.String(),
			})
	case CircuitHalfOpen:
		if cb.probes >= r.config.HalfOpenMax {
			return schema.NewErrorf(schema.ErrCodeModuleExecution,
				"action %q is recovering: probe limit reached", action)
		}
		cb.probes++
	}
	return nil
}

// Record reports the outcome of a dispatch and returns the new state.
func (r *CircuitBreakerRegistry) Record(action string, failed bool) CircuitState {
	cb := r.get(action)
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if !failed {
		cb.failures = 0
		cb.probes = 0
		cb.state = CircuitClosed
		return cb.state
	}

	cb.failures++
	cb.lastFailure = r.now()
	if cb.state == CircuitHalfOpen || cb.failures >= r.config.FailureThreshold {
		cb.state = CircuitOpen
		cb.probes = 0
	}
	return cb.state
}

// State returns the current state of the circuit for an action.
func (r *CircuitBreakerRegistry) State(action string) CircuitState {
	cb := r.get(action)
	cb.mu.Lock()
	defer cb.mu.Unlock()
	r.refresh(cb)
	return cb.state
}

// Stats returns diagnostic information about a circuit breaker.
func (r *CircuitBreakerRegistry) Stats(action string) BreakerStats {
	cb := r.get(action)
	cb.mu.Lock()
	defer cb.mu.Unlock()
	r.refresh(cb)
	return BreakerStats{
		Action:              action,
		State:               cb.state.String(),
		ConsecutiveFailures: cb.failures,
		FailureThreshold:    r.config.FailureThreshold,
		Cooldown:            r.config.Cooldown.String(),
	}
}

// refresh moves an open circuit to half-open once the cooldown elapsed.
// cb.mu must be held.
func (r *CircuitBreakerRegistry) refresh(cb *circuitBreaker) {
	if cb.state == CircuitOpen && r.now().Sub(cb.lastFailure) >= r.config.Cooldown {
		cb.state = CircuitHalfOpen
		cb.probes = 0
	}
}

func (r *CircuitBreakerRegistry) get(action string) *circuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	cb, ok := r.breakers[action]
	if !ok {
		cb = &circuitBreaker{state: CircuitClosed}
		r.breakers[action] = cb
	}
	return cb
}

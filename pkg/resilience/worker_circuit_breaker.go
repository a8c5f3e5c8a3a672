// Package resilience provides fault tolerance patterns for external service calls.
package resilience

import (
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned when a call is rejected because the breaker is open.
var ErrCircuitOpen = gobreaker.ErrOpenState

// CircuitBreakerConfig holds configuration for a circuit breaker.
type CircuitBreakerConfig struct {
	Name             string        // Name for logging/metrics
	FailureThreshold uint32        // Consecutive failures before opening (default: 5)
	Timeout          time.Duration // Time to wait before half-open (default: 30s)
	MaxRequests      uint32        // Max requests allowed in half-open (default: 1)
}

// DefaultCircuitBreakerConfig returns sensible defaults.
func DefaultCircuitBreakerConfig(name string) *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		Name:             name,
		FailureThreshold: 5,
		Timeout:          30 * time.Second,
		MaxRequests:      1,
	}
}

// CircuitBreaker wraps sony/gobreaker with the fixed policy the mail gateway
// adapter needs: trip after N consecutive failures, half-open after Timeout.
type CircuitBreaker struct {
	cb *gobreaker.CircuitBreaker
}

// NewCircuitBreaker creates a new circuit breaker with the given config.
func NewCircuitBreaker(cfg *CircuitBreakerConfig) *CircuitBreaker {
	if cfg == nil {
		cfg = DefaultCircuitBreakerConfig("default")
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
	}

	return &CircuitBreaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

// Execute runs fn with circuit breaker protection. Returns ErrCircuitOpen
// without invoking fn when the breaker is tripped.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	_, err := cb.cb.Execute(func() (any, error) {
		return nil, fn()
	})
	return err
}

// State returns the current breaker state name ("closed"/"open"/"half-open").
func (cb *CircuitBreaker) State() string {
	return cb.cb.State().String()
}

// IsOpen reports whether err was rejected because the breaker is open.
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState)
}

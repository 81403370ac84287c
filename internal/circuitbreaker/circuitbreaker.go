// Package circuitbreaker keeps one breaker per remote operation so an
// unhealthy provider endpoint fails fast instead of stalling admin requests.
package circuitbreaker

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

const (
	defaultFailureThreshold uint32 = 5
	defaultOpenTimeout             = 30 * time.Second
	defaultHalfOpenRequests uint32 = 1
)

// ErrOpen is returned, wrapped, when a breaker rejects a call.
var ErrOpen = errors.New("circuit breaker open")

// Config controls every breaker created by a Breakers set.
type Config struct {
	FailureThreshold uint32        // consecutive failures that open a breaker
	OpenTimeout      time.Duration // time spent open before probing again
	HalfOpenRequests uint32        // successful probes needed to close
	// IsSuccessful reports whether an error should count as a success for the
	// breaker. Defaults to err == nil.
	IsSuccessful func(err error) bool
}

// Breakers is a lazily populated set of named circuit breakers.
type Breakers struct {
	mu       sync.Mutex
	cfg      Config
	breakers map[string]*gobreaker.CircuitBreaker[any]
	logger   *zap.Logger
}

// New creates a breaker set, filling zero config values with defaults.
func New(cfg Config, logger *zap.Logger) *Breakers {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = defaultFailureThreshold
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = defaultOpenTimeout
	}
	if cfg.HalfOpenRequests == 0 {
		cfg.HalfOpenRequests = defaultHalfOpenRequests
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Breakers{
		cfg:      cfg,
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
		logger:   logger,
	}
}

func (b *Breakers) get(name string) *gobreaker.CircuitBreaker[any] {
	b.mu.Lock()
	defer b.mu.Unlock()

	if cb, ok := b.breakers[name]; ok {
		return cb
	}
	threshold := b.cfg.FailureThreshold
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: b.cfg.HalfOpenRequests,
		Timeout:     b.cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: b.cfg.IsSuccessful,
	})
	b.breakers[name] = cb
	return cb
}

// Execute runs fn through the breaker registered under name.
func (b *Breakers) Execute(name string, fn func() (any, error)) (any, error) {
	res, err := b.get(name).Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %s: %v", ErrOpen, name, err)
	}
	return res, err
}

// State returns the current state of the named breaker. Unknown names are
// reported as closed.
func (b *Breakers) State(name string) gobreaker.State {
	b.mu.Lock()
	cb, ok := b.breakers[name]
	b.mu.Unlock()
	if !ok {
		return gobreaker.StateClosed
	}
	return cb.State()
}

package transport

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Breaker defaults.
const (
	DefaultBreakerThreshold = 5
	DefaultBreakerRecovery  = 5 * time.Minute
)

// Breaker stops traffic to the upstream after a run of consecutive blocks or
// transient failures. After the recovery window one trial request is let
// through; its outcome closes or re-opens the breaker.
type Breaker struct {
	mu        sync.Mutex
	threshold int
	recovery  time.Duration
	failures  int
	openedAt  time.Time
	open      bool
	trial     bool
	now       func() time.Time
}

// NewBreaker creates a closed breaker.
func NewBreaker(threshold int, recovery time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = DefaultBreakerThreshold
	}
	if recovery <= 0 {
		recovery = DefaultBreakerRecovery
	}
	return &Breaker{threshold: threshold, recovery: recovery, now: time.Now}
}

// Allow reports whether a request may proceed.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open {
		return true
	}
	if b.now().Sub(b.openedAt) < b.recovery || b.trial {
		return false
	}
	b.trial = true
	log.Info().Msg("Circuit breaker half-open, allowing trial request")
	return true
}

// Record feeds the outcome of a request into the breaker. Blocks and
// transient failures count toward opening it; a success or a 404 closes it.
// Other outcomes leave the count alone.
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case err == nil || errors.Is(err, ErrNotFound):
		if b.open {
			log.Info().Msg("Circuit breaker closed")
		}
		b.failures = 0
		b.open = false
		b.trial = false

	case countsAsFailure(err):
		b.failures++
		if b.trial || (!b.open && b.failures >= b.threshold) {
			log.Warn().
				Int("failures", b.failures).
				Dur("recovery", b.recovery).
				Msg("Circuit breaker opened")
			b.open = true
			b.openedAt = b.now()
		}
		b.trial = false

	default:
		b.trial = false
	}
}

// Open reports whether the breaker is currently rejecting requests.
func (b *Breaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open
}

func countsAsFailure(err error) bool {
	return errors.Is(err, ErrBlocked) || errors.Is(err, ErrTransient)
}

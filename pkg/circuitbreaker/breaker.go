// Package circuitbreaker configures gobreaker for calls whose failure is
// tolerable, so a sick dependency is skipped instead of waited on.
package circuitbreaker

import (
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

type Settings struct {
	Name string
	// MaxFailures consecutive failures open the breaker.
	MaxFailures uint32
	// OpenTimeout is how long the breaker stays open before a half-open probe.
	OpenTimeout time.Duration
	// Ignore reports errors that should not count as failures, such as not found.
	Ignore func(err error) bool
	Logger *slog.Logger
}

func New[T any](s Settings) *gobreaker.CircuitBreaker[T] {
	if s.MaxFailures == 0 {
		s.MaxFailures = 5
	}
	if s.OpenTimeout == 0 {
		s.OpenTimeout = 30 * time.Second
	}
	maxFailures := s.MaxFailures
	ignore := s.Ignore

	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: 1,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || (ignore != nil && ignore(err))
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if s.Logger != nil {
				s.Logger.Warn("circuit breaker state changed",
					"breaker", name, "from", from.String(), "to", to.String())
			}
		},
	})
}

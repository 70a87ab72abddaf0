package db

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/unklstewy/atc-radar/internal/logging"
)

// RoleSource looks up a user's stored role.
type RoleSource interface {
	GetRole(ctx context.Context, userID int) (string, error)
}

// BreakerConfig tunes the circuit breaker around role lookups.
type BreakerConfig struct {
	FailureThreshold uint32        // consecutive failures before opening (default: 5)
	Timeout          time.Duration // open state duration before a trial (default: 30s)
	QueryTimeout     time.Duration // per-lookup deadline (default: 2s)
}

// GuardedRoles wraps a RoleSource in a circuit breaker so a database outage
// costs one fast failure per request instead of one slow one.
type GuardedRoles struct {
	source       RoleSource
	cb           *gobreaker.CircuitBreaker[string]
	queryTimeout time.Duration
}

// NewGuardedRoles creates a breaker-protected role source.
func NewGuardedRoles(source RoleSource, cfg BreakerConfig) *GuardedRoles {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.QueryTimeout == 0 {
		cfg.QueryTimeout = 2 * time.Second
	}

	log := logging.Component("db")
	settings := gobreaker.Settings{
		Name:        "user-roles",
		MaxRequests: 1,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			// Only a lost connection is an outage; a missing user is an answer.
			return err == nil || errors.Is(err, ErrUserNotFound) || !IsConnectionError(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	}

	return &GuardedRoles{
		source:       source,
		cb:           gobreaker.NewCircuitBreaker[string](settings),
		queryTimeout: cfg.QueryTimeout,
	}
}

// GetRole looks up the role through the breaker. It returns
// gobreaker.ErrOpenState while the breaker is open.
func (g *GuardedRoles) GetRole(ctx context.Context, userID int) (string, error) {
	return g.cb.Execute(func() (string, error) {
		ctx, cancel := context.WithTimeout(ctx, g.queryTimeout)
		defer cancel()
		return g.source.GetRole(ctx, userID)
	})
}

// State returns the breaker state for health reporting.
func (g *GuardedRoles) State() string {
	return g.cb.State().String()
}

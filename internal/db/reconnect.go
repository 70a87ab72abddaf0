package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/unklstewy/atc-radar/internal/logging"
	"github.com/unklstewy/atc-radar/pkg/config"
)

// ReconnectWithRetry attempts to connect to the database with exponential
// backoff, doubling initialDelay up to one minute.
//
// Parameters:
//   - ctx: cancels the wait between attempts
//   - cfg: Database configuration
//   - maxRetries: Maximum number of attempts (0 = until ctx is done)
//   - initialDelay: Initial wait time between retries
//
// Returns: Connected database or error if all retries exhausted
func ReconnectWithRetry(ctx context.Context, cfg config.DatabaseConfig, maxRetries int, initialDelay time.Duration) (*DB, error) {
	log := logging.Component("db")
	delay := initialDelay
	attempt := 0

	for {
		attempt++
		log.Debug().Int("attempt", attempt).Msg("database connection attempt")

		db, err := Connect(ctx, cfg)
		if err == nil {
			log.Info().Int("attempt", attempt).Msg("database connected")
			return db, nil
		}

		if maxRetries > 0 && attempt >= maxRetries {
			return nil, fmt.Errorf("failed to connect after %d attempts: %w", attempt, err)
		}

		log.Warn().Err(err).Dur("retry_in", delay).Msg("database connection failed")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("reconnect cancelled: %w", ctx.Err())
		case <-timer.C:
		}

		delay *= 2
		if delay > time.Minute {
			delay = time.Minute
		}
	}
}

// HealthCheck reports whether the database answers a trivial query.
func HealthCheck(ctx context.Context, db *DB) bool {
	if db == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		logging.Component("db").Warn().Err(err).Msg("health check failed")
		return false
	}
	return result == 1
}

// connErrorPatterns are substrings of driver errors caused by a lost
// connection rather than by the query.
var connErrorPatterns = []string{
	"connection refused",
	"broken pipe",
	"no connection",
	"connection reset",
	"eof",
	"timeout",
	"bad connection",
}

// IsConnectionError reports whether err looks like a lost connection.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range connErrorPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/lib/pq"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/unklstewy/atc-radar/pkg/config"
)

// TestConnString tests connection string construction.
func TestConnString(t *testing.T) {
	cfg := config.DatabaseConfig{
		Host:     "db.internal",
		Port:     5433,
		Username: "radar",
		Password: "secret",
		Database: "atcradar",
		SSLMode:  "require",
	}

	got := ConnString(cfg)
	for _, want := range []string{"host=db.internal", "port=5433", "user=radar", "password=secret", "dbname=atcradar", "sslmode=require"} {
		if !strings.Contains(got, want) {
			t.Errorf("Expected %q in %q", want, got)
		}
	}
}

// TestReconnectWithRetry tests that reconnection gives up on retries and on cancellation.
func TestReconnectWithRetry(t *testing.T) {
	cfg := config.DatabaseConfig{
		Host:     "127.0.0.1",
		Port:     1,
		Username: "nobody",
		Database: "none",
		SSLMode:  "disable",
	}

	t.Run("Max retries exceeded", func(t *testing.T) {
		_, err := ReconnectWithRetry(context.Background(), cfg, 2, time.Millisecond)
		if err == nil {
			t.Fatal("Expected error connecting to a closed port")
		}
		if !strings.Contains(err.Error(), "after 2 attempts") {
			t.Errorf("Expected attempt count in error, got: %v", err)
		}
	})

	t.Run("Context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := ReconnectWithRetry(ctx, cfg, 0, time.Hour)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got: %v", err)
		}
	})
}

// TestIsConnectionError tests classification of driver errors.
func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"), true},
		{errors.New("write: broken pipe"), true},
		{errors.New("unexpected EOF"), true},
		{fmt.Errorf("query: %w", context.DeadlineExceeded), true},
		{errors.New(`pq: relation "users" does not exist`), false},
	}
	for _, tt := range tests {
		if got := IsConnectionError(tt.err); got != tt.want {
			t.Errorf("IsConnectionError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

// TestIsUniqueViolation tests detection of duplicate usernames.
func TestIsUniqueViolation(t *testing.T) {
	dup := &pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"}
	if !isUniqueViolation(fmt.Errorf("insert: %w", dup)) {
		t.Error("Expected wrapped 23505 to be a unique violation")
	}
	if isUniqueViolation(&pq.Error{Code: "23503"}) {
		t.Error("Foreign key violation is not a unique violation")
	}
	if isUniqueViolation(errors.New("duplicate key")) {
		t.Error("Plain errors are not unique violations")
	}
}

type fakeRoles struct {
	role  string
	err   error
	calls int
}

func (f *fakeRoles) GetRole(ctx context.Context, userID int) (string, error) {
	f.calls++
	if _, ok := ctx.Deadline(); !ok {
		return "", errors.New("expected a query deadline")
	}
	return f.role, f.err
}

// TestGuardedRoles tests circuit breaker behavior around role lookups.
func TestGuardedRoles(t *testing.T) {
	t.Run("Passes through results", func(t *testing.T) {
		src := &fakeRoles{role: "PREMIUM"}
		g := NewGuardedRoles(src, BreakerConfig{})

		role, err := g.GetRole(context.Background(), 1)
		if err != nil || role != "PREMIUM" {
			t.Errorf("Expected PREMIUM, got %q, %v", role, err)
		}
	})

	t.Run("Opens after consecutive failures", func(t *testing.T) {
		src := &fakeRoles{err: errors.New("connection refused")}
		g := NewGuardedRoles(src, BreakerConfig{FailureThreshold: 3, Timeout: time.Hour})

		for i := 0; i < 3; i++ {
			_, _ = g.GetRole(context.Background(), 1)
		}
		_, err := g.GetRole(context.Background(), 1)
		if !errors.Is(err, gobreaker.ErrOpenState) {
			t.Errorf("Expected open breaker, got %v", err)
		}
		if src.calls != 3 {
			t.Errorf("Expected source untouched while open, got %d calls", src.calls)
		}
		if g.State() != "open" {
			t.Errorf("Expected state open, got %s", g.State())
		}
	})

	t.Run("Missing users do not trip", func(t *testing.T) {
		src := &fakeRoles{err: ErrUserNotFound}
		g := NewGuardedRoles(src, BreakerConfig{FailureThreshold: 2})

		for i := 0; i < 5; i++ {
			if _, err := g.GetRole(context.Background(), 1); !errors.Is(err, ErrUserNotFound) {
				t.Fatalf("Expected ErrUserNotFound, got %v", err)
			}
		}
		if g.State() != "closed" {
			t.Errorf("Expected state closed, got %s", g.State())
		}
	})

	t.Run("Query errors do not trip", func(t *testing.T) {
		src := &fakeRoles{err: errors.New(`pq: column "role" does not exist`)}
		g := NewGuardedRoles(src, BreakerConfig{FailureThreshold: 2})

		for i := 0; i < 4; i++ {
			_, _ = g.GetRole(context.Background(), 1)
		}
		if src.calls != 4 || g.State() != "closed" {
			t.Errorf("Expected closed breaker after 4 calls, got %s after %d", g.State(), src.calls)
		}
	})
}

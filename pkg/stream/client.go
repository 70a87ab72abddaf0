// Package stream consumes the radar broadcast feed and keeps it connected.
//
// A Client opens the server-sent event stream, hands every snapshot to the
// caller as a full replacement of the local view, and reconnects with
// exponential backoff whenever the stream fails or ends.
//
//	c := stream.NewClient(stream.Config{URL: "http://localhost:8080/api/atc/stream"})
//	c.OnSnapshot = func(s position.Snapshot) { ... }
//	c.OnStatus = func(st stream.Status) { ... }
//	err := c.Run(ctx) // returns when ctx is cancelled
package stream

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/unklstewy/atc-radar/internal/logging"
	"github.com/unklstewy/atc-radar/pkg/position"
)

// maxEventSize bounds one SSE data payload.
const maxEventSize = 8 << 20

var (
	// ErrBadStatus is returned when the server answers with a non-200 status.
	ErrBadStatus = errors.New("unexpected status")

	// ErrStreamClosed is returned when the server ends the stream.
	ErrStreamClosed = errors.New("stream closed by server")
)

// State is the connection state of a Client.
type State int

const (
	Connecting State = iota
	Connected
	Disconnected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Status describes a state transition.
type Status struct {
	State State

	// Attempt is the number of consecutive failures so far.
	Attempt int

	// RetryIn is the wait before the next attempt; set when Disconnected.
	RetryIn time.Duration

	// Err is the failure that caused a Disconnected transition.
	Err error
}

// Config configures a Client.
type Config struct {
	// URL of the SSE endpoint, e.g. http://host:8080/api/atc/stream
	URL string

	// Backoff schedule (default: DefaultBackoff)
	Backoff Backoff

	// HTTPClient must not set a Timeout, the stream is long-lived
	// (default: a client with no timeout)
	HTTPClient *http.Client
}

// Client drives one connection to the broadcast feed.
type Client struct {
	url     string
	backoff Backoff
	http    *http.Client
	log     zerolog.Logger

	// OnSnapshot receives every decoded snapshot. Each one replaces the
	// previous view entirely.
	OnSnapshot func(position.Snapshot)

	// OnStatus receives state transitions.
	OnStatus func(Status)
}

// NewClient creates a client for cfg.
func NewClient(cfg Config) *Client {
	if cfg.Backoff.Base <= 0 || cfg.Backoff.Cap <= 0 {
		cfg.Backoff = DefaultBackoff()
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	return &Client{
		url:     cfg.URL,
		backoff: cfg.Backoff,
		http:    cfg.HTTPClient,
		log:     logging.Component("stream"),
	}
}

// Run connects and reconnects until ctx is cancelled, then returns ctx.Err().
// The failure counter resets once a connection delivers its first snapshot.
func (c *Client) Run(ctx context.Context) error {
	attempt := 0
	for {
		c.emit(Status{State: Connecting, Attempt: attempt})

		err := c.connect(ctx, func() {
			attempt = 0
			c.emit(Status{State: Connected})
		})
		if ctx.Err() != nil {
			return ctx.Err()
		}

		delay := c.backoff.Delay(attempt)
		attempt++
		c.log.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("retry_in", delay).
			Msg("stream disconnected")
		c.emit(Status{State: Disconnected, Attempt: attempt, RetryIn: delay, Err: err})

		if err := wait(ctx, delay); err != nil {
			return err
		}
	}
}

// connect holds one stream open until it fails. onFirst runs after the
// first snapshot has been delivered.
func (c *Client) connect(ctx context.Context, onFirst func()) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
	}

	first := true
	return readEvents(resp.Body, func(data []byte) {
		var snap position.Snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			c.log.Error().Err(err).Msg("failed to decode snapshot")
			return
		}
		if first {
			first = false
			onFirst()
		}
		if c.OnSnapshot != nil {
			c.OnSnapshot(snap)
		}
	})
}

func (c *Client) emit(st Status) {
	if c.OnStatus != nil {
		c.OnStatus(st)
	}
}

// readEvents parses an SSE body and calls onData with the data of each
// complete event. Comment lines (keep-alives) are skipped.
func readEvents(body io.Reader, onData func([]byte)) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventSize)

	var data bytes.Buffer
	for scanner.Scan() {
		line := scanner.Bytes()
		switch {
		case len(line) == 0:
			if data.Len() > 0 {
				onData(bytes.Clone(data.Bytes()))
				data.Reset()
			}
		case line[0] == ':':
			// keep-alive
		case bytes.HasPrefix(line, []byte("data:")):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.Write(bytes.TrimPrefix(bytes.TrimPrefix(line, []byte("data:")), []byte(" ")))
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read stream: %w", err)
	}
	return ErrStreamClosed
}

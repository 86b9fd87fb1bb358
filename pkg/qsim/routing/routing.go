// Package routing defines the external routing adapter interface
// spec.md §9's design notes call for: a request/response channel
// contract the activity engine's preplanning-horizon hook can call
// into, with retry/backoff around it. No concrete router is
// implemented here — routing algorithms are a non-goal of the core
// simulation — but the glue is real and exercised by tests against a
// fake adapter.
package routing

import (
	"context"
	"fmt"
	"time"

	"github.com/matsim-vsp/parallel-qsim-go/pkg/qsim/config"
)

// Request asks for a route between two links for a given agent and
// mode, departing no earlier than DepartureTime.
type Request struct {
	AgentID       uint64
	Mode          string
	StartLink     uint64
	EndLink       uint64
	DepartureTime uint32
}

// Response is the adapter's answer: the link sequence of a network
// route, or a travel time/distance pair for a teleported one.
type Response struct {
	AgentID    uint64
	Links      []uint64
	TravelTime uint32
	Distance   float64
}

// Adapter is the only thing the core assumes about an external
// routing service: a non-blocking send that eventually delivers a
// Response on responseSink, or an error if the request could not be
// dispatched at all.
type Adapter interface {
	Send(ctx context.Context, req Request, responseSink chan<- Response) error
}

// Client wraps an Adapter with the bounded retry/backoff loop spec.md
// §7 requires: a 1-second backoff between attempts, up to
// retryTimeSeconds total, beyond which the failure is fatal.
type Client struct {
	adapter          Adapter
	retryTimeSeconds uint64
	backoff          time.Duration
}

// NewClient builds a Client around adapter, using the retry budget
// from cfg.
func NewClient(adapter Adapter, cfg config.ComputationalSetup) *Client {
	return &Client{
		adapter:          adapter,
		retryTimeSeconds: cfg.RetryTimeSeconds,
		backoff:          time.Second,
	}
}

// Send calls the adapter, retrying on error with a 1-second backoff
// until the retry budget is exhausted or ctx is cancelled.
func (c *Client) Send(ctx context.Context, req Request, responseSink chan<- Response) error {
	deadline := time.Duration(c.retryTimeSeconds) * time.Second
	elapsed := time.Duration(0)

	var lastErr error
	for {
		if err := c.adapter.Send(ctx, req, responseSink); err == nil {
			return nil
		} else {
			lastErr = err
		}

		if elapsed >= deadline {
			return fmt.Errorf("routing: adapter unavailable after %s: %w", elapsed, lastErr)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.backoff):
		}
		elapsed += c.backoff
	}
}

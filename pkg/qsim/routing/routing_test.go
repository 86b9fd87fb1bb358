package routing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/matsim-vsp/parallel-qsim-go/pkg/qsim/config"
)

type fakeAdapter struct {
	failures int
	calls    int
}

func (f *fakeAdapter) Send(ctx context.Context, req Request, sink chan<- Response) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("adapter temporarily unavailable")
	}
	sink <- Response{AgentID: req.AgentID, Links: []uint64{req.StartLink, req.EndLink}}
	return nil
}

func TestClientSendSucceedsWithoutRetry(t *testing.T) {
	adapter := &fakeAdapter{}
	client := NewClient(adapter, config.ComputationalSetup{RetryTimeSeconds: 5})
	client.backoff = time.Millisecond

	sink := make(chan Response, 1)
	if err := client.Send(context.Background(), Request{AgentID: 1, StartLink: 10, EndLink: 20}, sink); err != nil {
		t.Fatal(err)
	}
	if adapter.calls != 1 {
		t.Fatalf("expected exactly one adapter call, got %d", adapter.calls)
	}
	resp := <-sink
	if resp.AgentID != 1 || len(resp.Links) != 2 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestClientSendRetriesThenSucceeds(t *testing.T) {
	adapter := &fakeAdapter{failures: 2}
	client := NewClient(adapter, config.ComputationalSetup{RetryTimeSeconds: 5})
	client.backoff = time.Millisecond

	sink := make(chan Response, 1)
	if err := client.Send(context.Background(), Request{AgentID: 1}, sink); err != nil {
		t.Fatal(err)
	}
	if adapter.calls != 3 {
		t.Fatalf("expected 3 calls (2 failures + 1 success), got %d", adapter.calls)
	}
}

func TestClientSendFailsAfterRetryBudgetExhausted(t *testing.T) {
	adapter := &fakeAdapter{failures: 1000}
	client := NewClient(adapter, config.ComputationalSetup{RetryTimeSeconds: 0})
	client.backoff = time.Millisecond

	sink := make(chan Response, 1)
	err := client.Send(context.Background(), Request{AgentID: 1}, sink)
	if err == nil {
		t.Fatal("expected error once retry budget is exhausted")
	}
}

func TestClientSendRespectsContextCancellation(t *testing.T) {
	adapter := &fakeAdapter{failures: 1000}
	client := NewClient(adapter, config.ComputationalSetup{RetryTimeSeconds: 60})
	client.backoff = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	sink := make(chan Response, 1)
	err := client.Send(ctx, Request{AgentID: 1}, sink)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

package fanout

import (
	"context"
	"errors"
	"math/rand"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Sternrassler/leaderboard-archiver/internal/testutil"
	"github.com/Sternrassler/leaderboard-archiver/pkg/client"
	"github.com/Sternrassler/leaderboard-archiver/pkg/params"
)

func okFetcher() Fetcher {
	return FetcherFunc(func(ctx context.Context, d params.Descriptor) client.Outcome {
		return client.Success(d, []byte("{}"), 0)
	})
}

func TestNewExecutor_Defaults(t *testing.T) {
	e := NewExecutor(okFetcher(), Config{})
	cfg := e.Config()

	if cfg.MaxConcurrency != 32 {
		t.Errorf("MaxConcurrency = %d, want 32", cfg.MaxConcurrency)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", cfg.Timeout)
	}
	if cfg.BufferSize != params.Count {
		t.Errorf("BufferSize = %d, want %d", cfg.BufferSize, params.Count)
	}
	if cfg.Burst != 32 {
		t.Errorf("Burst = %d, want 32", cfg.Burst)
	}
	if e.limiter != nil {
		t.Error("limiter should be nil when RateLimit is 0")
	}
}

func TestRun_EveryDescriptorOnce(t *testing.T) {
	e := NewExecutor(okFetcher(), DefaultConfig())

	seen := make(map[params.Descriptor]int)
	for outcome := range e.Run(context.Background(), params.All()) {
		seen[outcome.Descriptor]++
	}

	if len(seen) != params.Count {
		t.Fatalf("distinct outcomes = %d, want %d", len(seen), params.Count)
	}
	for d, n := range seen {
		if n != 1 {
			t.Errorf("descriptor %s resolved %d times, want 1", d, n)
		}
	}
}

func TestRun_ShuffledLatencyStress(t *testing.T) {
	for round := 0; round < 5; round++ {
		rng := rand.New(rand.NewSource(int64(round)))
		delays := make(map[params.Descriptor]time.Duration, params.Count)
		for d := range params.All() {
			delays[d] = time.Duration(rng.Intn(5000)) * time.Microsecond
		}

		fetcher := FetcherFunc(func(ctx context.Context, d params.Descriptor) client.Outcome {
			time.Sleep(delays[d])
			if d.PBType == 2 && d.ControlType == 3 {
				return client.Failure(d, &client.APIError{StatusCode: 500, Status: "500 Internal Server Error", Class: client.ErrorClassServer}, delays[d])
			}
			return client.Success(d, []byte(d.Key()), delays[d])
		})

		cfg := DefaultConfig()
		cfg.MaxConcurrency = 8 + round*8
		outcomes := NewExecutor(fetcher, cfg).Collect(context.Background(), params.All())

		if len(outcomes) != params.Count {
			t.Fatalf("round %d: outcomes = %d, want %d", round, len(outcomes), params.Count)
		}

		seen := make(map[params.Descriptor]bool)
		failed := 0
		for _, o := range outcomes {
			if seen[o.Descriptor] {
				t.Errorf("round %d: duplicate outcome for %s", round, o.Descriptor)
			}
			seen[o.Descriptor] = true
			if !o.OK() {
				failed++
			} else if string(o.Body) != o.Descriptor.Key() {
				t.Errorf("round %d: body %q for %s", round, o.Body, o.Descriptor)
			}
		}
		if failed != 20 {
			t.Errorf("round %d: failed = %d, want 20", round, failed)
		}
	}
}

func TestRun_CompletionOrder(t *testing.T) {
	list := []params.Descriptor{
		{DisplayType: 1, ControlType: 0, PBType: 1},
		{DisplayType: 1, ControlType: 0, PBType: 2},
		{DisplayType: 1, ControlType: 0, PBType: 3},
	}
	delays := map[params.Descriptor]time.Duration{
		list[0]: 150 * time.Millisecond,
		list[1]: 75 * time.Millisecond,
		list[2]: 0,
	}
	fetcher := FetcherFunc(func(ctx context.Context, d params.Descriptor) client.Outcome {
		time.Sleep(delays[d])
		return client.Success(d, nil, delays[d])
	})

	cfg := DefaultConfig()
	cfg.MaxConcurrency = 3
	outcomes := NewExecutor(fetcher, cfg).Collect(context.Background(), slices.Values(list))

	if len(outcomes) != 3 {
		t.Fatalf("outcomes = %d, want 3", len(outcomes))
	}
	if outcomes[0].Descriptor != list[2] {
		t.Errorf("first completed = %s, want %s", outcomes[0].Descriptor, list[2])
	}
	if outcomes[2].Descriptor != list[0] {
		t.Errorf("last completed = %s, want %s", outcomes[2].Descriptor, list[0])
	}
}

func TestRun_ConcurrencyBound(t *testing.T) {
	var current, peak atomic.Int64
	fetcher := FetcherFunc(func(ctx context.Context, d params.Descriptor) client.Outcome {
		n := current.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		current.Add(-1)
		return client.Success(d, nil, 0)
	})

	cfg := DefaultConfig()
	cfg.MaxConcurrency = 5
	outcomes := NewExecutor(fetcher, cfg).Collect(context.Background(), params.All())

	if len(outcomes) != params.Count {
		t.Fatalf("outcomes = %d, want %d", len(outcomes), params.Count)
	}
	if peak.Load() > 5 {
		t.Errorf("peak concurrency = %d, want <= 5", peak.Load())
	}
}

func TestRun_PanicIsolated(t *testing.T) {
	poison := params.Descriptor{DisplayType: 3, ControlType: 1, PBType: 2}
	fetcher := FetcherFunc(func(ctx context.Context, d params.Descriptor) client.Outcome {
		if d == poison {
			panic("boom")
		}
		return client.Success(d, []byte("{}"), 0)
	})

	outcomes := NewExecutor(fetcher, DefaultConfig()).Collect(context.Background(), params.All())

	if len(outcomes) != params.Count {
		t.Fatalf("outcomes = %d, want %d", len(outcomes), params.Count)
	}
	for _, o := range outcomes {
		if o.Descriptor == poison {
			if o.OK() {
				t.Error("poisoned descriptor should fail")
			}
			var transportErr *client.TransportError
			if !errors.As(o.Err, &transportErr) {
				t.Errorf("Err = %T, want *client.TransportError", o.Err)
			}
			continue
		}
		if !o.OK() {
			t.Errorf("sibling %s failed: %s", o.Descriptor, o.Reason())
		}
	}
}

func TestRun_PerFetchTimeout(t *testing.T) {
	hung := params.Descriptor{DisplayType: 5, ControlType: 0, PBType: 1}
	fetcher := FetcherFunc(func(ctx context.Context, d params.Descriptor) client.Outcome {
		if d == hung {
			<-ctx.Done()
			return client.Failure(d, &client.TransportError{Class: client.ErrorClassTimeout, Err: ctx.Err()}, 0)
		}
		return client.Success(d, nil, 0)
	})

	cfg := DefaultConfig()
	cfg.Timeout = 50 * time.Millisecond

	done := make(chan []client.Outcome)
	go func() {
		done <- NewExecutor(fetcher, cfg).Collect(context.Background(), params.All())
	}()

	select {
	case outcomes := <-done:
		if len(outcomes) != params.Count {
			t.Fatalf("outcomes = %d, want %d", len(outcomes), params.Count)
		}
		for _, o := range outcomes {
			if o.Descriptor == hung && !errors.Is(o.Err, context.DeadlineExceeded) {
				t.Errorf("hung descriptor Err = %v, want deadline exceeded", o.Err)
			}
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not complete; hung fetch stalled the barrier")
	}
}

func TestRun_CancelledContextResolvesAll(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var started atomic.Int64
	fetcher := FetcherFunc(func(fctx context.Context, d params.Descriptor) client.Outcome {
		if started.Add(1) == 10 {
			cancel()
		}
		return client.Success(d, nil, 0)
	})

	cfg := DefaultConfig()
	cfg.MaxConcurrency = 2
	outcomes := NewExecutor(fetcher, cfg).Collect(ctx, params.All())

	if len(outcomes) != params.Count {
		t.Fatalf("outcomes = %d, want %d", len(outcomes), params.Count)
	}

	cancelled := 0
	for _, o := range outcomes {
		if errors.Is(o.Err, context.Canceled) {
			cancelled++
		}
	}
	if cancelled == 0 {
		t.Error("expected some outcomes to carry context.Canceled")
	}
}

func TestRun_RateLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimit = 100
	cfg.Burst = 1

	list := params.List()[:21]
	start := time.Now()
	outcomes := NewExecutor(okFetcher(), cfg).Collect(context.Background(), slices.Values(list))
	elapsed := time.Since(start)

	if len(outcomes) != len(list) {
		t.Fatalf("outcomes = %d, want %d", len(outcomes), len(list))
	}
	// 21 starts at 100/s with burst 1 need at least ~200ms
	if elapsed < 150*time.Millisecond {
		t.Errorf("elapsed = %v, want pacing to take >= 150ms", elapsed)
	}
}

func TestRun_WithClient(t *testing.T) {
	mock := testutil.NewMockLeaderboard()
	defer mock.Close()
	mock.SetResponse("1_0_1", testutil.NewServerErrorResponse())
	mock.SetFallback(func(key string) testutil.MockResponse {
		return testutil.NewSlowResponse("{}", time.Duration(len(key))*time.Millisecond)
	})

	c, err := client.New(client.DefaultConfig(mock.URL(), "token"))
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}
	defer c.Close()

	cfg := DefaultConfig()
	cfg.MaxConcurrency = 10
	outcomes := NewExecutor(c, cfg).Collect(context.Background(), params.All())

	if len(outcomes) != params.Count {
		t.Fatalf("outcomes = %d, want %d", len(outcomes), params.Count)
	}
	failed := 0
	for _, o := range outcomes {
		if !o.OK() {
			failed++
		}
	}
	if failed != 1 {
		t.Errorf("failed = %d, want 1", failed)
	}
	if mock.GetMaxInFlight() > 10 {
		t.Errorf("server saw %d concurrent requests, want <= 10", mock.GetMaxInFlight())
	}
	if mock.GetRequestCount() != params.Count {
		t.Errorf("request count = %d, want %d", mock.GetRequestCount(), params.Count)
	}
}

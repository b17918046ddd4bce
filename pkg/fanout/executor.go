package fanout

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/Sternrassler/leaderboard-archiver/pkg/client"
	"github.com/Sternrassler/leaderboard-archiver/pkg/params"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

var inFlight = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "leaderboard_fanout_inflight",
	Help: "Number of leaderboard fetches currently in flight",
})

// Config holds executor configuration
type Config struct {
	// MaxConcurrency is the maximum number of parallel fetches
	MaxConcurrency int
	// Timeout per descriptor fetch
	Timeout time.Duration
	// BufferSize of the outcome channel (default: size of the parameter space)
	BufferSize int
	// RateLimit caps fetch starts per second; 0 disables pacing
	RateLimit float64
	// Burst for the rate limiter (default: MaxConcurrency)
	Burst int
}

// DefaultConfig returns the default executor configuration
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 32,
		Timeout:        30 * time.Second,
		BufferSize:     params.Count,
	}
}

// Fetcher fetches a single descriptor. Implementations must not panic on
// request failure; failures are reported through the outcome.
type Fetcher interface {
	Fetch(ctx context.Context, d params.Descriptor) client.Outcome
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, d params.Descriptor) client.Outcome

// Fetch calls f(ctx, d).
func (f FetcherFunc) Fetch(ctx context.Context, d params.Descriptor) client.Outcome {
	return f(ctx, d)
}

// Executor fans descriptor fetches out over a worker pool
type Executor struct {
	fetcher Fetcher
	config  Config
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewExecutor creates a new executor
func NewExecutor(fetcher Fetcher, config Config) *Executor {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 32
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.BufferSize <= 0 {
		config.BufferSize = params.Count
	}
	if config.Burst <= 0 {
		config.Burst = config.MaxConcurrency
	}

	var limiter *rate.Limiter
	if config.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RateLimit), config.Burst)
	}

	return &Executor{
		fetcher: fetcher,
		config:  config,
		limiter: limiter,
		logger:  log.With().Str("component", "fanout").Logger(),
	}
}

// Config returns the effective configuration.
func (e *Executor) Config() Config {
	return e.config
}

// Run fetches every descriptor in seq and returns a channel yielding one
// outcome per descriptor in completion order. The channel is closed once all
// descriptors have resolved; the caller must drain it.
func (e *Executor) Run(ctx context.Context, seq iter.Seq[params.Descriptor]) <-chan client.Outcome {
	queue := make(chan params.Descriptor)
	outcomes := make(chan client.Outcome, e.config.BufferSize)

	// Fill queue
	go func() {
		defer close(queue)
		for d := range seq {
			queue <- d
		}
	}()

	// Start worker pool
	var wg sync.WaitGroup
	for i := 0; i < e.config.MaxConcurrency; i++ {
		wg.Add(1)
		go e.worker(ctx, queue, outcomes, &wg, i)
	}

	// Close outcomes when all workers done
	go func() {
		wg.Wait()
		close(outcomes)
	}()

	e.logger.Debug().
		Int("workers", e.config.MaxConcurrency).
		Dur("timeout", e.config.Timeout).
		Float64("rate_limit", e.config.RateLimit).
		Msg("Fan-out started")

	return outcomes
}

// Collect runs seq to completion and returns all outcomes in completion order.
func (e *Executor) Collect(ctx context.Context, seq iter.Seq[params.Descriptor]) []client.Outcome {
	var out []client.Outcome
	for outcome := range e.Run(ctx, seq) {
		out = append(out, outcome)
	}
	return out
}

// worker processes descriptors from the queue
func (e *Executor) worker(ctx context.Context, queue <-chan params.Descriptor, outcomes chan<- client.Outcome, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()
	processed := 0

	for d := range queue {
		outcomes <- e.fetchOne(ctx, d)
		processed++
	}

	if processed > 0 {
		e.logger.Debug().
			Int("worker_id", workerID).
			Int("processed", processed).
			Msg("Worker completed")
	}
}

// fetchOne resolves a single descriptor. It always returns an outcome.
func (e *Executor) fetchOne(ctx context.Context, d params.Descriptor) (outcome client.Outcome) {
	start := time.Now()

	// Cancelled runs still resolve every descriptor
	if err := ctx.Err(); err != nil {
		return client.Failure(d, &client.TransportError{Class: client.ErrorClassNetwork, Err: err}, 0)
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return client.Failure(d, &client.TransportError{Class: client.ErrorClassNetwork, Err: fmt.Errorf("rate limiter: %w", err)}, time.Since(start))
		}
	}

	inFlight.Inc()
	defer inFlight.Dec()

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().
				Str("descriptor", d.Key()).
				Interface("panic", r).
				Msg("Fetch panicked")
			outcome = client.Failure(d, &client.TransportError{Class: client.ErrorClassNetwork, Err: fmt.Errorf("panic: %v", r)}, time.Since(start))
		}
	}()

	fetchCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	outcome = e.fetcher.Fetch(fetchCtx, d)
	outcome.Descriptor = d
	return outcome
}

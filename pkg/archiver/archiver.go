// Package archiver runs one leaderboard snapshot: it fetches every descriptor
// of the parameter space, aggregates the successful bodies and writes them to a
// dated compressed archive.
//
// Usage:
//
//	cfg, err := config.Load(config.LoadOptions{})
//	if err != nil {
//	    return err
//	}
//	a, err := archiver.New(cfg)
//	if err != nil {
//	    return err
//	}
//	defer a.Close()
//
//	summary, err := a.Run(ctx)
package archiver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/leaderboard-archiver/pkg/aggregate"
	"github.com/Sternrassler/leaderboard-archiver/pkg/archive"
	"github.com/Sternrassler/leaderboard-archiver/pkg/client"
	"github.com/Sternrassler/leaderboard-archiver/pkg/config"
	"github.com/Sternrassler/leaderboard-archiver/pkg/fanout"
	"github.com/Sternrassler/leaderboard-archiver/pkg/logging"
	"github.com/Sternrassler/leaderboard-archiver/pkg/metrics"
	"github.com/Sternrassler/leaderboard-archiver/pkg/params"
	"github.com/Sternrassler/leaderboard-archiver/pkg/runstate"
)

// ErrNoSuccessfulResults is returned when every descriptor failed and no
// archive was written.
var ErrNoSuccessfulResults = errors.New("no successful archives to compress")

// Summary reports the result of a run. It is returned even when Run fails
// after the fan-out completed.
type Summary struct {
	RunID      string
	Successful int
	Failed     int
	Failures   []aggregate.Failure

	// Archive is nil when nothing was written.
	Archive *archive.Result

	StartedAt  time.Time
	FinishedAt time.Time
}

// Archiver orchestrates a run.
type Archiver struct {
	cfg     config.Config
	fetcher fanout.Fetcher
	client  *client.Client
	writer  *archive.Writer
	store   *runstate.Store
	redis   *redis.Client
	ownsRDB bool
	now     func() time.Time
	logger  zerolog.Logger
}

// Option configures an Archiver.
type Option func(*Archiver)

// WithFetcher replaces the HTTP client with f.
func WithFetcher(f fanout.Fetcher) Option {
	return func(a *Archiver) { a.fetcher = f }
}

// WithClock sets the time source for timestamps and archive dates.
func WithClock(now func() time.Time) Option {
	return func(a *Archiver) { a.now = now }
}

// WithLogger sets the base logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(a *Archiver) { a.logger = logger }
}

// WithRedis enables the run lock on an existing client. The caller keeps
// ownership of rdb.
func WithRedis(rdb *redis.Client) Option {
	return func(a *Archiver) { a.redis = rdb }
}

// New validates cfg and builds an Archiver. No request is made.
func New(cfg config.Config, opts ...Option) (*Archiver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &Archiver{
		cfg:    cfg,
		now:    time.Now,
		logger: log.With().Str("component", "archiver").Logger(),
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.fetcher == nil {
		c, err := client.New(client.Config{
			BaseURL:   cfg.BaseURL,
			Token:     cfg.Token,
			UserAgent: cfg.UserAgent,
			Timeout:   cfg.RequestTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("create client: %w", err)
		}
		a.client = c
		a.fetcher = c
	}

	if a.redis == nil && cfg.RedisAddr != "" {
		a.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		a.ownsRDB = true
	}
	if a.redis != nil {
		a.store = runstate.NewStore(a.redis, a.logger)
	}

	a.writer = archive.NewWriter(archive.Config{
		Dir:     cfg.OutputDir,
		DictCap: cfg.DictCap,
		Now:     a.now,
	})

	return a, nil
}

// Store returns the run state store, or nil when Redis is not configured.
func (a *Archiver) Store() *runstate.Store {
	return a.store
}

// Run performs one snapshot. Per-descriptor failures are reported in the
// Summary and never fail the run. The returned error is ErrNoSuccessfulResults
// when every descriptor failed, an archive error when writing failed, or
// runstate.ErrLocked when another run holds today's lock.
func (a *Archiver) Run(ctx context.Context) (Summary, error) {
	runID := uuid.NewString()
	logger := logging.WithRunID(a.logger, runID)
	started := a.now()
	date := started.Format(archive.DateLayout)

	summary := Summary{RunID: runID, StartedAt: started}

	if a.store != nil {
		if err := a.store.Acquire(ctx, date, runID, a.cfg.LockTTL); err != nil {
			logger.Error().Err(err).Msg("Failed to acquire archive lock")
			return summary, err
		}
		defer func() {
			if err := a.store.Release(context.WithoutCancel(ctx), date, runID); err != nil {
				logger.Warn().Err(err).Msg("Failed to release archive lock")
			}
		}()
	}

	executor := fanout.NewExecutor(a.fetcher, fanout.Config{
		MaxConcurrency: a.cfg.Concurrency,
		Timeout:        a.cfg.RequestTimeout,
		RateLimit:      a.cfg.RateLimit,
	})

	logger.Info().
		Int("descriptors", params.Count).
		Int("concurrency", executor.Config().MaxConcurrency).
		Str("endpoint", a.endpoint()).
		Msgf("Fetching %d leaderboard combinations", params.Count)

	agg := aggregate.New(params.Count, aggregate.WithLogger(logger))
	agg.Consume(executor.Run(ctx, params.All()))

	doc := agg.Freeze(a.now())
	summary.Successful, summary.Failed = agg.Counts()
	summary.Failures = agg.Failures()

	runDescriptors.WithLabelValues("successful").Set(float64(summary.Successful))
	runDescriptors.WithLabelValues("failed").Set(float64(summary.Failed))

	var runErr error
	if summary.Successful == 0 {
		logger.Error().Msg("No successful archives to compress!")
		runErr = ErrNoSuccessfulResults
	} else {
		res, err := a.writer.Write(doc)
		if err != nil {
			runErr = fmt.Errorf("write archive: %w", err)
		} else {
			summary.Archive = &res
			lastSuccess.Set(float64(doc.Timestamp.Unix()))
		}
	}

	summary.FinishedAt = a.now()

	logger.Info().
		Int("successful", summary.Successful).
		Int("failed", summary.Failed).
		Dur("duration", summary.FinishedAt.Sub(started)).
		Msgf("Archive completed! Successful: %d, Failed: %d", summary.Successful, summary.Failed)

	if a.store != nil {
		if err := a.store.RecordRun(context.WithoutCancel(ctx), recordFor(date, summary)); err != nil {
			logger.Warn().Err(err).Msg("Failed to record run")
		}
	}

	if err := metrics.WriteTextfile(a.cfg.MetricsFile); err != nil {
		logger.Warn().Err(err).Str("path", a.cfg.MetricsFile).Msg("Failed to export metrics")
	}

	return summary, runErr
}

// Close releases the HTTP connection pool and an owned Redis client.
func (a *Archiver) Close() error {
	var errs []error
	if a.client != nil {
		errs = append(errs, a.client.Close())
	}
	if a.ownsRDB && a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	return errors.Join(errs...)
}

func (a *Archiver) endpoint() string {
	if a.client != nil {
		return a.client.Endpoint()
	}
	return a.cfg.BaseURL + client.ScoresPath
}

func recordFor(date string, s Summary) runstate.Record {
	rec := runstate.Record{
		RunID:      s.RunID,
		Date:       date,
		Successful: s.Successful,
		Failed:     s.Failed,
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
	}
	if s.Archive != nil {
		rec.Archived = true
		rec.Path = s.Archive.Path
		rec.OriginalBytes = s.Archive.OriginalSize
		rec.CompressedBytes = s.Archive.CompressedSize
	}
	return rec
}

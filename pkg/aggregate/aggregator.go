package aggregate

import (
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/leaderboard-archiver/pkg/client"
	"github.com/Sternrassler/leaderboard-archiver/pkg/params"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// ErrDuplicate is returned when a descriptor is added twice.
	ErrDuplicate = errors.New("duplicate descriptor")

	// ErrFrozen is returned when adding to an aggregator after Freeze.
	ErrFrozen = errors.New("aggregator is frozen")
)

// DefaultProgressEvery is the number of outcomes between progress signals.
const DefaultProgressEvery = 20

// Failure records one failed descriptor.
type Failure struct {
	Descriptor params.Descriptor
	Reason     string
	Class      client.ErrorClass
}

// Progress is emitted every ProgressEvery processed outcomes.
type Progress struct {
	Processed  int
	Total      int
	Successful int
	Failed     int
}

// Aggregator consumes outcomes from a single goroutine. It is not safe for
// concurrent use; feed it from one consumer loop.
type Aggregator struct {
	total         int
	progressEvery int
	onProgress    func(Progress)
	logger        zerolog.Logger

	entries    map[params.Descriptor][]byte
	seen       map[params.Descriptor]struct{}
	failures   []Failure
	successful int
	failed     int

	doc *Document
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithLogger sets the logger used for failures and progress.
func WithLogger(logger zerolog.Logger) Option {
	return func(a *Aggregator) { a.logger = logger }
}

// WithProgressEvery overrides DefaultProgressEvery.
func WithProgressEvery(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.progressEvery = n
		}
	}
}

// WithProgressFunc registers a callback invoked on every progress signal.
func WithProgressFunc(fn func(Progress)) Option {
	return func(a *Aggregator) { a.onProgress = fn }
}

// New creates an aggregator expecting total outcomes.
func New(total int, opts ...Option) *Aggregator {
	a := &Aggregator{
		total:         total,
		progressEvery: DefaultProgressEvery,
		logger:        log.With().Str("component", "aggregator").Logger(),
		entries:       make(map[params.Descriptor][]byte),
		seen:          make(map[params.Descriptor]struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Add folds one outcome into the aggregate.
func (a *Aggregator) Add(o client.Outcome) error {
	if a.doc != nil {
		return ErrFrozen
	}

	if _, dup := a.seen[o.Descriptor]; dup {
		a.logger.Warn().
			Str("descriptor", o.Descriptor.Key()).
			Msg("Duplicate outcome ignored")
		return fmt.Errorf("%w: %s", ErrDuplicate, o.Descriptor.Key())
	}
	a.seen[o.Descriptor] = struct{}{}

	if o.OK() {
		a.entries[o.Descriptor] = o.Body
		a.successful++
	} else {
		a.failed++
		a.failures = append(a.failures, Failure{
			Descriptor: o.Descriptor,
			Reason:     o.Reason(),
			Class:      o.Class(),
		})
		a.logger.Warn().
			Str("descriptor", o.Descriptor.Key()).
			Str("error_class", string(o.Class())).
			Str("reason", o.Reason()).
			Msg("Failed to fetch leaderboard")
	}

	if processed := a.Processed(); processed%a.progressEvery == 0 {
		p := Progress{
			Processed:  processed,
			Total:      a.total,
			Successful: a.successful,
			Failed:     a.failed,
		}
		a.logger.Info().
			Int("processed", p.Processed).
			Int("total", p.Total).
			Int("successful", p.Successful).
			Int("failed", p.Failed).
			Msgf("Progress: %d/%d", p.Processed, p.Total)
		if a.onProgress != nil {
			a.onProgress(p)
		}
	}

	return nil
}

// Consume adds every outcome from ch until it is closed.
func (a *Aggregator) Consume(ch <-chan client.Outcome) {
	for o := range ch {
		// Duplicates and post-freeze adds are logged and skipped.
		_ = a.Add(o)
	}
}

// Processed returns successful + failed.
func (a *Aggregator) Processed() int {
	return a.successful + a.failed
}

// Counts returns the running success and failure counts.
func (a *Aggregator) Counts() (successful, failed int) {
	return a.successful, a.failed
}

// Failures returns the recorded failures in arrival order.
func (a *Aggregator) Failures() []Failure {
	out := make([]Failure, len(a.failures))
	copy(out, a.failures)
	return out
}

// Freeze stamps the document with now and returns it. Further Adds fail.
// Calling Freeze again returns the same document.
func (a *Aggregator) Freeze(now time.Time) *Document {
	if a.doc != nil {
		return a.doc
	}
	a.doc = &Document{Timestamp: now, entries: a.entries}
	return a.doc
}

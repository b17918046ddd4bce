package runstate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	// ErrLocked indicates another run holds the lock for the date.
	ErrLocked = errors.New("archive run already in progress")

	// ErrNotHeld indicates a release by a run that does not own the lock.
	ErrNotHeld = errors.New("lock not held by this run")

	// ErrNoRecord indicates no run has been recorded yet.
	ErrNoRecord = errors.New("no run recorded")
)

// releaseScript deletes the lock only if it still belongs to the caller.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Store persists run coordination state in Redis.
type Store struct {
	redis  *redis.Client
	logger zerolog.Logger
}

// NewStore creates a new run state store with Redis backend.
func NewStore(redisClient *redis.Client, logger zerolog.Logger) *Store {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &Store{
		redis:  redisClient,
		logger: logger,
	}
}

// Acquire takes the lock for date on behalf of runID. Returns ErrLocked if
// another run holds it.
func (s *Store) Acquire(ctx context.Context, date, runID string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}

	ok, err := s.redis.SetNX(ctx, LockKey(date), runID, ttl).Result()
	if err != nil {
		return fmt.Errorf("redis setnx: %w", err)
	}

	if !ok {
		holder, err := s.redis.Get(ctx, LockKey(date)).Result()
		if err != nil && err != redis.Nil {
			return fmt.Errorf("%w (holder unknown: %v)", ErrLocked, err)
		}
		s.logger.Warn().
			Str("date", date).
			Str("holder", holder).
			Msg("Archive lock held by another run")
		return fmt.Errorf("%w: date %s held by run %s", ErrLocked, date, holder)
	}

	s.logger.Debug().
		Str("date", date).
		Str("run_id", runID).
		Dur("ttl", ttl).
		Msg("Archive lock acquired")
	return nil
}

// Release drops the lock for date if runID still owns it.
func (s *Store) Release(ctx context.Context, date, runID string) error {
	n, err := releaseScript.Run(ctx, s.redis, []string{LockKey(date)}, runID).Int()
	if err != nil {
		return fmt.Errorf("redis release lock: %w", err)
	}
	if n == 0 {
		return ErrNotHeld
	}

	s.logger.Debug().
		Str("date", date).
		Str("run_id", runID).
		Msg("Archive lock released")
	return nil
}

// RecordRun stores rec as the last run and under its date.
func (s *Store) RecordRun(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal run record: %w", err)
	}

	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, RedisKeyLastRun, data, 0)
	pipe.HSet(ctx, RedisKeyRuns, rec.Date, data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store run record in redis: %w", err)
	}

	s.logger.Info().
		Str("run_id", rec.RunID).
		Str("date", rec.Date).
		Int("successful", rec.Successful).
		Int("failed", rec.Failed).
		Bool("archived", rec.Archived).
		Msg("Run recorded")
	return nil
}

// LastRun returns the most recently recorded run.
func (s *Store) LastRun(ctx context.Context) (*Record, error) {
	data, err := s.redis.Get(ctx, RedisKeyLastRun).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNoRecord
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return decodeRecord(data)
}

// RunForDate returns the record stored for date.
func (s *Store) RunForDate(ctx context.Context, date string) (*Record, error) {
	data, err := s.redis.HGet(ctx, RedisKeyRuns, date).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNoRecord
		}
		return nil, fmt.Errorf("redis hget: %w", err)
	}
	return decodeRecord(data)
}

func decodeRecord(data []byte) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse run record: %w", err)
	}
	return &rec, nil
}

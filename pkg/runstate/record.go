// Package runstate coordinates archive runs through Redis: a per-day lock so
// two schedulers never write the same dated archive at once, and a record of
// each finished run.
package runstate

import (
	"time"
)

// Redis keys for run state storage.
const (
	RedisKeyLockPrefix = "leaderboard:archiver:lock:"
	RedisKeyLastRun    = "leaderboard:archiver:last_run"
	RedisKeyRuns       = "leaderboard:archiver:runs"
)

// DefaultLockTTL bounds how long a crashed run can hold the daily lock.
const DefaultLockTTL = 15 * time.Minute

// Record summarizes one finished run.
type Record struct {
	// RunID is the unique identifier of the run.
	RunID string `json:"run_id"`

	// Date is the archive calendar date (YYYYMMDD).
	Date string `json:"date"`

	Successful int `json:"successful"`
	Failed     int `json:"failed"`

	// Archived is false when no archive was produced.
	Archived bool `json:"archived"`

	// Path of the archive file, empty when not archived.
	Path string `json:"path,omitempty"`

	OriginalBytes   int   `json:"original_bytes,omitempty"`
	CompressedBytes int64 `json:"compressed_bytes,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Duration returns how long the run took.
func (r *Record) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// LockKey returns the Redis key of the lock for date.
func LockKey(date string) string {
	return RedisKeyLockPrefix + date
}

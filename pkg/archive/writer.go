package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Sternrassler/leaderboard-archiver/pkg/aggregate"
	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	archiveBytes = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "leaderboard_archive_bytes",
		Help: "Size of the last written archive by stage",
	}, []string{"stage"}) // "original", "compressed"

	archiveWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leaderboard_archive_writes_total",
		Help: "Total archive writes by result",
	}, []string{"result"}) // "success", "error"
)

const (
	// DefaultDir is the directory archives are written to.
	DefaultDir = "archives"

	// DefaultPrefix starts every archive file name.
	DefaultPrefix = "leaderboard_"

	// Extension of archive files.
	Extension = ".lzma"

	// DateLayout formats the calendar date in file names.
	DateLayout = "20060102"
)

// Config holds writer configuration.
type Config struct {
	// Dir is created on demand.
	Dir string

	// Prefix of the file name, before the date.
	Prefix string

	// DictCap is the LZMA dictionary capacity in bytes.
	DictCap int

	// Now supplies the local time used for the file date (default time.Now).
	Now func() time.Time
}

// DefaultConfig returns the default writer configuration.
func DefaultConfig() Config {
	return Config{
		Dir:     DefaultDir,
		Prefix:  DefaultPrefix,
		DictCap: DefaultDictCap,
		Now:     time.Now,
	}
}

// Result reports what was written.
type Result struct {
	Path           string
	OriginalSize   int
	CompressedSize int64
}

// Ratio is compressed size as a percentage of the original size.
func (r Result) Ratio() float64 {
	if r.OriginalSize == 0 {
		return 0
	}
	return float64(r.CompressedSize) / float64(r.OriginalSize) * 100
}

// Writer writes dated archive files.
type Writer struct {
	config Config
	logger zerolog.Logger
}

// NewWriter creates a writer. Zero fields in cfg take their defaults.
func NewWriter(cfg Config) *Writer {
	def := DefaultConfig()
	if cfg.Dir == "" {
		cfg.Dir = def.Dir
	}
	if cfg.Prefix == "" {
		cfg.Prefix = def.Prefix
	}
	if cfg.DictCap <= 0 {
		cfg.DictCap = def.DictCap
	}
	if cfg.Now == nil {
		cfg.Now = def.Now
	}

	return &Writer{
		config: cfg,
		logger: log.With().Str("component", "archive").Logger(),
	}
}

// PathFor returns the archive path for the calendar date of t.
func (w *Writer) PathFor(t time.Time) string {
	return filepath.Join(w.config.Dir, w.config.Prefix+t.Format(DateLayout)+Extension)
}

// Write encodes, compresses and atomically writes doc. It returns the final
// path and size statistics. On failure no file is left at the target path
// other than a previous complete archive.
func (w *Writer) Write(doc *aggregate.Document) (res Result, err error) {
	defer func() {
		if err != nil {
			archiveWritesTotal.WithLabelValues("error").Inc()
			w.logger.Error().Err(err).Msg("Failed to compress archive")
			return
		}
		archiveWritesTotal.WithLabelValues("success").Inc()
	}()

	if doc == nil || doc.Len() == 0 {
		return Result{}, ErrEmptyDocument
	}

	payload, err := Encode(doc)
	if err != nil {
		return Result{}, err
	}

	if err := os.MkdirAll(w.config.Dir, 0o755); err != nil {
		return Result{}, &Error{Op: OpIO, Path: w.config.Dir, Err: err}
	}

	path := w.PathFor(w.config.Now())
	size, err := w.writeAtomic(path, payload)
	if err != nil {
		return Result{}, err
	}

	res = Result{
		Path:           path,
		OriginalSize:   len(payload),
		CompressedSize: size,
	}

	archiveBytes.WithLabelValues("original").Set(float64(res.OriginalSize))
	archiveBytes.WithLabelValues("compressed").Set(float64(res.CompressedSize))

	w.logger.Info().Str("path", path).Msg("LZMA archive saved")
	w.logger.Info().
		Int("original_bytes", res.OriginalSize).
		Int64("compressed_bytes", res.CompressedSize).
		Float64("ratio_pct", res.Ratio()).
		Msgf("Compression: %s → %s bytes (%.1f%%)",
			humanize.Comma(int64(res.OriginalSize)), humanize.Comma(res.CompressedSize), res.Ratio())

	return res, nil
}

// writeAtomic compresses payload into a temp file next to path and renames it.
func (w *Writer) writeAtomic(path string, payload []byte) (size int64, err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return 0, &Error{Op: OpIO, Path: path, Err: fmt.Errorf("create temp file: %w", err)}
	}
	tmpPath := tmp.Name()

	defer func() {
		if err != nil {
			tmp.Close() //nolint:errcheck // best effort cleanup on error
			os.Remove(tmpPath)
		}
	}()

	if err := Compress(tmp, payload, w.config.DictCap); err != nil {
		return 0, err
	}
	if err := tmp.Sync(); err != nil {
		return 0, &Error{Op: OpIO, Path: tmpPath, Err: fmt.Errorf("sync: %w", err)}
	}
	info, err := tmp.Stat()
	if err != nil {
		return 0, &Error{Op: OpIO, Path: tmpPath, Err: fmt.Errorf("stat: %w", err)}
	}
	if err := tmp.Close(); err != nil {
		return 0, &Error{Op: OpIO, Path: tmpPath, Err: fmt.Errorf("close: %w", err)}
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return 0, &Error{Op: OpIO, Path: tmpPath, Err: fmt.Errorf("chmod: %w", err)}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return 0, &Error{Op: OpIO, Path: path, Err: fmt.Errorf("rename: %w", err)}
	}

	return info.Size(), nil
}

// Read opens an archive file and decodes its snapshot.
func Read(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &Error{Op: OpIO, Path: path, Err: err}
	}
	defer f.Close()

	snap, err := Decode(f)
	if err != nil {
		if archErr, ok := err.(*Error); ok {
			archErr.Path = path
		}
		return nil, err
	}
	return snap, nil
}

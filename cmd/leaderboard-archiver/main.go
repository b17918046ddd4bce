package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/leaderboard-archiver/pkg/archive"
	"github.com/Sternrassler/leaderboard-archiver/pkg/archiver"
	"github.com/Sternrassler/leaderboard-archiver/pkg/config"
	"github.com/Sternrassler/leaderboard-archiver/pkg/logging"
	"github.com/Sternrassler/leaderboard-archiver/pkg/params"
	"github.com/Sternrassler/leaderboard-archiver/pkg/runstate"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// rootFlags are the command line overrides shared by all commands.
type rootFlags struct {
	configPath  string
	concurrency int
	outputDir   string
	logLevel    string
	pretty      bool
}

func newRootCmd(out io.Writer) *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:   "leaderboard-archiver",
		Short: "Fetches every leaderboard combination and writes a dated compressed archive.",
		Long: fmt.Sprintf(`Fetches all %d leaderboard combinations from <DB_LINK>/api/getScores
using USER_TOKEN and writes the successful responses to
archives/leaderboard_YYYYMMDD.lzma.`, params.Count),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runArchive(cmd.Context(), cmd, flags)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "YAML config file (default: $ARCHIVER_CONFIG or ./archiver.yaml)")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.BoolVar(&flags.pretty, "pretty", false, "human-readable console logs")

	root.Flags().IntVar(&flags.concurrency, "concurrency", 0, "maximum parallel requests")
	root.Flags().StringVar(&flags.outputDir, "output-dir", "", "archive directory")

	root.AddCommand(newInspectCmd(out), newLastRunCmd(out, flags))
	return root
}

// override applies flags that were set on cmd.
func (f *rootFlags) override(cmd *cobra.Command) func(*config.Config) {
	return func(c *config.Config) {
		if cmd.Flags().Changed("concurrency") {
			c.Concurrency = f.concurrency
		}
		if cmd.Flags().Changed("output-dir") {
			c.OutputDir = f.outputDir
		}
		if cmd.Flags().Changed("log-level") {
			c.LogLevel = f.logLevel
		}
		if cmd.Flags().Changed("pretty") {
			c.LogPretty = f.pretty
		}
	}
}

func setupLogging(cfg config.Config) {
	logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
		Output: os.Stderr,
	})
}

func runArchive(ctx context.Context, cmd *cobra.Command, flags *rootFlags) error {
	cfg, err := config.Load(config.LoadOptions{
		ConfigPath: flags.configPath,
		Override:   flags.override(cmd),
	})
	if err != nil {
		return err
	}
	setupLogging(cfg)

	log.Debug().Interface("config", cfg.Redacted()).Msg("Configuration loaded")

	a, err := archiver.New(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	_, err = a.Run(ctx)
	return err
}

func newInspectCmd(out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <archive>",
		Short: "Decompresses an archive and prints a summary of its contents.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := archive.Read(args[0])
			if err != nil {
				return err
			}
			return printSnapshot(out, args[0], snap)
		},
	}
}

func printSnapshot(out io.Writer, path string, snap *archive.Snapshot) error {
	byDisplay := make(map[int]int)
	var invalid []string
	for key := range snap.Data {
		d, err := params.ParseKey(key)
		if err != nil {
			invalid = append(invalid, key)
			continue
		}
		byDisplay[d.DisplayType]++
	}

	fmt.Fprintf(out, "Archive:   %s\n", path)
	fmt.Fprintf(out, "Timestamp: %s\n", snap.Timestamp)
	fmt.Fprintf(out, "Entries:   %d/%d\n", len(snap.Data), params.Count)

	displays := make([]int, 0, len(byDisplay))
	for dt := range byDisplay {
		displays = append(displays, dt)
	}
	sort.Ints(displays)
	perDisplay := params.Count / (params.MaxDisplayType - params.MinDisplayType + 1)
	for _, dt := range displays {
		fmt.Fprintf(out, "  display %2d: %d/%d\n", dt, byDisplay[dt], perDisplay)
	}

	if len(invalid) > 0 {
		sort.Strings(invalid)
		fmt.Fprintf(out, "Unrecognized keys: %s\n", strings.Join(invalid, ", "))
	}
	return nil
}

func newLastRunCmd(out io.Writer, flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "last-run [YYYYMMDD]",
		Short: "Prints the last recorded run, or the run of a given date, from Redis.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.LoadOptions{
				ConfigPath:     flags.configPath,
				Override:       flags.override(cmd),
				SkipValidation: true,
			})
			if err != nil {
				return err
			}
			if cfg.RedisAddr == "" {
				return errors.New("last-run requires ARCHIVER_REDIS_ADDR or redis_addr in the config file")
			}
			setupLogging(cfg)

			rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
			defer rdb.Close()
			store := runstate.NewStore(rdb, logging.NewLogger("runstate"))

			var rec *runstate.Record
			if len(args) == 1 {
				rec, err = store.RunForDate(cmd.Context(), args[0])
			} else {
				rec, err = store.LastRun(cmd.Context())
			}
			if err != nil {
				return err
			}
			printRecord(out, rec)
			return nil
		},
	}
}

func printRecord(out io.Writer, rec *runstate.Record) {
	fmt.Fprintf(out, "Run:        %s\n", rec.RunID)
	fmt.Fprintf(out, "Date:       %s\n", rec.Date)
	fmt.Fprintf(out, "Successful: %d\n", rec.Successful)
	fmt.Fprintf(out, "Failed:     %d\n", rec.Failed)
	fmt.Fprintf(out, "Duration:   %s\n", rec.Duration())
	if rec.Archived {
		fmt.Fprintf(out, "Archive:    %s (%d → %d bytes)\n", rec.Path, rec.OriginalBytes, rec.CompressedBytes)
	} else {
		fmt.Fprintln(out, "Archive:    none")
	}
}

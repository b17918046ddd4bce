// Package metrics provides the Prometheus registry used by the archiver and
// exports it for batch runs. Metrics are defined in their respective packages
// (client, fanout, archive) to keep them next to the code they measure.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Gatherer collects the metrics that promauto registers in the client, fanout,
// archive and archiver packages.
var Gatherer = prometheus.DefaultGatherer

// WriteTextfile writes all gathered metrics to path in the text exposition
// format, for the node exporter textfile collector. The file is replaced
// atomically. An empty path is a no-op.
func WriteTextfile(path string) error {
	return writeTextfile(path, Gatherer)
}

func writeTextfile(path string, g prometheus.Gatherer) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - leaderboard_requests_total{status} (Counter): Requests by HTTP status or failure class
//   - leaderboard_request_duration_seconds (Histogram): Request duration
//   - leaderboard_errors_total{class} (Counter): Failures by class (client, server, unexpected, network, timeout)
//
// Fan-out Metrics (pkg/fanout):
//   - leaderboard_fanout_inflight (Gauge): Fetches currently in flight
//
// Archive Metrics (pkg/archive):
//   - leaderboard_archive_bytes{stage} (Gauge): Last archive size, stage = original | compressed
//   - leaderboard_archive_writes_total{result} (Counter): Archive writes by result
//
// Run Metrics (pkg/archiver):
//   - leaderboard_run_descriptors{result} (Gauge): Descriptors of the last run by result
//   - leaderboard_run_last_success_timestamp_seconds (Gauge): Unix time of the last archived run
//
// Example Prometheus Queries:
//
//   # Failure share of the last run
//   leaderboard_run_descriptors{result="failed"} / ignoring(result) sum(leaderboard_run_descriptors)
//
//   # Archive older than a day
//   time() - leaderboard_run_last_success_timestamp_seconds > 86400
//
//   # Compression ratio
//   leaderboard_archive_bytes{stage="compressed"} / ignoring(stage) leaderboard_archive_bytes{stage="original"}

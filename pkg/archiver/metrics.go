package archiver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runDescriptors = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "leaderboard_run_descriptors",
		Help: "Descriptors of the last run by result",
	}, []string{"result"}) // "successful", "failed"

	lastSuccess = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "leaderboard_run_last_success_timestamp_seconds",
		Help: "Unix time of the last run that wrote an archive",
	})
)

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Sanitise run metrics
var (
	// RunDuration tracks how long whole sanitise runs take
	RunDuration prometheus.Histogram

	// PhaseDuration tracks time spent per phase
	PhaseDuration *prometheus.HistogramVec

	// FilesMovedTotal tracks media files relocated into the destination tree
	FilesMovedTotal prometheus.Counter

	// BytesMovedTotal tracks the size of relocated media files
	BytesMovedTotal prometheus.Counter

	// JunkFilesDeletedTotal tracks junk files deleted per name set (common, system)
	JunkFilesDeletedTotal *prometheus.CounterVec

	// SystemDirsDeletedTotal tracks system directory subtrees removed
	SystemDirsDeletedTotal prometheus.Counter

	// DirsPrunedTotal tracks empty directories removed
	DirsPrunedTotal prometheus.Counter

	// ErrorsTotal tracks failures by phase
	ErrorsTotal *prometheus.CounterVec

	// LastRunTimestamp records Unix timestamp of the last completed run
	LastRunTimestamp prometheus.Gauge
)

func initSanitiseMetrics() {
	RunDuration = NewDurationHistogram(
		"dumpsanitiser_run_duration_seconds",
		"Duration of sanitise runs in seconds.",
	)

	PhaseDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dumpsanitiser_phase_duration_seconds",
			Help:    "Duration of individual sanitise phases in seconds.",
			Buckets: DurationBuckets,
		},
		[]string{"phase"},
	)

	FilesMovedTotal = NewCounter(
		"dumpsanitiser_files_moved_total",
		"Total number of media files moved into the destination tree.",
	)

	BytesMovedTotal = NewBytesCounter(
		"dumpsanitiser_bytes_moved_total",
		"Total bytes of media files moved into the destination tree.",
	)

	JunkFilesDeletedTotal = NewCounterVec(
		"dumpsanitiser_junk_files_deleted_total",
		"Total number of junk files deleted.",
		[]string{"set"},
	)

	SystemDirsDeletedTotal = NewCounter(
		"dumpsanitiser_system_dirs_deleted_total",
		"Total number of system directory subtrees deleted.",
	)

	DirsPrunedTotal = NewCounter(
		"dumpsanitiser_dirs_pruned_total",
		"Total number of empty directories removed.",
	)

	ErrorsTotal = NewCounterVec(
		"dumpsanitiser_errors_total",
		"Total number of errors that stopped a phase.",
		[]string{"phase"},
	)

	LastRunTimestamp = NewGauge(
		"dumpsanitiser_last_run_timestamp",
		"Timestamp of the last completed run (Unix epoch seconds).",
	)
}

func registerSanitiseMetrics() {
	prometheus.MustRegister(RunDuration)
	prometheus.MustRegister(PhaseDuration)
	prometheus.MustRegister(FilesMovedTotal)
	prometheus.MustRegister(BytesMovedTotal)
	prometheus.MustRegister(JunkFilesDeletedTotal)
	prometheus.MustRegister(SystemDirsDeletedTotal)
	prometheus.MustRegister(DirsPrunedTotal)
	prometheus.MustRegister(ErrorsTotal)
	prometheus.MustRegister(LastRunTimestamp)
}

// RecordMove counts one relocated file
func RecordMove(bytes int64) {
	FilesMovedTotal.Inc()
	BytesMovedTotal.Add(float64(bytes))
}

// RecordPhase observes how long a phase took
func RecordPhase(phase string, elapsed time.Duration) {
	PhaseDuration.WithLabelValues(phase).Observe(elapsed.Seconds())
}

// RecordRun updates the run duration and last run timestamp
func RecordRun(elapsed time.Duration) {
	RunDuration.Observe(elapsed.Seconds())
	LastRunTimestamp.Set(float64(time.Now().Unix()))
}

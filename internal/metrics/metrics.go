package metrics

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var initOnce sync.Once

// Init initializes all metrics and registers them with Prometheus
// This function is safe to call multiple times (uses sync.Once)
func Init() {
	initOnce.Do(func() {
		initSanitiseMetrics()
		registerSanitiseMetrics()

		// Appear in the exposition before the first run completes
		LastRunTimestamp.Set(0)
	})
}

// WriteTextfile writes every registered metric to path in the text
// exposition format, for pickup by node_exporter's textfile collector
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics textfile %s: %w", path, err)
	}
	return nil
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// SetupPrometheus creates the service registry: runtime collectors, a
// gymtracker_version_info gauge labeled with the version and storage
// driver, plus any extra collectors (e.g. the pgx pool collector).
func SetupPrometheus(versionInfo, storageDriver string, extraCollectors ...prometheus.Collector) *prometheus.Registry {
	promRegistry := prometheus.NewRegistry()

	promRegistry.MustRegister(
		collectors.NewBuildInfoCollector(),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	versionGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "gymtracker",
		Name:      "version_info",
		Help:      "Always 1, labeled with the running version and storage driver.",
		ConstLabels: prometheus.Labels{
			"version": versionInfo,
			"storage": storageDriver,
		},
	})
	versionGauge.Set(1)
	promRegistry.MustRegister(versionGauge)

	for _, c := range extraCollectors {
		promRegistry.MustRegister(c)
	}

	return promRegistry
}

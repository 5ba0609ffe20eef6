package raycloud

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const sourceLabel = "source"

var (
	raysRead = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "raycloud_rays_read_total",
		Help: "The number of rays read from ray sources.",
	}, []string{
		sourceLabel,
	})

	chunksRead = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "raycloud_chunks_read_total",
		Help: "The number of chunks handed to stream visitors.",
	}, []string{
		sourceLabel,
	})

	raysWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "raycloud_rays_written_total",
		Help: "The number of rays written to ray sinks.",
	})

	surfelFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "raycloud_surfel_failures_total",
		Help: "The number of rays whose neighbourhood could not be decomposed.",
	})
)

func instrumentChunkRead(source string, n int) {
	labels := prometheus.Labels{sourceLabel: source}
	chunksRead.With(labels).Inc()
	raysRead.With(labels).Add(float64(n))
}

func instrumentRaysWritten(n int) {
	raysWritten.Add(float64(n))
}

package density

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var unsatisfiedVoxels = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "raycloud_density_unsatisfied_voxels",
	Help: "The number of hit voxels left with too few rays after the last neighbour prior pass.",
})

// Package metrics exposes Prometheus counters for the vault pipelines.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	phaseTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secretvault_remote_phase_total",
			Help: "Remote persistence phases by outcome",
		},
		[]string{"phase", "result"},
	)

	phaseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "secretvault_remote_phase_duration_seconds",
			Help:    "Remote persistence phase duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"phase"},
	)

	rejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secretvault_validation_rejections_total",
			Help: "Files rejected by the validation gate",
		},
		[]string{"reason"},
	)

	storedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secretvault_records_stored_total",
			Help: "Records persisted by backend",
		},
		[]string{"backend"},
	)

	deletesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secretvault_deletes_total",
			Help: "Record deletions by backend and outcome",
		},
		[]string{"backend", "result"},
	)

	orphansPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "secretvault_orphans_pending",
			Help: "Uploaded objects without metadata awaiting retry or purge",
		},
	)

	gallerySize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "secretvault_gallery_records",
			Help: "Records in the current gallery projection",
		},
	)
)

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordPhase counts one remote pipeline phase.
func RecordPhase(phase string, d time.Duration, err error) {
	phaseTotal.WithLabelValues(phase, result(err)).Inc()
	phaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

func RecordRejection(reason string) {
	rejectionsTotal.WithLabelValues(reason).Inc()
}

func RecordStored(backend string) {
	storedTotal.WithLabelValues(backend).Inc()
}

func RecordDelete(backend string, err error) {
	deletesTotal.WithLabelValues(backend, result(err)).Inc()
}

func SetOrphans(n int) {
	orphansPending.Set(float64(n))
}

func SetGallerySize(n int) {
	gallerySize.Set(float64(n))
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

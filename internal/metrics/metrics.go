package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg *prometheus.Registry

	// stage runs
	Emitted   *prometheus.CounterVec
	Dropped   *prometheus.CounterVec
	Published prometheus.Counter

	// response store and recovery
	Applied            prometheus.Counter
	Skipped            prometheus.Counter
	ReplayBytes        prometheus.Counter
	TTRSec             prometheus.Gauge
	LastManifestAgeSec prometheus.Gauge
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	emitted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bosim_stage_emitted_total",
		Help: "Request bodies built per stage.",
	}, []string{"stage"})
	dropped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bosim_stage_skipped_total",
		Help: "Input records a stage dropped, by reason.",
	}, []string{"stage", "reason"})
	published := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bosim_requests_published_total",
		Help: "Requests handed to the outbox.",
	})
	applied := prometheus.NewCounter(prometheus.CounterOpts{Name: "bosim_responses_applied_total"})
	skipped := prometheus.NewCounter(prometheus.CounterOpts{Name: "bosim_responses_skipped_total"})
	replayBytes := prometheus.NewCounter(prometheus.CounterOpts{Name: "bosim_replay_bytes_total"})
	ttr := prometheus.NewGauge(prometheus.GaugeOpts{Name: "bosim_recovery_ttr_seconds"})
	lastAge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "bosim_last_manifest_age_seconds"})

	r.MustRegister(emitted, dropped, published, applied, skipped, replayBytes, ttr, lastAge)
	return &Registry{
		reg:                r,
		Emitted:            emitted,
		Dropped:            dropped,
		Published:          published,
		Applied:            applied,
		Skipped:            skipped,
		ReplayBytes:        replayBytes,
		TTRSec:             ttr,
		LastManifestAgeSec: lastAge,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }

// WriteTextfile dumps the registry in text exposition format for the
// node-exporter textfile collector. One-shot stage runs use this instead of
// serving /metrics.
func (r *Registry) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

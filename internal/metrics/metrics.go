// Package metrics exposes run counters in the Prometheus text format so a
// node_exporter textfile collector can pick up batch runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Recorder struct {
	reg        *prometheus.Registry
	parsed     prometheus.Gauge
	passed     prometheus.Gauge
	reconciled prometheus.Gauge
	chunks     *prometheus.GaugeVec
	duration   prometheus.Gauge
	success    prometheus.Gauge
	lastRun    prometheus.Gauge
}

func NewRecorder() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		parsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "virfinder_sequences_parsed",
			Help: "Result rows read from chunk reports in the last run.",
		}),
		passed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "virfinder_sequences_passed",
			Help: "Rows that passed the score and p-value filter in the last run.",
		}),
		reconciled: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "virfinder_sequences_reconciled",
			Help: "Sequences written to the filtered FASTA in the last run.",
		}),
		chunks: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "virfinder_chunks",
			Help: "Chunk jobs by final status in the last run.",
		}, []string{"status"}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "virfinder_run_duration_seconds",
			Help: "Wall time of the last run.",
		}),
		success: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "virfinder_run_success",
			Help: "1 if the last run completed, 0 if it failed.",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "virfinder_run_last_timestamp_seconds",
			Help: "Unix time the last run finished.",
		}),
	}
	r.reg.MustRegister(r.parsed, r.passed, r.reconciled, r.chunks, r.duration, r.success, r.lastRun)
	return r
}

func (r *Recorder) ObserveAggregate(parsed, passed int) {
	r.parsed.Set(float64(parsed))
	r.passed.Set(float64(passed))
}

func (r *Recorder) ObserveReconciled(n int) {
	r.reconciled.Set(float64(n))
}

// ObserveChunks records the status tally of the chunk jobs.
func (r *Recorder) ObserveChunks(counts map[string]int) {
	for status, n := range counts {
		r.chunks.WithLabelValues(status).Set(float64(n))
	}
}

func (r *Recorder) ObserveRun(d time.Duration, ok bool, finished time.Time) {
	r.duration.Set(d.Seconds())
	if ok {
		r.success.Set(1)
	} else {
		r.success.Set(0)
	}
	r.lastRun.Set(float64(finished.Unix()))
}

// WriteTextfile atomically writes all metrics to path.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.reg)
}

package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wamarketing"

// Outcome labels.
const (
	OutcomeAccepted       = "accepted"
	OutcomeFailed         = "failed"
	OutcomeSkipped        = "skipped"
	OutcomeSent           = "sent"
	OutcomeAlreadySent    = "already_sent"
	OutcomeContactMissing = "contact_missing"
)

// Recorder owns a private registry. A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	contacts     *prometheus.CounterVec
	messages     *prometheus.CounterVec
	provider     *prometheus.CounterVec
	runDuration  prometheus.Histogram
	runsTotal    *prometheus.CounterVec
	lastRunStamp prometheus.Gauge
}

func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		contacts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "contacts_total",
			Help:      "Contact sync outcomes.",
		}, []string{"outcome"}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Message dispatch outcomes per campaign table.",
		}, []string{"table", "outcome"}),
		provider: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "HTTP attempts against the messaging provider.",
		}, []string{"op", "status"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a full run.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Completed runs by result.",
		}, []string{"result"}),
		lastRunStamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
	}

	r.registry.MustRegister(
		r.contacts,
		r.messages,
		r.provider,
		r.runDuration,
		r.runsTotal,
		r.lastRunStamp,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) Contact(outcome string) {
	if r == nil {
		return
	}
	r.contacts.WithLabelValues(outcome).Inc()
}

func (r *Recorder) Message(table, outcome string) {
	if r == nil {
		return
	}
	r.messages.WithLabelValues(table, outcome).Inc()
}

// ProviderRequest counts one HTTP attempt; status 0 is reported as "error".
func (r *Recorder) ProviderRequest(op string, status int) {
	if r == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	r.provider.WithLabelValues(op, label).Inc()
}

func (r *Recorder) ObserveRun(d time.Duration, err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.runDuration.Observe(d.Seconds())
	r.runsTotal.WithLabelValues(result).Inc()
	r.lastRunStamp.SetToCurrentTime()
}

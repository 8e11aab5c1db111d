package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the clip studio.
type Metrics struct {
	registry                     *prometheus.Registry
	requestsTotal                prometheus.Counter
	errorsTotal                  prometheus.Counter
	activeClips                  prometheus.Gauge
	processorAddRequestsTotal    prometheus.Counter
	processorRemoveRequestsTotal prometheus.Counter
	resolutionFailuresTotal      prometheus.Counter
	historyTotal                 *prometheus.CounterVec
	renderBlocksTotal            prometheus.Counter
	renderSkipsTotal             prometheus.Counter
}

// New creates and registers Prometheus metrics for the studio.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "clip_requests_total",
		Help: "Total number of HTTP requests received",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "clip_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})
	activeClips := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "clip_active_clips",
		Help: "Number of clips on the track",
	})
	processorAddRequestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "clip_processor_add_requests_total",
		Help: "Total number of successful requests adding a transform unit",
	})
	processorRemoveRequestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "clip_processor_remove_requests_total",
		Help: "Total number of successful requests removing a transform unit",
	})
	resolutionFailuresTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "clip_resolution_failures_total",
		Help: "Total number of transform units that could not be resolved",
	})
	historyTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "clip_history_operations_total",
		Help: "Total number of undo and redo operations",
	}, []string{"operation"})
	renderBlocksTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "clip_render_blocks_total",
		Help: "Total number of blocks rendered by the player",
	})
	renderSkipsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "clip_render_skips_total",
		Help: "Total number of clip renders skipped because the chain was being edited",
	})

	registry.MustRegister(
		requestsTotal,
		errorsTotal,
		activeClips,
		processorAddRequestsTotal,
		processorRemoveRequestsTotal,
		resolutionFailuresTotal,
		historyTotal,
		renderBlocksTotal,
		renderSkipsTotal,
	)

	return &Metrics{
		registry:                     registry,
		requestsTotal:                requestsTotal,
		errorsTotal:                  errorsTotal,
		activeClips:                  activeClips,
		processorAddRequestsTotal:    processorAddRequestsTotal,
		processorRemoveRequestsTotal: processorRemoveRequestsTotal,
		resolutionFailuresTotal:      resolutionFailuresTotal,
		historyTotal:                 historyTotal,
		renderBlocksTotal:            renderBlocksTotal,
		renderSkipsTotal:             renderSkipsTotal,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// SetActiveClips sets the active clips gauge.
func (m *Metrics) SetActiveClips(n int) {
	m.activeClips.Set(float64(n))
}

// IncProcessorAddRequests counts a successful add-processor request.
func (m *Metrics) IncProcessorAddRequests() { m.processorAddRequestsTotal.Inc() }

// IncProcessorRemoveRequests counts a successful remove-processor request.
func (m *Metrics) IncProcessorRemoveRequests() { m.processorRemoveRequestsTotal.Inc() }

// IncResolutionFailures counts a media source or unit that could not be resolved.
func (m *Metrics) IncResolutionFailures() { m.resolutionFailuresTotal.Inc() }

// IncHistory counts an undo or redo; op is "undo" or "redo".
func (m *Metrics) IncHistory(op string) {
	m.historyTotal.WithLabelValues(op).Inc()
}

// AddRender records one rendered block and the clips skipped within it.
func (m *Metrics) AddRender(skipped int) {
	m.renderBlocksTotal.Inc()
	if skipped > 0 {
		m.renderSkipsTotal.Add(float64(skipped))
	}
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values (e.g. active clips).
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}

// Package metrics собирает prometheus-метрики HTTP, websocket и доменных событий.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "volley"

type Metrics struct {
	registry *prometheus.Registry

	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	eventsHandled *prometheus.CounterVec
	statusSyncs   *prometheus.CounterVec
	statusChanged prometheus.Counter
}

// New registers the collectors on a fresh registry. clientCount reports the
// number of open websocket connections and may be nil.
func New(clientCount func() int) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern, method and status code.",
		}, []string{"route", "method", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		eventsHandled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_handled_total",
			Help:      "Domain events handled by the event router.",
		}, []string{"handler", "result"}),
		statusSyncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_sync_runs_total",
			Help:      "Runs of the tournament status scheduler.",
		}, []string{"result"}),
		statusChanged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_sync_changed_total",
			Help:      "Tournaments whose status the scheduler changed.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.eventsHandled,
		m.statusSyncs,
		m.statusChanged,
	)
	if clientCount != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_clients",
			Help:      "Open websocket connections.",
		}, func() float64 { return float64(clientCount()) }))
	}
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler отдаёт /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware меряет запросы по шаблону маршрута chi, а не по сырому пути,
// чтобы id в URL не раздували кардинальность.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpRequests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

// CountEvents is a watermill router middleware.
func (m *Metrics) CountEvents(h message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		handler := message.HandlerNameFromCtx(msg.Context())
		out, err := h(msg)
		result := "ok"
		if err != nil {
			result = "error"
		}
		m.eventsHandled.WithLabelValues(handler, result).Inc()
		return out, err
	}
}

// StatusSync records one scheduler run.
func (m *Metrics) StatusSync(changed int, err error) {
	if err != nil {
		m.statusSyncs.WithLabelValues("error").Inc()
		return
	}
	m.statusSyncs.WithLabelValues("ok").Inc()
	m.statusChanged.Add(float64(changed))
}

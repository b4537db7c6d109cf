package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vidshare"

// Recorder owns a private Prometheus registry and the collectors registered on
// it. Each Recorder is independent so tests can assert on a fresh instance.
type Recorder struct {
	registry *prometheus.Registry

	httpRequests        *prometheus.CounterVec
	httpDuration        *prometheus.HistogramVec
	storeMutations      *prometheus.CounterVec
	persistDuration     prometheus.Histogram
	reactionTransitions *prometheus.CounterVec
	realtimeConnections prometheus.Gauge
	realtimeRooms       prometheus.Gauge
	realtimeDeliveries  *prometheus.CounterVec
	feedRankings        *prometheus.CounterVec
	counterDrift        *prometheus.CounterVec
}

var (
	defaultMu       sync.RWMutex
	defaultRecorder = New()
)

// New constructs a Recorder with every vidshare collector registered.
func New() *Recorder {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &Recorder{
		registry: registry,
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		storeMutations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_mutations_total",
			Help:      "Entity store mutations by operation and result.",
		}, []string{"op", "result"}),
		persistDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_persist_duration_seconds",
			Help:      "Time spent writing the store snapshot.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		reactionTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reaction_transitions_total",
			Help:      "Reaction toggle transitions by source and destination state.",
		}, []string{"from", "to"}),
		realtimeConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "realtime_connections",
			Help:      "Open realtime connections.",
		}),
		realtimeRooms: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "realtime_rooms",
			Help:      "Rooms with at least one member.",
		}),
		realtimeDeliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realtime_deliveries_total",
			Help:      "Room broadcast deliveries by result.",
		}, []string{"result"}),
		feedRankings: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_rankings_total",
			Help:      "Feed ranking calls by mode.",
		}, []string{"mode"}),
		counterDrift: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "counter_drift_total",
			Help:      "Derived counters found out of sync with their detail rows.",
		}, []string{"counter"}),
	}
}

// Default returns the process-wide recorder.
func Default() *Recorder {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultRecorder
}

// SetDefault swaps the process-wide recorder. A nil recorder is ignored.
func SetDefault(r *Recorder) {
	if r == nil {
		return
	}
	defaultMu.Lock()
	defaultRecorder = r
	defaultMu.Unlock()
}

// Registry exposes the underlying registry so callers can attach extra
// collectors or gather in tests.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// RegisterRuntimeCollectors adds the Go runtime and process collectors.
func (r *Recorder) RegisterRuntimeCollectors() {
	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Recorder) ObserveRequest(method, route string, status int, duration time.Duration) {
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unmatched"
	}
	r.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (r *Recorder) StoreMutation(op, result string) {
	r.storeMutations.WithLabelValues(normalizeName(op), normalizeName(result)).Inc()
}

func (r *Recorder) ObservePersist(duration time.Duration) {
	r.persistDuration.Observe(duration.Seconds())
}

func (r *Recorder) ReactionTransition(from, to string) {
	r.reactionTransitions.WithLabelValues(normalizeName(from), normalizeName(to)).Inc()
}

func (r *Recorder) ConnectionOpened() {
	r.realtimeConnections.Inc()
}

func (r *Recorder) ConnectionClosed() {
	r.realtimeConnections.Dec()
}

func (r *Recorder) SetRooms(count int) {
	r.realtimeRooms.Set(float64(count))
}

func (r *Recorder) Deliveries(result string, count int) {
	if count <= 0 {
		return
	}
	r.realtimeDeliveries.WithLabelValues(normalizeName(result)).Add(float64(count))
}

func (r *Recorder) FeedRanked(mode string) {
	r.feedRankings.WithLabelValues(normalizeName(mode)).Inc()
}

func (r *Recorder) CounterDrift(counter string, count int) {
	if count <= 0 {
		return
	}
	r.counterDrift.WithLabelValues(normalizeName(counter)).Add(float64(count))
}

func normalizeName(name string) string {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}

// Handler serves the default recorder.
func Handler() http.Handler {
	return Default().Handler()
}

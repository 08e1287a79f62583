package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the audio server.
type Metrics struct {
	registry           *prometheus.Registry
	requestsTotal      *prometheus.CounterVec
	errorsTotal        prometheus.Counter
	sessionsTotal      *prometheus.CounterVec
	itemsPlayedTotal   *prometheus.CounterVec
	deviceUnavailable  prometheus.Counter
	logWriteFailures   prometheus.Counter
	playlistRejections prometheus.Counter
	playbackDuration   *prometheus.HistogramVec
	playlistsLoaded    prometheus.Gauge
	assetsLoaded       prometheus.Gauge
	inFlight           prometheus.Gauge
}

// New creates and registers Prometheus metrics for the audio server.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "audioserver_requests_total",
		Help: "Total number of HTTP requests received",
	}, []string{"route", "code"})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "audioserver_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})
	sessionsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "audioserver_sessions_total",
		Help: "Playback sessions by kind and final state",
	}, []string{"kind", "outcome"})
	itemsPlayedTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "audioserver_items_played_total",
		Help: "Items that finished playing, by session kind",
	}, []string{"kind"})
	deviceUnavailable := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "audioserver_device_unavailable_total",
		Help: "Sessions aborted because no audio output could be opened",
	})
	logWriteFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "audioserver_log_write_failures_total",
		Help: "Session log rows that could not be written",
	})
	playlistRejections := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "audioserver_playlist_rejections_total",
		Help: "Playlist files rejected during reload",
	})
	playbackDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "audioserver_playback_duration_seconds",
		Help:    "Wall time of playback sessions",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 900},
	}, []string{"kind"})
	playlistsLoaded := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "audioserver_playlists_loaded",
		Help: "Number of playlists in the active mapping",
	})
	assetsLoaded := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "audioserver_assets_loaded",
		Help: "Number of decoded audio assets held in memory",
	})
	inFlight := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "audioserver_requests_in_flight",
		Help: "Requests currently being served, including those waiting for the player",
	})

	registry.MustRegister(
		requestsTotal,
		errorsTotal,
		sessionsTotal,
		itemsPlayedTotal,
		deviceUnavailable,
		logWriteFailures,
		playlistRejections,
		playbackDuration,
		playlistsLoaded,
		assetsLoaded,
		inFlight,
	)

	return &Metrics{
		registry:           registry,
		requestsTotal:      requestsTotal,
		errorsTotal:        errorsTotal,
		sessionsTotal:      sessionsTotal,
		itemsPlayedTotal:   itemsPlayedTotal,
		deviceUnavailable:  deviceUnavailable,
		logWriteFailures:   logWriteFailures,
		playlistRejections: playlistRejections,
		playbackDuration:   playbackDuration,
		playlistsLoaded:    playlistsLoaded,
		assetsLoaded:       assetsLoaded,
		inFlight:           inFlight,
	}
}

// IncRequests counts one request for route with the given status code.
func (m *Metrics) IncRequests(route string, status int) {
	m.requestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// ObserveSession records a finished playback session.
func (m *Metrics) ObserveSession(kind, outcome string, played int, elapsed time.Duration) {
	m.sessionsTotal.WithLabelValues(kind, outcome).Inc()
	m.itemsPlayedTotal.WithLabelValues(kind).Add(float64(played))
	m.playbackDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// IncDeviceUnavailable increments the device unavailable counter.
func (m *Metrics) IncDeviceUnavailable() {
	m.deviceUnavailable.Inc()
}

// IncLogWriteFailures increments the log write failure counter.
func (m *Metrics) IncLogWriteFailures() {
	m.logWriteFailures.Inc()
}

// AddPlaylistRejections adds n rejected playlist files.
func (m *Metrics) AddPlaylistRejections(n int) {
	m.playlistRejections.Add(float64(n))
}

// SetPlaylistsLoaded sets the loaded playlists gauge.
func (m *Metrics) SetPlaylistsLoaded(n int) {
	m.playlistsLoaded.Set(float64(n))
}

// SetAssetsLoaded sets the loaded assets gauge.
func (m *Metrics) SetAssetsLoaded(n int) {
	m.assetsLoaded.Set(float64(n))
}

// RequestStarted and RequestDone track requests in flight.
func (m *Metrics) RequestStarted() { m.inFlight.Inc() }
func (m *Metrics) RequestDone()    { m.inFlight.Dec() }

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		h.ServeHTTP(w, r)
	})
}

package monitor

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/banshee-data/crossing.report/internal/timeutil"
	"github.com/banshee-data/crossing.report/internal/tracking"
)

// storeCollector reads the store at scrape time. The running tally drops
// back to zero on reload or reset, so it is exported as a gauge.
type storeCollector struct {
	store *tracking.Store

	crossings *prometheus.Desc
	tracks    *prometheus.Desc
	points    *prometheus.Desc
	people    *prometheus.Desc
	frame     *prometheus.Desc
}

func newStoreCollector(store *tracking.Store) *storeCollector {
	return &storeCollector{
		store: store,
		crossings: prometheus.NewDesc("crossing_running_crossings",
			"Crossings of the reference since the last load or reset, by direction.",
			[]string{"direction"}, nil),
		tracks: prometheus.NewDesc("crossing_tracks", "Trajectories held by the store.", nil, nil),
		points: prometheus.NewDesc("crossing_points", "Detections held by the store.", nil, nil),
		people: prometheus.NewDesc("crossing_people", "Trajectories whose dominant label is person.", nil, nil),
		frame:  prometheus.NewDesc("crossing_frame", "Current live frame counter.", nil, nil),
	}
}

func (c *storeCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.crossings
	ch <- c.tracks
	ch <- c.points
	ch <- c.people
	ch <- c.frame
}

func (c *storeCollector) Collect(ch chan<- prometheus.Metric) {
	st := c.store.Stats()
	ch <- prometheus.MustNewConstMetric(c.crossings, prometheus.GaugeValue, float64(st.Running.Clockwise), tracking.Clockwise.String())
	ch <- prometheus.MustNewConstMetric(c.crossings, prometheus.GaugeValue, float64(st.Running.CounterClockwise), tracking.CounterClockwise.String())
	ch <- prometheus.MustNewConstMetric(c.tracks, prometheus.GaugeValue, float64(st.Tracks))
	ch <- prometheus.MustNewConstMetric(c.points, prometheus.GaugeValue, float64(st.Points))
	ch <- prometheus.MustNewConstMetric(c.people, prometheus.GaugeValue, float64(st.People))
	ch <- prometheus.MustNewConstMetric(c.frame, prometheus.GaugeValue, float64(st.Frame))
}

// metrics owns a registry per server so several monitors can share a
// process.
type metrics struct {
	registry *prometheus.Registry
	clock    timeutil.Clock

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	ingested prometheus.Counter
}

func newMetrics(store *tracking.Store, clock timeutil.Clock) *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		clock:    clock,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crossing_http_requests_total",
			Help: "HTTP requests handled by route and status.",
		}, []string{"route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crossing_http_request_duration_seconds",
			Help:    "HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		ingested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crossing_ingested_detections_total",
			Help: "Detections ingested one at a time through the API.",
		}),
	}
	m.registry.MustRegister(m.requests, m.duration, m.ingested, newStoreCollector(store))
	return m
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func (m *metrics) wrap(route string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := m.clock.Now()

		next.ServeHTTP(rec, r)

		m.requests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		m.duration.WithLabelValues(route).Observe(m.clock.Since(start).Seconds())
	})
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

package rest

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	clusterDuration prometheus.Histogram
	levels          prometheus.Gauge
	songs           prometheus.Gauge
	level           prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "songmap",
			Name:      "http_requests_total",
			Help:      "Number of http requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "songmap",
			Name:      "http_request_duration_seconds",
			Help:      "Duration of http requests by route and method.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"route", "method"}),
		clusterDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "songmap",
			Name:      "cluster_build_duration_seconds",
			Help:      "Time spent building the level ladder.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}),
		levels: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "songmap",
			Name:      "levels",
			Help:      "Number of levels above level 0.",
		}),
		songs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "songmap",
			Name:      "songs",
			Help:      "Number of songs on level 0.",
		}),
		level: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "songmap",
			Name:      "current_level",
			Help:      "Level currently shown.",
		}),
	}
	reg.MustRegister(m.requests, m.requestDuration, m.clusterDuration, m.levels, m.songs, m.level)
	return m
}

// ObserveCluster records one finished build of the level ladder.
func (m *Metrics) ObserveCluster(took time.Duration, maxLevel, songs int) {
	m.clusterDuration.Observe(took.Seconds())
	m.levels.Set(float64(maxLevel))
	m.songs.Set(float64(songs))
}

func (m *Metrics) SetLevel(level int) {
	m.level.Set(float64(level))
}

// PromeHttpMiddleware counts requests per chi route pattern, raw paths would blow up the label set.
func PromeHttpMiddleware(m *Metrics) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			m.requests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
			m.requestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
		})
	}
}

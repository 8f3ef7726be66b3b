package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"match-collector/internal/logger"
)

const namespace = "match_collector"

// Collector groups the Prometheus collectors used by the client and the pipeline.
// All methods are nil-safe so components can run without metrics.
type Collector struct {
	Requests  *prometheus.CounterVec
	Retries   *prometheus.CounterVec
	InFlight  prometheus.Gauge
	Matches   *prometheus.CounterVec
	Rows      *prometheus.CounterVec
	Units     *prometheus.CounterVec
	UnitTimes prometheus.Histogram
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Upstream API calls by outcome (ok, rate_limited, transport_fault, hard_failure).",
		}, []string{"outcome"}),
		Retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_retries_total",
			Help:      "Retries issued by the rate-limited client by reason.",
		}, []string{"reason"}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "upstream_in_flight",
			Help:      "Upstream calls currently holding an admission slot.",
		}),
		Matches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_total",
			Help:      "Matches by pipeline outcome (fetched, dropped, key_rejected, malformed, skipped).",
		}, []string{"outcome"}),
		Rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_total",
			Help:      "Rows produced by table (matches, timeline).",
		}, []string{"table"}),
		Units: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "units_total",
			Help:      "Tier/division units by outcome (ok, failed).",
		}, []string{"outcome"}),
		UnitTimes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "unit_duration_seconds",
			Help:      "Wall time of one tier/division unit.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 14),
		}),
	}

	if reg != nil {
		reg.MustRegister(c.Requests, c.Retries, c.InFlight, c.Matches, c.Rows, c.Units, c.UnitTimes)
	}
	return c
}

func (c *Collector) Request(outcome string) {
	if c == nil {
		return
	}
	c.Requests.WithLabelValues(outcome).Inc()
}

func (c *Collector) Retry(reason string) {
	if c == nil {
		return
	}
	c.Retries.WithLabelValues(reason).Inc()
}

func (c *Collector) SlotAcquired() {
	if c == nil {
		return
	}
	c.InFlight.Inc()
}

func (c *Collector) SlotReleased() {
	if c == nil {
		return
	}
	c.InFlight.Dec()
}

func (c *Collector) Match(outcome string, n int) {
	if c == nil || n == 0 {
		return
	}
	c.Matches.WithLabelValues(outcome).Add(float64(n))
}

func (c *Collector) RowsWritten(table string, n int) {
	if c == nil || n == 0 {
		return
	}
	c.Rows.WithLabelValues(table).Add(float64(n))
}

func (c *Collector) Unit(outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.Units.WithLabelValues(outcome).Inc()
	c.UnitTimes.Observe(d.Seconds())
}

// Serve exposes reg on addr at /metrics until ctx is cancelled.
func Serve(ctx context.Context, addr string, reg prometheus.Gatherer) {
	log := logger.Component("metrics")

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	go func() {
		log.WithFields(logger.Fields{"addr": addr}).Info("metrics endpoint listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("metrics endpoint stopped")
		}
	}()
}

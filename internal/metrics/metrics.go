// Package metrics exposes dashboard core counters in Prometheus format.
//
// A Collector subscribes to the event bus and turns router, timer and widget
// events into counters on its own registry, so tests and multiple dashboards
// in one process never collide on the default registry.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aridash/ari/internal/event"
	"github.com/aridash/ari/internal/logging"
)

const namespace = "ari"

// Collector holds the dashboard metrics.
type Collector struct {
	registry *prometheus.Registry

	evicted        *prometheus.CounterVec
	rejected       *prometheus.CounterVec
	stale          *prometheus.CounterVec
	dispatchFailed *prometheus.CounterVec
	batchSize      prometheus.Histogram
	batchDuration  prometheus.Histogram
	timerFired     *prometheus.CounterVec
	timerCancelled *prometheus.CounterVec
	timerRaces     *prometheus.CounterVec
	scrollFlushes  *prometheus.CounterVec
	renders        *prometheus.CounterVec
	suppressed     prometheus.Counter
	configReloads  prometheus.Counter

	subscription string
	bus          *event.Bus
}

// New creates a Collector with a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		evicted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "router", Name: "evicted_total",
			Help: "Queued messages evicted because the queue was full.",
		}, []string{"target"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "router", Name: "rejected_total",
			Help: "Incoming non-final messages dropped because the queue held only final messages.",
		}, []string{"target"}),
		stale: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "router", Name: "stale_total",
			Help: "Messages dropped because a newer one for the target was already dispatched.",
		}, []string{"target"}),
		dispatchFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "router", Name: "dispatch_failed_total",
			Help: "Messages whose dispatch failed.",
		}, []string{"target"}),
		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "router", Name: "batch_size",
			Help:    "Messages dispatched per batch cycle.",
			Buckets: []float64{1, 2, 5, 10, 20, 50},
		}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "router", Name: "batch_duration_seconds",
			Help:    "Time spent dispatching one batch cycle.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		timerFired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "timer", Name: "fired_total",
			Help: "Timers that fired.",
		}, []string{"registry"}),
		timerCancelled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "timer", Name: "cancelled_total",
			Help: "Timers cancelled before firing.",
		}, []string{"registry"}),
		timerRaces: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "timer", Name: "races_total",
			Help: "Timer and render-guard races detected.",
		}, []string{"registry"}),
		scrollFlushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "scroll", Name: "flushes_total",
			Help: "Debounced scroll-to-end actions run.",
		}, []string{"widget", "found"}),
		renders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "widget", Name: "renders_total",
			Help: "Coalesced renders completed.",
		}, []string{"widget", "follow_up"}),
		suppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "notices", Name: "suppressed_total",
			Help: "Notices hidden as duplicates.",
		}),
		configReloads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "config", Name: "reloads_total",
			Help: "Configuration hot reloads.",
		}),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.evicted, c.rejected, c.stale, c.dispatchFailed,
		c.batchSize, c.batchDuration,
		c.timerFired, c.timerCancelled, c.timerRaces,
		c.scrollFlushes, c.renders, c.suppressed, c.configReloads,
	)
	return c
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// RegisterGauge adds a gauge whose value is read from fn at scrape time.
// fn must be safe to call from any goroutine.
func (c *Collector) RegisterGauge(subsystem, name, help string, fn func() float64) error {
	return c.registry.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: subsystem, Name: name, Help: help,
	}, fn))
}

// Attach subscribes the collector to every event on bus. Calling Attach again
// moves the subscription to the new bus.
func (c *Collector) Attach(bus *event.Bus) {
	c.Detach()
	c.bus = bus
	c.subscription = bus.SubscribeAll(c.Observe)
}

// Detach removes the bus subscription, if any.
func (c *Collector) Detach() {
	if c.bus != nil {
		c.bus.Unsubscribe(c.subscription)
		c.bus = nil
	}
}

// Observe records e. Unknown events are ignored.
func (c *Collector) Observe(e event.Event) {
	switch ev := e.(type) {
	case event.MessageDroppedEvent:
		switch ev.EventType() {
		case event.TypeMessageEvicted:
			c.evicted.WithLabelValues(ev.Target).Inc()
		case event.TypeMessageRejected:
			c.rejected.WithLabelValues(ev.Target).Inc()
		case event.TypeMessageStale:
			c.stale.WithLabelValues(ev.Target).Inc()
		}
	case event.DispatchFailedEvent:
		c.dispatchFailed.WithLabelValues(ev.Target).Inc()
	case event.BatchProcessedEvent:
		c.batchSize.Observe(float64(ev.Size))
		c.batchDuration.Observe(ev.Duration.Seconds())
	case event.TimerEvent:
		switch ev.EventType() {
		case event.TypeTimerFired:
			c.timerFired.WithLabelValues(ev.Registry).Inc()
		case event.TypeTimerCancelled:
			c.timerCancelled.WithLabelValues(ev.Registry).Inc()
		case event.TypeTimerRace:
			c.timerRaces.WithLabelValues(ev.Registry).Inc()
		}
	case event.ScrollFlushedEvent:
		c.scrollFlushes.WithLabelValues(ev.WidgetID, boolLabel(ev.Found)).Inc()
	case event.RenderCompletedEvent:
		c.renders.WithLabelValues(ev.WidgetID, boolLabel(ev.FollowUp)).Inc()
	case event.NoticeSuppressedEvent:
		c.suppressed.Inc()
	case event.ConfigReloadedEvent:
		c.configReloads.Inc()
	}
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (c *Collector) Serve(ctx context.Context, addr string, logger *logging.Logger) error {
	if logger == nil {
		logger = logging.NopLogger()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown failed", "error", err)
		}
		return nil
	}
}

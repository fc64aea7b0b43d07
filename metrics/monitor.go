package metrics

import (
	"net"
	"net/http"
	"sync"
	"time"

	"vpresent/log"
	"vpresent/media"
	"vpresent/util/timer"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	readSuccess = 200

	DefaultSampleInterval = 10 * time.Second
)

type Options struct {
	SampleInterval time.Duration
}

type Option func(*Options)

func OptionWithSampleInterval(d time.Duration) Option {
	return func(o *Options) {
		o.SampleInterval = d
	}
}

// Monitor collects presenter and scheduler metrics on its own registry.
type Monitor struct {
	sync.Mutex
	ServiceName string

	opts     Options
	registry *prometheus.Registry
	ticker   timer.Ticker
	srv      *http.Server

	FramesPresented *prometheus.CounterVec
	FramesLate      *prometheus.CounterVec
	FramesDiscarded *prometheus.CounterVec
	PresentDuration *prometheus.HistogramVec
	SyncOffset      *prometheus.HistogramVec
	QueueDepth      *prometheus.GaugeVec
	PoolPending     *prometheus.GaugeVec
	Events          *prometheus.CounterVec

	MemoryUseGauge *prometheus.GaugeVec
	MemoryPercent  *prometheus.GaugeVec
	CPUPercent     *prometheus.GaugeVec
}

func NewMonitor(namespace string, opts ...Option) *Monitor {
	o := Options{SampleInterval: DefaultSampleInterval}

	for _, opt := range opts {
		opt(&o)
	}

	label := []string{"micro_name"}

	m := &Monitor{
		ServiceName: namespace,
		opts:        o,
		registry:    prometheus.NewRegistry(),

		FramesPresented: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_presented_total",
			Help:      "Frames handed to the present engine.",
		}, label),
		FramesLate: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_late_total",
			Help:      "Frames presented after their timestamp.",
		}, label),
		FramesDiscarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_discarded_total",
			Help:      "Frames dropped before reaching the present engine.",
		}, []string{"reason", "micro_name"}),
		PresentDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "present_duration_seconds",
			Help:      "Time spent in the present call.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 10),
		}, label),
		SyncOffset: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_offset_seconds",
			Help:      "Distance between frame timestamp and clock at display.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 10),
		}, label),
		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scheduler_queue_depth",
			Help:      "Frames waiting in the scheduler.",
		}, label),
		PoolPending: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_pending",
			Help:      "Samples checked out of the pool.",
		}, label),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Presenter events by code.",
		}, []string{"code", "micro_name"}),

		MemoryUseGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "memory_use_gauge",
			Help: "Process resident memory in MB.",
		}, label),
		MemoryPercent: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "memory_percent",
			Help: "Host memory used, percent.",
		}, label),
		CPUPercent: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cpu_percent",
			Help: "Host cpu used, percent.",
		}, label),
	}

	m.registry.MustRegister(m.FramesPresented, m.FramesLate, m.FramesDiscarded,
		m.PresentDuration, m.SyncOffset, m.QueueDepth, m.PoolPending, m.Events,
		m.MemoryUseGauge, m.MemoryPercent, m.CPUPercent)

	return m
}

func (m *Monitor) labels() prometheus.Labels {
	return prometheus.Labels{"micro_name": m.ServiceName}
}

func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves /metrics and /heart.
func (m *Monitor) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/heart", http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.WriteHeader(readSuccess)
	}))
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	return mux
}

// Serve starts the metrics endpoint and the system sampler.
func (m *Monitor) Serve(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrap(err, "metrics listen")
	}

	m.Lock()
	m.srv = &http.Server{Handler: m.Handler()}
	srv := m.srv
	m.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Error("ListenAndServe", zap.String("data", err.Error()))
		}
	}()

	m.system()

	log.Info("MetricsServe", zap.String("addr", ln.Addr().String()))

	return nil
}

func (m *Monitor) Close() {
	m.Lock()
	srv, t := m.srv, m.ticker
	m.srv, m.ticker = nil, nil
	m.Unlock()

	if t != nil {
		t.Stop()
	}

	if srv != nil {
		_ = srv.Close()
	}
}

func (m *Monitor) ObservePresent(elapsed time.Duration, late bool) {
	m.FramesPresented.With(m.labels()).Inc()
	m.PresentDuration.With(m.labels()).Observe(elapsed.Seconds())

	if late {
		m.FramesLate.With(m.labels()).Inc()
	}
}

func (m *Monitor) ObserveQueueDepth(n int) {
	m.QueueDepth.With(m.labels()).Set(float64(n))
}

func (m *Monitor) ObserveDrawn(offset time.Duration) {
	m.SyncOffset.With(m.labels()).Observe(offset.Seconds())
}

func (m *Monitor) ObserveDiscard(reason string) {
	m.FramesDiscarded.With(prometheus.Labels{"reason": reason, "micro_name": m.ServiceName}).Inc()
}

func (m *Monitor) ObserveEvent(code media.EventCode) {
	m.Events.With(prometheus.Labels{"code": code.String(), "micro_name": m.ServiceName}).Inc()
}

func (m *Monitor) ObservePending(n int) {
	m.PoolPending.With(m.labels()).Set(float64(n))
}

package metrics

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	coremetrics "github.com/kilianp07/ucmilp/core/metrics"
)

// PromConfig configures PromSink.
type PromConfig struct {
	// PushGateway is the Pushgateway URL metrics are pushed to on Flush.
	// Empty disables pushing; the metrics are then only scraped.
	PushGateway string `json:"pushgateway"`
	// Job is the Pushgateway job label.
	Job string `json:"job"`
}

// PromSink records solve outcomes in Prometheus metrics.
type PromSink struct {
	solves    *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	objective *prometheus.GaugeVec
	gap       *prometheus.GaugeVec
	size      *prometheus.GaugeVec
	nodes     *prometheus.CounterVec
	trace     *prometheus.CounterVec
	pusher    *push.Pusher
}

// NewPromSink registers the solve metrics on the default Prometheus
// registerer.
func NewPromSink(cfg PromConfig) (*PromSink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. When reg
// is also a Gatherer it is the source of pushed metrics.
func NewPromSinkWithRegistry(cfg PromConfig, reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		solves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ucmilp_solves_total",
			Help: "Number of solves by backend, variant and status",
		}, []string{"backend", "variant", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ucmilp_solve_duration_seconds",
			Help:    "Wall-clock time spent in the solver",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{"backend"}),
		objective: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ucmilp_objective",
			Help: "Objective of the last solve of a case",
		}, []string{"case"}),
		gap: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ucmilp_mip_gap",
			Help: "Relative optimality gap of the last solve of a case",
		}, []string{"case"}),
		size: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ucmilp_model_size",
			Help: "Number of variables and constraints of the last model of a case",
		}, []string{"case", "kind"}),
		nodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ucmilp_search_nodes_total",
			Help: "Branch and bound nodes explored",
		}, []string{"backend"}),
		trace: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ucmilp_solver_trace_events_total",
			Help: "Solver trace events by kind",
		}, []string{"backend", "kind"}),
	}
	var err error
	if s.solves, err = register(reg, s.solves); err != nil {
		return nil, err
	}
	if s.duration, err = register(reg, s.duration); err != nil {
		return nil, err
	}
	if s.objective, err = register(reg, s.objective); err != nil {
		return nil, err
	}
	if s.gap, err = register(reg, s.gap); err != nil {
		return nil, err
	}
	if s.size, err = register(reg, s.size); err != nil {
		return nil, err
	}
	if s.nodes, err = register(reg, s.nodes); err != nil {
		return nil, err
	}
	if s.trace, err = register(reg, s.trace); err != nil {
		return nil, err
	}
	if cfg.PushGateway != "" {
		job := cfg.Job
		if job == "" {
			job = "ucmilp"
		}
		g, ok := reg.(prometheus.Gatherer)
		if !ok {
			g = prometheus.DefaultGatherer
		}
		s.pusher = push.New(cfg.PushGateway, job).Gatherer(g)
	}
	return s, nil
}

// register reuses an already registered collector of the same shape.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordSolve implements coremetrics.MetricsSink.
func (s *PromSink) RecordSolve(ev coremetrics.SolveEvent) error {
	s.solves.WithLabelValues(ev.Backend, ev.Variant, ev.Status).Inc()
	if ev.Backend != "" {
		s.duration.WithLabelValues(ev.Backend).Observe(ev.SolveTime.Seconds())
		s.nodes.WithLabelValues(ev.Backend).Add(float64(ev.Nodes))
	}
	s.objective.WithLabelValues(ev.Case).Set(ev.Objective)
	s.gap.WithLabelValues(ev.Case).Set(ev.Gap)
	s.size.WithLabelValues(ev.Case, "variables").Set(float64(ev.Variables))
	s.size.WithLabelValues(ev.Case, "constraints").Set(float64(ev.Constraints))
	return nil
}

// RecordTrace implements coremetrics.TraceRecorder.
func (s *PromSink) RecordTrace(ev coremetrics.TraceCount) error {
	s.trace.WithLabelValues(ev.Backend, ev.Kind).Inc()
	return nil
}

// Flush pushes the metrics to the configured Pushgateway.
func (s *PromSink) Flush(ctx context.Context) error {
	if s.pusher == nil {
		return nil
	}
	return s.pusher.AddContext(ctx)
}

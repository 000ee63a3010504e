package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/ucmilp/app/plugins"
	"github.com/kilianp07/ucmilp/config"
	coremetrics "github.com/kilianp07/ucmilp/core/metrics"
	coremon "github.com/kilianp07/ucmilp/core/monitoring"
	"github.com/kilianp07/ucmilp/core/runlog"
	"github.com/kilianp07/ucmilp/infra/logger"
	"github.com/kilianp07/ucmilp/infra/metrics"
	"github.com/kilianp07/ucmilp/infra/monitoring"
	"github.com/kilianp07/ucmilp/infra/mqtt"
	"github.com/kilianp07/ucmilp/pkg/export"
)

// Service owns the runner and the long-lived collaborators built from the
// configuration.
type Service struct {
	Runner    *Runner
	cfg       *config.Config
	log       logger.Logger
	publisher *mqtt.SchedulePublisher
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	if err := logger.SetLevel(cfg.Logging.Level); err != nil {
		return nil, err
	}
	logg := logger.New("service")

	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	solver, err := plugins.NewSolver(cfg.Solver.Backend, cfg.Solver.Options)
	if err != nil {
		return nil, fmt.Errorf("solver: %w", err)
	}
	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	store, err := runlog.Open(cfg.Runlog)
	if err != nil {
		return nil, fmt.Errorf("runlog: %w", err)
	}
	format, err := export.ParseFormat(cfg.Export.Format)
	if err != nil {
		return nil, err
	}

	svc := &Service{cfg: cfg, log: logg}
	svc.Runner = &Runner{
		Solver:          solver,
		SolveOptions:    cfg.Solver.SolveOptions(),
		ExportDir:       cfg.Export.Dir,
		ExportFormat:    format,
		Metrics:         sink,
		ScheduleDetail:  cfg.Metrics.ScheduleDetail,
		Store:           store,
		Log:             logger.New("runner"),
		VerifyTolerance: cfg.Solver.VerifyTolerance,
	}
	if cfg.MQTT.Broker != "" {
		pub, err := mqtt.NewSchedulePublisher(cfg.MQTT)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("mqtt publisher: %w", err)
		}
		svc.publisher = pub
		svc.Runner.Publisher = pub
	}
	logg.Infow("service ready", map[string]any{
		"backend": solver.Name(),
		"runlog":  cfg.Runlog.Backend,
		"export":  cfg.Export.Dir,
		"mqtt":    cfg.MQTT.Broker != "",
	})
	return svc, nil
}

// ServeMetrics exposes the Prometheus registry when a listen address is
// configured. It returns immediately; the server stops with ctx.
func (s *Service) ServeMetrics(ctx context.Context) {
	addr := s.cfg.Metrics.ListenAddr
	if addr == "" {
		return
	}
	go func() {
		if err := metrics.StartPromServer(ctx, addr, nil, s.log); err != nil {
			s.log.Errorf("prom server: %v", err)
		}
	}()
}

// Close flushes the metrics and releases resources held by the service.
func (s *Service) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var errs []error
	if err := s.Runner.Flush(ctx); err != nil {
		errs = append(errs, fmt.Errorf("flush metrics: %w", err))
	}
	if c, ok := s.Runner.Metrics.(interface{ Close() }); ok {
		c.Close()
	}
	if s.publisher != nil {
		s.publisher.Disconnect()
	}
	if s.Runner.Store != nil {
		if err := s.Runner.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close runlog: %w", err))
		}
	}
	coremon.Flush(2 * time.Second)
	return errors.Join(errs...)
}

package metrics

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	corelogger "github.com/kilianp07/ucmilp/core/logger"
	coremetrics "github.com/kilianp07/ucmilp/core/metrics"
	"github.com/kilianp07/ucmilp/infra/logger"
)

// InfluxConfig configures InfluxSink.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// InfluxSink writes solve summaries and schedules to InfluxDB.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      corelogger.Logger
}

// NewInfluxSink creates a sink for the given InfluxDB endpoint.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback pings the InfluxDB instance and returns a
// NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordSolve writes one uc_solve point.
func (s *InfluxSink) RecordSolve(ev coremetrics.SolveEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("uc_solve").
		AddTag("run_id", ev.RunID).
		AddTag("case", ev.Case).
		AddTag("variant", ev.Variant).
		AddTag("backend", ev.Backend).
		AddTag("status", ev.Status).
		AddField("objective", round3(ev.Objective)).
		AddField("best_bound", round3(ev.BestBound)).
		AddField("gap", ev.Gap).
		AddField("nodes", ev.Nodes).
		AddField("variables", ev.Variables).
		AddField("constraints", ev.Constraints).
		AddField("build_ms", round3(ev.BuildTime.Seconds()*1000)).
		AddField("solve_ms", round3(ev.SolveTime.Seconds()*1000)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordSchedule writes one uc_schedule point per generator and hour.
// Hour h is stamped at ev.Time + (h-1) hours so the schedule plots as a
// time series.
func (s *InfluxSink) RecordSchedule(evs []coremetrics.ScheduleEvent) error {
	if len(evs) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	points := make([]*write.Point, 0, len(evs))
	for _, ev := range evs {
		points = append(points, write.NewPointWithMeasurement("uc_schedule").
			AddTag("run_id", ev.RunID).
			AddTag("case", ev.Case).
			AddTag("generator", ev.Generator).
			AddField("hour", ev.Hour).
			AddField("committed", ev.Committed).
			AddField("output_mw", round3(ev.OutputMW)).
			SetTime(ev.Time.Add(time.Duration(ev.Hour-1)*time.Hour)))
	}
	return s.writeAPI.WritePoint(ctx, points...)
}

// Close releases the client.
func (s *InfluxSink) Close() { s.client.Close() }

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}

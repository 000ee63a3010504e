// Package app wires the solve pipeline: a data set is formulated, solved,
// verified, extracted and exported, and the outcome is recorded in the
// metrics sinks, the run log and the schedule publisher.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/ucmilp/core/extract"
	"github.com/kilianp07/ucmilp/core/formulation"
	"github.com/kilianp07/ucmilp/core/logger"
	coremetrics "github.com/kilianp07/ucmilp/core/metrics"
	"github.com/kilianp07/ucmilp/core/milp"
	"github.com/kilianp07/ucmilp/core/model"
	coremon "github.com/kilianp07/ucmilp/core/monitoring"
	"github.com/kilianp07/ucmilp/core/runlog"
	infralogger "github.com/kilianp07/ucmilp/infra/logger"
	inframetrics "github.com/kilianp07/ucmilp/infra/metrics"
	"github.com/kilianp07/ucmilp/internal/eventbus"
	"github.com/kilianp07/ucmilp/pkg/export"
)

// DefaultVerifyTolerance is the absolute tolerance used to check a
// returned assignment against the model.
const DefaultVerifyTolerance = 1e-5

// SchedulePublisher distributes solved schedules, e.g. over MQTT.
type SchedulePublisher interface {
	PublishSchedule(runID, caseName string, res *extract.Results) error
}

// Job is one case to solve.
type Job struct {
	Name    string
	Data    *model.DataSet
	Options formulation.Options
	// OutputDir overrides Runner.ExportDir.
	OutputDir string
}

// Outcome is what a successful run produced.
type Outcome struct {
	RunID     string
	Case      string
	Model     *formulation.Model
	Solution  *milp.Solution
	Results   *extract.Results
	Files     []string
	BuildTime time.Duration
	SolveTime time.Duration
}

// Runner executes jobs. Its collaborators are optional except Solver.
type Runner struct {
	Solver       milp.Solver
	SolveOptions milp.SolveOptions
	// ExportDir receives the result tables; empty disables export.
	ExportDir    string
	ExportFormat export.Format
	Metrics      coremetrics.MetricsSink
	// ScheduleDetail records the hourly schedule on sinks that support it.
	ScheduleDetail bool
	Store          runlog.Store
	Publisher      SchedulePublisher
	Log            logger.Logger
	// VerifyTolerance defaults to DefaultVerifyTolerance.
	VerifyTolerance float64

	now func() time.Time
}

func (r *Runner) log() logger.Logger {
	if r.Log == nil {
		return infralogger.NopLogger{}
	}
	return r.Log
}

func (r *Runner) clock() time.Time {
	if r.now != nil {
		return r.now()
	}
	return time.Now()
}

// run carries the bookkeeping of one Run call.
type run struct {
	id      string
	job     Job
	started time.Time
	log     logger.Logger
	model   *formulation.Model
	sol     *milp.Solution
	res     *extract.Results
	build   time.Duration
	solve   time.Duration
	files   []string
}

// Run formulates, solves and post-processes job. Validation and
// formulation errors are returned before the solver is invoked; solver
// failures are returned as *milp.SolverFailure. Every attempt, failed or
// not, is recorded in the metrics sinks and the run log.
func (r *Runner) Run(ctx context.Context, job Job) (*Outcome, error) {
	if r.Solver == nil {
		return nil, fmt.Errorf("runner: no solver configured")
	}
	rn := &run{id: uuid.NewString(), job: job, started: r.clock()}
	rn.log = r.log().With(map[string]any{"run_id": rn.id, "case": job.Name})

	err := r.execute(ctx, rn)
	r.record(ctx, rn, err)
	if err != nil {
		coremon.Report(err, map[string]string{"case": job.Name, "run_id": rn.id, "backend": r.Solver.Name()})
		return nil, err
	}
	return &Outcome{
		RunID:     rn.id,
		Case:      job.Name,
		Model:     rn.model,
		Solution:  rn.sol,
		Results:   rn.res,
		Files:     rn.files,
		BuildTime: rn.build,
		SolveTime: rn.solve,
	}, nil
}

func (r *Runner) execute(ctx context.Context, rn *run) error {
	start := time.Now()
	m, err := formulation.Build(rn.job.Data, rn.job.Options)
	rn.build = time.Since(start)
	if err != nil {
		rn.log.Errorf("build failed: %v", err)
		return err
	}
	rn.model = m
	counts := m.ConstraintCounts()
	rn.log.Infow("model built", map[string]any{
		"variant":     m.Options.Label(),
		"variables":   m.NumVars(),
		"constraints": m.NumConstraints(),
		"families":    counts,
		"build_ms":    rn.build.Milliseconds(),
	})

	opts := r.SolveOptions
	var stopTrace func()
	if opts.Verbose {
		opts.Trace, stopTrace = r.startTrace(ctx, rn.log)
	}
	start = time.Now()
	sol, err := r.Solver.Solve(ctx, m.Model, opts)
	rn.solve = time.Since(start)
	if stopTrace != nil {
		stopTrace()
	}
	if err != nil {
		rn.log.Errorf("solve failed: %v", err)
		return err
	}
	rn.sol = sol
	rn.log.Infow("solved", map[string]any{
		"backend":   r.Solver.Name(),
		"status":    sol.Status.String(),
		"objective": sol.Objective,
		"gap":       sol.Gap,
		"nodes":     sol.Nodes,
		"solve_ms":  rn.solve.Milliseconds(),
	})
	if sol.Suboptimal() {
		rn.log.Warnf("solver stopped with status %s, gap %g", sol.Status, sol.Gap)
	}

	if err := r.verify(m, sol); err != nil {
		return err
	}
	res, err := extract.Extract(m, sol)
	if err != nil {
		rn.log.Errorf("extract failed: %v", err)
		return err
	}
	rn.res = res

	if dir := r.outputDir(rn.job); dir != "" {
		files, err := export.DirExporter{Dir: dir, Format: r.ExportFormat}.Export(res)
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}
		rn.files = files
		rn.log.Infof("wrote %d files to %s", len(files), dir)
	}
	if r.Publisher != nil {
		if err := r.Publisher.PublishSchedule(rn.id, rn.job.Name, res); err != nil {
			rn.log.Warnf("schedule publish failed: %v", err)
		}
	}
	return nil
}

// verify rejects assignments that break the model beyond the tolerance.
func (r *Runner) verify(m *formulation.Model, sol *milp.Solution) error {
	tol := r.VerifyTolerance
	if tol <= 0 {
		tol = DefaultVerifyTolerance
	}
	viol := m.Violations(sol.Values, tol)
	if len(viol) == 0 {
		return nil
	}
	worst := viol[0]
	for _, v := range viol[1:] {
		if v.Amount > worst.Amount {
			worst = v
		}
	}
	return &milp.SolverFailure{
		Status:  milp.StatusError,
		Backend: r.Solver.Name(),
		Message: fmt.Sprintf("returned assignment violates %d rows or bounds, worst %s by %g", len(viol), worst.Family, worst.Amount),
	}
}

func (r *Runner) outputDir(job Job) string {
	if job.OutputDir != "" {
		return job.OutputDir
	}
	return r.ExportDir
}

// startTrace routes solver trace events to the debug log and, when the
// metrics sink counts them, to the metrics. The returned function closes
// the bus and waits for the consumers.
func (r *Runner) startTrace(ctx context.Context, log logger.Logger) (milp.TraceSink, func()) {
	bus := eventbus.NewTyped[milp.TraceEvent](eventbus.DefaultBuffer)
	logged := bus.Drain(func(ev milp.TraceEvent) {
		log.Debugw("solver trace", map[string]any{
			"backend":   ev.Backend,
			"kind":      string(ev.Kind),
			"nodes":     ev.Nodes,
			"objective": ev.Objective,
			"bound":     ev.Bound,
			"message":   ev.Message,
		})
	})
	var counted <-chan struct{}
	if rec, ok := r.Metrics.(coremetrics.TraceRecorder); ok {
		counted = inframetrics.StartTraceCollector(ctx, bus, rec)
	}
	return bus, func() {
		bus.Close()
		<-logged
		if counted != nil {
			<-counted
		}
		if n := bus.Dropped(); n > 0 {
			log.Debugf("dropped %d trace events", n)
		}
	}
}

// record writes the attempt to the metrics sinks and the run log. Their
// failures are logged and never fail the run.
func (r *Runner) record(ctx context.Context, rn *run, runErr error) {
	status := statusOf(rn, runErr)
	ev := coremetrics.SolveEvent{
		RunID:     rn.id,
		Case:      rn.job.Name,
		Variant:   rn.job.Options.Label(),
		Backend:   r.Solver.Name(),
		Status:    status,
		BuildTime: rn.build,
		SolveTime: rn.solve,
		Time:      rn.started,
	}
	rec := runlog.RunRecord{
		RunID:     rn.id,
		Timestamp: rn.started,
		Case:      rn.job.Name,
		Variant:   rn.job.Options.Label(),
		Options:   describe(rn.job.Options),
		Backend:   r.Solver.Name(),
		Status:    status,
		BuildMS:   float64(rn.build.Microseconds()) / 1000,
		SolveMS:   float64(rn.solve.Microseconds()) / 1000,
		OutputDir: r.outputDir(rn.job),
	}
	if rn.model != nil {
		ev.Variables, ev.Constraints = rn.model.NumVars(), rn.model.NumConstraints()
		rec.Variables, rec.Constraints = ev.Variables, ev.Constraints
	}
	if rn.sol != nil {
		ev.Objective, ev.BestBound, ev.Gap, ev.Nodes = rn.sol.Objective, rn.sol.BestBound, rn.sol.Gap, rn.sol.Nodes
		rec.Objective, rec.BestBound, rec.Gap, rec.Nodes = ev.Objective, ev.BestBound, ev.Gap, ev.Nodes
		rec.Suboptimal = rn.sol.Suboptimal()
	}
	var f *milp.SolverFailure
	if errors.As(runErr, &f) {
		ev.BestBound, rec.BestBound = f.BestBound, f.BestBound
	}
	if rn.res != nil {
		rec.Costs = map[string]string{
			"fuel":    rn.res.Costs.Fuel.String(),
			"no_load": rn.res.Costs.NoLoad.String(),
			"startup": rn.res.Costs.Startup.String(),
			"total":   rn.res.Costs.Total.String(),
		}
	}
	if runErr != nil {
		rec.Error = runErr.Error()
		rec.OutputDir = ""
	}
	// Infinite gaps do not encode as JSON numbers.
	rec.Gap = finiteOr(rec.Gap, -1)
	rec.BestBound = finiteOr(rec.BestBound, 0)

	if r.Metrics != nil {
		if err := r.Metrics.RecordSolve(ev); err != nil {
			rn.log.Warnf("record solve metrics: %v", err)
		}
		if sr, ok := r.Metrics.(coremetrics.ScheduleRecorder); ok && r.ScheduleDetail && rn.res != nil {
			if err := sr.RecordSchedule(scheduleEvents(rn)); err != nil {
				rn.log.Warnf("record schedule metrics: %v", err)
			}
		}
	}
	if r.Store != nil {
		if err := r.Store.Append(ctx, rec); err != nil {
			rn.log.Warnf("append run log: %v", err)
		}
	}
}

func scheduleEvents(rn *run) []coremetrics.ScheduleEvent {
	res := rn.res
	out := make([]coremetrics.ScheduleEvent, 0, len(res.Hours)*len(res.Generators))
	for i, h := range res.Hours {
		for j, g := range res.Generators {
			out = append(out, coremetrics.ScheduleEvent{
				RunID:     rn.id,
				Case:      rn.job.Name,
				Generator: g,
				Hour:      h,
				Committed: res.Commitment.Values[i][j] > 0.5,
				OutputMW:  res.Dispatch.Values[i][j],
				Time:      rn.started,
			})
		}
	}
	return out
}

// Flush pushes buffered metrics, e.g. to a Pushgateway.
func (r *Runner) Flush(ctx context.Context) error {
	if f, ok := r.Metrics.(coremetrics.Flusher); ok {
		return f.Flush(ctx)
	}
	return nil
}

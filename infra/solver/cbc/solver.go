// Package cbc runs the COIN-OR CBC executable on a model written in LP
// format and reads back its solution file.
package cbc

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kilianp07/ucmilp/core/logger"
	"github.com/kilianp07/ucmilp/core/milp"
	infralogger "github.com/kilianp07/ucmilp/infra/logger"
)

// Name is the registry name of the backend.
const Name = "cbc"

// killGrace is how long CBC may overrun its own time limit before the
// process is killed.
const killGrace = 30 * time.Second

// Config configures the backend.
type Config struct {
	// Path is the CBC executable, looked up in PATH when relative.
	Path string `json:"path"`
	// WorkDir holds the LP and solution files. Empty uses a temporary
	// directory removed after the solve.
	WorkDir string `json:"work_dir"`
	// Threads is passed to CBC when positive.
	Threads int `json:"threads"`
}

// Solver implements milp.Solver.
type Solver struct {
	cfg Config
	log logger.Logger
}

// New returns a CBC backend.
func New(cfg Config, log logger.Logger) *Solver {
	if cfg.Path == "" {
		cfg.Path = "cbc"
	}
	if log == nil {
		log = infralogger.NopLogger{}
	}
	return &Solver{cfg: cfg, log: log}
}

// Name implements milp.Solver.
func (s *Solver) Name() string { return Name }

// runCBC executes CBC and streams its output to stdout. Tests replace it
// to simulate the executable.
var runCBC = func(ctx context.Context, path string, args []string, stdout io.Writer) error {
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stdout
	return cmd.Run()
}

// Args returns the CBC command line for the given files and options.
func Args(lpPath, solPath string, opts milp.SolveOptions, threads int) []string {
	args := []string{lpPath}
	if opts.TimeLimit > 0 {
		args = append(args, "-sec", strconv.FormatFloat(opts.TimeLimit.Seconds(), 'f', -1, 64))
	}
	args = append(args, "-ratioGap", strconv.FormatFloat(opts.MIPGap, 'f', -1, 64))
	if opts.MaxSolutions > 0 {
		args = append(args, "-maxSolutions", strconv.Itoa(opts.MaxSolutions))
	}
	if threads > 0 {
		args = append(args, "-threads", strconv.Itoa(threads))
	}
	return append(args, "-printingOptions", "all", "-solve", "-solu", solPath)
}

// Solve implements milp.Solver.
func (s *Solver) Solve(ctx context.Context, m *milp.Model, opts milp.SolveOptions) (*milp.Solution, error) {
	if err := opts.Validate(); err != nil {
		return nil, s.fail(milp.StatusError, "invalid options", err)
	}
	if m == nil {
		return nil, s.fail(milp.StatusError, "nil model", nil)
	}
	dir := s.cfg.WorkDir
	if dir == "" {
		tmp, err := os.MkdirTemp("", "ucmilp-cbc-")
		if err != nil {
			return nil, s.fail(milp.StatusError, "work dir", err)
		}
		defer func() { _ = os.RemoveAll(tmp) }()
		dir = tmp
	} else if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, s.fail(milp.StatusError, "work dir", err)
	}
	lpPath := filepath.Join(dir, m.ID+".lp")
	solPath := filepath.Join(dir, m.ID+".sol")
	if err := writeFile(lpPath, m); err != nil {
		return nil, s.fail(milp.StatusError, "write lp", err)
	}

	if opts.TimeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.TimeLimit+killGrace)
		defer cancel()
	}
	var out bytes.Buffer
	stdout := io.Writer(&out)
	var tw *traceWriter
	if opts.Verbose && opts.Trace != nil {
		tw = &traceWriter{opts: opts}
		stdout = io.MultiWriter(&out, tw)
	}
	args := Args(lpPath, solPath, opts, s.cfg.Threads)
	s.log.Debugf("cbc: running %s %s", s.cfg.Path, strings.Join(args, " "))
	started := time.Now()
	runErr := runCBC(ctx, s.cfg.Path, args, stdout)
	if tw != nil {
		tw.flush()
	}
	elapsed := time.Since(started)

	f, err := os.Open(solPath)
	if err != nil {
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			return nil, s.fail(milp.StatusTimeLimitNoSolution, "killed after time limit", ctx.Err())
		case runErr != nil:
			return nil, s.fail(milp.StatusError, tail(out.String()), runErr)
		default:
			return nil, s.fail(milp.StatusError, "no solution file", err)
		}
	}
	defer func() { _ = f.Close() }()
	sf, err := parseSolution(f)
	if err != nil {
		return nil, s.fail(milp.StatusError, "parse solution", err)
	}
	return s.solution(m, sf, parseLog(out.String()), elapsed)
}

func (s *Solver) solution(m *milp.Model, sf *solutionFile, sum logSummary, elapsed time.Duration) (*milp.Solution, error) {
	status := sf.status()
	if !status.HasSolution() {
		f := &milp.SolverFailure{Status: status, Backend: Name, Message: sf.header}
		if sum.hasBound {
			f.BestBound = sum.lowerBound
		}
		return nil, f
	}
	values := make([]float64, m.NumVars())
	for j, v := range sf.values {
		if j < 0 || j >= len(values) {
			return nil, s.fail(milp.StatusError, fmt.Sprintf("solution references unknown column x%d", j), nil)
		}
		values[j] = v
	}
	obj := m.Objective().Eval(values)
	bound := obj
	if sum.hasBound {
		bound = sum.lowerBound
	}
	gap := milp.RelativeGap(obj, bound)
	if sum.hasGap {
		gap = sum.gap
	}
	s.log.Infof("cbc: %s objective %g (%s)", status, obj, sum.result)
	return &milp.Solution{
		ModelID:   m.ID,
		Status:    status,
		Objective: obj,
		BestBound: bound,
		Gap:       gap,
		Values:    values,
		Nodes:     sum.nodes,
		Solutions: 1,
		Elapsed:   elapsed,
	}, nil
}

func (s *Solver) fail(status milp.Status, msg string, err error) error {
	return &milp.SolverFailure{Status: status, Backend: Name, Message: msg, Err: err}
}

func writeFile(path string, m *milp.Model) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteLP(f, m); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// tail returns the last lines of CBC output for error messages.
func tail(out string) string {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) > 5 {
		lines = lines[len(lines)-5:]
	}
	return strings.Join(lines, " | ")
}

// traceWriter turns CBC output lines into trace events.
type traceWriter struct {
	opts milp.SolveOptions
	buf  bytes.Buffer
}

func (w *traceWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// keep the partial line for the next write
			w.buf.Reset()
			w.buf.WriteString(line)
			return len(p), nil
		}
		w.emit(line)
	}
}

func (w *traceWriter) flush() {
	sc := bufio.NewScanner(&w.buf)
	for sc.Scan() {
		w.emit(sc.Text())
	}
}

func (w *traceWriter) emit(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	kind := milp.TraceLog
	if strings.HasPrefix(line, "Cbc0012I") || strings.HasPrefix(line, "Cbc0004I") {
		kind = milp.TraceIncumbent
	}
	w.opts.Emit(milp.TraceEvent{Backend: Name, Kind: kind, Message: line})
}

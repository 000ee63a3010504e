package cbc

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/kilianp07/ucmilp/core/milp"
)

// tinyModel is min 3a + 2b + 5 s.t. a + b >= 1, a - f = 0 with a, b binary
// and f free.
func tinyModel(t *testing.T) *milp.Model {
	t.Helper()
	m := milp.NewModel("tiny")
	u, _ := m.AddFamily("u", milp.Shape{milp.DimGenerator}, milp.Binary, 0, 1)
	f, _ := m.AddFamily("f", milp.Shape{milp.DimLine}, milp.Continuous, math.Inf(-1), math.Inf(1))
	a, _ := u.Add(milp.Index{"a"})
	b, _ := u.Add(milp.Index{"b"})
	fl, _ := f.Add(milp.Index{"l1"})
	obj := milp.Expr(milp.T(a, 3), milp.T(b, 2))
	obj.AddConst(5)
	m.SetObjective(obj)
	if err := m.AddConstraint("cover", milp.Expr(milp.T(a, 1), milp.T(b, 1)), milp.GE, 1); err != nil {
		t.Fatal(err)
	}
	if err := m.AddConstraint("link", milp.Expr(milp.T(a, 1), milp.T(fl, -1)), milp.EQ, 0); err != nil {
		t.Fatal(err)
	}
	return m
}

func TestWriteLP(t *testing.T) {
	m := tinyModel(t)
	var buf bytes.Buffer
	if err := WriteLP(&buf, m); err != nil {
		t.Fatalf("write: %v", err)
	}
	want := []string{
		"Minimize",
		" obj: + 3 x0 + 2 x1",
		"Subject To",
		" c0: + 1 x0 + 1 x1",
		"   >= 1",
		" c1: + 1 x0 - 1 x2",
		"   = 0",
		"Bounds",
		" 0 <= x0 <= 1",
		" 0 <= x1 <= 1",
		" x2 free",
		"Binaries",
		" x0 x1",
		"End",
	}
	got := strings.Split(strings.TrimSpace(buf.String()), "\n")[1:]
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Fatalf("unexpected LP file:\n%s", buf.String())
	}
}

func TestArgs(t *testing.T) {
	args := Args("m.lp", "m.sol", milp.SolveOptions{TimeLimit: 120 * time.Second, MIPGap: 0.01, MaxSolutions: 1}, 0)
	want := "m.lp -sec 120 -ratioGap 0.01 -maxSolutions 1 -printingOptions all -solve -solu m.sol"
	if got := strings.Join(args, " "); got != want {
		t.Fatalf("unexpected args %q", got)
	}
	args = Args("m.lp", "m.sol", milp.SolveOptions{}, 4)
	if got := strings.Join(args, " "); got != "m.lp -ratioGap 0 -threads 4 -printingOptions all -solve -solu m.sol" {
		t.Fatalf("unexpected args %q", got)
	}
}

func TestParseSolutionStatus(t *testing.T) {
	cases := map[string]milp.Status{
		"Optimal - objective value 7.00000000":                                          milp.StatusOptimal,
		"Infeasible - objective value 0.00000000":                                       milp.StatusInfeasible,
		"Integer infeasible - objective value 0.00000000":                               milp.StatusInfeasible,
		"Stopped on time - objective value 7.00000000":                                  milp.StatusTimeLimit,
		"Stopped on time (no integer solution - continuous used) - objective value 6.5": milp.StatusTimeLimitNoSolution,
		"Stopped on solutions - objective value 7.00000000":                             milp.StatusSolutionLimit,
		"Unbounded - objective value 0":                                                 milp.StatusError,
	}
	for head, want := range cases {
		sf, err := parseSolution(strings.NewReader(head + "\n"))
		if err != nil {
			t.Fatalf("%s: %v", head, err)
		}
		if got := sf.status(); got != want {
			t.Errorf("%q: expected %s got %s", head, want, got)
		}
	}
}

func TestParseLog(t *testing.T) {
	out := `Result - Stopped on time limit

Objective value:                7.00000000
Lower bound:                    6.500
Gap:                            0.07
Enumerated nodes:               12
Total iterations:               40
`
	s := parseLog(out)
	if s.result != "Stopped on time limit" || s.objective != 7 || s.lowerBound != 6.5 || s.gap != 0.07 || s.nodes != 12 {
		t.Fatalf("unexpected summary %+v", s)
	}
	if !s.hasBound || !s.hasGap {
		t.Fatal("expected bound and gap")
	}
}

// fakeCBC writes content to the -solu path and prints log.
func fakeCBC(t *testing.T, content, log string) func() {
	t.Helper()
	orig := runCBC
	runCBC = func(ctx context.Context, path string, args []string, stdout io.Writer) error {
		sol := args[len(args)-1]
		if content != "" {
			if err := os.WriteFile(sol, []byte(content), 0o644); err != nil {
				return err
			}
		}
		_, _ = io.WriteString(stdout, log)
		return nil
	}
	return func() { runCBC = orig }
}

func TestSolveWithFakeExecutable(t *testing.T) {
	defer fakeCBC(t, `Optimal - objective value 2.00000000
      0 x0                       0                       3
      1 x1                       1                       2
**    2 x2                       0                       0
`, "Cbc0012I Integer solution of 2 found\nResult - Optimal solution found\nEnumerated nodes: 0\n")()
	m := tinyModel(t)
	var events []milp.TraceEvent
	sink := traceFunc(func(ev milp.TraceEvent) { events = append(events, ev) })
	s := New(Config{WorkDir: t.TempDir()}, nil)
	sol, err := s.Solve(context.Background(), m, milp.SolveOptions{MIPGap: 0.01, Verbose: true, Trace: sink})
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if sol.Status != milp.StatusOptimal || sol.ModelID != m.ID {
		t.Fatalf("unexpected solution %+v", sol)
	}
	// objective includes the constant dropped from the LP file
	if sol.Objective != 7 || sol.Values[1] != 1 || len(sol.Values) != 3 {
		t.Fatalf("unexpected values %v objective %v", sol.Values, sol.Objective)
	}
	if len(events) != 3 || events[0].Kind != milp.TraceIncumbent {
		t.Fatalf("unexpected trace %+v", events)
	}
}

type traceFunc func(milp.TraceEvent)

func (f traceFunc) Publish(ev milp.TraceEvent) { f(ev) }

func TestSolveInfeasible(t *testing.T) {
	defer fakeCBC(t, "Infeasible - objective value 0.00000000\n", "Result - Linear relaxation infeasible\n")()
	_, err := New(Config{WorkDir: t.TempDir()}, nil).Solve(context.Background(), tinyModel(t), milp.SolveOptions{})
	if !milp.IsInfeasible(err) {
		t.Fatalf("expected infeasible, got %v", err)
	}
}

func TestSolveNoSolutionFile(t *testing.T) {
	defer fakeCBC(t, "", "Segmentation fault\n")()
	_, err := New(Config{}, nil).Solve(context.Background(), tinyModel(t), milp.SolveOptions{})
	var f *milp.SolverFailure
	if !errors.As(err, &f) || f.Status != milp.StatusError || f.Backend != Name {
		t.Fatalf("expected solver error, got %v", err)
	}
}

func TestSolveRealExecutable(t *testing.T) {
	path, err := exec.LookPath("cbc")
	if err != nil {
		t.Skip("cbc not installed")
	}
	sol, err := New(Config{Path: path}, nil).Solve(context.Background(), tinyModel(t), milp.SolveOptions{TimeLimit: 10 * time.Second})
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if math.Abs(sol.Objective-7) > 1e-6 {
		t.Fatalf("expected objective 7 got %v", sol.Objective)
	}
}

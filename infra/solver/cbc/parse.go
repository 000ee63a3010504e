package cbc

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/kilianp07/ucmilp/core/milp"
)

// solutionFile is the content of the file written by CBC's -solu command.
type solutionFile struct {
	// header is the status text before " - objective value".
	header    string
	objective float64
	values    map[int]float64
}

// parseSolution reads a CBC solution file. Columns missing from the file
// are zero.
func parseSolution(r io.Reader) (*solutionFile, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("empty solution file")
	}
	sf := &solutionFile{values: make(map[int]float64)}
	head := strings.TrimSpace(sc.Text())
	if i := strings.Index(head, " - objective value"); i >= 0 {
		sf.header = strings.TrimSpace(head[:i])
		if v, err := strconv.ParseFloat(strings.TrimSpace(head[i+len(" - objective value"):]), 64); err == nil {
			sf.objective = v
		}
	} else {
		sf.header = head
	}
	for sc.Scan() {
		fields := strings.Fields(strings.TrimPrefix(strings.TrimSpace(sc.Text()), "**"))
		if len(fields) < 3 {
			continue
		}
		name := fields[1]
		if !strings.HasPrefix(name, "x") {
			continue
		}
		j, err := strconv.Atoi(name[1:])
		if err != nil {
			continue
		}
		v, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", name, err)
		}
		sf.values[j] = v
	}
	return sf, sc.Err()
}

// status maps the solution file header to a solve status.
func (sf *solutionFile) status() milp.Status {
	h := strings.ToLower(sf.header)
	switch {
	case strings.HasPrefix(h, "optimal"):
		return milp.StatusOptimal
	case strings.Contains(h, "infeasible"):
		return milp.StatusInfeasible
	case strings.HasPrefix(h, "stopped on time"):
		if strings.Contains(h, "no integer solution") {
			return milp.StatusTimeLimitNoSolution
		}
		return milp.StatusTimeLimit
	case strings.HasPrefix(h, "stopped on solutions"):
		return milp.StatusSolutionLimit
	case strings.HasPrefix(h, "stopped on ratio"), strings.HasPrefix(h, "stopped on gap"):
		return milp.StatusOptimal
	default:
		return milp.StatusError
	}
}

// logSummary holds the figures CBC prints at the end of a run.
type logSummary struct {
	result     string
	objective  float64
	lowerBound float64
	gap        float64
	nodes      int
	hasBound   bool
	hasGap     bool
}

func parseLog(out string) logSummary {
	var s logSummary
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "Result - ") {
			s.result = strings.TrimPrefix(line, "Result - ")
			continue
		}
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		val = strings.TrimSpace(val)
		switch key {
		case "Objective value":
			s.objective, _ = strconv.ParseFloat(val, 64)
		case "Lower bound":
			if v, err := strconv.ParseFloat(val, 64); err == nil {
				s.lowerBound, s.hasBound = v, true
			}
		case "Gap":
			if v, err := strconv.ParseFloat(val, 64); err == nil {
				s.gap, s.hasGap = v, true
			}
		case "Enumerated nodes":
			s.nodes, _ = strconv.Atoi(val)
		}
	}
	return s
}

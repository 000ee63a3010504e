// Package dataset reads unit commitment input data from CSV tables and
// YAML case files.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/kilianp07/ucmilp/core/model"
)

// Generator table columns.
const (
	ColLowerLimit      = "generation_lower_limit"
	ColUpperLimit      = "generation_upper_limit"
	ColVariableCost    = "generation_variable_cost_pu"
	ColNoLoadCost      = "commitment_no_load_cost"
	ColStartUpCost     = "commitment_start_up_cost"
	ColRampLimit       = "hourly_ramping_limit"
	ColMinUpTime       = "commitment_minimum_up_time"
	ColMinDownTime     = "commitment_minimum_down_time"
	ColStartupRampLim  = "startup_ramp_limit"
	ColShutdownRampLim = "shutdown_ramp_limit"
)

var requiredGeneratorColumns = []string{
	ColLowerLimit, ColUpperLimit, ColVariableCost, ColNoLoadCost,
	ColStartUpCost, ColRampLimit, ColMinUpTime, ColMinDownTime,
}

// table is a parsed CSV file with a header row.
type table struct {
	entity string
	header map[string]int
	cols   []string
	rows   [][]string
	// idCol is the column holding row identifiers, -1 when rows are
	// identified by position.
	idCol int
}

func readTable(r io.Reader, entity string) (*table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	recs, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s table: %w", entity, err)
	}
	if len(recs) == 0 {
		return nil, &model.ValidationError{Entity: entity, Reason: "table has no header row"}
	}
	t := &table{entity: entity, header: make(map[string]int), idCol: -1, rows: recs[1:]}
	for i, name := range recs[0] {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		t.cols = append(t.cols, name)
		t.header[name] = i
	}
	// A leading unnamed column is the index written by dataframe exports.
	for _, name := range []string{"id", "name", "bus", "Unnamed: 0", ""} {
		if i, ok := t.header[name]; ok {
			t.idCol = i
			break
		}
	}
	return t, nil
}

func (t *table) id(row int) string {
	if t.idCol >= 0 {
		if v := strings.TrimSpace(t.rows[row][t.idCol]); v != "" {
			return v
		}
	}
	return strconv.Itoa(row)
}

func (t *table) require(cols ...string) error {
	for _, c := range cols {
		if _, ok := t.header[c]; !ok {
			return &model.ValidationError{Entity: t.entity, Field: c, Reason: "missing column"}
		}
	}
	return nil
}

func (t *table) cell(row int, col string) (string, bool) {
	i, ok := t.header[col]
	if !ok {
		return "", false
	}
	v := strings.TrimSpace(t.rows[row][i])
	return v, v != ""
}

func (t *table) float(row int, col string) (float64, error) {
	s, ok := t.cell(row, col)
	if !ok {
		return 0, &model.ValidationError{Entity: t.entity, ID: t.id(row), Field: col, Reason: "missing value"}
	}
	return t.parse(row, col, s)
}

func (t *table) optFloat(row int, col string) (*float64, error) {
	s, ok := t.cell(row, col)
	if !ok {
		return nil, nil
	}
	v, err := t.parse(row, col, s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (t *table) hours(row int, col string) (int, error) {
	v, err := t.float(row, col)
	if err != nil {
		return 0, err
	}
	if v != math.Trunc(v) {
		return 0, &model.ValidationError{Entity: t.entity, ID: t.id(row), Field: col, Reason: "must be a whole number of hours"}
	}
	return int(v), nil
}

func (t *table) parse(row int, col, s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &model.ValidationError{Entity: t.entity, ID: t.id(row), Field: col, Reason: fmt.Sprintf("invalid number %q", s)}
	}
	return v, nil
}

// ReadGenerators parses a generator table. Rows are identified by an id,
// name or leading unnamed column when present, by their zero-based
// position otherwise. The hourly ramping limit applies both up and down.
func ReadGenerators(r io.Reader) ([]model.Generator, error) {
	t, err := readTable(r, "generator")
	if err != nil {
		return nil, err
	}
	if err := t.require(requiredGeneratorColumns...); err != nil {
		return nil, err
	}
	gens := make([]model.Generator, 0, len(t.rows))
	for i := range t.rows {
		g := model.Generator{ID: t.id(i)}
		floats := []struct {
			col string
			dst *float64
		}{
			{ColLowerLimit, &g.PMin},
			{ColUpperLimit, &g.PMax},
			{ColVariableCost, &g.FuelCost},
			{ColNoLoadCost, &g.NoLoadCost},
			{ColStartUpCost, &g.StartupCost},
			{ColRampLimit, &g.RampUp},
		}
		for _, f := range floats {
			if *f.dst, err = t.float(i, f.col); err != nil {
				return nil, err
			}
		}
		g.RampDown = g.RampUp
		if g.MinUpTime, err = t.hours(i, ColMinUpTime); err != nil {
			return nil, err
		}
		if g.MinDownTime, err = t.hours(i, ColMinDownTime); err != nil {
			return nil, err
		}
		if g.RampStartup, err = t.optFloat(i, ColStartupRampLim); err != nil {
			return nil, err
		}
		if g.RampShutdown, err = t.optFloat(i, ColShutdownRampLim); err != nil {
			return nil, err
		}
		gens = append(gens, g)
	}
	return gens, nil
}

// ReadLoads parses a load table with one row per bus and one column per
// hour. Every column whose header is an integer is an hour; the returned
// horizon lists them in increasing order.
func ReadLoads(r io.Reader) ([]model.Bus, model.TimeHorizon, error) {
	t, err := readTable(r, "bus")
	if err != nil {
		return nil, model.TimeHorizon{}, err
	}
	type hourCol struct {
		hour int
		name string
	}
	var cols []hourCol
	for _, name := range t.cols {
		if h, err := strconv.Atoi(name); err == nil {
			cols = append(cols, hourCol{h, name})
		}
	}
	if len(cols) == 0 {
		return nil, model.TimeHorizon{}, &model.ValidationError{Entity: "bus", Reason: "no hour columns"}
	}
	sort.Slice(cols, func(i, j int) bool { return cols[i].hour < cols[j].hour })
	hours := make([]int, len(cols))
	for i, c := range cols {
		hours[i] = c.hour
	}
	horizon, err := model.NewTimeHorizon(hours...)
	if err != nil {
		return nil, model.TimeHorizon{}, err
	}
	buses := make([]model.Bus, 0, len(t.rows))
	for i := range t.rows {
		b := model.Bus{ID: t.id(i), Demand: make(map[int]float64, len(cols))}
		for _, c := range cols {
			v, err := t.float(i, c.name)
			if err != nil {
				return nil, model.TimeHorizon{}, err
			}
			b.Demand[c.hour] = v
		}
		buses = append(buses, b)
	}
	return buses, horizon, nil
}

// ReadLines parses a transmission line table with columns id, f_max and
// one PTDF column per generator. Empty PTDF cells default to zero.
func ReadLines(r io.Reader) (*model.Network, error) {
	t, err := readTable(r, "line")
	if err != nil {
		return nil, err
	}
	if err := t.require("f_max"); err != nil {
		return nil, err
	}
	net := &model.Network{}
	for i := range t.rows {
		l := model.Line{ID: t.id(i), PTDF: map[string]float64{}}
		if l.FlowLimit, err = t.float(i, "f_max"); err != nil {
			return nil, err
		}
		for j, col := range t.cols {
			if j == t.idCol || col == "f_max" {
				continue
			}
			v, err := t.optFloat(i, col)
			if err != nil {
				return nil, err
			}
			if v != nil && *v != 0 {
				l.PTDF[col] = *v
			}
		}
		net.Lines = append(net.Lines, l)
	}
	return net, nil
}

// Files locates the CSV tables of a data set. Lines is optional.
type Files struct {
	Generators string `json:"generators" yaml:"generators"`
	Loads      string `json:"loads" yaml:"loads"`
	Lines      string `json:"lines" yaml:"lines,omitempty"`
}

// Load reads and validates the tables named by f.
func (f Files) Load() (*model.DataSet, error) {
	if f.Generators == "" || f.Loads == "" {
		return nil, fmt.Errorf("dataset: generator and load tables are required")
	}
	gens, err := readFile(f.Generators, ReadGenerators)
	if err != nil {
		return nil, err
	}
	var (
		buses   []model.Bus
		horizon model.TimeHorizon
	)
	if err := withFile(f.Loads, func(r io.Reader) error {
		var err error
		buses, horizon, err = ReadLoads(r)
		return err
	}); err != nil {
		return nil, err
	}
	var net *model.Network
	if f.Lines != "" {
		if net, err = readFile(f.Lines, ReadLines); err != nil {
			return nil, err
		}
	}
	return model.NewDataSet(gens, buses, horizon, net)
}

func readFile[T any](path string, read func(io.Reader) (T, error)) (T, error) {
	var out T
	err := withFile(path, func(r io.Reader) error {
		var err error
		out, err = read(r)
		return err
	})
	return out, err
}

func withFile(path string, fn func(io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	if err := fn(f); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

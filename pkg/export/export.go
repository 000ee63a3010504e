// Package export writes extracted unit commitment results to CSV and JSON.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/kilianp07/ucmilp/core/extract"
)

// HourColumn is the header of the hour index column of wide tables.
const HourColumn = "Hour"

// WriteWideCSV writes t with one row per hour and one column per generator.
func WriteWideCSV(w io.Writer, t *extract.WideTable) error {
	cw := csv.NewWriter(w)
	header := append([]string{HourColumn}, t.Generators...)
	if err := cw.Write(header); err != nil {
		return err
	}
	for i, h := range t.Hours {
		rec := make([]string, 0, len(t.Generators)+1)
		rec = append(rec, strconv.Itoa(h))
		for _, v := range t.Values[i] {
			rec = append(rec, formatFloat(v))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteLongCSV writes t with columns idx_0..idx_{n-1} and value.
func WriteLongCSV(w io.Writer, t *extract.LongTable) error {
	cw := csv.NewWriter(w)
	n := len(t.Shape)
	for _, r := range t.Rows {
		n = max(n, len(r.Index))
	}
	header := make([]string, 0, n+1)
	for i := 0; i < n; i++ {
		header = append(header, "idx_"+strconv.Itoa(i))
	}
	header = append(header, "value")
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range t.Rows {
		rec := make([]string, n+1)
		copy(rec, r.Index)
		rec[n] = formatFloat(r.Value)
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	if v == 0 {
		v = 0
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Document is the JSON form of a result set. Non-finite numbers are
// omitted.
type Document struct {
	ModelID    string                `json:"model_id"`
	Variant    string                `json:"variant"`
	Status     string                `json:"status"`
	Suboptimal bool                  `json:"suboptimal"`
	Objective  *float64              `json:"objective,omitempty"`
	BestBound  *float64              `json:"best_bound,omitempty"`
	Gap        *float64              `json:"gap,omitempty"`
	Hours      []int                 `json:"hours"`
	Generators []string              `json:"generators"`
	Costs      extract.CostBreakdown `json:"costs"`
	Wide       map[string]WideJSON   `json:"wide,omitempty"`
	Long       map[string]LongJSON   `json:"long,omitempty"`
}

// WideJSON is a wide table; Values[i][j] is hour i, generator j.
type WideJSON struct {
	Values [][]float64 `json:"values"`
}

// LongJSON is a long table.
type LongJSON struct {
	Shape []string  `json:"shape"`
	Rows  []LongRow `json:"rows"`
}

// LongRow is one member of a long table.
type LongRow struct {
	Index []string `json:"index"`
	Value float64  `json:"value"`
}

// Summary returns the document without tables.
func Summary(res *extract.Results) Document {
	return Document{
		ModelID:    res.ModelID,
		Variant:    res.Variant,
		Status:     res.Status.String(),
		Suboptimal: res.Suboptimal,
		Objective:  finite(res.Objective),
		BestBound:  finite(res.BestBound),
		Gap:        finite(res.Gap),
		Hours:      res.Hours,
		Generators: res.Generators,
		Costs:      res.Costs,
	}
}

// NewDocument converts res including every table. The commitment and
// dispatch tables appear under their family names.
func NewDocument(res *extract.Results) Document {
	doc := Summary(res)
	doc.Wide = make(map[string]WideJSON, len(res.Wide)+2)
	for _, t := range wideTables(res) {
		doc.Wide[t.Family] = WideJSON{Values: t.Values}
	}
	if len(res.Long) > 0 {
		doc.Long = make(map[string]LongJSON, len(res.Long))
		for _, name := range res.LongFamilies() {
			t := res.Long[name]
			lj := LongJSON{Shape: make([]string, len(t.Shape)), Rows: make([]LongRow, len(t.Rows))}
			for i, d := range t.Shape {
				lj.Shape[i] = string(d)
			}
			for i, r := range t.Rows {
				lj.Rows[i] = LongRow{Index: r.Index, Value: r.Value}
			}
			doc.Long[name] = lj
		}
	}
	return doc
}

// WriteJSON writes the full document of res to w.
func WriteJSON(w io.Writer, res *extract.Results) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(NewDocument(res))
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// wideTables lists commitment, dispatch, then the other wide families by
// name.
func wideTables(res *extract.Results) []*extract.WideTable {
	out := make([]*extract.WideTable, 0, len(res.Wide)+2)
	if res.Commitment != nil {
		out = append(out, res.Commitment)
	}
	if res.Dispatch != nil {
		out = append(out, res.Dispatch)
	}
	for _, name := range res.WideFamilies() {
		out = append(out, res.Wide[name])
	}
	return out
}

// Format selects the on-disk layout.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat validates a format name; empty selects CSV.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("export: unknown format %q", s)
	}
}

package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/kilianp07/ucmilp/core/extract"
)

// DirExporter writes result tables into a directory: one CSV per family
// plus summary.json, or a single results.json.
type DirExporter struct {
	Dir    string
	Format Format
}

// Export writes res and returns the paths written.
func (e DirExporter) Export(res *extract.Results) ([]string, error) {
	if res == nil {
		return nil, fmt.Errorf("export: nil results")
	}
	if err := os.MkdirAll(e.Dir, 0o755); err != nil {
		return nil, err
	}
	format, err := ParseFormat(string(e.Format))
	if err != nil {
		return nil, err
	}
	if format == FormatJSON {
		p := filepath.Join(e.Dir, "results.json")
		return []string{p}, writeFile(p, func(w io.Writer) error { return WriteJSON(w, res) })
	}

	var paths []string
	for _, t := range wideTables(res) {
		p := filepath.Join(e.Dir, t.Family+".csv")
		if err := writeFile(p, func(w io.Writer) error { return WriteWideCSV(w, t) }); err != nil {
			return paths, err
		}
		paths = append(paths, p)
	}
	for _, name := range res.LongFamilies() {
		t := res.Long[name]
		p := filepath.Join(e.Dir, name+".csv")
		if err := writeFile(p, func(w io.Writer) error { return WriteLongCSV(w, t) }); err != nil {
			return paths, err
		}
		paths = append(paths, p)
	}
	p := filepath.Join(e.Dir, "summary.json")
	err = writeFile(p, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(Summary(res))
	})
	if err != nil {
		return paths, err
	}
	return append(paths, p), nil
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

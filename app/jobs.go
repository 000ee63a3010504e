package app

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kilianp07/ucmilp/core/formulation"
	"github.com/kilianp07/ucmilp/infra/dataset"
)

// CaseJob loads a case file. The case's own formulation settings are
// applied on top of base.
func CaseJob(path string, base formulation.Options) (Job, error) {
	c, err := dataset.LoadCase(path)
	if err != nil {
		return Job{}, err
	}
	ds, err := c.DataSet()
	if err != nil {
		return Job{}, fmt.Errorf("case %s: %w", c.Name, err)
	}
	opts, err := c.Options(base)
	if err != nil {
		return Job{}, fmt.Errorf("case %s: %w", c.Name, err)
	}
	return Job{Name: c.Name, Data: ds, Options: opts}, nil
}

// FilesJob loads CSV tables. The job is named after the generator table
// unless name is set.
func FilesJob(name string, files dataset.Files, opts formulation.Options) (Job, error) {
	ds, err := files.Load()
	if err != nil {
		return Job{}, err
	}
	if name == "" {
		base := filepath.Base(files.Generators)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return Job{Name: name, Data: ds, Options: opts}, nil
}

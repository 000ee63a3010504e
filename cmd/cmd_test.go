package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var toyCase = filepath.Join("..", "infra", "dataset", "testdata", "toy.yaml")

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestValidateCommand(t *testing.T) {
	out, err := execute(t, "validate", toyCase)
	require.NoError(t, err)
	assert.Contains(t, out, "startup-shutdown-ramp")
	assert.Contains(t, out, "variables")
	assert.Contains(t, out, "demand")
}

func TestSolveCommand(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, "solve", toyCase, "--out", dir, "--time-limit", "30")
	require.NoError(t, err)
	assert.Contains(t, out, "optimal")
	assert.FileExists(t, filepath.Join(dir, "p.csv"))
}

func TestSolveCommandWithoutData(t *testing.T) {
	_, err := execute(t, "solve")
	assert.ErrorContains(t, err, "no data")
}

func TestRunsCommandEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("runlog:\n  backend: jsonl\n  path: "+filepath.Join(dir, "runs.jsonl")+"\n"), 0o644))
	out, err := execute(t, "runs", "-c", path)
	require.NoError(t, err)
	assert.Contains(t, out, "STATUS")
}

package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seedCSV = `mileage,label
0,true
100,true
5000,true
12000,true
25000,true
40000,true
90000,false
100000,false
130000,false
150000,false
-5,true
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestTrainFromSeedWithoutConfig(t *testing.T) {
	dir := t.TempDir()
	seed := writeFile(t, dir, "car_data.csv", seedCSV)

	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs([]string{
		"--config", filepath.Join(dir, "missing.yaml"),
		"--seed", seed,
		"--test-ratio", "0.3",
		"--format", "json",
	})
	require.NoError(t, cmd.Execute())

	var report trainReport
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.Equal(t, 10, report.TrainCount+report.TestCount)
	assert.Equal(t, 3, report.TestCount)
	assert.Equal(t, report.TestCount, report.Metrics.Samples)
	assert.NotEmpty(t, report.Model.Version)
}

func TestTrainRecordsToDatabase(t *testing.T) {
	dir := t.TempDir()
	seed := writeFile(t, dir, "car_data.csv", seedCSV)
	cfgPath := writeFile(t, dir, "config.yaml", "database:\n  path: cars.db\n")

	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs([]string{"--config", cfgPath, "--seed", seed, "--record"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "metrics")

	_, err := os.Stat(filepath.Join(dir, "cars.db"))
	assert.NoError(t, err)
}

func TestTrainFromEmptyDatabase(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "config.yaml", "database:\n  path: cars.db\n")

	cmd := newRootCmd(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", cfgPath})
	cmd.SetErr(&bytes.Buffer{})
	assert.Error(t, cmd.Execute())
}

func TestUnknownFormat(t *testing.T) {
	dir := t.TempDir()
	seed := writeFile(t, dir, "car_data.csv", seedCSV)

	cmd := newRootCmd(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", filepath.Join(dir, "missing.yaml"), "--seed", seed, "--format", "xml"})
	cmd.SetErr(&bytes.Buffer{})
	assert.Error(t, cmd.Execute())
}

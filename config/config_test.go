package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("http:\n  port: 9090\n"))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, 30*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, 5000, cfg.ML.MaxEpochs)
	assert.Equal(t, 1.0, cfg.ML.LearningRate)
	assert.Equal(t, 2000000.0, cfg.Observations.MaxMileage)
	assert.Equal(t, 1024, cfg.Cache.CarCacheSize)
	assert.Equal(t, time.Duration(0), cfg.ML.RetrainInterval)
}

func TestParseDurationsAndEnv(t *testing.T) {
	t.Setenv("CARREG_DATA", "/var/lib/carreg")
	cfg, err := Parse([]byte(`
database:
  path: ${CARREG_DATA}/cars.db
ml:
  retrain_interval: 15m
observations:
  seed_file: ${CARREG_DATA}/car_data.csv
  watch: true
`))
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/carreg/cars.db", cfg.Database.Path)
	assert.Equal(t, "/var/lib/carreg/car_data.csv", cfg.Observations.SeedFile)
	assert.Equal(t, 15*time.Minute, cfg.ML.RetrainInterval)
	assert.True(t, cfg.Observations.Watch)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		yaml   string
		errMsg string
	}{
		{"bad port", "http:\n  port: 70000\n", "http.port"},
		{"bad level", "log:\n  level: loud\n", "log.level"},
		{"zero epochs", "ml:\n  max_epochs: -1\n", "ml.max_epochs"},
		{"watch without seed", "observations:\n  watch: true\n", "observations.watch"},
		{"rate limit without burst", "http:\n  rate_limit:\n    rps: 5\n    burst: 0\n", "http.rate_limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	_, err := Parse([]byte("http: ["))
	assert.Error(t, err)
}

func TestLoadResolvesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  path: data/cars.db
observations:
  seed_file: data/car_data.csv
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "data/cars.db"), cfg.Database.Path)
	assert.Equal(t, filepath.Join(dir, "data/car_data.csv"), cfg.Observations.SeedFile)
	assert.Empty(t, cfg.Log.File)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

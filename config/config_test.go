package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/enettune/pkg/errors"
)

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())

	grid, err := c.Grid()
	require.NoError(t, err)
	assert.Len(t, grid, 21)

	set, err := c.MetricSet()
	require.NoError(t, err)
	assert.Equal(t, []string{"rmse", "rsq"}, set.Names())
	assert.Equal(t, rune(0), c.DelimiterRune())
}

func TestLoadDefaults(t *testing.T) {
	c, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("folds: 5\nseed: 7\nmetrics: [rmse, mae]\nselect_metric: mae\n"), 0o644))
	t.Setenv("ENETTUNE_MIXTURE", "0.25")

	c, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, c.Folds)
	assert.Equal(t, uint64(7), c.Seed)
	assert.Equal(t, []string{"rmse", "mae"}, c.Metrics)
	assert.Equal(t, "mae", c.SelectMetric)
	assert.Equal(t, 0.25, c.Mixture)
	assert.Equal(t, "lat", c.Target)
	assert.NoError(t, c.Validate())
}

func TestLoadBindOverrides(t *testing.T) {
	t.Setenv("ENETTUNE_FOLDS", "4")
	c, err := Load("", func(v *viper.Viper) error {
		v.Set("folds", 3)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, c.Folds)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	c := Default()
	c.DataPath = "data.csv"
	c.Folds = 5
	c.OneStdErr = true
	c.DropColumns = []string{"id"}

	path := filepath.Join(t.TempDir(), "out", "config.yaml")
	require.NoError(t, Save(c, path))
	back, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, c, back)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty target", func(c *Config) { c.Target = "" }},
		{"long delimiter", func(c *Config) { c.Delimiter = ";;" }},
		{"train fraction", func(c *Config) { c.TrainFraction = 1 }},
		{"one fold", func(c *Config) { c.Folds = 1 }},
		{"no repeats", func(c *Config) { c.Repeats = 0 }},
		{"bad grid", func(c *Config) { c.PenaltyMax = -1 }},
		{"tiny penalty step", func(c *Config) { c.PenaltyStep = 1e-15 }},
		{"mixture", func(c *Config) { c.Mixture = 1.5 }},
		{"scaler", func(c *Config) { c.Scaler = "robust" }},
		{"unknown metric", func(c *Config) { c.Metrics = []string{"auc"} }},
		{"select metric not in set", func(c *Config) { c.SelectMetric = "mae" }},
		{"tie policy", func(c *Config) { c.TiePolicy = "random" }},
		{"workers", func(c *Config) { c.Workers = -2 }},
		{"log level", func(c *Config) { c.LogLevel = "loud" }},
		{"log format", func(c *Config) { c.LogFormat = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := c.Validate()
			var ve *errors.ValidationError
			assert.True(t, errors.As(err, &ve), "got %v", err)
		})
	}
}

func TestDelimiterRune(t *testing.T) {
	c := Default()
	c.Delimiter = ";"
	assert.Equal(t, ';', c.DelimiterRune())
	c.Delimiter = `\t`
	assert.Equal(t, '\t', c.DelimiterRune())
	assert.NoError(t, c.Validate())
}

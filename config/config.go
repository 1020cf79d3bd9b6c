// Package config holds the settings of a tuning run. Values come from
// defaults, an optional YAML file, ENETTUNE_* environment variables and
// command-line flags, in increasing order of precedence.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/enettune/metrics"
	"github.com/YuminosukeSato/enettune/pkg/errors"
	"github.com/YuminosukeSato/enettune/pkg/log"
	"github.com/YuminosukeSato/enettune/sklearn/model_selection"
	"github.com/YuminosukeSato/enettune/sklearn/pipeline"
)

// EnvPrefix is the prefix of environment overrides, e.g. ENETTUNE_FOLDS.
const EnvPrefix = "ENETTUNE"

// Config is the full configuration of one run.
type Config struct {
	DataPath    string   `mapstructure:"data_path" yaml:"data_path"`
	Target      string   `mapstructure:"target" yaml:"target"`
	Delimiter   string   `mapstructure:"delimiter" yaml:"delimiter"`
	DropColumns []string `mapstructure:"drop_columns" yaml:"drop_columns"`

	// Resampling
	TrainFraction float64 `mapstructure:"train_fraction" yaml:"train_fraction"`
	Folds         int     `mapstructure:"folds" yaml:"folds"`
	Repeats       int     `mapstructure:"repeats" yaml:"repeats"`
	Seed          uint64  `mapstructure:"seed" yaml:"seed"`

	// Grid and model
	PenaltyMin  float64 `mapstructure:"penalty_min" yaml:"penalty_min"`
	PenaltyMax  float64 `mapstructure:"penalty_max" yaml:"penalty_max"`
	PenaltyStep float64 `mapstructure:"penalty_step" yaml:"penalty_step"`
	Mixture     float64 `mapstructure:"mixture" yaml:"mixture"`
	Scaler      string  `mapstructure:"scaler" yaml:"scaler"`
	MaxIter     int     `mapstructure:"max_iter" yaml:"max_iter"`
	Tol         float64 `mapstructure:"tol" yaml:"tol"`

	// Selection
	Metrics      []string `mapstructure:"metrics" yaml:"metrics"`
	SelectMetric string   `mapstructure:"select_metric" yaml:"select_metric"`
	TiePolicy    string   `mapstructure:"tie_policy" yaml:"tie_policy"`
	OneStdErr    bool     `mapstructure:"one_std_err" yaml:"one_std_err"`

	Workers   int    `mapstructure:"workers" yaml:"workers"`
	OutputDir string `mapstructure:"output_dir" yaml:"output_dir"`
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`
}

// Default returns the stock experiment: seed 18, half the rows for training,
// 10 folds, penalties 0..10 by 0.5 and an even L1/L2 mixture.
func Default() *Config {
	spec := pipeline.DefaultSpec()
	return &Config{
		Target:        "lat",
		TrainFraction: 0.5,
		Folds:         10,
		Repeats:       1,
		Seed:          18,
		PenaltyMin:    0,
		PenaltyMax:    10,
		PenaltyStep:   0.5,
		Mixture:       spec.Mixture,
		Scaler:        spec.Scaler,
		MaxIter:       spec.MaxIter,
		Tol:           spec.Tol,
		Metrics:       []string{metrics.NameRMSE, metrics.NameRSQ},
		SelectMetric:  metrics.NameRMSE,
		TiePolicy:     model_selection.TieSmallestPenalty.String(),
		Workers:       0,
		LogLevel:      "info",
		LogFormat:     "console",
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("data_path", d.DataPath)
	v.SetDefault("target", d.Target)
	v.SetDefault("delimiter", d.Delimiter)
	v.SetDefault("drop_columns", []string{})
	v.SetDefault("train_fraction", d.TrainFraction)
	v.SetDefault("folds", d.Folds)
	v.SetDefault("repeats", d.Repeats)
	v.SetDefault("seed", d.Seed)
	v.SetDefault("penalty_min", d.PenaltyMin)
	v.SetDefault("penalty_max", d.PenaltyMax)
	v.SetDefault("penalty_step", d.PenaltyStep)
	v.SetDefault("mixture", d.Mixture)
	v.SetDefault("scaler", d.Scaler)
	v.SetDefault("max_iter", d.MaxIter)
	v.SetDefault("tol", d.Tol)
	v.SetDefault("metrics", d.Metrics)
	v.SetDefault("select_metric", d.SelectMetric)
	v.SetDefault("tie_policy", d.TiePolicy)
	v.SetDefault("one_std_err", d.OneStdErr)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("output_dir", d.OutputDir)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
}

// Load reads configuration from defaults, cfgFile (when not empty) and the
// environment. bind, when not nil, can attach flags to the viper instance
// (v.BindPFlag) so that explicitly set flags win over everything else.
func Load(cfgFile string, bind func(v *viper.Viper) error) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", cfgFile)
		}
	}
	if bind != nil {
		if err := bind(v); err != nil {
			return nil, errors.Wrap(err, "bind flags")
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	// 環境変数はカンマ区切りの文字列で届く
	c.Metrics = splitList(c.Metrics)
	c.DropColumns = splitList(c.DropColumns)
	return &c, nil
}

func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Save writes c to path as YAML, creating the directory if necessary.
func Save(c *Config, path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "mkdir config dir")
		}
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "marshal yaml")
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return errors.Wrap(err, "write config")
	}
	return nil
}

// Validate checks every field and returns the first ValidationError.
func (c *Config) Validate() error {
	if c.Target == "" {
		return errors.NewValidationError("target", "must not be empty", c.Target)
	}
	if c.Delimiter != `\t` && utf8.RuneCountInString(c.Delimiter) > 1 {
		return errors.NewValidationError("delimiter", "must be a single character", c.Delimiter)
	}
	if !(c.TrainFraction > 0 && c.TrainFraction < 1) {
		return errors.NewValidationError("train_fraction", "must be in (0, 1)", c.TrainFraction)
	}
	if c.Folds < 2 {
		return errors.NewValidationError("folds", "must be at least 2", c.Folds)
	}
	if c.Repeats < 1 {
		return errors.NewValidationError("repeats", "must be at least 1", c.Repeats)
	}
	if _, err := c.Grid(); err != nil {
		return err
	}
	if err := c.Spec().Validate(); err != nil {
		return err
	}
	set, err := c.MetricSet()
	if err != nil {
		return err
	}
	if _, ok := set.Lookup(c.SelectMetric); !ok {
		return errors.NewValidationError("select_metric", "must be one of the configured metrics "+strings.Join(set.Names(), ", "), c.SelectMetric)
	}
	if _, err := model_selection.ParseTiePolicy(c.TiePolicy); err != nil {
		return err
	}
	if c.Workers < 0 {
		return errors.NewValidationError("workers", "must not be negative", c.Workers)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return errors.NewValidationError("log_level", "must be debug, info, warn or error", c.LogLevel)
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return errors.NewValidationError("log_format", "must be json or console", c.LogFormat)
	}
	return nil
}

// Spec is the workflow declaration the run tunes. Penalty is filled in per
// candidate.
func (c *Config) Spec() pipeline.Spec {
	return pipeline.Spec{
		Scaler:  c.Scaler,
		Penalty: c.PenaltyMin,
		Mixture: c.Mixture,
		MaxIter: c.MaxIter,
		Tol:     c.Tol,
	}
}

// Grid returns the penalty candidates.
func (c *Config) Grid() ([]float64, error) {
	return model_selection.RegularGrid(c.PenaltyMin, c.PenaltyMax, c.PenaltyStep)
}

// MetricSet builds the configured metric set.
func (c *Config) MetricSet() (metrics.MetricSet, error) {
	return metrics.NewMetricSet(c.Metrics...)
}

// DelimiterRune returns the configured delimiter, or 0 to auto-detect.
func (c *Config) DelimiterRune() rune {
	if c.Delimiter == "" {
		return 0
	}
	if c.Delimiter == `\t` {
		return '\t'
	}
	r, _ := utf8.DecodeRuneInString(c.Delimiter)
	return r
}

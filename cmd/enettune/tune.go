package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/YuminosukeSato/enettune/config"
	"github.com/YuminosukeSato/enettune/experiment"
	"github.com/YuminosukeSato/enettune/pkg/log"
)

// tuneFlags maps command-line flags to configuration keys.
var tuneFlags = map[string]string{
	"data":           "data_path",
	"target":         "target",
	"delimiter":      "delimiter",
	"drop":           "drop_columns",
	"train-fraction": "train_fraction",
	"folds":          "folds",
	"repeats":        "repeats",
	"seed":           "seed",
	"penalty-min":    "penalty_min",
	"penalty-max":    "penalty_max",
	"penalty-step":   "penalty_step",
	"mixture":        "mixture",
	"scaler":         "scaler",
	"metrics":        "metrics",
	"select-metric":  "select_metric",
	"tie-policy":     "tie_policy",
	"one-std-err":    "one_std_err",
	"workers":        "workers",
	"max-iter":       "max_iter",
	"tol":            "tol",
	"out":            "output_dir",
	"log-level":      "log_level",
	"log-format":     "log_format",
}

func newTuneCmd() *cobra.Command {
	var cfgFile string
	d := config.Default()

	cmd := &cobra.Command{
		Use:   "tune",
		Short: "Tune the elastic-net penalty on a delimited data file",
		Example: `  enettune tune --data coords.csv --target lat --out results
  enettune tune --config tune.yaml --folds 5 --workers 4`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile, func(v *viper.Viper) error {
				return bindFlags(v, cmd.Flags())
			})
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			logger, err := newLogger(cmd, cfg)
			if err != nil {
				return err
			}

			res, err := experiment.Run(cmd.Context(), cfg, logger)
			if err != nil {
				logger.Error("run failed", err, log.PathKey, cfg.DataPath)
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), res.Report.Text())
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfgFile, "config", "", "YAML configuration file")
	f.String("data", d.DataPath, "input data file (csv, tsv or ;-separated)")
	f.String("target", d.Target, "name of the numeric outcome column")
	f.String("delimiter", d.Delimiter, `field delimiter; empty to auto-detect, "\t" for tab`)
	f.StringSlice("drop", d.DropColumns, "columns to ignore")
	f.Float64("train-fraction", d.TrainFraction, "share of rows used for training")
	f.Int("folds", d.Folds, "number of cross-validation folds")
	f.Int("repeats", d.Repeats, "number of repeats of the fold split")
	f.Uint64("seed", d.Seed, "random seed for the split and the folds")
	f.Float64("penalty-min", d.PenaltyMin, "smallest penalty in the grid")
	f.Float64("penalty-max", d.PenaltyMax, "largest penalty in the grid")
	f.Float64("penalty-step", d.PenaltyStep, "grid step")
	f.Float64("mixture", d.Mixture, "L1 share of the penalty (0 ridge, 1 lasso)")
	f.String("scaler", d.Scaler, "predictor scaling: standard or minmax")
	f.StringSlice("metrics", d.Metrics, "metrics to compute (rmse, rsq, rsq_trad, mae, mape, explained_variance)")
	f.String("select-metric", d.SelectMetric, "metric used to pick the best penalty")
	f.String("tie-policy", d.TiePolicy, "tie breaking: first, smallest_penalty or largest_penalty")
	f.Bool("one-std-err", d.OneStdErr, "pick the largest penalty within one standard error of the best")
	f.Int("workers", d.Workers, "concurrent fits during tuning (0 = number of CPUs)")
	f.Int("max-iter", d.MaxIter, "maximum coordinate-descent cycles per fit")
	f.Float64("tol", d.Tol, "coordinate-descent convergence tolerance")
	f.String("out", d.OutputDir, "directory for plots, tables and the model")
	f.String("log-level", d.LogLevel, "debug, info, warn or error")
	f.String("log-format", d.LogFormat, "console or json")
	return cmd
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range tuneFlags {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return err
		}
	}
	return nil
}

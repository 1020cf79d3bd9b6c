// Package experiment runs the whole tuning workflow end to end: load, split,
// resample, tune, select, final fit and outputs.
package experiment

import (
	"context"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/YuminosukeSato/enettune/config"
	"github.com/YuminosukeSato/enettune/dataset"
	"github.com/YuminosukeSato/enettune/pkg/errors"
	"github.com/YuminosukeSato/enettune/pkg/log"
	"github.com/YuminosukeSato/enettune/report"
	"github.com/YuminosukeSato/enettune/sklearn/model_selection"
	"github.com/YuminosukeSato/enettune/viz"
)

// Result is everything a run produced.
type Result struct {
	RunID  string
	Config *config.Config

	Table *dataset.Table
	Train *dataset.Design
	Test  *dataset.Design
	Folds []model_selection.Fold

	Tune  *model_selection.TuneResult
	Best  model_selection.Candidate
	Final *model_selection.LastFitResult

	Report *report.Final
}

// Run loads cfg.DataPath and runs the experiment on it.
func Run(ctx context.Context, cfg *config.Config, logger log.Logger) (*Result, error) {
	if logger == nil {
		logger = log.Nop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.DataPath == "" {
		return nil, errors.NewValidationError("data_path", "must not be empty", cfg.DataPath)
	}

	start := time.Now()
	tbl, err := dataset.LoadCSV(cfg.DataPath, dataset.LoadOptions{
		Delimiter: cfg.DelimiterRune(),
		Target:    cfg.Target,
		Drop:      cfg.DropColumns,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("data loaded",
		log.OperationKey, log.OperationLoad,
		log.PathKey, cfg.DataPath,
		log.SamplesKey, tbl.NumRows(),
		"data.columns", tbl.NumCols(),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return RunTable(ctx, cfg, tbl, logger)
}

// RunTable runs the experiment on an already loaded table. The same seed is
// used for the train/test split and for the folds, so two runs with the same
// configuration and data give identical records and final metrics.
func RunTable(ctx context.Context, cfg *config.Config, tbl *dataset.Table, logger log.Logger) (*Result, error) {
	if logger == nil {
		logger = log.Nop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if tbl == nil {
		return nil, errors.NewValueError("RunTable", "nil table")
	}

	runID := uuid.NewString()
	logger = logger.With(log.RunIDKey, runID)
	res := &Result{RunID: runID, Config: cfg, Table: tbl}

	if err := res.split(cfg, logger); err != nil {
		return nil, err
	}

	grid, err := cfg.Grid()
	if err != nil {
		return nil, err
	}
	set, err := cfg.MetricSet()
	if err != nil {
		return nil, err
	}
	spec := cfg.Spec()

	res.Tune, err = model_selection.TuneGrid(ctx, spec, res.Train.X, res.Train.Y, res.Folds, grid, set,
		model_selection.WithWorkers(cfg.Workers),
		model_selection.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	policy, err := model_selection.ParseTiePolicy(cfg.TiePolicy)
	if err != nil {
		return nil, err
	}
	if cfg.OneStdErr {
		res.Best, err = model_selection.SelectByOneStdErr(res.Tune.Records, cfg.SelectMetric, set)
	} else {
		res.Best, err = model_selection.SelectBest(res.Tune.Records, cfg.SelectMetric, set, policy)
	}
	if err != nil {
		return nil, err
	}
	logger.Info("candidate selected",
		log.OperationKey, log.OperationSelect,
		log.MetricKey, cfg.SelectMetric,
		log.RegularizationKey, res.Best.Penalty,
		log.MixtureKey, res.Best.Mixture,
	)

	res.Final, err = model_selection.LastFit(ctx, model_selection.Finalize(spec, res.Best), res.Train, res.Test, set,
		model_selection.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	res.Report = res.buildReport(cfg, policy, len(grid))

	if cfg.OutputDir != "" {
		if err := res.WriteOutputs(cfg.OutputDir); err != nil {
			return nil, err
		}
		logger.Info("outputs written", log.PathKey, cfg.OutputDir)
	}
	return res, nil
}

func (r *Result) split(cfg *config.Config, logger log.Logger) error {
	trainRows, testRows, err := model_selection.TrainTestSplit(r.Table.NumRows(), cfg.TrainFraction, cfg.Seed)
	if err != nil {
		return err
	}
	trainTbl, err := r.Table.Subset(trainRows)
	if err != nil {
		return err
	}
	testTbl, err := r.Table.Subset(testRows)
	if err != nil {
		return err
	}

	var enc *dataset.Encoder
	r.Train, enc, err = trainTbl.Design(cfg.Target)
	if err != nil {
		return err
	}
	r.Test, err = enc.Transform(testTbl)
	if err != nil {
		return err
	}

	r.Folds, err = model_selection.NewSplitter(cfg.Folds, cfg.Repeats, cfg.Seed).Split(r.Train.Rows())
	if err != nil {
		return err
	}

	logger.Info("data split",
		log.OperationKey, log.OperationSplit,
		log.RandomSeedKey, cfg.Seed,
		"split.train", r.Train.Rows(),
		"split.test", r.Test.Rows(),
		"split.folds", len(r.Folds),
		log.FeaturesKey, len(r.Train.FeatureNames),
	)
	return nil
}

func (r *Result) buildReport(cfg *config.Config, policy model_selection.TiePolicy, gridSize int) *report.Final {
	var cv []model_selection.MetricRecord
	for _, rec := range r.Tune.Records {
		if rec.Penalty == r.Best.Penalty && rec.Mixture == r.Best.Mixture {
			cv = append(cv, rec)
		}
	}
	tie := policy.String()
	if cfg.OneStdErr {
		tie = "one_std_err"
	}
	name := r.Table.Name()
	if cfg.DataPath != "" {
		name = filepath.Base(cfg.DataPath)
	}
	return &report.Final{
		RunID:        r.RunID,
		Dataset:      name,
		Target:       cfg.Target,
		Rows:         r.Table.NumRows(),
		TrainRows:    r.Train.Rows(),
		TestRows:     r.Test.Rows(),
		Features:     r.Train.FeatureNames,
		Seed:         cfg.Seed,
		Folds:        len(r.Folds),
		GridSize:     gridSize,
		SelectMetric: cfg.SelectMetric,
		TiePolicy:    tie,
		Best:         r.Best,
		CV:           cv,
		Spec:         r.Final.Spec,
		Metrics:      r.Final.Metrics,
		Importance:   r.Final.Importance,
		Intercept:    r.Final.Workflow.Model().Intercept(),
	}
}

// WriteOutputs writes every artefact of the run into dir.
func (r *Result) WriteOutputs(dir string) error {
	if r.Tune == nil || r.Final == nil || r.Report == nil {
		return errors.NewValueError("WriteOutputs", "run has not completed")
	}
	path := func(name string) string { return filepath.Join(dir, name) }

	if err := report.WriteFile(path(report.TuneMetricsFile), func(w io.Writer) error {
		return report.WriteTuneMetricsCSV(w, r.Tune.Records)
	}); err != nil {
		return err
	}
	if err := report.WriteFile(path(report.FoldScoresFile), func(w io.Writer) error {
		return report.WriteFoldScoresCSV(w, r.Tune.Scores)
	}); err != nil {
		return err
	}
	if err := report.WriteFile(path(report.PredictionsFile), func(w io.Writer) error {
		return report.WritePredictionsCSV(w, r.Final.Observed, r.Final.Predictions)
	}); err != nil {
		return err
	}
	if err := report.WriteFile(path(report.FinalReportFile), func(w io.Writer) error {
		return report.WriteFinalYAML(w, r.Report)
	}); err != nil {
		return err
	}

	snap, err := r.Final.Workflow.Snapshot(r.Train.FeatureNames)
	if err != nil {
		return err
	}
	if err := report.WriteModel(path(report.ModelFile), snap.Weights()); err != nil {
		return err
	}
	if err := report.SaveModel(path(report.WorkflowFile), snap); err != nil {
		return err
	}

	// 描画中の panic もエラーとして返す
	if err := errors.SafeExecute("viz.TuningCurve", func() error {
		return viz.TuningCurve(r.Tune, path(report.TuneCurveFile))
	}); err != nil {
		return err
	}
	if err := errors.SafeExecute("viz.VariableImportance", func() error {
		return viz.VariableImportance(r.Final.Importance, path(report.ImportanceFile))
	}); err != nil {
		return err
	}
	return config.Save(r.Config, path(report.ResolvedConfFile))
}

package model_selection

import (
	"context"
	"math"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/enettune/dataset"
	"github.com/YuminosukeSato/enettune/metrics"
	"github.com/YuminosukeSato/enettune/pkg/errors"
	"github.com/YuminosukeSato/enettune/pkg/log"
	"github.com/YuminosukeSato/enettune/sklearn/pipeline"
)

// FoldScore is the value of one metric for one candidate on one fold.
type FoldScore struct {
	Penalty float64 `json:"penalty" csv:"penalty"`
	Mixture float64 `json:"mixture" csv:"mixture"`
	Fold    string  `json:"fold" csv:"fold"`
	Metric  string  `json:"metric" csv:"metric"`
	Value   float64 `json:"value" csv:"value"`
}

// MetricRecord aggregates one metric for one candidate across folds. N
// counts the finite fold scores that went into Mean.
type MetricRecord struct {
	Penalty float64 `json:"penalty" yaml:"penalty" csv:"penalty"`
	Mixture float64 `json:"mixture" yaml:"mixture" csv:"mixture"`
	Metric  string  `json:"metric" yaml:"metric" csv:"metric"`
	Mean    float64 `json:"mean" yaml:"mean" csv:"mean"`
	StdErr  float64 `json:"std_err" yaml:"std_err" csv:"std_err"`
	N       int     `json:"n" yaml:"n" csv:"n"`
}

// Candidate returns the hyperparameters of the record.
func (r MetricRecord) Candidate() Candidate {
	return Candidate{Penalty: r.Penalty, Mixture: r.Mixture}
}

// TuneResult holds every fold score and the per-candidate aggregates.
type TuneResult struct {
	Grid    []float64
	Mixture float64
	Folds   []Fold
	Metrics metrics.MetricSet
	Scores  []FoldScore
	Records []MetricRecord
}

// Cycles is the number of fit/score cycles that were run.
func (r *TuneResult) Cycles() int { return len(r.Grid) * len(r.Folds) }

// CollectMetrics returns the records of one metric in grid order.
func (r *TuneResult) CollectMetrics(metric string) []MetricRecord {
	var out []MetricRecord
	for _, rec := range r.Records {
		if rec.Metric == metric {
			out = append(out, rec)
		}
	}
	return out
}

type tuneConfig struct {
	workers int
	logger  log.Logger
}

// TuneOption configures TuneGrid.
type TuneOption func(*tuneConfig)

// WithWorkers bounds the number of concurrent fit/score cycles. Values < 1
// mean runtime.NumCPU().
func WithWorkers(n int) TuneOption {
	return func(c *tuneConfig) { c.workers = n }
}

// WithLogger sets the logger for progress and per-cycle debug records.
func WithLogger(l log.Logger) TuneOption {
	return func(c *tuneConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

type foldData struct {
	fold         Fold
	Xtrain, Xval *mat.Dense
	ytrain, yval *mat.VecDense
}

// TuneGrid fits spec with every penalty of grid on every fold and scores the
// held-out rows with set. The scaler of each cycle is fitted on that fold's
// training rows only. Cycles run concurrently on a bounded pool; the first
// failing cycle cancels the rest and its FitError is returned.
func TuneGrid(ctx context.Context, spec pipeline.Spec, X *mat.Dense, y *mat.VecDense,
	folds []Fold, grid []float64, set metrics.MetricSet, opts ...TuneOption) (*TuneResult, error) {

	cfg := tuneConfig{workers: runtime.NumCPU(), logger: log.Nop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.workers < 1 {
		cfg.workers = runtime.NumCPU()
	}

	if len(grid) == 0 {
		return nil, errors.NewValueError("TuneGrid", "empty penalty grid")
	}
	if len(folds) == 0 {
		return nil, errors.NewValueError("TuneGrid", "no folds")
	}
	if set.Len() == 0 {
		return nil, errors.NewValueError("TuneGrid", "empty metric set")
	}
	n, _ := X.Dims()
	if y.Len() != n {
		return nil, errors.NewDimensionError("TuneGrid", n, y.Len(), 0)
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	data := make([]foldData, len(folds))
	for k, f := range folds {
		if len(f.Train) == 0 || len(f.Test) == 0 {
			return nil, errors.NewValidationError("folds", "every fold needs training and held-out rows", f.ID)
		}
		Xtr, ytr, err := dataset.SelectRows(X, y, f.Train)
		if err != nil {
			return nil, errors.Wrapf(err, "fold %s", f.ID)
		}
		Xte, yte, err := dataset.SelectRows(X, y, f.Test)
		if err != nil {
			return nil, errors.Wrapf(err, "fold %s", f.ID)
		}
		data[k] = foldData{fold: f, Xtrain: Xtr, ytrain: ytr, Xval: Xte, yval: yte}
	}

	logger := cfg.logger.With(log.OperationKey, log.OperationTune)
	cycles := len(grid) * len(folds)
	logger.Info("tuning started",
		log.GridSizeKey, len(grid),
		"tune.folds", len(folds),
		log.CyclesKey, cycles,
		log.WorkersKey, cfg.workers,
		log.MixtureKey, spec.Mixture,
	)
	start := time.Now()

	// 各サイクルは自分のスロットだけに書き込む
	results := make([][]metrics.Estimate, cycles)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.workers)
	for c := 0; c < cycles; c++ {
		if gctx.Err() != nil {
			break
		}
		penalty := grid[c/len(folds)]
		fd := &data[c%len(folds)]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			cycleSpec := spec
			cycleSpec.Penalty = penalty
			est, err := runCycle(cycleSpec, fd, set)
			if err != nil {
				return errors.NewFitError(penalty, spec.Mixture, fd.fold.ID, err)
			}
			results[c] = est
			logger.Debug("cycle done", log.CandidateKey, penalty, log.FoldKey, fd.fold.ID)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Error("tuning aborted", err)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.WithStack(err)
	}

	res := &TuneResult{
		Grid:    append([]float64(nil), grid...),
		Mixture: spec.Mixture,
		Folds:   folds,
		Metrics: set,
		Scores:  make([]FoldScore, 0, cycles*set.Len()),
	}
	for c, est := range results {
		penalty := grid[c/len(folds)]
		fold := folds[c%len(folds)]
		for _, e := range est {
			res.Scores = append(res.Scores, FoldScore{
				Penalty: penalty, Mixture: spec.Mixture, Fold: fold.ID, Metric: e.Metric, Value: e.Value,
			})
		}
	}
	res.Records = aggregate(grid, spec.Mixture, len(folds), set, results)

	logger.Info("tuning finished",
		log.CyclesKey, cycles,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return res, nil
}

func runCycle(spec pipeline.Spec, fd *foldData, set metrics.MetricSet) (est []metrics.Estimate, err error) {
	defer errors.Recover(&err, "TuneGrid.cycle")

	w, err := pipeline.NewWorkflow(spec)
	if err != nil {
		return nil, err
	}
	if err := w.Fit(fd.Xtrain, fd.ytrain); err != nil {
		return nil, err
	}
	pred, err := w.Predict(fd.Xval)
	if err != nil {
		return nil, err
	}
	return set.Compute(fd.yval, pred)
}

// aggregate computes mean and standard error per (candidate, metric) in grid
// order, then metric-set order. Non-finite fold scores are left out.
func aggregate(grid []float64, mixture float64, nFolds int, set metrics.MetricSet, results [][]metrics.Estimate) []MetricRecord {
	names := set.Names()
	records := make([]MetricRecord, 0, len(grid)*len(names))
	values := make([]float64, 0, nFolds)
	for gi, penalty := range grid {
		for mi, name := range names {
			values = values[:0]
			for k := 0; k < nFolds; k++ {
				v := results[gi*nFolds+k][mi].Value
				if !math.IsNaN(v) && !math.IsInf(v, 0) {
					values = append(values, v)
				}
			}
			records = append(records, summarize(penalty, mixture, name, values))
		}
	}
	return records
}

func summarize(penalty, mixture float64, metric string, values []float64) MetricRecord {
	rec := MetricRecord{Penalty: penalty, Mixture: mixture, Metric: metric, N: len(values)}
	switch len(values) {
	case 0:
		rec.Mean, rec.StdErr = math.NaN(), math.NaN()
	case 1:
		rec.Mean = values[0]
	default:
		mean, std := stat.MeanStdDev(values, nil)
		rec.Mean = mean
		rec.StdErr = std / math.Sqrt(float64(len(values)))
	}
	return rec
}

package model_selection

import (
	"context"
	"math"
	"math/rand/v2"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/enettune/dataset"
	"github.com/YuminosukeSato/enettune/metrics"
	"github.com/YuminosukeSato/enettune/pkg/errors"
	"github.com/YuminosukeSato/enettune/pkg/log"
	"github.com/YuminosukeSato/enettune/sklearn/pipeline"
)

func TestTrainTestSplit(t *testing.T) {
	tests := []struct {
		name      string
		n         int
		fraction  float64
		wantTrain int
	}{
		{"half", 100, 0.5, 50},
		{"floor", 7, 0.5, 3},
		{"clamped low", 10, 0.01, 1},
		{"clamped high", 10, 0.99, 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			train, test, err := TrainTestSplit(tt.n, tt.fraction, 18)
			require.NoError(t, err)
			assert.Len(t, train, tt.wantTrain)
			assert.Len(t, test, tt.n-tt.wantTrain)

			seen := make(map[int]bool, tt.n)
			for _, i := range append(append([]int{}, train...), test...) {
				assert.False(t, seen[i], "row %d appears twice", i)
				seen[i] = true
			}
			assert.Len(t, seen, tt.n)
			assert.True(t, sort.IntsAreSorted(train))
			assert.True(t, sort.IntsAreSorted(test))
		})
	}
}

func TestTrainTestSplitDeterministic(t *testing.T) {
	a1, b1, err := TrainTestSplit(100, 0.5, 18)
	require.NoError(t, err)
	a2, b2, err := TrainTestSplit(100, 0.5, 18)
	require.NoError(t, err)
	assert.Equal(t, a1, a2)
	assert.Equal(t, b1, b2)

	a3, _, err := TrainTestSplit(100, 0.5, 19)
	require.NoError(t, err)
	assert.NotEqual(t, a1, a3)
}

func TestTrainTestSplitInvalid(t *testing.T) {
	for _, tc := range []struct {
		n int
		f float64
	}{{1, 0.5}, {10, 0}, {10, 1}, {10, -0.2}} {
		_, _, err := TrainTestSplit(tc.n, tc.f, 1)
		var ve *errors.ValidationError
		assert.True(t, errors.As(err, &ve), "n=%d f=%g", tc.n, tc.f)
	}
}

func TestKFoldSplit(t *testing.T) {
	tests := []struct {
		n, k    int
		shuffle bool
	}{
		{50, 10, true},
		{53, 10, true},
		{10, 10, false},
		{7, 3, false},
	}
	for _, tt := range tests {
		folds, err := NewKFold(tt.k, tt.shuffle, 18).Split(tt.n)
		require.NoError(t, err)
		require.Len(t, folds, tt.k)

		minSize, maxSize := tt.n, 0
		union := make(map[int]int)
		for _, f := range folds {
			assert.Equal(t, tt.n, len(f.Train)+len(f.Test))
			if len(f.Test) < minSize {
				minSize = len(f.Test)
			}
			if len(f.Test) > maxSize {
				maxSize = len(f.Test)
			}
			inTest := make(map[int]bool)
			for _, i := range f.Test {
				union[i]++
				inTest[i] = true
			}
			for _, i := range f.Train {
				assert.False(t, inTest[i])
			}
		}
		assert.LessOrEqual(t, maxSize-minSize, 1)
		assert.Len(t, union, tt.n)
		for i, c := range union {
			assert.Equal(t, 1, c, "row %d held out %d times", i, c)
		}
	}
}

func TestKFoldDeterministicAndIDs(t *testing.T) {
	f1, err := NewKFold(10, true, 18).Split(50)
	require.NoError(t, err)
	f2, err := NewKFold(10, true, 18).Split(50)
	require.NoError(t, err)
	assert.Equal(t, f1, f2)
	assert.Equal(t, "Fold01", f1[0].ID)
	assert.Equal(t, "Fold10", f1[9].ID)

	_, err = NewKFold(1, true, 1).Split(10)
	assert.Error(t, err)
	_, err = NewKFold(11, true, 1).Split(10)
	assert.Error(t, err)
}

func TestRepeatedKFold(t *testing.T) {
	folds, err := NewRepeatedKFold(5, 2, 3).Split(20)
	require.NoError(t, err)
	require.Len(t, folds, 10)
	assert.Equal(t, "Repeat1/Fold01", folds[0].ID)
	assert.Equal(t, "Repeat2/Fold05", folds[9].ID)

	single, err := NewSplitter(5, 1, 3).Split(20)
	require.NoError(t, err)
	plain, err := NewKFold(5, true, 3).Split(20)
	require.NoError(t, err)
	assert.Equal(t, plain, single)
}

func TestRegularGrid(t *testing.T) {
	grid, err := RegularGrid(0, 10, 0.5)
	require.NoError(t, err)
	require.Len(t, grid, 21)
	assert.Equal(t, 0.0, grid[0])
	assert.Equal(t, 10.0, grid[20])
	assert.Equal(t, 0.3, mustGrid(t, 0, 1, 0.1)[3])

	single, err := RegularGrid(2, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, []float64{2}, single)

	_, err = RegularGrid(-1, 1, 0.5)
	assert.Error(t, err)
	_, err = RegularGrid(1, 0, 0.5)
	assert.Error(t, err)
	_, err = RegularGrid(0, 1, 0)
	assert.Error(t, err)

	// 上限を超える点数は確保する前に拒否する
	for _, step := range []float64{1e-15, 1e-6} {
		_, err = RegularGrid(0, 10, step)
		var ve *errors.ValidationError
		require.True(t, errors.As(err, &ve), "step %g: %v", step, err)
		assert.Equal(t, "penalty_step", ve.ParamName)
	}
	capped, err := RegularGrid(0, MaxGridPoints-1, 1)
	require.NoError(t, err)
	assert.Len(t, capped, MaxGridPoints)
}

func mustGrid(t *testing.T, min, max, step float64) []float64 {
	t.Helper()
	g, err := RegularGrid(min, max, step)
	require.NoError(t, err)
	return g
}

func recordsOf(metric string, means ...float64) []MetricRecord {
	out := make([]MetricRecord, len(means))
	for i, m := range means {
		out[i] = MetricRecord{Penalty: float64(i) * 0.5, Mixture: 0.5, Metric: metric, Mean: m, StdErr: 0.1, N: 10}
	}
	return out
}

func TestSelectBest(t *testing.T) {
	set := metrics.DefaultMetricSet()
	tests := []struct {
		name    string
		records []MetricRecord
		metric  string
		policy  TiePolicy
		want    float64
	}{
		{"unique minimum rmse", recordsOf("rmse", 3, 2.5, 1.2, 1.9), "rmse", TieSmallestPenalty, 1.0},
		{"maximum rsq", recordsOf("rsq", 0.5, 0.9, 0.7), "rsq", TieSmallestPenalty, 0.5},
		{"tie smallest", recordsOf("rmse", 2, 1, 3, 1), "rmse", TieSmallestPenalty, 0.5},
		{"tie largest", recordsOf("rmse", 2, 1, 3, 1), "rmse", TieLargestPenalty, 1.5},
		{"tie first", recordsOf("rmse", 1, 2, 1), "rmse", TieFirst, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := SelectBest(tt.records, tt.metric, set, tt.policy)
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.Penalty)
			assert.Equal(t, 0.5, c.Mixture)
		})
	}
}

func TestSelectBestErrors(t *testing.T) {
	set := metrics.DefaultMetricSet()

	_, err := SelectBest(nil, "rmse", set, TieFirst)
	var se *errors.SelectionError
	require.True(t, errors.As(err, &se))
	assert.True(t, errors.Is(err, errors.ErrNoRecords))

	_, err = SelectBest(recordsOf("rmse", 1), "mae", set, TieFirst)
	require.True(t, errors.As(err, &se))
	assert.True(t, errors.Is(err, errors.ErrUnknownMetric))
}

func TestSelectByOneStdErr(t *testing.T) {
	set := metrics.DefaultMetricSet()
	// best at penalty 0.5 (1.0 ± 0.1); 1.0 and 1.5 lie within one SE
	recs := recordsOf("rmse", 1.3, 1.0, 1.05, 1.1, 1.4)
	c, err := SelectByOneStdErr(recs, "rmse", set)
	require.NoError(t, err)
	assert.Equal(t, 1.5, c.Penalty)
}

func TestParseTiePolicy(t *testing.T) {
	p, err := ParseTiePolicy("")
	require.NoError(t, err)
	assert.Equal(t, TieSmallestPenalty, p)
	p, err = ParseTiePolicy("largest_penalty")
	require.NoError(t, err)
	assert.Equal(t, TieLargestPenalty, p)
	_, err = ParseTiePolicy("random")
	assert.Error(t, err)
}

type scenario struct {
	train, test *dataset.Design
	folds       []Fold
	grid        []float64
}

func newScenario(t *testing.T) scenario {
	t.Helper()
	tbl, err := dataset.MakeRegression(100, 3, 1.0, 18)
	require.NoError(t, err)
	trainRows, testRows, err := TrainTestSplit(tbl.NumRows(), 0.5, 18)
	require.NoError(t, err)

	trainTbl, err := tbl.Subset(trainRows)
	require.NoError(t, err)
	testTbl, err := tbl.Subset(testRows)
	require.NoError(t, err)
	train, enc, err := trainTbl.Design(dataset.SyntheticTarget)
	require.NoError(t, err)
	test, err := enc.Transform(testTbl)
	require.NoError(t, err)

	folds, err := NewKFold(10, true, 18).Split(train.Rows())
	require.NoError(t, err)
	return scenario{train: train, test: test, folds: folds, grid: mustGrid(t, 0, 10, 0.5)}
}

func TestTuneGridEndToEnd(t *testing.T) {
	s := newScenario(t)
	set := metrics.DefaultMetricSet()
	logger, _ := log.NewTestLogger(log.LevelDebug)

	res, err := TuneGrid(context.Background(), pipeline.DefaultSpec(), s.train.X, s.train.Y,
		s.folds, s.grid, set, WithWorkers(4), WithLogger(logger))
	require.NoError(t, err)

	assert.Equal(t, 210, res.Cycles())
	assert.Len(t, res.Scores, 210*set.Len())
	assert.Len(t, res.Records, 21*set.Len())

	rmse := res.CollectMetrics("rmse")
	require.Len(t, rmse, 21)
	for i, r := range rmse {
		assert.Equal(t, s.grid[i], r.Penalty)
		assert.Equal(t, 0.5, r.Mixture)
		assert.Equal(t, 10, r.N)
		assert.Greater(t, r.Mean, 0.0)
		assert.GreaterOrEqual(t, r.StdErr, 0.0)
	}

	best, err := SelectBest(res.Records, "rmse", set, TieSmallestPenalty)
	require.NoError(t, err)
	assert.Contains(t, s.grid, best.Penalty)

	final, err := LastFit(context.Background(), Finalize(pipeline.DefaultSpec(), best), s.train, s.test, set)
	require.NoError(t, err)
	v, ok := final.Metric("rmse")
	require.True(t, ok)
	assert.Greater(t, v, 0.0)
	assert.Len(t, final.Predictions, s.test.Rows())
	assert.Len(t, final.Importance, 3)
	assert.True(t, final.Workflow.IsFitted())

	assert.True(t, logger.ContainsMessage("tuning started"))
	assert.True(t, logger.ContainsMessage("tuning finished"))
}

func TestTuneGridIdempotent(t *testing.T) {
	s := newScenario(t)
	set := metrics.DefaultMetricSet()

	r1, err := TuneGrid(context.Background(), pipeline.DefaultSpec(), s.train.X, s.train.Y, s.folds, s.grid, set, WithWorkers(1))
	require.NoError(t, err)
	r2, err := TuneGrid(context.Background(), pipeline.DefaultSpec(), s.train.X, s.train.Y, s.folds, s.grid, set, WithWorkers(8))
	require.NoError(t, err)

	require.Len(t, r2.Records, len(r1.Records))
	for i, w := range r1.Records {
		g := r2.Records[i]
		assert.Equal(t, w.Candidate(), g.Candidate())
		assert.Equal(t, w.Metric, g.Metric)
		assert.Equal(t, w.N, g.N)
		assertSameFloat(t, w.Mean, g.Mean)
		assertSameFloat(t, w.StdErr, g.StdErr)
	}
	require.Len(t, r2.Scores, len(r1.Scores))
	for i, w := range r1.Scores {
		g := r2.Scores[i]
		assert.Equal(t, w.Fold, g.Fold)
		assert.Equal(t, w.Metric, g.Metric)
		assertSameFloat(t, w.Value, g.Value)
	}
}

// assertSameFloat treats two NaN values as equal.
func assertSameFloat(t *testing.T, want, got float64) {
	t.Helper()
	if math.IsNaN(want) {
		assert.True(t, math.IsNaN(got), "want NaN, got %v", got)
		return
	}
	assert.Equal(t, want, got)
}

// x2 はほぼ x1 のコピー。ペナルティ 0 でも既定の反復上限で収束すること
func TestTuneGridCollinearPredictors(t *testing.T) {
	const n = 50
	rng := rand.New(rand.NewPCG(18, 0))
	X := mat.NewDense(n, 2, nil)
	y := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		x1 := rng.NormFloat64()
		x2 := x1 + 0.02*rng.NormFloat64()
		X.Set(i, 0, x1)
		X.Set(i, 1, x2)
		y.SetVec(i, x1+x2+rng.NormFloat64())
	}
	folds, err := NewKFold(10, true, 18).Split(n)
	require.NoError(t, err)
	grid := mustGrid(t, 0, 10, 0.5)

	res, err := TuneGrid(context.Background(), pipeline.DefaultSpec(), X, y, folds, grid,
		metrics.DefaultMetricSet(), WithWorkers(4))
	require.NoError(t, err)

	rmse := res.CollectMetrics(metrics.NameRMSE)
	require.Len(t, rmse, len(grid))
	assert.Equal(t, 0.0, rmse[0].Penalty)
	assert.Equal(t, 10, rmse[0].N)
	assert.False(t, math.IsNaN(rmse[0].Mean))
}

func TestTuneGridAbortsOnFitError(t *testing.T) {
	s := newScenario(t)
	set := metrics.DefaultMetricSet()

	_, err := TuneGrid(context.Background(), pipeline.DefaultSpec(), s.train.X, s.train.Y,
		s.folds, []float64{0, -1, 1}, set, WithWorkers(2))
	require.Error(t, err)
	var fe *errors.FitError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, -1.0, fe.Penalty)
}

func TestTuneGridCancelled(t *testing.T) {
	s := newScenario(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := TuneGrid(ctx, pipeline.DefaultSpec(), s.train.X, s.train.Y, s.folds, s.grid, metrics.DefaultMetricSet())
	assert.Error(t, err)
}

func TestSummarizeExcludesNaN(t *testing.T) {
	rec := summarize(1, 0.5, "rsq", []float64{0.2, 0.4})
	assert.Equal(t, 2, rec.N)
	assert.InDelta(t, 0.3, rec.Mean, 1e-12)
	assert.InDelta(t, 0.1, rec.StdErr, 1e-12)

	empty := summarize(1, 0.5, "rsq", nil)
	assert.Equal(t, 0, empty.N)
	assert.True(t, empty.Mean != empty.Mean)
}

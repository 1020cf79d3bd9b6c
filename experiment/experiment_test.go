package experiment

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/enettune/config"
	"github.com/YuminosukeSato/enettune/dataset"
	"github.com/YuminosukeSato/enettune/pkg/errors"
	"github.com/YuminosukeSato/enettune/pkg/log"
	"github.com/YuminosukeSato/enettune/report"
	"github.com/YuminosukeSato/enettune/sklearn/model_selection"
)

func synthTable(t *testing.T) *dataset.Table {
	t.Helper()
	tbl, err := dataset.MakeRegression(100, 3, 1.0, 18)
	require.NoError(t, err)
	return tbl
}

func TestRunTableScenario(t *testing.T) {
	cfg := config.Default()
	logger, _ := log.NewTestLogger(log.LevelInfo)

	res, err := RunTable(context.Background(), cfg, synthTable(t), logger)
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 50, res.Train.Rows())
	assert.Equal(t, 50, res.Test.Rows())
	assert.Len(t, res.Folds, 10)
	assert.Equal(t, 210, res.Tune.Cycles())

	rmse := res.Tune.CollectMetrics("rmse")
	require.Len(t, rmse, 21)
	for _, r := range rmse {
		assert.Equal(t, 10, r.N)
		assert.Equal(t, 0.5, r.Mixture)
	}

	grid, err := cfg.Grid()
	require.NoError(t, err)
	assert.Contains(t, grid, res.Best.Penalty)
	assert.Equal(t, 0.5, res.Best.Mixture)

	_, ok := res.Final.Metric("rmse")
	assert.True(t, ok)
	assert.Equal(t, res.Best, res.Report.Best)
	assert.Len(t, res.Report.CV, 2)

	assert.True(t, logger.ContainsMessage("data split"))
	assert.True(t, logger.ContainsMessage("candidate selected"))
	assert.True(t, logger.ContainsField(log.RunIDKey, res.RunID))
}

func TestRunTableIdempotent(t *testing.T) {
	cfg := config.Default()
	cfg.Workers = 3

	r1, err := RunTable(context.Background(), cfg, synthTable(t), nil)
	require.NoError(t, err)
	r2, err := RunTable(context.Background(), cfg, synthTable(t), nil)
	require.NoError(t, err)

	assert.NotEqual(t, r1.RunID, r2.RunID)
	assertSameRecords(t, r1.Tune.Records, r2.Tune.Records)
	assert.Equal(t, r1.Best, r2.Best)
	require.Len(t, r2.Final.Metrics, len(r1.Final.Metrics))
	for i, e := range r1.Final.Metrics {
		assert.Equal(t, e.Metric, r2.Final.Metrics[i].Metric)
		assertSameFloat(t, e.Value, r2.Final.Metrics[i].Value, e.Metric)
	}
	assert.Equal(t, r1.Final.Predictions, r2.Final.Predictions)

	// CSV に書き出した結果もバイト単位で一致する
	var b1, b2 bytes.Buffer
	require.NoError(t, report.WriteTuneMetricsCSV(&b1, r1.Tune.Records))
	require.NoError(t, report.WriteTuneMetricsCSV(&b2, r2.Tune.Records))
	assert.Equal(t, b1.String(), b2.String())
}

// assertSameRecords compares metric records field by field. Two NaN means
// (rsq on a fold with constant predictions) count as equal.
func assertSameRecords(t *testing.T, want, got []model_selection.MetricRecord) {
	t.Helper()
	require.Len(t, got, len(want))
	for i, w := range want {
		g := got[i]
		assert.Equal(t, w.Candidate(), g.Candidate(), "record %d", i)
		assert.Equal(t, w.Metric, g.Metric, "record %d", i)
		assert.Equal(t, w.N, g.N, "record %d", i)
		assertSameFloat(t, w.Mean, g.Mean, w.Metric)
		assertSameFloat(t, w.StdErr, g.StdErr, w.Metric)
	}
}

func assertSameFloat(t *testing.T, want, got float64, name string) {
	t.Helper()
	if math.IsNaN(want) {
		assert.True(t, math.IsNaN(got), "%s: want NaN, got %v", name, got)
		return
	}
	assert.Equal(t, want, got, name)
}

func TestRunTableOneStdErr(t *testing.T) {
	cfg := config.Default()
	cfg.OneStdErr = true

	res, err := RunTable(context.Background(), cfg, synthTable(t), nil)
	require.NoError(t, err)

	best, err := RunTable(context.Background(), config.Default(), synthTable(t), nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.Best.Penalty, best.Best.Penalty)
	assert.Equal(t, "one_std_err", res.Report.TiePolicy)
}

func TestRunWritesOutputs(t *testing.T) {
	dir := t.TempDir()
	dataPath := filepath.Join(dir, "synth.csv")
	f, err := os.Create(dataPath)
	require.NoError(t, err)
	require.NoError(t, dataset.WriteCSV(f, synthTable(t)))
	require.NoError(t, f.Close())

	cfg := config.Default()
	cfg.DataPath = dataPath
	cfg.OutputDir = filepath.Join(dir, "out")
	cfg.PenaltyMax = 2

	res, err := Run(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "synth.csv", res.Report.Dataset)

	for _, name := range []string{
		report.TuneMetricsFile, report.FoldScoresFile, report.PredictionsFile,
		report.FinalReportFile, report.ModelFile, report.WorkflowFile,
		report.TuneCurveFile, report.ImportanceFile, report.ResolvedConfFile,
	} {
		info, err := os.Stat(filepath.Join(cfg.OutputDir, name))
		require.NoError(t, err, name)
		assert.Greater(t, info.Size(), int64(0), name)
	}

	restored, _, err := report.LoadModel(filepath.Join(cfg.OutputDir, report.WorkflowFile))
	require.NoError(t, err)
	pred, err := restored.Predict(res.Test.X)
	require.NoError(t, err)
	for i, p := range res.Final.Predictions {
		assert.InDelta(t, p, pred.At(i, 0), 1e-12)
	}
}

func TestRunErrors(t *testing.T) {
	cfg := config.Default()
	_, err := Run(context.Background(), cfg, nil)
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))

	cfg.DataPath = filepath.Join(t.TempDir(), "missing.csv")
	_, err = Run(context.Background(), cfg, nil)
	var le *errors.LoadError
	assert.True(t, errors.As(err, &le))

	bad := config.Default()
	bad.Folds = 1
	_, err = RunTable(context.Background(), bad, synthTable(t), nil)
	assert.True(t, errors.As(err, &ve))
}

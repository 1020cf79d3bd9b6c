// Package report writes the tabular and human-readable outputs of a tuning
// run: the per-candidate metric table, the per-fold scores, the final
// report and the exported model.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/gocarina/gocsv"
	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/enettune/core/model"
	"github.com/YuminosukeSato/enettune/metrics"
	"github.com/YuminosukeSato/enettune/pkg/errors"
	"github.com/YuminosukeSato/enettune/sklearn/linear_model"
	"github.com/YuminosukeSato/enettune/sklearn/model_selection"
	"github.com/YuminosukeSato/enettune/sklearn/pipeline"
)

// Output file names inside the output directory.
const (
	TuneMetricsFile  = "tune_metrics.csv"
	FoldScoresFile   = "fold_scores.csv"
	FinalReportFile  = "final_report.yaml"
	ModelFile        = "model.json"
	WorkflowFile     = "workflow.gob"
	TuneCurveFile    = "tune_curve.png"
	ImportanceFile   = "variable_importance.png"
	PredictionsFile  = "predictions.csv"
	ResolvedConfFile = "config.yaml"
)

// WriteTuneMetricsCSV writes one row per (candidate, metric).
func WriteTuneMetricsCSV(w io.Writer, records []model_selection.MetricRecord) error {
	if err := gocsv.Marshal(&records, w); err != nil {
		return errors.Wrap(err, "failed to write tuning metrics")
	}
	return nil
}

// WriteFoldScoresCSV writes one row per (candidate, fold, metric).
func WriteFoldScoresCSV(w io.Writer, scores []model_selection.FoldScore) error {
	if err := gocsv.Marshal(&scores, w); err != nil {
		return errors.Wrap(err, "failed to write fold scores")
	}
	return nil
}

// Prediction is one held-out observation with its prediction.
type Prediction struct {
	Row       int     `csv:"row"`
	Observed  float64 `csv:"observed"`
	Predicted float64 `csv:"predicted"`
	Residual  float64 `csv:"residual"`
}

// WritePredictionsCSV writes the test-set predictions of the final fit.
func WritePredictionsCSV(w io.Writer, observed, predicted []float64) error {
	if len(observed) != len(predicted) {
		return errors.NewDimensionError("WritePredictionsCSV", len(observed), len(predicted), 0)
	}
	rows := make([]Prediction, len(observed))
	for i := range rows {
		rows[i] = Prediction{Row: i + 1, Observed: observed[i], Predicted: predicted[i], Residual: observed[i] - predicted[i]}
	}
	if err := gocsv.Marshal(&rows, w); err != nil {
		return errors.Wrap(err, "failed to write predictions")
	}
	return nil
}

// ReadTuneMetricsCSV parses a table written by WriteTuneMetricsCSV.
func ReadTuneMetricsCSV(r io.Reader) ([]model_selection.MetricRecord, error) {
	var records []model_selection.MetricRecord
	if err := gocsv.Unmarshal(r, &records); err != nil {
		return nil, errors.Wrap(err, "failed to read tuning metrics")
	}
	return records, nil
}

// Final summarises a run: the data, the resampling, the chosen candidate,
// its cross-validated estimate and its test-set metrics.
type Final struct {
	RunID        string                         `yaml:"run_id"`
	Dataset      string                         `yaml:"dataset"`
	Target       string                         `yaml:"target"`
	Rows         int                            `yaml:"rows"`
	TrainRows    int                            `yaml:"train_rows"`
	TestRows     int                            `yaml:"test_rows"`
	Features     []string                       `yaml:"features"`
	Seed         uint64                         `yaml:"seed"`
	Folds        int                            `yaml:"folds"`
	GridSize     int                            `yaml:"grid_size"`
	SelectMetric string                         `yaml:"select_metric"`
	TiePolicy    string                         `yaml:"tie_policy"`
	Best         model_selection.Candidate      `yaml:"best"`
	CV           []model_selection.MetricRecord `yaml:"cv"`
	Spec         pipeline.Spec                  `yaml:"spec"`
	Metrics      []metrics.Estimate             `yaml:"test_metrics"`
	Importance   []linear_model.Importance      `yaml:"importance"`
	Intercept    float64                        `yaml:"intercept"`
}

// WriteFinalYAML encodes f as YAML.
func WriteFinalYAML(w io.Writer, f *Final) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return errors.Wrap(err, "failed to encode final report")
	}
	return errors.WithStack(enc.Close())
}

// ReadFinalYAML decodes a report written by WriteFinalYAML.
func ReadFinalYAML(r io.Reader) (*Final, error) {
	var f Final
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, errors.Wrap(err, "failed to decode final report")
	}
	return &f, nil
}

// Text renders the report as aligned plain text for the terminal.
func (f *Final) Text() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "run %s\n", f.RunID)
	fmt.Fprintf(&buf, "data %s: %d rows (%d train / %d test), target %s\n",
		f.Dataset, f.Rows, f.TrainRows, f.TestRows, f.Target)
	fmt.Fprintf(&buf, "tuning: %d penalties x %d folds, seed %d, selected by %s (%s)\n",
		f.GridSize, f.Folds, f.Seed, f.SelectMetric, f.TiePolicy)
	fmt.Fprintf(&buf, "best: penalty=%g mixture=%g\n\n", f.Best.Penalty, f.Best.Mixture)

	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "metric\tcv mean\tcv std_err\ttest")
	for _, e := range f.Metrics {
		mean, se := "-", "-"
		for _, r := range f.CV {
			if r.Metric == e.Metric {
				mean, se = fmt.Sprintf("%.4f", r.Mean), fmt.Sprintf("%.4f", r.StdErr)
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.4f\n", e.Metric, mean, se, e.Value)
	}
	_ = tw.Flush()

	if len(f.Importance) > 0 {
		buf.WriteString("\n")
		tw = tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "variable\timportance\tsign")
		for _, imp := range f.Importance {
			fmt.Fprintf(tw, "%s\t%.4f\t%s\n", imp.Variable, imp.Importance, imp.Sign)
		}
		_ = tw.Flush()
	}
	return buf.String()
}

// WriteModel exports weights as indented JSON.
func WriteModel(path string, weights *model.ModelWeights) error {
	if weights == nil {
		return errors.NewValueError("WriteModel", "nil weights")
	}
	data, err := weights.ToJSON()
	if err != nil {
		return err
	}
	var out bytes.Buffer
	if err := indentJSON(&out, data); err != nil {
		return err
	}
	if err := mkdirFor(path); err != nil {
		return err
	}
	if err := os.WriteFile(path, out.Bytes(), 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return nil
}

// SaveModel persists the fitted workflow with gob. It can be restored with
// LoadModel.
func SaveModel(path string, snap *pipeline.Snapshot) error {
	if snap == nil {
		return errors.NewValueError("SaveModel", "nil snapshot")
	}
	if err := mkdirFor(path); err != nil {
		return err
	}
	return model.SaveModel(snap, path)
}

// LoadModel restores a workflow saved by SaveModel.
func LoadModel(path string) (*pipeline.Workflow, *pipeline.Snapshot, error) {
	var snap pipeline.Snapshot
	if err := model.LoadModel(&snap, path); err != nil {
		return nil, nil, err
	}
	w, err := pipeline.Restore(&snap)
	if err != nil {
		return nil, nil, err
	}
	return w, &snap, nil
}

// WriteFile creates path and hands the file to write.
func WriteFile(path string, write func(io.Writer) error) (err error) {
	if err := mkdirFor(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrapf(cerr, "failed to close %s", path)
		}
	}()
	return write(f)
}

func indentJSON(dst *bytes.Buffer, data []byte) error {
	if err := json.Indent(dst, data, "", "  "); err != nil {
		return errors.Wrap(err, "failed to format model JSON")
	}
	dst.WriteByte('\n')
	return nil
}

func mkdirFor(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create directory %s", dir)
	}
	return nil
}

// Package viz renders the tuning curve and the variable-importance chart as
// PNG images with gonum/plot.
package viz

import (
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/YuminosukeSato/enettune/pkg/errors"
	"github.com/YuminosukeSato/enettune/sklearn/linear_model"
	"github.com/YuminosukeSato/enettune/sklearn/model_selection"
)

// Panel sizes.
const (
	PanelWidth  = 6 * vg.Inch
	PanelHeight = 3 * vg.Inch
)

var (
	posColor = color.RGBA{R: 0x1b, G: 0x9e, B: 0x77, A: 0xff}
	negColor = color.RGBA{R: 0xd9, G: 0x5f, B: 0x02, A: 0xff}
)

// errPoints は平均値と ±1 標準誤差のエラーバー
type errPoints struct {
	plotter.XYs
	plotter.YErrors
}

// TuningCurve draws the mean of every metric against penalty, one panel per
// metric stacked vertically, with ±1 standard error bars, and writes a PNG.
func TuningCurve(result *model_selection.TuneResult, path string) error {
	if result == nil || len(result.Records) == 0 {
		return errors.NewValueError("TuningCurve", "no tuning records to plot")
	}
	names := result.Metrics.Names()
	if len(names) == 0 {
		names = metricNames(result.Records)
	}

	plots := make([][]*plot.Plot, len(names))
	for i, name := range names {
		p, err := curvePanel(name, result.CollectMetrics(name), i)
		if err != nil {
			return errors.Wrapf(err, "tuning curve for %s", name)
		}
		plots[i] = []*plot.Plot{p}
	}

	img := vgimg.New(PanelWidth, PanelHeight*vg.Length(len(names)))
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows:      len(names),
		Cols:      1,
		PadX:      vg.Millimeter,
		PadY:      vg.Millimeter * 2,
		PadTop:    vg.Millimeter * 2,
		PadBottom: vg.Millimeter * 2,
		PadLeft:   vg.Millimeter * 2,
		PadRight:  vg.Millimeter * 2,
	}
	canvases := plot.Align(plots, tiles, dc)
	for i := range plots {
		plots[i][0].Draw(canvases[i][0])
	}
	return writePNG(img, path)
}

func curvePanel(metric string, records []model_selection.MetricRecord, idx int) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = metric
	p.X.Label.Text = "penalty"
	p.Y.Label.Text = "mean"
	p.Add(plotter.NewGrid())

	pts := errPoints{}
	for _, r := range records {
		if math.IsNaN(r.Mean) {
			continue
		}
		se := r.StdErr
		if math.IsNaN(se) {
			se = 0
		}
		pts.XYs = append(pts.XYs, plotter.XY{X: r.Penalty, Y: r.Mean})
		pts.YErrors = append(pts.YErrors, struct{ Low, High float64 }{se, se})
	}
	if len(pts.XYs) == 0 {
		return p, nil
	}

	line, scatter, err := plotter.NewLinePoints(pts.XYs)
	if err != nil {
		return nil, err
	}
	line.Color = plotutil.Color(idx)
	scatter.Color = plotutil.Color(idx)
	scatter.Shape = plotutil.Shape(0)

	bars, err := plotter.NewYErrorBars(pts)
	if err != nil {
		return nil, err
	}
	bars.Color = plotutil.Color(idx)

	p.Add(line, scatter, bars)
	return p, nil
}

// VariableImportance draws a horizontal bar per predictor, coloured by the
// sign of its coefficient, largest at the top, and writes a PNG.
func VariableImportance(importance []linear_model.Importance, path string) error {
	if len(importance) == 0 {
		return errors.NewValueError("VariableImportance", "no importance values to plot")
	}

	n := len(importance)
	names := make([]string, n)
	pos := make(plotter.Values, n)
	neg := make(plotter.Values, n)
	// 先頭 (最大) を上に描くため逆順で並べる
	for i, imp := range importance {
		j := n - 1 - i
		names[j] = imp.Variable
		if imp.Sign == "NEG" {
			neg[j] = imp.Importance
		} else {
			pos[j] = imp.Importance
		}
	}

	p := plot.New()
	p.Title.Text = "Variable importance"
	p.X.Label.Text = "|coefficient|"

	width := vg.Points(18)
	posBars, err := plotter.NewBarChart(pos, width)
	if err != nil {
		return errors.Wrap(err, "importance bars")
	}
	posBars.Horizontal = true
	posBars.Color = posColor
	posBars.LineStyle.Width = 0

	negBars, err := plotter.NewBarChart(neg, width)
	if err != nil {
		return errors.Wrap(err, "importance bars")
	}
	negBars.Horizontal = true
	negBars.Color = negColor
	negBars.LineStyle.Width = 0

	p.Add(posBars, negBars)
	p.Legend.Add("POS", posBars)
	p.Legend.Add("NEG", negBars)
	p.Legend.Top = true
	p.NominalY(names...)

	height := vg.Length(n)*vg.Points(28) + 1.5*vg.Inch
	if err := ensureDir(path); err != nil {
		return err
	}
	if err := p.Save(PanelWidth, height, path); err != nil {
		return errors.Wrapf(err, "failed to save plot %s", path)
	}
	return nil
}

func metricNames(records []model_selection.MetricRecord) []string {
	var names []string
	seen := make(map[string]bool)
	for _, r := range records {
		if !seen[r.Metric] {
			seen[r.Metric] = true
			names = append(names, r.Metric)
		}
	}
	return names
}

func writePNG(img *vgimg.Canvas, path string) (err error) {
	if !strings.EqualFold(filepath.Ext(path), ".png") {
		return errors.NewValidationError("path", "tuning curve must be written as .png", path)
	}
	if err := ensureDir(path); err != nil {
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
	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(f); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create directory %s", dir)
	}
	return nil
}

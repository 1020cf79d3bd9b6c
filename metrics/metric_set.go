package metrics

import (
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/enettune/pkg/errors"
)

// Direction tells whether smaller or larger values of a metric are better.
type Direction int

const (
	// Minimize is used by error metrics (rmse, mae, mape).
	Minimize Direction = iota
	// Maximize is used by goodness-of-fit metrics (rsq, rsq_trad, explained_variance).
	Maximize
)

func (d Direction) String() string {
	if d == Maximize {
		return "maximize"
	}
	return "minimize"
}

// Better reports whether a is strictly better than b in this direction.
func (d Direction) Better(a, b float64) bool {
	if d == Maximize {
		return a > b
	}
	return a < b
}

// Metric is a named scoring function.
type Metric struct {
	Name      string
	Direction Direction
	Fn        func(yTrue, yPred *mat.VecDense) (float64, error)
}

// Estimate is the value of one metric on one set of predictions.
type Estimate struct {
	Metric string  `json:"metric" yaml:"metric" csv:"metric"`
	Value  float64 `json:"value" yaml:"value" csv:"value"`
}

// Metric names understood by NewMetricSet.
const (
	NameRMSE    = "rmse"
	NameRSQ     = "rsq"
	NameRSQTrad = "rsq_trad"
	NameMAE     = "mae"
	NameMAPE    = "mape"
	NameExplVar = "explained_variance"
)

var registry = map[string]Metric{
	NameRMSE:    {Name: NameRMSE, Direction: Minimize, Fn: RMSE},
	NameRSQ:     {Name: NameRSQ, Direction: Maximize, Fn: RSquared},
	NameRSQTrad: {Name: NameRSQTrad, Direction: Maximize, Fn: rsqTrad},
	NameMAE:     {Name: NameMAE, Direction: Minimize, Fn: MAE},
	NameMAPE:    {Name: NameMAPE, Direction: Minimize, Fn: MAPE},
	NameExplVar: {Name: NameExplVar, Direction: Maximize, Fn: explainedVariance},
}

// rsqTrad is R2Score that yields NaN instead of failing on constant yTrue,
// so a single degenerate fold does not abort a tuning run.
func rsqTrad(yTrue, yPred *mat.VecDense) (float64, error) {
	if yTrue.Len() > 0 && yPred.Len() == yTrue.Len() && isConstant(yTrue) {
		errors.Warn(errors.NewUndefinedMetricWarning(NameRSQTrad, "constant observations", math.NaN()))
		return math.NaN(), nil
	}
	return R2Score(yTrue, yPred)
}

// explainedVariance is the NaN-on-constant variant of ExplainedVarianceScore.
func explainedVariance(yTrue, yPred *mat.VecDense) (float64, error) {
	if yTrue.Len() > 0 && yPred.Len() == yTrue.Len() && isConstant(yTrue) {
		errors.Warn(errors.NewUndefinedMetricWarning(NameExplVar, "constant observations", math.NaN()))
		return math.NaN(), nil
	}
	return ExplainedVarianceScore(yTrue, yPred)
}

// Available lists the registered metric names in sorted order.
func Available() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MetricSet is an ordered collection of metrics computed together.
type MetricSet struct {
	metrics []Metric
}

// DefaultMetricSet returns rmse followed by rsq.
func DefaultMetricSet() MetricSet {
	return MetricSet{metrics: []Metric{registry[NameRMSE], registry[NameRSQ]}}
}

// NewMetricSet builds a set from names, keeping their order. No names gives
// the default set.
func NewMetricSet(names ...string) (MetricSet, error) {
	if len(names) == 0 {
		return DefaultMetricSet(), nil
	}
	seen := make(map[string]bool, len(names))
	set := MetricSet{}
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		m, ok := registry[name]
		if !ok {
			return MetricSet{}, errors.NewValidationError("metrics",
				"unknown metric, expected one of "+strings.Join(Available(), ", "), raw)
		}
		if seen[name] {
			return MetricSet{}, errors.NewValidationError("metrics", "duplicate metric", raw)
		}
		seen[name] = true
		set.metrics = append(set.metrics, m)
	}
	return set, nil
}

// Len returns the number of metrics.
func (s MetricSet) Len() int { return len(s.metrics) }

// Names returns the metric names in set order.
func (s MetricSet) Names() []string {
	out := make([]string, len(s.metrics))
	for i, m := range s.metrics {
		out[i] = m.Name
	}
	return out
}

// Metrics returns the metrics in set order.
func (s MetricSet) Metrics() []Metric {
	return append([]Metric(nil), s.metrics...)
}

// Lookup finds a metric of the set by name.
func (s MetricSet) Lookup(name string) (Metric, bool) {
	for _, m := range s.metrics {
		if m.Name == name {
			return m, true
		}
	}
	return Metric{}, false
}

// Compute scores yPred against yTrue with every metric of the set. Both
// arguments must be column vectors of equal length.
func (s MetricSet) Compute(yTrue, yPred mat.Matrix) ([]Estimate, error) {
	if len(s.metrics) == 0 {
		return nil, errors.NewValueError("MetricSet.Compute", "empty metric set")
	}
	t, err := asVector("MetricSet.Compute", yTrue)
	if err != nil {
		return nil, err
	}
	p, err := asVector("MetricSet.Compute", yPred)
	if err != nil {
		return nil, err
	}

	out := make([]Estimate, len(s.metrics))
	for i, m := range s.metrics {
		v, err := m.Fn(t, p)
		if err != nil {
			return nil, errors.Wrapf(err, "metric %s", m.Name)
		}
		out[i] = Estimate{Metric: m.Name, Value: v}
	}
	return out, nil
}

func asVector(op string, m mat.Matrix) (*mat.VecDense, error) {
	if v, ok := m.(*mat.VecDense); ok {
		return v, nil
	}
	r, c := m.Dims()
	if c != 1 {
		return nil, errors.NewDimensionError(op, 1, c, 1)
	}
	return mat.NewVecDense(r, mat.Col(nil, 0, m)), nil
}

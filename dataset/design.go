package dataset

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/enettune/pkg/errors"
)

// Design is the numeric form of a table: predictors, target and the names of
// the predictor columns after encoding.
type Design struct {
	X            *mat.Dense
	Y            *mat.VecDense
	FeatureNames []string
}

// Rows returns the number of observations.
func (d *Design) Rows() int {
	r, _ := d.X.Dims()
	return r
}

// Subset copies the given rows into a new Design.
func (d *Design) Subset(rows []int) (*Design, error) {
	X, y, err := SelectRows(d.X, d.Y, rows)
	if err != nil {
		return nil, err
	}
	return &Design{X: X, Y: y, FeatureNames: d.FeatureNames}, nil
}

// SelectRows copies rows of X and y. y may be nil.
func SelectRows(X mat.Matrix, y mat.Vector, rows []int) (*mat.Dense, *mat.VecDense, error) {
	if len(rows) == 0 {
		return nil, nil, errors.NewModelError("SelectRows", "no rows selected", errors.ErrEmptyData)
	}
	r, c := X.Dims()
	outX := mat.NewDense(len(rows), c, nil)
	var outY *mat.VecDense
	if y != nil {
		outY = mat.NewVecDense(len(rows), nil)
	}
	for i, idx := range rows {
		if idx < 0 || idx >= r {
			return nil, nil, errors.NewValidationError("rows", "row index out of range", idx)
		}
		for j := 0; j < c; j++ {
			outX.Set(i, j, X.At(idx, j))
		}
		if y != nil {
			outY.SetVec(i, y.AtVec(idx))
		}
	}
	return outX, outY, nil
}

type encodedColumn struct {
	Name   string
	Kind   Kind
	Levels []string // dummy levels, reference level excluded
}

// Encoder maps a table onto a design matrix. It is learned from one table
// (normally the training split) and reused for others so that every split
// has the same columns.
type Encoder struct {
	Target  string
	columns []encodedColumn
	names   []string
}

// FeatureNames returns the encoded predictor names.
func (e *Encoder) FeatureNames() []string {
	out := make([]string, len(e.names))
	copy(out, e.names)
	return out
}

// NewEncoder learns the encoding of every non-target column of t.
// Categorical levels are sorted; the first is the reference level and gets no
// indicator column.
func NewEncoder(t *Table, target string) (*Encoder, error) {
	tc, ok := t.Column(target)
	if !ok {
		return nil, errors.NewValidationError("target", "column not found", target)
	}
	if tc.Kind != Numeric {
		return nil, errors.NewValidationError("target", "column is not numeric", target)
	}

	enc := &Encoder{Target: target}
	for _, c := range t.columns {
		if c.Name == target {
			continue
		}
		ec := encodedColumn{Name: c.Name, Kind: c.Kind}
		if c.Kind == Numeric {
			enc.names = append(enc.names, c.Name)
		} else {
			levels := uniqueSorted(c.Levels)
			if len(levels) > 1 {
				ec.Levels = levels[1:]
			}
			for _, l := range ec.Levels {
				enc.names = append(enc.names, c.Name+"_"+l)
			}
		}
		enc.columns = append(enc.columns, ec)
	}
	if len(enc.names) == 0 {
		return nil, errors.NewValidationError("predictors", "no predictor columns besides target", target)
	}
	return enc, nil
}

// Transform encodes t. Levels not seen when the encoder was learned map to
// all-zero indicators.
func (e *Encoder) Transform(t *Table) (*Design, error) {
	n := t.NumRows()
	if n == 0 {
		return nil, errors.NewModelError("Encoder.Transform", "empty table", errors.ErrEmptyData)
	}
	tc, ok := t.Column(e.Target)
	if !ok || tc.Kind != Numeric {
		return nil, errors.NewValidationError("target", "numeric target column missing from table", e.Target)
	}

	X := mat.NewDense(n, len(e.names), nil)
	j := 0
	for _, ec := range e.columns {
		c, ok := t.Column(ec.Name)
		if !ok {
			return nil, errors.NewValidationError("column", "column missing from table", ec.Name)
		}
		if c.Kind != ec.Kind {
			return nil, errors.NewValidationError("column", "column kind changed since encoding", ec.Name)
		}
		if ec.Kind == Numeric {
			for i := 0; i < n; i++ {
				X.Set(i, j, c.Values[i])
			}
			j++
			continue
		}
		for k, level := range ec.Levels {
			for i := 0; i < n; i++ {
				if c.Levels[i] == level {
					X.Set(i, j+k, 1)
				}
			}
		}
		j += len(ec.Levels)
	}

	y := mat.NewVecDense(n, append([]float64(nil), tc.Values...))
	return &Design{X: X, Y: y, FeatureNames: e.FeatureNames()}, nil
}

// Design learns an encoder from t and applies it to t.
func (t *Table) Design(target string) (*Design, *Encoder, error) {
	enc, err := NewEncoder(t, target)
	if err != nil {
		return nil, nil, err
	}
	d, err := enc.Transform(t)
	if err != nil {
		return nil, nil, err
	}
	return d, enc, nil
}

func uniqueSorted(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

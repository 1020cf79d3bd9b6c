// Package dataset holds the in-memory tables the tuning workflow runs on:
// loading from delimited files, row subsets, and conversion to design
// matrices with dummy-encoded categorical predictors.
package dataset

import (
	"fmt"

	"github.com/YuminosukeSato/enettune/pkg/errors"
)

// Kind is the inferred type of a column.
type Kind int

const (
	// Numeric columns hold float64 values.
	Numeric Kind = iota
	// Categorical columns hold string levels.
	Categorical
)

func (k Kind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case Categorical:
		return "categorical"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Column is one named column. Exactly one of Values (Numeric) or Levels
// (Categorical) is populated.
type Column struct {
	Name   string
	Kind   Kind
	Values []float64
	Levels []string
}

// Len returns the number of rows in the column.
func (c *Column) Len() int {
	if c.Kind == Numeric {
		return len(c.Values)
	}
	return len(c.Levels)
}

func (c *Column) subset(rows []int) *Column {
	out := &Column{Name: c.Name, Kind: c.Kind}
	if c.Kind == Numeric {
		out.Values = make([]float64, len(rows))
		for i, r := range rows {
			out.Values[i] = c.Values[r]
		}
		return out
	}
	out.Levels = make([]string, len(rows))
	for i, r := range rows {
		out.Levels[i] = c.Levels[r]
	}
	return out
}

// NumericColumn builds a numeric column.
func NumericColumn(name string, values []float64) *Column {
	return &Column{Name: name, Kind: Numeric, Values: values}
}

// CategoricalColumn builds a categorical column.
func CategoricalColumn(name string, levels []string) *Column {
	return &Column{Name: name, Kind: Categorical, Levels: levels}
}

// Table is an immutable rows × named-columns dataset. Tables are never
// mutated after construction; Subset returns a new table.
type Table struct {
	name    string
	columns []*Column
	index   map[string]int
	nRows   int
}

// NewTable validates that column names are unique and lengths agree.
func NewTable(name string, columns ...*Column) (*Table, error) {
	if len(columns) == 0 {
		return nil, errors.NewModelError("NewTable", "no columns", errors.ErrEmptyData)
	}
	t := &Table{
		name:    name,
		columns: columns,
		index:   make(map[string]int, len(columns)),
		nRows:   columns[0].Len(),
	}
	for i, c := range columns {
		if c.Name == "" {
			return nil, errors.NewValidationError("column", "name must not be empty", i)
		}
		if _, dup := t.index[c.Name]; dup {
			return nil, errors.NewValidationError("column", "duplicate column name", c.Name)
		}
		if c.Len() != t.nRows {
			return nil, errors.NewDimensionError("NewTable", t.nRows, c.Len(), 0)
		}
		t.index[c.Name] = i
	}
	return t, nil
}

// Name returns the table name (usually the source file name).
func (t *Table) Name() string { return t.name }

// NumRows returns the number of rows.
func (t *Table) NumRows() int { return t.nRows }

// NumCols returns the number of columns.
func (t *Table) NumCols() int { return len(t.columns) }

// Names returns column names in file order.
func (t *Table) Names() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// Column looks a column up by name.
func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.columns[i], true
}

// Columns returns the columns in file order. Callers must not modify them.
func (t *Table) Columns() []*Column {
	out := make([]*Column, len(t.columns))
	copy(out, t.columns)
	return out
}

// Subset returns a new table holding the given rows in the given order.
func (t *Table) Subset(rows []int) (*Table, error) {
	for _, r := range rows {
		if r < 0 || r >= t.nRows {
			return nil, errors.NewValidationError("rows", "row index out of range", r)
		}
	}
	cols := make([]*Column, len(t.columns))
	for i, c := range t.columns {
		cols[i] = c.subset(rows)
	}
	out := &Table{name: t.name, columns: cols, index: t.index, nRows: len(rows)}
	return out, nil
}

// Drop returns a table without the named columns. Unknown names are an error.
func (t *Table) Drop(names ...string) (*Table, error) {
	skip := make(map[string]bool, len(names))
	for _, n := range names {
		if _, ok := t.index[n]; !ok {
			return nil, errors.NewValidationError("drop_columns", "unknown column", n)
		}
		skip[n] = true
	}
	var kept []*Column
	for _, c := range t.columns {
		if !skip[c.Name] {
			kept = append(kept, c)
		}
	}
	return NewTable(t.name, kept...)
}

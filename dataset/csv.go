package dataset

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/enettune/pkg/errors"
)

// LoadOptions controls how a delimited file is parsed.
type LoadOptions struct {
	// Delimiter is the field separator. Zero means detect from the file.
	Delimiter rune
	// Target is the regression target column. It must exist and be numeric.
	Target string
	// Drop lists columns removed right after parsing (ids, free text, ...).
	Drop []string
}

var candidateDelimiters = []rune{',', ';', '\t'}

// LoadCSV reads a delimited file into a Table.
func LoadCSV(path string, opts LoadOptions) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewLoadError(path, 0, "cannot open file", err)
	}
	defer f.Close()

	if opts.Delimiter == 0 && strings.EqualFold(filepath.Ext(path), ".tsv") {
		opts.Delimiter = '\t'
	}
	return ReadCSV(f, path, opts)
}

// ReadCSV parses delimited data from r. name is used in error messages and as
// the table name.
func ReadCSV(r io.Reader, name string, opts LoadOptions) (*Table, error) {
	br := bufio.NewReader(r)
	delim := opts.Delimiter
	if delim == 0 {
		head, _ := br.Peek(4096)
		delim = sniffDelimiter(head)
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comma = delim

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.NewLoadError(name, 0, "empty file", errors.ErrEmptyData)
	}
	if err != nil {
		return nil, errors.NewLoadError(name, 1, "malformed header", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	cells := make([][]string, len(header))
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, errors.NewLoadError(name, line, "malformed record", err)
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		if len(rec) != len(header) {
			return nil, errors.NewLoadError(name, line, "ragged row",
				errors.Newf("expected %d fields, got %d", len(header), len(rec)))
		}
		for j, v := range rec {
			cells[j] = append(cells[j], strings.TrimSpace(v))
		}
	}
	if len(cells) == 0 || len(cells[0]) == 0 {
		return nil, errors.NewLoadError(name, 0, "no data rows", errors.ErrEmptyData)
	}

	cols := make([]*Column, len(header))
	for j, h := range header {
		c, err := inferColumn(name, h, cells[j])
		if err != nil {
			return nil, err
		}
		cols[j] = c
	}

	t, err := NewTable(filepath.Base(name), cols...)
	if err != nil {
		return nil, errors.NewLoadError(name, 1, "invalid header", err)
	}
	if len(opts.Drop) > 0 {
		if t, err = t.Drop(opts.Drop...); err != nil {
			return nil, errors.NewLoadError(name, 1, "invalid drop columns", err)
		}
	}
	if opts.Target != "" {
		tc, ok := t.Column(opts.Target)
		if !ok {
			return nil, errors.NewLoadError(name, 1, "target column '"+opts.Target+"' not found", nil)
		}
		if tc.Kind != Numeric {
			return nil, errors.NewLoadError(name, 0, "target column '"+opts.Target+"' is not numeric", nil)
		}
	}
	return t, nil
}

// inferColumn makes a column numeric when every non-empty cell parses as a
// float. Numeric columns must not have missing cells.
func inferColumn(name, header string, raw []string) (*Column, error) {
	values := make([]float64, len(raw))
	missing := -1
	for i, s := range raw {
		if isMissing(s) {
			if missing < 0 {
				missing = i
			}
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return CategoricalColumn(header, raw), nil
		}
		// ParseFloat は "Inf" や "infinity" も受け付ける
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return nil, errors.NewLoadError(name, i+2,
				fmt.Sprintf("non-finite value %q in numeric column '%s'", s, header), nil)
		}
		values[i] = v
	}
	if missing >= 0 {
		if missing == 0 && allMissing(raw) {
			return CategoricalColumn(header, raw), nil
		}
		// +2: header line and 1-based numbering
		return nil, errors.NewLoadError(name, missing+2, "missing value in numeric column '"+header+"'", nil)
	}
	return NumericColumn(header, values), nil
}

func isMissing(s string) bool {
	switch s {
	case "", "NA", "NaN", "nan", "null":
		return true
	}
	return false
}

func allMissing(raw []string) bool {
	for _, s := range raw {
		if !isMissing(s) {
			return false
		}
	}
	return true
}

// sniffDelimiter picks the candidate delimiter that occurs most often on the
// first line, defaulting to a comma.
func sniffDelimiter(head []byte) rune {
	if i := bytes.IndexByte(head, '\n'); i >= 0 {
		head = head[:i]
	}
	best, bestN := ',', 0
	for _, d := range candidateDelimiters {
		if n := bytes.Count(head, []byte(string(d))); n > bestN {
			best, bestN = d, n
		}
	}
	return best
}

// WriteCSV writes the table with a header row. Numbers use the shortest
// representation that round-trips.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Names()); err != nil {
		return errors.Wrap(err, "write header")
	}
	rec := make([]string, t.NumCols())
	for i := 0; i < t.NumRows(); i++ {
		for j, c := range t.columns {
			if c.Kind == Numeric {
				rec[j] = strconv.FormatFloat(c.Values[i], 'g', -1, 64)
			} else {
				rec[j] = c.Levels[i]
			}
		}
		if err := cw.Write(rec); err != nil {
			return errors.Wrapf(err, "write row %d", i)
		}
	}
	cw.Flush()
	return errors.WithStack(cw.Error())
}

package model_selection

import (
	"math"
	"strings"

	"github.com/YuminosukeSato/enettune/metrics"
	"github.com/YuminosukeSato/enettune/pkg/errors"
)

// TiePolicy decides between candidates whose mean metric values are equal.
type TiePolicy int

const (
	// TieSmallestPenalty keeps the least regularised candidate.
	TieSmallestPenalty TiePolicy = iota
	// TieFirst keeps the candidate that comes first in grid order.
	TieFirst
	// TieLargestPenalty keeps the most regularised candidate.
	TieLargestPenalty
)

// tieTolerance は同点とみなす平均値の差
const tieTolerance = 1e-12

func (p TiePolicy) String() string {
	switch p {
	case TieFirst:
		return "first"
	case TieLargestPenalty:
		return "largest_penalty"
	default:
		return "smallest_penalty"
	}
}

// ParseTiePolicy accepts "first", "smallest_penalty" and "largest_penalty".
// An empty string is the default policy.
func ParseTiePolicy(s string) (TiePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "smallest_penalty":
		return TieSmallestPenalty, nil
	case "first":
		return TieFirst, nil
	case "largest_penalty":
		return TieLargestPenalty, nil
	default:
		return 0, errors.NewValidationError("tie_policy", "must be first, smallest_penalty or largest_penalty", s)
	}
}

// usable returns the records of metric that have a defined mean, keeping
// their order.
func usable(records []MetricRecord, metric string, set metrics.MetricSet) ([]MetricRecord, metrics.Metric, error) {
	m, ok := set.Lookup(metric)
	if !ok {
		return nil, metrics.Metric{}, errors.NewSelectionError(metric, errors.ErrUnknownMetric)
	}
	var out []MetricRecord
	for _, r := range records {
		if r.Metric == metric && !math.IsNaN(r.Mean) {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return nil, m, errors.NewSelectionError(metric, errors.ErrNoRecords)
	}
	return out, m, nil
}

// SelectBest returns the candidate with the best mean value of metric, in the
// metric's direction. Means within 1e-12 of each other are ties and are
// resolved by policy.
func SelectBest(records []MetricRecord, metric string, set metrics.MetricSet, policy TiePolicy) (Candidate, error) {
	recs, m, err := usable(records, metric, set)
	if err != nil {
		return Candidate{}, err
	}

	best := recs[0].Mean
	for _, r := range recs[1:] {
		if m.Direction.Better(r.Mean, best) {
			best = r.Mean
		}
	}

	var chosen *MetricRecord
	for i := range recs {
		r := &recs[i]
		if math.Abs(r.Mean-best) > tieTolerance {
			continue
		}
		if chosen == nil {
			chosen = r
			continue
		}
		switch policy {
		case TieSmallestPenalty:
			if r.Penalty < chosen.Penalty {
				chosen = r
			}
		case TieLargestPenalty:
			if r.Penalty > chosen.Penalty {
				chosen = r
			}
		}
	}
	return chosen.Candidate(), nil
}

// SelectByOneStdErr picks the most regularised candidate (largest penalty)
// whose mean is within one standard error of the best mean.
func SelectByOneStdErr(records []MetricRecord, metric string, set metrics.MetricSet) (Candidate, error) {
	recs, m, err := usable(records, metric, set)
	if err != nil {
		return Candidate{}, err
	}

	bestIdx := 0
	for i, r := range recs {
		if m.Direction.Better(r.Mean, recs[bestIdx].Mean) {
			bestIdx = i
		}
	}
	best := recs[bestIdx]
	se := best.StdErr
	if math.IsNaN(se) {
		se = 0
	}

	chosen := best
	for _, r := range recs {
		within := false
		if m.Direction == metrics.Minimize {
			within = r.Mean <= best.Mean+se+tieTolerance
		} else {
			within = r.Mean >= best.Mean-se-tieTolerance
		}
		if within && r.Penalty > chosen.Penalty {
			chosen = r
		}
	}
	return chosen.Candidate(), nil
}

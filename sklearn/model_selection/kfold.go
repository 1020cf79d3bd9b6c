package model_selection

import (
	"fmt"

	"github.com/YuminosukeSato/enettune/pkg/errors"
)

// Fold is one resample: the model is fitted on Train and scored on Test.
// Indices refer to rows of the matrix being resampled.
type Fold struct {
	ID    string
	Train []int
	Test  []int
}

// Splitter produces folds over n rows.
type Splitter interface {
	Split(n int) ([]Fold, error)
	NSplits() int
}

// KFold partitions rows into K groups of near-equal size; each group is the
// test set of one fold and the other K−1 groups form its training set.
type KFold struct {
	K       int
	Shuffle bool
	Seed    uint64
}

// NewKFold creates a k-fold splitter.
func NewKFold(k int, shuffle bool, seed uint64) *KFold {
	return &KFold{K: k, Shuffle: shuffle, Seed: seed}
}

// NSplits returns K.
func (kf *KFold) NSplits() int { return kf.K }

// Split generates K folds. Group sizes differ by at most one, groups are
// disjoint and their union is 0..n-1.
func (kf *KFold) Split(n int) ([]Fold, error) {
	return kfoldSplit(n, kf.K, kf.Shuffle, kf.Seed, kf.Seed, "")
}

// RepeatedKFold runs KFold Repeats times with a different shuffle each time.
type RepeatedKFold struct {
	K       int
	Repeats int
	Seed    uint64
}

// NewRepeatedKFold creates a repeated k-fold splitter.
func NewRepeatedKFold(k, repeats int, seed uint64) *RepeatedKFold {
	return &RepeatedKFold{K: k, Repeats: repeats, Seed: seed}
}

// NSplits returns K·Repeats.
func (rk *RepeatedKFold) NSplits() int { return rk.K * rk.Repeats }

// Split generates K·Repeats folds with IDs like "Repeat1/Fold01". A single
// repeat gives the same folds and IDs as KFold with shuffling.
func (rk *RepeatedKFold) Split(n int) ([]Fold, error) {
	if rk.Repeats < 1 {
		return nil, errors.NewValidationError("repeats", "must be at least 1", rk.Repeats)
	}
	if rk.Repeats == 1 {
		return NewKFold(rk.K, true, rk.Seed).Split(n)
	}
	out := make([]Fold, 0, rk.K*rk.Repeats)
	for r := 0; r < rk.Repeats; r++ {
		folds, err := kfoldSplit(n, rk.K, true, rk.Seed, rk.Seed+uint64(r), fmt.Sprintf("Repeat%d/", r+1))
		if err != nil {
			return nil, err
		}
		out = append(out, folds...)
	}
	return out, nil
}

// NewSplitter returns KFold (shuffled) for repeats ≤ 1, else RepeatedKFold.
func NewSplitter(k, repeats int, seed uint64) Splitter {
	if repeats <= 1 {
		return NewKFold(k, true, seed)
	}
	return NewRepeatedKFold(k, repeats, seed)
}

func kfoldSplit(n, k int, shuffle bool, seed, stream uint64, prefix string) ([]Fold, error) {
	if k < 2 {
		return nil, errors.NewValidationError("folds", "must be at least 2", k)
	}
	if k > n {
		return nil, errors.NewValidationError("folds", fmt.Sprintf("cannot exceed the number of rows (%d)", n), k)
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	if shuffle {
		order = permutation(n, newRand(seed, stream))
	}

	// group[i] は行 i がテストに入る fold
	group := make([]int, n)
	base, remainder := n/k, n%k
	pos := 0
	for f := 0; f < k; f++ {
		size := base
		if f < remainder {
			size++
		}
		for _, row := range order[pos : pos+size] {
			group[row] = f
		}
		pos += size
	}

	width := len(fmt.Sprint(k))
	if width < 2 {
		width = 2
	}
	folds := make([]Fold, k)
	for f := range folds {
		size := base
		if f < remainder {
			size++
		}
		folds[f] = Fold{
			ID:    fmt.Sprintf("%sFold%0*d", prefix, width, f+1),
			Train: make([]int, 0, n-size),
			Test:  make([]int, 0, size),
		}
	}
	for row, f := range group {
		for g := range folds {
			if g == f {
				folds[g].Test = append(folds[g].Test, row)
			} else {
				folds[g].Train = append(folds[g].Train, row)
			}
		}
	}
	return folds, nil
}

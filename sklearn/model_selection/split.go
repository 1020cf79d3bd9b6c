// Package model_selection resamples the data (train/test split, k-fold
// folds), runs the cross-validated penalty grid search, selects the best
// candidate and fits it on the full training set.
package model_selection

import (
	"math"
	"math/rand/v2"
	"sort"

	"github.com/YuminosukeSato/enettune/pkg/errors"
)

// newRand returns the generator used by every resampling function. The
// same seed always produces the same permutation.
func newRand(seed, stream uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, stream))
}

func permutation(n int, r *rand.Rand) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	r.Shuffle(n, func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
	return idx
}

// TrainTestSplit partitions row indices 0..n-1 into a training and a test
// set. The training set has floor(n·trainFraction) rows, clamped so that
// both sets are non-empty. Both slices are sorted.
func TrainTestSplit(n int, trainFraction float64, seed uint64) (train, test []int, err error) {
	if n < 2 {
		return nil, nil, errors.NewValidationError("n", "need at least 2 rows to split", n)
	}
	if !(trainFraction > 0 && trainFraction < 1) {
		return nil, nil, errors.NewValidationError("train_fraction", "must be in (0, 1)", trainFraction)
	}

	nTrain := int(math.Floor(float64(n) * trainFraction))
	if nTrain < 1 {
		nTrain = 1
	}
	if nTrain > n-1 {
		nTrain = n - 1
	}

	perm := permutation(n, newRand(seed, seed))
	train = append([]int(nil), perm[:nTrain]...)
	test = append([]int(nil), perm[nTrain:]...)
	sort.Ints(train)
	sort.Ints(test)
	return train, test, nil
}

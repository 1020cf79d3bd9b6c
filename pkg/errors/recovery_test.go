package errors

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nanValue() float64 { return math.NaN() }
func infValue() float64 { return math.Inf(1) }

func TestRecover_WithPanic(t *testing.T) {
	testFunc := func() (err error) {
		defer Recover(&err, "fitCycle")
		panic("index out of range")
	}

	err := testFunc()
	require.Error(t, err)

	var panicErr *PanicError
	require.True(t, As(err, &panicErr))
	assert.Equal(t, "fitCycle", panicErr.Operation)
	assert.Equal(t, "index out of range", panicErr.PanicValue)
	assert.NotEmpty(t, panicErr.StackTrace)
	assert.Equal(t, "panic in fitCycle: index out of range", panicErr.Error())
	assert.Contains(t, panicErr.String(), "Stack trace:")
}

func TestRecover_WithoutPanic(t *testing.T) {
	testFunc := func() (err error) {
		defer Recover(&err, "fitCycle")
		return nil
	}
	assert.NoError(t, testFunc())
}

func TestRecover_WithExistingError(t *testing.T) {
	original := fmt.Errorf("solver failed")
	testFunc := func() (err error) {
		defer Recover(&err, "fitCycle")
		err = original
		panic("late panic")
	}

	err := testFunc()
	require.Error(t, err)
	assert.True(t, Is(err, original), "original error must be preserved")
}

func TestSafeExecute(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		assert.NoError(t, SafeExecute("op", func() error { return nil }))
	})

	t.Run("function error", func(t *testing.T) {
		want := fmt.Errorf("boom")
		err := SafeExecute("op", func() error { return want })
		assert.Equal(t, want, err)
	})

	t.Run("panic", func(t *testing.T) {
		err := SafeExecute("op", func() error {
			var m map[string]int
			m["x"] = 1
			return nil
		})
		var panicErr *PanicError
		assert.True(t, As(err, &panicErr))
	})
}

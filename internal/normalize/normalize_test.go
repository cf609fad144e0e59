package normalize

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nucleus-data/expression.report/internal/scmatrix"
)

func normFixture(t *testing.T) *scmatrix.Matrix {
	t.Helper()
	m, err := scmatrix.NewFromColumns(
		[]string{"g0", "g1", "g2"},
		[]string{"c0", "c1", "c2", "c3"},
		[][]scmatrix.Entry{
			{{Gene: 0, Value: 10}, {Gene: 1, Value: 90}},
			{{Gene: 0, Value: 50}, {Gene: 2, Value: 150}},
			{{Gene: 1, Value: 30}},
			{{Gene: 0, Value: 1}, {Gene: 1, Value: 1}, {Gene: 2, Value: 8}},
		},
	)
	require.NoError(t, err)
	return m
}

func TestLogNormalize(t *testing.T) {
	t.Parallel()

	m := normFixture(t)
	norm := LogNormalize(m, 100)

	// Cell c0 totals 100: values scale to themselves before log1p.
	assert.InDelta(t, math.Log1p(10), norm.GeneValues(0)[0], 1e-12)
	assert.InDelta(t, math.Log1p(90), norm.GeneValues(1)[0], 1e-12)

	// Cell c1 totals 200: values halve.
	assert.InDelta(t, math.Log1p(25), norm.GeneValues(0)[1], 1e-12)
	assert.InDelta(t, math.Log1p(75), norm.GeneValues(2)[1], 1e-12)

	// Input untouched.
	assert.Equal(t, []float64{10, 0, 0, 1}, m.GeneValues(0))
}

func TestLogNormalizeEqualizesTotals(t *testing.T) {
	t.Parallel()

	m := normFixture(t)
	// Undo the log to check the scaling step alone.
	scaled := m.Transform(func(cell int, v float64) float64 { return v })
	norm := LogNormalize(scaled, 100)
	back := norm.Transform(func(cell int, v float64) float64 { return math.Expm1(v) })

	for _, total := range back.TotalCounts() {
		assert.InDelta(t, 100, total, 1e-9)
	}
}

func TestHighlyVariable(t *testing.T) {
	t.Parallel()

	m := normFixture(t)

	t.Run("selects top dispersed genes ascending", func(t *testing.T) {
		selected := HighlyVariable(m, 2)
		require.Len(t, selected, 2)
		assert.Less(t, selected[0], selected[1])
	})

	t.Run("clamps to available genes", func(t *testing.T) {
		selected := HighlyVariable(m, 100)
		assert.Equal(t, []int{0, 1, 2}, selected)
	})

	t.Run("zero mean genes excluded", func(t *testing.T) {
		empty, err := scmatrix.NewFromColumns(
			[]string{"g0", "g1"},
			[]string{"c0", "c1"},
			[][]scmatrix.Entry{{{Gene: 0, Value: 5}}, {{Gene: 0, Value: 1}}},
		)
		require.NoError(t, err)
		selected := HighlyVariable(empty, 2)
		assert.Equal(t, []int{0}, selected)
	})
}

func TestScale(t *testing.T) {
	t.Parallel()

	m := normFixture(t)
	x := Scale(m, []int{0, 1, 2}, 10)

	rows, cols := x.Dims()
	assert.Equal(t, 4, rows)
	assert.Equal(t, 3, cols)

	// Each gene column has mean ~0 and unit sample variance.
	for c := 0; c < cols; c++ {
		var sum, sumsq float64
		for r := 0; r < rows; r++ {
			sum += x.At(r, c)
			sumsq += x.At(r, c) * x.At(r, c)
		}
		mean := sum / float64(rows)
		assert.InDelta(t, 0, mean, 1e-9)
		variance := (sumsq - float64(rows)*mean*mean) / float64(rows-1)
		assert.InDelta(t, 1, variance, 1e-9)
	}
}

func TestScaleClipsExtremes(t *testing.T) {
	t.Parallel()

	m := normFixture(t)
	x := Scale(m, []int{0, 1, 2}, 0.5)

	rows, cols := x.Dims()
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			assert.LessOrEqual(t, math.Abs(x.At(r, c)), 0.5)
		}
	}
}

func TestScaleConstantGeneIsZero(t *testing.T) {
	t.Parallel()

	m, err := scmatrix.NewFromColumns(
		[]string{"g0"},
		[]string{"c0", "c1"},
		[][]scmatrix.Entry{{{Gene: 0, Value: 3}}, {{Gene: 0, Value: 3}}},
	)
	require.NoError(t, err)

	x := Scale(m, []int{0}, 10)
	assert.Equal(t, 0.0, x.At(0, 0))
	assert.Equal(t, 0.0, x.At(1, 0))
}

package similarity

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/curriculum-search/pkg/types"
)

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{name: "self", a: []float32{0.3, -1.2, 4}, b: []float32{0.3, -1.2, 4}, want: 1},
		{name: "orthogonal", a: []float32{1, 0}, b: []float32{0, 1}, want: 0},
		{name: "opposite", a: []float32{1, 2}, b: []float32{-1, -2}, want: -1},
		{name: "scaled", a: []float32{1, 2}, b: []float32{10, 20}, want: 1},
		{name: "zero vector", a: []float32{0, 0}, b: []float32{1, 1}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Cosine(tt.a, tt.b)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}

	_, err := Cosine([]float32{1}, []float32{1, 2})
	assert.ErrorIs(t, err, types.ErrDimensionMismatch)
}

func TestSet_Rank(t *testing.T) {
	set := NewSet()
	require.NoError(t, set.Add(1, []float32{1, 0}))
	require.NoError(t, set.Add(2, []float32{0, 1}))
	require.NoError(t, set.Add(3, []float32{1, 1}))
	require.NoError(t, set.Add(4, []float32{2, 0})) // ties with 1

	matches, err := set.Rank([]float32{1, 0}, math.Inf(-1))
	require.NoError(t, err)
	require.Len(t, matches, 4)

	ids := []int64{matches[0].ID, matches[1].ID, matches[2].ID, matches[3].ID}
	assert.Equal(t, []int64{1, 4, 3, 2}, ids)
	for i := 1; i < len(matches); i++ {
		assert.GreaterOrEqual(t, matches[i-1].Similarity, matches[i].Similarity)
	}

	pruned, err := set.Rank([]float32{1, 0}, 0.5)
	require.NoError(t, err)
	assert.Len(t, pruned, 3)
}

func TestSet_DimensionMismatch(t *testing.T) {
	set := NewSet()
	require.NoError(t, set.Add(1, []float32{1, 0, 0}))

	assert.ErrorIs(t, set.Add(2, []float32{1, 0}), types.ErrDimensionMismatch)

	_, err := set.Rank([]float32{1, 0}, 0)
	assert.ErrorIs(t, err, types.ErrDimensionMismatch)

	_, err = set.Similarities([]float32{1})
	assert.ErrorIs(t, err, types.ErrDimensionMismatch)
}

func TestSet_ReplaceKeepsPosition(t *testing.T) {
	set := NewSet()
	require.NoError(t, set.Add(1, []float32{1, 0}))
	require.NoError(t, set.Add(2, []float32{1, 0}))
	require.NoError(t, set.Add(1, []float32{1, 0}))

	assert.Equal(t, 2, set.Len())
	matches, err := set.Rank([]float32{1, 0}, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), matches[0].ID)
}

func TestStore(t *testing.T) {
	st := NewStore()
	require.NoError(t, st.Add(types.KindGoal, 1, []float32{1, 0}))
	require.NoError(t, st.Add(types.KindElaboration, 1, []float32{0, 1}))
	assert.ErrorIs(t, st.Add("unit", 1, []float32{1}), types.ErrInvalidEntityKind)

	goals, err := st.TopSimilar(types.KindGoal, []float32{1, 0}, 0)
	require.NoError(t, err)
	require.Len(t, goals, 1)
	assert.InDelta(t, 1.0, goals[0].Similarity, 1e-9)

	sims, err := st.Similarities(types.KindElaboration, []float32{1, 0})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, sims[1], 1e-9)

	// empty kind ranks to nothing regardless of query dimension
	empty := NewStore()
	matches, err := empty.TopSimilar(types.KindGoal, []float32{1, 2, 3}, 0)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

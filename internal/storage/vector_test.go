package storage

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorSerialization(t *testing.T) {
	tests := []struct {
		name   string
		vector []float32
	}{
		{name: "empty", vector: []float32{}},
		{name: "simple", vector: []float32{1, -2.5, 0.125}},
		{name: "extremes", vector: []float32{math.MaxFloat32, -math.MaxFloat32, math.SmallestNonzeroFloat32}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blob := serializeVector(tt.vector)
			assert.Len(t, blob, len(tt.vector)*4)

			got, err := deserializeVector(blob)
			require.NoError(t, err)
			assert.Equal(t, tt.vector, got)
		})
	}

	_, err := deserializeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}

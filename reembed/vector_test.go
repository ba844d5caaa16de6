package reembed

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeVector(t *testing.T) {
	inv := float32(1 / math.Sqrt(2))
	tests := []struct {
		name string
		in   []float32
		want []float32
	}{
		{"unit", []float32{1, 0, 0}, []float32{1, 0, 0}},
		{"3-4-5", []float32{3, 4}, []float32{0.6, 0.8}},
		{"negative", []float32{-1, 1}, []float32{-inv, inv}},
		{"zero", []float32{0, 0, 0}, []float32{0, 0, 0}},
		{"empty", []float32{}, []float32{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDeltaSlice(t, tt.want, NormalizeVector(tt.in), 1e-6)
		})
	}
}

func TestNormalizeVector_DoesNotMutateInput(t *testing.T) {
	in := []float32{3, 4}
	NormalizeVector(in)
	assert.Equal(t, []float32{3, 4}, in)
}

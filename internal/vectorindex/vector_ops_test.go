package vectorindex

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSerializeVectorLayout(t *testing.T) {
	v := []float32{1, -2.5, float32(math.Pi)}
	blob := serializeVector(v)
	assert.Len(t, blob, 12)
	assert.Equal(t, v, deserializeVector(blob))
	// 1.0 little-endian
	assert.Equal(t, []byte{0x00, 0x00, 0x80, 0x3f}, blob[:4])
}

func TestL2Distance(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{name: "identical", a: []float32{1, 2, 3}, b: []float32{1, 2, 3}, want: 0},
		{name: "3-4-5", a: []float32{0, 0}, b: []float32{3, 4}, want: 5},
		{name: "unit axes", a: []float32{1, 0}, b: []float32{0, 1}, want: math.Sqrt2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, l2Distance(tt.a, tt.b), 1e-6)
		})
	}
}

package jls

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDataTypeRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		dt   DataType
		vals []float64
	}{
		{"u1", DataTypeU1, []float64{0, 1, 1, 0, 1}},
		{"i4", DataTypeI4, []float64{-8, -1, 0, 7}},
		{"u8", DataTypeU8, []float64{0, 128, 255}},
		{"i24", DataTypeI24, []float64{-8388608, 0, 8388607}},
		{"u24", DataTypeU24, []float64{0, 1000000, 16777215}},
		{"i32", DataTypeI32, []float64{-2147483648, 0, 2147483647}},
		{"f32", DataTypeF32, []float64{-1.5, 0, 3.25}},
		{"f64", DataTypeF64, []float64{-1.5e100, 0, 3.25e100}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			raw := make([]byte, c.dt.BytesForNSamples(len(c.vals)))
			for i, v := range c.vals {
				assert.NoError(t, c.dt.WriteSample(raw, i, v))
			}
			for i, want := range c.vals {
				got, err := c.dt.ReadSample(raw, i)
				assert.NoError(t, err)
				assert.InDelta(t, want, got, 1e-6*(1+absF(want)))
			}
		})
	}
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func TestDataTypeQuantization(t *testing.T) {
	dt := DataType{Base: BaseInt, BitWidth: 16, Q: 8}
	raw := make([]byte, dt.BytesForNSamples(1))
	assert.NoError(t, dt.WriteSample(raw, 0, 12.5))
	got, err := dt.ReadSample(raw, 0)
	assert.NoError(t, err)
	assert.InDelta(t, 12.5, got, 1.0/256)
}

func TestDataTypeValidate(t *testing.T) {
	assert.NoError(t, DataTypeF32.Validate())
	assert.Error(t, DataType{Base: BaseFloat, BitWidth: 16}.Validate())
	assert.Error(t, DataType{Base: BaseInt, BitWidth: 3}.Validate())
}

func TestDataTypeZeroFillPacksAcrossByteBoundary(t *testing.T) {
	dt := DataTypeU4
	raw := make([]byte, dt.BytesForNSamples(4))
	for i := 0; i < 4; i++ {
		assert.NoError(t, dt.WriteSample(raw, i, 15))
	}
	dt.ZeroFill(raw, 1, 2)
	v0, _ := dt.ReadSample(raw, 0)
	v1, _ := dt.ReadSample(raw, 1)
	v2, _ := dt.ReadSample(raw, 2)
	v3, _ := dt.ReadSample(raw, 3)
	assert.Equal(t, 15.0, v0)
	assert.Equal(t, 0.0, v1)
	assert.Equal(t, 0.0, v2)
	assert.Equal(t, 15.0, v3)
}

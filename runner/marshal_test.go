package runner

import (
	"math"
	"testing"

	"github.com/LynnColeArt/guda"
	"github.com/notargets/clkernel/runner/signature"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestComplex_RoundTrip(t *testing.T) {
	t.Run("Complex128Slice", func(t *testing.T) {
		in := []complex128{1 + 2i, -3.5 + 0i, 0 - 1e-300i, complex(math.MaxFloat64, -math.SmallestNonzeroFloat64)}
		enc, form, ok := encodeComplex(in)
		require.True(t, ok)
		assert.Equal(t, []float64{1, 2, -3.5, 0, 0, -1e-300, math.MaxFloat64, -math.SmallestNonzeroFloat64}, enc)
		out, err := decodeComplex(enc, form)
		require.NoError(t, err)
		assert.Equal(t, in, out)
	})

	t.Run("Complex64Slice", func(t *testing.T) {
		in := []complex64{1 + 2i, 0.25 - 8i}
		enc, form, ok := encodeComplex(in)
		require.True(t, ok)
		assert.Equal(t, []float32{1, 2, 0.25, -8}, enc)
		out, err := decodeComplex(enc, form)
		require.NoError(t, err)
		assert.Equal(t, in, out)
	})

	t.Run("Scalars", func(t *testing.T) {
		for _, in := range []interface{}{complex64(3 - 4i), complex128(-1 + 0.5i)} {
			enc, form, ok := encodeComplex(in)
			require.True(t, ok)
			out, err := decodeComplex(enc, form)
			require.NoError(t, err)
			assert.Equal(t, in, out)
		}
	})

	t.Run("Matrix", func(t *testing.T) {
		in := mat.NewCDense(2, 3, []complex128{1 + 1i, 2, 3 - 3i, 4i, 5, 6 + 0.5i})
		enc, form, ok := encodeComplex(in)
		require.True(t, ok)
		// column-major: (0,0) (1,0) (0,1) ...
		assert.Equal(t, []float64{1, 1, 0, 4, 2, 0, 5, 0}, enc.([]float64)[:8])
		out, err := decodeComplex(enc, form)
		require.NoError(t, err)
		cd, ok := out.(*mat.CDense)
		require.True(t, ok)
		r, c := cd.Dims()
		require.Equal(t, 2, r)
		require.Equal(t, 3, c)
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				assert.Equal(t, in.At(i, j), cd.At(i, j))
			}
		}
	})

	t.Run("DecodeAfterCast", func(t *testing.T) {
		in := []complex64{1.5 + 2.5i}
		enc, form, _ := encodeComplex(in)
		cast, err := castValue(enc, signature.Float64)
		require.NoError(t, err)
		out, err := decodeComplex(cast, form)
		require.NoError(t, err)
		assert.Equal(t, in, out)
	})

	t.Run("NotComplex", func(t *testing.T) {
		_, _, ok := encodeComplex([]float64{1, 2})
		assert.False(t, ok)
	})

	t.Run("OddLength", func(t *testing.T) {
		_, err := decodeComplex([]float64{1, 2, 3}, hostForm{kind: hostComplex128})
		assert.Error(t, err)
	})
}

func TestCastValue(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		dt   signature.DataType
		want interface{}
	}{
		{"FloatToInt32Rounds", []float64{1.4, 1.6, -2.5, 3e10, math.NaN()}, signature.INT32,
			[]int32{1, 2, -3, math.MaxInt32, 0}},
		{"IntToUint8Saturates", []int{-1, 300, 7}, signature.UINT8, []uint8{0, 255, 7}},
		{"Int64ToInt8", []int64{-200, 5}, signature.INT8, []int8{-128, 5}},
		{"UintToInt16", []uint64{math.MaxUint64, 3}, signature.INT16, []int16{math.MaxInt16, 3}},
		{"ScalarStaysScalar", 2.75, signature.Float32, float32(2.75)},
		{"IntScalarToDouble", 7, signature.Float64, float64(7)},
		{"ToBool", []float32{0, -1, 0.5}, signature.Bool, []bool{false, true, true}},
		{"FromBool", []bool{true, false}, signature.INT32, []int32{1, 0}},
		{"ToHalf", []float64{1.5, -2}, signature.Float16, []guda.Float16{guda.FromFloat32(1.5), guda.FromFloat32(-2)}},
		{"FromHalf", []guda.Float16{guda.FromFloat32(0.5)}, signature.Float64, []float64{0.5}},
		{"Array", [3]int{1, 2, 3}, signature.UINT64, []uint64{1, 2, 3}},
		{"MatrixColumnMajor", mat.NewDense(2, 2, []float64{1, 2, 3, 4}), signature.Float32,
			[]float32{1, 3, 2, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := castValue(tt.in, tt.dt)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("FreshCopy", func(t *testing.T) {
		in := []float32{1, 2, 3}
		got, err := castValue(in, signature.Float32)
		require.NoError(t, err)
		got.([]float32)[0] = 99
		assert.Equal(t, float32(1), in[0])
	})

	t.Run("Unsupported", func(t *testing.T) {
		_, err := castValue([]string{"a"}, signature.Float32)
		assert.Error(t, err)
		_, err = castValue(nil, signature.Float32)
		assert.Error(t, err)
		_, err = castValue(1.0, signature.Unresolved)
		assert.Error(t, err)
	})
}

func TestHostValueShapes(t *testing.T) {
	assert.True(t, isScalarValue(3.0))
	assert.True(t, isScalarValue([]float64{3}))
	assert.True(t, isScalarValue(mat.NewDense(1, 1, []float64{3})))
	assert.False(t, isScalarValue([]float64{1, 2}))
	assert.False(t, isScalarValue(mat.NewDense(2, 1, nil)))

	assert.True(t, hasElementType([]float32{1}, signature.Float32))
	assert.True(t, hasElementType(int32(1), signature.INT32))
	assert.False(t, hasElementType([]float64{1}, signature.Float32))
	assert.False(t, hasElementType(1, signature.INT64))

	m, err := restoreHostForm([]float32{1, 3, 2, 4}, hostForm{kind: hostMatrix, rows: 2, cols: 2})
	require.NoError(t, err)
	assert.True(t, mat.Equal(mat.NewDense(2, 2, []float64{1, 2, 3, 4}), m.(*mat.Dense)))
}

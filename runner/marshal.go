// File: runner/marshal.go

package runner

import (
	"fmt"
	"math"
	"reflect"

	"github.com/LynnColeArt/guda"
	"github.com/notargets/clkernel/runner/signature"
	"gonum.org/v1/gonum/mat"
)

// hostKind records the form an argument was passed in, so that returned
// values can be handed back in the same form
type hostKind int

const (
	hostPlain hostKind = iota
	hostMatrix
	hostComplexScalar64
	hostComplexScalar128
	hostComplex64
	hostComplex128
	hostComplexMatrix
)

type hostForm struct {
	kind       hostKind
	rows, cols int
}

func (f hostForm) isComplex() bool {
	return f.kind >= hostComplexScalar64
}

// encodeComplex turns complex data into a real array with interleaved real
// and imaginary parts. Matrices are flattened column-major first. ok is
// false when v carries no complex values.
func encodeComplex(v interface{}) (out interface{}, form hostForm, ok bool) {
	switch c := v.(type) {
	case complex64:
		return []float32{real(c), imag(c)}, hostForm{kind: hostComplexScalar64}, true
	case complex128:
		return []float64{real(c), imag(c)}, hostForm{kind: hostComplexScalar128}, true
	case []complex64:
		enc := make([]float32, 2*len(c))
		for i, z := range c {
			enc[2*i], enc[2*i+1] = real(z), imag(z)
		}
		return enc, hostForm{kind: hostComplex64}, true
	case []complex128:
		enc := make([]float64, 2*len(c))
		for i, z := range c {
			enc[2*i], enc[2*i+1] = real(z), imag(z)
		}
		return enc, hostForm{kind: hostComplex128}, true
	case mat.CMatrix:
		rows, cols := c.Dims()
		enc := make([]float64, 2*rows*cols)
		for j := 0; j < cols; j++ {
			for i := 0; i < rows; i++ {
				z := c.At(i, j)
				k := j*rows + i
				enc[2*k], enc[2*k+1] = real(z), imag(z)
			}
		}
		return enc, hostForm{kind: hostComplexMatrix, rows: rows, cols: cols}, true
	}
	return v, hostForm{}, false
}

// decodeComplex is the inverse of encodeComplex
func decodeComplex(v interface{}, form hostForm) (interface{}, error) {
	flat, err := toFloat64s(v)
	if err != nil {
		return nil, err
	}
	if len(flat)%2 != 0 {
		return nil, fmt.Errorf("complex data has odd length %d", len(flat))
	}
	n := len(flat) / 2

	switch form.kind {
	case hostComplexScalar64:
		if n != 1 {
			return nil, fmt.Errorf("complex scalar decoded from %d values", n)
		}
		return complex(float32(flat[0]), float32(flat[1])), nil
	case hostComplexScalar128:
		if n != 1 {
			return nil, fmt.Errorf("complex scalar decoded from %d values", n)
		}
		return complex(flat[0], flat[1]), nil
	case hostComplex64:
		out := make([]complex64, n)
		for i := range out {
			out[i] = complex(float32(flat[2*i]), float32(flat[2*i+1]))
		}
		return out, nil
	case hostComplex128:
		out := make([]complex128, n)
		for i := range out {
			out[i] = complex(flat[2*i], flat[2*i+1])
		}
		return out, nil
	case hostComplexMatrix:
		if n != form.rows*form.cols {
			return nil, fmt.Errorf("complex matrix %dx%d decoded from %d values", form.rows, form.cols, n)
		}
		data := make([]complex128, n)
		for j := 0; j < form.cols; j++ {
			for i := 0; i < form.rows; i++ {
				k := j*form.rows + i
				data[i*form.cols+j] = complex(flat[2*k], flat[2*k+1])
			}
		}
		return mat.NewCDense(form.rows, form.cols, data), nil
	}
	return nil, fmt.Errorf("not a complex host form: %d", form.kind)
}

// flattenMatrix copies a matrix into column-major order
func flattenMatrix(m mat.Matrix) ([]float64, hostForm) {
	rows, cols := m.Dims()
	flat := make([]float64, rows*cols)
	for j := 0; j < cols; j++ {
		for i := 0; i < rows; i++ {
			flat[j*rows+i] = m.At(i, j)
		}
	}
	return flat, hostForm{kind: hostMatrix, rows: rows, cols: cols}
}

// restoreHostForm converts a returned value back into the caller's form
func restoreHostForm(v interface{}, form hostForm) (interface{}, error) {
	switch {
	case form.isComplex():
		return decodeComplex(v, form)
	case form.kind == hostMatrix:
		flat, err := toFloat64s(v)
		if err != nil {
			return nil, err
		}
		if len(flat) != form.rows*form.cols {
			return nil, fmt.Errorf("matrix %dx%d returned with %d values", form.rows, form.cols, len(flat))
		}
		m := mat.NewDense(form.rows, form.cols, nil)
		for j := 0; j < form.cols; j++ {
			for i := 0; i < form.rows; i++ {
				m.Set(i, j, flat[j*form.rows+i])
			}
		}
		return m, nil
	}
	return v, nil
}

type elementKind int

const (
	kindInt elementKind = iota
	kindUint
	kindFloat
	kindBool
)

// element is one host value in a type neutral form
type element struct {
	kind elementKind
	i    int64
	u    uint64
	f    float64
	b    bool
}

var float16Type = reflect.TypeOf(guda.Float16(0))

func elementOf(rv reflect.Value) (element, error) {
	if rv.Type() == float16Type {
		h := guda.Float16(rv.Uint())
		return element{kind: kindFloat, f: float64(h.ToFloat32())}, nil
	}
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return element{kind: kindInt, i: rv.Int()}, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return element{kind: kindUint, u: rv.Uint()}, nil
	case reflect.Float32, reflect.Float64:
		return element{kind: kindFloat, f: rv.Float()}, nil
	case reflect.Bool:
		return element{kind: kindBool, b: rv.Bool()}, nil
	}
	return element{}, fmt.Errorf("unsupported element type %s", rv.Type())
}

// readElements reads a scalar, slice, array or matrix into elements
func readElements(v interface{}) ([]element, bool, error) {
	if m, ok := v.(mat.Matrix); ok {
		flat, _ := flattenMatrix(m)
		v = flat
	}
	if v == nil {
		return nil, false, fmt.Errorf("nil argument")
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		elems := make([]element, rv.Len())
		for i := range elems {
			e, err := elementOf(rv.Index(i))
			if err != nil {
				return nil, false, err
			}
			elems[i] = e
		}
		return elems, false, nil
	}
	e, err := elementOf(rv)
	if err != nil {
		return nil, false, err
	}
	return []element{e}, true, nil
}

func toFloat64s(v interface{}) ([]float64, error) {
	if f, ok := v.([]float64); ok {
		return f, nil
	}
	elems, _, err := readElements(v)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(elems))
	for i, e := range elems {
		out[i] = e.float()
	}
	return out, nil
}

func (e element) float() float64 {
	switch e.kind {
	case kindInt:
		return float64(e.i)
	case kindUint:
		return float64(e.u)
	case kindBool:
		if e.b {
			return 1
		}
		return 0
	}
	return e.f
}

// signed converts with rounding and saturation to [lo, hi]
func (e element) signed(lo, hi int64) int64 {
	switch e.kind {
	case kindInt:
		return min(max(e.i, lo), hi)
	case kindUint:
		if e.u > uint64(hi) {
			return hi
		}
		return int64(e.u)
	case kindBool:
		if e.b {
			return 1
		}
		return 0
	}
	if math.IsNaN(e.f) {
		return 0
	}
	r := math.Round(e.f)
	switch {
	case r <= float64(lo):
		return lo
	case r >= float64(hi):
		return hi
	}
	return int64(r)
}

// unsigned converts with rounding and saturation to [0, hi]
func (e element) unsigned(hi uint64) uint64 {
	switch e.kind {
	case kindInt:
		if e.i < 0 {
			return 0
		}
		return min(uint64(e.i), hi)
	case kindUint:
		return min(e.u, hi)
	case kindBool:
		if e.b {
			return 1
		}
		return 0
	}
	if math.IsNaN(e.f) {
		return 0
	}
	r := math.Round(e.f)
	switch {
	case r <= 0:
		return 0
	case r >= float64(hi):
		return hi
	}
	return uint64(r)
}

func (e element) boolean() bool {
	switch e.kind {
	case kindBool:
		return e.b
	case kindInt:
		return e.i != 0
	case kindUint:
		return e.u != 0
	}
	return e.f != 0
}

func convertElements[T any](elems []element, scalar bool, conv func(element) T) interface{} {
	if scalar {
		return conv(elems[0])
	}
	out := make([]T, len(elems))
	for i, e := range elems {
		out[i] = conv(e)
	}
	return out
}

// castValue converts a host value to the given element type. The result is
// always a new value: a scalar for scalar input, a slice otherwise.
func castValue(v interface{}, dt signature.DataType) (interface{}, error) {
	elems, scalar, err := readElements(v)
	if err != nil {
		return nil, err
	}
	switch dt {
	case signature.INT8:
		return convertElements(elems, scalar, func(e element) int8 { return int8(e.signed(math.MinInt8, math.MaxInt8)) }), nil
	case signature.INT16:
		return convertElements(elems, scalar, func(e element) int16 { return int16(e.signed(math.MinInt16, math.MaxInt16)) }), nil
	case signature.INT32:
		return convertElements(elems, scalar, func(e element) int32 { return int32(e.signed(math.MinInt32, math.MaxInt32)) }), nil
	case signature.INT64:
		return convertElements(elems, scalar, func(e element) int64 { return e.signed(math.MinInt64, math.MaxInt64) }), nil
	case signature.UINT8:
		return convertElements(elems, scalar, func(e element) uint8 { return uint8(e.unsigned(math.MaxUint8)) }), nil
	case signature.UINT16:
		return convertElements(elems, scalar, func(e element) uint16 { return uint16(e.unsigned(math.MaxUint16)) }), nil
	case signature.UINT32:
		return convertElements(elems, scalar, func(e element) uint32 { return uint32(e.unsigned(math.MaxUint32)) }), nil
	case signature.UINT64:
		return convertElements(elems, scalar, func(e element) uint64 { return e.unsigned(math.MaxUint64) }), nil
	case signature.Float16:
		return convertElements(elems, scalar, func(e element) guda.Float16 { return guda.FromFloat32(float32(e.float())) }), nil
	case signature.Float32:
		return convertElements(elems, scalar, func(e element) float32 { return float32(e.float()) }), nil
	case signature.Float64:
		return convertElements(elems, scalar, func(e element) float64 { return e.float() }), nil
	case signature.Bool:
		return convertElements(elems, scalar, func(e element) bool { return e.boolean() }), nil
	}
	return nil, fmt.Errorf("cannot cast to %s", dt)
}

var elementTypes = map[signature.DataType]reflect.Type{
	signature.INT8:    reflect.TypeOf(int8(0)),
	signature.INT16:   reflect.TypeOf(int16(0)),
	signature.INT32:   reflect.TypeOf(int32(0)),
	signature.INT64:   reflect.TypeOf(int64(0)),
	signature.UINT8:   reflect.TypeOf(uint8(0)),
	signature.UINT16:  reflect.TypeOf(uint16(0)),
	signature.UINT32:  reflect.TypeOf(uint32(0)),
	signature.UINT64:  reflect.TypeOf(uint64(0)),
	signature.Float16: float16Type,
	signature.Float32: reflect.TypeOf(float32(0)),
	signature.Float64: reflect.TypeOf(float64(0)),
	signature.Bool:    reflect.TypeOf(false),
}

// hasElementType reports whether v is already a scalar or slice of dt
func hasElementType(v interface{}, dt signature.DataType) bool {
	want, ok := elementTypes[dt]
	if !ok || v == nil {
		return false
	}
	t := reflect.TypeOf(v)
	if t.Kind() == reflect.Slice {
		t = t.Elem()
	}
	return t == want
}

// isScalarValue reports whether a call-time value holds a single element
func isScalarValue(v interface{}) bool {
	if v == nil {
		return false
	}
	if m, ok := v.(mat.Matrix); ok {
		r, c := m.Dims()
		return r*c == 1
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return rv.Len() == 1
	}
	return true
}

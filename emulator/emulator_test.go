package emulator

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/notargets/clkernel/device"
	"github.com/notargets/clkernel/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const addToVectorSource = `
kernel void addToVector(global float * pi, float c, int vecLen)
{
	int i = get_global_id(0);
	if (i < vecLen) pi[i] += c;
}
`

func addToVector(w WorkItem, args []interface{}) {
	pi, c, n := args[0].([]float32), args[1].(float32), args[2].(int32)
	if i := w.GlobalID(0); i < int(n) {
		pi[i] += c
	}
}

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func writeSource(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kernel.cl")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func newKernel(t *testing.T, b *Backend, src string, opts ...runner.Option) *runner.Kernel {
	t.Helper()
	dir, err := device.NewDirectory(b)
	require.NoError(t, err)
	opts = append([]runner.Option{runner.WithLogger(quiet)}, opts...)
	k, err := runner.NewKernel(dir, b, writeSource(t, src), "", opts...)
	require.NoError(t, err)
	return k
}

func TestBackend_Probe(t *testing.T) {
	devices, err := New(quiet).Probe()
	require.NoError(t, err)
	require.Len(t, devices, 1)
	d := devices[0]
	assert.Equal(t, device.TypeCPU, d.Type)
	assert.Equal(t, "Emulator", d.Backend)
	assert.Equal(t, MaxThreadsPerBlock, d.MaxThreadsPerBlock)
	assert.Equal(t, [3]int{MaxThreadsPerBlock, MaxThreadsPerBlock, MaxBlockDimZ}, d.MaxThreadBlockSize)
	assert.Positive(t, d.MaxComputeUnits)
}

func TestBackend_Compile(t *testing.T) {
	b := New(quiet)
	b.Register("addToVector", addToVector)
	path := writeSource(t, addToVectorSource+"\nkernel void unregistered(global int *a) {}\n")

	_, err := b.Dispatch(0, "addToVector", [6]int{0, 0, 0, 1, 1, 1}, [3]int{1, 1, 1},
		[]interface{}{[]float32{0}, float32(1), int32(1)}, []bool{false, true, true})
	assert.Error(t, err, "dispatch before compile")

	names, err := b.Compile(0, path, "-DN=1")
	require.NoError(t, err)
	assert.Equal(t, []string{"addToVector"}, names)

	_, err = b.Compile(1, path, "")
	assert.Error(t, err, "only device 0 exists")

	_, err = b.Dispatch(0, "addToVector", [6]int{0, 0, 0, 3, 1, 1}, [3]int{2, 1, 1},
		[]interface{}{[]float32{0}, float32(1), int32(1)}, []bool{false, true, true})
	assert.Error(t, err, "global size not a multiple of the block")

	assert.Equal(t, []string{"addToVector"}, b.Registered())
}

func TestKernel_AddToVector(t *testing.T) {
	b := New(quiet)
	b.Register("addToVector", addToVector)
	k := newKernel(t, b, addToVectorSource,
		runner.WithThreadBlockSize(runner.Dim3{4, 1, 1}), runner.WithGlobalSize(runner.Dim3{8, 1, 1}))

	pi := []float64{1, 2, 3, 4, 5, 6}
	out, err := k.Call(pi, 2, 6)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, []float32{3, 4, 5, 6, 7, 8}, out[0])
	assert.Equal(t, float32(2), out[1])
	assert.Equal(t, int32(6), out[2])
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, pi)

	// a second call reuses the build
	out, err = k.Call(out[0], -1, 6)
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 3, 4, 5, 6, 7}, out[0])
}

func TestKernel_GlobalOffset(t *testing.T) {
	const src = `kernel void ids(global int *out) { out[get_global_id(0)] = get_global_id(0); }`
	b := New(quiet)
	b.Register("ids", func(w WorkItem, args []interface{}) {
		out := args[0].([]int32)
		i := w.GlobalID(0)
		out[i] = int32(i)
	})
	k := newKernel(t, b, src,
		runner.WithThreadBlockSize(runner.Dim3{2, 1, 1}),
		runner.WithGlobalSize(runner.Dim3{4, 1, 1}),
		runner.WithGlobalOffset(runner.Dim3{2, 0, 0}))

	out, err := k.Call(make([]int, 6))
	require.NoError(t, err)
	assert.Equal(t, []int32{0, 0, 2, 3, 4, 5}, out[0])
}

func TestKernel_TwoDimensional(t *testing.T) {
	const src = `kernel void grid2d(global double *out, const int nx) { }`
	b := New(quiet)
	b.Register("grid2d", func(w WorkItem, args []interface{}) {
		out, nx := args[0].([]float64), int(args[1].(int32))
		x, y := w.GlobalID(0), w.GlobalID(1)
		out[y*nx+x] = float64(x + 10*y)
	})
	k := newKernel(t, b, src,
		runner.WithThreadBlockSize(runner.Dim3{2, 2, 1}), runner.WithGridSize(runner.Dim3{2, 2, 1}))

	out, err := k.Call(make([]float64, 16), 4)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, []float64{
		0, 1, 2, 3,
		10, 11, 12, 13,
		20, 21, 22, 23,
		30, 31, 32, 33,
	}, out[0])
}

func TestKernel_ScalarValueForConstPointer(t *testing.T) {
	const src = `kernel void scaleBy(const global double *s, global double *y) { }`
	b := New(quiet)
	b.Register("scaleBy", func(w WorkItem, args []interface{}) {
		s, y := args[0].([]float64), args[1].([]float64)
		i := w.GlobalID(0)
		y[i] *= s[0]
	})
	k := newKernel(t, b, src, runner.WithGlobalSize(runner.Dim3{3, 1, 1}))

	out, err := k.Call(3.0, []float64{1, 2, 3})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, []float64{3, 6, 9}, out[0])
}

func TestKernel_Panic(t *testing.T) {
	b := New(quiet)
	b.Register("addToVector", func(w WorkItem, args []interface{}) {
		_ = args[0].([]float32)[w.GlobalID(0)+100]
	})
	k := newKernel(t, b, addToVectorSource)

	_, err := k.Call([]float32{1}, 1, 1)
	var ee *runner.ExecutionError
	require.True(t, errors.As(err, &ee))
	assert.Contains(t, err.Error(), "panicked")
}

func TestKernel_NotRegistered(t *testing.T) {
	b := New(quiet)
	k := newKernel(t, b, addToVectorSource)
	_, err := k.Call([]float32{1}, 1, 1)
	assert.ErrorIs(t, err, runner.ErrKernelNotFoundInBuild)
}

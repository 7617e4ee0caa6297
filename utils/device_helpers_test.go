package utils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStubBackend(t *testing.T) {
	dir, stub := CreateTestPlatform()
	require.Equal(t, 2, dir.Count())
	assert.Equal(t, 256, dir.Current().MaxThreadsPerBlock)

	path, err := WriteKernelSource(t.TempDir(), "k.cl",
		"kernel void a(global int *x) {}\n__kernel void b(global int *x) {}\n")
	require.NoError(t, err)

	names, err := stub.Compile(1, path, "-DX")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)
	assert.Equal(t, "-DX", stub.LastOptions)

	stub.Kernels = []string{"c"}
	names, err = stub.Compile(0, path, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, names)

	stub.Run = func(kernel string, args []interface{}, readOnly []bool) error {
		args[0] = 42
		return nil
	}
	in := []interface{}{1, 2}
	out, err := stub.Dispatch(0, "c", [6]int{0, 0, 0, 1, 1, 1}, [3]int{1, 1, 1}, in, []bool{false, true})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{42, 2}, out)
	assert.Equal(t, []interface{}{1, 2}, in)

	stub.DispatchErr = errors.New("boom")
	_, err = stub.Dispatch(0, "c", [6]int{}, [3]int{1, 1, 1}, in, []bool{false, true})
	assert.Error(t, err)

	compiles, dispatches := stub.Counts()
	assert.Equal(t, 2, compiles)
	assert.Equal(t, 2, dispatches)
}

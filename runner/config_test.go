package runner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/notargets/clkernel/runner/signature"
	"github.com/notargets/clkernel/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fillConfig = `
source: fill.cl
function: fill
device: 1
macros: [N=64]
includes: [include]
compiler_options: -cl-mad-enable -w
thread_block_size: [16, 1, 1]
global_size: [40, 1, 1]
global_offset: [2, 0, 0]
argument_types:
  real_t: double
  index_t: int64
`

const fillSource = `
kernel void fill(global real_t *a, const real_t v, const index_t n)
{
	a[get_global_id(0)] = v;
}
`

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(fillConfig))
	require.NoError(t, err)
	assert.Equal(t, "fill.cl", cfg.Source)
	assert.Equal(t, "fill", cfg.Function)
	require.NotNil(t, cfg.Device)
	assert.Equal(t, 1, *cfg.Device)
	assert.Equal(t, []string{"N=64"}, cfg.Macros)
	require.NotNil(t, cfg.ThreadBlockSize)
	assert.Equal(t, Dim3{16, 1, 1}, *cfg.ThreadBlockSize)
	assert.Nil(t, cfg.GridSize)
	assert.Equal(t, map[string]string{"real_t": "double", "index_t": "int64"}, cfg.ArgumentTypes)

	t.Run("MissingSource", func(t *testing.T) {
		_, err := ParseConfig([]byte("function: fill\n"))
		assert.Error(t, err)
	})

	t.Run("BadDimension", func(t *testing.T) {
		_, err := ParseConfig([]byte("source: a.cl\nthread_block_size: [1, 2]\n"))
		assert.Error(t, err)
	})

	t.Run("UnknownArgumentType", func(t *testing.T) {
		cfg, err := ParseConfig([]byte("source: a.cl\nargument_types: {real_t: quad}\n"))
		require.NoError(t, err)
		_, err = cfg.Options()
		assert.Error(t, err)
	})
}

func TestNewKernelFromConfig(t *testing.T) {
	root := t.TempDir()
	_, err := utils.WriteKernelSource(root, "fill.cl", fillSource)
	require.NoError(t, err)
	cfgPath := filepath.Join(root, "fill.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(fillConfig), 0o644))

	cfg, err := LoadConfig(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "fill.cl"), cfg.Source)
	assert.Equal(t, []string{filepath.Join(root, "include")}, cfg.Includes)

	dir, stub := utils.CreateTestPlatform()
	k, err := NewKernelFromConfig(dir, stub, cfg, WithLogger(quietLogger))
	require.NoError(t, err)

	assert.Equal(t, "fill", k.FunctionName())
	assert.Equal(t, 1, k.Device())
	assert.Equal(t, []string{"-cl-mad-enable", "-w"}, k.CompilerOptions())
	// 16 reduced to gcd(16, 40)
	assert.Equal(t, Dim3{8, 1, 1}, k.ThreadBlockSize())
	assert.Equal(t, Dim3{5, 1, 1}, k.GridSize())
	assert.Equal(t, Dim3{2, 0, 0}, k.GlobalOffset())

	params, err := k.Parameters()
	require.NoError(t, err)
	assert.Equal(t, signature.Float64, params[0].Type)
	assert.Equal(t, signature.Float64, params[1].Type)
	assert.Equal(t, signature.INT64, params[2].Type)

	out, err := k.Call(make([]float32, 40), 1.5, 40)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "-I"+filepath.Join(root, "include")+" -DN=64 -cl-mad-enable -w", stub.LastOptions)
	assert.Equal(t, [6]int{2, 0, 0, 40, 1, 1}, stub.LastGeometry)
	assert.Equal(t, int64(40), stub.LastArgs[2])
}

package device

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTable = `
devices:
  - name: Test GPU
    vendor: Acme
    backend: OpenCL
    type: GPU
    max_threads_per_block: 256
    max_thread_block_size: [256, 128, 64]
    max_compute_units: 16
    global_mem_size: 4294967296
    extensions: [cl_khr_fp64, cl_khr_fp16]
  - name: Test CPU
    backend: OpenCL
    type: CPU
    max_threads_per_block: 1024
    max_thread_block_size: [1024, 1024, 1024]
`

// countingProber returns a growing device list to observe refreshes
type countingProber struct {
	calls   int
	devices []Info
	err     error
}

func (p *countingProber) Probe() ([]Info, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return append([]Info(nil), p.devices...), nil
}

func TestParseTable(t *testing.T) {
	table, err := ParseTable([]byte(testTable))
	require.NoError(t, err)
	require.Len(t, table.Entries, 2)

	gpu := table.Entries[0]
	assert.Equal(t, "Test GPU", gpu.Name)
	assert.Equal(t, TypeGPU, gpu.Type)
	assert.Equal(t, 256, gpu.MaxThreadsPerBlock)
	assert.Equal(t, [3]int{256, 128, 64}, gpu.MaxThreadBlockSize)
	assert.Equal(t, int64(4294967296), gpu.GlobalMemSize)
	assert.True(t, gpu.HasExtension("cl_khr_fp16"))
	assert.False(t, gpu.HasExtension("cl_khr_gl_sharing"))

	t.Run("RejectsZeroLimits", func(t *testing.T) {
		_, err := ParseTable([]byte("devices:\n  - name: bad\n    max_threads_per_block: 0\n"))
		assert.Error(t, err)
	})
}

func TestDirectory(t *testing.T) {
	table, err := ParseTable([]byte(testTable))
	require.NoError(t, err)

	dir, err := NewDirectory(table)
	require.NoError(t, err)

	assert.Equal(t, 2, dir.Count())
	assert.Equal(t, 0, dir.CurrentIndex())
	assert.Equal(t, "Test GPU", dir.Current().Name)

	t.Run("IndicesAssigned", func(t *testing.T) {
		for i, d := range dir.Devices() {
			assert.Equal(t, i, d.Index)
		}
	})

	t.Run("Select", func(t *testing.T) {
		require.NoError(t, dir.Select(1))
		assert.Equal(t, "Test CPU", dir.Current().Name)
		assert.Error(t, dir.Select(2))
		assert.Error(t, dir.Select(-1))
		assert.Equal(t, 1, dir.CurrentIndex())
	})

	t.Run("DevicesIsCopy", func(t *testing.T) {
		devs := dir.Devices()
		devs[0].Name = "changed"
		d, err := dir.Device(0)
		require.NoError(t, err)
		assert.Equal(t, "Test GPU", d.Name)
	})
}

func TestDirectory_Refresh(t *testing.T) {
	p := &countingProber{devices: []Info{
		{Name: "a", MaxThreadsPerBlock: 64, MaxThreadBlockSize: [3]int{64, 64, 64}},
		{Name: "b", MaxThreadsPerBlock: 64, MaxThreadBlockSize: [3]int{64, 64, 64}},
	}}
	dir, err := NewDirectory(p)
	require.NoError(t, err)
	assert.Equal(t, 1, p.calls)

	// A device added after the first probe is not observed until Refresh
	p.devices = append(p.devices, Info{Name: "c"})
	assert.Equal(t, 2, dir.Count())
	require.NoError(t, dir.Refresh())
	assert.Equal(t, 3, dir.Count())
	assert.Equal(t, 2, p.calls)

	t.Run("SelectionKeptWhenValid", func(t *testing.T) {
		require.NoError(t, dir.Select(2))
		require.NoError(t, dir.Refresh())
		assert.Equal(t, 2, dir.CurrentIndex())
	})

	t.Run("SelectionResetWhenGone", func(t *testing.T) {
		p.devices = p.devices[:1]
		require.NoError(t, dir.Refresh())
		assert.Equal(t, 0, dir.CurrentIndex())
	})

	t.Run("ProbeError", func(t *testing.T) {
		p.err = errors.New("driver gone")
		err := dir.Refresh()
		assert.ErrorIs(t, err, p.err)
		assert.Equal(t, 1, dir.Count())
	})

	t.Run("EmptyProbe", func(t *testing.T) {
		_, err := NewDirectory(&countingProber{})
		assert.Error(t, err)
	})
}

func TestDirectory_Query(t *testing.T) {
	table, err := ParseTable([]byte(testTable))
	require.NoError(t, err)
	dir, err := NewDirectory(table)
	require.NoError(t, err)

	result, err := dir.Query("CL_DEVICE_NAME", "max_work_group_size", "MAX_WORK_ITEM_SIZES")
	require.NoError(t, err)
	require.Len(t, result, 3)

	assert.Equal(t, []interface{}{"Test GPU", "Test CPU"}, result[0])
	assert.Equal(t, []interface{}{256, 1024}, result[1])
	assert.Equal(t, [3]int{256, 128, 64}, result[2][0])

	_, err = dir.Query("NAME", "BOGUS")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "MAX_WORK_GROUP_SIZE")
}

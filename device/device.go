// File: device/device.go

package device

import (
	"fmt"
	"sort"
	"strings"
)

// Type classifies a compute device
type Type string

const (
	TypeCPU         Type = "CPU"
	TypeGPU         Type = "GPU"
	TypeAccelerator Type = "Accelerator"
	TypeDefault     Type = "Default"
)

// Info describes one compute device and the capability limits a kernel
// launch is checked against
type Info struct {
	Index   int    `yaml:"-"`
	Name    string `yaml:"name"`
	Vendor  string `yaml:"vendor"`
	Version string `yaml:"version"`
	Backend string `yaml:"backend"` // backend mode, e.g. "OpenCL", "CUDA", "Serial", "Emulator"
	Type    Type   `yaml:"type"`

	// Work-group limits
	MaxThreadsPerBlock int    `yaml:"max_threads_per_block"` // total work-items per work-group
	MaxThreadBlockSize [3]int `yaml:"max_thread_block_size"` // per-dimension work-item limits

	MaxComputeUnits int      `yaml:"max_compute_units"`
	GlobalMemSize   int64    `yaml:"global_mem_size"`
	LocalMemSize    int64    `yaml:"local_mem_size"`
	MaxMemAllocSize int64    `yaml:"max_mem_alloc_size"`
	ClockMHz        int      `yaml:"clock_mhz"`
	Extensions      []string `yaml:"extensions"`
}

// propertyGetters maps the OpenCL device-info property names to Info fields
var propertyGetters = map[string]func(d *Info) interface{}{
	"NAME":                func(d *Info) interface{} { return d.Name },
	"VENDOR":              func(d *Info) interface{} { return d.Vendor },
	"VERSION":             func(d *Info) interface{} { return d.Version },
	"BACKEND":             func(d *Info) interface{} { return d.Backend },
	"TYPE":                func(d *Info) interface{} { return string(d.Type) },
	"MAX_COMPUTE_UNITS":   func(d *Info) interface{} { return d.MaxComputeUnits },
	"MAX_WORK_GROUP_SIZE": func(d *Info) interface{} { return d.MaxThreadsPerBlock },
	"MAX_WORK_ITEM_SIZES": func(d *Info) interface{} { return d.MaxThreadBlockSize },
	"GLOBAL_MEM_SIZE":     func(d *Info) interface{} { return d.GlobalMemSize },
	"LOCAL_MEM_SIZE":      func(d *Info) interface{} { return d.LocalMemSize },
	"MAX_MEM_ALLOC_SIZE":  func(d *Info) interface{} { return d.MaxMemAllocSize },
	"MAX_CLOCK_FREQUENCY": func(d *Info) interface{} { return d.ClockMHz },
	"EXTENSIONS":          func(d *Info) interface{} { return strings.Join(d.Extensions, " ") },
}

// PropertyNames returns the sorted list of property names accepted by Property
func PropertyNames() []string {
	names := make([]string, 0, len(propertyGetters))
	for name := range propertyGetters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Property returns a capability value addressed by its OpenCL-style name.
// Names are case-insensitive and may carry the "CL_DEVICE_" prefix.
func (d *Info) Property(name string) (interface{}, error) {
	key := strings.ToUpper(strings.TrimSpace(name))
	key = strings.TrimPrefix(key, "CL_DEVICE_")
	getter, ok := propertyGetters[key]
	if !ok {
		return nil, fmt.Errorf("unknown device property %q, supported: %s",
			name, strings.Join(PropertyNames(), ", "))
	}
	return getter(d), nil
}

// HasExtension reports whether the device lists the named extension
func (d *Info) HasExtension(ext string) bool {
	for _, e := range d.Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

func (d Info) String() string {
	return fmt.Sprintf("[%d] %s (%s, %s)", d.Index, d.Name, d.Backend, d.Type)
}

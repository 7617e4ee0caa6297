// File: device/table.go

package device

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Table is a static device list, used for offline or stubbed devices.
// It satisfies Prober.
//
//	devices:
//	  - name: Test GPU
//	    backend: OpenCL
//	    type: GPU
//	    max_threads_per_block: 256
//	    max_thread_block_size: [256, 256, 64]
type Table struct {
	Entries []Info `yaml:"devices"`
}

// Probe returns a copy of the table entries
func (t *Table) Probe() ([]Info, error) {
	out := make([]Info, len(t.Entries))
	copy(out, t.Entries)
	return out, nil
}

// ParseTable decodes a YAML device table
func ParseTable(data []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse device table: %w", err)
	}
	for i, d := range t.Entries {
		if d.MaxThreadsPerBlock <= 0 {
			return nil, fmt.Errorf("device %d (%s): max_threads_per_block must be positive", i, d.Name)
		}
		for dim, n := range d.MaxThreadBlockSize {
			if n <= 0 {
				return nil, fmt.Errorf("device %d (%s): max_thread_block_size[%d] must be positive",
					i, d.Name, dim)
			}
		}
	}
	return &t, nil
}

// LoadTable reads a YAML device table from a file
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read device table: %w", err)
	}
	return ParseTable(data)
}

// File: device/directory.go

package device

import (
	"fmt"
)

// Prober enumerates the compute devices a backend can reach
type Prober interface {
	Probe() ([]Info, error)
}

// Directory holds the enumerated devices and the current selection.
// The device list is read once at construction and only re-read by Refresh;
// devices that appear in between are not observed.
type Directory struct {
	prober  Prober
	devices []Info
	current int
}

// NewDirectory probes the devices once and selects the first one
func NewDirectory(p Prober) (*Directory, error) {
	if p == nil {
		return nil, fmt.Errorf("device prober is nil")
	}
	dir := &Directory{prober: p}
	if err := dir.Refresh(); err != nil {
		return nil, err
	}
	return dir, nil
}

// Refresh re-probes the devices. The current selection is kept when it is
// still in range, otherwise it resets to device 0.
func (dir *Directory) Refresh() error {
	devices, err := dir.prober.Probe()
	if err != nil {
		return fmt.Errorf("device probe failed: %w", err)
	}
	if len(devices) == 0 {
		return fmt.Errorf("no compute devices found")
	}
	for i := range devices {
		devices[i].Index = i
	}
	dir.devices = devices
	if dir.current >= len(devices) {
		dir.current = 0
	}
	return nil
}

// Count returns the number of known devices
func (dir *Directory) Count() int {
	return len(dir.devices)
}

// Devices returns a copy of the device list
func (dir *Directory) Devices() []Info {
	out := make([]Info, len(dir.devices))
	copy(out, dir.devices)
	return out
}

// Device returns the device at index i
func (dir *Directory) Device(i int) (Info, error) {
	if i < 0 || i >= len(dir.devices) {
		return Info{}, fmt.Errorf("device index %d out of range, %d devices available",
			i, len(dir.devices))
	}
	return dir.devices[i], nil
}

// CurrentIndex returns the index of the selected device
func (dir *Directory) CurrentIndex() int {
	return dir.current
}

// Current returns the selected device
func (dir *Directory) Current() Info {
	return dir.devices[dir.current]
}

// Select makes device i the current device
func (dir *Directory) Select(i int) error {
	if _, err := dir.Device(i); err != nil {
		return err
	}
	dir.current = i
	return nil
}

// Query returns a property-by-device table, one row per requested name
func (dir *Directory) Query(names ...string) ([][]interface{}, error) {
	table := make([][]interface{}, len(names))
	for i, name := range names {
		row := make([]interface{}, len(dir.devices))
		for j := range dir.devices {
			v, err := dir.devices[j].Property(name)
			if err != nil {
				return nil, err
			}
			row[j] = v
		}
		table[i] = row
	}
	return table, nil
}

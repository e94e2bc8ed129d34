//go:build cuda

// Package gpuinfo enumerates acceleration devices for the OpenCLInfo
// command. The command name is inherited unchanged from the system this
// module's specification was distilled from even though the only
// backend wired here is CUDA (see DESIGN.md).
package gpuinfo

import (
	"fmt"

	"keysearch/gpu/wrapper"
)

// Device describes one enumerated CUDA device.
type Device struct {
	Ordinal int
	Name    string
	Memory  uint64
}

// Enumerate lists every CUDA-capable device visible to the process.
func Enumerate() ([]Device, error) {
	if err := wrapper.InitCUDA(); err != nil {
		return nil, fmt.Errorf("gpuinfo: %w", err)
	}
	count, err := wrapper.DeviceCount()
	if err != nil {
		return nil, fmt.Errorf("gpuinfo: %w", err)
	}

	devices := make([]Device, 0, count)
	for i := 0; i < count; i++ {
		d, err := wrapper.NewDevice(i)
		if err != nil {
			return nil, fmt.Errorf("gpuinfo: device %d: %w", i, err)
		}
		devices = append(devices, Device{Ordinal: i, Name: d.Name(), Memory: d.Memory()})
		d.Close()
	}
	return devices, nil
}

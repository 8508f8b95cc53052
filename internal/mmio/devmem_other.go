//go:build !linux

package mmio

import (
	"errors"
	"runtime"
)

// DevMem is only available on Linux.
type DevMem struct{}

func OpenDevMem(path string, base uint64, size int) (*DevMem, error) {
	return nil, errors.New("devmem register access is not supported on " + runtime.GOOS)
}

func (d *DevMem) Read32(offset uint32) uint32 { return 0 }

func (d *DevMem) Write32(offset uint32, value uint32) {}

func (d *DevMem) Close() error { return nil }

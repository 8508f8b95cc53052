//go:build linux

package mmio

import (
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// DevMem maps a physical register window through /dev/mem or a UIO node.
// Accesses are single 32-bit loads and stores so the bus sees exactly one
// transaction per call.
type DevMem struct {
	f    *os.File
	data []byte
	off  int
}

// OpenDevMem maps size bytes at physical address base from path. For UIO
// devices pass base 0: the node itself already selects the window.
func OpenDevMem(path string, base uint64, size int) (*DevMem, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, err
	}

	page := uint64(os.Getpagesize())
	aligned := base &^ (page - 1)
	delta := int(base - aligned)

	data, err := unix.Mmap(int(f.Fd()), int64(aligned), size+delta, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("mmap %s at 0x%x failed: %w", path, base, err)
	}

	return &DevMem{f: f, data: data, off: delta}, nil
}

func (d *DevMem) word(offset uint32) *uint32 {
	i := d.off + int(offset)
	if offset%4 != 0 || i+4 > len(d.data) {
		panic(fmt.Sprintf("register offset 0x%x outside mapped window", offset))
	}
	return (*uint32)(unsafe.Pointer(&d.data[i]))
}

func (d *DevMem) Read32(offset uint32) uint32 {
	return atomic.LoadUint32(d.word(offset))
}

func (d *DevMem) Write32(offset uint32, value uint32) {
	atomic.StoreUint32(d.word(offset), value)
}

// Close unmaps the window.
func (d *DevMem) Close() error {
	var firstErr error
	if d.data != nil {
		if err := unix.Munmap(d.data); err != nil {
			firstErr = err
		}
		d.data = nil
	}
	if err := d.f.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

package mmio

import (
	"encoding/binary"
	"fmt"
)

// WriteFilter decides what a register latches when the bus writes v over old.
// It models fields that are narrower than the bus or missing entirely.
type WriteFilter func(old, v uint32) uint32

// Access is one recorded bus write.
type Access struct {
	Offset uint32
	Value  uint32
}

// Arena is an in-memory RegisterFile. Without filters every word behaves as
// a plain 32-bit read/write register. Arena is not safe for concurrent use.
type Arena struct {
	mem     []byte
	filters map[uint32]WriteFilter
	log     []Access
}

// NewArena allocates a zeroed arena of size bytes (rounded up to a word).
func NewArena(size int) *Arena {
	size = (size + 3) &^ 3
	return &Arena{
		mem:     make([]byte, size),
		filters: make(map[uint32]WriteFilter),
	}
}

func (a *Arena) Size() int { return len(a.mem) }

func (a *Arena) Read32(offset uint32) uint32 {
	a.mustHave(offset)
	return binary.LittleEndian.Uint32(a.mem[offset:])
}

func (a *Arena) Write32(offset uint32, value uint32) {
	a.mustHave(offset)
	a.log = append(a.log, Access{Offset: offset, Value: value})
	if f, ok := a.filters[offset]; ok {
		value = f(binary.LittleEndian.Uint32(a.mem[offset:]), value)
	}
	binary.LittleEndian.PutUint32(a.mem[offset:], value)
}

// Poke stores value without filtering or logging. It stands in for state
// the hardware drives itself (identity words, status bits, counters).
func (a *Arena) Poke(offset uint32, value uint32) {
	a.mustHave(offset)
	binary.LittleEndian.PutUint32(a.mem[offset:], value)
}

// Mask makes only the bits in mask writable; other bits keep their value.
func (a *Arena) Mask(offset uint32, mask uint32) {
	a.Filter(offset, func(old, v uint32) uint32 {
		return (old &^ mask) | (v & mask)
	})
}

// ReadOnly ignores every bus write to offset.
func (a *Arena) ReadOnly(offset uint32) {
	a.Filter(offset, func(old, _ uint32) uint32 { return old })
}

// Filter installs f for offset, replacing any previous filter.
func (a *Arena) Filter(offset uint32, f WriteFilter) {
	a.mustHave(offset)
	a.filters[offset] = f
}

// Writes returns the bus writes seen since the last ResetLog.
func (a *Arena) Writes() []Access {
	out := make([]Access, len(a.log))
	copy(out, a.log)
	return out
}

func (a *Arena) ResetLog() { a.log = a.log[:0] }

func (a *Arena) mustHave(offset uint32) {
	if err := checkAligned(offset); err != nil {
		panic(err)
	}
	if int(offset)+4 > len(a.mem) {
		panic(fmt.Sprintf("register offset 0x%x outside %d byte arena", offset, len(a.mem)))
	}
}

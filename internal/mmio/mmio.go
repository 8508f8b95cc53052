// Package mmio models an accelerator register file as a byte-addressable
// window of 32-bit words. All register traffic goes through RegisterFile so
// that the same driver code runs against a mapped device or an in-memory arena.
package mmio

import "fmt"

// RegisterFile is a 32-bit word addressable register window. Offsets are in
// bytes from the accelerator base and must be word aligned.
type RegisterFile interface {
	Read32(offset uint32) uint32
	Write32(offset uint32, value uint32)
}

// Reg is a single register at a fixed offset.
type Reg struct {
	rf  RegisterFile
	off uint32
}

func (r Reg) Offset() uint32 { return r.off }

func (r Reg) Read() uint32 { return r.rf.Read32(r.off) }

func (r Reg) Write(v uint32) { r.rf.Write32(r.off, v) }

// Set performs a read-modify-write that sets the bits in mask.
func (r Reg) Set(mask uint32) {
	r.rf.Write32(r.off, r.rf.Read32(r.off)|mask)
}

// Clear performs a read-modify-write that clears the bits in mask.
func (r Reg) Clear(mask uint32) {
	r.rf.Write32(r.off, r.rf.Read32(r.off)&^mask)
}

// IsSet reports whether every bit in mask reads back as 1.
func (r Reg) IsSet(mask uint32) bool {
	return r.rf.Read32(r.off)&mask == mask
}

// Region is a contiguous block of registers starting at base.
type Region struct {
	rf   RegisterFile
	base uint32
}

func NewRegion(rf RegisterFile, base uint32) Region {
	return Region{rf: rf, base: base}
}

func (g Region) Base() uint32 { return g.base }

// Reg returns the index'th 32-bit register of the region.
func (g Region) Reg(index int) Reg {
	return Reg{rf: g.rf, off: g.base + uint32(index)*4}
}

// WriteWords copies words into consecutive registers starting at the region base.
func (g Region) WriteWords(words []uint32) {
	for i, w := range words {
		g.rf.Write32(g.base+uint32(i)*4, w)
	}
}

// ReadWords reads n consecutive registers starting at the region base.
func (g Region) ReadWords(n int) []uint32 {
	out := make([]uint32, n)
	for i := range out {
		out[i] = g.rf.Read32(g.base + uint32(i)*4)
	}
	return out
}

func checkAligned(offset uint32) error {
	if offset%4 != 0 {
		return fmt.Errorf("unaligned register offset 0x%x", offset)
	}
	return nil
}

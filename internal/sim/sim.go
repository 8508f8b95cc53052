// Package sim provides register-level behavioural models of the convolution,
// pooling and elementwise cores. A model is an mmio.Arena whose write filters
// reproduce what the synthesized core latches for its build parameters, so
// drivers can be exercised without an FPGA. The datapath itself is not
// modelled: a start fills the DMA completion and performance counters with
// the values a real run of the committed configuration would produce.
package sim

import "github.com/23skdu/longbow-axi/internal/mmio"

// Type codes burned into the identity word of each core.
const (
	ConvTypeCode    = 0b110101101010101011010111000010
	PoolTypeCode    = 0b110101101001011011100111001111
	EltwiseTypeCode = 0b110101101010110011000101100100
)

// DefaultVersion decodes as "10000000".
const DefaultVersion = 0x00000001

// core holds the parts every model shares.
type core struct {
	*mmio.Arena
	stalled bool
}

func newCore(size int, version, typeCode uint32, id uint8) core {
	a := mmio.NewArena(size)
	a.Poke(0x00, version)
	a.Poke(0x04, typeCode|uint32(id&0x3)<<30)
	a.ReadOnly(0x00)
	a.ReadOnly(0x04)
	return core{Arena: a}
}

// info stores a read-only property word.
func (c *core) info(off uint32, v uint32) {
	c.Poke(off, v)
	c.ReadOnly(off)
}

// Stall makes the next start leave the engine busy without producing any
// completions, until Release is called.
func (c *core) Stall() { c.stalled = true }

func field(word uint32, shift, width uint) uint32 {
	return (word >> shift) & (1<<width - 1)
}

func ceilDiv(a, b uint32) uint32 {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}

// minusOne packs a natural property value the way the conv core reports it.
func minusOne(v int, width uint) uint32 {
	if v <= 0 {
		return 0
	}
	return uint32(v-1) & (1<<width - 1)
}

package conv

import (
	"fmt"
	"math"

	"github.com/23skdu/longbow-axi/internal/accel"
	"github.com/23skdu/longbow-axi/internal/mmio"
)

// Parameter memories behind the register file.
const (
	MaxBNParams     = BNMemSize / 8
	SigmoidLUTDepth = 4096
)

// WriteBNParams copies one (A, B) pair per output channel into the BN
// parameter memory, starting at channel 0.
func (a *Accelerator) WriteBNParams(params []BNParam) error {
	if len(params) > MaxBNParams {
		return fmt.Errorf("bn params: %w", accel.OutOfRange("count", int64(len(params)), 0, MaxBNParams))
	}
	words := make([]uint32, 0, 2*len(params))
	for _, p := range params {
		words = append(words, math.Float32bits(p.A), math.Float32bits(p.B))
	}
	mmio.NewRegion(a.rf, BNMemBase).WriteWords(words)
	return nil
}

// WriteSigmoidLUT stores the 16-bit sigmoid samples, two per word with the
// lower index in the low half. An odd trailing sample leaves the high half zero.
func (a *Accelerator) WriteSigmoidLUT(lut []uint16) error {
	if len(lut) > SigmoidLUTDepth {
		return fmt.Errorf("sigmoid lut: %w", accel.OutOfRange("depth", int64(len(lut)), 0, SigmoidLUTDepth))
	}
	words := make([]uint32, (len(lut)+1)/2)
	for i, v := range lut {
		words[i/2] |= uint32(v) << (16 * uint(i%2))
	}
	mmio.NewRegion(a.rf, SigmoidLUTBase).WriteWords(words)
	return nil
}

package accel

import "github.com/23skdu/longbow-axi/internal/mmio"

// Prober detects optional hardware fields by writing a saturating pattern and
// reading it back. Every register it touches is saved on first touch and put
// back by Restore, so callers should always `defer p.Restore()`.
type Prober struct {
	rf    mmio.RegisterFile
	order []uint32
	saved map[uint32]uint32
}

func NewProber(rf mmio.RegisterFile) *Prober {
	return &Prober{rf: rf, saved: make(map[uint32]uint32)}
}

func (p *Prober) save(off uint32) uint32 {
	v, ok := p.saved[off]
	if !ok {
		v = p.rf.Read32(off)
		p.saved[off] = v
		p.order = append(p.order, off)
	}
	return v
}

// Field writes value into f (all other bits zero) and reports whether the
// field reads back unchanged.
func (p *Prober) Field(f Field, value uint32) bool {
	p.save(f.Offset)
	mask := f.mask()
	pattern := (value << f.Shift) & mask
	p.rf.Write32(f.Offset, pattern)
	return p.rf.Read32(f.Offset)&mask == pattern
}

// Bits ORs mask into the register's original value and reports whether
// every bit of mask latched.
func (p *Prober) Bits(off uint32, mask uint32) bool {
	orig := p.save(off)
	p.rf.Write32(off, orig|mask)
	return p.rf.Read32(off)&mask == mask
}

// Word writes a whole pattern and reports whether it reads back verbatim.
func (p *Prober) Word(off uint32, pattern uint32) bool {
	p.save(off)
	p.rf.Write32(off, pattern)
	return p.rf.Read32(off) == pattern
}

// Restore writes back every saved register, most recently touched first.
func (p *Prober) Restore() {
	for i := len(p.order) - 1; i >= 0; i-- {
		off := p.order[i]
		p.rf.Write32(off, p.saved[off])
	}
	p.order = p.order[:0]
	p.saved = make(map[uint32]uint32)
}

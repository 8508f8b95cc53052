package sim

// Register offsets of the elementwise core.
const (
	eltInfo0   = 0x08
	eltInfo1   = 0x0C
	eltCtrl0   = 0x40
	eltCtrl1   = 0x44
	eltSts0    = 0x60
	eltSts1    = 0x64
	eltSts2    = 0x68
	eltSts3    = 0x6C
	eltBufLen0 = 0x8C
	eltBypass  = 0xD8

	EltwiseSize = 0x100
)

const (
	eltCtrlReady = 0x7
	eltCtrlPerf  = 1 << 3
	eltStartMask = 0x7
	eltStartB    = 1 << 1
)

// EltwiseParams are the synthesis parameters of an elementwise core.
type EltwiseParams struct {
	ID      uint8
	Version uint32

	MM2SWidth int
	S2MMWidth int
	Pipelines int

	InConvert, Pow2, MAC, OutConvert, Round bool
	PerfMonitor                             bool

	// Flags is the raw capability byte pattern of info1 bits 8..21.
	Flags uint32
}

// DefaultEltwiseParams builds an FP32 multiply-add core with FP16 streams.
func DefaultEltwiseParams() EltwiseParams {
	return EltwiseParams{
		Version:     DefaultVersion,
		MM2SWidth:   64,
		S2MMWidth:   64,
		Pipelines:   4,
		InConvert:   true,
		MAC:         true,
		OutConvert:  true,
		Round:       true,
		PerfMonitor: true,
		// 2-byte streams both ways, fp16 in, fp32 calc, fp32 to fp16 rounding
		Flags: 1<<9 | 1<<12 | 1<<14 | 1<<18 | 1<<21,
	}
}

// FullEltwiseParams enables every unit and every format.
func FullEltwiseParams() EltwiseParams {
	p := DefaultEltwiseParams()
	p.Pow2 = true
	p.Flags = 0x3FFF << 8
	return p
}

// Eltwise models one elementwise core. Each start completes one command per
// stream it enables.
type Eltwise struct {
	core
	p       EltwiseParams
	pending uint32
	Runs    int
}

func NewEltwise(p EltwiseParams) *Eltwise {
	c := &Eltwise{core: newCore(EltwiseSize, p.Version, EltwiseTypeCode, p.ID), p: p}

	c.info(eltInfo0, uint32(p.MM2SWidth)&0xFFFF|uint32(p.S2MMWidth)&0xFFFF<<16)
	c.info(eltInfo1, uint32(p.Pipelines)&0xFF|p.Flags&(0x3FFF<<8))

	var absent uint32
	for i, present := range []bool{p.InConvert, p.Pow2, p.MAC, p.OutConvert, p.Round} {
		if !present {
			absent |= 1 << uint(i)
		}
	}
	c.Filter(eltBypass, func(_, v uint32) uint32 { return v&0x1F | absent })
	c.Poke(eltBypass, absent)

	ctrlMask := uint32(eltCtrlReady)
	if p.PerfMonitor {
		ctrlMask |= eltCtrlPerf
	}
	c.Mask(eltCtrl0, ctrlMask)
	c.Filter(eltCtrl1, c.writeStart)
	return c
}

func (c *Eltwise) Params() EltwiseParams { return c.p }

func (c *Eltwise) writeStart(old, v uint32) uint32 {
	v &= eltStartMask
	if v == 0 || c.Read32(eltCtrl0)&eltCtrlReady != eltCtrlReady {
		return old
	}
	c.Runs++
	if c.stalled {
		c.pending = v
		return v
	}
	c.complete(v)
	return 0
}

// Release finishes a stalled run.
func (c *Eltwise) Release() {
	c.stalled = false
	if c.pending != 0 {
		c.complete(c.pending)
		c.pending = 0
		c.Poke(eltCtrl1, 0)
	}
}

func (c *Eltwise) complete(start uint32) {
	c.Poke(eltSts0, c.Read32(eltSts0)+1)
	if start&eltStartB != 0 {
		c.Poke(eltSts1, c.Read32(eltSts1)+1)
	}
	c.Poke(eltSts2, c.Read32(eltSts2)+1)
	if c.Read32(eltCtrl0)&eltCtrlPerf != 0 {
		// one beat per pipeline per cycle
		beats := ceilDiv(c.Read32(eltBufLen0), uint32(c.p.MM2SWidth/8))
		c.Poke(eltSts3, c.Read32(eltSts3)+ceilDiv(beats, uint32(c.p.Pipelines))+1)
	}
}

package sim

// Register offsets of the pooling core.
const (
	poolInfo0 = 0x08
	poolInfo1 = 0x0C
	poolInfo2 = 0x10
	poolInfo3 = 0x14
	poolCtrl  = 0x40
	poolSts0  = 0x60
	poolSts1  = 0x64
	poolSts2  = 0x68
	poolSts3  = 0x6C
	poolSts4  = 0x70
	poolSts5  = 0x74
	poolSts6  = 0x78
	poolCal0  = 0x80
	poolCal2  = 0x88
	poolFmap2 = 0xC8
	poolFmap3 = 0xCC
	poolFmap4 = 0xD0
	poolFmap6 = 0xD8

	PoolSize = 0x200
)

const (
	poolCtrlStart     = 0x3
	poolCtrlSubsystem = 1 << 8
	poolCtrlPostMAC   = 1 << 9
	poolCtrlPerf      = 1 << 10
	poolIdleMask      = 0x3
)

// PoolParams are the synthesis parameters of a pooling core.
type PoolParams struct {
	ID      uint8
	Version uint32

	Avg, Max, Upsample bool
	INT8, INT16, FP16  bool
	ExtPadding         bool
	ConstPadding       bool
	PerfMonitor        bool

	AtomicC int
	// PostMACParallel of zero means the post multiply-add is not built.
	PostMACParallel   int
	MM2SWidth         int
	S2MMWidth         int
	BankCount         int
	BankDepth         int
	MaxFeatureMapRows int
	MidResBankCount   int
	MidResBankDepth   int
}

// DefaultPoolParams matches the reference FP16 build: max pooling and
// upsampling, external padding and the performance monitor.
func DefaultPoolParams() PoolParams {
	return PoolParams{
		Version:           DefaultVersion,
		Max:               true,
		Upsample:          true,
		FP16:              true,
		ExtPadding:        true,
		PerfMonitor:       true,
		AtomicC:           8,
		MM2SWidth:         64,
		S2MMWidth:         64,
		BankCount:         16,
		BankDepth:         512,
		MaxFeatureMapRows: 512,
		MidResBankCount:   8,
		MidResBankDepth:   512,
	}
}

// FullPoolParams enables every optional feature.
func FullPoolParams() PoolParams {
	p := DefaultPoolParams()
	p.Avg = true
	p.INT8, p.INT16 = true, true
	p.ConstPadding = true
	p.PostMACParallel = 1
	return p
}

// Pool models one pooling core.
type Pool struct {
	core
	p       PoolParams
	pending bool
	Runs    int
}

func NewPool(p PoolParams) *Pool {
	c := &Pool{core: newCore(PoolSize, p.Version, PoolTypeCode, p.ID), p: p}

	c.info(poolInfo0, uint32(p.AtomicC)&0xFF|uint32(p.PostMACParallel)&0xFF<<8|uint32(p.MaxFeatureMapRows)&0xFFFF<<16)
	c.info(poolInfo1, uint32(p.MM2SWidth)&0xFFFF|uint32(p.S2MMWidth)&0xFFFF<<16)
	c.info(poolInfo2, uint32(p.BankCount)&0xFFFF|uint32(p.BankDepth)&0xFFFF<<16)
	c.info(poolInfo3, uint32(p.MidResBankCount)&0xFFFF|uint32(p.MidResBankDepth)&0xFFFF<<16)

	c.Poke(poolSts0, poolIdleMask)
	c.ReadOnly(poolSts0)

	c.Filter(poolCtrl, c.writeCtrl)
	c.Filter(poolCal0, c.writeCal0)
	c.Filter(poolCal2, func(_, v uint32) uint32 {
		if !p.ConstPadding {
			return 0
		}
		return v
	})
	c.Filter(poolFmap4, func(_, v uint32) uint32 {
		if !p.ExtPadding {
			v &= 0xFFFF
		}
		return v
	})
	return c
}

func (c *Pool) Params() PoolParams { return c.p }

func (c *Pool) modeSupported(m uint32) bool {
	switch m {
	case 0:
		return c.p.Avg
	case 1:
		return c.p.Max
	case 2:
		return c.p.Upsample
	}
	return false
}

func (c *Pool) formatSupported(f uint32) bool {
	switch f {
	case 0:
		return c.p.INT8
	case 1:
		return c.p.INT16
	case 2:
		return c.p.FP16
	}
	return false
}

// firstOf returns the lowest code in 0..2 accepted by ok.
func firstOf(ok func(uint32) bool) uint32 {
	for code := uint32(0); code < 3; code++ {
		if ok(code) {
			return code
		}
	}
	return 0
}

func (c *Pool) writeCal0(_, v uint32) uint32 {
	mode := field(v, 0, 4)
	if !c.modeSupported(mode) {
		mode = firstOf(c.modeSupported)
	}
	format := field(v, 4, 4)
	if !c.formatSupported(format) {
		format = firstOf(c.formatSupported)
	}
	return v&^0xFF | mode | format<<4
}

func (c *Pool) writeCtrl(_, v uint32) uint32 {
	writable := uint32(poolCtrlSubsystem)
	if c.p.PostMACParallel != 0 {
		writable |= poolCtrlPostMAC
	}
	if c.p.PerfMonitor {
		writable |= poolCtrlPerf
	}
	val := v & writable
	if v&poolCtrlStart != 0 && val&poolCtrlSubsystem != 0 {
		c.Runs++
		if c.stalled {
			c.pending = true
			c.Poke(poolSts0, 0)
		} else {
			c.complete(val)
		}
	}
	return val
}

func (c *Pool) SetBusy(stages uint32) {
	c.Poke(poolSts0, poolIdleMask&^stages)
}

// Release finishes a stalled run.
func (c *Pool) Release() {
	c.stalled = false
	if c.pending {
		c.pending = false
		c.complete(c.Read32(poolCtrl))
	}
}

func (c *Pool) complete(ctrl uint32) {
	h := field(c.Read32(poolFmap2), 16, 16) + 1
	size := c.Read32(poolFmap3) + 1
	ch := field(c.Read32(poolFmap4), 0, 16) + 1
	outW := field(c.Read32(poolFmap6), 0, 15) + 1
	outH := field(c.Read32(poolFmap6), 15, 15) + 1
	groups := ceilDiv(ch, uint32(c.p.AtomicC))

	c.Poke(poolSts1, c.Read32(poolSts1)+h*groups)
	c.Poke(poolSts2, c.Read32(poolSts2)+outH*groups)
	if ctrl&poolCtrlPerf != 0 {
		c.Poke(poolSts3, c.Read32(poolSts3)+outW*outH*groups)
		c.Poke(poolSts4, c.Read32(poolSts4)+size*ch*2)
		c.Poke(poolSts5, c.Read32(poolSts5)+outW*outH*ch*4)
		c.Poke(poolSts6, c.Read32(poolSts6)+outH*groups)
	}
	c.Poke(poolSts0, poolIdleMask)
}

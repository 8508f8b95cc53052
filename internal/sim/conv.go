package sim

// Register offsets of the convolution core.
const (
	convInfo0   = 0x08
	convInfo1   = 0x0C
	convInfo2   = 0x10
	convInfo3   = 0x14
	convInfo4   = 0x18
	convInfo5   = 0x1C
	convCtrl    = 0x40
	convSts0    = 0x60
	convSts1    = 0x64
	convSts2    = 0x68
	convSts3    = 0x6C
	convSts4    = 0x70
	convSts5    = 0x74
	convSts6    = 0x78
	convSts7    = 0x7C
	convSts8    = 0x80
	convCal     = 0x90
	convGrp0    = 0xA0
	convFmap2   = 0xC8
	convFmap3   = 0xCC
	convFmap4   = 0xD0
	convFmap5   = 0xD4
	convKrn1    = 0x104
	convKrn2    = 0x108
	convBNCfg   = 0x180
	convActCfg0 = 0x184

	// ConvSize covers the register file, the BN parameter memory at 0x10000
	// and a 4096-entry sigmoid table at 0x18000.
	ConvSize = 0x1A000
)

const (
	convCtrlAccel     = 1 << 0
	convCtrlSubsystem = 1 << 1
	convCtrlPerf      = 1 << 2
	convCtrlBNAct     = 1 << 3
	convCtrlStart     = 0x700
	convIdleMask      = 0x7
)

// ConvParams are the synthesis parameters of a convolution core.
type ConvParams struct {
	ID      uint8
	Version uint32

	INT8, INT16, FP16 bool
	LargeVStride      bool
	LargeHStride      bool
	GroupConv         bool
	ExtPadding        bool
	InnerPadding      bool
	Dilation          bool
	PerfMonitor       bool
	BN                bool
	LeakyReLU         bool
	Sigmoid           bool
	Tanh              bool

	AtomicK           int
	AtomicC           int
	BNActParallel     int
	MaxRounds         int
	MM2SWidth         int
	S2MMWidth         int
	BankCount         int
	BankDepth         int
	MaxFeatureMapRows int
	MaxKernels        int
	MidResBankCount   int
	MidResBankDepth   int
	MidResClockRate   int
}

// DefaultConvParams matches the reference FP16 build: large strides, external
// padding, BN with leaky ReLU and the performance monitor.
func DefaultConvParams() ConvParams {
	return ConvParams{
		Version:           DefaultVersion,
		FP16:              true,
		LargeVStride:      true,
		LargeHStride:      true,
		ExtPadding:        true,
		PerfMonitor:       true,
		BN:                true,
		LeakyReLU:         true,
		AtomicK:           8,
		AtomicC:           8,
		BNActParallel:     1,
		MaxRounds:         2,
		MM2SWidth:         64,
		S2MMWidth:         64,
		BankCount:         16,
		BankDepth:         512,
		MaxFeatureMapRows: 512,
		MaxKernels:        1024,
		MidResBankCount:   4,
		MidResBankDepth:   512,
		MidResClockRate:   1,
	}
}

// FullConvParams enables every optional feature.
func FullConvParams() ConvParams {
	p := DefaultConvParams()
	p.INT8, p.INT16 = true, true
	p.GroupConv = true
	p.InnerPadding = true
	p.Dilation = true
	p.Sigmoid, p.Tanh = true, true
	p.MaxRounds = 16
	return p
}

// Conv models one convolution core.
type Conv struct {
	core
	p       ConvParams
	pending bool
	Runs    int
}

func NewConv(p ConvParams) *Conv {
	c := &Conv{core: newCore(ConvSize, p.Version, ConvTypeCode, p.ID), p: p}

	c.info(convInfo0, minusOne(p.AtomicK, 8)|minusOne(p.AtomicC, 8)<<8|minusOne(p.MaxRounds, 8)<<16)
	c.info(convInfo1, minusOne(p.MM2SWidth, 8)|minusOne(p.S2MMWidth, 8)<<8|minusOne(p.BankCount, 16)<<16)
	c.info(convInfo2, minusOne(p.BankDepth, 16)|minusOne(p.MaxFeatureMapRows, 16)<<16)
	c.info(convInfo3, minusOne(p.MidResBankCount, 8)|minusOne(p.MidResBankDepth, 16)<<16)
	c.info(convInfo4, minusOne(p.BNActParallel, 8)|minusOne(p.MaxKernels, 16)<<16)
	c.info(convInfo5, uint32(p.MidResClockRate)&0xF)

	c.Poke(convSts0, convIdleMask)
	c.ReadOnly(convSts0)

	c.Filter(convCtrl, c.writeCtrl)
	c.Filter(convCal, c.writeCal)
	c.Filter(convGrp0, func(_, v uint32) uint32 {
		if !p.GroupConv {
			v &^= 1
		}
		return v
	})
	c.Filter(convFmap4, func(_, v uint32) uint32 {
		if !p.ExtPadding {
			v &^= 0x3F
		}
		if !p.InnerPadding {
			v &^= 0xFC0
		}
		return v
	})
	c.Filter(convKrn1, func(_, v uint32) uint32 {
		if !p.Dilation {
			v &^= 0xF0
		}
		return v
	})
	c.Filter(convBNCfg, func(_, v uint32) uint32 {
		if !p.BN {
			v &^= 1
		}
		return v
	})
	c.Filter(convActCfg0, func(_, v uint32) uint32 {
		code := v & 0x7
		switch {
		case code == 1 && p.LeakyReLU, code == 2 && p.Sigmoid, code == 3 && p.Tanh:
		default:
			code = 0
		}
		return v&^0x7 | code
	})
	return c
}

func (c *Conv) Params() ConvParams { return c.p }

func (c *Conv) formatSupported(code uint32) bool {
	switch code {
	case 0:
		return c.p.INT8
	case 1:
		return c.p.INT16
	case 2:
		return c.p.FP16
	}
	return false
}

func (c *Conv) writeCal(_, v uint32) uint32 {
	format := v & 0x7
	if !c.formatSupported(format) {
		format = 0
		for code := uint32(0); code < 3; code++ {
			if c.formatSupported(code) {
				format = code
				break
			}
		}
	}
	strideV := field(v, 8, 3)
	if !c.p.LargeVStride {
		strideV = 0
	}
	strideH := field(v, 11, 3)
	if !c.p.LargeHStride {
		strideH = 0
	}
	return format | strideV<<8 | strideH<<11 | field(v, 16, 4)<<16
}

func (c *Conv) writeCtrl(_, v uint32) uint32 {
	writable := uint32(convCtrlAccel | convCtrlSubsystem | convCtrlBNAct)
	if c.p.PerfMonitor {
		writable |= convCtrlPerf
	}
	val := v & writable
	if v&convCtrlStart != 0 && val&convCtrlSubsystem != 0 {
		c.start(val)
	}
	return val
}

// SetBusy clears the idle bits of the given stages (a subset of 0x7), modelling
// a core where some stages are still draining. SetBusy(0) makes it idle again.
func (c *Conv) SetBusy(stages uint32) {
	c.Poke(convSts0, convIdleMask&^stages)
}

func (c *Conv) start(ctrl uint32) {
	c.Runs++
	if c.stalled {
		c.pending = true
		c.Poke(convSts0, 0)
		return
	}
	c.complete(ctrl)
}

// Release finishes a stalled run.
func (c *Conv) Release() {
	c.stalled = false
	if c.pending {
		c.pending = false
		c.complete(c.Read32(convCtrl))
	}
}

func (c *Conv) complete(ctrl uint32) {
	w := field(c.Read32(convFmap2), 0, 16) + 1
	ch := field(c.Read32(convFmap2), 16, 16) + 1
	size := c.Read32(convFmap3) + 1
	h := size / w
	outW := field(c.Read32(convFmap5), 2, 15) + 1
	outH := field(c.Read32(convFmap5), 17, 15) + 1
	kernels := field(c.Read32(convKrn2), 0, 16) + 1
	sets := field(c.Read32(convKrn2), 16, 16) + 1
	kernelGroups := ceilDiv(kernels, uint32(c.p.AtomicK))
	elem := uint32(2)
	if c.Read32(convCal)&0x7 == 0 {
		elem = 1
	}

	c.Poke(convSts1, c.Read32(convSts1)+h*ceilDiv(ch, uint32(c.p.AtomicC)))
	c.Poke(convSts2, c.Read32(convSts2)+sets)
	c.Poke(convSts3, c.Read32(convSts3)+outH*kernelGroups)

	if ctrl&convCtrlPerf != 0 {
		rounds := field(c.Read32(convCal), 16, 4) + 1
		c.Poke(convSts4, c.Read32(convSts4)+outW*outH*kernelGroups*rounds)
		c.Poke(convSts5, c.Read32(convSts5)+size*ch*elem)
		c.Poke(convSts6, c.Read32(convSts6)+kernels*ch*elem)
		c.Poke(convSts7, c.Read32(convSts7)+outW*outH*kernels*4)
		c.Poke(convSts8, c.Read32(convSts8)+outW*outH*kernelGroups)
	}
	c.Poke(convSts0, convIdleMask)
}

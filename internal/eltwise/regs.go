package eltwise

import "github.com/23skdu/longbow-axi/internal/accel"

const (
	regionProp   = 0x000
	regionCtrl   = 0x040
	regionStatus = 0x060
	regionBuffer = 0x080
	regionUnits  = 0x0C0

	offInfo0 = regionProp + 0x08
	offInfo1 = regionProp + 0x0C

	offCtrl0   = regionCtrl
	offCtrl1   = regionCtrl + 0x04
	offStatus0 = regionStatus

	offFmt     = regionUnits
	offFixed0  = regionUnits + 0x04
	offFixed1  = regionUnits + 0x08
	offOperand = regionUnits + 0x0C
	offAValue  = regionUnits + 0x10
	offBValue  = regionUnits + 0x14
	offBypass  = regionUnits + 0x18
)

// ctrl0 enables, ctrl1 per-stream start bits.
const (
	ctrlAccel     = 1 << 0
	ctrlSubsystem = 1<<1 | 1<<2
	ctrlPerf      = 1 << 3
	ctrlReady     = ctrlAccel | ctrlSubsystem

	startOperand = 1 << 0
	startSecond  = 1 << 1
	startResult  = 1 << 2
	startMask    = startOperand | startSecond | startResult
)

// Status words: one completion counter per stream, then the cycle counter.
const (
	statusMM2S0 = iota
	statusMM2S1
	statusS2MM
	statusCycles
)

// Buffer region words: three base addresses followed by three lengths.
const (
	bufOperand = iota
	bufSecond
	bufResult
	bufOperandLen
	bufSecondLen
	bufResultLen
)

var (
	propMM2SWidth = reg("mm2s_width", offInfo0, 0, 16, accel.Direct)
	propS2MMWidth = reg("s2mm_width", offInfo0, 16, 16, accel.Direct)
	propPipelines = reg("pipelines", offInfo1, 0, 8, accel.Direct)
)

// info1 capability flags.
const (
	flagInWidth1 = 1 << (8 + iota)
	flagInWidth2
	flagInWidth4
	flagOutWidth1
	flagOutWidth2
	flagOutWidth4
	flagInCvtFP16
	flagInCvtInt
	flagCalcS16
	flagCalcS32
	flagCalcFP32
	flagOutCvtS33
	flagRoundS33
	flagRoundFP32
)

var (
	fInFormat   = reg("in_format", offFmt, 0, 8, accel.Direct)
	fCalcFormat = reg("calc_format", offFmt, 8, 8, accel.Direct)
	fOutFormat  = reg("out_format", offFmt, 16, 8, accel.Direct)

	fInFrac       = reg("in_frac", offFixed0, 0, 8, accel.Direct)
	fOpXFrac      = reg("op_x_frac", offFixed0, 8, 8, accel.Direct)
	fOpAFrac      = reg("op_a_frac", offFixed0, 16, 8, accel.Direct)
	fS33Frac      = reg("s33_frac", offFixed0, 24, 8, accel.Direct)
	fRoundInFrac  = reg("round_in_frac", offFixed1, 0, 8, accel.Direct)
	fRoundOutFrac = reg("round_out_frac", offFixed1, 8, 8, accel.Direct)
	fRoundShift   = reg("round_shift", offFixed1, 16, 8, accel.Direct)

	fAIsOne  = reg("a_is_one", offOperand, 0, 1, accel.Direct)
	fBIsZero = reg("b_is_zero", offOperand, 1, 1, accel.Direct)
	fAConst  = reg("a_const", offOperand, 8, 1, accel.Direct)
	fBConst  = reg("b_const", offOperand, 9, 1, accel.Direct)

	fBypassInConvert  = reg("bypass_in_convert", offBypass, 0, 1, accel.Direct)
	fBypassPow2       = reg("bypass_pow2", offBypass, 1, 1, accel.Direct)
	fBypassMAC        = reg("bypass_mac", offBypass, 2, 1, accel.Direct)
	fBypassOutConvert = reg("bypass_out_convert", offBypass, 3, 1, accel.Direct)
	fBypassRound      = reg("bypass_round", offBypass, 4, 1, accel.Direct)
)

var RegisterLayout = accel.Layout{
	fInFormat, fCalcFormat, fOutFormat,
	fInFrac, fOpXFrac, fOpAFrac, fS33Frac,
	fRoundInFrac, fRoundOutFrac, fRoundShift,
	fAIsOne, fBIsZero, fAConst, fBConst,
	fBypassInConvert, fBypassPow2, fBypassMAC, fBypassOutConvert, fBypassRound,
}

func reg(name string, off uint32, shift, width uint, enc accel.Encoding) accel.Field {
	return accel.Field{Name: name, Offset: off, Shift: shift, Width: width, Encoding: enc}
}

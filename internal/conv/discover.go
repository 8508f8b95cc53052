package conv

import (
	"github.com/23skdu/longbow-axi/internal/accel"
	"github.com/23skdu/longbow-axi/internal/mmio"
)

// Family is the label used in logs and metrics.
const Family = "conv"

// TypeCode is the low 30 bits of the identity word of a convolution core.
const TypeCode = 0b110101101010101011010111000010

// Discover verifies the identity of the core behind rf, decodes its
// properties and probes its optional features. Probing writes to the
// configuration registers; every touched register is restored and the
// calculation subsystem is left disabled.
func Discover(rf mmio.RegisterFile) (Capabilities, error) {
	id, err := accel.CheckIdentity(rf, Family, TypeCode)
	if err != nil {
		return Capabilities{}, err
	}

	caps := Capabilities{Identity: id}
	prop := func(f accel.Field) int { return int(f.Decode(rf.Read32(f.Offset))) }
	caps.AtomicK = prop(propAtomicK)
	caps.AtomicC = prop(propAtomicC)
	caps.MaxCalcRounds = prop(propMaxRounds)
	caps.MM2SWidth = prop(propMM2SWidth)
	caps.S2MMWidth = prop(propS2MMWidth)
	caps.BankCount = prop(propBankCount)
	caps.BankDepth = prop(propBankDepth)
	caps.MaxFeatureMapRows = prop(propMaxFmRows)
	caps.MidResBankCount = prop(propMidBankCount)
	caps.MidResBankDepth = prop(propMidBankDepth)
	caps.BNActParallel = prop(propBNActParallel)
	caps.MaxKernels = prop(propMaxKernels)
	caps.MidResClockRate = prop(propMidClockRate)

	probe(rf, &caps)
	return caps, nil
}

func probe(rf mmio.RegisterFile, caps *Capabilities) {
	p := accel.NewProber(rf)
	defer func() {
		p.Restore()
		mmio.NewRegion(rf, offCtrl0).Reg(0).Clear(ctrlSubsystem)
	}()

	caps.INT8 = p.Field(fFormat, uint32(INT8))
	caps.INT16 = p.Field(fFormat, uint32(INT16))
	caps.FP16 = p.Field(fFormat, uint32(FP16))
	caps.LargeVStride = p.Field(fStrideV, 7)
	caps.LargeHStride = p.Field(fStrideH, 7)
	caps.GroupConv = p.Field(fGrouped, 1)
	caps.ExtPadding = p.Field(fPadLeft, 7)
	caps.InnerPadding = p.Field(fInnerH, 7)
	caps.Dilation = p.Field(fDilation, 15)
	caps.PerfMonitor = p.Bits(offCtrl0, ctrlPerf)
	caps.BN = p.Field(fUseBN, 1)
	caps.LeakyReLU = p.Field(fActivation, uint32(LeakyReLU))
	caps.Sigmoid = p.Field(fActivation, uint32(Sigmoid))
	caps.Tanh = p.Field(fActivation, uint32(Tanh))
}

package pool

import (
	"github.com/23skdu/longbow-axi/internal/accel"
	"github.com/23skdu/longbow-axi/internal/mmio"
)

// Family is the label used in logs and metrics.
const Family = "pool"

// TypeCode is the low 30 bits of the identity word of a pooling core.
const TypeCode = 0b110101101001011011100111001111

// Discover verifies the identity of the core behind rf, decodes its
// properties and probes its optional features. Touched registers are
// restored and the calculation subsystem is left disabled.
func Discover(rf mmio.RegisterFile) (Capabilities, error) {
	id, err := accel.CheckIdentity(rf, Family, TypeCode)
	if err != nil {
		return Capabilities{}, err
	}

	caps := Capabilities{Identity: id}
	prop := func(f accel.Field) int { return int(f.Decode(rf.Read32(f.Offset))) }
	caps.AtomicC = prop(propAtomicC)
	caps.PostMACParallel = prop(propPostMACParallel)
	caps.MaxFeatureMapRows = prop(propMaxFmRows)
	caps.MM2SWidth = prop(propMM2SWidth)
	caps.S2MMWidth = prop(propS2MMWidth)
	caps.BankCount = prop(propBankCount)
	caps.BankDepth = prop(propBankDepth)
	caps.MidResBankCount = prop(propMidBankCount)
	caps.MidResBankDepth = prop(propMidBankDepth)
	// a build without the post multiply-add reports zero lanes
	caps.PostMAC = caps.PostMACParallel != 0

	probe(rf, &caps)
	return caps, nil
}

func probe(rf mmio.RegisterFile, caps *Capabilities) {
	p := accel.NewProber(rf)
	defer func() {
		p.Restore()
		mmio.NewRegion(rf, offCtrl0).Reg(0).Clear(ctrlSubsystem)
	}()

	caps.Avg = p.Field(fMode, uint32(Avg))
	caps.Max = p.Field(fMode, uint32(Max))
	caps.Upsample = p.Field(fMode, uint32(Upsample))
	caps.INT8 = p.Field(fFormat, uint32(INT8))
	caps.INT16 = p.Field(fFormat, uint32(INT16))
	caps.FP16 = p.Field(fFormat, uint32(FP16))
	caps.ExtPadding = p.Word(offFmap4, extPaddingProbe)
	caps.ConstPadding = p.Word(offCal2, 1)
	caps.PerfMonitor = p.Bits(offCtrl0, ctrlPerf)
}

package eltwise

import (
	"github.com/23skdu/longbow-axi/internal/accel"
	"github.com/23skdu/longbow-axi/internal/mmio"
)

// Family is the label used in logs and metrics.
const Family = "eltwise"

// TypeCode is the low 30 bits of the identity word of an elementwise core.
const TypeCode = 0b110101101010110011000101100100

// Discover verifies the identity of the core behind rf, decodes its
// properties and probes which functional units were built.
func Discover(rf mmio.RegisterFile) (Capabilities, error) {
	id, err := accel.CheckIdentity(rf, Family, TypeCode)
	if err != nil {
		return Capabilities{}, err
	}

	caps := Capabilities{Identity: id}
	info0 := rf.Read32(offInfo0)
	caps.MM2SWidth = int(propMM2SWidth.Decode(info0))
	caps.S2MMWidth = int(propS2MMWidth.Decode(info0))

	info1 := rf.Read32(offInfo1)
	caps.Pipelines = int(propPipelines.Decode(info1))
	flag := func(bit uint32) bool { return info1&bit != 0 }
	caps.InWidth1 = flag(flagInWidth1)
	caps.InWidth2 = flag(flagInWidth2)
	caps.InWidth4 = flag(flagInWidth4)
	caps.OutWidth1 = flag(flagOutWidth1)
	caps.OutWidth2 = flag(flagOutWidth2)
	caps.OutWidth4 = flag(flagOutWidth4)
	caps.InCvtFP16 = flag(flagInCvtFP16)
	caps.InCvtInt = flag(flagInCvtInt)
	caps.CalcS16 = flag(flagCalcS16)
	caps.CalcS32 = flag(flagCalcS32)
	caps.CalcFP32 = flag(flagCalcFP32)
	caps.OutCvtS33 = flag(flagOutCvtS33)
	caps.RoundS33 = flag(flagRoundS33)
	caps.RoundFP32 = flag(flagRoundFP32)

	probe(rf, &caps)
	return caps, nil
}

func probe(rf mmio.RegisterFile, caps *Capabilities) {
	p := accel.NewProber(rf)
	defer func() {
		p.Restore()
		mmio.NewRegion(rf, offCtrl0).Reg(0).Clear(ctrlSubsystem)
	}()

	// a missing unit keeps its bypass bit set
	p.Word(offBypass, 0)
	forced := rf.Read32(offBypass)
	present := func(f accel.Field) bool { return f.Decode(forced) == 0 }
	caps.Units = Units{
		InConvert:  present(fBypassInConvert),
		Pow2:       present(fBypassPow2),
		MAC:        present(fBypassMAC),
		OutConvert: present(fBypassOutConvert),
		Round:      present(fBypassRound),
	}
	caps.PerfMonitor = p.Bits(offCtrl0, ctrlPerf)
}

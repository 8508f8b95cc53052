package eltwise

import "github.com/23skdu/longbow-axi/internal/accel"

type put struct {
	f accel.Field
	v int
}

// Encode packs a validated descriptor into a register image.
func Encode(d Descriptor) (*accel.Image, error) {
	// only meaningful when rounding a fixed-point result
	shift := d.RoundInFrac - d.RoundOutFrac
	if shift < 0 {
		shift = 0
	}

	puts := []put{
		{fInFormat, int(d.InFormat)},
		{fCalcFormat, int(d.CalcFormat)},
		{fOutFormat, int(d.OutFormat)},
		{fInFrac, d.InFrac},
		{fOpXFrac, d.OpXFrac},
		{fOpAFrac, d.OpAFrac},
		{fS33Frac, d.S33Frac},
		{fRoundInFrac, d.RoundInFrac},
		{fRoundOutFrac, d.RoundOutFrac},
		{fRoundShift, shift},
		{fAIsOne, boolInt(d.AIsOne)},
		{fBIsZero, boolInt(d.BIsZero)},
		{fAConst, boolInt(d.A.Const)},
		{fBConst, boolInt(d.B.Const)},
		{fBypassInConvert, boolInt(!d.Units.InConvert)},
		{fBypassPow2, boolInt(!d.Units.Pow2)},
		{fBypassMAC, boolInt(!d.Units.MAC)},
		{fBypassOutConvert, boolInt(!d.Units.OutConvert)},
		{fBypassRound, boolInt(!d.Units.Round)},
	}

	im := accel.NewImage()
	for _, pt := range puts {
		if pt.v < 0 {
			lo, hi := pt.f.Range()
			return nil, accel.OutOfRange(pt.f.Name, int64(pt.v), int64(lo), int64(hi))
		}
		if err := im.Put(pt.f, uint64(pt.v)); err != nil {
			return nil, err
		}
	}
	if d.A.Const {
		im.SetWord(offAValue, d.A.Value)
	}
	if d.B.Const {
		im.SetWord(offBValue, d.B.Value)
	}
	return im, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

package eltwise

import "github.com/23skdu/longbow-axi/internal/accel"

const (
	maxWideFrac   = 63
	maxNarrowFrac = 31
)

// Validate checks d against the units and format support of the core and
// the fixed-point bounds of each stage. It returns the first violation found.
func Validate(caps Capabilities, d Descriptor) error {
	units := []struct {
		name       string
		use, exist bool
	}{
		{"in_convert", d.Units.InConvert, caps.Units.InConvert},
		{"pow2", d.Units.Pow2, caps.Units.Pow2},
		{"mac", d.Units.MAC, caps.Units.MAC},
		{"out_convert", d.Units.OutConvert, caps.Units.OutConvert},
		{"round", d.Units.Round, caps.Units.Round},
	}
	for _, u := range units {
		if u.use && !u.exist {
			return accel.Unsupported(u.name, 1, "unit not built in")
		}
	}

	if err := checkFormats(caps, d); err != nil {
		return err
	}

	if d.Units.InConvert && !d.InFormat.Float() {
		if err := accel.CheckRange("in_frac", d.InFrac, 0, maxWideFrac); err != nil {
			return err
		}
	}
	if (d.Units.Pow2 || d.Units.MAC) && d.CalcFormat != CalcFP32 {
		if err := accel.CheckRange("op_x_frac", d.OpXFrac, 0, maxNarrowFrac); err != nil {
			return err
		}
		if d.StreamsA() {
			if err := accel.CheckRange("op_a_frac", d.OpAFrac, 0, maxNarrowFrac); err != nil {
				return err
			}
		}
	}
	if d.Units.OutConvert && !d.OutFormat.Float() {
		if err := accel.CheckRange("s33_frac", d.S33Frac, 0, maxWideFrac); err != nil {
			return err
		}
	}
	if d.Units.Round && !d.OutFormat.Float() {
		if err := accel.CheckRange("round_in_frac", d.RoundInFrac, 0, maxNarrowFrac); err != nil {
			return err
		}
		if err := accel.CheckRange("round_out_frac", d.RoundOutFrac, 0, d.RoundInFrac); err != nil {
			return err
		}
	}
	return nil
}

func checkFormats(caps Capabilities, d Descriptor) error {
	if _, ok := inNames[d.InFormat]; !ok {
		return accel.OutOfRange("in_format", int64(d.InFormat), int64(InU8), int64(InFP32))
	}
	if _, ok := calcNames[d.CalcFormat]; !ok {
		return accel.OutOfRange("calc_format", int64(d.CalcFormat), int64(CalcS16), int64(CalcFP32))
	}
	if _, ok := outNames[d.OutFormat]; !ok {
		return accel.OutOfRange("out_format", int64(d.OutFormat), int64(OutU8), int64(OutFP32))
	}
	if !caps.SupportsCalc(d.CalcFormat) {
		return accel.Unsupported("calc_format", int64(d.CalcFormat), d.CalcFormat.String()+" not built in")
	}
	if !caps.inWidth(d.InFormat.Bytes()) {
		return accel.Unsupported("in_format", int64(d.InFormat), "input stream width not built in")
	}
	if !caps.outWidth(d.OutFormat.Bytes()) {
		return accel.Unsupported("out_format", int64(d.OutFormat), "output stream width not built in")
	}
	if d.Units.InConvert {
		switch {
		case d.InFormat == InFP16 && !caps.InCvtFP16:
			return accel.Unsupported("in_format", int64(d.InFormat), "fp16 to fp32 conversion not built in")
		case !d.InFormat.Float() && !caps.InCvtInt:
			return accel.Unsupported("in_format", int64(d.InFormat), "integer to fp32 conversion not built in")
		}
	}
	if d.Units.OutConvert && !d.OutFormat.Float() && !caps.OutCvtS33 {
		return accel.Unsupported("out_format", int64(d.OutFormat), "fp32 to s33 conversion not built in")
	}
	if d.Units.Round {
		if d.OutFormat.Float() && !caps.RoundFP32 {
			return accel.Unsupported("round", 1, "fp32 to fp16 rounding not built in")
		}
		if !d.OutFormat.Float() && !caps.RoundS33 {
			return accel.Unsupported("round", 1, "s33 rounding not built in")
		}
	}
	return nil
}

package pool

import "github.com/23skdu/longbow-axi/internal/accel"

const (
	maxStride    = 8
	maxWindow    = 256
	maxFactor    = 256
	maxPadding   = 7
	maxDimension = 1 << 16
	maxFixedFrac = 31
)

// Validate checks d against the capabilities of the core and the intrinsic
// ranges of its register fields. It returns the first violation found.
func Validate(caps Capabilities, d Descriptor) error {
	if _, ok := modeNames[d.Mode]; !ok {
		return accel.OutOfRange("mode", int64(d.Mode), int64(Avg), int64(Upsample))
	}
	if !caps.SupportsMode(d.Mode) {
		return accel.Unsupported("mode", int64(d.Mode), d.Mode.String()+" not built in")
	}
	if _, ok := formatNames[d.Format]; !ok {
		return accel.OutOfRange("format", int64(d.Format), int64(INT8), int64(FP16))
	}
	if !caps.SupportsFormat(d.Format) {
		return accel.Unsupported("format", int64(d.Format), d.Format.String()+" not built in")
	}
	if d.PostMAC.Use && !caps.PostMAC {
		return accel.Unsupported("post_mac", 1, "core built without post multiply-add")
	}

	for _, pad := range []struct {
		name string
		v    int
	}{
		{"pad_left", d.PadLeft}, {"pad_right", d.PadRight},
		{"pad_top", d.PadTop}, {"pad_bottom", d.PadBottom},
	} {
		if err := accel.CheckRange(pad.name, pad.v, 0, maxPadding); err != nil {
			return err
		}
		if pad.v > 0 && !caps.ExtPadding {
			return accel.Unsupported(pad.name, int64(pad.v), "core built without external padding")
		}
	}

	if d.Mode.Pooling() {
		checks := []struct {
			name   string
			v, max int
		}{
			{"stride_h", d.StrideH, maxStride},
			{"stride_v", d.StrideV, maxStride},
			{"window_w", d.WindowW, maxWindow},
			{"window_h", d.WindowH, maxWindow},
		}
		for _, c := range checks {
			if err := accel.CheckRange(c.name, c.v, 1, c.max); err != nil {
				return err
			}
		}
	} else {
		if err := accel.CheckRange("upsample_h", d.UpsampleH, 1, maxFactor); err != nil {
			return err
		}
		if err := accel.CheckRange("upsample_v", d.UpsampleV, 1, maxFactor); err != nil {
			return err
		}
	}

	if d.ConstPadding {
		if !caps.ConstPadding {
			return accel.Unsupported("const_padding", 1, "core built without constant padding")
		}
		if d.Mode == Avg {
			return accel.Unsupported("const_padding", 1, "constant padding applies to max pooling and upsampling only")
		}
	}

	if d.Format.Fixed() && d.PostMAC.Use {
		if err := accel.CheckRange("post_mac_frac", d.PostMAC.Frac, 0, maxFixedFrac); err != nil {
			return err
		}
	}

	for _, dim := range []struct {
		name string
		v    int
	}{
		{"width", d.Width}, {"height", d.Height}, {"channels", d.Channels},
	} {
		if err := accel.CheckRange(dim.name, dim.v, 1, maxDimension); err != nil {
			return err
		}
	}
	if _, ok := outputNames[d.OutputType]; !ok {
		return accel.OutOfRange("output_type", int64(d.OutputType), int64(Out1Byte), int64(Out4Byte))
	}
	if _, ok := rowWidthCodes[d.RowWidth]; !ok {
		return accel.OutOfRange("row_width", int64(d.RowWidth), 4, 4096)
	}
	return nil
}

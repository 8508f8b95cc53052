package conv

import (
	"fmt"

	"github.com/23skdu/longbow-axi/internal/accel"
)

const (
	maxStride     = 8
	maxRounds     = 16
	maxPadding    = 7
	maxDilation   = 15
	maxDimension  = 1 << 16
	maxFixedFrac  = 31
	maxBlockWidth = 255
)

// Validate checks d against the capabilities of the core and the intrinsic
// ranges of its register fields. It returns the first violation found.
func Validate(caps Capabilities, d Descriptor) error {
	bn := d.BNAct
	if bn.UseBN && !caps.BN {
		return accel.Unsupported("use_bn", 1, "core built without batch normalization")
	}
	if bn.UseActivation && !caps.SupportsActivation(bn.Activation) {
		return accel.Unsupported("activation", int64(bn.Activation), bn.Activation.String()+" not built in")
	}
	if _, ok := formatNames[d.Format]; !ok {
		return accel.OutOfRange("format", int64(d.Format), int64(INT8), int64(FP16))
	}
	if !caps.SupportsFormat(d.Format) {
		return accel.Unsupported("format", int64(d.Format), d.Format.String()+" not built in")
	}

	if err := checkStride("stride_v", d.StrideV, caps.LargeVStride); err != nil {
		return err
	}
	if err := checkStride("stride_h", d.StrideH, caps.LargeHStride); err != nil {
		return err
	}

	if err := accel.CheckRange("rounds", d.Rounds, 1, maxRounds); err != nil {
		return err
	}
	if d.Rounds > caps.MaxCalcRounds {
		return accel.Unsupported("rounds", int64(d.Rounds), fmt.Sprintf("core allows at most %d", caps.MaxCalcRounds))
	}

	if err := checkDims(d); err != nil {
		return err
	}

	if d.Groups < 1 {
		return accel.OutOfRange("groups", int64(d.Groups), 1, int64(d.Channels))
	}
	if d.Channels%d.Groups != 0 {
		return accel.Infeasible("groups", int64(d.Groups), fmt.Sprintf("does not divide %d input channels", d.Channels))
	}
	if d.Groups > 1 {
		if !caps.GroupConv {
			return accel.Unsupported("groups", int64(d.Groups), "core built without group convolution")
		}
		if d.KernelChannels != d.Kernels {
			return accel.Infeasible("kernels", int64(d.Kernels), "grouped convolution needs as many kernels as kernel channels")
		}
	}

	for _, pad := range []struct {
		name string
		v    int
	}{
		{"pad_left", d.PadLeft}, {"pad_right", d.PadRight},
		{"pad_top", d.PadTop}, {"pad_bottom", d.PadBottom},
	} {
		if err := checkOptional(pad.name, pad.v, maxPadding, caps.ExtPadding); err != nil {
			return err
		}
	}
	if err := checkOptional("inner_h", d.InnerH, maxPadding, caps.InnerPadding); err != nil {
		return err
	}
	if err := checkOptional("inner_v", d.InnerV, maxPadding, caps.InnerPadding); err != nil {
		return err
	}
	if err := checkOptional("dilation", d.Dilation, maxDilation, caps.Dilation); err != nil {
		return err
	}

	if d.Channels != d.KernelChannels {
		return accel.Infeasible("kernel_channels", int64(d.KernelChannels), fmt.Sprintf("input has %d channels", d.Channels))
	}

	if err := accel.CheckRange("feature_map_banks", d.FeatureMapBanks, 1, caps.BankCount-1); err != nil {
		return err
	}

	if d.Format.Fixed() {
		if bn.UseBN {
			if err := accel.CheckRange("bn_frac", bn.BNFrac, 0, maxFixedFrac); err != nil {
				return err
			}
		}
		if bn.UseActivation && bn.Activation == LeakyReLU {
			if err := accel.CheckRange("leaky_frac", bn.LeakyFrac, 0, maxFixedFrac); err != nil {
				return err
			}
		}
		if bn.UseActivation && bn.Activation == Sigmoid {
			if err := accel.CheckRange("sigmoid_frac", bn.SigmoidFrac, 0, maxFixedFrac); err != nil {
				return err
			}
		}
	}

	if err := accel.CheckRange("kernels", d.Kernels, 1, caps.MaxKernels); err != nil {
		return err
	}
	if _, ok := outputNames[d.OutputType]; !ok {
		return accel.OutOfRange("output_type", int64(d.OutputType), int64(Out1Byte), int64(Out4Byte))
	}
	if _, ok := kernelShapeCodes[d.KernelSize]; !ok {
		return accel.OutOfRange("kernel_size", int64(d.KernelSize), 1, 11)
	}
	if _, ok := rowWidthCodes[d.RowWidth]; !ok {
		return accel.OutOfRange("row_width", int64(d.RowWidth), 4, 4096)
	}
	if _, ok := surfaceCodes[d.WeightBlockSurfaces]; !ok {
		return accel.OutOfRange("weight_block_surfaces", int64(d.WeightBlockSurfaces), 1, 128)
	}
	return accel.CheckRange("max_weight_block_width", d.MaxWeightBlockWidth, 1, maxBlockWidth)
}

func checkStride(name string, v int, large bool) error {
	if err := accel.CheckRange(name, v, 1, maxStride); err != nil {
		return err
	}
	if v > 1 && !large {
		return accel.Unsupported(name, int64(v), "core built without strides above 1")
	}
	return nil
}

// checkOptional validates a field whose nonzero values need a capability.
func checkOptional(name string, v, hi int, supported bool) error {
	if err := accel.CheckRange(name, v, 0, hi); err != nil {
		return err
	}
	if v > 0 && !supported {
		return accel.Unsupported(name, int64(v), "core built without this feature")
	}
	return nil
}

func checkDims(d Descriptor) error {
	for _, dim := range []struct {
		name string
		v    int
	}{
		{"width", d.Width}, {"height", d.Height}, {"channels", d.Channels},
		{"kernel_channels", d.KernelChannels},
	} {
		if err := accel.CheckRange(dim.name, dim.v, 1, maxDimension); err != nil {
			return err
		}
	}
	return nil
}

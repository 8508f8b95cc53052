package conv

import (
	"math"

	"github.com/23skdu/longbow-axi/internal/accel"
)

type put struct {
	f accel.Field
	v int
}

// Encode packs a validated descriptor and its plan into a register image.
// Nothing is written to hardware.
func Encode(d Descriptor, p Plan) (*accel.Image, error) {
	shape, ok := kernelShapeCodes[d.KernelSize]
	if !ok {
		return nil, accel.OutOfRange("kernel_size", int64(d.KernelSize), 1, 11)
	}
	rowWidth, ok := rowWidthCodes[d.RowWidth]
	if !ok {
		return nil, accel.OutOfRange("row_width", int64(d.RowWidth), 4, 4096)
	}
	surfaces, ok := surfaceCodes[d.WeightBlockSurfaces]
	if !ok {
		return nil, accel.OutOfRange("weight_block_surfaces", int64(d.WeightBlockSurfaces), 1, 128)
	}
	grouped := d.Groups > 1

	im := accel.NewImage()
	im.SetWord(offFmap0, d.InputAddr)
	im.SetWord(offFmap1, d.OutputAddr)
	im.SetWord(offKrn0, d.WeightAddr)

	puts := []put{
		{fFormat, int(d.Format)},
		{fStrideV, d.StrideV},
		{fStrideH, d.StrideH},
		{fRounds, d.Rounds},

		{fGrouped, boolInt(grouped)},
		{fGroupDataBytes, p.GroupDataBytes},

		{fWidth, d.Width},
		{fChannels, d.Channels},
		{fInputSize, p.InputSize},
		{fPadLeft, d.PadLeft},
		{fPadTop, d.PadTop},
		{fInnerH, d.InnerH},
		{fInnerV, d.InnerV},
		{fExtInputBottom, p.ExtInputBottom},
		{fOutputType, int(d.OutputType)},
		{fOutWidth, p.OutWidth},
		{fOutHeight, p.OutHeight},

		{fKernelShape, int(shape)},
		{fDilation, d.Dilation},
		{fDilatedKernel, p.DilatedKernel},
		{fChannelGroupsPerSet, p.ChannelGroupsPerSet},
		{fKernels, d.Kernels},
		{fKernelSets, p.KernelSets},
		{fMaxWeightBlockWidth, d.MaxWeightBlockWidth},

		{fFeatureMapBanks, d.FeatureMapBanks},
		{fRowWidth, int(rowWidth)},
		{fFeatureMapRows, p.FeatureMapRows},
		{fSurfaces, int(surfaces)},
		{fWeightBlocks, p.WeightBlocks},
		{fMidResItems, p.MidResItems},
		{fMidResRows, p.MidResRows},
	}
	// group1 is only meaningful, and only written, for grouped convolution
	if grouped {
		puts = append(puts, put{fChannelsPerGroup, p.ChannelsPerGroup}, put{fGroups, d.Groups})
	}
	puts = append(puts, bnActPuts(d.BNAct)...)

	for _, pt := range puts {
		if err := putInt(im, pt.f, pt.v); err != nil {
			return nil, err
		}
	}
	if d.BNAct.UseActivation && d.BNAct.Activation == LeakyReLU {
		im.SetWord(offActCfg1, math.Float32bits(d.BNAct.LeakyAlpha))
	}
	return im, nil
}

func bnActPuts(bn BNAct) []put {
	act := ReLU
	if bn.UseActivation {
		act = bn.Activation
	}
	return []put{
		{fUseBN, boolInt(bn.UseBN)},
		{fBNFrac, bn.BNFrac},
		{fBNAIsOne, boolInt(bn.BNAIsOne)},
		{fBNBIsZero, boolInt(bn.BNBIsZero)},
		{fActivation, int(act)},
		{fLeakyFrac, bn.LeakyFrac},
		{fSigmoidFrac, bn.SigmoidFrac},
	}
}

func putInt(im *accel.Image, f accel.Field, v int) error {
	if v < 0 {
		lo, hi := f.Range()
		return accel.OutOfRange(f.Name, int64(v), int64(lo), int64(hi))
	}
	return im.Put(f, uint64(v))
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

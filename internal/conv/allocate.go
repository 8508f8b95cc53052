package conv

import (
	"fmt"
	"math/bits"

	"github.com/23skdu/longbow-axi/internal/accel"
)

const (
	maxWeightBlocks = 256
	maxMidResRows   = 16
)

// Allocate derives the output geometry and the on-chip buffer partitioning
// for a validated descriptor. All arithmetic is in natural units; the
// value-1 transforms happen in Encode.
func Allocate(caps Capabilities, d Descriptor) (Plan, error) {
	var p Plan
	if d.StrideH < 1 || d.StrideV < 1 || d.Groups < 1 || d.MaxWeightBlockWidth < 1 {
		return p, fmt.Errorf("allocate: %w", accel.ErrParameterOutOfRange)
	}

	p.ExtWidth = d.Width + d.PadLeft + d.PadRight + (d.Width-1)*d.InnerH
	p.ExtInputBottom = d.Height + d.PadTop + (d.Height-1)*d.InnerV - 1
	p.ExtHeight = p.ExtInputBottom + 1 + d.PadBottom
	p.DilatedKernel = d.KernelSize + (d.KernelSize-1)*d.Dilation

	var err error
	if p.OutWidth, err = OutputSize("out_width", p.ExtWidth, p.DilatedKernel, d.StrideH); err != nil {
		return p, err
	}
	if p.OutHeight, err = OutputSize("out_height", p.ExtHeight, p.DilatedKernel, d.StrideV); err != nil {
		return p, err
	}

	p.InputSize = d.Width * d.Height
	p.ChannelsPerGroup = d.Channels / d.Groups
	if d.Groups > 1 {
		p.ChannelsPerSet = p.ChannelsPerGroup
		p.KernelSets = d.Groups
	} else {
		p.ChannelsPerSet = d.KernelChannels
		p.KernelSets = ceilDiv(d.Kernels, d.MaxWeightBlockWidth)
	}
	p.ChannelGroupsPerSet = ceilDiv(p.ChannelsPerSet, caps.AtomicC)
	p.GroupDataBytes = p.InputSize * p.ChannelsPerGroup * d.Format.ElemBytes()

	p.FeatureMapRows = (d.FeatureMapBanks * caps.BankDepth) >> log2(d.RowWidth)
	if p.FeatureMapRows > caps.MaxFeatureMapRows {
		p.FeatureMapRows = caps.MaxFeatureMapRows
	}
	if p.FeatureMapRows == 0 {
		return p, accel.Infeasible("feature_map_rows", 0,
			fmt.Sprintf("%d banks cannot hold one row of %d surfaces", d.FeatureMapBanks, d.RowWidth))
	}

	area := d.KernelSize * d.KernelSize
	p.WeightBlocks = ((caps.BankCount - d.FeatureMapBanks) * caps.BankDepth / area) >> log2(d.WeightBlockSurfaces)
	if p.WeightBlocks > maxWeightBlocks {
		p.WeightBlocks = maxWeightBlocks
	}
	if p.WeightBlocks == 0 {
		return p, accel.Infeasible("weight_blocks", 0,
			fmt.Sprintf("%d banks left for weights cannot hold one block", caps.BankCount-d.FeatureMapBanks))
	}

	rate := caps.MidResClockRate
	if rate == 0 {
		rate = 1
	}
	p.MidResItems = d.Rounds * p.OutWidth
	p.MidResBanksPerRow = ceilDiv(p.MidResItems*rate, caps.MidResBankDepth)
	if p.MidResBanksPerRow > 0 {
		p.MidResRows = caps.MidResBankCount / p.MidResBanksPerRow
	}
	if p.MidResRows == 0 {
		return p, accel.Infeasible("mid_res_rows", 0,
			fmt.Sprintf("a row of %d items needs %d banks, core has %d", p.MidResItems, p.MidResBanksPerRow, caps.MidResBankCount))
	}
	if p.MidResRows > maxMidResRows {
		p.MidResRows = maxMidResRows
	}

	p.ExpectedTransfers = p.OutHeight * ceilDiv(d.Kernels, caps.AtomicK)
	return p, nil
}

// OutputSize returns (extent-footprint)/stride+1, failing unless the
// footprint fits and the stride divides the remainder exactly.
func OutputSize(name string, extent, footprint, stride int) (int, error) {
	if extent < footprint {
		return 0, accel.Infeasible(name, int64(extent), fmt.Sprintf("extent smaller than kernel footprint %d", footprint))
	}
	if (extent-footprint)%stride != 0 {
		return 0, accel.Infeasible(name, int64(extent),
			fmt.Sprintf("stride %d does not divide %d", stride, extent-footprint))
	}
	return (extent-footprint)/stride + 1, nil
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

func log2(v int) int {
	if v <= 1 {
		return 0
	}
	return bits.Len(uint(v)) - 1
}

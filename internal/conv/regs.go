package conv

import "github.com/23skdu/longbow-axi/internal/accel"

// Register map, byte offsets from the accelerator base.
const (
	regionProp   = 0x000
	regionCtrl   = 0x040
	regionStatus = 0x060
	regionCal    = 0x090
	regionGroup  = 0x0A0
	regionFmap   = 0x0C0
	regionKernel = 0x100
	regionBuffer = 0x140
	regionBNAct  = 0x180

	// BNMemBase holds (A, B) float32 pairs, one per output channel.
	BNMemBase = 0x10000
	// SigmoidLUTBase holds packed 16-bit sigmoid samples.
	SigmoidLUTBase = 0x18000
	BNMemSize      = SigmoidLUTBase - BNMemBase

	offInfo0 = regionProp + 0x08
	offInfo1 = regionProp + 0x0C
	offInfo2 = regionProp + 0x10
	offInfo3 = regionProp + 0x14
	offInfo4 = regionProp + 0x18
	offInfo5 = regionProp + 0x1C

	offCtrl0 = regionCtrl

	offStatus0 = regionStatus
	offCal     = regionCal
	offGrp0    = regionGroup
	offGrp1    = regionGroup + 0x04
	offFmap0   = regionFmap
	offFmap1   = regionFmap + 0x04
	offFmap2   = regionFmap + 0x08
	offFmap3   = regionFmap + 0x0C
	offFmap4   = regionFmap + 0x10
	offFmap5   = regionFmap + 0x14
	offKrn0    = regionKernel
	offKrn1    = regionKernel + 0x04
	offKrn2    = regionKernel + 0x08
	offKrn3    = regionKernel + 0x0C
	offBuf0    = regionBuffer
	offBuf1    = regionBuffer + 0x04
	offBuf2    = regionBuffer + 0x08
	offBuf3    = regionBuffer + 0x0C
	offBNCfg   = regionBNAct
	offActCfg0 = regionBNAct + 0x04
	offActCfg1 = regionBNAct + 0x08
)

// ctrl0 bits.
const (
	ctrlAccel     = 1 << 0
	ctrlSubsystem = 1 << 1
	ctrlPerf      = 1 << 2
	ctrlBNAct     = 1 << 3
	ctrlStart     = 0x700

	// every pipeline stage reports idle in status0[2:0]
	idleMask = 0x7
)

// Status words 1..8: DMA completion counters then the performance monitor.
const (
	statusMM2S0 = 1 + iota
	statusMM2S1
	statusS2MM
	statusCycles
	statusMM2S0Bytes
	statusMM2S1Bytes
	statusS2MMBytes
	statusSurfaces
)

// Property fields. Every conv property is stored as value-1.
var (
	propAtomicK       = reg("atomic_k", offInfo0, 0, 8, accel.MinusOne)
	propAtomicC       = reg("atomic_c", offInfo0, 8, 8, accel.MinusOne)
	propMaxRounds     = reg("max_rounds", offInfo0, 16, 8, accel.MinusOne)
	propMM2SWidth     = reg("mm2s_width", offInfo1, 0, 8, accel.MinusOne)
	propS2MMWidth     = reg("s2mm_width", offInfo1, 8, 8, accel.MinusOne)
	propBankCount     = reg("bank_count", offInfo1, 16, 16, accel.MinusOne)
	propBankDepth     = reg("bank_depth", offInfo2, 0, 16, accel.MinusOne)
	propMaxFmRows     = reg("max_fm_rows", offInfo2, 16, 16, accel.MinusOne)
	propMidBankCount  = reg("mid_bank_count", offInfo3, 0, 8, accel.MinusOne)
	propMidBankDepth  = reg("mid_bank_depth", offInfo3, 16, 16, accel.MinusOne)
	propBNActParallel = reg("bn_act_parallel", offInfo4, 0, 8, accel.MinusOne)
	propMaxKernels    = reg("max_kernels", offInfo4, 16, 16, accel.MinusOne)
	propMidClockRate  = reg("mid_clock_rate", offInfo5, 0, 4, accel.Direct)
)

// Configuration fields.
var (
	fFormat  = reg("format", offCal, 0, 3, accel.Direct)
	fStrideV = reg("stride_v", offCal, 8, 3, accel.MinusOne)
	fStrideH = reg("stride_h", offCal, 11, 3, accel.MinusOne)
	fRounds  = reg("rounds", offCal, 16, 4, accel.MinusOne)

	fGrouped          = reg("grouped", offGrp0, 0, 1, accel.Direct)
	fGroupDataBytes   = reg("group_data_bytes", offGrp0, 1, 31, accel.Direct)
	fChannelsPerGroup = reg("channels_per_group", offGrp1, 0, 16, accel.MinusOne)
	fGroups           = reg("groups", offGrp1, 16, 16, accel.MinusOne)

	fWidth          = reg("width", offFmap2, 0, 16, accel.MinusOne)
	fChannels       = reg("channels", offFmap2, 16, 16, accel.MinusOne)
	fInputSize      = reg("input_size", offFmap3, 0, 32, accel.MinusOne)
	fPadLeft        = reg("pad_left", offFmap4, 0, 3, accel.Direct)
	fPadTop         = reg("pad_top", offFmap4, 3, 3, accel.Direct)
	fInnerH         = reg("inner_h", offFmap4, 6, 3, accel.Direct)
	fInnerV         = reg("inner_v", offFmap4, 9, 3, accel.Direct)
	fExtInputBottom = reg("ext_input_bottom", offFmap4, 16, 16, accel.Direct)
	fOutputType     = reg("output_type", offFmap5, 0, 2, accel.Direct)
	fOutWidth       = reg("out_width", offFmap5, 2, 15, accel.MinusOne)
	fOutHeight      = reg("out_height", offFmap5, 17, 15, accel.MinusOne)

	fKernelShape         = reg("kernel_shape", offKrn1, 0, 3, accel.Direct)
	fDilation            = reg("dilation", offKrn1, 4, 4, accel.Direct)
	fDilatedKernel       = reg("dilated_kernel", offKrn1, 8, 8, accel.MinusOne)
	fChannelGroupsPerSet = reg("channel_groups_per_set", offKrn1, 16, 16, accel.MinusOne)
	fKernels             = reg("kernels", offKrn2, 0, 16, accel.MinusOne)
	fKernelSets          = reg("kernel_sets", offKrn2, 16, 16, accel.MinusOne)
	fMaxWeightBlockWidth = reg("max_weight_block_width", offKrn3, 0, 8, accel.Direct)

	fFeatureMapBanks = reg("feature_map_banks", offBuf0, 0, 16, accel.Direct)
	fRowWidth        = reg("row_width", offBuf1, 0, 4, accel.Direct)
	fFeatureMapRows  = reg("feature_map_rows", offBuf1, 16, 16, accel.MinusOne)
	fSurfaces        = reg("weight_block_surfaces", offBuf2, 0, 3, accel.Direct)
	fWeightBlocks    = reg("weight_blocks", offBuf2, 8, 8, accel.MinusOne)
	fMidResItems     = reg("mid_res_items", offBuf3, 0, 16, accel.MinusOne)
	fMidResRows      = reg("mid_res_rows", offBuf3, 16, 4, accel.MinusOne)

	fUseBN       = reg("use_bn", offBNCfg, 0, 1, accel.Direct)
	fBNFrac      = reg("bn_frac", offBNCfg, 8, 8, accel.Direct)
	fBNAIsOne    = reg("bn_a_is_one", offBNCfg, 16, 1, accel.Direct)
	fBNBIsZero   = reg("bn_b_is_zero", offBNCfg, 17, 1, accel.Direct)
	fActivation  = reg("activation", offActCfg0, 0, 3, accel.Direct)
	fLeakyFrac   = reg("leaky_frac", offActCfg0, 8, 8, accel.Direct)
	fSigmoidFrac = reg("sigmoid_frac", offActCfg0, 16, 8, accel.Direct)
)

// RegisterLayout lists every packed configuration field, for dumps.
var RegisterLayout = accel.Layout{
	fFormat, fStrideV, fStrideH, fRounds,
	fGrouped, fGroupDataBytes, fChannelsPerGroup, fGroups,
	fWidth, fChannels, fInputSize, fPadLeft, fPadTop, fInnerH, fInnerV, fExtInputBottom,
	fOutputType, fOutWidth, fOutHeight,
	fKernelShape, fDilation, fDilatedKernel, fChannelGroupsPerSet, fKernels, fKernelSets, fMaxWeightBlockWidth,
	fFeatureMapBanks, fRowWidth, fFeatureMapRows, fSurfaces, fWeightBlocks, fMidResItems, fMidResRows,
	fUseBN, fBNFrac, fBNAIsOne, fBNBIsZero, fActivation, fLeakyFrac, fSigmoidFrac,
}

func reg(name string, off uint32, shift, width uint, enc accel.Encoding) accel.Field {
	return accel.Field{Name: name, Offset: off, Shift: shift, Width: width, Encoding: enc}
}

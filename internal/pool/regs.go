package pool

import "github.com/23skdu/longbow-axi/internal/accel"

const (
	regionProp   = 0x000
	regionCtrl   = 0x040
	regionStatus = 0x060
	regionCal    = 0x080
	regionFmap   = 0x0C0
	regionBuffer = 0x100

	offInfo0 = regionProp + 0x08
	offInfo1 = regionProp + 0x0C
	offInfo2 = regionProp + 0x10
	offInfo3 = regionProp + 0x14

	offCtrl0   = regionCtrl
	offStatus0 = regionStatus

	offCal0 = regionCal
	offCal1 = regionCal + 0x04
	offCal2 = regionCal + 0x08
	offCal3 = regionCal + 0x0C
	offCal4 = regionCal + 0x10
	offCal5 = regionCal + 0x14

	offFmap0 = regionFmap
	offFmap1 = regionFmap + 0x04
	offFmap2 = regionFmap + 0x08
	offFmap3 = regionFmap + 0x0C
	offFmap4 = regionFmap + 0x10
	offFmap5 = regionFmap + 0x14
	offFmap6 = regionFmap + 0x18

	offBuf0 = regionBuffer
	offBuf1 = regionBuffer + 0x04
)

// ctrl0 bits. The start pulse occupies the low two bits.
const (
	ctrlStart     = 0x3
	ctrlSubsystem = 1 << 8
	ctrlPostMAC   = 1 << 9
	ctrlPerf      = 1 << 10

	idleMask = 0x3
)

const (
	statusMM2S = 1 + iota
	statusS2MM
	statusCycles
	statusMM2SBytes
	statusS2MMBytes
	statusUpdateCycles
)

// extPaddingProbe sets one bit in each padding byte of fmap_cfg4.
const extPaddingProbe = 0x01010000

// Property fields. Pool properties are stored as is.
var (
	propAtomicC         = reg("atomic_c", offInfo0, 0, 8, accel.Direct)
	propPostMACParallel = reg("post_mac_parallel", offInfo0, 8, 8, accel.Direct)
	propMaxFmRows       = reg("max_fm_rows", offInfo0, 16, 16, accel.Direct)
	propMM2SWidth       = reg("mm2s_width", offInfo1, 0, 16, accel.Direct)
	propS2MMWidth       = reg("s2mm_width", offInfo1, 16, 16, accel.Direct)
	propBankCount       = reg("bank_count", offInfo2, 0, 16, accel.Direct)
	propBankDepth       = reg("bank_depth", offInfo2, 16, 16, accel.Direct)
	propMidBankCount    = reg("mid_bank_count", offInfo3, 0, 16, accel.Direct)
	propMidBankDepth    = reg("mid_bank_depth", offInfo3, 16, 16, accel.Direct)
)

var (
	fMode      = reg("mode", offCal0, 0, 4, accel.Direct)
	fFormat    = reg("format", offCal0, 4, 4, accel.Direct)
	fStrideH   = reg("stride_h", offCal0, 8, 3, accel.MinusOne)
	fStrideV   = reg("stride_v", offCal0, 16, 3, accel.MinusOne)
	fWindowW   = reg("window_w", offCal1, 0, 8, accel.MinusOne)
	fWindowH   = reg("window_h", offCal1, 8, 8, accel.MinusOne)
	fUpsampleH = reg("upsample_h", offCal1, 0, 8, accel.MinusOne)
	fUpsampleV = reg("upsample_v", offCal1, 8, 8, accel.MinusOne)

	fConstPadding = reg("const_padding", offCal2, 0, 1, accel.Direct)
	fConstValue   = reg("const_value", offCal2, 16, 16, accel.Direct)

	fMACAIsOne  = reg("post_mac_a_is_one", offCal3, 0, 1, accel.Direct)
	fMACBIsZero = reg("post_mac_b_is_zero", offCal3, 1, 1, accel.Direct)
	fMACFrac    = reg("post_mac_frac", offCal3, 8, 8, accel.Direct)

	fWidth      = reg("width", offFmap2, 0, 16, accel.MinusOne)
	fHeight     = reg("height", offFmap2, 16, 16, accel.MinusOne)
	fInputSize  = reg("input_size", offFmap3, 0, 32, accel.MinusOne)
	fChannels   = reg("channels", offFmap4, 0, 16, accel.MinusOne)
	fPadLeft    = reg("pad_left", offFmap4, 16, 8, accel.Direct)
	fPadTop     = reg("pad_top", offFmap4, 24, 8, accel.Direct)
	fExtWidth   = reg("ext_width", offFmap5, 0, 16, accel.MinusOne)
	fExtHeight  = reg("ext_height", offFmap5, 16, 16, accel.MinusOne)
	fOutWidth   = reg("out_width", offFmap6, 0, 15, accel.MinusOne)
	fOutHeight  = reg("out_height", offFmap6, 15, 15, accel.MinusOne)
	fOutputType = reg("output_type", offFmap6, 30, 2, accel.Direct)

	fRowWidth       = reg("row_width", offBuf0, 0, 4, accel.Direct)
	fFeatureMapRows = reg("feature_map_rows", offBuf0, 16, 16, accel.MinusOne)
	fMidResRows     = reg("mid_res_rows", offBuf1, 0, 16, accel.MinusOne)
)

// RegisterLayout lists every packed configuration field, for dumps. The
// window and upsample fields share cal_cfg1; the mode decides which applies.
var RegisterLayout = accel.Layout{
	fMode, fFormat, fStrideH, fStrideV, fWindowW, fWindowH,
	fConstPadding, fConstValue, fMACAIsOne, fMACBIsZero, fMACFrac,
	fWidth, fHeight, fInputSize, fChannels, fPadLeft, fPadTop,
	fExtWidth, fExtHeight, fOutWidth, fOutHeight, fOutputType,
	fRowWidth, fFeatureMapRows, fMidResRows,
}

func reg(name string, off uint32, shift, width uint, enc accel.Encoding) accel.Field {
	return accel.Field{Name: name, Offset: off, Shift: shift, Width: width, Encoding: enc}
}

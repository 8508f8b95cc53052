package pool

import (
	"fmt"
	"math/bits"

	"github.com/23skdu/longbow-axi/internal/accel"
)

// Allocate derives the output geometry and buffer sizing for a validated
// descriptor. The whole physical buffer holds the feature map.
func Allocate(caps Capabilities, d Descriptor) (Plan, error) {
	var p Plan
	p.ExtWidth = d.Width + d.PadLeft + d.PadRight
	p.ExtHeight = d.Height + d.PadTop + d.PadBottom
	p.InputSize = d.Width * d.Height

	if d.Mode.Pooling() {
		if d.StrideH < 1 || d.StrideV < 1 {
			return p, fmt.Errorf("allocate: %w", accel.ErrParameterOutOfRange)
		}
		var err error
		if p.OutWidth, err = windowOutput("out_width", p.ExtWidth, d.WindowW, d.StrideH); err != nil {
			return p, err
		}
		if p.OutHeight, err = windowOutput("out_height", p.ExtHeight, d.WindowH, d.StrideV); err != nil {
			return p, err
		}
	} else {
		p.OutWidth = p.ExtWidth * d.UpsampleH
		p.OutHeight = p.ExtHeight * d.UpsampleV
	}

	p.FeatureMapRows = (caps.BankCount * caps.BankDepth) >> log2(d.RowWidth)
	if p.FeatureMapRows > caps.MaxFeatureMapRows {
		p.FeatureMapRows = caps.MaxFeatureMapRows
	}
	if p.FeatureMapRows == 0 {
		return p, accel.Infeasible("feature_map_rows", 0,
			fmt.Sprintf("buffer cannot hold one row of %d surfaces", d.RowWidth))
	}

	p.MidResBanksPerRow = ceilDiv(p.OutWidth, caps.MidResBankDepth)
	if p.MidResBanksPerRow > 0 {
		p.MidResRows = caps.MidResBankCount / p.MidResBanksPerRow
	}
	if p.MidResRows == 0 {
		return p, accel.Infeasible("mid_res_rows", 0,
			fmt.Sprintf("an output row of %d needs %d banks, core has %d", p.OutWidth, p.MidResBanksPerRow, caps.MidResBankCount))
	}

	p.ExpectedTransfers = p.OutHeight * ceilDiv(d.Channels, caps.AtomicC)
	return p, nil
}

func windowOutput(name string, extent, window, stride int) (int, error) {
	if extent < window {
		return 0, accel.Infeasible(name, int64(extent), fmt.Sprintf("extent smaller than window %d", window))
	}
	if (extent-window)%stride != 0 {
		return 0, accel.Infeasible(name, int64(extent),
			fmt.Sprintf("stride %d does not divide %d", stride, extent-window))
	}
	return (extent-window)/stride + 1, nil
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

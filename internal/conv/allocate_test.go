package conv

import (
	"errors"
	"testing"

	"github.com/23skdu/longbow-axi/internal/accel"
	"github.com/23skdu/longbow-axi/internal/sim"
)

// discovered returns the capabilities of a freshly built sim core.
func discovered(t *testing.T, p sim.ConvParams) Capabilities {
	t.Helper()
	caps, err := Discover(sim.NewConv(p))
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	return caps
}

// referenceLayer is the 320x320x16 FP16 layer with 32 3x3 kernels used by the
// board bring-up program.
func referenceLayer() Descriptor {
	return Descriptor{
		Format:              FP16,
		StrideV:             1,
		StrideH:             1,
		Rounds:              2,
		Width:               320,
		Height:              320,
		Channels:            16,
		PadLeft:             1,
		PadRight:            1,
		PadTop:              1,
		PadBottom:           1,
		OutputType:          Out4Byte,
		KernelSize:          3,
		KernelChannels:      16,
		Kernels:             32,
		Groups:              1,
		MaxWeightBlockWidth: 16,
		FeatureMapBanks:     14,
		RowWidth:            512,
		WeightBlockSurfaces: 16,
		BNAct: BNAct{
			UseBN:         true,
			BNAIsOne:      true,
			UseActivation: true,
			Activation:    LeakyReLU,
			LeakyAlpha:    0.01,
		},
		InputAddr:  0x10000000,
		OutputAddr: 0x20000000,
		WeightAddr: 0x30000000,
	}
}

func TestAllocateReferenceLayer(t *testing.T) {
	caps := discovered(t, sim.DefaultConvParams())
	d := referenceLayer()
	if err := Validate(caps, d); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	p, err := Allocate(caps, d)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}

	checks := []struct {
		name      string
		got, want int
	}{
		{"ExtWidth", p.ExtWidth, 322},
		{"ExtHeight", p.ExtHeight, 322},
		{"ExtInputBottom", p.ExtInputBottom, 320},
		{"DilatedKernel", p.DilatedKernel, 3},
		{"OutWidth", p.OutWidth, 320},
		{"OutHeight", p.OutHeight, 320},
		{"InputSize", p.InputSize, 320 * 320},
		{"ChannelsPerSet", p.ChannelsPerSet, 16},
		{"ChannelGroupsPerSet", p.ChannelGroupsPerSet, 2},
		{"KernelSets", p.KernelSets, 2},
		{"GroupDataBytes", p.GroupDataBytes, 320 * 320 * 16 * 2},
		{"FeatureMapRows", p.FeatureMapRows, 14},
		{"WeightBlocks", p.WeightBlocks, 7},
		{"MidResItems", p.MidResItems, 640},
		{"MidResBanksPerRow", p.MidResBanksPerRow, 2},
		{"MidResRows", p.MidResRows, 2},
		{"ExpectedTransfers", p.ExpectedTransfers, 1280},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s: expected %d, got %d", c.name, c.want, c.got)
		}
	}
}

func TestAllocateScenarios(t *testing.T) {
	caps := discovered(t, sim.DefaultConvParams())

	t.Run("padded 320x320 keeps its size", func(t *testing.T) {
		d := referenceLayer()
		d.Channels, d.KernelChannels, d.Kernels = 8, 8, 8
		p, err := Allocate(caps, d)
		if err != nil {
			t.Fatalf("Allocate failed: %v", err)
		}
		if p.ExtWidth != 322 || p.ExtHeight != 322 {
			t.Errorf("expected extended 322x322, got %dx%d", p.ExtWidth, p.ExtHeight)
		}
		if p.DilatedKernel != 3 {
			t.Errorf("expected footprint 3, got %d", p.DilatedKernel)
		}
		if p.OutWidth != 320 || p.OutHeight != 320 {
			t.Errorf("expected output 320x320, got %dx%d", p.OutWidth, p.OutHeight)
		}
	})

	t.Run("640x640 clamps feature map rows", func(t *testing.T) {
		d := referenceLayer()
		d.Width, d.Height = 640, 640
		d.Channels, d.KernelChannels, d.Kernels = 3, 3, 16
		d.Rounds = 1
		d.RowWidth = 4
		d.WeightBlockSurfaces = 1
		if err := Validate(caps, d); err != nil {
			t.Fatalf("Validate failed: %v", err)
		}
		p, err := Allocate(caps, d)
		if err != nil {
			t.Fatalf("Allocate failed: %v", err)
		}
		if p.OutWidth != 640 || p.OutHeight != 640 {
			t.Errorf("expected output 640x640, got %dx%d", p.OutWidth, p.OutHeight)
		}
		if raw := d.FeatureMapBanks * caps.BankDepth / d.RowWidth; raw <= caps.MaxFeatureMapRows {
			t.Fatalf("test layer does not exceed the row limit (%d)", raw)
		}
		if p.FeatureMapRows != caps.MaxFeatureMapRows {
			t.Errorf("expected rows clamped to %d, got %d", caps.MaxFeatureMapRows, p.FeatureMapRows)
		}
		if p.ExpectedTransfers != 640*2 {
			t.Errorf("expected 1280 transfers, got %d", p.ExpectedTransfers)
		}
	})

	t.Run("too many rounds for the mid buffer", func(t *testing.T) {
		d := referenceLayer()
		d.Width = 1100
		_, err := Allocate(caps, d)
		if !errors.Is(err, accel.ErrShapeInfeasible) {
			t.Fatalf("expected ErrShapeInfeasible, got %v", err)
		}
		var ce *accel.ConfigError
		if !errors.As(err, &ce) || ce.Field != "mid_res_rows" {
			t.Errorf("expected mid_res_rows to be blamed, got %v", err)
		}
	})
}

// refOutputSize slides a window of footprint over extent and counts the
// placements; exact reports whether the last placement ends on the edge.
func refOutputSize(extent, footprint, stride int) (n int, exact bool) {
	pos := 0
	for ; pos+footprint <= extent; pos += stride {
		n++
	}
	return n, n > 0 && pos-stride+footprint == extent
}

func TestOutputSizeMatchesReference(t *testing.T) {
	for stride := 1; stride <= maxStride; stride++ {
		for footprint := 1; footprint <= 11; footprint++ {
			for extent := 1; extent <= 64; extent++ {
				want, exact := refOutputSize(extent, footprint, stride)
				got, err := OutputSize("out", extent, footprint, stride)
				if !exact {
					if !errors.Is(err, accel.ErrShapeInfeasible) {
						t.Fatalf("extent %d footprint %d stride %d: expected ErrShapeInfeasible, got %d, %v",
							extent, footprint, stride, got, err)
					}
					continue
				}
				if err != nil || got != want {
					t.Fatalf("extent %d footprint %d stride %d: expected %d, got %d, %v",
						extent, footprint, stride, want, got, err)
				}
			}
		}
	}
}

func TestAllocateDilationAndInnerPadding(t *testing.T) {
	caps := discovered(t, sim.FullConvParams())
	d := referenceLayer()
	d.Width, d.Height = 16, 16
	d.PadLeft, d.PadRight, d.PadTop, d.PadBottom = 0, 0, 0, 0
	d.InnerH, d.InnerV = 1, 1
	d.Dilation = 1
	p, err := Allocate(caps, d)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	// 16 samples with one zero between each: 31; 3x3 dilated by 1: 5
	if p.ExtWidth != 31 || p.ExtHeight != 31 {
		t.Errorf("expected extended 31x31, got %dx%d", p.ExtWidth, p.ExtHeight)
	}
	if p.ExtInputBottom != 30 {
		t.Errorf("expected input bottom 30, got %d", p.ExtInputBottom)
	}
	if p.DilatedKernel != 5 {
		t.Errorf("expected footprint 5, got %d", p.DilatedKernel)
	}
	if p.OutWidth != 27 {
		t.Errorf("expected output width 27, got %d", p.OutWidth)
	}
}

func TestAllocateGrouped(t *testing.T) {
	caps := discovered(t, sim.FullConvParams())
	d := referenceLayer()
	d.Groups = 16
	d.Kernels = 16
	if err := Validate(caps, d); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	p, err := Allocate(caps, d)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if p.ChannelsPerGroup != 1 || p.ChannelsPerSet != 1 {
		t.Errorf("expected one channel per group and set, got %d and %d", p.ChannelsPerGroup, p.ChannelsPerSet)
	}
	if p.KernelSets != 16 {
		t.Errorf("expected 16 kernel sets, got %d", p.KernelSets)
	}
	if p.ChannelGroupsPerSet != 1 {
		t.Errorf("expected 1 channel group per set, got %d", p.ChannelGroupsPerSet)
	}
	if p.GroupDataBytes != 320*320*2 {
		t.Errorf("expected %d group bytes, got %d", 320*320*2, p.GroupDataBytes)
	}
}

func TestAllocateInfeasible(t *testing.T) {
	caps := discovered(t, sim.DefaultConvParams())

	tests := []struct {
		name   string
		mutate func(*Descriptor)
		field  string
	}{
		{"kernel wider than input", func(d *Descriptor) {
			d.Width, d.PadLeft, d.PadRight = 2, 0, 0
		}, "out_width"},
		{"stride does not divide", func(d *Descriptor) {
			d.Width, d.PadLeft, d.PadRight, d.StrideH = 10, 0, 0, 2
		}, "out_width"},
		{"row wider than the feature map banks", func(d *Descriptor) {
			d.FeatureMapBanks, d.RowWidth = 1, 1024
		}, "feature_map_rows"},
		{"no room for weights", func(d *Descriptor) {
			d.FeatureMapBanks, d.KernelSize, d.WeightBlockSurfaces = 15, 11, 128
		}, "weight_blocks"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := referenceLayer()
			tt.mutate(&d)
			_, err := Allocate(caps, d)
			if !errors.Is(err, accel.ErrShapeInfeasible) {
				t.Fatalf("expected ErrShapeInfeasible, got %v", err)
			}
			var ce *accel.ConfigError
			if !errors.As(err, &ce) || ce.Field != tt.field {
				t.Errorf("expected field %s, got %v", tt.field, err)
			}
		})
	}
}

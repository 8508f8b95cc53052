package sweep

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/23skdu/longbow-axi/internal/conv"
	"github.com/23skdu/longbow-axi/internal/pool"
	"github.com/23skdu/longbow-axi/internal/sim"
)

func convLayer() conv.Descriptor {
	return conv.Descriptor{
		Format: conv.FP16, StrideV: 1, StrideH: 1, Rounds: 2,
		Width: 320, Height: 320, Channels: 16,
		PadLeft: 1, PadRight: 1, PadTop: 1, PadBottom: 1,
		OutputType: conv.Out4Byte, KernelSize: 3, KernelChannels: 16, Kernels: 32,
		Groups: 1, MaxWeightBlockWidth: 16, FeatureMapBanks: 14,
		RowWidth: 512, WeightBlockSurfaces: 16,
	}
}

func poolLayer() pool.Descriptor {
	return pool.Descriptor{
		Mode: pool.Max, Format: pool.FP16,
		StrideH: 2, StrideV: 2, WindowW: 2, WindowH: 2,
		Width: 640, Height: 640, Channels: 16,
		OutputType: pool.Out4Byte, RowWidth: 1024,
	}
}

func TestGridSize(t *testing.T) {
	tests := []struct {
		name string
		g    Grid
		want int
	}{
		{"empty grid is the base point", Grid{}, 1},
		{"one axis", Grid{Widths: []int{1, 2, 3}}, 3},
		{"product of axes", Grid{Widths: []int{1, 2}, Strides: []int{1, 2, 4}, RowWidths: []int{64, 128}}, 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.g.Size(); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
			if got := len(tt.g.points(shape{})); got != tt.want {
				t.Errorf("expected %d points, got %d", tt.want, got)
			}
		})
	}
}

func TestConvSweep(t *testing.T) {
	caps, err := conv.Discover(sim.NewConv(sim.DefaultConvParams()))
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	points := Conv(caps, convLayer(), Grid{Widths: []int{320, 1100}, Strides: []int{1, 2}})
	if len(points) != 4 {
		t.Fatalf("expected 4 points, got %d", len(points))
	}

	want := []struct {
		width, stride int
		feasible      bool
		kind, field   string
	}{
		{320, 1, true, "", ""},
		{320, 2, false, "capability_unsupported", "stride_v"},
		{1100, 1, false, "shape_infeasible", "mid_res_rows"},
		{1100, 2, false, "capability_unsupported", "stride_v"},
	}
	for i, w := range want {
		p := points[i]
		if p.Family != conv.Family || p.Width != w.width || p.Stride != w.stride {
			t.Errorf("point %d: expected %s width %d stride %d, got %+v", i, conv.Family, w.width, w.stride, p)
		}
		if p.Feasible != w.feasible || p.Kind != w.kind || p.Field != w.field {
			t.Errorf("point %d: expected feasible=%v kind=%q field=%q, got %v %q %q",
				i, w.feasible, w.kind, w.field, p.Feasible, p.Kind, p.Field)
		}
	}
	if p := points[0]; p.OutWidth != 320 || p.ExpectedTransfers != 1280 || p.FeatureMapRows != 14 {
		t.Errorf("unexpected plan for the base layer: %+v", p)
	}
}

func TestPoolSweepIgnoresConvAxes(t *testing.T) {
	caps, err := pool.Discover(sim.NewPool(sim.DefaultPoolParams()))
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	g := Grid{Widths: []int{640, 641}, Kernels: []int{8, 16}, Rounds: []int{1, 2}}
	points := Pool(caps, poolLayer(), g)
	if len(points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(points))
	}
	if !points[0].Feasible || points[0].OutWidth != 320 || points[0].ExpectedTransfers != 640 {
		t.Errorf("expected 640 wide to pool to 320 with 640 transfers, got %+v", points[0])
	}
	if points[1].Feasible || points[1].Kind != "shape_infeasible" || points[1].Field != "out_width" {
		t.Errorf("expected 641 wide to be rejected on out_width, got %+v", points[1])
	}
}

func TestRecordNullsFollowFeasibility(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	points := []Point{
		{Family: "pool", Width: 640, Feasible: true, OutWidth: 320, ExpectedTransfers: 640},
		{Family: "pool", Width: 641, Kind: "shape_infeasible", Field: "out_width"},
	}
	rec := Record(mem, points)
	defer rec.Release()

	if rec.NumRows() != 2 || rec.NumCols() != int64(len(Schema.Fields())) {
		t.Fatalf("expected 2x%d record, got %dx%d", len(Schema.Fields()), rec.NumRows(), rec.NumCols())
	}
	kind := rec.Column(9).(*array.String)
	if !kind.IsNull(0) || kind.Value(1) != "shape_infeasible" {
		t.Errorf("unexpected kind column: %v", kind)
	}
	out := rec.Column(11).(*array.Int32)
	if out.Value(0) != 320 || !out.IsNull(1) {
		t.Errorf("unexpected out_width column: %v", out)
	}
}

func TestWriteFileRoundTrip(t *testing.T) {
	caps, err := pool.Discover(sim.NewPool(sim.DefaultPoolParams()))
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	points := Pool(caps, poolLayer(), Grid{Widths: []int{320, 640, 641}})

	var buf bytes.Buffer
	if err := Write(&buf, points); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	path := filepath.Join(t.TempDir(), "sweep.arrow")
	if err := WriteFile(path, points); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)
	r, err := ipc.NewFileReader(bytes.NewReader(buf.Bytes()), ipc.WithAllocator(mem))
	if err != nil {
		t.Fatalf("NewFileReader failed: %v", err)
	}
	defer r.Close()

	if !r.Schema().Equal(Schema) {
		t.Fatalf("schema mismatch: %v", r.Schema())
	}
	if r.NumRecords() != 1 {
		t.Fatalf("expected 1 record batch, got %d", r.NumRecords())
	}
	rec, err := r.Record(0)
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if rec.NumRows() != 3 {
		t.Fatalf("expected 3 rows, got %d", rec.NumRows())
	}
	widths := rec.Column(1).(*array.Int32)
	feasible := rec.Column(8).(*array.Boolean)
	for i, w := range []int32{320, 640, 641} {
		if widths.Value(i) != w {
			t.Errorf("row %d: expected width %d, got %d", i, w, widths.Value(i))
		}
		if feasible.Value(i) != points[i].Feasible {
			t.Errorf("row %d: expected feasible %v", i, points[i].Feasible)
		}
	}
}

package accel

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/23skdu/longbow-axi/internal/mmio"
)

// packName builds a type code the way the hardware stores it.
func packName(s string, id uint32) uint32 {
	var w uint32
	for i := 0; i < nameChars; i++ {
		c := uint32(nameTerm)
		if i < len(s) {
			c = uint32(s[i] - 'a')
		}
		w |= c << (uint(i) * nameCharBits)
	}
	return w | id<<30
}

func TestDecodeIdentity(t *testing.T) {
	tests := []struct {
		name string
		code uint32
		want string
	}{
		{"conv", 0b110101101010101011010111000010, "conv"},
		{"pool", 0b110101101001011011100111001111, "pool"},
		{"eltwise", 0b110101101010110011000101100100, "elmw"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := DecodeIdentity(0x00000321, tt.code|2<<30)
			if id.Type != tt.want {
				t.Errorf("expected type %q, got %q", tt.want, id.Type)
			}
			if id.ID != 2 {
				t.Errorf("expected id 2, got %d", id.ID)
			}
			if id.Version != "12300000" {
				t.Errorf("expected version 12300000, got %s", id.Version)
			}
		})
	}
}

func TestPackNameMatchesTypeCodes(t *testing.T) {
	if got := packName("conv", 0); got != 0b110101101010101011010111000010 {
		t.Errorf("packName(conv) = %b", got)
	}
}

func TestCheckIdentityMismatch(t *testing.T) {
	a := mmio.NewArena(16)
	a.Poke(OffsetTypeCode, packName("pool", 0))

	_, err := CheckIdentity(a, "conv", packName("conv", 0))
	if !errors.Is(err, ErrDeviceIdentityMismatch) {
		t.Fatalf("expected identity mismatch, got %v", err)
	}
	var ie *IdentityError
	if !errors.As(err, &ie) || ie.Family != "conv" {
		t.Errorf("expected *IdentityError for conv, got %T", err)
	}
	if n := len(a.Writes()); n != 0 {
		t.Errorf("identity check wrote %d registers", n)
	}
}

func TestFieldRoundTrip(t *testing.T) {
	fields := []Field{
		{Name: "stride", Shift: 8, Width: 3, Encoding: MinusOne},
		{Name: "rounds", Shift: 16, Width: 4, Encoding: MinusOne},
		{Name: "pad", Shift: 3, Width: 3, Encoding: Direct},
		{Name: "dilation", Shift: 4, Width: 4, Encoding: Direct},
		{Name: "out_w", Shift: 2, Width: 15, Encoding: MinusOne},
		{Name: "out_h", Shift: 17, Width: 15, Encoding: MinusOne},
		{Name: "full", Shift: 0, Width: 32, Encoding: MinusOne},
	}

	for _, f := range fields {
		t.Run(f.Name, func(t *testing.T) {
			lo, hi := f.Range()
			step := uint64(1)
			if hi-lo > 1<<12 {
				step = (hi - lo) / 4096
			}
			for v := lo; v <= hi; v += step {
				bits, err := f.Encode(v)
				if err != nil {
					t.Fatalf("encode %d: %v", v, err)
				}
				if got := f.Decode(bits | ^f.mask()); got != v {
					t.Fatalf("round trip %d -> 0x%x -> %d", v, bits, got)
				}
			}
			if _, err := f.Encode(hi + 1); !errors.Is(err, ErrParameterOutOfRange) {
				t.Errorf("expected out of range above %d, got %v", hi, err)
			}
			if lo > 0 {
				if _, err := f.Encode(lo - 1); !errors.Is(err, ErrParameterOutOfRange) {
					t.Errorf("expected out of range below %d, got %v", lo, err)
				}
			}
		})
	}
}

func TestImageMergesFields(t *testing.T) {
	strideV := Field{Name: "stride_v", Offset: 0x90, Shift: 8, Width: 3, Encoding: MinusOne}
	strideH := Field{Name: "stride_h", Offset: 0x90, Shift: 11, Width: 3, Encoding: MinusOne}
	format := Field{Name: "format", Offset: 0x90, Shift: 0, Width: 3, Encoding: Direct}

	im := NewImage()
	for _, put := range []struct {
		f Field
		v uint64
	}{{format, 2}, {strideV, 2}, {strideH, 8}} {
		if err := im.Put(put.f, put.v); err != nil {
			t.Fatal(err)
		}
	}

	w, ok := im.Word(0x90)
	if !ok {
		t.Fatal("word 0x90 not staged")
	}
	if want := uint32(2 | 1<<8 | 7<<11); w != want {
		t.Errorf("expected 0x%x, got 0x%x", want, w)
	}
	if im.Len() != 1 {
		t.Errorf("expected one staged word, got %d", im.Len())
	}

	got := Layout{format, strideV, strideH}.Decode(im)
	if got["stride_v"] != 2 || got["stride_h"] != 8 || got["format"] != 2 {
		t.Errorf("unexpected decode %v", got)
	}
}

func TestImageCommitOrder(t *testing.T) {
	a := mmio.NewArena(64)
	im := NewImage()
	im.SetWord(0x20, 1)
	im.SetWord(0x10, 2)
	im.SetWord(0x20, 3)
	im.Commit(a)

	w := a.Writes()
	if len(w) != 2 {
		t.Fatalf("expected 2 writes, got %d", len(w))
	}
	if w[0].Offset != 0x20 || w[0].Value != 3 || w[1].Offset != 0x10 {
		t.Errorf("unexpected commit sequence %+v", w)
	}
	if words := im.Words(); words[0].Offset != 0x10 {
		t.Errorf("Words not sorted by offset: %+v", words)
	}
}

func TestProberRestores(t *testing.T) {
	a := mmio.NewArena(16)
	a.Poke(0x0, 0x00000001)
	a.Mask(0x0, 0x0000000F)
	a.Mask(0x4, 0x00000007)
	a.Poke(0x4, 0x5)

	f := Field{Name: "pad", Offset: 0x4, Shift: 0, Width: 3}
	wide := Field{Name: "wide", Offset: 0x4, Shift: 3, Width: 3}

	for i := 0; i < 2; i++ {
		p := NewProber(a)
		if !p.Field(f, 7) {
			t.Error("expected 3-bit field to latch")
		}
		if p.Field(wide, 7) {
			t.Error("expected missing field to read back zero")
		}
		if !p.Bits(0x0, 0x4) {
			t.Error("expected control bit to latch")
		}
		if p.Bits(0x0, 0x100) {
			t.Error("expected unimplemented control bit to be missing")
		}
		p.Restore()

		if got := a.Read32(0x0); got != 0x1 {
			t.Errorf("pass %d: control not restored, got 0x%x", i, got)
		}
		if got := a.Read32(0x4); got != 0x5 {
			t.Errorf("pass %d: field not restored, got 0x%x", i, got)
		}
	}
}

func newTestControl(a *mmio.Arena, busy *bool, perf bool) *Control {
	return NewControl(a, ControlSpec{
		Ctrl:           0x0,
		AcceleratorBit: 0x1,
		SubsystemBits:  0x2,
		ReadyMask:      0x2,
		PerfBit:        0x4,
		PerfSupported:  perf,
		Busy:           func() bool { return *busy },
		PollInterval:   time.Millisecond,
	})
}

func TestControlLifecycle(t *testing.T) {
	a := mmio.NewArena(16)
	busy := false
	c := newTestControl(a, &busy, true)

	if err := c.Start(func() {}); !errors.Is(err, ErrSubsystemNotEnabled) {
		t.Fatalf("expected not enabled, got %v", err)
	}
	if err := c.EnableSubsystem(); err != nil {
		t.Fatal(err)
	}
	if c.State() != SubsystemEnabled {
		t.Errorf("expected subsystem_enabled, got %s", c.State())
	}
	if err := c.Start(func() {}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected not configured, got %v", err)
	}

	c.MarkConfigured()
	busy = true
	if err := c.CheckIdle(); !errors.Is(err, ErrEngineBusy) {
		t.Errorf("expected busy, got %v", err)
	}
	if err := c.Start(func() {}); !errors.Is(err, ErrEngineBusy) {
		t.Errorf("expected busy on start, got %v", err)
	}
	busy = false

	fired := false
	if err := c.Start(func() { fired = true }); err != nil {
		t.Fatal(err)
	}
	if !fired || c.State() != Running {
		t.Fatalf("expected running after start, got %s", c.State())
	}

	var transfers atomic.Uint32
	go func() {
		time.Sleep(5 * time.Millisecond)
		transfers.Store(4)
	}()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.WaitCompletion(ctx, transfers.Load, 4); err != nil {
		t.Fatal(err)
	}
	if c.State() != Done {
		t.Errorf("expected done, got %s", c.State())
	}

	c.Acknowledge()
	if c.State() != SubsystemEnabled {
		t.Errorf("expected subsystem_enabled after acknowledge, got %s", c.State())
	}
}

func TestWaitCompletionCancelled(t *testing.T) {
	a := mmio.NewArena(16)
	busy := false
	c := newTestControl(a, &busy, false)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	err := c.WaitCompletion(ctx, func() uint32 { return 0 }, 1)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestPerfGating(t *testing.T) {
	a := mmio.NewArena(16)
	busy := false

	if err := newTestControl(a, &busy, false).EnablePerf(); !errors.Is(err, ErrUnsupported) {
		t.Errorf("expected unsupported, got %v", err)
	}
	if err := newTestControl(a, &busy, true).EnablePerf(); err != nil {
		t.Fatal(err)
	}
	if a.Read32(0x0)&0x4 == 0 {
		t.Error("perf bit not set")
	}
}

func TestBufferConfigCheck(t *testing.T) {
	tests := []struct {
		name      string
		cfg       BufferConfig
		useSecond bool
		wantErr   bool
	}{
		{"fits", BufferConfig{Operand: Buffer{Len: MaxBufferLen}, Result: Buffer{Len: 16}}, false, false},
		{"operand too long", BufferConfig{Operand: Buffer{Len: 1 << 24}}, false, true},
		{"second ignored", BufferConfig{Second: Buffer{Len: 1 << 30}}, false, false},
		{"second checked", BufferConfig{Second: Buffer{Len: 1 << 30}}, true, true},
		{"result too long", BufferConfig{Result: Buffer{Len: 0xFF000000}}, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Check(tt.useSecond)
			if (err != nil) != tt.wantErr {
				t.Errorf("Check() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrParameterOutOfRange) {
				t.Errorf("expected out of range, got %v", err)
			}
		})
	}
}

func TestKind(t *testing.T) {
	if got := Kind(Infeasible("mid_res_rows", 0, "")); got != "shape_infeasible" {
		t.Errorf("expected shape_infeasible, got %s", got)
	}
	if got := Kind(nil); got != "ok" {
		t.Errorf("expected ok, got %s", got)
	}
}

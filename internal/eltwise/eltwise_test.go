package eltwise

import (
	"context"
	"errors"
	"io"
	"math"
	"testing"
	"time"

	"github.com/23skdu/longbow-axi/internal/accel"
	"github.com/23skdu/longbow-axi/internal/logger"
	"github.com/23skdu/longbow-axi/internal/mmio"
	"github.com/23skdu/longbow-axi/internal/sim"
)

func discovered(t *testing.T, p sim.EltwiseParams) Capabilities {
	t.Helper()
	caps, err := Discover(sim.NewEltwise(p))
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	return caps
}

func newHandle(t *testing.T, p sim.EltwiseParams) (*sim.Eltwise, *Accelerator) {
	t.Helper()
	s := sim.NewEltwise(p)
	a, err := New(s, Options{
		PollInterval: 10 * time.Microsecond,
		Logger:       logger.New("json", io.Discard),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	s.ResetLog()
	return s, a
}

// scaleFP16 doubles an FP16 stream: y = 2x.
func scaleFP16() Descriptor {
	return Descriptor{
		InFormat:   InFP16,
		CalcFormat: CalcFP32,
		OutFormat:  OutFP16,
		Units:      Units{InConvert: true, MAC: true, Round: true},
		BIsZero:    true,
		A:          Operand{Const: true, Value: math.Float32bits(2)},
	}
}

func buffers() accel.BufferConfig {
	return accel.BufferConfig{
		Operand: accel.Buffer{Addr: 0x10000000, Len: 4096},
		Second:  accel.Buffer{Addr: 0x11000000, Len: 4096},
		Result:  accel.Buffer{Addr: 0x12000000, Len: 4096},
	}
}

func TestDiscoverDefaultBuild(t *testing.T) {
	caps := discovered(t, sim.DefaultEltwiseParams())
	if caps.Type != "eltwise" {
		t.Errorf("unexpected identity %+v", caps.Identity)
	}
	want := Units{InConvert: true, MAC: true, OutConvert: true, Round: true}
	if caps.Units != want {
		t.Errorf("expected units %+v, got %+v", want, caps.Units)
	}
	flags := []struct {
		name      string
		got, want bool
	}{
		{"PerfMonitor", caps.PerfMonitor, true},
		{"InWidth1", caps.InWidth1, false},
		{"InWidth2", caps.InWidth2, true},
		{"OutWidth2", caps.OutWidth2, true},
		{"InCvtFP16", caps.InCvtFP16, true},
		{"InCvtInt", caps.InCvtInt, false},
		{"CalcS16", caps.CalcS16, false},
		{"CalcFP32", caps.CalcFP32, true},
		{"OutCvtS33", caps.OutCvtS33, false},
		{"RoundFP32", caps.RoundFP32, true},
	}
	for _, f := range flags {
		if f.got != f.want {
			t.Errorf("%s: expected %v, got %v", f.name, f.want, f.got)
		}
	}
	if caps.Pipelines != 4 || caps.MM2SWidth != 64 {
		t.Errorf("unexpected properties %+v", caps)
	}
}

func TestDiscoverRestoresRegisters(t *testing.T) {
	p := sim.FullEltwiseParams()
	p.MAC = false
	s := sim.NewEltwise(p)
	s.Write32(offBypass, 0x0A)
	s.Write32(offCtrl0, ctrlReady)

	before := mmio.NewRegion(s, 0).ReadWords(sim.EltwiseSize / 4)
	first, err := Discover(s)
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if first.Units.MAC || !first.Units.Pow2 {
		t.Errorf("unexpected units %+v", first.Units)
	}
	after := mmio.NewRegion(s, 0).ReadWords(sim.EltwiseSize / 4)
	for i := range before {
		off := uint32(i * 4)
		want := before[i]
		if off == offCtrl0 {
			want &^= ctrlSubsystem
		}
		if after[i] != want {
			t.Errorf("register 0x%03x: expected 0x%08x after probing, got 0x%08x", off, want, after[i])
		}
	}
	second, err := Discover(s)
	if err != nil {
		t.Fatalf("second Discover failed: %v", err)
	}
	if first != second {
		t.Errorf("probing is not idempotent:\n%+v\n%+v", first, second)
	}
}

func TestDiscoverWrongCore(t *testing.T) {
	a := mmio.NewArena(sim.EltwiseSize)
	a.Poke(accel.OffsetTypeCode, sim.PoolTypeCode)
	if _, err := Discover(a); !errors.Is(err, accel.ErrDeviceIdentityMismatch) {
		t.Fatalf("expected ErrDeviceIdentityMismatch, got %v", err)
	}
	if n := len(a.Writes()); n != 0 {
		t.Errorf("expected no writes before the identity check, got %d", n)
	}
}

func TestValidate(t *testing.T) {
	def := discovered(t, sim.DefaultEltwiseParams())
	full := discovered(t, sim.FullEltwiseParams())

	fixed := func(d *Descriptor) {
		d.InFormat, d.CalcFormat, d.OutFormat = InS16, CalcS16, OutS16
		d.Units = Units{MAC: true}
	}

	tests := []struct {
		name   string
		caps   Capabilities
		mutate func(*Descriptor)
		want   error
	}{
		{"fp16 scale", def, func(*Descriptor) {}, nil},
		{"pow2 not built", def, func(d *Descriptor) { d.Units.Pow2 = true }, accel.ErrCapabilityUnsupported},
		{"unknown input format", def, func(d *Descriptor) { d.InFormat = 9 }, accel.ErrParameterOutOfRange},
		{"unknown calc format", def, func(d *Descriptor) { d.CalcFormat = 3 }, accel.ErrParameterOutOfRange},
		{"s16 calc not built", def, func(d *Descriptor) { d.CalcFormat = CalcS16 }, accel.ErrCapabilityUnsupported},
		{"byte input stream not built", def, func(d *Descriptor) { d.InFormat = InU8 }, accel.ErrCapabilityUnsupported},
		{"word output stream not built", def, func(d *Descriptor) { d.OutFormat = OutFP32 }, accel.ErrCapabilityUnsupported},
		{"integer input conversion not built", def, func(d *Descriptor) { d.InFormat = InS16 }, accel.ErrCapabilityUnsupported},
		{"s33 conversion not built", def, func(d *Descriptor) {
			d.OutFormat = OutS16
			d.Units.OutConvert = true
		}, accel.ErrCapabilityUnsupported},
		{"s33 rounding not built", def, func(d *Descriptor) { d.OutFormat = OutS16 }, accel.ErrCapabilityUnsupported},
		{"input frac 63", full, func(d *Descriptor) {
			d.InFormat = InS32
			d.InFrac = 63
		}, nil},
		{"input frac 64", full, func(d *Descriptor) {
			d.InFormat = InS32
			d.InFrac = 64
		}, accel.ErrParameterOutOfRange},
		{"float input ignores frac", full, func(d *Descriptor) { d.InFrac = 200 }, nil},
		{"op x frac 32", full, func(d *Descriptor) {
			fixed(d)
			d.OpXFrac = 32
		}, accel.ErrParameterOutOfRange},
		{"streamed a frac 32", full, func(d *Descriptor) {
			fixed(d)
			d.A = Operand{}
			d.OpAFrac = 32
		}, accel.ErrParameterOutOfRange},
		{"constant a ignores frac", full, func(d *Descriptor) {
			fixed(d)
			d.OpAFrac = 32
		}, nil},
		{"s33 frac 64", full, func(d *Descriptor) {
			fixed(d)
			d.Units.OutConvert = true
			d.S33Frac = 64
		}, accel.ErrParameterOutOfRange},
		{"round frac 32", full, func(d *Descriptor) {
			fixed(d)
			d.Units.Round = true
			d.RoundInFrac = 32
		}, accel.ErrParameterOutOfRange},
		{"round widens", full, func(d *Descriptor) {
			fixed(d)
			d.Units.Round = true
			d.RoundInFrac, d.RoundOutFrac = 4, 8
		}, accel.ErrParameterOutOfRange},
		{"round narrows", full, func(d *Descriptor) {
			fixed(d)
			d.Units.Round = true
			d.RoundInFrac, d.RoundOutFrac = 12, 4
		}, nil},
		{"float rounding ignores fracs", full, func(d *Descriptor) { d.RoundInFrac, d.RoundOutFrac = 4, 8 }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := scaleFP16()
			tt.mutate(&d)
			err := Validate(tt.caps, d)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestEncode(t *testing.T) {
	d := scaleFP16()
	d.RoundInFrac, d.RoundOutFrac = 12, 4
	im, err := Encode(d)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	got := RegisterLayout.Decode(im)
	want := map[string]uint64{
		"in_format":          uint64(InFP16),
		"calc_format":        uint64(CalcFP32),
		"out_format":         uint64(OutFP16),
		"round_in_frac":      12,
		"round_out_frac":     4,
		"round_shift":        8,
		"a_is_one":           0,
		"b_is_zero":          1,
		"a_const":            1,
		"b_const":            0,
		"bypass_in_convert":  0,
		"bypass_pow2":        1,
		"bypass_mac":         0,
		"bypass_out_convert": 1,
		"bypass_round":       0,
	}
	for name, w := range want {
		if got[name] != w {
			t.Errorf("%s: expected %d, got %d", name, w, got[name])
		}
	}
	if w, _ := im.Word(offFmt); w != 0x00060206 {
		t.Errorf("expected fmt_cfg 0x00060206, got 0x%08x", w)
	}
	if w, _ := im.Word(offAValue); w != math.Float32bits(2) {
		t.Errorf("expected constant A 2.0, got 0x%08x", w)
	}
	if _, ok := im.Word(offBValue); ok {
		t.Error("constant B must not be staged when B is streamed or zero")
	}

	d.RoundInFrac, d.RoundOutFrac = 4, 8
	im, err = Encode(d)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if im.Get(fRoundShift) != 0 {
		t.Errorf("expected a widening round to encode no shift, got %d", im.Get(fRoundShift))
	}
}

func TestStreamsSecond(t *testing.T) {
	d := scaleFP16()
	if d.StreamsSecond() {
		t.Error("constant A with zero B needs no second stream")
	}
	d.BIsZero = false
	if !d.StreamsSecond() {
		t.Error("a streamed B needs the second stream")
	}
	d.Units.MAC = false
	if d.StreamsSecond() {
		t.Error("a bypassed multiply-add reads no operands")
	}
}

func TestConfigureRejectsWithoutWrites(t *testing.T) {
	s, a := newHandle(t, sim.DefaultEltwiseParams())
	d := scaleFP16()
	d.Units.Pow2 = true
	if err := a.Configure(d); !errors.Is(err, accel.ErrCapabilityUnsupported) {
		t.Fatalf("expected ErrCapabilityUnsupported, got %v", err)
	}
	if n := len(s.Writes()); n != 0 {
		t.Errorf("expected no register writes, got %d", n)
	}
	if a.State() != accel.Idle {
		t.Errorf("expected state idle, got %s", a.State())
	}
}

func TestRunToCompletion(t *testing.T) {
	s, a := newHandle(t, sim.DefaultEltwiseParams())
	ctx := context.Background()

	if err := a.EnableSubsystem(); err != nil {
		t.Fatalf("EnableSubsystem failed: %v", err)
	}
	if err := a.Start(buffers(), false); !errors.Is(err, accel.ErrSubsystemNotEnabled) {
		t.Fatalf("expected ErrSubsystemNotEnabled without the accelerator bit, got %v", err)
	}
	a.Enable()
	if err := a.Start(buffers(), false); !errors.Is(err, accel.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if err := a.Configure(scaleFP16()); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}

	s.ResetLog()
	big := buffers()
	big.Result.Len = 1 << 24
	if err := a.Start(big, false); !errors.Is(err, accel.ErrParameterOutOfRange) {
		t.Fatalf("expected ErrParameterOutOfRange, got %v", err)
	}
	if n := len(s.Writes()); n != 0 {
		t.Errorf("expected no writes for an oversized buffer, got %d", n)
	}
	// the second buffer is only checked when it is streamed
	big = buffers()
	big.Second.Len = 1 << 24
	if err := a.Start(big, false); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if s.Runs != 1 {
		t.Fatalf("expected one run, got %d", s.Runs)
	}
	if got := s.Read32(regionBuffer + 4*bufSecond); got != 0 {
		t.Errorf("expected the second buffer to be left alone, got 0x%08x", got)
	}
	if err := a.WaitCompletion(ctx, accel.S2MM, 1); err != nil {
		t.Fatalf("WaitCompletion failed: %v", err)
	}
	if n, _ := a.CompletionCount(accel.MM2S1); n != 0 {
		t.Errorf("expected no second-stream completions, got %d", n)
	}
	a.Acknowledge()

	d := scaleFP16()
	d.BIsZero = false
	if err := a.Configure(d); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	if err := a.Start(buffers(), a.Descriptor().StreamsSecond()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := a.WaitCompletion(ctx, accel.MM2S1, 1); err != nil {
		t.Fatalf("WaitCompletion failed: %v", err)
	}
	if got := s.Read32(regionBuffer + 4*bufSecondLen); got != 4096 {
		t.Errorf("expected second buffer length 4096, got %d", got)
	}
	if n, _ := a.CompletionCount(accel.S2MM); n != 2 {
		t.Errorf("expected 2 result completions, got %d", n)
	}
	a.ClearAllCompletions()
	for _, ch := range []accel.Channel{accel.MM2S0, accel.MM2S1, accel.S2MM} {
		if n, _ := a.CompletionCount(ch); n != 0 {
			t.Errorf("%s: expected cleared counter, got %d", ch, n)
		}
	}
}

func TestBusyWhileStalled(t *testing.T) {
	s, a := newHandle(t, sim.DefaultEltwiseParams())
	a.Enable()
	if err := a.EnableSubsystem(); err != nil {
		t.Fatalf("EnableSubsystem failed: %v", err)
	}
	if err := a.Configure(scaleFP16()); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	s.Stall()
	if err := a.Start(buffers(), false); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !a.IsBusy() {
		t.Fatal("expected pending start bits to read as busy")
	}
	s.ResetLog()
	if err := a.Configure(scaleFP16()); !errors.Is(err, accel.ErrEngineBusy) {
		t.Errorf("expected ErrEngineBusy, got %v", err)
	}
	if n := len(s.Writes()); n != 0 {
		t.Errorf("expected no writes while busy, got %d", n)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	if err := a.WaitCompletion(ctx, accel.S2MM, 1); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
	s.Release()
	if a.IsBusy() {
		t.Error("expected the engine to be idle after release")
	}
	if err := a.WaitCompletion(context.Background(), accel.S2MM, 1); err != nil {
		t.Fatalf("WaitCompletion failed after release: %v", err)
	}
}

func TestPerfCounters(t *testing.T) {
	t.Run("unsupported", func(t *testing.T) {
		p := sim.DefaultEltwiseParams()
		p.PerfMonitor = false
		_, a := newHandle(t, p)
		if err := a.EnablePerfCounters(); !errors.Is(err, accel.ErrUnsupported) {
			t.Errorf("expected ErrUnsupported, got %v", err)
		}
		if err := a.ClearPerfCounters(); !errors.Is(err, accel.ErrUnsupported) {
			t.Errorf("expected ErrUnsupported, got %v", err)
		}
	})

	t.Run("counts a run", func(t *testing.T) {
		_, a := newHandle(t, sim.DefaultEltwiseParams())
		a.Enable()
		if err := a.EnableSubsystem(); err != nil {
			t.Fatalf("EnableSubsystem failed: %v", err)
		}
		if err := a.EnablePerfCounters(); err != nil {
			t.Fatalf("EnablePerfCounters failed: %v", err)
		}
		if err := a.Configure(scaleFP16()); err != nil {
			t.Fatalf("Configure failed: %v", err)
		}
		if err := a.Start(buffers(), false); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		pc, err := a.PerfCounters()
		if err != nil || pc.Cycles == 0 {
			t.Fatalf("expected a nonzero cycle count, got %+v, %v", pc, err)
		}
		if err := a.ClearPerfCounters(); err != nil {
			t.Fatalf("ClearPerfCounters failed: %v", err)
		}
		if pc, _ := a.PerfCounters(); pc.Cycles != 0 {
			t.Errorf("expected cleared counter, got %d", pc.Cycles)
		}
	})
}

func TestFormatText(t *testing.T) {
	var f InFormat
	if err := f.UnmarshalText([]byte("FP16")); err != nil || f != InFP16 {
		t.Errorf("expected fp16, got %v, %v", f, err)
	}
	var c CalcFormat
	if err := c.UnmarshalText([]byte("fp64")); err == nil {
		t.Error("expected unknown calculation format to be rejected")
	}
	if n := OutS32.Bytes(); n != 4 {
		t.Errorf("expected 4 bytes, got %d", n)
	}
}

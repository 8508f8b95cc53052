// Package conv drives the generic convolution accelerator: capability
// discovery, descriptor validation, on-chip buffer allocation, register
// encoding and the enable/configure/start/complete control sequence.
package conv

import (
	"context"
	"fmt"
	"time"

	"github.com/23skdu/longbow-axi/internal/accel"
	"github.com/23skdu/longbow-axi/internal/logger"
	"github.com/23skdu/longbow-axi/internal/metrics"
	"github.com/23skdu/longbow-axi/internal/mmio"
)

// Options tune a handle. The zero value is usable.
type Options struct {
	PollInterval time.Duration
	Logger       *logger.Logger
}

// Accelerator is the handle for one convolution core. It is not safe for
// concurrent use; serialize access externally.
type Accelerator struct {
	rf     mmio.RegisterFile
	caps   Capabilities
	ctl    *accel.Control
	status mmio.Region
	plan   Plan
	log    *logger.Logger
}

// New discovers the core behind rf and returns a handle in state Idle.
func New(rf mmio.RegisterFile, opts Options) (*Accelerator, error) {
	log := opts.Logger
	if log == nil {
		log = logger.Log
	}
	log = log.Component(Family)

	caps, err := Discover(rf)
	metrics.RecordDiscover(Family, err)
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w", Family, err)
	}
	log.Info("Discovered accelerator",
		"version", caps.Version,
		"type", caps.Type,
		"id", caps.ID,
		"atomic_k", caps.AtomicK,
		"atomic_c", caps.AtomicC,
		"banks", caps.BankCount,
		"bank_depth", caps.BankDepth,
		"max_kernels", caps.MaxKernels,
		"bn", caps.BN,
		"perf_monitor", caps.PerfMonitor,
	)

	a := &Accelerator{
		rf:     rf,
		caps:   caps,
		status: mmio.NewRegion(rf, offStatus0),
		log:    log,
	}
	a.ctl = accel.NewControl(rf, accel.ControlSpec{
		Ctrl:           offCtrl0,
		AcceleratorBit: ctrlAccel,
		SubsystemBits:  ctrlSubsystem,
		ReadyMask:      ctrlSubsystem,
		PerfBit:        ctrlPerf,
		PerfSupported:  caps.PerfMonitor,
		Busy:           a.IsBusy,
		PollInterval:   opts.PollInterval,
	})
	return a, nil
}

// Capabilities returns the snapshot taken at discovery.
func (a *Accelerator) Capabilities() Capabilities { return a.caps }

func (a *Accelerator) State() accel.State { return a.ctl.State() }

// Plan returns the allocation of the last committed configuration.
func (a *Accelerator) Plan() Plan { return a.plan }

func (a *Accelerator) Enable()  { a.ctl.EnableAccelerator() }
func (a *Accelerator) Disable() { a.ctl.DisableAccelerator() }

func (a *Accelerator) EnableSubsystem() error { return a.ctl.EnableSubsystem() }
func (a *Accelerator) DisableSubsystem()      { a.ctl.DisableSubsystem() }

// IsBusy reports whether any pipeline stage is not idle.
func (a *Accelerator) IsBusy() bool {
	return a.status.Reg(0).Read()&idleMask != idleMask
}

// Compile runs validation, allocation and encoding without touching hardware.
func Compile(caps Capabilities, d Descriptor) (Plan, *accel.Image, error) {
	if err := Validate(caps, d); err != nil {
		return Plan{}, nil, err
	}
	p, err := Allocate(caps, d)
	if err != nil {
		return Plan{}, nil, err
	}
	im, err := Encode(d, p)
	if err != nil {
		return Plan{}, nil, err
	}
	return p, im, nil
}

// Configure validates d, derives its plan and commits the register image.
// On any error no register has been written.
func (a *Accelerator) Configure(d Descriptor) (Plan, error) {
	p, err := a.configure(d)
	metrics.RecordConfigure(Family, err)
	if err != nil {
		a.log.Warn("Configuration rejected", "kind", accel.Kind(err), "error", err)
		return Plan{}, err
	}
	metrics.RecordAllocation(Family, p.FeatureMapRows, p.MidResRows)
	a.log.Debug("Configured",
		"out_width", p.OutWidth,
		"out_height", p.OutHeight,
		"fm_rows", p.FeatureMapRows,
		"weight_blocks", p.WeightBlocks,
		"mid_res_rows", p.MidResRows,
		"expected_transfers", p.ExpectedTransfers,
	)
	return p, nil
}

func (a *Accelerator) configure(d Descriptor) (Plan, error) {
	if err := a.ctl.CheckIdle(); err != nil {
		return Plan{}, err
	}
	p, im, err := Compile(a.caps, d)
	if err != nil {
		return Plan{}, err
	}
	im.Commit(a.rf)
	if d.BNAct.Enabled() {
		a.ctl.SetBits(ctrlBNAct)
	} else {
		a.ctl.ClearBits(ctrlBNAct)
	}
	a.plan = p
	a.ctl.MarkConfigured()
	return p, nil
}

// Start launches the committed configuration.
func (a *Accelerator) Start() error {
	err := a.ctl.Start(func() { a.ctl.SetBits(ctrlStart) })
	metrics.RecordStart(Family, err)
	return err
}

// CompletionCount reads the DMA command-completion counter of ch.
func (a *Accelerator) CompletionCount(ch accel.Channel) (uint32, error) {
	idx, err := statusIndex(ch)
	if err != nil {
		return 0, err
	}
	return a.status.Reg(idx).Read(), nil
}

// WaitCompletion blocks until ch has completed expected commands or ctx ends.
func (a *Accelerator) WaitCompletion(ctx context.Context, ch accel.Channel, expected uint32) error {
	idx, err := statusIndex(ch)
	if err != nil {
		return err
	}
	reg := a.status.Reg(idx)
	start := time.Now()
	err = a.ctl.WaitCompletion(ctx, reg.Read, expected)
	metrics.RecordCompletionWait(Family, time.Since(start))
	return err
}

// Acknowledge retires a finished run; the next Start needs a new Configure.
func (a *Accelerator) Acknowledge() { a.ctl.Acknowledge() }

// ClearCompletion zeroes the counter of ch.
func (a *Accelerator) ClearCompletion(ch accel.Channel) error {
	idx, err := statusIndex(ch)
	if err != nil {
		return err
	}
	a.status.Reg(idx).Write(0)
	return nil
}

func (a *Accelerator) ClearAllCompletions() {
	for _, ch := range []accel.Channel{accel.MM2S0, accel.MM2S1, accel.S2MM} {
		_ = a.ClearCompletion(ch)
	}
}

func statusIndex(ch accel.Channel) (int, error) {
	switch ch {
	case accel.MM2S0:
		return statusMM2S0, nil
	case accel.MM2S1:
		return statusMM2S1, nil
	case accel.S2MM:
		return statusS2MM, nil
	}
	return 0, accel.OutOfRange("channel", int64(ch), int64(accel.MM2S0), int64(accel.S2MM))
}

func (a *Accelerator) EnablePerfCounters() error { return a.ctl.EnablePerf() }

func (a *Accelerator) DisablePerfCounters() { a.ctl.DisablePerf() }

// PerfCounters reads the performance monitor and publishes it as metrics.
func (a *Accelerator) PerfCounters() (PerfCounters, error) {
	if err := a.ctl.RequirePerf(); err != nil {
		return PerfCounters{}, fmt.Errorf("read performance counters: %w", err)
	}
	pc := PerfCounters{
		Cycles:       a.status.Reg(statusCycles).Read(),
		MM2S0Bytes:   a.status.Reg(statusMM2S0Bytes).Read(),
		MM2S1Bytes:   a.status.Reg(statusMM2S1Bytes).Read(),
		S2MMBytes:    a.status.Reg(statusS2MMBytes).Read(),
		SurfacesDone: a.status.Reg(statusSurfaces).Read(),
	}
	metrics.RecordPerf(Family, pc.Cycles, map[string]uint32{
		accel.MM2S0.String(): pc.MM2S0Bytes,
		accel.MM2S1.String(): pc.MM2S1Bytes,
		accel.S2MM.String():  pc.S2MMBytes,
	})
	return pc, nil
}

func (a *Accelerator) ClearPerfCounters() error {
	if err := a.ctl.RequirePerf(); err != nil {
		return fmt.Errorf("clear performance counters: %w", err)
	}
	for idx := statusCycles; idx <= statusSurfaces; idx++ {
		a.status.Reg(idx).Write(0)
	}
	return nil
}

// Package pool drives the generic pooling/upsampling accelerator.
package pool

import (
	"context"
	"fmt"
	"time"

	"github.com/23skdu/longbow-axi/internal/accel"
	"github.com/23skdu/longbow-axi/internal/logger"
	"github.com/23skdu/longbow-axi/internal/metrics"
	"github.com/23skdu/longbow-axi/internal/mmio"
)

type Options struct {
	PollInterval time.Duration
	Logger       *logger.Logger
}

// Accelerator is the handle for one pooling core. Not safe for concurrent use.
type Accelerator struct {
	rf     mmio.RegisterFile
	caps   Capabilities
	ctl    *accel.Control
	status mmio.Region
	plan   Plan
	log    *logger.Logger
}

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
		"atomic_c", caps.AtomicC,
		"max", caps.Max,
		"avg", caps.Avg,
		"upsample", caps.Upsample,
		"post_mac", caps.PostMAC,
	)

	a := &Accelerator{
		rf:     rf,
		caps:   caps,
		status: mmio.NewRegion(rf, offStatus0),
		log:    log,
	}
	a.ctl = accel.NewControl(rf, accel.ControlSpec{
		Ctrl:          offCtrl0,
		SubsystemBits: ctrlSubsystem,
		ReadyMask:     ctrlSubsystem,
		PerfBit:       ctrlPerf,
		PerfSupported: caps.PerfMonitor,
		Busy:          a.IsBusy,
		PollInterval:  opts.PollInterval,
	})
	return a, nil
}

func (a *Accelerator) Capabilities() Capabilities { return a.caps }
func (a *Accelerator) State() accel.State         { return a.ctl.State() }
func (a *Accelerator) Plan() Plan                 { return a.plan }

func (a *Accelerator) EnableSubsystem() error { return a.ctl.EnableSubsystem() }
func (a *Accelerator) DisableSubsystem()      { a.ctl.DisableSubsystem() }

// IsBusy reports whether either pipeline stage is not idle.
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
		a.log.Warn("Configuration rejected", "mode", d.Mode.String(), "kind", accel.Kind(err), "error", err)
		return Plan{}, err
	}
	metrics.RecordAllocation(Family, p.FeatureMapRows, p.MidResRows)
	a.log.Debug("Configured",
		"mode", d.Mode.String(),
		"out_width", p.OutWidth,
		"out_height", p.OutHeight,
		"fm_rows", p.FeatureMapRows,
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
	if d.PostMAC.Use {
		a.ctl.SetBits(ctrlPostMAC)
	} else {
		a.ctl.ClearBits(ctrlPostMAC)
	}
	a.plan = p
	a.ctl.MarkConfigured()
	return p, nil
}

func (a *Accelerator) Start() error {
	err := a.ctl.Start(func() { a.ctl.SetBits(ctrlStart) })
	metrics.RecordStart(Family, err)
	return err
}

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
	start := time.Now()
	err = a.ctl.WaitCompletion(ctx, a.status.Reg(idx).Read, expected)
	metrics.RecordCompletionWait(Family, time.Since(start))
	return err
}

func (a *Accelerator) Acknowledge() { a.ctl.Acknowledge() }

func (a *Accelerator) ClearCompletion(ch accel.Channel) error {
	idx, err := statusIndex(ch)
	if err != nil {
		return err
	}
	a.status.Reg(idx).Write(0)
	return nil
}

func (a *Accelerator) ClearAllCompletions() {
	a.status.Reg(statusMM2S).Write(0)
	a.status.Reg(statusS2MM).Write(0)
}

// statusIndex maps a channel to its counter. The pooling core has a single
// read channel.
func statusIndex(ch accel.Channel) (int, error) {
	switch ch {
	case accel.MM2S0:
		return statusMM2S, nil
	case accel.S2MM:
		return statusS2MM, nil
	}
	return 0, fmt.Errorf("%s channel %s: %w", Family, ch, accel.ErrUnsupported)
}

func (a *Accelerator) EnablePerfCounters() error { return a.ctl.EnablePerf() }
func (a *Accelerator) DisablePerfCounters()      { a.ctl.DisablePerf() }

func (a *Accelerator) PerfCounters() (PerfCounters, error) {
	if err := a.ctl.RequirePerf(); err != nil {
		return PerfCounters{}, fmt.Errorf("read performance counters: %w", err)
	}
	pc := PerfCounters{
		Cycles:       a.status.Reg(statusCycles).Read(),
		MM2SBytes:    a.status.Reg(statusMM2SBytes).Read(),
		S2MMBytes:    a.status.Reg(statusS2MMBytes).Read(),
		UpdateCycles: a.status.Reg(statusUpdateCycles).Read(),
	}
	metrics.RecordPerf(Family, pc.Cycles, map[string]uint32{
		accel.MM2S0.String(): pc.MM2SBytes,
		accel.S2MM.String():  pc.S2MMBytes,
	})
	return pc, nil
}

func (a *Accelerator) ClearPerfCounters() error {
	if err := a.ctl.RequirePerf(); err != nil {
		return fmt.Errorf("clear performance counters: %w", err)
	}
	for idx := statusCycles; idx <= statusUpdateCycles; idx++ {
		a.status.Reg(idx).Write(0)
	}
	return nil
}

// Package eltwise drives the generic elementwise accelerator: a pipeline of
// optional conversion, power, multiply-add and rounding units applied to one
// or two operand streams.
package eltwise

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

// Accelerator is the handle for one elementwise core. Not safe for concurrent use.
type Accelerator struct {
	rf     mmio.RegisterFile
	caps   Capabilities
	ctl    *accel.Control
	ctrl1  mmio.Reg
	status mmio.Region
	buf    mmio.Region
	desc   Descriptor
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
		"pipelines", caps.Pipelines,
		"mac", caps.Units.MAC,
		"round", caps.Units.Round,
		"perf", caps.PerfMonitor,
	)

	a := &Accelerator{
		rf:     rf,
		caps:   caps,
		ctrl1:  mmio.NewRegion(rf, offCtrl1).Reg(0),
		status: mmio.NewRegion(rf, offStatus0),
		buf:    mmio.NewRegion(rf, regionBuffer),
		log:    log,
	}
	a.ctl = accel.NewControl(rf, accel.ControlSpec{
		Ctrl:           offCtrl0,
		AcceleratorBit: ctrlAccel,
		SubsystemBits:  ctrlSubsystem,
		ReadyMask:      ctrlReady,
		PerfBit:        ctrlPerf,
		PerfSupported:  caps.PerfMonitor,
		Busy:           a.IsBusy,
		PollInterval:   opts.PollInterval,
	})
	return a, nil
}

func (a *Accelerator) Capabilities() Capabilities { return a.caps }
func (a *Accelerator) State() accel.State         { return a.ctl.State() }

// Descriptor returns the last committed configuration.
func (a *Accelerator) Descriptor() Descriptor { return a.desc }

func (a *Accelerator) Enable()  { a.ctl.EnableAccelerator() }
func (a *Accelerator) Disable() { a.ctl.DisableAccelerator() }

// EnableSubsystem switches on the data hub and the processing core.
func (a *Accelerator) EnableSubsystem() error { return a.ctl.EnableSubsystem() }
func (a *Accelerator) DisableSubsystem()      { a.ctl.DisableSubsystem() }

// IsBusy reports whether a previous start has not been taken by every stream.
func (a *Accelerator) IsBusy() bool {
	return a.ctrl1.Read()&startMask != 0
}

// Compile runs validation and encoding without touching hardware.
func Compile(caps Capabilities, d Descriptor) (*accel.Image, error) {
	if err := Validate(caps, d); err != nil {
		return nil, err
	}
	return Encode(d)
}

// Configure validates d and commits the functional-unit configuration.
// On any error no register has been written.
func (a *Accelerator) Configure(d Descriptor) error {
	err := a.configure(d)
	metrics.RecordConfigure(Family, err)
	if err != nil {
		a.log.Warn("Configuration rejected", "kind", accel.Kind(err), "error", err)
		return err
	}
	a.log.Debug("Configured",
		"in_format", d.InFormat.String(),
		"calc_format", d.CalcFormat.String(),
		"out_format", d.OutFormat.String(),
		"second_operand", d.StreamsSecond(),
	)
	return nil
}

func (a *Accelerator) configure(d Descriptor) error {
	if err := a.ctl.CheckIdle(); err != nil {
		return err
	}
	im, err := Compile(a.caps, d)
	if err != nil {
		return err
	}
	im.Commit(a.rf)
	a.desc = d
	a.ctl.MarkConfigured()
	return nil
}

// Start programs the stream buffers and kicks the engine. The second operand
// buffer is programmed and streamed only when useSecond is set. Buffer
// lengths are checked before any register is written.
func (a *Accelerator) Start(buf accel.BufferConfig, useSecond bool) error {
	if err := buf.Check(useSecond); err != nil {
		err = fmt.Errorf("start: %w", err)
		metrics.RecordStart(Family, err)
		return err
	}
	err := a.ctl.Start(func() {
		a.buf.Reg(bufOperand).Write(buf.Operand.Addr)
		a.buf.Reg(bufOperandLen).Write(buf.Operand.Len)
		start := uint32(startOperand | startResult)
		if useSecond {
			a.buf.Reg(bufSecond).Write(buf.Second.Addr)
			a.buf.Reg(bufSecondLen).Write(buf.Second.Len)
			start |= startSecond
		}
		a.buf.Reg(bufResult).Write(buf.Result.Addr)
		a.buf.Reg(bufResultLen).Write(buf.Result.Len)
		a.ctrl1.Write(start)
	})
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
	for idx := statusMM2S0; idx <= statusS2MM; idx++ {
		a.status.Reg(idx).Write(0)
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
func (a *Accelerator) DisablePerfCounters()      { a.ctl.DisablePerf() }

func (a *Accelerator) PerfCounters() (PerfCounters, error) {
	if err := a.ctl.RequirePerf(); err != nil {
		return PerfCounters{}, fmt.Errorf("read performance counters: %w", err)
	}
	pc := PerfCounters{Cycles: a.status.Reg(statusCycles).Read()}
	metrics.RecordPerf(Family, pc.Cycles, nil)
	return pc, nil
}

func (a *Accelerator) ClearPerfCounters() error {
	if err := a.ctl.RequirePerf(); err != nil {
		return fmt.Errorf("clear performance counters: %w", err)
	}
	a.status.Reg(statusCycles).Write(0)
	return nil
}

package accel

import (
	"context"
	"fmt"
	"time"

	"github.com/23skdu/longbow-axi/internal/mmio"
)

// State is the software view of an accelerator's execution lifecycle.
type State int

const (
	Idle State = iota
	SubsystemEnabled
	Configured
	Running
	Done
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case SubsystemEnabled:
		return "subsystem_enabled"
	case Configured:
		return "configured"
	case Running:
		return "running"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Channel selects one of the DMA completion counters.
type Channel uint8

const (
	MM2S0 Channel = iota
	MM2S1
	S2MM
)

func (c Channel) String() string {
	switch c {
	case MM2S0:
		return "mm2s0"
	case MM2S1:
		return "mm2s1"
	case S2MM:
		return "s2mm"
	default:
		return fmt.Sprintf("Channel(%d)", c)
	}
}

// DefaultPollInterval is used by WaitCompletion when ControlSpec leaves it zero.
const DefaultPollInterval = 50 * time.Microsecond

// ControlSpec describes where a family keeps its control bits.
type ControlSpec struct {
	// Ctrl is the offset of the control word holding the enable bits.
	Ctrl uint32
	// AcceleratorBit switches the whole accelerator on.
	AcceleratorBit uint32
	// SubsystemBits switch the calculation subsystem on.
	SubsystemBits uint32
	// ReadyMask must read back fully set before a start is accepted.
	ReadyMask uint32
	// PerfBit enables the performance counters, if the build has them.
	PerfBit       uint32
	PerfSupported bool
	// Busy reports whether the engine is still working.
	Busy         func() bool
	PollInterval time.Duration
}

// Control is the enable/configure/start/complete state machine shared by
// every family. Hardware status is the source of truth for Running→Done;
// the rest is tracked in software. Not safe for concurrent use.
type Control struct {
	ctrl  mmio.Reg
	spec  ControlSpec
	state State
}

func NewControl(rf mmio.RegisterFile, spec ControlSpec) *Control {
	if spec.PollInterval <= 0 {
		spec.PollInterval = DefaultPollInterval
	}
	return &Control{
		ctrl: mmio.NewRegion(rf, spec.Ctrl).Reg(0),
		spec: spec,
	}
}

func (c *Control) State() State { return c.state }

// EnableAccelerator sets the global accelerator enable bit.
func (c *Control) EnableAccelerator() { c.ctrl.Set(c.spec.AcceleratorBit) }

// DisableAccelerator clears the global accelerator enable bit.
func (c *Control) DisableAccelerator() { c.ctrl.Clear(c.spec.AcceleratorBit) }

func (c *Control) SubsystemEnabled() bool {
	return c.ctrl.IsSet(c.spec.ReadyMask)
}

// EnableSubsystem sets the calculation-enable bits.
func (c *Control) EnableSubsystem() error {
	if c.state == Running {
		return fmt.Errorf("enable subsystem: %w", ErrEngineBusy)
	}
	c.ctrl.Set(c.spec.SubsystemBits)
	if c.state == Idle {
		c.state = SubsystemEnabled
	}
	return nil
}

// DisableSubsystem clears the calculation-enable bits and drops any
// committed configuration.
func (c *Control) DisableSubsystem() {
	c.ctrl.Clear(c.spec.SubsystemBits)
	c.state = Idle
}

func (c *Control) IsBusy() bool { return c.spec.Busy() }

// CheckIdle must pass before any configuration word is written.
func (c *Control) CheckIdle() error {
	if c.spec.Busy() {
		return fmt.Errorf("configure: %w", ErrEngineBusy)
	}
	return nil
}

// MarkConfigured records that a legal configuration was committed.
func (c *Control) MarkConfigured() { c.state = Configured }

// Start checks the start preconditions in hardware order and then calls fire,
// which performs the actual go writes.
func (c *Control) Start(fire func()) error {
	if !c.SubsystemEnabled() {
		return fmt.Errorf("start: %w", ErrSubsystemNotEnabled)
	}
	if c.spec.Busy() {
		return fmt.Errorf("start: %w", ErrEngineBusy)
	}
	if c.state != Configured {
		return fmt.Errorf("start from %s: %w", c.state, ErrNotConfigured)
	}
	fire()
	c.state = Running
	return nil
}

// WaitCompletion polls count until it reaches expected. It has no timeout of
// its own; bound it with ctx.
func (c *Control) WaitCompletion(ctx context.Context, count func() uint32, expected uint32) error {
	if count() >= expected {
		c.finish()
		return nil
	}
	ticker := time.NewTicker(c.spec.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for %d completions (have %d): %w", expected, count(), ctx.Err())
		case <-ticker.C:
			if count() >= expected {
				c.finish()
				return nil
			}
		}
	}
}

func (c *Control) finish() {
	if c.state == Running {
		c.state = Done
	}
}

// Acknowledge retires a finished run. The committed configuration is
// consumed: the next Start needs a fresh Configure.
func (c *Control) Acknowledge() {
	if c.state != Done {
		return
	}
	c.state = Idle
	if c.SubsystemEnabled() {
		c.state = SubsystemEnabled
	}
}

// RequirePerf gates performance-counter operations.
func (c *Control) RequirePerf() error {
	if !c.spec.PerfSupported {
		return ErrUnsupported
	}
	return nil
}

func (c *Control) EnablePerf() error {
	if err := c.RequirePerf(); err != nil {
		return fmt.Errorf("enable performance counters: %w", err)
	}
	c.ctrl.Set(c.spec.PerfBit)
	return nil
}

func (c *Control) DisablePerf() {
	if c.spec.PerfSupported {
		c.ctrl.Clear(c.spec.PerfBit)
	}
}

// SetBits and ClearBits drive family specific enable bits in the control word.
func (c *Control) SetBits(mask uint32)   { c.ctrl.Set(mask) }
func (c *Control) ClearBits(mask uint32) { c.ctrl.Clear(mask) }

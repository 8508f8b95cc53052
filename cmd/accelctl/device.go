package main

import (
	"context"
	"fmt"
	"io"

	"github.com/23skdu/longbow-axi/internal/accel"
	"github.com/23skdu/longbow-axi/internal/config"
	"github.com/23skdu/longbow-axi/internal/conv"
	"github.com/23skdu/longbow-axi/internal/eltwise"
	"github.com/23skdu/longbow-axi/internal/logger"
	"github.com/23skdu/longbow-axi/internal/mmio"
	"github.com/23skdu/longbow-axi/internal/monitoring"
	"github.com/23skdu/longbow-axi/internal/pool"
	"github.com/23skdu/longbow-axi/internal/sim"
	"github.com/23skdu/longbow-axi/internal/sweep"
)

// target is the open handle for the family a job names. Exactly one of
// conv, pool and eltwise is set.
type target struct {
	family  string
	closer  io.Closer
	conv    *conv.Accelerator
	pool    *pool.Accelerator
	eltwise *eltwise.Accelerator
}

// openRegisters returns the register file behind dev. Sim cores are built
// with their default synthesis parameters.
func openRegisters(dev config.Device) (mmio.RegisterFile, io.Closer, error) {
	if dev.Backend == config.BackendDevMem {
		m, err := mmio.OpenDevMem(dev.Path, dev.Base, dev.Size)
		if err != nil {
			return nil, nil, err
		}
		return m, m, nil
	}
	switch dev.Family {
	case conv.Family:
		return sim.NewConv(sim.DefaultConvParams()), nil, nil
	case pool.Family:
		return sim.NewPool(sim.DefaultPoolParams()), nil, nil
	case eltwise.Family:
		return sim.NewEltwise(sim.DefaultEltwiseParams()), nil, nil
	}
	return nil, nil, fmt.Errorf("unknown family %q", dev.Family)
}

func openTarget(job *config.Job, log *logger.Logger) (*target, error) {
	rf, closer, err := openRegisters(job.Device)
	if err != nil {
		return nil, err
	}
	t := &target{family: job.Device.Family, closer: closer}
	switch t.family {
	case conv.Family:
		t.conv, err = conv.New(rf, conv.Options{PollInterval: job.PollInterval, Logger: log})
	case pool.Family:
		t.pool, err = pool.New(rf, pool.Options{PollInterval: job.PollInterval, Logger: log})
	case eltwise.Family:
		t.eltwise, err = eltwise.New(rf, eltwise.Options{PollInterval: job.PollInterval, Logger: log})
	}
	if err != nil {
		t.Close()
		return nil, err
	}
	return t, nil
}

func (t *target) Close() error {
	if t.closer == nil {
		return nil
	}
	return t.closer.Close()
}

func (t *target) capabilities() any {
	switch {
	case t.conv != nil:
		return t.conv.Capabilities()
	case t.pool != nil:
		return t.pool.Capabilities()
	}
	return t.eltwise.Capabilities()
}

// handle is the common surface the monitor polls.
func (t *target) handle() monitoring.Accelerator {
	switch {
	case t.conv != nil:
		return t.conv
	case t.pool != nil:
		return t.pool
	}
	return t.eltwise
}

// compiled is the offline result of one job: the plan where the family has
// one, and the decoded register fields.
type compiled struct {
	Family    string            `json:"family"`
	Plan      any               `json:"plan,omitempty"`
	Registers map[string]uint64 `json:"registers"`
	Words     int               `json:"words"`
}

func (t *target) compile(job *config.Job) (compiled, error) {
	out := compiled{Family: t.family}
	var (
		im     *accel.Image
		layout accel.Layout
		err    error
	)
	switch {
	case t.conv != nil:
		var p conv.Plan
		p, im, err = conv.Compile(t.conv.Capabilities(), *job.Conv)
		out.Plan, layout = p, conv.RegisterLayout
	case t.pool != nil:
		var p pool.Plan
		p, im, err = pool.Compile(t.pool.Capabilities(), *job.Pool)
		out.Plan, layout = p, pool.RegisterLayout
	default:
		im, err = eltwise.Compile(t.eltwise.Capabilities(), *job.Eltwise)
		layout = eltwise.RegisterLayout
	}
	if err != nil {
		return compiled{}, err
	}
	out.Registers = layout.Decode(im)
	out.Words = im.Len()
	return out, nil
}

// sweep tabulates the job's descriptor over g. Elementwise jobs have no
// shape to sweep.
func (t *target) sweep(job *config.Job, g sweep.Grid) ([]sweep.Point, error) {
	switch {
	case t.conv != nil:
		return sweep.Conv(t.conv.Capabilities(), *job.Conv, g), nil
	case t.pool != nil:
		return sweep.Pool(t.pool.Capabilities(), *job.Pool, g), nil
	}
	return nil, fmt.Errorf("sweep %s: %w", t.family, accel.ErrUnsupported)
}

// runResult reports one completed run.
type runResult struct {
	Family      string `json:"family"`
	Plan        any    `json:"plan,omitempty"`
	Completions uint32 `json:"completions"`
	Perf        any    `json:"perf,omitempty"`
	State       string `json:"state"`
}

// run drives the job through enable, configure, start and completion on
// the S2MM channel, then acknowledges the completion.
func (t *target) run(ctx context.Context, job *config.Job) (runResult, error) {
	res := runResult{Family: t.family}
	switch {
	case t.conv != nil:
		a := t.conv
		a.Enable()
		if err := a.EnableSubsystem(); err != nil {
			return res, err
		}
		if job.Perf {
			if err := a.EnablePerfCounters(); err != nil {
				return res, err
			}
		}
		p, err := a.Configure(*job.Conv)
		if err != nil {
			return res, err
		}
		res.Plan, res.Completions = p, uint32(p.ExpectedTransfers)
		if err := a.Start(); err != nil {
			return res, err
		}
		if err := a.WaitCompletion(ctx, accel.S2MM, res.Completions); err != nil {
			return res, err
		}
		if job.Perf {
			if res.Perf, err = a.PerfCounters(); err != nil {
				return res, err
			}
		}
		a.Acknowledge()
		a.ClearAllCompletions()
		res.State = a.State().String()

	case t.pool != nil:
		a := t.pool
		if err := a.EnableSubsystem(); err != nil {
			return res, err
		}
		if job.Perf {
			if err := a.EnablePerfCounters(); err != nil {
				return res, err
			}
		}
		p, err := a.Configure(*job.Pool)
		if err != nil {
			return res, err
		}
		res.Plan, res.Completions = p, uint32(p.ExpectedTransfers)
		if err := a.Start(); err != nil {
			return res, err
		}
		if err := a.WaitCompletion(ctx, accel.S2MM, res.Completions); err != nil {
			return res, err
		}
		if job.Perf {
			if res.Perf, err = a.PerfCounters(); err != nil {
				return res, err
			}
		}
		a.Acknowledge()
		a.ClearAllCompletions()
		res.State = a.State().String()

	default:
		a := t.eltwise
		a.Enable()
		if err := a.EnableSubsystem(); err != nil {
			return res, err
		}
		if job.Perf {
			if err := a.EnablePerfCounters(); err != nil {
				return res, err
			}
		}
		if err := a.Configure(*job.Eltwise); err != nil {
			return res, err
		}
		if err := a.Start(job.Buffers, job.Eltwise.StreamsSecond()); err != nil {
			return res, err
		}
		res.Completions = 1
		if err := a.WaitCompletion(ctx, accel.S2MM, res.Completions); err != nil {
			return res, err
		}
		var err error
		if job.Perf {
			if res.Perf, err = a.PerfCounters(); err != nil {
				return res, err
			}
		}
		a.Acknowledge()
		a.ClearAllCompletions()
		res.State = a.State().String()
	}
	return res, nil
}

// Command accelctl probes, plans and runs layers on the memory-mapped
// convolution, pooling and elementwise accelerators.
//
//	accelctl probe -job layer.yaml
//	accelctl plan  -job layer.yaml
//	accelctl run   -job layer.yaml
//	accelctl sweep -job layer.yaml -widths 320,640 -strides 1,2 -out sweep.arrow
//	accelctl serve -job layer.yaml -interval 10s
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"github.com/23skdu/longbow-axi/internal/accel"
	"github.com/23skdu/longbow-axi/internal/config"
	"github.com/23skdu/longbow-axi/internal/logger"
	"github.com/23skdu/longbow-axi/internal/monitoring"
	"github.com/23skdu/longbow-axi/internal/sweep"
)

const usage = `usage: accelctl <command> -job <file> [flags]

commands:
  probe   discover the core and print its capabilities
  plan    compile the job offline and print the plan and register fields
  run     configure, start and wait for one run of the job
  sweep   tabulate feasibility over a grid of shapes into an Arrow file
  serve   serve health, status and metrics, optionally publishing a sweep over Arrow Flight
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := execute(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "accelctl: %v\n", err)
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		os.Exit(1)
	}
}

var errUsage = errors.New("invalid usage")

func execute(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, args := args[0], args[1:]
	switch cmd {
	case "probe":
		return probeCmd(args, stdout)
	case "plan":
		return planCmd(args, stdout)
	case "run":
		return runCmd(ctx, args, stdout)
	case "sweep":
		return sweepCmd(args, stdout)
	case "serve":
		return serveCmd(ctx, args)
	}
	return fmt.Errorf("unknown command %q: %w", cmd, errUsage)
}

// jobFlags registers the flags every command shares.
func jobFlags(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	path := fs.String("job", "", "Path to the YAML job file")
	return fs, path
}

func parse(fs *flag.FlagSet, path *string, args []string) (*config.Job, error) {
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%s: %v: %w", fs.Name(), err, errUsage)
	}
	if *path == "" {
		return nil, fmt.Errorf("%s: -job is required: %w", fs.Name(), errUsage)
	}
	job, err := config.LoadJob(*path)
	if err != nil {
		return nil, err
	}
	logger.Setup(job.LogLevel, job.LogFormat)
	return job, nil
}

func open(job *config.Job) (*target, error) {
	return openTarget(job, logger.Log.With("backend", job.Device.Backend))
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

func probeCmd(args []string, stdout io.Writer) error {
	fs, path := jobFlags("probe")
	job, err := parse(fs, path, args)
	if err != nil {
		return err
	}
	t, err := open(job)
	if err != nil {
		return err
	}
	defer t.Close()
	return printJSON(stdout, t.capabilities())
}

func planCmd(args []string, stdout io.Writer) error {
	fs, path := jobFlags("plan")
	job, err := parse(fs, path, args)
	if err != nil {
		return err
	}
	t, err := open(job)
	if err != nil {
		return err
	}
	defer t.Close()

	out, err := t.compile(job)
	if err != nil {
		return fmt.Errorf("plan %s: %w", t.family, err)
	}
	return printJSON(stdout, out)
}

func runCmd(ctx context.Context, args []string, stdout io.Writer) error {
	fs, path := jobFlags("run")
	job, err := parse(fs, path, args)
	if err != nil {
		return err
	}
	t, err := open(job)
	if err != nil {
		return err
	}
	defer t.Close()

	ctx, cancel := context.WithTimeout(ctx, job.WaitTimeout)
	defer cancel()
	start := time.Now()
	res, err := t.run(ctx, job)
	if err != nil {
		return fmt.Errorf("run %s: %w", t.family, err)
	}
	logger.Log.Info("Run complete", "family", t.family, "elapsed", time.Since(start), "completions", res.Completions)
	return printJSON(stdout, res)
}

func sweepCmd(args []string, stdout io.Writer) error {
	fs, path := jobFlags("sweep")
	out := fs.String("out", "sweep.arrow", "Arrow IPC file to write")
	g := gridFlags(fs)
	job, err := parse(fs, path, args)
	if err != nil {
		return err
	}
	t, err := open(job)
	if err != nil {
		return err
	}
	defer t.Close()

	points, err := t.sweep(job, *g)
	if err != nil {
		return err
	}
	if err := sweep.WriteFile(*out, points); err != nil {
		return err
	}

	feasible := 0
	for _, p := range points {
		if p.Feasible {
			feasible++
		}
	}
	logger.Log.Info("Sweep written", "path", *out, "points", len(points), "feasible", feasible)
	return printJSON(stdout, map[string]any{"path": *out, "points": len(points), "feasible": feasible})
}

// gridFlags registers one comma-separated list flag per sweep axis.
func gridFlags(fs *flag.FlagSet) *sweep.Grid {
	g := &sweep.Grid{}
	axes := []struct {
		name string
		dst  *[]int
	}{
		{"widths", &g.Widths}, {"heights", &g.Heights}, {"channels", &g.Channels},
		{"kernels", &g.Kernels}, {"strides", &g.Strides}, {"rounds", &g.Rounds},
		{"row-widths", &g.RowWidths},
	}
	for _, a := range axes {
		fs.Func(a.name, "Comma-separated "+a.name+" to try", intList(a.dst))
	}
	return g
}

func intList(dst *[]int) func(string) error {
	return func(s string) error {
		for _, f := range strings.Split(s, ",") {
			v, err := strconv.Atoi(strings.TrimSpace(f))
			if err != nil {
				return err
			}
			*dst = append(*dst, v)
		}
		return nil
	}
}

// lockedHandle serializes the monitor's polling with the run loop.
type lockedHandle struct {
	mu *sync.Mutex
	h  monitoring.Accelerator
}

func (l lockedHandle) State() accel.State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.h.State()
}

func (l lockedHandle) IsBusy() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.h.IsBusy()
}

func serveCmd(ctx context.Context, args []string) error {
	fs, path := jobFlags("serve")
	addr := fs.String("addr", "", "Listen address, defaults to the job's metrics_addr")
	interval := fs.Duration("interval", 0, "Rerun the job at this interval; 0 only serves")
	flightAddr := fs.String("flight", "", "Publish the job's sweep over Arrow Flight on this address")
	g := gridFlags(fs)
	job, err := parse(fs, path, args)
	if err != nil {
		return err
	}
	if *addr == "" {
		*addr = job.MetricsAddr
	}
	t, err := open(job)
	if err != nil {
		return err
	}
	defer t.Close()

	var fsrv *sweep.FlightServer
	if *flightAddr != "" {
		points, err := t.sweep(job, *g)
		if err != nil {
			return err
		}
		fsrv = sweep.NewFlightServer()
		fsrv.Publish(t.family, points)
		if err := fsrv.Listen(*flightAddr); err != nil {
			return err
		}
		logger.Log.Info("Publishing sweep", "addr", fsrv.Addr().String(), "name", t.family, "points", len(points))
	}

	var mu sync.Mutex
	mon := monitoring.NewMonitor(logger.Log)
	mon.Register(t.family, t.family, t.capabilities(), lockedHandle{mu: &mu, h: t.handle()})

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		if err := mon.Start(*addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return mon.Stop(shutdown)
	})
	if fsrv != nil {
		eg.Go(fsrv.Serve)
		eg.Go(func() error {
			<-ctx.Done()
			fsrv.Shutdown()
			return nil
		})
	}
	if *interval > 0 {
		eg.Go(func() error {
			ticker := time.NewTicker(*interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
				}
				mu.Lock()
				runCtx, cancel := context.WithTimeout(ctx, job.WaitTimeout)
				_, err := t.run(runCtx, job)
				cancel()
				mu.Unlock()
				if err != nil {
					mon.RecordError(t.family, "run", err)
				}
			}
		})
	}
	return eg.Wait()
}

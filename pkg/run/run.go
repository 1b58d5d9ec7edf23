// Package run drives a benchmark end to end: target file setup, the
// layout phase that populates the selected blocks, and the measured read
// phase feeding the metrics tracker.
package run

import (
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/pepyakin/holebench/pkg/backend"
	"github.com/pepyakin/holebench/pkg/buf"
	"github.com/pepyakin/holebench/pkg/config"
	"github.com/pepyakin/holebench/pkg/layout"
	"github.com/pepyakin/holebench/pkg/metrics"
)

// Runner executes one benchmark run. The driving loop is single-threaded:
// it alternates between keeping the active backend full and draining its
// completions, so it can never deadlock on an empty backend.
type Runner struct {
	cfg *config.Config
	out io.Writer
}

func New(cfg *config.Config, out io.Writer) *Runner {
	return &Runner{cfg: cfg, out: out}
}

func (r *Runner) Run() error {
	cfg := r.cfg
	f, err := openTarget(cfg)
	if err != nil {
		return err
	}
	defer f.Close()

	offs := layout.Offsets(int64(cfg.Size), int64(cfg.BS), cfg.Ratio, cfg.Seed)
	if len(offs) == 0 {
		return fmt.Errorf("ratio %g selects no blocks to benchmark", cfg.Ratio)
	}

	opts := backend.Options{
		Jobs:    cfg.NumJobs,
		Backlog: cfg.Backlog,
		Depth:   cfg.Depth,
		Size:    int64(cfg.Size),
		Direct:  cfg.Direct,
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	junk := buf.NewJunk(int(cfg.BS), rng)
	defer junk.Close()

	if !cfg.SkipLayout {
		be, err := backend.New(cfg.LayoutPhaseEngine(), f, opts)
		if err != nil {
			return err
		}
		err = r.layoutPhase(be, offs, junk, rng)
		if cerr := be.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
	}

	be, err := backend.New(cfg.MeasureEngine(), f, opts)
	if err != nil {
		return err
	}
	err = r.measurePhase(be, offs)
	if cerr := be.Close(); err == nil {
		err = cerr
	}
	return err
}

// layoutPhase writes a junk-sampled payload to every generated offset.
// Payload sampling happens at submission, in offset order, so file
// contents are deterministic for a seed even though completions are not
// ordered.
func (r *Runner) layoutPhase(be backend.Backend, offs []int64, junk *buf.Junk, rng *rand.Rand) error {
	fmt.Fprintf(r.out, "layout: writing %d blocks\n", len(offs))
	next, done := 0, 0
	for done < len(offs) {
		for !be.Full() && next < len(offs) {
			be.Submit(backend.NewWrite(junk.Block(rng), offs[next]))
			next++
		}
		op := be.Wait()
		if op == nil {
			continue
		}
		if err := op.Err(); err != nil {
			return fmt.Errorf("layout: %w", err)
		}
		done++
		if done%1024 == 0 {
			fmt.Fprintf(r.out, "layout: %3.0f%%\n", float64(done)/float64(len(offs))*100)
		}
	}
	return nil
}

// measurePhase cycles reads over the populated offsets until the ramp-up
// plus run duration elapses, then drains whatever is still in flight.
// Buffers come from the pool and ride along as the Op's UserData handle;
// a buffer is released only once its completion has been consumed here.
func (r *Runner) measurePhase(be backend.Backend, offs []int64) error {
	pool := buf.NewPool(int(r.cfg.BS))
	trk := metrics.New(r.out)

	start := time.Now()
	trk.Start(start, time.Duration(r.cfg.RampTime))
	deadline := start.Add(time.Duration(r.cfg.RampTime + r.cfg.RunTime))

	cursor := 0
	for {
		for !be.Full() {
			idx, b := pool.Checkout()
			op := backend.NewRead(b, offs[cursor])
			op.UserData = uint64(idx)
			be.Submit(op)
			if cursor++; cursor == len(offs) {
				cursor = 0
			}
		}
		op := be.Wait()
		now := time.Now()
		if err := op.Err(); err != nil {
			return fmt.Errorf("measure: %w", err)
		}
		trk.Observe(op, now)
		pool.Release(int(op.UserData))
		if now.After(deadline) {
			break
		}
	}

	for {
		op := be.Wait()
		if op == nil {
			break
		}
		now := time.Now()
		if err := op.Err(); err != nil {
			return fmt.Errorf("measure: %w", err)
		}
		trk.Observe(op, now)
		pool.Release(int(op.UserData))
	}

	trk.Summary()
	pool.Close()
	return nil
}

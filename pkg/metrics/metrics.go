// Package metrics tracks rolling IOPS and latency distributions for the
// measurement phase and prints periodic console reports.
package metrics

import (
	"fmt"
	"io"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/pepyakin/holebench/pkg/backend"
)

const reportEvery = time.Second

// Tracker records two latency distributions per consumed completion: total
// latency (creation to consumption, so queueing plus execution) and
// execution latency (submission to retirement). Completions consumed
// during the ramp-up interval execute real I/O but are not recorded.
type Tracker struct {
	w io.Writer

	total *hdrhistogram.Histogram
	exec  *hdrhistogram.Histogram

	rampEnd    time.Time
	windowOps  int64
	windowFrom time.Time
	nextReport time.Time
}

// New creates a tracker reporting to w. Start must be called when the
// measurement phase begins.
func New(w io.Writer) *Tracker {
	return &Tracker{
		w:     w,
		total: hdrhistogram.New(1, 3600000000, 3),
		exec:  hdrhistogram.New(1, 3600000000, 3),
	}
}

// Start marks the beginning of the measurement phase; completions consumed
// before now+ramp are excluded from all statistics.
func (t *Tracker) Start(now time.Time, ramp time.Duration) {
	t.rampEnd = now.Add(ramp)
	t.windowFrom = t.rampEnd
	t.nextReport = t.rampEnd.Add(reportEvery)
}

// Observe consumes one completion. now is the consumption timestamp the
// driving loop already holds, so rotation of the rolling window costs no
// extra clock reads.
func (t *Tracker) Observe(op *backend.Op, now time.Time) {
	if now.Before(t.rampEnd) {
		return
	}
	t.record(t.total, now.Sub(op.Created))
	t.record(t.exec, op.Retired.Sub(op.Submitted))
	t.windowOps++
	if now.After(t.nextReport) {
		t.report(now)
	}
}

func (t *Tracker) record(h *hdrhistogram.Histogram, d time.Duration) {
	us := d.Microseconds()
	if us < 0 {
		us = 0
	}
	_ = h.RecordValue(us)
}

func (t *Tracker) report(now time.Time) {
	elapsed := now.Sub(t.windowFrom).Seconds()
	if elapsed > 0 {
		iops := float64(t.windowOps) / elapsed
		fmt.Fprintf(t.w, "iops=%8.0f  total p50=%s p99=%s  exec p50=%s p99=%s mean=%s\n",
			iops,
			us(t.total.ValueAtQuantile(50)), us(t.total.ValueAtQuantile(99)),
			us(t.exec.ValueAtQuantile(50)), us(t.exec.ValueAtQuantile(99)),
			us(int64(t.exec.Mean())))
	}
	t.windowOps = 0
	t.windowFrom = now
	t.nextReport = now.Add(reportEvery)
}

// Samples reports how many completions have been recorded post-ramp-up.
func (t *Tracker) Samples() int64 {
	return t.total.TotalCount()
}

// TotalAtQuantile exposes the total-latency distribution in microseconds.
func (t *Tracker) TotalAtQuantile(q float64) int64 {
	return t.total.ValueAtQuantile(q)
}

// ExecAtQuantile exposes the execution-latency distribution in microseconds.
func (t *Tracker) ExecAtQuantile(q float64) int64 {
	return t.exec.ValueAtQuantile(q)
}

// Summary prints the final distribution of both latencies.
func (t *Tracker) Summary() {
	if t.total.TotalCount() == 0 {
		fmt.Fprintln(t.w, "no samples recorded")
		return
	}
	fmt.Fprintf(t.w, "samples: %d\n", t.total.TotalCount())
	for _, row := range []struct {
		name string
		h    *hdrhistogram.Histogram
	}{
		{"total", t.total},
		{"exec", t.exec},
	} {
		fmt.Fprintf(t.w, "%-5s mean=%s p50=%s p90=%s p99=%s max=%s\n",
			row.name,
			us(int64(row.h.Mean())),
			us(row.h.ValueAtQuantile(50)),
			us(row.h.ValueAtQuantile(90)),
			us(row.h.ValueAtQuantile(99)),
			us(row.h.Max()))
	}
}

func us(v int64) string {
	return (time.Duration(v) * time.Microsecond).String()
}

package metrics

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pepyakin/holebench/pkg/backend"
)

func opWithLatency(created time.Time, queue, exec time.Duration) *backend.Op {
	op := &backend.Op{Kind: backend.OpRead, Created: created}
	op.Submitted = created.Add(queue)
	op.Retired = op.Submitted.Add(exec)
	return op
}

func TestTrackerRecordsBothLatencies(t *testing.T) {
	var out bytes.Buffer
	trk := New(&out)
	base := time.Now()
	trk.Start(base, 0)

	for i := 0; i < 100; i++ {
		op := opWithLatency(base, 2*time.Millisecond, 5*time.Millisecond)
		trk.Observe(op, op.Retired.Add(time.Millisecond))
	}

	require.EqualValues(t, 100, trk.Samples())
	// total = queueing + execution + consumption delay = 8ms; exec = 5ms.
	// hdrhistogram keeps 3 significant figures.
	require.InDelta(t, 8000, trk.TotalAtQuantile(50), 20)
	require.InDelta(t, 5000, trk.ExecAtQuantile(50), 20)
}

func TestTrackerExcludesRampUp(t *testing.T) {
	var out bytes.Buffer
	trk := New(&out)
	base := time.Now()
	trk.Start(base, time.Minute)

	op := opWithLatency(base, time.Millisecond, time.Millisecond)
	trk.Observe(op, base.Add(5*time.Millisecond))
	require.Zero(t, trk.Samples(), "ramp-up completions must not be recorded")

	late := opWithLatency(base.Add(2*time.Minute), time.Millisecond, time.Millisecond)
	trk.Observe(late, late.Retired)
	require.EqualValues(t, 1, trk.Samples())
}

func TestTrackerPeriodicReport(t *testing.T) {
	var out bytes.Buffer
	trk := New(&out)
	base := time.Now()
	trk.Start(base, 0)

	op := opWithLatency(base, time.Millisecond, time.Millisecond)
	trk.Observe(op, base.Add(10*time.Millisecond))
	require.Empty(t, out.String(), "no report before the window elapses")

	op2 := opWithLatency(base.Add(time.Second), time.Millisecond, time.Millisecond)
	trk.Observe(op2, base.Add(1500*time.Millisecond))
	require.Contains(t, out.String(), "iops=")
}

func TestTrackerClampsNegativeDeltas(t *testing.T) {
	var out bytes.Buffer
	trk := New(&out)
	base := time.Now()
	trk.Start(base, 0)

	op := &backend.Op{Kind: backend.OpRead, Created: base}
	op.Submitted = base.Add(time.Millisecond)
	op.Retired = base // clock skew between stamping threads
	trk.Observe(op, base.Add(time.Millisecond))

	require.EqualValues(t, 1, trk.Samples())
	require.GreaterOrEqual(t, trk.ExecAtQuantile(100), int64(0))
}

func TestTrackerSummary(t *testing.T) {
	var out bytes.Buffer
	trk := New(&out)
	trk.Summary()
	require.Contains(t, out.String(), "no samples")

	out.Reset()
	base := time.Now()
	trk.Start(base, 0)
	op := opWithLatency(base, time.Millisecond, 3*time.Millisecond)
	trk.Observe(op, op.Retired)
	trk.Summary()
	require.Contains(t, out.String(), "samples: 1")
	require.Contains(t, out.String(), "total")
	require.Contains(t, out.String(), "exec")
}

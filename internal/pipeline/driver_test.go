package pipeline

import (
	"os"
	"testing"
	"time"

	"github.com/traitcapture/timestream/internal/archive"
	"github.com/traitcapture/timestream/internal/errs"
	"github.com/traitcapture/timestream/internal/testutil"
	"github.com/traitcapture/timestream/internal/timeutil"
)

var driverBase = time.Date(2026, 3, 1, 9, 0, 0, 0, time.Local)

func driverFixture(t *testing.T, n int) (*archive.TimeStream, []time.Time) {
	t.Helper()
	var times []time.Time
	for i := 0; i < n; i++ {
		times = append(times, driverBase.Add(time.Duration(i)*time.Hour))
	}
	ts := testutil.BuildArchive(t, t.TempDir(), "drv", times)
	return ts, times
}

func waitDone(t *testing.T, d *Driver) {
	t.Helper()
	select {
	case <-d.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("driver did not finish")
	}
}

func TestDriverProcessesAllFrames(t *testing.T) {
	ts, times := driverFixture(t, 3)
	var seen []time.Time
	st := &stubStage{
		name:    "record",
		expects: []string{"*archive.Frame"},
		returns: []string{"*archive.Frame"},
		run: func(ctx *Context, in Values) (Values, error) {
			f := in[0].(*archive.Frame)
			seen = append(seen, f.Timestamp)
			return in, nil
		},
	}
	e, err := NewExecutor(st)
	if err != nil {
		t.Fatal(err)
	}
	trav := archive.NewTraverser(ts, archive.WindowOptions{})
	d := NewDriver(e, trav, timeutil.NewMockClock(driverBase))

	go d.Run(NewContext())
	waitDone(t, d)

	if d.FramesDone.Load() != 3 {
		t.Errorf("FramesDone = %d, want 3", d.FramesDone.Load())
	}
	if len(seen) != 3 {
		t.Fatalf("stage ran %d times, want 3", len(seen))
	}
	for i, at := range seen {
		if !at.Equal(times[i]) {
			t.Errorf("frame %d = %v, want %v (index order)", i, at, times[i])
		}
	}
}

func TestDriverStopAtFrameBoundary(t *testing.T) {
	ts, _ := driverFixture(t, 5)
	var d *Driver
	st := &stubStage{
		name:    "stopper",
		expects: []string{"*archive.Frame"},
		returns: []string{"*archive.Frame"},
		run: func(ctx *Context, in Values) (Values, error) {
			d.Stop()
			return in, nil
		},
	}
	e, err := NewExecutor(st)
	if err != nil {
		t.Fatal(err)
	}
	trav := archive.NewTraverser(ts, archive.WindowOptions{})
	d = NewDriver(e, trav, timeutil.NewMockClock(driverBase))

	go d.Run(NewContext())
	waitDone(t, d)

	if got := d.FramesDone.Load(); got != 1 {
		t.Errorf("FramesDone = %d, want 1 (stop honoured at the boundary)", got)
	}
}

func TestDriverStopBeforeRun(t *testing.T) {
	ts, _ := driverFixture(t, 3)
	calls := 0
	st := &stubStage{
		name:    "counter",
		expects: []string{"*archive.Frame"},
		returns: []string{"*archive.Frame"},
		run: func(ctx *Context, in Values) (Values, error) {
			calls++
			return in, nil
		},
	}
	e, err := NewExecutor(st)
	if err != nil {
		t.Fatal(err)
	}
	trav := archive.NewTraverser(ts, archive.WindowOptions{})
	d := NewDriver(e, trav, timeutil.NewMockClock(driverBase))

	// An interrupt can land before the run goroutine is scheduled.
	d.Stop()
	go d.Run(NewContext())
	waitDone(t, d)

	if calls != 0 {
		t.Errorf("stage ran %d times after a pre-run Stop, want 0", calls)
	}
	if got := d.FramesDone.Load(); got != 0 {
		t.Errorf("FramesDone = %d, want 0", got)
	}
}

func TestDriverStageFailureContinues(t *testing.T) {
	ts, _ := driverFixture(t, 3)
	calls := 0
	st := &stubStage{
		name:    "flaky",
		expects: []string{"*archive.Frame"},
		returns: []string{"*archive.Frame"},
		run: func(ctx *Context, in Values) (Values, error) {
			calls++
			if calls == 2 {
				return nil, errs.Contractf("flaky", "scripted failure")
			}
			return in, nil
		},
	}
	e, err := NewExecutor(st)
	if err != nil {
		t.Fatal(err)
	}
	trav := archive.NewTraverser(ts, archive.WindowOptions{})
	d := NewDriver(e, trav, timeutil.NewMockClock(driverBase))

	go d.Run(NewContext())
	waitDone(t, d)

	if calls != 3 {
		t.Errorf("stage ran %d times, want 3 (failure skips one frame only)", calls)
	}
	if got := d.FramesDone.Load(); got != 2 {
		t.Errorf("FramesDone = %d, want 2", got)
	}
}

func TestDriverResolutionFailureBecomesSentinel(t *testing.T) {
	ts, _ := driverFixture(t, 3)
	trav := archive.NewTraverser(ts, archive.WindowOptions{})
	// Index built, now delete the middle image so resolution fails.
	f, err := trav.FrameAtIndex(1)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(f.Path()); err != nil {
		t.Fatal(err)
	}

	var sentinels int
	var frames int
	st := &stubStage{
		name:    "classify",
		expects: []string{"*archive.Frame"},
		returns: []string{"*archive.Frame"},
		run: func(ctx *Context, in Values) (Values, error) {
			if _, ok := in[0].(*errs.ResolutionError); ok {
				sentinels++
			} else {
				frames++
			}
			return in, nil
		},
	}
	e, err := NewExecutor(st)
	if err != nil {
		t.Fatal(err)
	}
	d := NewDriver(e, trav, timeutil.NewMockClock(driverBase))

	go d.Run(NewContext())
	waitDone(t, d)

	if sentinels != 1 || frames != 2 {
		t.Errorf("sentinels = %d frames = %d, want 1 and 2", sentinels, frames)
	}
}

func TestDriverProgressAndRunID(t *testing.T) {
	ts, _ := driverFixture(t, 2)
	st := passThrough("noop", "*archive.Frame")
	st.run = func(ctx *Context, in Values) (Values, error) { return in, nil }
	e, err := NewExecutor(st)
	if err != nil {
		t.Fatal(err)
	}
	trav := archive.NewTraverser(ts, archive.WindowOptions{})
	d := NewDriver(e, trav, timeutil.NewMockClock(driverBase))
	if d.RunID == "" {
		t.Error("driver should mint a run identifier")
	}

	go d.Run(NewContext())
	waitDone(t, d)

	var got []int
	for {
		select {
		case i := <-d.Progress():
			got = append(got, i)
			continue
		default:
		}
		break
	}
	if len(got) != 2 || got[0] != 0 || got[1] != 1 {
		t.Errorf("progress = %v, want [0 1]", got)
	}
}

package pipeline

import (
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/traitcapture/timestream/internal/archive"
	"github.com/traitcapture/timestream/internal/errs"
	"github.com/traitcapture/timestream/internal/timeutil"
)

// Driver iterates every timestamp of a traverser in index order and
// runs the executor over each resolved frame. One frame is fully
// processed before the next begins; predecessor chaining across frames
// is race-free by construction.
//
// Progress and completion are delivered as fire-and-forget
// notifications: the driver never waits for an observer to consume a
// signal before proceeding.
type Driver struct {
	// RunID identifies this run in logs and persistence.
	RunID string

	exec  *Executor
	trav  *archive.Traverser
	clock timeutil.Clock

	running atomic.Bool

	// progress receives the index of each frame as it starts
	// processing; done is closed exactly once when the loop ends,
	// whether it finished naturally or was cancelled.
	progress chan int
	done     chan struct{}

	// FramesDone counts frames that completed the full stage list.
	FramesDone atomic.Int64
}

// NewDriver creates a driver over the executor and traverser. A nil
// clock selects the real clock.
func NewDriver(exec *Executor, trav *archive.Traverser, clock timeutil.Clock) *Driver {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	d := &Driver{
		RunID:    uuid.New().String(),
		exec:     exec,
		trav:     trav,
		clock:    clock,
		progress: make(chan int, 64),
		done:     make(chan struct{}),
	}
	// Armed at construction, not in Run, so a Stop issued before the
	// run goroutine starts is not erased.
	d.running.Store(true)
	return d
}

// Progress returns the per-frame notification stream: one frame index
// per timepoint the driver picks up. Sends are non-blocking; a slow
// observer misses notifications rather than stalling the run.
func (d *Driver) Progress() <-chan int { return d.progress }

// Done returns the terminal completion signal, closed when the run
// ends for any reason.
func (d *Driver) Done() <-chan struct{} { return d.done }

// Stop requests cooperative cancellation. It is checked at frame
// boundaries only; a stage already running completes first. A Stop
// issued before Run keeps any frame from starting.
func (d *Driver) Stop() { d.running.Store(false) }

// Run processes every indexed timestamp. Per-frame failures are logged
// and the loop continues; only the cancellation flag ends it early.
// Completion always closes Done.
func (d *Driver) Run(ctx *Context) {
	defer close(d.done)

	started := d.clock.Now()
	stamps := d.trav.Timestamps()
	diagf("run %s: %d timepoints", d.RunID, len(stamps))

	for i := range stamps {
		if !d.running.Load() {
			diagf("run %s: cancelled after %d frames", d.RunID, i)
			break
		}
		select {
		case d.progress <- i:
		default:
		}

		input := d.resolve(i)
		ctx.Set(KeyFrame, input)

		if _, err := d.exec.Run(ctx, input); err != nil {
			opsf("run %s: frame %s abandoned: %v",
				d.RunID, archive.FormatTimestamp(stamps[i]), err)
		} else {
			d.FramesDone.Add(1)
		}
	}

	diagf("run %s: done in %v", d.RunID, d.clock.Since(started))
}

// resolve materializes the frame at index i. A resolution failure is
// captured as a typed error value and substituted as the pipeline
// input, so downstream stages can detect and special-case it.
func (d *Driver) resolve(i int) interface{} {
	f, err := d.trav.FrameAtIndex(i)
	if err != nil {
		return &errs.ResolutionError{Err: err}
	}
	if _, err := f.Pixels(); err != nil {
		if rerr, ok := err.(*errs.ResolutionError); ok {
			return rerr
		}
		return &errs.ResolutionError{Timestamp: f.Timestamp, Path: f.Path(), Err: err}
	}
	// Detach from the input archive: stages must not write through
	// the frame's back-reference, and the explicit path keeps lazy
	// reads working.
	f.SetArchive(nil)
	tracef("resolved frame %s (%s)", archive.FormatTimestamp(f.Timestamp), f.Path())
	return f
}

// NewRunID returns a fresh run identifier.
func NewRunID() string { return uuid.New().String() }

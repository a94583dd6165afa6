package archive

import (
	"time"

	"github.com/traitcapture/timestream/internal/errs"
)

// ErrNoTimestamps is returned by cursor operations on a traverser whose
// filtered index came up empty.
var ErrNoTimestamps = errs.Configf("traverser", "no qualifying timestamps in window")

// Traverser is a sparse, filtered index over the timestamps actually
// present in an archive, with a cyclic cursor: Next and Prev wrap
// modulo the index length in both directions, so a traverser is never
// "out of range".
type Traverser struct {
	ts     *TimeStream
	index  []time.Time
	offset int
}

// NewTraverser builds the index: every timepoint in the clamped window
// at the effective interval whose image file exists on disk, minus
// explicit exclusions.
func NewTraverser(ts *TimeStream, o WindowOptions) *Traverser {
	tr := &Traverser{ts: ts}
	for _, t := range ts.timepoints(o) {
		if ts.fs.Exists(ts.imagePath(t, 0)) {
			tr.index = append(tr.index, t)
		}
	}
	return tr
}

// Len returns the number of indexed timestamps.
func (tr *Traverser) Len() int { return len(tr.index) }

// Timestamps returns the index in chronological order.
func (tr *Traverser) Timestamps() []time.Time {
	out := make([]time.Time, len(tr.index))
	copy(out, tr.index)
	return out
}

// Offset returns the current cursor position.
func (tr *Traverser) Offset() int { return tr.offset }

// Curr resolves the frame at the cursor, the same way archive
// point-lookup does: snapshot cache first, else a bare frame, with the
// archive back-reference, path and metadata wired.
func (tr *Traverser) Curr() (*Frame, error) {
	if len(tr.index) == 0 {
		return nil, ErrNoTimestamps
	}
	t := tr.index[tr.offset]
	f := tr.ts.FrameAt(t)
	f.SetPath(tr.ts.imagePath(t, 0))
	return f, nil
}

// Next advances the cursor with wraparound and resolves the frame
// there.
func (tr *Traverser) Next() (*Frame, error) {
	if len(tr.index) == 0 {
		return nil, ErrNoTimestamps
	}
	tr.offset = (tr.offset + 1) % len(tr.index)
	return tr.Curr()
}

// Prev retreats the cursor with wraparound and resolves the frame
// there.
func (tr *Traverser) Prev() (*Frame, error) {
	if len(tr.index) == 0 {
		return nil, ErrNoTimestamps
	}
	tr.offset = (tr.offset - 1 + len(tr.index)) % len(tr.index)
	return tr.Curr()
}

// Seek positions the cursor at index i modulo the index length.
func (tr *Traverser) Seek(i int) error {
	if len(tr.index) == 0 {
		return ErrNoTimestamps
	}
	tr.offset = ((i % len(tr.index)) + len(tr.index)) % len(tr.index)
	return nil
}

// FrameAtIndex resolves the frame at index i without moving the cursor.
func (tr *Traverser) FrameAtIndex(i int) (*Frame, error) {
	if i < 0 || i >= len(tr.index) {
		return nil, errs.Configf("traverser", "index %d out of range [0,%d)", i, len(tr.index))
	}
	t := tr.index[i]
	f := tr.ts.FrameAt(t)
	f.SetPath(tr.ts.imagePath(t, 0))
	return f, nil
}

// Archive returns the backing archive.
func (tr *Traverser) Archive() *TimeStream { return tr.ts }

package archive

import (
	"fmt"
	"time"

	"github.com/traitcapture/timestream/internal/errs"
	"github.com/traitcapture/timestream/internal/pot"
	"github.com/traitcapture/timestream/internal/raster"
)

// Frame is one timestamped image in a time stream. Pixels are loaded
// lazily on first access; the archive back-reference is used only to
// resolve paths and metadata, it never owns the archive.
type Frame struct {
	Timestamp time.Time

	// Data holds per-frame metadata persisted in the image side-table.
	Data map[string]interface{}

	// Pots is the pot matrix computed for this frame, if any.
	Pots *pot.Matrix

	// Records are pot snapshots restored from the frame cache. They
	// let a later run reuse prior pot locations and features without
	// reloading pixels.
	Records []PotRecord

	ts     *TimeStream
	path   string
	pixels *raster.Buffer
	gap    bool
}

// PotRecord is the serialized form of one pot's state.
type PotRecord struct {
	ID       string                 `json:"id"`
	Rect     [4]int                 `json:"rect"`
	Features map[string]float64     `json:"features,omitempty"`
	Meta     map[string]interface{} `json:"meta,omitempty"`
}

// NewFrame creates a bare frame for a timestamp.
func NewFrame(t time.Time) *Frame {
	return &Frame{Timestamp: t, Data: map[string]interface{}{}}
}

// GapFrame creates the placeholder yielded for a missing timepoint in
// gap-preserving traversal. It carries a non-nil empty pixel buffer and
// reports Gap() true, so callers can tell "missing image" apart from a
// decoded zero-size image.
func GapFrame(t time.Time) *Frame {
	f := NewFrame(t)
	f.pixels = &raster.Buffer{}
	f.gap = true
	return f
}

// Gap reports whether the frame is a gap placeholder.
func (f *Frame) Gap() bool { return f.gap }

// Archive returns the owning time stream, or nil for a detached frame.
func (f *Frame) Archive() *TimeStream { return f.ts }

// SetArchive attaches the frame to an archive. Any manually set path is
// invalidated so it gets re-derived against the new archive; detaching
// (nil) leaves the path untouched so an already-resolved frame keeps
// working standalone.
func (f *Frame) SetArchive(ts *TimeStream) {
	if ts != nil {
		f.path = ""
	}
	f.ts = ts
}

// SetPath overrides the frame's on-disk location.
func (f *Frame) SetPath(p string) { f.path = p }

// Path resolves the frame's on-disk location: an explicit override
// first, otherwise derived from the archive layout. Empty when neither
// is available.
func (f *Frame) Path() string {
	if f.path != "" {
		return f.path
	}
	if f.ts == nil || f.ts.Version != 1 || f.Timestamp.IsZero() {
		return ""
	}
	f.path = f.ts.imagePath(f.Timestamp, 0)
	return f.path
}

// Pixels returns the frame's pixel buffer, reading it from disk on
// first access. Reading requires a resolvable path.
func (f *Frame) Pixels() (*raster.Buffer, error) {
	if f.pixels != nil {
		return f.pixels, nil
	}
	p := f.Path()
	if p == "" {
		return nil, &errs.ResolutionError{Timestamp: f.Timestamp, Err: fmt.Errorf("frame has no path to read from")}
	}
	codec := Codec(StdCodec{})
	if f.ts != nil && f.ts.codec != nil {
		codec = f.ts.codec
	}
	px, err := codec.Read(p)
	if err != nil {
		return nil, &errs.ResolutionError{Timestamp: f.Timestamp, Path: p, Err: err}
	}
	f.pixels = px
	return f.pixels, nil
}

// SetPixels replaces the frame's pixel buffer.
func (f *Frame) SetPixels(b *raster.Buffer) {
	f.pixels = b
	f.gap = false
}

// HasPixels reports whether pixels are already materialized.
func (f *Frame) HasPixels() bool { return f.pixels != nil }

// Strip drops the pixel buffer, keeping metadata and pot records. Used
// before writing the frame snapshot.
func (f *Frame) Strip() {
	f.pixels = nil
}

// Write persists the frame through its archive under the given
// overwrite policy. The frame must be attached to an archive.
func (f *Frame) Write(mode Overwrite) error {
	if f.ts == nil {
		return errs.Configf("archive", "frame %s is not attached to an archive",
			FormatTimestamp(f.Timestamp))
	}
	return f.ts.WriteImage(f, mode)
}

// PotRecords serializes the frame's pot matrix (falling back to any
// restored records).
func (f *Frame) PotRecords() []PotRecord {
	if f.Pots == nil {
		return f.Records
	}
	recs := make([]PotRecord, 0, f.Pots.Len())
	for _, id := range f.Pots.IDs() {
		h, err := f.Pots.Pot(id)
		if err != nil {
			continue
		}
		rec := PotRecord{ID: id, Rect: h.Region().Corners(), Features: h.Features()}
		recs = append(recs, rec)
	}
	return recs
}

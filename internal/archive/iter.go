package archive

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// WindowOptions bounds a traversal window over an archive. Zero values
// fall back to the archive-wide bounds and interval. StartHour/EndHour
// restrict each day to a time-of-day window, expressed as offsets from
// midnight.
type WindowOptions struct {
	Start     time.Time
	End       time.Time
	Interval  time.Duration
	StartHour *time.Duration
	EndHour   *time.Duration

	// Exclude lists formatted timestamps (FormatTimestamp) to skip,
	// e.g. timepoints already processed by a previous run.
	Exclude []string
}

// clamp resolves the effective window against the archive bounds.
func (o WindowOptions) clamp(ts *TimeStream) (start, end time.Time, interval time.Duration) {
	start, end, interval = o.Start, o.End, o.Interval
	if start.IsZero() || start.Before(ts.Start) {
		start = ts.Start
	}
	if end.IsZero() || end.After(ts.End) {
		end = ts.End
	}
	if interval == 0 {
		interval = ts.Interval
	}
	if o.StartHour != nil {
		start = dayStart(start).Add(*o.StartHour)
	}
	if o.EndHour != nil {
		end = dayStart(end).Add(*o.EndHour)
	}
	return start, end, interval
}

// inHourWindow applies the per-day hour window to one timepoint.
func (o WindowOptions) inHourWindow(t time.Time) bool {
	if o.StartHour != nil && t.Before(dayStart(t).Add(*o.StartHour)) {
		return false
	}
	if o.EndHour != nil && t.After(dayStart(t).Add(*o.EndHour)) {
		return false
	}
	return true
}

func (o WindowOptions) excluded(t time.Time) bool {
	key := FormatTimestamp(t)
	for _, e := range o.Exclude {
		if e == key {
			return true
		}
	}
	return false
}

func dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// timepoints enumerates every candidate timestamp in the clamped window
// at the effective interval, applying hour-window and exclusion
// filtering but not existence checks.
func (ts *TimeStream) timepoints(o WindowOptions) []time.Time {
	start, end, interval := o.clamp(ts)
	if interval <= 0 || end.Before(start) {
		return nil
	}
	var out []time.Time
	for t := start; !t.After(end); t = t.Add(interval) {
		if o.excluded(t) || !o.inHourWindow(t) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// IterTimepoints walks the window in chronological order, resolving one
// frame per timepoint. A timepoint whose image file is absent is
// dropped when removeGaps is true, otherwise yielded as an explicit gap
// placeholder (Frame.Gap() reports true).
func (ts *TimeStream) IterTimepoints(o WindowOptions, removeGaps bool) []*Frame {
	var frames []*Frame
	for _, t := range ts.timepoints(o) {
		p := ts.imagePath(t, 0)
		if !ts.fs.Exists(p) {
			if removeGaps {
				continue
			}
			frames = append(frames, GapFrame(t))
			continue
		}
		f := ts.FrameAt(t)
		f.SetPath(p)
		frames = append(frames, f)
	}
	return frames
}

// IterFiles enumerates every image file carrying the archive extension,
// in path order, skipping excluded timestamps. Unlike IterTimepoints it
// keys off the files actually present rather than the sampling grid.
func (ts *TimeStream) IterFiles(exclude []string) ([]*Frame, error) {
	var paths []string
	err := filepath.WalkDir(ts.path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if filepath.Base(p) == "_data" && p != ts.path {
				return filepath.SkipDir
			}
			return nil
		}
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(p), "."))
		if !strings.EqualFold(ext, ts.Extension) {
			return nil
		}
		paths = append(paths, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	var frames []*Frame
	for _, p := range paths {
		t, perr := ParseTimePath(p)
		if perr != nil {
			continue
		}
		key := FormatTimestamp(t)
		skip := false
		for _, e := range exclude {
			if e == key {
				skip = true
				break
			}
		}
		if skip {
			continue
		}
		f := ts.FrameAt(t)
		f.SetPath(p)
		frames = append(frames, f)
	}
	return frames, nil
}

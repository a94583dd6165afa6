// Package archive implements the versioned on-disk store of timestamped
// frames: creation, loading with manifest inference, lazy pixel access,
// overwrite-policy writes, JSON metadata side-tables, and traversal.
//
// On-disk layout (format version 1):
//
//	<root>/
//	  _data/
//	    image_data.json        per-timestamp frame metadata
//	    timestream_data.json   whole-archive metadata
//	    <date dirs>/<name>_<ts>_00.json   frame snapshots
//	  <YYYY>/<YYYY_MM>/<YYYY_MM_DD>/<YYYY_MM_DD_HH>/<name>_<ts>_00.<ext>
package archive

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/traitcapture/timestream/internal/errs"
	"github.com/traitcapture/timestream/internal/fsutil"
)

// Overwrite selects the conflict policy for WriteImage.
type Overwrite int

const (
	// Skip silently leaves an existing image untouched.
	Skip Overwrite = iota
	// Increment bumps the subsecond counter until a free slot is
	// found, up to a bounded number of attempts.
	Increment
	// Clobber replaces the existing image unconditionally.
	Clobber
	// Raise fails the write if the slot is occupied.
	Raise
)

// ParseOverwrite maps the configuration strings to a policy.
func ParseOverwrite(s string) (Overwrite, error) {
	switch s {
	case "skip":
		return Skip, nil
	case "increment":
		return Increment, nil
	case "overwrite":
		return Clobber, nil
	case "raise":
		return Raise, nil
	}
	return 0, errs.Configf("archive", "invalid overwrite mode %q", s)
}

// maxIncrementAttempts bounds the Increment policy's search for a free
// subsecond slot.
const maxIncrementAttempts = 100

// TimeStream is the on-disk root of a time series of frames.
type TimeStream struct {
	// Version is the archive format version. Only 1 is implemented;
	// version 2 is recognised and rejected.
	Version int

	Name      string
	Extension string
	ImageType string
	Start     time.Time
	End       time.Time
	Interval  time.Duration

	// ImageData maps formatted timestamps to per-frame metadata.
	ImageData map[string]map[string]interface{}
	// Data is whole-archive metadata.
	Data map[string]interface{}

	path         string
	dataDir      string
	imageDBPath  string
	streamDBPath string

	codec Codec
	fs    fsutil.FileSystem
}

func newTimeStream() *TimeStream {
	return &TimeStream{
		ImageData: map[string]map[string]interface{}{},
		Data:      map[string]interface{}{},
		codec:     StdCodec{},
		fs:        fsutil.OSFileSystem{},
	}
}

// CreateOptions configures Create. Zero values select defaults.
type CreateOptions struct {
	Version   int    // default 1
	Extension string // default "png"
	ImageType string // default inferred from Extension
	Name      string // default base of path
	Start     time.Time
	End       time.Time
	Interval  time.Duration
	Codec     Codec
	FS        fsutil.FileSystem
}

// Create initializes an empty archive rooted at path. The parent
// directory must already exist; for version 1 the root itself is
// created if absent. Metadata files are written lazily on first
// persist.
func Create(path string, o CreateOptions) (*TimeStream, error) {
	ts := newTimeStream()
	if o.Codec != nil {
		ts.codec = o.Codec
	}
	if o.FS != nil {
		ts.fs = o.FS
	}

	if o.Version == 0 {
		o.Version = 1
	}
	if o.Version != 1 && o.Version != 2 {
		return nil, errs.Configf("archive", "invalid version %d, must be 1 or 2", o.Version)
	}
	ts.Version = o.Version

	path = filepath.Clean(path)
	if !ts.fs.IsDir(filepath.Dir(path)) {
		return nil, errs.Configf("archive", "cannot create %s: parent directory does not exist", path)
	}
	if !ts.fs.Exists(path) && ts.Version == 1 {
		if err := ts.fs.MkdirAll(path, 0o755); err != nil {
			return nil, &errs.PersistError{Path: path, Err: err}
		}
	}
	if err := ts.setPath(path); err != nil {
		return nil, err
	}

	if o.Extension == "" {
		o.Extension = "png"
	}
	ts.Extension = o.Extension
	if o.ImageType != "" {
		ts.ImageType = o.ImageType
	} else {
		t, err := TypeForExtension(o.Extension)
		if err != nil {
			return nil, err
		}
		ts.ImageType = t
	}

	name := o.Name
	if name == "" {
		name = filepath.Base(path)
	}
	if err := ts.SetName(name); err != nil {
		return nil, err
	}

	now := time.Now()
	ts.Start, ts.End = o.Start, o.End
	if ts.Start.IsZero() {
		ts.Start = now
	}
	if ts.End.IsZero() {
		ts.End = now
	}
	ts.Interval = o.Interval
	return ts, nil
}

// LoadOptions configures Load.
type LoadOptions struct {
	Version int // 0 = infer
	Codec   Codec
	FS      fsutil.FileSystem
}

// Load opens an existing archive, reading both metadata side-tables
// (each defaults to empty if unreadable) and inferring the manifest
// from the directory contents.
func Load(path string, o LoadOptions) (*TimeStream, error) {
	ts := newTimeStream()
	if o.Codec != nil {
		ts.codec = o.Codec
	}
	if o.FS != nil {
		ts.fs = o.FS
	}
	ts.Version = o.Version

	path = filepath.Clean(path)
	if !ts.fs.Exists(path) {
		return nil, errs.Configf("archive", "timestream at %s does not exist", path)
	}
	if err := ts.setPath(path); err != nil {
		return nil, err
	}
	ts.readSideTables()
	if err := ts.readManifest(); err != nil {
		return nil, err
	}
	return ts, nil
}

// Path returns the archive root.
func (ts *TimeStream) Path() string { return ts.path }

// DataDir returns the metadata directory beneath the root.
func (ts *TimeStream) DataDir() string { return ts.dataDir }

// setPath stores the root path and derives the metadata paths. It is
// idempotent and always produces the _data subdirectory when the root
// exists.
func (ts *TimeStream) setPath(path string) error {
	path = strings.TrimRight(filepath.Clean(path), string(os.PathSeparator))
	ts.path = path
	ts.dataDir = filepath.Join(path, "_data")
	if ts.fs.Exists(path) && !ts.fs.IsDir(ts.dataDir) {
		if err := ts.fs.MkdirAll(ts.dataDir, 0o755); err != nil {
			return &errs.PersistError{Path: ts.dataDir, Err: err}
		}
	}
	ts.imageDBPath = filepath.Join(ts.dataDir, "image_data.json")
	ts.streamDBPath = filepath.Join(ts.dataDir, "timestream_data.json")
	return nil
}

// SetName validates and sets the archive name. The underscore is
// reserved as the filename field separator.
func (ts *TimeStream) SetName(name string) error {
	if strings.Contains(name, "_") {
		return errs.Configf("archive", "timestream name %q cannot contain '_'", name)
	}
	ts.Name = name
	return nil
}

// readSideTables loads both JSON side-tables, defaulting each to empty
// on any read or parse failure.
func (ts *TimeStream) readSideTables() {
	ts.ImageData = map[string]map[string]interface{}{}
	ts.Data = map[string]interface{}{}
	if raw, err := ts.fs.ReadFile(ts.imageDBPath); err == nil {
		if err := json.Unmarshal(raw, &ts.ImageData); err != nil {
			ts.ImageData = map[string]map[string]interface{}{}
		}
	}
	if raw, err := ts.fs.ReadFile(ts.streamDBPath); err == nil {
		if err := json.Unmarshal(raw, &ts.Data); err != nil {
			ts.Data = map[string]interface{}{}
		}
	}
}

// WriteMeta persists both metadata side-tables. Last writer wins; no
// transactional guarantee.
func (ts *TimeStream) WriteMeta() error {
	if ts.path == "" {
		return errs.Configf("archive", "WriteMeta requires a valid path")
	}
	if ts.Version != 1 {
		return errs.ErrUnimplemented
	}
	if err := ts.fs.MkdirAll(ts.dataDir, 0o755); err != nil {
		return &errs.PersistError{Path: ts.dataDir, Err: err}
	}
	img, err := json.Marshal(ts.ImageData)
	if err != nil {
		return &errs.PersistError{Path: ts.imageDBPath, Err: err}
	}
	if err := ts.fs.WriteFile(ts.imageDBPath, img, 0o644); err != nil {
		return &errs.PersistError{Path: ts.imageDBPath, Err: err}
	}
	stream, err := json.Marshal(ts.Data)
	if err != nil {
		return &errs.PersistError{Path: ts.streamDBPath, Err: err}
	}
	if err := ts.fs.WriteFile(ts.streamDBPath, stream, 0o644); err != nil {
		return &errs.PersistError{Path: ts.streamDBPath, Err: err}
	}
	return nil
}

// imagePath resolves the canonical on-disk path for a timestamp.
func (ts *TimeStream) imagePath(t time.Time, subsec int) string {
	return filepath.Join(ts.path, TimePath(ts.Name, ts.Extension, t, subsec))
}

// snapshotPath resolves the frame snapshot path for a timestamp.
func (ts *TimeStream) snapshotPath(t time.Time) string {
	return filepath.Join(ts.dataDir, TimePath(ts.Name, "json", t, 0))
}

// WriteImage persists a frame's pixels under the archive layout,
// applying the overwrite policy, extending the archive bounds, updating
// the image side-table, and refreshing the frame snapshot.
func (ts *TimeStream) WriteImage(f *Frame, mode Overwrite) error {
	if ts.Name == "" {
		return errs.Configf("archive", "WriteImage requires a named archive")
	}
	if ts.path == "" {
		return errs.Configf("archive", "WriteImage requires a valid path")
	}
	if ts.Version != 1 {
		return errs.ErrUnimplemented
	}
	if !f.HasPixels() {
		return errs.Configf("archive", "frame %s has no pixels to write", FormatTimestamp(f.Timestamp))
	}

	fpath := ts.imagePath(f.Timestamp, 0)
	if ts.fs.Exists(fpath) {
		switch mode {
		case Skip:
			return nil
		case Increment:
			found := false
			for subsec := 1; subsec < maxIncrementAttempts; subsec++ {
				fpath = ts.imagePath(f.Timestamp, subsec)
				if !ts.fs.Exists(fpath) {
					found = true
					break
				}
			}
			if !found {
				return &errs.PersistError{
					Path: fpath,
					Err:  fmt.Errorf("too many images at timepoint %s", FormatTimestamp(f.Timestamp)),
				}
			}
		case Clobber:
			// Fall through and replace.
		case Raise:
			return &errs.PersistError{Path: fpath, Err: fmt.Errorf("image already exists")}
		}
	}

	if f.Timestamp.After(ts.End) {
		ts.End = f.Timestamp
	}
	if f.Timestamp.Before(ts.Start) {
		ts.Start = f.Timestamp
	}
	ts.ImageData[FormatTimestamp(f.Timestamp)] = f.Data
	if err := ts.WriteMeta(); err != nil {
		return err
	}

	px, err := f.Pixels()
	if err != nil {
		return err
	}
	if err := ts.codec.Write(fpath, px); err != nil {
		return err
	}
	f.SetPath(fpath)
	return ts.WriteSnapshot(f)
}

// frameSnapshot is the serialized frame cache: everything except
// pixels, which reload from the image file.
type frameSnapshot struct {
	Timestamp string                 `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Pots      []PotRecord            `json:"pots,omitempty"`
}

// WriteSnapshot persists the pixel-free snapshot of a frame into the
// metadata directory.
func (ts *TimeStream) WriteSnapshot(f *Frame) error {
	snap := frameSnapshot{
		Timestamp: FormatTimestamp(f.Timestamp),
		Data:      f.Data,
		Pots:      f.PotRecords(),
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return &errs.PersistError{Path: ts.snapshotPath(f.Timestamp), Err: err}
	}
	p := ts.snapshotPath(f.Timestamp)
	if err := ts.fs.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return &errs.PersistError{Path: p, Err: err}
	}
	if err := ts.fs.WriteFile(p, raw, 0o644); err != nil {
		return &errs.PersistError{Path: p, Err: err}
	}
	return nil
}

// LoadSnapshot restores a cached frame for the timestamp, or reports
// that none is present (or it is invalid).
func (ts *TimeStream) LoadSnapshot(t time.Time) (*Frame, bool) {
	raw, err := ts.fs.ReadFile(ts.snapshotPath(t))
	if err != nil {
		return nil, false
	}
	var snap frameSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, false
	}
	f := NewFrame(t)
	if snap.Data != nil {
		f.Data = snap.Data
	}
	f.Records = snap.Pots
	return f, true
}

// FrameAt resolves the frame for a timepoint: a cached snapshot when
// present and valid, otherwise a bare frame. The archive back-reference
// and per-frame metadata are wired either way.
func (ts *TimeStream) FrameAt(t time.Time) *Frame {
	f, ok := ts.LoadSnapshot(t)
	if !ok {
		f = NewFrame(t)
	}
	f.SetArchive(ts)
	if data, ok := ts.ImageData[FormatTimestamp(t)]; ok {
		f.Data = data
	}
	return f
}

// readManifest infers the archive manifest from the directory contents:
// version, extension, time bounds and sampling interval. Version 2
// detection is explicit and unimplemented.
func (ts *TimeStream) readManifest() error {
	if ts.path == "" {
		return errs.Configf("archive", "readManifest requires a valid path")
	}
	if ts.Version == 0 {
		switch {
		case ts.looksV1():
			ts.Version = 1
		case ts.looksV2():
			ts.Version = 2
		default:
			return errs.Configf("archive", "%s is neither a v1 nor v2 timestream", ts.path)
		}
	}
	if ts.Version == 2 {
		return errs.ErrUnimplemented
	}

	name := filepath.Base(ts.path)
	// Underscores in the directory name would collide with the
	// filename encoding; take the leading field.
	if i := strings.Index(name, "_"); i > 0 {
		name = name[:i]
	}
	if ts.Name == "" {
		if err := ts.SetName(name); err != nil {
			return err
		}
	}

	times, exts, err := ts.scanImages()
	if err != nil {
		return err
	}
	if len(times) == 0 {
		return errs.Configf("archive", "cannot infer manifest: no images under %s", ts.path)
	}
	if ts.Extension == "" {
		ts.Extension = mostCommon(exts)
	}
	if ts.ImageType == "" {
		if t, err := TypeForExtension(ts.Extension); err == nil {
			ts.ImageType = t
		}
	}
	ts.Start, ts.End = times[0], times[0]
	var minGap time.Duration
	prev := times[0]
	for _, t := range times[1:] {
		if t.Before(ts.Start) {
			ts.Start = t
		}
		if t.After(ts.End) {
			ts.End = t
		}
		if gap := t.Sub(prev); gap > 0 && (minGap == 0 || gap < minGap) {
			minGap = gap
		}
		prev = t
	}
	if ts.Interval == 0 {
		ts.Interval = minGap
	}

	// Mirror the inferred manifest into whole-archive metadata.
	ts.Data["name"] = ts.Name
	ts.Data["extension"] = ts.Extension
	ts.Data["start_datetime"] = FormatTimestamp(ts.Start)
	ts.Data["end_datetime"] = FormatTimestamp(ts.End)
	ts.Data["interval"] = ts.Interval.Seconds()
	return nil
}

// looksV1 reports whether the root contains v1-layout image files.
func (ts *TimeStream) looksV1() bool {
	found := false
	_ = filepath.WalkDir(ts.path, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			if d != nil && d.IsDir() && filepath.Base(p) == "_data" && p != ts.path {
				return filepath.SkipDir
			}
			return nil
		}
		if _, perr := ParseTimePath(p); perr == nil {
			found = true
			return filepath.SkipAll
		}
		return nil
	})
	return found
}

// looksV2 reports whether the root carries the v2 bundled layout.
func (ts *TimeStream) looksV2() bool {
	return ts.fs.IsDir(filepath.Join(ts.path, "streams"))
}

// scanImages walks the archive for timestamp-encoded image files,
// returning their timestamps (sorted by walk order, ascending in the
// nested date layout) and extension counts.
func (ts *TimeStream) scanImages() ([]time.Time, map[string]int, error) {
	var times []time.Time
	exts := map[string]int{}
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
		t, perr := ParseTimePath(p)
		if perr != nil {
			return nil
		}
		times = append(times, t)
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(p), "."))
		if ext != "" {
			exts[ext]++
		}
		return nil
	})
	if err != nil {
		return nil, nil, &errs.PersistError{Path: ts.path, Err: err}
	}
	return times, exts, nil
}

func mostCommon(counts map[string]int) string {
	best, bestN := "", -1
	for k, n := range counts {
		if n > bestN || (n == bestN && k < best) {
			best, bestN = k, n
		}
	}
	return best
}

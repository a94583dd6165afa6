package archive

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/traitcapture/timestream/internal/errs"
	"github.com/traitcapture/timestream/internal/pot"
	"github.com/traitcapture/timestream/internal/raster"
)

func solid(h, w int, v uint8) *raster.Buffer {
	b := raster.NewBuffer(h, w, 3)
	for i := range b.Pix {
		b.Pix[i] = v
	}
	return b
}

var testBase = time.Date(2026, 3, 1, 9, 0, 0, 0, time.Local)

// writeTestArchive creates a v1 archive under dir populated with one
// solid frame per hourly timepoint, pixel value 10*(i+1).
func writeTestArchive(t *testing.T, dir string, n int) (*TimeStream, []time.Time) {
	t.Helper()
	ts, err := Create(dir, CreateOptions{
		Name:     "bvz",
		Interval: time.Hour,
		Start:    testBase,
		End:      testBase,
	})
	if err != nil {
		t.Fatal(err)
	}
	var times []time.Time
	for i := 0; i < n; i++ {
		at := testBase.Add(time.Duration(i) * time.Hour)
		f := NewFrame(at)
		f.SetPixels(solid(8, 8, uint8(10*(i+1))))
		if err := ts.WriteImage(f, Clobber); err != nil {
			t.Fatal(err)
		}
		times = append(times, at)
	}
	return ts, times
}

func TestCreateRequiresParent(t *testing.T) {
	_, err := Create(filepath.Join(t.TempDir(), "missing", "arch"), CreateOptions{})
	var cerr *errs.ConfigError
	if !errors.As(err, &cerr) {
		t.Fatalf("err = %v, want ConfigError", err)
	}
}

func TestCreateRejectsUnknownExtension(t *testing.T) {
	_, err := Create(filepath.Join(t.TempDir(), "arch"), CreateOptions{Extension: "exe"})
	if err == nil {
		t.Fatal("unknown extension should be rejected")
	}
}

func TestSetNameRejectsSeparator(t *testing.T) {
	ts := newTimeStream()
	if err := ts.SetName("my_plants"); err == nil {
		t.Error("name containing '_' should be rejected")
	}
	if err := ts.SetName("plants"); err != nil {
		t.Errorf("plain name rejected: %v", err)
	}
}

func TestLoadMissingArchive(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope"), LoadOptions{})
	if err == nil {
		t.Fatal("loading a missing archive should fail")
	}
}

func TestLoadVersionTwoUnimplemented(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "v2arch")
	ts, err := Create(dir, CreateOptions{Name: "v2arch"})
	if err != nil {
		t.Fatal(err)
	}
	if err := ts.fs.MkdirAll(filepath.Join(dir, "streams"), 0o755); err != nil {
		t.Fatal(err)
	}
	_, err = Load(dir, LoadOptions{})
	if !errors.Is(err, errs.ErrUnimplemented) {
		t.Fatalf("err = %v, want ErrUnimplemented", err)
	}
}

func TestWriteImageRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "bvz")
	_, times := writeTestArchive(t, dir, 3)

	loaded, err := Load(dir, LoadOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Version != 1 {
		t.Errorf("Version = %d, want 1", loaded.Version)
	}
	if loaded.Name != "bvz" {
		t.Errorf("Name = %q, want bvz", loaded.Name)
	}
	if loaded.Extension != "png" {
		t.Errorf("Extension = %q, want png", loaded.Extension)
	}
	if !loaded.Start.Equal(times[0]) || !loaded.End.Equal(times[2]) {
		t.Errorf("bounds = %v..%v, want %v..%v", loaded.Start, loaded.End, times[0], times[2])
	}
	if loaded.Interval != time.Hour {
		t.Errorf("Interval = %v, want 1h", loaded.Interval)
	}

	f := loaded.FrameAt(times[1])
	px, err := f.Pixels()
	if err != nil {
		t.Fatal(err)
	}
	if px.H != 8 || px.W != 8 || px.At(0, 0, 0) != 20 {
		t.Errorf("pixels = %dx%d first=%d, want 8x8 first=20", px.H, px.W, px.At(0, 0, 0))
	}
}

func TestOverwritePolicies(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "bvz")
	ts, times := writeTestArchive(t, dir, 1)
	at := times[0]

	replacement := NewFrame(at)
	replacement.SetPixels(solid(8, 8, 99))

	// Skip leaves the original untouched.
	if err := ts.WriteImage(replacement, Skip); err != nil {
		t.Fatal(err)
	}
	f := ts.FrameAt(at)
	px, err := f.Pixels()
	if err != nil {
		t.Fatal(err)
	}
	if px.At(0, 0, 0) != 10 {
		t.Errorf("after Skip, pixel = %d, want original 10", px.At(0, 0, 0))
	}

	// Raise fails loudly.
	raise := NewFrame(at)
	raise.SetPixels(solid(8, 8, 99))
	var perr *errs.PersistError
	if err := ts.WriteImage(raise, Raise); !errors.As(err, &perr) {
		t.Errorf("after Raise, err = %v, want PersistError", err)
	}

	// Increment lands in the next subsecond slot.
	inc := NewFrame(at)
	inc.SetPixels(solid(8, 8, 55))
	if err := ts.WriteImage(inc, Increment); err != nil {
		t.Fatal(err)
	}
	if want := ts.imagePath(at, 1); inc.Path() != want {
		t.Errorf("increment path = %q, want %q", inc.Path(), want)
	}
	if !ts.fs.Exists(ts.imagePath(at, 0)) || !ts.fs.Exists(ts.imagePath(at, 1)) {
		t.Error("increment should leave both slots populated")
	}

	// Clobber replaces in place.
	clob := NewFrame(at)
	clob.SetPixels(solid(8, 8, 77))
	if err := ts.WriteImage(clob, Clobber); err != nil {
		t.Fatal(err)
	}
	after := ts.FrameAt(at)
	px, err = after.Pixels()
	if err != nil {
		t.Fatal(err)
	}
	if px.At(0, 0, 0) != 77 {
		t.Errorf("after Clobber, pixel = %d, want 77", px.At(0, 0, 0))
	}
}

func TestWriteImageExtendsBounds(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "bvz")
	ts, times := writeTestArchive(t, dir, 1)

	later := NewFrame(times[0].Add(48 * time.Hour))
	later.SetPixels(solid(8, 8, 1))
	if err := ts.WriteImage(later, Raise); err != nil {
		t.Fatal(err)
	}
	if !ts.End.Equal(later.Timestamp) {
		t.Errorf("End = %v, want %v", ts.End, later.Timestamp)
	}

	earlier := NewFrame(times[0].Add(-48 * time.Hour))
	earlier.SetPixels(solid(8, 8, 1))
	if err := ts.WriteImage(earlier, Raise); err != nil {
		t.Fatal(err)
	}
	if !ts.Start.Equal(earlier.Timestamp) {
		t.Errorf("Start = %v, want %v", ts.Start, earlier.Timestamp)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "bvz")
	ts, times := writeTestArchive(t, dir, 1)
	at := times[0]

	f := ts.FrameAt(at)
	px, err := f.Pixels()
	if err != nil {
		t.Fatal(err)
	}
	reg, err := pot.RegionFromCorners(1, 1, 5, 5, px.H, px.W)
	if err != nil {
		t.Fatal(err)
	}
	m := pot.NewMatrix(px, nil)
	h, err := pot.NewHandler("p1", px, reg, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	h.SetFeature("area", 12)
	m.SetPot(h)
	f.Pots = m
	f.Data["camera"] = "cam-3"

	if err := ts.WriteSnapshot(f); err != nil {
		t.Fatal(err)
	}

	back, ok := ts.LoadSnapshot(at)
	if !ok {
		t.Fatal("snapshot should load back")
	}
	if back.HasPixels() {
		t.Error("snapshots must not carry pixels")
	}
	if got := back.Data["camera"]; got != "cam-3" {
		t.Errorf("Data[camera] = %v", got)
	}
	if len(back.Records) != 1 {
		t.Fatalf("Records = %d, want 1", len(back.Records))
	}
	rec := back.Records[0]
	if rec.ID != "p1" || rec.Rect != [4]int{1, 1, 5, 5} {
		t.Errorf("record = %+v", rec)
	}
	if rec.Features["area"] != 12 {
		t.Errorf("features = %v", rec.Features)
	}
}

func TestWriteMetaRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "bvz")
	ts, times := writeTestArchive(t, dir, 1)
	ts.Data["experiment"] = "BVZ0036"
	ts.ImageData[FormatTimestamp(times[0])] = map[string]interface{}{"exposure": 1.5}
	if err := ts.WriteMeta(); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(dir, LoadOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if got := loaded.Data["experiment"]; got != "BVZ0036" {
		t.Errorf("Data[experiment] = %v", got)
	}
	f := loaded.FrameAt(times[0])
	if got := f.Data["exposure"]; got != 1.5 {
		t.Errorf("frame Data[exposure] = %v", got)
	}
}

func TestFrameWriteThroughArchive(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "bvz")
	ts, _ := writeTestArchive(t, dir, 1)

	detached := NewFrame(testBase.Add(time.Hour))
	detached.SetPixels(solid(8, 8, 3))
	if err := detached.Write(Skip); err == nil {
		t.Error("writing a detached frame should fail")
	}
	detached.SetArchive(ts)
	if err := detached.Write(Raise); err != nil {
		t.Fatal(err)
	}
	if !ts.fs.Exists(ts.imagePath(detached.Timestamp, 0)) {
		t.Error("attached write should land in the archive layout")
	}
}

func TestGapFrameDistinguishable(t *testing.T) {
	f := GapFrame(testBase)
	if !f.Gap() {
		t.Error("GapFrame should report Gap")
	}
	px, err := f.Pixels()
	if err != nil {
		t.Fatal(err)
	}
	if px == nil || !px.Empty() {
		t.Error("gap placeholder should carry a non-nil empty buffer")
	}
	real := NewFrame(testBase)
	real.SetPixels(solid(2, 2, 1))
	if real.Gap() {
		t.Error("a frame with pixels is not a gap")
	}
}

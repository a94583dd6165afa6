// Package testutil carries shared test helpers: assertion shorthands
// and fixture builders for on-disk archives.
package testutil

import (
	"testing"
	"time"

	"github.com/traitcapture/timestream/internal/archive"
	"github.com/traitcapture/timestream/internal/raster"
)

// AssertNoError fails the test immediately when err is non-nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test immediately when err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected an error, got nil")
	}
}

// SolidBuffer builds an h×w×c buffer with every sample set to v.
func SolidBuffer(h, w, c int, v uint8) *raster.Buffer {
	b := raster.NewBuffer(h, w, c)
	for i := range b.Pix {
		b.Pix[i] = v
	}
	return b
}

// GradientBuffer builds an h×w×c buffer whose intensity rises with the
// column index, giving threshold segmenters something to split on.
func GradientBuffer(h, w, c int) *raster.Buffer {
	b := raster.NewBuffer(h, w, c)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(x * 255 / max(w-1, 1))
			for ch := 0; ch < c; ch++ {
				b.Set(y, x, ch, v)
			}
		}
	}
	return b
}

// BuildArchive creates a v1 archive under dir/name populated with one
// solid-colour frame per timestamp. The frame written at times[i] has
// every sample set to 10*(i+1), so tests can tell frames apart after a
// round trip.
func BuildArchive(t *testing.T, dir, name string, times []time.Time) *archive.TimeStream {
	t.Helper()
	ts, err := archive.Create(dir+"/"+name, archive.CreateOptions{
		Name:     name,
		Interval: time.Hour,
	})
	AssertNoError(t, err)
	for i, at := range times {
		f := archive.NewFrame(at)
		f.SetPixels(SolidBuffer(8, 8, 3, uint8(10*(i+1))))
		AssertNoError(t, ts.WriteImage(f, archive.Clobber))
	}
	if len(times) > 0 {
		ts.Start, ts.End = times[0], times[len(times)-1]
	}
	return ts
}

package raster

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestBufferCrop(t *testing.T) {
	b := NewBuffer(4, 4, 1)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			b.Set(y, x, 0, uint8(y*4+x))
		}
	}
	c := b.Crop(1, 1, 3, 3)
	if c.H != 2 || c.W != 2 {
		t.Fatalf("crop shape = %dx%d, want 2x2", c.H, c.W)
	}
	if got := c.At(0, 0, 0); got != 5 {
		t.Errorf("crop (0,0) = %d, want 5", got)
	}
	if got := c.At(1, 1, 0); got != 10 {
		t.Errorf("crop (1,1) = %d, want 10", got)
	}
}

func TestMaskEmpty(t *testing.T) {
	m := NewMask(3, 3)
	if !m.Empty() {
		t.Error("fresh mask should be empty")
	}
	m.Set(1, 2, 1)
	if m.Empty() {
		t.Error("mask with a set pixel should not be empty")
	}
	if m.Count() != 1 {
		t.Errorf("Count = %d, want 1", m.Count())
	}
}

// fill sets every mask value to 1 so shape changes are observable
// through pad (zero) versus trim (kept ones).
func fill(m *Mask) *Mask {
	for i := range m.Data {
		m.Data[i] = 1
	}
	return m
}

func TestFitToIdentity(t *testing.T) {
	m := fill(NewMask(3, 4))
	got := m.FitTo(3, 4)
	if diff := cmp.Diff(m.Data, got.Data); diff != "" {
		t.Errorf("identity reshape changed data (-want +got):\n%s", diff)
	}
}

func TestFitToShapes(t *testing.T) {
	cases := []struct {
		name         string
		h, w         int
		wantH, wantW int
	}{
		{"grow both", 2, 2, 4, 5},
		{"shrink both", 5, 6, 3, 3},
		{"grow rows shrink cols", 2, 6, 4, 3},
		{"single cell", 3, 3, 1, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := fill(NewMask(tc.h, tc.w))
			got := m.FitTo(tc.wantH, tc.wantW)
			if got.H != tc.wantH || got.W != tc.wantW {
				t.Fatalf("shape = %dx%d, want %dx%d", got.H, got.W, tc.wantH, tc.wantW)
			}
		})
	}
}

func TestFitToPadAlternatesSides(t *testing.T) {
	// One row grown to three: the original row must land in the
	// middle, with zero rows added top first, then bottom.
	m := fill(NewMask(1, 2))
	got := m.FitTo(3, 2)
	if got.At(0, 0) != 0 || got.At(2, 0) != 0 {
		t.Error("padding rows should be zero")
	}
	if got.At(1, 0) != 1 || got.At(1, 1) != 1 {
		t.Error("original row should survive in the middle")
	}
}

func TestFitToPadSingleRowTopFirst(t *testing.T) {
	// Growing by exactly one row pads the top (low side) first.
	m := fill(NewMask(1, 1))
	got := m.FitTo(2, 1)
	if got.At(0, 0) != 0 {
		t.Error("single padded row should go on top")
	}
	if got.At(1, 0) != 1 {
		t.Error("original row should shift down")
	}
}

func TestFitToTrimSingleRowTopFirst(t *testing.T) {
	// Trimming by exactly one row drops row 0 (low side) first.
	m := NewMask(2, 1)
	m.Set(0, 0, 7)
	m.Set(1, 0, 9)
	got := m.FitTo(1, 1)
	if got.At(0, 0) != 9 {
		t.Errorf("surviving value = %v, want 9 (row 0 trimmed first)", got.At(0, 0))
	}
}

func TestFitToDoesNotMutateSource(t *testing.T) {
	m := fill(NewMask(3, 3))
	_ = m.FitTo(5, 5)
	if m.H != 3 || m.W != 3 {
		t.Errorf("source shape changed to %dx%d", m.H, m.W)
	}
	if m.Count() != 9 {
		t.Errorf("source data changed, Count = %d", m.Count())
	}
}

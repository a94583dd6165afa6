// Package raster provides the dense pixel and mask arrays the pipeline
// operates on. Buffers are treated as immutable once loaded for a frame;
// operations that transform pixels produce new buffers.
package raster

import "fmt"

// Buffer is a row-major H×W×C pixel array. C is typically 3 (RGB) for
// decoded images and 1 for grayscale intermediates.
type Buffer struct {
	H, W, C int
	Pix     []uint8
}

// NewBuffer allocates a zeroed buffer of the given shape.
func NewBuffer(h, w, c int) *Buffer {
	return &Buffer{H: h, W: w, C: c, Pix: make([]uint8, h*w*c)}
}

// Empty reports whether the buffer holds no pixels. Gap placeholder
// frames carry an empty buffer.
func (b *Buffer) Empty() bool {
	return b == nil || len(b.Pix) == 0
}

// At returns the channel value at (y, x, c). Callers are expected to
// stay in bounds; this is a hot path and does not re-check.
func (b *Buffer) At(y, x, c int) uint8 {
	return b.Pix[(y*b.W+x)*b.C+c]
}

// Set writes the channel value at (y, x, c).
func (b *Buffer) Set(y, x, c int, v uint8) {
	b.Pix[(y*b.W+x)*b.C+c] = v
}

// Crop returns a copy of the rectangle [y0,y1)×[x0,x1).
func (b *Buffer) Crop(y0, x0, y1, x1 int) *Buffer {
	out := NewBuffer(y1-y0, x1-x0, b.C)
	for y := y0; y < y1; y++ {
		src := (y*b.W + x0) * b.C
		dst := (y - y0) * out.W * out.C
		copy(out.Pix[dst:dst+out.W*out.C], b.Pix[src:src+out.W*out.C])
	}
	return out
}

// Clone returns a deep copy of the buffer.
func (b *Buffer) Clone() *Buffer {
	out := &Buffer{H: b.H, W: b.W, C: b.C, Pix: make([]uint8, len(b.Pix))}
	copy(out.Pix, b.Pix)
	return out
}

// Mask is a row-major H×W foreground classification array. Nonzero
// means foreground.
type Mask struct {
	H, W int
	Data []float64
}

// NewMask allocates a zeroed (all background) mask.
func NewMask(h, w int) *Mask {
	return &Mask{H: h, W: w, Data: make([]float64, h*w)}
}

// At returns the mask value at (y, x).
func (m *Mask) At(y, x int) float64 { return m.Data[y*m.W+x] }

// Set writes the mask value at (y, x).
func (m *Mask) Set(y, x int, v float64) { m.Data[y*m.W+x] = v }

// Empty reports whether the mask contains no foreground at all. A
// segmenter that produces an empty mask is treated as having failed,
// which triggers the predecessor fallback in pot handlers.
func (m *Mask) Empty() bool {
	for _, v := range m.Data {
		if v != 0 {
			return false
		}
	}
	return true
}

// Count returns the number of foreground elements.
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.Data {
		if v != 0 {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of the mask.
func (m *Mask) Clone() *Mask {
	out := &Mask{H: m.H, W: m.W, Data: make([]float64, len(m.Data))}
	copy(out.Data, m.Data)
	return out
}

// SameShape reports whether two masks have identical dimensions.
func (m *Mask) SameShape(o *Mask) bool {
	return m.H == o.H && m.W == o.W
}

// String describes the mask shape, for error messages.
func (m *Mask) String() string {
	return fmt.Sprintf("mask(%dx%d)", m.H, m.W)
}

// FitTo reshapes the mask to (h, w) using the asymmetric alternating
// pad/trim policy: while a dimension mismatches, one row (or column) is
// trimmed or padded from alternating sides, starting with the low side
// (top row, left column). The result always has shape (h, w) and the
// receiver is left untouched. Vertical is adjusted before horizontal.
func (m *Mask) FitTo(h, w int) *Mask {
	out := m.Clone()
	// Vertical.
	for low := true; out.H > h; low = !low {
		if low {
			out = out.dropRow(0)
		} else {
			out = out.dropRow(out.H - 1)
		}
	}
	for low := true; out.H < h; low = !low {
		if low {
			out = out.padRow(true)
		} else {
			out = out.padRow(false)
		}
	}
	// Horizontal.
	for low := true; out.W > w; low = !low {
		if low {
			out = out.dropCol(0)
		} else {
			out = out.dropCol(out.W - 1)
		}
	}
	for low := true; out.W < w; low = !low {
		if low {
			out = out.padCol(true)
		} else {
			out = out.padCol(false)
		}
	}
	return out
}

func (m *Mask) dropRow(row int) *Mask {
	out := NewMask(m.H-1, m.W)
	di := 0
	for y := 0; y < m.H; y++ {
		if y == row {
			continue
		}
		copy(out.Data[di*m.W:(di+1)*m.W], m.Data[y*m.W:(y+1)*m.W])
		di++
	}
	return out
}

func (m *Mask) padRow(top bool) *Mask {
	out := NewMask(m.H+1, m.W)
	off := 0
	if top {
		off = 1
	}
	for y := 0; y < m.H; y++ {
		copy(out.Data[(y+off)*m.W:(y+off+1)*m.W], m.Data[y*m.W:(y+1)*m.W])
	}
	return out
}

func (m *Mask) dropCol(col int) *Mask {
	out := NewMask(m.H, m.W-1)
	for y := 0; y < m.H; y++ {
		di := y * out.W
		for x := 0; x < m.W; x++ {
			if x == col {
				continue
			}
			out.Data[di] = m.Data[y*m.W+x]
			di++
		}
	}
	return out
}

func (m *Mask) padCol(left bool) *Mask {
	out := NewMask(m.H, m.W+1)
	off := 0
	if left {
		off = 1
	}
	for y := 0; y < m.H; y++ {
		copy(out.Data[y*out.W+off:y*out.W+off+m.W], m.Data[y*m.W:(y+1)*m.W])
	}
	return out
}

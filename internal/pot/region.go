// Package pot models the per-pot state of a frame: the bounding region,
// the lazily segmented mask with its predecessor fallback, extracted
// features, and the matrix that keys pots by stable identifier across
// frames.
package pot

import (
	"github.com/traitcapture/timestream/internal/errs"
)

// Region is an axis-aligned rectangle bound to the dimensions of the
// frame it was created against. Regions are immutable; resizing
// produces a replacement value.
type Region struct {
	Left, Top, Right, Bottom int

	// Bound frame dimensions, kept so derived regions revalidate
	// against the same image.
	frameH, frameW int
}

// RegionFromCorners builds a region from two opposite corners.
func RegionFromCorners(x1, y1, x2, y2, frameH, frameW int) (Region, error) {
	r := Region{Left: x1, Top: y1, Right: x2, Bottom: y2, frameH: frameH, frameW: frameW}
	if err := r.validate(); err != nil {
		return Region{}, err
	}
	return r, nil
}

// RegionFromCenter builds a region by growing a center point by grow
// pixels in every direction.
func RegionFromCenter(x, y, grow, frameH, frameW int) (Region, error) {
	return RegionFromCorners(x-grow, y-grow, x+grow, y+grow, frameH, frameW)
}

func (r Region) validate() error {
	if r.frameH < 1 || r.frameW < 1 {
		return errs.Configf("region", "bound frame dimensions %dx%d must be positive", r.frameH, r.frameW)
	}
	if r.Left < 0 || r.Top < 0 || r.Right > r.frameW || r.Bottom > r.frameH ||
		r.Left >= r.Right || r.Top >= r.Bottom {
		return errs.Configf("region", "rectangle [%d,%d,%d,%d] outside %dx%d frame",
			r.Left, r.Top, r.Right, r.Bottom, r.frameW, r.frameH)
	}
	return nil
}

// Width returns the horizontal extent in pixels.
func (r Region) Width() int { return r.Right - r.Left }

// Height returns the vertical extent in pixels.
func (r Region) Height() int { return r.Bottom - r.Top }

// Grow returns a new region with all four bounds expanded by `by`
// pixels, validated against the bound frame.
func (r Region) Grow(by int) (Region, error) {
	return RegionFromCorners(r.Left-by, r.Top-by, r.Right+by, r.Bottom+by, r.frameH, r.frameW)
}

// Shrink returns a new region contracted by `by` pixels on every side.
func (r Region) Shrink(by int) (Region, error) {
	return r.Grow(-by)
}

// Corners returns the region as [x1, y1, x2, y2].
func (r Region) Corners() [4]int {
	return [4]int{r.Left, r.Top, r.Right, r.Bottom}
}

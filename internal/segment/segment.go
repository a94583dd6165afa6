// Package segment declares the contract the pipeline uses to request
// plant segmentation, plus a simple intensity-threshold implementation.
// Real segmentation algorithms (k-means, colour-model based) are
// external collaborators; anything satisfying Segmenter plugs in.
package segment

import (
	"github.com/traitcapture/timestream/internal/raster"
)

// Hints carries algorithm-specific state between segmentation calls,
// e.g. cluster seeds carried forward from the previous frame.
type Hints map[string]interface{}

// Segmenter computes a foreground mask over a cropped pixel region.
// Implementations return the (possibly updated) hints alongside the
// mask so stateful methods can carry context to the next call.
type Segmenter interface {
	Segment(img *raster.Buffer, hints Hints) (*raster.Mask, Hints, error)
}

// Threshold segments by mean-channel intensity: pixels whose channel
// mean exceeds Cutoff (0–255) are foreground. Invert flips the test,
// which suits dark plants on a light pot background.
type Threshold struct {
	Cutoff float64
	Invert bool
}

// Segment implements Segmenter.
func (t Threshold) Segment(img *raster.Buffer, hints Hints) (*raster.Mask, Hints, error) {
	mask := raster.NewMask(img.H, img.W)
	if img.Empty() {
		return mask, hints, nil
	}
	for y := 0; y < img.H; y++ {
		for x := 0; x < img.W; x++ {
			var sum float64
			for c := 0; c < img.C; c++ {
				sum += float64(img.At(y, x, c))
			}
			mean := sum / float64(img.C)
			fg := mean > t.Cutoff
			if t.Invert {
				fg = !fg
			}
			if fg {
				mask.Set(y, x, 1)
			}
		}
	}
	return mask, hints, nil
}

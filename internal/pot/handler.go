package pot

import (
	"fmt"

	"github.com/traitcapture/timestream/internal/errs"
	"github.com/traitcapture/timestream/internal/features"
	"github.com/traitcapture/timestream/internal/raster"
	"github.com/traitcapture/timestream/internal/segment"
)

// Handler holds one pot's state within one frame: its region, a shared
// read-only reference to the frame pixels, an optional segmenter, an
// optional link to the same pot in the previous frame, the lazily
// computed mask, and memoized features.
type Handler struct {
	id    string
	frame *raster.Buffer
	reg   Region

	seg  segment.Segmenter
	prev *Handler

	mask  *raster.Mask
	feats map[string]float64
	meta  map[string]interface{}
}

// NewHandler creates a handler for one pot. The frame buffer is shared
// and must not be mutated. prev may be nil.
func NewHandler(id string, frame *raster.Buffer, reg Region, seg segment.Segmenter, prev *Handler) (*Handler, error) {
	if frame == nil {
		return nil, errs.Configf("pot", "handler %s: frame buffer is nil", id)
	}
	h := &Handler{
		id:    id,
		frame: frame,
		reg:   reg,
		seg:   seg,
		feats: map[string]float64{},
		meta:  map[string]interface{}{},
	}
	h.SetPrev(prev)
	return h, nil
}

// ID returns the pot's stable identifier. It never changes after
// construction.
func (h *Handler) ID() string { return h.id }

// Region returns the pot's current region.
func (h *Handler) Region() Region { return h.reg }

// Prev returns the predecessor handler, or nil.
func (h *Handler) Prev() *Handler { return h.prev }

// SetPrev links the handler to its previous-frame counterpart and
// retires the predecessor: its own predecessor link and segmenter are
// released so reachable history stays bounded to one generation.
func (h *Handler) SetPrev(prev *Handler) {
	h.prev = prev
	if prev != nil {
		prev.Retire()
	}
}

// Retire releases the handler's predecessor link and segmenter. Called
// on the previous generation when a new one takes over.
func (h *Handler) Retire() {
	h.prev = nil
	h.seg = nil
}

// SetSegmenter attaches (or clears) the segmentation strategy.
func (h *Handler) SetSegmenter(s segment.Segmenter) { h.seg = s }

// Image returns the cropped pixel region for this pot.
func (h *Handler) Image() *raster.Buffer {
	return h.frame.Crop(h.reg.Top, h.reg.Left, h.reg.Bottom, h.reg.Right)
}

// Mask returns the pot's segmentation mask, computing and caching it on
// first access. With no segmenter configured the result is an all-zero
// mask of the region's shape (not cached, so a later SetSegmenter still
// triggers computation). When segmentation yields an empty mask and a
// predecessor exists, the predecessor's mask is substituted, reshaped
// to this region's dimensions.
func (h *Handler) Mask() *raster.Mask {
	if h.mask != nil {
		return h.mask
	}
	if h.seg == nil {
		return raster.NewMask(h.reg.Height(), h.reg.Width())
	}
	h.mask = h.segmented()
	return h.mask
}

// segmented runs the segmenter and applies the predecessor fallback.
func (h *Handler) segmented() *raster.Mask {
	mask, _, err := h.seg.Segment(h.Image(), segment.Hints{})
	if err != nil || mask == nil {
		mask = raster.NewMask(h.reg.Height(), h.reg.Width())
	}
	if mask.Empty() && h.prev != nil {
		mask = h.prev.Mask().FitTo(mask.H, mask.W)
	}
	return mask
}

// SetMask overwrites the cached mask. The replacement must match the
// current mask shape exactly.
func (h *Handler) SetMask(m *raster.Mask) error {
	if m == nil {
		return errs.Configf("pot", "handler %s: nil mask", h.id)
	}
	if m.H != h.reg.Height() || m.W != h.reg.Width() {
		return errs.Configf("pot", "handler %s: mask shape %dx%d does not match region %dx%d",
			h.id, m.H, m.W, h.reg.Height(), h.reg.Width())
	}
	h.mask = m
	return nil
}

// CalcFeatures computes and memoizes the named features over the mask.
// The wildcard "all" resolves to the full registered catalog.
func (h *Handler) CalcFeatures(names []string) error {
	for _, name := range names {
		if name == features.All {
			return h.CalcFeatures(features.Names())
		}
	}
	mask := h.Mask()
	for _, name := range names {
		if _, ok := h.feats[name]; ok {
			continue
		}
		v, err := features.Compute(name, mask)
		if err != nil {
			return fmt.Errorf("pot %s: %w", h.id, err)
		}
		h.feats[name] = v
	}
	return nil
}

// Features returns the memoized feature map.
func (h *Handler) Features() map[string]float64 { return h.feats }

// SetFeature stores a precomputed feature value. Used when restoring a
// handler from an archive snapshot.
func (h *Handler) SetFeature(name string, v float64) { h.feats[name] = v }

// Grow expands the region uniformly by `by` pixels and invalidates the
// cached mask, since the shape changed.
// TODO: invalidate cached features when the region changes.
func (h *Handler) Grow(by int) error {
	reg, err := h.reg.Grow(by)
	if err != nil {
		return err
	}
	h.reg = reg
	h.mask = nil
	return nil
}

// Shrink contracts the region uniformly by `by` pixels and invalidates
// the cached mask.
func (h *Handler) Shrink(by int) error {
	return h.Grow(-by)
}

// MaskedImage returns the pot's pixels with background zeroed out.
func (h *Handler) MaskedImage() *raster.Buffer {
	img := h.Image()
	mask := h.Mask()
	out := raster.NewBuffer(img.H, img.W, img.C)
	for y := 0; y < img.H; y++ {
		for x := 0; x < img.W; x++ {
			if mask.At(y, x) == 0 {
				continue
			}
			for c := 0; c < img.C; c++ {
				out.Set(y, x, c, img.At(y, x, c))
			}
		}
	}
	return out
}

// SetMeta binds a scalar metadata value (chamber ID, experiment code,
// and the like) to the pot.
func (h *Handler) SetMeta(key string, v interface{}) error {
	switch v.(type) {
	case int, int64, float64, string, bool:
		h.meta[key] = v
		return nil
	default:
		return errs.Configf("pot", "handler %s: metadata %q must be a scalar, got %T", h.id, key, v)
	}
}

// Meta returns the metadata value for key, if set.
func (h *Handler) Meta(key string) (interface{}, bool) {
	v, ok := h.meta[key]
	return v, ok
}

package pot

import (
	"sort"

	"github.com/traitcapture/timestream/internal/errs"
	"github.com/traitcapture/timestream/internal/raster"
)

// Matrix is the full set of pots located in one frame, keyed by stable
// pot identifier, with an optional link to the previous frame's matrix
// for temporal chaining.
type Matrix struct {
	frame *raster.Buffer
	pots  map[string]*Handler
	prev  *Matrix
}

// NewMatrix creates a matrix over the given frame buffer. Attaching a
// previous matrix retires it, releasing its own predecessor so no more
// than one generation of history stays reachable.
func NewMatrix(frame *raster.Buffer, prev *Matrix) *Matrix {
	if prev != nil {
		prev.Retire()
	}
	return &Matrix{frame: frame, pots: map[string]*Handler{}, prev: prev}
}

// Frame returns the shared frame buffer.
func (m *Matrix) Frame() *raster.Buffer { return m.frame }

// Prev returns the previous frame's matrix, or nil.
func (m *Matrix) Prev() *Matrix { return m.prev }

// Retire drops the matrix's predecessor link.
func (m *Matrix) Retire() { m.prev = nil }

// SetPot inserts the handler, wiring its predecessor link from the
// prior-generation matrix when one holds the same identifier. A
// duplicate identifier silently replaces the existing handler without
// warning; callers that care must check beforehand. (Inherited
// behaviour, preserved deliberately rather than papered over with a
// conflict policy.)
func (m *Matrix) SetPot(h *Handler) {
	if m.prev != nil {
		if prev, ok := m.prev.pots[h.id]; ok {
			h.SetPrev(prev)
		}
	}
	m.pots[h.id] = h
}

// Pot returns the handler with the given identifier.
func (m *Matrix) Pot(id string) (*Handler, error) {
	h, ok := m.pots[id]
	if !ok {
		return nil, errs.Configf("pot", "no pot with id %q", id)
	}
	return h, nil
}

// Len returns the number of pots.
func (m *Matrix) Len() int { return len(m.pots) }

// Pots returns the handlers in unspecified order. Ordering is not
// semantically significant anywhere in the pipeline.
func (m *Matrix) Pots() []*Handler {
	out := make([]*Handler, 0, len(m.pots))
	for _, h := range m.pots {
		out = append(out, h)
	}
	return out
}

// IDs returns the pot identifiers, sorted for stable output.
func (m *Matrix) IDs() []string {
	ids := make([]string, 0, len(m.pots))
	for id := range m.pots {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// FeatureNames returns the union of feature names computed across all
// pots, sorted.
func (m *Matrix) FeatureNames() []string {
	seen := map[string]bool{}
	for _, h := range m.pots {
		for name := range h.feats {
			seen[name] = true
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

package stages

import (
	"strconv"

	"github.com/traitcapture/timestream/internal/errs"
	"github.com/traitcapture/timestream/internal/pipeline"
	"github.com/traitcapture/timestream/internal/pot"
)

// defaultGrow is the half-width, in pixels, of the square region grown
// around each configured pot center.
const defaultGrow = 100

var potLocateSchema = pipeline.Schema{
	"centers": {Desc: "pot center points as [[x, y], ...], grown into square regions"},
	"rects":   {Desc: "explicit pot rectangles as [[x1, y1, x2, y2], ...]"},
	"grow": {Desc: "half-width in pixels of the region grown around each center",
		Default: float64(defaultGrow)},
	"ids": {Desc: "stable pot identifiers, one per region (default: 1, 2, ...)"},
}

// potLocate builds the pot matrix for a frame from configured regions,
// chaining each pot to its previous-frame counterpart through the run
// context.
type potLocate struct {
	name    string
	centers [][]int
	rects   [][]int
	grow    int
	ids     []string
}

func newPotLocate(name string, args map[string]interface{}) (pipeline.Stage, error) {
	a, err := pipeline.ApplyArgs(name, potLocateSchema, args)
	if err != nil {
		return nil, err
	}
	st := &potLocate{name: name}
	if v := a["centers"]; v != nil {
		if st.centers, err = argIntTuples(name, "centers", v, 2); err != nil {
			return nil, err
		}
	}
	if v := a["rects"]; v != nil {
		if st.rects, err = argIntTuples(name, "rects", v, 4); err != nil {
			return nil, err
		}
	}
	if len(st.centers) == 0 && len(st.rects) == 0 {
		return nil, errs.Configf(name, "one of %q or %q is required\n%s",
			"centers", "rects", pipeline.DescribeSchema(name, potLocateSchema))
	}
	if len(st.centers) > 0 && len(st.rects) > 0 {
		return nil, errs.Configf(name, "%q and %q are mutually exclusive", "centers", "rects")
	}
	if st.grow, err = argInt(name, "grow", a["grow"]); err != nil {
		return nil, err
	}
	if v := a["ids"]; v != nil {
		if st.ids, err = argStringList(name, "ids", v); err != nil {
			return nil, err
		}
		if n := len(st.centers) + len(st.rects); len(st.ids) != n {
			return nil, errs.Configf(name, "%d ids for %d regions", len(st.ids), n)
		}
	}
	return st, nil
}

func (s *potLocate) Name() string          { return s.name }
func (s *potLocate) Args() pipeline.Schema { return potLocateSchema }
func (s *potLocate) Expects() []string     { return []string{"*archive.Frame"} }
func (s *potLocate) Returns() []string     { return []string{"*archive.Frame", "*pot.Matrix"} }

func (s *potLocate) Run(ctx *pipeline.Context, in pipeline.Values) (pipeline.Values, error) {
	if rerr, ok := sentinel(in); ok {
		// An unresolvable frame breaks the predecessor chain: the next
		// resolved frame starts without fallback history.
		ctx.Delete(pipeline.KeyPots)
		return passthrough(s, rerr), nil
	}
	f, err := wantFrame(s.name, in)
	if err != nil {
		return nil, err
	}
	px, err := f.Pixels()
	if err != nil {
		return nil, err
	}

	var prev *pot.Matrix
	if v, ok := ctx.Get(pipeline.KeyPots); ok {
		prev, _ = v.(*pot.Matrix)
	}
	m := pot.NewMatrix(px, prev)

	regions, err := s.regions(px.H, px.W)
	if err != nil {
		return nil, err
	}
	for i, reg := range regions {
		id := strconv.Itoa(i + 1)
		if s.ids != nil {
			id = s.ids[i]
		}
		h, err := pot.NewHandler(id, px, reg, nil, nil)
		if err != nil {
			return nil, err
		}
		m.SetPot(h)
	}

	f.Pots = m
	ctx.Set(pipeline.KeyPots, m)
	return pipeline.Values{f, m}, nil
}

func (s *potLocate) regions(frameH, frameW int) ([]pot.Region, error) {
	var out []pot.Region
	for _, c := range s.centers {
		r, err := pot.RegionFromCenter(c[0], c[1], s.grow, frameH, frameW)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	for _, rc := range s.rects {
		r, err := pot.RegionFromCorners(rc[0], rc[1], rc[2], rc[3], frameH, frameW)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

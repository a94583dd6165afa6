package stages

import (
	"github.com/traitcapture/timestream/internal/archive"
	"github.com/traitcapture/timestream/internal/errs"
	"github.com/traitcapture/timestream/internal/pipeline"
)

var imageWriteSchema = pipeline.Schema{
	"overwrite": {Desc: "conflict policy: skip, increment, overwrite or raise",
		Default: "skip"},
	"masked": {Desc: "write the background-zeroed composite instead of the raw frame",
		Default: false},
}

// imageWrite persists the frame into the output archive from the run
// context, recording pot locations in the frame's metadata so they
// travel with the written image.
type imageWrite struct {
	name   string
	mode   archive.Overwrite
	masked bool
}

func newImageWrite(name string, args map[string]interface{}) (pipeline.Stage, error) {
	a, err := pipeline.ApplyArgs(name, imageWriteSchema, args)
	if err != nil {
		return nil, err
	}
	st := &imageWrite{name: name}
	ms, err := argString(name, "overwrite", a["overwrite"])
	if err != nil {
		return nil, err
	}
	if st.mode, err = archive.ParseOverwrite(ms); err != nil {
		return nil, err
	}
	if st.masked, err = argBool(name, "masked", a["masked"]); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *imageWrite) Name() string          { return s.name }
func (s *imageWrite) Args() pipeline.Schema { return imageWriteSchema }
func (s *imageWrite) Expects() []string     { return []string{"*archive.Frame", "*pot.Matrix"} }
func (s *imageWrite) Returns() []string     { return []string{"*archive.Frame"} }

func (s *imageWrite) Run(ctx *pipeline.Context, in pipeline.Values) (pipeline.Values, error) {
	if rerr, ok := sentinel(in); ok {
		// Nothing to write for an unresolvable frame.
		return passthrough(s, rerr), nil
	}
	f, err := wantFrame(s.name, in)
	if err != nil {
		return nil, err
	}
	v, ok := ctx.Get(pipeline.KeyOutput)
	if !ok {
		return nil, errs.Configf(s.name, "no output archive in run context")
	}
	out, ok := v.(*archive.TimeStream)
	if !ok || out == nil {
		return nil, errs.Configf(s.name, "output archive in run context is %T", v)
	}

	if f.Pots != nil {
		locs := map[string][4]int{}
		for _, id := range f.Pots.IDs() {
			h, err := f.Pots.Pot(id)
			if err != nil {
				continue
			}
			locs[id] = h.Region().Corners()
		}
		f.Data["pot_locations"] = locs
	}

	wf := f
	if s.masked && f.Pots != nil {
		wf, err = s.composite(f)
		if err != nil {
			return nil, err
		}
	}
	if err := out.WriteImage(wf, s.mode); err != nil {
		return nil, err
	}
	return pipeline.Values{f}, nil
}

// composite builds a frame whose pixels are zero outside every pot's
// mask, preserving the original's timestamp, metadata and pot matrix.
func (s *imageWrite) composite(f *archive.Frame) (*archive.Frame, error) {
	px, err := f.Pixels()
	if err != nil {
		return nil, err
	}
	out := archive.NewFrame(f.Timestamp)
	out.Data = f.Data
	out.Pots = f.Pots
	buf := px.Clone()
	for y := 0; y < buf.H; y++ {
		for x := 0; x < buf.W; x++ {
			for c := 0; c < buf.C; c++ {
				buf.Set(y, x, c, 0)
			}
		}
	}
	for _, h := range f.Pots.Pots() {
		reg := h.Region()
		masked := h.MaskedImage()
		for y := 0; y < masked.H; y++ {
			for x := 0; x < masked.W; x++ {
				for c := 0; c < masked.C && c < buf.C; c++ {
					buf.Set(reg.Top+y, reg.Left+x, c, masked.At(y, x, c))
				}
			}
		}
	}
	out.SetPixels(buf)
	return out, nil
}

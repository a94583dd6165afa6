package stages

import (
	"github.com/traitcapture/timestream/internal/pipeline"
	"github.com/traitcapture/timestream/internal/segment"
)

var plantExtractSchema = pipeline.Schema{
	"cutoff": {Desc: "mean-intensity threshold in [0, 255] separating plant from background",
		Default: 100.0},
	"invert": {Desc: "select pixels below the cutoff instead of above",
		Default: false},
}

// plantExtract attaches a threshold segmenter to every pot and forces
// mask computation, so the predecessor fallback resolves while the
// previous generation is still reachable.
type plantExtract struct {
	name   string
	cutoff float64
	invert bool
}

func newPlantExtract(name string, args map[string]interface{}) (pipeline.Stage, error) {
	a, err := pipeline.ApplyArgs(name, plantExtractSchema, args)
	if err != nil {
		return nil, err
	}
	st := &plantExtract{name: name}
	if st.cutoff, err = argFloat(name, "cutoff", a["cutoff"]); err != nil {
		return nil, err
	}
	if st.invert, err = argBool(name, "invert", a["invert"]); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *plantExtract) Name() string          { return s.name }
func (s *plantExtract) Args() pipeline.Schema { return plantExtractSchema }
func (s *plantExtract) Expects() []string     { return []string{"*archive.Frame", "*pot.Matrix"} }
func (s *plantExtract) Returns() []string     { return []string{"*archive.Frame", "*pot.Matrix"} }

func (s *plantExtract) Run(ctx *pipeline.Context, in pipeline.Values) (pipeline.Values, error) {
	if rerr, ok := sentinel(in); ok {
		return passthrough(s, rerr), nil
	}
	f, err := wantFrame(s.name, in)
	if err != nil {
		return nil, err
	}
	for _, h := range f.Pots.Pots() {
		h.SetSegmenter(&segment.Threshold{Cutoff: s.cutoff, Invert: s.invert})
		h.Mask()
	}
	return pipeline.Values{f, f.Pots}, nil
}

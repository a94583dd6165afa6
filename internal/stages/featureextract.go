package stages

import (
	"github.com/traitcapture/timestream/internal/features"
	"github.com/traitcapture/timestream/internal/pipeline"
)

var featureExtractSchema = pipeline.Schema{
	"features": {Desc: `feature names to compute, or ["all"] for the full catalog`,
		Default: []interface{}{features.All}},
}

// featureExtract computes the configured feature set over every pot's
// mask.
type featureExtract struct {
	name  string
	names []string
}

func newFeatureExtract(name string, args map[string]interface{}) (pipeline.Stage, error) {
	a, err := pipeline.ApplyArgs(name, featureExtractSchema, args)
	if err != nil {
		return nil, err
	}
	st := &featureExtract{name: name}
	if st.names, err = argStringList(name, "features", a["features"]); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *featureExtract) Name() string          { return s.name }
func (s *featureExtract) Args() pipeline.Schema { return featureExtractSchema }
func (s *featureExtract) Expects() []string     { return []string{"*archive.Frame", "*pot.Matrix"} }
func (s *featureExtract) Returns() []string     { return []string{"*archive.Frame", "*pot.Matrix"} }

func (s *featureExtract) Run(ctx *pipeline.Context, in pipeline.Values) (pipeline.Values, error) {
	if rerr, ok := sentinel(in); ok {
		return passthrough(s, rerr), nil
	}
	f, err := wantFrame(s.name, in)
	if err != nil {
		return nil, err
	}
	for _, h := range f.Pots.Pots() {
		if err := h.CalcFeatures(s.names); err != nil {
			return nil, err
		}
	}
	return pipeline.Values{f, f.Pots}, nil
}

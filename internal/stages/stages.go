// Package stages provides the stock pipeline components: pot location,
// plant segmentation, feature extraction, image writing and feature
// persistence. Components are built by name from configuration
// arguments via the registry.
package stages

import (
	"fmt"
	"sort"

	"github.com/traitcapture/timestream/internal/archive"
	"github.com/traitcapture/timestream/internal/errs"
	"github.com/traitcapture/timestream/internal/pipeline"
)

type builder func(name string, args map[string]interface{}) (pipeline.Stage, error)

var builders = map[string]builder{
	"potlocate":      newPotLocate,
	"plantextract":   newPlantExtract,
	"featureextract": newFeatureExtract,
	"featurestore":   newFeatureStore,
	"imagewrite":     newImageWrite,
}

// Build constructs the named stage from its configuration arguments.
func Build(name string, args map[string]interface{}) (pipeline.Stage, error) {
	b, ok := builders[name]
	if !ok {
		return nil, errs.Configf(name, "unknown stage (available: %v)", Catalog())
	}
	return b(name, args)
}

// Catalog returns the registered stage names, sorted.
func Catalog() []string {
	names := make([]string, 0, len(builders))
	for name := range builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe renders the documented contract of every registered stage.
func Describe() string {
	out := ""
	for _, name := range Catalog() {
		st, err := builders[name](name, nil)
		if err != nil {
			// Stages with required arguments cannot be built bare;
			// fall back to the schema-only description.
			out += describeBare(name)
			continue
		}
		out += pipeline.DescribeStage(st) + "\n"
	}
	return out
}

func describeBare(name string) string {
	switch name {
	case "potlocate":
		return pipeline.DescribeSchema(name, potLocateSchema) + "\n"
	}
	return fmt.Sprintf("  %s\n", name)
}

// sentinel extracts the unresolvable-frame marker from a stage's first
// input, if present.
func sentinel(in pipeline.Values) (*errs.ResolutionError, bool) {
	if len(in) == 0 {
		return nil, false
	}
	rerr, ok := in[0].(*errs.ResolutionError)
	return rerr, ok
}

// passthrough fills a stage's declared output arity with the sentinel,
// so it keeps travelling downstream untouched.
func passthrough(st pipeline.Stage, rerr *errs.ResolutionError) pipeline.Values {
	out := make(pipeline.Values, len(st.Returns()))
	for i := range out {
		out[i] = rerr
	}
	return out
}

// wantFrame asserts the stage's first input is a resolved frame.
func wantFrame(stage string, in pipeline.Values) (*archive.Frame, error) {
	f, ok := in[0].(*archive.Frame)
	if !ok {
		return nil, errs.Contractf(stage, "input 0 is %T, want *archive.Frame", in[0])
	}
	return f, nil
}

// Configuration arguments arrive as decoded JSON; these coerce the
// generic forms into what each stage needs.

func argFloat(stage, name string, v interface{}) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int:
		return float64(x), nil
	}
	return 0, errs.Configf(stage, "argument %q must be a number, got %T", name, v)
}

func argInt(stage, name string, v interface{}) (int, error) {
	f, err := argFloat(stage, name, v)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

func argBool(stage, name string, v interface{}) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, errs.Configf(stage, "argument %q must be a boolean, got %T", name, v)
	}
	return b, nil
}

func argString(stage, name string, v interface{}) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", errs.Configf(stage, "argument %q must be a string, got %T", name, v)
	}
	return s, nil
}

func argStringList(stage, name string, v interface{}) ([]string, error) {
	switch x := v.(type) {
	case []string:
		return x, nil
	case []interface{}:
		out := make([]string, 0, len(x))
		for _, e := range x {
			s, ok := e.(string)
			if !ok {
				return nil, errs.Configf(stage, "argument %q must be a list of strings, got element %T", name, e)
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, errs.Configf(stage, "argument %q must be a list of strings, got %T", name, v)
}

// argIntTuples coerces a list of fixed-width integer tuples, e.g.
// [[x, y], ...] or [[x1, y1, x2, y2], ...].
func argIntTuples(stage, name string, v interface{}, width int) ([][]int, error) {
	list, ok := v.([]interface{})
	if !ok {
		if pre, ok := v.([][]int); ok {
			return pre, nil
		}
		return nil, errs.Configf(stage, "argument %q must be a list of %d-tuples, got %T", name, width, v)
	}
	out := make([][]int, 0, len(list))
	for _, e := range list {
		tup, ok := e.([]interface{})
		if !ok || len(tup) != width {
			return nil, errs.Configf(stage, "argument %q must be a list of %d-tuples", name, width)
		}
		row := make([]int, width)
		for i, ev := range tup {
			n, err := argInt(stage, name, ev)
			if err != nil {
				return nil, err
			}
			row[i] = n
		}
		out = append(out, row)
	}
	return out, nil
}
